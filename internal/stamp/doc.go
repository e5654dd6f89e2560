// Package stamp composes evidence photos: a translucent brand watermark in the
// top-left corner, a QR code linking to the map position in the bottom-left
// corner, and a boxed address and timestamp in the bottom-right corner. The
// result is exported as JPEG.
package stamp
