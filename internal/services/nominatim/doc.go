// Package nominatim reverse-geocodes capture coordinates into the two address
// lines stamped on evidence photos.
package nominatim
