// Package evidence defines the capture model shared by the producer, the queue
// store, the manager, and the uploader.
package evidence
