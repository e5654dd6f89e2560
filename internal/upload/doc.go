// Package upload sends captures to the tenant backend.
//
// An upload stores the photo in the object store under a key derived from the
// capture, inserts the catalog record keyed by capture id, and publishes an
// optional event. Any failure is reported as ErrUpload; the caller keeps the
// capture queued and tries again later.
package upload
