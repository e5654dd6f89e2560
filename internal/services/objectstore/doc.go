// Package objectstore stores evidence photos in an S3-compatible bucket
// through the MinIO client.
package objectstore
