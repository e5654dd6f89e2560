// Package queue implements the persistent store of captures that have not yet
// been uploaded.
//
// A capture is pending exactly while its row exists. Put is an idempotent
// upsert keyed by capture id, GetAll returns captures in insertion order, and
// Delete is idempotent. Every failure of the medium, including a free-space
// floor checked before each write, surfaces as a *StorageError that matches
// ErrStorage. Busy database errors are retried with bounded backoff; nothing
// else is retried here.
package queue
