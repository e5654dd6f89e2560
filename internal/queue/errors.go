package queue

import (
	"errors"
	"fmt"
)

var (
	// ErrStorage matches every failure of the persistent medium.
	ErrStorage = errors.New("queue storage failure")
	// ErrQuotaExceeded is wrapped by StorageError when the free-space floor would be crossed.
	ErrQuotaExceeded = errors.New("quota exceeded")
)

// StorageError reports a failed store operation. It matches ErrStorage with
// errors.Is and unwraps to the underlying cause.
type StorageError struct {
	Op  string
	ID  string
	Err error
}

func (e *StorageError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("queue %s %s: %v", e.Op, e.ID, e.Err)
	}
	return fmt.Sprintf("queue %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

func storageErr(op, id string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, ID: id, Err: err}
}
