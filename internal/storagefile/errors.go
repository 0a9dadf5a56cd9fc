package storagefile

import (
	"errors"
	"fmt"
)

// ErrPageFileNotOpen is returned when an operation is attempted against a
// PageFile that has already been closed.
var ErrPageFileNotOpen = errors.New("storagefile: page file not open")

// StorageError wraps the operation name together with the underlying cause,
// so callers can both log a human-readable message and errors.Is/As the cause.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storagefile: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}
