package store

import (
	"errors"
	"fmt"
)

// WriteOp names the write that failed.
type WriteOp string

const (
	OpSetGroup WriteOp = "set_group"
	OpSetValue WriteOp = "set_value"
	OpReset    WriteOp = "reset"
)

// StorageWriteError reports a failed local write. The write is
// all-or-nothing: when this error is returned nothing of the attempted
// write is visible to later reads.
type StorageWriteError struct {
	// Op identifies the write.
	Op WriteOp

	// Key is the group name or point value key. Empty for OpReset.
	Key string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *StorageWriteError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("storage write failed (%s %q): %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("storage write failed (%s): %v", e.Op, e.Err)
}

// Unwrap returns the underlying cause.
func (e *StorageWriteError) Unwrap() error {
	return e.Err
}

// IsStorageWriteError returns true if err is or wraps a StorageWriteError.
func IsStorageWriteError(err error) bool {
	var we *StorageWriteError
	return errors.As(err, &we)
}
