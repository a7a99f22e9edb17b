package formsync

import (
	"errors"
	"fmt"

	"github.com/roach88/formsync/internal/store"
)

// StorageWriteError is the local persistence failure surfaced by
// SubmitPage. It is fatal to the submission and no remote call is made.
type StorageWriteError = store.StorageWriteError

// SyncError reports a failure after the page answers were saved locally.
// The user-facing meaning is "saved locally, sync will be retried"; the
// caller recovers by submitting the page again.
type SyncError struct {
	// Code identifies the error category.
	Code SyncErrorCode

	// Group is the field group being submitted.
	Group string

	// FormID is the remote identifier involved, when one was known.
	FormID string

	// LocalSaved reports whether the page answers were persisted
	// locally before the failure.
	LocalSaved bool

	// Err is the underlying cause.
	Err error
}

// SyncErrorCode categorizes sync errors.
type SyncErrorCode string

const (
	// ErrCodeCreateFailed indicates the remote create call failed.
	ErrCodeCreateFailed SyncErrorCode = "CREATE_FAILED"

	// ErrCodeUpdateFailed indicates the remote update call failed.
	ErrCodeUpdateFailed SyncErrorCode = "UPDATE_FAILED"

	// ErrCodeLocalRead indicates the snapshot or identifier could not be read back.
	ErrCodeLocalRead SyncErrorCode = "LOCAL_READ_FAILED"

	// ErrCodeIdentifierPersist indicates the new form identifier could not be stored.
	ErrCodeIdentifierPersist SyncErrorCode = "IDENTIFIER_PERSIST_FAILED"

	// ErrCodeInvalidResponse indicates the remote answered without an identifier.
	ErrCodeInvalidResponse SyncErrorCode = "INVALID_RESPONSE"
)

// Error implements the error interface.
func (e *SyncError) Error() string {
	if e.FormID != "" {
		return fmt.Sprintf("%s: sync of %q failed (form=%s): %v", e.Code, e.Group, e.FormID, e.Err)
	}
	return fmt.Sprintf("%s: sync of %q failed: %v", e.Code, e.Group, e.Err)
}

// Unwrap returns the underlying cause.
func (e *SyncError) Unwrap() error {
	return e.Err
}

// IsSyncError returns true if err is or wraps a SyncError.
func IsSyncError(err error) bool {
	var se *SyncError
	return errors.As(err, &se)
}

// IsStorageWriteError returns true if err is or wraps a StorageWriteError.
func IsStorageWriteError(err error) bool {
	return store.IsStorageWriteError(err)
}

func newSyncError(code SyncErrorCode, group, formID string, err error) *SyncError {
	return &SyncError{
		Code:       code,
		Group:      group,
		FormID:     formID,
		LocalSaved: true,
		Err:        err,
	}
}
