package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a cache error with a structured error code.
//
// Codes follow the format DC-<AREA>-<NNNN>.
type DomainError struct {
	Code    string // Error code (e.g., "DC-STOR-4090")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support for error comparison.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// Wrap wraps an error with this domain error as the cause.
// A nil cause yields nil so call sites can wrap unconditionally.
func (e *DomainError) Wrap(cause error) error {
	if cause == nil {
		return nil
	}
	return e.WithCause(cause)
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// ============================================================================
// Store Errors (STOR)
// ============================================================================

var (
	// ErrBusy indicates an editor is already open for the identifier.
	ErrBusy = NewDomainError("DC-STOR-4090", "entry is being edited")

	// ErrInvalidIdentifier indicates the identifier is not a normalized key.
	ErrInvalidIdentifier = NewDomainError("DC-STOR-4000", "invalid identifier")

	// ErrCorruptStore indicates the journal is unreadable or inconsistent.
	// The directory must be destroyed and recreated.
	ErrCorruptStore = NewDomainError("DC-STOR-5001", "corrupt store")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = NewDomainError("DC-STOR-5030", "store closed")
)

// ============================================================================
// Editor Errors (EDIT)
// ============================================================================

var (
	// ErrInvalidSlot indicates a slot index outside the entry shape.
	ErrInvalidSlot = NewDomainError("DC-EDIT-4000", "invalid slot index")

	// ErrEditorClosed indicates the editor already committed or aborted.
	ErrEditorClosed = NewDomainError("DC-EDIT-4100", "editor closed")

	// ErrStale indicates the entry changed after the snapshot was taken.
	ErrStale = NewDomainError("DC-EDIT-4091", "snapshot is stale")

	// ErrIncompleteEntry indicates a new entry was committed without all slots.
	ErrIncompleteEntry = NewDomainError("DC-EDIT-4220", "entry is missing slot values")
)

// ============================================================================
// Transform Errors (XFRM)
// ============================================================================

var (
	// ErrTransformUnavailable indicates the encryption provider could not
	// produce a usable transform.
	ErrTransformUnavailable = NewDomainError("DC-XFRM-5000", "stream transform unavailable")
)

// ============================================================================
// I/O Errors (IO)
// ============================================================================

var (
	// ErrStorage indicates a filesystem failure.
	ErrStorage = NewDomainError("DC-IO-5000", "storage failure")
)
