package domain

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *DomainError
		expected string
	}{
		{
			name:     "error without details",
			err:      NewDomainError("DC-TEST-1000", "test message"),
			expected: "[DC-TEST-1000] test message",
		},
		{
			name:     "error with details",
			err:      NewDomainError("DC-TEST-1001", "test message").WithDetails("extra info"),
			expected: "[DC-TEST-1001] test message: extra info",
		},
		{
			name:     "error with cause",
			err:      NewDomainError("DC-TEST-1002", "test message").WithCause(errors.New("disk full")),
			expected: "[DC-TEST-1002] test message: disk full",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestDomainError_Is(t *testing.T) {
	err1 := NewDomainError("DC-TEST-1000", "message 1")
	err2 := NewDomainError("DC-TEST-1000", "message 2")
	err3 := NewDomainError("DC-TEST-1001", "message 1")

	assert.ErrorIs(t, err1, err2)
	assert.NotErrorIs(t, err1, err3)
	assert.NotErrorIs(t, err1, fmt.Errorf("some error"))

	wrapped := fmt.Errorf("storage: edit: %w", ErrBusy.WithDetails("abc"))
	assert.ErrorIs(t, wrapped, ErrBusy)
}

func TestDomainError_Unwrap(t *testing.T) {
	cause := &os.PathError{Op: "rename", Path: "x", Err: os.ErrNotExist}
	err := ErrStorage.WithCause(cause)

	assert.Same(t, cause, errors.Unwrap(err))
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Nil(t, errors.Unwrap(NewDomainError("DC-TEST-1000", "no cause")))
}

func TestDomainError_WithDetailsDoesNotMutate(t *testing.T) {
	original := NewDomainError("DC-TEST-1000", "original message")
	withDetails := original.WithDetails("additional details")

	assert.Empty(t, original.Details)
	assert.Equal(t, "additional details", withDetails.Details)
	assert.Equal(t, original.Code, withDetails.Code)
}

func TestDomainError_Wrap(t *testing.T) {
	require.NoError(t, ErrStorage.Wrap(nil))

	err := ErrStorage.Wrap(os.ErrPermission)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStorage)
	assert.ErrorIs(t, err, os.ErrPermission)
}

func TestIsDomainError(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", ErrCorruptStore)

	assert.True(t, IsDomainError(err, ""))
	assert.True(t, IsDomainError(err, "DC-STOR-5001"))
	assert.False(t, IsDomainError(err, "DC-STOR-4090"))
	assert.False(t, IsDomainError(errors.New("plain"), ""))
}

func TestGetErrorCode(t *testing.T) {
	assert.Equal(t, "DC-EDIT-4220", GetErrorCode(ErrIncompleteEntry))
	assert.Equal(t, "DC-XFRM-5000", GetErrorCode(fmt.Errorf("x: %w", ErrTransformUnavailable)))
	assert.Empty(t, GetErrorCode(errors.New("plain")))
}

func TestErrorCodesAreUnique(t *testing.T) {
	all := []*DomainError{
		ErrBusy, ErrInvalidIdentifier, ErrCorruptStore, ErrStoreClosed,
		ErrInvalidSlot, ErrEditorClosed, ErrStale, ErrIncompleteEntry,
		ErrTransformUnavailable, ErrStorage,
	}
	seen := make(map[string]bool, len(all))
	for _, e := range all {
		require.False(t, seen[e.Code], "duplicate code %s", e.Code)
		seen[e.Code] = true
	}
}
