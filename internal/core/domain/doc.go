// Package domain defines the error taxonomy shared by the cache layers.
//
// Every failure the storage engine reports to its caller is a DomainError
// carrying a stable code:
//
//   - STOR: store-wide conditions (busy entry, corrupt journal, closed store)
//   - EDIT: editor state machine violations
//   - XFRM: stream transform (encryption) failures
//   - IO:   filesystem failures surfaced from any operation
//
// Errors compare by code, so errors.Is(err, ErrBusy) holds for any copy
// produced by WithDetails or WithCause.
package domain
