// Package logger provides structured logging for diskcache.
//
// It wraps log/slog with JSON or text output, a process-wide level that can
// be changed at runtime, and redaction of attributes whose key names suggest
// key material (encryption keys, passphrases, salts).
//
//   - logger.go: construction and the package-level default logger
//   - context.go: carrying a logger and an operation ID in a context
//   - redact.go: sensitive attribute masking
package logger
