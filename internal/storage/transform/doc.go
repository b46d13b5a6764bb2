// Package transform applies optional encryption to slot byte streams.
//
// A Provider hands out one cipher per stream and direction. Wrapper is the
// single place that decides between encrypting and passing bytes through:
// with no provider configured, streams are returned unchanged; with a
// provider that fails, the wrap fails with domain.ErrTransformUnavailable and
// the caller aborts instead of falling back to plaintext.
//
// KeyProvider is the stock provider. It is configured with either a raw key
// or a passphrase plus salt (Argon2id), and derives independent per-slot
// subkeys with HKDF.
package transform
