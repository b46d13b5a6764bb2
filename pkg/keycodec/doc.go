// Package keycodec maps arbitrary cache keys to store identifiers.
//
// Identifier Format:
//
//   - Body: 64 characters of lowercase hex-encoded SHA-256
//   - Alphabet: [0-9a-f], safe as a filename component on every platform
//
// The mapping is deterministic. Collisions are not detected; the store
// relies on the collision resistance of SHA-256.
package keycodec
