package keycodec

import (
	"crypto/sha256"
	"encoding/hex"
)

// Length is the length of every identifier produced by Normalize.
const Length = sha256.Size * 2

// Normalize computes the identifier for a raw key.
func Normalize(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}

// NormalizeBytes computes the identifier for a raw binary key.
func NormalizeBytes(raw []byte) string {
	h := sha256.Sum256(raw)
	return hex.EncodeToString(h[:])
}

// Valid reports whether id has the shape of a normalized identifier.
func Valid(id string) bool {
	if len(id) != Length {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
