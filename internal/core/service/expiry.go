package service

import (
	"encoding/binary"
	"fmt"
	"time"
)

// NeverExpires is the stored expiry of entries without a TTL.
const NeverExpires int64 = 0

// expirySize is the encoded size of an expiry.
const expirySize = 8

// EncodeExpiry encodes an expiry in Unix milliseconds.
func EncodeExpiry(ms int64) []byte {
	buf := make([]byte, expirySize)
	binary.BigEndian.PutUint64(buf, uint64(ms))
	return buf
}

// DecodeExpiry decodes an expiry written by EncodeExpiry.
func DecodeExpiry(b []byte) (int64, error) {
	if len(b) != expirySize {
		return 0, fmt.Errorf("service: expiry must be %d bytes, got %d", expirySize, len(b))
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}

// expiryFor returns the expiry of an entry written at now with ttl.
// A non-positive ttl never expires.
func expiryFor(now time.Time, ttl time.Duration) int64 {
	if ttl <= 0 {
		return NeverExpires
	}
	return now.Add(ttl).UnixMilli()
}

func expired(expiry int64, now time.Time) bool {
	return expiry != NeverExpires && now.UnixMilli() >= expiry
}
