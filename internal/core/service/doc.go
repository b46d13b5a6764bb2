// Package service provides the cache accessor on top of the entry store.
//
// CacheService maps application keys to store identifiers, stores values in
// slot 0 and an expiry timestamp in slot 1, and enforces expiry on read.
// Identifiers are derived with keycodec, so any string can be a key.
//
// This package contains:
//
//   - CacheService: Put/Get/Remove/TTL over a *storage.Store
//   - Expiry codec: 8-byte big-endian Unix milliseconds, 0 = never
//   - OpenCache: open with automatic recovery from a corrupt directory
//
// All methods are safe for concurrent use.
package service
