// Package cmap provides a sharded concurrent map.
//
// Keys are spread over a power-of-two number of shards by a seeded murmur3
// hash, and each shard has its own RWMutex, so unrelated keys rarely
// contend.
//
// Usage:
//
//	m := cmap.New[string, int64]()
//	m.Set("key", 42)
//	val, ok := m.Get("key")
//
// Iteration locks one shard at a time; it does not see a consistent
// snapshot of the whole map.
package cmap
