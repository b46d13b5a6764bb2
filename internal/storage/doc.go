// Package storage provides the disk-backed entry store of the cache.
//
// A Store owns one directory. Each entry is identified by a normalized key
// and holds a fixed number of slots, each persisted as its own file:
//
//	<id>.<slot>      committed slot data
//	<id>.<slot>.tmp  slot data written by an open editor
//	journal          append-only lifecycle journal (see package journal)
//
// Architecture:
//
//   - Index: in-memory map of entries, rebuilt from the journal on open
//   - LRU: recency list used to evict entries once MaxSize is exceeded
//   - Editor: exclusive writer for one entry, committed by atomic rename
//   - Snapshot: consistent read of one committed generation of an entry
//
// The store guarantees:
//
//   - Readers never observe a partially written entry
//   - At most one editor per identifier
//   - A crash before COMMIT is journaled leaves no trace of the edit
//   - Optional at-rest encryption through a transform.Provider
package storage
