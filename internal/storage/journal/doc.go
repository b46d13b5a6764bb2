// Package journal provides the append-only entry journal of a cache directory.
//
// The journal records the lifecycle of every entry so the in-memory index
// can be rebuilt after a restart or crash. It is replayed in order on open
// and rewritten compactly once redundant records pile up.
//
// Record Types:
//
//   - CREATE: an editor opened; the entry is dirty until a matching COMMIT
//   - COMMIT: all slot files were renamed into place; carries slot lengths
//   - REMOVE: the entry was deleted, evicted or its first edit aborted
//   - READ:   the entry was read and moved to the recent end of the LRU order
//
// Format:
//
//	journal
//	[magic:8 "DSKCJRN\x01"]
//	[HeaderLength:4][Header JSON]
//	[Record]*
//
// Record wire format:
//
//	[Length:4][CRC32:4][Type:1][Payload:Length-5]
//
// Where:
//   - Length = CRC32 + Type + Payload (big-endian uint32)
//   - CRC32 covers Type+Payload (IEEE)
//   - Payload is JSON: {"id":..., "seq":..., "len":[...]}
//
// A partially written final record is a torn tail and is tolerated; any other
// malformed record makes the journal corrupt.
//
// Rewrites go to journal.tmp, the live journal is kept as journal.bkp until
// the rename completes, and RestoreBackup recovers from a crash in between.
package journal
