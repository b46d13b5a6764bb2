package storage

import (
	"container/list"
	"path/filepath"
	"strconv"
)

// Slot layout of every entry.
const (
	SlotCount = 2
	SlotValue = 0
	SlotMeta  = 1
)

const tmpSuffix = ".tmp"

// entry is the in-memory index record for one identifier.
type entry struct {
	id      string
	lengths [SlotCount]int64

	// readable is true once the entry has been committed at least once.
	readable bool

	// editor is the live editor, or nil when the entry is CLEAN.
	editor *Editor

	// seq orders the entry in the LRU list; it advances on every touch.
	seq uint64

	// commitSeq identifies the committed generation; Snapshot.Edit
	// compares it to detect stale snapshots.
	commitSeq uint64

	elem *list.Element
}

func (e *entry) size() int64 {
	var n int64
	for _, l := range e.lengths {
		n += l
	}
	return n
}

func slotName(id string, slot int) string {
	return id + "." + strconv.Itoa(slot)
}

func cleanPath(dir, id string, slot int) string {
	return filepath.Join(dir, slotName(id, slot))
}

func dirtyPath(dir, id string, slot int) string {
	return filepath.Join(dir, slotName(id, slot)+tmpSuffix)
}

// slotScope names the transform scope of a slot. Keys are derived per slot,
// not per entry, so the provider's key cache stays bounded.
func slotScope(slot int) string {
	return strconv.Itoa(slot)
}

func validSlot(slot int) bool {
	return slot >= 0 && slot < SlotCount
}
