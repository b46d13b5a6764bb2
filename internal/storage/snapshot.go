package storage

import (
	"io"
	"os"
	"sync"

	"github.com/yndnr/diskcache-go/internal/core/domain"
)

// Snapshot is a read handle on one committed generation of an entry.
//
// The slot files are opened when the snapshot is taken, so later commits,
// removals or evictions do not affect what it reads. Close releases the
// files.
type Snapshot struct {
	store     *Store
	id        string
	seq       uint64
	commitSeq uint64
	files     [SlotCount]*os.File
	lengths   [SlotCount]int64

	mu      sync.Mutex
	readers [SlotCount]io.Reader
	closed  bool
}

// Identifier returns the entry identifier.
func (sn *Snapshot) Identifier() string {
	return sn.id
}

// Sequence returns the recency sequence assigned when the snapshot was taken.
func (sn *Snapshot) Sequence() uint64 {
	return sn.seq
}

// Length returns the on-disk length of slot, or -1 for an invalid slot.
func (sn *Snapshot) Length(slot int) int64 {
	if !validSlot(slot) {
		return -1
	}
	return sn.lengths[slot]
}

// Reader returns the decoded content of slot. Repeated calls return the same
// reader.
func (sn *Snapshot) Reader(slot int) (io.Reader, error) {
	if !validSlot(slot) {
		return nil, domain.ErrInvalidSlot
	}

	sn.mu.Lock()
	defer sn.mu.Unlock()

	if sn.closed {
		return nil, domain.ErrEditorClosed.WithDetails("snapshot closed")
	}
	if r := sn.readers[slot]; r != nil {
		return r, nil
	}

	r, err := sn.store.xform.WrapReader(sn.files[slot], slotScope(slot))
	if err != nil {
		sn.store.metrics.RecordTransformFailure()
		return nil, err
	}
	sr := &slotReader{store: sn.store, r: r, c: io.NopCloser(nil)}
	sn.readers[slot] = sr
	return sr, nil
}

// Bytes reads the whole decoded content of slot.
func (sn *Snapshot) Bytes(slot int) ([]byte, error) {
	r, err := sn.Reader(slot)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, domain.ErrStorage.WithDetails("read slot").WithCause(err)
	}
	return data, nil
}

// Edit opens an editor for the entry only if it has not been committed,
// removed or evicted since the snapshot was taken. Otherwise it fails with
// ErrStale.
func (sn *Snapshot) Edit() (*Editor, error) {
	seq := sn.commitSeq
	return sn.store.edit(sn.id, &seq)
}

// Remove deletes the entry only if it is still at the generation the
// snapshot was taken from. A newer commit fails with ErrStale and an open
// editor with ErrBusy. Removal that already happened reports false.
func (sn *Snapshot) Remove() (bool, error) {
	return sn.store.removeGeneration(sn.id, sn.commitSeq)
}

// Close releases the slot files.
func (sn *Snapshot) Close() error {
	sn.mu.Lock()
	defer sn.mu.Unlock()

	if sn.closed {
		return nil
	}
	sn.closed = true

	var firstErr error
	for _, f := range sn.files {
		if f == nil {
			continue
		}
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
