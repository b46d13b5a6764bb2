package storage

import (
	"errors"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/diskcache-go/internal/core/domain"
	"github.com/yndnr/diskcache-go/internal/storage/journal"
)

type editorState uint8

const (
	editorOpen editorState = iota
	editorCommitted
	editorAborted
)

func (s editorState) String() string {
	switch s {
	case editorOpen:
		return "OPEN"
	case editorCommitted:
		return "COMMITTED"
	case editorAborted:
		return "ABORTED"
	default:
		return "UNKNOWN"
	}
}

// Editor is the exclusive writer for one entry.
//
// Slot data is written to temporary files and becomes visible only when
// Commit renames them into place. An Editor is meant for one goroutine.
type Editor struct {
	store *Store
	entry *entry
	id    string

	// isNew is true when the entry had never been committed; such an entry
	// must have every slot written before Commit.
	isNew bool

	// detached is set under the store lock by EvictAll and Close.
	detached atomic.Bool

	mu      sync.Mutex
	state   editorState
	writers [SlotCount]*slotWriter
	written [SlotCount]bool
}

func newEditor(s *Store, e *entry) *Editor {
	return &Editor{
		store: s,
		entry: e,
		id:    ulid.Make().String(),
		isNew: !e.readable,
	}
}

// ID returns a unique identifier for this edit, for log correlation.
func (ed *Editor) ID() string {
	return ed.id
}

// Identifier returns the entry identifier being edited.
func (ed *Editor) Identifier() string {
	return ed.entry.id
}

func (ed *Editor) detach() {
	ed.detached.Store(true)
}

// NewWriter returns a writer for slot. Data is encrypted when the store has
// a transform. Opening a slot again discards what was written before.
func (ed *Editor) NewWriter(slot int) (io.WriteCloser, error) {
	if !validSlot(slot) {
		return nil, domain.ErrInvalidSlot
	}

	ed.mu.Lock()
	defer ed.mu.Unlock()

	if ed.state != editorOpen || ed.detached.Load() {
		return nil, domain.ErrEditorClosed
	}

	if prev := ed.writers[slot]; prev != nil {
		_ = prev.Close()
		ed.writers[slot] = nil
	}

	s := ed.store
	f, err := os.OpenFile(dirtyPath(s.dir, ed.entry.id, slot), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, journal.DefaultFilePerm)
	if err != nil {
		return nil, domain.ErrStorage.WithDetails("create temp slot").WithCause(err)
	}

	w, err := s.xform.WrapWriter(f, slotScope(slot))
	if err != nil {
		f.Close()
		s.metrics.RecordTransformFailure()
		return nil, err
	}

	sw := &slotWriter{store: s, file: f, w: w}
	ed.writers[slot] = sw
	ed.written[slot] = true
	return sw, nil
}

// Set writes data as the whole content of slot.
func (ed *Editor) Set(slot int, data []byte) error {
	w, err := ed.NewWriter(slot)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

// NewReader opens the last committed content of slot. ok is false when the
// entry has never been committed.
func (ed *Editor) NewReader(slot int) (r io.ReadCloser, ok bool, err error) {
	if !validSlot(slot) {
		return nil, false, domain.ErrInvalidSlot
	}

	ed.mu.Lock()
	state := ed.state
	ed.mu.Unlock()
	if state != editorOpen || ed.detached.Load() {
		return nil, false, domain.ErrEditorClosed
	}
	if ed.isNew {
		return nil, false, nil
	}

	s := ed.store
	f, err := os.Open(cleanPath(s.dir, ed.entry.id, slot))
	if err != nil {
		return nil, false, domain.ErrStorage.WithDetails("open slot").WithCause(err)
	}
	dr, err := s.xform.WrapReader(f, slotScope(slot))
	if err != nil {
		f.Close()
		s.metrics.RecordTransformFailure()
		return nil, false, err
	}
	return &slotReader{store: s, r: dr, c: f}, true, nil
}

// Commit publishes the written slots. Slots not written keep their previous
// committed content; a new entry must have every slot written or Commit
// fails with ErrIncompleteEntry and the edit is aborted.
func (ed *Editor) Commit() error {
	ed.mu.Lock()
	defer ed.mu.Unlock()

	if ed.state != editorOpen {
		return domain.ErrEditorClosed
	}

	writeErr := ed.closeWritersLocked()

	if ed.detached.Load() {
		ed.state = editorAborted
		ed.removeTempFiles()
		return domain.ErrEditorClosed
	}

	if writeErr != nil {
		ed.state = editorAborted
		ed.removeTempFiles()
		ed.store.abortEdit(ed, true)
		return writeErr
	}

	if ed.isNew {
		for slot := 0; slot < SlotCount; slot++ {
			if !ed.written[slot] {
				ed.state = editorAborted
				ed.removeTempFiles()
				ed.store.abortEdit(ed, false)
				return domain.ErrIncompleteEntry.WithDetails(slotScope(slot))
			}
		}
	}

	var lengths [SlotCount]int64
	for slot := 0; slot < SlotCount; slot++ {
		if !ed.written[slot] {
			lengths[slot] = -1
			continue
		}
		info, err := os.Stat(dirtyPath(ed.store.dir, ed.entry.id, slot))
		if err != nil {
			ed.state = editorAborted
			ed.removeTempFiles()
			ed.store.abortEdit(ed, true)
			return domain.ErrStorage.WithDetails("stat temp slot").WithCause(err)
		}
		lengths[slot] = info.Size()
	}

	if err := ed.store.commitEdit(ed, lengths); err != nil {
		ed.state = editorAborted
		ed.removeTempFiles()
		return err
	}
	ed.state = editorCommitted
	return nil
}

// Abort discards the edit. A previously committed entry keeps its content;
// a new entry is removed.
func (ed *Editor) Abort() error {
	ed.mu.Lock()
	defer ed.mu.Unlock()

	if ed.state != editorOpen {
		return domain.ErrEditorClosed
	}
	_ = ed.closeWritersLocked()
	ed.state = editorAborted
	ed.removeTempFiles()

	if ed.detached.Load() {
		return nil
	}
	return ed.store.abortEdit(ed, false)
}

// AbortUnlessCommitted aborts the edit if it is still open. It is meant to
// be deferred right after Edit.
func (ed *Editor) AbortUnlessCommitted() {
	ed.mu.Lock()
	open := ed.state == editorOpen
	ed.mu.Unlock()
	if open {
		_ = ed.Abort()
	}
}

func (ed *Editor) closeWritersLocked() error {
	var firstErr error
	for slot, w := range ed.writers {
		if w == nil {
			continue
		}
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := w.failure(); err != nil && firstErr == nil {
			firstErr = err
		}
		ed.writers[slot] = nil
	}
	return firstErr
}

func (ed *Editor) removeTempFiles() {
	for slot := 0; slot < SlotCount; slot++ {
		if err := removeFile(dirtyPath(ed.store.dir, ed.entry.id, slot)); err != nil {
			ed.store.logger.Warn("remove temp slot failed", "id", ed.entry.id, "slot", slot, "error", err)
		}
	}
}

// commitEdit installs the temp files of ed and journals COMMIT. lengths
// holds -1 for slots that keep their committed content.
func (s *Store) commitEdit(ed *Editor, lengths [SlotCount]int64) error {
	start := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	e := ed.entry
	if ed.detached.Load() || e.editor != ed {
		return domain.ErrEditorClosed
	}
	if s.closed {
		return domain.ErrStoreClosed
	}

	newLengths := e.lengths
	for slot := 0; slot < SlotCount; slot++ {
		if lengths[slot] < 0 {
			continue
		}
		if err := os.Rename(dirtyPath(s.dir, e.id, slot), cleanPath(s.dir, e.id, slot)); err != nil {
			s.logger.Error("install slot failed", "id", e.id, "slot", slot, "error", err)
			for i := 0; i < SlotCount; i++ {
				_ = removeFile(dirtyPath(s.dir, e.id, i))
				if !e.readable && i < slot {
					// Slots already installed for an entry that never existed.
					_ = removeFile(cleanPath(s.dir, e.id, i))
				}
			}
			s.abortLocked(ed, true)
			return domain.ErrStorage.WithDetails("install slot").WithCause(err)
		}
		newLengths[slot] = lengths[slot]
	}

	s.size += sumLengths(newLengths) - e.size()
	e.lengths = newLengths
	e.readable = true
	e.editor = nil

	seq := s.takeSeqLocked()
	e.seq = seq
	e.commitSeq = seq
	s.lru.touch(e)

	if err := s.appendLocked(journal.NewCommitRecord(e.id, seq, e.lengths[:])); err != nil {
		return err
	}

	s.metrics.RecordCommit(time.Since(start))
	s.logger.Debug("entry committed", "id", e.id, "editor", ed.id, "size", e.size())

	s.evictLocked()
	s.maybeCompactLocked()
	return nil
}

// abortEdit ends ed without publishing. With remove set the entry is
// deleted even if it had committed content.
func (s *Store) abortEdit(ed *Editor, remove bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ed.detached.Load() || s.closed {
		return nil
	}
	return s.abortLocked(ed, remove)
}

func (s *Store) abortLocked(ed *Editor, remove bool) error {
	e := ed.entry
	if e.editor != ed {
		return nil
	}
	s.metrics.RecordAbort()

	var err error
	if remove && e.readable {
		e.editor = nil
		err = s.removeLocked(e)
	} else {
		err = s.revertLocked(e, ed)
	}
	s.maybeCompactLocked()
	s.logger.Debug("edit aborted", "id", e.id, "editor", ed.id, "removed", remove)
	return err
}

func sumLengths(lengths [SlotCount]int64) int64 {
	var n int64
	for _, l := range lengths {
		n += l
	}
	return n
}

// slotWriter writes one temp slot file, through the transform if any.
type slotWriter struct {
	store *Store
	file  *os.File
	w     io.WriteCloser

	mu     sync.Mutex
	err    error
	closed bool
}

func (sw *slotWriter) Write(p []byte) (int, error) {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if sw.closed {
		return 0, domain.ErrEditorClosed
	}
	n, err := sw.w.Write(p)
	if err != nil && sw.err == nil {
		sw.err = domain.ErrStorage.WithDetails("write slot").WithCause(err)
		return n, sw.err
	}
	return n, err
}

// Close finalizes the transform, fsyncs and closes the temp file.
func (sw *slotWriter) Close() error {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if sw.closed {
		return nil
	}
	sw.closed = true

	if err := sw.w.Close(); err != nil && sw.err == nil {
		sw.store.metrics.RecordTransformFailure()
		sw.err = domain.ErrStorage.WithDetails("finish slot").WithCause(err)
	}
	if err := sw.file.Sync(); err != nil && sw.err == nil {
		sw.err = domain.ErrStorage.WithDetails("sync slot").WithCause(err)
	}
	if err := sw.file.Close(); err != nil && sw.err == nil {
		sw.err = domain.ErrStorage.WithDetails("close slot").WithCause(err)
	}
	return sw.err
}

func (sw *slotWriter) failure() error {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.err
}

// slotReader reads a committed slot file, decrypting if needed.
type slotReader struct {
	store  *Store
	r      io.Reader
	c      io.Closer
	failed bool
}

func (sr *slotReader) Read(p []byte) (int, error) {
	n, err := sr.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) && !sr.failed && sr.store.xform.Enabled() {
		sr.failed = true
		sr.store.metrics.RecordTransformFailure()
	}
	return n, err
}

func (sr *slotReader) Close() error {
	return sr.c.Close()
}
