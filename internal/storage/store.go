package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/yndnr/diskcache-go/internal/core/domain"
	"github.com/yndnr/diskcache-go/internal/storage/journal"
	"github.com/yndnr/diskcache-go/internal/storage/transform"
	"github.com/yndnr/diskcache-go/internal/telemetry/metric"
	"github.com/yndnr/diskcache-go/pkg/keycodec"
)

// DefaultAppVersion is the application version stamped into new journals.
const DefaultAppVersion = 1

// Config configures a Store.
type Config struct {
	// Dir is the cache directory. It is created if missing.
	Dir string

	// AppVersion invalidates the whole directory when it changes.
	AppVersion int

	// MaxSize is the soft ceiling on committed bytes.
	MaxSize int64

	// Journal configures journal durability and compaction.
	Journal journal.Config

	// Transform optionally encrypts slot data at rest.
	Transform transform.Provider

	// Logger is the structured logger.
	Logger *slog.Logger

	// Metrics is optional; nil disables recording.
	Metrics *metric.Registry
}

// DefaultConfig returns the default store configuration.
func DefaultConfig(dir string, maxSize int64) Config {
	return Config{
		Dir:        dir,
		AppVersion: DefaultAppVersion,
		MaxSize:    maxSize,
		Journal:    journal.DefaultConfig(),
		Logger:     slog.Default(),
	}
}

// Stats is a point-in-time view of a store.
type Stats struct {
	Dir            string `json:"dir" yaml:"dir"`
	Size           int64  `json:"size" yaml:"size" table:"bytes"`
	MaxSize        int64  `json:"max_size" yaml:"max_size" table:"bytes"`
	Entries        int    `json:"entries" yaml:"entries"`
	Editing        int    `json:"editing" yaml:"editing"`
	JournalRecords int    `json:"journal_records" yaml:"journal_records"`
	Sequence       uint64 `json:"sequence" yaml:"sequence"`
}

// Store is a size-bounded, persistent LRU store of multi-slot entries.
//
// All methods are safe for concurrent use. A single mutex guards the index,
// LRU list, journal and counters; slot file I/O happens outside it.
type Store struct {
	cfg     Config
	dir     string
	logger  *slog.Logger
	metrics *metric.Registry
	xform   transform.Wrapper

	mu      sync.Mutex
	index   map[string]*entry
	lru     *lruList
	journal *journal.Writer
	size    int64
	maxSize int64
	nextSeq uint64
	closed  bool

	// broken is set when EvictAll could not clear the directory.
	broken error
}

// Open opens or creates the store in cfg.Dir and recovers its index from
// the journal.
func Open(cfg Config) (*Store, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("storage: dir is required")
	}
	if cfg.MaxSize <= 0 {
		return nil, fmt.Errorf("storage: max_size must be positive, got %d", cfg.MaxSize)
	}
	if cfg.AppVersion == 0 {
		cfg.AppVersion = DefaultAppVersion
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	cfg.Journal.ApplyDefaults()

	if err := os.MkdirAll(cfg.Dir, journal.DefaultDirPerm); err != nil {
		return nil, domain.ErrStorage.WithDetails("create dir").WithCause(err)
	}

	s := &Store{
		cfg:     cfg,
		dir:     cfg.Dir,
		logger:  cfg.Logger.With("component", "storage", "dir", cfg.Dir),
		metrics: cfg.Metrics,
		xform:   transform.Wrapper{Provider: cfg.Transform},
		index:   make(map[string]*entry),
		lru:     newLRUList(),
		maxSize: cfg.MaxSize,
	}

	if err := s.recover(); err != nil {
		return nil, err
	}
	return s, nil
}

// Destroy deletes a store directory and everything in it. It is the
// recovery path for a directory that fails to open with ErrCorruptStore.
func Destroy(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return domain.ErrStorage.WithDetails("destroy").WithCause(err)
	}
	return nil
}

func (s *Store) header() journal.Header {
	return journal.NewHeader(s.cfg.AppVersion, SlotCount)
}

func (s *Store) checkOpenLocked() error {
	if s.closed {
		return domain.ErrStoreClosed
	}
	if s.broken != nil {
		return s.broken
	}
	return nil
}

func (s *Store) appendLocked(rec journal.Record) error {
	if err := s.journal.Append(rec); err != nil {
		return domain.ErrStorage.WithDetails("journal append").WithCause(err)
	}
	return nil
}

func (s *Store) takeSeqLocked() uint64 {
	seq := s.nextSeq
	s.nextSeq++
	return seq
}

// Edit opens an exclusive editor for id. It fails with ErrBusy if another
// editor is open for the same identifier.
func (s *Store) Edit(id string) (*Editor, error) {
	return s.edit(id, nil)
}

// edit opens an editor. When commitSeq is non-nil the entry must still be
// at that committed generation.
func (s *Store) edit(id string, commitSeq *uint64) (*Editor, error) {
	if !keycodec.Valid(id) {
		return nil, domain.ErrInvalidIdentifier.WithDetails(id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpenLocked(); err != nil {
		return nil, err
	}

	e := s.index[id]
	if commitSeq != nil && (e == nil || !e.readable || e.commitSeq != *commitSeq) {
		return nil, domain.ErrStale
	}
	if e != nil && e.editor != nil {
		return nil, domain.ErrBusy
	}

	created := false
	if e == nil {
		e = &entry{id: id}
		created = true
	}

	seq := s.takeSeqLocked()
	if err := s.appendLocked(journal.NewCreateRecord(id, seq)); err != nil {
		return nil, err
	}

	if created {
		s.index[id] = e
	}
	e.seq = seq
	s.lru.touch(e)

	ed := newEditor(s, e)
	e.editor = ed

	s.logger.Debug("editor opened", "id", id, "editor", ed.ID(), "new", !e.readable)
	return ed, nil
}

// Get returns a snapshot of the committed entry. ok is false when the entry
// is absent.
func (s *Store) Get(id string) (snap *Snapshot, ok bool, err error) {
	if !keycodec.Valid(id) {
		return nil, false, domain.ErrInvalidIdentifier.WithDetails(id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpenLocked(); err != nil {
		return nil, false, err
	}

	e := s.index[id]
	if e == nil || !e.readable {
		s.metrics.RecordGet(false)
		return nil, false, nil
	}

	var files [SlotCount]*os.File
	closeAll := func() {
		for _, f := range files {
			if f != nil {
				f.Close()
			}
		}
	}
	for slot := 0; slot < SlotCount; slot++ {
		f, err := os.Open(cleanPath(s.dir, id, slot))
		if err != nil {
			closeAll()
			if errors.Is(err, fs.ErrNotExist) && e.editor == nil {
				// A slot file was deleted behind our back.
				s.logger.Warn("committed slot file missing, dropping entry", "id", id, "slot", slot)
				if rmErr := s.removeLocked(e); rmErr != nil {
					return nil, false, rmErr
				}
				s.metrics.RecordGet(false)
				return nil, false, nil
			}
			return nil, false, domain.ErrStorage.WithDetails("open slot").WithCause(err)
		}
		files[slot] = f
	}

	seq := s.takeSeqLocked()
	if err := s.appendLocked(journal.NewReadRecord(id, seq)); err != nil {
		closeAll()
		return nil, false, err
	}
	e.seq = seq
	s.lru.touch(e)
	s.maybeCompactLocked()

	s.metrics.RecordGet(true)
	return &Snapshot{
		store:     s,
		id:        id,
		seq:       seq,
		commitSeq: e.commitSeq,
		files:     files,
		lengths:   e.lengths,
	}, true, nil
}

// Contains reports whether id has a committed entry. Unlike Get it opens no
// files and does not change recency.
func (s *Store) Contains(id string) (bool, error) {
	if !keycodec.Valid(id) {
		return false, domain.ErrInvalidIdentifier.WithDetails(id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpenLocked(); err != nil {
		return false, err
	}
	e := s.index[id]
	return e != nil && e.readable, nil
}

// Remove deletes a committed entry. It reports false without error when the
// entry is absent, including a first write still in progress, and fails
// with ErrBusy while a committed entry is being edited.
func (s *Store) Remove(id string) (bool, error) {
	if !keycodec.Valid(id) {
		return false, domain.ErrInvalidIdentifier.WithDetails(id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpenLocked(); err != nil {
		return false, err
	}

	e := s.index[id]
	if e == nil || !e.readable {
		return false, nil
	}
	if e.editor != nil {
		return false, domain.ErrBusy
	}
	if err := s.removeLocked(e); err != nil {
		return false, err
	}
	s.maybeCompactLocked()
	return true, nil
}

func (s *Store) removeGeneration(id string, commitSeq uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpenLocked(); err != nil {
		return false, err
	}

	e := s.index[id]
	if e == nil || !e.readable {
		return false, nil
	}
	if e.commitSeq != commitSeq {
		return false, domain.ErrStale
	}
	if e.editor != nil {
		return false, domain.ErrBusy
	}
	if err := s.removeLocked(e); err != nil {
		return false, err
	}
	s.maybeCompactLocked()
	return true, nil
}

// removeLocked deletes the committed files of e, drops it from the index
// and journals REMOVE.
func (s *Store) removeLocked(e *entry) error {
	for slot := 0; slot < SlotCount; slot++ {
		if err := removeFile(cleanPath(s.dir, e.id, slot)); err != nil {
			return domain.ErrStorage.WithDetails("remove slot").WithCause(err)
		}
	}
	s.dropLocked(e)
	return s.appendLocked(journal.NewRemoveRecord(e.id, s.takeSeqLocked()))
}

func (s *Store) dropLocked(e *entry) {
	s.size -= e.size()
	e.lengths = [SlotCount]int64{}
	e.readable = false
	delete(s.index, e.id)
	s.lru.remove(e)
}

// EvictAll deletes every entry by clearing the directory and starting a new
// journal. Open editors are detached and their commits fail. If the
// directory cannot be cleared the store is left broken and every later
// call fails with ErrCorruptStore.
func (s *Store) EvictAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return domain.ErrStoreClosed
	}

	count := 0
	for _, e := range s.index {
		if e.editor != nil {
			e.editor.detach()
			e.editor = nil
		}
		if e.readable {
			count++
		}
	}
	if s.journal != nil {
		if err := s.journal.Close(); err != nil {
			s.logger.Warn("close journal before evict-all failed", "error", err)
		}
		s.journal = nil
	}

	s.index = make(map[string]*entry)
	s.lru = newLRUList()
	s.size = 0

	if err := os.RemoveAll(s.dir); err != nil {
		s.broken = domain.ErrCorruptStore.WithDetails("evict-all left directory partially deleted").WithCause(err)
		s.logger.Error("evict-all failed, store is unusable until reopened", "error", err)
		return s.broken
	}
	if err := os.MkdirAll(s.dir, journal.DefaultDirPerm); err != nil {
		s.broken = domain.ErrCorruptStore.WithDetails("recreate dir").WithCause(err)
		return s.broken
	}
	w, err := journal.Create(filepath.Join(s.dir, journal.FileName), s.header(), s.cfg.Journal)
	if err != nil {
		s.broken = domain.ErrCorruptStore.WithDetails("create journal").WithCause(err)
		return s.broken
	}
	s.journal = w
	s.broken = nil

	s.logger.Info("all entries evicted", "count", count)
	return nil
}

// Size returns the committed bytes on disk.
func (s *Store) Size() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// MaxSize returns the size ceiling.
func (s *Store) MaxSize() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxSize
}

// SetMaxSize changes the size ceiling and evicts down to it.
func (s *Store) SetMaxSize(n int64) error {
	if n <= 0 {
		return fmt.Errorf("storage: max_size must be positive, got %d", n)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpenLocked(); err != nil {
		return err
	}
	if n == s.maxSize {
		return nil
	}
	s.logger.Info("max size changed", "old", s.maxSize, "new", n)
	s.maxSize = n
	s.evictLocked()
	s.maybeCompactLocked()
	return nil
}

// Len returns the number of committed entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lenLocked()
}

func (s *Store) lenLocked() int {
	n := 0
	for _, e := range s.index {
		if e.readable {
			n++
		}
	}
	return n
}

// Identifiers returns committed identifiers, least recently used first.
func (s *Store) Identifiers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.index))
	s.lru.each(func(e *entry) bool {
		if e.readable {
			ids = append(ids, e.id)
		}
		return true
	})
	return ids
}

// Stats returns a snapshot of store counters.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		Dir:      s.dir,
		Size:     s.size,
		MaxSize:  s.maxSize,
		Entries:  s.lenLocked(),
		Sequence: s.nextSeq,
	}
	for _, e := range s.index {
		if e.editor != nil {
			st.Editing++
		}
	}
	if s.journal != nil {
		st.JournalRecords = s.journal.Records()
	}
	return st
}

// Healthy returns nil while the store accepts operations, otherwise the
// error operations would fail with.
func (s *Store) Healthy() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkOpenLocked()
}

// Flush forces journal records to stable storage.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkOpenLocked(); err != nil {
		return err
	}
	if err := s.journal.Flush(); err != nil {
		return domain.ErrStorage.WithDetails("flush").WithCause(err)
	}
	return nil
}

// Close aborts open editors, trims the store to its ceiling and closes the
// journal. It is safe to call more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	if s.broken == nil {
		for _, e := range s.index {
			if e.editor == nil {
				continue
			}
			ed := e.editor
			ed.detach()
			ed.removeTempFiles()
			if err := s.revertLocked(e, ed); err != nil {
				s.logger.Warn("abort editor on close failed", "id", e.id, "error", err)
			}
		}
		s.evictLocked()
	}

	s.closed = true
	if s.journal == nil {
		return nil
	}
	err := s.journal.Close()
	s.journal = nil
	if err != nil {
		return domain.ErrStorage.WithDetails("close journal").WithCause(err)
	}
	s.logger.Debug("store closed", "size", s.size, "entries", s.lenLocked())
	return nil
}

// revertLocked ends an edit without committing. A previously committed
// entry returns to CLEAN; a never-committed one is removed.
func (s *Store) revertLocked(e *entry, ed *Editor) error {
	if e.editor != ed {
		return nil
	}
	e.editor = nil
	seq := s.takeSeqLocked()
	if e.readable {
		// Replay treats the COMMIT as a touch, so recency must match it.
		e.seq = seq
		s.lru.touch(e)
		return s.appendLocked(journal.NewCommitRecord(e.id, seq, e.lengths[:]))
	}
	s.dropLocked(e)
	return s.appendLocked(journal.NewRemoveRecord(e.id, seq))
}

func removeFile(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
