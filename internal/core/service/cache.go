package service

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/yndnr/diskcache-go/internal/core/domain"
	"github.com/yndnr/diskcache-go/internal/storage"
	"github.com/yndnr/diskcache-go/internal/telemetry/metric"
	"github.com/yndnr/diskcache-go/pkg/cmap"
	"github.com/yndnr/diskcache-go/pkg/keycodec"
)

// Operation names used for metrics and logs.
const (
	OpPut      = "put"
	OpGet      = "get"
	OpContains = "contains"
	OpRemove   = "remove"
	OpTTL      = "ttl"
	OpEvictAll = "evict_all"
)

// CacheService is a key/value cache with per-entry expiry.
type CacheService struct {
	store   *storage.Store
	metrics *metric.Registry
	logger  *slog.Logger
	now     func() time.Time

	// hints caches decoded expiries by identifier. A hint may outlive its
	// entry (eviction happens inside the store), so it is only trusted
	// together with Store.Contains.
	hints *cmap.Map[string, int64]
}

// Option configures a CacheService.
type Option func(*CacheService)

// WithMetrics records operation metrics to r.
func WithMetrics(r *metric.Registry) Option {
	return func(s *CacheService) { s.metrics = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *CacheService) { s.logger = l }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *CacheService) { s.now = now }
}

// NewCacheService creates a CacheService over an open store.
func NewCacheService(store *storage.Store, opts ...Option) *CacheService {
	s := &CacheService{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
		hints:  cmap.New[string, int64](),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OpenCache opens the store described by cfg. A directory that fails to
// open with ErrCorruptStore is destroyed and recreated empty.
func OpenCache(cfg storage.Config, opts ...Option) (*CacheService, error) {
	st, err := storage.Open(cfg)
	if errors.Is(err, domain.ErrCorruptStore) {
		logger := cfg.Logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("cache directory is corrupt, recreating", "dir", cfg.Dir, "error", err)
		if err := storage.Destroy(cfg.Dir); err != nil {
			return nil, err
		}
		st, err = storage.Open(cfg)
	}
	if err != nil {
		return nil, err
	}
	return NewCacheService(st, opts...), nil
}

// Store returns the underlying store.
func (s *CacheService) Store() *storage.Store {
	return s.store
}

// Close closes the underlying store.
func (s *CacheService) Close() error {
	return s.store.Close()
}

// Put stores value under key. A non-positive ttl never expires.
// It fails with ErrBusy if the key is being written concurrently.
func (s *CacheService) Put(key string, value []byte, ttl time.Duration) error {
	return s.PutReader(key, bytes.NewReader(value), ttl)
}

// PutString stores a string value.
func (s *CacheService) PutString(key, value string, ttl time.Duration) error {
	return s.PutReader(key, bytes.NewReader([]byte(value)), ttl)
}

// PutReader stores the content of r under key.
func (s *CacheService) PutReader(key string, r io.Reader, ttl time.Duration) (err error) {
	defer func() { s.metrics.RecordOperation(OpPut, err) }()

	id := keycodec.Normalize(key)
	expiry := expiryFor(s.now(), ttl)

	ed, err := s.store.Edit(id)
	if err != nil {
		return err
	}
	defer ed.AbortUnlessCommitted()

	w, err := ed.NewWriter(storage.SlotValue)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		if errors.Is(err, domain.ErrStorage) {
			return err
		}
		return domain.ErrStorage.WithDetails("copy value").WithCause(err)
	}
	if err := w.Close(); err != nil {
		return err
	}
	if err := ed.Set(storage.SlotMeta, EncodeExpiry(expiry)); err != nil {
		return err
	}
	if err := ed.Commit(); err != nil {
		return err
	}

	s.hints.Set(id, expiry)
	return nil
}

// Get returns the value stored under key. ok is false when the key is
// absent or expired; expired entries are removed. A slot that cannot be
// read or decrypted is reported as an error and the entry is kept.
func (s *CacheService) Get(key string) (value []byte, ok bool, err error) {
	defer func() { s.metrics.RecordOperation(OpGet, err) }()

	id := keycodec.Normalize(key)

	snap, ok, err := s.store.Get(id)
	if err != nil || !ok {
		if err == nil {
			s.hints.Delete(id)
		}
		return nil, false, err
	}
	defer snap.Close()

	if _, live, err := s.checkExpiry(id, snap, s.now()); err != nil || !live {
		return nil, false, err
	}

	value, err = snap.Bytes(storage.SlotValue)
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// GetString returns the value stored under key as a string.
func (s *CacheService) GetString(key string) (string, bool, error) {
	v, ok, err := s.Get(key)
	return string(v), ok, err
}

// Contains reports whether key holds an unexpired value.
func (s *CacheService) Contains(key string) (ok bool, err error) {
	defer func() { s.metrics.RecordOperation(OpContains, err) }()
	_, ok, err = s.lookup(keycodec.Normalize(key))
	return ok, err
}

// TTL returns the remaining lifetime of key. ok is false when the key is
// absent or expired. A zero ttl with ok true means the value never expires.
func (s *CacheService) TTL(key string) (ttl time.Duration, ok bool, err error) {
	defer func() { s.metrics.RecordOperation(OpTTL, err) }()

	expiry, ok, err := s.lookup(keycodec.Normalize(key))
	if err != nil || !ok {
		return 0, false, err
	}
	if expiry == NeverExpires {
		return 0, true, nil
	}
	return time.UnixMilli(expiry).Sub(s.now()), true, nil
}

// lookup resolves the expiry of id. An unexpired hint is answered without
// touching slot 1; anything else is confirmed from the committed entry.
func (s *CacheService) lookup(id string) (int64, bool, error) {
	present, err := s.store.Contains(id)
	if err != nil {
		return 0, false, err
	}
	if !present {
		s.hints.Delete(id)
		return 0, false, nil
	}

	now := s.now()
	if expiry, known := s.hints.Get(id); known && !expired(expiry, now) {
		return expiry, true, nil
	}

	snap, ok, err := s.store.Get(id)
	if err != nil || !ok {
		return 0, false, err
	}
	defer snap.Close()
	return s.checkExpiry(id, snap, now)
}

// checkExpiry reads the expiry of the generation held by snap. An expired
// or malformed expiry removes that generation; a read failure is returned
// without removing anything.
func (s *CacheService) checkExpiry(id string, snap *storage.Snapshot, now time.Time) (int64, bool, error) {
	b, err := snap.Bytes(storage.SlotMeta)
	if err != nil {
		return 0, false, err
	}
	expiry, err := DecodeExpiry(b)
	if err != nil {
		s.logger.Warn("malformed expiry, removing entry", "id", id, "error", err)
		s.removeGeneration(id, snap)
		return 0, false, nil
	}
	if expired(expiry, now) {
		s.removeGeneration(id, snap)
		return expiry, false, nil
	}
	s.hints.Set(id, expiry)
	return expiry, true, nil
}

// removeGeneration removes the entry if it is still the generation held by
// snap. A newer commit or an open editor leaves it alone.
func (s *CacheService) removeGeneration(id string, snap *storage.Snapshot) bool {
	s.hints.Delete(id)
	removed, err := snap.Remove()
	if err != nil {
		if !errors.Is(err, domain.ErrStale) && !errors.Is(err, domain.ErrBusy) {
			s.logger.Warn("remove expired entry failed", "id", id, "error", err)
		}
		return false
	}
	if removed {
		s.logger.Debug("expired entry removed", "id", id)
	}
	return removed
}

// Remove deletes key. It reports whether a value was removed.
func (s *CacheService) Remove(key string) (removed bool, err error) {
	defer func() { s.metrics.RecordOperation(OpRemove, err) }()

	id := keycodec.Normalize(key)
	s.hints.Delete(id)
	return s.store.Remove(id)
}

// PurgeExpired removes entries whose cached expiry has passed and returns
// how many were removed. Each candidate is confirmed from its committed
// slot 1 first. Entries never read or written through this service have no
// hint and are checked lazily on access instead.
func (s *CacheService) PurgeExpired() int {
	now := s.now()
	var ids []string
	s.hints.Range(func(id string, expiry int64) bool {
		if expired(expiry, now) {
			ids = append(ids, id)
		}
		return true
	})

	purged := 0
	for _, id := range ids {
		if s.purgeOne(id, now) {
			purged++
		}
	}
	if purged > 0 {
		s.logger.Debug("expired entries purged", "count", purged)
	}
	return purged
}

func (s *CacheService) purgeOne(id string, now time.Time) bool {
	snap, ok, err := s.store.Get(id)
	if err != nil || !ok {
		if err != nil {
			s.logger.Warn("purge expired entry failed", "id", id, "error", err)
		} else {
			s.hints.Delete(id)
		}
		return false
	}
	defer snap.Close()

	b, err := snap.Bytes(storage.SlotMeta)
	if err != nil {
		s.logger.Warn("purge expired entry failed", "id", id, "error", err)
		return false
	}
	expiry, err := DecodeExpiry(b)
	if err == nil && !expired(expiry, now) {
		s.hints.Set(id, expiry)
		return false
	}
	return s.removeGeneration(id, snap)
}

// EvictAll removes every entry.
func (s *CacheService) EvictAll() (err error) {
	defer func() { s.metrics.RecordOperation(OpEvictAll, err) }()

	s.hints.Clear()
	return s.store.EvictAll()
}

// Size returns the bytes used on disk.
func (s *CacheService) Size() int64 {
	return s.store.Size()
}

// MaxSize returns the size ceiling.
func (s *CacheService) MaxSize() int64 {
	return s.store.MaxSize()
}
