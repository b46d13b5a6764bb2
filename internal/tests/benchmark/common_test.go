package benchmark

import (
	"crypto/rand"
	"fmt"
	"log/slog"
	"testing"

	"github.com/yndnr/diskcache-go/internal/core/service"
	"github.com/yndnr/diskcache-go/internal/storage"
	"github.com/yndnr/diskcache-go/internal/storage/journal"
	"github.com/yndnr/diskcache-go/internal/storage/transform"
	"github.com/yndnr/diskcache-go/internal/telemetry/logger"
)

// EntryCounts defines the store populations used by recovery benchmarks.
var EntryCounts = []int{1000, 5000, 20000}

// ValueSizes defines the value sizes used by write and read benchmarks.
var ValueSizes = []int{128, 4 << 10, 64 << 10}

// unbounded is a size ceiling no benchmark reaches.
const unbounded = 1 << 40

func quietLogger() *slog.Logger {
	return logger.Discard().Slog()
}

// storeConfig returns a store configuration in dir.
func storeConfig(dir string, maxSize int64, mode journal.SyncMode) storage.Config {
	cfg := storage.DefaultConfig(dir, maxSize)
	cfg.Journal.SyncMode = mode
	cfg.Logger = quietLogger()
	return cfg
}

// openStore opens a store in a fresh temp dir.
func openStore(b *testing.B, maxSize int64, mode journal.SyncMode) *storage.Store {
	b.Helper()
	st, err := storage.Open(storeConfig(b.TempDir(), maxSize, mode))
	if err != nil {
		b.Fatalf("Open failed: %v", err)
	}
	b.Cleanup(func() { st.Close() })
	return st
}

// openService opens a cache service in a fresh temp dir, encrypted when
// provider is non-nil.
func openService(b *testing.B, provider transform.Provider) *service.CacheService {
	b.Helper()
	cfg := storeConfig(b.TempDir(), unbounded, journal.SyncModeBatch)
	cfg.Transform = provider
	svc, err := service.OpenCache(cfg, service.WithLogger(quietLogger()))
	if err != nil {
		b.Fatalf("OpenCache failed: %v", err)
	}
	b.Cleanup(func() { svc.Close() })
	return svc
}

// newKeyProvider returns a provider over a random key.
func newKeyProvider(b *testing.B, algorithm string) *transform.KeyProvider {
	b.Helper()
	key, err := transform.GenerateKey(32)
	if err != nil {
		b.Fatalf("GenerateKey failed: %v", err)
	}
	p, err := transform.NewKeyProvider(transform.EncryptionConfig{Key: key, Algorithm: algorithm})
	if err != nil {
		b.Fatalf("NewKeyProvider failed: %v", err)
	}
	b.Cleanup(p.Close)
	return p
}

// randomValue returns n random bytes.
func randomValue(n int) []byte {
	v := make([]byte, n)
	_, _ = rand.Read(v)
	return v
}

// put commits value into both slots of id.
func put(b *testing.B, st *storage.Store, id string, value []byte) {
	b.Helper()
	ed, err := st.Edit(id)
	if err != nil {
		b.Fatalf("Edit failed: %v", err)
	}
	if err := ed.Set(storage.SlotValue, value); err != nil {
		b.Fatalf("Set failed: %v", err)
	}
	if err := ed.Set(storage.SlotMeta, service.EncodeExpiry(service.NeverExpires)); err != nil {
		b.Fatalf("Set failed: %v", err)
	}
	if err := ed.Commit(); err != nil {
		b.Fatalf("Commit failed: %v", err)
	}
}

func sizeName(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%dMiB", n>>20)
	case n >= 1<<10:
		return fmt.Sprintf("%dKiB", n>>10)
	default:
		return fmt.Sprintf("%dB", n)
	}
}
