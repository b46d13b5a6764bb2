package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/yndnr/diskcache-go/internal/storage"
	"github.com/yndnr/diskcache-go/internal/storage/journal"
)

// Default configuration values.
const (
	DefaultMaxSize       = "256MiB"
	DefaultSyncMode      = string(journal.SyncModeSync)
	DefaultSyncInterval  = journal.DefaultSyncInterval
	DefaultPurgeInterval = time.Minute
	DefaultMetricsAddr   = "127.0.0.1:9464"
	DefaultAlgorithm     = "aes-gcm"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// DefaultDir returns the per-user cache directory, falling back to the
// system temp directory.
func DefaultDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "diskcache")
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Cache: CacheSection{
			Dir:                 DefaultDir(),
			MaxSize:             DefaultMaxSize,
			AppVersion:          storage.DefaultAppVersion,
			SyncMode:            DefaultSyncMode,
			SyncInterval:        DefaultSyncInterval,
			CompactMinRedundant: journal.DefaultCompactMinRedundant,
			PurgeInterval:       DefaultPurgeInterval,
		},
		Encryption: EncryptionSection{
			Algorithm: DefaultAlgorithm,
		},
		Metrics: MetricsSection{
			Addr: DefaultMetricsAddr,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
