package config

import (
	"log/slog"

	"github.com/yndnr/diskcache-go/internal/storage"
	"github.com/yndnr/diskcache-go/internal/storage/journal"
	"github.com/yndnr/diskcache-go/internal/storage/transform"
	"github.com/yndnr/diskcache-go/internal/telemetry/logger"
	"github.com/yndnr/diskcache-go/internal/telemetry/metric"
)

// MaxSizeBytes returns cache.max_size in bytes.
func (c *Config) MaxSizeBytes() (int64, error) {
	return ParseSize(c.Cache.MaxSize)
}

// LoggerConfig returns the logger settings of c.
func (c *Config) LoggerConfig() logger.Config {
	lc := logger.DefaultConfig()
	if c.Log.Level != "" {
		lc.Level = c.Log.Level
	}
	if c.Log.Format != "" {
		lc.Format = c.Log.Format
	}
	return lc
}

// EncryptionEnabled reports whether key material is configured.
func (c *Config) EncryptionEnabled() bool {
	return c.Encryption.Key != "" || c.Encryption.Passphrase != ""
}

// KeyProvider builds the encryption provider, or returns nil when
// encryption is disabled. The caller closes it after the store.
func (c *Config) KeyProvider() (*transform.KeyProvider, error) {
	if !c.EncryptionEnabled() {
		return nil, nil
	}
	enc, err := c.Encryption.transformConfig()
	if err != nil {
		return nil, err
	}
	p, err := transform.NewKeyProvider(enc)
	transform.ZeroKey(enc.Key)
	transform.ZeroKey(enc.Passphrase)
	return p, err
}

// StoreConfig builds the storage configuration. provider may be nil.
func (c *Config) StoreConfig(provider *transform.KeyProvider, log *slog.Logger, metrics *metric.Registry) (storage.Config, error) {
	maxSize, err := c.MaxSizeBytes()
	if err != nil {
		return storage.Config{}, err
	}

	sc := storage.DefaultConfig(c.Cache.Dir, maxSize)
	sc.AppVersion = c.Cache.AppVersion
	sc.Journal = journal.Config{
		SyncMode:            journal.SyncMode(c.Cache.SyncMode),
		SyncInterval:        c.Cache.SyncInterval,
		CompactMinRedundant: c.Cache.CompactMinRedundant,
	}
	sc.Journal.ApplyDefaults()
	if provider != nil {
		sc.Transform = provider
	}
	if log != nil {
		sc.Logger = log
	}
	sc.Metrics = metrics
	return sc, nil
}
