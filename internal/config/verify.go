package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net"

	"github.com/yndnr/diskcache-go/internal/storage/journal"
	"github.com/yndnr/diskcache-go/internal/storage/transform"
	"github.com/yndnr/diskcache-go/internal/telemetry/logger"
)

// Verify validates the configuration.
func Verify(cfg *Config) error {
	if err := verifyCache(&cfg.Cache); err != nil {
		return err
	}
	if err := verifyEncryption(&cfg.Encryption); err != nil {
		return err
	}
	if err := verifyMetrics(&cfg.Metrics); err != nil {
		return err
	}
	return verifyLog(&cfg.Log)
}

func verifyCache(cfg *CacheSection) error {
	if cfg.Dir == "" {
		return errors.New("cache.dir is required")
	}

	n, err := ParseSize(cfg.MaxSize)
	if err != nil {
		return fmt.Errorf("cache.max_size: %w", err)
	}
	if n <= 0 {
		return errors.New("cache.max_size must be positive")
	}

	if cfg.AppVersion <= 0 {
		return errors.New("cache.app_version must be positive")
	}

	switch journal.SyncMode(cfg.SyncMode) {
	case journal.SyncModeSync:
	case journal.SyncModeBatch:
		if cfg.SyncInterval <= 0 {
			return errors.New("cache.sync_interval must be positive in batch mode")
		}
	default:
		return fmt.Errorf("cache.sync_mode must be %q or %q, got %q",
			journal.SyncModeSync, journal.SyncModeBatch, cfg.SyncMode)
	}

	if cfg.CompactMinRedundant < 0 {
		return errors.New("cache.compact_min_redundant must not be negative")
	}
	if cfg.PurgeInterval < 0 {
		return errors.New("cache.purge_interval must not be negative")
	}
	return nil
}

func verifyEncryption(cfg *EncryptionSection) error {
	if cfg.Key == "" && cfg.Passphrase == "" {
		return nil
	}
	if cfg.Key != "" && cfg.Passphrase != "" {
		return errors.New("encryption.key and encryption.passphrase are mutually exclusive")
	}
	enc, err := cfg.transformConfig()
	if err != nil {
		return err
	}
	return transform.ValidateConfig(enc)
}

func verifyMetrics(cfg *MetricsSection) error {
	if cfg.Addr != "" {
		if _, _, err := net.SplitHostPort(cfg.Addr); err != nil {
			return fmt.Errorf("metrics.addr: %w", err)
		}
	}
	if (cfg.TLSCertFile == "") != (cfg.TLSKeyFile == "") {
		return errors.New("metrics.tls_cert_file and metrics.tls_key_file must be set together")
	}
	if cfg.TLSClientCA != "" && cfg.TLSCertFile == "" {
		return errors.New("metrics.tls_client_ca requires metrics.tls_cert_file")
	}
	return nil
}

func verifyLog(cfg *LogSection) error {
	if cfg.Level != "" && !logger.ValidLevel(cfg.Level) {
		return fmt.Errorf("log.level: unknown level %q", cfg.Level)
	}
	if _, err := logger.ParseFormat(cfg.Format); err != nil {
		return fmt.Errorf("log.format: %w", err)
	}
	return nil
}

// transformConfig decodes the hex fields into a transform config.
func (e *EncryptionSection) transformConfig() (transform.EncryptionConfig, error) {
	out := transform.EncryptionConfig{Algorithm: e.Algorithm}

	if e.Key != "" {
		key, err := hex.DecodeString(e.Key)
		if err != nil {
			return out, fmt.Errorf("encryption.key: not valid hex: %w", err)
		}
		out.Key = key
	}
	if e.Passphrase != "" {
		out.Passphrase = []byte(e.Passphrase)
	}
	if e.Salt != "" {
		salt, err := hex.DecodeString(e.Salt)
		if err != nil {
			return out, fmt.Errorf("encryption.salt: not valid hex: %w", err)
		}
		out.Salt = salt
	}
	return out, nil
}
