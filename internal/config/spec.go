package config

import "time"

// Config is the root configuration for the diskcache command.
type Config struct {
	Cache      CacheSection      `koanf:"cache" json:"cache" yaml:"cache"`
	Encryption EncryptionSection `koanf:"encryption" json:"encryption" yaml:"encryption"`
	Metrics    MetricsSection    `koanf:"metrics" json:"metrics" yaml:"metrics"`
	Log        LogSection        `koanf:"log" json:"log" yaml:"log"`
}

// CacheSection configures the store.
type CacheSection struct {
	Dir string `koanf:"dir" json:"dir" yaml:"dir"`

	// MaxSize accepts a byte count or a size with a unit, such as "512MiB".
	MaxSize string `koanf:"max_size" json:"max_size" yaml:"max_size"`

	// AppVersion invalidates the directory when changed.
	AppVersion int `koanf:"app_version" json:"app_version" yaml:"app_version"`

	// SyncMode is "sync" (fsync every journal record) or "batch".
	SyncMode string `koanf:"sync_mode" json:"sync_mode" yaml:"sync_mode"`

	// SyncInterval is the flush period in batch mode.
	SyncInterval time.Duration `koanf:"sync_interval" json:"sync_interval" yaml:"sync_interval"`

	// CompactMinRedundant is the number of redundant journal records that
	// must accumulate before the journal is rewritten.
	CompactMinRedundant int `koanf:"compact_min_redundant" json:"compact_min_redundant" yaml:"compact_min_redundant"`

	// PurgeInterval is how often serve sweeps expired entries. Zero disables
	// the sweep.
	PurgeInterval time.Duration `koanf:"purge_interval" json:"purge_interval" yaml:"purge_interval"`
}

// EncryptionSection configures encryption at rest. Leaving both key and
// passphrase empty disables encryption.
type EncryptionSection struct {
	// Key is the hex-encoded master key.
	Key string `koanf:"key" json:"key" yaml:"key"`

	// Passphrase derives the master key with Argon2id.
	Passphrase string `koanf:"passphrase" json:"passphrase" yaml:"passphrase"`

	// Salt is the hex-encoded Argon2id salt, required with Passphrase.
	Salt string `koanf:"salt" json:"salt" yaml:"salt"`

	// Algorithm is "aes-gcm", "chacha20-poly1305" or "auto".
	Algorithm string `koanf:"algorithm" json:"algorithm" yaml:"algorithm"`
}

// MetricsSection configures the serve command's HTTP listener.
type MetricsSection struct {
	Addr string `koanf:"addr" json:"addr" yaml:"addr"`

	// TLSCertFile and TLSKeyFile enable HTTPS. Both files are reloaded when
	// they change.
	TLSCertFile string `koanf:"tls_cert_file" json:"tls_cert_file,omitempty" yaml:"tls_cert_file,omitempty"`
	TLSKeyFile  string `koanf:"tls_key_file" json:"tls_key_file,omitempty" yaml:"tls_key_file,omitempty"`

	// TLSClientCA is a PEM file or directory of client CAs. Setting it
	// requires clients to present a certificate.
	TLSClientCA string `koanf:"tls_client_ca" json:"tls_client_ca,omitempty" yaml:"tls_client_ca,omitempty"`
}

// TLSEnabled reports whether the listener serves HTTPS.
func (m MetricsSection) TLSEnabled() bool {
	return m.TLSCertFile != ""
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level" json:"level" yaml:"level"`
	Format string `koanf:"format" json:"format" yaml:"format"`
}
