package transform

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"sync"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"

	"github.com/yndnr/diskcache-go/pkg/crypto/adaptive"
)

// Key configuration errors.
var (
	ErrKeyTooShort       = errors.New("transform: encryption key too short (minimum 16 bytes)")
	ErrPassphraseTooWeak = errors.New("transform: passphrase too weak (minimum 8 characters)")
	ErrSaltRequired      = errors.New("transform: passphrase requires a salt")
	ErrNoKeyMaterial     = errors.New("transform: neither key nor passphrase configured")
)

const (
	// MinKeyLength is the minimum raw key length.
	MinKeyLength = 16

	// MinPassphraseLength is the minimum passphrase length.
	MinPassphraseLength = 8

	// SaltLength is the salt length produced by GenerateSalt.
	SaltLength = 16

	// Argon2id parameters for passphrase derivation.
	argon2Time    = 3
	argon2Memory  = 64 * 1024
	argon2Threads = 4
	argon2KeyLen  = 32

	subkeyLen  = 32
	subkeyInfo = "diskcache/slot/"
)

// EncryptionConfig configures a KeyProvider.
type EncryptionConfig struct {
	// Key is the raw master key. Either Key or Passphrase must be provided.
	Key []byte

	// Passphrase derives the master key. If provided, Key is ignored.
	Passphrase []byte

	// Salt is required with Passphrase so the same key is derived on every open.
	Salt []byte

	// Algorithm is "aes-gcm" (default), "chacha20-poly1305" or "auto".
	Algorithm string
}

// Enabled reports whether the config asks for encryption at all.
func (c EncryptionConfig) Enabled() bool {
	return len(c.Key) > 0 || len(c.Passphrase) > 0
}

// ValidateConfig validates the encryption configuration.
func ValidateConfig(cfg EncryptionConfig) error {
	switch cfg.Algorithm {
	case "", "auto", string(adaptive.CipherAESGCM), string(adaptive.CipherChaCha20):
	default:
		return fmt.Errorf("transform: unsupported algorithm: %s", cfg.Algorithm)
	}

	if len(cfg.Passphrase) > 0 {
		if len(cfg.Passphrase) < MinPassphraseLength {
			return ErrPassphraseTooWeak
		}
		if len(cfg.Salt) == 0 {
			return ErrSaltRequired
		}
		return nil
	}
	if len(cfg.Key) == 0 {
		return ErrNoKeyMaterial
	}
	if len(cfg.Key) < MinKeyLength {
		return ErrKeyTooShort
	}
	return nil
}

// KeyProvider derives per-scope ciphers from one master key.
type KeyProvider struct {
	master    []byte
	algorithm string

	mu      sync.Mutex
	subkeys map[string][]byte
}

// NewKeyProvider builds a provider from cfg. Passphrase derivation runs once,
// here, so per-stream cipher construction stays cheap.
func NewKeyProvider(cfg EncryptionConfig) (*KeyProvider, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	var master []byte
	if len(cfg.Passphrase) > 0 {
		master = DeriveKeyFromPassphrase(cfg.Passphrase, cfg.Salt)
	} else {
		master = append([]byte(nil), cfg.Key...)
	}

	p := &KeyProvider{
		master:    master,
		algorithm: cfg.Algorithm,
		subkeys:   make(map[string][]byte),
	}

	// Fail at construction rather than on the first write.
	if _, err := p.Cipher(Encrypt, "init"); err != nil {
		return nil, err
	}
	return p, nil
}

// Cipher implements Provider. Both directions of a scope share a subkey.
func (p *KeyProvider) Cipher(_ Direction, scope string) (adaptive.Cipher, error) {
	key, err := p.subkey(scope)
	if err != nil {
		return nil, err
	}

	switch p.algorithm {
	case "", string(adaptive.CipherAESGCM):
		return adaptive.NewAESGCM(key)
	case string(adaptive.CipherChaCha20):
		return adaptive.NewChaCha20(key)
	case "auto":
		return adaptive.New(key)
	default:
		return nil, fmt.Errorf("transform: unsupported algorithm: %s", p.algorithm)
	}
}

func (p *KeyProvider) subkey(scope string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if k, ok := p.subkeys[scope]; ok {
		return k, nil
	}
	k, err := DeriveSubkey(p.master, subkeyInfo+scope, subkeyLen)
	if err != nil {
		return nil, err
	}
	p.subkeys[scope] = k
	return k, nil
}

// Close wipes key material held by the provider.
func (p *KeyProvider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	ZeroKey(p.master)
	for scope, k := range p.subkeys {
		ZeroKey(k)
		delete(p.subkeys, scope)
	}
}

// DeriveKeyFromPassphrase derives a 32-byte key from a passphrase using Argon2id.
func DeriveKeyFromPassphrase(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)
}

// DeriveSubkey derives a subkey from a master key using HKDF-SHA256.
func DeriveSubkey(masterKey []byte, info string, length int) ([]byte, error) {
	if len(masterKey) < MinKeyLength {
		return nil, ErrKeyTooShort
	}

	reader := hkdf.New(sha256.New, masterKey, nil, []byte(info))
	key := make([]byte, length)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("transform: derive subkey: %w", err)
	}
	return key, nil
}

// GenerateKey generates a random key of the specified length.
func GenerateKey(length int) ([]byte, error) {
	if length < MinKeyLength {
		return nil, ErrKeyTooShort
	}
	return randomBytes(length)
}

// GenerateSalt generates a random salt for passphrase derivation.
func GenerateSalt() ([]byte, error) {
	return randomBytes(SaltLength)
}

func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("transform: read random: %w", err)
	}
	return b, nil
}

// ZeroKey zeros a key in memory.
func ZeroKey(key []byte) {
	for i := range key {
		key[i] = 0
	}
}
