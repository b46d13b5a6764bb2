package tlsroots

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrNoCertsFound is returned when no certificates are found in PEM data.
	ErrNoCertsFound = errors.New("tlsroots: no certificates found in PEM data")
)

// Pool manages a pool of trusted certificates.
type Pool struct {
	certPool *x509.CertPool
	count    int
}

// NewEmptyPool creates a new empty certificate pool.
func NewEmptyPool() *Pool {
	return &Pool{certPool: x509.NewCertPool()}
}

// LoadPool builds a pool from path, which is a PEM file or a directory of
// .pem, .crt and .cer files.
func LoadPool(path string) (*Pool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("tlsroots: %w", err)
	}

	p := NewEmptyPool()
	if info.IsDir() {
		err = p.AddCertDir(path)
	} else {
		err = p.AddCertFile(path)
	}
	if err != nil {
		return nil, err
	}
	if p.count == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoCertsFound, path)
	}
	return p, nil
}

// AddCertFile adds certificates from a PEM file.
func (p *Pool) AddCertFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("tlsroots: read cert file %s: %w", path, err)
	}
	return p.AddCertPEM(data)
}

// AddCertPEM adds every CERTIFICATE block of pemData. Other block types are
// skipped.
func (p *Pool) AddCertPEM(pemData []byte) error {
	added := 0
	for len(pemData) > 0 {
		var block *pem.Block
		block, pemData = pem.Decode(pemData)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}

		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return fmt.Errorf("tlsroots: parse certificate: %w", err)
		}
		p.certPool.AddCert(cert)
		added++
	}

	if added == 0 {
		return ErrNoCertsFound
	}
	p.count += added
	return nil
}

// AddCertDir adds all certificate files of dir. Files that hold no
// certificate are skipped; unreadable or malformed ones are errors.
func (p *Pool) AddCertDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("tlsroots: read dir %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".pem", ".crt", ".cer":
		default:
			continue
		}
		if err := p.AddCertFile(filepath.Join(dir, entry.Name())); err != nil && !errors.Is(err, ErrNoCertsFound) {
			return err
		}
	}
	return nil
}

// Len returns the number of certificates added.
func (p *Pool) Len() int {
	return p.count
}

// Pool returns the underlying x509.CertPool.
func (p *Pool) Pool() *x509.CertPool {
	return p.certPool
}

// ServerConfig returns a TLS server config serving the watcher's current
// certificate. With a non-nil clientCAs, clients must present a certificate
// signed by one of them.
func ServerConfig(w *Watcher, clientCAs *Pool) *tls.Config {
	cfg := &tls.Config{
		GetCertificate: w.GetCertificate,
		MinVersion:     tls.VersionTLS12,
	}
	if clientCAs != nil {
		cfg.ClientCAs = clientCAs.Pool()
		cfg.ClientAuth = tls.RequireAndVerifyClientCert
	}
	return cfg
}
