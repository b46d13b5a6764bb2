package transform

import (
	"fmt"
	"io"

	"github.com/yndnr/diskcache-go/internal/core/domain"
	"github.com/yndnr/diskcache-go/pkg/crypto/adaptive"
)

// Direction selects which half of a transform a stream needs.
type Direction uint8

const (
	Encrypt Direction = iota + 1
	Decrypt
)

func (d Direction) String() string {
	switch d {
	case Encrypt:
		return "encrypt"
	case Decrypt:
		return "decrypt"
	default:
		return fmt.Sprintf("direction(%d)", d)
	}
}

// Provider produces a ready-to-use cipher for one stream.
//
// Scope distinguishes streams that must not share keys (for example the
// value and metadata slots of an entry). Implementations must be safe for
// concurrent use.
type Provider interface {
	Cipher(dir Direction, scope string) (adaptive.Cipher, error)
}

// Wrapper wraps raw slot streams with the configured provider.
// The zero value passes every stream through.
type Wrapper struct {
	Provider Provider
}

// Enabled reports whether streams are transformed.
func (w Wrapper) Enabled() bool {
	return w.Provider != nil
}

// WrapWriter returns a writer that encrypts into dst. Closing the returned
// writer finishes the stream but never closes dst.
func (w Wrapper) WrapWriter(dst io.Writer, scope string) (io.WriteCloser, error) {
	if w.Provider == nil {
		return nopWriteCloser{dst}, nil
	}

	c, err := w.Provider.Cipher(Encrypt, scope)
	if err != nil {
		return nil, domain.ErrTransformUnavailable.WithDetails(Encrypt.String()).WithCause(err)
	}
	if c == nil {
		return nil, domain.ErrTransformUnavailable.WithDetails("provider returned no cipher")
	}

	sw, err := adaptive.NewStreamWriter(c, dst)
	if err != nil {
		return nil, domain.ErrStorage.WithCause(err)
	}
	return sw, nil
}

// WrapReader returns a reader that decrypts src.
func (w Wrapper) WrapReader(src io.Reader, scope string) (io.Reader, error) {
	if w.Provider == nil {
		return src, nil
	}

	c, err := w.Provider.Cipher(Decrypt, scope)
	if err != nil {
		return nil, domain.ErrTransformUnavailable.WithDetails(Decrypt.String()).WithCause(err)
	}
	if c == nil {
		return nil, domain.ErrTransformUnavailable.WithDetails("provider returned no cipher")
	}
	return adaptive.NewStreamReader(c, src), nil
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
