package adaptive

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	// ChunkSize is the maximum plaintext carried by one stream chunk.
	ChunkSize = 64 << 10

	streamMagic    = "DCS1"
	streamIDSize   = 16
	streamHdrSize  = len(streamMagic) + streamIDSize
	finalChunkFlag = uint32(1) << 31
)

// Stream errors.
var (
	ErrStreamHeader    = errors.New("adaptive: invalid stream header")
	ErrStreamTruncated = errors.New("adaptive: stream truncated")
	ErrStreamCorrupt   = errors.New("adaptive: stream chunk failed authentication")
	ErrStreamClosed    = errors.New("adaptive: stream closed")
)

// StreamWriter encrypts everything written to it into an underlying writer.
//
// Close must be called to emit the final chunk; it does not close the
// underlying writer. A StreamWriter is not safe for concurrent use.
type StreamWriter struct {
	c      Cipher
	w      io.Writer
	id     [streamIDSize]byte
	buf    []byte
	index  uint64
	err    error
	closed bool
}

// NewStreamWriter writes the stream header to w and returns a writer that
// encrypts subsequent writes.
func NewStreamWriter(c Cipher, w io.Writer) (*StreamWriter, error) {
	sw := &StreamWriter{
		c:   c,
		w:   w,
		buf: make([]byte, 0, ChunkSize),
	}
	if _, err := io.ReadFull(rand.Reader, sw.id[:]); err != nil {
		return nil, fmt.Errorf("adaptive: stream id: %w", err)
	}

	hdr := make([]byte, 0, streamHdrSize)
	hdr = append(hdr, streamMagic...)
	hdr = append(hdr, sw.id[:]...)
	if _, err := w.Write(hdr); err != nil {
		return nil, err
	}
	return sw, nil
}

// Write buffers p and seals every full chunk that is known not to be last.
func (sw *StreamWriter) Write(p []byte) (int, error) {
	if sw.closed {
		return 0, ErrStreamClosed
	}
	if sw.err != nil {
		return 0, sw.err
	}

	written := 0
	for len(p) > 0 {
		// A full buffer is only sealed once more data arrives, so the last
		// chunk can always be marked final on Close.
		if len(sw.buf) == ChunkSize {
			if err := sw.seal(false); err != nil {
				return written, err
			}
		}
		n := copy(sw.buf[len(sw.buf):ChunkSize], p)
		sw.buf = sw.buf[:len(sw.buf)+n]
		p = p[n:]
		written += n
	}
	return written, nil
}

// Close seals the final chunk.
func (sw *StreamWriter) Close() error {
	if sw.closed {
		return sw.err
	}
	sw.closed = true
	if sw.err != nil {
		return sw.err
	}
	return sw.seal(true)
}

func (sw *StreamWriter) seal(final bool) error {
	ct, err := sw.c.Encrypt(sw.buf, chunkAD(sw.id, sw.index, final))
	if err != nil {
		sw.err = fmt.Errorf("adaptive: seal chunk %d: %w", sw.index, err)
		return sw.err
	}

	length := uint32(len(ct))
	if final {
		length |= finalChunkFlag
	}
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], length)
	if _, err := sw.w.Write(hdr[:]); err != nil {
		sw.err = err
		return err
	}
	if _, err := sw.w.Write(ct); err != nil {
		sw.err = err
		return err
	}

	sw.index++
	sw.buf = sw.buf[:0]
	return nil
}

// StreamReader decrypts a stream produced by StreamWriter.
//
// Read returns io.EOF only after the final chunk authenticated. A stream
// that ends early yields ErrStreamTruncated.
type StreamReader struct {
	c       Cipher
	r       io.Reader
	id      [streamIDSize]byte
	started bool
	done    bool
	index   uint64
	plain   []byte
	err     error
}

// NewStreamReader returns a reader decrypting r. The header is read lazily.
func NewStreamReader(c Cipher, r io.Reader) *StreamReader {
	return &StreamReader{c: c, r: r}
}

func (sr *StreamReader) Read(p []byte) (int, error) {
	for len(sr.plain) == 0 {
		if sr.err != nil {
			return 0, sr.err
		}
		if sr.done {
			return 0, io.EOF
		}
		if err := sr.next(); err != nil {
			sr.err = err
			return 0, err
		}
	}

	n := copy(p, sr.plain)
	sr.plain = sr.plain[n:]
	return n, nil
}

func (sr *StreamReader) next() error {
	if !sr.started {
		var hdr [streamHdrSize]byte
		if _, err := io.ReadFull(sr.r, hdr[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return ErrStreamHeader
			}
			return err
		}
		if string(hdr[:len(streamMagic)]) != streamMagic {
			return ErrStreamHeader
		}
		copy(sr.id[:], hdr[len(streamMagic):])
		sr.started = true
	}

	var lenBuf [4]byte
	if _, err := io.ReadFull(sr.r, lenBuf[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return ErrStreamTruncated
		}
		return err
	}
	raw := binary.BigEndian.Uint32(lenBuf[:])
	final := raw&finalChunkFlag != 0
	length := int(raw &^ finalChunkFlag)
	if length > ChunkSize+sr.c.NonceSize()+sr.c.Overhead() {
		return ErrStreamCorrupt
	}

	ct := make([]byte, length)
	if _, err := io.ReadFull(sr.r, ct); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return ErrStreamTruncated
		}
		return err
	}

	plain, err := sr.c.Decrypt(ct, chunkAD(sr.id, sr.index, final))
	if err != nil {
		return ErrStreamCorrupt
	}
	sr.index++
	sr.plain = plain
	if final {
		sr.done = true
		var one [1]byte
		if n, _ := sr.r.Read(one[:]); n > 0 {
			return ErrStreamCorrupt
		}
	}
	return nil
}

func chunkAD(id [streamIDSize]byte, index uint64, final bool) []byte {
	ad := make([]byte, streamIDSize+9)
	copy(ad, id[:])
	binary.BigEndian.PutUint64(ad[streamIDSize:], index)
	if final {
		ad[streamIDSize+8] = 1
	}
	return ad
}

// StreamOverhead returns the number of bytes the stream format adds to a
// plaintext of n bytes under c.
func StreamOverhead(c Cipher, n int64) int64 {
	chunks := n / ChunkSize
	if n%ChunkSize != 0 || n == 0 {
		chunks++
	}
	return int64(streamHdrSize) + chunks*int64(4+c.NonceSize()+c.Overhead())
}
