package adaptive

import (
	"bytes"
	"crypto/rand"
	"io"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encryptStream(t *testing.T, c Cipher, plaintext []byte, writeSize int) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := NewStreamWriter(c, &buf)
	require.NoError(t, err)

	for p := plaintext; len(p) > 0; {
		n := writeSize
		if n > len(p) {
			n = len(p)
		}
		_, err := w.Write(p[:n])
		require.NoError(t, err)
		p = p[n:]
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestStream_RoundTrip(t *testing.T) {
	c, err := NewWithType(key32, CipherAESGCM)
	require.NoError(t, err)

	sizes := []int{0, 1, 100, ChunkSize - 1, ChunkSize, ChunkSize + 1, 3*ChunkSize + 17}
	for _, size := range sizes {
		plaintext := make([]byte, size)
		_, err := rand.Read(plaintext)
		require.NoError(t, err)

		for _, ws := range []int{1 << 20, 4096, 7} {
			if size > ChunkSize && ws == 7 {
				continue
			}
			enc := encryptStream(t, c, plaintext, ws)
			assert.Equal(t, StreamOverhead(c, int64(size)), int64(len(enc)-size), "size %d", size)

			got, err := io.ReadAll(NewStreamReader(c, bytes.NewReader(enc)))
			require.NoError(t, err, "size %d write %d", size, ws)
			assert.Equal(t, plaintext, got)
		}
	}
}

func TestStream_SmallReads(t *testing.T) {
	c, err := NewWithType(key32, CipherChaCha20)
	require.NoError(t, err)

	plaintext := bytes.Repeat([]byte("abcdefgh"), ChunkSize/4)
	enc := encryptStream(t, c, plaintext, len(plaintext))

	r := iotest.OneByteReader(NewStreamReader(c, iotest.HalfReader(bytes.NewReader(enc))))
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestStream_EmptyPayloadIsNotPlaintext(t *testing.T) {
	c, err := New(key32)
	require.NoError(t, err)

	enc := encryptStream(t, c, nil, 1)
	assert.NotEmpty(t, enc)

	got, err := io.ReadAll(NewStreamReader(c, bytes.NewReader(enc)))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStream_Truncated(t *testing.T) {
	c, err := NewWithType(key32, CipherAESGCM)
	require.NoError(t, err)

	plaintext := bytes.Repeat([]byte{7}, 2*ChunkSize+5)
	enc := encryptStream(t, c, plaintext, len(plaintext))

	// Drop the final chunk entirely: the remaining chunks authenticate but
	// the stream never reaches its final marker.
	firstChunk := streamHdrSize + 4 + ChunkSize + c.NonceSize() + c.Overhead()
	_, err = io.ReadAll(NewStreamReader(c, bytes.NewReader(enc[:2*firstChunk-streamHdrSize])))
	assert.ErrorIs(t, err, ErrStreamTruncated)

	_, err = io.ReadAll(NewStreamReader(c, bytes.NewReader(enc[:len(enc)-3])))
	assert.ErrorIs(t, err, ErrStreamTruncated)

	_, err = io.ReadAll(NewStreamReader(c, bytes.NewReader(enc[:5])))
	assert.ErrorIs(t, err, ErrStreamHeader)
}

func TestStream_Tampered(t *testing.T) {
	c, err := NewWithType(key32, CipherAESGCM)
	require.NoError(t, err)

	enc := encryptStream(t, c, []byte("secret value"), 64)

	flipped := bytes.Clone(enc)
	flipped[len(flipped)-1] ^= 1
	_, err = io.ReadAll(NewStreamReader(c, bytes.NewReader(flipped)))
	assert.ErrorIs(t, err, ErrStreamCorrupt)

	// Clearing the final flag must break authentication too.
	unflagged := bytes.Clone(enc)
	unflagged[streamHdrSize] &^= 0x80
	_, err = io.ReadAll(NewStreamReader(c, bytes.NewReader(unflagged)))
	assert.ErrorIs(t, err, ErrStreamCorrupt)

	trailing := append(bytes.Clone(enc), 0)
	_, err = io.ReadAll(NewStreamReader(c, bytes.NewReader(trailing)))
	assert.ErrorIs(t, err, ErrStreamCorrupt)
}

func TestStream_WrongKey(t *testing.T) {
	c1, err := NewWithType(key32, CipherAESGCM)
	require.NoError(t, err)
	other := testKey(32)
	other[0] = 0xff
	c2, err := NewWithType(other, CipherAESGCM)
	require.NoError(t, err)

	enc := encryptStream(t, c1, []byte("value"), 64)
	_, err = io.ReadAll(NewStreamReader(c2, bytes.NewReader(enc)))
	assert.ErrorIs(t, err, ErrStreamCorrupt)
}

func TestStreamWriter_WriteAfterClose(t *testing.T) {
	c, err := New(key32)
	require.NoError(t, err)

	w, err := NewStreamWriter(c, io.Discard)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	_, err = w.Write([]byte("x"))
	assert.ErrorIs(t, err, ErrStreamClosed)
}
