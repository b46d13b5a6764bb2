// Package adaptive provides authenticated encryption for cache payloads.
//
// This package implements a cipher abstraction that selects the best
// available AEAD algorithm for the host, plus a chunked streaming format
// so that payloads of any size can be encrypted and decrypted incrementally.
//
// Supported Algorithms:
//
//   - AES-GCM: Preferred when hardware AES support is available
//   - ChaCha20-Poly1305: Fallback for systems without AES-NI
//
// Stream Format:
//
//	[magic:4 "DCS1"][streamID:16]
//	[Chunk]*
//
// Chunk wire format:
//
//	[Length:4][Nonce|Ciphertext|Tag]
//
// Where:
//   - The high bit of Length marks the final chunk
//   - Plaintext per chunk is at most ChunkSize bytes
//   - Additional data is streamID || chunkIndex (big-endian uint64) || final
//
// Binding the index and final flag into the additional data makes
// reordering, truncation and splicing chunks between streams fail
// authentication.
//
// Usage:
//
//	c, err := adaptive.New(key)
//	w, err := adaptive.NewStreamWriter(c, file)
//	_, err = w.Write(plaintext)
//	err = w.Close()
//
//	r := adaptive.NewStreamReader(c, file)
//	plaintext, err := io.ReadAll(r)
package adaptive
