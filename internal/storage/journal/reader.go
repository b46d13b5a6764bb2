package journal

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// Reader reads records from a journal file in append order.
type Reader struct {
	file   *os.File
	r      *bufio.Reader
	header Header
}

// Open opens a journal and validates its header.
func Open(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	r := &Reader{file: file, r: bufio.NewReader(file)}
	if err := r.readAndValidateHeader(); err != nil {
		file.Close()
		return nil, err
	}
	return r, nil
}

// Header returns the decoded journal header.
func (r *Reader) Header() Header {
	return r.header
}

func (r *Reader) readAndValidateHeader() error {
	magic := make([]byte, MagicBytesSize)
	if _, err := io.ReadFull(r.r, magic); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMagic, err)
	}
	if string(magic) != MagicBytes {
		return ErrInvalidMagic
	}

	var lenBuf [4]byte
	if _, err := io.ReadFull(r.r, lenBuf[:]); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n == 0 || n > maxHeaderLength {
		return ErrInvalidHeader
	}

	data := make([]byte, n)
	if _, err := io.ReadFull(r.r, data); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}
	if err := json.Unmarshal(data, &r.header); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}
	return nil
}

// Read returns the next record. It returns io.EOF at a clean end and
// ErrTornRecord when the final record is incomplete.
func (r *Reader) Read() (Record, error) {
	var hdr [4]byte
	n, err := io.ReadFull(r.r, hdr[:])
	if err != nil {
		if errors.Is(err, io.EOF) && n == 0 {
			return Record{}, io.EOF
		}
		return Record{}, ErrTornRecord
	}

	length := binary.BigEndian.Uint32(hdr[:])
	if length < 5 || length > maxRecordLength {
		if r.atEOF() {
			return Record{}, ErrTornRecord
		}
		return Record{}, ErrCorruptedEntry
	}

	frame := make([]byte, length)
	if _, err := io.ReadFull(r.r, frame); err != nil {
		return Record{}, ErrTornRecord
	}

	rec, err := decodeRecordFrame(frame)
	if err != nil {
		// A damaged final record is a write that never completed.
		if r.atEOF() {
			return Record{}, ErrTornRecord
		}
		return Record{}, err
	}
	return rec, nil
}

func (r *Reader) atEOF() bool {
	_, err := r.r.Peek(1)
	return errors.Is(err, io.EOF)
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}

// ReadResult is the full content of a journal.
type ReadResult struct {
	Header  Header
	Records []Record
	// Torn reports that the final record was incomplete and dropped.
	Torn bool
}

// ReadFile reads every record of the journal at path.
func ReadFile(path string) (*ReadResult, error) {
	r, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	res := &ReadResult{Header: r.Header()}
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return res, nil
		}
		if errors.Is(err, ErrTornRecord) {
			res.Torn = true
			return res, nil
		}
		if err != nil {
			return nil, err
		}
		res.Records = append(res.Records, rec)
	}
}
