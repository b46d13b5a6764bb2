package journal

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Writer appends records to a journal file.
//
// Every Append reaches the OS before it returns. In SyncModeSync the file is
// also fsynced; in SyncModeBatch a background loop fsyncs on SyncInterval.
type Writer struct {
	cfg  Config
	path string

	mu sync.Mutex

	file       *os.File
	records    int
	dirty      bool
	syncTicker *time.Ticker
	stopCh     chan struct{}
	wg         sync.WaitGroup
	stopping   bool
	closed     bool
}

// Create truncates path, writes the journal header and returns a writer
// positioned after it.
func Create(path string, hdr Header, cfg Config) (*Writer, error) {
	data, err := encodeHeader(hdr)
	if err != nil {
		return nil, err
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, DefaultFilePerm)
	if err != nil {
		return nil, fmt.Errorf("journal: create: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		return nil, fmt.Errorf("journal: write header: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return nil, fmt.Errorf("journal: sync: %w", err)
	}

	return newWriter(path, file, 0, cfg), nil
}

// OpenAppend opens an existing journal for appending. records is the number
// of records already present, used for compaction accounting.
func OpenAppend(path string, records int, cfg Config) (*Writer, error) {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, DefaultFilePerm)
	if err != nil {
		return nil, fmt.Errorf("journal: open: %w", err)
	}
	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		file.Close()
		return nil, fmt.Errorf("journal: seek: %w", err)
	}
	return newWriter(path, file, records, cfg), nil
}

func newWriter(path string, file *os.File, records int, cfg Config) *Writer {
	cfg.ApplyDefaults()
	w := &Writer{
		cfg:     cfg,
		path:    path,
		file:    file,
		records: records,
		stopCh:  make(chan struct{}),
	}
	if w.cfg.SyncMode == SyncModeBatch {
		w.startSyncLoop()
	}
	return w
}

// Path returns the journal file path.
func (w *Writer) Path() string {
	return w.path
}

// Records returns the number of records in the journal.
func (w *Writer) Records() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.records
}

// Append writes one record.
func (w *Writer) Append(r Record) error {
	frame, err := encodeRecordFrame(r)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}

	if _, err := w.file.Write(frame); err != nil {
		return fmt.Errorf("journal: write record: %w", err)
	}
	w.records++

	if w.cfg.SyncMode == SyncModeSync {
		if err := w.file.Sync(); err != nil {
			return fmt.Errorf("journal: sync: %w", err)
		}
		return nil
	}
	w.dirty = true
	return nil
}

// Flush fsyncs any records not yet on stable storage.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked()
}

func (w *Writer) flushLocked() error {
	if w.closed || !w.dirty {
		return nil
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("journal: sync: %w", err)
	}
	w.dirty = false
	return nil
}

func (w *Writer) startSyncLoop() {
	w.syncTicker = time.NewTicker(w.cfg.SyncInterval)
	w.wg.Add(1)

	go func() {
		defer w.wg.Done()
		for {
			select {
			case <-w.syncTicker.C:
				_ = w.Flush()
			case <-w.stopCh:
				return
			}
		}
	}()
}

// Close flushes pending records and closes the file.
func (w *Writer) Close() error {
	w.mu.Lock()
	if w.closed || w.stopping {
		w.mu.Unlock()
		return nil
	}
	w.stopping = true
	close(w.stopCh)
	w.mu.Unlock()

	if w.syncTicker != nil {
		w.syncTicker.Stop()
	}
	w.wg.Wait()

	w.mu.Lock()
	defer w.mu.Unlock()

	flushErr := w.flushLocked()
	w.closed = true
	if err := w.file.Close(); err != nil && flushErr == nil {
		return fmt.Errorf("journal: close: %w", err)
	}
	return flushErr
}
