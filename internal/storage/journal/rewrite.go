package journal

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Rewrite replaces the journal in dir with one containing only records.
//
// The new journal is written to journal.tmp and fsynced. The live journal is
// renamed to journal.bkp, journal.tmp takes its place, and the backup is
// deleted. A crash at any point leaves either journal or journal.bkp intact.
func Rewrite(dir string, hdr Header, records []Record, cfg Config) error {
	tmpPath := filepath.Join(dir, TempFileName)
	livePath := filepath.Join(dir, FileName)
	bkpPath := filepath.Join(dir, BackupFileName)

	cfg.SyncMode = SyncModeSync
	w, err := Create(tmpPath, hdr, cfg)
	if err != nil {
		return err
	}
	for _, rec := range records {
		if err := w.appendNoSync(rec); err != nil {
			w.Close()
			os.Remove(tmpPath)
			return err
		}
	}
	if err := w.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	if _, err := os.Stat(livePath); err == nil {
		if err := os.Rename(livePath, bkpPath); err != nil {
			return fmt.Errorf("journal: backup: %w", err)
		}
	}
	if err := os.Rename(tmpPath, livePath); err != nil {
		return fmt.Errorf("journal: install: %w", err)
	}
	if err := os.Remove(bkpPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("journal: remove backup: %w", err)
	}
	return syncDir(dir)
}

func (w *Writer) appendNoSync(r Record) error {
	frame, err := encodeRecordFrame(r)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.file.Write(frame); err != nil {
		return fmt.Errorf("journal: write record: %w", err)
	}
	w.records++
	w.dirty = true
	return nil
}

// RestoreBackup resolves a rewrite interrupted by a crash. A lone backup is
// promoted to the live journal; a backup next to a live journal is deleted.
// A leftover journal.tmp is always discarded.
func RestoreBackup(dir string) error {
	livePath := filepath.Join(dir, FileName)
	bkpPath := filepath.Join(dir, BackupFileName)

	if err := os.Remove(filepath.Join(dir, TempFileName)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("journal: remove temp: %w", err)
	}

	if _, err := os.Stat(bkpPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("journal: stat backup: %w", err)
	}

	if _, err := os.Stat(livePath); err == nil {
		if err := os.Remove(bkpPath); err != nil {
			return fmt.Errorf("journal: remove backup: %w", err)
		}
		return nil
	}

	if err := os.Rename(bkpPath, livePath); err != nil {
		return fmt.Errorf("journal: restore backup: %w", err)
	}
	return nil
}

// Exists reports whether dir holds a journal.
func Exists(dir string) (bool, error) {
	_, err := os.Stat(filepath.Join(dir, FileName))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("journal: open dir: %w", err)
	}
	defer d.Close()
	// Some platforms reject fsync on directories.
	_ = d.Sync()
	return nil
}
