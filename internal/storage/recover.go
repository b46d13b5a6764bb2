package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/yndnr/diskcache-go/internal/core/domain"
	"github.com/yndnr/diskcache-go/internal/storage/journal"
	"github.com/yndnr/diskcache-go/pkg/keycodec"
)

// recover rebuilds the index from the journal.
//
// Recovery process:
//  1. Resolve an interrupted journal rewrite
//  2. Validate the journal header; a mismatch starts a fresh directory
//  3. Replay records in order
//  4. Purge entries whose last edit never committed
//  5. Drop entries whose slot files are missing or have the wrong length
//  6. Delete files that belong to no live entry
//  7. Rewrite the journal if anything was dropped or it is bloated
func (s *Store) recover() error {
	start := time.Now()

	if err := journal.RestoreBackup(s.dir); err != nil {
		return domain.ErrStorage.WithDetails("restore journal backup").WithCause(err)
	}

	path := filepath.Join(s.dir, journal.FileName)
	exists, err := journal.Exists(s.dir)
	if err != nil {
		return domain.ErrStorage.WithDetails("stat journal").WithCause(err)
	}
	if !exists {
		s.logger.Info("no journal found, starting with empty store")
		return s.startFresh()
	}

	res, err := journal.ReadFile(path)
	if err != nil {
		return classifyJournalError(err)
	}

	if want := s.header(); res.Header != want {
		s.logger.Warn("journal header mismatch, discarding cache contents",
			"found_format", res.Header.Format,
			"found_app_version", res.Header.AppVersion,
			"found_slots", res.Header.Slots,
			"app_version", want.AppVersion)
		if err := os.RemoveAll(s.dir); err != nil {
			return domain.ErrStorage.WithDetails("discard directory").WithCause(err)
		}
		if err := os.MkdirAll(s.dir, journal.DefaultDirPerm); err != nil {
			return domain.ErrStorage.WithDetails("create dir").WithCause(err)
		}
		return s.startFresh()
	}

	dirty, err := s.replay(res.Records)
	if err != nil {
		return err
	}

	rewrite := res.Torn
	if res.Torn {
		s.logger.Warn("journal ends with a torn record, it will be rewritten")
	}

	purged := s.purgeDirtyLocked(dirty)
	invalid := s.validateCleanLocked()
	orphans, err := s.deleteOrphans()
	if err != nil {
		return err
	}
	if purged > 0 || invalid > 0 {
		rewrite = true
	}

	records := len(res.Records)
	if rewrite || s.cfg.Journal.NeedsCompaction(records, len(s.index)) {
		if err := s.rewriteJournalLocked(); err != nil {
			return err
		}
	} else {
		w, err := journal.OpenAppend(path, records, s.cfg.Journal)
		if err != nil {
			return domain.ErrStorage.WithDetails("open journal").WithCause(err)
		}
		s.journal = w
	}

	s.evictLocked()

	s.logger.Info("storage recovery completed",
		"entries", len(s.index),
		"size", s.size,
		"records_replayed", records,
		"purged", purged,
		"invalid", invalid,
		"orphans_deleted", orphans,
		"elapsed", time.Since(start))
	return nil
}

func classifyJournalError(err error) error {
	switch {
	case errors.Is(err, journal.ErrInvalidMagic),
		errors.Is(err, journal.ErrInvalidHeader),
		errors.Is(err, journal.ErrChecksumMismatch),
		errors.Is(err, journal.ErrCorruptedEntry),
		errors.Is(err, journal.ErrInvalidEntryType):
		return domain.ErrCorruptStore.WithCause(err)
	default:
		return domain.ErrStorage.WithDetails("read journal").WithCause(err)
	}
}

func (s *Store) startFresh() error {
	if _, err := s.deleteOrphans(); err != nil {
		return err
	}
	w, err := journal.Create(filepath.Join(s.dir, journal.FileName), s.header(), s.cfg.Journal)
	if err != nil {
		return domain.ErrStorage.WithDetails("create journal").WithCause(err)
	}
	s.journal = w
	return nil
}

// replayEntry tracks journal state per identifier during replay.
type replayEntry struct {
	*entry
	dirty bool
}

// replay rebuilds the index and returns the identifiers left DIRTY.
func (s *Store) replay(records []journal.Record) ([]string, error) {
	states := make(map[string]*replayEntry)
	var maxSeq uint64

	for i, rec := range records {
		if !keycodec.Valid(rec.ID) {
			return nil, domain.ErrCorruptStore.WithDetails(fmt.Sprintf("record %d: invalid identifier", i))
		}
		if rec.Seq > maxSeq {
			maxSeq = rec.Seq
		}
		st := states[rec.ID]

		switch rec.Op {
		case journal.OpTypeCreate:
			if st == nil {
				st = &replayEntry{entry: &entry{id: rec.ID}}
				states[rec.ID] = st
			}
			st.dirty = true
			st.seq = rec.Seq
			s.lru.touch(st.entry)

		case journal.OpTypeCommit:
			if len(rec.Lengths) != SlotCount {
				return nil, domain.ErrCorruptStore.WithDetails(
					fmt.Sprintf("record %d: commit for %s has %d lengths", i, rec.ID, len(rec.Lengths)))
			}
			if st == nil {
				st = &replayEntry{entry: &entry{id: rec.ID}}
				states[rec.ID] = st
			}
			st.dirty = false
			st.readable = true
			copy(st.lengths[:], rec.Lengths)
			st.seq = rec.Seq
			st.commitSeq = rec.Seq
			s.lru.touch(st.entry)

		case journal.OpTypeRemove:
			if st != nil {
				s.lru.remove(st.entry)
				delete(states, rec.ID)
			}

		case journal.OpTypeRead:
			if st != nil {
				st.seq = rec.Seq
				s.lru.touch(st.entry)
			}
		}
	}

	var dirty []string
	for id, st := range states {
		if st.dirty {
			dirty = append(dirty, id)
		}
		s.index[id] = st.entry
		if st.readable {
			s.size += st.size()
		}
	}
	if len(records) > 0 {
		s.nextSeq = maxSeq + 1
	}
	return dirty, nil
}

// purgeDirtyLocked deletes entries whose CREATE was never followed by COMMIT
// or REMOVE, including any previously committed data.
func (s *Store) purgeDirtyLocked(ids []string) int {
	purged := 0
	for _, id := range ids {
		e := s.index[id]
		if e == nil {
			continue
		}
		for slot := 0; slot < SlotCount; slot++ {
			if err := removeFile(cleanPath(s.dir, id, slot)); err != nil {
				s.logger.Warn("purge slot failed", "id", id, "slot", slot, "error", err)
			}
			if err := removeFile(dirtyPath(s.dir, id, slot)); err != nil {
				s.logger.Warn("purge temp slot failed", "id", id, "slot", slot, "error", err)
			}
		}
		s.dropLocked(e)
		purged++
	}
	return purged
}

// validateCleanLocked drops committed entries whose files do not match the
// journaled lengths.
func (s *Store) validateCleanLocked() int {
	invalid := 0
	for id, e := range s.index {
		for slot := 0; slot < SlotCount; slot++ {
			info, err := os.Stat(cleanPath(s.dir, id, slot))
			if err == nil && info.Mode().IsRegular() && info.Size() == e.lengths[slot] {
				continue
			}
			s.logger.Warn("dropping entry with invalid slot file",
				"id", id,
				"slot", slot,
				"want_length", e.lengths[slot],
				"error", err)
			for i := 0; i < SlotCount; i++ {
				_ = removeFile(cleanPath(s.dir, id, i))
			}
			s.dropLocked(e)
			invalid++
			break
		}
	}
	return invalid
}

// deleteOrphans removes every file in the directory that is neither the
// journal nor a committed slot of a live entry.
func (s *Store) deleteOrphans() (int, error) {
	keep := map[string]struct{}{journal.FileName: {}}
	for id := range s.index {
		for slot := 0; slot < SlotCount; slot++ {
			keep[slotName(id, slot)] = struct{}{}
		}
	}

	dirents, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, domain.ErrStorage.WithDetails("list dir").WithCause(err)
	}

	deleted := 0
	for _, d := range dirents {
		if _, ok := keep[d.Name()]; ok {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.dir, d.Name())); err != nil {
			return deleted, domain.ErrStorage.WithDetails("delete orphan").WithCause(err)
		}
		s.logger.Debug("orphan file deleted", "name", d.Name())
		deleted++
	}
	return deleted, nil
}

// compactRecordsLocked returns the minimal journal describing the current
// index, in LRU order.
func (s *Store) compactRecordsLocked() []journal.Record {
	records := make([]journal.Record, 0, len(s.index))
	s.lru.each(func(e *entry) bool {
		if e.readable {
			records = append(records, journal.NewCommitRecord(e.id, e.seq, e.lengths[:]))
		}
		if e.editor != nil {
			records = append(records, journal.NewCreateRecord(e.id, e.seq))
		}
		return true
	})
	return records
}

// rewriteJournalLocked replaces the journal with its compact form and
// reopens it for appending.
func (s *Store) rewriteJournalLocked() error {
	if s.journal != nil {
		if err := s.journal.Close(); err != nil {
			s.logger.Warn("close journal before rewrite failed", "error", err)
		}
		s.journal = nil
	}

	records := s.compactRecordsLocked()
	path := filepath.Join(s.dir, journal.FileName)

	rewriteErr := journal.Rewrite(s.dir, s.header(), records, s.cfg.Journal)
	count := len(records)
	if rewriteErr != nil {
		// The previous journal survives either as journal or journal.bkp.
		if err := journal.RestoreBackup(s.dir); err != nil {
			return domain.ErrStorage.WithDetails("restore journal after failed rewrite").WithCause(err)
		}
		res, err := journal.ReadFile(path)
		if err != nil {
			return classifyJournalError(err)
		}
		count = len(res.Records)
	}

	w, err := journal.OpenAppend(path, count, s.cfg.Journal)
	if err != nil {
		return domain.ErrStorage.WithDetails("reopen journal").WithCause(err)
	}
	s.journal = w

	if rewriteErr != nil {
		return domain.ErrStorage.WithDetails("rewrite journal").WithCause(rewriteErr)
	}
	s.metrics.RecordCompaction()
	s.logger.Debug("journal rewritten", "records", count)
	return nil
}

// maybeCompactLocked rewrites the journal once redundant records outweigh
// live entries. Failures are logged; the old journal remains usable.
func (s *Store) maybeCompactLocked() {
	if s.journal == nil || !s.cfg.Journal.NeedsCompaction(s.journal.Records(), len(s.index)) {
		return
	}
	if err := s.rewriteJournalLocked(); err != nil {
		s.logger.Error("journal compaction failed", "error", err)
		if s.journal == nil {
			s.broken = domain.ErrCorruptStore.WithDetails("journal unavailable").WithCause(err)
		}
	}
}
