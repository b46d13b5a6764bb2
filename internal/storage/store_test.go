package storage

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yndnr/diskcache-go/internal/core/domain"
	"github.com/yndnr/diskcache-go/internal/storage/journal"
	"github.com/yndnr/diskcache-go/internal/storage/transform"
	"github.com/yndnr/diskcache-go/pkg/crypto/adaptive"
	"github.com/yndnr/diskcache-go/pkg/keycodec"
)

var meta8 = []byte{0, 0, 0, 0, 0, 0, 0, 0}

func testConfig(dir string, maxSize int64) Config {
	cfg := DefaultConfig(dir, maxSize)
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return cfg
}

func openStore(t *testing.T, cfg Config) *Store {
	t.Helper()
	s, err := Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func key(name string) string {
	return keycodec.Normalize(name)
}

func put(t *testing.T, s *Store, name string, value []byte) {
	t.Helper()
	ed, err := s.Edit(key(name))
	require.NoError(t, err)
	require.NoError(t, ed.Set(SlotValue, value))
	require.NoError(t, ed.Set(SlotMeta, meta8))
	require.NoError(t, ed.Commit())
}

func read(t *testing.T, s *Store, name string) ([]byte, bool) {
	t.Helper()
	snap, ok, err := s.Get(key(name))
	require.NoError(t, err)
	if !ok {
		return nil, false
	}
	defer snap.Close()
	data, err := snap.Bytes(SlotValue)
	require.NoError(t, err)
	return data, true
}

func dirFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestOpen_Validation(t *testing.T) {
	_, err := Open(Config{MaxSize: 10})
	assert.Error(t, err)

	_, err = Open(Config{Dir: t.TempDir()})
	assert.Error(t, err)
}

func TestStore_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := openStore(t, testConfig(dir, 1<<20))

	put(t, s, "alpha", []byte("hello world"))

	got, ok := read(t, s, "alpha")
	require.True(t, ok)
	assert.Equal(t, []byte("hello world"), got)
	assert.Equal(t, int64(11+8), s.Size())
	assert.Equal(t, 1, s.Len())

	snap, ok, err := s.Get(key("alpha"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, key("alpha"), snap.Identifier())
	assert.Equal(t, int64(11), snap.Length(SlotValue))
	assert.Equal(t, int64(8), snap.Length(SlotMeta))
	assert.Equal(t, int64(-1), snap.Length(SlotCount))
	metaBytes, err := snap.Bytes(SlotMeta)
	require.NoError(t, err)
	assert.Equal(t, meta8, metaBytes)
	require.NoError(t, snap.Close())

	require.NoError(t, s.Close())

	s2 := openStore(t, testConfig(dir, 1<<20))
	got, ok = read(t, s2, "alpha")
	require.True(t, ok)
	assert.Equal(t, []byte("hello world"), got)
	assert.Equal(t, int64(19), s2.Size())
}

func TestStore_GetAbsentAndInvalid(t *testing.T) {
	s := openStore(t, testConfig(t.TempDir(), 1<<20))

	snap, ok, err := s.Get(key("missing"))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, snap)

	_, _, err = s.Get("../etc/passwd")
	assert.ErrorIs(t, err, domain.ErrInvalidIdentifier)
	_, err = s.Edit("UPPER")
	assert.ErrorIs(t, err, domain.ErrInvalidIdentifier)
	_, err = s.Remove("")
	assert.ErrorIs(t, err, domain.ErrInvalidIdentifier)
}

func TestStore_EditExclusive(t *testing.T) {
	s := openStore(t, testConfig(t.TempDir(), 1<<20))

	ed, err := s.Edit(key("k"))
	require.NoError(t, err)

	_, err = s.Edit(key("k"))
	assert.ErrorIs(t, err, domain.ErrBusy)

	removed, err := s.Remove(key("k"))
	assert.ErrorIs(t, err, domain.ErrBusy)
	assert.False(t, removed)

	require.NoError(t, ed.Set(SlotValue, []byte("v")))
	require.NoError(t, ed.Set(SlotMeta, meta8))
	require.NoError(t, ed.Commit())

	ed2, err := s.Edit(key("k"))
	require.NoError(t, err)
	require.NoError(t, ed2.Abort())
}

func TestEditor_IncompleteNewEntry(t *testing.T) {
	dir := t.TempDir()
	s := openStore(t, testConfig(dir, 1<<20))

	ed, err := s.Edit(key("k"))
	require.NoError(t, err)
	require.NoError(t, ed.Set(SlotValue, []byte("v")))

	err = ed.Commit()
	assert.ErrorIs(t, err, domain.ErrIncompleteEntry)

	_, ok := read(t, s, "k")
	assert.False(t, ok)
	assert.Equal(t, []string{journal.FileName}, dirFiles(t, dir))

	assert.ErrorIs(t, ed.Commit(), domain.ErrEditorClosed)
	assert.ErrorIs(t, ed.Abort(), domain.ErrEditorClosed)

	ed2, err := s.Edit(key("k"))
	require.NoError(t, err, "entry must be editable after implicit abort")
	ed2.AbortUnlessCommitted()
}

func TestEditor_PartialUpdateKeepsOtherSlot(t *testing.T) {
	s := openStore(t, testConfig(t.TempDir(), 1<<20))
	put(t, s, "k", []byte("first"))

	ed, err := s.Edit(key("k"))
	require.NoError(t, err)

	r, ok, err := ed.NewReader(SlotValue)
	require.NoError(t, err)
	require.True(t, ok)
	prev, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.Equal(t, []byte("first"), prev)

	require.NoError(t, ed.Set(SlotValue, []byte("second!")))
	require.NoError(t, ed.Commit())

	snap, ok, err := s.Get(key("k"))
	require.NoError(t, err)
	require.True(t, ok)
	defer snap.Close()

	v, err := snap.Bytes(SlotValue)
	require.NoError(t, err)
	m, err := snap.Bytes(SlotMeta)
	require.NoError(t, err)
	assert.Equal(t, []byte("second!"), v)
	assert.Equal(t, meta8, m)
	assert.Equal(t, int64(7+8), s.Size())
}

func TestEditor_NewReaderOnNewEntry(t *testing.T) {
	s := openStore(t, testConfig(t.TempDir(), 1<<20))

	ed, err := s.Edit(key("new"))
	require.NoError(t, err)
	defer ed.AbortUnlessCommitted()

	r, ok, err := ed.NewReader(SlotValue)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, r)

	_, _, err = ed.NewReader(5)
	assert.ErrorIs(t, err, domain.ErrInvalidSlot)
	_, err = ed.NewWriter(-1)
	assert.ErrorIs(t, err, domain.ErrInvalidSlot)
}

func TestEditor_Abort(t *testing.T) {
	dir := t.TempDir()
	s := openStore(t, testConfig(dir, 1<<20))

	t.Run("new entry disappears", func(t *testing.T) {
		ed, err := s.Edit(key("fresh"))
		require.NoError(t, err)
		require.NoError(t, ed.Set(SlotValue, []byte("x")))
		require.NoError(t, ed.Abort())

		_, ok := read(t, s, "fresh")
		assert.False(t, ok)
		assert.NoFileExists(t, dirtyPath(dir, key("fresh"), SlotValue))

		_, err = ed.NewWriter(SlotValue)
		assert.ErrorIs(t, err, domain.ErrEditorClosed)
	})

	t.Run("existing entry keeps content", func(t *testing.T) {
		put(t, s, "kept", []byte("original"))

		ed, err := s.Edit(key("kept"))
		require.NoError(t, err)
		w, err := ed.NewWriter(SlotValue)
		require.NoError(t, err)
		_, err = w.Write([]byte("replacement"))
		require.NoError(t, err)
		require.NoError(t, ed.Abort())

		got, ok := read(t, s, "kept")
		require.True(t, ok)
		assert.Equal(t, []byte("original"), got)
	})
}

func TestEditor_ReadersDoNotSeeUncommittedData(t *testing.T) {
	s := openStore(t, testConfig(t.TempDir(), 1<<20))
	put(t, s, "k", []byte("v1"))

	ed, err := s.Edit(key("k"))
	require.NoError(t, err)
	require.NoError(t, ed.Set(SlotValue, []byte("v2")))

	got, ok := read(t, s, "k")
	require.True(t, ok)
	assert.Equal(t, []byte("v1"), got)

	require.NoError(t, ed.Commit())
	got, ok = read(t, s, "k")
	require.True(t, ok)
	assert.Equal(t, []byte("v2"), got)
}

func TestStore_Remove(t *testing.T) {
	dir := t.TempDir()
	s := openStore(t, testConfig(dir, 1<<20))
	put(t, s, "k", []byte("value"))

	removed, err := s.Remove(key("k"))
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, int64(0), s.Size())
	assert.NoFileExists(t, cleanPath(dir, key("k"), SlotValue))

	removed, err = s.Remove(key("k"))
	require.NoError(t, err)
	assert.False(t, removed)

	_, ok := read(t, s, "k")
	assert.False(t, ok)
}

func TestStore_LRUEviction(t *testing.T) {
	// Every entry is 10 + 8 bytes; the ceiling holds three.
	s := openStore(t, testConfig(t.TempDir(), 54))
	value := []byte("0123456789")

	put(t, s, "k1", value)
	put(t, s, "k2", value)
	put(t, s, "k3", value)

	_, ok := read(t, s, "k1")
	require.True(t, ok)

	put(t, s, "k4", value)

	assert.Equal(t, []string{key("k3"), key("k1"), key("k4")}, s.Identifiers())
	assert.LessOrEqual(t, s.Size(), s.MaxSize())

	_, ok = read(t, s, "k2")
	assert.False(t, ok)

	put(t, s, "k5", value)
	assert.Equal(t, []string{key("k1"), key("k4"), key("k5")}, s.Identifiers())
}

func TestStore_EvictionSkipsEditedEntries(t *testing.T) {
	s := openStore(t, testConfig(t.TempDir(), 100))
	value := []byte("0123456789")
	put(t, s, "k1", value)
	put(t, s, "k2", value)

	ed1, err := s.Edit(key("k1"))
	require.NoError(t, err)
	ed2, err := s.Edit(key("k2"))
	require.NoError(t, err)

	require.NoError(t, s.SetMaxSize(18))
	assert.Equal(t, int64(36), s.Size(), "entries under edit are never evicted")
	assert.Equal(t, 2, s.Len())

	require.NoError(t, ed1.Abort())
	require.NoError(t, ed2.Abort())

	require.NoError(t, s.SetMaxSize(20))
	assert.Equal(t, []string{key("k2")}, s.Identifiers())
	assert.Equal(t, int64(18), s.Size())

	assert.Error(t, s.SetMaxSize(0))
}

func TestStore_CrashBeforeCommit(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(testConfig(dir, 1<<20))
	require.NoError(t, err)

	put(t, s, "committed", []byte("safe"))
	put(t, s, "rewritten", []byte("old"))

	ed, err := s.Edit(key("torn"))
	require.NoError(t, err)
	require.NoError(t, ed.Set(SlotValue, []byte("half")))
	require.NoError(t, ed.Set(SlotMeta, meta8))

	ed2, err := s.Edit(key("rewritten"))
	require.NoError(t, err)
	require.NoError(t, ed2.Set(SlotValue, []byte("new")))

	// Simulate a crash: release the journal without Close.
	require.NoError(t, s.journal.Close())

	s2 := openStore(t, testConfig(dir, 1<<20))

	_, ok := read(t, s2, "torn")
	assert.False(t, ok)
	_, ok = read(t, s2, "rewritten")
	assert.False(t, ok, "an entry left mid-edit is purged")
	got, ok := read(t, s2, "committed")
	require.True(t, ok)
	assert.Equal(t, []byte("safe"), got)

	for _, name := range dirFiles(t, dir) {
		assert.False(t, strings.HasSuffix(name, tmpSuffix), "temp file %s left behind", name)
	}
	assert.Equal(t, int64(4+8), s2.Size())
}

func TestStore_OrphanFilesDeleted(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(testConfig(dir, 1<<20))
	require.NoError(t, err)
	put(t, s, "live", []byte("v"))
	require.NoError(t, s.Close())

	stray := []string{
		slotName(key("ghost"), SlotValue),
		slotName(key("ghost"), SlotMeta) + tmpSuffix,
		journal.TempFileName,
		"garbage",
	}
	for _, name := range stray {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0600))
	}

	s2 := openStore(t, testConfig(dir, 1<<20))
	assert.ElementsMatch(t, []string{
		journal.FileName,
		slotName(key("live"), SlotValue),
		slotName(key("live"), SlotMeta),
	}, dirFiles(t, dir))
	assert.Equal(t, 1, s2.Len())
}

func TestStore_DropsEntriesWithDamagedFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(testConfig(dir, 1<<20))
	require.NoError(t, err)
	put(t, s, "shrunk", []byte("0123456789"))
	put(t, s, "gone", []byte("v"))
	put(t, s, "fine", []byte("v"))
	require.NoError(t, s.Close())

	require.NoError(t, os.WriteFile(cleanPath(dir, key("shrunk"), SlotValue), []byte("0123"), 0600))
	require.NoError(t, os.Remove(cleanPath(dir, key("gone"), SlotMeta)))

	s2 := openStore(t, testConfig(dir, 1<<20))
	assert.Equal(t, []string{key("fine")}, s2.Identifiers())
	assert.Equal(t, int64(1+8), s2.Size())
}

func TestStore_RemoveWhileEditing(t *testing.T) {
	s := openStore(t, testConfig(t.TempDir(), 1<<20))

	t.Run("first write in progress is absent", func(t *testing.T) {
		ed, err := s.Edit(key("new"))
		require.NoError(t, err)
		defer ed.AbortUnlessCommitted()

		removed, err := s.Remove(key("new"))
		require.NoError(t, err)
		assert.False(t, removed)

		require.NoError(t, ed.Set(SlotValue, []byte("v")))
		require.NoError(t, ed.Set(SlotMeta, meta8))
		require.NoError(t, ed.Commit())
		got, ok := read(t, s, "new")
		require.True(t, ok)
		assert.Equal(t, []byte("v"), got)
	})

	t.Run("committed entry under edit is busy", func(t *testing.T) {
		put(t, s, "old", []byte("v"))
		ed, err := s.Edit(key("old"))
		require.NoError(t, err)
		defer ed.AbortUnlessCommitted()

		removed, err := s.Remove(key("old"))
		assert.ErrorIs(t, err, domain.ErrBusy)
		assert.False(t, removed)
	})
}

func TestEditor_CommitInstallFailure(t *testing.T) {
	dir := t.TempDir()
	s := openStore(t, testConfig(dir, 1<<20))
	id := key("k")

	// A non-empty directory where slot 1 belongs makes its rename fail.
	blocker := cleanPath(dir, id, SlotMeta)
	require.NoError(t, os.MkdirAll(blocker, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(blocker, "f"), []byte("x"), 0o644))

	ed, err := s.Edit(id)
	require.NoError(t, err)
	require.NoError(t, ed.Set(SlotValue, []byte("value")))
	require.NoError(t, ed.Set(SlotMeta, meta8))

	err = ed.Commit()
	require.ErrorIs(t, err, domain.ErrStorage)

	assert.NoFileExists(t, cleanPath(dir, id, SlotValue))
	assert.NoFileExists(t, dirtyPath(dir, id, SlotValue))
	assert.NoFileExists(t, dirtyPath(dir, id, SlotMeta))
	assert.ErrorIs(t, ed.Commit(), domain.ErrEditorClosed)
	assert.ErrorIs(t, ed.Abort(), domain.ErrEditorClosed)

	_, ok := read(t, s, "k")
	assert.False(t, ok)
	assert.Equal(t, int64(0), s.Size())

	require.NoError(t, os.RemoveAll(blocker))
}

func TestStore_JournalReplay(t *testing.T) {
	for _, tc := range []struct {
		name    string
		journal journal.Config
	}{
		{name: "without compaction", journal: journal.DefaultConfig()},
		{name: "with compaction", journal: journal.Config{CompactMinRedundant: 1, CompactRatio: 1}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			cfg := testConfig(dir, 1<<20)
			cfg.Journal = tc.journal

			s, err := Open(cfg)
			require.NoError(t, err)

			for i := 0; i < 10; i++ {
				put(t, s, fmt.Sprintf("k%d", i), bytes.Repeat([]byte{'x'}, i+1))
			}
			for i := 0; i < 10; i += 3 {
				removed, err := s.Remove(key(fmt.Sprintf("k%d", i)))
				require.NoError(t, err)
				require.True(t, removed)
			}
			_, ok := read(t, s, "k1")
			require.True(t, ok)

			// An aborted edit must leave recency as replay rebuilds it.
			ed, err := s.Edit(key("k2"))
			require.NoError(t, err)
			_, ok = read(t, s, "k4")
			require.True(t, ok)
			require.NoError(t, ed.Abort())

			wantIDs := s.Identifiers()
			wantSize := s.Size()
			records := s.Stats().JournalRecords
			require.NoError(t, s.Close())

			s2 := openStore(t, cfg)
			assert.Equal(t, wantIDs, s2.Identifiers())
			assert.Equal(t, wantSize, s2.Size())
			assert.Equal(t, 6, s2.Len())

			if tc.journal.CompactMinRedundant == 1 {
				assert.Less(t, records, 20, "journal should have been compacted")
			}
		})
	}
}

func TestStore_TornJournalTail(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(testConfig(dir, 1<<20))
	require.NoError(t, err)
	put(t, s, "k", []byte("v"))
	_, ok := read(t, s, "k")
	require.True(t, ok)
	require.NoError(t, s.Close())

	path := filepath.Join(dir, journal.FileName)
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(path, info.Size()-2))

	s2 := openStore(t, testConfig(dir, 1<<20))
	got, ok := read(t, s2, "k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got)

	res, err := journal.ReadFile(path)
	require.NoError(t, err)
	assert.False(t, res.Torn, "torn journal is rewritten on open")
}

func TestStore_CorruptJournal(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(testConfig(dir, 1<<20))
	require.NoError(t, err)
	put(t, s, "k", []byte("v"))
	require.NoError(t, s.Close())

	path := filepath.Join(dir, journal.FileName)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	copy(data, "XXXXXXXX")
	require.NoError(t, os.WriteFile(path, data, 0600))

	_, err = Open(testConfig(dir, 1<<20))
	require.ErrorIs(t, err, domain.ErrCorruptStore)

	require.NoError(t, Destroy(dir))
	s2 := openStore(t, testConfig(dir, 1<<20))
	assert.Equal(t, 0, s2.Len())
}

func TestStore_VersionMismatchStartsFresh(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(testConfig(dir, 1<<20))
	require.NoError(t, err)
	put(t, s, "k", []byte("v"))
	require.NoError(t, s.Close())

	cfg := testConfig(dir, 1<<20)
	cfg.AppVersion = 2
	s2 := openStore(t, cfg)
	assert.Equal(t, 0, s2.Len())
	assert.Equal(t, []string{journal.FileName}, dirFiles(t, dir))
}

func TestStore_RestoresBackupJournal(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(testConfig(dir, 1<<20))
	require.NoError(t, err)
	put(t, s, "k", []byte("v"))
	require.NoError(t, s.Close())

	// Crash between backing up the journal and installing its rewrite.
	require.NoError(t, os.Rename(filepath.Join(dir, journal.FileName), filepath.Join(dir, journal.BackupFileName)))

	s2 := openStore(t, testConfig(dir, 1<<20))
	_, ok := read(t, s2, "k")
	assert.True(t, ok)
}

func TestStore_EncryptionTransparent(t *testing.T) {
	dir := t.TempDir()
	key1, err := transform.GenerateKey(32)
	require.NoError(t, err)
	provider, err := transform.NewKeyProvider(transform.EncryptionConfig{Key: key1})
	require.NoError(t, err)

	cfg := testConfig(dir, 1<<20)
	cfg.Transform = provider
	s, err := Open(cfg)
	require.NoError(t, err)

	plaintext := []byte("a very secret payload")
	put(t, s, "secret", plaintext)

	got, ok := read(t, s, "secret")
	require.True(t, ok)
	assert.Equal(t, plaintext, got)

	raw, err := os.ReadFile(cleanPath(dir, key("secret"), SlotValue))
	require.NoError(t, err)
	assert.False(t, bytes.Contains(raw, plaintext), "slot file must not hold plaintext")
	assert.Greater(t, s.Size(), int64(len(plaintext)+8), "size counts on-disk bytes")
	require.NoError(t, s.Close())

	// Same key after reopen.
	s2, err := Open(cfg)
	require.NoError(t, err)
	got, ok = read(t, s2, "secret")
	require.True(t, ok)
	assert.Equal(t, plaintext, got)
	require.NoError(t, s2.Close())

	// A different key cannot decode the data.
	key2, err := transform.GenerateKey(32)
	require.NoError(t, err)
	other, err := transform.NewKeyProvider(transform.EncryptionConfig{Key: key2})
	require.NoError(t, err)
	cfg.Transform = other
	s3 := openStore(t, cfg)

	snap, ok, err := s3.Get(key("secret"))
	require.NoError(t, err)
	require.True(t, ok)
	defer snap.Close()
	_, err = snap.Bytes(SlotValue)
	assert.ErrorIs(t, err, domain.ErrStorage)
}

type failingProvider struct{}

func (failingProvider) Cipher(transform.Direction, string) (adaptive.Cipher, error) {
	return nil, assert.AnError
}

func TestStore_TransformUnavailable(t *testing.T) {
	cfg := testConfig(t.TempDir(), 1<<20)
	cfg.Transform = failingProvider{}
	s := openStore(t, cfg)

	ed, err := s.Edit(key("k"))
	require.NoError(t, err)
	defer ed.AbortUnlessCommitted()

	_, err = ed.NewWriter(SlotValue)
	assert.ErrorIs(t, err, domain.ErrTransformUnavailable)
}

func TestStore_EvictAll(t *testing.T) {
	dir := t.TempDir()
	s := openStore(t, testConfig(dir, 1<<20))
	put(t, s, "a", []byte("1"))
	put(t, s, "b", []byte("2"))

	snap, ok, err := s.Get(key("a"))
	require.NoError(t, err)
	require.True(t, ok)
	defer snap.Close()

	ed, err := s.Edit(key("c"))
	require.NoError(t, err)
	require.NoError(t, ed.Set(SlotValue, []byte("3")))

	require.NoError(t, s.EvictAll())
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, int64(0), s.Size())
	assert.Empty(t, s.Identifiers())

	assert.ErrorIs(t, ed.Set(SlotMeta, meta8), domain.ErrEditorClosed)
	assert.ErrorIs(t, ed.Commit(), domain.ErrEditorClosed)

	// Open snapshots keep reading what they captured.
	data, err := snap.Bytes(SlotValue)
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), data)

	_, err = snap.Edit()
	assert.ErrorIs(t, err, domain.ErrStale)

	put(t, s, "d", []byte("4"))
	require.NoError(t, s.Close())

	s2 := openStore(t, testConfig(dir, 1<<20))
	assert.Equal(t, []string{key("d")}, s2.Identifiers())
}

func TestSnapshot_Edit(t *testing.T) {
	s := openStore(t, testConfig(t.TempDir(), 1<<20))
	put(t, s, "k", []byte("v1"))

	snap, ok, err := s.Get(key("k"))
	require.NoError(t, err)
	require.True(t, ok)
	defer snap.Close()

	ed, err := snap.Edit()
	require.NoError(t, err)
	require.NoError(t, ed.Abort())

	// Reads do not make a snapshot stale.
	_, ok = read(t, s, "k")
	require.True(t, ok)
	ed, err = snap.Edit()
	require.NoError(t, err)
	require.NoError(t, ed.Abort())

	put(t, s, "k", []byte("v2"))
	_, err = snap.Edit()
	assert.ErrorIs(t, err, domain.ErrStale)

	old, err := snap.Bytes(SlotValue)
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), old)

	require.NoError(t, snap.Close())
	_, err = snap.Reader(SlotValue)
	assert.Error(t, err)
}

func TestSnapshot_Remove(t *testing.T) {
	s := openStore(t, testConfig(t.TempDir(), 1<<20))
	put(t, s, "k", []byte("v1"))

	stale, ok, err := s.Get(key("k"))
	require.NoError(t, err)
	require.True(t, ok)
	defer stale.Close()

	put(t, s, "k", []byte("v2"))
	removed, err := stale.Remove()
	assert.ErrorIs(t, err, domain.ErrStale)
	assert.False(t, removed)
	got, ok := read(t, s, "k")
	require.True(t, ok)
	assert.Equal(t, []byte("v2"), got)

	current, ok, err := s.Get(key("k"))
	require.NoError(t, err)
	require.True(t, ok)
	defer current.Close()

	ed, err := s.Edit(key("k"))
	require.NoError(t, err)
	_, err = current.Remove()
	assert.ErrorIs(t, err, domain.ErrBusy)
	require.NoError(t, ed.Abort())

	removed, err = current.Remove()
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Equal(t, 0, s.Len())

	removed, err = current.Remove()
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestStore_Close(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(testConfig(dir, 1<<20))
	require.NoError(t, err)
	put(t, s, "kept", []byte("v"))

	ed, err := s.Edit(key("pending"))
	require.NoError(t, err)
	require.NoError(t, ed.Set(SlotValue, []byte("x")))

	require.NoError(t, s.Healthy())
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.Healthy(), domain.ErrStoreClosed)
	assert.ErrorIs(t, ed.Commit(), domain.ErrEditorClosed)

	_, _, err = s.Get(key("kept"))
	assert.ErrorIs(t, err, domain.ErrStoreClosed)
	_, err = s.Edit(key("kept"))
	assert.ErrorIs(t, err, domain.ErrStoreClosed)
	assert.ErrorIs(t, s.Flush(), domain.ErrStoreClosed)

	s2 := openStore(t, testConfig(dir, 1<<20))
	assert.Equal(t, []string{key("kept")}, s2.Identifiers())
	for _, name := range dirFiles(t, dir) {
		assert.False(t, strings.HasSuffix(name, tmpSuffix), "temp file %s left behind", name)
	}
}

func TestStore_StatsAndFlush(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir, 1000)
	cfg.Journal.SyncMode = journal.SyncModeBatch
	s := openStore(t, cfg)
	put(t, s, "a", []byte("12"))

	ed, err := s.Edit(key("b"))
	require.NoError(t, err)
	defer ed.AbortUnlessCommitted()

	require.NoError(t, s.Flush())

	st := s.Stats()
	assert.Equal(t, dir, st.Dir)
	assert.Equal(t, int64(10), st.Size)
	assert.Equal(t, int64(1000), st.MaxSize)
	assert.Equal(t, 1, st.Entries)
	assert.Equal(t, 1, st.Editing)
	assert.Equal(t, 3, st.JournalRecords)
}

func TestStore_ConcurrentWriters(t *testing.T) {
	dir := t.TempDir()
	s := openStore(t, testConfig(dir, 1<<20))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				name := fmt.Sprintf("w%d-%d", n, j%5)
				ed, err := s.Edit(key(name))
				if err != nil {
					assert.ErrorIs(t, err, domain.ErrBusy)
					continue
				}
				assert.NoError(t, ed.Set(SlotValue, []byte(name)))
				assert.NoError(t, ed.Set(SlotMeta, meta8))
				assert.NoError(t, ed.Commit())

				if snap, ok, err := s.Get(key(name)); assert.NoError(t, err) && ok {
					data, err := snap.Bytes(SlotValue)
					assert.NoError(t, err)
					assert.Equal(t, []byte(name), data)
					snap.Close()
				}
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 40, s.Len())
	require.NoError(t, s.Close())

	s2 := openStore(t, testConfig(dir, 1<<20))
	assert.Equal(t, 40, s2.Len())
}

func TestStore_ContainsDoesNotPromote(t *testing.T) {
	s := openStore(t, testConfig(t.TempDir(), 1<<20))
	put(t, s, "a", []byte("1"))
	put(t, s, "b", []byte("2"))

	ok, err := s.Contains(key("a"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{key("a"), key("b")}, s.Identifiers())

	ok, err = s.Contains(key("zzz"))
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Contains("bad")
	assert.ErrorIs(t, err, domain.ErrInvalidIdentifier)
}
