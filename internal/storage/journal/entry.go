package journal

import (
	"errors"
	"time"
)

// File names inside a cache directory.
const (
	FileName       = "journal"
	TempFileName   = "journal.tmp"
	BackupFileName = "journal.bkp"
)

// File format constants.
const (
	MagicBytes      = "DSKCJRN\x01"
	MagicBytesSize  = 8
	FormatVersion   = 1
	DefaultFilePerm = 0600
	DefaultDirPerm  = 0750

	// headerSize is the size of a record header: length (4) + crc (4).
	headerSize = 8

	// maxHeaderLength bounds the journal header JSON.
	maxHeaderLength = 4 << 10

	// maxRecordLength bounds one record frame.
	maxRecordLength = 1 << 20
)

// Default configuration values.
const (
	DefaultSyncInterval        = time.Second
	DefaultCompactMinRedundant = 2000
	DefaultCompactRatio        = 1
)

// Errors for journal operations.
var (
	ErrInvalidMagic     = errors.New("journal: invalid magic bytes")
	ErrInvalidHeader    = errors.New("journal: invalid header")
	ErrCorruptedEntry   = errors.New("journal: corrupted record")
	ErrChecksumMismatch = errors.New("journal: checksum mismatch")
	ErrInvalidEntryType = errors.New("journal: invalid record type")
	ErrTornRecord       = errors.New("journal: torn final record")
	ErrClosed           = errors.New("journal: writer is closed")
)

// OpType is the type of a journal record.
type OpType uint8

const (
	OpTypeUnspecified OpType = iota
	OpTypeCreate
	OpTypeCommit
	OpTypeRemove
	OpTypeRead
)

func (o OpType) String() string {
	switch o {
	case OpTypeCreate:
		return "CREATE"
	case OpTypeCommit:
		return "COMMIT"
	case OpTypeRemove:
		return "REMOVE"
	case OpTypeRead:
		return "READ"
	default:
		return "UNSPECIFIED"
	}
}

// Header identifies the layout a journal was written for.
type Header struct {
	Format     int `json:"format"`
	AppVersion int `json:"app_version"`
	Slots      int `json:"slots"`
}

// NewHeader returns the header for the current format.
func NewHeader(appVersion, slots int) Header {
	return Header{Format: FormatVersion, AppVersion: appVersion, Slots: slots}
}

// Record is one durable lifecycle transition.
type Record struct {
	Op      OpType
	ID      string
	Seq     uint64
	Lengths []int64
}

// NewCreateRecord creates a CREATE record.
func NewCreateRecord(id string, seq uint64) Record {
	return Record{Op: OpTypeCreate, ID: id, Seq: seq}
}

// NewCommitRecord creates a COMMIT record carrying the committed slot lengths.
func NewCommitRecord(id string, seq uint64, lengths []int64) Record {
	return Record{Op: OpTypeCommit, ID: id, Seq: seq, Lengths: append([]int64(nil), lengths...)}
}

// NewRemoveRecord creates a REMOVE record.
func NewRemoveRecord(id string, seq uint64) Record {
	return Record{Op: OpTypeRemove, ID: id, Seq: seq}
}

// NewReadRecord creates a READ record.
func NewReadRecord(id string, seq uint64) Record {
	return Record{Op: OpTypeRead, ID: id, Seq: seq}
}

// SyncMode defines how the journal reaches stable storage.
type SyncMode string

const (
	// SyncModeSync fsyncs after every append.
	SyncModeSync SyncMode = "sync"
	// SyncModeBatch fsyncs on a timer; appends still reach the OS immediately.
	SyncModeBatch SyncMode = "batch"
)

// Config configures journal durability and compaction.
type Config struct {
	SyncMode     SyncMode
	SyncInterval time.Duration

	// CompactMinRedundant is the minimum number of redundant records
	// before a rewrite is considered.
	CompactMinRedundant int

	// CompactRatio rewrites once redundant records reach this multiple of
	// the live entry count.
	CompactRatio int
}

// DefaultConfig returns the default journal configuration.
func DefaultConfig() Config {
	return Config{
		SyncMode:            SyncModeSync,
		SyncInterval:        DefaultSyncInterval,
		CompactMinRedundant: DefaultCompactMinRedundant,
		CompactRatio:        DefaultCompactRatio,
	}
}

// ApplyDefaults fills zero fields with defaults.
func (c *Config) ApplyDefaults() {
	if c.SyncMode == "" {
		c.SyncMode = SyncModeSync
	}
	if c.SyncInterval <= 0 {
		c.SyncInterval = DefaultSyncInterval
	}
	if c.CompactMinRedundant <= 0 {
		c.CompactMinRedundant = DefaultCompactMinRedundant
	}
	if c.CompactRatio <= 0 {
		c.CompactRatio = DefaultCompactRatio
	}
}

// NeedsCompaction reports whether a journal with the given record count and
// live entry count should be rewritten.
func (c Config) NeedsCompaction(records, live int) bool {
	redundant := records - live
	return redundant >= c.CompactMinRedundant && redundant >= c.CompactRatio*live
}
