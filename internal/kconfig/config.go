// Package kconfig holds the tuning constants for the storage engine.
//
// These mirror the constexpr table the original C++ engine kept in
// common/config.h: one place that fixes page geometry, cache sizing,
// and the conventional on-disk layout, instead of scattering magic
// numbers through the storage and catalog packages.
package kconfig

const (
	// PageSize is the fixed size of every page on disk and in the buffer pool.
	PageSize = 4096

	// PageHeaderSize is the size in bytes of the page header common to
	// every page type (page id, sibling ids, slot bookkeeping, type/flags, lsn).
	PageHeaderSize = 24

	// MaxRecordSize bounds a single encoded record: page size minus the
	// header and a 16-byte safety margin for slot-directory growth.
	MaxRecordSize = PageSize - PageHeaderSize - 16

	// MaxRecordsPerPage is the theoretical ceiling imposed by the
	// uint16 slot count field.
	MaxRecordsPerPage = 65535

	// DefaultCacheSize is the default buffer pool capacity in frames.
	DefaultCacheSize = 100

	// MaxCacheSize bounds how large a buffer pool capacity is accepted.
	MaxCacheSize = 10000

	// FirstPageID is the lowest valid page id; 0 means "invalid".
	FirstPageID = 1

	// InvalidPageID marks the absence of a page reference.
	InvalidPageID = 0

	// MaxTableNameLength and MaxColumnNameLength bound catalog identifiers.
	MaxTableNameLength  = 255
	MaxColumnNameLength = 255

	// MaxColumnsPerTable bounds how wide a single table may be.
	MaxColumnsPerTable = 1024

	// MaxVarcharLength bounds a declared VARCHAR(n) length.
	MaxVarcharLength = 65535

	// DefaultLogFile is the log file name used when none is configured.
	DefaultLogFile = "kizuna.log"

	// MaxLogFileSizeMB triggers rotation once the active log file
	// crosses this size.
	MaxLogFileSizeMB = 10

	// MaxLogFiles is the number of rotated copies kept (N-1 plus the
	// active file).
	MaxLogFiles = 5

	// DBFileExtension is the conventional extension for the single
	// database file this engine owns.
	DBFileExtension = ".kz"

	// DefaultDBDir is the conventional directory database files live under.
	DefaultDBDir = "./data/"
)

// IsValidPageSize reports whether size is an acceptable page size: a
// power of two between 512 and 65536 bytes.
func IsValidPageSize(size int) bool {
	return size >= 512 && size <= 65536 && size&(size-1) == 0
}

// IsValidCacheSize reports whether capacity is an acceptable buffer
// pool capacity.
func IsValidCacheSize(capacity int) bool {
	return capacity > 0 && capacity <= MaxCacheSize
}

// Options configures an engine instance. The zero value is not usable;
// construct with Default and override fields as needed.
type Options struct {
	// BufferPoolCapacity is the number of frames the buffer pool holds.
	BufferPoolCapacity int
	// LogPath is the file the engine's logger writes to (it also echoes
	// to stderr). Empty disables logging entirely (the engine uses a
	// no-op logger).
	LogPath string
}

// Default returns the engine options the teacher's own constructors use
// when nothing else is specified.
func Default() Options {
	return Options{
		BufferPoolCapacity: DefaultCacheSize,
		LogPath:            DefaultLogFile,
	}
}

// SidecarPath returns the conventional sidecar file path DDL touches on
// CREATE TABLE and removes on DROP TABLE, derived from a table id.
func SidecarPath(dbDir string, tableID uint32) string {
	return dbDir + "/table_" + uitoa(tableID) + ".tbl"
}

func uitoa(v uint32) string {
	if v == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
