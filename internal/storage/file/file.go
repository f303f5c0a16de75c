// Package file owns the single on-disk database file: opening it,
// reading and writing whole pages at their fixed offset, and appending
// new pages.
//
// Grounded on DaemonDB's storage_engine/disk_manager, simplified from
// its multi-file (fileID, localPageNum) scheme to the single-file model
// spec.md §3/§4.A calls for: one file, 1-based page ids, physical
// offset (id-1)*PageSize. File.Sync mirrors disk_manager's fsync-on-
// write-page policy (spec.md §7: "File writes fsync at the file-manager
// boundary on every page write").
package file

import (
	"io"
	"os"

	"kizuna/internal/kconfig"
	"kizuna/internal/kerr"
)

// Manager owns the OS file handle for one database file.
type Manager struct {
	f    *os.File
	path string
}

// Open opens path, creating it if createIfMissing is set and it does
// not exist.
func Open(path string, createIfMissing bool) (*Manager, error) {
	flags := os.O_RDWR
	if createIfMissing {
		flags |= os.O_CREATE
	}
	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, kerr.Wrap(err, kerr.FileNotFound, "database file not found").With("path", path)
		}
		if os.IsPermission(err) {
			return nil, kerr.Wrap(err, kerr.PermissionDenied, "permission denied opening database file").With("path", path)
		}
		return nil, kerr.Wrap(err, kerr.IOError, "failed to open database file").With("path", path)
	}
	return &Manager{f: f, path: path}, nil
}

// Close closes the underlying file handle.
func (m *Manager) Close() error {
	if m.f == nil {
		return nil
	}
	return m.f.Close()
}

// SizeBytes returns the current file size.
func (m *Manager) SizeBytes() (int64, error) {
	info, err := m.f.Stat()
	if err != nil {
		return 0, kerr.Wrap(err, kerr.IOError, "failed to stat database file")
	}
	return info.Size(), nil
}

// PageCount returns the number of whole pages currently in the file.
func (m *Manager) PageCount() (int64, error) {
	size, err := m.SizeBytes()
	if err != nil {
		return 0, err
	}
	return size / kconfig.PageSize, nil
}

func offsetFor(id uint32) int64 {
	return int64(id-1) * kconfig.PageSize
}

// ReadPage reads exactly kconfig.PageSize bytes for page id into buf.
func (m *Manager) ReadPage(id uint32, buf []byte) error {
	if id < kconfig.FirstPageID {
		return kerr.New(kerr.InvalidArgument, "page id must be >= 1")
	}
	if len(buf) != kconfig.PageSize {
		return kerr.New(kerr.InvalidArgument, "read buffer must be exactly PageSize bytes")
	}

	size, err := m.SizeBytes()
	if err != nil {
		return err
	}
	offset := offsetFor(id)
	if offset+kconfig.PageSize > size {
		return kerr.New(kerr.PageNotFound, "page not found").With("page_id", id)
	}

	n, err := m.f.ReadAt(buf, offset)
	if err != nil && err != io.EOF {
		return kerr.Wrap(err, kerr.ReadError, "failed to read page").With("page_id", id)
	}
	if n != kconfig.PageSize {
		return kerr.New(kerr.ReadError, "short read").With("page_id", id).With("bytes", n)
	}
	return nil
}

// WritePage writes buf (exactly kconfig.PageSize bytes) to page id,
// growing the file if the offset lies beyond the current end, and
// fsyncs before returning.
func (m *Manager) WritePage(id uint32, buf []byte) error {
	if id < kconfig.FirstPageID {
		return kerr.New(kerr.InvalidArgument, "page id must be >= 1")
	}
	if len(buf) != kconfig.PageSize {
		return kerr.New(kerr.InvalidArgument, "write buffer must be exactly PageSize bytes")
	}

	offset := offsetFor(id)
	if _, err := m.f.WriteAt(buf, offset); err != nil {
		return kerr.Wrap(err, kerr.WriteError, "failed to write page").With("page_id", id)
	}
	if err := m.f.Sync(); err != nil {
		return kerr.Wrap(err, kerr.IOError, "failed to fsync database file").With("page_id", id)
	}
	return nil
}

// AllocatePage appends one zero-filled page and returns its new 1-based id.
func (m *Manager) AllocatePage() (uint32, error) {
	count, err := m.PageCount()
	if err != nil {
		return 0, err
	}
	newID := uint32(count) + 1
	zero := make([]byte, kconfig.PageSize)
	if err := m.WritePage(newID, zero); err != nil {
		return 0, err
	}
	return newID, nil
}
