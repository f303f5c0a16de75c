package file

import (
	"bytes"
	"path/filepath"
	"testing"

	"kizuna/internal/kconfig"
	"kizuna/internal/kerr"
)

func tempDBPath(t *testing.T) string {
	dir := t.TempDir()
	return filepath.Join(dir, "test.kz")
}

func TestOpenMissingWithoutCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.kz")
	if _, err := Open(path, false); kerr.KindOf(err) != kerr.FileNotFound {
		t.Errorf("expected FILE_NOT_FOUND, got %v", err)
	}
}

func TestAllocateWriteReadPage(t *testing.T) {
	path := tempDBPath(t)
	m, err := Open(path, true)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer m.Close()

	id, err := m.AllocatePage()
	if err != nil {
		t.Fatalf("AllocatePage: %v", err)
	}
	if id != kconfig.FirstPageID {
		t.Errorf("expected first allocated page id %d, got %d", kconfig.FirstPageID, id)
	}

	buf := make([]byte, kconfig.PageSize)
	for i := range buf {
		buf[i] = byte(i % 256)
	}
	if err := m.WritePage(id, buf); err != nil {
		t.Fatalf("WritePage: %v", err)
	}

	got := make([]byte, kconfig.PageSize)
	if err := m.ReadPage(id, got); err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	if !bytes.Equal(got, buf) {
		t.Error("read-back page does not match what was written")
	}
}

func TestReadPageBeyondEnd(t *testing.T) {
	path := tempDBPath(t)
	m, err := Open(path, true)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer m.Close()

	buf := make([]byte, kconfig.PageSize)
	if err := m.ReadPage(5, buf); kerr.KindOf(err) != kerr.PageNotFound {
		t.Errorf("expected PAGE_NOT_FOUND, got %v", err)
	}
}

func TestPageCountGrowsWithAllocation(t *testing.T) {
	path := tempDBPath(t)
	m, err := Open(path, true)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer m.Close()

	for i := 0; i < 3; i++ {
		if _, err := m.AllocatePage(); err != nil {
			t.Fatalf("AllocatePage #%d: %v", i, err)
		}
	}
	count, err := m.PageCount()
	if err != nil {
		t.Fatalf("PageCount: %v", err)
	}
	if count != 3 {
		t.Errorf("expected PageCount 3, got %d", count)
	}
}

func TestReopenPreservesData(t *testing.T) {
	path := tempDBPath(t)
	m1, err := Open(path, true)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	id, _ := m1.AllocatePage()
	buf := bytes.Repeat([]byte{0x7A}, kconfig.PageSize)
	if err := m1.WritePage(id, buf); err != nil {
		t.Fatalf("WritePage: %v", err)
	}
	if err := m1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	m2, err := Open(path, false)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer m2.Close()
	got := make([]byte, kconfig.PageSize)
	if err := m2.ReadPage(id, got); err != nil {
		t.Fatalf("ReadPage after reopen: %v", err)
	}
	if !bytes.Equal(got, buf) {
		t.Error("data did not survive close/reopen")
	}
}

func TestRejectsWrongSizedBuffer(t *testing.T) {
	path := tempDBPath(t)
	m, err := Open(path, true)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer m.Close()

	if err := m.WritePage(1, make([]byte, 10)); kerr.KindOf(err) != kerr.InvalidArgument {
		t.Errorf("expected INVALID_ARGUMENT, got %v", err)
	}
}
