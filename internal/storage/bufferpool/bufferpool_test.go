package bufferpool

import (
	"path/filepath"
	"testing"

	"kizuna/internal/kconfig"
	"kizuna/internal/kerr"
	"kizuna/internal/klog"
	"kizuna/internal/storage/file"
	"kizuna/internal/storage/page"
)

func openPool(t *testing.T, capacity int) (*Pool, *file.Manager) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.kz")
	fm, err := file.Open(path, true)
	if err != nil {
		t.Fatalf("file.Open: %v", err)
	}
	pool, err := Open(fm, capacity, klog.Nop{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return pool, fm
}

func TestBootstrapFreshMetadata(t *testing.T) {
	pool, fm := openPool(t, 8)
	defer fm.Close()

	if pool.CatalogTablesRoot() == 0 {
		t.Error("expected a nonzero catalog tables root after bootstrap")
	}
	if pool.CatalogColumnsRoot() == 0 {
		t.Error("expected a nonzero catalog columns root after bootstrap")
	}
	if pool.CatalogTablesRoot() == pool.CatalogColumnsRoot() {
		t.Error("catalog tables and columns roots must be distinct pages")
	}
	if pool.FreeCount() != 0 {
		t.Errorf("expected empty freelist on fresh database, got %d", pool.FreeCount())
	}
}

func TestNewPageFetchUnpinRoundTrip(t *testing.T) {
	pool, fm := openPool(t, 8)
	defer fm.Close()

	id, err := pool.NewPage(page.Data)
	if err != nil {
		t.Fatalf("NewPage: %v", err)
	}

	pg, err := pool.Fetch(id, true)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if pg.Type() != page.Data {
		t.Errorf("expected Data page, got %v", pg.Type())
	}
	if _, err := pg.Insert([]byte("hello")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := pool.Unpin(id, true); err != nil {
		t.Fatalf("Unpin: %v", err)
	}

	// Re-fetch should see the mutation, still cached.
	pg2, err := pool.Fetch(id, true)
	if err != nil {
		t.Fatalf("re-Fetch: %v", err)
	}
	got, err := pg2.Read(0)
	if err != nil || string(got) != "hello" {
		t.Errorf("expected mutation to survive unpin/refetch, got %q err=%v", got, err)
	}
	pool.Unpin(id, false)
}

func TestUnpinOfUnpinnedPage(t *testing.T) {
	pool, fm := openPool(t, 8)
	defer fm.Close()

	id, err := pool.NewPage(page.Data)
	if err != nil {
		t.Fatalf("NewPage: %v", err)
	}
	// NewPage hands the page back pinned once; release that pin first.
	if err := pool.Unpin(id, false); err != nil {
		t.Fatalf("first Unpin: %v", err)
	}
	if err := pool.Unpin(id, false); kerr.KindOf(err) != kerr.PageLocked {
		t.Errorf("expected PAGE_LOCKED, got %v", err)
	}
}

func TestUnpinUnknownPageIsNotFound(t *testing.T) {
	pool, fm := openPool(t, 8)
	defer fm.Close()

	if err := pool.Unpin(999, false); kerr.KindOf(err) != kerr.PageNotFound {
		t.Errorf("expected PAGE_NOT_FOUND, got %v", err)
	}
}

func TestEvictionRefusesWhenAllPinned(t *testing.T) {
	pool, fm := openPool(t, 2)
	defer fm.Close()

	// Bootstrap leaves only unpinned pages resident; pin capacity worth
	// of fresh pages so that no frame is left to evict.
	ids := make([]uint32, 0, 2)
	for i := 0; i < 2; i++ {
		id, err := pool.NewPage(page.Data)
		if err != nil {
			t.Fatalf("NewPage #%d: %v", i, err)
		}
		if _, err := pool.Fetch(id, true); err != nil {
			t.Fatalf("Fetch #%d: %v", i, err)
		}
		ids = append(ids, id)
	}

	extra, err := pool.fm.AllocatePage()
	if err != nil {
		t.Fatalf("AllocatePage: %v", err)
	}
	if _, err := pool.Fetch(extra, true); kerr.KindOf(err) != kerr.CacheFull {
		t.Errorf("expected CACHE_FULL when every frame is pinned, got %v", err)
	}

	for _, id := range ids {
		pool.Unpin(id, false)
	}
}

func TestFreePageReuseRoundTrip(t *testing.T) {
	pool, fm := openPool(t, 8)
	defer fm.Close()

	id, err := pool.NewPage(page.Data)
	if err != nil {
		t.Fatalf("NewPage: %v", err)
	}
	if err := pool.FreePage(id); err != nil {
		t.Fatalf("FreePage: %v", err)
	}
	if pool.FreeCount() != 1 {
		t.Errorf("expected freelist count 1 after freeing, got %d", pool.FreeCount())
	}
	if pool.FirstTrunkID() != id {
		t.Errorf("expected freed page to become the head trunk, got trunk %d want %d", pool.FirstTrunkID(), id)
	}

	reused, err := pool.NewPage(page.Data)
	if err != nil {
		t.Fatalf("NewPage (reuse): %v", err)
	}
	if reused != id {
		t.Errorf("expected freelist reuse to hand back page %d, got %d", id, reused)
	}
	if pool.FreeCount() != 0 {
		t.Errorf("expected freelist count 0 after reuse, got %d", pool.FreeCount())
	}
}

func TestFreePageRejectsMetadataPage(t *testing.T) {
	pool, fm := openPool(t, 8)
	defer fm.Close()

	if err := pool.FreePage(metadataPageID); kerr.KindOf(err) != kerr.InvalidArgument {
		t.Errorf("expected INVALID_ARGUMENT, got %v", err)
	}
}

func TestFlushAllWritesEveryDirtyFrame(t *testing.T) {
	pool, fm := openPool(t, 8)
	defer fm.Close()

	id, err := pool.NewPage(page.Data)
	if err != nil {
		t.Fatalf("NewPage: %v", err)
	}
	pg, err := pool.Fetch(id, true)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	pg.Insert([]byte("dirty"))
	if err := pool.Unpin(id, true); err != nil {
		t.Fatalf("Unpin: %v", err)
	}
	if err := pool.FlushAll(); err != nil {
		t.Fatalf("FlushAll: %v", err)
	}

	buf := make([]byte, kconfig.PageSize)
	if err := fm.ReadPage(id, buf); err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
}

func TestMetadataSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reopen.kz")

	fm1, err := file.Open(path, true)
	if err != nil {
		t.Fatalf("file.Open: %v", err)
	}
	pool1, err := Open(fm1, 8, klog.Nop{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	tablesRoot := pool1.CatalogTablesRoot()
	tableID, err := pool1.AllocateTableID()
	if err != nil {
		t.Fatalf("AllocateTableID: %v", err)
	}
	if err := fm1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	fm2, err := file.Open(path, false)
	if err != nil {
		t.Fatalf("reopen file.Open: %v", err)
	}
	defer fm2.Close()
	pool2, err := Open(fm2, 8, klog.Nop{})
	if err != nil {
		t.Fatalf("reopen Open: %v", err)
	}
	if pool2.CatalogTablesRoot() != tablesRoot {
		t.Errorf("catalog tables root did not survive reopen: got %d want %d", pool2.CatalogTablesRoot(), tablesRoot)
	}
	nextID, err := pool2.AllocateTableID()
	if err != nil {
		t.Fatalf("AllocateTableID after reopen: %v", err)
	}
	if nextID != tableID+1 {
		t.Errorf("expected next table id %d after reopen, got %d", tableID+1, nextID)
	}
}
