package bufferpool

import (
	"encoding/binary"

	"kizuna/internal/kerr"
	"kizuna/internal/storage/page"
)

// Metadata page body layout, starting at page.HeaderSize, per spec.md §6.
const (
	metaOffMagic              = 0
	metaOffVersion             = 4
	metaOffFirstTrunkID        = 8
	metaOffFreeCount           = 12
	metaOffCatalogTablesRoot   = 16
	metaOffCatalogColumnsRoot  = 20
	metaOffNextTableID         = 24

	metadataMagic   = 0x4B5A464D // "KZFM"
	currentVersion  = 2
	metadataPageID  = 1
)

func metaField(pg *page.Page, off int) uint32 {
	return binary.LittleEndian.Uint32(pg.Buf[page.HeaderSize+off:])
}

func setMetaField(pg *page.Page, off int, v uint32) {
	binary.LittleEndian.PutUint32(pg.Buf[page.HeaderSize+off:], v)
}

// bootstrapMetadata reads or initializes page 1, populating the pool's
// in-memory metadata fields.
func (p *Pool) bootstrapMetadata() error {
	count, err := p.fm.PageCount()
	if err != nil {
		return err
	}

	if count == 0 {
		return p.initFreshMetadata()
	}

	pg, err := p.Fetch(metadataPageID, true)
	if err != nil {
		return err
	}
	defer p.Unpin(metadataPageID, false)

	if metaField(pg, metaOffMagic) != metadataMagic {
		return p.rewriteMetadataDefaults(pg)
	}

	p.firstTrunkID = metaField(pg, metaOffFirstTrunkID)
	p.freeCount = metaField(pg, metaOffFreeCount)
	p.catalogTablesRoot = metaField(pg, metaOffCatalogTablesRoot)
	p.catalogColumnsRoot = metaField(pg, metaOffCatalogColumnsRoot)
	p.nextTableID = metaField(pg, metaOffNextTableID)
	version := metaField(pg, metaOffVersion)

	needsUpgrade := version < currentVersion || p.catalogTablesRoot == 0 || p.catalogColumnsRoot == 0 || p.nextTableID == 0
	if !needsUpgrade {
		return nil
	}
	return p.upgradeMetadata()
}

// initFreshMetadata handles the brand-new-file bootstrap: allocate
// page 1 as METADATA, allocate two empty DATA pages for the catalog
// roots, and persist next_table_id = 1 with an empty freelist.
func (p *Pool) initFreshMetadata() error {
	id, err := p.fm.AllocatePage()
	if err != nil {
		return err
	}
	if id != metadataPageID {
		return kerr.New(kerr.InternalError, "expected first allocated page to be the metadata page")
	}

	pg, err := p.Fetch(metadataPageID, true)
	if err != nil {
		return err
	}
	pg.Init(page.Metadata, metadataPageID)
	p.Unpin(metadataPageID, true)
	if err := p.Flush(metadataPageID); err != nil {
		return err
	}

	p.firstTrunkID = 0
	p.freeCount = 0
	p.nextTableID = 1
	p.catalogTablesRoot = 0
	p.catalogColumnsRoot = 0
	if err := p.persistMetadata(); err != nil {
		return err
	}

	tablesRoot, err := p.NewPage(page.Data)
	if err != nil {
		return err
	}
	p.Unpin(tablesRoot, false)

	columnsRoot, err := p.NewPage(page.Data)
	if err != nil {
		return err
	}
	p.Unpin(columnsRoot, false)

	p.catalogTablesRoot = tablesRoot
	p.catalogColumnsRoot = columnsRoot
	return p.persistMetadata()
}

// rewriteMetadataDefaults handles a page 1 whose magic doesn't match:
// treat it like a fresh database.
func (p *Pool) rewriteMetadataDefaults(pg *page.Page) error {
	pg.Init(page.Metadata, metadataPageID)
	p.firstTrunkID = 0
	p.freeCount = 0
	p.nextTableID = 1
	p.catalogTablesRoot = 0
	p.catalogColumnsRoot = 0
	if err := p.persistMetadata(); err != nil {
		return err
	}
	return p.upgradeMetadata()
}

// upgradeMetadata fills in anything a pre-V2 (or partially-initialized)
// metadata page is missing: catalog roots and next_table_id.
func (p *Pool) upgradeMetadata() error {
	if p.catalogTablesRoot == 0 {
		id, err := p.NewPage(page.Data)
		if err != nil {
			return err
		}
		p.Unpin(id, false)
		p.catalogTablesRoot = id
	}
	if p.catalogColumnsRoot == 0 {
		id, err := p.NewPage(page.Data)
		if err != nil {
			return err
		}
		p.Unpin(id, false)
		p.catalogColumnsRoot = id
	}
	if p.nextTableID == 0 {
		p.nextTableID = 1
	}
	return p.persistMetadata()
}

// persistMetadata writes the in-memory metadata fields back to page 1
// and flushes immediately, so every metadata mutation is durable
// before the call that made it returns (spec.md §4.D, §9).
func (p *Pool) persistMetadata() error {
	pg, err := p.Fetch(metadataPageID, true)
	if err != nil {
		return err
	}
	setMetaField(pg, metaOffMagic, metadataMagic)
	setMetaField(pg, metaOffVersion, currentVersion)
	setMetaField(pg, metaOffFirstTrunkID, p.firstTrunkID)
	setMetaField(pg, metaOffFreeCount, p.freeCount)
	setMetaField(pg, metaOffCatalogTablesRoot, p.catalogTablesRoot)
	setMetaField(pg, metaOffCatalogColumnsRoot, p.catalogColumnsRoot)
	setMetaField(pg, metaOffNextTableID, p.nextTableID)

	if err := p.Unpin(metadataPageID, true); err != nil {
		return err
	}
	return p.Flush(metadataPageID)
}

// CatalogTablesRoot and CatalogColumnsRoot expose the catalog root
// fields the catalog manager needs. AllocateTableID hands out
// next_table_id and persists the incremented counter before returning,
// matching the "metadata
// updates are observable and replaceable" design note.
func (p *Pool) CatalogTablesRoot() uint32  { return p.catalogTablesRoot }
func (p *Pool) CatalogColumnsRoot() uint32 { return p.catalogColumnsRoot }

func (p *Pool) AllocateTableID() (uint32, error) {
	p.metaMu.Lock()
	defer p.metaMu.Unlock()
	id := p.nextTableID
	p.nextTableID++
	if err := p.persistMetadata(); err != nil {
		p.nextTableID--
		return 0, err
	}
	return id, nil
}

// FreeCount exposes the freelist's current page count, for tests and
// the engine's Stats.
func (p *Pool) FreeCount() uint32 { return p.freeCount }

// FirstTrunkID exposes the freelist head, for tests.
func (p *Pool) FirstTrunkID() uint32 { return p.firstTrunkID }
