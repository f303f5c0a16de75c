package bufferpool

import (
	"encoding/binary"

	"kizuna/internal/kconfig"
	"kizuna/internal/kerr"
	"kizuna/internal/storage/page"
)

// Trunk page body layout, starting at page.HeaderSize: u32
// next_trunk_id, u32 leaf_count, then up to trunkCapacity leaf page ids.
const (
	trunkOffNextTrunkID = 0
	trunkOffLeafCount   = 4
	trunkLeafArrayStart = 8
)

// trunkCapacity is the number of leaf ids a trunk page can hold.
const trunkCapacity = (kconfig.PageSize - page.HeaderSize - 8) / 4

func trunkNextID(pg *page.Page) uint32  { return metaField(pg, trunkOffNextTrunkID) }
func trunkLeafCount(pg *page.Page) uint32 { return metaField(pg, trunkOffLeafCount) }
func setTrunkNextID(pg *page.Page, v uint32)  { setMetaField(pg, trunkOffNextTrunkID, v) }
func setTrunkLeafCount(pg *page.Page, v uint32) { setMetaField(pg, trunkOffLeafCount, v) }

func trunkLeafAt(pg *page.Page, i uint32) uint32 {
	off := page.HeaderSize + trunkLeafArrayStart + int(i)*4
	return binary.LittleEndian.Uint32(pg.Buf[off:])
}

func setTrunkLeafAt(pg *page.Page, i uint32, id uint32) {
	off := page.HeaderSize + trunkLeafArrayStart + int(i)*4
	binary.LittleEndian.PutUint32(pg.Buf[off:], id)
}

// NewPage allocates a page id — reused from the freelist if one is
// available, otherwise appended to the file — initializes it as t, and
// returns it pinned. The caller must Unpin it when done.
func (p *Pool) NewPage(t page.Type) (uint32, error) {
	id, err := p.allocatePageID()
	if err != nil {
		return 0, err
	}

	pg, err := p.Fetch(id, true)
	if err != nil {
		return 0, err
	}
	pg.Init(t, id)
	if err := p.MarkDirty(id); err != nil {
		return 0, err
	}
	if err := p.Flush(id); err != nil {
		return 0, err
	}
	return id, nil
}

// allocatePageID implements spec.md §4.D's new_page id-selection
// algorithm: pop a leaf from the head trunk, or take the trunk itself
// once it is drained, before falling back to growing the file.
func (p *Pool) allocatePageID() (uint32, error) {
	p.metaMu.Lock()
	defer p.metaMu.Unlock()

	if p.firstTrunkID != 0 && p.freeCount > 0 {
		trunkID := p.firstTrunkID
		pg, err := p.Fetch(trunkID, true)
		if err != nil {
			return 0, err
		}

		leafCount := trunkLeafCount(pg)
		var id uint32
		if leafCount > 0 {
			id = trunkLeafAt(pg, leafCount-1)
			setTrunkLeafCount(pg, leafCount-1)
			if err := p.Unpin(trunkID, true); err != nil {
				return 0, err
			}
		} else {
			id = trunkID
			p.firstTrunkID = trunkNextID(pg)
			if err := p.Unpin(trunkID, false); err != nil {
				return 0, err
			}
		}

		p.freeCount--
		if err := p.persistMetadata(); err != nil {
			return 0, err
		}
		return id, nil
	}

	return p.fm.AllocatePage()
}

// FreePage returns id to the freelist: it is rejected for the metadata
// page, re-initialized as FREE, then appended as a leaf of the head
// trunk (or promoted to be the new head trunk when the current one is
// full).
func (p *Pool) FreePage(id uint32) error {
	if id == metadataPageID {
		return kerr.New(kerr.InvalidArgument, "cannot free the metadata page")
	}

	pg, err := p.Fetch(id, true)
	if err != nil {
		return err
	}
	pg.Init(page.Free, id)

	p.metaMu.Lock()
	defer p.metaMu.Unlock()

	if p.firstTrunkID != 0 {
		trunkPg, err := p.Fetch(p.firstTrunkID, true)
		if err != nil {
			p.Unpin(id, true)
			return err
		}
		leafCount := trunkLeafCount(trunkPg)
		if leafCount < trunkCapacity {
			setTrunkLeafAt(trunkPg, leafCount, id)
			setTrunkLeafCount(trunkPg, leafCount+1)
			if err := p.Unpin(p.firstTrunkID, true); err != nil {
				p.Unpin(id, true)
				return err
			}
			if err := p.Unpin(id, true); err != nil {
				return err
			}
		} else {
			// Trunk is full: the freed page itself becomes the new head trunk.
			if err := p.Unpin(p.firstTrunkID, false); err != nil {
				p.Unpin(id, true)
				return err
			}
			setTrunkNextID(pg, p.firstTrunkID)
			setTrunkLeafCount(pg, 0)
			p.firstTrunkID = id
			if err := p.Unpin(id, true); err != nil {
				return err
			}
		}
	} else {
		setTrunkNextID(pg, 0)
		setTrunkLeafCount(pg, 0)
		p.firstTrunkID = id
		if err := p.Unpin(id, true); err != nil {
			return err
		}
	}

	p.freeCount++
	return p.persistMetadata()
}
