// Package heap implements the table heap: an unordered chain of DATA
// pages linked by next_page_id/prev_page_id, addressed by (page id,
// slot) row ids. Rows are appended to the tail page, growing the chain
// on demand; updates rewrite in place when they fit and relocate to
// the tail otherwise; deletes tombstone in place.
//
// Grounded on DaemonDB's storage_engine/access/heapfile_manager (one
// HeapFile per table, insertRow/getRow/updateRow/deleteRow driving the
// buffer pool and a single growing chain of heap pages), restructured
// around the Pool's page-id chain instead of the teacher's
// file-id-plus-local-page addressing.
package heap

import (
	"kizuna/internal/kerr"
	"kizuna/internal/storage/bufferpool"
	"kizuna/internal/storage/page"
)

// RowID addresses one slot within one page of a heap chain.
type RowID struct {
	PageID uint32
	Slot   uint16
}

// Heap is a handle onto one table's page chain, caching the current
// tail so appends don't have to walk the whole chain.
type Heap struct {
	pool *bufferpool.Pool
	head uint32
	tail uint32
}

// Create allocates the first (and, for a new table, only) page of a
// fresh heap and returns its id — this is the id the catalog stores as
// the table's heap root.
func Create(pool *bufferpool.Pool) (uint32, error) {
	id, err := pool.NewPage(page.Data)
	if err != nil {
		return 0, err
	}
	if err := pool.Unpin(id, false); err != nil {
		return 0, err
	}
	return id, nil
}

// Open builds a Heap handle over an existing chain rooted at head,
// walking to the tail once up front.
func Open(pool *bufferpool.Pool, head uint32) (*Heap, error) {
	tail, err := findTail(pool, head)
	if err != nil {
		return nil, err
	}
	return &Heap{pool: pool, head: head, tail: tail}, nil
}

func findTail(pool *bufferpool.Pool, head uint32) (uint32, error) {
	id := head
	for {
		pg, err := pool.Fetch(id, true)
		if err != nil {
			return 0, err
		}
		next := pg.NextPageID()
		if err := pool.Unpin(id, false); err != nil {
			return 0, err
		}
		if next == 0 {
			return id, nil
		}
		id = next
	}
}

// Insert appends payload to the tail page, growing the chain with a
// freshly allocated page if the tail is full.
func (h *Heap) Insert(payload []byte) (RowID, error) {
	for {
		pg, err := h.pool.Fetch(h.tail, true)
		if err != nil {
			return RowID{}, err
		}
		slot, err := pg.Insert(payload)
		if err == nil {
			if err := h.pool.Unpin(h.tail, true); err != nil {
				return RowID{}, err
			}
			return RowID{PageID: h.tail, Slot: slot}, nil
		}
		if kerr.KindOf(err) != kerr.PageFull {
			h.pool.Unpin(h.tail, false)
			return RowID{}, err
		}

		// Tail is full: grow the chain and retry against the new page.
		newID, err := h.pool.NewPage(page.Data)
		if err != nil {
			h.pool.Unpin(h.tail, false)
			return RowID{}, err
		}
		newPg, err := h.pool.Fetch(newID, false)
		if err != nil {
			h.pool.Unpin(h.tail, false)
			h.pool.Unpin(newID, false)
			return RowID{}, err
		}
		newPg.SetPrevPageID(h.tail)
		if err := h.pool.Unpin(newID, true); err != nil {
			return RowID{}, err
		}

		pg.SetNextPageID(newID)
		if err := h.pool.Unpin(h.tail, true); err != nil {
			return RowID{}, err
		}
		h.tail = newID
	}
}

// Read returns a copy of the row stored at id.
func (h *Heap) Read(id RowID) ([]byte, error) {
	pg, err := h.pool.Fetch(id.PageID, true)
	if err != nil {
		return nil, err
	}
	defer h.pool.Unpin(id.PageID, false)
	return pg.Read(id.Slot)
}

// Erase tombstones the row at id.
func (h *Heap) Erase(id RowID) error {
	pg, err := h.pool.Fetch(id.PageID, true)
	if err != nil {
		return err
	}
	if err := pg.Erase(id.Slot); err != nil {
		h.pool.Unpin(id.PageID, false)
		return err
	}
	return h.pool.Unpin(id.PageID, true)
}

// UpdateResult reports whether Update rewrote the row in place or had
// to tombstone it and append a new copy at a new RowID.
type UpdateResult struct {
	RowID    RowID
	Relocated bool
}

// Update rewrites the row at id with newPayload. When the new payload
// no longer fits the slot's original allocation, the old row is
// tombstoned and newPayload is appended at the tail instead — callers
// must use the returned RowID from here on.
func (h *Heap) Update(id RowID, newPayload []byte) (UpdateResult, error) {
	pg, err := h.pool.Fetch(id.PageID, true)
	if err != nil {
		return UpdateResult{}, err
	}
	result, err := pg.Update(id.Slot, newPayload)
	if err != nil {
		h.pool.Unpin(id.PageID, false)
		return UpdateResult{}, err
	}
	if result == page.OkInPlace {
		if err := h.pool.Unpin(id.PageID, true); err != nil {
			return UpdateResult{}, err
		}
		return UpdateResult{RowID: id, Relocated: false}, nil
	}

	// Doesn't fit: tombstone the old slot and append a fresh copy.
	if err := pg.Erase(id.Slot); err != nil {
		h.pool.Unpin(id.PageID, false)
		return UpdateResult{}, err
	}
	if err := h.pool.Unpin(id.PageID, true); err != nil {
		return UpdateResult{}, err
	}
	newID, err := h.Insert(newPayload)
	if err != nil {
		return UpdateResult{}, err
	}
	return UpdateResult{RowID: newID, Relocated: true}, nil
}

// Truncate frees every page after the head and re-initializes the head
// page empty, leaving the heap's root id unchanged.
func (h *Heap) Truncate() error {
	headPg, err := h.pool.Fetch(h.head, true)
	if err != nil {
		return err
	}
	next := headPg.NextPageID()
	headPg.Init(page.Data, h.head)
	if err := h.pool.Unpin(h.head, true); err != nil {
		return err
	}

	id := next
	for id != 0 {
		pg, err := h.pool.Fetch(id, true)
		if err != nil {
			return err
		}
		nextID := pg.NextPageID()
		if err := h.pool.Unpin(id, false); err != nil {
			return err
		}
		if err := h.pool.FreePage(id); err != nil {
			return err
		}
		id = nextID
	}

	h.tail = h.head
	return nil
}

// Iterator yields every live (non-tombstoned) row in a heap, in
// chain order. It pins the page it is currently looking at only for
// the duration of a single Next() call, unpinning before it returns —
// an evicted page never invalidates an in-progress scan because the
// payload is copied out before the pin is released, and Next()
// re-fetches the page it needs on its next call.
type Iterator struct {
	pool   *bufferpool.Pool
	pageID uint32
	slot   uint16
}

// NewIterator builds an Iterator over h, starting at the head page.
func (h *Heap) NewIterator() *Iterator {
	return &Iterator{pool: h.pool, pageID: h.head}
}

// Next advances to the next live row, pinning its page only for the
// duration of the call. Returns ok=false once the chain is exhausted.
func (it *Iterator) Next() (RowID, []byte, bool, error) {
	for {
		if it.pageID == 0 {
			return RowID{}, nil, false, nil
		}
		pg, err := it.pool.Fetch(it.pageID, true)
		if err != nil {
			return RowID{}, nil, false, err
		}

		if it.slot >= pg.SlotCount() {
			nextID := pg.NextPageID()
			if err := it.pool.Unpin(it.pageID, false); err != nil {
				return RowID{}, nil, false, err
			}
			it.pageID = nextID
			it.slot = 0
			continue
		}

		slot := it.slot
		it.slot++
		payload, readErr := pg.Read(slot)
		if err := it.pool.Unpin(it.pageID, false); err != nil {
			return RowID{}, nil, false, err
		}
		if readErr != nil {
			if kerr.KindOf(readErr) == kerr.RecordNotFound {
				continue // tombstoned or stale slot, keep scanning
			}
			return RowID{}, nil, false, readErr
		}
		return RowID{PageID: it.pageID, Slot: slot}, payload, true, nil
	}
}

// Close is a no-op: Next() never leaves a page pinned between calls.
// Kept so callers can unconditionally defer it.Close() regardless of
// how the scan ended.
func (it *Iterator) Close() error {
	return nil
}
