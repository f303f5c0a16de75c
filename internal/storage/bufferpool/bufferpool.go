// Package bufferpool is the frame cache sitting between the page
// format and the file manager: fixed-capacity frames, LRU eviction
// over unpinned frames, pin counting, dirty tracking, and the
// persistent metadata page (magic, freelist head, catalog roots,
// next_table_id) that makes those roots durable across reopen.
//
// Grounded on DaemonDB's storage_engine/bufferpool (map[pageID]*Page +
// a slice-based LRU list + a disk manager reference), restructured to
// spec.md §4.D's fixed-capacity frame table with explicit pin/dirty
// semantics and a SQLite-style linked-trunk freelist instead of the
// teacher's unbounded map and file-manager-owned page ids.
package bufferpool

import (
	"sync"

	"kizuna/internal/kconfig"
	"kizuna/internal/kerr"
	"kizuna/internal/klog"
	"kizuna/internal/storage/file"
	"kizuna/internal/storage/page"
)

type frame struct {
	pageID   uint32
	buf      *page.Page
	dirty    bool
	pinCount int
}

func (f *frame) free() bool { return f.pageID == 0 }

// Pool is the fixed-capacity buffer pool. The zero value is not
// usable; construct with Open.
type Pool struct {
	mu     sync.Mutex
	fm     *file.Manager
	log    klog.Logger
	frames []frame
	index  map[uint32]int // page id -> frame slot
	lru    []int          // frame slot indices; front = most recently used
	freeSl []int          // unoccupied frame slots

	// metaMu guards the metadata fields below, independent of mu:
	// freelist/catalog-root bookkeeping reads and writes trunk/metadata
	// pages through Fetch/Unpin, which take mu themselves, so metadata
	// field access cannot share that lock without risking self-deadlock
	// on re-entrant calls.
	metaMu sync.Mutex

	// metadata, mirrored from page 1 on every mutation.
	firstTrunkID       uint32
	freeCount          uint32
	catalogTablesRoot  uint32
	catalogColumnsRoot uint32
	nextTableID        uint32
}

// Open builds a Pool of the given frame capacity over fm, bootstrapping
// or upgrading the metadata page as described in spec.md §4.D.
func Open(fm *file.Manager, capacity int, log klog.Logger) (*Pool, error) {
	if !kconfig.IsValidCacheSize(capacity) {
		return nil, kerr.New(kerr.InvalidArgument, "invalid buffer pool capacity")
	}
	if log == nil {
		log = klog.Nop{}
	}

	p := &Pool{
		fm:     fm,
		log:    log,
		frames: make([]frame, capacity),
		index:  make(map[uint32]int, capacity),
		lru:    make([]int, 0, capacity),
		freeSl: make([]int, capacity),
	}
	for i := 0; i < capacity; i++ {
		p.freeSl[i] = i
	}

	if err := p.bootstrapMetadata(); err != nil {
		return nil, err
	}
	return p, nil
}

// Fetch loads page id into the cache (if it isn't already resident)
// and, when pin is true, increments its pin count. Callers that pin
// must later call Unpin exactly once per Fetch(pin=true).
func (p *Pool) Fetch(id uint32, pin bool) (*page.Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if idx, ok := p.index[id]; ok {
		f := &p.frames[idx]
		if pin {
			f.pinCount++
			p.removeFromLRU(idx)
		} else if f.pinCount == 0 {
			p.moveToLRUFront(idx)
		}
		return f.buf, nil
	}

	idx, err := p.obtainFrameFor(id, pin)
	if err != nil {
		return nil, err
	}
	f := &p.frames[idx]
	if err := p.fm.ReadPage(id, f.buf.Buf[:]); err != nil {
		p.releaseFrame(idx)
		return nil, err
	}
	p.log.Debug("bufferpool: fetched page %d into frame %d", id, idx)
	return f.buf, nil
}

// obtainFrameFor finds or makes room for a frame to hold id, registers
// it, and leaves it pinned (pinCount=1) or at the LRU front (pinCount=0,
// pin=false). Caller holds p.mu.
func (p *Pool) obtainFrameFor(id uint32, pin bool) (int, error) {
	var idx int
	if len(p.freeSl) > 0 {
		idx = p.freeSl[len(p.freeSl)-1]
		p.freeSl = p.freeSl[:len(p.freeSl)-1]
	} else {
		evicted, err := p.evictFrame()
		if err != nil {
			return 0, err
		}
		idx = evicted
	}

	f := &p.frames[idx]
	f.pageID = id
	if f.buf == nil {
		f.buf = page.New()
	}
	f.dirty = false
	if pin {
		f.pinCount = 1
	} else {
		f.pinCount = 0
		p.lru = append([]int{idx}, p.lru...)
	}
	p.index[id] = idx
	return idx, nil
}

// evictFrame pops the LRU tail (the least recently used unpinned
// frame), flushing it first if dirty, and returns its now-vacated
// slot. It never evicts a pinned frame.
func (p *Pool) evictFrame() (int, error) {
	if len(p.lru) == 0 {
		return 0, kerr.New(kerr.CacheFull, "all frames are pinned, cannot evict")
	}
	idx := p.lru[len(p.lru)-1]
	p.lru = p.lru[:len(p.lru)-1]

	f := &p.frames[idx]
	if f.dirty {
		if err := p.fm.WritePage(f.pageID, f.buf.Buf[:]); err != nil {
			// put it back; caller can retry or surface the error
			p.lru = append(p.lru, idx)
			return 0, err
		}
		p.log.Debug("bufferpool: evicted dirty page %d", f.pageID)
	}
	delete(p.index, f.pageID)
	return idx, nil
}

// releaseFrame returns idx to the free list without flushing, used to
// back out of a Fetch that failed after obtaining a frame.
func (p *Pool) releaseFrame(idx int) {
	f := &p.frames[idx]
	delete(p.index, f.pageID)
	f.pageID = 0
	f.dirty = false
	f.pinCount = 0
	p.removeFromLRU(idx)
	p.freeSl = append(p.freeSl, idx)
}

// Unpin decrements id's pin count and, if isDirty, sets its dirty bit
// (sticky: never cleared except by a flush). At zero pins the frame
// becomes evictable and moves to the LRU front.
func (p *Pool) Unpin(id uint32, isDirty bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx, ok := p.index[id]
	if !ok {
		return kerr.New(kerr.PageNotFound, "unpin of page not in buffer pool").With("page_id", id)
	}
	f := &p.frames[idx]
	if f.pinCount == 0 {
		return kerr.New(kerr.PageLocked, "unpin of already-unpinned page").With("page_id", id)
	}
	f.pinCount--
	if isDirty {
		f.dirty = true
	}
	if f.pinCount == 0 {
		p.moveToLRUFront(idx)
	}
	return nil
}

// MarkDirty sets id's dirty bit without changing its pin count. id
// must already be cached.
func (p *Pool) MarkDirty(id uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx, ok := p.index[id]
	if !ok {
		return kerr.New(kerr.PageNotFound, "mark-dirty of page not in buffer pool").With("page_id", id)
	}
	p.frames[idx].dirty = true
	return nil
}

// Flush writes id back to disk if dirty and clears its dirty bit.
func (p *Pool) Flush(id uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx, ok := p.index[id]
	if !ok {
		return kerr.New(kerr.PageNotFound, "flush of page not in buffer pool").With("page_id", id)
	}
	return p.flushLocked(idx)
}

func (p *Pool) flushLocked(idx int) error {
	f := &p.frames[idx]
	if !f.dirty {
		return nil
	}
	if err := p.fm.WritePage(f.pageID, f.buf.Buf[:]); err != nil {
		return err
	}
	f.dirty = false
	return nil
}

// FlushAll writes every cached dirty frame back to disk.
func (p *Pool) FlushAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for idx := range p.frames {
		if p.frames[idx].free() {
			continue
		}
		if err := p.flushLocked(idx); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pool) removeFromLRU(idx int) {
	for i, v := range p.lru {
		if v == idx {
			p.lru = append(p.lru[:i], p.lru[i+1:]...)
			return
		}
	}
}

func (p *Pool) moveToLRUFront(idx int) {
	p.removeFromLRU(idx)
	p.lru = append([]int{idx}, p.lru...)
}
