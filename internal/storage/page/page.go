// Package page implements the slotted page: the fixed-size on-disk
// unit that the buffer pool caches and the table heap threads into
// chains.
//
// Layout mirrors spec.md §3/§6 exactly: a 24-byte header (page_id,
// next_page_id, prev_page_id, record_count, free_space_offset,
// slot_count, page_type, flags, lsn), a record region growing upward
// from the header, and a 2-byte-per-entry slot directory growing
// downward from the end of the page. This is the same slotted-page
// shape DaemonDB's storage_engine/access/heapfile_manager/heap_page.go
// implements (header + forward-growing records + backward-growing
// slots, tombstone-on-delete, shrink-in-place-or-relocate update); the
// header field layout and 2-byte slot size follow spec.md's wire
// format instead of the teacher's 29-byte/4-byte-slot variant.
package page

import (
	"encoding/binary"

	"kizuna/internal/kconfig"
	"kizuna/internal/kerr"
)

// HeaderSize is the fixed page header size in bytes.
const HeaderSize = 24

// Tombstone is the slot-directory sentinel for an erased record.
const Tombstone = 0xFFFF

const (
	offPageID         = 0  // u32
	offNextPageID      = 4  // u32
	offPrevPageID      = 8  // u32
	offRecordCount     = 12 // u16
	offFreeSpaceOffset = 14 // u16
	offSlotCount       = 16 // u16
	offPageType        = 18 // u8
	offFlags           = 19 // u8
	offLSN             = 20 // u32
)

// Type is the kind of content a page holds. Only Data pages
// participate in record operations.
type Type uint8

const (
	Invalid Type = iota
	Data
	Index
	Overflow
	Metadata
	Free
)

// Page owns one fixed-size page buffer and enforces the slotted-page
// invariants described in spec.md §3 and §8.
type Page struct {
	Buf [kconfig.PageSize]byte
}

// New allocates a zero-valued, uninitialized Page. Call Init before use.
func New() *Page {
	return &Page{}
}

func (p *Page) ID() uint32         { return binary.LittleEndian.Uint32(p.Buf[offPageID:]) }
func (p *Page) NextPageID() uint32 { return binary.LittleEndian.Uint32(p.Buf[offNextPageID:]) }
func (p *Page) PrevPageID() uint32 { return binary.LittleEndian.Uint32(p.Buf[offPrevPageID:]) }
func (p *Page) RecordCount() uint16 { return binary.LittleEndian.Uint16(p.Buf[offRecordCount:]) }
func (p *Page) FreeSpaceOffset() uint16 {
	return binary.LittleEndian.Uint16(p.Buf[offFreeSpaceOffset:])
}
func (p *Page) SlotCount() uint16 { return binary.LittleEndian.Uint16(p.Buf[offSlotCount:]) }
func (p *Page) Type() Type        { return Type(p.Buf[offPageType]) }
func (p *Page) Flags() uint8      { return p.Buf[offFlags] }
func (p *Page) LSN() uint32       { return binary.LittleEndian.Uint32(p.Buf[offLSN:]) }

func (p *Page) SetID(id uint32)         { binary.LittleEndian.PutUint32(p.Buf[offPageID:], id) }
func (p *Page) SetNextPageID(id uint32) { binary.LittleEndian.PutUint32(p.Buf[offNextPageID:], id) }
func (p *Page) SetPrevPageID(id uint32) { binary.LittleEndian.PutUint32(p.Buf[offPrevPageID:], id) }
func (p *Page) SetRecordCount(n uint16) {
	binary.LittleEndian.PutUint16(p.Buf[offRecordCount:], n)
}
func (p *Page) setFreeSpaceOffset(n uint16) {
	binary.LittleEndian.PutUint16(p.Buf[offFreeSpaceOffset:], n)
}
func (p *Page) setSlotCount(n uint16) { binary.LittleEndian.PutUint16(p.Buf[offSlotCount:], n) }
func (p *Page) SetType(t Type)        { p.Buf[offPageType] = byte(t) }
func (p *Page) SetFlags(f uint8)      { p.Buf[offFlags] = f }
func (p *Page) SetLSN(lsn uint32)     { binary.LittleEndian.PutUint32(p.Buf[offLSN:], lsn) }

// maxSlotCount is the theoretical max slot_count fitting below
// free_space_offset == header_size: (PageSize - HeaderSize) / 2.
const maxSlotCount = (kconfig.PageSize - HeaderSize) / 2

// Init zero-fills the page and writes a fresh header for the given
// type and id.
func (p *Page) Init(t Type, id uint32) {
	for i := range p.Buf {
		p.Buf[i] = 0
	}
	p.SetID(id)
	p.SetNextPageID(0)
	p.SetPrevPageID(0)
	p.SetRecordCount(0)
	p.setSlotCount(0)
	p.setFreeSpaceOffset(HeaderSize)
	p.SetType(t)
	p.SetFlags(0)
	p.SetLSN(0)
}

// selfRepairIfCorrupt resets the mutable bookkeeping fields to a sane
// empty state if the header has drifted out of its invariants, per
// spec.md §4.B's edge-case note: a page must self-repair on the next
// mutation rather than let corruption compound. It does not touch
// already-written record bytes; it only makes future inserts safe by
// forgetting an inconsistent directory.
func (p *Page) selfRepairIfCorrupt() {
	slotCount := p.SlotCount()
	recordCount := p.RecordCount()
	fso := p.FreeSpaceOffset()

	corrupt := slotCount > maxSlotCount ||
		recordCount > slotCount ||
		fso < HeaderSize ||
		int(fso) > kconfig.PageSize-int(slotCount)*2

	if !corrupt {
		return
	}
	p.SetRecordCount(0)
	p.setSlotCount(0)
	p.setFreeSpaceOffset(HeaderSize)
}

// FreeBytes is the number of bytes currently available for a new
// record plus its slot entry, clamped at 0.
func (p *Page) FreeBytes() int {
	avail := (kconfig.PageSize - (int(p.SlotCount())+1)*2) - int(p.FreeSpaceOffset())
	if avail < 0 {
		return 0
	}
	return avail
}

func slotEntryOffset(slot uint16) int {
	return kconfig.PageSize - (int(slot)+1)*2
}

func (p *Page) readSlot(slot uint16) uint16 {
	off := slotEntryOffset(slot)
	return binary.LittleEndian.Uint16(p.Buf[off:])
}

func (p *Page) writeSlot(slot uint16, value uint16) {
	off := slotEntryOffset(slot)
	binary.LittleEndian.PutUint16(p.Buf[off:], value)
}

// Insert appends payload as a new record and returns its slot id.
// Returns PageFull-kind *kerr.Error when there isn't room for
// len(payload)+2 (length prefix) + 2 (slot entry) bytes.
//
// Inserting into an Invalid page silently promotes it to Data — the
// same permissive behavior the original engine's Page::insert has;
// spec.md §9 flags this as a documented, not removed, quirk.
func (p *Page) Insert(payload []byte) (slot uint16, err error) {
	p.selfRepairIfCorrupt()

	if p.Type() == Invalid {
		p.SetType(Data)
	}
	if p.Type() != Data {
		return 0, kerr.New(kerr.InvalidPageType, "insert requires a DATA page").With("page_id", p.ID())
	}
	if len(payload) > 0xFFFF {
		return 0, kerr.New(kerr.RecordTooLarge, "payload exceeds u16 length prefix")
	}

	need := len(payload) + 2 + 2
	if p.FreeBytes() < need {
		return 0, kerr.New(kerr.PageFull, "no space for record").With("page_id", p.ID())
	}

	recOff := p.FreeSpaceOffset()
	binary.LittleEndian.PutUint16(p.Buf[recOff:], uint16(len(payload)))
	copy(p.Buf[int(recOff)+2:], payload)

	slot = p.SlotCount()
	p.writeSlot(slot, recOff)
	p.setSlotCount(slot + 1)
	p.setFreeSpaceOffset(recOff + 2 + uint16(len(payload)))
	p.SetRecordCount(p.RecordCount() + 1)

	return slot, nil
}

// Read returns a copy of the payload stored at slot. Returns
// RecordNotFound for a tombstoned or out-of-range slot, or for a slot
// whose stored offset does not validate against the current
// free_space_offset.
func (p *Page) Read(slot uint16) ([]byte, error) {
	if p.Type() != Data {
		return nil, kerr.New(kerr.InvalidPageType, "read requires a DATA page")
	}
	if slot >= p.SlotCount() {
		return nil, kerr.New(kerr.RecordNotFound, "slot out of range").With("slot", slot)
	}
	off := p.readSlot(slot)
	if off == Tombstone {
		return nil, kerr.New(kerr.RecordNotFound, "slot is a tombstone").With("slot", slot)
	}
	if int(off) < HeaderSize || int(off) >= int(p.FreeSpaceOffset()) {
		return nil, kerr.New(kerr.RecordNotFound, "slot offset out of range").With("slot", slot)
	}
	length := binary.LittleEndian.Uint16(p.Buf[off:])
	if int(off)+2+int(length) > int(p.FreeSpaceOffset()) {
		return nil, kerr.New(kerr.RecordNotFound, "record extends past free space").With("slot", slot)
	}
	out := make([]byte, length)
	copy(out, p.Buf[int(off)+2:int(off)+2+int(length)])
	return out, nil
}

// Erase tombstones slot: it does not compact the page or reclaim
// in-page bytes, only marks the slot directory entry as dead and
// decrements record_count.
func (p *Page) Erase(slot uint16) error {
	if p.Type() != Data {
		return kerr.New(kerr.InvalidPageType, "erase requires a DATA page")
	}
	if slot >= p.SlotCount() {
		return kerr.New(kerr.RecordNotFound, "slot out of range").With("slot", slot)
	}
	if p.readSlot(slot) == Tombstone {
		return kerr.New(kerr.RecordNotFound, "slot already erased").With("slot", slot)
	}
	p.writeSlot(slot, Tombstone)
	if rc := p.RecordCount(); rc > 0 {
		p.SetRecordCount(rc - 1)
	}
	return nil
}

// UpdateResult reports whether Update rewrote the record in place.
type UpdateResult int

const (
	OkInPlace UpdateResult = iota
	TooLarge
)

// Update overwrites the record at slot with payload if it fits in the
// original allocation (len(payload) <= the old record's length);
// otherwise it returns TooLarge and leaves the record untouched — the
// caller (the table heap) is responsible for tombstoning and
// relocating. Trailing bytes of a shrunk record are zeroed.
func (p *Page) Update(slot uint16, payload []byte) (UpdateResult, error) {
	if p.Type() != Data {
		return 0, kerr.New(kerr.InvalidPageType, "update requires a DATA page")
	}
	if slot >= p.SlotCount() {
		return 0, kerr.New(kerr.RecordNotFound, "slot out of range").With("slot", slot)
	}
	off := p.readSlot(slot)
	if off == Tombstone {
		return 0, kerr.New(kerr.RecordNotFound, "slot is a tombstone").With("slot", slot)
	}
	oldLen := binary.LittleEndian.Uint16(p.Buf[off:])
	if len(payload) > int(oldLen) {
		return TooLarge, nil
	}

	binary.LittleEndian.PutUint16(p.Buf[off:], uint16(len(payload)))
	copy(p.Buf[int(off)+2:], payload)
	for i := int(off) + 2 + len(payload); i < int(off)+2+int(oldLen); i++ {
		p.Buf[i] = 0
	}
	return OkInPlace, nil
}
