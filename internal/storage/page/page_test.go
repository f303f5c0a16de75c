package page

import (
	"bytes"
	"testing"

	"kizuna/internal/kconfig"
	"kizuna/internal/kerr"
)

func TestInitAndFreeBytes(t *testing.T) {
	p := New()
	p.Init(Data, 5)

	if p.ID() != 5 {
		t.Errorf("ID: expected 5, got %d", p.ID())
	}
	if p.Type() != Data {
		t.Errorf("Type: expected Data, got %v", p.Type())
	}
	if p.FreeSpaceOffset() != HeaderSize {
		t.Errorf("FreeSpaceOffset: expected %d, got %d", HeaderSize, p.FreeSpaceOffset())
	}
	want := kconfig.PageSize - HeaderSize - 2
	if got := p.FreeBytes(); got != want {
		t.Errorf("FreeBytes: expected %d, got %d", want, got)
	}
}

func TestInsertReadRoundTrip(t *testing.T) {
	p := New()
	p.Init(Data, 1)

	slot, err := p.Insert([]byte("hello"))
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if slot != 0 {
		t.Errorf("expected first slot id 0, got %d", slot)
	}

	got, err := p.Read(slot)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(got, []byte("hello")) {
		t.Errorf("Read: expected %q, got %q", "hello", got)
	}
	if p.RecordCount() != 1 {
		t.Errorf("RecordCount: expected 1, got %d", p.RecordCount())
	}
}

func TestReadTombstoneAndOutOfRange(t *testing.T) {
	p := New()
	p.Init(Data, 1)
	slot, _ := p.Insert([]byte("x"))

	if _, err := p.Read(slot + 1); kerr.KindOf(err) != kerr.RecordNotFound {
		t.Errorf("out-of-range read: expected RECORD_NOT_FOUND, got %v", err)
	}

	if err := p.Erase(slot); err != nil {
		t.Fatalf("Erase: %v", err)
	}
	if _, err := p.Read(slot); kerr.KindOf(err) != kerr.RecordNotFound {
		t.Errorf("tombstoned read: expected RECORD_NOT_FOUND, got %v", err)
	}
	if p.RecordCount() != 0 {
		t.Errorf("RecordCount after erase: expected 0, got %d", p.RecordCount())
	}
}

func TestEraseAlreadyErased(t *testing.T) {
	p := New()
	p.Init(Data, 1)
	slot, _ := p.Insert([]byte("x"))
	if err := p.Erase(slot); err != nil {
		t.Fatalf("first erase: %v", err)
	}
	if err := p.Erase(slot); kerr.KindOf(err) != kerr.RecordNotFound {
		t.Errorf("second erase: expected RECORD_NOT_FOUND, got %v", err)
	}
}

func TestUpdateInPlaceAndTooLarge(t *testing.T) {
	p := New()
	p.Init(Data, 1)
	slot, _ := p.Insert([]byte("abcdef"))

	result, err := p.Update(slot, []byte("xyz"))
	if err != nil {
		t.Fatalf("Update (shrink): %v", err)
	}
	if result != OkInPlace {
		t.Fatalf("shrink update: expected OkInPlace, got %v", result)
	}
	got, _ := p.Read(slot)
	if !bytes.Equal(got, []byte("xyz")) {
		t.Errorf("after shrink update: expected %q, got %q", "xyz", got)
	}

	result, err = p.Update(slot, []byte("this is way too long"))
	if err != nil {
		t.Fatalf("Update (grow): %v", err)
	}
	if result != TooLarge {
		t.Fatalf("grow update: expected TooLarge, got %v", result)
	}
	// must be untouched
	got, _ = p.Read(slot)
	if !bytes.Equal(got, []byte("xyz")) {
		t.Errorf("record mutated on failed grow update: got %q", got)
	}
}

func TestFillPageToCapacity(t *testing.T) {
	p := New()
	p.Init(Data, 1)

	payload := bytes.Repeat([]byte{0xAB}, 16)
	var slots []uint16
	for {
		slot, err := p.Insert(payload)
		if err != nil {
			if kerr.KindOf(err) == kerr.PageFull {
				break
			}
			t.Fatalf("unexpected insert error: %v", err)
		}
		slots = append(slots, slot)
	}
	if len(slots) == 0 {
		t.Fatal("expected at least one record to fit")
	}

	first, err := p.Read(slots[0])
	if err != nil || !bytes.Equal(first, payload) {
		t.Errorf("slot 0 corrupted after fill: err=%v got=%v", err, first)
	}
	last, err := p.Read(slots[len(slots)-1])
	if err != nil || !bytes.Equal(last, payload) {
		t.Errorf("last slot corrupted after fill: err=%v got=%v", err, last)
	}
}

func TestInsertPromotesInvalidToData(t *testing.T) {
	p := New()
	p.Init(Invalid, 1)

	if p.Type() != Invalid {
		t.Fatalf("expected fresh page to be Invalid, got %v", p.Type())
	}
	if _, err := p.Insert([]byte("x")); err != nil {
		t.Fatalf("insert into invalid page: %v", err)
	}
	if p.Type() != Data {
		t.Errorf("expected Invalid page to promote to Data on insert, got %v", p.Type())
	}
}

func TestSelfRepairOnCorruptHeader(t *testing.T) {
	p := New()
	p.Init(Data, 1)
	// Corrupt the header directly: slot_count beyond theoretical max.
	p.setSlotCount(maxSlotCount + 1)

	slot, err := p.Insert([]byte("recover"))
	if err != nil {
		t.Fatalf("insert after corruption: %v", err)
	}
	if slot != 0 {
		t.Errorf("expected self-repair to reset slot_count to 0, got first slot %d", slot)
	}
}

func TestNonDataPageRejectsRecordOps(t *testing.T) {
	p := New()
	p.Init(Index, 1)
	if _, err := p.Insert([]byte("x")); kerr.KindOf(err) != kerr.InvalidPageType {
		t.Errorf("expected INVALID_PAGE_TYPE, got %v", err)
	}
}
