// Package record implements the typed, length-prefixed record codec
// with a null bitmap that the table heap stores inside page slots.
//
// Wire format (spec.md §3/§6):
//
//	u16 field_count · u16 bitmap_bytes · bitmap ·
//	{ u8 type · u16 length · length bytes } * field_count
//
// Grounded on DaemonDB's heap_page.go record framing style (length-
// prefixed payloads written forward into a page) generalized to carry
// a typed, nullable field list instead of an opaque byte blob — the
// original engine's storage/record.cpp does the same typed+nullable
// encoding this package ports.
package record

import (
	"encoding/binary"

	"kizuna/internal/kconfig"
	"kizuna/internal/kerr"
	"kizuna/internal/value"
)

// Field is one on-wire record field: a declared type, a null flag, and
// (when not null) its raw encoded bytes — little-endian for fixed-width
// types, raw user bytes for variable-width types.
type Field struct {
	Type    value.DataType
	IsNull  bool
	Payload []byte
}

// NullField builds a typed null field.
func NullField(t value.DataType) Field {
	return Field{Type: t, IsNull: true}
}

func fixedWidthOK(f Field) bool {
	width, ok := f.Type.FixedWidth()
	if !ok {
		return true // variable-width: no fixed check
	}
	return len(f.Payload) == width
}

// Encode serializes fields into the wire format above. It rejects more
// than 0xFFFF fields, any single payload longer than 0xFFFF bytes, a
// fixed-width field whose payload doesn't match its declared width, and
// a total encoded size beyond kconfig.MaxRecordSize.
func Encode(fields []Field) ([]byte, error) {
	if len(fields) > 0xFFFF {
		return nil, kerr.New(kerr.InvalidRecordFormat, "too many fields")
	}

	bitmapBytes := (len(fields) + 7) / 8
	bitmap := make([]byte, bitmapBytes)

	body := make([]byte, 0, 64)
	for i, f := range fields {
		if !f.IsNull && !fixedWidthOK(f) {
			return nil, kerr.Newf(kerr.InvalidRecordFormat, "field %d: payload width mismatch for %s", i, f.Type)
		}
		if f.IsNull {
			bitmap[i/8] |= 1 << uint(i%8)
		}
		payloadLen := 0
		if !f.IsNull {
			if len(f.Payload) > 0xFFFF {
				return nil, kerr.Newf(kerr.RecordTooLarge, "field %d payload exceeds u16 length", i)
			}
			payloadLen = len(f.Payload)
		}

		var hdr [3]byte
		hdr[0] = byte(f.Type)
		binary.LittleEndian.PutUint16(hdr[1:], uint16(payloadLen))
		body = append(body, hdr[:]...)
		if !f.IsNull {
			body = append(body, f.Payload...)
		}
	}

	out := make([]byte, 0, 4+bitmapBytes+len(body))
	var head [4]byte
	binary.LittleEndian.PutUint16(head[0:], uint16(len(fields)))
	binary.LittleEndian.PutUint16(head[2:], uint16(bitmapBytes))
	out = append(out, head[:]...)
	out = append(out, bitmap...)
	out = append(out, body...)

	if len(out) > kconfig.MaxRecordSize {
		return nil, kerr.Newf(kerr.RecordTooLarge, "encoded record %d bytes exceeds MaxRecordSize %d", len(out), kconfig.MaxRecordSize)
	}
	return out, nil
}

// Decode is the inverse of Encode. It returns ok=false on any
// truncation, a null bit set against a nonzero wire length, or extra
// trailing bytes after the last field.
func Decode(data []byte) (fields []Field, ok bool) {
	if len(data) < 4 {
		return nil, false
	}
	fieldCount := int(binary.LittleEndian.Uint16(data[0:]))
	bitmapBytes := int(binary.LittleEndian.Uint16(data[2:]))
	pos := 4

	if pos+bitmapBytes > len(data) {
		return nil, false
	}
	bitmap := data[pos : pos+bitmapBytes]
	pos += bitmapBytes

	out := make([]Field, fieldCount)
	for i := 0; i < fieldCount; i++ {
		if pos+3 > len(data) {
			return nil, false
		}
		typ := value.DataType(data[pos])
		length := int(binary.LittleEndian.Uint16(data[pos+1:]))
		pos += 3

		isNull := false
		if i/8 < len(bitmap) {
			isNull = bitmap[i/8]&(1<<uint(i%8)) != 0
		}
		if isNull && length != 0 {
			return nil, false
		}
		if pos+length > len(data) {
			return nil, false
		}

		f := Field{Type: typ, IsNull: isNull}
		if !isNull {
			f.Payload = append([]byte(nil), data[pos:pos+length]...)
		}
		out[i] = f
		pos += length
	}

	if pos != len(data) {
		return nil, false
	}
	return out, true
}
