// Package value implements the executor's runtime type system: the
// typed Value a row field decodes into, three-valued (Kleene) logic
// over it, and the comparison/date helpers the expression evaluator
// needs.
//
// Grounded on the original engine's common/value.h: a tagged Value
// with NULL/BOOLEAN/INT32/INT64/DOUBLE/STRING/DATE variants, a
// Less/Equal/Greater/Unknown CompareResult, and Kleene AND/OR/NOT over
// True/False/Unknown.
package value

import (
	"fmt"
	"strconv"
	"strings"

	"kizuna/internal/kerr"
)

// DataType is the declared type of a column or a literal, shared by
// the catalog, the record codec, and the value model.
type DataType uint8

const (
	NullType DataType = iota
	Boolean
	Integer
	BigInt
	Float
	Double
	Varchar
	Text
	Date
	Timestamp
	Blob
)

func (t DataType) String() string {
	switch t {
	case NullType:
		return "NULL"
	case Boolean:
		return "BOOLEAN"
	case Integer:
		return "INTEGER"
	case BigInt:
		return "BIGINT"
	case Float:
		return "FLOAT"
	case Double:
		return "DOUBLE"
	case Varchar:
		return "VARCHAR"
	case Text:
		return "TEXT"
	case Date:
		return "DATE"
	case Timestamp:
		return "TIMESTAMP"
	case Blob:
		return "BLOB"
	default:
		return "UNKNOWN"
	}
}

// FixedWidth reports whether t has a fixed on-wire byte width, and if
// so what it is.
func (t DataType) FixedWidth() (width int, ok bool) {
	switch t {
	case Boolean:
		return 1, true
	case Integer:
		return 4, true
	case BigInt, Date, Timestamp:
		return 8, true
	case Float, Double:
		// FLOAT is widened to the same 8-byte runtime representation as
		// DOUBLE (see Value's single floating variant); only the
		// catalog-declared type differs.
		return 8, true
	default:
		return 0, false
	}
}

// IsNumeric reports whether t is one of the fixed-width numeric types
// eligible for cross-type promotion in Compare.
func (t DataType) IsNumeric() bool {
	switch t {
	case Integer, BigInt, Float, Double:
		return true
	default:
		return false
	}
}

// Value is the executor's tagged runtime value. The zero Value is a
// typed null of NullType.
type Value struct {
	typ    DataType
	isNull bool
	b      bool
	i      int64
	f      float64
	s      string
}

// Null returns a typed null value; typ is retained so later coercion
// (e.g. toward a column's declared type) knows what it is a null of.
func Null(typ DataType) Value { return Value{typ: typ, isNull: true} }

func BoolVal(v bool) Value   { return Value{typ: Boolean, b: v} }
func Int32Val(v int32) Value { return Value{typ: Integer, i: int64(v)} }
func Int64Val(v int64) Value { return Value{typ: BigInt, i: v} }
func DoubleVal(v float64) Value { return Value{typ: Double, f: v} }

// StringVal builds a VARCHAR or TEXT value; typ must be Varchar or Text.
func StringVal(s string, typ DataType) Value { return Value{typ: typ, s: s} }

// DateVal builds a DATE value from days-since-epoch.
func DateVal(days int64) Value { return Value{typ: Date, i: days} }

func (v Value) Type() DataType { return v.typ }
func (v Value) IsNull() bool   { return v.isNull }

func (v Value) AsBool() bool    { return v.b }
func (v Value) AsInt32() int32  { return int32(v.i) }
func (v Value) AsInt64() int64  { return v.i }
func (v Value) AsDouble() float64 { return v.f }
func (v Value) AsString() string  { return v.s }

// String renders the display form the DML executor's SELECT path
// emits: "NULL" for null, "true"/"false" for booleans,
// decimal for numerics, YYYY-MM-DD for dates, the raw text otherwise.
func (v Value) String() string {
	if v.isNull {
		return "NULL"
	}
	switch v.typ {
	case Boolean:
		if v.b {
			return "true"
		}
		return "false"
	case Integer, BigInt:
		return strconv.FormatInt(v.i, 10)
	case Float, Double:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case Date:
		return FormatDate(v.i)
	case Varchar, Text:
		return v.s
	default:
		return fmt.Sprintf("%v", v.i)
	}
}

// CompareResult is the outcome of Compare: Less/Equal/Greater, or
// Unknown when either operand is null or the types are incomparable.
type CompareResult int8

const (
	Less CompareResult = -1
	Equal CompareResult = 0
	Greater CompareResult = 1
	CmpUnknown CompareResult = 2
)

// Compare implements spec.md §4.G: null on either side is Unknown;
// equal types compare directly; mixed fixed-width numerics promote to
// float64; anything else is a TYPE_ERROR.
func Compare(lhs, rhs Value) (CompareResult, error) {
	if lhs.isNull || rhs.isNull {
		return CmpUnknown, nil
	}

	if lhs.typ == rhs.typ {
		return compareSameType(lhs, rhs)
	}

	if lhs.typ.IsNumeric() && rhs.typ.IsNumeric() {
		lf := numericAsFloat(lhs)
		rf := numericAsFloat(rhs)
		return compareFloat(lf, rf), nil
	}

	return 0, kerr.New(kerr.TypeError, "cannot compare incompatible types").
		With("lhs", lhs.typ.String()).With("rhs", rhs.typ.String())
}

func compareSameType(lhs, rhs Value) (CompareResult, error) {
	switch lhs.typ {
	case Boolean:
		if lhs.b == rhs.b {
			return Equal, nil
		}
		if !lhs.b && rhs.b {
			return Less, nil
		}
		return Greater, nil
	case Integer, BigInt, Date, Timestamp:
		return compareInt(lhs.i, rhs.i), nil
	case Float, Double:
		return compareFloat(lhs.f, rhs.f), nil
	case Varchar, Text:
		return compareStr(lhs.s, rhs.s), nil
	default:
		return 0, kerr.New(kerr.TypeError, "cannot compare values of this type").With("type", lhs.typ.String())
	}
}

func numericAsFloat(v Value) float64 {
	switch v.typ {
	case Integer, BigInt:
		return float64(v.i)
	default:
		return v.f
	}
}

func compareInt(a, b int64) CompareResult {
	switch {
	case a < b:
		return Less
	case a > b:
		return Greater
	default:
		return Equal
	}
}

func compareFloat(a, b float64) CompareResult {
	switch {
	case a < b:
		return Less
	case a > b:
		return Greater
	default:
		return Equal
	}
}

func compareStr(a, b string) CompareResult {
	switch {
	case a < b:
		return Less
	case a > b:
		return Greater
	default:
		return Equal
	}
}

// TriBool is Kleene's three-valued truth: True, False, Unknown (the
// result of a predicate touching a NULL).
type TriBool uint8

const (
	TriFalse TriBool = iota
	TriTrue
	TriUnknown
)

func (t TriBool) String() string {
	switch t {
	case TriTrue:
		return "true"
	case TriFalse:
		return "false"
	default:
		return "unknown"
	}
}

// And implements Kleene AND: False dominates, else Unknown if either
// side is Unknown, else True.
func And(a, b TriBool) TriBool {
	if a == TriFalse || b == TriFalse {
		return TriFalse
	}
	if a == TriUnknown || b == TriUnknown {
		return TriUnknown
	}
	return TriTrue
}

// Or implements Kleene OR: True dominates, else Unknown if either side
// is Unknown, else False.
func Or(a, b TriBool) TriBool {
	if a == TriTrue || b == TriTrue {
		return TriTrue
	}
	if a == TriUnknown || b == TriUnknown {
		return TriUnknown
	}
	return TriFalse
}

// Not implements Kleene NOT: Unknown stays Unknown.
func Not(a TriBool) TriBool {
	switch a {
	case TriTrue:
		return TriFalse
	case TriFalse:
		return TriTrue
	default:
		return TriUnknown
	}
}

// ParseDate validates and converts a "YYYY-MM-DD" string to days since
// 1970-01-01. Returns ok=false on any formatting or calendar error.
func ParseDate(s string) (days int64, ok bool) {
	if len(s) != 10 || s[4] != '-' || s[7] != '-' {
		return 0, false
	}
	year, err1 := strconv.Atoi(s[0:4])
	month, err2 := strconv.Atoi(s[5:7])
	day, err3 := strconv.Atoi(s[8:10])
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, false
	}
	if month < 1 || month > 12 {
		return 0, false
	}
	if day < 1 || day > daysInMonth(year, month) {
		return 0, false
	}
	return daysSinceEpoch(year, month, day), true
}

// FormatDate is the inverse of ParseDate.
func FormatDate(days int64) string {
	y, m, d := civilFromDays(days)
	return fmt.Sprintf("%04d-%02d-%02d", y, m, d)
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

func daysInMonth(year, month int) int {
	lengths := [...]int{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}
	if month == 2 && isLeap(year) {
		return 29
	}
	return lengths[month-1]
}

// daysSinceEpoch and civilFromDays implement the standard civil
// calendar <-> day-count conversion (Howard Hinnant's algorithm),
// valid across the proleptic Gregorian calendar.
func daysSinceEpoch(y, m, d int) int64 {
	yy := int64(y)
	if m <= 2 {
		yy--
	}
	era := yy
	if yy < 0 {
		era -= 399
	}
	era /= 400
	yoe := yy - era*400
	var mp int64
	if int64(m) > 2 {
		mp = int64(m) - 3
	} else {
		mp = int64(m) + 9
	}
	doy := (153*mp+2)/5 + int64(d) - 1
	doe := yoe*365 + yoe/4 - yoe/100 + doy
	return era*146097 + doe - 719468
}

func civilFromDays(z int64) (int, int, int) {
	z += 719468
	era := z
	if z < 0 {
		era -= 146096
	}
	era /= 146097
	doe := z - era*146097
	yoe := (doe - doe/1460 + doe/36524 - doe/146096) / 365
	y := yoe + era*400
	doy := doe - (365*yoe + yoe/4 - yoe/100)
	mp := (5*doy + 2) / 153
	d := doy - (153*mp+2)/5 + 1
	var m int64
	if mp < 10 {
		m = mp + 3
	} else {
		m = mp - 9
	}
	if m <= 2 {
		y++
	}
	return int(y), int(m), int(d)
}

// ParseBoolLiteral accepts only case-insensitive "true"/"false", per
// spec.md §4.H's literal-coercion rule for a BOOLEAN target.
func ParseBoolLiteral(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "true":
		return true, true
	case "false":
		return false, true
	default:
		return false, false
	}
}
