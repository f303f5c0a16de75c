package value

import (
	"testing"

	"kizuna/internal/kerr"
)

func TestCompareNullIsUnknown(t *testing.T) {
	res, err := Compare(Null(Integer), Int32Val(5))
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if res != CmpUnknown {
		t.Errorf("expected CmpUnknown comparing against null, got %v", res)
	}
}

func TestCompareSameTypeInt(t *testing.T) {
	cases := []struct {
		a, b int32
		want CompareResult
	}{
		{1, 2, Less},
		{2, 1, Greater},
		{3, 3, Equal},
	}
	for _, c := range cases {
		res, err := Compare(Int32Val(c.a), Int32Val(c.b))
		if err != nil {
			t.Fatalf("Compare(%d, %d): %v", c.a, c.b, err)
		}
		if res != c.want {
			t.Errorf("Compare(%d, %d): expected %v, got %v", c.a, c.b, c.want, res)
		}
	}
}

func TestComparePromotesMixedNumerics(t *testing.T) {
	res, err := Compare(Int32Val(2), DoubleVal(2.5))
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if res != Less {
		t.Errorf("expected Less comparing int32(2) to double(2.5), got %v", res)
	}
}

func TestCompareStringsLexicographic(t *testing.T) {
	res, err := Compare(StringVal("apple", Varchar), StringVal("banana", Varchar))
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if res != Less {
		t.Errorf("expected Less, got %v", res)
	}
}

func TestCompareIncompatibleTypesIsError(t *testing.T) {
	_, err := Compare(StringVal("x", Varchar), Int32Val(1))
	if kerr.KindOf(err) != kerr.TypeError {
		t.Errorf("expected TYPE_ERROR comparing string to int, got %v", err)
	}
}

func TestCompareSameIncomparableTypeIsError(t *testing.T) {
	_, err := Compare(Value{typ: NullType}, Value{typ: NullType})
	if kerr.KindOf(err) != kerr.TypeError {
		t.Errorf("expected TYPE_ERROR comparing two NullType values, got %v", err)
	}
}

func TestCompareBooleans(t *testing.T) {
	res, err := Compare(BoolVal(false), BoolVal(true))
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if res != Less {
		t.Errorf("expected false < true, got %v", res)
	}
}

func TestTriBoolAndTruthTable(t *testing.T) {
	cases := []struct {
		a, b TriBool
		want TriBool
	}{
		{TriTrue, TriTrue, TriTrue},
		{TriTrue, TriFalse, TriFalse},
		{TriFalse, TriUnknown, TriFalse},
		{TriTrue, TriUnknown, TriUnknown},
		{TriUnknown, TriUnknown, TriUnknown},
	}
	for _, c := range cases {
		if got := And(c.a, c.b); got != c.want {
			t.Errorf("And(%v, %v): expected %v, got %v", c.a, c.b, c.want, got)
		}
	}
}

func TestTriBoolOrTruthTable(t *testing.T) {
	cases := []struct {
		a, b TriBool
		want TriBool
	}{
		{TriFalse, TriFalse, TriFalse},
		{TriTrue, TriFalse, TriTrue},
		{TriFalse, TriUnknown, TriUnknown},
		{TriTrue, TriUnknown, TriTrue},
		{TriUnknown, TriUnknown, TriUnknown},
	}
	for _, c := range cases {
		if got := Or(c.a, c.b); got != c.want {
			t.Errorf("Or(%v, %v): expected %v, got %v", c.a, c.b, c.want, got)
		}
	}
}

func TestTriBoolNot(t *testing.T) {
	if Not(TriTrue) != TriFalse {
		t.Error("Not(True) should be False")
	}
	if Not(TriFalse) != TriTrue {
		t.Error("Not(False) should be True")
	}
	if Not(TriUnknown) != TriUnknown {
		t.Error("Not(Unknown) should stay Unknown")
	}
}

func TestParseDateRoundTrip(t *testing.T) {
	cases := []string{"1970-01-01", "2000-02-29", "2026-08-06", "1999-12-31", "1900-03-01"}
	for _, s := range cases {
		days, ok := ParseDate(s)
		if !ok {
			t.Fatalf("ParseDate(%q): expected ok", s)
		}
		if got := FormatDate(days); got != s {
			t.Errorf("round trip %q: got %q", s, got)
		}
	}
}

func TestParseDateRejectsInvalidCalendarDates(t *testing.T) {
	cases := []string{"2021-02-29", "2021-13-01", "2021-00-10", "2021-04-31", "not-a-date"}
	for _, s := range cases {
		if _, ok := ParseDate(s); ok {
			t.Errorf("ParseDate(%q): expected not ok", s)
		}
	}
}

func TestParseBoolLiteral(t *testing.T) {
	if v, ok := ParseBoolLiteral("TRUE"); !ok || !v {
		t.Error("expected TRUE to parse as true")
	}
	if v, ok := ParseBoolLiteral("false"); !ok || v {
		t.Error("expected false to parse as false")
	}
	if _, ok := ParseBoolLiteral("yes"); ok {
		t.Error("expected 'yes' to be rejected")
	}
}

func TestFixedWidthFloatAndDoubleAgree(t *testing.T) {
	fw, ok := Float.FixedWidth()
	if !ok || fw != 8 {
		t.Errorf("expected FLOAT fixed width 8, got %d ok=%v", fw, ok)
	}
	dw, ok := Double.FixedWidth()
	if !ok || dw != 8 {
		t.Errorf("expected DOUBLE fixed width 8, got %d ok=%v", dw, ok)
	}
}

func TestFixedWidthVariableTypesNotFixed(t *testing.T) {
	if _, ok := Varchar.FixedWidth(); ok {
		t.Error("expected VARCHAR to have no fixed width")
	}
	if _, ok := Text.FixedWidth(); ok {
		t.Error("expected TEXT to have no fixed width")
	}
}
