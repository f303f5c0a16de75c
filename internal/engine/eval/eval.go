// Package eval binds column references against one table's column
// list and evaluates ast.Expr trees: evaluate_scalar for literals and
// column reads, evaluate_predicate (returning three-valued logic) for
// WHERE clauses.
//
// Grounded on the value/TriBool model in internal/value (itself
// ported from original_source/src/common/value.h) and on
// original_source/src/sql's separate scalar/predicate evaluation
// split, expressed here as two methods on one Evaluator bound to a
// table's schema instead of a free function taking a schema argument
// each call.
package eval

import (
	"math"
	"strconv"
	"strings"

	"kizuna/internal/catalog"
	"kizuna/internal/kerr"
	"kizuna/internal/value"
)

// Evaluator binds column references against one table's column list
// (in catalog/ordinal order) and its name, so qualified references
// (table.col) can be checked against the bound table.
type Evaluator struct {
	tableName string
	columns   []*catalog.ColumnEntry
	index     map[string]int // lowercase column name -> position in columns/row values
}

// New builds an Evaluator bound to tableName and its columns (already
// sorted by ordinal position).
func New(tableName string, columns []*catalog.ColumnEntry) *Evaluator {
	idx := make(map[string]int, len(columns))
	for i, c := range columns {
		idx[strings.ToLower(c.Name)] = i
	}
	return &Evaluator{tableName: tableName, columns: columns, index: idx}
}

// Columns returns the bound table's columns in catalog (ordinal)
// order — the same order row value slices passed to EvaluateScalar
// and EvaluatePredicate must use.
func (e *Evaluator) Columns() []*catalog.ColumnEntry { return e.columns }

// ColumnIndex resolves a bare column name to its position, for
// callers (the DML executor's projection/assignment resolution) that
// need the position without going through an Expr node.
func (e *Evaluator) ColumnIndex(column string) (int, *catalog.ColumnEntry, error) {
	return e.bindColumn("", column)
}

func (e *Evaluator) bindColumn(table, column string) (int, *catalog.ColumnEntry, error) {
	if table != "" && !strings.EqualFold(table, e.tableName) {
		return 0, nil, kerr.New(kerr.ColumnNotFound, "qualified reference to an unbound table").With("table", table)
	}
	pos, ok := e.index[strings.ToLower(column)]
	if !ok {
		return 0, nil, kerr.New(kerr.ColumnNotFound, "unknown column").With("column", column)
	}
	return pos, e.columns[pos], nil
}

// CoerceLiteral converts a literal's text into a Value, applying
// target greedily per spec.md §4.H's rules.
func CoerceLiteral(lit LiteralText, target value.DataType) (value.Value, error) {
	switch lit.Kind {
	case LiteralNull:
		return value.Null(target), nil
	case LiteralInteger:
		n, err := strconv.ParseInt(lit.Text, 10, 64)
		if err != nil {
			return value.Value{}, kerr.New(kerr.TypeError, "integer literal out of range").With("text", lit.Text)
		}
		switch target {
		case value.Boolean:
			return value.BoolVal(n != 0), nil
		case value.Date, value.Timestamp:
			return value.DateVal(n), nil
		case value.BigInt:
			return value.Int64Val(n), nil
		case value.Integer:
			if n < math.MinInt32 || n > math.MaxInt32 {
				return value.Value{}, kerr.New(kerr.TypeError, "integer literal does not fit INTEGER").With("text", lit.Text)
			}
			return value.Int32Val(int32(n)), nil
		case value.Float, value.Double:
			return value.DoubleVal(float64(n)), nil
		default:
			if n >= math.MinInt32 && n <= math.MaxInt32 {
				return value.Int32Val(int32(n)), nil
			}
			return value.Int64Val(n), nil
		}
	case LiteralDecimal:
		f, err := strconv.ParseFloat(lit.Text, 64)
		if err != nil {
			return value.Value{}, kerr.New(kerr.TypeError, "invalid decimal literal").With("text", lit.Text)
		}
		return value.DoubleVal(f), nil
	case LiteralString:
		switch target {
		case value.Date, value.Timestamp:
			days, ok := value.ParseDate(lit.Text)
			if !ok {
				return value.Value{}, kerr.New(kerr.TypeError, "invalid DATE literal").With("text", lit.Text)
			}
			return value.DateVal(days), nil
		case value.Boolean:
			b, ok := value.ParseBoolLiteral(lit.Text)
			if !ok {
				return value.Value{}, kerr.New(kerr.TypeError, "invalid BOOLEAN literal").With("text", lit.Text)
			}
			return value.BoolVal(b), nil
		default:
			return value.StringVal(lit.Text, target), nil
		}
	case LiteralBool:
		b, _ := value.ParseBoolLiteral(lit.Text)
		return value.BoolVal(b), nil
	default:
		return value.Value{}, kerr.New(kerr.InternalError, "unhandled literal kind")
	}
}

// LiteralKind mirrors ast.LiteralKind without importing the ast
// package's Expr machinery into this one — eval only needs the
// literal payload, not the tree shape it was parsed from.
type LiteralKind uint8

const (
	LiteralInteger LiteralKind = iota
	LiteralDecimal
	LiteralString
	LiteralBool
	LiteralNull
)

// LiteralText is the coercion input: a literal's kind and raw text.
type LiteralText struct {
	Kind LiteralKind
	Text string
}

// truthiness maps a Value to TriBool for predicate heads: only
// booleans and numerics have defined truthiness.
func truthiness(v value.Value) (value.TriBool, error) {
	if v.IsNull() {
		return value.TriUnknown, nil
	}
	switch v.Type() {
	case value.Boolean:
		if v.AsBool() {
			return value.TriTrue, nil
		}
		return value.TriFalse, nil
	case value.Integer, value.BigInt:
		if v.AsInt64() != 0 {
			return value.TriTrue, nil
		}
		return value.TriFalse, nil
	case value.Float, value.Double:
		if v.AsDouble() != 0 {
			return value.TriTrue, nil
		}
		return value.TriFalse, nil
	default:
		return value.TriUnknown, kerr.New(kerr.TypeError, "value has no truthiness as a predicate head").With("type", v.Type().String())
	}
}

func compareResultToBool(cmp value.CompareResult, op compareOp) value.TriBool {
	if cmp == value.CmpUnknown {
		return value.TriUnknown
	}
	var ok bool
	switch op {
	case opEq:
		ok = cmp == value.Equal
	case opNe:
		ok = cmp != value.Equal
	case opLt:
		ok = cmp == value.Less
	case opLe:
		ok = cmp == value.Less || cmp == value.Equal
	case opGt:
		ok = cmp == value.Greater
	case opGe:
		ok = cmp == value.Greater || cmp == value.Equal
	}
	if ok {
		return value.TriTrue
	}
	return value.TriFalse
}

type compareOp uint8

const (
	opEq compareOp = iota
	opNe
	opLt
	opLe
	opGt
	opGe
)
