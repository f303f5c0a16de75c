// Package dml executes INSERT/SELECT/UPDATE/DELETE/TRUNCATE statements
// against a table's heap, using the catalog for schema and eval for
// predicate/scalar evaluation.
//
// Grounded on DaemonDB's storage_engine/access/heapfile_manager row
// operations (insertRow/getRow/updateRow/deleteRow driving one heap
// file) generalized from opaque byte rows to the typed, catalog-driven
// row shape spec.md §4.I and §4.H describe; the two-pass UPDATE
// protocol and row decode/encode rules follow spec.md §4.I verbatim.
package dml

import (
	"encoding/binary"
	"math"
	"strings"

	"kizuna/internal/ast"
	"kizuna/internal/catalog"
	"kizuna/internal/engine/eval"
	"kizuna/internal/kerr"
	"kizuna/internal/storage/bufferpool"
	"kizuna/internal/storage/heap"
	"kizuna/internal/storage/record"
	"kizuna/internal/value"
)

// Executor runs DML statements against pool-backed table heaps,
// resolving schema through cat.
type Executor struct {
	pool *bufferpool.Pool
	cat  *catalog.Manager
}

// New builds an Executor over pool and cat.
func New(pool *bufferpool.Pool, cat *catalog.Manager) *Executor {
	return &Executor{pool: pool, cat: cat}
}

type resolved struct {
	table   *catalog.TableEntry
	columns []*catalog.ColumnEntry
	eval    *eval.Evaluator
	heap    *heap.Heap
}

func (x *Executor) resolve(tableName string) (resolved, error) {
	te, err := x.cat.GetTableByName(tableName)
	if err != nil {
		return resolved{}, err
	}
	columns, err := x.cat.GetColumns(te.TableID)
	if err != nil {
		return resolved{}, err
	}
	h, err := heap.Open(x.pool, te.RootPage)
	if err != nil {
		return resolved{}, err
	}
	return resolved{table: te, columns: columns, eval: eval.New(te.Name, columns), heap: h}, nil
}

// Insert executes an InsertStatement and returns the number of rows
// written.
func (x *Executor) Insert(stmt *ast.InsertStatement) (int, error) {
	r, err := x.resolve(stmt.Table)
	if err != nil {
		return 0, err
	}

	names := stmt.Columns
	if names == nil {
		names = make([]string, len(r.columns))
		for i, c := range r.columns {
			names[i] = c.Name
		}
	} else if len(names) != len(r.columns) {
		return 0, kerr.New(kerr.ColumnCountMismatch, "column list does not match table's column count").
			With("table", stmt.Table).With("given", len(names)).With("want", len(r.columns))
	}

	count := 0
	for rowIdx, row := range stmt.Rows {
		if len(row.Values) != len(names) {
			return count, kerr.New(kerr.ColumnCountMismatch, "value count does not match column list").With("row", rowIdx)
		}

		literals := make(map[string]ast.Expr, len(names))
		for i, name := range names {
			literals[strings.ToLower(name)] = row.Values[i]
		}

		values := make([]value.Value, len(r.columns))
		for i, col := range r.columns {
			lit, ok := literals[strings.ToLower(col.Name)]
			if !ok {
				return count, kerr.New(kerr.ColumnNotFound, "no value given for column").With("column", col.Name).With("row", rowIdx)
			}

			v, err := x.coerceAssign(r.eval, lit, col)
			if err != nil {
				return count, kerr.Wrap(err, kerr.KindOf(err), "row "+col.Name).With("row", rowIdx)
			}
			values[i] = v
		}

		payload, err := encodeRow(values)
		if err != nil {
			return count, err
		}
		if _, err := r.heap.Insert(payload); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// coerceAssign evaluates expr (typically a literal, occasionally any
// scalar expr) toward col's type and enforces NOT NULL / VARCHAR
// length, per spec.md §4.I step 3.
func (x *Executor) coerceAssign(ev *eval.Evaluator, expr ast.Expr, col *catalog.ColumnEntry) (value.Value, error) {
	v, err := ev.EvaluateScalar(expr, nil, col.Type)
	if err != nil {
		return value.Value{}, err
	}
	if v.IsNull() && col.Constraint.NotNull {
		return value.Value{}, kerr.New(kerr.ConstraintViolation, "NOT NULL column cannot be null").With("column", col.Name)
	}
	if !v.IsNull() && col.Type == value.Varchar && col.Length > 0 && uint32(len(v.AsString())) > col.Length {
		return value.Value{}, kerr.New(kerr.ConstraintViolation, "value exceeds declared VARCHAR length").With("column", col.Name)
	}
	return v, nil
}

// Select executes a SelectStatement, returning projection headers and
// each emitted row's display-string values.
func (x *Executor) Select(stmt *ast.SelectStatement) ([]string, [][]string, error) {
	r, err := x.resolve(stmt.Table)
	if err != nil {
		return nil, nil, err
	}

	var headers []string
	var projIdx []int
	starSeen := false
	for _, item := range stmt.Items {
		if item.Star {
			if starSeen {
				continue
			}
			starSeen = true
			for i, c := range r.columns {
				projIdx = append(projIdx, i)
				headers = append(headers, c.Name)
			}
			continue
		}
		idx, ce, err := r.eval.ColumnIndex(item.Column)
		if err != nil {
			return nil, nil, err
		}
		projIdx = append(projIdx, idx)
		headers = append(headers, ce.Name)
	}

	limit := -1
	if stmt.Limit != nil {
		limit = *stmt.Limit
	}

	it := r.heap.NewIterator()
	defer it.Close()

	var rows [][]string
	for limit != 0 {
		_, payload, ok, err := it.Next()
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			break
		}
		values, err := decodeRow(r.columns, payload)
		if err != nil {
			return nil, nil, err
		}
		if stmt.Where != nil {
			tri, err := r.eval.EvaluatePredicate(stmt.Where, values)
			if err != nil {
				return nil, nil, err
			}
			if tri != value.TriTrue {
				continue
			}
		}
		row := make([]string, len(projIdx))
		for i, idx := range projIdx {
			row[i] = values[idx].String()
		}
		rows = append(rows, row)
		if limit > 0 {
			limit--
		}
	}
	return headers, rows, nil
}

// Delete executes a DeleteStatement and returns the number of rows
// erased.
func (x *Executor) Delete(stmt *ast.DeleteStatement) (int, error) {
	r, err := x.resolve(stmt.Table)
	if err != nil {
		return 0, err
	}

	it := r.heap.NewIterator()
	defer it.Close()

	count := 0
	for {
		id, payload, ok, err := it.Next()
		if err != nil {
			return count, err
		}
		if !ok {
			break
		}

		match := true
		if stmt.Where != nil {
			values, err := decodeRow(r.columns, payload)
			if err != nil {
				return count, err
			}
			tri, err := r.eval.EvaluatePredicate(stmt.Where, values)
			if err != nil {
				return count, err
			}
			match = tri == value.TriTrue
		}
		if !match {
			continue
		}
		if err := r.heap.Erase(id); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// Update executes an UpdateStatement using the two-pass protocol from
// spec.md §4.I: collect all matching rows first, then evaluate and
// apply assignments against each row's pre-update values.
func (x *Executor) Update(stmt *ast.UpdateStatement) (int, error) {
	if len(stmt.Assignments) == 0 {
		return 0, kerr.New(kerr.ConstraintViolation, "UPDATE requires at least one assignment")
	}
	r, err := x.resolve(stmt.Table)
	if err != nil {
		return 0, err
	}

	type matchedRow struct {
		id     heap.RowID
		values []value.Value
	}
	var matches []matchedRow

	it := r.heap.NewIterator()
	for {
		id, payload, ok, err := it.Next()
		if err != nil {
			it.Close()
			return 0, err
		}
		if !ok {
			break
		}
		values, err := decodeRow(r.columns, payload)
		if err != nil {
			it.Close()
			return 0, err
		}
		include := true
		if stmt.Where != nil {
			tri, err := r.eval.EvaluatePredicate(stmt.Where, values)
			if err != nil {
				it.Close()
				return 0, err
			}
			include = tri == value.TriTrue
		}
		if include {
			matches = append(matches, matchedRow{id: id, values: values})
		}
	}
	it.Close()

	count := 0
	for _, m := range matches {
		newValues := append([]value.Value(nil), m.values...)
		for _, asg := range stmt.Assignments {
			idx, col, err := r.eval.ColumnIndex(asg.Column)
			if err != nil {
				return count, err
			}
			v, err := r.eval.EvaluateScalar(asg.Value, m.values, col.Type)
			if err != nil {
				return count, err
			}
			if v.IsNull() && col.Constraint.NotNull {
				return count, kerr.New(kerr.ConstraintViolation, "NOT NULL column cannot be set to null").With("column", col.Name)
			}
			if !v.IsNull() && col.Type == value.Varchar && col.Length > 0 && uint32(len(v.AsString())) > col.Length {
				return count, kerr.New(kerr.ConstraintViolation, "value exceeds declared VARCHAR length").With("column", col.Name)
			}
			newValues[idx] = v
		}

		payload, err := encodeRow(newValues)
		if err != nil {
			return count, err
		}
		if _, err := r.heap.Update(m.id, payload); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// Truncate executes a TruncateStatement.
func (x *Executor) Truncate(stmt *ast.TruncateStatement) error {
	r, err := x.resolve(stmt.Table)
	if err != nil {
		return err
	}
	return r.heap.Truncate()
}

// decodeRow decodes a wire record into Values in catalog order, per
// spec.md §4.I's row-decoding rules.
func decodeRow(columns []*catalog.ColumnEntry, payload []byte) ([]value.Value, error) {
	fields, ok := record.Decode(payload)
	if !ok || len(fields) != len(columns) {
		return nil, kerr.New(kerr.InvalidRecordFormat, "record field count does not match catalog column count")
	}
	values := make([]value.Value, len(columns))
	for i, col := range columns {
		f := fields[i]
		if f.IsNull {
			values[i] = value.Null(col.Type)
			continue
		}
		v, err := decodeField(col.Type, f.Payload)
		if err != nil {
			return nil, kerr.Wrap(err, kerr.KindOf(err), "column "+col.Name)
		}
		values[i] = v
	}
	return values, nil
}

func decodeField(t value.DataType, payload []byte) (value.Value, error) {
	switch t {
	case value.Boolean:
		if len(payload) == 0 {
			return value.BoolVal(false), nil
		}
		if len(payload) != 1 {
			return value.Value{}, kerr.New(kerr.InvalidArgument, "BOOLEAN payload must be 1 byte")
		}
		return value.BoolVal(payload[0] != 0), nil
	case value.Integer:
		if len(payload) != 4 {
			return value.Value{}, kerr.New(kerr.InvalidArgument, "INTEGER payload must be 4 bytes")
		}
		return value.Int32Val(int32(binary.LittleEndian.Uint32(payload))), nil
	case value.BigInt:
		if len(payload) != 8 {
			return value.Value{}, kerr.New(kerr.InvalidArgument, "BIGINT payload must be 8 bytes")
		}
		return value.Int64Val(int64(binary.LittleEndian.Uint64(payload))), nil
	case value.Date, value.Timestamp:
		if len(payload) != 8 {
			return value.Value{}, kerr.New(kerr.InvalidArgument, "DATE/TIMESTAMP payload must be 8 bytes")
		}
		return value.DateVal(int64(binary.LittleEndian.Uint64(payload))), nil
	case value.Float, value.Double:
		if len(payload) != 8 {
			return value.Value{}, kerr.New(kerr.InvalidArgument, "FLOAT/DOUBLE payload must be 8 bytes")
		}
		return value.DoubleVal(math.Float64frombits(binary.LittleEndian.Uint64(payload))), nil
	case value.Varchar, value.Text:
		return value.StringVal(string(payload), t), nil
	default:
		return value.Value{}, kerr.New(kerr.UnsupportedType, "cannot decode column type").With("type", t.String())
	}
}

func encodeRow(values []value.Value) ([]byte, error) {
	fields := make([]record.Field, len(values))
	for i, v := range values {
		f, err := encodeField(v)
		if err != nil {
			return nil, err
		}
		fields[i] = f
	}
	return record.Encode(fields)
}

func encodeField(v value.Value) (record.Field, error) {
	if v.IsNull() {
		return record.NullField(v.Type()), nil
	}
	switch v.Type() {
	case value.Boolean:
		b := byte(0)
		if v.AsBool() {
			b = 1
		}
		return record.Field{Type: v.Type(), Payload: []byte{b}}, nil
	case value.Integer:
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, uint32(v.AsInt32()))
		return record.Field{Type: v.Type(), Payload: buf}, nil
	case value.BigInt:
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, uint64(v.AsInt64()))
		return record.Field{Type: v.Type(), Payload: buf}, nil
	case value.Date, value.Timestamp:
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, uint64(v.AsInt64()))
		return record.Field{Type: v.Type(), Payload: buf}, nil
	case value.Float, value.Double:
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, math.Float64bits(v.AsDouble()))
		return record.Field{Type: v.Type(), Payload: buf}, nil
	case value.Varchar, value.Text:
		return record.Field{Type: v.Type(), Payload: []byte(v.AsString())}, nil
	default:
		return record.Field{}, kerr.New(kerr.UnsupportedType, "cannot encode column type").With("type", v.Type().String())
	}
}
