package sqlfront

import (
	"testing"

	"kizuna/internal/ast"
)

func TestParseCreateTable(t *testing.T) {
	stmt, err := Parse("CREATE TABLE users (id INTEGER PRIMARY KEY, name VARCHAR(32) NOT NULL, score DOUBLE DEFAULT 0.0)")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ct, ok := stmt.(*ast.CreateTableStatement)
	if !ok {
		t.Fatalf("expected *CreateTableStatement, got %T", stmt)
	}
	if ct.TableName != "users" {
		t.Errorf("expected table name 'users', got %q", ct.TableName)
	}
	if len(ct.Columns) != 3 {
		t.Fatalf("expected 3 columns, got %d", len(ct.Columns))
	}
	if ct.Columns[0].Constraints[0].Kind != ast.PrimaryKey {
		t.Error("expected first column to carry a PRIMARY KEY constraint")
	}
	if ct.Columns[1].TypeName != "VARCHAR" || ct.Columns[1].Length != 32 {
		t.Errorf("expected VARCHAR(32), got %s(%d)", ct.Columns[1].TypeName, ct.Columns[1].Length)
	}
	if ct.Columns[2].Constraints[0].Kind != ast.Default {
		t.Error("expected third column to carry a DEFAULT constraint")
	}
}

func TestParseDropTable(t *testing.T) {
	stmt, err := Parse("DROP TABLE IF EXISTS users CASCADE")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	dt, ok := stmt.(*ast.DropTableStatement)
	if !ok {
		t.Fatalf("expected *DropTableStatement, got %T", stmt)
	}
	if !dt.IfExists || !dt.Cascade || dt.TableName != "users" {
		t.Errorf("unexpected DropTableStatement: %+v", dt)
	}
}

func TestParseInsertWithColumnList(t *testing.T) {
	stmt, err := Parse("INSERT INTO users (id, name) VALUES (1, 'ann'), (2, 'bob')")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ins, ok := stmt.(*ast.InsertStatement)
	if !ok {
		t.Fatalf("expected *InsertStatement, got %T", stmt)
	}
	if ins.Table != "users" || len(ins.Columns) != 2 {
		t.Fatalf("unexpected insert shape: %+v", ins)
	}
	if len(ins.Rows) != 2 || len(ins.Rows[0].Values) != 2 {
		t.Fatalf("expected 2 rows of 2 values, got %+v", ins.Rows)
	}
}

func TestParseInsertWithoutColumnList(t *testing.T) {
	stmt, err := Parse("INSERT INTO users VALUES (1, 'ann')")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ins := stmt.(*ast.InsertStatement)
	if ins.Columns != nil {
		t.Errorf("expected nil column list, got %v", ins.Columns)
	}
}

func TestParseSelectStarWithWhereAndLimit(t *testing.T) {
	stmt, err := Parse("SELECT * FROM users WHERE age > 18 LIMIT 10")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	sel, ok := stmt.(*ast.SelectStatement)
	if !ok {
		t.Fatalf("expected *SelectStatement, got %T", stmt)
	}
	if len(sel.Items) != 1 || !sel.Items[0].Star {
		t.Errorf("expected a single '*' item, got %+v", sel.Items)
	}
	if sel.Where == nil {
		t.Fatal("expected a WHERE clause")
	}
	if sel.Limit == nil || *sel.Limit != 10 {
		t.Errorf("expected LIMIT 10, got %v", sel.Limit)
	}
}

func TestParseSelectColumnList(t *testing.T) {
	stmt, err := Parse("SELECT id, name FROM users")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	sel := stmt.(*ast.SelectStatement)
	if len(sel.Items) != 2 || sel.Items[0].Column != "id" || sel.Items[1].Column != "name" {
		t.Errorf("unexpected projection list: %+v", sel.Items)
	}
}

func TestParseUpdate(t *testing.T) {
	stmt, err := Parse("UPDATE users SET age = 31, name = 'annie' WHERE id = 1")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	upd, ok := stmt.(*ast.UpdateStatement)
	if !ok {
		t.Fatalf("expected *UpdateStatement, got %T", stmt)
	}
	if len(upd.Assignments) != 2 {
		t.Fatalf("expected 2 assignments, got %d", len(upd.Assignments))
	}
	if upd.Where == nil {
		t.Fatal("expected a WHERE clause")
	}
}

func TestParseDelete(t *testing.T) {
	stmt, err := Parse("DELETE FROM users WHERE id = 1")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	del, ok := stmt.(*ast.DeleteStatement)
	if !ok {
		t.Fatalf("expected *DeleteStatement, got %T", stmt)
	}
	if del.Table != "users" || del.Where == nil {
		t.Errorf("unexpected delete shape: %+v", del)
	}
}

func TestParseTruncateWithAndWithoutTableKeyword(t *testing.T) {
	stmt, err := Parse("TRUNCATE TABLE users")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if tr, ok := stmt.(*ast.TruncateStatement); !ok || tr.Table != "users" {
		t.Errorf("unexpected truncate shape: %+v", stmt)
	}

	stmt, err = Parse("TRUNCATE users")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if tr, ok := stmt.(*ast.TruncateStatement); !ok || tr.Table != "users" {
		t.Errorf("unexpected truncate shape: %+v", stmt)
	}
}

func TestParseExprPrecedenceNotAndOr(t *testing.T) {
	// NOT a = 1 AND b = 2 OR c = 3  parses as  ((NOT (a=1)) AND (b=2)) OR (c=3)
	stmt, err := Parse("SELECT * FROM t WHERE NOT a = 1 AND b = 2 OR c = 3")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	sel := stmt.(*ast.SelectStatement)
	top, ok := sel.Where.(ast.Binary)
	if !ok || top.Op != ast.OpOr {
		t.Fatalf("expected top-level OR, got %+v", sel.Where)
	}
	left, ok := top.Left.(ast.Binary)
	if !ok || left.Op != ast.OpAnd {
		t.Fatalf("expected left side of OR to be an AND, got %+v", top.Left)
	}
	if _, ok := left.Left.(ast.Unary); !ok {
		t.Errorf("expected leftmost operand to be the NOT node, got %+v", left.Left)
	}
}

func TestParseColumnRefQualified(t *testing.T) {
	stmt, err := Parse("SELECT * FROM users WHERE users.id = 1")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	sel := stmt.(*ast.SelectStatement)
	cmp := sel.Where.(ast.Binary)
	colExpr, ok := cmp.Left.(ast.ColumnExpr)
	if !ok {
		t.Fatalf("expected ColumnExpr, got %T", cmp.Left)
	}
	if colExpr.Ref.Table != "users" || colExpr.Ref.Column != "id" {
		t.Errorf("unexpected column ref: %+v", colExpr.Ref)
	}
}

func TestParseIsNullAndIsNotNull(t *testing.T) {
	stmt, err := Parse("SELECT * FROM t WHERE a IS NULL")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	sel := stmt.(*ast.SelectStatement)
	nt, ok := sel.Where.(ast.NullTest)
	if !ok || nt.Not {
		t.Fatalf("expected IS NULL, got %+v", sel.Where)
	}

	stmt, err = Parse("SELECT * FROM t WHERE a IS NOT NULL")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	sel = stmt.(*ast.SelectStatement)
	nt, ok = sel.Where.(ast.NullTest)
	if !ok || !nt.Not {
		t.Fatalf("expected IS NOT NULL, got %+v", sel.Where)
	}
}

func TestParseParenthesizedExpr(t *testing.T) {
	stmt, err := Parse("SELECT * FROM t WHERE (a = 1 OR b = 2) AND c = 3")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	sel := stmt.(*ast.SelectStatement)
	top, ok := sel.Where.(ast.Binary)
	if !ok || top.Op != ast.OpAnd {
		t.Fatalf("expected top-level AND, got %+v", sel.Where)
	}
	if _, ok := top.Left.(ast.Binary); !ok {
		t.Errorf("expected parenthesized OR on the left, got %+v", top.Left)
	}
}

func TestParseRejectsTrailingGarbage(t *testing.T) {
	if _, err := Parse("SELECT * FROM t WHERE a = 1 extra"); err == nil {
		t.Error("expected a syntax error for trailing tokens")
	}
}

func TestParseRejectsUnknownStatement(t *testing.T) {
	if _, err := Parse("FROBNICATE t"); err == nil {
		t.Error("expected a syntax error for an unrecognized statement")
	}
}

func TestParseTrailingSemicolonAccepted(t *testing.T) {
	if _, err := Parse("SELECT * FROM t;"); err != nil {
		t.Errorf("expected a trailing semicolon to be accepted, got %v", err)
	}
}
