package sqlfront

import (
	"strconv"
	"strings"

	"kizuna/internal/ast"
	"kizuna/internal/kerr"
)

// parser is a curToken/peekToken recursive-descent parser, the same
// two-token lookahead shape as DaemonDB's query_parser/parser —
// generalized to return errors instead of panicking, since this
// parser is a library entry point rather than a throwaway REPL tool.
type parser struct {
	l         *lexer
	curToken  Token
	peekToken Token
	sql       string
}

// Parse lexes and parses one SQL statement, trimming a single
// trailing semicolon if present.
func Parse(sql string) (ast.Statement, error) {
	p := &parser{l: newLexer(sql), sql: sql}
	p.nextToken()
	p.nextToken()
	return p.parseStatement()
}

func (p *parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.next()
}

func (p *parser) expect(kind Kind) error {
	if p.curToken.Kind != kind {
		return p.errf("unexpected token %q", p.curToken.Value)
	}
	p.nextToken()
	return nil
}

func (p *parser) errf(format string, args ...any) error {
	return kerr.Newf(kerr.SyntaxError, format, args...).With("sql", p.sql)
}

func (p *parser) parseStatement() (ast.Statement, error) {
	var stmt ast.Statement
	var err error

	switch p.curToken.Kind {
	case CREATE:
		stmt, err = p.parseCreateTable()
	case DROP:
		stmt, err = p.parseDropTable()
	case INSERT:
		stmt, err = p.parseInsert()
	case SELECT:
		stmt, err = p.parseSelect()
	case UPDATE:
		stmt, err = p.parseUpdate()
	case DELETE:
		stmt, err = p.parseDelete()
	case TRUNCATE:
		stmt, err = p.parseTruncate()
	default:
		return nil, p.errf("unexpected token %q at start of statement", p.curToken.Value)
	}
	if err != nil {
		return nil, err
	}

	if p.curToken.Kind == SEMICOLON {
		p.nextToken()
	}
	if p.curToken.Kind != EOF {
		return nil, p.errf("unexpected trailing token %q", p.curToken.Value)
	}
	return stmt, nil
}

// --- CREATE TABLE ---

func (p *parser) parseCreateTable() (*ast.CreateTableStatement, error) {
	sqlText := strings.TrimSpace(p.sql)
	p.nextToken() // consume CREATE
	if err := p.expect(TABLE); err != nil {
		return nil, err
	}

	name, err := p.parseIdentText()
	if err != nil {
		return nil, err
	}
	if err := p.expect(LPAREN); err != nil {
		return nil, err
	}

	var cols []ast.ColumnDefAST
	for {
		col, err := p.parseColumnDef()
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
		if p.curToken.Kind == COMMA {
			p.nextToken()
			continue
		}
		break
	}
	if err := p.expect(RPAREN); err != nil {
		return nil, err
	}

	return &ast.CreateTableStatement{TableName: name, Columns: cols, SQL: sqlText}, nil
}

func (p *parser) parseColumnDef() (ast.ColumnDefAST, error) {
	name, err := p.parseIdentText()
	if err != nil {
		return ast.ColumnDefAST{}, err
	}
	typeName, err := p.parseIdentText()
	if err != nil {
		return ast.ColumnDefAST{}, err
	}
	typeName = strings.ToUpper(typeName)

	col := ast.ColumnDefAST{Name: name, TypeName: typeName}

	if typeName == "VARCHAR" {
		if err := p.expect(LPAREN); err != nil {
			return ast.ColumnDefAST{}, err
		}
		if p.curToken.Kind != INTLIT {
			return ast.ColumnDefAST{}, p.errf("expected VARCHAR length, got %q", p.curToken.Value)
		}
		n, err := strconv.Atoi(p.curToken.Value)
		if err != nil {
			return ast.ColumnDefAST{}, p.errf("invalid VARCHAR length %q", p.curToken.Value)
		}
		col.Length = n
		p.nextToken()
		if err := p.expect(RPAREN); err != nil {
			return ast.ColumnDefAST{}, err
		}
	}

	for {
		switch p.curToken.Kind {
		case PRIMARY:
			p.nextToken()
			if err := p.expect(KEY); err != nil {
				return ast.ColumnDefAST{}, err
			}
			col.Constraints = append(col.Constraints, ast.ColumnConstraintAST{Kind: ast.PrimaryKey})
		case NOT:
			p.nextToken()
			if err := p.expect(NULLKW); err != nil {
				return ast.ColumnDefAST{}, err
			}
			col.Constraints = append(col.Constraints, ast.ColumnConstraintAST{Kind: ast.NotNull})
		case UNIQUE:
			p.nextToken()
			col.Constraints = append(col.Constraints, ast.ColumnConstraintAST{Kind: ast.Unique})
		case DEFAULT:
			p.nextToken()
			lit, err := p.parseLiteralValue()
			if err != nil {
				return ast.ColumnDefAST{}, err
			}
			col.Constraints = append(col.Constraints, ast.ColumnConstraintAST{Kind: ast.Default, Literal: &lit})
		default:
			return col, nil
		}
	}
}

// --- DROP TABLE ---

func (p *parser) parseDropTable() (*ast.DropTableStatement, error) {
	p.nextToken() // DROP
	if err := p.expect(TABLE); err != nil {
		return nil, err
	}
	stmt := &ast.DropTableStatement{}
	if p.curToken.Kind == IF {
		p.nextToken()
		if err := p.expect(EXISTS); err != nil {
			return nil, err
		}
		stmt.IfExists = true
	}
	name, err := p.parseIdentText()
	if err != nil {
		return nil, err
	}
	stmt.TableName = name
	if p.curToken.Kind == CASCADE {
		stmt.Cascade = true
		p.nextToken()
	}
	return stmt, nil
}

// --- INSERT ---

func (p *parser) parseInsert() (*ast.InsertStatement, error) {
	p.nextToken() // INSERT
	if err := p.expect(INTO); err != nil {
		return nil, err
	}
	table, err := p.parseIdentText()
	if err != nil {
		return nil, err
	}
	stmt := &ast.InsertStatement{Table: table}

	if p.curToken.Kind == LPAREN {
		p.nextToken()
		for {
			name, err := p.parseIdentText()
			if err != nil {
				return nil, err
			}
			stmt.Columns = append(stmt.Columns, name)
			if p.curToken.Kind == COMMA {
				p.nextToken()
				continue
			}
			break
		}
		if err := p.expect(RPAREN); err != nil {
			return nil, err
		}
	}

	if err := p.expect(VALUES); err != nil {
		return nil, err
	}

	for {
		row, err := p.parseInsertRow()
		if err != nil {
			return nil, err
		}
		stmt.Rows = append(stmt.Rows, row)
		if p.curToken.Kind == COMMA {
			p.nextToken()
			continue
		}
		break
	}
	return stmt, nil
}

func (p *parser) parseInsertRow() (ast.InsertRow, error) {
	if err := p.expect(LPAREN); err != nil {
		return ast.InsertRow{}, err
	}
	var row ast.InsertRow
	for {
		lit, err := p.parseLiteralValue()
		if err != nil {
			return ast.InsertRow{}, err
		}
		row.Values = append(row.Values, ast.Literal{Value: lit})
		if p.curToken.Kind == COMMA {
			p.nextToken()
			continue
		}
		break
	}
	if err := p.expect(RPAREN); err != nil {
		return ast.InsertRow{}, err
	}
	return row, nil
}

// --- SELECT ---

func (p *parser) parseSelect() (*ast.SelectStatement, error) {
	p.nextToken() // SELECT

	var items []ast.SelectItem
	for {
		if p.curToken.Kind == ASTERISK {
			items = append(items, ast.SelectItem{Star: true})
			p.nextToken()
		} else {
			name, err := p.parseIdentText()
			if err != nil {
				return nil, err
			}
			items = append(items, ast.SelectItem{Column: name})
		}
		if p.curToken.Kind == COMMA {
			p.nextToken()
			continue
		}
		break
	}

	if err := p.expect(FROM); err != nil {
		return nil, err
	}
	table, err := p.parseIdentText()
	if err != nil {
		return nil, err
	}

	stmt := &ast.SelectStatement{Table: table, Items: items}

	if p.curToken.Kind == WHERE {
		p.nextToken()
		where, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		stmt.Where = where
	}

	if p.curToken.Kind == LIMIT {
		p.nextToken()
		if p.curToken.Kind != INTLIT {
			return nil, p.errf("expected integer after LIMIT, got %q", p.curToken.Value)
		}
		n, err := strconv.Atoi(p.curToken.Value)
		if err != nil {
			return nil, p.errf("invalid LIMIT value %q", p.curToken.Value)
		}
		stmt.Limit = &n
		p.nextToken()
	}

	return stmt, nil
}

// --- UPDATE ---

func (p *parser) parseUpdate() (*ast.UpdateStatement, error) {
	p.nextToken() // UPDATE
	table, err := p.parseIdentText()
	if err != nil {
		return nil, err
	}
	if err := p.expect(SET); err != nil {
		return nil, err
	}

	stmt := &ast.UpdateStatement{Table: table}
	for {
		col, err := p.parseIdentText()
		if err != nil {
			return nil, err
		}
		if err := p.expect(EQ); err != nil {
			return nil, err
		}
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		stmt.Assignments = append(stmt.Assignments, ast.UpdateAssignment{Column: col, Value: val})
		if p.curToken.Kind == COMMA {
			p.nextToken()
			continue
		}
		break
	}

	if p.curToken.Kind == WHERE {
		p.nextToken()
		where, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		stmt.Where = where
	}
	return stmt, nil
}

// --- DELETE ---

func (p *parser) parseDelete() (*ast.DeleteStatement, error) {
	p.nextToken() // DELETE
	if err := p.expect(FROM); err != nil {
		return nil, err
	}
	table, err := p.parseIdentText()
	if err != nil {
		return nil, err
	}
	stmt := &ast.DeleteStatement{Table: table}
	if p.curToken.Kind == WHERE {
		p.nextToken()
		where, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		stmt.Where = where
	}
	return stmt, nil
}

// --- TRUNCATE ---

func (p *parser) parseTruncate() (*ast.TruncateStatement, error) {
	p.nextToken() // TRUNCATE
	if p.curToken.Kind == TABLE {
		p.nextToken()
	}
	table, err := p.parseIdentText()
	if err != nil {
		return nil, err
	}
	return &ast.TruncateStatement{Table: table}, nil
}

// --- expressions, precedence: NOT > AND > OR ---

func (p *parser) parseExpr() (ast.Expr, error) {
	return p.parseOr()
}

func (p *parser) parseOr() (ast.Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.curToken.Kind == OR {
		p.nextToken()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = ast.Binary{Op: ast.OpOr, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (ast.Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.curToken.Kind == AND {
		p.nextToken()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = ast.Binary{Op: ast.OpAnd, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseNot() (ast.Expr, error) {
	if p.curToken.Kind == NOT {
		p.nextToken()
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return ast.Unary{Op: ast.OpNot, Operand: operand}, nil
	}
	return p.parseComparison()
}

var comparisonOps = map[Kind]ast.BinaryOp{
	EQ: ast.OpEq, NE: ast.OpNe, LT: ast.OpLt, LE: ast.OpLe, GT: ast.OpGt, GE: ast.OpGe,
}

func (p *parser) parseComparison() (ast.Expr, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	if p.curToken.Kind == IS {
		p.nextToken()
		not := false
		if p.curToken.Kind == NOT {
			not = true
			p.nextToken()
		}
		if err := p.expect(NULLKW); err != nil {
			return nil, err
		}
		return ast.NullTest{Operand: left, Not: not}, nil
	}

	if op, ok := comparisonOps[p.curToken.Kind]; ok {
		p.nextToken()
		right, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		return ast.Binary{Op: op, Left: left, Right: right}, nil
	}

	return left, nil
}

func (p *parser) parsePrimary() (ast.Expr, error) {
	switch p.curToken.Kind {
	case LPAREN:
		p.nextToken()
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(RPAREN); err != nil {
			return nil, err
		}
		return inner, nil
	case INTLIT, DECIMALLIT, STRINGLIT, NULLKW, TRUEKW, FALSEKW:
		lit, err := p.parseLiteralValue()
		if err != nil {
			return nil, err
		}
		return ast.Literal{Value: lit}, nil
	case IDENT:
		ref, err := p.parseColumnRef()
		if err != nil {
			return nil, err
		}
		return ast.ColumnExpr{Ref: ref}, nil
	default:
		return nil, p.errf("unexpected token %q in expression", p.curToken.Value)
	}
}

func (p *parser) parseColumnRef() (ast.ColumnRef, error) {
	first, err := p.parseIdentText()
	if err != nil {
		return ast.ColumnRef{}, err
	}
	if p.curToken.Kind == DOT {
		p.nextToken()
		second, err := p.parseIdentText()
		if err != nil {
			return ast.ColumnRef{}, err
		}
		return ast.ColumnRef{Table: first, Column: second}, nil
	}
	return ast.ColumnRef{Column: first}, nil
}

func (p *parser) parseLiteralValue() (ast.LiteralValue, error) {
	switch p.curToken.Kind {
	case INTLIT:
		v := ast.LiteralValue{Kind: ast.IntegerLiteral, Text: p.curToken.Value}
		p.nextToken()
		return v, nil
	case DECIMALLIT:
		v := ast.LiteralValue{Kind: ast.DecimalLiteral, Text: p.curToken.Value}
		p.nextToken()
		return v, nil
	case STRINGLIT:
		v := ast.LiteralValue{Kind: ast.StringLiteral, Text: p.curToken.Value}
		p.nextToken()
		return v, nil
	case TRUEKW:
		p.nextToken()
		return ast.LiteralValue{Kind: ast.BoolLiteral, Text: "true"}, nil
	case FALSEKW:
		p.nextToken()
		return ast.LiteralValue{Kind: ast.BoolLiteral, Text: "false"}, nil
	case NULLKW:
		p.nextToken()
		return ast.LiteralValue{Kind: ast.NullLiteral}, nil
	default:
		return ast.LiteralValue{}, p.errf("expected a literal, got %q", p.curToken.Value)
	}
}

func (p *parser) parseIdentText() (string, error) {
	if p.curToken.Kind != IDENT {
		return "", p.errf("expected identifier, got %q", p.curToken.Value)
	}
	name := p.curToken.Value
	p.nextToken()
	return name, nil
}
