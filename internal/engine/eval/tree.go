package eval

import (
	"kizuna/internal/ast"
	"kizuna/internal/kerr"
	"kizuna/internal/value"
)

func toLiteralText(lit ast.LiteralValue) LiteralText {
	switch lit.Kind {
	case ast.IntegerLiteral:
		return LiteralText{Kind: LiteralInteger, Text: lit.Text}
	case ast.DecimalLiteral:
		return LiteralText{Kind: LiteralDecimal, Text: lit.Text}
	case ast.StringLiteral:
		return LiteralText{Kind: LiteralString, Text: lit.Text}
	case ast.BoolLiteral:
		return LiteralText{Kind: LiteralBool, Text: lit.Text}
	default:
		return LiteralText{Kind: LiteralNull}
	}
}

// EvaluateScalar evaluates a literal or column reference to a Value.
// Any relational/logical/null-test node is a predicate, not a scalar,
// and raises TYPE_ERROR — per spec.md §4.H.
func (e *Evaluator) EvaluateScalar(expr ast.Expr, row []value.Value, target value.DataType) (value.Value, error) {
	switch n := expr.(type) {
	case ast.Literal:
		return CoerceLiteral(toLiteralText(n.Value), target)
	case ast.ColumnExpr:
		pos, _, err := e.bindColumn(n.Ref.Table, n.Ref.Column)
		if err != nil {
			return value.Value{}, err
		}
		return row[pos], nil
	default:
		return value.Value{}, kerr.New(kerr.TypeError, "expression is not a scalar")
	}
}

// EvaluatePredicate evaluates expr against row, returning Kleene
// three-valued logic.
func (e *Evaluator) EvaluatePredicate(expr ast.Expr, row []value.Value) (value.TriBool, error) {
	switch n := expr.(type) {
	case ast.Literal:
		v, err := CoerceLiteral(toLiteralText(n.Value), value.NullType)
		if err != nil {
			return value.TriUnknown, err
		}
		return truthiness(v)

	case ast.ColumnExpr:
		pos, _, err := e.bindColumn(n.Ref.Table, n.Ref.Column)
		if err != nil {
			return value.TriUnknown, err
		}
		return truthiness(row[pos])

	case ast.Unary:
		operand, err := e.EvaluatePredicate(n.Operand, row)
		if err != nil {
			return value.TriUnknown, err
		}
		return value.Not(operand), nil

	case ast.Binary:
		switch n.Op {
		case ast.OpAnd, ast.OpOr:
			left, err := e.EvaluatePredicate(n.Left, row)
			if err != nil {
				return value.TriUnknown, err
			}
			right, err := e.EvaluatePredicate(n.Right, row)
			if err != nil {
				return value.TriUnknown, err
			}
			if n.Op == ast.OpAnd {
				return value.And(left, right), nil
			}
			return value.Or(left, right), nil
		default:
			return e.evaluateComparison(n, row)
		}

	case ast.NullTest:
		v, operandIsScalar := e.evaluateOperandValue(n.Operand, row)
		if !operandIsScalar {
			return value.TriUnknown, kerr.New(kerr.TypeError, "IS [NOT] NULL requires a scalar operand")
		}
		isNull := v.IsNull()
		if n.Not {
			isNull = !isNull
		}
		if isNull {
			return value.TriTrue, nil
		}
		return value.TriFalse, nil

	default:
		return value.TriUnknown, kerr.New(kerr.TypeError, "unsupported predicate node")
	}
}

// evaluateOperandValue evaluates a literal or column reference
// without a target type (used by IS [NOT] NULL, where no coercion is
// meaningful).
func (e *Evaluator) evaluateOperandValue(expr ast.Expr, row []value.Value) (value.Value, bool) {
	switch n := expr.(type) {
	case ast.Literal:
		v, err := CoerceLiteral(toLiteralText(n.Value), value.NullType)
		if err != nil {
			return value.Value{}, false
		}
		return v, true
	case ast.ColumnExpr:
		pos, _, err := e.bindColumn(n.Ref.Table, n.Ref.Column)
		if err != nil {
			return value.Value{}, false
		}
		return row[pos], true
	default:
		return value.Value{}, false
	}
}

var binaryToCompareOp = map[ast.BinaryOp]compareOp{
	ast.OpEq: opEq, ast.OpNe: opNe, ast.OpLt: opLt, ast.OpLe: opLe, ast.OpGt: opGt, ast.OpGe: opGe,
}

// evaluateComparison evaluates a relational node: each side is
// coerced toward the other side's column type when one side is a
// column reference, then compared.
func (e *Evaluator) evaluateComparison(n ast.Binary, row []value.Value) (value.TriBool, error) {
	leftCol, leftIsCol := n.Left.(ast.ColumnExpr)
	rightCol, rightIsCol := n.Right.(ast.ColumnExpr)

	var leftTarget, rightTarget value.DataType
	if rightIsCol {
		_, ce, err := e.bindColumn(rightCol.Ref.Table, rightCol.Ref.Column)
		if err != nil {
			return value.TriUnknown, err
		}
		leftTarget = ce.Type
	}
	if leftIsCol {
		_, ce, err := e.bindColumn(leftCol.Ref.Table, leftCol.Ref.Column)
		if err != nil {
			return value.TriUnknown, err
		}
		rightTarget = ce.Type
	}

	left, err := e.EvaluateScalar(n.Left, row, leftTarget)
	if err != nil {
		return value.TriUnknown, err
	}
	right, err := e.EvaluateScalar(n.Right, row, rightTarget)
	if err != nil {
		return value.TriUnknown, err
	}

	cmp, err := value.Compare(left, right)
	if err != nil {
		return value.TriUnknown, err
	}
	return compareResultToBool(cmp, binaryToCompareOp[n.Op]), nil
}
