package optimizer

import (
	"math"
	"strconv"

	"github.com/funvibe/watc/internal/ast"
	"github.com/funvibe/watc/internal/token"
	"github.com/funvibe/watc/internal/typesystem"
)

// constant is a compile-time value of either kind.
type constant struct {
	kind typesystem.Kind
	i    int32
	f    float32
}

func constantOf(e ast.Expression) (constant, bool) {
	switch lit := e.(type) {
	case *ast.IntegerLiteral:
		return constant{kind: typesystem.KindI32, i: lit.Value}, true
	case *ast.FloatLiteral:
		return constant{kind: typesystem.KindF32, f: lit.Value}, true
	}
	return constant{}, false
}

// widen converts c to kind k the way f32.convert_i32_s does.
func (c constant) widen(k typesystem.Kind) constant {
	if typesystem.NeedsWidening(c.kind, k) {
		return constant{kind: typesystem.KindF32, f: float32(c.i)}
	}
	return c
}

// truthy is false exactly for the zero of the value's kind.
func (c constant) truthy() bool {
	if c.kind == typesystem.KindF32 {
		return c.f != 0
	}
	return c.i != 0
}

func (c constant) literal(tok token.Token) ast.Expression {
	if c.kind == typesystem.KindF32 {
		tok.Type = token.FLOAT
		tok.Lexeme = strconv.FormatFloat(float64(c.f), 'g', -1, 32)
		tok.Literal = c.f
		return &ast.FloatLiteral{Token: tok, Value: c.f}
	}
	tok.Type = token.INT
	tok.Lexeme = strconv.FormatInt(int64(c.i), 10)
	tok.Literal = c.i
	return &ast.IntegerLiteral{Token: tok, Value: c.i}
}

func boolConstant(b bool) constant {
	if b {
		return constant{kind: typesystem.KindI32, i: 1}
	}
	return constant{kind: typesystem.KindI32}
}

// foldPrefix evaluates -c or !c.
func foldPrefix(op string, c constant) (constant, bool) {
	switch op {
	case "-":
		if c.kind == typesystem.KindF32 {
			return constant{kind: typesystem.KindF32, f: float32(-c.f)}, true
		}
		// i32 negation wraps: -MinInt32 == MinInt32.
		return constant{kind: typesystem.KindI32, i: 0 - c.i}, true
	case "!":
		return boolConstant(!c.truthy()), true
	}
	return constant{}, false
}

// foldArithmetic evaluates l op r at kind k. It declines integer division
// and remainder that would trap at run time.
func foldArithmetic(op string, k typesystem.Kind, l, r constant) (constant, bool) {
	l, r = l.widen(k), r.widen(k)

	if k == typesystem.KindF32 {
		var v float32
		switch op {
		case "+":
			v = float32(l.f + r.f)
		case "-":
			v = float32(l.f - r.f)
		case "*":
			v = float32(l.f * r.f)
		case "/":
			v = float32(l.f / r.f)
		default:
			return constant{}, false
		}
		return constant{kind: typesystem.KindF32, f: v}, true
	}

	var v int32
	switch op {
	case "+":
		v = l.i + r.i
	case "-":
		v = l.i - r.i
	case "*":
		v = l.i * r.i
	case "/":
		if r.i == 0 || (l.i == math.MinInt32 && r.i == -1) {
			return constant{}, false
		}
		v = l.i / r.i
	case "%":
		if r.i == 0 {
			return constant{}, false
		}
		v = l.i % r.i
	default:
		return constant{}, false
	}
	return constant{kind: typesystem.KindI32, i: v}, true
}

// foldComparison compares l and r at their common kind.
func foldComparison(op string, l, r constant) (constant, bool) {
	k := typesystem.Wider(l.kind, r.kind)
	l, r = l.widen(k), r.widen(k)

	if k == typesystem.KindF32 {
		switch op {
		case "==":
			return boolConstant(l.f == r.f), true
		case "!=":
			return boolConstant(l.f != r.f), true
		case "<":
			return boolConstant(l.f < r.f), true
		case ">":
			return boolConstant(l.f > r.f), true
		case "<=":
			return boolConstant(l.f <= r.f), true
		case ">=":
			return boolConstant(l.f >= r.f), true
		}
		return constant{}, false
	}

	switch op {
	case "==":
		return boolConstant(l.i == r.i), true
	case "!=":
		return boolConstant(l.i != r.i), true
	case "<":
		return boolConstant(l.i < r.i), true
	case ">":
		return boolConstant(l.i > r.i), true
	case "<=":
		return boolConstant(l.i <= r.i), true
	case ">=":
		return boolConstant(l.i >= r.i), true
	}
	return constant{}, false
}
