package optimizer

import (
	"math"
	"strings"
	"testing"

	"github.com/funvibe/watc/internal/analyzer"
	"github.com/funvibe/watc/internal/ast"
	"github.com/funvibe/watc/internal/config"
	"github.com/funvibe/watc/internal/lexer"
	"github.com/funvibe/watc/internal/parser"
	"github.com/funvibe/watc/internal/pipeline"
	"github.com/funvibe/watc/internal/prettyprinter"
	"github.com/funvibe/watc/internal/typesystem"
)

func optimizeWith(t *testing.T, input string, opts config.OptimizeOptions) *ast.Program {
	t.Helper()
	ctx := pipeline.NewPipelineContext(input)
	ctx.Options.Optimize = opts
	p := pipeline.New(&lexer.LexerProcessor{}, &parser.ParserProcessor{},
		&analyzer.SemanticAnalyzerProcessor{}, &OptimizerProcessor{})
	ctx = p.Run(ctx)
	if len(ctx.Errors) > 0 {
		t.Fatalf("unexpected error: %v\ninput: %s", ctx.Errors[0], input)
	}
	return ctx.AstRoot
}

func optimize(t *testing.T, input string) *ast.Program {
	t.Helper()
	return optimizeWith(t, input, config.Defaults().Optimize)
}

// letValue returns the initializer of the top-level let named name.
func letValue(t *testing.T, program *ast.Program, name string) ast.Expression {
	t.Helper()
	for _, s := range program.Statements {
		if let, ok := s.(*ast.LetStatement); ok && let.Name.Value == name {
			return let.Value
		}
	}
	t.Fatalf("no let %s", name)
	return nil
}

func expectInt(t *testing.T, e ast.Expression, want int32) {
	t.Helper()
	lit, ok := e.(*ast.IntegerLiteral)
	if !ok {
		t.Fatalf("expected IntegerLiteral %d, got %T (%s)", want, e, prettyprinter.NewCodePrinter().String(e))
	}
	if lit.Value != want {
		t.Errorf("value = %d, want %d", lit.Value, want)
	}
}

func expectFloat(t *testing.T, e ast.Expression, want float32) {
	t.Helper()
	lit, ok := e.(*ast.FloatLiteral)
	if !ok {
		t.Fatalf("expected FloatLiteral %v, got %T (%s)", want, e, prettyprinter.NewCodePrinter().String(e))
	}
	if lit.Value != want && !(math.IsNaN(float64(want)) && math.IsNaN(float64(lit.Value))) {
		t.Errorf("value = %v, want %v", lit.Value, want)
	}
}

func printed(program *ast.Program) string {
	return strings.TrimSpace(prettyprinter.NewCodePrinter().Print(program))
}

func TestFoldArithmetic(t *testing.T) {
	program := optimize(t, `
let a = 3.0 + 4.0;
let b = -5;
let c = 2 * 3 + 4;
let d = 1 + 0.5;
let e = 7 / 2;
let f = 7 % 3;
let g = 1.0 / 0.0;
let h = -(2.5);
`)
	expectFloat(t, letValue(t, program, "a"), 7)
	expectInt(t, letValue(t, program, "b"), -5)
	expectInt(t, letValue(t, program, "c"), 10)
	expectFloat(t, letValue(t, program, "d"), 1.5)
	expectInt(t, letValue(t, program, "e"), 3)
	expectInt(t, letValue(t, program, "f"), 1)
	expectFloat(t, letValue(t, program, "g"), float32(math.Inf(1)))
	expectFloat(t, letValue(t, program, "h"), -2.5)
}

func TestFoldWrapsLikeI32(t *testing.T) {
	program := optimize(t, `
let a = 2147483647 + 1;
let b = 65536 * 65536;
let c = -2147483648;
let d = -2147483648 % -1;
`)
	expectInt(t, letValue(t, program, "a"), math.MinInt32)
	expectInt(t, letValue(t, program, "b"), 0)
	expectInt(t, letValue(t, program, "c"), math.MinInt32)
	expectInt(t, letValue(t, program, "d"), 0)
}

func TestTrappingDivisionIsNotFolded(t *testing.T) {
	program := optimize(t, `
let a = 1 / 0;
let b = 1 % 0;
let c = -2147483648 / -1;
`)
	for _, name := range []string{"a", "b", "c"} {
		if _, ok := letValue(t, program, name).(*ast.InfixExpression); !ok {
			t.Errorf("%s was folded to %T", name, letValue(t, program, name))
		}
	}
}

func TestFoldComparisonsAndNot(t *testing.T) {
	program := optimize(t, `
let a = 1 < 2;
let b = 2.5 == 2.5;
let c = 3 >= 3.5;
let d = !0;
let e = !0.5;
let f = 1 != 1;
`)
	expectInt(t, letValue(t, program, "a"), 1)
	expectInt(t, letValue(t, program, "b"), 1)
	expectInt(t, letValue(t, program, "c"), 0)
	expectInt(t, letValue(t, program, "d"), 1)
	expectInt(t, letValue(t, program, "e"), 0)
	expectInt(t, letValue(t, program, "f"), 0)
}

func TestFoldLogical(t *testing.T) {
	program := optimize(t, `
let x = 2;
let a = 5 && 3.14;
let b = 0 && 3.14;
let c = 0 || 7;
let d = 4 || x;
let e = 1 && x;
let f = 1 && 2.5 * x;
let g = 0.0 || x;
`)
	expectFloat(t, letValue(t, program, "a"), 3.14)
	expectFloat(t, letValue(t, program, "b"), 0)
	expectInt(t, letValue(t, program, "c"), 7)
	expectInt(t, letValue(t, program, "d"), 4)
	if id, ok := letValue(t, program, "e").(*ast.Identifier); !ok || id.Value != "x" {
		t.Errorf("e = %T, want identifier x", letValue(t, program, "e"))
	}
	if _, ok := letValue(t, program, "f").(*ast.InfixExpression); !ok {
		t.Errorf("f = %T, want the right operand", letValue(t, program, "f"))
	}
	// The right operand is i32 but the node is f32, so the node stays.
	g, ok := letValue(t, program, "g").(*ast.InfixExpression)
	if !ok || g.Operator != "||" || g.Kind() != typesystem.KindF32 {
		t.Errorf("g = %s, want an f32 || node", prettyprinter.NewCodePrinter().String(letValue(t, program, "g")))
	}
}

func TestFoldReachesNestedExpressions(t *testing.T) {
	program := optimize(t, `
function f(a) { return a * (2 + 3); }
f(1 + 1);
`)
	want := "function f(a) {\n    return a * 5;\n}\n\nf(2);"
	if got := printed(program); got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestDeadCodeAfterTerminators(t *testing.T) {
	program := optimize(t, `
function f(x) {
    return x;
    x = x + 1;
    return 0;
}
function g(x) {
    while (x) {
        {
            break;
        }
        x = x - 1;
    }
    return x;
}
f(1) + g(2);
`)
	want := `function f(x) {
    return x;
}

function g(x) {
    while (x) {
        {
            break;
        }
    }
    return x;
}

f(1) + g(2);`
	if got := printed(program); got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestConstantConditions(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"let x = 1; if (1) x = 2; else x = 3; x;", "let x = 1;\n{\n    x = 2;\n}\nx;"},
		{"let x = 1; if (0) x = 2; else { x = 3; } x;", "let x = 1;\n{\n    x = 3;\n}\nx;"},
		{"let x = 1; if (0.0) x = 2; x;", "let x = 1;\nx;"},
		{"let x = 1; if (2 > 1) { x = 2; } x;", "let x = 1;\n{\n    x = 2;\n}\nx;"},
		{"let x = 1; while (0) x = x + 1; x;", "let x = 1;\nx;"},
		{"let x = 1; for (let i = 0; 0; i = i + 1) x = i; x;", "let x = 1;\n{\n    let i = 0;\n}\nx;"},
		{"let x = 1; for (; 1 < 0;) x = 2; x;", "let x = 1;\nx;"},
		{"let x = 1; if (1) if (0) x = 2; x;", "let x = 1;\nx;"},
	}

	for _, tt := range tests {
		program := optimize(t, tt.input)
		if got := printed(program); got != tt.expected {
			t.Errorf("input %q\ngot:\n%s\nwant:\n%s", tt.input, got, tt.expected)
		}
	}
}

func TestLiveLoopsAreKept(t *testing.T) {
	program := optimize(t, `
let i = 0;
while (1) { i = i + 1; if (i > 3) break; }
for (;;) { break; }
i;
`)
	var loops int
	for _, s := range program.Statements {
		switch s.(type) {
		case *ast.WhileStatement, *ast.ForStatement:
			loops++
		}
	}
	if loops != 2 {
		t.Errorf("expected both loops to survive, got %d\n%s", loops, printed(program))
	}
}

func TestOptionsDisableRewrites(t *testing.T) {
	input := "let a = 1 + 2; if (0) a = 3; a;"

	program := optimizeWith(t, input, config.OptimizeOptions{})
	if got, want := printed(program), "let a = 1 + 2;\nif (0)\n    a = 3;\na;"; got != want {
		t.Errorf("with no rewrites got:\n%s", got)
	}

	program = optimizeWith(t, input, config.OptimizeOptions{FoldConstants: true})
	expectInt(t, letValue(t, program, "a"), 3)
	if _, ok := program.Statements[1].(*ast.IfStatement); !ok {
		t.Errorf("if was removed without dead-code elimination")
	}

	program = optimizeWith(t, input, config.OptimizeOptions{EliminateDeadCode: true})
	if _, ok := letValue(t, program, "a").(*ast.InfixExpression); !ok {
		t.Errorf("a was folded without constant folding")
	}
	if len(program.Statements) != 2 {
		t.Errorf("expected the if to be removed:\n%s", printed(program))
	}
}

func TestStatsCountRewrites(t *testing.T) {
	ctx := pipeline.NewPipelineContext("let a = 1 + 2 * 3; a;")
	ctx = pipeline.New(&lexer.LexerProcessor{}, &parser.ParserProcessor{}, &analyzer.SemanticAnalyzerProcessor{}).Run(ctx)
	o := New(config.Defaults().Optimize)
	o.Optimize(ctx.AstRoot)
	if got := o.Stats().Folded; got != 2 {
		t.Errorf("folded = %d, want 2", got)
	}
}
