package backend

import (
	"strings"
	"testing"

	"github.com/funvibe/watc/internal/analyzer"
	"github.com/funvibe/watc/internal/ast"
	"github.com/funvibe/watc/internal/config"
	"github.com/funvibe/watc/internal/diagnostics"
	"github.com/funvibe/watc/internal/lexer"
	"github.com/funvibe/watc/internal/optimizer"
	"github.com/funvibe/watc/internal/parser"
	"github.com/funvibe/watc/internal/pipeline"
)

func generate(t *testing.T, input string, configure func(*config.Options)) string {
	t.Helper()
	ctx := pipeline.NewPipelineContext(input)
	ctx.Options.Codegen.LineComments = false
	if configure != nil {
		configure(&ctx.Options)
	}
	ctx = pipeline.New(&lexer.LexerProcessor{}, &parser.ParserProcessor{},
		&analyzer.SemanticAnalyzerProcessor{}, &optimizer.OptimizerProcessor{}, &CodegenProcessor{}).Run(ctx)
	if len(ctx.Errors) > 0 {
		t.Fatalf("unexpected error: %v\ninput: %s", ctx.Errors[0], input)
	}
	return ctx.Output
}

func expectContains(t *testing.T, wat string, fragments ...string) {
	t.Helper()
	for _, f := range fragments {
		if !strings.Contains(wat, f) {
			t.Errorf("output does not contain %q:\n%s", f, wat)
		}
	}
}

func expectMissing(t *testing.T, wat string, fragments ...string) {
	t.Helper()
	for _, f := range fragments {
		if strings.Contains(wat, f) {
			t.Errorf("output unexpectedly contains %q:\n%s", f, wat)
		}
	}
}

func TestModuleShape(t *testing.T) {
	wat := generate(t, "function add(a, b) { return a + b; }\nadd(1, 2);", nil)
	expected := `(module
  (func $add (export "add") (param $a i32) (param $b i32) (result i32)
    local.get $a
    local.get $b
    i32.add
    return
  )
  (func $_start (export "_start") (result i32)
    (local $.result i32)
    i32.const 1
    i32.const 2
    call $add
    local.set $.result
    local.get $.result
  )
)
`
	if wat != expected {
		t.Errorf("got:\n%s\nwant:\n%s", wat, expected)
	}
}

func TestEmptyProgramReturnsZero(t *testing.T) {
	wat := generate(t, "", nil)
	expected := "(module\n  (func $_start (export \"_start\") (result i32)\n    i32.const 0\n  )\n)\n"
	if wat != expected {
		t.Errorf("got:\n%q", wat)
	}
}

func TestEntryName(t *testing.T) {
	wat := generate(t, "1;", func(o *config.Options) { o.Codegen.Entry = "main" })
	expectContains(t, wat, `(func $main (export "main") (result i32)`)
}

func TestLineComments(t *testing.T) {
	wat := generate(t, "function f(x) {\n  return x;\n}\nlet a = 1;\nf(a);", func(o *config.Options) {
		o.Codegen.LineComments = true
	})
	expectContains(t, wat, "  ;; line 1\n  (func $f", "    ;; line 2\n    local.get $x", ";; line 4", ";; line 5")
}

func TestLineCommentsInsideBlocks(t *testing.T) {
	input := "let a = 0;\nif (a < 1) {\n  a = 2;\n} else {\n  a = 3;\n}\nwhile (a < 5) {\n  a += 1;\n}\n" +
		"for (let i = 0; i < 2; i += 1) {\n  a -= i;\n}\na;"
	wat := generate(t, input, func(o *config.Options) {
		o.Codegen.LineComments = true
	})
	expectContains(t, wat, ";; line 3", ";; line 5", ";; line 8", ";; line 10", ";; line 11")
	prev := ""
	for _, line := range strings.Split(wat, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, ";;") && strings.HasPrefix(prev, ";;") {
			t.Errorf("consecutive comments %q and %q:\n%s", prev, line, wat)
		}
		prev = line
	}
}

func TestFloatKinds(t *testing.T) {
	wat := generate(t, "function half(x) { return x / 2; }\nhalf(3.0);", nil)
	expectContains(t, wat,
		`(func $half (export "half") (param $x f32) (result f32)`,
		"local.get $x\n    i32.const 2\n    f32.convert_i32_s\n    f32.div",
		"(func $_start (export \"_start\") (result f32)",
		"(local $.result f32)")
	expectMissing(t, wat, "i32.div_s")
}

func TestWideningIsExplicit(t *testing.T) {
	wat := generate(t, "let a = 1; let b = 2.5; a < b;", nil)
	if n := strings.Count(wat, "f32.convert_i32_s"); n != 1 {
		t.Errorf("expected one conversion, got %d:\n%s", n, wat)
	}
	expectContains(t, wat, "local.get $a\n    f32.convert_i32_s\n    local.get $b\n    f32.lt")
}

func TestNoFloatInstructionsForIntegerPrograms(t *testing.T) {
	wat := generate(t, "let a = 3; let b = a * 2 - a / 3; if (b > 1 && a) { b = -b; } !b;", nil)
	expectMissing(t, wat, "f32")
}

func TestPrefixOperators(t *testing.T) {
	wat := generate(t, "let a = 1; let b = 1.5; -a; -b; !a; !b;", nil)
	expectContains(t, wat,
		"i32.const 0\n    local.get $a\n    i32.sub",
		"local.get $b\n    f32.neg",
		"local.get $a\n    i32.eqz",
		"local.get $b\n    f32.const 0.0\n    f32.eq")
}

func TestLogicalOperators(t *testing.T) {
	wat := generate(t, "let a = 1; let b = 2.5; a && b;", nil)
	expectContains(t, wat,
		"(local $.tmp_f32 f32)",
		"local.get $a\n    f32.convert_i32_s\n    local.tee $.tmp_f32\n    f32.const 0.0\n    f32.ne\n    if (result f32)\n      local.get $b\n    else\n      local.get $.tmp_f32\n    end")

	wat = generate(t, "let a = 1; let b = 2; a || b;", nil)
	expectContains(t, wat,
		"(local $.tmp_i32 i32)",
		"local.get $a\n    local.tee $.tmp_i32\n    if (result i32)\n      local.get $.tmp_i32\n    else\n      local.get $b\n    end")
	expectMissing(t, wat, ".tmp_f32")
}

func TestConditions(t *testing.T) {
	wat := generate(t, "let x = 0.5; if (x) { x = 1.0; } else { x = 2.0; } x;", nil)
	expectContains(t, wat,
		"local.get $x\n    f32.const 0.0\n    f32.ne\n    if\n      f32.const 1.0\n      local.set $x\n    else\n      f32.const 2.0\n      local.set $x\n    end")
}

func TestWhileLayout(t *testing.T) {
	wat := generate(t, "let i = 0; while (i < 3) { i = i + 1; if (i == 2) continue; if (i > 5) break; } i;", nil)
	expectContains(t, wat,
		"block $break_0\n      loop $continue_0",
		"i32.lt_s\n        i32.eqz\n        br_if $break_0",
		"br $continue_0\n        end",
		"br $break_0",
		"br $continue_0\n      end\n    end")
}

func TestForLayout(t *testing.T) {
	wat := generate(t, "let s = 0; for (let i = 0; i < 3; i += 1) { if (i == 1) continue; s += i; } s;", nil)
	expectContains(t, wat,
		"i32.const 0\n    local.set $i\n    block $break_0\n      loop $loop_0",
		"br_if $break_0\n        block $continue_0",
		"br $continue_0",
		"local.set $i\n        br $loop_0\n      end\n    end")
}

func TestForWithoutClauses(t *testing.T) {
	wat := generate(t, "let i = 0; for (;;) { i = i + 1; if (i == 3) break; } i;", nil)
	expectContains(t, wat, "loop $loop_0\n        block $continue_0")
	expectMissing(t, wat, "br_if $break_0")
}

func TestShadowedLocals(t *testing.T) {
	wat := generate(t, "let x = 1; { let x = 2.5; x = x * 2.0; } let y = x; { let y = 3; } y;", nil)
	expectContains(t, wat,
		"(local $x i32)", "(local $x.1 f32)", "(local $y i32)", "(local $y.1 i32)",
		"local.get $x.1\n    f32.const 2.0\n    f32.mul\n    local.set $x.1")
}

func TestParameterShadowedByLet(t *testing.T) {
	wat := generate(t, "function f(a) { let a = 2.5; return a; }\nf(1);", nil)
	expectContains(t, wat,
		`(func $f (export "f") (param $a i32) (result f32)`,
		"(local $a.1 f32)",
		"f32.const 2.5\n    local.set $a.1\n    local.get $a.1\n    return")
}

func TestBareReturnYieldsZero(t *testing.T) {
	wat := generate(t, "function f(x) { if (x) { return; } return x * 0.5; }\nf(1);", nil)
	expectContains(t, wat, "if\n      f32.const 0.0\n      return\n    end")
}

func TestFallThroughReturnsZero(t *testing.T) {
	wat := generate(t, "function f(x) { x = x + 1; }\nf(1);", nil)
	expectContains(t, wat, "local.set $x\n    i32.const 0\n  )")
}

func TestTailCalls(t *testing.T) {
	input := `function even(n) { if (n == 0) { return 1; } return odd(n - 1); }
function odd(n) { if (n == 0) { return 0; } return even(n - 1); }
function top(n) { return even(n); }
function loop(n, acc) { if (n == 0) { return acc; } return loop(n - 1, acc + n); }
top(10) + loop(10, 0);`

	wat := generate(t, input, nil)
	expectContains(t, wat, "return_call $odd", "return_call $even", "return_call $loop")
	// top is not part of a cycle, so its call keeps the frame.
	expectContains(t, wat, "local.get $n\n    call $even\n    return")

	wat = generate(t, input, func(o *config.Options) { o.Codegen.TailCalls = false })
	expectMissing(t, wat, "return_call")
}

func TestFormatF32(t *testing.T) {
	tests := []struct {
		in       float32
		expected string
	}{
		{7, "7.0"},
		{0.5, "0.5"},
		{-2, "-2.0"},
		{3.14, "3.14"},
		{1e10, "1e+10"},
	}
	for _, tt := range tests {
		if got := FormatF32(tt.in); got != tt.expected {
			t.Errorf("FormatF32(%v) = %q, want %q", tt.in, got, tt.expected)
		}
	}

	inf := float32(1)
	zero := float32(0)
	inf /= zero
	if got := FormatF32(inf); got != "inf" {
		t.Errorf("FormatF32(+Inf) = %q", got)
	}
	if got := FormatF32(-inf); got != "-inf" {
		t.Errorf("FormatF32(-Inf) = %q", got)
	}
	if got := FormatF32(zero / zero); got != "nan" {
		t.Errorf("FormatF32(NaN) = %q", got)
	}
}

func TestCallGraph(t *testing.T) {
	ctx := pipeline.New(&lexer.LexerProcessor{}, &parser.ParserProcessor{}).Run(pipeline.NewPipelineContext(`
function f() { return g(); }
function g() { return f() + h(); }
function h() { return h(); }
function k() { return h(); }
`))
	if len(ctx.Errors) > 0 {
		t.Fatal(ctx.Errors[0])
	}
	g := NewCallGraph(ctx.AstRoot)

	tests := []struct {
		caller, callee string
		expected       bool
	}{
		{"f", "g", true},
		{"g", "f", true},
		{"g", "h", false},
		{"h", "h", true},
		{"k", "h", false},
		{"k", "k", false},
	}
	for _, tt := range tests {
		if got := g.Recursive(tt.caller, tt.callee); got != tt.expected {
			t.Errorf("Recursive(%s, %s) = %v, want %v", tt.caller, tt.callee, got, tt.expected)
		}
	}

	comps := g.Components()
	if len(comps) != 3 {
		t.Fatalf("expected 3 components, got %v", comps)
	}
	// Callees come before their callers.
	if len(comps[0]) != 1 || comps[0][0] != "h" {
		t.Errorf("first component = %v, want [h]", comps[0])
	}
}

func TestUnannotatedProgramIsInternalError(t *testing.T) {
	ctx := pipeline.New(&lexer.LexerProcessor{}, &parser.ParserProcessor{}).Run(pipeline.NewPipelineContext("1 + 2;"))
	_, err := NewWATBackend(config.Defaults().Codegen).Generate(ctx.AstRoot)
	if diagnostics.CodeOf(err) != diagnostics.ErrI001 {
		t.Fatalf("expected I001, got %v", err)
	}

	ctx = pipeline.New(&lexer.LexerProcessor{}, &parser.ParserProcessor{}).Run(pipeline.NewPipelineContext("function f() { return 1; }"))
	_, err = NewWATBackend(config.Defaults().Codegen).Generate(ctx.AstRoot)
	if diagnostics.CodeOf(err) != diagnostics.ErrI001 {
		t.Fatalf("expected I001 for missing signature, got %v", err)
	}
}

func TestProcessorRecordsInternalErrors(t *testing.T) {
	ctx := pipeline.NewPipelineContext("")
	ctx.AstRoot = &ast.Program{Statements: []ast.Statement{
		&ast.ExpressionStatement{Expression: &ast.Identifier{Value: "x"}},
	}}
	ctx = (&CodegenProcessor{}).Process(ctx)
	if len(ctx.Errors) != 1 || ctx.Errors[0].Code != diagnostics.ErrI001 {
		t.Fatalf("expected one I001, got %v", ctx.Errors)
	}
	if ctx.Output != "" {
		t.Errorf("output written despite error")
	}
}
