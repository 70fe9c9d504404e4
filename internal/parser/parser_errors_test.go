package parser_test

import (
	"strings"
	"testing"

	"github.com/funvibe/watc/internal/diagnostics"
	"github.com/funvibe/watc/internal/lexer"
	"github.com/funvibe/watc/internal/parser"
	"github.com/funvibe/watc/internal/pipeline"
)

// parseWithErrors runs the lexer+parser and returns all diagnostic errors.
func parseWithErrors(input string) []*diagnostics.DiagnosticError {
	ctx := &pipeline.PipelineContext{SourceCode: input}
	ctx = (&lexer.LexerProcessor{}).Process(ctx)
	ctx = (&parser.ParserProcessor{}).Process(ctx)
	return ctx.Errors
}

// expectError asserts exactly one error with the given code.
func expectError(t *testing.T, input string, code diagnostics.ErrorCode) *diagnostics.DiagnosticError {
	t.Helper()
	errs := parseWithErrors(input)
	if len(errs) == 0 {
		t.Fatalf("expected error %s, but got none\ninput: %s", code, input)
	}
	if len(errs) > 1 {
		t.Fatalf("expected a single error, got %d\ninput: %s", len(errs), input)
	}
	if errs[0].Code != code {
		t.Fatalf("expected error %s, got:\n%s\ninput: %s", code, errs[0].Error(), input)
	}
	return errs[0]
}

// expectNoErrors asserts parsing succeeds without errors.
func expectNoErrors(t *testing.T, input string) {
	t.Helper()
	errs := parseWithErrors(input)
	if len(errs) > 0 {
		var msgs []string
		for _, e := range errs {
			msgs = append(msgs, e.Error())
		}
		t.Fatalf("expected no errors, got:\n%s\ninput: %s", strings.Join(msgs, "\n"), input)
	}
}

// ---------------------------------------------------------------------------
// P001 — Unexpected token
// ---------------------------------------------------------------------------

func TestP001_MissingExpression(t *testing.T) {
	expectError(t, "let x = ;", diagnostics.ErrP001)
}

func TestP001_StrayClosingParen(t *testing.T) {
	expectError(t, ") ;", diagnostics.ErrP001)
}

func TestP001_CallingANonName(t *testing.T) {
	expectError(t, "5(3);", diagnostics.ErrP001)
	expectError(t, "f(1)(2);", diagnostics.ErrP001)
}

func TestP001_BodyAtEndOfInput(t *testing.T) {
	expectError(t, "if (x)", diagnostics.ErrP001)
}

// ---------------------------------------------------------------------------
// P002 — Expected token not found
// ---------------------------------------------------------------------------

func TestP002_MissingSemicolon(t *testing.T) {
	err := expectError(t, "let x = 1;\nlet y = 2\nlet z = 3;", diagnostics.ErrP002)
	if err.Line() != 3 {
		t.Errorf("line = %d, want 3", err.Line())
	}
	if !strings.Contains(err.Message, `expected ";", got "let"`) {
		t.Errorf("message = %q", err.Message)
	}
}

func TestP002_MissingParen(t *testing.T) {
	expectError(t, "if (x { }", diagnostics.ErrP002)
	expectError(t, "f(1, 2;", diagnostics.ErrP002)
}

func TestP002_MissingBrace(t *testing.T) {
	err := expectError(t, "function f() {\n  return 1;\n", diagnostics.ErrP002)
	if !strings.Contains(err.Message, "end of input") {
		t.Errorf("message = %q", err.Message)
	}
}

func TestP002_DeclarationWithoutInitializer(t *testing.T) {
	expectError(t, "let x;", diagnostics.ErrP002)
	expectError(t, "const = 4;", diagnostics.ErrP002)
}

// ---------------------------------------------------------------------------
// P003 — Invalid assignment target
// ---------------------------------------------------------------------------

func TestP003_InvalidAssignmentTarget(t *testing.T) {
	expectError(t, "5 = 3;", diagnostics.ErrP003)
	expectError(t, "f(x) = 1;", diagnostics.ErrP003)
	expectError(t, "(x) += 1;", diagnostics.ErrP003)
	expectError(t, "a + b = c;", diagnostics.ErrP003)
}

// ---------------------------------------------------------------------------
// P004 — Declaration not allowed here
// ---------------------------------------------------------------------------

func TestP004_NestedFunction(t *testing.T) {
	expectError(t, "function f() { function g() { return 1; } }", diagnostics.ErrP004)
	expectError(t, "if (x) { function g() {} }", diagnostics.ErrP004)
}

func TestP004_DeclarationAsSingleStatementBody(t *testing.T) {
	expectError(t, "if (x) let y = 1;", diagnostics.ErrP004)
	expectError(t, "if (x) {} else const y = 1;", diagnostics.ErrP004)
	expectError(t, "while (x) let y = 2;", diagnostics.ErrP004)
	expectError(t, "for (;;) const z = 1;", diagnostics.ErrP004)
}

// ---------------------------------------------------------------------------
// P005 — Nesting too deep
// ---------------------------------------------------------------------------

func TestP005_DeepParentheses(t *testing.T) {
	n := parser.MaxRecursionDepth + 10
	input := strings.Repeat("(", n) + "1" + strings.Repeat(")", n) + ";"
	expectError(t, input, diagnostics.ErrP005)
}

func TestP005_DeepBlocks(t *testing.T) {
	n := parser.MaxRecursionDepth + 10
	input := strings.Repeat("{", n) + strings.Repeat("}", n)
	expectError(t, input, diagnostics.ErrP005)
}

// ---------------------------------------------------------------------------
// Valid programs
// ---------------------------------------------------------------------------

func TestValidPrograms(t *testing.T) {
	expectNoErrors(t, "if (a) ; else ;")
	expectNoErrors(t, "function f() { return; }")
	expectNoErrors(t, "for (let i = 0; i < 10; i += 1) { if (i) { continue; } }")
	expectNoErrors(t, "let a = 1; { let a = 2.0; }")
	expectNoErrors(t, "// only a comment\n/* and a block */")
	expectNoErrors(t, "x = -1 - -2;")
}

func TestLexErrorStopsBeforeParsing(t *testing.T) {
	errs := parseWithErrors("let x = #;")
	if len(errs) != 1 || errs[0].Code != diagnostics.ErrL001 {
		t.Fatalf("errors = %v", errs)
	}
}
