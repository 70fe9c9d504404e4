package backend

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/funvibe/watc/internal/ast"
	"github.com/funvibe/watc/internal/config"
	"github.com/funvibe/watc/internal/diagnostics"
	"github.com/funvibe/watc/internal/typesystem"
)

// WATBackend emits a WebAssembly text module: one exported function per
// source function plus an entry function for the top-level statements.
type WATBackend struct {
	opts  config.CodegenOptions
	graph *CallGraph
	sigs  map[string]*typesystem.Signature
}

func NewWATBackend(opts config.CodegenOptions) *WATBackend {
	if opts.Entry == "" {
		opts.Entry = config.DefaultEntryName
	}
	return &WATBackend{opts: opts}
}

func (b *WATBackend) Name() string { return "wat" }

func (b *WATBackend) Generate(program *ast.Program) (string, error) {
	if program == nil {
		return "", diagnostics.AtLine(diagnostics.ErrI001, 0, "no program to generate")
	}
	b.graph = NewCallGraph(program)
	b.sigs = make(map[string]*typesystem.Signature, len(program.Functions))
	for _, fn := range program.Functions {
		if fn.Signature == nil || !fn.Signature.IsComplete() {
			return "", diagnostics.NewError(diagnostics.ErrI001, fn.Token,
				"function '%s' reached code generation without a signature", fn.Name.Value)
		}
		b.sigs[fn.Name.Value] = fn.Signature
	}

	var out strings.Builder
	out.WriteString("(module\n")
	for _, fn := range program.Functions {
		text, err := b.function(fn)
		if err != nil {
			return "", err
		}
		out.WriteString(text)
	}
	text, err := b.entry(program.Statements)
	if err != nil {
		return "", err
	}
	out.WriteString(text)
	out.WriteString(")\n")
	return out.String(), nil
}

func (b *WATBackend) function(fn *ast.FunctionDeclaration) (string, error) {
	sig := fn.Signature
	kinds, _ := sig.ParamKinds.Get()
	e := newEmitter(b, fn.Name.Value, sig.ReturnKind())

	header := []string{fmt.Sprintf("(func %s (export %q)", watName(fn.Name.Value), fn.Name.Value)}
	for i, p := range fn.Parameters {
		name := e.param(p.Value, kinds[i])
		header = append(header, fmt.Sprintf("(param %s %s)", name, kinds[i]))
	}
	header = append(header, fmt.Sprintf("(result %s)", sig.ReturnKind()))

	if err := e.statements(fn.Body.Statements); err != nil {
		return "", err
	}
	if n := len(fn.Body.Statements); n == 0 || !isReturn(fn.Body.Statements[n-1]) {
		// Falling off the end returns the zero of the result kind.
		e.zero(sig.ReturnKind())
	}

	var out strings.Builder
	if b.opts.LineComments {
		fmt.Fprintf(&out, "  ;; line %d\n", fn.Token.Line)
	}
	out.WriteString("  " + strings.Join(header, " ") + "\n")
	e.writeBody(&out)
	out.WriteString("  )\n")
	return out.String(), nil
}

// entry emits the function that runs the top-level statements. It returns
// the value of the last top-level expression statement, or i32 0.
func (b *WATBackend) entry(stmts []ast.Statement) (string, error) {
	last := -1
	for i, s := range stmts {
		if _, ok := s.(*ast.ExpressionStatement); ok {
			last = i
		}
	}
	result := typesystem.KindI32
	if last >= 0 {
		result = stmts[last].(*ast.ExpressionStatement).Expression.Kind()
		if !result.IsValid() {
			return "", diagnostics.NewError(diagnostics.ErrI001, stmts[last].GetToken(),
				"top-level expression has no resolved kind")
		}
	}

	e := newEmitter(b, b.opts.Entry, result)
	e.topLevel = true
	resultLocal := "$" + config.ResultLocalName
	for i, s := range stmts {
		if i != last {
			if err := e.statement(s); err != nil {
				return "", err
			}
			continue
		}
		e.comment(s)
		if err := e.expression(s.(*ast.ExpressionStatement).Expression); err != nil {
			return "", err
		}
		e.emit("local.set %s", resultLocal)
	}
	if last >= 0 {
		e.locals = append(e.locals, localDecl{name: resultLocal, kind: result})
		e.emit("local.get %s", resultLocal)
	} else {
		e.zero(typesystem.KindI32)
	}

	var out strings.Builder
	fmt.Fprintf(&out, "  (func %s (export %q) (result %s)\n", watName(b.opts.Entry), b.opts.Entry, result)
	e.writeBody(&out)
	out.WriteString("  )\n")
	return out.String(), nil
}

func isReturn(s ast.Statement) bool {
	_, ok := s.(*ast.ReturnStatement)
	return ok
}

// watName turns a source identifier into a WAT identifier.
func watName(name string) string { return "$" + name }

// FormatF32 renders an f32 constant. Finite values always carry a decimal
// point or exponent.
func FormatF32(v float32) string {
	f := float64(v)
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "nan"
	}
	s := strconv.FormatFloat(f, 'g', -1, 32)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}
