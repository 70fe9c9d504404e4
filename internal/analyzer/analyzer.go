package analyzer

import (
	"github.com/funvibe/watc/internal/ast"
	"github.com/funvibe/watc/internal/config"
	"github.com/funvibe/watc/internal/diagnostics"
	"github.com/funvibe/watc/internal/symbols"
	"github.com/funvibe/watc/internal/typesystem"
)

// Analyzer infers a numeric kind for every expression, variable and
// function signature of a program.
//
// Parameter kinds are fixed by the first call site seen (first-call-wins):
// top-level statements are scanned in textual order, and calls inside
// function bodies may fix callees that are still unresolved. Analysis runs
// in rounds until no signature changes; the errors of that final round are
// the result.
type Analyzer struct {
	program    *ast.Program
	entry      string
	funcs      map[string]*ast.FunctionDeclaration
	inProgress map[string]bool
	changed    bool

	// Logf, when set, receives a line per analysis round.
	Logf func(format string, args ...any)
	// MaxRounds caps the fixpoint rounds; zero means a bound derived from
	// the number of functions. Kinds only ever widen, so the default bound
	// is never reached by a well-behaved analysis and A014 marks a bug.
	MaxRounds int
}

// New creates an Analyzer. entry is the name reserved for the generated
// entry function.
func New(entry string) *Analyzer {
	if entry == "" {
		entry = config.DefaultEntryName
	}
	return &Analyzer{
		entry:      entry,
		funcs:      make(map[string]*ast.FunctionDeclaration),
		inProgress: make(map[string]bool),
		Logf:       func(string, ...any) {},
	}
}

// Analyze annotates program in place and fills in every function's
// Signature. It returns the first semantic error.
func (a *Analyzer) Analyze(program *ast.Program) *diagnostics.DiagnosticError {
	a.program = program

	if err := a.register(); err != nil {
		return err
	}

	// Preliminary pass: unresolved parameters are taken as i32 and no call
	// site fixes anything. The resulting return kinds are provisional.
	for _, fn := range program.Functions {
		_ = a.analyzeFunction(fn, false)
	}

	maxRounds := a.MaxRounds
	if maxRounds <= 0 {
		maxRounds = 3*len(program.Functions) + 4
	}
	for round := 1; round <= maxRounds; round++ {
		a.changed = false
		var errs []*diagnostics.DiagnosticError

		if err := a.analyzeTopLevel(); err != nil {
			errs = append(errs, err)
		}
		for _, fn := range program.Functions {
			if !fn.Signature.ParamKinds.Final() {
				continue
			}
			if err := a.analyzeFunction(fn, true); err != nil {
				errs = append(errs, err)
			}
		}
		a.Logf("analysis round %d: changed=%v errors=%d", round, a.changed, len(errs))

		if a.changed {
			continue
		}
		if len(errs) > 0 {
			return earliest(errs)
		}
		root := a.defaultRoot()
		if root == nil {
			return nil
		}
		// Nothing calls root with known kinds; all its parameters are i32.
		root.Signature.ParamKinds.Set(root.Signature.DefaultParamKinds(), typesystem.Defaulted)
		a.Logf("defaulted parameters of %s", root.Signature)
	}

	return diagnostics.AtLine(diagnostics.ErrA014, 1,
		"function kinds did not stabilise after %d rounds", maxRounds)
}

// Signatures returns the signature of every function in declaration order.
func (a *Analyzer) Signatures() []*typesystem.Signature {
	sigs := make([]*typesystem.Signature, 0, len(a.program.Functions))
	for _, fn := range a.program.Functions {
		sigs = append(sigs, fn.Signature)
	}
	return sigs
}

func (a *Analyzer) register() *diagnostics.DiagnosticError {
	for _, fn := range a.program.Functions {
		name := fn.Name.Value
		if name == a.entry {
			return diagnostics.NewError(diagnostics.ErrA013, fn.Name.Token,
				"function name '%s' is reserved for the entry point", name)
		}
		if prev, ok := a.funcs[name]; ok {
			return diagnostics.NewError(diagnostics.ErrA013, fn.Name.Token,
				"function '%s' is already declared at line %d", name, prev.Token.Line)
		}
		seen := make(map[string]bool)
		for _, p := range fn.Parameters {
			if seen[p.Value] {
				return diagnostics.NewError(diagnostics.ErrA013, p.Token,
					"duplicate parameter '%s' in function '%s'", p.Value, name)
			}
			seen[p.Value] = true
		}
		a.funcs[name] = fn
		fn.Signature = typesystem.NewSignature(name, fn.ParamNames(), fn.Token.Line)
	}
	return nil
}

func (a *Analyzer) analyzeTopLevel() *diagnostics.DiagnosticError {
	w := &walker{a: a, scopes: symbols.NewSymbolTable(symbols.ScopeGlobal), fix: true}
	for _, stmt := range a.program.Statements {
		if _, err := w.statement(stmt); err != nil {
			return err
		}
	}
	return nil
}

// analyzeFunction analyses fn's body with its current parameter kinds (i32
// where unresolved) and records the resulting return kind. With fix set,
// calls inside the body fix unresolved callees. Re-entrant calls for a
// function already being analysed are ignored.
func (a *Analyzer) analyzeFunction(fn *ast.FunctionDeclaration, fix bool) *diagnostics.DiagnosticError {
	sig := fn.Signature
	if a.inProgress[sig.Name] {
		return nil
	}
	a.inProgress[sig.Name] = true
	defer delete(a.inProgress, sig.Name)

	kinds, ok := sig.ParamKinds.Get()
	if !ok {
		kinds = sig.DefaultParamKinds()
	}

	w := &walker{a: a, fn: fn, scopes: symbols.NewSymbolTable(symbols.ScopeFunction), fix: fix}
	for i, param := range fn.Parameters {
		param.SetKind(kinds[i])
		w.scopes.Define(symbols.Symbol{Name: param.Value, Kind: kinds[i], Mutable: true, Line: param.Token.Line, Column: param.Token.Column})
	}

	var sites []ReturnSite
	for _, stmt := range fn.Body.Statements {
		s, err := w.statement(stmt)
		if err != nil {
			return err
		}
		sites = append(sites, s...)
	}

	ret, err := returnKind(sig.Name, sites)
	if err != nil {
		return err
	}

	fn.Name.SetKind(ret)
	how := typesystem.Provisional
	if sig.ParamKinds.Final() {
		how = typesystem.Inferred
	}
	if prev, ok := sig.Return.Get(); !ok || prev != ret || sig.Return.State() != how {
		if how != typesystem.Provisional {
			a.changed = true
		}
		sig.Return.Set(ret, how)
	}
	return nil
}

// fixParams records the first call site's argument kinds as fn's parameter
// kinds and re-analyses fn right away, so statements after the call see its
// real return kind.
func (a *Analyzer) fixParams(fn *ast.FunctionDeclaration, kinds []typesystem.Kind) {
	fn.Signature.ParamKinds.Set(kinds, typesystem.Inferred)
	a.changed = true
	a.Logf("fixed parameters of %s", fn.Signature)
	// Errors surface again when the round re-analyses fn.
	_ = a.analyzeFunction(fn, true)
}

// defaultRoot picks the unresolved function to default next: the first one
// in declaration order that no other unresolved function calls, or simply
// the first unresolved one when they all call each other.
func (a *Analyzer) defaultRoot() *ast.FunctionDeclaration {
	var unresolved []*ast.FunctionDeclaration
	for _, fn := range a.program.Functions {
		if !fn.Signature.ParamKinds.Final() {
			unresolved = append(unresolved, fn)
		}
	}
	if len(unresolved) == 0 {
		return nil
	}

	called := make(map[string]bool)
	for _, fn := range unresolved {
		for _, name := range ast.CalledFunctions(fn.Body) {
			if name != fn.Name.Value {
				called[name] = true
			}
		}
	}
	for _, fn := range unresolved {
		if !called[fn.Name.Value] {
			return fn
		}
	}
	return unresolved[0]
}

func earliest(errs []*diagnostics.DiagnosticError) *diagnostics.DiagnosticError {
	first := errs[0]
	for _, e := range errs[1:] {
		if e.Line() < first.Line() {
			first = e
		}
	}
	return first
}
