package analyzer

import (
	"github.com/funvibe/watc/internal/ast"
	"github.com/funvibe/watc/internal/diagnostics"
	"github.com/funvibe/watc/internal/symbols"
	"github.com/funvibe/watc/internal/typesystem"
)

// ReturnSite is a `return e;` found while walking a function body.
type ReturnSite struct {
	Kind typesystem.Kind
	Line int
}

// walker analyses one body: the top-level sequence or one function. It owns
// the scope stack and loop depth for that body.
type walker struct {
	a         *Analyzer
	fn        *ast.FunctionDeclaration // nil at top level
	scopes    *symbols.SymbolTable
	loopDepth int
	fix       bool // calls may fix unresolved parameter kinds
}

func (w *walker) statement(s ast.Statement) ([]ReturnSite, *diagnostics.DiagnosticError) {
	sites, err := ast.VisitStatement[[]ReturnSite](s, w)
	return sites, asDiagnostic(err)
}

func (w *walker) expression(e ast.Expression) (typesystem.Kind, error) {
	k, err := ast.VisitExpression[typesystem.Kind](e, w)
	if err != nil {
		return typesystem.KindInvalid, err
	}
	e.SetKind(k)
	return k, nil
}

// --- expressions ---

func (w *walker) VisitIntegerLiteral(*ast.IntegerLiteral) (typesystem.Kind, error) {
	return typesystem.KindI32, nil
}

func (w *walker) VisitFloatLiteral(*ast.FloatLiteral) (typesystem.Kind, error) {
	return typesystem.KindF32, nil
}

func (w *walker) VisitIdentifier(n *ast.Identifier) (typesystem.Kind, error) {
	if sym, ok := w.scopes.Find(n.Value); ok {
		return sym.Kind, nil
	}
	if _, ok := w.a.funcs[n.Value]; ok {
		return 0, diagnostics.NewError(diagnostics.ErrA011, n.Token,
			"cannot use function '%s' as a value", n.Value)
	}
	return 0, diagnostics.NewError(diagnostics.ErrA001, n.Token, "undefined variable '%s'", n.Value)
}

func (w *walker) VisitPrefixExpression(n *ast.PrefixExpression) (typesystem.Kind, error) {
	k, err := w.expression(n.Right)
	if err != nil {
		return 0, err
	}
	if n.Operator == "!" {
		return typesystem.KindI32, nil
	}
	return k, nil
}

func (w *walker) VisitInfixExpression(n *ast.InfixExpression) (typesystem.Kind, error) {
	left, err := w.expression(n.Left)
	if err != nil {
		return 0, err
	}
	right, err := w.expression(n.Right)
	if err != nil {
		return 0, err
	}

	switch {
	case n.Operator == "%":
		if left == typesystem.KindF32 || right == typesystem.KindF32 {
			return 0, diagnostics.NewError(diagnostics.ErrA007, n.Token,
				"modulo is not supported for f32 operands (%s %% %s)", left, right)
		}
		return typesystem.KindI32, nil
	case n.IsComparison():
		return typesystem.KindI32, nil
	}
	// Arithmetic and && || widen to the common kind.
	return typesystem.Wider(left, right), nil
}

func (w *walker) VisitCallExpression(n *ast.CallExpression) (typesystem.Kind, error) {
	name := n.Function.Value
	fn, ok := w.a.funcs[name]
	if !ok {
		return 0, diagnostics.NewError(diagnostics.ErrA002, n.Token, "undefined function '%s'", name)
	}

	args := make([]typesystem.Kind, len(n.Arguments))
	for i, arg := range n.Arguments {
		k, err := w.expression(arg)
		if err != nil {
			return 0, err
		}
		args[i] = k
	}

	sig := fn.Signature
	if len(args) != sig.Arity() {
		return 0, diagnostics.NewError(diagnostics.ErrA005, n.Token,
			"function '%s' expects %d argument%s, got %d", name, sig.Arity(), plural(sig.Arity()), len(args))
	}

	if sig.ParamKinds.Final() {
		params, _ := sig.ParamKinds.Get()
		for i := range params {
			if params[i] != args[i] {
				return 0, diagnostics.NewError(diagnostics.ErrA006, n.Arguments[i].GetToken(),
					"function '%s' parameter %d ('%s') has kind %s, got %s",
					name, i+1, sig.Params[i], params[i], args[i])
			}
		}
	} else if w.fix {
		w.a.fixParams(fn, args)
	}

	n.Function.SetKind(sig.ReturnKind())
	return sig.ReturnKind(), nil
}

// --- statements ---

func (w *walker) VisitLetStatement(n *ast.LetStatement) ([]ReturnSite, error) {
	k, err := w.expression(n.Value)
	if err != nil {
		return nil, err
	}
	n.Name.SetKind(k)
	w.scopes.Define(symbols.Symbol{Name: n.Name.Value, Kind: k, Mutable: n.Mutable, Line: n.Token.Line, Column: n.Name.Token.Column})
	return nil, nil
}

func (w *walker) VisitAssignStatement(n *ast.AssignStatement) ([]ReturnSite, error) {
	sym, ok := w.scopes.Find(n.Name.Value)
	if !ok {
		return nil, diagnostics.NewError(diagnostics.ErrA001, n.Name.Token,
			"assignment to undefined variable '%s'", n.Name.Value)
	}
	if !sym.Mutable {
		return nil, diagnostics.NewError(diagnostics.ErrA003, n.Name.Token,
			"cannot reassign const variable '%s' (declared at line %d)", sym.Name, sym.Line)
	}
	k, err := w.expression(n.Value)
	if err != nil {
		return nil, err
	}
	if k != sym.Kind {
		return nil, diagnostics.NewError(diagnostics.ErrA004, n.Token,
			"type mismatch: cannot assign %s to %s variable '%s'", k, sym.Kind, sym.Name)
	}
	n.Name.SetKind(sym.Kind)
	return nil, nil
}

func (w *walker) VisitExpressionStatement(n *ast.ExpressionStatement) ([]ReturnSite, error) {
	_, err := w.expression(n.Expression)
	return nil, err
}

func (w *walker) VisitBlockStatement(n *ast.BlockStatement) ([]ReturnSite, error) {
	w.scopes.Push(symbols.ScopeBlock)
	defer w.scopes.Pop()
	return w.sequence(n.Statements)
}

func (w *walker) sequence(stmts []ast.Statement) ([]ReturnSite, error) {
	var sites []ReturnSite
	for _, s := range stmts {
		found, err := ast.VisitStatement[[]ReturnSite](s, w)
		if err != nil {
			return nil, err
		}
		sites = append(sites, found...)
	}
	return sites, nil
}

func (w *walker) VisitIfStatement(n *ast.IfStatement) ([]ReturnSite, error) {
	if _, err := w.expression(n.Condition); err != nil {
		return nil, err
	}
	stmts := []ast.Statement{n.Consequence}
	if n.Alternative != nil {
		stmts = append(stmts, n.Alternative)
	}
	return w.sequence(stmts)
}

func (w *walker) VisitWhileStatement(n *ast.WhileStatement) ([]ReturnSite, error) {
	if _, err := w.expression(n.Condition); err != nil {
		return nil, err
	}
	w.loopDepth++
	defer func() { w.loopDepth-- }()
	return w.sequence([]ast.Statement{n.Body})
}

// VisitForStatement analyses the header and body in one shared scope, so the
// loop variable is visible throughout but not after the loop.
func (w *walker) VisitForStatement(n *ast.ForStatement) ([]ReturnSite, error) {
	w.scopes.Push(symbols.ScopeLoop)
	defer w.scopes.Pop()

	if n.Init != nil {
		if _, err := w.sequence([]ast.Statement{n.Init}); err != nil {
			return nil, err
		}
	}
	if n.Condition != nil {
		if _, err := w.expression(n.Condition); err != nil {
			return nil, err
		}
	}

	w.loopDepth++
	defer func() { w.loopDepth-- }()

	sites, err := w.sequence([]ast.Statement{n.Body})
	if err != nil {
		return nil, err
	}
	if n.Update != nil {
		if _, err := w.sequence([]ast.Statement{n.Update}); err != nil {
			return nil, err
		}
	}
	return sites, nil
}

func (w *walker) VisitBreakStatement(n *ast.BreakStatement) ([]ReturnSite, error) {
	if w.loopDepth == 0 {
		return nil, diagnostics.NewError(diagnostics.ErrA009, n.Token, "break statement outside of loop")
	}
	return nil, nil
}

func (w *walker) VisitContinueStatement(n *ast.ContinueStatement) ([]ReturnSite, error) {
	if w.loopDepth == 0 {
		return nil, diagnostics.NewError(diagnostics.ErrA010, n.Token, "continue statement outside of loop")
	}
	return nil, nil
}

func (w *walker) VisitReturnStatement(n *ast.ReturnStatement) ([]ReturnSite, error) {
	if w.fn == nil {
		return nil, diagnostics.NewError(diagnostics.ErrA012, n.Token, "return statement outside of function")
	}
	if n.ReturnValue == nil {
		// A bare return yields the zero of whatever kind the function returns.
		return nil, nil
	}
	k, err := w.expression(n.ReturnValue)
	if err != nil {
		return nil, err
	}
	return []ReturnSite{{Kind: k, Line: n.Token.Line}}, nil
}

func (w *walker) VisitFunctionDeclaration(n *ast.FunctionDeclaration) ([]ReturnSite, error) {
	return nil, diagnostics.NewError(diagnostics.ErrI001, n.Token,
		"function declaration '%s' inside a body", n.Name.Value)
}

// returnKind checks that every return site agrees. A function without
// return values returns i32 (an implicit zero).
func returnKind(name string, sites []ReturnSite) (typesystem.Kind, *diagnostics.DiagnosticError) {
	if len(sites) == 0 {
		return typesystem.KindI32, nil
	}
	first := sites[0]
	for _, s := range sites[1:] {
		if s.Kind != first.Kind {
			return 0, diagnostics.AtLine(diagnostics.ErrA008, s.Line,
				"inconsistent return types in '%s': %s at line %d, %s at line %d",
				name, first.Kind, first.Line, s.Kind, s.Line)
		}
	}
	return first.Kind, nil
}

func asDiagnostic(err error) *diagnostics.DiagnosticError {
	if err == nil {
		return nil
	}
	if de, ok := err.(*diagnostics.DiagnosticError); ok {
		return de
	}
	return diagnostics.AtLine(diagnostics.ErrI001, 0, "%s", err.Error())
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
