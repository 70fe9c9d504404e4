package main

import (
	"sort"

	"github.com/funvibe/watc/internal/ast"
	"github.com/funvibe/watc/internal/symbols"
)

// Reference is one identifier occurrence with what it resolves to.
type Reference struct {
	Ident *ast.Identifier
	// Function is set when the identifier names a function.
	Function *ast.FunctionDeclaration
	// Symbol is the variable binding; valid only if Resolved.
	Symbol   symbols.Symbol
	Resolved bool
	Param    bool
	Decl     bool // the occurrence is the declaration itself
}

// Index maps source positions to identifiers, resolved with the same
// scoping rules the analyzer applies.
type Index struct {
	Refs      []Reference
	Functions map[string]*ast.FunctionDeclaration
	program   *ast.Program
}

func BuildIndex(program *ast.Program) *Index {
	ix := &Index{Functions: make(map[string]*ast.FunctionDeclaration), program: program}
	for _, fn := range program.Functions {
		if _, dup := ix.Functions[fn.Name.Value]; !dup {
			ix.Functions[fn.Name.Value] = fn
		}
	}

	for _, fn := range program.Functions {
		w := &indexer{ix: ix, st: symbols.NewSymbolTable(symbols.ScopeFunction)}
		w.VisitFunctionDeclaration(fn)
	}
	top := &indexer{ix: ix, st: symbols.NewSymbolTable(symbols.ScopeGlobal)}
	top.statements(program.Statements)

	sort.SliceStable(ix.Refs, func(i, j int) bool {
		a, b := ix.Refs[i].Ident.Token, ix.Refs[j].Ident.Token
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Column < b.Column
	})
	return ix
}

// indexer records references while tracking scopes the way the analyzer
// does.
type indexer struct {
	ix *Index
	st *symbols.SymbolTable
}

type none = struct{}

var (
	_ ast.StatementVisitor[none]  = (*indexer)(nil)
	_ ast.ExpressionVisitor[none] = (*indexer)(nil)
)

func (w *indexer) add(r Reference) { w.ix.Refs = append(w.ix.Refs, r) }

func (w *indexer) statements(stmts []ast.Statement) {
	for _, s := range stmts {
		w.statement(s)
	}
}

func (w *indexer) statement(s ast.Statement) {
	if s != nil {
		ast.VisitStatement[none](s, w)
	}
}

func (w *indexer) expression(e ast.Expression) {
	if e != nil {
		ast.VisitExpression[none](e, w)
	}
}

func (w *indexer) use(id *ast.Identifier) {
	sym, ok := w.st.Find(id.Value)
	w.add(Reference{Ident: id, Symbol: sym, Resolved: ok})
}

func (w *indexer) VisitFunctionDeclaration(fn *ast.FunctionDeclaration) (none, error) {
	w.add(Reference{Ident: fn.Name, Function: fn, Decl: true})
	for _, p := range fn.Parameters {
		sym := symbols.Symbol{Name: p.Value, Kind: p.Kind(), Mutable: true, Line: p.Token.Line, Column: p.Token.Column}
		w.st.Define(sym)
		w.add(Reference{Ident: p, Symbol: sym, Resolved: true, Param: true, Decl: true})
	}
	// the body shares the parameters' scope
	if fn.Body != nil {
		w.statements(fn.Body.Statements)
	}
	return none{}, nil
}

func (w *indexer) VisitLetStatement(n *ast.LetStatement) (none, error) {
	w.expression(n.Value)
	sym := symbols.Symbol{Name: n.Name.Value, Kind: n.Name.Kind(), Mutable: n.Mutable, Line: n.Name.Token.Line, Column: n.Name.Token.Column}
	w.st.Define(sym)
	w.add(Reference{Ident: n.Name, Symbol: sym, Resolved: true, Decl: true})
	return none{}, nil
}

func (w *indexer) VisitAssignStatement(n *ast.AssignStatement) (none, error) {
	w.use(n.Name)
	w.expression(n.Value)
	return none{}, nil
}

func (w *indexer) VisitExpressionStatement(n *ast.ExpressionStatement) (none, error) {
	w.expression(n.Expression)
	return none{}, nil
}

func (w *indexer) VisitBlockStatement(n *ast.BlockStatement) (none, error) {
	w.st.Push(symbols.ScopeBlock)
	w.statements(n.Statements)
	w.st.Pop()
	return none{}, nil
}

func (w *indexer) VisitIfStatement(n *ast.IfStatement) (none, error) {
	w.expression(n.Condition)
	w.statement(n.Consequence)
	w.statement(n.Alternative)
	return none{}, nil
}

func (w *indexer) VisitWhileStatement(n *ast.WhileStatement) (none, error) {
	w.expression(n.Condition)
	w.statement(n.Body)
	return none{}, nil
}

func (w *indexer) VisitForStatement(n *ast.ForStatement) (none, error) {
	w.st.Push(symbols.ScopeLoop)
	w.statement(n.Init)
	w.expression(n.Condition)
	w.statement(n.Update)
	w.statement(n.Body)
	w.st.Pop()
	return none{}, nil
}

func (w *indexer) VisitBreakStatement(*ast.BreakStatement) (none, error)       { return none{}, nil }
func (w *indexer) VisitContinueStatement(*ast.ContinueStatement) (none, error) { return none{}, nil }

func (w *indexer) VisitReturnStatement(n *ast.ReturnStatement) (none, error) {
	w.expression(n.ReturnValue)
	return none{}, nil
}

func (w *indexer) VisitIntegerLiteral(*ast.IntegerLiteral) (none, error) { return none{}, nil }
func (w *indexer) VisitFloatLiteral(*ast.FloatLiteral) (none, error)     { return none{}, nil }

func (w *indexer) VisitIdentifier(n *ast.Identifier) (none, error) {
	w.use(n)
	return none{}, nil
}

func (w *indexer) VisitPrefixExpression(n *ast.PrefixExpression) (none, error) {
	w.expression(n.Right)
	return none{}, nil
}

func (w *indexer) VisitInfixExpression(n *ast.InfixExpression) (none, error) {
	w.expression(n.Left)
	w.expression(n.Right)
	return none{}, nil
}

func (w *indexer) VisitCallExpression(n *ast.CallExpression) (none, error) {
	w.add(Reference{Ident: n.Function, Function: w.ix.Functions[n.Function.Value]})
	for _, arg := range n.Arguments {
		w.expression(arg)
	}
	return none{}, nil
}

// At returns the reference under the zero-based position, or nil.
func (ix *Index) At(pos Position) *Reference {
	line, col := pos.Line+1, pos.Character+1
	for i := range ix.Refs {
		tok := ix.Refs[i].Ident.Token
		if tok.Line != line {
			continue
		}
		if col >= tok.Column && col < tok.Column+len([]rune(ix.Refs[i].Ident.Value)) {
			return &ix.Refs[i]
		}
	}
	return nil
}

// identRange is the zero-based range of a name starting at line/column.
func identRange(name string, line, column int) Range {
	start := Position{Line: line - 1, Character: column - 1}
	return Range{Start: start, End: Position{Line: start.Line, Character: start.Character + len([]rune(name))}}
}
