// Package optimizer rewrites a typed AST: constant folding and dead-code
// elimination. Both rewrites preserve kind annotations and observable
// results; they assume the analyzer has accepted the program.
package optimizer

import (
	"github.com/funvibe/watc/internal/ast"
	"github.com/funvibe/watc/internal/config"
)

// Stats counts what a run changed.
type Stats struct {
	Folded  int // expressions replaced by a literal or an operand
	Removed int // statements dropped
}

type Optimizer struct {
	opts  config.OptimizeOptions
	stats Stats
}

func New(opts config.OptimizeOptions) *Optimizer {
	return &Optimizer{opts: opts}
}

func (o *Optimizer) Stats() Stats { return o.stats }

// Optimize rewrites every function body and the top-level sequence in place.
func (o *Optimizer) Optimize(program *ast.Program) {
	for _, fn := range program.Functions {
		fn.Body.Statements = o.sequence(fn.Body.Statements)
	}
	program.Statements = o.sequence(program.Statements)
}

func (o *Optimizer) expr(e ast.Expression) ast.Expression {
	out, _ := ast.VisitExpression[ast.Expression](e, o)
	return out
}

// stmt rewrites s; nil means s was removed.
func (o *Optimizer) stmt(s ast.Statement) ast.Statement {
	out, _ := ast.VisitStatement[ast.Statement](s, o)
	return out
}

// sequence rewrites a statement list. With dead-code elimination, nothing
// after a statement that never falls through survives.
func (o *Optimizer) sequence(stmts []ast.Statement) []ast.Statement {
	out := make([]ast.Statement, 0, len(stmts))
	for i, s := range stmts {
		rewritten := o.stmt(s)
		if rewritten == nil {
			continue
		}
		out = append(out, rewritten)
		if o.opts.EliminateDeadCode && terminates(rewritten) {
			o.stats.Removed += len(stmts) - i - 1
			break
		}
	}
	return out
}

// terminates reports whether control never falls through s.
func terminates(s ast.Statement) bool {
	if ast.IsTerminator(s) {
		return true
	}
	if block, ok := s.(*ast.BlockStatement); ok && len(block.Statements) > 0 {
		return terminates(block.Statements[len(block.Statements)-1])
	}
	return false
}

// asBlock keeps a surviving branch in its own block so it neither leaks
// declarations nor turns into a top-level expression statement.
func asBlock(s ast.Statement) *ast.BlockStatement {
	if block, ok := s.(*ast.BlockStatement); ok {
		return block
	}
	return &ast.BlockStatement{Token: s.GetToken(), Statements: []ast.Statement{s}}
}

// body rewrites a loop or branch body, replacing a removed one by an empty
// block.
func (o *Optimizer) body(s ast.Statement) ast.Statement {
	if out := o.stmt(s); out != nil {
		return out
	}
	return &ast.BlockStatement{Token: s.GetToken()}
}

// --- expressions ---

func (o *Optimizer) VisitIntegerLiteral(n *ast.IntegerLiteral) (ast.Expression, error) { return n, nil }
func (o *Optimizer) VisitFloatLiteral(n *ast.FloatLiteral) (ast.Expression, error)     { return n, nil }
func (o *Optimizer) VisitIdentifier(n *ast.Identifier) (ast.Expression, error)         { return n, nil }

func (o *Optimizer) VisitPrefixExpression(n *ast.PrefixExpression) (ast.Expression, error) {
	n.Right = o.expr(n.Right)
	if !o.opts.FoldConstants {
		return n, nil
	}
	if c, ok := constantOf(n.Right); ok {
		if v, ok := foldPrefix(n.Operator, c); ok {
			o.stats.Folded++
			return v.literal(n.Token), nil
		}
	}
	return n, nil
}

func (o *Optimizer) VisitInfixExpression(n *ast.InfixExpression) (ast.Expression, error) {
	n.Left = o.expr(n.Left)
	n.Right = o.expr(n.Right)
	if !o.opts.FoldConstants {
		return n, nil
	}

	l, lok := constantOf(n.Left)
	r, rok := constantOf(n.Right)

	if n.IsLogical() {
		if !lok {
			return n, nil
		}
		// The left operand decides whether the right one is evaluated.
		shortCircuits := l.truthy() == (n.Operator == "||")
		switch {
		case shortCircuits:
			o.stats.Folded++
			return l.widen(n.Kind()).literal(n.Token), nil
		case rok:
			o.stats.Folded++
			return r.widen(n.Kind()).literal(n.Token), nil
		case n.Right.Kind() == n.Kind():
			o.stats.Folded++
			return n.Right, nil
		}
		return n, nil
	}

	if !lok || !rok {
		return n, nil
	}
	var v constant
	var ok bool
	if n.IsComparison() {
		v, ok = foldComparison(n.Operator, l, r)
	} else {
		v, ok = foldArithmetic(n.Operator, n.Kind(), l, r)
	}
	if !ok {
		return n, nil
	}
	o.stats.Folded++
	return v.literal(n.Token), nil
}

func (o *Optimizer) VisitCallExpression(n *ast.CallExpression) (ast.Expression, error) {
	for i, arg := range n.Arguments {
		n.Arguments[i] = o.expr(arg)
	}
	return n, nil
}

// --- statements ---

func (o *Optimizer) VisitLetStatement(n *ast.LetStatement) (ast.Statement, error) {
	n.Value = o.expr(n.Value)
	return n, nil
}

func (o *Optimizer) VisitAssignStatement(n *ast.AssignStatement) (ast.Statement, error) {
	n.Value = o.expr(n.Value)
	return n, nil
}

func (o *Optimizer) VisitExpressionStatement(n *ast.ExpressionStatement) (ast.Statement, error) {
	n.Expression = o.expr(n.Expression)
	return n, nil
}

func (o *Optimizer) VisitBlockStatement(n *ast.BlockStatement) (ast.Statement, error) {
	n.Statements = o.sequence(n.Statements)
	return n, nil
}

func (o *Optimizer) VisitIfStatement(n *ast.IfStatement) (ast.Statement, error) {
	n.Condition = o.expr(n.Condition)
	if c, ok := constantOf(n.Condition); ok && o.opts.EliminateDeadCode {
		o.stats.Removed++
		live := n.Consequence
		if !c.truthy() {
			live = n.Alternative
		}
		if live == nil {
			return nil, nil
		}
		if out := o.stmt(live); out != nil {
			return asBlock(out), nil
		}
		return nil, nil
	}

	n.Consequence = o.body(n.Consequence)
	if n.Alternative != nil {
		n.Alternative = o.stmt(n.Alternative)
	}
	return n, nil
}

func (o *Optimizer) VisitWhileStatement(n *ast.WhileStatement) (ast.Statement, error) {
	n.Condition = o.expr(n.Condition)
	if c, ok := constantOf(n.Condition); ok && !c.truthy() && o.opts.EliminateDeadCode {
		o.stats.Removed++
		return nil, nil
	}
	n.Body = o.body(n.Body)
	return n, nil
}

func (o *Optimizer) VisitForStatement(n *ast.ForStatement) (ast.Statement, error) {
	if n.Init != nil {
		n.Init = o.stmt(n.Init)
	}
	if n.Condition != nil {
		n.Condition = o.expr(n.Condition)
	}
	if c, ok := constantOf(n.Condition); ok && !c.truthy() && o.opts.EliminateDeadCode {
		o.stats.Removed++
		if n.Init == nil {
			return nil, nil
		}
		// The loop never runs, but its initializer still does.
		return &ast.BlockStatement{Token: n.Token, Statements: []ast.Statement{n.Init}}, nil
	}
	if n.Update != nil {
		n.Update = o.stmt(n.Update)
	}
	n.Body = o.body(n.Body)
	return n, nil
}

func (o *Optimizer) VisitBreakStatement(n *ast.BreakStatement) (ast.Statement, error) {
	return n, nil
}

func (o *Optimizer) VisitContinueStatement(n *ast.ContinueStatement) (ast.Statement, error) {
	return n, nil
}

func (o *Optimizer) VisitReturnStatement(n *ast.ReturnStatement) (ast.Statement, error) {
	if n.ReturnValue != nil {
		n.ReturnValue = o.expr(n.ReturnValue)
	}
	return n, nil
}

func (o *Optimizer) VisitFunctionDeclaration(n *ast.FunctionDeclaration) (ast.Statement, error) {
	n.Body.Statements = o.sequence(n.Body.Statements)
	return n, nil
}

var _ ast.ExpressionVisitor[ast.Expression] = (*Optimizer)(nil)
var _ ast.StatementVisitor[ast.Statement] = (*Optimizer)(nil)

