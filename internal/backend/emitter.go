package backend

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/funvibe/watc/internal/ast"
	"github.com/funvibe/watc/internal/config"
	"github.com/funvibe/watc/internal/diagnostics"
	"github.com/funvibe/watc/internal/typesystem"
)

type localDecl struct {
	name string
	kind typesystem.Kind
}

type loopLabels struct {
	brk  string
	cont string
}

// emitter generates the body of one WAT function. Every declaration gets
// its own local; scopes map source names to those locals.
type emitter struct {
	b        *WATBackend
	fn       string
	ret      typesystem.Kind
	topLevel bool

	lines   []string
	depth   int
	scopes  []map[string]localDecl
	locals  []localDecl
	taken   map[string]bool
	scratch map[typesystem.Kind]bool
	loops   []loopLabels
	labels  int
}

func newEmitter(b *WATBackend, fn string, ret typesystem.Kind) *emitter {
	return &emitter{
		b:       b,
		fn:      fn,
		ret:     ret,
		depth:   2,
		scopes:  []map[string]localDecl{{}},
		taken:   make(map[string]bool),
		scratch: make(map[typesystem.Kind]bool),
	}
}

func (e *emitter) emit(format string, args ...any) {
	text := format
	if len(args) > 0 {
		text = fmt.Sprintf(format, args...)
	}
	e.lines = append(e.lines, strings.Repeat("  ", e.depth)+text)
}

// comment marks the source line of s. Blocks are skipped: each statement
// inside carries its own.
func (e *emitter) comment(s ast.Statement) {
	if _, block := s.(*ast.BlockStatement); block {
		return
	}
	if e.b.opts.LineComments {
		e.emit(";; line %d", s.GetToken().Line)
	}
}

// writeBody writes local declarations followed by the instructions.
func (e *emitter) writeBody(out *strings.Builder) {
	for _, l := range e.locals {
		fmt.Fprintf(out, "    (local %s %s)\n", l.name, l.kind)
	}
	for _, k := range []typesystem.Kind{typesystem.KindI32, typesystem.KindF32} {
		if e.scratch[k] {
			fmt.Fprintf(out, "    (local %s %s)\n", scratchName(k), k)
		}
	}
	for _, line := range e.lines {
		out.WriteString(line)
		out.WriteString("\n")
	}
}

func scratchName(k typesystem.Kind) string {
	if k == typesystem.KindF32 {
		return "$" + config.ScratchF32Name
	}
	return "$" + config.ScratchI32Name
}

// --- locals and scopes ---

func (e *emitter) push() { e.scopes = append(e.scopes, map[string]localDecl{}) }
func (e *emitter) pop()  { e.scopes = e.scopes[:len(e.scopes)-1] }

// fresh picks an unused WAT name for source name: $x, then $x.1, $x.2 ...
func (e *emitter) fresh(name string) string {
	candidate := watName(name)
	for n := 1; e.taken[candidate]; n++ {
		candidate = watName(name) + "." + strconv.Itoa(n)
	}
	e.taken[candidate] = true
	return candidate
}

func (e *emitter) param(name string, k typesystem.Kind) string {
	d := localDecl{name: e.fresh(name), kind: k}
	e.scopes[0][name] = d
	return d.name
}

// declare allocates a local for a new binding in the innermost scope.
func (e *emitter) declare(name string, k typesystem.Kind) localDecl {
	d := localDecl{name: e.fresh(name), kind: k}
	e.locals = append(e.locals, d)
	e.scopes[len(e.scopes)-1][name] = d
	return d
}

func (e *emitter) lookup(id *ast.Identifier) (localDecl, error) {
	for i := len(e.scopes) - 1; i >= 0; i-- {
		if d, ok := e.scopes[i][id.Value]; ok {
			return d, nil
		}
	}
	return localDecl{}, diagnostics.NewError(diagnostics.ErrI001, id.Token,
		"no local for '%s' in %s", id.Value, e.fn)
}

// --- small instruction helpers ---

func (e *emitter) zero(k typesystem.Kind) {
	if k == typesystem.KindF32 {
		e.emit("f32.const 0.0")
	} else {
		e.emit("i32.const 0")
	}
}

func (e *emitter) widen(from, to typesystem.Kind) {
	if typesystem.NeedsWidening(from, to) {
		e.emit("f32.convert_i32_s")
	}
}

// truthy turns the value on the stack into an i32 condition. An i32 value
// already is one.
func (e *emitter) truthy(k typesystem.Kind) {
	if k == typesystem.KindF32 {
		e.emit("f32.const 0.0")
		e.emit("f32.ne")
	}
}

// falsy leaves 1 on the stack exactly when the value was zero.
func (e *emitter) falsy(k typesystem.Kind) {
	if k == typesystem.KindF32 {
		e.emit("f32.const 0.0")
		e.emit("f32.eq")
	} else {
		e.emit("i32.eqz")
	}
}

// loopID numbers the labels of one loop.
func (e *emitter) loopID() int {
	e.labels++
	return e.labels - 1
}

func label(prefix string, id int) string {
	return fmt.Sprintf("$%s_%d", prefix, id)
}

func (e *emitter) open(instr string) {
	e.emit("%s", instr)
	e.depth++
}

func (e *emitter) close() {
	e.depth--
	e.emit("end")
}

// --- entry points ---

func (e *emitter) statements(stmts []ast.Statement) error {
	for _, s := range stmts {
		if err := e.statement(s); err != nil {
			return err
		}
	}
	return nil
}

func (e *emitter) statement(s ast.Statement) error {
	e.comment(s)
	_, err := ast.VisitStatement[struct{}](s, e)
	return err
}

// expression emits code leaving one value of e.Kind() on the stack.
func (e *emitter) expression(x ast.Expression) error {
	if !x.Kind().IsValid() {
		return diagnostics.NewError(diagnostics.ErrI001, x.GetToken(),
			"expression '%s' has no resolved kind", x.TokenLiteral())
	}
	_, err := ast.VisitExpression[struct{}](x, e)
	return err
}

// widened emits x converted to kind k.
func (e *emitter) widened(x ast.Expression, k typesystem.Kind) error {
	if err := e.expression(x); err != nil {
		return err
	}
	e.widen(x.Kind(), k)
	return nil
}

// condition emits x as an i32 truth value.
func (e *emitter) condition(x ast.Expression) error {
	if err := e.expression(x); err != nil {
		return err
	}
	e.truthy(x.Kind())
	return nil
}

// exitUnless branches to label when x is falsy.
func (e *emitter) exitUnless(x ast.Expression, label string) error {
	if err := e.expression(x); err != nil {
		return err
	}
	e.falsy(x.Kind())
	e.emit("br_if %s", label)
	return nil
}

// --- expressions ---

var i32Ops = map[string]string{
	"+": "i32.add", "-": "i32.sub", "*": "i32.mul", "/": "i32.div_s", "%": "i32.rem_s",
	"==": "i32.eq", "!=": "i32.ne", "<": "i32.lt_s", ">": "i32.gt_s", "<=": "i32.le_s", ">=": "i32.ge_s",
}

var f32Ops = map[string]string{
	"+": "f32.add", "-": "f32.sub", "*": "f32.mul", "/": "f32.div",
	"==": "f32.eq", "!=": "f32.ne", "<": "f32.lt", ">": "f32.gt", "<=": "f32.le", ">=": "f32.ge",
}

func (e *emitter) VisitIntegerLiteral(n *ast.IntegerLiteral) (struct{}, error) {
	e.emit("i32.const %d", n.Value)
	return struct{}{}, nil
}

func (e *emitter) VisitFloatLiteral(n *ast.FloatLiteral) (struct{}, error) {
	e.emit("f32.const %s", FormatF32(n.Value))
	return struct{}{}, nil
}

func (e *emitter) VisitIdentifier(n *ast.Identifier) (struct{}, error) {
	d, err := e.lookup(n)
	if err != nil {
		return struct{}{}, err
	}
	e.emit("local.get %s", d.name)
	return struct{}{}, nil
}

func (e *emitter) VisitPrefixExpression(n *ast.PrefixExpression) (struct{}, error) {
	k := n.Right.Kind()
	switch n.Operator {
	case "-":
		if k == typesystem.KindF32 {
			if err := e.expression(n.Right); err != nil {
				return struct{}{}, err
			}
			e.emit("f32.neg")
			return struct{}{}, nil
		}
		e.emit("i32.const 0")
		if err := e.expression(n.Right); err != nil {
			return struct{}{}, err
		}
		e.emit("i32.sub")
	case "!":
		if err := e.expression(n.Right); err != nil {
			return struct{}{}, err
		}
		e.falsy(k)
	default:
		return struct{}{}, diagnostics.NewError(diagnostics.ErrI001, n.Token, "unknown prefix operator %s", n.Operator)
	}
	return struct{}{}, nil
}

func (e *emitter) VisitInfixExpression(n *ast.InfixExpression) (struct{}, error) {
	if n.IsLogical() {
		return struct{}{}, e.logical(n)
	}

	k := n.OperandKind()
	if err := e.widened(n.Left, k); err != nil {
		return struct{}{}, err
	}
	if err := e.widened(n.Right, k); err != nil {
		return struct{}{}, err
	}
	ops := i32Ops
	if k == typesystem.KindF32 {
		ops = f32Ops
	}
	instr, ok := ops[n.Operator]
	if !ok {
		return struct{}{}, diagnostics.NewError(diagnostics.ErrI001, n.Token,
			"no %s instruction for '%s'", k, n.Operator)
	}
	e.emit("%s", instr)
	return struct{}{}, nil
}

// logical emits a short-circuit && or ||. The left value is kept in a
// scratch local so it can be the result without being evaluated twice.
func (e *emitter) logical(n *ast.InfixExpression) error {
	k := n.Kind()
	scratch := scratchName(k)
	e.scratch[k] = true

	if err := e.widened(n.Left, k); err != nil {
		return err
	}
	e.emit("local.tee %s", scratch)
	e.truthy(k)
	e.open(fmt.Sprintf("if (result %s)", k))

	// && yields the right operand when the left one is truthy, || the left.
	keepLeft := n.Operator == "||"
	if err := e.logicalArm(n.Right, k, scratch, keepLeft); err != nil {
		return err
	}
	e.depth--
	e.emit("else")
	e.depth++
	if err := e.logicalArm(n.Right, k, scratch, !keepLeft); err != nil {
		return err
	}
	e.close()
	return nil
}

func (e *emitter) logicalArm(right ast.Expression, k typesystem.Kind, scratch string, keepLeft bool) error {
	if keepLeft {
		e.emit("local.get %s", scratch)
		return nil
	}
	return e.widened(right, k)
}

func (e *emitter) VisitCallExpression(n *ast.CallExpression) (struct{}, error) {
	if err := e.arguments(n); err != nil {
		return struct{}{}, err
	}
	e.emit("call %s", watName(n.Function.Value))
	return struct{}{}, nil
}

func (e *emitter) arguments(n *ast.CallExpression) error {
	sig, ok := e.b.sigs[n.Function.Value]
	if !ok {
		return diagnostics.NewError(diagnostics.ErrI001, n.Token, "call to unknown function '%s'", n.Function.Value)
	}
	params, _ := sig.ParamKinds.Get()
	for i, arg := range n.Arguments {
		if err := e.widened(arg, params[i]); err != nil {
			return err
		}
	}
	return nil
}

// --- statements ---

func (e *emitter) VisitLetStatement(n *ast.LetStatement) (struct{}, error) {
	// The initializer still sees any outer binding of the same name.
	if err := e.expression(n.Value); err != nil {
		return struct{}{}, err
	}
	d := e.declare(n.Name.Value, n.Value.Kind())
	e.emit("local.set %s", d.name)
	return struct{}{}, nil
}

func (e *emitter) VisitAssignStatement(n *ast.AssignStatement) (struct{}, error) {
	d, err := e.lookup(n.Name)
	if err != nil {
		return struct{}{}, err
	}
	if err := e.widened(n.Value, d.kind); err != nil {
		return struct{}{}, err
	}
	e.emit("local.set %s", d.name)
	return struct{}{}, nil
}

func (e *emitter) VisitExpressionStatement(n *ast.ExpressionStatement) (struct{}, error) {
	if err := e.expression(n.Expression); err != nil {
		return struct{}{}, err
	}
	e.emit("drop")
	return struct{}{}, nil
}

func (e *emitter) VisitBlockStatement(n *ast.BlockStatement) (struct{}, error) {
	e.push()
	defer e.pop()
	return struct{}{}, e.statements(n.Statements)
}

// branch emits a nested statement in a scope of its own.
func (e *emitter) branch(s ast.Statement) error {
	e.push()
	defer e.pop()
	return e.statement(s)
}

func (e *emitter) VisitIfStatement(n *ast.IfStatement) (struct{}, error) {
	if err := e.condition(n.Condition); err != nil {
		return struct{}{}, err
	}
	e.open("if")
	if err := e.branch(n.Consequence); err != nil {
		return struct{}{}, err
	}
	if n.Alternative != nil {
		e.depth--
		e.emit("else")
		e.depth++
		if err := e.branch(n.Alternative); err != nil {
			return struct{}{}, err
		}
	}
	e.close()
	return struct{}{}, nil
}

func (e *emitter) VisitWhileStatement(n *ast.WhileStatement) (struct{}, error) {
	id := e.loopID()
	brk, cont := label("break", id), label("continue", id)
	e.open("block " + brk)
	e.open("loop " + cont)
	if err := e.exitUnless(n.Condition, brk); err != nil {
		return struct{}{}, err
	}

	e.loops = append(e.loops, loopLabels{brk: brk, cont: cont})
	err := e.branch(n.Body)
	e.loops = e.loops[:len(e.loops)-1]
	if err != nil {
		return struct{}{}, err
	}

	e.emit("br %s", cont)
	e.close()
	e.close()
	return struct{}{}, nil
}

// VisitForStatement lays the loop out so that continue lands on the update
// clause: block $break { loop $loop { cond; block $continue { body } update } }.
func (e *emitter) VisitForStatement(n *ast.ForStatement) (struct{}, error) {
	e.push()
	defer e.pop()

	// The init clause shares the loop's line comment.
	if n.Init != nil {
		if _, err := ast.VisitStatement[struct{}](n.Init, e); err != nil {
			return struct{}{}, err
		}
	}

	id := e.loopID()
	brk, top, cont := label("break", id), label("loop", id), label("continue", id)
	e.open("block " + brk)
	e.open("loop " + top)
	if n.Condition != nil {
		if err := e.exitUnless(n.Condition, brk); err != nil {
			return struct{}{}, err
		}
	}

	e.open("block " + cont)
	e.loops = append(e.loops, loopLabels{brk: brk, cont: cont})
	err := e.branch(n.Body)
	e.loops = e.loops[:len(e.loops)-1]
	if err != nil {
		return struct{}{}, err
	}
	e.close()

	if n.Update != nil {
		if err := e.statement(n.Update); err != nil {
			return struct{}{}, err
		}
	}
	e.emit("br %s", top)
	e.close()
	e.close()
	return struct{}{}, nil
}

func (e *emitter) VisitBreakStatement(n *ast.BreakStatement) (struct{}, error) {
	if len(e.loops) == 0 {
		return struct{}{}, diagnostics.NewError(diagnostics.ErrI001, n.Token, "break outside of a loop")
	}
	e.emit("br %s", e.loops[len(e.loops)-1].brk)
	return struct{}{}, nil
}

func (e *emitter) VisitContinueStatement(n *ast.ContinueStatement) (struct{}, error) {
	if len(e.loops) == 0 {
		return struct{}{}, diagnostics.NewError(diagnostics.ErrI001, n.Token, "continue outside of a loop")
	}
	e.emit("br %s", e.loops[len(e.loops)-1].cont)
	return struct{}{}, nil
}

func (e *emitter) VisitReturnStatement(n *ast.ReturnStatement) (struct{}, error) {
	if e.topLevel {
		return struct{}{}, diagnostics.NewError(diagnostics.ErrI001, n.Token, "return at top level")
	}
	if n.ReturnValue == nil {
		e.zero(e.ret)
		e.emit("return")
		return struct{}{}, nil
	}

	if call, ok := n.ReturnValue.(*ast.CallExpression); ok && e.tailCall(call) {
		if err := e.arguments(call); err != nil {
			return struct{}{}, err
		}
		e.emit("return_call %s", watName(call.Function.Value))
		return struct{}{}, nil
	}

	if err := e.widened(n.ReturnValue, e.ret); err != nil {
		return struct{}{}, err
	}
	e.emit("return")
	return struct{}{}, nil
}

// tailCall reports whether `return call` may reuse the current frame: the
// callee can recurse back into this function and returns the same kind.
func (e *emitter) tailCall(call *ast.CallExpression) bool {
	if !e.b.opts.TailCalls || e.topLevel {
		return false
	}
	return call.Kind() == e.ret && e.b.graph.Recursive(e.fn, call.Function.Value)
}

func (e *emitter) VisitFunctionDeclaration(n *ast.FunctionDeclaration) (struct{}, error) {
	return struct{}{}, diagnostics.NewError(diagnostics.ErrI001, n.Token,
		"nested function '%s' reached code generation", n.Name.Value)
}

var _ ast.ExpressionVisitor[struct{}] = (*emitter)(nil)
var _ ast.StatementVisitor[struct{}] = (*emitter)(nil)
