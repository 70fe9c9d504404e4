package prettyprinter

import (
	"bytes"
	"math"
	"strconv"
	"strings"

	"github.com/funvibe/watc/internal/ast"
)

// --- Code Printer (Output looks like source code) ---

// Operator precedence (higher = binds tighter)
var operatorPrecedence = map[string]int{
	"||": 1,
	"&&": 2,
	"==": 3,
	"!=": 3,
	"<":  4,
	">":  4,
	"<=": 4,
	">=": 4,
	"+":  5,
	"-":  5,
	"*":  6,
	"/":  6,
	"%":  6,
}

const prefixPrecedence = 7

func getPrecedence(op string) int {
	if p, ok := operatorPrecedence[op]; ok {
		return p
	}
	return 10
}

type CodePrinter struct {
	buf    bytes.Buffer
	indent int
	// ShowKinds annotates declarations and signatures with inferred kinds.
	ShowKinds bool
}

func NewCodePrinter() *CodePrinter {
	return &CodePrinter{}
}

// Print renders a whole program. Functions come first, then the top-level
// statements, matching how the parser separates them.
func (p *CodePrinter) Print(program *ast.Program) string {
	p.buf.Reset()
	for i, fn := range program.Functions {
		if i > 0 {
			p.buf.WriteString("\n")
		}
		p.printStatement(fn)
	}
	if len(program.Functions) > 0 && len(program.Statements) > 0 {
		p.buf.WriteString("\n")
	}
	for _, stmt := range program.Statements {
		p.printStatement(stmt)
	}
	return p.buf.String()
}

// String renders a single node.
func (p *CodePrinter) String(node ast.Node) string {
	p.buf.Reset()
	switch n := node.(type) {
	case *ast.Program:
		return p.Print(n)
	case ast.Expression:
		return p.expr(n)
	case ast.Statement:
		p.printStatement(n)
	}
	return strings.TrimRight(p.buf.String(), "\n")
}

func (p *CodePrinter) writeIndent() {
	for i := 0; i < p.indent; i++ {
		p.buf.WriteString("    ")
	}
}

func (p *CodePrinter) line(s string) {
	p.writeIndent()
	p.buf.WriteString(s)
	p.buf.WriteString("\n")
}

func (p *CodePrinter) printStatement(s ast.Statement) {
	_, _ = ast.VisitStatement[struct{}](s, p)
}

func (p *CodePrinter) expr(e ast.Expression) string {
	s, _ := ast.VisitExpression[string](e, p)
	return s
}

// operand prints e as an operand of an operator with precedence prec,
// adding parentheses only if needed.
func (p *CodePrinter) operand(e ast.Expression, prec int, isRight bool) string {
	s := p.expr(e)
	if infix, ok := e.(*ast.InfixExpression); ok {
		inner := getPrecedence(infix.Operator)
		if inner < prec || (inner == prec && isRight) {
			return "(" + s + ")"
		}
	}
	return s
}

// FormatFloat renders an f32 so that it reads back as a float literal.
func FormatFloat(v float32) string {
	f := float64(v)
	switch {
	case math.IsInf(f, 1):
		return "(1.0 / 0.0)"
	case math.IsInf(f, -1):
		return "(-1.0 / 0.0)"
	case math.IsNaN(f):
		return "(0.0 / 0.0)"
	}
	s := strconv.FormatFloat(f, 'g', -1, 32)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// --- expressions ---

func (p *CodePrinter) VisitIntegerLiteral(n *ast.IntegerLiteral) (string, error) {
	return strconv.FormatInt(int64(n.Value), 10), nil
}

func (p *CodePrinter) VisitFloatLiteral(n *ast.FloatLiteral) (string, error) {
	return FormatFloat(n.Value), nil
}

func (p *CodePrinter) VisitIdentifier(n *ast.Identifier) (string, error) {
	return n.Value, nil
}

func (p *CodePrinter) VisitPrefixExpression(n *ast.PrefixExpression) (string, error) {
	right := p.operand(n.Right, prefixPrecedence, false)
	if strings.HasPrefix(right, n.Operator) {
		// Keep "- -x" from reading as a decrement.
		right = "(" + right + ")"
	}
	return n.Operator + right, nil
}

func (p *CodePrinter) VisitInfixExpression(n *ast.InfixExpression) (string, error) {
	prec := getPrecedence(n.Operator)
	return p.operand(n.Left, prec, false) + " " + n.Operator + " " + p.operand(n.Right, prec, true), nil
}

func (p *CodePrinter) VisitCallExpression(n *ast.CallExpression) (string, error) {
	args := make([]string, len(n.Arguments))
	for i, a := range n.Arguments {
		args[i] = p.expr(a)
	}
	return n.Function.Value + "(" + strings.Join(args, ", ") + ")", nil
}

// --- statements ---

// clause renders a statement used inside a for header, without semicolon.
func (p *CodePrinter) clause(s ast.Statement) string {
	switch n := s.(type) {
	case *ast.LetStatement:
		return p.declaration(n)
	case *ast.AssignStatement:
		return n.Name.Value + " = " + p.expr(n.Value)
	case *ast.ExpressionStatement:
		return p.expr(n.Expression)
	}
	return ""
}

func (p *CodePrinter) declaration(n *ast.LetStatement) string {
	keyword := "const"
	if n.Mutable {
		keyword = "let"
	}
	name := n.Name.Value
	if p.ShowKinds && n.Value.Kind().IsValid() {
		name += " /* " + n.Value.Kind().String() + " */"
	}
	return keyword + " " + name + " = " + p.expr(n.Value)
}

// body prints the body of if/else/while/for on the current line.
func (p *CodePrinter) body(s ast.Statement) {
	if block, ok := s.(*ast.BlockStatement); ok {
		p.blockContents(block)
		return
	}
	p.trimSpace()
	p.buf.WriteString("\n")
	p.indent++
	p.printStatement(s)
	p.indent--
}

func (p *CodePrinter) blockContents(b *ast.BlockStatement) {
	p.buf.WriteString("{\n")
	p.indent++
	for _, s := range b.Statements {
		p.printStatement(s)
	}
	p.indent--
	p.writeIndent()
	p.buf.WriteString("}\n")
}

func (p *CodePrinter) VisitLetStatement(n *ast.LetStatement) (struct{}, error) {
	p.line(p.declaration(n) + ";")
	return struct{}{}, nil
}

func (p *CodePrinter) VisitAssignStatement(n *ast.AssignStatement) (struct{}, error) {
	p.line(p.clause(n) + ";")
	return struct{}{}, nil
}

func (p *CodePrinter) VisitExpressionStatement(n *ast.ExpressionStatement) (struct{}, error) {
	p.line(p.expr(n.Expression) + ";")
	return struct{}{}, nil
}

func (p *CodePrinter) VisitBlockStatement(n *ast.BlockStatement) (struct{}, error) {
	p.writeIndent()
	p.blockContents(n)
	return struct{}{}, nil
}

func (p *CodePrinter) VisitIfStatement(n *ast.IfStatement) (struct{}, error) {
	p.writeIndent()
	p.printIf(n)
	return struct{}{}, nil
}

func (p *CodePrinter) printIf(n *ast.IfStatement) {
	p.buf.WriteString("if (" + p.expr(n.Condition) + ") ")
	p.body(n.Consequence)
	if n.Alternative == nil {
		return
	}
	if _, ok := n.Consequence.(*ast.BlockStatement); ok {
		p.trimNewline()
		p.buf.WriteString(" else ")
	} else {
		p.writeIndent()
		p.buf.WriteString("else ")
	}
	if elseIf, ok := n.Alternative.(*ast.IfStatement); ok {
		p.printIf(elseIf)
		return
	}
	p.body(n.Alternative)
}

func (p *CodePrinter) trimSpace() {
	b := p.buf.Bytes()
	if len(b) > 0 && b[len(b)-1] == ' ' {
		p.buf.Truncate(len(b) - 1)
	}
}

// trimNewline joins "}" and a following "else" on one line.
func (p *CodePrinter) trimNewline() {
	b := p.buf.Bytes()
	if len(b) > 0 && b[len(b)-1] == '\n' {
		p.buf.Truncate(len(b) - 1)
	}
}

func (p *CodePrinter) VisitWhileStatement(n *ast.WhileStatement) (struct{}, error) {
	p.writeIndent()
	p.buf.WriteString("while (" + p.expr(n.Condition) + ") ")
	p.body(n.Body)
	return struct{}{}, nil
}

func (p *CodePrinter) VisitForStatement(n *ast.ForStatement) (struct{}, error) {
	var init, cond, update string
	if n.Init != nil {
		init = p.clause(n.Init)
	}
	if n.Condition != nil {
		cond = " " + p.expr(n.Condition)
	}
	if n.Update != nil {
		update = " " + p.clause(n.Update)
	}
	p.writeIndent()
	p.buf.WriteString("for (" + init + ";" + cond + ";" + update + ") ")
	p.body(n.Body)
	return struct{}{}, nil
}

func (p *CodePrinter) VisitBreakStatement(*ast.BreakStatement) (struct{}, error) {
	p.line("break;")
	return struct{}{}, nil
}

func (p *CodePrinter) VisitContinueStatement(*ast.ContinueStatement) (struct{}, error) {
	p.line("continue;")
	return struct{}{}, nil
}

func (p *CodePrinter) VisitReturnStatement(n *ast.ReturnStatement) (struct{}, error) {
	if n.ReturnValue == nil {
		p.line("return;")
	} else {
		p.line("return " + p.expr(n.ReturnValue) + ";")
	}
	return struct{}{}, nil
}

func (p *CodePrinter) VisitFunctionDeclaration(n *ast.FunctionDeclaration) (struct{}, error) {
	if p.ShowKinds && n.Signature != nil {
		p.line("// " + n.Signature.String())
	}
	params := make([]string, len(n.Parameters))
	for i, param := range n.Parameters {
		params[i] = param.Value
		if p.ShowKinds && n.Signature != nil {
			if kinds, ok := n.Signature.ParamKinds.Get(); ok {
				params[i] += " /* " + kinds[i].String() + " */"
			}
		}
	}
	p.writeIndent()
	p.buf.WriteString("function " + n.Name.Value + "(" + strings.Join(params, ", ") + ") ")
	p.blockContents(n.Body)
	return struct{}{}, nil
}
