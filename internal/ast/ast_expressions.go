package ast

import (
	"github.com/funvibe/watc/internal/token"
	"github.com/funvibe/watc/internal/typesystem"
)

type IntegerLiteral struct {
	Token token.Token
	Value int32
}

func (il *IntegerLiteral) expressionNode()         {}
func (il *IntegerLiteral) TokenLiteral() string    { return il.Token.Lexeme }
func (il *IntegerLiteral) GetToken() token.Token   { return il.Token }
func (il *IntegerLiteral) Kind() typesystem.Kind   { return typesystem.KindI32 }
func (il *IntegerLiteral) SetKind(typesystem.Kind) {}

type FloatLiteral struct {
	Token token.Token
	Value float32
}

func (fl *FloatLiteral) expressionNode()         {}
func (fl *FloatLiteral) TokenLiteral() string    { return fl.Token.Lexeme }
func (fl *FloatLiteral) GetToken() token.Token   { return fl.Token }
func (fl *FloatLiteral) Kind() typesystem.Kind   { return typesystem.KindF32 }
func (fl *FloatLiteral) SetKind(typesystem.Kind) {}

type Identifier struct {
	Typed
	Token token.Token
	Value string
}

func (i *Identifier) expressionNode()       {}
func (i *Identifier) TokenLiteral() string  { return i.Token.Lexeme }
func (i *Identifier) GetToken() token.Token { return i.Token }

// PrefixExpression is unary negation or logical not.
type PrefixExpression struct {
	Typed
	Token    token.Token
	Operator string
	Right    Expression
}

func (pe *PrefixExpression) expressionNode()       {}
func (pe *PrefixExpression) TokenLiteral() string  { return pe.Token.Lexeme }
func (pe *PrefixExpression) GetToken() token.Token { return pe.Token }

// InfixExpression covers arithmetic, comparison and the short-circuit
// operators && and ||.
type InfixExpression struct {
	Typed
	Token    token.Token
	Left     Expression
	Operator string
	Right    Expression
}

func (ie *InfixExpression) expressionNode()       {}
func (ie *InfixExpression) TokenLiteral() string  { return ie.Token.Lexeme }
func (ie *InfixExpression) GetToken() token.Token { return ie.Token }

// OperandKind is the common kind both operands are widened to.
func (ie *InfixExpression) OperandKind() typesystem.Kind {
	return typesystem.Wider(ie.Left.Kind(), ie.Right.Kind())
}

func (ie *InfixExpression) IsComparison() bool { return IsComparisonOperator(ie.Operator) }
func (ie *InfixExpression) IsLogical() bool    { return ie.Operator == "&&" || ie.Operator == "||" }

type CallExpression struct {
	Typed
	Token     token.Token // The function name token
	Function  *Identifier
	Arguments []Expression
}

func (ce *CallExpression) expressionNode()       {}
func (ce *CallExpression) TokenLiteral() string  { return ce.Token.Lexeme }
func (ce *CallExpression) GetToken() token.Token { return ce.Token }

func IsComparisonOperator(op string) bool {
	switch op {
	case "==", "!=", "<", ">", "<=", ">=":
		return true
	}
	return false
}

// NewLiteral builds a literal node of kind k holding v, positioned at tok.
func NewLiteral(tok token.Token, k typesystem.Kind, v float64) Expression {
	if k == typesystem.KindF32 {
		tok.Type = token.FLOAT
		return &FloatLiteral{Token: tok, Value: float32(v)}
	}
	tok.Type = token.INT
	return &IntegerLiteral{Token: tok, Value: int32(v)}
}
