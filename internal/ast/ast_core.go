package ast

import (
	"github.com/funvibe/watc/internal/token"
	"github.com/funvibe/watc/internal/typesystem"
)

// Node is the base interface for all AST nodes.
type Node interface {
	TokenLiteral() string
	GetToken() token.Token
}

// Statement is a Node that represents a statement.
type Statement interface {
	Node
	statementNode()
}

// Expression is a Node that represents an expression. After semantic
// analysis every expression carries exactly one resolved kind.
type Expression interface {
	Node
	expressionNode()
	Kind() typesystem.Kind
	SetKind(typesystem.Kind)
}

// Typed holds the kind annotation written by the analyzer.
type Typed struct {
	kind typesystem.Kind
}

func (t *Typed) Kind() typesystem.Kind      { return t.kind }
func (t *Typed) SetKind(k typesystem.Kind) { t.kind = k }

// Program is the root node. Function declarations are kept apart from the
// top-level statement sequence, which forms the entry function.
type Program struct {
	File       string
	Functions  []*FunctionDeclaration
	Statements []Statement
}

func (p *Program) TokenLiteral() string {
	if len(p.Statements) > 0 {
		return p.Statements[0].TokenLiteral()
	}
	return ""
}

func (p *Program) GetToken() token.Token {
	if len(p.Statements) > 0 {
		return p.Statements[0].GetToken()
	}
	return token.Token{}
}

// Function returns the declaration named name, or nil.
func (p *Program) Function(name string) *FunctionDeclaration {
	for _, fn := range p.Functions {
		if fn.Name.Value == name {
			return fn
		}
	}
	return nil
}
