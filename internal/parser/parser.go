package parser

import (
	"github.com/funvibe/watc/internal/ast"
	"github.com/funvibe/watc/internal/config"
	"github.com/funvibe/watc/internal/diagnostics"
	"github.com/funvibe/watc/internal/pipeline"
	"github.com/funvibe/watc/internal/token"
)

// MaxRecursionDepth bounds expression and statement nesting.
var MaxRecursionDepth = config.MaxNestingDepth

const (
	_ int = iota
	LOWEST
	LOGIC_OR    // ||
	LOGIC_AND   // &&
	EQUALS      // == !=
	LESSGREATER // < > <= >=
	SUM         // + -
	PRODUCT     // * / %
	PREFIX      // -x !x
	CALL        // f(x)
)

var precedences = map[token.TokenType]int{
	token.OR:       LOGIC_OR,
	token.AND:      LOGIC_AND,
	token.EQ:       EQUALS,
	token.NOT_EQ:   EQUALS,
	token.LT:       LESSGREATER,
	token.GT:       LESSGREATER,
	token.LTE:      LESSGREATER,
	token.GTE:      LESSGREATER,
	token.PLUS:     SUM,
	token.MINUS:    SUM,
	token.ASTERISK: PRODUCT,
	token.SLASH:    PRODUCT,
	token.PERCENT:  PRODUCT,
	token.LPAREN:   CALL,
}

// compoundOperators maps a compound assignment to the operator it desugars to.
var compoundOperators = map[token.TokenType]token.TokenType{
	token.PLUS_ASSIGN:     token.PLUS,
	token.MINUS_ASSIGN:    token.MINUS,
	token.ASTERISK_ASSIGN: token.ASTERISK,
	token.SLASH_ASSIGN:    token.SLASH,
	token.PERCENT_ASSIGN:  token.PERCENT,
}

func isAssignOperator(t token.TokenType) bool {
	_, compound := compoundOperators[t]
	return t == token.ASSIGN || compound
}

type (
	prefixParseFn func() ast.Expression
	infixParseFn  func(ast.Expression) ast.Expression
)

// Parser is a Pratt parser with one token of lookahead. It stops at the
// first error; every parse method returns nil once an error is recorded.
type Parser struct {
	stream pipeline.TokenStream
	ctx    *pipeline.PipelineContext

	curToken  token.Token
	peekToken token.Token

	prefixParseFns map[token.TokenType]prefixParseFn
	infixParseFns  map[token.TokenType]infixParseFn

	depth int
	err   *diagnostics.DiagnosticError
}

func New(stream pipeline.TokenStream, ctx *pipeline.PipelineContext) *Parser {
	p := &Parser{stream: stream, ctx: ctx}

	p.prefixParseFns = map[token.TokenType]prefixParseFn{
		token.IDENT:  p.parseIdentifier,
		token.INT:    p.parseIntegerLiteral,
		token.FLOAT:  p.parseFloatLiteral,
		token.MINUS:  p.parsePrefixExpression,
		token.BANG:   p.parsePrefixExpression,
		token.LPAREN: p.parseGroupedExpression,
	}
	p.infixParseFns = make(map[token.TokenType]infixParseFn)
	for tt := range precedences {
		p.infixParseFns[tt] = p.parseInfixExpression
	}
	p.infixParseFns[token.LPAREN] = p.parseCallExpression

	p.nextToken()
	p.nextToken()
	return p
}

// Err returns the error that stopped the parser, if any.
func (p *Parser) Err() *diagnostics.DiagnosticError { return p.err }

func (p *Parser) failed() bool { return p.err != nil }

func (p *Parser) addError(code diagnostics.ErrorCode, tok token.Token, format string, args ...any) {
	if p.err != nil {
		return
	}
	p.err = diagnostics.NewError(code, tok, format, args...)
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.stream.Next()
}

func (p *Parser) curTokenIs(t token.TokenType) bool  { return p.curToken.Type == t }
func (p *Parser) peekTokenIs(t token.TokenType) bool { return p.peekToken.Type == t }

// expectPeek advances when the next token has type t and records a P002
// error otherwise.
func (p *Parser) expectPeek(t token.TokenType) bool {
	if p.peekTokenIs(t) {
		p.nextToken()
		return true
	}
	p.peekError(t)
	return false
}

func (p *Parser) peekError(t token.TokenType) {
	p.addError(diagnostics.ErrP002, p.peekToken,
		"expected %s, got %s", token.DescribeType(t), p.peekToken.Describe())
}

func (p *Parser) noPrefixParseFnError(tok token.Token) {
	p.addError(diagnostics.ErrP001, tok, "unexpected %s, expected an expression", tok.Describe())
}

func (p *Parser) peekPrecedence() int {
	if prec, ok := precedences[p.peekToken.Type]; ok {
		return prec
	}
	return LOWEST
}

// enter tracks nesting depth; it reports false (and records P005) when the
// limit is exceeded. Every successful enter must be paired with leave.
func (p *Parser) enter() bool {
	p.depth++
	if p.depth > MaxRecursionDepth {
		p.addError(diagnostics.ErrP005, p.curToken, "nesting too deep: limit of %d exceeded", MaxRecursionDepth)
		return false
	}
	return true
}

func (p *Parser) leave() { p.depth-- }

// ParseProgram parses the whole token stream. Function declarations are
// collected apart from the top-level statements.
func (p *Parser) ParseProgram() *ast.Program {
	program := &ast.Program{}

	for !p.curTokenIs(token.EOF) && !p.failed() {
		if p.curTokenIs(token.FUNCTION) {
			if fn := p.parseFunctionDeclaration(); fn != nil {
				program.Functions = append(program.Functions, fn)
			}
		} else if stmt := p.parseStatement(); stmt != nil {
			program.Statements = append(program.Statements, stmt)
		}
		p.nextToken()
	}
	return program
}
