package parser

import (
	"github.com/funvibe/watc/internal/ast"
	"github.com/funvibe/watc/internal/diagnostics"
	"github.com/funvibe/watc/internal/token"
)

func (p *Parser) parseExpression(precedence int) ast.Expression {
	if !p.enter() {
		return nil
	}
	defer p.leave()

	prefix := p.prefixParseFns[p.curToken.Type]
	if prefix == nil {
		p.noPrefixParseFnError(p.curToken)
		return nil
	}
	leftExp := prefix()
	if leftExp == nil {
		return nil
	}

	for !p.peekTokenIs(token.SEMICOLON) && precedence < p.peekPrecedence() {
		infix := p.infixParseFns[p.peekToken.Type]
		if infix == nil {
			return leftExp
		}
		p.nextToken()
		if leftExp = infix(leftExp); leftExp == nil {
			return nil
		}
	}

	return leftExp
}

func (p *Parser) parseIdentifier() ast.Expression {
	return &ast.Identifier{Token: p.curToken, Value: p.curToken.Lexeme}
}

func (p *Parser) parseIntegerLiteral() ast.Expression {
	v, ok := p.curToken.Literal.(int32)
	if !ok {
		p.addError(diagnostics.ErrI001, p.curToken, "integer token without a value")
		return nil
	}
	return &ast.IntegerLiteral{Token: p.curToken, Value: v}
}

func (p *Parser) parseFloatLiteral() ast.Expression {
	v, ok := p.curToken.Literal.(float32)
	if !ok {
		p.addError(diagnostics.ErrI001, p.curToken, "float token without a value")
		return nil
	}
	return &ast.FloatLiteral{Token: p.curToken, Value: v}
}

func (p *Parser) parsePrefixExpression() ast.Expression {
	expression := &ast.PrefixExpression{
		Token:    p.curToken,
		Operator: p.curToken.Lexeme,
	}
	p.nextToken()
	if expression.Right = p.parseExpression(PREFIX); expression.Right == nil {
		return nil
	}
	return expression
}

func (p *Parser) parseInfixExpression(left ast.Expression) ast.Expression {
	expression := &ast.InfixExpression{
		Token:    p.curToken,
		Operator: p.curToken.Lexeme,
		Left:     left,
	}
	precedence := precedences[p.curToken.Type]
	p.nextToken()
	// All binary operators are left-associative.
	if expression.Right = p.parseExpression(precedence); expression.Right == nil {
		return nil
	}
	return expression
}

func (p *Parser) parseGroupedExpression() ast.Expression {
	p.nextToken()
	exp := p.parseExpression(LOWEST)
	if exp == nil || !p.expectPeek(token.RPAREN) {
		return nil
	}
	return exp
}

// parseCallExpression parses the argument list after a callee. Only named
// functions can be called.
func (p *Parser) parseCallExpression(callee ast.Expression) ast.Expression {
	ident, ok := callee.(*ast.Identifier)
	if !ok {
		p.addError(diagnostics.ErrP001, p.curToken, "unexpected \"(\": only named functions can be called")
		return nil
	}
	call := &ast.CallExpression{Token: ident.Token, Function: ident}

	if p.peekTokenIs(token.RPAREN) {
		p.nextToken()
		return call
	}
	for {
		p.nextToken()
		arg := p.parseExpression(LOWEST)
		if arg == nil {
			return nil
		}
		call.Arguments = append(call.Arguments, arg)
		if !p.peekTokenIs(token.COMMA) {
			break
		}
		p.nextToken()
	}
	if !p.expectPeek(token.RPAREN) {
		return nil
	}
	return call
}
