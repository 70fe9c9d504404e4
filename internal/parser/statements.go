package parser

import (
	"github.com/funvibe/watc/internal/ast"
	"github.com/funvibe/watc/internal/diagnostics"
	"github.com/funvibe/watc/internal/token"
)

// parseStatement parses one statement starting at curToken and leaves
// curToken on its last token.
func (p *Parser) parseStatement() ast.Statement {
	if !p.enter() {
		return nil
	}
	defer p.leave()

	switch p.curToken.Type {
	case token.LET, token.CONST:
		return nilIfFailed(p, p.parseLetStatement())
	case token.FUNCTION:
		p.addError(diagnostics.ErrP004, p.curToken, "function declarations are only allowed at the top level")
		return nil
	case token.IF:
		return nilIfFailed(p, p.parseIfStatement())
	case token.WHILE:
		return nilIfFailed(p, p.parseWhileStatement())
	case token.FOR:
		return nilIfFailed(p, p.parseForStatement())
	case token.BREAK:
		stmt := &ast.BreakStatement{Token: p.curToken}
		if !p.expectPeek(token.SEMICOLON) {
			return nil
		}
		return stmt
	case token.CONTINUE:
		stmt := &ast.ContinueStatement{Token: p.curToken}
		if !p.expectPeek(token.SEMICOLON) {
			return nil
		}
		return stmt
	case token.RETURN:
		return nilIfFailed(p, p.parseReturnStatement())
	case token.LBRACE:
		return nilIfFailed(p, p.parseBlockStatement())
	case token.SEMICOLON:
		// Empty statement.
		return &ast.BlockStatement{Token: p.curToken}
	}

	stmt := p.parseSimpleStatement()
	if stmt == nil || !p.expectPeek(token.SEMICOLON) {
		return nil
	}
	return stmt
}

// nilIfFailed converts a typed nil statement into an untyped nil interface.
func nilIfFailed[S ast.Statement](p *Parser, s S) ast.Statement {
	if p.failed() {
		return nil
	}
	return s
}

// parseBodyStatement parses the direct body of if, else, while and for,
// where lexical declarations are not allowed.
func (p *Parser) parseBodyStatement() ast.Statement {
	switch p.curToken.Type {
	case token.LET, token.CONST:
		p.addError(diagnostics.ErrP004, p.curToken,
			"lexical declaration cannot appear in a single-statement context; wrap it in a block")
		return nil
	case token.EOF:
		p.addError(diagnostics.ErrP001, p.curToken, "unexpected end of input, expected a statement")
		return nil
	}
	return p.parseStatement()
}

// parseSimpleStatement parses an assignment or an expression without the
// trailing semicolon.
func (p *Parser) parseSimpleStatement() ast.Statement {
	if p.curTokenIs(token.IDENT) && isAssignOperator(p.peekToken.Type) {
		return nilIfFailed(p, p.parseAssignStatement())
	}

	stmt := &ast.ExpressionStatement{Token: p.curToken}
	stmt.Expression = p.parseExpression(LOWEST)
	if stmt.Expression == nil {
		return nil
	}
	if isAssignOperator(p.peekToken.Type) {
		p.addError(diagnostics.ErrP003, p.peekToken, "invalid assignment target: only variables can be assigned")
		return nil
	}
	return stmt
}

func (p *Parser) parseLetStatement() *ast.LetStatement {
	stmt := &ast.LetStatement{Token: p.curToken, Mutable: p.curTokenIs(token.LET)}

	if !p.expectPeek(token.IDENT) {
		return nil
	}
	stmt.Name = &ast.Identifier{Token: p.curToken, Value: p.curToken.Lexeme}

	if !p.peekTokenIs(token.ASSIGN) {
		p.addError(diagnostics.ErrP002, p.peekToken,
			"expected \"=\" after %s %s, got %s (declarations require an initializer)",
			stmt.Token.Lexeme, stmt.Name.Value, p.peekToken.Describe())
		return nil
	}
	p.nextToken()
	p.nextToken()

	stmt.Value = p.parseExpression(LOWEST)
	if stmt.Value == nil || !p.expectPeek(token.SEMICOLON) {
		return nil
	}
	return stmt
}

// parseAssignStatement parses `x = e` and desugars `x op= e` into
// `x = x op e`. curToken is the identifier.
func (p *Parser) parseAssignStatement() *ast.AssignStatement {
	name := &ast.Identifier{Token: p.curToken, Value: p.curToken.Lexeme}
	p.nextToken()
	stmt := &ast.AssignStatement{Token: p.curToken, Name: name}
	opTok := p.curToken
	p.nextToken()

	value := p.parseExpression(LOWEST)
	if value == nil {
		return nil
	}

	if op, ok := compoundOperators[opTok.Type]; ok {
		lexeme := string(op)
		value = &ast.InfixExpression{
			Token:    token.Token{Type: op, Lexeme: lexeme, Literal: lexeme, Line: opTok.Line, Column: opTok.Column},
			Left:     &ast.Identifier{Token: name.Token, Value: name.Value},
			Operator: lexeme,
			Right:    value,
		}
	}
	stmt.Value = value
	return stmt
}

func (p *Parser) parseReturnStatement() *ast.ReturnStatement {
	stmt := &ast.ReturnStatement{Token: p.curToken}
	if p.peekTokenIs(token.SEMICOLON) {
		p.nextToken()
		return stmt
	}
	p.nextToken()
	stmt.ReturnValue = p.parseExpression(LOWEST)
	if stmt.ReturnValue == nil || !p.expectPeek(token.SEMICOLON) {
		return nil
	}
	return stmt
}

func (p *Parser) parseBlockStatement() *ast.BlockStatement {
	block := &ast.BlockStatement{Token: p.curToken}
	p.nextToken()

	for !p.curTokenIs(token.RBRACE) {
		if p.curTokenIs(token.EOF) {
			p.addError(diagnostics.ErrP002, p.curToken,
				"expected \"}\" to close block opened at line %d, got end of input", block.Token.Line)
			return nil
		}
		stmt := p.parseStatement()
		if stmt == nil {
			return nil
		}
		block.Statements = append(block.Statements, stmt)
		p.nextToken()
	}
	return block
}

// parseCondition parses `( expr )` after if or while.
func (p *Parser) parseCondition() ast.Expression {
	if !p.expectPeek(token.LPAREN) {
		return nil
	}
	p.nextToken()
	cond := p.parseExpression(LOWEST)
	if cond == nil || !p.expectPeek(token.RPAREN) {
		return nil
	}
	return cond
}

func (p *Parser) parseIfStatement() *ast.IfStatement {
	stmt := &ast.IfStatement{Token: p.curToken}
	if stmt.Condition = p.parseCondition(); stmt.Condition == nil {
		return nil
	}
	p.nextToken()
	if stmt.Consequence = p.parseBodyStatement(); stmt.Consequence == nil {
		return nil
	}
	if p.peekTokenIs(token.ELSE) {
		p.nextToken()
		p.nextToken()
		if stmt.Alternative = p.parseBodyStatement(); stmt.Alternative == nil {
			return nil
		}
	}
	return stmt
}

func (p *Parser) parseWhileStatement() *ast.WhileStatement {
	stmt := &ast.WhileStatement{Token: p.curToken}
	if stmt.Condition = p.parseCondition(); stmt.Condition == nil {
		return nil
	}
	p.nextToken()
	if stmt.Body = p.parseBodyStatement(); stmt.Body == nil {
		return nil
	}
	return stmt
}

// parseForStatement parses `for (init; cond; update) body`. Each clause may
// be empty.
func (p *Parser) parseForStatement() *ast.ForStatement {
	stmt := &ast.ForStatement{Token: p.curToken}
	if !p.expectPeek(token.LPAREN) {
		return nil
	}
	p.nextToken()

	switch {
	case p.curTokenIs(token.SEMICOLON):
	case p.curTokenIs(token.LET) || p.curTokenIs(token.CONST):
		// parseLetStatement consumes the semicolon.
		if stmt.Init = nilIfFailed(p, p.parseLetStatement()); stmt.Init == nil {
			return nil
		}
	default:
		if stmt.Init = p.parseSimpleStatement(); stmt.Init == nil || !p.expectPeek(token.SEMICOLON) {
			return nil
		}
	}
	p.nextToken()

	if !p.curTokenIs(token.SEMICOLON) {
		if stmt.Condition = p.parseExpression(LOWEST); stmt.Condition == nil || !p.expectPeek(token.SEMICOLON) {
			return nil
		}
	}
	p.nextToken()

	if !p.curTokenIs(token.RPAREN) {
		if stmt.Update = p.parseSimpleStatement(); stmt.Update == nil || !p.expectPeek(token.RPAREN) {
			return nil
		}
	}
	p.nextToken()

	if stmt.Body = p.parseBodyStatement(); stmt.Body == nil {
		return nil
	}
	return stmt
}

// parseFunctionDeclaration parses `function name(a, b) { ... }`.
func (p *Parser) parseFunctionDeclaration() *ast.FunctionDeclaration {
	fn := &ast.FunctionDeclaration{Token: p.curToken}

	if !p.expectPeek(token.IDENT) {
		return nil
	}
	fn.Name = &ast.Identifier{Token: p.curToken, Value: p.curToken.Lexeme}

	if !p.expectPeek(token.LPAREN) {
		return nil
	}
	if !p.peekTokenIs(token.RPAREN) {
		for {
			if !p.expectPeek(token.IDENT) {
				return nil
			}
			fn.Parameters = append(fn.Parameters, &ast.Identifier{Token: p.curToken, Value: p.curToken.Lexeme})
			if !p.peekTokenIs(token.COMMA) {
				break
			}
			p.nextToken()
		}
	}
	if !p.expectPeek(token.RPAREN) || !p.expectPeek(token.LBRACE) {
		return nil
	}

	fn.Body = p.parseBlockStatement()
	if fn.Body == nil {
		return nil
	}
	return fn
}
