package ast

import "fmt"

// ExpressionVisitor is implemented by every stage that walks expressions.
// The tree shape is dispatched once, in VisitExpression.
type ExpressionVisitor[R any] interface {
	VisitIntegerLiteral(*IntegerLiteral) (R, error)
	VisitFloatLiteral(*FloatLiteral) (R, error)
	VisitIdentifier(*Identifier) (R, error)
	VisitPrefixExpression(*PrefixExpression) (R, error)
	VisitInfixExpression(*InfixExpression) (R, error)
	VisitCallExpression(*CallExpression) (R, error)
}

// StatementVisitor is the statement counterpart of ExpressionVisitor.
type StatementVisitor[R any] interface {
	VisitLetStatement(*LetStatement) (R, error)
	VisitAssignStatement(*AssignStatement) (R, error)
	VisitExpressionStatement(*ExpressionStatement) (R, error)
	VisitBlockStatement(*BlockStatement) (R, error)
	VisitIfStatement(*IfStatement) (R, error)
	VisitWhileStatement(*WhileStatement) (R, error)
	VisitForStatement(*ForStatement) (R, error)
	VisitBreakStatement(*BreakStatement) (R, error)
	VisitContinueStatement(*ContinueStatement) (R, error)
	VisitReturnStatement(*ReturnStatement) (R, error)
	VisitFunctionDeclaration(*FunctionDeclaration) (R, error)
}

func VisitExpression[R any](e Expression, v ExpressionVisitor[R]) (R, error) {
	switch n := e.(type) {
	case *IntegerLiteral:
		return v.VisitIntegerLiteral(n)
	case *FloatLiteral:
		return v.VisitFloatLiteral(n)
	case *Identifier:
		return v.VisitIdentifier(n)
	case *PrefixExpression:
		return v.VisitPrefixExpression(n)
	case *InfixExpression:
		return v.VisitInfixExpression(n)
	case *CallExpression:
		return v.VisitCallExpression(n)
	}
	var zero R
	return zero, fmt.Errorf("ast: unknown expression node %T", e)
}

func VisitStatement[R any](s Statement, v StatementVisitor[R]) (R, error) {
	switch n := s.(type) {
	case *LetStatement:
		return v.VisitLetStatement(n)
	case *AssignStatement:
		return v.VisitAssignStatement(n)
	case *ExpressionStatement:
		return v.VisitExpressionStatement(n)
	case *BlockStatement:
		return v.VisitBlockStatement(n)
	case *IfStatement:
		return v.VisitIfStatement(n)
	case *WhileStatement:
		return v.VisitWhileStatement(n)
	case *ForStatement:
		return v.VisitForStatement(n)
	case *BreakStatement:
		return v.VisitBreakStatement(n)
	case *ContinueStatement:
		return v.VisitContinueStatement(n)
	case *ReturnStatement:
		return v.VisitReturnStatement(n)
	case *FunctionDeclaration:
		return v.VisitFunctionDeclaration(n)
	}
	var zero R
	return zero, fmt.Errorf("ast: unknown statement node %T", s)
}
