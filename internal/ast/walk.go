package ast

// Children returns the direct child nodes of n in source order. Nil optional
// clauses are omitted.
func Children(n Node) []Node {
	var out []Node
	add := func(c Node) {
		switch c := c.(type) {
		case nil:
		case Expression:
			if c != nil {
				out = append(out, c)
			}
		case Statement:
			if c != nil {
				out = append(out, c)
			}
		}
	}
	switch n := n.(type) {
	case *Program:
		for _, fn := range n.Functions {
			add(fn)
		}
		for _, s := range n.Statements {
			add(s)
		}
	case *PrefixExpression:
		add(n.Right)
	case *InfixExpression:
		add(n.Left)
		add(n.Right)
	case *CallExpression:
		add(n.Function)
		for _, a := range n.Arguments {
			add(a)
		}
	case *LetStatement:
		add(n.Name)
		add(n.Value)
	case *AssignStatement:
		add(n.Name)
		add(n.Value)
	case *ExpressionStatement:
		add(n.Expression)
	case *BlockStatement:
		for _, s := range n.Statements {
			add(s)
		}
	case *IfStatement:
		add(n.Condition)
		add(n.Consequence)
		if n.Alternative != nil {
			add(n.Alternative)
		}
	case *WhileStatement:
		add(n.Condition)
		add(n.Body)
	case *ForStatement:
		if n.Init != nil {
			add(n.Init)
		}
		if n.Condition != nil {
			add(n.Condition)
		}
		if n.Update != nil {
			add(n.Update)
		}
		add(n.Body)
	case *ReturnStatement:
		if n.ReturnValue != nil {
			add(n.ReturnValue)
		}
	case *FunctionDeclaration:
		add(n.Name)
		for _, p := range n.Parameters {
			add(p)
		}
		add(n.Body)
	}
	return out
}

// Inspect traverses the tree rooted at n in depth-first pre-order. If f
// returns false the children of that node are skipped.
func Inspect(n Node, f func(Node) bool) {
	if n == nil || !f(n) {
		return
	}
	for _, c := range Children(n) {
		Inspect(c, f)
	}
}

// CalledFunctions returns the names of functions called anywhere under n,
// each once, in first-seen order.
func CalledFunctions(n Node) []string {
	seen := make(map[string]bool)
	var names []string
	Inspect(n, func(node Node) bool {
		if call, ok := node.(*CallExpression); ok && !seen[call.Function.Value] {
			seen[call.Function.Value] = true
			names = append(names, call.Function.Value)
		}
		return true
	})
	return names
}
