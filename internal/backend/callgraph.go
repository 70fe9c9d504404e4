package backend

import (
	"github.com/funvibe/watc/internal/ast"
)

// CallGraph records which functions each function calls directly.
type CallGraph struct {
	order     []string
	edges     map[string][]string
	component map[string]int
}

func NewCallGraph(program *ast.Program) *CallGraph {
	g := &CallGraph{edges: make(map[string][]string), component: make(map[string]int)}
	for _, fn := range program.Functions {
		g.order = append(g.order, fn.Name.Value)
		g.edges[fn.Name.Value] = ast.CalledFunctions(fn.Body)
	}
	for i, scc := range g.Components() {
		for _, name := range scc {
			g.component[name] = i
		}
	}
	return g
}

// Components returns the strongly connected components in reverse
// topological order (callees before callers), using Tarjan's algorithm.
func (g *CallGraph) Components() [][]string {
	var (
		index   = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		stack   []string
		next    int
		out     [][]string
	)

	var connect func(v string)
	connect = func(v string) {
		index[v] = next
		lowlink[v] = next
		next++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g.edges[v] {
			if _, known := g.edges[w]; !known {
				continue
			}
			if _, seen := index[w]; !seen {
				connect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], index[w])
			}
		}

		if lowlink[v] == index[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			out = append(out, scc)
		}
	}

	for _, v := range g.order {
		if _, seen := index[v]; !seen {
			connect(v)
		}
	}
	return out
}

// Calls reports whether caller calls callee directly.
func (g *CallGraph) Calls(caller, callee string) bool {
	for _, c := range g.edges[caller] {
		if c == callee {
			return true
		}
	}
	return false
}

// Recursive reports whether a call from caller to callee can come back to
// caller: both sit in one strongly connected component and the edge exists.
func (g *CallGraph) Recursive(caller, callee string) bool {
	a, ok1 := g.component[caller]
	b, ok2 := g.component[callee]
	return ok1 && ok2 && a == b && g.Calls(caller, callee)
}
