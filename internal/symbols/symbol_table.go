package symbols

import (
	"github.com/funvibe/watc/internal/typesystem"
)

type ScopeType int

const (
	ScopeGlobal ScopeType = iota // Top-level statements
	ScopeFunction
	ScopeBlock
	ScopeLoop // for header and body
)

// Symbol binds a variable name to its fixed kind.
type Symbol struct {
	Name    string
	Kind    typesystem.Kind
	Mutable bool // false for const
	Line    int
	Column  int
}

type scope struct {
	typ   ScopeType
	store map[string]Symbol
}

// SymbolTable is a stack of lexical scopes. Scopes are strictly nested, so
// lookups walk from the innermost scope outwards.
type SymbolTable struct {
	scopes []*scope
}

// NewSymbolTable returns a table with a single open scope of type typ.
func NewSymbolTable(typ ScopeType) *SymbolTable {
	st := &SymbolTable{}
	st.Push(typ)
	return st
}

func (st *SymbolTable) Push(typ ScopeType) {
	st.scopes = append(st.scopes, &scope{typ: typ, store: make(map[string]Symbol)})
}

// Pop closes the innermost scope. The outermost scope is never popped.
func (st *SymbolTable) Pop() {
	if len(st.scopes) > 1 {
		st.scopes = st.scopes[:len(st.scopes)-1]
	}
}

func (st *SymbolTable) Depth() int { return len(st.scopes) }

// Define binds sym in the innermost scope, shadowing outer bindings.
// It reports false when the name is already bound in that same scope.
func (st *SymbolTable) Define(sym Symbol) bool {
	cur := st.scopes[len(st.scopes)-1]
	if _, exists := cur.store[sym.Name]; exists {
		cur.store[sym.Name] = sym
		return false
	}
	cur.store[sym.Name] = sym
	return true
}

func (st *SymbolTable) Find(name string) (Symbol, bool) {
	for i := len(st.scopes) - 1; i >= 0; i-- {
		if sym, ok := st.scopes[i].store[name]; ok {
			return sym, true
		}
	}
	return Symbol{}, false
}

// IsDefinedLocally reports whether name is bound in the innermost scope.
func (st *SymbolTable) IsDefinedLocally(name string) bool {
	_, ok := st.scopes[len(st.scopes)-1].store[name]
	return ok
}

// CurrentScope returns the type of the innermost scope.
func (st *SymbolTable) CurrentScope() ScopeType {
	return st.scopes[len(st.scopes)-1].typ
}
