// Package backend turns a typed, optimized program into target text.
package backend

import (
	"github.com/funvibe/watc/internal/ast"
)

// Backend is the interface for code generators.
type Backend interface {
	// Generate renders the whole program. It expects every expression to
	// carry a resolved kind.
	Generate(program *ast.Program) (string, error)

	// Name returns the backend name for display
	Name() string
}
