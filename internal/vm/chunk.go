package vm

import (
	"github.com/funvibe/watc/internal/typesystem"
)

// Instr is one resolved instruction.
type Instr struct {
	Op  Opcode
	I   int32   // i32.const value, local index or function index
	F   float32 // f32.const value
	Pc  int     // jump target
	Sp  int     // operand stack height (relative to the frame) at the target
	Ret int     // values carried across the jump
	// Line is the source line from the nearest `;; line N` comment.
	Line int
}

// Function is a loaded WAT function.
type Function struct {
	Name   string
	Params []typesystem.Kind
	Result typesystem.Kind
	// Locals lists the kinds of all locals, parameters first.
	Locals []typesystem.Kind
	Code   []Instr
	Line   int
}

// Module is a loaded WAT module ready to run.
type Module struct {
	Functions []*Function
	Exports   map[string]int
	byName    map[string]int
}

// Export returns the exported function name, or nil.
func (m *Module) Export(name string) *Function {
	if i, ok := m.Exports[name]; ok {
		return m.Functions[i]
	}
	return nil
}
