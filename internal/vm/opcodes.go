// Package vm executes the WebAssembly text subset the compiler emits. It is
// a reference interpreter for tests and `watc run`, not a general wasm
// engine: structured control flow, locals, i32/f32 arithmetic and calls.
package vm

import "github.com/funvibe/watc/internal/typesystem"

// Opcode represents a single VM instruction
type Opcode byte

const (
	// Constants and locals
	OP_I32_CONST Opcode = iota
	OP_F32_CONST
	OP_LOCAL_GET
	OP_LOCAL_SET
	OP_LOCAL_TEE
	OP_DROP

	// i32 arithmetic and comparison
	OP_I32_ADD
	OP_I32_SUB
	OP_I32_MUL
	OP_I32_DIV_S
	OP_I32_REM_S
	OP_I32_EQ
	OP_I32_NE
	OP_I32_LT_S
	OP_I32_GT_S
	OP_I32_LE_S
	OP_I32_GE_S
	OP_I32_EQZ

	// f32 arithmetic and comparison
	OP_F32_ADD
	OP_F32_SUB
	OP_F32_MUL
	OP_F32_DIV
	OP_F32_NEG
	OP_F32_EQ
	OP_F32_NE
	OP_F32_LT
	OP_F32_GT
	OP_F32_LE
	OP_F32_GE
	OP_F32_CONVERT_I32_S

	// Control flow. Structured blocks are resolved to jumps at load time.
	OP_JUMP          // br to a resolved target
	OP_JUMP_IF       // br_if
	OP_JUMP_IF_FALSE // if: skip to else/end when the condition is zero
	OP_CALL
	OP_RETURN_CALL
	OP_RETURN
)

// OpcodeNames maps each WAT mnemonic the loader accepts to its opcode.
// Structured instructions (block, loop, if, else, end, br, br_if) are
// handled by the loader itself.
var OpcodeNames = map[string]Opcode{
	"i32.const":         OP_I32_CONST,
	"f32.const":         OP_F32_CONST,
	"local.get":         OP_LOCAL_GET,
	"local.set":         OP_LOCAL_SET,
	"local.tee":         OP_LOCAL_TEE,
	"drop":              OP_DROP,
	"i32.add":           OP_I32_ADD,
	"i32.sub":           OP_I32_SUB,
	"i32.mul":           OP_I32_MUL,
	"i32.div_s":         OP_I32_DIV_S,
	"i32.rem_s":         OP_I32_REM_S,
	"i32.eq":            OP_I32_EQ,
	"i32.ne":            OP_I32_NE,
	"i32.lt_s":          OP_I32_LT_S,
	"i32.gt_s":          OP_I32_GT_S,
	"i32.le_s":          OP_I32_LE_S,
	"i32.ge_s":          OP_I32_GE_S,
	"i32.eqz":           OP_I32_EQZ,
	"f32.add":           OP_F32_ADD,
	"f32.sub":           OP_F32_SUB,
	"f32.mul":           OP_F32_MUL,
	"f32.div":           OP_F32_DIV,
	"f32.neg":           OP_F32_NEG,
	"f32.eq":            OP_F32_EQ,
	"f32.ne":            OP_F32_NE,
	"f32.lt":            OP_F32_LT,
	"f32.gt":            OP_F32_GT,
	"f32.le":            OP_F32_LE,
	"f32.ge":            OP_F32_GE,
	"f32.convert_i32_s": OP_F32_CONVERT_I32_S,
	"call":              OP_CALL,
	"return_call":       OP_RETURN_CALL,
	"return":            OP_RETURN,
}

// operands returns the kinds a simple opcode pops, in stack order, and the
// kind it pushes (KindInvalid for none). Locals, constants and control flow
// are typed by the loader itself.
func operands(op Opcode) (in []typesystem.Kind, out typesystem.Kind) {
	i32, f32 := typesystem.KindI32, typesystem.KindF32
	switch op {
	case OP_DROP:
		return []typesystem.Kind{typesystem.KindInvalid}, typesystem.KindInvalid
	case OP_I32_EQZ:
		return []typesystem.Kind{i32}, i32
	case OP_F32_NEG:
		return []typesystem.Kind{f32}, f32
	case OP_F32_CONVERT_I32_S:
		return []typesystem.Kind{i32}, f32
	case OP_I32_ADD, OP_I32_SUB, OP_I32_MUL, OP_I32_DIV_S, OP_I32_REM_S,
		OP_I32_EQ, OP_I32_NE, OP_I32_LT_S, OP_I32_GT_S, OP_I32_LE_S, OP_I32_GE_S:
		return []typesystem.Kind{i32, i32}, i32
	case OP_F32_ADD, OP_F32_SUB, OP_F32_MUL, OP_F32_DIV:
		return []typesystem.Kind{f32, f32}, f32
	case OP_F32_EQ, OP_F32_NE, OP_F32_LT, OP_F32_GT, OP_F32_LE, OP_F32_GE:
		return []typesystem.Kind{f32, f32}, i32
	}
	return nil, typesystem.KindInvalid
}
