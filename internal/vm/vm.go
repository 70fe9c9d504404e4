package vm

import (
	"context"
	"fmt"
	"math"

	"github.com/funvibe/watc/internal/config"
)

// Trap is a runtime failure inside WAT code.
type Trap struct {
	Func    string
	Line    int // source line, 0 if unknown
	Message string
}

func (t *Trap) Error() string {
	if t.Line > 0 {
		return fmt.Sprintf("trap in %s at line %d: %s", t.Func, t.Line, t.Message)
	}
	return fmt.Sprintf("trap in %s: %s", t.Func, t.Message)
}

// checkEvery is how many instructions run between context checks.
const checkEvery = 4096

// CallFrame represents a single ongoing function call
type CallFrame struct {
	fn     *Function
	pc     int
	locals []Value
	base   int // operand stack height when the frame started
}

// VM runs functions of one loaded module.
type VM struct {
	mod    *Module
	stack  []Value
	frames []CallFrame
	// MaxCallDepth bounds the number of live frames; return_call reuses
	// the caller's frame and does not count.
	MaxCallDepth int
	// Steps counts executed instructions.
	Steps int64
}

func New(mod *Module) *VM {
	return &VM{mod: mod, MaxCallDepth: config.MaxCallDepth}
}

// Run loads text and invokes the exported function entry.
func Run(ctx context.Context, text, entry string, args ...Value) (Value, error) {
	mod, err := Load(text)
	if err != nil {
		return Value{}, err
	}
	return New(mod).Invoke(ctx, entry, args...)
}

// Invoke calls the exported function name with args.
func (vm *VM) Invoke(ctx context.Context, name string, args ...Value) (Value, error) {
	idx, ok := vm.mod.Exports[name]
	if !ok {
		return Value{}, fmt.Errorf("no exported function %q", name)
	}
	fn := vm.mod.Functions[idx]
	if len(args) != len(fn.Params) {
		return Value{}, fmt.Errorf("%s expects %d arguments, got %d", name, len(fn.Params), len(args))
	}
	for i, a := range args {
		if a.Kind != fn.Params[i] {
			return Value{}, fmt.Errorf("%s argument %d: want %s, got %s", name, i+1, fn.Params[i], a.Kind)
		}
	}

	vm.stack = vm.stack[:0]
	vm.frames = vm.frames[:0]
	vm.stack = append(vm.stack, args...)
	if err := vm.call(fn); err != nil {
		return Value{}, err
	}
	return vm.run(ctx)
}

func (vm *VM) push(v Value) { vm.stack = append(vm.stack, v) }

func (vm *VM) pop() Value {
	v := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return v
}

func (vm *VM) trap(format string, args ...any) *Trap {
	t := &Trap{Message: fmt.Sprintf(format, args...)}
	if n := len(vm.frames); n > 0 {
		f := &vm.frames[n-1]
		t.Func = f.fn.Name
		if f.pc > 0 && f.pc <= len(f.fn.Code) {
			t.Line = f.fn.Code[f.pc-1].Line
		}
	}
	return t
}

// newLocals moves the arguments of fn off the stack into a fresh local set.
func (vm *VM) newLocals(fn *Function) []Value {
	locals := make([]Value, len(fn.Locals))
	n := len(fn.Params)
	copy(locals, vm.stack[len(vm.stack)-n:])
	vm.stack = vm.stack[:len(vm.stack)-n]
	for i := n; i < len(locals); i++ {
		locals[i] = Zero(fn.Locals[i])
	}
	return locals
}

func (vm *VM) call(fn *Function) error {
	if len(vm.frames) >= vm.MaxCallDepth {
		return vm.trap("call stack exhausted (%d frames)", vm.MaxCallDepth)
	}
	locals := vm.newLocals(fn)
	vm.frames = append(vm.frames, CallFrame{fn: fn, locals: locals, base: len(vm.stack)})
	return nil
}

// tailCall replaces the current frame with a call to fn.
func (vm *VM) tailCall(fn *Function) {
	locals := vm.newLocals(fn)
	f := &vm.frames[len(vm.frames)-1]
	vm.stack = vm.stack[:f.base]
	*f = CallFrame{fn: fn, locals: locals, base: f.base}
}

// jump branches within the current frame, keeping ins.Ret results.
func (vm *VM) jump(f *CallFrame, ins *Instr) {
	keep := ins.Ret
	dst := f.base + ins.Sp
	if keep > 0 {
		copy(vm.stack[dst:], vm.stack[len(vm.stack)-keep:])
	}
	vm.stack = vm.stack[:dst+keep]
	f.pc = ins.Pc
}

func (vm *VM) run(ctx context.Context) (Value, error) {
	for {
		f := &vm.frames[len(vm.frames)-1]
		ins := &f.fn.Code[f.pc]
		f.pc++

		vm.Steps++
		if vm.Steps%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return Value{}, fmt.Errorf("execution interrupted in %s: %w", f.fn.Name, err)
			}
		}

		switch ins.Op {
		case OP_I32_CONST:
			vm.push(I32(ins.I))
		case OP_F32_CONST:
			vm.push(F32(ins.F))
		case OP_LOCAL_GET:
			vm.push(f.locals[ins.I])
		case OP_LOCAL_SET:
			f.locals[ins.I] = vm.pop()
		case OP_LOCAL_TEE:
			f.locals[ins.I] = vm.stack[len(vm.stack)-1]
		case OP_DROP:
			vm.pop()

		case OP_I32_EQZ:
			vm.push(boolVal(vm.pop().I == 0))
		case OP_F32_NEG:
			vm.push(F32(-vm.pop().F))
		case OP_F32_CONVERT_I32_S:
			vm.push(F32(float32(vm.pop().I)))

		case OP_I32_ADD, OP_I32_SUB, OP_I32_MUL, OP_I32_DIV_S, OP_I32_REM_S,
			OP_I32_EQ, OP_I32_NE, OP_I32_LT_S, OP_I32_GT_S, OP_I32_LE_S, OP_I32_GE_S:
			r, l := vm.pop().I, vm.pop().I
			v, err := vm.i32Op(ins.Op, l, r)
			if err != nil {
				return Value{}, err
			}
			vm.push(v)

		case OP_F32_ADD, OP_F32_SUB, OP_F32_MUL, OP_F32_DIV,
			OP_F32_EQ, OP_F32_NE, OP_F32_LT, OP_F32_GT, OP_F32_LE, OP_F32_GE:
			r, l := vm.pop().F, vm.pop().F
			vm.push(f32Op(ins.Op, l, r))

		case OP_JUMP:
			vm.jump(f, ins)
		case OP_JUMP_IF:
			if vm.pop().I != 0 {
				vm.jump(f, ins)
			}
		case OP_JUMP_IF_FALSE:
			if vm.pop().I == 0 {
				f.pc = ins.Pc
			}

		case OP_CALL:
			if err := vm.call(vm.mod.Functions[ins.I]); err != nil {
				return Value{}, err
			}
		case OP_RETURN_CALL:
			vm.tailCall(vm.mod.Functions[ins.I])

		case OP_RETURN:
			var result Value
			hasResult := f.fn.Result.IsValid()
			if hasResult {
				result = vm.pop()
			}
			vm.stack = vm.stack[:f.base]
			vm.frames = vm.frames[:len(vm.frames)-1]
			if len(vm.frames) == 0 {
				return result, nil
			}
			if hasResult {
				vm.push(result)
			}

		default:
			return Value{}, vm.trap("unknown opcode %d", ins.Op)
		}
	}
}

func (vm *VM) i32Op(op Opcode, l, r int32) (Value, error) {
	switch op {
	case OP_I32_ADD:
		return I32(l + r), nil
	case OP_I32_SUB:
		return I32(l - r), nil
	case OP_I32_MUL:
		return I32(l * r), nil
	case OP_I32_DIV_S:
		if r == 0 {
			return Value{}, vm.trap("integer divide by zero")
		}
		if l == math.MinInt32 && r == -1 {
			return Value{}, vm.trap("integer overflow")
		}
		return I32(l / r), nil
	case OP_I32_REM_S:
		if r == 0 {
			return Value{}, vm.trap("integer divide by zero")
		}
		if r == -1 {
			return I32(0), nil
		}
		return I32(l % r), nil
	case OP_I32_EQ:
		return boolVal(l == r), nil
	case OP_I32_NE:
		return boolVal(l != r), nil
	case OP_I32_LT_S:
		return boolVal(l < r), nil
	case OP_I32_GT_S:
		return boolVal(l > r), nil
	case OP_I32_LE_S:
		return boolVal(l <= r), nil
	case OP_I32_GE_S:
		return boolVal(l >= r), nil
	}
	return Value{}, vm.trap("unknown i32 opcode %d", op)
}

func f32Op(op Opcode, l, r float32) Value {
	switch op {
	case OP_F32_ADD:
		return F32(float32(l + r))
	case OP_F32_SUB:
		return F32(float32(l - r))
	case OP_F32_MUL:
		return F32(float32(l * r))
	case OP_F32_DIV:
		return F32(float32(l / r))
	case OP_F32_EQ:
		return boolVal(l == r)
	case OP_F32_NE:
		return boolVal(l != r)
	case OP_F32_LT:
		return boolVal(l < r)
	case OP_F32_GT:
		return boolVal(l > r)
	case OP_F32_LE:
		return boolVal(l <= r)
	}
	return boolVal(l >= r)
}
