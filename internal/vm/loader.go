package vm

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/funvibe/watc/internal/typesystem"
)

// Load parses WAT text and resolves its structured control flow into jumps.
func Load(text string) (*Module, error) {
	mod, err := parseModule(text)
	if err != nil {
		return nil, err
	}

	m := &Module{Exports: make(map[string]int), byName: make(map[string]int)}
	var bodies [][]*sexpr
	var names [][]string
	for _, field := range mod.list[1:] {
		if field.head() != "func" {
			return nil, fmt.Errorf("wat line %d: unsupported module field %s", field.line, field.head())
		}
		fn, body, locals, err := m.declare(field)
		if err != nil {
			return nil, err
		}
		m.Functions = append(m.Functions, fn)
		bodies = append(bodies, body)
		names = append(names, locals)
	}

	for i, fn := range m.Functions {
		c := &loader{m: m, fn: fn, locals: make(map[string]int)}
		for j, name := range names[i] {
			if name != "" {
				c.locals[name] = j
			}
		}
		if err := c.load(bodies[i]); err != nil {
			return nil, fmt.Errorf("func %s: %w", fn.Name, err)
		}
	}
	return m, nil
}

func parseKind(s *sexpr) (typesystem.Kind, error) {
	switch s.atom {
	case "i32":
		return typesystem.KindI32, nil
	case "f32":
		return typesystem.KindF32, nil
	}
	return typesystem.KindInvalid, fmt.Errorf("wat line %d: unsupported value type %s", s.line, s)
}

// declare reads a func header: name, exports, params, result and locals.
// It returns the remaining items, which are the instructions.
func (m *Module) declare(field *sexpr) (*Function, []*sexpr, []string, error) {
	fn := &Function{Line: field.src}
	var localNames []string
	items := field.list[1:]

	if len(items) > 0 && !items[0].isList && strings.HasPrefix(items[0].atom, "$") {
		fn.Name = items[0].atom
		items = items[1:]
	}
	idx := len(m.Functions)
	if fn.Name != "" {
		if _, dup := m.byName[fn.Name]; dup {
			return nil, nil, nil, fmt.Errorf("wat line %d: duplicate function %s", field.line, fn.Name)
		}
		m.byName[fn.Name] = idx
	}

	for len(items) > 0 && items[0].isList {
		item := items[0]
		switch item.head() {
		case "export":
			if len(item.list) != 2 || !item.list[1].str {
				return nil, nil, nil, fmt.Errorf("wat line %d: malformed export", item.line)
			}
			m.Exports[item.list[1].atom] = idx
		case "param", "local":
			decl := item.list[1:]
			named := len(decl) == 2 && strings.HasPrefix(decl[0].atom, "$")
			if named {
				decl = decl[1:]
			}
			for _, t := range decl {
				k, err := parseKind(t)
				if err != nil {
					return nil, nil, nil, err
				}
				if item.head() == "param" {
					if len(fn.Locals) != len(fn.Params) {
						return nil, nil, nil, fmt.Errorf("wat line %d: param after local", item.line)
					}
					fn.Params = append(fn.Params, k)
				}
				fn.Locals = append(fn.Locals, k)
				name := ""
				if named {
					name = item.list[1].atom
				}
				localNames = append(localNames, name)
			}
		case "result":
			if len(item.list) != 2 {
				return nil, nil, nil, fmt.Errorf("wat line %d: exactly one result is supported", item.line)
			}
			k, err := parseKind(item.list[1])
			if err != nil {
				return nil, nil, nil, err
			}
			fn.Result = k
		default:
			return nil, nil, nil, fmt.Errorf("wat line %d: unexpected %s in function header", item.line, item.head())
		}
		items = items[1:]
	}
	if fn.Name == "" {
		fn.Name = "$" + strconv.Itoa(idx)
	}
	return fn, items, localNames, nil
}

// control is an open structured block while loading.
type control struct {
	kind        string // func, block, loop or if
	label       string
	start       int             // loop target
	height      int             // operand height on entry
	arity       int             // results left on exit
	result      typesystem.Kind // KindInvalid when the block has no result
	exits       []int           // jumps to patch with the end position
	elseJump    int             // if: the jump skipping the consequence, -1 once patched
	unreachable bool
}

// loader validates a function body against the kinds it declares while
// lowering it. stack holds the kind of every operand; below the current
// block's height in unreachable code, values are unknown (KindInvalid) and
// match anything.
type loader struct {
	m        *Module
	fn       *Function
	locals   map[string]int
	controls []*control
	stack    []typesystem.Kind
}

func (c *loader) top() *control { return c.controls[len(c.controls)-1] }

func (c *loader) emit(ins Instr) int {
	c.fn.Code = append(c.fn.Code, ins)
	return len(c.fn.Code) - 1
}

func (c *loader) push(k typesystem.Kind) { c.stack = append(c.stack, k) }

// pop removes one operand and checks it against want. KindInvalid as want
// accepts any kind.
func (c *loader) pop(want typesystem.Kind, at *sexpr) (typesystem.Kind, error) {
	top := c.top()
	if len(c.stack) == top.height {
		if top.unreachable {
			return want, nil
		}
		return 0, fmt.Errorf("wat line %d: operand stack underflow at %s", at.line, at)
	}
	got := c.stack[len(c.stack)-1]
	c.stack = c.stack[:len(c.stack)-1]
	if want.IsValid() && got.IsValid() && got != want {
		return 0, fmt.Errorf("wat line %d: %s expects %s, got %s", at.line, at, want, got)
	}
	return got, nil
}

// popArgs checks a call's arguments, last one on top.
func (c *loader) popArgs(params []typesystem.Kind, at *sexpr) error {
	for i := len(params) - 1; i >= 0; i-- {
		if _, err := c.pop(params[i], at); err != nil {
			return err
		}
	}
	return nil
}

// unreachable marks the rest of the current block as dead code.
func (c *loader) unreachable() {
	top := c.top()
	top.unreachable = true
	c.stack = c.stack[:top.height]
}

// checkExit verifies that the operands above ctl's entry height are
// exactly its result.
func (c *loader) checkExit(ctl *control, at *sexpr) error {
	n := len(c.stack) - ctl.height
	if !ctl.unreachable && n != ctl.arity {
		return fmt.Errorf("wat line %d: %s leaves %d values, want %d", at.line, ctl.kind, n, ctl.arity)
	}
	if ctl.arity > 0 && n > 0 {
		if got := c.stack[len(c.stack)-1]; got != ctl.result {
			return fmt.Errorf("wat line %d: %s yields %s, want %s", at.line, ctl.kind, got, ctl.result)
		}
	}
	return nil
}

// checkBranch verifies the value carried to a block's exit is on the stack.
func (c *loader) checkBranch(ctl *control, at *sexpr) error {
	if ctl.kind == "loop" || ctl.arity == 0 {
		return nil
	}
	k, err := c.pop(ctl.result, at)
	if err != nil {
		return err
	}
	c.push(k)
	return nil
}

func (c *loader) load(items []*sexpr) error {
	arity := 0
	if c.fn.Result.IsValid() {
		arity = 1
	}
	c.controls = []*control{{kind: "func", arity: arity, result: c.fn.Result, elseJump: -1}}

	for i := 0; i < len(items); i++ {
		item := items[i]
		if item.isList {
			return fmt.Errorf("wat line %d: folded instructions are not supported: %s", item.line, item)
		}
		// operand returns the next item as an immediate.
		operand := func() (*sexpr, error) {
			if i+1 >= len(items) || items[i+1].isList {
				return nil, fmt.Errorf("wat line %d: %s needs an operand", item.line, item.atom)
			}
			i++
			return items[i], nil
		}

		switch item.atom {
		case "block", "loop", "if":
			ctl := &control{kind: item.atom, elseJump: -1}
			if i+1 < len(items) && strings.HasPrefix(items[i+1].atom, "$") && !items[i+1].isList {
				i++
				ctl.label = items[i].atom
			}
			if i+1 < len(items) && items[i+1].head() == "result" {
				i++
				if len(items[i].list) != 2 {
					return fmt.Errorf("wat line %d: exactly one block result is supported", items[i].line)
				}
				k, err := parseKind(items[i].list[1])
				if err != nil {
					return err
				}
				ctl.arity = 1
				ctl.result = k
			}
			if item.atom == "if" {
				if _, err := c.pop(typesystem.KindI32, item); err != nil {
					return err
				}
				ctl.elseJump = c.emit(Instr{Op: OP_JUMP_IF_FALSE, Line: item.src})
			}
			ctl.start = len(c.fn.Code)
			ctl.height = len(c.stack)
			c.controls = append(c.controls, ctl)

		case "else":
			ctl := c.top()
			if ctl.kind != "if" || ctl.elseJump < 0 {
				return fmt.Errorf("wat line %d: else without if", item.line)
			}
			if err := c.checkExit(ctl, item); err != nil {
				return err
			}
			ctl.exits = append(ctl.exits, c.emit(Instr{Op: OP_JUMP, Sp: ctl.height, Ret: ctl.arity, Line: item.src}))
			c.fn.Code[ctl.elseJump].Pc = len(c.fn.Code)
			c.fn.Code[ctl.elseJump].Sp = ctl.height
			ctl.elseJump = -1
			c.stack = c.stack[:ctl.height]
			ctl.unreachable = false

		case "end":
			if len(c.controls) == 1 {
				return fmt.Errorf("wat line %d: unbalanced end", item.line)
			}
			if err := c.end(item); err != nil {
				return err
			}

		case "br", "br_if":
			target, err := operand()
			if err != nil {
				return err
			}
			ctl, err := c.resolveLabel(target)
			if err != nil {
				return err
			}
			op := OP_JUMP
			if item.atom == "br_if" {
				op = OP_JUMP_IF
				if _, err := c.pop(typesystem.KindI32, item); err != nil {
					return err
				}
			}
			if err := c.checkBranch(ctl, item); err != nil {
				return err
			}
			ins := Instr{Op: op, Sp: ctl.height, Line: item.src}
			if ctl.kind == "loop" {
				ins.Pc = ctl.start
			} else {
				ins.Ret = ctl.arity
			}
			at := c.emit(ins)
			if ctl.kind != "loop" {
				ctl.exits = append(ctl.exits, at)
			}
			if op == OP_JUMP {
				c.unreachable()
			}

		case "call", "return_call":
			target, err := operand()
			if err != nil {
				return err
			}
			idx, ok := c.m.byName[target.atom]
			if !ok {
				return fmt.Errorf("wat line %d: unknown function %s", target.line, target.atom)
			}
			callee := c.m.Functions[idx]
			op := OpcodeNames[item.atom]
			if err := c.popArgs(callee.Params, item); err != nil {
				return err
			}
			c.emit(Instr{Op: op, I: int32(idx), Line: item.src})
			if op == OP_RETURN_CALL {
				if callee.Result != c.fn.Result {
					return fmt.Errorf("wat line %d: return_call %s result %s does not match %s",
						item.line, target.atom, callee.Result, c.fn.Result)
				}
				c.unreachable()
			} else if callee.Result.IsValid() {
				c.push(callee.Result)
			}

		case "return":
			if c.fn.Result.IsValid() {
				if _, err := c.pop(c.fn.Result, item); err != nil {
					return err
				}
			}
			c.emit(Instr{Op: OP_RETURN, Line: item.src})
			c.unreachable()

		case "local.get", "local.set", "local.tee":
			target, err := operand()
			if err != nil {
				return err
			}
			idx, err := c.local(target)
			if err != nil {
				return err
			}
			op := OpcodeNames[item.atom]
			kind := c.fn.Locals[idx]
			if op != OP_LOCAL_GET {
				if _, err := c.pop(kind, item); err != nil {
					return err
				}
			}
			if op != OP_LOCAL_SET {
				c.push(kind)
			}
			c.emit(Instr{Op: op, I: int32(idx), Line: item.src})

		case "i32.const":
			lit, err := operand()
			if err != nil {
				return err
			}
			v, err := strconv.ParseInt(strings.ReplaceAll(lit.atom, "_", ""), 0, 64)
			if err != nil || v < math.MinInt32 || v > math.MaxUint32 {
				return fmt.Errorf("wat line %d: bad i32 constant %s", lit.line, lit.atom)
			}
			c.emit(Instr{Op: OP_I32_CONST, I: int32(uint32(v)), Line: item.src})
			c.push(typesystem.KindI32)

		case "f32.const":
			lit, err := operand()
			if err != nil {
				return err
			}
			v, err := strconv.ParseFloat(strings.ReplaceAll(lit.atom, "_", ""), 32)
			if err != nil {
				return fmt.Errorf("wat line %d: bad f32 constant %s", lit.line, lit.atom)
			}
			c.emit(Instr{Op: OP_F32_CONST, F: float32(v), Line: item.src})
			c.push(typesystem.KindF32)

		default:
			op, ok := OpcodeNames[item.atom]
			if !ok {
				return fmt.Errorf("wat line %d: unsupported instruction %s", item.line, item.atom)
			}
			if err := c.apply(op, item); err != nil {
				return err
			}
			c.emit(Instr{Op: op, Line: item.src})
		}
	}

	if len(c.controls) != 1 {
		return fmt.Errorf("missing end for %s %s", c.top().kind, c.top().label)
	}
	return c.finish()
}

// apply checks and tracks the operand kinds of a simple opcode.
func (c *loader) apply(op Opcode, at *sexpr) error {
	in, out := operands(op)
	for i := len(in) - 1; i >= 0; i-- {
		if _, err := c.pop(in[i], at); err != nil {
			return err
		}
	}
	if out.IsValid() {
		c.push(out)
	}
	return nil
}

// end closes the innermost block and patches every jump to its exit.
func (c *loader) end(item *sexpr) error {
	ctl := c.top()
	if err := c.checkExit(ctl, item); err != nil {
		return err
	}
	if ctl.kind == "if" && ctl.elseJump >= 0 {
		if ctl.arity > 0 {
			return fmt.Errorf("wat line %d: if with a result needs an else", item.line)
		}
		c.fn.Code[ctl.elseJump].Pc = len(c.fn.Code)
		c.fn.Code[ctl.elseJump].Sp = ctl.height
	}
	for _, at := range ctl.exits {
		c.fn.Code[at].Pc = len(c.fn.Code)
	}
	c.controls = c.controls[:len(c.controls)-1]
	c.stack = c.stack[:ctl.height]
	if ctl.arity > 0 {
		c.push(ctl.result)
	}
	return nil
}

// finish closes the function body with an implicit return.
func (c *loader) finish() error {
	ctl := c.top()
	if n := len(c.stack); !ctl.unreachable && n != ctl.arity {
		return fmt.Errorf("function body leaves %d values, want %d", n, ctl.arity)
	}
	if ctl.arity > 0 && len(c.stack) > 0 {
		if got := c.stack[len(c.stack)-1]; got != ctl.result {
			return fmt.Errorf("function body yields %s, want %s", got, ctl.result)
		}
	}
	line := 0
	if n := len(c.fn.Code); n > 0 {
		line = c.fn.Code[n-1].Line
	}
	c.emit(Instr{Op: OP_RETURN, Line: line})
	return nil
}

func (c *loader) resolveLabel(target *sexpr) (*control, error) {
	if n, err := strconv.Atoi(target.atom); err == nil {
		if n < 0 || n >= len(c.controls)-1 {
			return nil, fmt.Errorf("wat line %d: branch depth %d out of range", target.line, n)
		}
		return c.controls[len(c.controls)-1-n], nil
	}
	for i := len(c.controls) - 1; i > 0; i-- {
		if c.controls[i].label == target.atom {
			return c.controls[i], nil
		}
	}
	return nil, fmt.Errorf("wat line %d: unknown label %s", target.line, target.atom)
}

func (c *loader) local(target *sexpr) (int, error) {
	if idx, ok := c.locals[target.atom]; ok {
		return idx, nil
	}
	if n, err := strconv.Atoi(target.atom); err == nil && n >= 0 && n < len(c.fn.Locals) {
		return n, nil
	}
	return 0, fmt.Errorf("wat line %d: unknown local %s", target.line, target.atom)
}
