package vm

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/funvibe/watc/internal/typesystem"
)

func runWAT(t *testing.T, text string, entry string, args ...Value) Value {
	t.Helper()
	v, err := Run(context.Background(), text, entry, args...)
	if err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, text)
	}
	return v
}

func expectTrap(t *testing.T, text, entry, substr string, args ...Value) *Trap {
	t.Helper()
	_, err := Run(context.Background(), text, entry, args...)
	var trap *Trap
	if !errors.As(err, &trap) {
		t.Fatalf("expected trap containing %q, got %v", substr, err)
	}
	if !strings.Contains(trap.Message, substr) {
		t.Errorf("trap %q does not contain %q", trap.Message, substr)
	}
	return trap
}

const factorial = `(module
  (func $fact (export "fact") (param $n i32) (result i32)
    local.get $n
    i32.const 1
    i32.le_s
    if (result i32)
      i32.const 1
    else
      local.get $n
      local.get $n
      i32.const 1
      i32.sub
      call $fact
      i32.mul
    end
  )
)`

func TestRecursiveCall(t *testing.T) {
	if got := runWAT(t, factorial, "fact", I32(6)); got != I32(720) {
		t.Errorf("fact(6) = %v, want 720", got)
	}
}

func TestLoopsAndBranches(t *testing.T) {
	// Sums 0..9 skipping 5, stopping early at 8.
	text := `(module
  (func $sum (export "sum") (result i32)
    (local $i i32) (local $s i32)
    block $break_0
      loop $loop_0
        local.get $i
        i32.const 10
        i32.lt_s
        i32.eqz
        br_if $break_0
        block $continue_0
          local.get $i
          i32.const 5
          i32.eq
          if
            br $continue_0
          end
          local.get $i
          i32.const 8
          i32.eq
          if
            br $break_0
          end
          local.get $s
          local.get $i
          i32.add
          local.set $s
        end
        local.get $i
        i32.const 1
        i32.add
        local.set $i
        br $loop_0
      end
    end
    local.get $s
  )
)`
	if got := runWAT(t, text, "sum"); got != I32(0+1+2+3+4+6+7) {
		t.Errorf("sum = %v", got)
	}
}

func TestF32Arithmetic(t *testing.T) {
	text := `(module
  (func $f (export "f") (param $x i32) (result f32)
    local.get $x
    f32.convert_i32_s
    f32.const 0.5
    f32.mul
    f32.neg
  )
  (func $inf (export "inf") (result f32)
    f32.const 1.0
    f32.const 0.0
    f32.div
  )
)`
	if got := runWAT(t, text, "f", I32(3)); got != F32(-1.5) {
		t.Errorf("f(3) = %v, want -1.5", got)
	}
	if got := runWAT(t, text, "inf"); !math.IsInf(float64(got.F), 1) {
		t.Errorf("inf = %v", got)
	}
}

func TestShortCircuitWithScratchLocal(t *testing.T) {
	text := `(module
  (func $or (export "or") (param $a i32) (param $b f32) (result f32)
    (local $.tmp_f32 f32)
    local.get $a
    f32.convert_i32_s
    local.tee $.tmp_f32
    f32.const 0.0
    f32.ne
    if (result f32)
      local.get $.tmp_f32
    else
      local.get $b
    end
  )
)`
	if got := runWAT(t, text, "or", I32(0), F32(2.5)); got != F32(2.5) {
		t.Errorf("0 || 2.5 = %v", got)
	}
	if got := runWAT(t, text, "or", I32(4), F32(2.5)); got != F32(4) {
		t.Errorf("4 || 2.5 = %v", got)
	}
}

func TestTailCallsDoNotGrowTheStack(t *testing.T) {
	text := `(module
  (func $count (export "count") (param $n i32) (param $acc i32) (result i32)
    local.get $n
    i32.eqz
    if
      local.get $acc
      return
    end
    local.get $n
    i32.const 1
    i32.sub
    local.get $acc
    i32.const 1
    i32.add
    return_call $count
  )
)`
	if got := runWAT(t, text, "count", I32(1000000), I32(0)); got != I32(1000000) {
		t.Errorf("count = %v", got)
	}

	deep := strings.Replace(text, "return_call $count", "call $count\n    return", 1)
	expectTrap(t, deep, "count", "call stack exhausted", I32(1000000), I32(0))
}

func TestIntegerTraps(t *testing.T) {
	div := `(module
  (func $div (export "div") (param $a i32) (param $b i32) (result i32)
    ;; line 7
    local.get $a
    local.get $b
    i32.div_s
  )
  (func $rem (export "rem") (param $a i32) (param $b i32) (result i32)
    local.get $a
    local.get $b
    i32.rem_s
  )
)`
	trap := expectTrap(t, div, "div", "integer divide by zero", I32(1), I32(0))
	if trap.Line != 7 || trap.Func != "$div" {
		t.Errorf("trap position = %s line %d, want $div line 7", trap.Func, trap.Line)
	}
	expectTrap(t, div, "div", "integer overflow", I32(math.MinInt32), I32(-1))
	expectTrap(t, div, "rem", "integer divide by zero", I32(1), I32(0))
	if got := runWAT(t, div, "rem", I32(math.MinInt32), I32(-1)); got != I32(0) {
		t.Errorf("MinInt32 %% -1 = %v, want 0", got)
	}
	if got := runWAT(t, div, "div", I32(-7), I32(2)); got != I32(-3) {
		t.Errorf("-7 / 2 = %v, want -3", got)
	}
}

func TestContextCancellation(t *testing.T) {
	text := `(module
  (func $spin (export "spin") (result i32)
    loop $l
      br $l
    end
    i32.const 0
  )
)`
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := Run(ctx, text, "spin")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		text     string
		expected string
	}{
		{`(func)`, "expected (module"},
		{`(module (func $f (result i32) i32.add))`, "underflow"},
		{`(module (func $f (result i32) i32.const 1 i32.const 2))`, "leaves 2 values"},
		{`(module (func $f (result i32) block $b i32.const 1))`, "missing end"},
		{`(module (func $f (result i32) br $nowhere))`, "unknown label"},
		{`(module (func $f (result i32) call $g))`, "unknown function"},
		{`(module (func $f (result i32) local.get $x))`, "unknown local"},
		{`(module (func $f (result i32) i64.const 1))`, "unsupported instruction"},
		{`(module (func $f (result i32) i32.const 1)`, "unclosed"},
		{`(module (memory 1))`, "unsupported module field"},
	}

	for _, tt := range tests {
		_, err := Load(tt.text)
		if err == nil {
			t.Errorf("Load(%q): expected error containing %q", tt.text, tt.expected)
			continue
		}
		if !strings.Contains(err.Error(), tt.expected) {
			t.Errorf("Load(%q) = %q, want it to contain %q", tt.text, err, tt.expected)
		}
	}
}

func TestLoadRejectsIllTypedModules(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected string
	}{
		{"mixed operands", `(func $f (result i32) f32.const 1.5 i32.const 2 i32.add)`, "i32.add expects i32, got f32"},
		{"missing conversion", `(func $f (result f32) i32.const 1 f32.const 2 f32.add)`, "f32.add expects f32, got i32"},
		{"f32 into i32 local", `(func $f (result i32) (local $x i32) f32.const 1 local.set $x local.get $x)`, "local.set expects i32, got f32"},
		{"tee keeps the local kind", `(func $f (result f32) (local $x i32) i32.const 1 local.tee $x)`, "function body yields i32, want f32"},
		{"wrong function result", `(func $f (result i32) f32.const 1)`, "function body yields f32, want i32"},
		{"wrong return value", `(func $f (result i32) f32.const 1 return)`, "return expects i32, got f32"},
		{"f32 condition", `(func $f (result i32) f32.const 1 if end i32.const 0)`, "if expects i32, got f32"},
		{"wrong block result", `(func $f (result i32) block (result i32) f32.const 1 end drop i32.const 0)`, "block yields f32, want i32"},
		{"wrong then result", `(func $f (result i32) i32.const 1 if (result i32) f32.const 1 else i32.const 2 end)`, "if yields f32, want i32"},
		{"wrong else result", `(func $f (result i32) i32.const 1 if (result i32) i32.const 1 else f32.const 2 end)`, "if yields f32, want i32"},
		{"wrong branch value", `(func $f (result i32) block $b (result i32) f32.const 1 br $b end)`, "br expects i32, got f32"},
		{"f32 comparison result", `(func $f (result f32) f32.const 1 f32.const 2 f32.lt)`, "function body yields i32, want f32"},
		{"call argument kind", `(func $g (param i32) (result i32) local.get 0) (func $f (result i32) f32.const 1 call $g)`, "call expects i32, got f32"},
		{"call result kind", `(func $g (result f32) f32.const 1) (func $f (result i32) call $g i32.const 1 i32.add)`, "i32.add expects i32, got f32"},
		{"return_call argument kind", `(func $f (param i32) (result i32) f32.const 1 return_call $f)`, "return_call expects i32, got f32"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := "(module " + tt.body + ")"
			_, err := Load(text)
			if err == nil {
				t.Fatalf("Load(%q): expected error containing %q", text, tt.expected)
			}
			if !strings.Contains(err.Error(), tt.expected) {
				t.Errorf("Load(%q) = %q, want it to contain %q", text, err, tt.expected)
			}
		})
	}
}

func TestLoadAcceptsDeadCodeOperands(t *testing.T) {
	text := `(module
  (func $f (export "f") (result i32)
    block $b
      br $b
      i32.add
      drop
    end
    i32.const 1
    return
    i32.add
  )
)`
	if got := runWAT(t, text, "f"); got != I32(1) {
		t.Errorf("f = %v, want 1", got)
	}
}

func TestInvokeChecksArguments(t *testing.T) {
	mod, err := Load(factorial)
	if err != nil {
		t.Fatal(err)
	}
	machine := New(mod)
	if _, err := machine.Invoke(context.Background(), "missing"); err == nil {
		t.Error("expected error for unknown export")
	}
	if _, err := machine.Invoke(context.Background(), "fact"); err == nil {
		t.Error("expected arity error")
	}
	if _, err := machine.Invoke(context.Background(), "fact", F32(1)); err == nil {
		t.Error("expected kind error")
	}
	if fn := mod.Export("fact"); fn == nil || fn.Result != typesystem.KindI32 || len(fn.Params) != 1 {
		t.Errorf("export fact = %+v", fn)
	}
}
