package compiler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/funvibe/watc/internal/config"
	"github.com/funvibe/watc/internal/vm"
)

// byteSource turns fuzzer input into choices. Exhausted input always
// picks 0, which keeps generated programs finite.
type byteSource struct {
	data []byte
	pos  int
}

func (s *byteSource) intn(n int) int {
	if n <= 0 || s.pos >= len(s.data) {
		return 0
	}
	v := int(s.data[s.pos])
	s.pos++
	return v % n
}

const (
	maxExprDepth = 3
	maxStmtDepth = 2
	maxLoopCount = 5
)

// generator writes random programs over a fixed set of variables.
// Programs may fail analysis (e.g. kind mismatches); callers skip those.
type generator struct {
	src   *byteSource
	vars  []string
	loops int
}

func newGenerator(data []byte) *generator {
	return &generator{src: &byteSource{data: data}, vars: []string{"x", "y", "z"}}
}

func (g *generator) program() string {
	var sb strings.Builder
	for _, v := range g.vars {
		fmt.Fprintf(&sb, "let %s = %s;\n", v, g.literal())
	}
	count := g.src.intn(5) + 1
	for i := 0; i < count; i++ {
		sb.WriteString(g.statement(0))
		sb.WriteString("\n")
	}
	sb.WriteString(g.expression(0) + ";\n")
	return sb.String()
}

func (g *generator) literal() string {
	switch g.src.intn(6) {
	case 0:
		return "0"
	case 1:
		return "0.0"
	case 2:
		return fmt.Sprintf("%d.5", g.src.intn(10))
	case 3:
		return "2147483647"
	default:
		return fmt.Sprintf("%d", g.src.intn(20))
	}
}

func (g *generator) variable() string {
	return g.vars[g.src.intn(len(g.vars))]
}

var fuzzOperators = []string{"+", "-", "*", "/", "%", "<", ">", "<=", ">=", "==", "!=", "&&", "||"}

func (g *generator) expression(depth int) string {
	if depth >= maxExprDepth || g.src.intn(3) == 0 {
		if g.src.intn(2) == 0 {
			return g.literal()
		}
		return g.variable()
	}
	switch g.src.intn(5) {
	case 0:
		return "-" + g.expression(depth+1)
	case 1:
		return "!(" + g.expression(depth+1) + ")"
	default:
		op := fuzzOperators[g.src.intn(len(fuzzOperators))]
		return "(" + g.expression(depth+1) + " " + op + " " + g.expression(depth+1) + ")"
	}
}

func (g *generator) block(depth int) string {
	var parts []string
	count := g.src.intn(3) + 1
	for i := 0; i < count; i++ {
		parts = append(parts, g.statement(depth+1))
	}
	return "{ " + strings.Join(parts, " ") + " }"
}

func (g *generator) statement(depth int) string {
	choices := 4
	if depth < maxStmtDepth {
		choices = 6
	}
	switch g.src.intn(choices) {
	case 0:
		return g.variable() + " = " + g.expression(0) + ";"
	case 1:
		return g.variable() + " += " + g.expression(0) + ";"
	case 2:
		if g.loops > 0 {
			if g.src.intn(2) == 0 {
				return "if (" + g.expression(1) + ") break;"
			}
			return "if (" + g.expression(1) + ") continue;"
		}
		return g.expression(0) + ";"
	case 3:
		return g.expression(0) + ";"
	case 4:
		s := "if (" + g.expression(0) + ") " + g.block(depth)
		if g.src.intn(2) == 0 {
			s += " else " + g.block(depth)
		}
		return s
	default:
		g.loops++
		defer func() { g.loops-- }()
		i := fmt.Sprintf("i%d", depth)
		n := g.src.intn(maxLoopCount) + 1
		return fmt.Sprintf("for (let %s = 0; %s < %d; %s += 1) %s", i, i, n, i, g.block(depth))
	}
}

// outcome runs src and describes the result. ok is false when the program
// does not compile or runs out of time.
func outcome(t *testing.T, src string, opts config.Options) (string, bool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	v, res, err := New(opts).Run(ctx, "fuzz.js", src)
	var trap *vm.Trap
	switch {
	case err == nil:
		return v.Kind.String() + " " + v.String(), true
	case IsCompileError(err) && res == nil:
		return "compile error " + err.Error(), false
	case errors.As(err, &trap):
		return "trap " + trap.Message, true
	case ctx.Err() != nil:
		return "timeout", false
	default:
		wat := ""
		if res != nil {
			wat = res.WAT
		}
		t.Fatalf("unexpected failure: %v\nprogram:\n%s\n%s", err, src, wat)
		return "", false
	}
}

// FuzzOptimizerPreservesResults compares optimized and unoptimized builds
// of generated programs.
func FuzzOptimizerPreservesResults(f *testing.F) {
	f.Add([]byte("seed"))
	f.Add([]byte{4, 1, 0, 5, 3, 2, 9, 4, 4, 1, 7, 0, 2})
	f.Add([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16})

	f.Fuzz(func(t *testing.T, data []byte) {
		if len(data) > 512 {
			return
		}
		src := newGenerator(data).program()

		opt, optOK := outcome(t, src, config.Defaults())
		plain, plainOK := outcome(t, src, unoptimized())
		if optOK != plainOK {
			if opt == "timeout" || plain == "timeout" {
				return
			}
			t.Fatalf("builds disagree on success: optimized %q, unoptimized %q\nprogram:\n%s", opt, plain, src)
		}
		if optOK && opt != plain {
			t.Fatalf("optimized %q, unoptimized %q\nprogram:\n%s", opt, plain, src)
		}
	})
}

// FuzzCompile feeds arbitrary text through the whole pipeline. Anything
// may be rejected, but only with a diagnostic.
func FuzzCompile(f *testing.F) {
	f.Add("let a = 1; a + 2.5;")
	f.Add("function f(n) { if (n < 1) return 0; return f(n - 1); } f(3);")
	f.Add("for (;;) { break; }")
	f.Add("/* unterminated")
	f.Add("1e")
	f.Add("((((((((1))))))))")

	f.Fuzz(func(t *testing.T, src string) {
		if len(src) > 2048 {
			return
		}
		_, err := New(config.Defaults()).Compile(context.Background(), "fuzz.js", src)
		if err != nil && !IsCompileError(err) {
			t.Fatalf("non-diagnostic error %v for %q", err, src)
		}
	})
}

func TestGeneratedProgramsAgree(t *testing.T) {
	compiled := 0
	for seed := 0; seed < 200; seed++ {
		data := make([]byte, 64)
		for i := range data {
			data[i] = byte((seed*31 + i*17 + i*i*seed) % 251)
		}
		src := newGenerator(data).program()
		opt, optOK := outcome(t, src, config.Defaults())
		plain, _ := outcome(t, src, unoptimized())
		if optOK {
			compiled++
		}
		if opt != plain {
			t.Fatalf("seed %d: optimized %q, unoptimized %q\nprogram:\n%s", seed, opt, plain, src)
		}
	}
	if compiled == 0 {
		t.Error("no generated program compiled")
	}
}
