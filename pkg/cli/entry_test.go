package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func runCLI(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := Main(args, strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestCompileToStdout(t *testing.T) {
	path := writeFile(t, t.TempDir(), "add.js", "function add(a, b) { return a + b; }\nadd(1, 2);\n")
	code, out, errOut := runCLI(t, "", path)
	if code != ExitOK {
		t.Fatalf("exit = %d, stderr:\n%s", code, errOut)
	}
	if !strings.HasPrefix(out, "(module\n") || !strings.Contains(out, `(func $add (export "add")`) {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestCompileToFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "main.js", "1 + 1;")
	out := filepath.Join(dir, "main.wat")
	code, stdout, errOut := runCLI(t, "", "-o", out, path)
	if code != ExitOK {
		t.Fatalf("exit = %d, stderr:\n%s", code, errOut)
	}
	if stdout != "" {
		t.Errorf("stdout = %q, want empty", stdout)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "i32.const 2") {
		t.Errorf("expected folded constant in:\n%s", data)
	}
}

func TestRunCommand(t *testing.T) {
	path := writeFile(t, t.TempDir(), "fact.js", `
function fact(n) { if (n <= 1) return 1; return n * fact(n - 1); }
fact(6);
`)
	code, out, errOut := runCLI(t, "", "run", path)
	if code != ExitOK {
		t.Fatalf("exit = %d, stderr:\n%s", code, errOut)
	}
	if out != "720\n" {
		t.Errorf("output = %q", out)
	}
}

func TestStdinInput(t *testing.T) {
	code, out, errOut := runCLI(t, "let x = 1.5; x * 2;", "run", "-")
	if code != ExitOK {
		t.Fatalf("exit = %d, stderr:\n%s", code, errOut)
	}
	if out != "3\n" {
		t.Errorf("output = %q", out)
	}
}

func TestEmitModes(t *testing.T) {
	path := writeFile(t, t.TempDir(), "e.js", "let a = 2 * 3;\nif (0) a = 1;\n")

	code, out, _ := runCLI(t, "", "--emit", "tokens", path)
	if code != ExitOK {
		t.Fatalf("tokens exit = %d", code)
	}
	if !strings.HasPrefix(out, "1:1\tLET\tlet\n") || !strings.HasSuffix(out, "\tEOF\t\n") {
		t.Errorf("unexpected tokens:\n%s", out)
	}

	code, out, _ = runCLI(t, "", "--emit=ast", path)
	if code != ExitOK {
		t.Fatalf("ast exit = %d", code)
	}
	if strings.TrimSpace(out) != "let a = 6;" {
		t.Errorf("optimized ast = %q", out)
	}

	code, out, _ = runCLI(t, "", "--emit", "ast", "--no-opt", path)
	if code != ExitOK {
		t.Fatalf("ast exit = %d", code)
	}
	if !strings.Contains(out, "2 * 3") || !strings.Contains(out, "if (0)") {
		t.Errorf("unoptimized ast = %q", out)
	}
}

func TestCompileErrorsAreReported(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.js", "let a = 1;\nlet b = a + c;\n")
	code, out, errOut := runCLI(t, "", path)
	if code != ExitFailure {
		t.Fatalf("exit = %d, want %d", code, ExitFailure)
	}
	if out != "" {
		t.Errorf("stdout = %q, want empty", out)
	}
	if !strings.Contains(errOut, "[A001]") || !strings.Contains(errOut, "   2 | let b = a + c;\n") {
		t.Errorf("stderr:\n%s", errOut)
	}
	if strings.Contains(errOut, "\033[") {
		t.Error("colour codes written to a non-terminal")
	}
}

func TestRuntimeTrapIsReported(t *testing.T) {
	path := writeFile(t, t.TempDir(), "trap.js", "let z = 0;\n10 / z;\n")
	code, _, errOut := runCLI(t, "", "run", path)
	if code != ExitFailure {
		t.Fatalf("exit = %d", code)
	}
	if !strings.Contains(errOut, "runtime error:") || !strings.Contains(errOut, "integer divide by zero") ||
		!strings.Contains(errOut, "   2 | 10 / z;") {
		t.Errorf("stderr:\n%s", errOut)
	}
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "watc.yaml", "codegen:\n  entry: main\n  line_comments: false\noptimize:\n  fold_constants: false\n")
	path := writeFile(t, dir, "c.js", "1 + 2;")

	code, out, errOut := runCLI(t, "", path)
	if code != ExitOK {
		t.Fatalf("exit = %d, stderr:\n%s", code, errOut)
	}
	if !strings.Contains(out, `(func $main (export "main")`) || !strings.Contains(out, "i32.add") {
		t.Errorf("config not applied:\n%s", out)
	}
	if strings.Contains(out, ";; line") {
		t.Errorf("line comments not disabled:\n%s", out)
	}

	other := writeFile(t, t.TempDir(), "other.yaml", "codegen:\n  entry: go\n")
	code, out, _ = runCLI(t, "", "--config", other, path)
	if code != ExitOK || !strings.Contains(out, `(export "go")`) {
		t.Errorf("--config ignored (exit %d):\n%s", code, out)
	}
}

func TestNoTailCalls(t *testing.T) {
	path := writeFile(t, t.TempDir(), "t.js", "function loop(n) { if (n == 0) return 0; return loop(n - 1); }\nloop(3);\n")
	_, out, _ := runCLI(t, "", path)
	if !strings.Contains(out, "return_call $loop") {
		t.Errorf("expected tail call:\n%s", out)
	}
	_, out, _ = runCLI(t, "", "--no-tail-calls", path)
	if strings.Contains(out, "return_call") {
		t.Errorf("unexpected tail call:\n%s", out)
	}
}

func TestCacheFlag(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "c.js", "40 + 2;")
	db := filepath.Join(dir, "cache.db")

	for i := 0; i < 2; i++ {
		code, out, errOut := runCLI(t, "", "run", "--cache", db, "--verbose", path)
		if code != ExitOK || out != "42\n" {
			t.Fatalf("run %d: exit = %d, out = %q, stderr:\n%s", i, code, out, errOut)
		}
		if i == 1 && !strings.Contains(errOut, "cache hit") {
			t.Errorf("second run did not hit the cache:\n%s", errOut)
		}
	}
}

func TestUsageErrors(t *testing.T) {
	tests := [][]string{
		{},
		{"a.js", "b.js"},
		{"--emit", "bytes", "a.js"},
		{"--bogus", "a.js"},
		{"-o"},
		{"run", "--emit", "ast", "a.js"},
		{"serve", "a", "b"},
	}
	for _, args := range tests {
		code, _, errOut := runCLI(t, "", args...)
		if code != ExitUsage {
			t.Errorf("%v: exit = %d, want %d", args, code, ExitUsage)
		}
		if !strings.Contains(errOut, "Usage:") {
			t.Errorf("%v: usage not printed:\n%s", args, errOut)
		}
	}
}

func TestHelpAndVersion(t *testing.T) {
	code, out, _ := runCLI(t, "", "--help")
	if code != ExitOK || !strings.Contains(out, "watc run") {
		t.Errorf("help: exit %d\n%s", code, out)
	}
	code, out, _ = runCLI(t, "", "--version")
	if code != ExitOK || !strings.HasPrefix(out, "watc ") {
		t.Errorf("version: exit %d %q", code, out)
	}
}

func TestMissingFile(t *testing.T) {
	code, _, errOut := runCLI(t, "", filepath.Join(t.TempDir(), "nope.js"))
	if code != ExitFailure || !strings.Contains(errOut, "nope.js") {
		t.Errorf("exit = %d, stderr = %q", code, errOut)
	}
}
