// Package cli implements the watc command.
package cli

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/funvibe/watc/internal/cache"
	"github.com/funvibe/watc/internal/compiler"
	"github.com/funvibe/watc/internal/config"
	"github.com/funvibe/watc/internal/lexer"
	"github.com/funvibe/watc/internal/prettyprinter"
	"github.com/funvibe/watc/internal/rpc"
)

// Exit codes.
const (
	ExitOK      = 0
	ExitFailure = 1 // compile error, trap or I/O failure
	ExitUsage   = 2
)

const usage = `Usage:
  watc [flags] <file>      compile to WebAssembly text
  watc run [flags] <file>  compile and run the entry function
  watc serve [flags] [addr]
                           serve the gRPC compile service

Flags:
  -o <file>                write output to file instead of stdout
  --config <file>          use this watc.yaml instead of searching for one
  --emit tokens|ast|wat    stop after lexing, optimizing or code generation
  --no-opt                 disable constant folding and dead code elimination
  --no-tail-calls          never emit return_call
  --cache <file>           sqlite compile cache
  --verbose                log pipeline stages to stderr

Use "-" as the file to read from stdin.
`

type invocation struct {
	command     string
	file        string
	addr        string
	output      string
	configPath  string
	emit        string
	cachePath   string
	noOpt       bool
	noTailCalls bool
	verbose     bool
}

type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

// Run is the entry point of cmd/watc.
func Run() {
	os.Exit(Main(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// Main runs the command line args and returns the process exit code.
func Main(args []string, stdin io.Reader, stdout, stderr io.Writer) (code int) {
	defer func() {
		if r := recover(); r != nil {
			if os.Getenv("DEBUG") == "1" {
				panic(r)
			}
			fmt.Fprintf(stderr, "Internal error: %v\n", r)
			fmt.Fprintln(stderr, "This is a bug. Please report it.")
			code = ExitFailure
		}
	}()

	if handleHelp(args, stdout) {
		return ExitOK
	}

	inv, err := parseArgs(args)
	if err != nil {
		fmt.Fprintf(stderr, "watc: %s\n\n%s", err, usage)
		return ExitUsage
	}

	opts, err := inv.options()
	if err != nil {
		fmt.Fprintf(stderr, "watc: %s\n", err)
		return ExitFailure
	}

	c := compiler.New(opts)
	if inv.verbose {
		c.Logger = log.New(stderr, "watc: ", log.Lmsgprefix)
	}
	if opts.Cache.Path != "" {
		db, err := cache.Open(opts.Cache.Path)
		if err != nil {
			fmt.Fprintf(stderr, "watc: %s\n", err)
			return ExitFailure
		}
		defer db.Close()
		c.Cache = db
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if inv.command == "serve" {
		return handleServe(ctx, inv, c, stderr)
	}

	source, err := readSource(inv.file, stdin)
	if err != nil {
		fmt.Fprintf(stderr, "watc: %s\n", err)
		return ExitFailure
	}

	r := &reporter{out: stderr, color: colorEnabled(stderr), source: source}
	if inv.command == "run" {
		return handleRun(ctx, inv, c, source, stdout, r)
	}
	return handleCompile(ctx, inv, c, source, stdout, r)
}

func handleHelp(args []string, stdout io.Writer) bool {
	if len(args) != 1 {
		return false
	}
	switch args[0] {
	case "-h", "-help", "--help", "help":
		fmt.Fprint(stdout, usage)
	case "-v", "-version", "--version":
		fmt.Fprintln(stdout, "watc "+config.Version)
	default:
		return false
	}
	return true
}

func parseArgs(args []string) (*invocation, error) {
	inv := &invocation{command: "compile", emit: "wat"}
	if len(args) > 0 && (args[0] == "run" || args[0] == "serve") {
		inv.command = args[0]
		args = args[1:]
	}

	var positional []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		name, value, hasValue := strings.Cut(arg, "=")
		if !strings.HasPrefix(arg, "-") || arg == "-" {
			positional = append(positional, arg)
			continue
		}

		takeValue := func() (string, error) {
			if hasValue {
				return value, nil
			}
			if i+1 >= len(args) {
				return "", usagef("flag %s needs a value", name)
			}
			i++
			return args[i], nil
		}

		var err error
		switch name {
		case "-o", "--output":
			inv.output, err = takeValue()
		case "--config":
			inv.configPath, err = takeValue()
		case "--emit":
			inv.emit, err = takeValue()
		case "--cache":
			inv.cachePath, err = takeValue()
		case "--no-opt":
			inv.noOpt = true
		case "--no-tail-calls":
			inv.noTailCalls = true
		case "--verbose":
			inv.verbose = true
		default:
			return nil, usagef("unknown flag %s", name)
		}
		if err != nil {
			return nil, err
		}
	}

	switch inv.emit {
	case "tokens", "ast", "wat":
	default:
		return nil, usagef("--emit must be tokens, ast or wat, got %q", inv.emit)
	}

	if inv.command == "serve" {
		if len(positional) > 1 {
			return nil, usagef("serve takes at most one address")
		}
		if len(positional) == 1 {
			inv.addr = positional[0]
		}
		return inv, nil
	}

	if inv.command == "run" && inv.emit != "wat" {
		return nil, usagef("--emit cannot be used with run")
	}
	switch len(positional) {
	case 0:
		return nil, usagef("no input file")
	case 1:
		inv.file = positional[0]
	default:
		return nil, usagef("expected one input file, got %d", len(positional))
	}
	return inv, nil
}

// options loads watc.yaml (explicit or found next to the source) and
// applies command line overrides.
func (inv *invocation) options() (config.Options, error) {
	var opts config.Options
	var err error
	switch {
	case inv.configPath != "":
		opts, err = config.LoadOptions(inv.configPath)
	case inv.file != "":
		opts, _, err = config.LoadForSource(inv.file)
	default:
		// no source file: search from the working directory
		opts, _, err = config.LoadForSource("-")
	}
	if err != nil {
		return opts, err
	}

	if inv.noOpt {
		opts.Optimize = config.OptimizeOptions{}
	}
	if inv.noTailCalls {
		opts.Codegen.TailCalls = false
	}
	if inv.cachePath != "" {
		opts.Cache.Path = inv.cachePath
	}
	if inv.addr != "" {
		opts.Server.Addr = inv.addr
	}
	return opts, nil
}

func readSource(file string, stdin io.Reader) (string, error) {
	if file == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func writeOutput(inv *invocation, stdout io.Writer, text string) error {
	if inv.output == "" {
		_, err := io.WriteString(stdout, text)
		return err
	}
	if err := os.WriteFile(inv.output, []byte(text), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", inv.output, err)
	}
	return nil
}

func handleCompile(ctx context.Context, inv *invocation, c *compiler.Compiler, source string, stdout io.Writer, r *reporter) int {
	var text string
	switch inv.emit {
	case "tokens":
		pctx := c.RunStages(inv.file, source, compiler.StageLex)
		if pctx.Failed() {
			r.diagnostics(pctx.Errors)
			return ExitFailure
		}
		var b strings.Builder
		for _, tok := range lexer.Tokenize(source).All() {
			fmt.Fprintf(&b, "%d:%d\t%s\t%s\n", tok.Line, tok.Column, tok.Type, tok.Lexeme)
		}
		text = b.String()
	case "ast":
		pctx := c.RunStages(inv.file, source, compiler.StageOptimize)
		if pctx.Failed() {
			r.diagnostics(pctx.Errors)
			return ExitFailure
		}
		text = prettyprinter.NewCodePrinter().Print(pctx.AstRoot)
	default:
		res, err := c.Compile(ctx, inv.file, source)
		if err != nil {
			r.error(err)
			return ExitFailure
		}
		text = res.WAT
	}

	if err := writeOutput(inv, stdout, text); err != nil {
		r.error(err)
		return ExitFailure
	}
	return ExitOK
}

func handleRun(ctx context.Context, inv *invocation, c *compiler.Compiler, source string, stdout io.Writer, r *reporter) int {
	v, _, err := c.Run(ctx, inv.file, source)
	if err != nil {
		r.error(err)
		return ExitFailure
	}
	if err := writeOutput(inv, stdout, v.String()+"\n"); err != nil {
		r.error(err)
		return ExitFailure
	}
	return ExitOK
}

func handleServe(ctx context.Context, inv *invocation, c *compiler.Compiler, stderr io.Writer) int {
	if !inv.verbose {
		c.Logger = log.New(stderr, "watc: ", log.Lmsgprefix)
	}
	if err := rpc.Serve(ctx, c.Options.Server.Addr, c); err != nil {
		fmt.Fprintf(stderr, "watc: %s\n", err)
		return ExitFailure
	}
	return ExitOK
}
