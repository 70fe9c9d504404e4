// Package watc compiles programs to WebAssembly text and runs them in
// process. A Module is safe for concurrent use; every call gets its own VM.
package watc

import (
	"context"
	"fmt"
	"os"

	"github.com/funvibe/watc/internal/compiler"
	"github.com/funvibe/watc/internal/config"
	"github.com/funvibe/watc/internal/vm"
)

// Option adjusts the compiler options used by Compile.
type Option func(*config.Options)

// WithOptions replaces all options, e.g. with ones loaded from watc.yaml.
func WithOptions(opts config.Options) Option {
	return func(o *config.Options) { *o = opts }
}

func NoOptimize() Option {
	return func(o *config.Options) {
		o.Optimize = config.OptimizeOptions{}
	}
}

func NoTailCalls() Option {
	return func(o *config.Options) { o.Codegen.TailCalls = false }
}

// EntryName renames the function that holds the top-level code.
func EntryName(name string) Option {
	return func(o *config.Options) { o.Codegen.Entry = name }
}

// Module is a compiled program.
type Module struct {
	wat        string
	entry      string
	mod        *vm.Module
	marshaller *Marshaller
}

// Compile translates source. Compile errors are *diagnostics.DiagnosticError
// values; use errors.As to inspect them.
func Compile(ctx context.Context, file, source string, options ...Option) (*Module, error) {
	opts := config.Defaults()
	for _, o := range options {
		o(&opts)
	}
	if opts.Codegen.Entry == "" {
		opts.Codegen.Entry = config.DefaultEntryName
	}

	res, err := compiler.New(opts).Compile(ctx, file, source)
	if err != nil {
		return nil, err
	}
	mod, err := vm.Load(res.WAT)
	if err != nil {
		return nil, fmt.Errorf("loading generated module: %w", err)
	}
	return &Module{wat: res.WAT, entry: opts.Codegen.Entry, mod: mod, marshaller: NewMarshaller()}, nil
}

// CompileFile reads and compiles path.
func CompileFile(ctx context.Context, path string, options ...Option) (*Module, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Compile(ctx, path, string(content), options...)
}

// Eval compiles source and returns the value of its entry function.
func Eval(ctx context.Context, source string, options ...Option) (interface{}, error) {
	m, err := Compile(ctx, "<eval>", source, options...)
	if err != nil {
		return nil, err
	}
	return m.Run(ctx)
}

func (m *Module) WAT() string { return m.wat }

// Functions lists the exported function names in module order, entry
// included.
func (m *Module) Functions() []string {
	byIndex := make([]string, len(m.mod.Functions))
	for name, idx := range m.mod.Exports {
		byIndex[idx] = name
	}
	names := make([]string, 0, len(m.mod.Exports))
	for _, name := range byIndex {
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}

// Run executes the top-level code.
func (m *Module) Run(ctx context.Context) (interface{}, error) {
	return m.Call(ctx, m.entry)
}

// Call invokes an exported function. Go integers become i32, floats f32,
// and booleans 0 or 1. The result is an int32 or a float32.
func (m *Module) Call(ctx context.Context, name string, args ...interface{}) (interface{}, error) {
	v, err := m.invoke(ctx, name, args)
	if err != nil {
		return nil, err
	}
	return m.marshaller.FromValue(v, nil)
}

// CallInto is Call with the result stored in out, which must be a pointer
// to a numeric or bool variable.
func (m *Module) CallInto(ctx context.Context, out interface{}, name string, args ...interface{}) error {
	v, err := m.invoke(ctx, name, args)
	if err != nil {
		return err
	}
	return m.marshaller.Store(v, out)
}

func (m *Module) invoke(ctx context.Context, name string, args []interface{}) (vm.Value, error) {
	fn := m.mod.Export(name)
	if fn == nil {
		return vm.Value{}, fmt.Errorf("function '%s' not found", name)
	}
	if len(args) != len(fn.Params) {
		return vm.Value{}, fmt.Errorf("%s expects %d arguments, got %d", name, len(fn.Params), len(args))
	}
	values := make([]vm.Value, len(args))
	for i, arg := range args {
		v, err := m.marshaller.ToValue(arg, fn.Params[i])
		if err != nil {
			return vm.Value{}, fmt.Errorf("argument %d conversion failed: %w", i+1, err)
		}
		values[i] = v
	}
	return vm.New(m.mod).Invoke(ctx, name, values...)
}
