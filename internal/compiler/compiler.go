// Package compiler wires the pipeline stages into a source-to-WAT compiler.
package compiler

import (
	"context"
	"io"
	"log"

	"github.com/funvibe/watc/internal/analyzer"
	"github.com/funvibe/watc/internal/ast"
	"github.com/funvibe/watc/internal/backend"
	"github.com/funvibe/watc/internal/cache"
	"github.com/funvibe/watc/internal/config"
	"github.com/funvibe/watc/internal/diagnostics"
	"github.com/funvibe/watc/internal/lexer"
	"github.com/funvibe/watc/internal/optimizer"
	"github.com/funvibe/watc/internal/parser"
	"github.com/funvibe/watc/internal/pipeline"
	"github.com/funvibe/watc/internal/vm"
)

// Stage names the last stage a run goes through.
type Stage int

const (
	StageLex Stage = iota
	StageParse
	StageAnalyze
	StageOptimize
	StageCodegen
)

// Processors returns the pipeline stages up to and including last.
func Processors(last Stage) []pipeline.Processor {
	all := []pipeline.Processor{
		&lexer.LexerProcessor{},
		&parser.ParserProcessor{},
		&analyzer.SemanticAnalyzerProcessor{},
		&optimizer.OptimizerProcessor{},
		backend.NewCodegenProcessor(nil),
	}
	return all[:last+1]
}

// Result is a finished compilation.
type Result struct {
	WAT string
	// Program is the typed, optimized AST; nil when served from the cache.
	Program *ast.Program
	Cached  bool
}

type Compiler struct {
	Options config.Options
	Logger  *log.Logger
	// Cache is optional. Cache failures are logged and never fail a compile.
	Cache *cache.Cache
}

func New(opts config.Options) *Compiler {
	return &Compiler{Options: opts, Logger: log.New(io.Discard, "", 0)}
}

func (c *Compiler) logf(format string, args ...any) {
	if c.Logger != nil {
		c.Logger.Printf(format, args...)
	}
}

// Context prepares a pipeline context for source using the compiler's
// options and logger.
func (c *Compiler) Context(file, source string) *pipeline.PipelineContext {
	ctx := pipeline.NewPipelineContext(source)
	ctx.FilePath = file
	ctx.Options = c.Options
	if c.Logger != nil {
		ctx.Logger = c.Logger
	}
	return ctx
}

// RunStages runs the pipeline up to last. Errors are left in ctx.Errors.
func (c *Compiler) RunStages(file, source string, last Stage) *pipeline.PipelineContext {
	return pipeline.New(Processors(last)...).Run(c.Context(file, source))
}

// Compile translates source to WAT. A compile error is returned as a
// *diagnostics.DiagnosticError.
func (c *Compiler) Compile(ctx context.Context, file, source string) (*Result, error) {
	var key string
	if c.Cache != nil {
		k, err := cache.Key(source, c.Options)
		if err != nil {
			c.logf("cache disabled for %s: %v", file, err)
		} else {
			key = k
			a, ok, err := c.Cache.Get(ctx, key)
			switch {
			case err != nil:
				c.logf("cache read failed: %v", err)
			case ok:
				c.logf("cache hit %s for %s", a.ID, file)
				return &Result{WAT: a.WAT, Cached: true}, nil
			}
		}
	}

	pctx := c.RunStages(file, source, StageCodegen)
	if pctx.Failed() {
		return nil, pctx.Errors[0]
	}

	if key != "" {
		if a, err := c.Cache.Put(ctx, key, file, pctx.Output); err != nil {
			c.logf("cache write failed: %v", err)
		} else {
			c.logf("cached %s as %s", file, a.ID)
		}
	}
	return &Result{WAT: pctx.Output, Program: pctx.AstRoot}, nil
}

// Run compiles source and executes its entry function in the reference VM.
func (c *Compiler) Run(ctx context.Context, file, source string) (vm.Value, *Result, error) {
	res, err := c.Compile(ctx, file, source)
	if err != nil {
		return vm.Value{}, nil, err
	}
	entry := c.Options.Codegen.Entry
	if entry == "" {
		entry = config.DefaultEntryName
	}
	v, err := vm.Run(ctx, res.WAT, entry)
	return v, res, err
}

// IsCompileError reports whether err came from the compiler rather than
// from running the output.
func IsCompileError(err error) bool {
	return diagnostics.CodeOf(err) != ""
}
