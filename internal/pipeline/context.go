package pipeline

import (
	"io"
	"log"

	"github.com/funvibe/watc/internal/ast"
	"github.com/funvibe/watc/internal/config"
	"github.com/funvibe/watc/internal/diagnostics"
	"github.com/funvibe/watc/internal/token"
)

// Processor is one compilation stage.
type Processor interface {
	Process(ctx *PipelineContext) *PipelineContext
	Name() string
}

// TokenStream is a finite, restartable token sequence ending with EOF.
type TokenStream interface {
	Next() token.Token
	// Peek returns the token n positions ahead without consuming it.
	Peek(n int) token.Token
	// Reset rewinds the stream to the first token.
	Reset()
}

// PipelineContext carries the state that flows between stages.
type PipelineContext struct {
	SourceCode  string
	FilePath    string
	Options     config.Options
	Logger      *log.Logger
	TokenStream TokenStream
	AstRoot     *ast.Program
	Output      string
	Errors      []*diagnostics.DiagnosticError
}

func NewPipelineContext(sourceCode string) *PipelineContext {
	return &PipelineContext{
		SourceCode: sourceCode,
		Options:    config.Defaults(),
		Logger:     log.New(io.Discard, "", 0),
	}
}

// AddError records err, stamping it with the context's file path.
func (ctx *PipelineContext) AddError(err *diagnostics.DiagnosticError) {
	if err.File == "" {
		err.File = ctx.FilePath
	}
	ctx.Errors = append(ctx.Errors, err)
}

// Logf logs through the context logger, if any.
func (ctx *PipelineContext) Logf(format string, args ...any) {
	if ctx.Logger != nil {
		ctx.Logger.Printf(format, args...)
	}
}

// Failed reports whether any stage has recorded an error.
func (ctx *PipelineContext) Failed() bool { return len(ctx.Errors) > 0 }
