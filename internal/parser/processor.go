package parser

import (
	"github.com/funvibe/watc/internal/diagnostics"
	"github.com/funvibe/watc/internal/pipeline"
	"github.com/funvibe/watc/internal/token"
)

type ParserProcessor struct{}

func (pp *ParserProcessor) Name() string { return "parser" }

func (pp *ParserProcessor) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	if ctx.TokenStream == nil {
		if ctx.Failed() {
			return ctx
		}
		ctx.AddError(diagnostics.NewError(diagnostics.ErrI001, token.Token{}, "parser: token stream is nil"))
		return ctx
	}

	parser := New(ctx.TokenStream, ctx)
	program := parser.ParseProgram()
	if err := parser.Err(); err != nil {
		ctx.AddError(err)
		return ctx
	}

	program.File = ctx.FilePath
	ctx.AstRoot = program
	return ctx
}
