package backend

import (
	"errors"

	"github.com/funvibe/watc/internal/diagnostics"
	"github.com/funvibe/watc/internal/pipeline"
)

// CodegenProcessor runs a Backend as the last pipeline stage.
type CodegenProcessor struct {
	// Backend defaults to a WATBackend configured from the context options.
	Backend Backend
}

func NewCodegenProcessor(b Backend) *CodegenProcessor {
	return &CodegenProcessor{Backend: b}
}

func (p *CodegenProcessor) Name() string { return "codegen" }

func (p *CodegenProcessor) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	if ctx.AstRoot == nil || ctx.Failed() {
		return ctx
	}

	b := p.Backend
	if b == nil {
		b = NewWATBackend(ctx.Options.Codegen)
	}
	out, err := b.Generate(ctx.AstRoot)
	if err != nil {
		var de *diagnostics.DiagnosticError
		if !errors.As(err, &de) {
			de = diagnostics.AtLine(diagnostics.ErrI001, 0, "%s backend: %s", b.Name(), err.Error())
		}
		ctx.AddError(de)
		return ctx
	}
	ctx.Output = out
	ctx.Logf("%s backend wrote %d bytes", b.Name(), len(out))
	return ctx
}
