package analyzer

import (
	"github.com/funvibe/watc/internal/pipeline"
)

type SemanticAnalyzerProcessor struct{}

func (sap *SemanticAnalyzerProcessor) Name() string { return "analyzer" }

func (sap *SemanticAnalyzerProcessor) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	if ctx.AstRoot == nil {
		return ctx
	}

	analyzer := New(ctx.Options.Codegen.Entry)
	analyzer.Logf = ctx.Logf
	if err := analyzer.Analyze(ctx.AstRoot); err != nil {
		ctx.AddError(err)
		return ctx
	}

	for _, sig := range analyzer.Signatures() {
		ctx.Logf("signature %s (%s)", sig, sig.ParamKinds.State())
	}
	return ctx
}
