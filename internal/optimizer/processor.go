package optimizer

import (
	"github.com/funvibe/watc/internal/pipeline"
)

// OptimizerProcessor runs the enabled rewrites over a typed program.
type OptimizerProcessor struct{}

func (op *OptimizerProcessor) Name() string { return "optimizer" }

func (op *OptimizerProcessor) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	if ctx.AstRoot == nil || ctx.Failed() {
		return ctx
	}
	opts := ctx.Options.Optimize
	if !opts.FoldConstants && !opts.EliminateDeadCode {
		return ctx
	}

	o := New(opts)
	o.Optimize(ctx.AstRoot)
	stats := o.Stats()
	ctx.Logf("optimizer folded %d expressions, removed %d statements", stats.Folded, stats.Removed)
	return ctx
}
