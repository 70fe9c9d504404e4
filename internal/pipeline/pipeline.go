package pipeline

// Pipeline represents a sequence of processing stages.
type Pipeline struct {
	processors []Processor
}

func New(processors ...Processor) *Pipeline {
	return &Pipeline{processors: processors}
}

// Run executes the pipeline. The first stage that reports an error aborts
// the run, so no partial output is produced downstream of a failing stage.
func (p *Pipeline) Run(initialCtx *PipelineContext) *PipelineContext {
	ctx := initialCtx
	for _, processor := range p.processors {
		ctx.Logf("stage %s", processor.Name())
		ctx = processor.Process(ctx)
		if len(ctx.Errors) > 0 {
			ctx.Logf("stage %s failed: %s", processor.Name(), ctx.Errors[0])
			break
		}
	}
	return ctx
}
