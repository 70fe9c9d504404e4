package pipeline

import (
	"testing"

	"github.com/funvibe/watc/internal/diagnostics"
)

type recordingStage struct {
	name string
	fail bool
	seen *[]string
}

func (r *recordingStage) Name() string { return r.name }

func (r *recordingStage) Process(ctx *PipelineContext) *PipelineContext {
	*r.seen = append(*r.seen, r.name)
	if r.fail {
		ctx.AddError(diagnostics.AtLine(diagnostics.ErrP001, 3, "boom"))
	}
	return ctx
}

func TestRunStopsAtFirstFailingStage(t *testing.T) {
	var seen []string
	p := New(
		&recordingStage{name: "lex", seen: &seen},
		&recordingStage{name: "parse", fail: true, seen: &seen},
		&recordingStage{name: "analyze", seen: &seen},
	)
	ctx := NewPipelineContext("x;")
	ctx.FilePath = "main.js"
	ctx = p.Run(ctx)

	if len(seen) != 2 || seen[1] != "parse" {
		t.Fatalf("stages run = %v, want [lex parse]", seen)
	}
	if len(ctx.Errors) != 1 {
		t.Fatalf("errors = %d, want 1", len(ctx.Errors))
	}
	if got := ctx.Errors[0].Error(); got != "Parser Error at main.js:3 [P001]: boom" {
		t.Errorf("Error() = %q", got)
	}
}

func TestRunAllStagesOnSuccess(t *testing.T) {
	var seen []string
	p := New(&recordingStage{name: "a", seen: &seen}, &recordingStage{name: "b", seen: &seen})
	if ctx := p.Run(NewPipelineContext("")); ctx.Failed() {
		t.Fatal("unexpected failure")
	}
	if len(seen) != 2 {
		t.Errorf("stages run = %v", seen)
	}
}
