package lexer

import (
	"github.com/funvibe/watc/internal/diagnostics"
	"github.com/funvibe/watc/internal/pipeline"
	"github.com/funvibe/watc/internal/token"
)

type LexerProcessor struct{}

func (lp *LexerProcessor) Name() string { return "lexer" }

// Process attaches a token stream to the context. The stream is scanned once
// up front so the first lexical error aborts compilation before parsing.
func (lp *LexerProcessor) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	stream := Tokenize(ctx.SourceCode)
	for {
		tok := stream.Next()
		if tok.Type == token.ILLEGAL {
			ctx.AddError(illegalError(tok))
			return ctx
		}
		if tok.Type == token.EOF {
			break
		}
	}
	stream.Reset()
	ctx.TokenStream = stream
	return ctx
}

func illegalError(tok token.Token) *diagnostics.DiagnosticError {
	if ill, ok := tok.Literal.(Illegal); ok {
		return diagnostics.NewError(ill.Code, tok, "%s", ill.Message)
	}
	return diagnostics.NewError(diagnostics.ErrL001, tok, "unexpected character %q", tok.Lexeme)
}
