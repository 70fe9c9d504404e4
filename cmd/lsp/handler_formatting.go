package main

import (
	"strings"

	"github.com/funvibe/watc/internal/lexer"
	"github.com/funvibe/watc/internal/parser"
	"github.com/funvibe/watc/internal/pipeline"
	"github.com/funvibe/watc/internal/prettyprinter"
)

// handleFormatting reprints the document from a fresh parse. Documents with
// syntax errors or comments are left alone since the printer cannot keep
// comments.
func (s *LanguageServer) handleFormatting(id interface{}, params DocumentFormattingParams) error {
	doc := s.document(params.TextDocument.URI)
	if doc == nil {
		return s.sendResult(id, []TextEdit{})
	}
	doc.Mu.RLock()
	content := doc.Content
	doc.Mu.RUnlock()

	if strings.Contains(content, "//") || strings.Contains(content, "/*") {
		return s.sendResult(id, []TextEdit{})
	}

	// Semantic errors must not block formatting, so parse again instead of
	// reusing the analyzed context.
	ctx := pipeline.NewPipelineContext(content)
	ctx = pipeline.New(&lexer.LexerProcessor{}, &parser.ParserProcessor{}).Run(ctx)
	if ctx.Failed() || ctx.AstRoot == nil {
		return s.sendResult(id, []TextEdit{})
	}

	formatted := prettyprinter.NewCodePrinter().Print(ctx.AstRoot)
	if formatted == content {
		return s.sendResult(id, []TextEdit{})
	}
	return s.sendResult(id, []TextEdit{{
		Range:   Range{Start: Position{}, End: documentEnd(content)},
		NewText: formatted,
	}})
}
