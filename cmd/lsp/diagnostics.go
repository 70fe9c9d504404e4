package main

import (
	"github.com/funvibe/watc/internal/diagnostics"
)

func (s *LanguageServer) publishDiagnostics(uri string, doc *DocumentState) error {
	doc.Mu.RLock()
	errs := doc.Context.Errors
	doc.Mu.RUnlock()

	return s.sendNotification("textDocument/publishDiagnostics", PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: convertDiagnostics(errs),
	})
}

func convertDiagnostics(errs []*diagnostics.DiagnosticError) []Diagnostic {
	result := make([]Diagnostic, 0, len(errs))
	for _, err := range errs {
		line := max(err.Token.Line-1, 0) // LSP uses 0-based indexing
		start := max(err.Token.Column-1, 0)
		width := max(len([]rune(err.Token.Lexeme)), 1)
		result = append(result, Diagnostic{
			Range: Range{
				Start: Position{Line: line, Character: start},
				End:   Position{Line: line, Character: start + width},
			},
			Severity: SeverityError,
			Code:     string(err.Code),
			Message:  err.Message,
			Source:   "watc " + err.Phase().String(),
		})
	}
	return result
}
