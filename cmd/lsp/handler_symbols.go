package main

import (
	"github.com/funvibe/watc/internal/ast"
)

// handleDocumentSymbol lists functions and top-level variables.
func (s *LanguageServer) handleDocumentSymbol(id interface{}, params DocumentSymbolParams) error {
	doc := s.document(params.TextDocument.URI)
	result := []DocumentSymbol{}
	if doc == nil {
		return s.sendResult(id, result)
	}

	doc.Mu.RLock()
	ctx := doc.Context
	doc.Mu.RUnlock()
	if ctx == nil || ctx.AstRoot == nil {
		return s.sendResult(id, result)
	}

	for _, fn := range ctx.AstRoot.Functions {
		r := identRange(fn.Name.Value, fn.Name.Token.Line, fn.Name.Token.Column)
		sym := DocumentSymbol{Name: fn.Name.Value, Kind: SymbolFunction, Range: r, SelectionRange: r}
		if fn.Signature != nil {
			sym.Detail = fn.Signature.String()
		}
		result = append(result, sym)
	}
	for _, stmt := range ctx.AstRoot.Statements {
		let, ok := stmt.(*ast.LetStatement)
		if !ok {
			continue
		}
		r := identRange(let.Name.Value, let.Name.Token.Line, let.Name.Token.Column)
		sym := DocumentSymbol{Name: let.Name.Value, Kind: SymbolVariable, Range: r, SelectionRange: r}
		if !let.Mutable {
			sym.Kind = SymbolConstant
		}
		if k := let.Name.Kind(); k.IsValid() {
			sym.Detail = k.String()
		}
		result = append(result, sym)
	}
	return s.sendResult(id, result)
}
