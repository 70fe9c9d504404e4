package main

import (
	"fmt"

	"github.com/funvibe/watc/internal/typesystem"
)

func (s *LanguageServer) reference(uri string, pos Position) *Reference {
	doc := s.document(uri)
	if doc == nil {
		return nil
	}
	doc.Mu.RLock()
	defer doc.Mu.RUnlock()
	if doc.Index == nil {
		return nil
	}
	return doc.Index.At(pos)
}

func (s *LanguageServer) handleHover(id interface{}, params TextDocumentPositionParams) error {
	ref := s.reference(params.TextDocument.URI, params.Position)
	if ref == nil {
		return s.sendResult(id, nil)
	}
	text := hoverText(ref)
	if text == "" {
		return s.sendResult(id, nil)
	}
	r := identRange(ref.Ident.Value, ref.Ident.Token.Line, ref.Ident.Token.Column)
	return s.sendResult(id, Hover{
		Contents: MarkupContent{Kind: "markdown", Value: "```watc\n" + text + "\n```"},
		Range:    &r,
	})
}

func hoverText(ref *Reference) string {
	if fn := ref.Function; fn != nil {
		if fn.Signature == nil {
			return "function " + fn.Name.Value
		}
		return "function " + fn.Signature.String()
	}
	if !ref.Resolved {
		return ""
	}

	kind := ref.Ident.Kind()
	if !kind.IsValid() {
		kind = ref.Symbol.Kind
	}
	label := "?"
	if kind != typesystem.KindInvalid {
		label = kind.String()
	}

	switch {
	case ref.Param:
		return fmt.Sprintf("(parameter) %s: %s", ref.Ident.Value, label)
	case ref.Symbol.Mutable:
		return fmt.Sprintf("let %s: %s", ref.Ident.Value, label)
	default:
		return fmt.Sprintf("const %s: %s", ref.Ident.Value, label)
	}
}
