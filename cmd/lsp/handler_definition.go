package main

func (s *LanguageServer) handleDefinition(id interface{}, params TextDocumentPositionParams) error {
	ref := s.reference(params.TextDocument.URI, params.Position)
	if ref == nil {
		return s.sendResult(id, nil)
	}

	var r Range
	switch {
	case ref.Function != nil:
		name := ref.Function.Name
		r = identRange(name.Value, name.Token.Line, name.Token.Column)
	case ref.Resolved:
		r = identRange(ref.Symbol.Name, ref.Symbol.Line, ref.Symbol.Column)
	default:
		return s.sendResult(id, nil)
	}
	return s.sendResult(id, Location{URI: params.TextDocument.URI, Range: r})
}
