package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/funvibe/watc/internal/compiler"
	"github.com/funvibe/watc/internal/config"
	"github.com/funvibe/watc/internal/pipeline"
)

// DocumentState stores the state of a single open document
type DocumentState struct {
	Content string
	Context *pipeline.PipelineContext // result of the last analysis
	Index   *Index                    // nil when parsing failed
	Mu      sync.RWMutex
}

func (s *LanguageServer) handleDidOpen(params DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	doc := &DocumentState{}
	s.update(uri, doc, params.TextDocument.Text)

	s.mu.Lock()
	s.documents[uri] = doc
	s.mu.Unlock()

	s.logger.Printf("Opened file: %s", uri)
	return s.publishDiagnostics(uri, doc)
}

func (s *LanguageServer) handleDidChange(params DidChangeTextDocumentParams) error {
	// Full sync: the last change carries the whole text.
	if len(params.ContentChanges) == 0 {
		return nil
	}
	uri := params.TextDocument.URI
	doc := s.document(uri)
	if doc == nil {
		return fmt.Errorf("document %s not found", uri)
	}
	s.update(uri, doc, params.ContentChanges[len(params.ContentChanges)-1].Text)
	return s.publishDiagnostics(uri, doc)
}

func (s *LanguageServer) handleDidClose(params DidCloseTextDocumentParams) error {
	s.mu.Lock()
	delete(s.documents, params.TextDocument.URI)
	s.mu.Unlock()
	s.logger.Printf("Closed file: %s", params.TextDocument.URI)
	return nil
}

func (s *LanguageServer) document(uri string) *DocumentState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.documents[uri]
}

func (s *LanguageServer) update(uri string, doc *DocumentState, content string) {
	ctx := s.analyzeDocument(content, uri)
	var index *Index
	if ctx.AstRoot != nil {
		index = BuildIndex(ctx.AstRoot)
	}

	doc.Mu.Lock()
	doc.Content = content
	doc.Context = ctx
	doc.Index = index
	doc.Mu.Unlock()
}

// analyzeDocument runs the front end (lexer, parser, analyzer) with the
// watc.yaml that governs the file, if it is on disk.
func (s *LanguageServer) analyzeDocument(content string, uri string) *pipeline.PipelineContext {
	path := uriToPath(uri)
	opts := config.Defaults()
	if dir := filepath.Dir(path); filepath.IsAbs(path) && isDir(dir) {
		loaded, found, err := config.LoadForSource(path)
		if err != nil {
			s.logger.Printf("ignoring config for %s: %v", path, err)
		} else if found != "" {
			opts = loaded
		}
	}

	c := compiler.New(opts)
	return c.RunStages(path, content, compiler.StageAnalyze)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
