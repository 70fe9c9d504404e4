package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
)

// LanguageServer keeps the analysis of every open document.
type LanguageServer struct {
	documents map[string]*DocumentState // URI -> document state
	mu        sync.RWMutex
	writer    io.Writer
	writeMu   sync.Mutex
	rootPath  string
	logger    *log.Logger

	shutdown bool // a shutdown request was received
	exited   bool
}

func NewLanguageServer(writer io.Writer) *LanguageServer {
	if writer == nil {
		writer = os.Stdout
	}
	return &LanguageServer{
		documents: make(map[string]*DocumentState),
		writer:    writer,
		logger:    log.Default(),
	}
}

// Start reads Content-Length framed messages from r until EOF or exit.
func (s *LanguageServer) Start(r io.Reader) error {
	reader := bufio.NewReader(r)

	for !s.exited {
		length, err := readHeaders(reader)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		content := make([]byte, length)
		if _, err := io.ReadFull(reader, content); err != nil {
			return fmt.Errorf("reading content: %w", err)
		}

		if err := s.handleMessage(content); err != nil {
			s.logger.Printf("Error handling message: %v", err)
		}
	}
	return nil
}

// readHeaders consumes the header block and returns Content-Length.
func readHeaders(reader *bufio.Reader) (int, error) {
	length := -1
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF && line == "" {
				return 0, io.EOF
			}
			return 0, fmt.Errorf("reading header: %w", err)
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			if length >= 0 {
				return length, nil
			}
			continue // blank lines between messages
		}
		if v, ok := strings.CutPrefix(line, "Content-Length: "); ok {
			length, err = strconv.Atoi(v)
			if err != nil {
				return 0, fmt.Errorf("parsing Content-Length: %w", err)
			}
		}
	}
}

type baseMessage struct {
	Jsonrpc string          `json:"jsonrpc"`
	ID      interface{}     `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

func (s *LanguageServer) handleMessage(content []byte) error {
	var msg baseMessage
	if err := json.Unmarshal(content, &msg); err != nil {
		return fmt.Errorf("failed to unmarshal message: %v", err)
	}
	s.logger.Printf("Received %s (id %v)", msg.Method, msg.ID)

	if msg.ID != nil {
		return s.handleRequest(msg)
	}
	return s.handleNotification(msg)
}

// decode unmarshals request params, answering invalid params itself.
func (s *LanguageServer) decode(msg baseMessage, params interface{}) (bool, error) {
	if err := json.Unmarshal(msg.Params, params); err != nil {
		return false, s.sendError(msg.ID, codeInvalidParams, fmt.Sprintf("invalid params: %v", err))
	}
	return true, nil
}

func (s *LanguageServer) handleRequest(msg baseMessage) error {
	switch msg.Method {
	case "initialize":
		var params InitializeParams
		if ok, err := s.decode(msg, &params); !ok {
			return err
		}
		return s.handleInitialize(msg.ID, params)

	case "shutdown":
		return s.handleShutdown(msg.ID)

	case "textDocument/hover":
		var params TextDocumentPositionParams
		if ok, err := s.decode(msg, &params); !ok {
			return err
		}
		return s.handleHover(msg.ID, params)

	case "textDocument/definition":
		var params TextDocumentPositionParams
		if ok, err := s.decode(msg, &params); !ok {
			return err
		}
		return s.handleDefinition(msg.ID, params)

	case "textDocument/documentSymbol":
		var params DocumentSymbolParams
		if ok, err := s.decode(msg, &params); !ok {
			return err
		}
		return s.handleDocumentSymbol(msg.ID, params)

	case "textDocument/formatting":
		var params DocumentFormattingParams
		if ok, err := s.decode(msg, &params); !ok {
			return err
		}
		return s.handleFormatting(msg.ID, params)

	default:
		return s.sendError(msg.ID, codeMethodNotFound, fmt.Sprintf("Method not found: %s", msg.Method))
	}
}

func (s *LanguageServer) handleNotification(msg baseMessage) error {
	switch msg.Method {
	case "textDocument/didOpen":
		var params DidOpenTextDocumentParams
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			return err
		}
		return s.handleDidOpen(params)

	case "textDocument/didChange":
		var params DidChangeTextDocumentParams
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			return err
		}
		return s.handleDidChange(params)

	case "textDocument/didClose":
		var params DidCloseTextDocumentParams
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			return err
		}
		return s.handleDidClose(params)

	case "exit":
		s.exited = true
	}
	// initialized and unknown notifications are ignored
	return nil
}

func (s *LanguageServer) sendResult(id interface{}, result interface{}) error {
	return s.sendMessage(ResponseMessage{Jsonrpc: "2.0", ID: id, Result: result})
}

func (s *LanguageServer) sendError(id interface{}, code int, message string) error {
	return s.sendMessage(ResponseMessage{
		Jsonrpc: "2.0",
		ID:      id,
		Error:   &Error{Code: code, Message: message},
	})
}

func (s *LanguageServer) sendNotification(method string, params interface{}) error {
	return s.sendMessage(NotificationMessage{Jsonrpc: "2.0", Method: method, Params: params})
}

func (s *LanguageServer) sendMessage(message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err = fmt.Fprintf(s.writer, "Content-Length: %d\r\n\r\n%s", len(data), data)
	return err
}
