// Command lsp is a language server for watc sources. It speaks JSON-RPC
// over stdin/stdout and reports diagnostics, kinds on hover, definitions,
// document symbols and formatting.
package main

import (
	"log"
	"os"
)

func main() {
	log.SetFlags(0)          // Disable timestamp in logs
	log.SetOutput(os.Stderr) // stdout is for the protocol

	server := NewLanguageServer(os.Stdout)
	if err := server.Start(os.Stdin); err != nil {
		log.Printf("server stopped: %v", err)
	}
	if !server.shutdown {
		os.Exit(1)
	}
}
