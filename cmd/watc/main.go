// Command watc compiles a small JavaScript-like language to WebAssembly text.
package main

import "github.com/funvibe/watc/pkg/cli"

func main() {
	cli.Run()
}
