package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/funvibe/watc/internal/diagnostics"
	"github.com/funvibe/watc/internal/vm"
)

const (
	colorRed   = "\033[31m"
	colorBold  = "\033[1m"
	colorReset = "\033[0m"
)

// colorEnabled reports whether w is a terminal that should get ANSI colours.
func colorEnabled(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// reporter prints errors with the offending source line underneath.
type reporter struct {
	out    io.Writer
	color  bool
	source string
}

func (r *reporter) paint(code, s string) string {
	if !r.color {
		return s
	}
	return code + s + colorReset
}

func (r *reporter) diagnostics(errs []*diagnostics.DiagnosticError) {
	for _, e := range errs {
		r.error(e)
	}
}

func (r *reporter) error(err error) {
	var de *diagnostics.DiagnosticError
	var trap *vm.Trap
	switch {
	case errors.As(err, &de):
		fmt.Fprintln(r.out, r.paint(colorRed+colorBold, de.Error()))
		r.excerpt(de.Line(), de.Token.Column)
	case errors.As(err, &trap):
		fmt.Fprintln(r.out, r.paint(colorRed+colorBold, "runtime error: "+trap.Error()))
		r.excerpt(trap.Line, 0)
	default:
		fmt.Fprintf(r.out, "watc: %s\n", err)
	}
}

// excerpt prints source line n and, when column is known, a caret under it.
func (r *reporter) excerpt(n, column int) {
	lines := strings.Split(r.source, "\n")
	if n < 1 || n > len(lines) {
		return
	}
	text := strings.TrimRight(lines[n-1], "\r")
	gutter := fmt.Sprintf("%4d | ", n)
	fmt.Fprintf(r.out, "%s%s\n", gutter, text)
	runes := []rune(text)
	if column > 0 && column <= len(runes)+1 {
		pad := strings.Repeat(" ", len(gutter)-2) + "| "
		for _, ch := range runes[:column-1] {
			if ch == '\t' {
				pad += "\t"
			} else {
				pad += " "
			}
		}
		fmt.Fprintln(r.out, pad+r.paint(colorRed, "^"))
	}
}
