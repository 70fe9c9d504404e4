package vm

import (
	"fmt"
	"strconv"
	"strings"
)

// sexpr is one parsed WAT item: an atom, a string or a parenthesized list.
type sexpr struct {
	atom   string
	str    bool
	list   []*sexpr
	isList bool
	line   int // line in the WAT text
	src    int // source line from the last `;; line N` comment
}

func (s *sexpr) head() string {
	if !s.isList || len(s.list) == 0 || s.list[0].isList {
		return ""
	}
	return s.list[0].atom
}

func (s *sexpr) String() string {
	if !s.isList {
		if s.str {
			return strconv.Quote(s.atom)
		}
		return s.atom
	}
	parts := make([]string, len(s.list))
	for i, item := range s.list {
		parts[i] = item.String()
	}
	return "(" + strings.Join(parts, " ") + ")"
}

// reader splits WAT text into s-expressions.
type reader struct {
	input string
	pos   int
	line  int
	src   int
}

func (r *reader) errorf(format string, args ...any) error {
	return fmt.Errorf("wat line %d: %s", r.line, fmt.Sprintf(format, args...))
}

// skip consumes whitespace and comments. A `;; line N` comment updates the
// current source line.
func (r *reader) skip() error {
	for r.pos < len(r.input) {
		c := r.input[r.pos]
		switch {
		case c == '\n':
			r.line++
			r.pos++
		case c == ' ' || c == '\t' || c == '\r':
			r.pos++
		case strings.HasPrefix(r.input[r.pos:], ";;"):
			end := strings.IndexByte(r.input[r.pos:], '\n')
			if end < 0 {
				end = len(r.input) - r.pos
			}
			r.lineComment(r.input[r.pos+2 : r.pos+end])
			r.pos += end
		case strings.HasPrefix(r.input[r.pos:], "(;"):
			end := strings.Index(r.input[r.pos:], ";)")
			if end < 0 {
				return r.errorf("unterminated block comment")
			}
			r.line += strings.Count(r.input[r.pos:r.pos+end], "\n")
			r.pos += end + 2
		default:
			return nil
		}
	}
	return nil
}

func (r *reader) lineComment(text string) {
	fields := strings.Fields(text)
	if len(fields) == 2 && fields[0] == "line" {
		if n, err := strconv.Atoi(fields[1]); err == nil {
			r.src = n
		}
	}
}

func (r *reader) next() (*sexpr, error) {
	if err := r.skip(); err != nil {
		return nil, err
	}
	if r.pos >= len(r.input) {
		return nil, r.errorf("unexpected end of input")
	}

	item := &sexpr{line: r.line, src: r.src}
	switch c := r.input[r.pos]; c {
	case '(':
		r.pos++
		item.isList = true
		for {
			if err := r.skip(); err != nil {
				return nil, err
			}
			if r.pos >= len(r.input) {
				return nil, r.errorf("unclosed '(' opened at line %d", item.line)
			}
			if r.input[r.pos] == ')' {
				r.pos++
				return item, nil
			}
			child, err := r.next()
			if err != nil {
				return nil, err
			}
			item.list = append(item.list, child)
		}
	case ')':
		return nil, r.errorf("unexpected ')'")
	case '"':
		end := strings.IndexByte(r.input[r.pos+1:], '"')
		if end < 0 {
			return nil, r.errorf("unterminated string")
		}
		item.atom = r.input[r.pos+1 : r.pos+1+end]
		item.str = true
		r.pos += end + 2
		return item, nil
	}

	start := r.pos
	for r.pos < len(r.input) && !strings.ContainsRune(" \t\r\n();\"", rune(r.input[r.pos])) {
		r.pos++
	}
	item.atom = r.input[start:r.pos]
	return item, nil
}

// parseModule reads the single top-level (module ...) form.
func parseModule(text string) (*sexpr, error) {
	r := &reader{input: text, line: 1}
	mod, err := r.next()
	if err != nil {
		return nil, err
	}
	if mod.head() != "module" {
		return nil, fmt.Errorf("wat line %d: expected (module ...)", mod.line)
	}
	if err := r.skip(); err != nil {
		return nil, err
	}
	if r.pos < len(r.input) {
		return nil, r.errorf("trailing input after module")
	}
	return mod, nil
}
