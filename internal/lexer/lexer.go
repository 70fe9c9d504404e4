package lexer

import (
	"errors"
	"fmt"
	"strconv"
	"unicode"
	"unicode/utf8"

	"github.com/funvibe/watc/internal/diagnostics"
	"github.com/funvibe/watc/internal/token"
)

// Illegal is the Literal payload of an ILLEGAL token.
type Illegal struct {
	Code    diagnostics.ErrorCode
	Message string
}

type Lexer struct {
	input        string
	position     int  // current position in input (points to current char)
	readPosition int  // current reading position in input (after current char)
	ch           rune // current char under examination
	line         int  // current line number
	column       int  // current column number
}

func New(input string) *Lexer {
	l := &Lexer{input: input, line: 1, column: 0}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.column = 0
	}

	l.position = l.readPosition
	if l.readPosition >= len(l.input) {
		l.ch = 0
		l.readPosition = len(l.input) + 1
		return
	}
	r, w := utf8.DecodeRuneInString(l.input[l.readPosition:])
	l.ch = r
	l.readPosition += w
	l.column++
}

func (l *Lexer) atEOF() bool { return l.position >= len(l.input) }

func (l *Lexer) peekChar() rune {
	if l.readPosition >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPosition:])
	return r
}

func (l *Lexer) peekChar2() rune {
	if l.readPosition >= len(l.input) {
		return 0
	}
	_, w := utf8.DecodeRuneInString(l.input[l.readPosition:])
	pos2 := l.readPosition + w
	if pos2 >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[pos2:])
	return r
}

// NextToken returns the next token. After the end of input it keeps
// returning EOF.
func (l *Lexer) NextToken() token.Token {
	if tok, ok := l.skipWhitespace(); !ok {
		return tok
	}

	if l.atEOF() {
		return token.Token{Type: token.EOF, Line: l.line, Column: l.column}
	}

	line, col := l.line, l.column
	var tok token.Token

	switch l.ch {
	case '=':
		tok = l.either('=', token.EQ, token.ASSIGN)
	case '!':
		tok = l.either('=', token.NOT_EQ, token.BANG)
	case '<':
		tok = l.either('=', token.LTE, token.LT)
	case '>':
		tok = l.either('=', token.GTE, token.GT)
	case '+':
		tok = l.either('=', token.PLUS_ASSIGN, token.PLUS)
	case '-':
		tok = l.either('=', token.MINUS_ASSIGN, token.MINUS)
	case '*':
		tok = l.either('=', token.ASTERISK_ASSIGN, token.ASTERISK)
	case '/':
		tok = l.either('=', token.SLASH_ASSIGN, token.SLASH)
	case '%':
		tok = l.either('=', token.PERCENT_ASSIGN, token.PERCENT)
	case '&':
		if l.peekChar() != '&' {
			return l.illegal(diagnostics.ErrL001, "unexpected character '&' (did you mean '&&'?)")
		}
		tok = l.either('&', token.AND, token.ILLEGAL)
	case '|':
		if l.peekChar() != '|' {
			return l.illegal(diagnostics.ErrL001, "unexpected character '|' (did you mean '||'?)")
		}
		tok = l.either('|', token.OR, token.ILLEGAL)
	case ',':
		tok = newToken(token.COMMA, l.ch, line, col)
	case ';':
		tok = newToken(token.SEMICOLON, l.ch, line, col)
	case '(':
		tok = newToken(token.LPAREN, l.ch, line, col)
	case ')':
		tok = newToken(token.RPAREN, l.ch, line, col)
	case '{':
		tok = newToken(token.LBRACE, l.ch, line, col)
	case '}':
		tok = newToken(token.RBRACE, l.ch, line, col)
	case '.':
		if isDigit(l.peekChar()) {
			return l.readNumber()
		}
		return l.illegal(diagnostics.ErrL001, "unexpected character '.'")
	default:
		if isLetter(l.ch) {
			ident := l.readIdentifier()
			return token.Token{Type: token.LookupIdent(ident), Lexeme: ident, Literal: ident, Line: line, Column: col}
		}
		if isDigit(l.ch) {
			return l.readNumber()
		}
		return l.illegal(diagnostics.ErrL001, fmt.Sprintf("unexpected character %q", l.ch))
	}

	l.readChar()
	return tok
}

// either builds a two-character token when the next char is second, and a
// one-character token otherwise. The current char is left on the last
// character of the token.
func (l *Lexer) either(second rune, two, one token.TokenType) token.Token {
	line, col := l.line, l.column
	if l.peekChar() == second {
		first := l.ch
		l.readChar()
		lexeme := string(first) + string(second)
		return token.Token{Type: two, Lexeme: lexeme, Literal: lexeme, Line: line, Column: col}
	}
	return newToken(one, l.ch, line, col)
}

// illegal consumes the current character and returns an ILLEGAL token.
func (l *Lexer) illegal(code diagnostics.ErrorCode, msg string) token.Token {
	tok := token.Token{
		Type:    token.ILLEGAL,
		Lexeme:  string(l.ch),
		Literal: Illegal{Code: code, Message: msg},
		Line:    l.line,
		Column:  l.column,
	}
	l.readChar()
	return tok
}

func (l *Lexer) readIdentifier() string {
	position := l.position
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	return l.input[position:l.position]
}

// readNumber scans digits, an optional fraction and an optional exponent.
// The dot is taken only when it is not followed by an identifier start, and
// the exponent only when digits follow it.
func (l *Lexer) readNumber() token.Token {
	line, col := l.line, l.column
	start := l.position
	isFloat := false

	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && !isLetter(l.peekChar()) {
		isFloat = true
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	if l.ch == 'e' || l.ch == 'E' {
		next := l.peekChar()
		if isDigit(next) || ((next == '+' || next == '-') && isDigit(l.peekChar2())) {
			isFloat = true
			l.readChar() // e
			if l.ch == '+' || l.ch == '-' {
				l.readChar()
			}
			for isDigit(l.ch) {
				l.readChar()
			}
		}
	}

	lexeme := l.input[start:l.position]
	tok := token.Token{Lexeme: lexeme, Line: line, Column: col}

	if isFloat {
		v, err := strconv.ParseFloat(lexeme, 32)
		if err != nil && errors.Is(err, strconv.ErrRange) {
			return malformed(tok, fmt.Sprintf("float literal %s is out of range for f32", lexeme))
		} else if err != nil {
			return malformed(tok, fmt.Sprintf("malformed float literal %s", lexeme))
		}
		tok.Type = token.FLOAT
		tok.Literal = float32(v)
		return tok
	}

	v, err := strconv.ParseUint(lexeme, 10, 32)
	if err != nil {
		return malformed(tok, fmt.Sprintf("integer literal %s does not fit in 32 bits", lexeme))
	}
	// Values in [2^31, 2^32) wrap, as i32.const does.
	tok.Type = token.INT
	tok.Literal = int32(uint32(v))
	return tok
}

func malformed(tok token.Token, msg string) token.Token {
	tok.Type = token.ILLEGAL
	tok.Literal = Illegal{Code: diagnostics.ErrL003, Message: msg}
	return tok
}

func isLetter(ch rune) bool {
	return ch == '_' || ch == '$' || (ch < utf8.RuneSelf && unicode.IsLetter(ch))
}

func isDigit(ch rune) bool {
	return '0' <= ch && ch <= '9'
}

func newToken(tokenType token.TokenType, ch rune, line, col int) token.Token {
	literal := string(ch)
	return token.Token{Type: tokenType, Lexeme: literal, Literal: literal, Line: line, Column: col}
}

// skipWhitespace skips blanks and comments. It reports false together with
// an ILLEGAL token when a block comment is never closed.
func (l *Lexer) skipWhitespace() (token.Token, bool) {
	for {
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\r' || l.ch == '\n' || l.ch == '\f' || l.ch == '\v' {
			l.readChar()
		}
		if l.ch != '/' {
			return token.Token{}, true
		}
		switch l.peekChar() {
		case '/':
			for l.ch != '\n' && !l.atEOF() {
				l.readChar()
			}
		case '*':
			line, col := l.line, l.column
			l.readChar() // consume /
			l.readChar() // consume *
			closed := false
			for !l.atEOF() {
				if l.ch == '*' && l.peekChar() == '/' {
					l.readChar() // consume *
					l.readChar() // consume /
					closed = true
					break
				}
				l.readChar()
			}
			if !closed {
				return token.Token{
					Type:    token.ILLEGAL,
					Lexeme:  "/*",
					Literal: Illegal{Code: diagnostics.ErrL002, Message: fmt.Sprintf("unterminated block comment starting at line %d", line)},
					Line:    line,
					Column:  col,
				}, false
			}
		default:
			return token.Token{}, true
		}
	}
}
