package token

import "fmt"

type TokenType string

const (
	ILLEGAL TokenType = "ILLEGAL"
	EOF     TokenType = "EOF"

	IDENT TokenType = "IDENT"
	INT   TokenType = "INT"
	FLOAT TokenType = "FLOAT"

	// Operators
	ASSIGN   TokenType = "="
	PLUS     TokenType = "+"
	MINUS    TokenType = "-"
	ASTERISK TokenType = "*"
	SLASH    TokenType = "/"
	PERCENT  TokenType = "%"
	BANG     TokenType = "!"

	PLUS_ASSIGN     TokenType = "+="
	MINUS_ASSIGN    TokenType = "-="
	ASTERISK_ASSIGN TokenType = "*="
	SLASH_ASSIGN    TokenType = "/="
	PERCENT_ASSIGN  TokenType = "%="

	EQ     TokenType = "=="
	NOT_EQ TokenType = "!="
	LT     TokenType = "<"
	GT     TokenType = ">"
	LTE    TokenType = "<="
	GTE    TokenType = ">="

	AND TokenType = "&&"
	OR  TokenType = "||"

	// Delimiters
	COMMA     TokenType = ","
	SEMICOLON TokenType = ";"
	LPAREN    TokenType = "("
	RPAREN    TokenType = ")"
	LBRACE    TokenType = "{"
	RBRACE    TokenType = "}"

	// Keywords
	LET      TokenType = "LET"
	CONST    TokenType = "CONST"
	FUNCTION TokenType = "FUNCTION"
	IF       TokenType = "IF"
	ELSE     TokenType = "ELSE"
	WHILE    TokenType = "WHILE"
	FOR      TokenType = "FOR"
	BREAK    TokenType = "BREAK"
	CONTINUE TokenType = "CONTINUE"
	RETURN   TokenType = "RETURN"
)

var keywords = map[string]TokenType{
	"let":      LET,
	"const":    CONST,
	"function": FUNCTION,
	"if":       IF,
	"else":     ELSE,
	"while":    WHILE,
	"for":      FOR,
	"break":    BREAK,
	"continue": CONTINUE,
	"return":   RETURN,
}

// LookupIdent returns the keyword type for ident, or IDENT.
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return IDENT
}

// Token is a single lexical unit. Literal holds int32 for INT, float32 for
// FLOAT, a description of the lexical error for ILLEGAL and the lexeme
// otherwise.
type Token struct {
	Type    TokenType
	Lexeme  string
	Literal any
	Line    int
	Column  int
}

// Describe renders the token for "expected X, got Y" messages.
func (t Token) Describe() string {
	switch t.Type {
	case EOF:
		return "end of input"
	case IDENT:
		return fmt.Sprintf("identifier %q", t.Lexeme)
	case INT, FLOAT:
		return fmt.Sprintf("number %s", t.Lexeme)
	case ILLEGAL:
		return fmt.Sprintf("illegal token %q", t.Lexeme)
	}
	return fmt.Sprintf("%q", t.Lexeme)
}

// DescribeType renders a token type the way Describe renders a token.
func DescribeType(t TokenType) string {
	switch t {
	case EOF:
		return "end of input"
	case IDENT:
		return "identifier"
	case INT, FLOAT:
		return "number"
	}
	for word, kw := range keywords {
		if kw == t {
			return fmt.Sprintf("%q", word)
		}
	}
	return fmt.Sprintf("%q", string(t))
}
