package lexer

import "github.com/funvibe/watc/internal/token"

// TokenStream lazily pulls tokens from a Lexer and buffers them so the
// sequence can be peeked into and restarted from the first token.
type TokenStream struct {
	lexer  *Lexer
	tokens []token.Token
	pos    int
	done   bool
}

// Tokenize returns a stream over src. No token is produced until requested.
func Tokenize(src string) *TokenStream {
	return &TokenStream{lexer: New(src)}
}

func (s *TokenStream) fill(n int) {
	for !s.done && len(s.tokens) <= n {
		tok := s.lexer.NextToken()
		s.tokens = append(s.tokens, tok)
		if tok.Type == token.EOF {
			s.done = true
		}
	}
}

func (s *TokenStream) at(i int) token.Token {
	s.fill(i)
	if i < len(s.tokens) {
		return s.tokens[i]
	}
	return s.tokens[len(s.tokens)-1] // EOF
}

// Next returns the current token and advances. At the end it keeps
// returning EOF.
func (s *TokenStream) Next() token.Token {
	tok := s.at(s.pos)
	if s.pos < len(s.tokens) {
		s.pos++
	}
	return tok
}

// Peek returns the token n positions after the one Next would return.
func (s *TokenStream) Peek(n int) token.Token {
	return s.at(s.pos + n)
}

func (s *TokenStream) Reset() { s.pos = 0 }

// All drains the stream from the start and returns every token including
// the final EOF. The stream is rewound afterwards.
func (s *TokenStream) All() []token.Token {
	s.Reset()
	var out []token.Token
	for {
		tok := s.Next()
		out = append(out, tok)
		if tok.Type == token.EOF {
			break
		}
	}
	s.Reset()
	return out
}
