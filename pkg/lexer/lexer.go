package lexer

import (
	"unicode"

	"github.com/xplshn/gsm/pkg/config"
	"github.com/xplshn/gsm/pkg/token"
)

type Lexer struct {
	source    []rune
	fileIndex int
	pos       int
	line      int
	column    int
	cfg       *config.Config
}

func NewLexer(source []rune, fileIndex int, cfg *config.Config) *Lexer {
	return &Lexer{
		source: source, fileIndex: fileIndex, line: 1, column: 1, cfg: cfg,
	}
}

// Tokenize lexes src in one go. The result always ends with an EOF token,
// so an empty or blank src yields a single-element slice.
func Tokenize(src string, cfg *config.Config) []token.Token {
	l := NewLexer([]rune(src), 0, cfg)
	var toks []token.Token
	for {
		tok := l.Next()
		toks = append(toks, tok)
		if tok.Type == token.EOF {
			return toks
		}
	}
}

// Next returns the next token. It never fails: every non-space rune that is
// not part of a word becomes a one-rune token.
func (l *Lexer) Next() token.Token {
	for {
		l.skipWhitespace()
		startPos, startCol, startLine := l.pos, l.column, l.line

		if l.isAtEnd() {
			return l.makeToken(token.EOF, startPos, startCol, startLine)
		}

		if l.peek() == '/' && l.peekNext() == '/' && l.cfg.IsFeatureEnabled(config.FeatComments) {
			l.lineComment()
			continue
		}

		ch := l.peek()
		if isWordRune(ch) {
			return l.word(startPos, startCol, startLine)
		}

		l.advance()
		tokType, ok := token.PunctMap[ch]
		if !ok {
			tokType = token.Other
		}
		return l.makeToken(tokType, startPos, startCol, startLine)
	}
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

func (l *Lexer) peek() rune {
	if l.isAtEnd() {
		return 0
	}
	return l.source[l.pos]
}

func (l *Lexer) peekNext() rune {
	if l.pos+1 >= len(l.source) {
		return 0
	}
	return l.source[l.pos+1]
}

func (l *Lexer) advance() rune {
	if l.isAtEnd() {
		return 0
	}
	ch := l.source[l.pos]
	if ch == '\n' {
		l.line++
		l.column = 1
	} else {
		l.column++
	}
	l.pos++
	return ch
}

func (l *Lexer) isAtEnd() bool { return l.pos >= len(l.source) }

func (l *Lexer) makeToken(tokType token.Type, startPos, startCol, startLine int) token.Token {
	tok := token.Token{
		Type: tokType, FileIndex: l.fileIndex,
		Line: startLine, Column: startCol, Len: l.pos - startPos,
	}
	if tokType != token.EOF {
		tok.Value = string(l.source[startPos:l.pos])
	}
	return tok
}

func (l *Lexer) skipWhitespace() {
	for !l.isAtEnd() && unicode.IsSpace(l.peek()) {
		l.advance()
	}
}

func (l *Lexer) lineComment() {
	for !l.isAtEnd() && l.peek() != '\n' {
		l.advance()
	}
}

// word consumes a maximal letters/digits/underscore run. Runs starting with
// a digit are numbers even when letters follow; the parser rejects those.
func (l *Lexer) word(startPos, startCol, startLine int) token.Token {
	tokType := token.Ident
	if unicode.IsDigit(l.peek()) {
		tokType = token.Number
	}
	for isWordRune(l.peek()) {
		l.advance()
	}
	return l.makeToken(tokType, startPos, startCol, startLine)
}
