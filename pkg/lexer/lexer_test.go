package lexer

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/xplshn/gsm/pkg/config"
	"github.com/xplshn/gsm/pkg/token"
)

func tok(typ token.Type, value string) token.Token {
	return token.Token{Type: typ, Value: value}
}

var ignorePos = cmpopts.IgnoreFields(token.Token{}, "FileIndex", "Line", "Column", "Len")

func TestTokenize(t *testing.T) {
	cfg := config.NewConfig()
	tests := []struct {
		name string
		src  string
		want []token.Token
	}{
		{"empty", "", []token.Token{tok(token.EOF, "")}},
		{"blank", " \t\n\r ", []token.Token{tok(token.EOF, "")}},
		{"assignment", "A=B+3*C", []token.Token{
			tok(token.Ident, "A"), tok(token.Eq, "="), tok(token.Ident, "B"), tok(token.Plus, "+"),
			tok(token.Number, "3"), tok(token.Star, "*"), tok(token.Ident, "C"), tok(token.EOF, ""),
		}},
		{"indexed", "x_1[ 10 ] = -y / 2;", []token.Token{
			tok(token.Ident, "x_1"), tok(token.LBracket, "["), tok(token.Number, "10"), tok(token.RBracket, "]"),
			tok(token.Eq, "="), tok(token.Minus, "-"), tok(token.Ident, "y"), tok(token.Slash, "/"),
			tok(token.Number, "2"), tok(token.Semi, ";"), tok(token.EOF, ""),
		}},
		{"digit-led word is one number", "9abc", []token.Token{tok(token.Number, "9abc"), tok(token.EOF, "")}},
		{"unknown punctuation", "A=(1)", []token.Token{
			tok(token.Ident, "A"), tok(token.Eq, "="), tok(token.Other, "("), tok(token.Number, "1"),
			tok(token.Other, ")"), tok(token.EOF, ""),
		}},
		{"unicode letters", "größe=1", []token.Token{
			tok(token.Ident, "größe"), tok(token.Eq, "="), tok(token.Number, "1"), tok(token.EOF, ""),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.src, cfg)
			if diff := cmp.Diff(tt.want, got, ignorePos); diff != "" {
				t.Errorf("Tokenize(%q) mismatch (-want +got):\n%s", tt.src, diff)
			}
		})
	}
}

func TestCommentsAreOptIn(t *testing.T) {
	cfg := config.NewConfig()

	got := Tokenize("//", cfg)
	want := []token.Token{tok(token.Slash, "/"), tok(token.Slash, "/"), tok(token.EOF, "")}
	if diff := cmp.Diff(want, got, ignorePos); diff != "" {
		t.Errorf("default: mismatch (-want +got):\n%s", diff)
	}

	cfg.SetFeature(config.FeatComments, true)
	got = Tokenize("A=1 // B=2\nC=3", cfg)
	want = []token.Token{
		tok(token.Ident, "A"), tok(token.Eq, "="), tok(token.Number, "1"),
		tok(token.Ident, "C"), tok(token.Eq, "="), tok(token.Number, "3"), tok(token.EOF, ""),
	}
	if diff := cmp.Diff(want, got, ignorePos); diff != "" {
		t.Errorf("-Fcomments: mismatch (-want +got):\n%s", diff)
	}
}

func TestPositions(t *testing.T) {
	got := Tokenize("A = 1\n  Bc=2", config.NewConfig())
	type pos struct{ Line, Column, Len int }
	var positions []pos
	for _, tk := range got {
		positions = append(positions, pos{tk.Line, tk.Column, tk.Len})
	}
	want := []pos{{1, 1, 1}, {1, 3, 1}, {1, 5, 1}, {2, 3, 2}, {2, 5, 1}, {2, 6, 1}, {2, 7, 0}}
	if diff := cmp.Diff(want, positions); diff != "" {
		t.Errorf("positions mismatch (-want +got):\n%s", diff)
	}
}

func TestFileIndex(t *testing.T) {
	l := NewLexer([]rune("A"), 3, config.NewConfig())
	if tk := l.Next(); tk.FileIndex != 3 {
		t.Errorf("FileIndex = %d, want 3", tk.FileIndex)
	}
}
