package parser

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xplshn/gsm/pkg/ast"
	"github.com/xplshn/gsm/pkg/config"
	"github.com/xplshn/gsm/pkg/lexer"
	"github.com/xplshn/gsm/pkg/token"
	"github.com/xplshn/gsm/pkg/util"
)

// show renders a statement as an s-expression.
func show(n *ast.Node) string {
	switch d := n.Data.(type) {
	case ast.NumberNode:
		return fmt.Sprint(d.Value)
	case ast.NegLiteralNode:
		return fmt.Sprintf("lit(%d)", d.Value)
	case ast.IdentNode:
		return d.Name
	case ast.SubscriptNode:
		return fmt.Sprintf("%s[%s]", d.Name, show(d.Index))
	case ast.NegNode:
		return fmt.Sprintf("(neg %s)", show(d.Expr))
	case ast.BinaryOpNode:
		ops := map[token.Type]string{token.Plus: "+", token.Minus: "-", token.Star: "*", token.Slash: "/"}
		return fmt.Sprintf("(%s %s %s)", ops[d.Op], show(d.Left), show(d.Right))
	case ast.AssignNode:
		target := d.Name
		if d.Index != nil {
			target = fmt.Sprintf("%s[%s]", d.Name, show(d.Index))
		}
		return fmt.Sprintf("%s := %s", target, show(d.Rhs))
	}
	return "?"
}

func parse(t *testing.T, src string, cfg *config.Config) ([]*ast.Node, *Parser, error) {
	t.Helper()
	p := NewParser(lexer.Tokenize(src, cfg), cfg)
	stmts, err := p.Parse()
	return stmts, p, err
}

func TestParse(t *testing.T) {
	tests := []struct {
		src  string
		want []string
	}{
		{"X = 5", []string{"X := 5"}},
		{"A=B+3*C", []string{"A := (+ B (* 3 C))"}},
		{"A=1-2-3", []string{"A := (- (- 1 2) 3)"}},
		{"A=8/4/2", []string{"A := (/ (/ 8 4) 2)"}},
		{"A=-5", []string{"A := lit(-5)"}},
		{"A=-5+B", []string{"A := (+ lit(-5) B)"}},
		{"A=-B*C", []string{"A := (neg (* B C))"}},
		{"A=-B-C", []string{"A := (- (neg B) C)"}},
		{"A=B[I+1]", []string{"A := B[(+ I 1)]"}},
		{"T[2*I]=X[Y[0]]", []string{"T[(* 2 I)] := X[Y[0]]"}},
		{"A=1 B=A", []string{"A := 1", "B := A"}},
		{"A=1;B=2;", []string{"A := 1", "B := 2"}},
		{"7=1", []string{"7 := 1"}},
		{"A=-9223372036854775808", []string{"A := lit(-9223372036854775808)"}},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			stmts, _, err := parse(t, tt.src, config.NewConfig())
			if err != nil {
				t.Fatalf("Parse(%q): %v", tt.src, err)
			}
			var got []string
			for _, s := range stmts {
				got = append(got, show(s))
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Parse(%q) mismatch (-want +got):\n%s", tt.src, diff)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		src  string
		kind util.ErrorKind
		msg  string
	}{
		{"A=", util.InvalidToken, "invalid token 'end of input'"},
		{"A", util.UnexpectedToken, "expected '=', got 'end of input'"},
		{"A 1", util.UnexpectedToken, "expected '=', got '1'"},
		{"=1", util.InvalidToken, "invalid token '='"},
		{"A[1=2", util.UnexpectedToken, "expected ']', got '='"},
		{"A=B[1", util.UnexpectedToken, "expected ']', got 'end of input'"},
		{"A=(1)", util.InvalidToken, "invalid token '('"},
		{"A=-5*2", util.InvalidToken, "invalid token '*'"},
		{"A=1 2", util.UnexpectedToken, "expected '=', got 'end of input'"},
		{"A=--5", util.InvalidToken, "invalid token '-'"},
		{"A=9abc", util.InvalidNumber, "invalid number literal '9abc': not a decimal integer"},
		{"A=9223372036854775808", util.InvalidNumber, "invalid number literal '9223372036854775808': out of range"},
		{"A=-9223372036854775809", util.InvalidNumber, "invalid number literal '9223372036854775809': out of range"},
		{"A=99999999999999999999", util.InvalidNumber, "invalid number literal '99999999999999999999': out of range"},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			stmts, _, err := parse(t, tt.src, config.NewConfig())
			if err == nil {
				t.Fatalf("Parse(%q) succeeded with %d statements, want error", tt.src, len(stmts))
			}
			if stmts != nil {
				t.Errorf("Parse(%q) returned statements alongside an error", tt.src)
			}
			se, ok := util.AsSyntaxError(err)
			if !ok {
				t.Fatalf("Parse(%q) error %T is not a SyntaxError", tt.src, err)
			}
			if se.Kind != tt.kind {
				t.Errorf("kind = %d, want %d", se.Kind, tt.kind)
			}
			if se.Error() != tt.msg {
				t.Errorf("message = %q, want %q", se.Error(), tt.msg)
			}
		})
	}
}

func TestEmptyProgram(t *testing.T) {
	cfg := config.NewConfig()
	stmts, p, err := parse(t, "  \n", cfg)
	if err != nil || len(stmts) != 0 {
		t.Fatalf("allow-empty: got %v, %v", stmts, err)
	}
	if d := p.Diagnostics(); len(d) != 1 || d[0].Warning != config.WarnEmpty {
		t.Errorf("expected one empty warning, got %+v", d)
	}

	if err := cfg.ApplyStd("ref"); err != nil {
		t.Fatal(err)
	}
	_, _, err = parse(t, "", cfg)
	se, ok := util.AsSyntaxError(err)
	if !ok || se.Kind != util.EmptyProgram {
		t.Errorf("ref: got %v, want EmptyProgram", err)
	}
}

func TestSemicolonsUnderRef(t *testing.T) {
	cfg := config.NewConfig()
	if err := cfg.ApplyStd("ref"); err != nil {
		t.Fatal(err)
	}
	_, _, err := parse(t, "A=1;B=2", cfg)
	if err == nil || err.Error() != "invalid token ';'" {
		t.Errorf("got %v, want invalid token ';'", err)
	}
}

func TestSemicolonWarning(t *testing.T) {
	cfg := config.NewConfig()
	cfg.SetWarning(config.WarnSemicolon, true)
	_, p, err := parse(t, "A=1;", cfg)
	if err != nil {
		t.Fatal(err)
	}
	d := p.Diagnostics()
	if len(d) != 1 || !strings.Contains(d[0].Msg, "';'") {
		t.Errorf("diagnostics = %+v", d)
	}
	if d[0].Tok.Column != 4 {
		t.Errorf("warning column = %d, want 4", d[0].Tok.Column)
	}
}

func TestFoldNegLiteralDisabled(t *testing.T) {
	cfg := config.NewConfig()
	cfg.SetFeature(config.FeatFoldNegLiteral, false)
	stmts, _, err := parse(t, "A=-5*2", cfg)
	if err != nil {
		t.Fatal(err)
	}
	if got := show(stmts[0]); got != "A := (neg (* 5 2))" {
		t.Errorf("got %s", got)
	}
}

func TestErrorPosition(t *testing.T) {
	_, _, err := parse(t, "A = 1\nB = * 2", config.NewConfig())
	se, ok := util.AsSyntaxError(err)
	if !ok {
		t.Fatalf("got %v", err)
	}
	if se.Tok.Line != 2 || se.Tok.Column != 5 {
		t.Errorf("position = %d:%d, want 2:5", se.Tok.Line, se.Tok.Column)
	}
}
