package ast

import (
	"errors"
	"math"
	"testing"

	"github.com/xplshn/gsm/pkg/token"
)

func num(v int64) *Node { return NewNumber(token.Token{Type: token.Number}, v) }

func bin(op token.Type, l, r *Node) *Node { return NewBinaryOp(token.Token{Type: op}, op, l, r) }

func TestConstantValue(t *testing.T) {
	if v, ok := ConstantValue(num(4)); !ok || v != 4 {
		t.Errorf("Number: got %d, %v", v, ok)
	}
	if v, ok := ConstantValue(NewNegLiteral(token.Token{}, -4)); !ok || v != -4 {
		t.Errorf("NegLiteral: got %d, %v", v, ok)
	}
	if _, ok := ConstantValue(NewIdent(token.Token{}, "A")); ok {
		t.Errorf("Ident must not be constant")
	}
	if _, ok := ConstantValue(nil); ok {
		t.Errorf("nil must not be constant")
	}
}

func TestFoldConstants(t *testing.T) {
	tests := []struct {
		name string
		in   *Node
		want int64
	}{
		{"add", bin(token.Plus, num(2), num(3)), 5},
		{"nested", bin(token.Star, bin(token.Minus, num(10), num(4)), num(2)), 12},
		{"division truncates", bin(token.Slash, num(-7), num(2)), -3},
		{"negation", NewNeg(token.Token{}, bin(token.Plus, num(1), num(1))), -2},
		{"neg literal operand", bin(token.Plus, NewNegLiteral(token.Token{}, -5), num(1)), -4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FoldConstants(tt.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			d, isNum := got.Data.(NumberNode)
			if !isNum || d.Value != tt.want {
				t.Errorf("got %#v, want Number %d", got.Data, tt.want)
			}
		})
	}
}

func TestFoldKeepsVariables(t *testing.T) {
	in := bin(token.Plus, NewIdent(token.Token{}, "A"), bin(token.Star, num(2), num(3)))
	got, err := FoldConstants(in)
	if err != nil {
		t.Fatal(err)
	}
	d := got.Data.(BinaryOpNode)
	if _, isIdent := d.Left.Data.(IdentNode); !isIdent {
		t.Errorf("left operand changed: %#v", d.Left.Data)
	}
	if v, _ := ConstantValue(d.Right); v != 6 {
		t.Errorf("right operand = %d, want 6", v)
	}
}

func TestFoldAssign(t *testing.T) {
	stmt := NewAssign(token.Token{}, "T", bin(token.Plus, num(1), num(1)), bin(token.Star, num(4), num(5)))
	got, err := FoldConstants(stmt)
	if err != nil {
		t.Fatal(err)
	}
	d := got.Data.(AssignNode)
	if v, _ := ConstantValue(d.Index); v != 2 {
		t.Errorf("index = %d, want 2", v)
	}
	if v, _ := ConstantValue(d.Rhs); v != 20 {
		t.Errorf("rhs = %d, want 20", v)
	}
}

func TestFoldDivisionByZero(t *testing.T) {
	div := bin(token.Slash, num(1), num(0))
	stmt := NewAssign(token.Token{}, "A", nil, bin(token.Plus, NewIdent(token.Token{}, "B"), div))
	_, err := FoldConstants(stmt)
	var fe *FoldError
	if !errors.As(err, &fe) {
		t.Fatalf("got %v, want a FoldError", err)
	}
	if fe.Overflow {
		t.Errorf("division by zero reported as overflow")
	}
	if fe.Node != div {
		t.Errorf("offending node = %#v, want the division", fe.Node.Data)
	}
}

func TestFoldOverflow(t *testing.T) {
	tests := []struct {
		name string
		in   *Node
	}{
		{"add", bin(token.Plus, num(math.MaxInt64), num(1))},
		{"add negative", bin(token.Plus, num(math.MinInt64), num(-1))},
		{"sub", bin(token.Minus, num(math.MinInt64), num(1))},
		{"sub negative", bin(token.Minus, num(math.MaxInt64), num(-1))},
		{"mul", bin(token.Star, num(math.MaxInt64/2+1), num(2))},
		{"mul min by minus one", bin(token.Star, num(math.MinInt64), num(-1))},
		{"mul minus one by min", bin(token.Star, num(-1), num(math.MinInt64))},
		{"div min by minus one", bin(token.Slash, num(math.MinInt64), num(-1))},
		{"negate min", NewNeg(token.Token{}, num(math.MinInt64))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FoldConstants(tt.in)
			var fe *FoldError
			if !errors.As(err, &fe) || !fe.Overflow {
				t.Fatalf("got %v, want an overflow", err)
			}
			if fe.Node != tt.in {
				t.Errorf("offending node = %#v", fe.Node.Data)
			}
		})
	}
}

func TestFoldAtInt64Bounds(t *testing.T) {
	tests := []struct {
		name string
		in   *Node
		want int64
	}{
		{"max minus one plus one", bin(token.Plus, num(math.MaxInt64-1), num(1)), math.MaxInt64},
		{"min plus zero", bin(token.Plus, num(math.MinInt64), num(0)), math.MinInt64},
		{"min times one", bin(token.Star, num(math.MinInt64), num(1)), math.MinInt64},
		{"min divided by one", bin(token.Slash, num(math.MinInt64), num(1)), math.MinInt64},
		{"zero times min", bin(token.Star, num(0), num(math.MinInt64)), 0},
		{"negate max", NewNeg(token.Token{}, num(math.MaxInt64)), -math.MaxInt64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FoldConstants(tt.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if v, _ := ConstantValue(got); v != tt.want {
				t.Errorf("got %d, want %d", v, tt.want)
			}
		})
	}
}
