// Package ast defines the syntax tree produced by the parser.
package ast

import (
	"math"

	"github.com/xplshn/gsm/pkg/token"
)

// NodeType defines the kind of a node in the AST
type NodeType int

const (
	// Expressions
	Number NodeType = iota
	NegLiteral
	Ident
	Subscript
	BinaryOp
	Neg

	// Statements
	Assign
)

// Node represents a node in the Abstract Syntax Tree
type Node struct {
	Type NodeType
	Tok  token.Token
	Data interface{}
}

// --- Node Data Structs ---

type NumberNode struct{ Value int64 }

// NegLiteralNode is '-' directly followed by a number; Value is already negated.
type NegLiteralNode struct{ Value int64 }
type IdentNode struct{ Name string }
type SubscriptNode struct {
	Name  string
	Index *Node
}
type BinaryOpNode struct {
	Op          token.Type
	Left, Right *Node
}

// NegNode is '-' applied to a whole term, e.g. the 'B*C' in '-B*C'.
type NegNode struct{ Expr *Node }

// AssignNode targets Name, or Name[Index] when Index is non-nil.
type AssignNode struct {
	Name  string
	Index *Node
	Rhs   *Node
}

// --- Node Constructors ---

func NewNumber(tok token.Token, value int64) *Node {
	return &Node{Type: Number, Tok: tok, Data: NumberNode{Value: value}}
}

func NewNegLiteral(tok token.Token, value int64) *Node {
	return &Node{Type: NegLiteral, Tok: tok, Data: NegLiteralNode{Value: value}}
}

func NewIdent(tok token.Token, name string) *Node {
	return &Node{Type: Ident, Tok: tok, Data: IdentNode{Name: name}}
}

func NewSubscript(tok token.Token, name string, index *Node) *Node {
	return &Node{Type: Subscript, Tok: tok, Data: SubscriptNode{Name: name, Index: index}}
}

func NewBinaryOp(tok token.Token, op token.Type, left, right *Node) *Node {
	return &Node{Type: BinaryOp, Tok: tok, Data: BinaryOpNode{Op: op, Left: left, Right: right}}
}

func NewNeg(tok token.Token, expr *Node) *Node {
	return &Node{Type: Neg, Tok: tok, Data: NegNode{Expr: expr}}
}

func NewAssign(tok token.Token, name string, index, rhs *Node) *Node {
	return &Node{Type: Assign, Tok: tok, Data: AssignNode{Name: name, Index: index, Rhs: rhs}}
}

// ConstantValue reports the value of a Number or NegLiteral node.
func ConstantValue(node *Node) (int64, bool) {
	if node == nil {
		return 0, false
	}
	switch d := node.Data.(type) {
	case NumberNode:
		return d.Value, true
	case NegLiteralNode:
		return d.Value, true
	}
	return 0, false
}

// FoldError names the node whose constant value cannot be computed.
type FoldError struct {
	Node *Node
	// Overflow is set when the result does not fit in int64; otherwise the
	// node divides by zero.
	Overflow bool
}

func (e *FoldError) Error() string {
	if e.Overflow {
		return "constant overflows int64"
	}
	return "constant division by zero"
}

// FoldConstants evaluates constant arithmetic at compile time. Folded
// results become Number nodes. A division by zero or an int64 overflow
// stops folding with a *FoldError.
func FoldConstants(node *Node) (*Node, error) {
	if node == nil {
		return nil, nil
	}

	var err error
	switch d := node.Data.(type) {
	case AssignNode:
		if d.Index, err = FoldConstants(d.Index); err != nil {
			return nil, err
		}
		if d.Rhs, err = FoldConstants(d.Rhs); err != nil {
			return nil, err
		}
		node.Data = d
	case SubscriptNode:
		if d.Index, err = FoldConstants(d.Index); err != nil {
			return nil, err
		}
		node.Data = d
	case NegNode:
		if d.Expr, err = FoldConstants(d.Expr); err != nil {
			return nil, err
		}
		node.Data = d
		if val, isConst := ConstantValue(d.Expr); isConst {
			if val == math.MinInt64 {
				return nil, &FoldError{Node: node, Overflow: true}
			}
			return NewNumber(node.Tok, -val), nil
		}
	case BinaryOpNode:
		if d.Left, err = FoldConstants(d.Left); err != nil {
			return nil, err
		}
		if d.Right, err = FoldConstants(d.Right); err != nil {
			return nil, err
		}
		node.Data = d
		l, lok := ConstantValue(d.Left)
		r, rok := ConstantValue(d.Right)
		if !lok || !rok {
			return node, nil
		}
		switch d.Op {
		case token.Plus, token.Minus, token.Star, token.Slash:
		default:
			return node, nil
		}
		res, ferr := foldBinary(d.Op, l, r)
		if ferr != nil {
			ferr.Node = node
			return nil, ferr
		}
		return NewNumber(node.Tok, res), nil
	}
	return node, nil
}

func foldBinary(op token.Type, l, r int64) (int64, *FoldError) {
	overflow := &FoldError{Overflow: true}
	switch op {
	case token.Plus:
		res := l + r
		if (r > 0 && res < l) || (r < 0 && res > l) {
			return 0, overflow
		}
		return res, nil
	case token.Minus:
		res := l - r
		if (r > 0 && res > l) || (r < 0 && res < l) {
			return 0, overflow
		}
		return res, nil
	case token.Star:
		if l == 0 || r == 0 {
			return 0, nil
		}
		res := l * r
		if res/r != l || (r == -1 && l == math.MinInt64) {
			return 0, overflow
		}
		return res, nil
	case token.Slash:
		if r == 0 {
			return 0, &FoldError{}
		}
		if l == math.MinInt64 && r == -1 {
			return 0, overflow
		}
		return l / r, nil
	}
	return 0, nil
}
