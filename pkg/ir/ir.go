package ir

import (
	"strconv"
	"strings"
)

type Op int

const (
	OpLit Op = iota
	OpLoad
	OpStore
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpNeg
)

var opNames = [...]string{
	OpLit:   "LIT",
	OpLoad:  "LOAD",
	OpStore: "STORE",
	OpAdd:   "ADD",
	OpSub:   "SUB",
	OpMul:   "MUL",
	OpDiv:   "DIV",
	OpNeg:   "NEG",
}

func (op Op) String() string {
	if op >= 0 && int(op) < len(opNames) {
		return opNames[op]
	}
	return "Op(" + strconv.Itoa(int(op)) + ")"
}

// Pops and Pushes describe an opcode's effect on the evaluation stack.
func (op Op) Pops() int {
	switch op {
	case OpLit:
		return 0
	case OpLoad, OpNeg:
		return 1
	}
	return 2
}

func (op Op) Pushes() int {
	if op == OpStore {
		return 0
	}
	return 1
}

// Value is the operand of a LIT instruction.
type Value interface {
	isValue()
	String() string
}

// Const is an integer literal.
type Const struct{ Value int64 }

// Name is a variable name used as an address.
type Name struct{ Name string }

func (c *Const) isValue() {}
func (n *Name) isValue()  {}

func (c *Const) String() string { return strconv.FormatInt(c.Value, 10) }
func (n *Name) String() string  { return n.Name }

type Instruction struct {
	Op      Op
	Operand Value
}

func (in Instruction) String() string {
	if in.Operand == nil {
		return in.Op.String()
	}
	return in.Op.String() + " " + in.Operand.String()
}

// Program is the emitted instruction sequence. It only grows: Emit appends
// and nothing rewrites an instruction once emitted.
type Program struct {
	instrs []Instruction
}

func (p *Program) Emit(op Op, operand Value) {
	p.instrs = append(p.instrs, Instruction{Op: op, Operand: operand})
}

// Len returns the number of emitted instructions.
func (p *Program) Len() int { return len(p.instrs) }

// Instructions returns a copy of the emitted sequence.
func (p *Program) Instructions() []Instruction {
	out := make([]Instruction, len(p.instrs))
	copy(out, p.instrs)
	return out
}

// Append emits every instruction of other after those already in p.
func (p *Program) Append(other *Program) {
	p.instrs = append(p.instrs, other.instrs...)
}

// Lines renders one mnemonic per instruction.
func (p *Program) Lines() []string {
	lines := make([]string, len(p.instrs))
	for i, in := range p.instrs {
		lines[i] = in.String()
	}
	return lines
}

// String joins the mnemonics with single spaces.
func (p *Program) String() string { return strings.Join(p.Lines(), " ") }

// Names lists the distinct LIT name operands in order of first use.
func (p *Program) Names() []string {
	seen := make(map[string]bool)
	var names []string
	for _, in := range p.instrs {
		if n, ok := in.Operand.(*Name); ok && !seen[n.Name] {
			seen[n.Name] = true
			names = append(names, n.Name)
		}
	}
	return names
}
