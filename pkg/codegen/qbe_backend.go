package codegen

import (
	"fmt"
	"strings"

	"github.com/xplshn/gsm/pkg/config"
	"github.com/xplshn/gsm/pkg/ir"
)

const (
	qbeMemSymbol  = "gsm_mem"
	qbeMainSymbol = "gsm_main"
)

// qbeBackend lowers the stack program to QBE IL. Memory is one flat block of
// word-sized cells; each name owns CellsPerName cells starting at its base
// cell index, and addresses on the stack are cell indices.
type qbeBackend struct {
	out   *strings.Builder
	prog  *ir.Program
	cfg   *config.Config
	bases map[string]int64
	stack []string
	temps int
}

func NewQBEBackend() Backend { return &qbeBackend{} }

// GenerateIR returns the QBE IL for prog without assembling it.
func (b *qbeBackend) GenerateIR(prog *ir.Program, cfg *config.Config) (string, error) {
	var sb strings.Builder
	b.out, b.prog, b.cfg = &sb, prog, cfg
	b.bases = make(map[string]int64)
	b.stack, b.temps = nil, 0

	cells := int64(cfg.CellsPerName)
	if cells <= 0 {
		cells = config.DefaultCellsPerName
	}
	names := prog.Names()
	for i, name := range names {
		b.bases[name] = int64(i) * cells
	}
	totalCells := int64(len(names)) * cells
	if totalCells == 0 {
		totalCells = 1
	}

	fmt.Fprintf(b.out, "# gsm: %d instructions, %d names, %d cells per name\n", prog.Len(), len(names), cells)
	for _, name := range names {
		fmt.Fprintf(b.out, "# %s = cells [%d, %d)\n", name, b.bases[name], b.bases[name]+cells)
	}
	fmt.Fprintf(b.out, "data $%s = align %d { z %d }\n", qbeMemSymbol, cfg.WordSize, totalCells*int64(cfg.WordSize))
	fmt.Fprintf(b.out, "\nexport function $%s() {\n@start\n", qbeMainSymbol)

	for i, in := range prog.Instructions() {
		if err := b.genInstr(i, in); err != nil {
			return "", err
		}
	}

	b.out.WriteString("\tret\n}\n")
	return sb.String(), nil
}

func (b *qbeBackend) newTemp() string {
	t := fmt.Sprintf("%%t%d", b.temps)
	b.temps++
	return t
}

func (b *qbeBackend) push(v string) { b.stack = append(b.stack, v) }

func (b *qbeBackend) pop() string {
	v := b.stack[len(b.stack)-1]
	b.stack = b.stack[:len(b.stack)-1]
	return v
}

// address turns a cell index into a pointer into the memory block.
func (b *qbeBackend) address(cell string) string {
	offset := b.newTemp()
	fmt.Fprintf(b.out, "\t%s =l mul %s, %d\n", offset, cell, b.cfg.WordSize)
	ptr := b.newTemp()
	fmt.Fprintf(b.out, "\t%s =l add $%s, %s\n", ptr, qbeMemSymbol, offset)
	return ptr
}

func (b *qbeBackend) genInstr(idx int, in ir.Instruction) error {
	if have := len(b.stack); have < in.Op.Pops() {
		return fmt.Errorf("stack underflow at instruction %d (%s): needs %d operand(s), have %d", idx, in, in.Op.Pops(), have)
	}

	switch in.Op {
	case ir.OpLit:
		t := b.newTemp()
		switch v := in.Operand.(type) {
		case *ir.Const:
			fmt.Fprintf(b.out, "\t%s =l copy %d\n", t, v.Value)
		case *ir.Name:
			fmt.Fprintf(b.out, "\t%s =l copy %d\t# %s\n", t, b.bases[v.Name], v.Name)
		default:
			return fmt.Errorf("instruction %d: LIT without operand", idx)
		}
		b.push(t)
	case ir.OpLoad:
		ptr := b.address(b.pop())
		t := b.newTemp()
		fmt.Fprintf(b.out, "\t%s =l loadl %s\n", t, ptr)
		b.push(t)
	case ir.OpStore:
		var val, cell string
		if b.cfg.IsFeatureEnabled(config.FeatValueFirst) {
			cell, val = b.pop(), b.pop()
		} else {
			val, cell = b.pop(), b.pop()
		}
		ptr := b.address(cell)
		fmt.Fprintf(b.out, "\tstorel %s, %s\n", val, ptr)
	case ir.OpNeg:
		x := b.pop()
		t := b.newTemp()
		fmt.Fprintf(b.out, "\t%s =l neg %s\n", t, x)
		b.push(t)
	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpDiv:
		r, l := b.pop(), b.pop()
		t := b.newTemp()
		fmt.Fprintf(b.out, "\t%s =l %s %s, %s\n", t, strings.ToLower(in.Op.String()), l, r)
		b.push(t)
	default:
		return fmt.Errorf("instruction %d: unknown opcode %s", idx, in.Op)
	}
	return nil
}
