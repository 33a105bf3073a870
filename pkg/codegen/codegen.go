package codegen

import (
	"errors"

	"github.com/xplshn/gsm/pkg/ast"
	"github.com/xplshn/gsm/pkg/config"
	"github.com/xplshn/gsm/pkg/ir"
	"github.com/xplshn/gsm/pkg/token"
	"github.com/xplshn/gsm/pkg/util"
)

// Emitter turns parsed statements into stack-machine instructions.
type Emitter struct {
	cfg   *config.Config
	prog  *ir.Program
	diags []util.Diagnostic
}

func NewEmitter(cfg *config.Config) *Emitter {
	return &Emitter{cfg: cfg, prog: &ir.Program{}}
}

// Diagnostics returns the warnings collected while emitting.
func (e *Emitter) Diagnostics() []util.Diagnostic { return e.diags }

// Emit generates code for stmts in source order and returns the program.
func (e *Emitter) Emit(stmts []*ast.Node) (*ir.Program, error) {
	for _, stmt := range stmts {
		if e.cfg.IsFeatureEnabled(config.FeatFold) {
			folded, err := ast.FoldConstants(stmt)
			var fe *ast.FoldError
			if errors.As(err, &fe) {
				kind := util.DivisionByZero
				if fe.Overflow {
					kind = util.ConstantOverflow
				}
				return nil, &util.SyntaxError{Kind: kind, Tok: fe.Node.Tok}
			}
			stmt = folded
		}
		e.genAssign(stmt)
	}
	return e.prog, nil
}

func (e *Emitter) lit(operand ir.Value) { e.prog.Emit(ir.OpLit, operand) }
func (e *Emitter) op(op ir.Op)          { e.prog.Emit(op, nil) }

// genAssign emits the value and the target address in the order the
// value-first feature selects; STORE expects them in that order.
func (e *Emitter) genAssign(node *ast.Node) {
	d := node.Data.(ast.AssignNode)
	if e.cfg.IsFeatureEnabled(config.FeatValueFirst) {
		e.genExpr(d.Rhs)
		e.genTarget(node, d)
	} else {
		e.genTarget(node, d)
		e.genExpr(d.Rhs)
	}
	e.op(ir.OpStore)
}

// genTarget pushes the address an assignment writes to. Indexed targets use
// the read path's `LIT name <index> ADD` unless array-base is off, in which
// case the base is never pushed.
func (e *Emitter) genTarget(node *ast.Node, d ast.AssignNode) {
	if d.Index == nil {
		e.lit(&ir.Name{Name: d.Name})
		return
	}
	if e.cfg.IsFeatureEnabled(config.FeatArrayBase) {
		e.lit(&ir.Name{Name: d.Name})
	} else {
		util.Warnf(&e.diags, e.cfg, config.WarnArrayBase, node.Tok,
			"indexed assignment to '%s' adds the index to an address that was never pushed (use -Farray-base)", d.Name)
	}
	e.genExpr(d.Index)
	e.op(ir.OpAdd)
}

func (e *Emitter) genExpr(node *ast.Node) {
	switch d := node.Data.(type) {
	case ast.NumberNode:
		e.lit(&ir.Const{Value: d.Value})
	case ast.NegLiteralNode:
		e.lit(&ir.Const{Value: d.Value})
	case ast.IdentNode:
		e.lit(&ir.Name{Name: d.Name})
		e.op(ir.OpLoad)
	case ast.SubscriptNode:
		e.lit(&ir.Name{Name: d.Name})
		e.genExpr(d.Index)
		e.op(ir.OpAdd)
		e.op(ir.OpLoad)
	case ast.NegNode:
		e.genExpr(d.Expr)
		e.op(ir.OpNeg)
	case ast.BinaryOpNode:
		e.genExpr(d.Left)
		e.genExpr(d.Right)
		switch d.Op {
		case token.Plus:
			e.op(ir.OpAdd)
		case token.Minus:
			e.op(ir.OpSub)
		case token.Star:
			e.op(ir.OpMul)
		case token.Slash:
			if val, ok := ast.ConstantValue(d.Right); ok && val == 0 {
				util.Warnf(&e.diags, e.cfg, config.WarnDivZero, node.Tok, "division by constant zero")
			}
			e.op(ir.OpDiv)
		}
	}
}
