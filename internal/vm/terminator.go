package vm

import (
	"context"

	"github.com/splanck/viper-sub013/internal/bridge"
	"github.com/splanck/viper-sub013/internal/il"
)

// execTerminator executes b's single terminating instruction and returns
// the control transfer it produces: a successor block (with its
// parameters bound from the edge's argument bundle), a function return, or
// a trap to unwind.
func (v *VM) execTerminator(ctx context.Context, frame *Frame, b *il.BasicBlock) control {
	if err := ctx.Err(); err != nil {
		return control{trap: bridge.New(il.TrapUserTrap, "context canceled: "+err.Error(), b.Terminator().Loc)}
	}

	term := b.Terminator()
	switch term.Opcode {
	case il.OpBr:
		return v.takeEdge(frame, term.Jump)
	case il.OpCBr:
		cond := frame.get(term.Operands[0])
		if cond.I64 != 0 {
			return v.takeEdge(frame, term.Then)
		}
		return v.takeEdge(frame, term.Else)
	case il.OpSwitch:
		key := frame.get(term.Operands[0]).I64
		for _, c := range term.Cases {
			if c.Value == key {
				return v.takeEdge(frame, c.Edge)
			}
		}
		return v.takeEdge(frame, term.Default)
	case il.OpRet:
		var results []bridge.Cell
		for _, op := range term.Operands {
			results = append(results, frame.get(op))
		}
		return control{returned: true, ret: results}
	case il.OpTrap:
		return v.unwind(frame, b, bridge.New(term.TrapKind, term.TrapMsg, term.Loc))
	case il.OpEhThrow:
		return v.unwind(frame, b, bridge.New(term.TrapKind, term.TrapMsg, term.Loc))
	}
	panic("vm: block has no recognized terminator: " + term.Opcode.String())
}

// takeEdge binds e's argument bundle to e.Target's declared parameters —
// the interpreter's equivalent of resolving a φ-node — and returns control
// to continue execution there.
func (v *VM) takeEdge(frame *Frame, e il.Edge) control {
	vals := make([]bridge.Cell, len(e.Args))
	for i, arg := range e.Args {
		vals[i] = frame.get(arg)
	}
	for i, p := range e.Target.Params {
		frame.set(p.Temp, vals[i])
	}
	return control{next: e.Target}
}
