package pass

import (
	"math"

	"github.com/splanck/viper-sub013/internal/il"
)

// SCCP folds instructions whose operands are all compile-time constants,
// folds block parameters whose executable predecessors all supply the same
// constant argument (the ϕ-node meet spec.md §4.3 requires: "Lattice Top >
// Const(k) > Bot; block params are ϕ-nodes merging only executable
// predecessors"), and simplifies branches on a constant condition to an
// unconditional Br, the same "constant-fold then thread the now-determined
// branch" loop the teacher's wazevo backend runs during lowering. Folding
// runs to a fixpoint within runOnFunction so a block param fed by a loop
// back-edge still resolves once the edge's own argument becomes constant.
type SCCP struct{}

func (*SCCP) Name() string { return "sccp" }

func (p *SCCP) Run(m *il.Module) bool {
	changed := false
	for _, fn := range m.Functions {
		if p.runOnFunction(fn) {
			changed = true
		}
	}
	return changed
}

func (p *SCCP) runOnFunction(fn *il.Function) bool {
	changed := false
	for {
		round := false
		for _, b := range fn.LiveBlocks() {
			if p.foldBlockParams(fn, b) {
				round = true
			}
			for cur := b.Root(); cur != nil; cur = cur.Next() {
				if cur.HasResult {
					if v, ok := foldInstruction(cur); ok && hasUses(fn, cur.ResultTemp) {
						fn.ReplaceAllUses(cur.ResultTemp, v)
						round = true
					}
				}
			}
			if p.simplifyTerminator(fn, b) {
				round = true
			}
		}
		if !round {
			break
		}
		changed = true
	}
	if changed {
		fn.RebuildCFG()
	}
	return changed
}

// foldBlockParams replaces every use of a block parameter with a constant
// when the meet of its executable predecessors' incoming arguments
// resolves to a single Const(k) rather than Top (no predecessors yet, e.g.
// an unsealed loop header) or Bot (predecessors disagree).
func (p *SCCP) foldBlockParams(fn *il.Function, b *il.BasicBlock) bool {
	changed := false
	for i, param := range b.Params {
		v, ok := meetConstant(b.IncomingArgs(i))
		if ok && hasUses(fn, param.Temp) {
			fn.ReplaceAllUses(param.Temp, v)
			changed = true
		}
	}
	return changed
}

// hasUses reports whether any live instruction still reads t, so a fold
// that has already replaced every use does not count as progress again.
func hasUses(fn *il.Function, t il.Temp) bool {
	for _, b := range fn.LiveBlocks() {
		for cur := b.Root(); cur != nil; cur = cur.Next() {
			for _, a := range cur.Args() {
				if a.Kind == il.ValueTemp && a.Temp == t {
					return true
				}
			}
		}
	}
	return false
}

// meetConstant applies spec.md §4.3's lattice meet over a block param's
// incoming argument values: Bot (ok=false) if any argument is not a
// constant or two constants disagree, Top (ok=false) if there are no
// incoming arguments at all, Const(k) (ok=true) if every argument agrees on
// the same constant.
func meetConstant(args []il.Value) (il.Value, bool) {
	if len(args) == 0 {
		return il.Value{}, false
	}
	first := args[0]
	if first.Kind != il.ValueConstI64 && first.Kind != il.ValueConstF64 {
		return il.Value{}, false
	}
	for _, a := range args[1:] {
		if a.Kind != first.Kind {
			return il.Value{}, false
		}
		switch first.Kind {
		case il.ValueConstI64:
			if a.I64 != first.I64 {
				return il.Value{}, false
			}
		case il.ValueConstF64:
			if a.F64Bits != first.F64Bits {
				return il.Value{}, false
			}
		}
	}
	return first, true
}

func (p *SCCP) simplifyTerminator(fn *il.Function, b *il.BasicBlock) bool {
	term := b.Terminator()
	if term == nil || term.Opcode != il.OpCBr {
		return false
	}
	cond := term.Operands[0]
	if cond.Kind != il.ValueConstI64 {
		return false
	}
	target := term.Else
	if cond.I64 != 0 {
		target = term.Then
	}
	term.Opcode = il.OpBr
	term.Jump = target
	term.Operands = nil
	return true
}

// foldInstruction returns the constant result of in if every operand it
// reads is itself a constant Value, and ok=false otherwise (including for
// opcodes this folder does not attempt, e.g. memory and call
// instructions, which are left to the VM).
func foldInstruction(in *il.Instruction) (il.Value, bool) {
	switch in.Opcode {
	case il.OpNullPtr:
		return il.NullPtrValue(), true
	case il.OpConstI64, il.OpConstF64:
		return in.Operands[0], true
	}
	if len(in.Operands) == 0 {
		return il.Value{}, false
	}
	for _, op := range in.Operands {
		if op.Kind != il.ValueConstI64 && op.Kind != il.ValueConstF64 {
			return il.Value{}, false
		}
	}

	switch in.Opcode {
	case il.OpAdd:
		return il.ConstI64(maskToWidth(in.Operands[0].I64+in.Operands[1].I64, in.ResultType), in.ResultType), true
	case il.OpSub:
		return il.ConstI64(maskToWidth(in.Operands[0].I64-in.Operands[1].I64, in.ResultType), in.ResultType), true
	case il.OpMul:
		return il.ConstI64(maskToWidth(in.Operands[0].I64*in.Operands[1].I64, in.ResultType), in.ResultType), true
	case il.OpAnd:
		return il.ConstI64(maskToWidth(in.Operands[0].I64&in.Operands[1].I64, in.ResultType), in.ResultType), true
	case il.OpOr:
		return il.ConstI64(maskToWidth(in.Operands[0].I64|in.Operands[1].I64, in.ResultType), in.ResultType), true
	case il.OpXor:
		return il.ConstI64(maskToWidth(in.Operands[0].I64^in.Operands[1].I64, in.ResultType), in.ResultType), true
	case il.OpShl:
		return il.ConstI64(maskToWidth(in.Operands[0].I64<<uint64(in.Operands[1].I64), in.ResultType), in.ResultType), true
	case il.OpSDiv:
		a, b := in.Operands[0].I64, in.Operands[1].I64
		if b == 0 || (a == math.MinInt64 && b == -1) {
			return il.Value{}, false // leave the trap to the VM; don't fold a trapping division
		}
		return il.ConstI64(a/b, in.ResultType), true
	case il.OpICmpEq:
		return boolConst(in.Operands[0].I64 == in.Operands[1].I64), true
	case il.OpICmpNe:
		return boolConst(in.Operands[0].I64 != in.Operands[1].I64), true
	case il.OpICmpSlt:
		return boolConst(in.Operands[0].I64 < in.Operands[1].I64), true
	case il.OpICmpSle:
		return boolConst(in.Operands[0].I64 <= in.Operands[1].I64), true
	case il.OpICmpSgt:
		return boolConst(in.Operands[0].I64 > in.Operands[1].I64), true
	case il.OpICmpSge:
		return boolConst(in.Operands[0].I64 >= in.Operands[1].I64), true
	case il.OpFAdd:
		return foldF64(in, func(a, b float64) float64 { return a + b }), true
	case il.OpFSub:
		return foldF64(in, func(a, b float64) float64 { return a - b }), true
	case il.OpFMul:
		return foldF64(in, func(a, b float64) float64 { return a * b }), true
	case il.OpFDiv:
		return foldF64(in, func(a, b float64) float64 { return a / b }), true
	}
	return il.Value{}, false
}

func boolConst(b bool) il.Value {
	if b {
		return il.ConstI64(1, il.TypeI1)
	}
	return il.ConstI64(0, il.TypeI1)
}

// maskToWidth narrows a folded 64-bit result to in.ResultType the same way
// the VM's execIntBinary does, so a constant the optimizer bakes in can
// never disagree with what the unoptimized program would have computed.
func maskToWidth(v int64, t il.Type) int64 {
	switch t {
	case il.TypeI1:
		return v & 1
	case il.TypeI16:
		return int64(int16(v))
	case il.TypeI32:
		return int64(int32(v))
	}
	return v
}

func foldF64(in *il.Instruction, f func(a, b float64) float64) il.Value {
	a := math.Float64frombits(in.Operands[0].F64Bits)
	b := math.Float64frombits(in.Operands[1].F64Bits)
	return il.ConstF64Bits(math.Float64bits(f(a, b)))
}
