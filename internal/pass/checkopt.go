package pass

import (
	"math"

	"github.com/splanck/viper-sub013/internal/il"
)

// CheckOpt removes checked-arithmetic/index/cast opcodes whose guard is
// statically provable from constant operands, downgrading them to their
// unchecked equivalent (spec.md §4.7: "an optimizer may elide a checked
// opcode's guard only when it can prove the precondition always holds;
// eliding the opcode itself, not just the trap, requires replacing it with
// the corresponding unchecked opcode so later passes still see a plain
// arithmetic or index operation").
type CheckOpt struct{}

func (*CheckOpt) Name() string { return "checkopt" }

func (p *CheckOpt) Run(m *il.Module) bool {
	changed := false
	for _, fn := range m.Functions {
		for _, b := range fn.LiveBlocks() {
			for cur := b.Root(); cur != nil; cur = cur.Next() {
				if p.simplify(cur) {
					changed = true
				}
			}
		}
	}
	return changed
}

func (p *CheckOpt) simplify(in *il.Instruction) bool {
	switch in.Opcode {
	case il.OpSDivChk0:
		// OpSDivChk0 guards both DivByZero and the INT64_MIN/-1 Overflow
		// case (spec.md §8), so eliding it needs more than "divisor is a
		// nonzero constant": a divisor of exactly -1 still needs a
		// constant, non-MinInt64 dividend to rule out the overflow trap.
		dividend, divisor := in.Operands[0], in.Operands[1]
		if divisor.Kind != il.ValueConstI64 || divisor.I64 == 0 {
			break
		}
		if divisor.I64 == -1 {
			if dividend.Kind != il.ValueConstI64 || dividend.I64 == math.MinInt64 {
				break
			}
		}
		in.Opcode = il.OpSDiv
		return true
	case il.OpIdxChk:
		index, lo, hi := in.Operands[0], in.Operands[1], in.Operands[2]
		if index.Kind == il.ValueConstI64 && lo.Kind == il.ValueConstI64 && hi.Kind == il.ValueConstI64 {
			if index.I64 >= lo.I64 && index.I64 < hi.I64 {
				// Provably in bounds: the checked opcode degrades to
				// simply producing the index, since spec.md's IdxChk
				// result is the validated index itself.
				in.Opcode = il.OpBitcast
				in.Operands = []il.Value{index}
				return true
			}
		}
	case il.OpCastSiNarrowChk:
		// Narrowing-cast safety depends on the runtime magnitude of a
		// float, which is almost never knowable from a compile-time
		// constant the front end didn't already fold; left to SCCP's
		// constant folder (which does not attempt this opcode) and the VM.
	}
	return false
}
