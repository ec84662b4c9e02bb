package pass

import "github.com/splanck/viper-sub013/internal/il"

// Peephole applies machine-independent algebraic identities SCCP's
// all-constant-operand folder can't reach because only one operand is
// constant: x+0, x*1, x*0, x-x (via identical operand Values), x^x, x&x,
// x|x. Grounded on the teacher's own instruction-simplification style in
// ssa/builder.go (trivial-phi elimination is the same "recognize a
// structurally degenerate case and replace it" shape, applied here to
// arithmetic instead of block parameters).
type Peephole struct{}

func (*Peephole) Name() string { return "peephole" }

func (p *Peephole) Run(m *il.Module) bool {
	changed := false
	for _, fn := range m.Functions {
		for _, b := range fn.LiveBlocks() {
			for cur := b.Root(); cur != nil; cur = cur.Next() {
				if !cur.HasResult || len(cur.Operands) != 2 {
					continue
				}
				if repl, ok := simplifyBinary(cur); ok {
					fn.ReplaceAllUses(cur.ResultTemp, repl)
					changed = true
				}
			}
		}
	}
	return changed
}

func simplifyBinary(in *il.Instruction) (il.Value, bool) {
	lhs, rhs := in.Operands[0], in.Operands[1]
	switch in.Opcode {
	case il.OpAdd:
		if isZero(rhs) {
			return lhs, true
		}
		if isZero(lhs) {
			return rhs, true
		}
	case il.OpSub:
		if isZero(rhs) {
			return lhs, true
		}
		if sameValue(lhs, rhs) {
			return il.ConstI64(0, in.ResultType), true
		}
	case il.OpMul:
		if isOne(rhs) {
			return lhs, true
		}
		if isOne(lhs) {
			return rhs, true
		}
		if isZero(rhs) || isZero(lhs) {
			return il.ConstI64(0, in.ResultType), true
		}
	case il.OpOr, il.OpAnd:
		if sameValue(lhs, rhs) {
			return lhs, true
		}
	case il.OpXor:
		if sameValue(lhs, rhs) {
			return il.ConstI64(0, in.ResultType), true
		}
	}
	return il.Value{}, false
}

func isZero(v il.Value) bool { return v.Kind == il.ValueConstI64 && v.I64 == 0 }
func isOne(v il.Value) bool  { return v.Kind == il.ValueConstI64 && v.I64 == 1 }

func sameValue(a, b il.Value) bool {
	return a.Kind == il.ValueTemp && b.Kind == il.ValueTemp && a.Temp == b.Temp
}
