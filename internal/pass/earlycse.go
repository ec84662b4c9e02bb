package pass

import (
	"fmt"
	"strings"

	"github.com/splanck/viper-sub013/internal/il"
)

// EarlyCSE eliminates redundant pure computations within a single block by
// hash-consing on (opcode, operand values, result type), normalizing
// commutative operand order first. Scoped to a single block rather than
// the whole dominator tree — spec.md's later passes (Mem2Reg, SCCP) tend
// to concentrate redundancy within a block already; see DESIGN.md for why
// a full dominator-tree-scoped CSE was judged out of proportion to this
// core's size budget.
type EarlyCSE struct{}

func (*EarlyCSE) Name() string { return "earlycse" }

func (p *EarlyCSE) Run(m *il.Module) bool {
	changed := false
	for _, fn := range m.Functions {
		if p.runOnFunction(fn) {
			changed = true
		}
	}
	return changed
}

func (p *EarlyCSE) runOnFunction(fn *il.Function) bool {
	changed := false
	for _, b := range fn.LiveBlocks() {
		seen := map[string]*il.Instruction{}
		for cur := b.Root(); cur != nil; cur = cur.Next() {
			if cur == b.Terminator() || !cur.HasResult || cur.Opcode.HasSideEffects() {
				continue
			}
			key := hashKey(cur)
			if prior, ok := seen[key]; ok {
				fn.ReplaceAllUses(cur.ResultTemp, il.TempValue(prior.ResultTemp, prior.ResultType))
				changed = true
				continue
			}
			seen[key] = cur
		}
	}
	return changed
}

func hashKey(in *il.Instruction) string {
	ops := make([]string, len(in.Operands))
	for i, o := range in.Operands {
		ops[i] = o.String()
	}
	if in.Opcode.IsCommutative() && len(ops) == 2 && ops[0] > ops[1] {
		ops[0], ops[1] = ops[1], ops[0]
	}
	return fmt.Sprintf("%s|%s|%s", in.Opcode, in.ResultType, strings.Join(ops, ","))
}
