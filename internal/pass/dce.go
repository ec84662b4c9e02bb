package pass

import "github.com/splanck/viper-sub013/internal/il"

// DCE is a mark-and-sweep dead code eliminator: mark every instruction
// with side effects or reaching a live result as live, then remove
// everything unmarked. Grounded on the teacher's ssa liveness sweep
// (internal/engine/wazevo/ssa), generalized from Wasm's single-result
// instructions to Viper's Results() (which may be two, for EhEntry).
type DCE struct{}

func (*DCE) Name() string { return "dce" }

func (p *DCE) Run(m *il.Module) bool {
	changed := false
	for _, fn := range m.Functions {
		if p.runOnFunction(fn) {
			changed = true
		}
	}
	return changed
}

func (p *DCE) runOnFunction(fn *il.Function) bool {
	live := map[*il.Instruction]bool{}
	var worklist []*il.Instruction

	defOf := map[il.Temp]*il.Instruction{}
	for _, b := range fn.LiveBlocks() {
		for cur := b.Root(); cur != nil; cur = cur.Next() {
			for _, r := range cur.Results() {
				defOf[r.Temp] = cur
			}
			if cur.Opcode.HasSideEffects() {
				live[cur] = true
				worklist = append(worklist, cur)
			}
		}
	}

	for len(worklist) > 0 {
		in := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		for _, a := range in.Args() {
			if a.Kind != il.ValueTemp {
				continue
			}
			if def, ok := defOf[a.Temp]; ok && !live[def] {
				live[def] = true
				worklist = append(worklist, def)
			}
		}
	}

	changed := false
	for _, b := range fn.LiveBlocks() {
		var next *il.Instruction
		for cur := b.Root(); cur != nil; cur = next {
			next = cur.Next()
			if cur == b.Terminator() {
				continue // terminators are always kept; CFG shape is SimplifyCFG's job
			}
			if !live[cur] {
				b.RemoveInstruction(cur)
				changed = true
			}
		}
	}
	if changed {
		fn.RebuildCFG()
	}
	return changed
}
