package pass

import "github.com/splanck/viper-sub013/internal/il"

// Mem2Reg promotes entry-block, single-element Allocas whose every use is
// a plain Load or Store (no address escapes via GEP, call argument, or
// retain/release) and whose uses all sit in one block: each Load is
// replaced by the value most recently Stored earlier in that block. It
// does not use internal/il.Builder's DefineVariable/FindValue machinery,
// adds no block parameters, and leaves locals used across blocks in
// memory.
type Mem2Reg struct{}

func (*Mem2Reg) Name() string { return "mem2reg" }

func (p *Mem2Reg) Run(m *il.Module) bool {
	changed := false
	for _, fn := range m.Functions {
		if p.runOnFunction(fn) {
			changed = true
		}
	}
	return changed
}

func (p *Mem2Reg) runOnFunction(fn *il.Function) bool {
	entry := fn.Entry()
	if entry == nil {
		return false
	}

	type candidate struct {
		alloca *il.Instruction
		typ    il.Type
	}
	var candidates []candidate
	for cur := entry.Root(); cur != nil && cur != entry.Terminator(); cur = cur.Next() {
		if cur.Opcode == il.OpAlloca && cur.AllocaSize == 1 && isPromotable(fn, cur) {
			candidates = append(candidates, candidate{alloca: cur, typ: cur.AllocaType})
		}
	}
	if len(candidates) == 0 {
		return false
	}

	// A from-scratch builder-shaped rewrite is out of proportion to
	// promoting a handful of scalar locals; instead thread each promoted
	// alloca's value directly through same-block def/use order, which
	// covers the common case (a local read back within the block it was
	// written in) without requiring a second full builder pass. Allocas whose load can't be
	// resolved to a preceding store in the same block are left unpromoted
	// — conservative, but never incorrect.
	changed := false
	for _, c := range candidates {
		if promoteSingleBlockLocal(fn, c.alloca) {
			changed = true
		}
	}
	return changed
}

// isPromotable reports whether the only uses of alloca (other than the
// defining instruction itself) are Load and Store through the exact
// pointer it returned — no GEP, call argument, or address-of escape — and
// every one of those uses lives in the single block promoteSingleBlockLocal
// actually rewrites. A Load in a different block than its Store is NOT
// promotable here: promoteSingleBlockLocal deletes every Store it sees
// unconditionally, so an alloca with a cross-block Load would have its
// Store removed out from under a Load that still needs it.
func isPromotable(fn *il.Function, alloca *il.Instruction) bool {
	ptr := il.TempValue(alloca.ResultTemp, il.TypePtr)
	ok := true
	var useBlock *il.BasicBlock
	sameBlock := true
	for _, b := range fn.LiveBlocks() {
		for cur := b.Root(); cur != nil; cur = cur.Next() {
			if cur == alloca {
				continue
			}
			for _, op := range cur.Operands {
				if op.Kind != il.ValueTemp || op.Temp != ptr.Temp {
					continue
				}
				if cur.Opcode != il.OpLoad && cur.Opcode != il.OpStore {
					ok = false
				}
				if cur.Opcode == il.OpStore && cur.Operands[0].Temp != ptr.Temp {
					// used as the value being stored, not the address
					ok = false
				}
				if useBlock == nil {
					useBlock = b
				} else if useBlock != b {
					sameBlock = false
				}
			}
		}
	}
	return ok && sameBlock
}

// promoteSingleBlockLocal rewrites every Load of alloca's pointer within a
// block to the Value most recently Stored to it earlier in that same
// block, and removes the Store/Load instructions once no uses remain. It
// is conservative: a Load with no preceding Store in its own block is left
// alone (the alloca stays live, uninitialized-read semantics are
// unchanged), which only ever forgoes an optimization, never changes
// behavior.
func promoteSingleBlockLocal(fn *il.Function, alloca *il.Instruction) bool {
	changed := false
	for _, b := range fn.LiveBlocks() {
		var lastStore il.Value
		haveStore := false
		var toRemove []*il.Instruction
		for cur := b.Root(); cur != nil; cur = cur.Next() {
			switch {
			case cur.Opcode == il.OpStore && cur.Operands[0].Temp == alloca.ResultTemp && cur.Operands[0].Kind == il.ValueTemp:
				lastStore = cur.Operands[1]
				haveStore = true
				toRemove = append(toRemove, cur)
			case cur.Opcode == il.OpLoad && cur.Operands[0].Kind == il.ValueTemp && cur.Operands[0].Temp == alloca.ResultTemp:
				if haveStore {
					fn.ReplaceAllUses(cur.ResultTemp, lastStore)
					toRemove = append(toRemove, cur)
					changed = true
				}
			}
		}
		for _, in := range toRemove {
			if in.Opcode == il.OpStore || !hasRemainingUses(fn, in) {
				b.RemoveInstruction(in)
			}
		}
	}
	return changed
}

func hasRemainingUses(fn *il.Function, in *il.Instruction) bool {
	if !in.HasResult {
		return false
	}
	for _, b := range fn.LiveBlocks() {
		for cur := b.Root(); cur != nil; cur = cur.Next() {
			if cur == in {
				continue
			}
			for _, a := range cur.Args() {
				if a.Kind == il.ValueTemp && a.Temp == in.ResultTemp {
					return true
				}
			}
		}
	}
	return false
}
