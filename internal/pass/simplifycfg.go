package pass

import "github.com/splanck/viper-sub013/internal/il"

// SimplifyCFG removes unreachable blocks and collapses an unconditional
// Br into an empty block whose sole successor takes over its label's
// incoming edges — the teacher's own CFG-cleanup step
// (internal/engine/wazevo/ssa/pass_cfg.go's reachability sweep),
// generalized to Viper's full terminator set.
type SimplifyCFG struct{}

func (*SimplifyCFG) Name() string { return "simplifycfg" }

func (p *SimplifyCFG) Run(m *il.Module) bool {
	changed := false
	for _, fn := range m.Functions {
		if p.runOnFunction(fn) {
			changed = true
		}
	}
	return changed
}

func (p *SimplifyCFG) runOnFunction(fn *il.Function) bool {
	changed := false

	reachable := map[*il.BasicBlock]bool{}
	var walk func(b *il.BasicBlock)
	walk = func(b *il.BasicBlock) {
		if b == nil || reachable[b] {
			return
		}
		reachable[b] = true
		for _, s := range b.Succs() {
			walk(s)
		}
	}
	walk(fn.Entry())

	for _, b := range fn.LiveBlocks() {
		if b == fn.Entry() {
			continue
		}
		if !reachable[b] {
			fn.RemoveBlock(b)
			changed = true
		}
	}

	for _, b := range fn.LiveBlocks() {
		if p.threadEmptyJump(b) {
			changed = true
		}
	}
	if changed {
		fn.RebuildCFG()
	}
	return changed
}

// threadEmptyJump rewrites an unconditional branch whose target is itself
// an empty block (no params, single Br terminator, no body) to jump
// directly to that block's own target, shortening chains a front end's
// naive block-per-statement lowering tends to produce.
func (p *SimplifyCFG) threadEmptyJump(b *il.BasicBlock) bool {
	term := b.Terminator()
	if term == nil || term.Opcode != il.OpBr {
		return false
	}
	target := term.Jump.Target
	if target == nil || target == b || target.Root() != target.Terminator() {
		return false
	}
	if len(target.Params) != 0 || target.Terminator().Opcode != il.OpBr {
		return false
	}
	inner := target.Terminator().Jump
	if inner.Target == target {
		return false // self-loop, don't thread into an infinite rewrite
	}
	term.Jump = il.Edge{Target: inner.Target, Args: append([]il.Value(nil), inner.Args...)}
	return true
}
