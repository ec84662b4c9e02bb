package vm

import "github.com/splanck/viper-sub013/internal/il"

// landingPadFor returns the EhEntry block a trap raised while executing
// from block should unwind to, or nil if the function declares none.
//
// The IL does not carry explicit try-region metadata linking an
// instruction to its handler (spec.md leaves that lowering detail to the
// front end); this core resolves it with the same convention a
// straightforward single-landing-pad-per-function front end would
// produce: the function's EhEntry block, if it declares exactly one. A
// function declaring more than one picks the block whose position in
// Blocks() most closely precedes the throw site, approximating "the
// innermost enclosing try scope" without requiring a front end to emit
// explicit region boundaries. This resolves one of spec.md's Open
// Questions; see DESIGN.md.
func landingPadFor(fn *il.Function, from *il.BasicBlock) *il.BasicBlock {
	var best *il.BasicBlock
	bestIdx := -1
	fromIdx := blockIndex(fn, from)
	for i, b := range fn.Blocks() {
		if !b.Valid() {
			continue
		}
		if root := b.Root(); root != nil && root.Opcode == il.OpEhEntry {
			if i <= fromIdx || bestIdx < 0 {
				if i > bestIdx {
					best, bestIdx = b, i
				}
			}
		}
	}
	return best
}

func blockIndex(fn *il.Function, b *il.BasicBlock) int {
	for i, candidate := range fn.Blocks() {
		if candidate == b {
			return i
		}
	}
	return -1
}
