package verify

import "github.com/splanck/viper-sub013/internal/il"

// domInfo holds the dominator tree and reverse-postorder numbering for one
// function, computed once per verify call and reused by every rule that
// needs dominance (spec.md §4.2 rule 2: "every use of a temp is dominated
// by its definition").
//
// The algorithm is Cooper, Harvey & Kennedy's "A Simple, Fast Dominance
// Algorithm" over a reverse-postorder block list, adapted line-for-line
// from the teacher's passCalculateImmediateDominators/calculateDominators
// (internal/engine/wazevo/ssa/pass_cfg.go), generalized from the teacher's
// Wasm-only Jump/Brz/Brnz successors to Viper's full terminator set
// (Br/CBr/Switch/EhThrow).
type domInfo struct {
	order map[*il.BasicBlock]int  // reverse-postorder index
	idom  map[*il.BasicBlock]*il.BasicBlock
	rpo   []*il.BasicBlock
}

func computeDominance(f *il.Function) *domInfo {
	entry := f.Entry()
	if entry == nil {
		return &domInfo{order: map[*il.BasicBlock]int{}, idom: map[*il.BasicBlock]*il.BasicBlock{}}
	}

	visited := map[*il.BasicBlock]int{}
	const unseen, seen, done = 0, 1, 2

	var postorder []*il.BasicBlock
	stack := []*il.BasicBlock{entry}
	visited[entry] = seen
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		switch visited[top] {
		case seen:
			visited[top] = done // will be finalized once children are pushed/popped
			for _, s := range top.Succs() {
				if !s.Valid() {
					continue
				}
				if visited[s] == unseen {
					visited[s] = seen
					stack = append(stack, s)
				}
			}
		case done:
			stack = stack[:len(stack)-1]
			postorder = append(postorder, top)
		default:
			stack = stack[:len(stack)-1]
		}
	}

	rpo := make([]*il.BasicBlock, len(postorder))
	for i, b := range postorder {
		rpo[len(rpo)-1-i] = b
	}

	order := make(map[*il.BasicBlock]int, len(rpo))
	for i, b := range rpo {
		order[b] = i
	}

	idom := make(map[*il.BasicBlock]*il.BasicBlock, len(rpo))
	if len(rpo) == 0 {
		return &domInfo{order: order, idom: idom, rpo: rpo}
	}
	idom[rpo[0]] = rpo[0]

	changed := true
	for changed {
		changed = false
		for _, b := range rpo[1:] {
			var newIdom *il.BasicBlock
			for _, p := range b.Preds() {
				if !p.Valid() || idom[p] == nil {
					continue
				}
				if newIdom == nil {
					newIdom = p
					continue
				}
				newIdom = intersect(idom, order, newIdom, p)
			}
			if idom[b] != newIdom {
				idom[b] = newIdom
				changed = true
			}
		}
	}
	return &domInfo{order: order, idom: idom, rpo: rpo}
}

func intersect(idom map[*il.BasicBlock]*il.BasicBlock, order map[*il.BasicBlock]int, a, b *il.BasicBlock) *il.BasicBlock {
	for a != b {
		for order[a] > order[b] {
			a = idom[a]
		}
		for order[b] > order[a] {
			b = idom[b]
		}
	}
	return a
}

// dominates reports whether a dominates b (every path from the entry to b
// passes through a). A block dominates itself.
func (d *domInfo) dominates(a, b *il.BasicBlock) bool {
	if a == b {
		return true
	}
	if _, ok := d.order[b]; !ok {
		return false
	}
	cur := b
	for {
		next := d.idom[cur]
		if next == nil {
			return false
		}
		if next == cur {
			return false // reached entry without finding a
		}
		if next == a {
			return true
		}
		cur = next
	}
}

// reachable reports whether b was visited from the entry at all.
func (d *domInfo) reachable(b *il.BasicBlock) bool {
	_, ok := d.order[b]
	return ok
}
