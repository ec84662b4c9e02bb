package pass

import "github.com/splanck/viper-sub013/internal/il"

// CallGraph is the module's call graph: for each function, the set of
// module-local functions it calls directly (extern calls and
// CallIndirect, whose target isn't known statically, are not edges here).
// Built fresh per Inline invocation rather than cached — module sizes in
// scope for this core don't warrant incremental maintenance.
type CallGraph struct {
	edges map[string]map[string]bool
}

// BuildCallGraph walks every function's instructions once, recording an
// edge for each direct, non-extern Call.
func BuildCallGraph(m *il.Module) *CallGraph {
	cg := &CallGraph{edges: make(map[string]map[string]bool)}
	for _, fn := range m.Functions {
		cg.edges[fn.Name] = make(map[string]bool)
		for _, b := range fn.LiveBlocks() {
			for cur := b.Root(); cur != nil; cur = cur.Next() {
				if cur.Opcode == il.OpCall && !cur.IsExternCall {
					cg.edges[fn.Name][cur.CalleeName] = true
				}
			}
		}
	}
	return cg
}

// Callees returns the names of functions fn calls directly.
func (cg *CallGraph) Callees(fn string) []string {
	out := make([]string, 0, len(cg.edges[fn]))
	for callee := range cg.edges[fn] {
		out = append(out, callee)
	}
	return out
}

// Calls reports whether fn has a direct-call edge to callee.
func (cg *CallGraph) Calls(fn, callee string) bool { return cg.edges[fn][callee] }

// Reachable reports whether callee is reachable from fn through any chain
// of direct calls, the cycle check Inline uses to refuse inlining a
// (mutually) recursive call.
func (cg *CallGraph) Reachable(fn, callee string) bool {
	seen := map[string]bool{}
	var walk func(n string) bool
	walk = func(n string) bool {
		if n == callee {
			return true
		}
		if seen[n] {
			return false
		}
		seen[n] = true
		for next := range cg.edges[n] {
			if walk(next) {
				return true
			}
		}
		return false
	}
	for next := range cg.edges[fn] {
		if walk(next) {
			return true
		}
	}
	return false
}
