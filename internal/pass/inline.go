package pass

import "github.com/splanck/viper-sub013/internal/il"

// maxInlineInstrs bounds the callee body size Inline will splice into a
// caller, keeping a single inlining decision from ballooning module size
// unboundedly.
const maxInlineInstrs = 12

// Inline splices small, straight-line, non-recursive callees directly into
// their call sites. Scoped to single-block callees (one block, terminated
// by Ret, no internal control flow) — a multi-block inliner needs to
// clone a whole subgraph and thread the callee's returns through a new
// continuation block, which is out of proportion to this core's size
// budget; see DESIGN.md. A conforming program's behavior is unchanged
// either way since inlining is a pure optimization, not a semantic
// transform.
type Inline struct{}

func (*Inline) Name() string { return "inline" }

func (p *Inline) Run(m *il.Module) bool {
	cg := BuildCallGraph(m)
	changed := false
	for _, fn := range m.Functions {
		if p.runOnFunction(m, cg, fn) {
			changed = true
		}
	}
	return changed
}

func (p *Inline) runOnFunction(m *il.Module, cg *CallGraph, fn *il.Function) bool {
	changed := false
	for _, b := range fn.LiveBlocks() {
		var cur *il.Instruction
		for cur = b.Root(); cur != nil; {
			next := cur.Next()
			if cur.Opcode == il.OpCall && !cur.IsExternCall && cur != b.Terminator() {
				if p.tryInline(m, cg, fn, b, cur) {
					changed = true
				}
			}
			cur = next
		}
	}
	return changed
}

func (p *Inline) tryInline(m *il.Module, cg *CallGraph, fn *il.Function, b *il.BasicBlock, call *il.Instruction) bool {
	callee := m.FunctionByName(call.CalleeName)
	if callee == nil || callee == fn {
		return false
	}
	if cg.Reachable(callee.Name, callee.Name) {
		return false // callee participates in a call cycle: never inline
	}
	live := callee.LiveBlocks()
	if len(live) != 1 {
		return false
	}
	body := live[0]
	if body.Terminator() == nil || body.Terminator().Opcode != il.OpRet {
		return false
	}
	if instrCount(body) > maxInlineInstrs {
		return false
	}

	tempMap := make(map[il.Temp]il.Value, len(callee.Params))
	for i, param := range callee.Params {
		tempMap[param.Temp] = call.Operands[i]
	}

	insertBefore := call
	for src := body.Root(); src != body.Terminator(); src = src.Next() {
		operands := make([]il.Value, len(src.Operands))
		for i, op := range src.Operands {
			operands[i] = substitute(op, tempMap)
		}
		cloned := fn.InsertClonedBefore(insertBefore, src, operands)
		if src.HasResult {
			tempMap[src.ResultTemp] = il.TempValue(cloned.ResultTemp, cloned.ResultType)
		}
	}

	ret := body.Terminator()
	if len(ret.Operands) == 1 && call.HasResult {
		result := substitute(ret.Operands[0], tempMap)
		fn.ReplaceAllUses(call.ResultTemp, result)
	}
	b.RemoveInstruction(call)
	return true
}

func substitute(v il.Value, tempMap map[il.Temp]il.Value) il.Value {
	if v.Kind == il.ValueTemp {
		if mapped, ok := tempMap[v.Temp]; ok {
			return mapped
		}
	}
	return v
}

func instrCount(b *il.BasicBlock) int {
	n := 0
	for cur := b.Root(); cur != nil; cur = cur.Next() {
		n++
	}
	return n
}
