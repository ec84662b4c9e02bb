package il

// ReplaceAllUses rewrites every operand and branch-argument reference to
// old throughout f with replacement, the primitive SCCP's constant
// propagation and EarlyCSE's redundancy elimination both build on (spec.md
// §4.3): "a pass that proves two temps equivalent replaces the redundant
// one everywhere it is used, leaving its defining instruction for DCE to
// remove."
func (f *Function) ReplaceAllUses(old Temp, replacement Value) {
	for _, b := range f.blocks {
		for cur := b.Root(); cur != nil; cur = cur.Next() {
			for i, op := range cur.Operands {
				if op.Kind == ValueTemp && op.Temp == old {
					cur.Operands[i] = replacement
				}
			}
			replaceInEdge(&cur.Jump, old, replacement)
			replaceInEdge(&cur.Then, old, replacement)
			replaceInEdge(&cur.Else, old, replacement)
			for i := range cur.Cases {
				replaceInEdge(&cur.Cases[i].Edge, old, replacement)
			}
			replaceInEdge(&cur.Default, old, replacement)
		}
	}
}

func replaceInEdge(e *Edge, old Temp, replacement Value) {
	for i, a := range e.Args {
		if a.Kind == ValueTemp && a.Temp == old {
			e.Args[i] = replacement
		}
	}
}
