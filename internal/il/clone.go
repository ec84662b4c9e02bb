package il

// InsertClonedBefore splices a fresh copy of src into before's block,
// positioned immediately before it, with src's operands replaced by
// operands and (if src produced a result) a freshly allocated temp in f.
// Used by internal/pass's inliner to splice a callee's straight-line body
// into a caller block at the call site, without exposing the instruction
// pool or linked-list internals to the pass package directly.
//
// Only non-terminator instructions are supported; cloning a terminator's
// control-flow shape is the caller's responsibility (the inliner threads
// the callee's Ret value into the call's result itself rather than
// cloning the Ret instruction).
func (f *Function) InsertClonedBefore(before *Instruction, src *Instruction, operands []Value) *Instruction {
	if src.Opcode.IsTerminator() {
		panic("BUG: InsertClonedBefore called with a terminator opcode")
	}
	in := f.newInstruction()
	*in = Instruction{
		Opcode:     src.Opcode,
		Operands:   operands,
		Loc:        src.Loc,
		HasLoc:     src.HasLoc,
		Pred:         src.Pred,
		CalleeName:   src.CalleeName,
		IsExternCall: src.IsExternCall,
		AllocaSize:   src.AllocaSize,
		AllocaType:   src.AllocaType,
		GEPOffset:    src.GEPOffset,
	}
	if src.HasResult {
		in.HasResult = true
		in.ResultTemp = f.AllocateTemp()
		in.ResultType = src.ResultType
	}

	b := before.block
	in.block = b
	in.next = before
	in.prev = before.prev
	if before.prev != nil {
		before.prev.next = in
	} else {
		b.rootInstr = in
	}
	before.prev = in
	return in
}
