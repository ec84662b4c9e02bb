package il

import (
	"fmt"
	"strings"
)

// BlockParam is a declared (Temp, Type) pair bound by every incoming edge's
// argument bundle — the SSA-equivalent of a φ-node (spec.md §3).
type BlockParam struct {
	Temp Temp
	Type Type
}

// predInfo records one predecessor of a block together with the terminator
// instruction whose edge targets it, mirroring the teacher's
// basicBlockPredecessorInfo (internal/engine/wazevo/ssa/basic_block.go).
type predInfo struct {
	block  *BasicBlock
	branch *Instruction
}

// BasicBlock is a label, a parameter list, a body of non-terminator
// instructions, and exactly one terminator.
type BasicBlock struct {
	ID     uint32
	Label  string
	Params []BlockParam

	fn *Function

	rootInstr, tailInstr *Instruction
	terminator           *Instruction

	preds   []predInfo
	succs   []*BasicBlock
	sealed  bool
	invalid bool // set true by SimplifyCFG's dead-block elimination

	// lastDefinitions/unknownValues back the builder's variable-threading
	// algorithm (Braun et al.), reused unchanged from the teacher's
	// findValue/Seal machinery (internal/engine/wazevo/ssa/builder.go) for
	// both normal construction and Mem2Reg promotion.
	lastDefinitions map[Variable]Value
	unknownValues   map[Variable]Value
}

// Valid reports whether this block survived optimization (SimplifyCFG may
// mark unreachable blocks invalid rather than splicing them out eagerly).
func (b *BasicBlock) Valid() bool { return !b.invalid }

// Sealed reports whether all predecessors of this block are known.
func (b *BasicBlock) Sealed() bool { return b.sealed }

// Preds returns the predecessor blocks, in the order edges were added.
func (b *BasicBlock) Preds() []*BasicBlock {
	out := make([]*BasicBlock, len(b.preds))
	for i, p := range b.preds {
		out[i] = p.block
	}
	return out
}

// Succs returns the successor blocks in program order.
func (b *BasicBlock) Succs() []*BasicBlock { return b.succs }

// Root returns the first instruction in the block (a body instruction, or
// the terminator if the body is empty).
func (b *BasicBlock) Root() *Instruction {
	if b.rootInstr != nil {
		return b.rootInstr
	}
	return b.terminator
}

// Terminator returns the block's single terminating instruction. Every
// valid block has exactly one, as its last instruction (spec.md §3
// invariant 3).
func (b *BasicBlock) Terminator() *Instruction { return b.terminator }

// Instructions returns the non-terminator body instructions in order.
func (b *BasicBlock) Instructions() []*Instruction {
	var out []*Instruction
	for cur := b.rootInstr; cur != nil; cur = cur.next {
		out = append(out, cur)
	}
	return out
}

// insert appends next to the tail of the instruction list. If next is a
// terminator it becomes b.terminator, mirroring the teacher's
// BasicBlock.InsertInstruction (ssa/basic_block.go). Predecessor/successor
// registration for terminators is deliberately NOT done here: a terminator's
// Jump/Then/Else/Cases/Default fields are populated by the Emit* caller
// after insert returns (the builder allocates the instruction, appends it,
// then fills in its edges), so registering edges at insert time would read
// them before they exist. Callers finalize edges via finalizeTerminator.
func (b *BasicBlock) insert(next *Instruction) {
	next.block = b
	if b.tailInstr != nil {
		b.tailInstr.next = next
		next.prev = b.tailInstr
	} else {
		b.rootInstr = next
	}
	b.tailInstr = next

	if next.Opcode.IsTerminator() {
		b.terminator = next
	}
}

// finalizeTerminator registers b as a predecessor of every edge target now
// that next's Jump/Then/Else/Cases/Default fields have been populated. Every
// Emit* terminator builder method calls this once its edges are set.
func (b *BasicBlock) finalizeTerminator(next *Instruction) {
	for _, e := range next.Edges() {
		if e.Target != nil {
			e.Target.addPred(b, next)
		}
	}
}

// RemoveInstruction splices in out of the instruction list. Used by DCE and
// SimplifyCFG.
func (b *BasicBlock) RemoveInstruction(in *Instruction) {
	if in.prev != nil {
		in.prev.next = in.next
	} else {
		b.rootInstr = in.next
	}
	if in.next != nil {
		in.next.prev = in.prev
	} else {
		b.tailInstr = in.prev
	}
	if b.terminator == in {
		b.terminator = nil
	}
	in.prev, in.next, in.block = nil, nil, nil
}

func (b *BasicBlock) addPred(pred *BasicBlock, branch *Instruction) {
	if b.sealed {
		panic("BUG: adding predecessor to sealed block " + b.Label)
	}
	b.preds = append(b.preds, predInfo{block: pred, branch: branch})
	pred.succs = append(pred.succs, b)
}

// IncomingArgs returns, for every predecessor edge into b, the argument
// Value that edge binds to b's paramIdx-th parameter — the φ-node inputs a
// lattice meet over block parameters reads (spec.md §4.3: "block params are
// ϕ-nodes merging only executable predecessors"). A predecessor whose
// branch does not target b with enough arguments contributes nothing,
// which can only happen mid-construction before the builder has finished
// wiring an edge.
func (b *BasicBlock) IncomingArgs(paramIdx int) []Value {
	out := make([]Value, 0, len(b.preds))
	for _, p := range b.preds {
		if p.block.invalid {
			continue
		}
		for _, e := range p.branch.Edges() {
			if e.Target == b && paramIdx < len(e.Args) {
				out = append(out, e.Args[paramIdx])
			}
		}
	}
	return out
}

// AddParam declares a new block parameter of the given type and returns its
// Temp.
func (b *BasicBlock) AddParam(t Temp, typ Type) BlockParam {
	p := BlockParam{Temp: t, Type: typ}
	b.Params = append(b.Params, p)
	return p
}

func (b *BasicBlock) String() string { return b.Label }

func (b *BasicBlock) header() string {
	params := make([]string, len(b.Params))
	for i, p := range b.Params {
		params[i] = fmt.Sprintf("%s:%s", TempValue(p.Temp, p.Type), p.Type)
	}
	preds := make([]string, 0, len(b.preds))
	for _, p := range b.preds {
		if p.block.invalid {
			continue
		}
		preds = append(preds, p.block.Label)
	}
	if len(preds) == 0 {
		return fmt.Sprintf("%s(%s):", b.Label, strings.Join(params, ", "))
	}
	return fmt.Sprintf("%s(%s): <- (%s)", b.Label, strings.Join(params, ", "), strings.Join(preds, ", "))
}

// Variable is a source-level variable id used only during construction
// (e.g. by Mem2Reg promoting an Alloca, or a front end threading a local).
// It is resolved to concrete Values by Builder.findValue/Seal and does not
// appear in the final IL.
type Variable uint32
