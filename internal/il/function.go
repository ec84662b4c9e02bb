package il

// Param is a function parameter: its binding Temp and Type. Entry block 0
// binds exactly these as its implicit parameter list (spec.md §3: "entry
// has no parameters other than the function parameters").
type Param struct {
	Temp Temp
	Type Type
}

// Attrs carries function-level annotations consumed by the pass pipeline
// (e.g. inliner hints) without growing the Function struct's common case.
type Attrs struct {
	NoInline bool
	Exported bool
}

// Function owns its blocks and temps. Block 0 in Blocks is always the
// entry block.
type Function struct {
	Name   string
	Sig    Signature
	Params []Param
	Attrs  Attrs

	blocks      []*BasicBlock
	blocksPool  pool[BasicBlock]
	instrPool   pool[Instruction]
	nextTemp    Temp
	nextBlockID uint32
}

// NewFunction creates an empty function with the given name and signature.
// Use Builder to populate it.
func NewFunction(name string, sig Signature) *Function {
	f := &Function{
		Name:       name,
		Sig:        sig,
		blocksPool: newPool[BasicBlock](),
		instrPool:  newPool[Instruction](),
	}
	return f
}

// Blocks returns the blocks of the function in creation order. Block 0 is
// the entry block.
func (f *Function) Blocks() []*BasicBlock { return f.blocks }

// Entry returns the function's entry block (Blocks()[0]).
func (f *Function) Entry() *BasicBlock {
	if len(f.blocks) == 0 {
		return nil
	}
	return f.blocks[0]
}

// BlockByLabel finds a block by its unique-within-function label.
func (f *Function) BlockByLabel(label string) *BasicBlock {
	for _, b := range f.blocks {
		if b.Label == label {
			return b
		}
	}
	return nil
}

// AllocateTemp reserves the next Temp id for this function. Ids are
// monotonically increasing per function, matching the teacher's
// builder.nextValueID counter (ssa/builder.go).
func (f *Function) AllocateTemp() Temp {
	t := f.nextTemp
	f.nextTemp++
	return t
}

// NumTemps returns one past the highest Temp id allocated so far, suitable
// for sizing a per-temp array (e.g. the verifier's "defined" bitset, or a
// VM frame's locals slice).
func (f *Function) NumTemps() int { return int(f.nextTemp) }

// NewBlock allocates a fresh, empty, unsealed block with the caller-supplied
// label and appends it to the function.
func (f *Function) NewBlock(label string) *BasicBlock {
	b := f.blocksPool.allocate()
	*b = BasicBlock{
		ID:              f.nextBlockID,
		Label:           label,
		fn:              f,
		lastDefinitions: make(map[Variable]Value),
		unknownValues:   make(map[Variable]Value),
	}
	f.nextBlockID++
	f.blocks = append(f.blocks, b)
	return b
}

// newInstruction allocates a fresh zero-valued instruction from the
// function's pool, matching the teacher's builder.AllocateInstruction
// (ssa/builder.go).
func (f *Function) newInstruction() *Instruction {
	in := f.instrPool.allocate()
	*in = Instruction{}
	return in
}

// RemoveBlock marks b invalid, used by SimplifyCFG's dead-block
// elimination (internal/pass/simplifycfg.go). It does not detach b: the
// block stays in the pool and in any other block's preds list that still
// points at it; LiveBlocks skips it from then on.
func (f *Function) RemoveBlock(b *BasicBlock) {
	b.invalid = true
}

// LiveBlocks returns every block not marked invalid, in original order.
func (f *Function) LiveBlocks() []*BasicBlock {
	out := make([]*BasicBlock, 0, len(f.blocks))
	for _, b := range f.blocks {
		if !b.invalid {
			out = append(out, b)
		}
	}
	return out
}

// RebuildCFG recomputes every live block's predecessor/successor lists from
// scratch by re-walking each terminator's edges. Passes that rewrite a
// terminator's Jump/Then/Else/Cases/Default in place (SimplifyCFG's jump
// threading, DCE's dead-block pruning) leave the incrementally-maintained
// preds/succs stale; rather than thread delta updates through every such
// rewrite site, those passes call RebuildCFG once when they're done,
// mirroring the teacher's own post-pass CFG refresh
// (internal/engine/wazevo/ssa/pass_cfg.go recomputes reachability and
// dominance from scratch after SimplifyCFG, rather than patching
// incrementally).
func (f *Function) RebuildCFG() {
	live := f.LiveBlocks()
	for _, b := range live {
		b.preds = nil
		b.succs = nil
	}
	for _, b := range live {
		term := b.Terminator()
		if term == nil {
			continue
		}
		for _, e := range term.Edges() {
			if e.Target != nil && !e.Target.invalid {
				e.Target.preds = append(e.Target.preds, predInfo{block: b, branch: term})
				b.succs = append(b.succs, e.Target)
			}
		}
	}
}
