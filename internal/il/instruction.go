package il

import (
	"fmt"
	"strings"
)

// SourceLoc is optional debug metadata attached to an Instruction.
type SourceLoc struct {
	File string
	Line int
	Col  int
}

func (l SourceLoc) String() string {
	if l.File == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Col)
}

// Edge is a branch target together with the argument bundle that binds to
// the target block's parameter list. This is spec.md's "block parameter
// bundle" modeled explicitly, per the re-architecture note in spec.md §9.
type Edge struct {
	Target *BasicBlock
	Args   []Value
}

// SwitchCase is one arm of a Switch terminator.
type SwitchCase struct {
	Value int64
	Edge  Edge
}

// Instruction is the single flattened record type for all ~80 opcodes.
// Which fields are meaningful is determined by Opcode, matching the
// teacher's own "flattened instruction, meaning depends on Opcode" shape
// (internal/engine/wazevo/ssa.Instruction).
type Instruction struct {
	Opcode     Opcode
	ResultType Type
	ResultTemp Temp
	HasResult  bool

	// Second result, used only by EhEntry to bind the trap message
	// alongside the trap kind (spec.md §6: "the core only guarantees that
	// EhEntry receives the kind and message as its parameters").
	ResultType2 Type
	ResultTemp2 Temp
	HasResult2  bool

	Operands []Value
	Loc      SourceLoc
	HasLoc   bool

	// Control flow.
	Then, Else Edge        // CBr
	Jump       Edge        // Br
	Cases      []SwitchCase // Switch
	Default    Edge         // Switch

	// Comparisons.
	Pred CmpPred

	// Calls.
	Callee       FnID
	CalleeName   string // resolved extern/function name, for diagnostics and bridge dispatch
	IsExternCall bool

	// Alloca.
	AllocaSize int64
	AllocaType Type // element type being allocated

	// GEP.
	GEPOffset int64

	// Trap / EhThrow.
	TrapKind TrapKind
	TrapMsg  string

	// linked list within the owning block, mirroring the teacher's
	// rootInstr/currentInstr/prev/next chain (ssa/basic_block.go) so
	// DCE/SimplifyCFG can splice instructions without rebuilding slices.
	prev, next *Instruction
	block      *BasicBlock

	// live is set true by DCE's mark phase; unmarked instructions without
	// side effects are pruned (internal/pass/dce.go).
	live bool
}

// Result returns the Value produced by this instruction, or the invalid
// Value if it produces none.
func (in *Instruction) Result() Value {
	if !in.HasResult {
		return Value{}
	}
	return TempValue(in.ResultTemp, in.ResultType)
}

// Results returns every Value this instruction defines (at most two: only
// EhEntry defines a second).
func (in *Instruction) Results() []Value {
	var out []Value
	if in.HasResult {
		out = append(out, TempValue(in.ResultTemp, in.ResultType))
	}
	if in.HasResult2 {
		out = append(out, TempValue(in.ResultTemp2, in.ResultType2))
	}
	return out
}

// Next returns the next instruction in program order within the block, or
// nil at the end.
func (in *Instruction) Next() *Instruction { return in.next }

// Prev returns the previous instruction in program order, or nil at start.
func (in *Instruction) Prev() *Instruction { return in.prev }

// Block returns the owning block.
func (in *Instruction) Block() *BasicBlock { return in.block }

// Edges returns every outgoing control-flow edge of a terminator, in the
// order a verifier or pass should treat them (then/else/jump-target first,
// switch cases in declaration order, default last).
func (in *Instruction) Edges() []Edge {
	switch in.Opcode {
	case OpBr:
		return []Edge{in.Jump}
	case OpCBr:
		return []Edge{in.Then, in.Else}
	case OpSwitch:
		es := make([]Edge, 0, len(in.Cases)+1)
		for _, c := range in.Cases {
			es = append(es, c.Edge)
		}
		return append(es, in.Default)
	}
	return nil
}

// Args returns operand values this instruction reads (for dominance checks,
// DCE liveness walks and CSE hashing). Edge argument bundles are included,
// since a live branch keeps its argument producers alive.
func (in *Instruction) Args() []Value {
	args := append([]Value(nil), in.Operands...)
	for _, e := range in.Edges() {
		args = append(args, e.Args...)
	}
	return args
}

func (in *Instruction) String() string {
	var b strings.Builder
	if in.HasResult {
		fmt.Fprintf(&b, "%s = ", TempValue(in.ResultTemp, in.ResultType))
	}
	b.WriteString(in.Opcode.String())
	for _, op := range in.Operands {
		b.WriteByte(' ')
		b.WriteString(op.String())
	}
	switch in.Opcode {
	case OpBr:
		fmt.Fprintf(&b, " %s(%s)", in.Jump.Target.Label, joinValues(in.Jump.Args))
	case OpCBr:
		fmt.Fprintf(&b, " %s(%s) %s(%s)", in.Then.Target.Label, joinValues(in.Then.Args),
			in.Else.Target.Label, joinValues(in.Else.Args))
	case OpCall, OpCallIndirect:
		fmt.Fprintf(&b, " @%s", in.CalleeName)
	case OpTrap, OpEhThrow:
		fmt.Fprintf(&b, " %s %q", in.TrapKind, in.TrapMsg)
	}
	if in.HasLoc {
		fmt.Fprintf(&b, "  ; %s", in.Loc)
	}
	return b.String()
}

func joinValues(vs []Value) string {
	ss := make([]string, len(vs))
	for i, v := range vs {
		ss[i] = v.String()
	}
	return strings.Join(ss, ", ")
}
