// Package verify implements the Viper IL verifier (spec.md §4.2): the gate
// run at module boundaries — after front-end lowering, after each pass, and
// before execution — that enforces the structural, dominance, typing,
// terminator and call-signature invariants of spec.md §3.
package verify

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/splanck/viper-sub013/internal/il"
)

// Mode selects how aggressively the verifier treats advisory-only
// conditions. Strict treats every Diagnostic as fatal; Lenient downgrades
// KindAllocaPlacement to a Warning, resolving spec.md §9's open question
// about non-entry Alloca placement in favor of "warn, don't block."
type Mode byte

const (
	ModeStrict Mode = iota
	ModeLenient
)

// Result is the outcome of verifying a Module: the errors (if any) and any
// warnings collected regardless of outcome.
type Result struct {
	Errors   []*Diagnostic
	Warnings []*Diagnostic
}

// OK reports whether verification passed (no fatal errors).
func (r *Result) OK() bool { return len(r.Errors) == 0 }

// Verify runs the verifier over every function in m and returns the
// collected diagnostics. Per spec.md §4.2's failure semantics, at most one
// error is reported per function — a function whose first checked
// invariant fails does not cascade into spurious downstream errors — but
// the verifier always continues on to the next function so a whole module
// can be debugged in one pass.
func Verify(m *il.Module, mode Mode) *Result {
	res := &Result{}
	for _, fn := range m.Functions {
		v := &funcVerifier{m: m, fn: fn, mode: mode}
		if diag := v.run(); diag != nil {
			if diag.Severity == SeverityWarning {
				res.Warnings = append(res.Warnings, diag)
			} else {
				res.Errors = append(res.Errors, diag)
			}
		}
		res.Warnings = append(res.Warnings, v.warnings...)
	}
	return res
}

type funcVerifier struct {
	m        *il.Module
	fn       *il.Function
	mode     Mode
	dom      *domInfo
	defined  map[il.Temp]*il.BasicBlock // block that defines each temp
	warnings []*Diagnostic
}

func (v *funcVerifier) fail(kind Kind, loc il.SourceLoc, format string, args ...interface{}) *Diagnostic {
	return &Diagnostic{
		Kind:     kind,
		Severity: SeverityError,
		Function: v.fn.Name,
		Message:  fmt.Sprintf(format, args...),
		Loc:      loc,
	}
}

func (v *funcVerifier) warn(kind Kind, loc il.SourceLoc, format string, args ...interface{}) {
	v.warnings = append(v.warnings, &Diagnostic{
		Kind:     kind,
		Severity: SeverityWarning,
		Function: v.fn.Name,
		Message:  fmt.Sprintf(format, args...),
		Loc:      loc,
	})
}

// run performs the single pass per function described in spec.md §4.2:
// label map, dominance, typed instruction walk, terminator check, call
// signatures, branch-argument bundles. It returns the first fatal
// diagnostic found, or nil.
func (v *funcVerifier) run() *Diagnostic {
	if d := v.checkLabelsUnique(); d != nil {
		return d
	}
	v.dom = computeDominance(v.fn)
	if d := v.checkEntry(); d != nil {
		return d
	}

	v.defined = make(map[il.Temp]*il.BasicBlock)
	for _, b := range v.fn.LiveBlocks() {
		for _, p := range b.Params {
			v.defined[p.Temp] = b
		}
		for cur := b.Root(); cur != nil; cur = cur.Next() {
			if cur.HasResult {
				v.defined[cur.ResultTemp] = b
			}
			if cur.HasResult2 {
				v.defined[cur.ResultTemp2] = b
			}
		}
	}

	for _, b := range v.fn.LiveBlocks() {
		if d := v.checkBlock(b); d != nil {
			return d
		}
	}
	return nil
}

func (v *funcVerifier) checkLabelsUnique() *Diagnostic {
	seen := map[string]bool{}
	for _, b := range v.fn.Blocks() {
		if seen[b.Label] {
			return v.fail(KindStructural, il.SourceLoc{}, "duplicate block label %q", b.Label)
		}
		seen[b.Label] = true
	}
	return nil
}

func (v *funcVerifier) checkEntry() *Diagnostic {
	entry := v.fn.Entry()
	if entry == nil {
		return v.fail(KindStructural, il.SourceLoc{}, "function has no entry block")
	}
	if len(entry.Preds()) != 0 {
		return v.fail(KindStructural, il.SourceLoc{}, "entry block %q must have no predecessors", entry.Label)
	}
	return nil
}

// checkBlock enforces: exactly one terminator as the last instruction
// (spec.md §3 invariant 3); every operand dominated by its definition
// (invariant 2); opcode-level type rules (invariant 5); branch-argument
// arity and element-type match against the target's parameter list
// (invariant 4); EhEntry/EhThrow placement (invariant 7).
func (v *funcVerifier) checkBlock(b *il.BasicBlock) *Diagnostic {
	if b.Terminator() == nil {
		return v.fail(KindTerminator, il.SourceLoc{}, "block %q has no terminator", b.Label)
	}
	sawEhEntry := false
	n := 0
	for cur := b.Root(); cur != nil; cur = cur.Next() {
		n++
		isLast := cur == b.Terminator()
		if cur.Opcode.IsTerminator() && !isLast {
			return v.fail(KindTerminator, cur.Loc, "terminator %s is not the last instruction of block %q", cur.Opcode, b.Label)
		}
		if !cur.Opcode.IsTerminator() && isLast {
			return v.fail(KindTerminator, cur.Loc, "block %q does not end with a terminator", b.Label)
		}
		if cur.Opcode == il.OpEhEntry {
			if n != 1 {
				return v.fail(KindEH, cur.Loc, "EhEntry must be the first non-parameter instruction of its block")
			}
			sawEhEntry = true
		}
		_ = sawEhEntry

		for _, operand := range cur.Operands {
			if d := v.checkOperandDominance(cur, operand); d != nil {
				return d
			}
		}
		if d := v.checkOpcodeTypes(cur); d != nil {
			return d
		}
	}
	if d := v.checkTerminatorEdges(b, b.Terminator()); d != nil {
		return d
	}
	return nil
}

func (v *funcVerifier) checkOperandDominance(in *il.Instruction, op il.Value) *Diagnostic {
	if op.Kind != il.ValueTemp {
		return nil
	}
	defBlock, ok := v.defined[op.Temp]
	if !ok {
		return v.fail(KindStructural, in.Loc, "use of undefined temp %s", op.Temp)
	}
	useBlock := in.Block()
	if defBlock == useBlock {
		// Same-block order check: definitions always precede the use
		// textually since the builder only ever appends; block params are
		// defined at block entry, dominating everything in the block.
		return nil
	}
	if !v.dom.dominates(defBlock, useBlock) {
		return v.fail(KindDominance, in.Loc, "definition of %s in block %q does not dominate its use in block %q",
			op.Temp, defBlock.Label, useBlock.Label)
	}
	return nil
}

// checkTerminatorEdges validates spec.md §3 invariant 4: every branch
// target exists (guaranteed by construction in this in-memory IR; checked
// here for IR built by ilfmt's parser) and argument bundles match the
// target's parameter list in arity and element type.
func (v *funcVerifier) checkTerminatorEdges(b *il.BasicBlock, term *il.Instruction) *Diagnostic {
	for _, e := range term.Edges() {
		if e.Target == nil {
			return v.fail(KindBranchArgs, term.Loc, "branch in block %q targets a nil block", b.Label)
		}
		if len(e.Args) != len(e.Target.Params) {
			return v.fail(KindBranchArgs, term.Loc, "branch from %q to %q passes %d argument(s), target expects %d",
				b.Label, e.Target.Label, len(e.Args), len(e.Target.Params))
		}
		for i, a := range e.Args {
			want := e.Target.Params[i].Type
			if a.Type() != want {
				return v.fail(KindBranchArgs, term.Loc, "branch from %q to %q argument %d has type %s, target parameter expects %s",
					b.Label, e.Target.Label, i, a.Type(), want)
			}
		}
	}
	return nil
}

// checkOpcodeTypes implements spec.md §3 invariant 5 (operand types match
// opcode requirements) and invariant 6 (non-entry Alloca is legal but not
// reliably promoted — collected as a warning under Lenient mode, a hard
// error under Strict).
func (v *funcVerifier) checkOpcodeTypes(in *il.Instruction) *Diagnostic {
	switch in.Opcode {
	case il.OpAdd, il.OpSub, il.OpMul, il.OpSDiv, il.OpUDiv, il.OpSRem, il.OpURem,
		il.OpAnd, il.OpOr, il.OpXor, il.OpShl, il.OpLShr, il.OpAShr:
		return v.wantBinary(in, func(t il.Type) bool { return t.IsInteger() })

	case il.OpFAdd, il.OpFSub, il.OpFMul, il.OpFDiv:
		return v.wantBinary(in, func(t il.Type) bool { return t == il.TypeF64 })

	case il.OpICmpEq, il.OpICmpNe, il.OpICmpSlt, il.OpICmpSle, il.OpICmpSgt, il.OpICmpSge,
		il.OpICmpUlt, il.OpICmpUle, il.OpICmpUgt, il.OpICmpUge:
		if len(in.Operands) != 2 || in.Operands[0].Type() != in.Operands[1].Type() || !in.Operands[0].Type().IsInteger() {
			return v.fail(KindType, in.Loc, "%s requires two operands of matching integer type", in.Opcode)
		}
		if in.ResultType != il.TypeI1 {
			return v.fail(KindType, in.Loc, "%s must produce i1", in.Opcode)
		}

	case il.OpFCmpOrd, il.OpFCmpUno:
		if len(in.Operands) != 2 || in.Operands[0].Type() != il.TypeF64 || in.Operands[1].Type() != il.TypeF64 {
			return v.fail(KindType, in.Loc, "%s requires two f64 operands", in.Opcode)
		}
		if in.ResultType != il.TypeI1 {
			return v.fail(KindType, in.Loc, "%s must produce i1", in.Opcode)
		}

	case il.OpSiToFp:
		if len(in.Operands) != 1 || !in.Operands[0].Type().IsInteger() || in.ResultType != il.TypeF64 {
			return v.fail(KindType, in.Loc, "si_to_fp requires one integer operand and an f64 result")
		}

	case il.OpFpToSi:
		if len(in.Operands) != 1 || in.Operands[0].Type() != il.TypeF64 || !in.ResultType.IsInteger() {
			return v.fail(KindType, in.Loc, "fp_to_si requires an f64 operand and an integer result")
		}

	case il.OpZExt, il.OpSExt:
		if len(in.Operands) != 1 || !in.Operands[0].Type().IsInteger() || !in.ResultType.IsInteger() {
			return v.fail(KindType, in.Loc, "%s requires integer operand and result", in.Opcode)
		}
		if in.Operands[0].Type().IntWidth() > in.ResultType.IntWidth() {
			return v.fail(KindType, in.Loc, "%s cannot narrow %s to %s", in.Opcode, in.Operands[0].Type(), in.ResultType)
		}

	case il.OpTrunc:
		if len(in.Operands) != 1 || !in.Operands[0].Type().IsInteger() || !in.ResultType.IsInteger() {
			return v.fail(KindType, in.Loc, "trunc requires integer operand and result")
		}
		if in.Operands[0].Type().IntWidth() < in.ResultType.IntWidth() {
			return v.fail(KindType, in.Loc, "trunc cannot widen %s to %s", in.Operands[0].Type(), in.ResultType)
		}

	case il.OpBitcast:
		if len(in.Operands) != 1 {
			return v.fail(KindType, in.Loc, "bitcast requires exactly one operand")
		}

	case il.OpAlloca:
		if in.Block() != v.fn.Entry() {
			if v.mode == ModeStrict {
				return v.fail(KindAllocaPlacement, in.Loc, "alloca outside entry block will not be promoted by mem2reg")
			}
			v.warn(KindAllocaPlacement, in.Loc, "alloca outside entry block in %q will not be promoted by mem2reg", in.Block().Label)
		}
		if in.ResultType != il.TypePtr {
			return v.fail(KindType, in.Loc, "alloca must produce ptr")
		}

	case il.OpLoad:
		if len(in.Operands) != 1 || in.Operands[0].Type() != il.TypePtr {
			return v.fail(KindType, in.Loc, "load requires a ptr operand")
		}

	case il.OpStore:
		if len(in.Operands) != 2 || in.Operands[0].Type() != il.TypePtr {
			return v.fail(KindType, in.Loc, "store requires a ptr operand and a value")
		}

	case il.OpGEP:
		if len(in.Operands) != 1 || in.Operands[0].Type() != il.TypePtr || in.ResultType != il.TypePtr {
			return v.fail(KindType, in.Loc, "gep requires a ptr operand and produces ptr")
		}

	case il.OpCBr:
		if len(in.Operands) != 1 || in.Operands[0].Type() != il.TypeI1 {
			return v.fail(KindType, in.Loc, "cbr condition must be i1")
		}

	case il.OpSwitch:
		if len(in.Operands) != 1 || !in.Operands[0].Type().IsInteger() {
			return v.fail(KindType, in.Loc, "switch value must be an integer")
		}

	case il.OpCall:
		return v.checkCall(in)

	case il.OpSDivChk0:
		if len(in.Operands) != 2 || in.Operands[0].Type() != il.TypeI64 || in.Operands[1].Type() != il.TypeI64 {
			return v.fail(KindType, in.Loc, "sdiv_chk0 requires two i64 operands")
		}

	case il.OpIdxChk:
		if len(in.Operands) != 3 {
			return v.fail(KindType, in.Loc, "idx_chk requires index, lo, hi operands")
		}

	case il.OpCastSiNarrowChk:
		if len(in.Operands) != 1 || in.Operands[0].Type() != il.TypeF64 {
			return v.fail(KindType, in.Loc, "cast_si_narrow_chk requires an f64 operand")
		}
		if !in.ResultType.IsInteger() {
			return v.fail(KindType, in.Loc, "cast_si_narrow_chk must produce an integer")
		}

	case il.OpEhEntry:
		if in.ResultType != il.TypeI64 || in.ResultType2 != il.TypeStr {
			return v.fail(KindEH, in.Loc, "eh_entry must bind (i64 kind, str message)")
		}

	case il.OpEhThrow:
		// kind/message carried as instruction fields, no operand shape to check.

	case il.OpRetain, il.OpRelease:
		if len(in.Operands) != 1 || !in.Operands[0].Type().IsRefCounted() {
			return v.fail(KindType, in.Loc, "%s requires a str or obj operand", in.Opcode)
		}

	case il.OpRet:
		return v.checkRet(in)
	}
	return nil
}

func (v *funcVerifier) wantBinary(in *il.Instruction, ok func(il.Type) bool) *Diagnostic {
	if len(in.Operands) != 2 {
		return v.fail(KindType, in.Loc, "%s requires exactly two operands", in.Opcode)
	}
	lt, rt := in.Operands[0].Type(), in.Operands[1].Type()
	if lt != rt || !ok(lt) {
		return v.fail(KindType, in.Loc, "%s requires matching operand types, got %s and %s", in.Opcode, lt, rt)
	}
	if in.ResultType != lt {
		return v.fail(KindType, in.Loc, "%s result type %s does not match operand type %s", in.Opcode, in.ResultType, lt)
	}
	return nil
}

func (v *funcVerifier) checkRet(in *il.Instruction) *Diagnostic {
	if v.fn.Sig.Result == il.TypeVoid {
		if len(in.Operands) != 0 {
			return v.fail(KindType, in.Loc, "ret in void function %q must not carry a value", v.fn.Name)
		}
		return nil
	}
	if len(in.Operands) != 1 {
		return v.fail(KindType, in.Loc, "ret in %q must carry exactly one value", v.fn.Name)
	}
	if in.Operands[0].Type() != v.fn.Sig.Result {
		return v.fail(KindType, in.Loc, "ret value type %s does not match %q's declared result %s",
			in.Operands[0].Type(), v.fn.Name, v.fn.Sig.Result)
	}
	return nil
}

// checkCall implements spec.md §3 invariant 5's Call-specific clause:
// argument types match callee signature, resolved against either the
// module's function table or its extern declarations.
func (v *funcVerifier) checkCall(in *il.Instruction) *Diagnostic {
	var sig il.Signature
	if in.IsExternCall {
		e := v.m.ExternByName(in.CalleeName)
		if e == nil {
			return v.fail(KindCallSignature, in.Loc, "call to undeclared extern %q", in.CalleeName)
		}
		sig = e.Sig
	} else {
		callee := v.m.FunctionByName(in.CalleeName)
		if callee == nil {
			return v.fail(KindCallSignature, in.Loc, "call to undefined function %q", in.CalleeName)
		}
		sig = callee.Sig
	}
	if len(in.Operands) != len(sig.Params) {
		return v.fail(KindCallSignature, in.Loc, "call to %q passes %d argument(s), signature expects %d",
			in.CalleeName, len(in.Operands), len(sig.Params))
	}
	for i, a := range in.Operands {
		if a.Type() != sig.Params[i] {
			return v.fail(KindCallSignature, in.Loc, "call to %q argument %d has type %s, expected %s",
				in.CalleeName, i, a.Type(), sig.Params[i])
		}
	}
	if in.HasResult && in.ResultType != sig.Result {
		return v.fail(KindCallSignature, in.Loc, "call to %q result type %s does not match signature result %s",
			in.CalleeName, in.ResultType, sig.Result)
	}
	return nil
}

// MustVerify is a convenience for callers (the pass pipeline in debug
// builds, the VM at load time) that want a plain Go error rather than a
// structured Result, wrapped with github.com/pkg/errors so the cause chain
// survives crossing the package boundary.
func MustVerify(m *il.Module, mode Mode) error {
	res := Verify(m, mode)
	if res.OK() {
		return nil
	}
	return errors.Wrapf(res.Errors[0], "verify: module failed with %d error(s)", len(res.Errors))
}
