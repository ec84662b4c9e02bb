package il

// Opcode is drawn from a fixed, closed set of roughly eighty instructions,
// partitioned below exactly as spec.md §3 groups them.
type Opcode uint32

const (
	OpInvalid Opcode = iota

	// --- arithmetic (integer) ---
	OpAdd
	OpSub
	OpMul
	OpSDiv
	OpUDiv
	OpSRem
	OpURem

	// --- arithmetic (float) ---
	OpFAdd
	OpFSub
	OpFMul
	OpFDiv

	// --- bitwise / shifts ---
	OpAnd
	OpOr
	OpXor
	OpShl
	OpLShr
	OpAShr

	// --- integer comparisons ---
	OpICmpEq
	OpICmpNe
	OpICmpSlt
	OpICmpSle
	OpICmpSgt
	OpICmpSge
	OpICmpUlt
	OpICmpUle
	OpICmpUgt
	OpICmpUge

	// --- float comparisons ---
	OpFCmpOrd
	OpFCmpUno

	// --- casts ---
	OpSiToFp
	OpFpToSi
	OpZExt
	OpSExt
	OpTrunc
	OpBitcast

	// --- memory ---
	OpAlloca
	OpLoad
	OpStore
	OpGEP

	// --- control (all terminators) ---
	OpBr
	OpCBr
	OpSwitch
	OpRet
	OpTrap

	// --- calls ---
	OpCall
	OpCallIndirect

	// --- checked arithmetic / index ---
	OpSDivChk0
	OpIdxChk
	OpCastSiNarrowChk

	// --- exception handling ---
	OpEhEntry
	OpEhThrow // terminator

	// --- reference counting (explicit IL-level ops paired by front ends
	// per the retain/release protocol of spec.md §4.1/§4.6) ---
	OpRetain
	OpRelease

	// --- opaque constants ---
	OpConstI64
	OpConstF64
	OpConstStr
	OpGlobalAddr
	OpNullPtr

	opcodeCount
)

// CmpPred is the comparison predicate carried by comparison opcodes.
type CmpPred byte

const (
	PredEq CmpPred = iota
	PredNe
	PredLt
	PredLe
	PredGt
	PredGe
)

var opcodeNames = [opcodeCount]string{
	OpInvalid:         "invalid",
	OpAdd:             "add",
	OpSub:             "sub",
	OpMul:             "mul",
	OpSDiv:            "sdiv",
	OpUDiv:            "udiv",
	OpSRem:            "srem",
	OpURem:            "urem",
	OpFAdd:            "fadd",
	OpFSub:            "fsub",
	OpFMul:            "fmul",
	OpFDiv:            "fdiv",
	OpAnd:             "and",
	OpOr:              "or",
	OpXor:             "xor",
	OpShl:             "shl",
	OpLShr:            "lshr",
	OpAShr:            "ashr",
	OpICmpEq:          "icmp_eq",
	OpICmpNe:          "icmp_ne",
	OpICmpSlt:         "icmp_slt",
	OpICmpSle:         "icmp_sle",
	OpICmpSgt:         "icmp_sgt",
	OpICmpSge:         "icmp_sge",
	OpICmpUlt:         "icmp_ult",
	OpICmpUle:         "icmp_ule",
	OpICmpUgt:         "icmp_ugt",
	OpICmpUge:         "icmp_uge",
	OpFCmpOrd:         "fcmp_ord",
	OpFCmpUno:         "fcmp_uno",
	OpSiToFp:          "si_to_fp",
	OpFpToSi:          "fp_to_si",
	OpZExt:            "zext",
	OpSExt:            "sext",
	OpTrunc:           "trunc",
	OpBitcast:         "bitcast",
	OpAlloca:          "alloca",
	OpLoad:            "load",
	OpStore:           "store",
	OpGEP:             "gep",
	OpBr:              "br",
	OpCBr:             "cbr",
	OpSwitch:          "switch",
	OpRet:             "ret",
	OpTrap:            "trap",
	OpCall:            "call",
	OpCallIndirect:    "call_indirect",
	OpSDivChk0:        "sdiv_chk0",
	OpIdxChk:          "idx_chk",
	OpCastSiNarrowChk: "cast_si_narrow_chk",
	OpEhEntry:         "eh_entry",
	OpEhThrow:         "eh_throw",
	OpRetain:          "retain",
	OpRelease:         "release",
	OpConstI64:        "const_i64",
	OpConstF64:        "const_f64",
	OpConstStr:        "const_str",
	OpGlobalAddr:      "global_addr",
	OpNullPtr:         "null_ptr",
}

func (op Opcode) String() string {
	if int(op) < len(opcodeNames) {
		if s := opcodeNames[op]; s != "" {
			return s
		}
	}
	return "unknown_opcode"
}

var opcodeByName map[string]Opcode

func init() {
	opcodeByName = make(map[string]Opcode, opcodeCount)
	for op, name := range opcodeNames {
		if name != "" {
			opcodeByName[name] = Opcode(op)
		}
	}
}

// ParseOpcode parses the textual mnemonic used by internal/ilfmt, returning
// OpInvalid for anything unrecognized.
func ParseOpcode(s string) Opcode {
	return opcodeByName[s]
}

var cmpPredNames = [...]string{"eq", "ne", "lt", "le", "gt", "ge"}

func (p CmpPred) String() string {
	if int(p) < len(cmpPredNames) {
		return cmpPredNames[p]
	}
	return "invalid"
}

// ParseCmpPred parses the textual spelling used by internal/ilfmt.
func ParseCmpPred(s string) (CmpPred, bool) {
	for i, n := range cmpPredNames {
		if n == s {
			return CmpPred(i), true
		}
	}
	return 0, false
}

// IsTerminator reports whether op must be the last instruction of a block.
func (op Opcode) IsTerminator() bool {
	switch op {
	case OpBr, OpCBr, OpSwitch, OpRet, OpTrap, OpEhThrow:
		return true
	}
	return false
}

// HasSideEffects reports whether op must never be removed by dead-code
// elimination even with an unused result. Grounded on the teacher's
// ssa.Instruction.HasSideEffects contract (internal/engine/wazevo/ssa), which
// the DCE pass (internal/pass) queries the same way.
func (op Opcode) HasSideEffects() bool {
	switch op {
	case OpStore, OpCall, OpCallIndirect, OpBr, OpCBr, OpSwitch, OpRet, OpTrap,
		OpEhEntry, OpEhThrow, OpRetain, OpRelease,
		OpSDivChk0, OpIdxChk, OpCastSiNarrowChk, OpSDiv, OpUDiv, OpSRem, OpURem,
		OpFpToSi:
		return true
	}
	return false
}

// IsCommutative reports whether operand order can be swapped freely, used by
// EarlyCSE's hash-cons key normalization.
func (op Opcode) IsCommutative() bool {
	switch op {
	case OpAdd, OpMul, OpAnd, OpOr, OpXor, OpFAdd, OpFMul, OpICmpEq, OpICmpNe:
		return true
	}
	return false
}
