package vm

import (
	"context"
	"math"

	"github.com/splanck/viper-sub013/internal/bridge"
	"github.com/splanck/viper-sub013/internal/il"
	"github.com/splanck/viper-sub013/internal/rtheap"
)

// internMessage materializes a trap message as an immortal interned Str,
// the same representation a front end's string literals get (spec.md
// §4.6), so an EhEntry's bound message behaves identically to any other
// TypeStr value in the handler block — retainable, comparable, and never
// finalized.
func internMessage(msg string) *rtheap.Str {
	return rtheap.Intern([]byte(msg))
}

// control is the outcome of executing one block: either fall through to a
// successor (possibly after binding its block parameters), return from
// the function, or unwind a trap.
type control struct {
	next     *il.BasicBlock
	ret      []bridge.Cell
	returned bool
	trap     *bridge.Trap
}

// execBlock runs every instruction of b in program order — non-terminator
// instructions via execOne, the final terminator via execTerminator. The
// switch and threaded strategies (dispatch_switch.go, dispatch_threaded.go)
// share it; the func-table strategy runs its own execBlockFuncTable
// (dispatch_functable.go), which differs only in calling execOneFuncTable.
func (v *VM) execBlock(ctx context.Context, frame *Frame, b *il.BasicBlock, cache *FunctionExecCache) control {
	for cur := b.Root(); cur != b.Terminator(); cur = cur.Next() {
		if cur.Opcode == il.OpEhEntry {
			continue // only meaningful as a jump target from unwind, not on fallthrough
		}
		if trap := v.execOne(ctx, frame, cur, cache); trap != nil {
			return v.unwind(frame, b, trap)
		}
	}
	return v.execTerminator(ctx, frame, b)
}

// unwind resolves a trap against the function's landing pads, binding the
// EhEntry's two result temps and resuming from there, or reports the trap
// upward if the function declares no handler (spec.md §6).
func (v *VM) unwind(frame *Frame, from *il.BasicBlock, trap *bridge.Trap) control {
	pad := landingPadFor(frame.fn, from)
	if pad == nil {
		return control{trap: trap}
	}
	entry := pad.Root()
	frame.set(entry.ResultTemp, bridge.Cell{Type: il.TypeI64, I64: int64(trap.Kind)})
	frame.set(entry.ResultTemp2, bridge.Cell{Type: il.TypeStr, Str: internMessage(trap.Msg)})
	return control{next: pad}
}

// execOne executes a single non-terminator instruction, writing its
// result(s) into the frame. A non-nil trap return means the caller must
// stop executing this block and begin unwinding.
func (v *VM) execOne(ctx context.Context, frame *Frame, in *il.Instruction, cache *FunctionExecCache) *bridge.Trap {
	shape := cache.shapeOf(frame.fn, in)
	_ = shape // computed for the cache; nothing below reads it

	switch in.Opcode {
	case il.OpConstI64:
		frame.set(in.ResultTemp, bridge.Cell{Type: in.ResultType, I64: in.Operands[0].I64})
	case il.OpConstF64:
		frame.set(in.ResultTemp, bridge.Cell{Type: il.TypeF64, I64: int64(in.Operands[0].F64Bits)})
	case il.OpConstStr:
		frame.set(in.ResultTemp, v.program.global(in.Operands[0].Global))
	case il.OpGlobalAddr:
		frame.set(in.ResultTemp, v.program.global(in.Operands[0].Global))
	case il.OpNullPtr:
		frame.set(in.ResultTemp, bridge.Cell{Type: il.TypePtr, I64: ptrNull})

	case il.OpAdd:
		execIntBinary(frame, in, func(a, b int64) int64 { return a + b })
	case il.OpSub:
		execIntBinary(frame, in, func(a, b int64) int64 { return a - b })
	case il.OpMul:
		execIntBinary(frame, in, func(a, b int64) int64 { return a * b })
	case il.OpSDiv:
		a, b := frame.get(in.Operands[0]).I64, frame.get(in.Operands[1]).I64
		if b == 0 {
			return bridge.New(il.TrapDivByZero, "sdiv by zero", in.Loc)
		}
		if a == math.MinInt64 && b == -1 {
			return bridge.New(il.TrapOverflow, "sdiv overflow", in.Loc)
		}
		frame.set(in.ResultTemp, bridge.Cell{Type: in.ResultType, I64: a / b})
	case il.OpUDiv:
		a, b := uint64(frame.get(in.Operands[0]).I64), uint64(frame.get(in.Operands[1]).I64)
		if b == 0 {
			return bridge.New(il.TrapDivByZero, "udiv by zero", in.Loc)
		}
		frame.set(in.ResultTemp, bridge.Cell{Type: in.ResultType, I64: int64(a / b)})
	case il.OpSRem:
		a, b := frame.get(in.Operands[0]).I64, frame.get(in.Operands[1]).I64
		if b == 0 {
			return bridge.New(il.TrapDivByZero, "srem by zero", in.Loc)
		}
		frame.set(in.ResultTemp, bridge.Cell{Type: in.ResultType, I64: a % b})
	case il.OpURem:
		a, b := uint64(frame.get(in.Operands[0]).I64), uint64(frame.get(in.Operands[1]).I64)
		if b == 0 {
			return bridge.New(il.TrapDivByZero, "urem by zero", in.Loc)
		}
		frame.set(in.ResultTemp, bridge.Cell{Type: in.ResultType, I64: int64(a % b)})
	case il.OpAnd:
		execIntBinary(frame, in, func(a, b int64) int64 { return a & b })
	case il.OpOr:
		execIntBinary(frame, in, func(a, b int64) int64 { return a | b })
	case il.OpXor:
		execIntBinary(frame, in, func(a, b int64) int64 { return a ^ b })
	case il.OpShl:
		execIntBinary(frame, in, func(a, b int64) int64 { return a << uint64(b) })
	case il.OpLShr:
		execIntBinary(frame, in, func(a, b int64) int64 { return int64(uint64(a) >> uint64(b)) })
	case il.OpAShr:
		execIntBinary(frame, in, func(a, b int64) int64 { return a >> uint64(b) })

	case il.OpFAdd:
		execFloatBinary(frame, in, func(a, b float64) float64 { return a + b })
	case il.OpFSub:
		execFloatBinary(frame, in, func(a, b float64) float64 { return a - b })
	case il.OpFMul:
		execFloatBinary(frame, in, func(a, b float64) float64 { return a * b })
	case il.OpFDiv:
		execFloatBinary(frame, in, func(a, b float64) float64 { return a / b })

	case il.OpICmpEq, il.OpICmpNe, il.OpICmpSlt, il.OpICmpSle, il.OpICmpSgt, il.OpICmpSge,
		il.OpICmpUlt, il.OpICmpUle, il.OpICmpUgt, il.OpICmpUge:
		execICmp(frame, in)
	case il.OpFCmpOrd, il.OpFCmpUno:
		execFCmp(frame, in)

	case il.OpSiToFp:
		a := frame.get(in.Operands[0]).I64
		frame.set(in.ResultTemp, bridge.Cell{Type: il.TypeF64, I64: int64(math.Float64bits(float64(a)))})
	case il.OpFpToSi:
		a := math.Float64frombits(uint64(frame.get(in.Operands[0]).I64))
		frame.set(in.ResultTemp, bridge.Cell{Type: in.ResultType, I64: int64(a)})
	case il.OpZExt, il.OpSExt, il.OpTrunc, il.OpBitcast:
		frame.set(in.ResultTemp, bridge.Cell{Type: in.ResultType, I64: maskToWidth(frame.get(in.Operands[0]).I64, in.ResultType)})

	case il.OpAlloca:
		buf := make([]bridge.Cell, in.AllocaSize)
		frame.allocas[in.ResultTemp] = buf
		frame.set(in.ResultTemp, bridge.Cell{Type: il.TypePtr, I64: packPtr(in.ResultTemp, 0)})
	case il.OpLoad:
		ptr := frame.get(in.Operands[0])
		allocaTemp, offset, ok := unpackPtr(ptr.I64)
		if !ok {
			return bridge.New(il.TrapNullPointer, "load through null pointer", in.Loc)
		}
		buf := frame.allocas[allocaTemp]
		if offset < 0 || int(offset) >= len(buf) {
			return bridge.New(il.TrapIndexOutOfBounds, "load out of bounds", in.Loc)
		}
		frame.set(in.ResultTemp, buf[offset])
	case il.OpStore:
		ptr := frame.get(in.Operands[0])
		allocaTemp, offset, ok := unpackPtr(ptr.I64)
		if !ok {
			return bridge.New(il.TrapNullPointer, "store through null pointer", in.Loc)
		}
		buf := frame.allocas[allocaTemp]
		if offset < 0 || int(offset) >= len(buf) {
			return bridge.New(il.TrapIndexOutOfBounds, "store out of bounds", in.Loc)
		}
		buf[offset] = frame.get(in.Operands[1])
	case il.OpGEP:
		base := frame.get(in.Operands[0])
		allocaTemp, offset, ok := unpackPtr(base.I64)
		if !ok {
			frame.set(in.ResultTemp, bridge.Cell{Type: il.TypePtr, I64: ptrNull})
		} else {
			frame.set(in.ResultTemp, bridge.Cell{Type: il.TypePtr, I64: packPtr(allocaTemp, offset+in.GEPOffset)})
		}

	case il.OpRetain:
		if trap := bridge.RetainCell(frame.get(in.Operands[0]), in.Loc); trap != nil {
			return trap
		}
	case il.OpRelease:
		bridge.ReleaseCell(frame.get(in.Operands[0]))

	case il.OpSDivChk0:
		a, b := frame.get(in.Operands[0]).I64, frame.get(in.Operands[1]).I64
		if b == 0 {
			return bridge.New(il.TrapDivByZero, "checked sdiv by zero", in.Loc)
		}
		if a == math.MinInt64 && b == -1 {
			return bridge.New(il.TrapOverflow, "checked sdiv overflow", in.Loc)
		}
		frame.set(in.ResultTemp, bridge.Cell{Type: il.TypeI64, I64: a / b})
	case il.OpIdxChk:
		idx, lo, hi := frame.get(in.Operands[0]).I64, frame.get(in.Operands[1]).I64, frame.get(in.Operands[2]).I64
		if idx < lo || idx >= hi {
			return bridge.New(il.TrapIndexOutOfBounds, "index out of bounds", in.Loc)
		}
		frame.set(in.ResultTemp, bridge.Cell{Type: in.ResultType, I64: idx})
	case il.OpCastSiNarrowChk:
		f := math.Float64frombits(uint64(frame.get(in.Operands[0]).I64))
		lo, hi := narrowRange(in.ResultType)
		if f < lo || f > hi || math.IsNaN(f) {
			return bridge.New(il.TrapInvalidCast, "narrowing cast out of range", in.Loc)
		}
		frame.set(in.ResultTemp, bridge.Cell{Type: in.ResultType, I64: int64(f)})

	case il.OpCall, il.OpCallIndirect:
		// Calls are not terminators structurally, but they can recurse
		// into another function body (a deeper Go call on this
		// goroutine's own stack), so they are executed through runCall
		// rather than inline here.
		trap := v.runCall(ctx, frame, in)
		return trap
	}
	return nil
}

func execIntBinary(frame *Frame, in *il.Instruction, f func(a, b int64) int64) {
	a, b := frame.get(in.Operands[0]).I64, frame.get(in.Operands[1]).I64
	frame.set(in.ResultTemp, bridge.Cell{Type: in.ResultType, I64: maskToWidth(f(a, b), in.ResultType)})
}

func execFloatBinary(frame *Frame, in *il.Instruction, f func(a, b float64) float64) {
	a := math.Float64frombits(uint64(frame.get(in.Operands[0]).I64))
	b := math.Float64frombits(uint64(frame.get(in.Operands[1]).I64))
	frame.set(in.ResultTemp, bridge.Cell{Type: il.TypeF64, I64: int64(math.Float64bits(f(a, b)))})
}

func execICmp(frame *Frame, in *il.Instruction) {
	a, b := frame.get(in.Operands[0]), frame.get(in.Operands[1])
	var result bool
	switch in.Opcode {
	case il.OpICmpEq:
		result = a.I64 == b.I64
	case il.OpICmpNe:
		result = a.I64 != b.I64
	case il.OpICmpSlt:
		result = a.I64 < b.I64
	case il.OpICmpSle:
		result = a.I64 <= b.I64
	case il.OpICmpSgt:
		result = a.I64 > b.I64
	case il.OpICmpSge:
		result = a.I64 >= b.I64
	case il.OpICmpUlt:
		result = uint64(a.I64) < uint64(b.I64)
	case il.OpICmpUle:
		result = uint64(a.I64) <= uint64(b.I64)
	case il.OpICmpUgt:
		result = uint64(a.I64) > uint64(b.I64)
	case il.OpICmpUge:
		result = uint64(a.I64) >= uint64(b.I64)
	}
	frame.set(in.ResultTemp, boolCell(result))
}

// execFCmp implements FCmpOrd/FCmpUno with the NaN semantics spec.md §3
// requires: Ord is true only when neither operand is NaN and in.Pred holds;
// Uno is true when either operand is NaN, or in.Pred holds.
func execFCmp(frame *Frame, in *il.Instruction) {
	a := math.Float64frombits(uint64(frame.get(in.Operands[0]).I64))
	b := math.Float64frombits(uint64(frame.get(in.Operands[1]).I64))
	isNaN := math.IsNaN(a) || math.IsNaN(b)
	pred := fcmpPred(in.Pred, a, b)
	var result bool
	if in.Opcode == il.OpFCmpUno {
		result = isNaN || pred
	} else {
		result = !isNaN && pred
	}
	frame.set(in.ResultTemp, boolCell(result))
}

func fcmpPred(pred il.CmpPred, a, b float64) bool {
	switch pred {
	case il.PredEq:
		return a == b
	case il.PredNe:
		return a != b
	case il.PredLt:
		return a < b
	case il.PredLe:
		return a <= b
	case il.PredGt:
		return a > b
	case il.PredGe:
		return a >= b
	}
	return false
}

func boolCell(b bool) bridge.Cell {
	if b {
		return bridge.Cell{Type: il.TypeI1, I64: 1}
	}
	return bridge.Cell{Type: il.TypeI1, I64: 0}
}

func maskToWidth(v int64, t il.Type) int64 {
	switch t {
	case il.TypeI1:
		return v & 1
	case il.TypeI16:
		return int64(int16(v))
	case il.TypeI32:
		return int64(int32(v))
	}
	return v
}

func narrowRange(t il.Type) (lo, hi float64) {
	switch t {
	case il.TypeI16:
		return math.MinInt16, math.MaxInt16
	case il.TypeI32:
		return math.MinInt32, math.MaxInt32
	}
	return math.MinInt64, math.MaxInt64
}
