package vm

import (
	"context"
	"math"
	"sync"

	"github.com/splanck/viper-sub013/internal/bridge"
	"github.com/splanck/viper-sub013/internal/il"
)

type opHandler func(frame *Frame, in *il.Instruction) *bridge.Trap

var (
	opTableOnce sync.Once
	opTable     map[il.Opcode]opHandler
)

// buildOpTable populates the opcode-indexed handler table once, on first
// use of DispatchFuncTable by any VM in the process. Each handler performs
// exactly the work execOne's switch arm for the same opcode performs;
// factoring it into a table trades the switch's single branch-predictor-
// friendly jump for an indexed call, the dispatch technique bytecode VMs
// reach for when straight-line switch dispatch shows up hot in profiles
// (spec.md §7 asks for the choice to exist, not for a specific winner).
func buildOpTable() map[il.Opcode]opHandler {
	t := make(map[il.Opcode]opHandler, 64)

	t[il.OpConstI64] = func(frame *Frame, in *il.Instruction) *bridge.Trap {
		frame.set(in.ResultTemp, bridge.Cell{Type: in.ResultType, I64: in.Operands[0].I64})
		return nil
	}
	t[il.OpConstF64] = func(frame *Frame, in *il.Instruction) *bridge.Trap {
		frame.set(in.ResultTemp, bridge.Cell{Type: il.TypeF64, I64: int64(in.Operands[0].F64Bits)})
		return nil
	}
	t[il.OpNullPtr] = func(frame *Frame, in *il.Instruction) *bridge.Trap {
		frame.set(in.ResultTemp, bridge.Cell{Type: il.TypePtr, I64: ptrNull})
		return nil
	}

	intBinOp := func(f func(a, b int64) int64) opHandler {
		return func(frame *Frame, in *il.Instruction) *bridge.Trap {
			execIntBinary(frame, in, f)
			return nil
		}
	}
	t[il.OpAdd] = intBinOp(func(a, b int64) int64 { return a + b })
	t[il.OpSub] = intBinOp(func(a, b int64) int64 { return a - b })
	t[il.OpMul] = intBinOp(func(a, b int64) int64 { return a * b })
	t[il.OpAnd] = intBinOp(func(a, b int64) int64 { return a & b })
	t[il.OpOr] = intBinOp(func(a, b int64) int64 { return a | b })
	t[il.OpXor] = intBinOp(func(a, b int64) int64 { return a ^ b })
	t[il.OpShl] = intBinOp(func(a, b int64) int64 { return a << uint64(b) })
	t[il.OpLShr] = intBinOp(func(a, b int64) int64 { return int64(uint64(a) >> uint64(b)) })
	t[il.OpAShr] = intBinOp(func(a, b int64) int64 { return a >> uint64(b) })

	floatBinOp := func(f func(a, b float64) float64) opHandler {
		return func(frame *Frame, in *il.Instruction) *bridge.Trap {
			execFloatBinary(frame, in, f)
			return nil
		}
	}
	t[il.OpFAdd] = floatBinOp(func(a, b float64) float64 { return a + b })
	t[il.OpFSub] = floatBinOp(func(a, b float64) float64 { return a - b })
	t[il.OpFMul] = floatBinOp(func(a, b float64) float64 { return a * b })
	t[il.OpFDiv] = floatBinOp(func(a, b float64) float64 { return a / b })

	for _, op := range []il.Opcode{
		il.OpICmpEq, il.OpICmpNe, il.OpICmpSlt, il.OpICmpSle, il.OpICmpSgt, il.OpICmpSge,
		il.OpICmpUlt, il.OpICmpUle, il.OpICmpUgt, il.OpICmpUge,
	} {
		t[op] = func(frame *Frame, in *il.Instruction) *bridge.Trap {
			execICmp(frame, in)
			return nil
		}
	}
	t[il.OpFCmpOrd] = func(frame *Frame, in *il.Instruction) *bridge.Trap { execFCmp(frame, in); return nil }
	t[il.OpFCmpUno] = func(frame *Frame, in *il.Instruction) *bridge.Trap { execFCmp(frame, in); return nil }

	t[il.OpSDiv] = func(frame *Frame, in *il.Instruction) *bridge.Trap {
		a, b := frame.get(in.Operands[0]).I64, frame.get(in.Operands[1]).I64
		if b == 0 {
			return bridge.New(il.TrapDivByZero, "sdiv by zero", in.Loc)
		}
		if a == math.MinInt64 && b == -1 {
			return bridge.New(il.TrapOverflow, "sdiv overflow", in.Loc)
		}
		frame.set(in.ResultTemp, bridge.Cell{Type: in.ResultType, I64: a / b})
		return nil
	}
	t[il.OpUDiv] = func(frame *Frame, in *il.Instruction) *bridge.Trap {
		a, b := uint64(frame.get(in.Operands[0]).I64), uint64(frame.get(in.Operands[1]).I64)
		if b == 0 {
			return bridge.New(il.TrapDivByZero, "udiv by zero", in.Loc)
		}
		frame.set(in.ResultTemp, bridge.Cell{Type: in.ResultType, I64: int64(a / b)})
		return nil
	}
	t[il.OpSRem] = func(frame *Frame, in *il.Instruction) *bridge.Trap {
		a, b := frame.get(in.Operands[0]).I64, frame.get(in.Operands[1]).I64
		if b == 0 {
			return bridge.New(il.TrapDivByZero, "srem by zero", in.Loc)
		}
		frame.set(in.ResultTemp, bridge.Cell{Type: in.ResultType, I64: a % b})
		return nil
	}
	t[il.OpURem] = func(frame *Frame, in *il.Instruction) *bridge.Trap {
		a, b := uint64(frame.get(in.Operands[0]).I64), uint64(frame.get(in.Operands[1]).I64)
		if b == 0 {
			return bridge.New(il.TrapDivByZero, "urem by zero", in.Loc)
		}
		frame.set(in.ResultTemp, bridge.Cell{Type: in.ResultType, I64: int64(a % b)})
		return nil
	}

	t[il.OpSiToFp] = func(frame *Frame, in *il.Instruction) *bridge.Trap {
		a := frame.get(in.Operands[0]).I64
		frame.set(in.ResultTemp, bridge.Cell{Type: il.TypeF64, I64: int64(math.Float64bits(float64(a)))})
		return nil
	}
	t[il.OpFpToSi] = func(frame *Frame, in *il.Instruction) *bridge.Trap {
		a := math.Float64frombits(uint64(frame.get(in.Operands[0]).I64))
		frame.set(in.ResultTemp, bridge.Cell{Type: in.ResultType, I64: int64(a)})
		return nil
	}
	for _, op := range []il.Opcode{il.OpZExt, il.OpSExt, il.OpTrunc, il.OpBitcast} {
		t[op] = func(frame *Frame, in *il.Instruction) *bridge.Trap {
			frame.set(in.ResultTemp, bridge.Cell{Type: in.ResultType, I64: maskToWidth(frame.get(in.Operands[0]).I64, in.ResultType)})
			return nil
		}
	}

	t[il.OpAlloca] = func(frame *Frame, in *il.Instruction) *bridge.Trap {
		frame.allocas[in.ResultTemp] = make([]bridge.Cell, in.AllocaSize)
		frame.set(in.ResultTemp, bridge.Cell{Type: il.TypePtr, I64: packPtr(in.ResultTemp, 0)})
		return nil
	}
	t[il.OpLoad] = func(frame *Frame, in *il.Instruction) *bridge.Trap {
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
		return nil
	}
	t[il.OpStore] = func(frame *Frame, in *il.Instruction) *bridge.Trap {
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
		return nil
	}
	t[il.OpGEP] = func(frame *Frame, in *il.Instruction) *bridge.Trap {
		base := frame.get(in.Operands[0])
		allocaTemp, offset, ok := unpackPtr(base.I64)
		if !ok {
			frame.set(in.ResultTemp, bridge.Cell{Type: il.TypePtr, I64: ptrNull})
		} else {
			frame.set(in.ResultTemp, bridge.Cell{Type: il.TypePtr, I64: packPtr(allocaTemp, offset+in.GEPOffset)})
		}
		return nil
	}

	t[il.OpRetain] = func(frame *Frame, in *il.Instruction) *bridge.Trap {
		return bridge.RetainCell(frame.get(in.Operands[0]), in.Loc)
	}
	t[il.OpRelease] = func(frame *Frame, in *il.Instruction) *bridge.Trap {
		bridge.ReleaseCell(frame.get(in.Operands[0]))
		return nil
	}

	t[il.OpSDivChk0] = func(frame *Frame, in *il.Instruction) *bridge.Trap {
		a, b := frame.get(in.Operands[0]).I64, frame.get(in.Operands[1]).I64
		if b == 0 {
			return bridge.New(il.TrapDivByZero, "checked sdiv by zero", in.Loc)
		}
		if a == math.MinInt64 && b == -1 {
			return bridge.New(il.TrapOverflow, "checked sdiv overflow", in.Loc)
		}
		frame.set(in.ResultTemp, bridge.Cell{Type: il.TypeI64, I64: a / b})
		return nil
	}
	t[il.OpIdxChk] = func(frame *Frame, in *il.Instruction) *bridge.Trap {
		idx, lo, hi := frame.get(in.Operands[0]).I64, frame.get(in.Operands[1]).I64, frame.get(in.Operands[2]).I64
		if idx < lo || idx >= hi {
			return bridge.New(il.TrapIndexOutOfBounds, "index out of bounds", in.Loc)
		}
		frame.set(in.ResultTemp, bridge.Cell{Type: in.ResultType, I64: idx})
		return nil
	}
	t[il.OpCastSiNarrowChk] = func(frame *Frame, in *il.Instruction) *bridge.Trap {
		f := math.Float64frombits(uint64(frame.get(in.Operands[0]).I64))
		lo, hi := narrowRange(in.ResultType)
		if f < lo || f > hi || math.IsNaN(f) {
			return bridge.New(il.TrapInvalidCast, "narrowing cast out of range", in.Loc)
		}
		frame.set(in.ResultTemp, bridge.Cell{Type: in.ResultType, I64: int64(f)})
		return nil
	}

	return t
}

// execOneFuncTable is execOne's counterpart for DispatchFuncTable: Call and
// CallIndirect still go through runCall directly (a table entry would just
// forward to it anyway), every other opcode dispatches through opTable.
func (v *VM) execOneFuncTable(ctx context.Context, frame *Frame, in *il.Instruction) *bridge.Trap {
	if in.Opcode == il.OpCall || in.Opcode == il.OpCallIndirect {
		return v.runCall(ctx, frame, in)
	}
	if in.Opcode == il.OpConstStr || in.Opcode == il.OpGlobalAddr {
		frame.set(in.ResultTemp, v.program.global(in.Operands[0].Global))
		return nil
	}
	opTableOnce.Do(func() { opTable = buildOpTable() })
	h, ok := opTable[in.Opcode]
	if !ok {
		panic("vm: no func-table handler registered for opcode " + in.Opcode.String())
	}
	return h(frame, in)
}

func (v *VM) execBlockFuncTable(ctx context.Context, frame *Frame, b *il.BasicBlock, cache *FunctionExecCache) control {
	for cur := b.Root(); cur != b.Terminator(); cur = cur.Next() {
		if cur.Opcode == il.OpEhEntry {
			continue
		}
		if trap := v.execOneFuncTable(ctx, frame, cur); trap != nil {
			return v.unwind(frame, b, trap)
		}
	}
	return v.execTerminator(ctx, frame, b)
}

func (v *VM) runFrameFuncTable(ctx context.Context, frame *Frame, cache *FunctionExecCache) (bridge.Cell, *bridge.Trap) {
	b := frame.fn.Entry()
	for {
		frame.block = b
		ctl := v.execBlockFuncTable(ctx, frame, b, cache)
		switch {
		case ctl.trap != nil:
			return bridge.Cell{}, ctl.trap
		case ctl.returned:
			return firstOrZero(ctl.ret), nil
		default:
			b = ctl.next
		}
	}
}
