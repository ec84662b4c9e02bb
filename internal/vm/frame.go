// Package vm implements the Viper virtual machine (spec.md §5,§7/C7,C8):
// the interpreter that executes a verified, optimized Module, the
// per-function execution cache that avoids re-deriving operand shape on
// every call, and the thread/ProgramState model multiple concurrent VM
// threads of one program share.
package vm

import (
	"github.com/splanck/viper-sub013/internal/bridge"
	"github.com/splanck/viper-sub013/internal/il"
)

// Frame is one activation record: the function being executed, its
// per-temp local storage, its alloca scratch space, and the instruction
// pointer (current block + instruction within it).
type Frame struct {
	fn     *il.Function
	locals []bridge.Cell // indexed by il.Temp
	allocas map[il.Temp][]bridge.Cell

	block *il.BasicBlock
	instr *il.Instruction
}

func newFrame(fn *il.Function) *Frame {
	return &Frame{
		fn:      fn,
		locals:  make([]bridge.Cell, fn.NumTemps()),
		allocas: make(map[il.Temp][]bridge.Cell),
	}
}

// set stores v as the current definition of t.
func (f *Frame) set(t il.Temp, v bridge.Cell) {
	f.locals[t] = v
}

// get reads the current definition of a Value. Str/GlobalAddr constants
// never reach get() directly: they only ever appear as the sole operand
// of their own materializing instruction (OpConstStr/OpGlobalAddr), whose
// handler resolves them against the module's global table instead of
// calling get() (see execOne's OpConstStr/OpGlobalAddr cases in dispatch.go).
func (f *Frame) get(v il.Value) bridge.Cell {
	switch v.Kind {
	case il.ValueTemp:
		return f.locals[v.Temp]
	case il.ValueConstI64:
		return bridge.Cell{Type: v.Type(), I64: v.I64}
	case il.ValueConstF64:
		return bridge.Cell{Type: il.TypeF64, I64: int64(v.F64Bits)}
	case il.ValueNullPtr:
		return bridge.Cell{Type: il.TypePtr, I64: 0}
	}
	return bridge.Cell{}
}
