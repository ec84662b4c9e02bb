package vm

import "github.com/splanck/viper-sub013/internal/il"

// Pointers in this VM are frame-local: an Alloca's result Cell.I64 packs
// the allocating temp's id (offset by one, so zero stays a distinct null)
// in the high 32 bits and an element offset in the low 32 bits. GEP only
// ever adjusts the offset half. A pointer therefore never resolves outside
// the frame that allocated it — it cannot be stored into a global, passed
// to an extern and read back later, or returned from a function and
// dereferenced by the caller. This is a deliberate scope reduction from a
// fully general heap-backed memory model (out of proportion to this
// core's size budget); see DESIGN.md. Mem2Reg promotes only entry-block,
// single-element allocas whose loads and stores all sit in one block, so
// other locals keep their alloca/load/store form under these rules.
const ptrNull = 0

func packPtr(allocaTemp il.Temp, offset int64) int64 {
	return (int64(allocaTemp)+1)<<32 | (offset & 0xffffffff)
}

func unpackPtr(p int64) (allocaTemp il.Temp, offset int64, ok bool) {
	if p == ptrNull {
		return 0, 0, false
	}
	return il.Temp((p >> 32) - 1), int64(int32(p & 0xffffffff)), true
}
