package pass_test

import (
	"testing"

	"github.com/splanck/viper-sub013/internal/il"
	"github.com/splanck/viper-sub013/internal/pass"
)

// buildSingleBlockLocal builds `fn k() i64 { %a = alloca i64; store %a, 5;
// return load %a }`, a local confined to one block — the case mem2reg is
// meant to promote.
func buildSingleBlockLocal() *il.Module {
	b := il.NewBuilder()
	b.CreateFunction("k", il.Signature{Result: il.TypeI64})
	ptr := b.EmitAlloca(il.TypeI64, 1)
	five := il.ConstI64(5, il.TypeI64)
	b.EmitStore(ptr, five)
	loaded := b.EmitLoad(il.TypeI64, ptr)
	b.EmitRet(loaded)
	return b.Module
}

func TestMem2RegPromotesSingleBlockLocal(t *testing.T) {
	m := buildSingleBlockLocal()
	mem2reg := &pass.Mem2Reg{}
	if !mem2reg.Run(m) {
		t.Fatal("expected mem2reg to promote the local")
	}
	ret := m.FunctionByName("k").Entry().Terminator()
	if ret.Operands[0].Kind != il.ValueConstI64 || ret.Operands[0].I64 != 5 {
		t.Fatalf("ret operand = %+v, want ConstI64(5)", ret.Operands[0])
	}
	for cur := m.FunctionByName("k").Entry().Root(); cur != nil; cur = cur.Next() {
		if cur.Opcode == il.OpStore || cur.Opcode == il.OpLoad {
			t.Fatalf("expected Store/Load to be promoted away, found %s", cur.Opcode)
		}
	}
}

// buildCrossBlockLocal builds `fn k() i64 { %a = alloca i64; store %a, 5;
// br next; next: return load %a }` — the Store and its Load sit in
// different blocks, so mem2reg must leave both alone rather than delete
// the Store out from under a Load it can't resolve in this block-local
// scheme.
func buildCrossBlockLocal() *il.Module {
	b := il.NewBuilder()
	b.CreateFunction("k", il.Signature{Result: il.TypeI64})
	next := b.CreateBlock("next")

	ptr := b.EmitAlloca(il.TypeI64, 1)
	five := b.EmitConstI64(5, il.TypeI64)
	b.EmitStore(ptr, five)
	b.EmitBr(next)
	b.Seal(next)

	b.SetBlock(next)
	loaded := b.EmitLoad(il.TypeI64, ptr)
	b.EmitRet(loaded)

	return b.Module
}

func TestMem2RegLeavesCrossBlockLocalUntouched(t *testing.T) {
	m := buildCrossBlockLocal()
	mem2reg := &pass.Mem2Reg{}
	mem2reg.Run(m)

	fn := m.FunctionByName("k")
	var sawStore, sawLoad bool
	for _, b := range fn.LiveBlocks() {
		for cur := b.Root(); cur != nil; cur = cur.Next() {
			switch cur.Opcode {
			case il.OpStore:
				sawStore = true
			case il.OpLoad:
				sawLoad = true
			}
		}
	}
	if !sawStore || !sawLoad {
		t.Fatal("cross-block alloca must not be promoted: Store and Load must both survive")
	}
}
