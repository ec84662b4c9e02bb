package il_test

import (
	"testing"

	"github.com/splanck/viper-sub013/internal/il"
)

func TestBuilderCreatesEntryBlockWithParams(t *testing.T) {
	b := il.NewBuilder()
	fn := b.CreateFunction("f", il.Signature{Params: []il.Type{il.TypeI64, il.TypePtr}, Result: il.TypeI64})
	entry := fn.Entry()
	if entry == nil {
		t.Fatal("expected an entry block")
	}
	if len(fn.Params) != 2 {
		t.Fatalf("len(Params) = %d, want 2", len(fn.Params))
	}
	if fn.Params[0].Type != il.TypeI64 || fn.Params[1].Type != il.TypePtr {
		t.Fatalf("unexpected param types: %+v", fn.Params)
	}
	if len(entry.Preds()) != 0 {
		t.Fatal("entry block must have no predecessors")
	}
}

func TestBlockSealRejectsLateBranches(t *testing.T) {
	b := il.NewBuilder()
	b.CreateFunction("f", il.Signature{Result: il.TypeI64})
	target := b.CreateBlock("target")
	b.EmitBr(target)
	b.Seal(target)

	b.SetBlock(target)
	b.EmitRet(il.ConstI64(0, il.TypeI64))

	if !target.Valid() {
		t.Fatal("target block should remain valid")
	}
}

func TestReplaceAllUsesRewritesOperands(t *testing.T) {
	b := il.NewBuilder()
	fn := b.CreateFunction("f", il.Signature{Result: il.TypeI64})
	x := b.EmitConstI64(5, il.TypeI64)
	y := b.EmitConstI64(1, il.TypeI64)
	sum := b.EmitBinary(il.OpAdd, x, y, il.TypeI64)
	b.EmitRet(sum)

	replaced := il.ConstI64(6, il.TypeI64)
	fn.ReplaceAllUses(sum.Temp, replaced)

	ret := fn.Entry().Terminator()
	if ret.Operands[0].Kind != il.ValueConstI64 || ret.Operands[0].I64 != 6 {
		t.Fatalf("ret operand after ReplaceAllUses = %+v, want ConstI64(6)", ret.Operands[0])
	}
}

func TestTypeParseRoundTrip(t *testing.T) {
	for _, ty := range []il.Type{il.TypeI1, il.TypeI16, il.TypeI32, il.TypeI64, il.TypeF64, il.TypePtr, il.TypeStr, il.TypeObj, il.TypeVoid} {
		if got := il.ParseType(ty.String()); got != ty {
			t.Fatalf("ParseType(%q) = %v, want %v", ty.String(), got, ty)
		}
	}
}

func TestOpcodeParseRoundTrip(t *testing.T) {
	for _, op := range []il.Opcode{il.OpAdd, il.OpSub, il.OpICmpSlt, il.OpCall, il.OpBr, il.OpRet} {
		if got := il.ParseOpcode(op.String()); got != op {
			t.Fatalf("ParseOpcode(%q) = %v, want %v", op.String(), got, op)
		}
	}
	if il.ParseOpcode("not_a_real_opcode") != il.OpInvalid {
		t.Fatal("expected OpInvalid for an unrecognized mnemonic")
	}
}

func TestGlobalAddrAndConstStrValuesCarryGlobalID(t *testing.T) {
	b := il.NewBuilder()
	g := b.InternString([]byte("hello"))
	fn := b.CreateFunction("f", il.Signature{Result: il.TypeVoid})
	b.EmitConstStr(g)
	b.EmitGlobalAddr(g)
	str := fn.Entry().Root()
	addr := str.Next()
	if str.Operands[0].Kind != il.ValueConstStr || str.Operands[0].Global != g {
		t.Fatalf("ConstStr value Global = %v, want %v", str.Operands[0].Global, g)
	}
	if addr.Operands[0].Kind != il.ValueGlobalAddr || addr.Operands[0].Global != g {
		t.Fatalf("GlobalAddr value Global = %v, want %v", addr.Operands[0].Global, g)
	}
}
