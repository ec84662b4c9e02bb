package ilfmt_test

import (
	"testing"

	"github.com/splanck/viper-sub013/internal/il"
	"github.com/splanck/viper-sub013/internal/ilfmt"
)

// assertRoundTrip checks that re-printing Parse(Print(m)) reproduces
// Print(m) exactly — the practical form of spec.md §8's
// "parse(print(M)) ≡ M" property, since ilfmt's grammar is canonical (no
// construct has two different valid spellings).
func assertRoundTrip(t *testing.T, m *il.Module) {
	t.Helper()
	text := ilfmt.Print(m)
	parsed, err := ilfmt.Parse(text)
	if err != nil {
		t.Fatalf("Parse(Print(m)) failed: %v\n---\n%s", err, text)
	}
	text2 := ilfmt.Print(parsed)
	if text != text2 {
		t.Fatalf("round trip mismatch:\n--- original ---\n%s\n--- reprinted ---\n%s", text, text2)
	}
}

func TestRoundTripArithmeticAndCall(t *testing.T) {
	b := il.NewBuilder()
	b.DeclareExtern("host_log", il.Signature{Params: []il.Type{il.TypeI64}, Result: il.TypeVoid})

	b.CreateFunction("helper", il.Signature{Params: []il.Type{il.TypeI64}, Result: il.TypeI64})
	h0 := il.TempValue(0, il.TypeI64)
	two := b.EmitConstI64(2, il.TypeI64)
	doubled := b.EmitBinary(il.OpMul, h0, two, il.TypeI64)
	b.EmitRet(doubled)

	b.CreateFunction("main", il.Signature{Params: []il.Type{il.TypeI64, il.TypeI64}, Result: il.TypeI64})
	a, c := il.TempValue(0, il.TypeI64), il.TempValue(1, il.TypeI64)
	sum := b.EmitBinary(il.OpAdd, a, c, il.TypeI64)
	_, _ = b.EmitCall("helper", false, []il.Value{sum}, il.TypeI64)
	cmp := b.EmitICmp(il.OpICmpSgt, il.PredGt, sum, il.ConstI64(0, il.TypeI64))
	_ = cmp
	_, _ = b.EmitCall("host_log", true, []il.Value{sum}, il.TypeVoid)
	b.EmitRet(sum)

	assertRoundTrip(t, b.Module)
}

func TestRoundTripFCmpPredicate(t *testing.T) {
	b := il.NewBuilder()
	b.CreateFunction("cmp", il.Signature{Params: []il.Type{il.TypeF64, il.TypeF64}, Result: il.TypeI1})
	a, c := il.TempValue(0, il.TypeF64), il.TempValue(1, il.TypeF64)
	ord := b.EmitFCmp(il.OpFCmpOrd, il.PredLt, a, c)
	_ = ord
	uno := b.EmitFCmp(il.OpFCmpUno, il.PredEq, a, c)
	b.EmitRet(uno)
	assertRoundTrip(t, b.Module)
}

func TestRoundTripMemoryAndCasts(t *testing.T) {
	b := il.NewBuilder()
	b.CreateFunction("mem", il.Signature{Params: []il.Type{il.TypeI64}, Result: il.TypeI32})
	n := il.TempValue(0, il.TypeI64)
	ptr := b.EmitAlloca(il.TypeI64, 4)
	b.EmitStore(ptr, n)
	loaded := b.EmitLoad(il.TypeI64, ptr)
	moved := b.EmitGEP(ptr, 8)
	_ = moved
	narrow := b.EmitCast(il.OpTrunc, loaded, il.TypeI32)
	b.EmitRet(narrow)
	assertRoundTrip(t, b.Module)
}

func TestRoundTripControlFlowAndEH(t *testing.T) {
	b := il.NewBuilder()
	fn := b.CreateFunction("branchy", il.Signature{Params: []il.Type{il.TypeI64}, Result: il.TypeI64})
	n := il.TempValue(0, il.TypeI64)

	pos := b.CreateBlock("pos")
	neg := b.CreateBlock("neg")
	pad := b.CreateBlock("pad")
	done := b.CreateBlock("done")

	cond := b.EmitICmp(il.OpICmpSge, il.PredGe, n, il.ConstI64(0, il.TypeI64))
	b.EmitCBr(cond, pos, nil, neg, nil)
	b.Seal(pos)
	b.Seal(neg)

	b.SetBlock(pos)
	b.EmitBr(done, n)

	b.SetBlock(neg)
	b.EmitEhThrow(il.TrapUserTrap, "negative input")

	b.SetBlock(pad)
	kind, _ := b.EmitEhEntry()
	b.EmitBr(done, kind)
	b.Seal(pad)

	resultTemp := fn.AllocateTemp()
	done.AddParam(resultTemp, il.TypeI64)
	b.Seal(done)
	b.SetBlock(done)
	b.EmitRet(il.TempValue(resultTemp, il.TypeI64))

	assertRoundTrip(t, b.Module)
}

func TestRoundTripSwitchAndRefcounting(t *testing.T) {
	b := il.NewBuilder()
	fn := b.CreateFunction("classify", il.Signature{Params: []il.Type{il.TypeI64, il.TypeStr}, Result: il.TypeI64})
	n := il.TempValue(0, il.TypeI64)
	s := il.TempValue(1, il.TypeStr)

	one := b.CreateBlock("one")
	two := b.CreateBlock("two")
	def := b.CreateBlock("def")
	exit := b.CreateBlock("exit")

	b.EmitSwitch(n, []il.SwitchCase{
		{Value: 1, Edge: il.Edge{Target: one}},
		{Value: 2, Edge: il.Edge{Target: two}},
	}, def, nil)
	b.Seal(one)
	b.Seal(two)
	b.Seal(def)

	b.SetBlock(one)
	b.EmitRetain(s)
	v1 := b.EmitConstI64(100, il.TypeI64)
	b.EmitBr(exit, v1)

	b.SetBlock(two)
	v2 := b.EmitConstI64(200, il.TypeI64)
	b.EmitBr(exit, v2)

	b.SetBlock(def)
	b.EmitRelease(s)
	v3 := b.EmitConstI64(0, il.TypeI64)
	b.EmitBr(exit, v3)

	resultTemp := fn.AllocateTemp()
	exit.AddParam(resultTemp, il.TypeI64)
	b.Seal(exit)
	b.SetBlock(exit)
	b.EmitRet(il.TempValue(resultTemp, il.TypeI64))

	assertRoundTrip(t, b.Module)
}

func TestRoundTripGlobalsAndStrings(t *testing.T) {
	b := il.NewBuilder()
	g := b.InternString([]byte("hello"))
	b.CreateFunction("greet", il.Signature{Result: il.TypeStr})
	str := b.EmitConstStr(g)
	addr := b.EmitGlobalAddr(g)
	_ = addr
	b.EmitRet(str)
	assertRoundTrip(t, b.Module)
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := ilfmt.Parse("not a module at all"); err == nil {
		t.Fatal("expected a parse error for malformed input")
	}
}
