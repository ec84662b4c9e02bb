package verify_test

import (
	"testing"

	"github.com/splanck/viper-sub013/internal/il"
	"github.com/splanck/viper-sub013/internal/verify"
)

func buildAddModule() *il.Module {
	b := il.NewBuilder()
	b.CreateFunction("add", il.Signature{Params: []il.Type{il.TypeI64, il.TypeI64}, Result: il.TypeI64})
	a, c := il.TempValue(0, il.TypeI64), il.TempValue(1, il.TypeI64)
	sum := b.EmitBinary(il.OpAdd, a, c, il.TypeI64)
	b.EmitRet(sum)
	return b.Module
}

func TestVerifyAcceptsWellFormedModule(t *testing.T) {
	m := buildAddModule()
	res := verify.Verify(m, verify.ModeStrict)
	if !res.OK() {
		t.Fatalf("expected OK, got errors: %v", res.Errors)
	}
}

func TestVerifyRejectsMismatchedBinaryOperandTypes(t *testing.T) {
	b := il.NewBuilder()
	b.CreateFunction("bad", il.Signature{Params: []il.Type{il.TypeI64, il.TypeF64}, Result: il.TypeI64})
	a, c := il.TempValue(0, il.TypeI64), il.TempValue(1, il.TypeF64)
	sum := b.EmitBinary(il.OpAdd, a, c, il.TypeI64)
	b.EmitRet(sum)

	res := verify.Verify(b.Module, verify.ModeStrict)
	if res.OK() {
		t.Fatal("expected a type mismatch error")
	}
	if res.Errors[0].Kind != verify.KindType {
		t.Fatalf("kind = %v, want KindType", res.Errors[0].Kind)
	}
}

func TestVerifyRejectsUseOfUndefinedTemp(t *testing.T) {
	b := il.NewBuilder()
	b.CreateFunction("bad", il.Signature{Result: il.TypeI64})
	// TempValue(99, ...) names a temp nothing in this function ever
	// defines — checkOperandDominance must reject it as a structural
	// error rather than silently accepting an unresolved reference.
	b.EmitRet(il.TempValue(99, il.TypeI64))

	res := verify.Verify(b.Module, verify.ModeStrict)
	if res.OK() {
		t.Fatal("expected a structural error for use of an undefined temp")
	}
	if res.Errors[0].Kind != verify.KindStructural {
		t.Fatalf("kind = %v, want KindStructural", res.Errors[0].Kind)
	}
}

func TestVerifyRejectsBranchArgArityMismatch(t *testing.T) {
	b := il.NewBuilder()
	fn := b.CreateFunction("bad", il.Signature{Result: il.TypeI64})
	target := b.CreateBlock("target")
	pTemp := fn.AllocateTemp()
	target.AddParam(pTemp, il.TypeI64)

	b.EmitBr(target) // no args, but target expects one
	b.Seal(target)

	b.SetBlock(target)
	b.EmitRet(il.TempValue(pTemp, il.TypeI64))

	res := verify.Verify(b.Module, verify.ModeStrict)
	if res.OK() {
		t.Fatal("expected a branch-argument arity error")
	}
	if res.Errors[0].Kind != verify.KindBranchArgs {
		t.Fatalf("kind = %v, want KindBranchArgs", res.Errors[0].Kind)
	}
}

func TestVerifyLenientDowngradesNonEntryAllocaToWarning(t *testing.T) {
	b := il.NewBuilder()
	b.CreateFunction("bad", il.Signature{Result: il.TypeI64})
	other := b.CreateBlock("other")
	b.EmitBr(other)
	b.Seal(other)

	b.SetBlock(other)
	ptr := b.EmitAlloca(il.TypeI64, 8)
	loaded := b.EmitLoad(il.TypeI64, ptr)
	b.EmitRet(loaded)

	strict := verify.Verify(b.Module, verify.ModeStrict)
	if strict.OK() {
		t.Fatal("expected strict mode to reject non-entry alloca")
	}

	lenient := verify.Verify(b.Module, verify.ModeLenient)
	if !lenient.OK() {
		t.Fatalf("expected lenient mode to accept with a warning, got errors: %v", lenient.Errors)
	}
	if len(lenient.Warnings) == 0 {
		t.Fatal("expected a warning for non-entry alloca under lenient mode")
	}
}

func TestVerifyRejectsCallSignatureMismatch(t *testing.T) {
	b := il.NewBuilder()
	b.CreateFunction("callee", il.Signature{Params: []il.Type{il.TypeI64}, Result: il.TypeI64})
	b.EmitRet(il.TempValue(0, il.TypeI64))

	b.CreateFunction("caller", il.Signature{Result: il.TypeI64})
	wrongArg := b.EmitConstF64(0x3ff0000000000000) // 1.0
	result, _ := b.EmitCall("callee", false, []il.Value{wrongArg}, il.TypeI64)
	b.EmitRet(result)

	res := verify.Verify(b.Module, verify.ModeStrict)
	if res.OK() {
		t.Fatal("expected a call-signature error")
	}
	if res.Errors[0].Kind != verify.KindCallSignature {
		t.Fatalf("kind = %v, want KindCallSignature", res.Errors[0].Kind)
	}
}

func TestMustVerifyWrapsFirstError(t *testing.T) {
	b := il.NewBuilder()
	b.CreateFunction("bad", il.Signature{Result: il.TypeI64})
	// Entry is left without a terminator: no Br/Ret ever emitted.
	_ = b

	err := verify.MustVerify(b.Module, verify.ModeStrict)
	if err == nil {
		t.Fatal("expected an error for a function whose entry has no terminator")
	}
}
