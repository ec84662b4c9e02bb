package vm_test

import (
	"context"
	"math"
	"testing"

	"github.com/splanck/viper-sub013/internal/bridge"
	"github.com/splanck/viper-sub013/internal/extern"
	"github.com/splanck/viper-sub013/internal/il"
	"github.com/splanck/viper-sub013/internal/vm"
)

// buildAdd builds `fn add(a i64, b i64) i64 { return a + b }`.
func buildAdd() *il.Module {
	b := il.NewBuilder()
	b.CreateFunction("add", il.Signature{Params: []il.Type{il.TypeI64, il.TypeI64}, Result: il.TypeI64})
	a, c := il.TempValue(0, il.TypeI64), il.TempValue(1, il.TypeI64)
	sum := b.EmitBinary(il.OpAdd, a, c, il.TypeI64)
	b.EmitRet(sum)
	return b.Module
}

func runOneMode(t *testing.T, mode vm.DispatchMode) {
	m := buildAdd()
	reg := extern.New()
	program, err := vm.NewProgram(m, reg)
	if err != nil {
		t.Fatalf("NewProgram: %v", err)
	}
	thread := vm.New(program, mode, nil)
	result, err := thread.Run(context.Background(), 0, []bridge.Cell{
		{Type: il.TypeI64, I64: 2},
		{Type: il.TypeI64, I64: 40},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.I64 != 42 {
		t.Fatalf("add(2, 40) = %d, want 42", result.I64)
	}
}

func TestRunAddSwitchDispatch(t *testing.T) {
	runOneMode(t, vm.DispatchSwitch)
}

func TestRunAddFuncTableDispatch(t *testing.T) {
	runOneMode(t, vm.DispatchFuncTable)
}

func TestRunAddThreadedDispatch(t *testing.T) {
	runOneMode(t, vm.DispatchThreaded)
}

// buildLoopSum builds a function summing 0..n-1 via a block-parameter loop
// (no allocas): `fn sum(n i64) i64 { i, acc := 0, 0; while i < n { acc +=
// i; i++ }; return acc }`.
func buildLoopSum() *il.Module {
	b := il.NewBuilder()
	fn := b.CreateFunction("sum", il.Signature{Params: []il.Type{il.TypeI64}, Result: il.TypeI64})
	n := il.TempValue(0, il.TypeI64)

	header := b.CreateBlock("header")
	body := b.CreateBlock("body")
	exit := b.CreateBlock("exit")

	zero := b.EmitConstI64(0, il.TypeI64)
	b.EmitBr(header, zero, zero)

	b.SetBlock(header)
	iTemp := fn.AllocateTemp()
	accTemp := fn.AllocateTemp()
	header.AddParam(iTemp, il.TypeI64)
	header.AddParam(accTemp, il.TypeI64)
	i := il.TempValue(iTemp, il.TypeI64)
	acc := il.TempValue(accTemp, il.TypeI64)
	cond := b.EmitICmp(il.OpICmpSlt, il.PredLt, i, n)
	b.EmitCBr(cond, body, nil, exit, []il.Value{acc})
	b.Seal(body)

	b.SetBlock(body)
	newAcc := b.EmitBinary(il.OpAdd, acc, i, il.TypeI64)
	one := b.EmitConstI64(1, il.TypeI64)
	newI := b.EmitBinary(il.OpAdd, i, one, il.TypeI64)
	b.EmitBr(header, newI, newAcc)

	b.SetBlock(exit)
	resultTemp := fn.AllocateTemp()
	exit.AddParam(resultTemp, il.TypeI64)
	b.Seal(exit)
	b.Seal(header)
	b.EmitRet(il.TempValue(resultTemp, il.TypeI64))

	return b.Module
}

func TestRunLoopSum(t *testing.T) {
	m := buildLoopSum()
	reg := extern.New()
	program, err := vm.NewProgram(m, reg)
	if err != nil {
		t.Fatalf("NewProgram: %v", err)
	}
	thread := vm.New(program, vm.DispatchSwitch, nil)
	result, err := thread.Run(context.Background(), 0, []bridge.Cell{{Type: il.TypeI64, I64: 10}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.I64 != 45 {
		t.Fatalf("sum(10) = %d, want 45", result.I64)
	}
}

// buildDivByZero builds `fn bad(a i64, b i64) i64 { return a sdiv b }` with
// no landing pad, so DivByZero must escape Run as an error.
func buildDivByZero() *il.Module {
	b := il.NewBuilder()
	b.CreateFunction("bad", il.Signature{Params: []il.Type{il.TypeI64, il.TypeI64}, Result: il.TypeI64})
	a, c := il.TempValue(0, il.TypeI64), il.TempValue(1, il.TypeI64)
	q := b.EmitBinary(il.OpSDiv, a, c, il.TypeI64)
	b.EmitRet(q)
	return b.Module
}

func TestRunDivByZeroTrapsOut(t *testing.T) {
	m := buildDivByZero()
	reg := extern.New()
	program, err := vm.NewProgram(m, reg)
	if err != nil {
		t.Fatalf("NewProgram: %v", err)
	}
	thread := vm.New(program, vm.DispatchSwitch, nil)
	_, err = thread.Run(context.Background(), 0, []bridge.Cell{
		{Type: il.TypeI64, I64: 1},
		{Type: il.TypeI64, I64: 0},
	})
	if err == nil {
		t.Fatal("expected a DivByZero trap, got nil error")
	}
	trap, ok := err.(*bridge.Trap)
	if !ok {
		t.Fatalf("error is %T, want *bridge.Trap", err)
	}
	if trap.Kind != il.TrapDivByZero {
		t.Fatalf("trap kind = %s, want DivByZero", trap.Kind)
	}
}

// buildCaught builds a function that throws UserTrap and catches it via an
// EhEntry landing pad, returning the trap kind as an i64.
func buildCaught() *il.Module {
	b := il.NewBuilder()
	b.CreateFunction("caught", il.Signature{Result: il.TypeI64})
	pad := b.CreateBlock("pad")

	b.EmitEhThrow(il.TrapUserTrap, "boom")

	b.SetBlock(pad)
	kind, _ := b.EmitEhEntry()
	b.EmitRet(kind)

	return b.Module
}

func TestRunCaughtTrapReturnsKind(t *testing.T) {
	m := buildCaught()
	reg := extern.New()
	program, err := vm.NewProgram(m, reg)
	if err != nil {
		t.Fatalf("NewProgram: %v", err)
	}
	thread := vm.New(program, vm.DispatchSwitch, nil)
	result, err := thread.Run(context.Background(), 0, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.I64 != int64(il.TrapUserTrap) {
		t.Fatalf("caught kind = %d, want %d", result.I64, il.TrapUserTrap)
	}
}

// TestIndependentVMsNoCrossTalk runs the same program concurrently from
// two VMs and checks neither observes the other's arguments (spec.md §8's
// "two VMs on distinct host threads... produce independent results").
func TestIndependentVMsNoCrossTalk(t *testing.T) {
	m := buildAdd()
	reg := extern.New()
	program, err := vm.NewProgram(m, reg)
	if err != nil {
		t.Fatalf("NewProgram: %v", err)
	}

	type res struct {
		val int64
		err error
	}
	out := make(chan res, 2)
	run := func(a, b int64) {
		thread := vm.New(program, vm.DispatchSwitch, nil)
		r, err := thread.Run(context.Background(), 0, []bridge.Cell{
			{Type: il.TypeI64, I64: a},
			{Type: il.TypeI64, I64: b},
		})
		out <- res{r.I64, err}
	}
	go run(1, 1)
	go run(100, 100)

	got := map[int64]bool{}
	for i := 0; i < 2; i++ {
		r := <-out
		if r.err != nil {
			t.Fatalf("Run: %v", r.err)
		}
		got[r.val] = true
	}
	if !got[2] || !got[200] {
		t.Fatalf("expected results {2, 200}, got %v", got)
	}
}

// buildFCmp builds `fn f(a f64, b f64) i1 { return fcmp_<opc> a, b, <pred> }`.
func buildFCmp(opc il.Opcode, pred il.CmpPred) *il.Module {
	b := il.NewBuilder()
	b.CreateFunction("f", il.Signature{Params: []il.Type{il.TypeF64, il.TypeF64}, Result: il.TypeI1})
	a, c := il.TempValue(0, il.TypeF64), il.TempValue(1, il.TypeF64)
	cmp := b.EmitFCmp(opc, pred, a, c)
	b.EmitRet(cmp)
	return b.Module
}

func runFCmp(t *testing.T, opc il.Opcode, pred il.CmpPred, x, y float64) bool {
	t.Helper()
	m := buildFCmp(opc, pred)
	reg := extern.New()
	program, err := vm.NewProgram(m, reg)
	if err != nil {
		t.Fatalf("NewProgram: %v", err)
	}
	thread := vm.New(program, vm.DispatchSwitch, nil)
	result, err := thread.Run(context.Background(), 0, []bridge.Cell{
		{Type: il.TypeF64, I64: int64(math.Float64bits(x))},
		{Type: il.TypeF64, I64: int64(math.Float64bits(y))},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return result.I64 != 0
}

// TestFCmpOrdRespectsPredicate exercises a non-NaN predicate, the exact gap
// the maintainer review flagged: execFCmp must not hardcode !=.
func TestFCmpOrdRespectsPredicate(t *testing.T) {
	if got := runFCmp(t, il.OpFCmpOrd, il.PredLt, 2.0, 3.0); !got {
		t.Fatal("FCmpOrd(2.0, 3.0, lt) = false, want true")
	}
	if got := runFCmp(t, il.OpFCmpOrd, il.PredEq, 2.0, 3.0); got {
		t.Fatal("FCmpOrd(2.0, 3.0, eq) = true, want false")
	}
	if got := runFCmp(t, il.OpFCmpOrd, il.PredEq, 2.0, 2.0); !got {
		t.Fatal("FCmpOrd(2.0, 2.0, eq) = false, want true")
	}
}

// TestFCmpNaNBoundary is spec.md §8's boundary property: FCmpOrd(NaN, x, ==)
// is false and FCmpUno(NaN, x, ==) is true regardless of predicate.
func TestFCmpNaNBoundary(t *testing.T) {
	nan := math.NaN()
	if got := runFCmp(t, il.OpFCmpOrd, il.PredEq, nan, 1.0); got {
		t.Fatal("FCmpOrd(NaN, x, eq) = true, want false")
	}
	if got := runFCmp(t, il.OpFCmpUno, il.PredEq, nan, 1.0); !got {
		t.Fatal("FCmpUno(NaN, x, eq) = false, want true")
	}
}
