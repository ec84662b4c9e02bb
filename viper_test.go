package viper_test

import (
	"context"
	"errors"
	"testing"

	"github.com/splanck/viper-sub013/internal/config"
	"github.com/splanck/viper-sub013/internal/il"
	viper "github.com/splanck/viper-sub013"
	"github.com/splanck/viper-sub013/internal/extern"
)

func buildAddModule() *il.Module {
	b := il.NewBuilder()
	b.CreateFunction("add", il.Signature{Params: []il.Type{il.TypeI64, il.TypeI64}, Result: il.TypeI64})
	a, c := il.TempValue(0, il.TypeI64), il.TempValue(1, il.TypeI64)
	sum := b.EmitBinary(il.OpAdd, a, c, il.TypeI64)
	b.EmitRet(sum)
	return b.Module
}

func TestLoadAndRun(t *testing.T) {
	vm := viper.New(config.Default())
	if err := vm.LoadModule(buildAddModule()); err != nil {
		t.Fatalf("LoadModule: %v", err)
	}
	result, err := vm.Run(context.Background(), 0, []il.Value{
		il.ConstI64(2, il.TypeI64),
		il.ConstI64(40, il.TypeI64),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.I64 != 42 {
		t.Fatalf("result = %d, want 42", result.I64)
	}
}

func TestRunBeforeLoadModuleFails(t *testing.T) {
	vm := viper.New(config.Default())
	if _, err := vm.Run(context.Background(), 0, nil); err == nil {
		t.Fatal("expected Run to fail before a successful LoadModule")
	}
}

func TestLoadModuleFailsOnUnregisteredExtern(t *testing.T) {
	b := il.NewBuilder()
	b.DeclareExtern("host_log", il.Signature{Params: []il.Type{il.TypeI64}, Result: il.TypeVoid})
	b.CreateFunction("main", il.Signature{Result: il.TypeVoid})
	b.EmitRet()

	vm := viper.New(config.Default())
	if err := vm.LoadModule(b.Module); err == nil {
		t.Fatal("expected LoadModule to fail: host_log was never registered")
	}
}

func TestRegisteredExternIsCallableFromRunningModule(t *testing.T) {
	b := il.NewBuilder()
	b.DeclareExtern("double", il.Signature{Params: []il.Type{il.TypeI64}, Result: il.TypeI64})
	b.CreateFunction("main", il.Signature{Params: []il.Type{il.TypeI64}, Result: il.TypeI64})
	arg := il.TempValue(0, il.TypeI64)
	result, _ := b.EmitCall("double", true, []il.Value{arg}, il.TypeI64)
	b.EmitRet(result)

	vm := viper.New(config.Default())
	err := vm.RegisterExtern("double", il.Signature{Params: []il.Type{il.TypeI64}, Result: il.TypeI64},
		func(args []extern.Cell) (extern.Cell, error) {
			return extern.Cell{Type: il.TypeI64, I64: args[0].I64 * 2}, nil
		})
	if err != nil {
		t.Fatalf("RegisterExtern: %v", err)
	}
	if err := vm.LoadModule(b.Module); err != nil {
		t.Fatalf("LoadModule: %v", err)
	}
	out, err := vm.Run(context.Background(), 0, []il.Value{il.ConstI64(21, il.TypeI64)})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.I64 != 42 {
		t.Fatalf("result = %d, want 42", out.I64)
	}
}

func TestExternErrorSurfacesAsTrapFromRun(t *testing.T) {
	b := il.NewBuilder()
	b.DeclareExtern("fail_always", il.Signature{Result: il.TypeI64})
	b.CreateFunction("main", il.Signature{Result: il.TypeI64})
	result, _ := b.EmitCall("fail_always", true, nil, il.TypeI64)
	b.EmitRet(result)

	vm := viper.New(config.Default())
	boom := errors.New("native failure")
	err := vm.RegisterExtern("fail_always", il.Signature{Result: il.TypeI64},
		func(args []extern.Cell) (extern.Cell, error) { return extern.Cell{}, boom })
	if err != nil {
		t.Fatalf("RegisterExtern: %v", err)
	}
	if err := vm.LoadModule(b.Module); err != nil {
		t.Fatalf("LoadModule: %v", err)
	}
	if _, err := vm.Run(context.Background(), 0, nil); err == nil {
		t.Fatal("expected the extern's error to surface as a trap")
	}
}

func TestUnregisterExternThenLoadModuleFails(t *testing.T) {
	b := il.NewBuilder()
	b.DeclareExtern("double", il.Signature{Params: []il.Type{il.TypeI64}, Result: il.TypeI64})
	b.CreateFunction("main", il.Signature{Params: []il.Type{il.TypeI64}, Result: il.TypeI64})
	arg := il.TempValue(0, il.TypeI64)
	result, _ := b.EmitCall("double", true, []il.Value{arg}, il.TypeI64)
	b.EmitRet(result)

	vm := viper.New(config.Default())
	sig := il.Signature{Params: []il.Type{il.TypeI64}, Result: il.TypeI64}
	_ = vm.RegisterExtern("double", sig, func(args []extern.Cell) (extern.Cell, error) { return args[0], nil })
	vm.UnregisterExtern("double")

	if err := vm.LoadModule(b.Module); err == nil {
		t.Fatal("expected LoadModule to fail after UnregisterExtern")
	}
}
