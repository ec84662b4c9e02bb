package bridge_test

import (
	"errors"
	"testing"

	"github.com/splanck/viper-sub013/internal/bridge"
	"github.com/splanck/viper-sub013/internal/extern"
	"github.com/splanck/viper-sub013/internal/il"
	"github.com/splanck/viper-sub013/internal/rtheap"
)

func TestResolveRejectsNonExternCallee(t *testing.T) {
	r := &bridge.Resolver{Module: &il.Module{}, Registry: extern.New()}
	if _, err := r.Resolve("somefn", false); err == nil {
		t.Fatal("expected Resolve to reject a non-extern lookup")
	}
}

func TestResolveFindsRegisteredExtern(t *testing.T) {
	reg := extern.New()
	sig := il.Signature{Params: []il.Type{il.TypeI64}, Result: il.TypeI64}
	impl := func(args []extern.Cell) (extern.Cell, error) { return args[0], nil }
	if err := reg.Register("double", sig, impl); err != nil {
		t.Fatalf("Register: %v", err)
	}

	r := &bridge.Resolver{Module: &il.Module{}, Registry: reg}
	target, err := r.Resolve("double", true)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !target.IsExtern {
		t.Fatal("expected IsExtern true")
	}
	if !target.Sig.Equal(sig) {
		t.Fatalf("signature mismatch: %s != %s", target.Sig, sig)
	}
}

func TestResolveRejectsUnregisteredExtern(t *testing.T) {
	r := &bridge.Resolver{Module: &il.Module{}, Registry: extern.New()}
	if _, err := r.Resolve("missing", true); err == nil {
		t.Fatal("expected an error for an unregistered extern")
	}
}

func TestCallExternSuccessReturnsCell(t *testing.T) {
	impl := func(args []extern.Cell) (extern.Cell, error) {
		return extern.Cell{Type: il.TypeI64, I64: args[0].I64 * 2}, nil
	}
	entry := extern.Entry{Sig: il.Signature{}, Impl: impl}
	cell, trap := bridge.CallExtern(entry, bridge.ArgVec{{Type: il.TypeI64, I64: 21}}, il.SourceLoc{})
	if trap != nil {
		t.Fatalf("unexpected trap: %v", trap)
	}
	if cell.I64 != 42 {
		t.Fatalf("result = %d, want 42", cell.I64)
	}
}

func TestCallExternErrorBecomesUserTrap(t *testing.T) {
	impl := func(args []extern.Cell) (extern.Cell, error) {
		return extern.Cell{}, errors.New("boom")
	}
	entry := extern.Entry{Impl: impl}
	_, trap := bridge.CallExtern(entry, nil, il.SourceLoc{})
	if trap == nil {
		t.Fatal("expected a trap")
	}
	if trap.Kind != il.TrapUserTrap {
		t.Fatalf("kind = %s, want UserTrap", trap.Kind)
	}
	if trap.Msg != "boom" {
		t.Fatalf("msg = %q, want %q", trap.Msg, "boom")
	}
}

func TestRetainReleaseCellNoOpForNonRefcounted(t *testing.T) {
	// Must not panic for plain scalar kinds.
	if trap := bridge.RetainCell(bridge.Cell{Type: il.TypeI64, I64: 5}, il.SourceLoc{}); trap != nil {
		t.Fatalf("unexpected trap for non-refcounted cell: %v", trap)
	}
	bridge.ReleaseCell(bridge.Cell{Type: il.TypePtr, I64: 0})
}

func TestRetainReleaseCellRoundTripsStringRefcount(t *testing.T) {
	s := rtheap.NewStr([]byte("hi"))
	cell := bridge.Cell{Type: il.TypeStr, Str: s}
	if trap := bridge.RetainCell(cell, il.SourceLoc{}); trap != nil {
		t.Fatalf("unexpected trap: %v", trap)
	}
	if s.Header.Count() != 2 {
		t.Fatalf("refcount after Retain = %d, want 2", s.Header.Count())
	}
	bridge.ReleaseCell(cell)
	if s.Header.Count() != 1 {
		t.Fatalf("refcount after Release = %d, want 1", s.Header.Count())
	}
}
