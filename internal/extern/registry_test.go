package extern_test

import (
	"testing"

	"github.com/splanck/viper-sub013/internal/extern"
	"github.com/splanck/viper-sub013/internal/il"
)

func sig() il.Signature {
	return il.Signature{Params: []il.Type{il.TypeI64}, Result: il.TypeI64}
}

func identity(args []extern.Cell) (extern.Cell, error) {
	return args[0], nil
}

func TestRegisterAndLookup(t *testing.T) {
	r := extern.New()
	if err := r.Register("double", sig(), identity); err != nil {
		t.Fatalf("Register: %v", err)
	}
	entry, ok := r.Lookup("double")
	if !ok {
		t.Fatal("expected double to be registered")
	}
	if !entry.Sig.Equal(sig()) {
		t.Fatalf("signature mismatch: %s != %s", entry.Sig, sig())
	}
	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", r.Len())
	}
}

func TestRegisterRejectsDuplicateName(t *testing.T) {
	r := extern.New()
	if err := r.Register("double", sig(), identity); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register("double", sig(), identity); err == nil {
		t.Fatal("expected an error registering the same name twice")
	}
}

func TestRegisterRejectsNilImpl(t *testing.T) {
	r := extern.New()
	if err := r.Register("nop", sig(), nil); err == nil {
		t.Fatal("expected an error for a nil implementation")
	}
}

func TestUnregisterThenLookupFails(t *testing.T) {
	r := extern.New()
	_ = r.Register("double", sig(), identity)
	r.Unregister("double")
	if _, ok := r.Lookup("double"); ok {
		t.Fatal("expected double to be gone after Unregister")
	}
	// Unregistering something never registered is not an error.
	r.Unregister("never-there")
}

func TestCheckDeclRequiresRegisteredExternsWithMatchingSignature(t *testing.T) {
	r := extern.New()
	b := il.NewBuilder()
	b.DeclareExtern("host_log", sig())
	b.CreateFunction("main", il.Signature{Result: il.TypeVoid})
	b.EmitRet()

	if err := r.CheckDecl(b.Module); err == nil {
		t.Fatal("expected CheckDecl to fail: host_log is not registered")
	}

	if err := r.Register("host_log", sig(), identity); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.CheckDecl(b.Module); err != nil {
		t.Fatalf("CheckDecl: %v", err)
	}

	mismatched := extern.New()
	if err := mismatched.Register("host_log", il.Signature{Result: il.TypeI64}, identity); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := mismatched.CheckDecl(b.Module); err == nil {
		t.Fatal("expected CheckDecl to fail on signature mismatch")
	}
}

func TestResetForTestClearsRegistrations(t *testing.T) {
	r := extern.New()
	_ = r.Register("double", sig(), identity)
	r.ResetForTest()
	if r.Len() != 0 {
		t.Fatalf("Len() = %d after ResetForTest, want 0", r.Len())
	}
}
