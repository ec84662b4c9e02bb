package bridge

import (
	"github.com/pkg/errors"

	"github.com/splanck/viper-sub013/internal/extern"
	"github.com/splanck/viper-sub013/internal/il"
	"github.com/splanck/viper-sub013/internal/rtheap"
)

// Cell is the bridge's name for a runtime value; it is exactly
// extern.Cell, re-exported so VM code that only imports bridge (not
// extern directly) can still spell the type.
type Cell = extern.Cell

// Obj is the bridge's name for extern.Obj.
type Obj = extern.Obj

// RetainCell retains the refcounted payload of c, if any. Non-refcounted
// cells are a no-op, matching the IL-level contract that Retain/Release on
// a non-refcounted type is never emitted by a conforming front end but is
// harmless if it is. A non-nil return is spec.md §4.6's saturation guard
// firing: the refcount was one retain away from colliding with the
// immortal-literal sentinel, so the increment was skipped and an Overflow
// trap is raised instead, the same way OpSDiv raises one on overflow.
func RetainCell(c Cell, loc il.SourceLoc) *Trap {
	switch c.Type {
	case il.TypeStr:
		if c.Str != nil && rtheap.Retain(c.Str.Header) {
			return New(il.TrapOverflow, "retain: refcount saturation", loc)
		}
	case il.TypeObj:
		if c.Obj != nil && rtheap.Retain(c.Obj.Header) {
			return New(il.TrapOverflow, "retain: refcount saturation", loc)
		}
	}
	return nil
}

// ReleaseCell releases the refcounted payload of c, if any.
func ReleaseCell(c Cell) {
	switch c.Type {
	case il.TypeStr:
		if c.Str != nil {
			c.Str.Release()
		}
	case il.TypeObj:
		if c.Obj != nil {
			rtheap.Release(c.Obj.Header)
		}
	}
}

// ArgVec is the marshaled argument bundle a Call/CallIndirect passes
// across the bridge, in callee-parameter order.
type ArgVec []Cell

// Target is a resolved call target: either another Viper function (looked
// up by the VM itself, since bridge has no view of loaded function bodies)
// or a native extern.
type Target struct {
	IsExtern bool
	Extern   extern.Entry
	Sig      il.Signature
}

// Resolver resolves an extern Call's callee name against the extern
// registry. The module-local-functions-first order for ordinary calls is
// applied by the VM (vm.runCall), not here.
type Resolver struct {
	Module   *il.Module
	Registry *extern.Registry
}

// Resolve looks up name for a Call instruction. For an IsExternCall
// instruction it consults only the extern registry; for an ordinary call
// it is resolved by the VM directly against Module.FunctionByName (bridge
// does not execute Viper function bodies itself), so Resolve here only
// ever returns extern targets — an ordinary-call Resolve is a caller bug.
func (r *Resolver) Resolve(name string, isExtern bool) (Target, error) {
	if !isExtern {
		return Target{}, errors.Errorf("bridge: Resolve called for non-extern callee %q", name)
	}
	entry, ok := r.Registry.Lookup(name)
	if !ok {
		return Target{}, errors.Errorf("bridge: extern %q not registered", name)
	}
	return Target{IsExtern: true, Extern: entry, Sig: entry.Sig}, nil
}

// CallExtern invokes the native implementation of entry with args, and
// converts its result and any error into bridge terms: a Cell (the zero
// Cell for a void result) and, on failure, a *Trap rather than a raw
// error, so the VM's unwind machinery can treat it identically to an
// IL-level trap (spec.md §4.5: "calling into and out of native code must
// not require the interpreter loop to special-case its origin").
func CallExtern(entry extern.Entry, args ArgVec, loc il.SourceLoc) (Cell, *Trap) {
	result, err := entry.Impl(args)
	if err != nil {
		t := FromExternError(err)
		t.Loc = loc
		return Cell{}, t
	}
	return result, nil
}
