// Package extern implements the runtime extern registry (spec.md §4.5/C4):
// the name-to-native-function table the bridge resolves Call/CallIndirect
// instructions with IsExternCall set against. Grounded on the teacher's
// wazevoapi.offsetdata-style "registry keyed by name, guarded by a mutex,
// consulted at instantiation time" shape, generalized from wazero's
// host-module import resolution to Viper's flat extern namespace.
package extern

import (
	"sync"

	"github.com/dolthub/swiss"
	"github.com/pkg/errors"

	"github.com/splanck/viper-sub013/internal/il"
	"github.com/splanck/viper-sub013/internal/rtheap"
)

// Cell is one runtime argument or result value as an extern sees it: the
// execution-time counterpart of a compile-time il.Value. Non-refcounted
// kinds are carried inline in I64 (which doubles as the bit pattern for
// F64 and as a raw Ptr, per spec.md §4.6's "integers, floats and raw
// pointers need no runtime header"); Str and Obj carry their heap payload
// directly so an extern can read string bytes or embedder object state
// without the core having to interpret them.
type Cell struct {
	Type il.Type
	I64  int64
	Str  *rtheap.Str
	Obj  *Obj
}

// Obj is the runtime payload of a TypeObj value: an opaque,
// embedder-defined reference-counted object. The core never dereferences
// Payload itself (spec.md §4.6) — only an extern registered by the
// embedder that put it there does.
type Obj struct {
	Header  *rtheap.Header
	Payload interface{}
}

// Func is a native implementation of a declared extern. It receives the
// marshaled argument vector and returns a single result Cell (the zero
// Cell for a void signature) plus an error that the bridge converts into a
// UserTrap.
type Func func(args []Cell) (Cell, error)

// Entry binds a registered extern's declared signature to its native
// implementation, checked against the module's ExternDecl at load time.
type Entry struct {
	Sig  il.Signature
	Impl Func
}

// Registry is the process-wide (or embedder-scoped) table of native
// functions a Module's externs resolve against. Safe for concurrent use:
// spec.md's concurrency core (C8) allows multiple VM threads of the same
// program to call through the same registry simultaneously.
type Registry struct {
	mu      sync.RWMutex
	entries *swiss.Map[string, Entry]
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{entries: swiss.NewMap[string, Entry](uint32(16))}
}

// Register installs name with the given signature and implementation. It
// returns an error if name is already registered, matching the
// register-once discipline an embedder's RegisterExtern call enforces
// (spec.md's embedder API, SPEC_FULL.md §"Embedder API").
func (r *Registry) Register(name string, sig il.Signature, impl Func) error {
	if impl == nil {
		return errors.Errorf("extern: nil implementation for %q", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries.Get(name); ok {
		return errors.Errorf("extern: %q already registered", name)
	}
	r.entries.Put(name, Entry{Sig: sig, Impl: impl})
	return nil
}

// Unregister removes name. It is not an error to unregister a name that was
// never registered.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries.Delete(name)
}

// Lookup resolves name, reporting ok=false if it is not registered.
func (r *Registry) Lookup(name string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries.Get(name)
}

// CheckDecl verifies that every ExternDecl in m resolves to a registered
// entry with a matching signature, the load-time check spec.md §4.5
// requires before a module may be Run: "a module referencing an
// unregistered or signature-mismatched extern fails to load, not fails at
// call time."
func (r *Registry) CheckDecl(m *il.Module) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range m.Externs {
		entry, ok := r.entries.Get(e.Name)
		if !ok {
			return errors.Errorf("extern: module declares extern %q, not registered in this embedder", e.Name)
		}
		if !entry.Sig.Equal(e.Sig) {
			return errors.Errorf("extern: %q declared as %s, registered as %s", e.Name, e.Sig, entry.Sig)
		}
	}
	return nil
}

// ResetForTest clears every registration. Exists only for test isolation
// between embedder test cases that each want a clean registry.
func (r *Registry) ResetForTest() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = swiss.NewMap[string, Entry](uint32(16))
}

// Len reports the number of registered externs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries.Count()
}
