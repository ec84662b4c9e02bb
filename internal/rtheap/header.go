// Package rtheap implements the Viper runtime heap (spec.md §4.6/C6):
// reference-counted Str and Obj payloads, retain/release with saturation
// guarding, and FNV-1a string interning. Grounded on the teacher's typed,
// no-pointer-punning header convention (internal/engine/wazevo/ssa's Value
// carries explicit fields rather than a packed word when a payload needs
// more than one piece of data), adapted here to a runtime object header
// instead of a compile-time SSA value.
package rtheap

import "sync/atomic"

// Kind discriminates the two reference-counted payload shapes the core
// defines (spec.md §4.6: "Str and Obj are the only reference-counted
// kinds").
type Kind byte

const (
	KindStr Kind = iota
	KindObj
)

// refcountSaturated is the sentinel value a Header's count is pinned to
// once it reaches it — spec.md §4.6's immortal-literal mechanism: "a string
// literal's refcount is initialized at the saturation value, making its
// retain/release a no-op for the remainder of the program." Chosen as
// MaxUint64 so a saturated count can never be reached by ordinary
// increments from a program that merely runs out of memory first.
const refcountSaturated = ^uint64(0)

// Header is the fixed-size control block every reference-counted heap
// value carries ahead of its payload. Fields are explicit and typed rather
// than packed into a single word: unlike the teacher's SSA Value (whose
// packed encoding only ever carries one extra integer payload), a Header
// must carry a Kind tag, a finalizer hook, and a 64-bit atomic counter
// side by side, so packing would cost more in accessor complexity than it
// saves in bytes.
type Header struct {
	Kind  Kind
	count atomic.Uint64

	// Finalize releases payload-owned resources (e.g. an Obj's captured
	// Str fields) once count reaches zero. Str headers leave this nil:
	// their payload is released by dropping the owning *Str itself.
	Finalize func()
}

// NewHeader creates a Header with an initial refcount of 1 (the reference
// returned to the instruction that allocated it).
func NewHeader(kind Kind) *Header {
	h := &Header{Kind: kind}
	h.count.Store(1)
	return h
}

// NewImmortalHeader creates a Header pinned at saturation, used for string
// literals (spec.md §4.6): every retain/release on it is a no-op for the
// life of the program.
func NewImmortalHeader(kind Kind) *Header {
	h := &Header{Kind: kind}
	h.count.Store(refcountSaturated)
	return h
}

// Count returns the current refcount, primarily for tests and diagnostics.
func (h *Header) Count() uint64 { return h.count.Load() }

// Saturated reports whether h's count has reached the saturation sentinel
// and will no longer respond to retain/release.
func (h *Header) Saturated() bool { return h.count.Load() == refcountSaturated }
