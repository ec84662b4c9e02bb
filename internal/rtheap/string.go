package rtheap

// Str is the payload of a TypeStr value: an immutable byte sequence behind
// a reference-counted Header. Strings never mutate in place (spec.md §4.6:
// "Str values are immutable; every string-producing opcode materializes a
// new Str rather than writing through an existing one"), so a single
// backing byte slice can be shared freely between retained references.
type Str struct {
	Header *Header
	Bytes  []byte
}

// NewStr wraps data in a freshly allocated, refcount-1 Str.
func NewStr(data []byte) *Str {
	s := &Str{Header: NewHeader(KindStr), Bytes: data}
	return s
}

// NewImmortalStr wraps data in a Str whose Header is pinned at saturation,
// used for string literals materialized by OpConstStr (spec.md §4.6).
func NewImmortalStr(data []byte) *Str {
	return &Str{Header: NewImmortalHeader(KindStr), Bytes: data}
}

// Len returns the byte length of s.
func (s *Str) Len() int { return len(s.Bytes) }

// Retain increments s's refcount and returns s, so call sites can write
// `v := s.Retain()` style chained ownership transfer where useful.
func (s *Str) Retain() *Str {
	Retain(s.Header)
	return s
}

// Release decrements s's refcount. Interned literals are immortal (their
// Header is saturated at intern time), so Release is a genuine no-op for
// them; only runtime-constructed strings ever reach zero here.
func (s *Str) Release() {
	Release(s.Header)
}

// Concat builds a new Str from the concatenation of a and b (spec.md §4.6
// leaves string operations to the extern layer rather than dedicated
// opcodes). No extern in this package registers it.
func Concat(a, b *Str) *Str {
	out := make([]byte, len(a.Bytes)+len(b.Bytes))
	copy(out, a.Bytes)
	copy(out[len(a.Bytes):], b.Bytes)
	return NewStr(out)
}
