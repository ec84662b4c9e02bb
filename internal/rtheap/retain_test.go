package rtheap

import "testing"

func TestRetainReleaseBasic(t *testing.T) {
	h := NewHeader(KindObj)
	if h.Count() != 1 {
		t.Fatalf("new header count = %d, want 1", h.Count())
	}
	Retain(h)
	if h.Count() != 2 {
		t.Fatalf("after retain, count = %d, want 2", h.Count())
	}
	finalized := false
	h.Finalize = func() { finalized = true }
	Release(h)
	if h.Count() != 1 || finalized {
		t.Fatalf("after first release, count = %d finalized = %v", h.Count(), finalized)
	}
	Release(h)
	if h.Count() != 0 || !finalized {
		t.Fatalf("after second release, count = %d finalized = %v", h.Count(), finalized)
	}
}

func TestRetainImmortalIsNoOp(t *testing.T) {
	h := NewImmortalHeader(KindStr)
	if !h.Saturated() {
		t.Fatal("immortal header should start saturated")
	}
	Retain(h)
	Retain(h)
	if !h.Saturated() {
		t.Fatal("retain must not disturb a saturated header")
	}
	released := Release(h)
	if released || !h.Saturated() {
		t.Fatal("release on a saturated header must be a no-op")
	}
}

func TestRetainTrapsOverflowAtSaturationBoundary(t *testing.T) {
	h := NewHeader(KindObj)
	h.count.Store(refcountSaturated - 1)
	if overflow := Retain(h); !overflow {
		t.Fatal("retain one shy of the sentinel must report overflow")
	}
	if h.Count() != refcountSaturated-1 {
		t.Fatalf("count after trapped retain = %d, want unchanged %d", h.Count(), refcountSaturated-1)
	}
	if h.Saturated() {
		t.Fatal("a trapped retain must not itself saturate the header")
	}
}

func TestReleaseOfZeroPanics(t *testing.T) {
	h := NewHeader(KindObj)
	Release(h)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic releasing an already-zero header")
		}
	}()
	Release(h)
}

func TestConcat(t *testing.T) {
	a := NewStr([]byte("foo"))
	b := NewStr([]byte("bar"))
	c := Concat(a, b)
	if string(c.Bytes) != "foobar" {
		t.Fatalf("concat = %q, want foobar", c.Bytes)
	}
}

func TestInternDedup(t *testing.T) {
	s1 := Intern([]byte("hello"))
	s2 := Intern([]byte("hello"))
	if s1 != s2 {
		t.Fatal("interning the same bytes twice must return the same Str")
	}
	if !s1.Header.Saturated() {
		t.Fatal("interned strings must be immortal")
	}
}
