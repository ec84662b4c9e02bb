package rtheap

// Retain increments h's refcount, guarding against saturation. An already
// saturated header (an immortal string literal, spec.md §4.6) is left
// untouched. A header one retain away from colliding with the immortal
// sentinel (count == SIZE_MAX-1) is left untouched too, and Retain reports
// overflow instead of incrementing — spec.md §4.6/§8's mandated saturation
// trap ("retain near SIZE_MAX traps Overflow before the atomic increment"),
// which the caller (bridge.RetainCell) turns into a Trap the same way
// OpSDiv's overflow check does.
func Retain(h *Header) (overflow bool) {
	if h == nil {
		return false
	}
	for {
		cur := h.count.Load()
		if cur == refcountSaturated {
			return false
		}
		if cur == refcountSaturated-1 {
			return true
		}
		next := cur + 1
		if h.count.CompareAndSwap(cur, next) {
			return false
		}
	}
}

// Release decrements h's refcount and runs h.Finalize once it reaches
// zero. A saturated header is left untouched, matching Retain's guard.
// Returns true if this call drove the count to zero (the caller owns
// final teardown of the payload itself, not just the Header).
func Release(h *Header) bool {
	if h == nil {
		return false
	}
	for {
		cur := h.count.Load()
		if cur == refcountSaturated {
			return false
		}
		if cur == 0 {
			// Double release: a verifier/bridge bug, not a recoverable
			// runtime condition. Surfacing it as a panic matches the
			// core's "traps are for well-formed programs, panics are for
			// host bugs" split (spec.md §6).
			panic("rtheap: release of already-zero refcount")
		}
		next := cur - 1
		if h.count.CompareAndSwap(cur, next) {
			if next == 0 {
				if h.Finalize != nil {
					h.Finalize()
				}
				return true
			}
			return false
		}
	}
}
