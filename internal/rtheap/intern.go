package rtheap

import (
	"hash/fnv"
	"sync"

	"github.com/dolthub/swiss"
)

// internEntry is one slot of the process-wide intern table: the interned
// Str plus its original bytes, kept alongside the map key so Intern can
// disambiguate hash collisions against distinct byte strings hashing to
// the same bucket key (the table is keyed by the hash itself, not the
// bytes, to avoid rehashing large literals on every lookup).
type internEntry struct {
	data []byte
	str  *Str
}

var (
	internMu    sync.Mutex
	internTable = swiss.NewMap[uint64, *internEntry](uint32(64))
)

// Intern returns the canonical, immortal Str for data, allocating one if
// this is the first time data has been seen. Grounded on spec.md §4.6's
// "string literals are interned once at module-load time and held
// immortal for the remainder of the program" — FNV-1a supplies the hash
// key, github.com/dolthub/swiss the open-addressing storage backing a
// large module's literal table without Go's built-in map's per-entry
// bucket overhead.
func Intern(data []byte) *Str {
	h := fnv.New64a()
	_, _ = h.Write(data)
	key := h.Sum64()

	internMu.Lock()
	defer internMu.Unlock()

	if e, ok := internTable.Get(key); ok && string(e.data) == string(data) {
		return e.str
	}

	str := NewImmortalStr(append([]byte(nil), data...))
	internTable.Put(key, &internEntry{data: str.Bytes, str: str})
	return str
}

// InternTableLenForTest reports the number of live intern-table slots,
// exposed only for test assertions.
func InternTableLenForTest() int {
	internMu.Lock()
	defer internMu.Unlock()
	return internTable.Count()
}
