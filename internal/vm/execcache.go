package vm

import (
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/splanck/viper-sub013/internal/il"
)

// OperandClass is the lazily-computed shape of one instruction operand:
// whether the dispatch loop reads it from a register slot or materializes
// it inline, so the interpreter's hot path never re-derives "is this a
// Temp or a constant" on every execution of the same instruction.
type OperandClass byte

const (
	ClassReg OperandClass = iota
	ClassImmI64
	ClassImmF64
	ClassCold // Str/GlobalAddr/NullPtr/Invalid: handled by the slow path
)

func classify(v il.Value) OperandClass {
	switch v.Kind {
	case il.ValueTemp:
		return ClassReg
	case il.ValueConstI64:
		return ClassImmI64
	case il.ValueConstF64:
		return ClassImmF64
	}
	return ClassCold
}

// InstrShape is the cached classification of one instruction's operands.
type InstrShape struct {
	OperandClasses []OperandClass
}

// FunctionExecCache holds the per-instruction shape classification for one
// Function, computed once on first execution and reused by every
// subsequent call — including concurrent first calls from multiple VM
// threads of the same program, which golang.org/x/sync/singleflight
// collapses into a single build (spec.md §7: "the exec cache must build
// at most once per function regardless of how many threads race to be
// the first caller").
type FunctionExecCache struct {
	group singleflight.Group

	mu     sync.RWMutex
	built  bool
	shapes map[*il.Instruction]InstrShape
}

// shapeOf returns the cached shape for in, building the whole owning
// function's cache first if this is the first access.
func (c *FunctionExecCache) shapeOf(fn *il.Function, in *il.Instruction) InstrShape {
	c.mu.RLock()
	if c.built {
		s := c.shapes[in]
		c.mu.RUnlock()
		return s
	}
	c.mu.RUnlock()

	c.group.Do("build", func() (interface{}, error) {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.built {
			return nil, nil
		}
		shapes := make(map[*il.Instruction]InstrShape)
		for _, b := range fn.LiveBlocks() {
			for cur := b.Root(); cur != nil; cur = cur.Next() {
				classes := make([]OperandClass, len(cur.Operands))
				for i, op := range cur.Operands {
					classes[i] = classify(op)
				}
				shapes[cur] = InstrShape{OperandClasses: classes}
			}
		}
		c.shapes = shapes
		c.built = true
		return nil, nil
	})

	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.shapes[in]
}

// execCacheTable is the per-ProgramState registry of exec caches, one per
// loaded function, built lazily and shared by every thread running that
// program (spec.md §7/§5: the cache is a property of the program, not of
// a single VM or thread).
type execCacheTable struct {
	mu     sync.Mutex
	caches map[*il.Function]*FunctionExecCache
}

func newExecCacheTable() *execCacheTable {
	return &execCacheTable{caches: make(map[*il.Function]*FunctionExecCache)}
}

func (t *execCacheTable) forFunction(fn *il.Function) *FunctionExecCache {
	t.mu.Lock()
	c, ok := t.caches[fn]
	if !ok {
		c = &FunctionExecCache{}
		t.caches[fn] = c
	}
	t.mu.Unlock()
	return c
}
