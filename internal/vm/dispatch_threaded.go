package vm

import (
	"context"
	"sync"

	"github.com/splanck/viper-sub013/internal/bridge"
	"github.com/splanck/viper-sub013/internal/il"
)

// blockThunk runs one block to its control transfer. Threaded dispatch
// caches one of these per block so each transition is a direct call
// through an already-resolved closure rather than a fresh switch over
// which block came next — Go has no computed goto, so a per-block closure
// table is the nearest equivalent (spec.md §7 names this mode explicitly
// as "threaded").
type blockThunk func(ctx context.Context, v *VM, frame *Frame, cache *FunctionExecCache) control

var (
	threadedMu    sync.Mutex
	threadedCache = map[*il.Function]map[*il.BasicBlock]blockThunk{}
)

func threadedThunksFor(fn *il.Function) map[*il.BasicBlock]blockThunk {
	threadedMu.Lock()
	defer threadedMu.Unlock()
	if m, ok := threadedCache[fn]; ok {
		return m
	}
	m := make(map[*il.BasicBlock]blockThunk, len(fn.Blocks()))
	for _, b := range fn.LiveBlocks() {
		b := b
		m[b] = func(ctx context.Context, v *VM, frame *Frame, cache *FunctionExecCache) control {
			return v.execBlock(ctx, frame, b, cache)
		}
	}
	threadedCache[fn] = m
	return m
}

func (v *VM) runFrameThreaded(ctx context.Context, frame *Frame, cache *FunctionExecCache) (bridge.Cell, *bridge.Trap) {
	thunks := threadedThunksFor(frame.fn)
	b := frame.fn.Entry()
	for {
		frame.block = b
		thunk, ok := thunks[b]
		if !ok {
			panic("vm: no threaded thunk cached for block " + b.Label)
		}
		ctl := thunk(ctx, v, frame, cache)
		switch {
		case ctl.trap != nil:
			return bridge.Cell{}, ctl.trap
		case ctl.returned:
			return firstOrZero(ctl.ret), nil
		default:
			b = ctl.next
		}
	}
}
