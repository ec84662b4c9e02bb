package vm

import (
	"context"

	"github.com/splanck/viper-sub013/internal/bridge"
)

// runFrameSwitch is the default dispatch loop: chase the block pointer
// execBlock returns until a return or an unhandled trap ends the frame.
func (v *VM) runFrameSwitch(ctx context.Context, frame *Frame, cache *FunctionExecCache) (bridge.Cell, *bridge.Trap) {
	b := frame.fn.Entry()
	for {
		frame.block = b
		ctl := v.execBlock(ctx, frame, b, cache)
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
