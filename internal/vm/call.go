package vm

import (
	"context"

	"github.com/splanck/viper-sub013/internal/bridge"
	"github.com/splanck/viper-sub013/internal/il"
)

// runCall executes a Call or CallIndirect instruction: it resolves the
// callee (a module-local function by name, an extern by name, or — for
// CallIndirect — a function looked up by the FnID packed into the
// indirect-target Cell's I64 field, spec.md §4.5's "function values are
// represented as their FnID") and writes the single result into the
// frame. A trap from either the callee's own execution or an extern's
// returned error is handed back unwound exactly like any other trap.
func (v *VM) runCall(ctx context.Context, frame *Frame, in *il.Instruction) *bridge.Trap {
	args := make(bridge.ArgVec, len(in.Operands))
	for i, op := range in.Operands {
		args[i] = frame.get(op)
	}

	var fn *il.Function
	var name string
	if in.Opcode == il.OpCallIndirect {
		fnID := il.FnID(args[0].I64)
		args = args[1:]
		fn = v.program.functionByID(fnID)
		if fn == nil {
			return bridge.New(il.TrapNullPointer, "call_indirect through invalid function value", in.Loc)
		}
		name = fn.Name
	} else {
		name = in.CalleeName
		if !in.IsExternCall {
			fn = v.program.Module.FunctionByName(name)
		}
	}

	if fn != nil {
		result, trap := v.callFunction(ctx, fn, args)
		if trap != nil {
			return trap
		}
		if in.HasResult {
			frame.set(in.ResultTemp, result)
		}
		return nil
	}

	entry, ok := v.program.Registry.Lookup(name)
	if !ok {
		return bridge.New(il.TrapUserTrap, "call to unregistered extern "+name, in.Loc)
	}
	result, trap := bridge.CallExtern(entry, args, in.Loc)
	if trap != nil {
		return trap
	}
	if in.HasResult {
		frame.set(in.ResultTemp, result)
	}
	return nil
}

// callFunction runs fn to completion on the current goroutine (Viper calls
// are ordinary recursive Go calls; spec.md draws no distinction between a
// "call" and a native stack frame) and returns its single result cell.
func (v *VM) callFunction(ctx context.Context, fn *il.Function, args bridge.ArgVec) (bridge.Cell, *bridge.Trap) {
	callee := newFrame(fn)
	for i, p := range fn.Params {
		if i < len(args) {
			callee.set(p.Temp, args[i])
		}
	}
	cache := v.program.execs.forFunction(fn)
	return v.runFrame(ctx, callee, cache)
}
