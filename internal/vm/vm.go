package vm

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/splanck/viper-sub013/internal/bridge"
	"github.com/splanck/viper-sub013/internal/extern"
	"github.com/splanck/viper-sub013/internal/il"
)

// DispatchMode selects how the interpreter walks a function's blocks and
// instructions. All three execute identical semantics (spec.md §7: "the
// choice of dispatch strategy must not be observable") over the same
// execOne/execTerminator logic; they differ only in how the per-opcode and
// per-block jump is implemented, the same tradeoff a bytecode interpreter
// written in a language without computed goto has to make explicitly.
type DispatchMode byte

const (
	// DispatchSwitch walks instructions with Go's own switch statement
	// (execOne) and chases block pointers directly. The simplest mode and
	// the default.
	DispatchSwitch DispatchMode = iota

	// DispatchFuncTable replaces the per-opcode switch with a map of
	// handler funcs keyed by opcode, built once, on first use in the
	// process.
	DispatchFuncTable

	// DispatchThreaded caches, per function, a closure per block that
	// executes it and returns a control value; the next block's closure is
	// looked up in the same per-function cache — approximating a
	// threaded/computed-goto interpreter within what Go's lack of computed
	// goto allows.
	DispatchThreaded
)

// VM is one thread of execution against a loaded ProgramState. A VM owns
// no shared mutable state of its own beyond its current call stack: the
// globals, extern registry and exec cache it reads all live on the shared
// ProgramState, so multiple VMs may run the same Program concurrently
// (spec.md §5/§7, internal/vm/threads).
type VM struct {
	program *ProgramState
	mode    DispatchMode
	log     *zap.Logger
}

// New creates a VM bound to program, dispatching with mode and logging
// through log (a nil log is replaced with zap's no-op logger, matching the
// teacher's own "never require a logger to run" convention).
func New(program *ProgramState, mode DispatchMode, log *zap.Logger) *VM {
	if log == nil {
		log = zap.NewNop()
	}
	return &VM{program: program, mode: mode, log: log}
}

// NewProgram loads m against reg, resolving its globals and checking its
// extern declarations resolve, the one-time setup spec.md §4.5 requires
// before any VM may Run a function from it.
func NewProgram(m *il.Module, reg *extern.Registry) (*ProgramState, error) {
	if err := reg.CheckDecl(m); err != nil {
		return nil, errors.Wrap(err, "vm: loading program")
	}
	return newProgramState(m, reg), nil
}

// Run executes the function named by entry from a fresh top-level frame
// and returns its single result, or the trap that escaped every landing
// pad in its call tree. ctx is threaded through every nested call and
// checked at each block transition (spec.md §7: "long-running programs
// must be cancellable without the core polling a side channel"); a
// canceled context surfaces to the caller as an ordinary UserTrap-shaped
// error rather than a distinct cancellation type, so callers that already
// handle traps don't need a second error path.
func (v *VM) Run(ctx context.Context, entry il.FnID, args []bridge.Cell) (bridge.Cell, error) {
	fn := v.program.functionByID(entry)
	if fn == nil {
		return bridge.Cell{}, errors.Errorf("vm: no function with id %d", entry)
	}
	ctx, deactivate := v.activate(ctx)
	defer deactivate()

	frame := newFrame(fn)
	for i, p := range fn.Params {
		if i < len(args) {
			frame.set(p.Temp, args[i])
		}
	}
	cache := v.program.execs.forFunction(fn)
	result, trap := v.runFrame(ctx, frame, cache)
	if trap != nil {
		return bridge.Cell{}, trap
	}
	return result, nil
}

// RunByName resolves name against the program's module before running it,
// a convenience for embedders that address entry points by name rather
// than by the FnID a Call instruction's CalleeName has already been
// resolved to.
func (v *VM) RunByName(ctx context.Context, name string, args []bridge.Cell) (bridge.Cell, error) {
	for i, fn := range v.program.Module.Functions {
		if fn.Name == name {
			return v.Run(ctx, il.FnID(i), args)
		}
	}
	return bridge.Cell{}, errors.Errorf("vm: no function named %q", name)
}

// runFrame drives frame's function to completion, dispatching through
// whichever mode v was configured with.
func (v *VM) runFrame(ctx context.Context, frame *Frame, cache *FunctionExecCache) (bridge.Cell, *bridge.Trap) {
	switch v.mode {
	case DispatchFuncTable:
		return v.runFrameFuncTable(ctx, frame, cache)
	case DispatchThreaded:
		return v.runFrameThreaded(ctx, frame, cache)
	default:
		return v.runFrameSwitch(ctx, frame, cache)
	}
}

func firstOrZero(cells []bridge.Cell) bridge.Cell {
	if len(cells) == 0 {
		return bridge.Cell{}
	}
	return cells[0]
}
