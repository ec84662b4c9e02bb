// Package threads implements spec.md's intra-program threading pattern
// (C8): spawning additional VM threads that share one ProgramState's
// globals, extern registry and exec cache but never a call stack.
package threads

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/splanck/viper-sub013/internal/bridge"
	"github.com/splanck/viper-sub013/internal/il"
	"github.com/splanck/viper-sub013/internal/vm"
)

// Group supervises a family of VM threads spawned against the same
// program, propagating the first trap or panic-as-error back to whoever
// started it — errgroup.Group's job, applied to "a program thread aborts"
// the same way it is applied to "an RPC fan-out call fails" (spec.md §4.8:
// "a spawned program thread's panic or trap-to-abort must be observable").
type Group struct {
	eg      *errgroup.Group
	ctx     context.Context
	program *vm.ProgramState
	mode    vm.DispatchMode
	log     *zap.Logger
}

// NewGroup creates a Group of threads against program, all running with
// mode and logging through log (nil is replaced with a no-op logger).
func NewGroup(ctx context.Context, program *vm.ProgramState, mode vm.DispatchMode, log *zap.Logger) (*Group, context.Context) {
	eg, gctx := errgroup.WithContext(ctx)
	if log == nil {
		log = zap.NewNop()
	}
	return &Group{eg: eg, ctx: gctx, program: program, mode: mode, log: log}, gctx
}

// Start spawns one new VM thread that runs entry(args) on its own
// goroutine, sharing the Group's ProgramState. A trap returned by entry's
// execution, or a recovered panic, fails the whole Group the same way any
// other member's error would (spec.md §4.8's "thread-local active-VM
// pointer" invariant still holds per VM: each Start call gets its own *VM,
// so there is exactly one active VM per goroutine at a time).
func (g *Group) Start(entry il.FnID, args []bridge.Cell) {
	g.eg.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				g.log.Error("vm thread panicked", zap.Any("recovered", r))
				err = errPanic{recovered: r}
			}
		}()
		thread := vm.New(g.program, g.mode, g.log)
		_, runErr := thread.Run(g.ctx, entry, args)
		return runErr
	})
}

// Wait blocks until every thread started on g has returned, yielding the
// first non-nil error (trap or panic) any of them produced, or nil if all
// completed cleanly.
func (g *Group) Wait() error {
	return g.eg.Wait()
}

type errPanic struct{ recovered interface{} }

func (e errPanic) Error() string {
	return "vm thread panicked: " + formatRecovered(e.recovered)
}

func formatRecovered(r interface{}) string {
	if err, ok := r.(error); ok {
		return err.Error()
	}
	return fmt.Sprintf("%v", r)
}
