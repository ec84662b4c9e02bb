package vm

import "context"

// activeVMKey is the context.Context key under which the currently
// executing VM is threaded through a call chain. A true goroutine-local
// would need to parse the runtime's goroutine id out of a stack trace —
// fragile and exactly the kind of hack context.Context exists to make
// unnecessary, so the "active VM" pointer spec.md §7 describes (an extern
// callback needing to call back into its own VM) is modeled as a context
// value threaded explicitly through Run, matching the teacher's own
// ctx-everywhere convention (engine.CompileModule(ctx, ...)).
type activeVMKey struct{}

// activate returns a child context with v installed as the active VM, and
// a restore function a deferred call undoes nothing with — context values
// are immutable and scoped to the child, so the parent context (and
// whatever VM was active on it) is automatically "restored" the moment
// the child context goes out of scope. The restore func is returned
// anyway for symmetry with Go's common WithCancel-style RAII shape, and so
// call sites read the same whether or not restoration is actually
// needed.
func (v *VM) activate(ctx context.Context) (child context.Context, deactivate func()) {
	child = context.WithValue(ctx, activeVMKey{}, v)
	return child, func() {}
}

// Active returns the VM currently executing on ctx's call chain, or nil if
// ctx was never threaded through a VM.Run (e.g. a standalone extern
// invocation in a test).
func Active(ctx context.Context) *VM {
	v, _ := ctx.Value(activeVMKey{}).(*VM)
	return v
}
