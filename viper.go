// Package viper is the embedder-facing entry point of the Viper platform
// core: load a verified, optimized Module, register native externs, and
// run its functions from Go. Everything here is a thin facade over
// internal/vm, internal/extern and internal/pass — the root package's job
// is purely to give an embedder one import and one Config, the same shape
// the teacher gives embedders over internal/engine/wazevo.
package viper

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/splanck/viper-sub013/internal/bridge"
	"github.com/splanck/viper-sub013/internal/config"
	"github.com/splanck/viper-sub013/internal/extern"
	"github.com/splanck/viper-sub013/internal/il"
	"github.com/splanck/viper-sub013/internal/pass"
	"github.com/splanck/viper-sub013/internal/verify"
	"github.com/splanck/viper-sub013/internal/vm"
)

// Config is the embedder-facing configuration, decoded from TOML by
// config.Load or used as config.Default() programmatically.
type Config = config.Config

// Handler is the native implementation signature an embedder registers
// for a declared extern: internal/extern.Func re-exported under the name
// SPEC_FULL.md's embedder API gives it.
type Handler = extern.Func

// VM is an embedder's handle to one loaded program: its verified,
// optimized Module, its extern registry, and the dispatch/verify/pass
// configuration it was loaded with. Running a function spawns a fresh
// internal VM thread against the shared ProgramState, so one viper.VM may
// back any number of concurrent Run calls (spec.md §4.8).
type VM struct {
	cfg      Config
	log      *zap.Logger
	registry *extern.Registry
	program  *vm.ProgramState
	mode     vm.DispatchMode
}

// New creates an unloaded VM from cfg. Register externs with
// RegisterExtern before calling LoadModule, since LoadModule checks every
// declared extern resolves (spec.md §4.5).
func New(cfg Config) *VM {
	return &VM{cfg: cfg, log: zap.NewNop(), registry: extern.New()}
}

// WithLogger returns a copy of v logging through log instead of a no-op
// logger, following the teacher's functional-options-lite convention for
// optional dependencies that aren't part of the TOML-decoded Config.
func (v *VM) WithLogger(log *zap.Logger) *VM {
	v2 := *v
	v2.log = log
	return &v2
}

// RegisterExtern installs name as a callable extern with the given
// signature and native implementation. It must be called before
// LoadModule for every extern the module declares.
func (v *VM) RegisterExtern(name string, sig il.Signature, h Handler) error {
	return v.registry.Register(name, sig, h)
}

// UnregisterExtern removes a previously registered extern.
func (v *VM) UnregisterExtern(name string) {
	v.registry.Unregister(name)
}

// LoadModule verifies m, runs the configured optimization pipeline over
// it, checks every declared extern resolves against the registry, and
// binds v to run its functions. An error here is an invalid verify mode
// in the config, a verification failure (the first *verify.Diagnostic,
// wrapped with github.com/pkg/errors), or an extern-resolution failure —
// never a runtime trap, which only Run can produce.
func (v *VM) LoadModule(m *il.Module) error {
	verifyMode, err := v.cfg.VerifyMode()
	if err != nil {
		return err
	}
	if res := verify.Verify(m, verifyMode); !res.OK() {
		return errors.Wrap(res.Errors[0], "viper: module failed verification")
	}

	pipeline := pass.New(v.cfg.PassConfig(), v.log)
	pipeline.Run(m)

	if res := verify.Verify(m, verifyMode); !res.OK() {
		return errors.Wrap(res.Errors[0], "viper: module failed verification after optimization")
	}

	program, err := vm.NewProgram(m, v.registry)
	if err != nil {
		return errors.Wrap(err, "viper: loading module")
	}

	dispatchMode, err := v.cfg.DispatchModeValue()
	if err != nil {
		return err
	}

	v.program = program
	v.mode = toVMDispatchMode(dispatchMode)
	return nil
}

// Run executes the function identified by entry with args and returns its
// single result, or the trap that escaped its entire call tree. LoadModule
// must have succeeded first.
func (v *VM) Run(ctx context.Context, entry il.FnID, args []il.Value) (il.Value, error) {
	if v.program == nil {
		return il.Value{}, errors.New("viper: Run called before a successful LoadModule")
	}
	cells := make([]bridge.Cell, len(args))
	for i, a := range args {
		cells[i] = valueToCell(a)
	}
	thread := vm.New(v.program, v.mode, v.log)
	result, err := thread.Run(ctx, entry, cells)
	if err != nil {
		return il.Value{}, err
	}
	return cellToValue(result), nil
}

// Program exposes the loaded ProgramState for callers that need to spawn
// additional concurrent threads directly via internal/vm/threads, beyond
// the single-call convenience Run offers.
func (v *VM) Program() *vm.ProgramState { return v.program }

// Mode exposes the resolved dispatch mode Program's threads should use.
func (v *VM) Mode() vm.DispatchMode { return v.mode }

func toVMDispatchMode(m config.DispatchMode) vm.DispatchMode {
	switch m {
	case config.DispatchThreaded:
		return vm.DispatchThreaded
	case config.DispatchFuncTable:
		return vm.DispatchFuncTable
	default:
		return vm.DispatchSwitch
	}
}

// valueToCell converts a static il.Value into a runtime bridge.Cell for
// passing as a Run argument. ConstStr/GlobalAddr values reference an
// existing module global by id (an embedder passing a string argument
// names a global the module already interned, rather than marshaling
// arbitrary bytes through the static Value union) — module-level globals
// have no dedicated embedder-facing intern entry point, so round-tripping
// fresh caller-supplied bytes this way is out of scope; see DESIGN.md.
func valueToCell(v il.Value) bridge.Cell {
	switch v.Kind {
	case il.ValueConstI64:
		return bridge.Cell{Type: v.Type(), I64: v.I64}
	case il.ValueConstF64:
		return bridge.Cell{Type: il.TypeF64, I64: int64(v.F64Bits)}
	case il.ValueNullPtr:
		return bridge.Cell{Type: il.TypePtr, I64: 0}
	default:
		return bridge.Cell{Type: v.Type()}
	}
}

// cellToValue converts a runtime result Cell back into a static il.Value
// for the embedder. A Str/Obj result is reported only by its type, not
// its payload — il.Value carries no runtime string-byte or object-payload
// slot (it is the compile-time IR's constant union); an embedder needing
// the actual bytes of a returned string registers an extern that receives
// the Cell directly instead of going through Run's narrower il.Value
// return, a restriction matching Run's signature in SPEC_FULL.md's
// Embedder API section.
func cellToValue(c bridge.Cell) il.Value {
	switch c.Type {
	case il.TypeF64:
		return il.ConstF64Bits(uint64(c.I64))
	case il.TypePtr:
		if c.I64 == 0 {
			return il.NullPtrValue()
		}
		return il.ConstI64(c.I64, il.TypePtr)
	case il.TypeStr, il.TypeObj:
		return il.Value{}
	default:
		return il.ConstI64(c.I64, c.Type)
	}
}
