package vm

import (
	"github.com/splanck/viper-sub013/internal/bridge"
	"github.com/splanck/viper-sub013/internal/extern"
	"github.com/splanck/viper-sub013/internal/il"
	"github.com/splanck/viper-sub013/internal/rtheap"
)

// ProgramState is the state shared by every VM thread executing the same
// loaded Module (spec.md §5: "multiple VM threads may run the same
// program concurrently, sharing its globals and extern registry but
// never a call stack"). A Program is created once by NewProgram (which
// viper's VM.LoadModule calls) and handed to every Thread spawned
// against it.
type ProgramState struct {
	Module   *il.Module
	Registry *extern.Registry
	execs    *execCacheTable

	globals []bridge.Cell // resolved once at load time, indexed by il.GlobalID
}

// newProgramState resolves every module-level Global into a runtime Cell
// up front (string literals are interned immortal Strs; spec.md §4.6), so
// the interpreter's OpConstStr/OpGlobalAddr handlers are a plain slice
// read rather than a re-materialization on every execution.
func newProgramState(m *il.Module, reg *extern.Registry) *ProgramState {
	ps := &ProgramState{
		Module:   m,
		Registry: reg,
		execs:    newExecCacheTable(),
		globals:  make([]bridge.Cell, len(m.Globals)),
	}
	for _, g := range m.Globals {
		switch g.Type {
		case il.TypeStr:
			ps.globals[g.ID] = bridge.Cell{Type: il.TypeStr, Str: rtheap.Intern(g.Initializer)}
		default:
			ps.globals[g.ID] = bridge.Cell{Type: il.TypePtr, I64: int64(g.ID)}
		}
	}
	return ps
}

func (ps *ProgramState) global(id il.GlobalID) bridge.Cell {
	return ps.globals[id]
}

// functionByID resolves a FnID (a function's position in Module.Functions,
// the encoding a CallIndirect's function-value Cell carries per spec.md
// §4.5) to its Function, or nil if out of range.
func (ps *ProgramState) functionByID(id il.FnID) *il.Function {
	if int(id) < 0 || int(id) >= len(ps.Module.Functions) {
		return nil
	}
	return ps.Module.Functions[id]
}
