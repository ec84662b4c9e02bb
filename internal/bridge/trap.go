// Package bridge implements the runtime bridge (spec.md §4.5/C5): the
// layer between the VM's Call/CallIndirect dispatch and both other Viper
// functions and the extern registry, including argument marshaling and
// trap routing back into the VM's unwind machinery.
package bridge

import (
	"fmt"

	"github.com/splanck/viper-sub013/internal/il"
)

// Trap is a raised runtime precondition violation, carrying the closed
// TrapKind enum from internal/il plus a human-readable message and the
// instruction's source location, unwound up to the nearest EhEntry landing
// pad or, absent one, out of Run entirely (spec.md §6).
type Trap struct {
	Kind TrapKind
	Msg  string
	Loc  il.SourceLoc
}

// TrapKind re-exports il.TrapKind under the bridge package so callers that
// only import bridge (an extern implementation, for instance) don't also
// need to import internal/il just to name a trap kind.
type TrapKind = il.TrapKind

func (t *Trap) Error() string {
	if t.Loc.File != "" {
		return fmt.Sprintf("%s: %s: %s", t.Loc, t.Kind, t.Msg)
	}
	return fmt.Sprintf("%s: %s", t.Kind, t.Msg)
}

// New constructs a Trap, the form VM.Run's checked-arithmetic opcodes and
// EmitTrap/EhThrow handling raise.
func New(kind TrapKind, msg string, loc il.SourceLoc) *Trap {
	return &Trap{Kind: kind, Msg: msg, Loc: loc}
}

// FromExternError wraps an error returned by an extern.Func's native
// implementation as a UserTrap (spec.md §4.5: "an extern that returns an
// error surfaces to the calling Viper frame as a UserTrap, not a Go
// panic").
func FromExternError(err error) *Trap {
	return &Trap{Kind: il.TrapUserTrap, Msg: err.Error()}
}
