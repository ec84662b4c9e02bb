package verify

import (
	"fmt"

	"github.com/splanck/viper-sub013/internal/il"
)

// Kind classifies a Diagnostic, mostly for test assertions and for
// Mode-dependent severity (see Mode in verify.go).
type Kind byte

const (
	KindStructural Kind = iota
	KindDominance
	KindType
	KindTerminator
	KindBranchArgs
	KindCallSignature
	KindEH
	KindAllocaPlacement // downgraded to Warning under Lenient mode
)

// Severity distinguishes a hard failure from an advisory the caller may
// choose to ignore.
type Severity byte

const (
	SeverityError Severity = iota
	SeverityWarning
)

// Diagnostic is one verifier complaint, optionally carrying a source
// location (spec.md §4.2: "Diagnostics carry source location when
// available").
type Diagnostic struct {
	Kind     Kind
	Severity Severity
	Function string
	Message  string
	Loc      il.SourceLoc
}

func (d *Diagnostic) Error() string {
	if d.Loc.File != "" {
		return fmt.Sprintf("%s: in %s: %s", d.Loc, d.Function, d.Message)
	}
	return fmt.Sprintf("in %s: %s", d.Function, d.Message)
}
