// Package ilfmt is the textual rendering of internal/il: a printer and a
// recursive-descent parser for a single human-readable form, extended from
// the teacher's one-way Builder.Format/BasicBlock debug-string idea
// (internal/engine/wazevo/ssa) into a real round trip: parse(Print(m)) is
// structurally equivalent to m for any module the verifier accepts.
//
// The format is line-oriented and deliberately close to Instruction.String,
// Type.String and Opcode.String's existing spellings (il/instruction.go,
// il/type.go, il/opcode.go) so the debug dump a verifier failure already
// prints and the ilfmt text of the same module read the same way.
package ilfmt

import "github.com/splanck/viper-sub013/internal/il"

// Print renders m as text. The result is valid input to Parse.
func Print(m *il.Module) string {
	return newPrinter().printModule(m)
}

// Parse reads text produced by Print (or hand-written text in the same
// grammar) into a fresh Module.
func Parse(src string) (*il.Module, error) {
	return newParser(src).parseModule()
}
