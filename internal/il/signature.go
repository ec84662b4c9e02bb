package il

import "strings"

// Signature is a function or extern prototype: parameter types in order and
// a single result type (TypeVoid for no return value).
type Signature struct {
	Params []Type
	Result Type
}

func (s Signature) String() string {
	ps := make([]string, len(s.Params))
	for i, p := range s.Params {
		ps[i] = p.String()
	}
	return "(" + strings.Join(ps, ", ") + ") -> " + s.Result.String()
}

// Equal reports structural equality, used by the verifier and the runtime
// bridge to check a Call's operand types against the callee's declared
// signature.
func (s Signature) Equal(o Signature) bool {
	if s.Result != o.Result || len(s.Params) != len(o.Params) {
		return false
	}
	for i := range s.Params {
		if s.Params[i] != o.Params[i] {
			return false
		}
	}
	return true
}
