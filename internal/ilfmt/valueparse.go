package ilfmt

import (
	"fmt"

	"github.com/splanck/viper-sub013/internal/il"
)

// parseOperandValue parses one operand in ilfmt's own spelling (see
// renderValue in printer.go): a %temp reference resolved against env, or one
// of the explicit-type constant forms.
func parseOperandValue(ts *tokStream, env map[string]il.Value) (il.Value, error) {
	t := ts.cur()
	switch t.kind {
	case tokTemp:
		ts.pos++
		v, ok := env[t.text]
		if !ok {
			return il.Value{}, fmt.Errorf("ilfmt: line %d: undefined temp %s", t.line, t.text)
		}
		return v, nil
	case tokIdent:
		switch t.text {
		case "null":
			ts.pos++
			return il.NullPtrValue(), nil
		case "str":
			ts.pos++
			if err := ts.expectPunct("("); err != nil {
				return il.Value{}, err
			}
			g, err := ts.expectAt()
			if err != nil {
				return il.Value{}, err
			}
			gid, err := parseGlobalID(token{text: g, line: t.line})
			if err != nil {
				return il.Value{}, err
			}
			if err := ts.expectPunct(")"); err != nil {
				return il.Value{}, err
			}
			return il.ConstStrValue(gid), nil
		case "addr":
			ts.pos++
			if err := ts.expectPunct("("); err != nil {
				return il.Value{}, err
			}
			g, err := ts.expectAt()
			if err != nil {
				return il.Value{}, err
			}
			gid, err := parseGlobalID(token{text: g, line: t.line})
			if err != nil {
				return il.Value{}, err
			}
			if err := ts.expectPunct(")"); err != nil {
				return il.Value{}, err
			}
			return il.GlobalAddrValue(gid), nil
		case "f64":
			ts.pos++
			if err := ts.expectPunct("("); err != nil {
				return il.Value{}, err
			}
			n, err := ts.expectInt()
			if err != nil {
				return il.Value{}, err
			}
			if err := ts.expectPunct(")"); err != nil {
				return il.Value{}, err
			}
			return il.ConstF64Bits(uint64(n)), nil
		default:
			typ := il.ParseType(t.text)
			if typ == il.TypeInvalid {
				return il.Value{}, fmt.Errorf("ilfmt: line %d: unexpected operand %q", t.line, t.text)
			}
			ts.pos++
			if err := ts.expectPunct("("); err != nil {
				return il.Value{}, err
			}
			n, err := ts.expectInt()
			if err != nil {
				return il.Value{}, err
			}
			if err := ts.expectPunct(")"); err != nil {
				return il.Value{}, err
			}
			return il.ConstI64(n, typ), nil
		}
	}
	return il.Value{}, fmt.Errorf("ilfmt: line %d: expected operand, got %q", t.line, t.text)
}

// parseValueList parses a comma-separated list of operands up to (not
// including) the next ")".
func parseValueList(ts *tokStream, env map[string]il.Value) ([]il.Value, error) {
	var vs []il.Value
	for !ts.atPunct(")") {
		v, err := parseOperandValue(ts, env)
		if err != nil {
			return nil, err
		}
		vs = append(vs, v)
		if ts.atPunct(",") {
			ts.pos++
		}
	}
	return vs, nil
}

// canonicalPred derives an ICmp opcode's CmpPred from the opcode itself,
// since Print does not spell it out separately (see printer.go).
func canonicalPred(op il.Opcode) il.CmpPred {
	switch op {
	case il.OpICmpEq:
		return il.PredEq
	case il.OpICmpNe:
		return il.PredNe
	case il.OpICmpSlt, il.OpICmpUlt:
		return il.PredLt
	case il.OpICmpSle, il.OpICmpUle:
		return il.PredLe
	case il.OpICmpSgt, il.OpICmpUgt:
		return il.PredGt
	case il.OpICmpSge, il.OpICmpUge:
		return il.PredGe
	}
	return il.PredEq
}
