package ilfmt

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/splanck/viper-sub013/internal/il"
)

type printer struct {
	b strings.Builder
}

func newPrinter() *printer { return &printer{} }

func (p *printer) printModule(m *il.Module) string {
	fmt.Fprintf(&p.b, "module viper %s\n", strconv.Quote(m.ILVersion))
	for _, e := range m.Externs {
		fmt.Fprintf(&p.b, "extern @%s%s\n", e.Name, e.Sig)
	}
	for _, g := range m.Globals {
		p.printGlobal(g)
	}
	for _, fn := range m.Functions {
		p.b.WriteByte('\n')
		p.printFunction(fn)
	}
	return p.b.String()
}

func (p *printer) printGlobal(g *il.Global) {
	kind := "mut"
	if g.IsConst {
		kind = "const"
	}
	fmt.Fprintf(&p.b, "global @g%d %s %s %s %s\n",
		uint32(g.ID), kind, g.Type, strconv.Quote(g.Name), strconv.Quote(string(g.Initializer)))
}

func (p *printer) printFunction(fn *il.Function) {
	attrs := ""
	if fn.Attrs.NoInline {
		attrs += " noinline"
	}
	if fn.Attrs.Exported {
		attrs += " exported"
	}
	fmt.Fprintf(&p.b, "func @%s%s%s {\n", fn.Name, fn.Sig, attrs)
	for _, blk := range fn.Blocks() {
		p.printBlock(blk)
	}
	p.b.WriteString("}\n")
}

func (p *printer) printBlock(b *il.BasicBlock) {
	if !b.Valid() {
		return
	}
	params := make([]string, len(b.Params))
	for i, prm := range b.Params {
		params[i] = fmt.Sprintf("%s:%s", il.TempValue(prm.Temp, prm.Type), prm.Type)
	}
	fmt.Fprintf(&p.b, "%s(%s):\n", b.Label, strings.Join(params, ", "))
	for in := b.Root(); in != nil; in = in.Next() {
		p.b.WriteString("  ")
		p.printInstruction(in)
		p.b.WriteByte('\n')
	}
}

// renderValue is ilfmt's own operand spelling — distinct from il.Value.String
// because an operand that is an inline constant (e.g. one SCCP folded
// straight into a use, bypassing a ConstI64-producing Temp) must carry its
// type in the text: il.Value.String's bare "%d" for a ConstI64 loses the
// width, which a round trip cannot afford to lose.
func renderValue(v il.Value) string {
	switch v.Kind {
	case il.ValueTemp:
		return v.String()
	case il.ValueConstI64:
		return fmt.Sprintf("%s(%d)", v.Type(), v.I64)
	case il.ValueConstF64:
		return fmt.Sprintf("f64(0x%x)", v.F64Bits)
	case il.ValueConstStr:
		return fmt.Sprintf("str(@g%d)", uint32(v.Global))
	case il.ValueGlobalAddr:
		return fmt.Sprintf("addr(@g%d)", uint32(v.Global))
	case il.ValueNullPtr:
		return "null"
	}
	return "<invalid>"
}

func edgeString(e il.Edge) string {
	return fmt.Sprintf("%s(%s)", e.Target.Label, joinValues(e.Args))
}

func joinValues(vs []il.Value) string {
	ss := make([]string, len(vs))
	for i, v := range vs {
		ss[i] = renderValue(v)
	}
	return strings.Join(ss, ", ")
}

func (p *printer) lhs(in *il.Instruction) string {
	switch {
	case in.HasResult && in.HasResult2:
		return fmt.Sprintf("%s, %s = ", in.Result(), il.TempValue(in.ResultTemp2, in.ResultType2))
	case in.HasResult:
		return fmt.Sprintf("%s = ", in.Result())
	}
	return ""
}

func (p *printer) printInstruction(in *il.Instruction) {
	ops := in.Operands
	rv := func(i int) string { return renderValue(ops[i]) }
	switch in.Opcode {
	case il.OpConstI64, il.OpConstF64, il.OpConstStr, il.OpGlobalAddr:
		fmt.Fprintf(&p.b, "%s%s %s", p.lhs(in), in.Opcode, rv(0))
	case il.OpNullPtr:
		fmt.Fprintf(&p.b, "%s%s", p.lhs(in), in.Opcode)
	case il.OpAlloca:
		fmt.Fprintf(&p.b, "%s%s %s * %d", p.lhs(in), in.Opcode, in.AllocaType, in.AllocaSize)
	case il.OpLoad:
		fmt.Fprintf(&p.b, "%s%s %s %s", p.lhs(in), in.Opcode, in.ResultType, rv(0))
	case il.OpStore:
		fmt.Fprintf(&p.b, "%s %s, %s", in.Opcode, rv(0), rv(1))
	case il.OpGEP:
		fmt.Fprintf(&p.b, "%s%s %s + %d", p.lhs(in), in.Opcode, rv(0), in.GEPOffset)
	case il.OpRetain, il.OpRelease:
		fmt.Fprintf(&p.b, "%s %s", in.Opcode, rv(0))
	case il.OpICmpEq, il.OpICmpNe, il.OpICmpSlt, il.OpICmpSle, il.OpICmpSgt, il.OpICmpSge,
		il.OpICmpUlt, il.OpICmpUle, il.OpICmpUgt, il.OpICmpUge:
		// in.Pred is not printed: it is redundant with the opcode itself
		// (every ICmp opcode already names its predicate, e.g. OpICmpSlt is
		// always PredLt) and Parse re-derives it canonically from the
		// opcode, per DESIGN.md.
		fmt.Fprintf(&p.b, "%s%s %s, %s", p.lhs(in), in.Opcode, rv(0), rv(1))
	case il.OpFCmpOrd, il.OpFCmpUno:
		// Unlike ICmp, FCmp opcodes don't bake the predicate into the
		// mnemonic, so it must be printed explicitly to round-trip.
		fmt.Fprintf(&p.b, "%s%s %s, %s, %s", p.lhs(in), in.Opcode, rv(0), rv(1), in.Pred)
	case il.OpSiToFp, il.OpFpToSi, il.OpZExt, il.OpSExt, il.OpTrunc, il.OpBitcast, il.OpCastSiNarrowChk:
		fmt.Fprintf(&p.b, "%s%s %s : %s", p.lhs(in), in.Opcode, rv(0), in.ResultType)
	case il.OpSDivChk0:
		fmt.Fprintf(&p.b, "%s%s %s, %s", p.lhs(in), in.Opcode, rv(0), rv(1))
	case il.OpIdxChk:
		fmt.Fprintf(&p.b, "%s%s %s, %s, %s", p.lhs(in), in.Opcode, rv(0), rv(1), rv(2))
	case il.OpCall:
		callee := "@" + in.CalleeName
		rt := in.ResultType
		if !in.HasResult {
			rt = il.TypeVoid
		}
		if in.IsExternCall {
			fmt.Fprintf(&p.b, "%s%s extern %s(%s) : %s", p.lhs(in), in.Opcode, callee, joinValues(ops), rt)
		} else {
			fmt.Fprintf(&p.b, "%s%s %s(%s) : %s", p.lhs(in), in.Opcode, callee, joinValues(ops), rt)
		}
	case il.OpCallIndirect:
		rt := in.ResultType
		if !in.HasResult {
			rt = il.TypeVoid
		}
		fmt.Fprintf(&p.b, "%s%s %s(%s) : %s", p.lhs(in), in.Opcode, rv(0), joinValues(ops[1:]), rt)
	case il.OpEhEntry:
		fmt.Fprintf(&p.b, "%s%s", p.lhs(in), in.Opcode)
	case il.OpTrap, il.OpEhThrow:
		fmt.Fprintf(&p.b, "%s %s %s", in.Opcode, in.TrapKind, strconv.Quote(in.TrapMsg))
	case il.OpBr:
		fmt.Fprintf(&p.b, "%s %s", in.Opcode, edgeString(in.Jump))
	case il.OpCBr:
		fmt.Fprintf(&p.b, "%s %s then %s else %s", in.Opcode, rv(0), edgeString(in.Then), edgeString(in.Else))
	case il.OpSwitch:
		cases := make([]string, len(in.Cases))
		for i, c := range in.Cases {
			cases[i] = fmt.Sprintf("%d: %s", c.Value, edgeString(c.Edge))
		}
		fmt.Fprintf(&p.b, "%s %s { %s default: %s }", in.Opcode, rv(0), strings.Join(cases, ", "), edgeString(in.Default))
	case il.OpRet:
		if len(ops) == 0 {
			fmt.Fprintf(&p.b, "%s", in.Opcode)
		} else {
			fmt.Fprintf(&p.b, "%s %s", in.Opcode, joinValues(ops))
		}
	default: // binary arithmetic/bitwise
		fmt.Fprintf(&p.b, "%s%s %s, %s : %s", p.lhs(in), in.Opcode, rv(0), rv(1), in.ResultType)
	}
	// SourceLoc is debug metadata no front end in this tree attaches yet
	// (see Instruction.Loc); it is intentionally not part of this grammar,
	// so it does not round-trip through Print/Parse.
}
