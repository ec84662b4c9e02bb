package ilfmt

import (
	"fmt"

	"github.com/splanck/viper-sub013/internal/il"
)

func isBlockHeader(ln []token) bool {
	if len(ln) < 4 {
		return false
	}
	if ln[0].kind != tokIdent || !(ln[1].kind == tokPunct && ln[1].text == "(") {
		return false
	}
	last, prev := ln[len(ln)-1], ln[len(ln)-2]
	return last.kind == tokPunct && last.text == ":" && prev.kind == tokPunct && prev.text == ")"
}

func (p *parser) parseFunction(b *il.Builder) error {
	header := p.line()
	ts := &tokStream{toks: header}
	if kw, err := ts.expectIdentAny(); err != nil || kw != "func" {
		return p.errf("expected 'func' declaration")
	}
	name, err := ts.expectAt()
	if err != nil {
		return err
	}
	sig, err := parseSignature(ts)
	if err != nil {
		return err
	}
	var noInline, exported bool
	for !ts.atPunct("{") && !ts.atEnd() {
		a, err := ts.expectIdentAny()
		if err != nil {
			return err
		}
		switch a {
		case "noinline":
			noInline = true
		case "exported":
			exported = true
		}
	}
	if err := ts.expectPunct("{"); err != nil {
		return err
	}

	fn := b.CreateFunction(name, sig)
	fn.Attrs.NoInline = noInline
	fn.Attrs.Exported = exported
	env := map[string]il.Value{}
	blocks := map[string]*il.BasicBlock{}

	var bodyLines [][]token
	for {
		p.skipNewlines()
		if p.cur().kind == tokPunct && p.cur().text == "}" {
			p.advance()
			break
		}
		if p.cur().kind == tokEOF {
			return p.errf("unexpected end of input inside func @%s", name)
		}
		bodyLines = append(bodyLines, p.line())
	}

	first := true
	for _, ln := range bodyLines {
		if !isBlockHeader(ln) {
			continue
		}
		label := ln[0].text
		if first {
			blocks[label] = fn.Entry()
			first = false
		} else {
			blocks[label] = b.CreateBlock(label)
		}
	}

	for _, ln := range bodyLines {
		if !isBlockHeader(ln) {
			if err := parseInstructionLine(b, env, blocks, ln); err != nil {
				return err
			}
			continue
		}
		blk := blocks[ln[0].text]
		b.SetBlock(blk)

		pts := &tokStream{toks: ln[2 : len(ln)-2]}
		idx := 0
		for !pts.atEnd() {
			tempName, err := pts.expectTemp()
			if err != nil {
				return err
			}
			if err := pts.expectPunct(":"); err != nil {
				return err
			}
			typName, err := pts.expectIdentAny()
			if err != nil {
				return err
			}
			typ := il.ParseType(typName)
			if blk == fn.Entry() {
				if idx >= len(fn.Params) {
					return fmt.Errorf("ilfmt: entry block declares more params than the signature")
				}
				env[tempName] = il.TempValue(fn.Params[idx].Temp, fn.Params[idx].Type)
			} else {
				t := fn.AllocateTemp()
				blk.AddParam(t, typ)
				env[tempName] = il.TempValue(t, typ)
			}
			idx++
			if pts.atPunct(",") {
				pts.pos++
			}
		}
	}

	for _, blk := range fn.Blocks() {
		b.Seal(blk)
	}
	return nil
}

// parseEdge parses "label(args)".
func parseEdge(ts *tokStream, env map[string]il.Value, blocks map[string]*il.BasicBlock) (il.Edge, error) {
	label, err := ts.expectIdentAny()
	if err != nil {
		return il.Edge{}, err
	}
	target, ok := blocks[label]
	if !ok {
		return il.Edge{}, fmt.Errorf("ilfmt: reference to undeclared block %q", label)
	}
	if err := ts.expectPunct("("); err != nil {
		return il.Edge{}, err
	}
	args, err := parseValueList(ts, env)
	if err != nil {
		return il.Edge{}, err
	}
	if err := ts.expectPunct(")"); err != nil {
		return il.Edge{}, err
	}
	return il.Edge{Target: target, Args: args}, nil
}

func parseInstructionLine(b *il.Builder, env map[string]il.Value, blocks map[string]*il.BasicBlock, ln []token) error {
	ts := &tokStream{toks: ln}
	var results []string
	if ts.cur().kind == tokTemp {
		t1, err := ts.expectTemp()
		if err != nil {
			return err
		}
		results = append(results, t1)
		if ts.atPunct(",") {
			ts.pos++
			t2, err := ts.expectTemp()
			if err != nil {
				return err
			}
			results = append(results, t2)
		}
		if err := ts.expectPunct("="); err != nil {
			return err
		}
	}
	opName, err := ts.expectIdentAny()
	if err != nil {
		return err
	}
	op := il.ParseOpcode(opName)
	if op == il.OpInvalid {
		return fmt.Errorf("ilfmt: unknown opcode %q", opName)
	}

	bind := func(v il.Value) {
		if len(results) > 0 {
			env[results[0]] = v
		}
	}

	switch op {
	case il.OpConstI64:
		v, err := parseOperandValue(ts, env)
		if err != nil {
			return err
		}
		bind(b.EmitConstI64(v.I64, v.Type()))
	case il.OpConstF64:
		v, err := parseOperandValue(ts, env)
		if err != nil {
			return err
		}
		bind(b.EmitConstF64(v.F64Bits))
	case il.OpConstStr:
		v, err := parseOperandValue(ts, env)
		if err != nil {
			return err
		}
		bind(b.EmitConstStr(v.Global))
	case il.OpGlobalAddr:
		v, err := parseOperandValue(ts, env)
		if err != nil {
			return err
		}
		bind(b.EmitGlobalAddr(v.Global))
	case il.OpNullPtr:
		bind(b.EmitNullPtr())
	case il.OpAlloca:
		typName, err := ts.expectIdentAny()
		if err != nil {
			return err
		}
		if err := ts.expectPunct("*"); err != nil {
			return err
		}
		n, err := ts.expectInt()
		if err != nil {
			return err
		}
		bind(b.EmitAlloca(il.ParseType(typName), n))
	case il.OpLoad:
		typName, err := ts.expectIdentAny()
		if err != nil {
			return err
		}
		ptr, err := parseOperandValue(ts, env)
		if err != nil {
			return err
		}
		bind(b.EmitLoad(il.ParseType(typName), ptr))
	case il.OpStore:
		ptr, err := parseOperandValue(ts, env)
		if err != nil {
			return err
		}
		if err := ts.expectPunct(","); err != nil {
			return err
		}
		val, err := parseOperandValue(ts, env)
		if err != nil {
			return err
		}
		b.EmitStore(ptr, val)
	case il.OpGEP:
		base, err := parseOperandValue(ts, env)
		if err != nil {
			return err
		}
		if err := ts.expectPunct("+"); err != nil {
			return err
		}
		off, err := ts.expectInt()
		if err != nil {
			return err
		}
		bind(b.EmitGEP(base, off))
	case il.OpRetain:
		v, err := parseOperandValue(ts, env)
		if err != nil {
			return err
		}
		b.EmitRetain(v)
	case il.OpRelease:
		v, err := parseOperandValue(ts, env)
		if err != nil {
			return err
		}
		b.EmitRelease(v)
	case il.OpICmpEq, il.OpICmpNe, il.OpICmpSlt, il.OpICmpSle, il.OpICmpSgt, il.OpICmpSge,
		il.OpICmpUlt, il.OpICmpUle, il.OpICmpUgt, il.OpICmpUge:
		a, err := parseOperandValue(ts, env)
		if err != nil {
			return err
		}
		if err := ts.expectPunct(","); err != nil {
			return err
		}
		c, err := parseOperandValue(ts, env)
		if err != nil {
			return err
		}
		bind(b.EmitICmp(op, canonicalPred(op), a, c))
	case il.OpFCmpOrd, il.OpFCmpUno:
		a, err := parseOperandValue(ts, env)
		if err != nil {
			return err
		}
		if err := ts.expectPunct(","); err != nil {
			return err
		}
		c, err := parseOperandValue(ts, env)
		if err != nil {
			return err
		}
		if err := ts.expectPunct(","); err != nil {
			return err
		}
		predName, err := ts.expectIdentAny()
		if err != nil {
			return err
		}
		pred, ok := il.ParseCmpPred(predName)
		if !ok {
			return fmt.Errorf("unknown fcmp predicate %q", predName)
		}
		bind(b.EmitFCmp(op, pred, a, c))
	case il.OpSiToFp, il.OpFpToSi, il.OpZExt, il.OpSExt, il.OpTrunc, il.OpBitcast:
		v, err := parseOperandValue(ts, env)
		if err != nil {
			return err
		}
		if err := ts.expectPunct(":"); err != nil {
			return err
		}
		typName, err := ts.expectIdentAny()
		if err != nil {
			return err
		}
		bind(b.EmitCast(op, v, il.ParseType(typName)))
	case il.OpCastSiNarrowChk:
		v, err := parseOperandValue(ts, env)
		if err != nil {
			return err
		}
		if err := ts.expectPunct(":"); err != nil {
			return err
		}
		typName, err := ts.expectIdentAny()
		if err != nil {
			return err
		}
		bind(b.EmitCastSiNarrowChk(v, il.ParseType(typName)))
	case il.OpSDivChk0:
		x, err := parseOperandValue(ts, env)
		if err != nil {
			return err
		}
		if err := ts.expectPunct(","); err != nil {
			return err
		}
		d, err := parseOperandValue(ts, env)
		if err != nil {
			return err
		}
		bind(b.EmitSDivChk0(x, d))
	case il.OpIdxChk:
		idx, err := parseOperandValue(ts, env)
		if err != nil {
			return err
		}
		if err := ts.expectPunct(","); err != nil {
			return err
		}
		lo, err := parseOperandValue(ts, env)
		if err != nil {
			return err
		}
		if err := ts.expectPunct(","); err != nil {
			return err
		}
		hi, err := parseOperandValue(ts, env)
		if err != nil {
			return err
		}
		bind(b.EmitIdxChk(idx, lo, hi))
	case il.OpCall:
		extern := false
		if ts.atIdent("extern") {
			ts.pos++
			extern = true
		}
		callee, err := ts.expectAt()
		if err != nil {
			return err
		}
		if err := ts.expectPunct("("); err != nil {
			return err
		}
		args, err := parseValueList(ts, env)
		if err != nil {
			return err
		}
		if err := ts.expectPunct(")"); err != nil {
			return err
		}
		if err := ts.expectPunct(":"); err != nil {
			return err
		}
		typName, err := ts.expectIdentAny()
		if err != nil {
			return err
		}
		v, _ := b.EmitCall(callee, extern, args, il.ParseType(typName))
		bind(v)
	case il.OpCallIndirect:
		fnPtr, err := parseOperandValue(ts, env)
		if err != nil {
			return err
		}
		if err := ts.expectPunct("("); err != nil {
			return err
		}
		args, err := parseValueList(ts, env)
		if err != nil {
			return err
		}
		if err := ts.expectPunct(")"); err != nil {
			return err
		}
		if err := ts.expectPunct(":"); err != nil {
			return err
		}
		typName, err := ts.expectIdentAny()
		if err != nil {
			return err
		}
		v, _ := b.EmitCallIndirect(fnPtr, args, il.ParseType(typName))
		bind(v)
	case il.OpEhEntry:
		kind, msg := b.EmitEhEntry()
		if len(results) > 0 {
			env[results[0]] = kind
		}
		if len(results) > 1 {
			env[results[1]] = msg
		}
	case il.OpTrap, il.OpEhThrow:
		kindName, err := ts.expectIdentAny()
		if err != nil {
			return err
		}
		kind, _ := il.ParseTrapKind(kindName)
		msg, err := ts.expectString()
		if err != nil {
			return err
		}
		if op == il.OpTrap {
			b.EmitTrap(kind, msg)
		} else {
			b.EmitEhThrow(kind, msg)
		}
	case il.OpBr:
		e, err := parseEdge(ts, env, blocks)
		if err != nil {
			return err
		}
		b.EmitBr(e.Target, e.Args...)
	case il.OpCBr:
		cond, err := parseOperandValue(ts, env)
		if err != nil {
			return err
		}
		if k, err := ts.expectIdentAny(); err != nil || k != "then" {
			return fmt.Errorf("ilfmt: expected 'then' in cbr")
		}
		thenEdge, err := parseEdge(ts, env, blocks)
		if err != nil {
			return err
		}
		if k, err := ts.expectIdentAny(); err != nil || k != "else" {
			return fmt.Errorf("ilfmt: expected 'else' in cbr")
		}
		elseEdge, err := parseEdge(ts, env, blocks)
		if err != nil {
			return err
		}
		b.EmitCBr(cond, thenEdge.Target, thenEdge.Args, elseEdge.Target, elseEdge.Args)
	case il.OpSwitch:
		v, err := parseOperandValue(ts, env)
		if err != nil {
			return err
		}
		if err := ts.expectPunct("{"); err != nil {
			return err
		}
		var cases []il.SwitchCase
		var def il.Edge
		for !ts.atIdent("default") {
			n, err := ts.expectInt()
			if err != nil {
				return err
			}
			if err := ts.expectPunct(":"); err != nil {
				return err
			}
			e, err := parseEdge(ts, env, blocks)
			if err != nil {
				return err
			}
			cases = append(cases, il.SwitchCase{Value: n, Edge: e})
			if ts.atPunct(",") {
				ts.pos++
			}
		}
		ts.pos++ // "default"
		if err := ts.expectPunct(":"); err != nil {
			return err
		}
		def, err = parseEdge(ts, env, blocks)
		if err != nil {
			return err
		}
		if err := ts.expectPunct("}"); err != nil {
			return err
		}
		b.EmitSwitch(v, cases, def.Target, def.Args)
	case il.OpRet:
		if ts.atEnd() {
			b.EmitRet()
		} else {
			vs, err := parseRetArgs(ts, env)
			if err != nil {
				return err
			}
			b.EmitRet(vs...)
		}
	default: // binary arithmetic/bitwise
		a, err := parseOperandValue(ts, env)
		if err != nil {
			return err
		}
		if err := ts.expectPunct(","); err != nil {
			return err
		}
		c, err := parseOperandValue(ts, env)
		if err != nil {
			return err
		}
		if err := ts.expectPunct(":"); err != nil {
			return err
		}
		typName, err := ts.expectIdentAny()
		if err != nil {
			return err
		}
		bind(b.EmitBinary(op, a, c, il.ParseType(typName)))
	}
	return nil
}

func parseRetArgs(ts *tokStream, env map[string]il.Value) ([]il.Value, error) {
	var vs []il.Value
	for !ts.atEnd() {
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
