package ilfmt

import (
	"fmt"

	"github.com/splanck/viper-sub013/internal/il"
)

type parser struct {
	toks   []token
	pos    int
	lexErr error
}

func newParser(src string) *parser {
	toks, err := lex(src)
	return &parser{toks: toks, lexErr: err}
}

func (p *parser) cur() token {
	if p.pos >= len(p.toks) {
		return token{kind: tokEOF}
	}
	return p.toks[p.pos]
}

func (p *parser) advance() token {
	t := p.cur()
	if p.pos < len(p.toks) {
		p.pos++
	}
	return t
}

func (p *parser) errf(format string, args ...interface{}) error {
	return fmt.Errorf("ilfmt: line %d: %s", p.cur().line, fmt.Sprintf(format, args...))
}

func (p *parser) skipNewlines() {
	for p.cur().kind == tokNewline {
		p.advance()
	}
}

// line collects every token up to (not including) the next newline/EOF and
// consumes the newline.
func (p *parser) line() []token {
	var out []token
	for p.cur().kind != tokNewline && p.cur().kind != tokEOF {
		out = append(out, p.advance())
	}
	if p.cur().kind == tokNewline {
		p.advance()
	}
	return out
}

func (p *parser) parseModule() (*il.Module, error) {
	if p.lexErr != nil {
		return nil, p.lexErr
	}
	b := il.NewBuilder()
	p.skipNewlines()

	hdr := p.line()
	if len(hdr) != 3 || hdr[0].text != "module" || hdr[1].text != "viper" || hdr[2].kind != tokString {
		return nil, p.errf("expected 'module viper \"<version>\"' header")
	}
	b.Module.ILVersion = hdr[2].text
	p.skipNewlines()

	for p.cur().kind == tokIdent && (p.cur().text == "extern" || p.cur().text == "global") {
		toks := p.line()
		if err := p.parseDecl(b, toks); err != nil {
			return nil, err
		}
		p.skipNewlines()
	}

	for p.cur().kind != tokEOF {
		if err := p.parseFunction(b); err != nil {
			return nil, err
		}
		p.skipNewlines()
	}
	return b.Module, nil
}

func (p *parser) parseDecl(b *il.Builder, toks []token) error {
	ts := &tokStream{toks: toks}
	switch toks[0].text {
	case "extern":
		ts.pos = 1
		name, err := ts.expectAt()
		if err != nil {
			return err
		}
		sig, err := parseSignature(ts)
		if err != nil {
			return err
		}
		b.DeclareExtern(name, sig)
	case "global":
		ts.pos = 1
		line := toks[0].line
		idTok, err := ts.expectAt()
		if err != nil {
			return err
		}
		id, err := parseGlobalID(token{text: idTok, line: line})
		if err != nil {
			return err
		}
		kindTok, err := ts.expectIdentAny()
		if err != nil {
			return err
		}
		typTok, err := ts.expectIdentAny()
		if err != nil {
			return err
		}
		nameTok, err := ts.expectString()
		if err != nil {
			return err
		}
		dataTok, err := ts.expectString()
		if err != nil {
			return err
		}
		g := &il.Global{
			ID:          id,
			Name:        nameTok,
			Type:        il.ParseType(typTok),
			Initializer: []byte(dataTok),
			IsConst:     kindTok == "const",
		}
		b.Module.Globals = append(b.Module.Globals, g)
	}
	return nil
}

func parseGlobalID(t token) (il.GlobalID, error) {
	// t.text is "gN"
	var n uint32
	if _, err := fmt.Sscanf(t.text, "g%d", &n); err != nil {
		return 0, fmt.Errorf("ilfmt: line %d: bad global id %q", t.line, t.text)
	}
	return il.GlobalID(n), nil
}

func parseSignature(ts *tokStream) (il.Signature, error) {
	if err := ts.expectPunct("("); err != nil {
		return il.Signature{}, err
	}
	var sig il.Signature
	for !ts.atPunct(")") {
		tt, err := ts.expectIdentAny()
		if err != nil {
			return il.Signature{}, err
		}
		sig.Params = append(sig.Params, il.ParseType(tt))
		if ts.atPunct(",") {
			ts.pos++
		}
	}
	ts.pos++ // ')'
	if err := ts.expectPunct("->"); err != nil {
		return il.Signature{}, err
	}
	rt, err := ts.expectIdentAny()
	if err != nil {
		return il.Signature{}, err
	}
	sig.Result = il.ParseType(rt)
	return sig, nil
}
