package lcmtype

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// ParseSchema parses the text of one .lcm definition file. The returned
// descriptors have KindStruct fields left unresolved (Struct == nil); the
// Registry links them and computes fingerprints in a second pass. name is
// used only for error messages.
func ParseSchema(name, src string) ([]*Descriptor, error) {
	p := &parser{lex: newLexer(name, src)}
	return p.parseFile()
}

type parseError struct {
	file string
	line int
	msg  string
}

func (e *parseError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.file, e.line, e.msg)
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokPunct
)

type token struct {
	kind tokenKind
	text string
	line int
}

type lexer struct {
	file string
	src  string
	pos  int
	line int
	err  error
}

func newLexer(file, src string) *lexer {
	return &lexer{file: file, src: src, line: 1}
}

func (l *lexer) errorf(line int, format string, args ...interface{}) error {
	return &parseError{file: l.file, line: line, msg: fmt.Sprintf(format, args...)}
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == '\n':
			l.line++
			l.pos++
		case c == ' ' || c == '\t' || c == '\r':
			l.pos++
		case c == '/' && l.pos+1 < len(l.src) && l.src[l.pos+1] == '/':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
		case c == '/' && l.pos+1 < len(l.src) && l.src[l.pos+1] == '*':
			end := strings.Index(l.src[l.pos+2:], "*/")
			if end < 0 {
				return token{}, l.errorf(l.line, "unterminated block comment")
			}
			l.line += strings.Count(l.src[l.pos:l.pos+2+end+2], "\n")
			l.pos += 2 + end + 2
		default:
			return l.scanToken()
		}
	}
	return token{kind: tokEOF, line: l.line}, nil
}

func (l *lexer) scanToken() (token, error) {
	c := l.src[l.pos]
	start := l.pos
	switch {
	case isIdentStart(c):
		for l.pos < len(l.src) && isIdentPart(l.src[l.pos]) {
			l.pos++
		}
		return token{kind: tokIdent, text: l.src[start:l.pos], line: l.line}, nil
	case c == '-' || c == '+' || c >= '0' && c <= '9':
		l.pos++
		for l.pos < len(l.src) && isNumberPart(l.src[l.pos]) {
			l.pos++
		}
		return token{kind: tokNumber, text: l.src[start:l.pos], line: l.line}, nil
	case strings.ContainsRune("{}[];,=", rune(c)):
		l.pos++
		return token{kind: tokPunct, text: string(c), line: l.line}, nil
	default:
		return token{}, l.errorf(l.line, "unexpected character %q", c)
	}
}

func isIdentStart(c byte) bool {
	return c == '_' || unicode.IsLetter(rune(c))
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || c >= '0' && c <= '9' || c == '.'
}

func isNumberPart(c byte) bool {
	return c >= '0' && c <= '9' || c == '.' || c == 'x' || c == 'X' ||
		c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F' || c == 'e' || c == 'E' ||
		c == '+' || c == '-'
}

type parser struct {
	lex    *lexer
	peeked *token
}

func (p *parser) next() (token, error) {
	if p.peeked != nil {
		t := *p.peeked
		p.peeked = nil
		return t, nil
	}
	return p.lex.next()
}

func (p *parser) peek() (token, error) {
	if p.peeked == nil {
		t, err := p.lex.next()
		if err != nil {
			return token{}, err
		}
		p.peeked = &t
	}
	return *p.peeked, nil
}

func (p *parser) expectPunct(text string) (token, error) {
	t, err := p.next()
	if err != nil {
		return t, err
	}
	if t.kind != tokPunct || t.text != text {
		return t, p.lex.errorf(t.line, "expected %q, found %q", text, t.text)
	}
	return t, nil
}

func (p *parser) expectIdent() (token, error) {
	t, err := p.next()
	if err != nil {
		return t, err
	}
	if t.kind != tokIdent {
		return t, p.lex.errorf(t.line, "expected identifier, found %q", t.text)
	}
	return t, nil
}

func (p *parser) parseFile() ([]*Descriptor, error) {
	var (
		pkg   string
		types []*Descriptor
	)
	for {
		t, err := p.next()
		if err != nil {
			return nil, err
		}
		switch {
		case t.kind == tokEOF:
			return types, nil
		case t.kind == tokIdent && t.text == "package":
			name, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			if _, err := p.expectPunct(";"); err != nil {
				return nil, err
			}
			pkg = name.text
		case t.kind == tokIdent && t.text == "struct":
			d, err := p.parseStruct(pkg)
			if err != nil {
				return nil, err
			}
			types = append(types, d)
		default:
			return nil, p.lex.errorf(t.line, "expected 'package' or 'struct', found %q", t.text)
		}
	}
}

func (p *parser) parseStruct(pkg string) (*Descriptor, error) {
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	d := &Descriptor{Package: pkg, Name: name.text}
	for {
		t, err := p.peek()
		if err != nil {
			return nil, err
		}
		if t.kind == tokPunct && t.text == "}" {
			p.peeked = nil
			return d, nil
		}
		if t.kind == tokIdent && t.text == "const" {
			p.peeked = nil
			if err := p.parseConsts(d); err != nil {
				return nil, err
			}
			continue
		}
		if err := p.parseMembers(d); err != nil {
			return nil, err
		}
	}
}

func (p *parser) parseConsts(d *Descriptor) error {
	typ, err := p.expectIdent()
	if err != nil {
		return err
	}
	kind := KindFromName(typ.text)
	if !kind.IsPrimitive() || kind == KindString {
		return p.lex.errorf(typ.line, "invalid constant type %q", typ.text)
	}
	for {
		name, err := p.expectIdent()
		if err != nil {
			return err
		}
		if _, err := p.expectPunct("="); err != nil {
			return err
		}
		val, err := p.next()
		if err != nil {
			return err
		}
		if val.kind != tokNumber {
			return p.lex.errorf(val.line, "expected constant value, found %q", val.text)
		}
		c := Constant{Name: name.text, Kind: kind}
		switch kind {
		case KindFloat, KindDouble:
			f, err := strconv.ParseFloat(val.text, 64)
			if err != nil {
				return p.lex.errorf(val.line, "invalid float constant %q", val.text)
			}
			c.Value = f
		default:
			n, err := strconv.ParseInt(val.text, 0, 64)
			if err != nil {
				return p.lex.errorf(val.line, "invalid integer constant %q", val.text)
			}
			c.Value = n
		}
		d.Constants = append(d.Constants, c)

		sep, err := p.next()
		if err != nil {
			return err
		}
		if sep.kind == tokPunct && sep.text == ";" {
			return nil
		}
		if sep.kind != tokPunct || sep.text != "," {
			return p.lex.errorf(sep.line, "expected ',' or ';', found %q", sep.text)
		}
	}
}

func (p *parser) parseMembers(d *Descriptor) error {
	typ, err := p.expectIdent()
	if err != nil {
		return err
	}
	kind := KindFromName(typ.text)
	if kind == KindInvalid {
		kind = KindStruct
	}
	for {
		name, err := p.expectIdent()
		if err != nil {
			return err
		}
		f := Field{Name: name.text, Kind: kind, TypeName: typ.text}
		for {
			t, err := p.peek()
			if err != nil {
				return err
			}
			if t.kind != tokPunct || t.text != "[" {
				break
			}
			p.peeked = nil
			dim, err := p.parseDim()
			if err != nil {
				return err
			}
			f.Dims = append(f.Dims, dim)
		}
		d.Fields = append(d.Fields, f)

		sep, err := p.next()
		if err != nil {
			return err
		}
		if sep.kind == tokPunct && sep.text == ";" {
			return nil
		}
		if sep.kind != tokPunct || sep.text != "," {
			return p.lex.errorf(sep.line, "expected ',' or ';', found %q", sep.text)
		}
	}
}

func (p *parser) parseDim() (Dim, error) {
	t, err := p.next()
	if err != nil {
		return Dim{}, err
	}
	var dim Dim
	switch t.kind {
	case tokNumber:
		n, err := strconv.ParseInt(t.text, 0, 64)
		if err != nil || n < 0 {
			return Dim{}, p.lex.errorf(t.line, "invalid array length %q", t.text)
		}
		dim = Dim{Mode: DimConst, Size: n}
	case tokIdent:
		dim = Dim{Mode: DimVar, SizeField: t.text}
	default:
		return Dim{}, p.lex.errorf(t.line, "expected array length, found %q", t.text)
	}
	if _, err := p.expectPunct("]"); err != nil {
		return Dim{}, err
	}
	return dim, nil
}
