package nixls

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/alecthomas/participle/v2/lexer"
)

// ParseError is a syntax error with the span it covers.
type ParseError struct {
	Span    Span
	Message string
}

func (e *ParseError) Error() string {
	return e.Span.Start.String() + ": " + e.Message
}

// Parse parses a Nix file. It never fails: syntax errors are returned
// alongside a tree in which the broken parts are replaced by BadExpr nodes
// or placeholder identifiers. Comments are attached to set and let members.
// Parse is safe for concurrent use.
func Parse(data []byte) (*File, []*ParseError) {
	return ParseFile("", data)
}

// ParseFile is Parse with a filename recorded in every position.
func ParseFile(filename string, data []byte) (*File, []*ParseError) {
	src := string(data)
	trivia := &TriviaList{}
	lex := newLexerState(filename, src, trivia)

	p := &parser{src: src}

	for {
		tok, _ := lex.Next()
		if tok.Type == TokenWhitespace || tok.Type == TokenComment {
			continue
		}

		p.toks = append(p.toks, tok)

		if tok.EOF() {
			break
		}
	}

	for _, err := range lex.errors {
		pos := err.Pos()
		p.errs = append(p.errs, &ParseError{Span: Span{Start: pos, End: pos}, Message: err.Message()})
	}

	p.prevEnd = lexer.Position{Filename: filename, Line: 1, Column: 1}

	file := &File{}
	file.Pos = p.prevEnd
	file.Expr = p.parseExpr()

	if !p.at(TokenEOF) {
		p.errorf(p.peek(), "unexpected %s after expression", describe(p.peek()))
	}

	file.EndPos = lex.pos()
	file.Comments = trivia.All()

	attachComments(file, src, trivia)

	return file, p.errs
}

type parser struct {
	src     string
	toks    []lexer.Token
	pos     int
	prevEnd lexer.Position
	errs    []*ParseError
}

func (p *parser) peek() lexer.Token {
	return p.toks[p.pos]
}

func (p *parser) peekAt(n int) lexer.Token {
	if p.pos+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}

	return p.toks[p.pos+n]
}

func (p *parser) at(typ lexer.TokenType) bool {
	return p.peek().Type == typ
}

func (p *parser) atOp(op string) bool {
	tok := p.peek()

	return tok.Type == TokenOp && tok.Value == op
}

func (p *parser) next() lexer.Token {
	tok := p.peek()
	if !tok.EOF() {
		p.pos++
		p.prevEnd = tokenEnd(tok)
	}

	return tok
}

// expect consumes a token of the given type or records an error.
func (p *parser) expect(typ lexer.TokenType, what string) bool {
	if p.at(typ) {
		p.next()

		return true
	}

	p.errorf(p.peek(), "expected %s, found %s", what, describe(p.peek()))

	return false
}

func (p *parser) errorf(tok lexer.Token, format string, args ...any) {
	p.errs = append(p.errs, &ParseError{
		Span:    Span{Start: tok.Pos, End: tokenEnd(tok)},
		Message: fmt.Sprintf(format, args...),
	})
}

func (p *parser) meta(start lexer.Position) NodeMeta {
	return NodeMeta{Pos: start, EndPos: p.prevEnd}
}

// missingMeta is a zero-width span right after the last consumed token.
func (p *parser) missingMeta() NodeMeta {
	return NodeMeta{Pos: p.prevEnd, EndPos: p.prevEnd}
}

func (p *parser) bad() *BadExpr {
	return &BadExpr{NodeMeta: p.missingMeta()}
}

func (p *parser) parseExpr() Expr {
	tok := p.peek()

	switch tok.Type {
	case TokenLet:
		if p.peekAt(1).Type == TokenLBrace {
			return p.parseLegacyLet()
		}

		return p.parseLetIn()
	case TokenWith:
		p.next()

		ns := p.parseExpr()
		p.expect(TokenSemi, "';'")
		body := p.parseExpr()

		return &With{NodeMeta: p.meta(tok.Pos), Namespace: ns, Body: body}
	case TokenAssert:
		p.next()

		cond := p.parseExpr()
		p.expect(TokenSemi, "';'")
		body := p.parseExpr()

		return &Assert{NodeMeta: p.meta(tok.Pos), Cond: cond, Body: body}
	case TokenIf:
		p.next()

		n := &If{Cond: p.parseExpr()}

		if p.expect(TokenThen, "'then'") {
			n.Then = p.parseExpr()
		} else {
			n.Then = p.bad()
		}

		if p.expect(TokenElse, "'else'") {
			n.Else = p.parseExpr()
		} else {
			n.Else = p.bad()
		}

		n.NodeMeta = p.meta(tok.Pos)

		return n
	case TokenIdent:
		switch p.peekAt(1).Type {
		case TokenColon:
			param := p.parseIdent()
			p.next() // :
			body := p.parseExpr()

			return &Lambda{NodeMeta: p.meta(tok.Pos), Param: param, Body: body}
		case TokenAt:
			if p.peekAt(2).Type == TokenLBrace {
				bind := p.parseIdent()
				p.next() // @

				return p.parsePatternLambda(tok.Pos, bind)
			}
		}
	case TokenLBrace:
		if p.isPattern() {
			return p.parsePatternLambda(tok.Pos, nil)
		}
	}

	return p.parseBinary(0)
}

// isPattern decides whether the "{" at the cursor opens a lambda pattern
// rather than an attribute set.
func (p *parser) isPattern() bool {
	t1 := p.peekAt(1)
	t2 := p.peekAt(2)

	switch t1.Type {
	case TokenRBrace:
		return t2.Type == TokenColon || t2.Type == TokenAt
	case TokenEllipsis:
		return true
	case TokenIdent:
		switch t2.Type {
		case TokenComma, TokenQuestion:
			return true
		case TokenRBrace:
			t3 := p.peekAt(3).Type

			return t3 == TokenColon || t3 == TokenAt
		}
	}

	return false
}

func (p *parser) parsePatternLambda(start lexer.Position, bind *Ident) *Lambda {
	pat := p.parsePattern(bind)

	p.expect(TokenColon, "':'")

	lam := &Lambda{Pattern: pat, Body: p.parseExpr()}
	lam.Pos = start
	lam.EndPos = p.prevEnd

	return lam
}

func (p *parser) parsePattern(bind *Ident) *Pattern {
	start := p.peek().Pos
	if bind != nil {
		start = bind.Pos
	}

	pat := &Pattern{Bind: bind}

	p.next() // {

	for !p.at(TokenRBrace) && !p.at(TokenEOF) {
		if p.at(TokenEllipsis) {
			p.next()

			pat.Ellipsis = true
		} else if p.at(TokenIdent) {
			entryStart := p.peek().Pos
			entry := &PatEntry{Name: p.parseIdent()}

			if p.at(TokenQuestion) {
				p.next()

				entry.Default = p.parseExpr()
			}

			entry.NodeMeta = p.meta(entryStart)
			pat.Entries = append(pat.Entries, entry)
		} else {
			p.errorf(p.peek(), "unexpected %s in function arguments", describe(p.peek()))
			p.skipUntil(TokenComma, TokenRBrace, TokenColon)

			if p.at(TokenColon) {
				break
			}
		}

		if !p.at(TokenComma) {
			break
		}

		p.next()
	}

	p.expect(TokenRBrace, "'}'")

	if bind == nil && p.at(TokenAt) {
		p.next()

		if p.at(TokenIdent) {
			pat.Bind = p.parseIdent()
		} else {
			p.errorf(p.peek(), "expected identifier after '@'")
		}
	}

	pat.NodeMeta = p.meta(start)

	return pat
}

func (p *parser) parseLetIn() Expr {
	start := p.next().Pos // let

	entries := p.parseEntries(TokenIn)

	var body Expr

	if p.expect(TokenIn, "'in'") {
		body = p.parseExpr()
	} else {
		body = p.bad()
	}

	return &LetIn{NodeMeta: p.meta(start), Entries: entries, Body: body}
}

// parseLegacyLet parses "let { ...; body = e; }" as a recursive set.
func (p *parser) parseLegacyLet() Expr {
	start := p.next().Pos // let
	p.next()             // {

	entries := p.parseEntries(TokenRBrace)
	p.expect(TokenRBrace, "'}'")

	return &AttrSet{NodeMeta: p.meta(start), Rec: true, Entries: entries}
}

// parseEntries parses set or let members until the closing token.
func (p *parser) parseEntries(closer lexer.TokenType) []Entry {
	var entries []Entry

	for !p.at(closer) && !p.at(TokenEOF) {
		if closer == TokenIn && p.at(TokenRBrace) {
			break
		}

		switch tok := p.peek(); {
		case tok.Type == TokenInherit:
			entries = append(entries, p.parseInherit())
		case startsAttr(tok.Type):
			entries = append(entries, p.parseKeyValue(closer))
		default:
			p.errorf(tok, "unexpected %s", describe(tok))
			p.next()
			p.skipUntil(TokenSemi, closer, TokenRBrace)

			if p.at(TokenSemi) {
				p.next()
			}
		}
	}

	return entries
}

func (p *parser) parseKeyValue(closer lexer.TokenType) *KeyValue {
	start := p.peek().Pos
	kv := &KeyValue{Key: p.parseAttrPath()}

	if p.expect(TokenAssign, "'='") {
		kv.Value = p.parseExpr()
	} else {
		kv.Value = p.bad()
	}

	if !p.at(TokenSemi) {
		if !p.at(closer) && !p.at(TokenRBrace) {
			p.errorf(p.peek(), "expected ';', found %s", describe(p.peek()))
			p.skipUntil(TokenSemi, closer, TokenRBrace)
		} else {
			p.errorf(p.peek(), "expected ';', found %s", describe(p.peek()))
		}
	}

	if p.at(TokenSemi) {
		p.next()
	}

	kv.NodeMeta = p.meta(start)

	return kv
}

func (p *parser) parseInherit() *Inherit {
	start := p.next().Pos // inherit
	inh := &Inherit{}

	if p.at(TokenLParen) {
		p.next()

		inh.From = p.parseExpr()
		p.expect(TokenRParen, "')'")
	}

	for {
		tok := p.peek()

		switch {
		case tok.Type == TokenIdent || tok.Type == TokenOr:
			inh.Names = append(inh.Names, p.parseIdent())

			continue
		case tok.Type == TokenStringOpen:
			inh.Names = append(inh.Names, p.parseString())

			continue
		}

		break
	}

	if !p.expect(TokenSemi, "';'") {
		p.skipUntil(TokenSemi, TokenRBrace, TokenIn)

		if p.at(TokenSemi) {
			p.next()
		}
	}

	inh.NodeMeta = p.meta(start)

	return inh
}

// skipUntil advances to the first token of one of the given types without
// consuming it. Balanced brackets are skipped as a unit.
func (p *parser) skipUntil(types ...lexer.TokenType) {
	depth := 0

	for !p.at(TokenEOF) {
		tok := p.peek()

		if depth == 0 {
			for _, t := range types {
				if tok.Type == t {
					return
				}
			}
		}

		switch tok.Type {
		case TokenLBrace, TokenLParen, TokenLBracket, TokenInterpOpen:
			depth++
		case TokenRBrace, TokenRParen, TokenRBracket, TokenInterpClose:
			if depth == 0 {
				return
			}

			depth--
		}

		p.next()
	}
}

// Binding powers, loosest first.
const (
	precPipe = iota + 1
	precImpl
	precOr
	precAnd
	precEq
	precCmp
	precUpdate
	precNot
	precAdd
	precMul
	precConcat
	precHas
	precNeg
)

type opInfo struct {
	prec  int
	right bool
	// nonassoc operators cannot be chained: "a == b == c" is an error.
	nonassoc bool
}

var binaryOps = map[string]opInfo{
	"|>": {prec: precPipe},
	"<|": {prec: precPipe, right: true},
	"->": {prec: precImpl, right: true},
	"||": {prec: precOr},
	"&&": {prec: precAnd},
	"==": {prec: precEq, nonassoc: true},
	"!=": {prec: precEq, nonassoc: true},
	"<":  {prec: precCmp, nonassoc: true},
	"<=": {prec: precCmp, nonassoc: true},
	">":  {prec: precCmp, nonassoc: true},
	">=": {prec: precCmp, nonassoc: true},
	"//": {prec: precUpdate, right: true},
	"+":  {prec: precAdd},
	"-":  {prec: precAdd},
	"*":  {prec: precMul},
	"/":  {prec: precMul},
	"++": {prec: precConcat, right: true},
}

func (p *parser) parseBinary(minPrec int) Expr {
	x := p.parseUnary()

	lastNonassoc := 0

	for {
		tok := p.peek()

		if tok.Type == TokenQuestion && precHas >= minPrec {
			p.next()

			has := &HasAttr{X: x, Path: p.parseAttrPath()}
			has.NodeMeta = p.meta(x.Span().Start)
			x = has

			continue
		}

		if tok.Type != TokenOp {
			return x
		}

		info, ok := binaryOps[tok.Value]
		if !ok || info.prec < minPrec {
			return x
		}

		if info.nonassoc && lastNonassoc == info.prec {
			p.errorf(tok, "operator %s is not associative", tok.Value)
		}

		p.next()

		next := info.prec + 1
		if info.right {
			next = info.prec
		}

		y := p.parseBinary(next)
		bin := &BinaryExpr{Op: tok.Value, X: x, Y: y}
		bin.NodeMeta = p.meta(x.Span().Start)
		x = bin

		if info.nonassoc {
			lastNonassoc = info.prec
		} else {
			lastNonassoc = 0
		}
	}
}

func (p *parser) parseUnary() Expr {
	tok := p.peek()

	switch {
	case p.atOp("!"):
		p.next()

		x := p.parseBinary(precAdd)

		return &UnaryExpr{NodeMeta: p.meta(tok.Pos), Op: "!", X: x}
	case p.atOp("-"):
		p.next()

		x := p.parseApply()

		return &UnaryExpr{NodeMeta: p.meta(tok.Pos), Op: "-", X: x}
	}

	return p.parseApply()
}

func (p *parser) parseApply() Expr {
	fn := p.parseSelect()

	for startsAtom(p.peek().Type) {
		arg := p.parseSelect()
		app := &Apply{Fn: fn, Arg: arg}
		app.NodeMeta = p.meta(fn.Span().Start)
		fn = app
	}

	return fn
}

func (p *parser) parseSelect() Expr {
	x := p.parseAtom()

	if !p.at(TokenDot) {
		return x
	}

	p.next()

	sel := &Select{X: x, Path: p.parseAttrPath()}

	if p.at(TokenOr) {
		p.next()

		sel.Default = p.parseSelect()
	}

	sel.NodeMeta = p.meta(x.Span().Start)

	return sel
}

func (p *parser) parseAttrPath() *AttrPath {
	path := &AttrPath{}
	path.Attrs = append(path.Attrs, p.parseAttr())

	for p.at(TokenDot) {
		p.next()

		path.Attrs = append(path.Attrs, p.parseAttr())
	}

	// The first attribute may be a placeholder positioned before the
	// offending token, so the path starts where its first element does.
	path.NodeMeta = p.meta(path.Attrs[0].Span().Start)

	return path
}

func (p *parser) parseAttr() Node {
	tok := p.peek()

	switch tok.Type {
	case TokenIdent, TokenOr:
		return p.parseIdent()
	case TokenStringOpen:
		return p.parseString()
	case TokenInterpOpen:
		p.next()

		d := &Dynamic{X: p.parseExpr()}
		p.expect(TokenInterpClose, "'}'")
		d.NodeMeta = p.meta(tok.Pos)

		return d
	}

	p.errorf(tok, "expected attribute name, found %s", describe(tok))

	return &Ident{NodeMeta: p.missingMeta()}
}

func (p *parser) parseIdent() *Ident {
	tok := p.next()

	return &Ident{NodeMeta: p.meta(tok.Pos), Name: tok.Value}
}

func (p *parser) parseAtom() Expr {
	tok := p.peek()

	switch tok.Type {
	case TokenIdent:
		return p.parseIdent()
	case TokenInt:
		p.next()

		return &Literal{NodeMeta: p.meta(tok.Pos), Kind: LitInt, Value: tok.Value}
	case TokenFloat:
		p.next()

		return &Literal{NodeMeta: p.meta(tok.Pos), Kind: LitFloat, Value: tok.Value}
	case TokenURI:
		p.next()

		return &Literal{NodeMeta: p.meta(tok.Pos), Kind: LitURI, Value: tok.Value}
	case TokenPath:
		p.next()

		anchor := AnchorRelative

		switch {
		case strings.HasPrefix(tok.Value, "/"):
			anchor = AnchorAbsolute
		case strings.HasPrefix(tok.Value, "~"):
			anchor = AnchorHome
		}

		return &PathLit{NodeMeta: p.meta(tok.Pos), Anchor: anchor, Value: tok.Value}
	case TokenSearchPath:
		p.next()

		value := strings.TrimSuffix(strings.TrimPrefix(tok.Value, "<"), ">")

		return &PathLit{NodeMeta: p.meta(tok.Pos), Anchor: AnchorStore, Value: value}
	case TokenStringOpen:
		return p.parseString()
	case TokenLParen:
		p.next()

		x := p.parseExpr()
		p.expect(TokenRParen, "')'")

		return &Paren{NodeMeta: p.meta(tok.Pos), X: x}
	case TokenLBracket:
		p.next()

		list := &List{}

		for !p.at(TokenRBracket) && !p.at(TokenEOF) {
			if !startsAtom(p.peek().Type) {
				p.errorf(p.peek(), "unexpected %s in list", describe(p.peek()))
				p.skipUntil(TokenRBracket, TokenSemi)

				break
			}

			list.Items = append(list.Items, p.parseSelect())
		}

		p.expect(TokenRBracket, "']'")
		list.NodeMeta = p.meta(tok.Pos)

		return list
	case TokenRec:
		p.next()

		if !p.at(TokenLBrace) {
			p.errorf(p.peek(), "expected '{' after 'rec'")

			return &BadExpr{NodeMeta: p.meta(tok.Pos)}
		}

		set := p.parseSet()
		set.Rec = true
		set.Pos = tok.Pos

		return set
	case TokenLBrace:
		return p.parseSet()
	}

	p.errorf(tok, "unexpected %s", describe(tok))

	if tok.Type == TokenError || tok.Type == TokenOp || tok.Type == TokenDot {
		p.next()

		return &BadExpr{NodeMeta: p.meta(tok.Pos)}
	}

	return p.bad()
}

func (p *parser) parseSet() *AttrSet {
	start := p.next().Pos // {

	set := &AttrSet{Entries: p.parseEntries(TokenRBrace)}
	p.expect(TokenRBrace, "'}'")
	set.NodeMeta = p.meta(start)

	return set
}

func (p *parser) parseString() *StringLit {
	open := p.next()
	str := &StringLit{Indented: open.Value == "''"}

	for {
		tok := p.peek()

		switch tok.Type {
		case TokenStringText:
			p.next()

			str.Parts = append(str.Parts, &StringText{NodeMeta: p.meta(tok.Pos), Raw: tok.Value})

			continue
		case TokenInterpOpen:
			p.next()

			interp := &Interpolation{X: p.parseExpr()}
			if !p.expect(TokenInterpClose, "'}'") {
				p.skipUntil(TokenInterpClose, TokenStringClose)

				if p.at(TokenInterpClose) {
					p.next()
				}
			}

			interp.NodeMeta = p.meta(tok.Pos)
			str.Parts = append(str.Parts, interp)

			continue
		case TokenStringClose:
			p.next()
		default:
			p.errorf(tok, "unterminated string")
		}

		break
	}

	str.NodeMeta = p.meta(open.Pos)

	return str
}

func startsAtom(typ lexer.TokenType) bool {
	switch typ {
	case TokenIdent, TokenInt, TokenFloat, TokenPath, TokenSearchPath, TokenURI,
		TokenStringOpen, TokenLParen, TokenLBracket, TokenLBrace, TokenRec:
		return true
	}

	return false
}

func startsAttr(typ lexer.TokenType) bool {
	return typ == TokenIdent || typ == TokenOr || typ == TokenStringOpen || typ == TokenInterpOpen
}

func describe(tok lexer.Token) string {
	if tok.EOF() {
		return "end of file"
	}

	return fmt.Sprintf("%q", tok.Value)
}

// tokenEnd returns the position just past tok.
func tokenEnd(tok lexer.Token) lexer.Position {
	end := tok.Pos
	end.Offset += len(tok.Value)

	if i := strings.LastIndexByte(tok.Value, '\n'); i >= 0 {
		end.Line += strings.Count(tok.Value, "\n")
		end.Column = utf8.RuneCountInString(tok.Value[i+1:]) + 1
	} else {
		end.Column += utf8.RuneCountInString(tok.Value)
	}

	return end
}
