// Package nixls provides a lexer, parser and typed syntax tree for the Nix
// expression language, plus the configuration shared by the language server.
package nixls

import (
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
)

// Node is implemented by every syntax tree node.
type Node interface {
	Span() Span
}

// Expr is a Node in expression position.
type Expr interface {
	Node
	expr()
}

// Entry is a member of an attribute set or let block.
type Entry interface {
	Node
	entry()
}

// StringPart is a piece of a string literal.
type StringPart interface {
	Node
	stringPart()
}

// NodeMeta holds position information attached to every node.
type NodeMeta struct {
	Pos    lexer.Position
	EndPos lexer.Position
}

// Span returns the source span covered by the node.
func (m *NodeMeta) Span() Span {
	return Span{Start: m.Pos, End: m.EndPos}
}

// CommentMeta holds comments attached to set and let members.
type CommentMeta struct {
	LeadingComments []string
	TrailingComment string
}

// Doc returns the leading comments as a single block of text with comment
// markers stripped.
func (c *CommentMeta) Doc() string {
	return strings.Join(c.LeadingComments, "\n")
}

// File is the root of a parsed Nix file.
type File struct {
	NodeMeta

	Expr     Expr
	Comments []Trivia
}

// Ident is an identifier. Name is empty for a placeholder the parser inserted
// where an identifier was expected (for example after a dangling "a.").
type Ident struct {
	NodeMeta

	Name string
}

// Missing reports whether the identifier is a parser placeholder.
func (i *Ident) Missing() bool {
	return i.Name == ""
}

// LitKind distinguishes literal kinds.
type LitKind int

// Literal kinds.
const (
	LitInt LitKind = iota
	LitFloat
	LitURI
)

// Literal is a number or URI literal.
type Literal struct {
	NodeMeta

	Kind  LitKind
	Value string
}

// PathAnchor is the anchor of a path literal.
type PathAnchor int

// Path anchors.
const (
	AnchorRelative PathAnchor = iota // ./foo, foo/bar
	AnchorAbsolute                   // /etc/nixos
	AnchorHome                       // ~/foo
	AnchorStore                      // <nixpkgs>
)

func (a PathAnchor) String() string {
	switch a {
	case AnchorRelative:
		return "relative"
	case AnchorAbsolute:
		return "absolute"
	case AnchorHome:
		return "home"
	case AnchorStore:
		return "store"
	default:
		return "unknown"
	}
}

// PathLit is a path literal. For AnchorStore, Value is the text between the
// angle brackets.
type PathLit struct {
	NodeMeta

	Anchor PathAnchor
	Value  string
}

// StringLit is a double-quoted or indented string.
type StringLit struct {
	NodeMeta

	Indented bool
	Parts    []StringPart
}

// Static returns the unescaped string value if the literal has no
// interpolations.
func (s *StringLit) Static() (string, bool) {
	var b strings.Builder

	for _, p := range s.Parts {
		text, ok := p.(*StringText)
		if !ok {
			return "", false
		}

		if s.Indented {
			b.WriteString(unescapeIndented(text.Raw))
		} else {
			b.WriteString(unescapeString(text.Raw))
		}
	}

	return b.String(), true
}

// StringText is literal string content, exactly as written in the source.
type StringText struct {
	NodeMeta

	Raw string
}

// Interpolation is a ${...} inside a string.
type Interpolation struct {
	NodeMeta

	X Expr
}

// Dynamic is a ${...} used as an attribute name.
type Dynamic struct {
	NodeMeta

	X Expr
}

// AttrPath is a dotted attribute path. Each element is an *Ident, a
// *StringLit or a *Dynamic.
type AttrPath struct {
	NodeMeta

	Attrs []Node
}

// Idents returns the leading plain identifier names of the path, stopping at
// the first element that is not an identifier.
func (p *AttrPath) Idents() []*Ident {
	var out []*Ident

	for _, a := range p.Attrs {
		id, ok := a.(*Ident)
		if !ok {
			break
		}

		out = append(out, id)
	}

	return out
}

// AttrName returns the static name of an attribute path element.
func AttrName(n Node) (string, bool) {
	switch n := n.(type) {
	case *Ident:
		return n.Name, !n.Missing()
	case *StringLit:
		return n.Static()
	default:
		return "", false
	}
}

// KeyValue is "path = value;".
type KeyValue struct {
	NodeMeta
	CommentMeta

	Key   *AttrPath
	Value Expr
}

// Inherit is "inherit a b;" or "inherit (from) a b;". Names holds *Ident or
// *StringLit elements.
type Inherit struct {
	NodeMeta
	CommentMeta

	From  Expr
	Names []Node
}

// AttrSet is "{ ... }" or "rec { ... }".
type AttrSet struct {
	NodeMeta

	Rec     bool
	Entries []Entry
}

// LetIn is "let ... in body".
type LetIn struct {
	NodeMeta

	Entries []Entry
	Body    Expr
}

// Lambda is a function. Exactly one of Param and Pattern is set.
type Lambda struct {
	NodeMeta

	Param   *Ident
	Pattern *Pattern
	Body    Expr
}

// Pattern is a destructuring argument "{ a, b ? 1, ... }@args".
type Pattern struct {
	NodeMeta

	Entries  []*PatEntry
	Ellipsis bool
	Bind     *Ident
}

// PatEntry is one formal of a Pattern.
type PatEntry struct {
	NodeMeta

	Name    *Ident
	Default Expr
}

// Apply is function application.
type Apply struct {
	NodeMeta

	Fn  Expr
	Arg Expr
}

// Select is "x.a.b" or "x.a.b or default".
type Select struct {
	NodeMeta

	X       Expr
	Path    *AttrPath
	Default Expr
}

// HasAttr is "x ? a.b".
type HasAttr struct {
	NodeMeta

	X    Expr
	Path *AttrPath
}

// With is "with namespace; body".
type With struct {
	NodeMeta

	Namespace Expr
	Body      Expr
}

// Assert is "assert cond; body".
type Assert struct {
	NodeMeta

	Cond Expr
	Body Expr
}

// If is "if cond then a else b".
type If struct {
	NodeMeta

	Cond Expr
	Then Expr
	Else Expr
}

// List is "[ a b c ]".
type List struct {
	NodeMeta

	Items []Expr
}

// BinaryExpr is "x op y".
type BinaryExpr struct {
	NodeMeta

	Op string
	X  Expr
	Y  Expr
}

// UnaryExpr is "!x" or "-x".
type UnaryExpr struct {
	NodeMeta

	Op string
	X  Expr
}

// Paren is "(x)".
type Paren struct {
	NodeMeta

	X Expr
}

// BadExpr stands in for an expression that failed to parse.
type BadExpr struct {
	NodeMeta
}

func (*Ident) expr()      {}
func (*Literal) expr()    {}
func (*PathLit) expr()    {}
func (*StringLit) expr()  {}
func (*AttrSet) expr()    {}
func (*LetIn) expr()      {}
func (*Lambda) expr()     {}
func (*Apply) expr()      {}
func (*Select) expr()     {}
func (*HasAttr) expr()    {}
func (*With) expr()       {}
func (*Assert) expr()     {}
func (*If) expr()         {}
func (*List) expr()       {}
func (*BinaryExpr) expr() {}
func (*UnaryExpr) expr()  {}
func (*Paren) expr()      {}
func (*BadExpr) expr()    {}

func (*KeyValue) entry() {}
func (*Inherit) entry()  {}

func (*StringText) stringPart()    {}
func (*Interpolation) stringPart() {}

// Unparen strips any number of enclosing parentheses.
func Unparen(e Expr) Expr {
	for {
		p, ok := e.(*Paren)
		if !ok {
			return e
		}

		e = p.X
	}
}

// IsImport reports whether e is "import <arg>" and returns the argument.
func IsImport(e Expr) (Expr, bool) {
	app, ok := e.(*Apply)
	if !ok {
		return nil, false
	}

	fn, ok := Unparen(app.Fn).(*Ident)
	if !ok || fn.Name != "import" {
		return nil, false
	}

	return app.Arg, true
}

func unescapeString(raw string) string {
	if !strings.Contains(raw, `\`) {
		return raw
	}

	var b strings.Builder

	for i := 0; i < len(raw); i++ {
		c := raw[i]

		if c != '\\' || i+1 >= len(raw) {
			b.WriteByte(c)

			continue
		}

		i++

		switch raw[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		default:
			b.WriteByte(raw[i])
		}
	}

	return b.String()
}

func unescapeIndented(raw string) string {
	r := strings.NewReplacer("'''", "''", "''$", "$", `''\n`, "\n", `''\t`, "\t", `''\r`, "\r", `''\`, "")

	return r.Replace(raw)
}
