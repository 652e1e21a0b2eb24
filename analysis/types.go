// Package analysis answers semantic questions about Nix source: which names
// are in scope at a position, what a dotted path refers to, which documented
// names complete it, and where a binding occurs.
package analysis

import (
	"sort"

	"go.lsp.dev/uri"

	"github.com/nixls/nixls"
)

// BindingKind is the construct that introduced a name.
type BindingKind int

// Binding kind constants.
const (
	KindParameter BindingKind = iota
	KindAttribute
	KindLet
	KindWith
	KindBuiltin
)

func (k BindingKind) String() string {
	switch k {
	case KindParameter:
		return "parameter"
	case KindAttribute:
		return "attribute"
	case KindLet:
		return "let"
	case KindWith:
		return "with"
	case KindBuiltin:
		return "builtin"
	default:
		return "unknown"
	}
}

// Binding is a name visible in a scope.
type Binding struct {
	Name string
	Kind BindingKind

	// URI is the file that defines the binding. Empty for builtins.
	URI uri.URI

	// Key is the node that introduced the name: the first identifier of a
	// key, a parameter, a pattern entry name or an inherited name.
	Key nixls.Node

	// Value is the bound expression. Nil for parameters, inherited names and
	// builtins.
	Value nixls.Expr

	// Entry is the set or let member holding Key, if any. It carries the
	// leading comments shown on hover.
	Entry nixls.Entry

	// Scope is the construct that defines the binding: a lambda, let, rec
	// set, with or plain set.
	Scope nixls.Node

	// From is the source expression of "inherit (from) name".
	From nixls.Expr

	// Nested is set when the name is the head of nested keys such as
	// "a.b.c = v;".
	Nested *NestedView

	Builtin *Builtin
}

// Doc returns the comments attached to the binding's member.
func (b *Binding) Doc() string {
	switch e := b.Entry.(type) {
	case *nixls.KeyValue:
		return e.Doc()
	case *nixls.Inherit:
		return e.Doc()
	default:
		return ""
	}
}

// NestedView is the members of a set whose keys start with Prefix, seen as a
// set of their own.
type NestedView struct {
	Entries []nixls.Entry
	Prefix  []string

	// Scope is the set or let holding the entries.
	Scope nixls.Node
}

// Scope maps names to bindings. A scope never holds two bindings for the
// same name.
type Scope struct {
	URI   uri.URI
	Names map[string]*Binding
}

// NewScope returns an empty scope for u.
func NewScope(u uri.URI) *Scope {
	return &Scope{URI: u, Names: make(map[string]*Binding)}
}

// Lookup returns the binding for name.
func (s *Scope) Lookup(name string) (*Binding, bool) {
	if s == nil {
		return nil, false
	}

	b, ok := s.Names[name]

	return b, ok
}

// Len returns the number of names.
func (s *Scope) Len() int {
	if s == nil {
		return 0
	}

	return len(s.Names)
}

// Sorted returns the bindings ordered by name.
func (s *Scope) Sorted() []*Binding {
	if s == nil {
		return nil
	}

	out := make([]*Binding, 0, len(s.Names))
	for _, b := range s.Names {
		out = append(out, b)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return out
}

// add inserts b unless its name is already bound.
func (s *Scope) add(b *Binding) bool {
	if _, ok := s.Names[b.Name]; ok {
		return false
	}

	s.Names[b.Name] = b

	return true
}

// Edit replaces the text covered by Span.
type Edit struct {
	Span    nixls.Span
	NewText string
}
