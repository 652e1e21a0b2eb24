package analysis

import (
	"go.lsp.dev/uri"

	"github.com/nixls/nixls"
)

// ScopeAt returns the names visible at the innermost node of enclosing, as
// returned by nixls.PathEnclosing. Only "with" expressions over a literal set
// contribute names; use a Resolver to also follow imports.
func ScopeAt(u uri.URI, enclosing []nixls.Node) *Scope {
	return buildScope(u, enclosing, 0, literalWith(u))
}

// literalWith reduces only with namespaces that are set literals.
func literalWith(u uri.URI) withReducer {
	return func(w *nixls.With, _ []nixls.Node) (*Scope, bool) {
		set, ok := nixls.Unparen(w.Namespace).(*nixls.AttrSet)
		if !ok {
			return nil, false
		}

		return setScope(u, set), true
	}
}

// withReducer reduces the namespace of w to a scope. outer is the ancestor
// chain starting at w, innermost first.
type withReducer func(w *nixls.With, outer []nixls.Node) (*Scope, bool)

// buildScope collects the names bound by enclosing[from:]. An outer chain,
// which starts at the node whose surroundings it describes, is built with
// from = 1.
func buildScope(u uri.URI, enclosing []nixls.Node, from int, reduce withReducer) *Scope {
	type pendingWith struct {
		with  *nixls.With
		outer []nixls.Node
	}

	s := NewScope(u)

	var withs []pendingWith

	for i := from; i < len(enclosing); i++ {
		n := enclosing[i]

		var child nixls.Node
		if i > 0 {
			child = enclosing[i-1]
		}

		switch n := n.(type) {
		case *nixls.Lambda:
			addLambda(s, u, n)
		case *nixls.LetIn:
			addEntries(s, u, n.Entries, nil, KindLet, n)
		case *nixls.AttrSet:
			if n.Rec {
				addEntries(s, u, n.Entries, nil, KindAttribute, n)
			}
		case *nixls.With:
			// The namespace itself is evaluated outside the with.
			if child != nil && child == n.Body {
				withs = append(withs, pendingWith{with: n, outer: enclosing[i:]})
			}
		}
	}

	// Lexical bindings always shadow with; inner withs shadow outer ones.
	for _, p := range withs {
		ns, ok := reduce(p.with, p.outer)
		if !ok {
			continue
		}

		for _, b := range ns.Names {
			wb := *b
			wb.Kind = KindWith
			wb.Scope = p.with
			s.add(&wb)
		}
	}

	return s
}

func addLambda(s *Scope, u uri.URI, l *nixls.Lambda) {
	param := func(id *nixls.Ident) {
		if id == nil || id.Missing() {
			return
		}

		s.add(&Binding{Name: id.Name, Kind: KindParameter, URI: u, Key: id, Scope: l})
	}

	param(l.Param)

	if l.Pattern == nil {
		return
	}

	for _, e := range l.Pattern.Entries {
		param(e.Name)
	}

	param(l.Pattern.Bind)
}

// setScope returns the direct members of a set literal.
func setScope(u uri.URI, set *nixls.AttrSet) *Scope {
	s := NewScope(u)
	addEntries(s, u, set.Entries, nil, KindAttribute, set)

	return s
}

// nestedScope returns the members of a nested view.
func nestedScope(u uri.URI, v *NestedView, kind BindingKind) *Scope {
	s := NewScope(u)
	addEntries(s, u, v.Entries, v.Prefix, kind, v.Scope)

	return s
}

// addEntries binds the members of entries whose keys start with prefix, by
// the key segment following the prefix.
func addEntries(s *Scope, u uri.URI, entries []nixls.Entry, prefix []string, kind BindingKind, owner nixls.Node) {
	for _, e := range entries {
		switch e := e.(type) {
		case *nixls.KeyValue:
			addKeyValue(s, u, e, entries, prefix, kind, owner)
		case *nixls.Inherit:
			if len(prefix) > 0 {
				continue
			}

			for _, n := range e.Names {
				name, ok := nixls.AttrName(n)
				if !ok {
					continue
				}

				s.add(&Binding{
					Name:  name,
					Kind:  kind,
					URI:   u,
					Key:   n,
					Entry: e,
					Scope: owner,
					From:  e.From,
				})
			}
		}
	}
}

func addKeyValue(
	s *Scope,
	u uri.URI,
	kv *nixls.KeyValue,
	entries []nixls.Entry,
	prefix []string,
	kind BindingKind,
	owner nixls.Node,
) {
	if kv.Key == nil || len(kv.Key.Attrs) <= len(prefix) {
		return
	}

	for i, p := range prefix {
		name, ok := nixls.AttrName(kv.Key.Attrs[i])
		if !ok || name != p {
			return
		}
	}

	key := kv.Key.Attrs[len(prefix)]

	name, ok := nixls.AttrName(key)
	if !ok {
		return
	}

	b := &Binding{
		Name:  name,
		Kind:  kind,
		URI:   u,
		Key:   key,
		Entry: kv,
		Scope: owner,
	}

	if len(kv.Key.Attrs) == len(prefix)+1 {
		b.Value = kv.Value
	} else {
		b.Nested = &NestedView{
			Entries: entries,
			Prefix:  append(append([]string(nil), prefix...), name),
			Scope:   owner,
		}
	}

	s.add(b)
}

// ancestors returns the chain from n up to root, innermost first.
func ancestors(root, n nixls.Node) ([]nixls.Node, bool) {
	if root == nil || n == nil {
		return nil, false
	}

	want := n.Span()

	var path []nixls.Node

	var find func(c nixls.Node) bool

	find = func(c nixls.Node) bool {
		if c == n {
			path = append(path, c)

			return true
		}

		if _, isFile := c.(*nixls.File); !isFile {
			if s := c.Span(); want.Start.Offset < s.Start.Offset || want.End.Offset > s.End.Offset {
				return false
			}
		}

		for _, k := range nixls.Children(c) {
			if find(k) {
				path = append(path, c)

				return true
			}
		}

		return false
	}

	if !find(root) {
		return nil, false
	}

	return path, true
}

// plainInherit reports whether b comes from "inherit name;", which reads the
// name from around the construct holding it.
func plainInherit(b *Binding) bool {
	inh, ok := b.Entry.(*nixls.Inherit)

	return ok && inh.From == nil && b.Scope != nil
}
