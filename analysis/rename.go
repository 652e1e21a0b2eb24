package analysis

import (
	"slices"
	"sort"

	"github.com/nixls/nixls"
	"github.com/nixls/nixls/module"
)

// Rename returns the edits renaming the binding at offset to newName. Only
// f is searched and imports are not followed.
func Rename(f *module.File, offset int, newName string) ([]Edit, bool) {
	_, spans, ok := Occurrences(f, offset)
	if !ok {
		return nil, false
	}

	edits := make([]Edit, len(spans))
	for i, s := range spans {
		edits[i] = Edit{Span: s, NewText: newName}
	}

	return edits, true
}

// Occurrences returns the binding of the identifier at offset together with
// the span of its definition and of every reference to it, in source order.
// Selections are only matched on their base: "b" in "a.b" is an attribute,
// not a reference. A plain "inherit name;" forwards the outer binding, so it
// and the references it captures count as occurrences of that binding.
func Occurrences(f *module.File, offset int) (*Binding, []nixls.Span, bool) {
	enclosing := nixls.PathEnclosing(f.Tree, offset)

	path, ok := PathAt(enclosing, offset)
	if !ok || len(path.Segments) != 1 {
		return nil, nil, false
	}

	b, ok := ScopeAt(f.URI, enclosing).Lookup(path.Segments[0])
	if !ok {
		return nil, nil, false
	}

	heads := nestedHeads(b)

	// A key or an inherited attribute only names the binding it defines.
	if definesName(path, enclosing) && !slices.Contains(heads, nixls.Node(path.Idents[0])) {
		return nil, nil, false
	}

	for plainInherit(b) {
		chain, ok := ancestors(f.Tree, b.Scope)
		if !ok {
			return nil, nil, false
		}

		if b, ok = buildScope(f.URI, chain, 1, literalWith(f.URI)).Lookup(b.Name); !ok {
			return nil, nil, false
		}
	}

	if b.Kind == KindBuiltin || b.URI != f.URI || b.Scope == nil {
		return nil, nil, false
	}

	o := &occurrences{name: b.Name, root: b.Scope}
	for _, k := range nestedHeads(b) {
		o.define(k.Span())
	}

	o.visit(b.Scope)

	return b, o.sorted(), true
}

// nestedHeads returns the keys defining b. Every key of "a.b = 1; a.c = 2;"
// defines the same binding a.
func nestedHeads(b *Binding) []nixls.Node {
	if b.Key == nil {
		return nil
	}

	heads := []nixls.Node{b.Key}

	if b.Nested == nil || len(b.Nested.Prefix) != 1 {
		return heads
	}

	for _, e := range b.Nested.Entries {
		kv, ok := e.(*nixls.KeyValue)
		if !ok || kv.Key == nil || len(kv.Key.Attrs) < 2 || kv.Key.Attrs[0] == b.Key {
			continue
		}

		if name, ok := nixls.AttrName(kv.Key.Attrs[0]); ok && name == b.Name {
			heads = append(heads, kv.Key.Attrs[0])
		}
	}

	return heads
}

func definesName(path DottedPath, enclosing []nixls.Node) bool {
	if path.Shape == ShapeKey {
		return true
	}

	inh, ok := at(enclosing, 1).(*nixls.Inherit)

	return ok && inh.From != nil
}

// occurrences collects the references to name below root. Definitions are
// kept apart so that a binding without references can be told.
type occurrences struct {
	name  string
	root  nixls.Node
	defs  []nixls.Span
	spans []nixls.Span
}

func (o *occurrences) add(s nixls.Span) {
	o.spans = append(o.spans, s)
}

func (o *occurrences) define(s nixls.Span) {
	o.defs = append(o.defs, s)
}

func (o *occurrences) visit(n nixls.Node) {
	switch n := n.(type) {
	case nil:
	case *nixls.Ident:
		if n.Name == o.name {
			o.add(n.Span())
		}
	case *nixls.Select:
		o.visit(n.X)
		o.attrs(n.Path)
		o.visit(n.Default)
	case *nixls.HasAttr:
		o.visit(n.X)
		o.attrs(n.Path)
	case *nixls.KeyValue:
		o.attrs(n.Key)
		o.visit(n.Value)
	case *nixls.Inherit:
		if n.From != nil {
			o.visit(n.From)

			return
		}

		for _, name := range n.Names {
			if id, ok := name.(*nixls.Ident); ok && id.Name == o.name {
				o.add(id.Span())
			}
		}
	case *nixls.AttrSet:
		if o.root != nixls.Node(n) && n.Rec && entriesBind(n.Entries, o.name) {
			return
		}

		for _, e := range n.Entries {
			o.visit(e)
		}
	case *nixls.LetIn:
		if o.root != nixls.Node(n) && entriesBind(n.Entries, o.name) {
			return
		}

		for _, e := range n.Entries {
			o.visit(e)
		}

		o.visit(n.Body)
	case *nixls.Lambda:
		if o.root != nixls.Node(n) && lambdaBinds(n, o.name) {
			return
		}

		if n.Pattern != nil {
			for _, e := range n.Pattern.Entries {
				o.visit(e.Default)
			}
		}

		o.visit(n.Body)
	default:
		for _, c := range nixls.Children(n) {
			o.visit(c)
		}
	}
}

// attrs visits the expressions inside dynamic attribute names.
func (o *occurrences) attrs(p *nixls.AttrPath) {
	if p == nil {
		return
	}

	for _, a := range p.Attrs {
		if _, ok := a.(*nixls.Ident); !ok {
			o.visit(a)
		}
	}
}

func (o *occurrences) sorted() []nixls.Span {
	all := append(append([]nixls.Span(nil), o.defs...), o.spans...)
	sort.Slice(all, func(i, j int) bool {
		return all[i].Start.Offset < all[j].Start.Offset
	})

	out := all[:0]

	for _, s := range all {
		if len(out) > 0 && out[len(out)-1].Start.Offset == s.Start.Offset {
			continue
		}

		out = append(out, s)
	}

	return out
}

// entriesBind reports whether entries bind name anew. A plain inherit does
// not: it forwards the name bound outside.
func entriesBind(entries []nixls.Entry, name string) bool {
	for _, e := range entries {
		switch e := e.(type) {
		case *nixls.KeyValue:
			if e.Key != nil && len(e.Key.Attrs) > 0 {
				if n, ok := nixls.AttrName(e.Key.Attrs[0]); ok && n == name {
					return true
				}
			}
		case *nixls.Inherit:
			if e.From == nil {
				continue
			}

			for _, a := range e.Names {
				if n, ok := nixls.AttrName(a); ok && n == name {
					return true
				}
			}
		}
	}

	return false
}

func lambdaBinds(l *nixls.Lambda, name string) bool {
	binds := func(id *nixls.Ident) bool {
		return id != nil && id.Name == name
	}

	if binds(l.Param) {
		return true
	}

	if l.Pattern == nil {
		return false
	}

	for _, e := range l.Pattern.Entries {
		if binds(e.Name) {
			return true
		}
	}

	return binds(l.Pattern.Bind)
}
