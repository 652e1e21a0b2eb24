package analysis

import (
	"context"
	"strings"

	"github.com/nixls/nixls"
	"github.com/nixls/nixls/docs"
	"github.com/nixls/nixls/module"
)

// Completion is one completion candidate. Exactly one of Binding and
// Namespace is set.
type Completion struct {
	Label     string
	Binding   *Binding
	Namespace *NamespaceResult

	// Edit replaces the typed text with Label.
	Edit Edit
}

// Complete returns the candidates for the cursor at offset in f: the members
// of the scope the path's prefix resolves to, filtered by the segment being
// typed, followed by documented names. Labels are unique; scope members win.
func (r *Resolver) Complete(ctx context.Context, f *module.File, offset int, index docs.Searcher) []Completion {
	enclosing := nixls.PathEnclosing(f.Tree, offset)
	if len(enclosing) == 0 {
		return nil
	}

	scope := r.ScopeAt(ctx, f.URI, enclosing)

	path, ok := PathAt(enclosing, offset)
	if !ok {
		// Nothing typed yet: offer every visible name.
		return r.members(ctx, scope, "", nixls.Span{}, false, true)
	}

	parent, prefix := path.Segments, ""
	typed := nixls.Span{Start: path.Span.End, End: path.Span.End}

	if last := path.Idents[len(path.Idents)-1]; last.EndPos.Offset >= path.Span.End.Offset {
		parent, prefix = path.Segments[:len(path.Segments)-1], last.Name
		typed = last.Span()
	}

	var out []Completion

	if path.Shape != ShapeKey {
		if s, ok := r.ResolveScope(ctx, scope, parent); ok {
			out = r.members(ctx, s, prefix, typed, true, len(parent) == 0)
		}
	}

	seen := make(map[string]bool, len(out))
	for _, c := range out {
		seen[c.Label] = true
	}

	for _, res := range CompleteNamespace(index, path) {
		if seen[res.Name] {
			continue
		}

		seen[res.Name] = true
		out = append(out, Completion{Label: res.Name, Namespace: &res, Edit: res.Edit})
	}

	return out
}

// members lists the bindings of s starting with prefix. top adds the
// builtins namespace when nothing in s shadows it.
func (r *Resolver) members(ctx context.Context, s *Scope, prefix string, typed nixls.Span, edit, top bool) []Completion {
	var out []Completion

	for _, b := range s.Sorted() {
		if !strings.HasPrefix(b.Name, prefix) {
			continue
		}

		c := Completion{Label: b.Name, Binding: b}
		if edit {
			c.Edit = Edit{Span: typed, NewText: b.Name}
		}

		out = append(out, c)
	}

	if _, shadowed := s.Lookup("builtins"); top && !shadowed && r.builtins != nil && strings.HasPrefix("builtins", prefix) {
		c := Completion{Label: "builtins", Binding: &Binding{Name: "builtins", Kind: KindBuiltin}}
		if edit {
			c.Edit = Edit{Span: typed, NewText: "builtins"}
		}

		out = append(out, c)
	}

	return out
}
