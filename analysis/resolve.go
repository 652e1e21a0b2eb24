package analysis

import (
	"context"

	"go.lsp.dev/uri"
	"go.uber.org/zap"

	"github.com/nixls/nixls"
	"github.com/nixls/nixls/module"
)

// maxDepth bounds the indirections a single resolution may follow through
// with namespaces and inherit sources.
const maxDepth = 64

// Resolver resolves dotted paths to scopes, following import expressions
// into other files.
type Resolver struct {
	registry *module.Registry
	builtins *Builtins
	logger   *zap.Logger
}

// NewResolver creates a resolver. builtins may be nil, in which case the
// "builtins" name is never substituted.
func NewResolver(registry *module.Registry, builtins *Builtins, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Resolver{registry: registry, builtins: builtins, logger: logger}
}

// ScopeAt is like the package-level ScopeAt, but "with" namespaces are also
// followed through identifiers and imports.
func (r *Resolver) ScopeAt(ctx context.Context, u uri.URI, enclosing []nixls.Node) *Scope {
	return r.scopeAt(ctx, u, enclosing, 0, 0)
}

// ResolveScope follows segments from scope and returns the scope reached.
// Every segment must name a binding whose value reduces to a set.
func (r *Resolver) ResolveScope(ctx context.Context, scope *Scope, segments []string) (*Scope, bool) {
	return r.resolve(ctx, scope, segments, 0)
}

// LookupPath returns the binding named by the last segment.
func (r *Resolver) LookupPath(ctx context.Context, scope *Scope, segments []string) (*Binding, bool) {
	if len(segments) == 0 {
		return nil, false
	}

	parent, ok := r.ResolveScope(ctx, scope, segments[:len(segments)-1])
	if !ok {
		return nil, false
	}

	return parent.Lookup(segments[len(segments)-1])
}

// Lookup returns the binding of the dotted path at offset in f.
func (r *Resolver) Lookup(ctx context.Context, f *module.File, offset int) (*Binding, DottedPath, bool) {
	enclosing := nixls.PathEnclosing(f.Tree, offset)

	path, ok := PathAt(enclosing, offset)
	if !ok {
		return nil, path, false
	}

	b, ok := r.LookupPath(ctx, r.ScopeAt(ctx, f.URI, enclosing), path.Segments)

	return b, path, ok
}

func (r *Resolver) scopeAt(ctx context.Context, u uri.URI, enclosing []nixls.Node, from, depth int) *Scope {
	return buildScope(u, enclosing, from, func(w *nixls.With, outer []nixls.Node) (*Scope, bool) {
		return r.reduce(ctx, u, w.Namespace, outer, depth+1)
	})
}

func (r *Resolver) resolve(ctx context.Context, scope *Scope, segments []string, depth int) (*Scope, bool) {
	for _, seg := range segments {
		b, ok := scope.Lookup(seg)
		if !ok {
			if seg == "builtins" && r.builtins != nil {
				scope = r.builtins.Scope(ctx)

				continue
			}

			return nil, false
		}

		if scope, ok = r.scopeOf(ctx, b, depth); !ok {
			return nil, false
		}
	}

	return scope, true
}

// scopeOf returns the members of the set b is bound to.
func (r *Resolver) scopeOf(ctx context.Context, b *Binding, depth int) (*Scope, bool) {
	if depth >= maxDepth {
		return nil, false
	}

	switch {
	case b.Nested != nil:
		return nestedScope(b.URI, b.Nested, KindAttribute), true
	case b.From != nil:
		src, ok := r.reduce(ctx, b.URI, b.From, r.outside(b), depth+1)
		if !ok {
			return nil, false
		}

		inner, ok := src.Lookup(b.Name)
		if !ok {
			return nil, false
		}

		return r.scopeOf(ctx, inner, depth+1)
	case b.Value != nil:
		return r.value(b.URI, b.Value)
	case plainInherit(b):
		return r.inherited(ctx, b, depth+1)
	default:
		return nil, false
	}
}

// reduce evaluates e, found around outer[0] in u, to a set. Besides what value
// accepts, e may name another binding visible at that point.
func (r *Resolver) reduce(ctx context.Context, u uri.URI, e nixls.Expr, outer []nixls.Node, depth int) (*Scope, bool) {
	if depth >= maxDepth {
		return nil, false
	}

	if segments, ok := staticPath(e); ok {
		return r.resolve(ctx, r.scopeAt(ctx, u, outer, 1, depth), segments, depth)
	}

	return r.value(u, e)
}

// value evaluates e in u: imports of path literals are followed into the
// files they name and a set literal yields its members.
func (r *Resolver) value(u uri.URI, e nixls.Expr) (*Scope, bool) {
	seen := map[uri.URI]bool{u: true}

	for {
		e = nixls.Unparen(e)

		arg, ok := nixls.IsImport(e)
		if !ok {
			break
		}

		lit, ok := nixls.Unparen(arg).(*nixls.PathLit)
		if !ok {
			return nil, false
		}

		target, err := module.ResolveImport(u, lit)
		if err != nil {
			r.logger.Debug("Import not followed", zap.String("uri", string(u)), zap.Error(err))

			return nil, false
		}

		if seen[target] {
			r.logger.Debug("Import cycle", zap.String("uri", string(target)))

			return nil, false
		}

		seen[target] = true

		f, err := r.registry.LoadFrom(target, u)
		if err != nil {
			r.logger.Debug("Import not loaded", zap.String("uri", string(u)), zap.Error(err))

			return nil, false
		}

		u, e = target, f.Tree.Expr
	}

	set, ok := e.(*nixls.AttrSet)
	if !ok {
		return nil, false
	}

	return setScope(u, set), true
}

// outside returns the ancestors of the member defining b, starting at the
// member. The source of "inherit (from)" sees the names of the construct
// holding it.
func (r *Resolver) outside(b *Binding) []nixls.Node {
	f, ok := r.registry.Get(b.URI)
	if !ok || b.Entry == nil {
		return nil
	}

	chain, _ := ancestors(f.Tree, b.Entry)

	return chain
}

// inherited returns the members of the set a plain "inherit name;" forwards:
// name as bound around the construct holding the inherit.
func (r *Resolver) inherited(ctx context.Context, b *Binding, depth int) (*Scope, bool) {
	f, ok := r.registry.Get(b.URI)
	if !ok {
		return nil, false
	}

	chain, ok := ancestors(f.Tree, b.Scope)
	if !ok {
		return nil, false
	}

	return r.resolve(ctx, r.scopeAt(ctx, b.URI, chain, 1, depth), []string{b.Name}, depth)
}

// staticPath returns the segments of an identifier or of a selection with
// static attribute names and no default.
func staticPath(e nixls.Expr) ([]string, bool) {
	switch e := nixls.Unparen(e).(type) {
	case *nixls.Ident:
		if e.Missing() {
			return nil, false
		}

		return []string{e.Name}, true
	case *nixls.Select:
		base, ok := nixls.Unparen(e.X).(*nixls.Ident)
		if !ok || base.Missing() || e.Default != nil {
			return nil, false
		}

		segments := []string{base.Name}

		for _, a := range e.Path.Attrs {
			name, ok := nixls.AttrName(a)
			if !ok {
				return nil, false
			}

			segments = append(segments, name)
		}

		return segments, true
	default:
		return nil, false
	}
}
