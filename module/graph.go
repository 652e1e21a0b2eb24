package module

import (
	"go.lsp.dev/uri"
	"go.uber.org/multierr"

	"github.com/nixls/nixls"
)

// Import is one "import <path>" expression with a path-literal argument.
type Import struct {
	// Path is the literal as written.
	Path *nixls.PathLit

	// Target is the resolved file, empty when the path is unsupported.
	Target uri.URI
}

// Imports lists the import expressions of f in source order.
func Imports(f *File) []Import {
	var out []Import

	nixls.Inspect(f.Tree, func(n nixls.Node) bool {
		app, ok := n.(*nixls.Apply)
		if !ok {
			return true
		}

		arg, ok := nixls.IsImport(app)
		if !ok {
			return true
		}

		lit, ok := nixls.Unparen(arg).(*nixls.PathLit)
		if !ok {
			return true
		}

		imp := Import{Path: lit}
		if target, err := ResolveImport(f.URI, lit); err == nil {
			imp.Target = target
		}

		out = append(out, imp)

		return true
	})

	return out
}

// Graph is the transitive import closure of a root file.
type Graph struct {
	Root uri.URI

	// Order lists reachable files in depth-first preorder, root first.
	Order []uri.URI

	// Edges maps each file to the imports it contains.
	Edges map[uri.URI][]Import

	// Cycles lists every import cycle found.
	Cycles []*CycleError
}

// Graph walks the imports reachable from root, loading files through the
// registry. The graph is returned even when some imports fail; the error
// combines every load failure and cycle encountered.
func (r *Registry) Graph(root uri.URI) (*Graph, error) {
	rootFile, err := r.Load(root)
	if err != nil {
		return nil, err
	}

	g := &Graph{
		Root:  root,
		Edges: make(map[uri.URI][]Import),
	}

	// visiting = currently in the DFS stack (gray nodes)
	// visited = fully processed (black nodes)
	visiting := make(map[uri.URI]bool)
	visited := make(map[uri.URI]bool)

	var errs error

	var walk func(f *File, stack []uri.URI)

	walk = func(f *File, stack []uri.URI) {
		visiting[f.URI] = true
		g.Order = append(g.Order, f.URI)

		imports := Imports(f)
		g.Edges[f.URI] = imports

		for _, imp := range imports {
			if imp.Target == "" {
				continue
			}

			if visiting[imp.Target] {
				cycle := &CycleError{Path: append(append([]uri.URI(nil), stack...), imp.Target)}
				g.Cycles = append(g.Cycles, cycle)
				errs = multierr.Append(errs, cycle)

				continue
			}

			if visited[imp.Target] {
				continue
			}

			next, err := r.LoadFrom(imp.Target, f.URI)
			if err != nil {
				errs = multierr.Append(errs, err)
				visited[imp.Target] = true

				continue
			}

			walk(next, append(stack, imp.Target))
		}

		visiting[f.URI] = false
		visited[f.URI] = true
	}

	walk(rootFile, []uri.URI{root})

	return g, errs
}
