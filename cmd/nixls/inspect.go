package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/urfave/cli/v3"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
	"go.uber.org/multierr"

	"github.com/nixls/nixls"
	"github.com/nixls/nixls/analysis"
	"github.com/nixls/nixls/lsp"
	"github.com/nixls/nixls/module"
)

// Argument errors.
var (
	ErrBadLocation = errors.New("nixls: expected FILE:LINE:COL with 1-based line and column")
	ErrNoFile      = errors.New("nixls: expected a file argument")
)

func scopeCommand() *cli.Command {
	return &cli.Command{
		Name:      "scope",
		Usage:     "List the names visible at a position",
		ArgsUsage: "FILE:LINE:COL",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			e, f, offset, err := openLocation(ctx, cmd)
			if err != nil {
				return err
			}

			scope := e.resolver.ScopeAt(ctx, f.URI, nixls.PathEnclosing(f.Tree, offset))
			printScope(cmd.Root().Writer, e, scope)

			return nil
		},
	}
}

func completeCommand() *cli.Command {
	return &cli.Command{
		Name:      "complete",
		Usage:     "List the completions offered at a position",
		ArgsUsage: "FILE:LINE:COL",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			e, f, offset, err := openLocation(ctx, cmd)
			if err != nil {
				return err
			}

			printCompletions(cmd.Root().Writer, e.resolver.Complete(ctx, f, offset, e.docs))

			return nil
		},
	}
}

func importsCommand() *cli.Command {
	return &cli.Command{
		Name:      "imports",
		Usage:     "Show the import graph of a file",
		ArgsUsage: "FILE",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() != 1 {
				return ErrNoFile
			}

			e, err := newEnv(ctx, cmd)
			if err != nil {
				return err
			}

			root, err := fileURI(cmd.Args().First())
			if err != nil {
				return err
			}

			g, err := e.registry.Graph(root)
			if g == nil {
				return err
			}

			printGraph(cmd.Root().Writer, e.registry, g, err)

			return nil
		},
	}
}

func builtinsCommand() *cli.Command {
	return &cli.Command{
		Name:  "builtins",
		Usage: "List the builtins known to the server",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			e, err := newEnv(ctx, cmd)
			if err != nil {
				return err
			}

			printBuiltins(cmd.Root().Writer, e.builtins.Rich(ctx), e.builtins.Table(ctx))

			return nil
		},
	}
}

// openLocation loads the file named by the FILE:LINE:COL argument.
func openLocation(ctx context.Context, cmd *cli.Command) (*env, *module.File, int, error) {
	if cmd.NArg() != 1 {
		return nil, nil, 0, ErrBadLocation
	}

	path, pos, err := parseLocation(cmd.Args().First())
	if err != nil {
		return nil, nil, 0, err
	}

	e, err := newEnv(ctx, cmd)
	if err != nil {
		return nil, nil, 0, err
	}

	u, err := fileURI(path)
	if err != nil {
		return nil, nil, 0, err
	}

	f, err := e.registry.Load(u)
	if err != nil {
		return nil, nil, 0, err
	}

	return e, f, lsp.NewMapper(f.Text).Offset(pos), nil
}

// parseLocation splits "FILE:LINE:COL" into the file and an LSP position.
// The column counts characters.
func parseLocation(arg string) (string, protocol.Position, error) {
	rest, colText, ok := cut(arg)
	if !ok {
		return "", protocol.Position{}, fmt.Errorf("%w: %q", ErrBadLocation, arg)
	}

	path, lineText, ok := cut(rest)
	if !ok || path == "" {
		return "", protocol.Position{}, fmt.Errorf("%w: %q", ErrBadLocation, arg)
	}

	line, err := strconv.ParseUint(lineText, 10, 32)
	if err != nil || line == 0 {
		return "", protocol.Position{}, fmt.Errorf("%w: line %q", ErrBadLocation, lineText)
	}

	col, err := strconv.ParseUint(colText, 10, 32)
	if err != nil || col == 0 {
		return "", protocol.Position{}, fmt.Errorf("%w: column %q", ErrBadLocation, colText)
	}

	return path, protocol.Position{Line: uint32(line - 1), Character: uint32(col - 1)}, nil //nolint:gosec // parsed as 32-bit
}

func cut(s string) (string, string, bool) {
	i := strings.LastIndexByte(s, ':')
	if i < 0 {
		return "", "", false
	}

	return s[:i], s[i+1:], true
}

func fileURI(path string) (uri.URI, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	return module.PathToURI(abs), nil
}

// display shows u relative to the working directory when it lies below it.
func display(u uri.URI) string {
	if u == "" {
		return ""
	}

	path := module.URIToPath(u)

	wd, err := os.Getwd()
	if err != nil {
		return path
	}

	rel, err := filepath.Rel(wd, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}

	return rel
}

func printScope(w io.Writer, e *env, scope *analysis.Scope) {
	st := stylesFor(w)
	bindings := scope.Sorted()

	width := 0
	for _, b := range bindings {
		width = max(width, len(b.Name))
	}

	for _, b := range bindings {
		fmt.Fprintf(w, "%s  %s  %s\n",
			st.Name.Width(width).Render(b.Name),
			st.Kind.Width(len("parameter")).Render(b.Kind.String()),
			st.Path.Render(definedAt(e.registry, b)))
	}

	if len(bindings) == 0 {
		fmt.Fprintln(w, st.Dim.Render("no names in scope"))
	}
}

// definedAt renders the 1-based location of b's key.
func definedAt(registry *module.Registry, b *analysis.Binding) string {
	if b.Key == nil || b.URI == "" {
		return ""
	}

	f, ok := registry.Get(b.URI)
	if !ok {
		return display(b.URI)
	}

	pos := lsp.NewMapper(f.Text).Position(b.Key.Span().Start.Offset)

	return fmt.Sprintf("%s:%d:%d", display(b.URI), pos.Line+1, pos.Character+1)
}

func printCompletions(w io.Writer, completions []analysis.Completion) {
	st := stylesFor(w)

	width := 0
	for _, c := range completions {
		width = max(width, len(c.Label))
	}

	for _, c := range completions {
		var kind, detail string

		switch {
		case c.Binding != nil:
			kind = c.Binding.Kind.String()
			if c.Binding.Builtin != nil {
				detail = c.Binding.Builtin.Detail()
			}
		case c.Namespace != nil:
			kind = c.Namespace.Kind.String()
			if c.Namespace.Entry != nil {
				detail = c.Namespace.Entry.Source
				if sig := c.Namespace.Entry.Signature(); sig != "" {
					detail = sig
				}
			}
		}

		fmt.Fprintf(w, "%s  %s  %s\n",
			st.Name.Width(width).Render(c.Label),
			st.Kind.Width(len("parameter")).Render(kind),
			st.Dim.Render(detail))
	}

	if len(completions) == 0 {
		fmt.Fprintln(w, st.Dim.Render("no completions"))
	}
}

func printGraph(w io.Writer, registry *module.Registry, g *module.Graph, err error) {
	st := stylesFor(w)
	printed := make(map[uri.URI]bool)

	var walk func(u uri.URI, indent string)

	walk = func(u uri.URI, indent string) {
		printed[u] = true

		f, _ := registry.Get(u)
		imports := g.Edges[u]

		for i, imp := range imports {
			branch, next := st.TreeMiddle, indent+"│  "
			if i == len(imports)-1 {
				branch, next = st.TreeEnd, indent+"   "
			}

			text := imp.Path.Value
			if f != nil {
				span := imp.Path.Span()
				text = f.Text[span.Start.Offset:span.End.Offset]
			}

			_, loaded := g.Edges[imp.Target]

			var target string

			switch {
			case imp.Target == "":
				target = st.Dim.Render("(not a local file)")
			case !loaded:
				target = st.Error.Render("missing " + display(imp.Target))
			case printed[imp.Target]:
				target = st.Dim.Render(display(imp.Target) + " (see above)")
			default:
				target = st.Path.Render(display(imp.Target))
			}

			fmt.Fprintf(w, "%s%s %s → %s\n", st.Dim.Render(indent), st.Dim.Render(branch), text, target)

			if loaded && !printed[imp.Target] {
				walk(imp.Target, next)
			}
		}
	}

	fmt.Fprintln(w, st.Name.Render(display(g.Root)))
	walk(g.Root, "")

	for _, cycle := range g.Cycles {
		parts := make([]string, len(cycle.Path))
		for i, u := range cycle.Path {
			parts[i] = display(u)
		}

		fmt.Fprintf(w, "%s %s\n", st.Warn.Render("cycle:"), strings.Join(parts, " → "))
	}

	for _, e := range multierr.Errors(err) {
		var cycle *module.CycleError
		if errors.As(e, &cycle) {
			continue
		}

		fmt.Fprintf(w, "%s %v\n", st.Error.Render("error:"), e)
	}
}

func printBuiltins(w io.Writer, rich bool, table map[string]*analysis.Builtin) {
	st := stylesFor(w)

	names := make([]string, 0, len(table))
	width := 0

	for name := range table {
		names = append(names, name)
		width = max(width, len(name))
	}

	slices.Sort(names)

	for _, name := range names {
		b := table[name]

		detail := st.Dim.Render(b.Detail())
		if b.Deprecated {
			detail += " " + st.Warn.Render("deprecated")
		}

		fmt.Fprintf(w, "%s  %s\n", st.Name.Width(width).Render(name), detail)
	}

	source := "interpreter"
	if !rich {
		source = "fallback list, interpreter unavailable"
	}

	fmt.Fprintln(w, st.Dim.Render(fmt.Sprintf("%d builtins (%s)", len(names), source)))
}
