package analysis_test

import (
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/uri"

	"github.com/nixls/nixls"
	"github.com/nixls/nixls/analysis"
	"github.com/nixls/nixls/module"
)

var mainURI = uri.File("/w/main.nix")

// cursor removes the "|" marker from src and returns its offset.
func cursor(t *testing.T, src string) (string, int) {
	t.Helper()

	i := strings.Index(src, "|")
	require.GreaterOrEqual(t, i, 0, "missing cursor marker in %q", src)

	return src[:i] + src[i+1:], i
}

func openAt(t *testing.T, src string) (*module.File, int) {
	t.Helper()

	text, offset := cursor(t, src)

	return module.NewFile(mainURI, text, 1), offset
}

func spanText(f *module.File, s nixls.Span) string {
	return f.Text[s.Start.Offset:s.End.Offset]
}

func scopeNames(s *analysis.Scope) []string {
	names := make([]string, 0, s.Len())
	for name := range s.Names {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

func TestScopeAt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"let", `let a = 1; b = 2; in a|`, []string{"a", "b"}},
		{"lambda", `x: y: x|`, []string{"x", "y"}},
		{"pattern", `{ x, y ? 1, ... }@args: x|`, []string{"args", "x", "y"}},
		{"pattern default", `{ x, y ? x| }: y`, []string{"x", "y"}},
		{"rec set", `rec { a = 1; b = a|; }`, []string{"a", "b"}},
		{"plain set", `{ a = 1; b = a|; }`, []string{}},
		{"inherit and nested keys", `let inherit (lib) map; c.d = 1; in c|`, []string{"c", "map"}},
		{"with literal", `with { w = 1; }; w|`, []string{"w"}},
		{"with namespace", `with { a = 1; b = a|; }; a`, []string{}},
		{"with non literal", `with pkgs; hello|`, []string{}},
		{"outside body", `(let a = 1; in a) + b|`, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f, offset := openAt(t, tt.input)
			scope := analysis.ScopeAt(f.URI, nixls.PathEnclosing(f.Tree, offset))

			assert.Equal(t, tt.want, scopeNames(scope))
			assert.Equal(t, mainURI, scope.URI)
		})
	}
}

func TestScopeAt_Shadowing(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		binding string
		kind    analysis.BindingKind
		keyAt   string // source text following the defining key
	}{
		{"parameter over let", `let a = 1; in a: a|`, "a", analysis.KindParameter, "a: a"},
		{"rec over let", `let a = 1; in rec { a = 2; b = a|; }`, "a", analysis.KindAttribute, "a = 2"},
		{"let over with", `let w = 2; in with { w = 1; v = 3; }; w|`, "w", analysis.KindLet, "w = 2"},
		{"with fills gaps", `let w = 2; in with { w = 1; v = 3; }; v|`, "v", analysis.KindWith, "v = 3"},
		{"inner with", `with { a = 1; }; with { a = 2; }; a|`, "a", analysis.KindWith, "a = 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f, offset := openAt(t, tt.input)
			scope := analysis.ScopeAt(f.URI, nixls.PathEnclosing(f.Tree, offset))

			b, ok := scope.Lookup(tt.binding)
			require.True(t, ok)
			assert.Equal(t, tt.kind, b.Kind)
			assert.True(t, strings.HasPrefix(f.Text[b.Key.Span().Start.Offset:], tt.keyAt),
				"key at %q", f.Text[b.Key.Span().Start.Offset:])
		})
	}
}

func TestScopeAt_Bindings(t *testing.T) {
	t.Parallel()

	f, offset := openAt(t, `let
  # The answer.
  a = 42;
  b.c = 1;
  inherit (lib) d;
  inherit e;
in a|`)

	scope := analysis.ScopeAt(f.URI, nixls.PathEnclosing(f.Tree, offset))
	require.Equal(t, []string{"a", "b", "d", "e"}, scopeNames(scope))

	a := scope.Names["a"]
	assert.Equal(t, analysis.KindLet, a.Kind)
	assert.Equal(t, "42", spanText(f, a.Value.Span()))
	assert.Equal(t, "The answer.", a.Doc())
	assert.IsType(t, &nixls.LetIn{}, a.Scope)

	b := scope.Names["b"]
	assert.Nil(t, b.Value)
	require.NotNil(t, b.Nested)
	assert.Equal(t, []string{"b"}, b.Nested.Prefix)

	d := scope.Names["d"]
	assert.Nil(t, d.Value)
	require.NotNil(t, d.From)
	assert.Equal(t, "lib", spanText(f, d.From.Span()))

	e := scope.Names["e"]
	assert.Nil(t, e.Value)
	assert.Nil(t, e.From)
}

func TestScopeAt_FreshMap(t *testing.T) {
	t.Parallel()

	f, offset := openAt(t, `let a = 1; in a|`)
	enclosing := nixls.PathEnclosing(f.Tree, offset)

	first := analysis.ScopeAt(f.URI, enclosing)
	delete(first.Names, "a")

	second := analysis.ScopeAt(f.URI, enclosing)
	_, ok := second.Lookup("a")
	assert.True(t, ok)
}

func TestScope_Sorted(t *testing.T) {
	t.Parallel()

	f, offset := openAt(t, `{ c, a, b }: a|`)
	scope := analysis.ScopeAt(f.URI, nixls.PathEnclosing(f.Tree, offset))

	var got []string
	for _, b := range scope.Sorted() {
		got = append(got, b.Name)
	}

	assert.Equal(t, []string{"a", "b", "c"}, got)

	var nilScope *analysis.Scope
	_, ok := nilScope.Lookup("a")
	assert.False(t, ok)
	assert.Zero(t, nilScope.Len())
}
