package analysis_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/nixls/nixls"
	"github.com/nixls/nixls/analysis"
	"github.com/nixls/nixls/module"
)

// workspace writes files under a temporary directory and returns it.
func workspace(t *testing.T, files map[string]string) string {
	t.Helper()

	dir := t.TempDir()

	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}

	return dir
}

var libFiles = map[string]string{
	"lib/default.nix": `{ strings = import ./strings.nix; lists = import ./lists.nix; }`,
	"lib/strings.nix": `{
  # Concatenate two strings.
  concat = a: b: a + b;
  trim = s: s;
}`,
	"lib/lists.nix": `(import ./base.nix)`,
	"lib/base.nix":  `{ length = builtins.length; }`,
	"self.nix":      `import ./self.nix`,
}

type resolveFixture struct {
	dir      string
	registry *module.Registry
	resolver *analysis.Resolver
}

func newResolveFixture(t *testing.T) *resolveFixture {
	t.Helper()

	logger := zaptest.NewLogger(t)
	registry := module.NewRegistry(logger)
	builtins := analysis.NewBuiltins(&fakeInterpreter{
		version: "nix (Nix) 2.18.1",
		dump:    `{"map": {"args": ["f", "list"], "doc": "Apply f."}, "length": {"args": ["e"], "doc": ""}}`,
	}, nixls.InterpreterConfig{}, logger)

	return &resolveFixture{
		dir:      workspace(t, libFiles),
		registry: registry,
		resolver: analysis.NewResolver(registry, builtins, logger),
	}
}

// open places src, with a "|" cursor marker, as main.nix in the workspace.
func (fx *resolveFixture) open(t *testing.T, src string) (*module.File, int) {
	t.Helper()

	text, offset := cursor(t, src)

	return fx.registry.Open(module.PathToURI(filepath.Join(fx.dir, "main.nix")), text, 1), offset
}

func (fx *resolveFixture) uri(name string) string {
	return string(module.PathToURI(filepath.Join(fx.dir, name)))
}

func TestResolver_Lookup(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string // name of the resolved binding
		kind  analysis.BindingKind
		file  string // defining file relative to the workspace, "" for builtins
	}{
		{"import chain", `let lib = import ./lib; in lib.strings.con|cat`, "concat", analysis.KindAttribute, "lib/strings.nix"},
		{"parenthesized import", `let lib = import ./lib; in lib.lists.len|gth`, "length", analysis.KindAttribute, "lib/base.nix"},
		{"local", `let a = { b = 1; }; in a.b|`, "b", analysis.KindAttribute, "main.nix"},
		{"nested keys", `let a.b.c = 1; a.b.d = 2; in a.b.d|`, "d", analysis.KindAttribute, "main.nix"},
		{"builtins", `builtins.ma|p`, "map", analysis.KindBuiltin, ""},
		{"shadowed builtins", `let builtins = { map = 1; }; in builtins.map|`, "map", analysis.KindAttribute, "main.nix"},
		{"with import", `with import ./lib; strings.tr|im`, "trim", analysis.KindAttribute, "lib/strings.nix"},
		{"with binding", `let lib = import ./lib; in with lib; strings|`, "strings", analysis.KindWith, "lib/default.nix"},
		{"inherit from", `let lib = import ./lib; inherit (lib) strings; in strings.trim|`, "trim", analysis.KindAttribute, "lib/strings.nix"},
		{"plain inherit in rec set", `let lib = import ./lib; in rec { inherit lib; x = lib.strings.con|cat; }`, "concat", analysis.KindAttribute, "lib/strings.nix"},
		{"plain inherit in set", `let lib = import ./lib; s = { inherit lib; }; in s.lib.strings.tr|im`, "trim", analysis.KindAttribute, "lib/strings.nix"},
		{"inherited builtins", `let inherit builtins; in builtins.ma|p`, "map", analysis.KindBuiltin, ""},
		{"nested with", `with { a = { b = 1; }; }; with a; b|`, "b", analysis.KindWith, "main.nix"},
		{"bare", `x: x|`, "x", analysis.KindParameter, "main.nix"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fx := newResolveFixture(t)
			f, offset := fx.open(t, tt.input)

			b, _, ok := fx.resolver.Lookup(context.Background(), f, offset)
			require.True(t, ok, "no binding for %q", tt.input)

			assert.Equal(t, tt.want, b.Name)
			assert.Equal(t, tt.kind, b.Kind)

			if tt.file == "" {
				assert.Empty(t, b.URI)
			} else {
				assert.Equal(t, fx.uri(tt.file), string(b.URI))
			}
		})
	}
}

func TestResolver_Unresolved(t *testing.T) {
	t.Parallel()

	for _, input := range []string{
		`nope.x|`,
		`let a = f 1; in a.b|`,
		`x: x.y|`,
		`let a = { }; in a.b|`,
		`let s = import ./self.nix; in s.x|`,
		`let m = import ./missing.nix; in m.x|`,
		`let p = import <nixpkgs>; in p.x|`,
		`let a = b; b = { c = 1; }; in a.c|`,
	} {
		fx := newResolveFixture(t)
		f, offset := fx.open(t, input)

		b, _, ok := fx.resolver.Lookup(context.Background(), f, offset)
		assert.False(t, ok, "%q resolved to %+v", input, b)
	}
}

func TestResolver_ResolveScope(t *testing.T) {
	t.Parallel()

	fx := newResolveFixture(t)
	f, offset := fx.open(t, `let lib = import ./lib; in lib|`)

	scope := fx.resolver.ScopeAt(context.Background(), f.URI, nixls.PathEnclosing(f.Tree, offset))

	got, ok := fx.resolver.ResolveScope(context.Background(), scope, []string{"lib", "strings"})
	require.True(t, ok)
	assert.Equal(t, []string{"concat", "trim"}, scopeNames(got))
	assert.Equal(t, fx.uri("lib/strings.nix"), string(got.URI))
	assert.Equal(t, "Concatenate two strings.", got.Names["concat"].Doc())

	bi, ok := fx.resolver.ResolveScope(context.Background(), scope, []string{"builtins"})
	require.True(t, ok)
	assert.Equal(t, []string{"length", "map"}, scopeNames(bi))

	_, ok = fx.resolver.ResolveScope(context.Background(), scope, []string{"lib", "nope"})
	assert.False(t, ok)

	// Resolution loads imported files into the registry.
	_, ok = fx.registry.Get(module.PathToURI(filepath.Join(fx.dir, "lib", "strings.nix")))
	assert.True(t, ok)
	_, ok = fx.registry.Get(module.PathToURI(filepath.Join(fx.dir, "lib", "base.nix")))
	assert.False(t, ok)
}

func TestResolver_DoesNotReplaceOpenFiles(t *testing.T) {
	t.Parallel()

	fx := newResolveFixture(t)

	// The editor's copy wins over the one on disk.
	stringsURI := module.PathToURI(filepath.Join(fx.dir, "lib", "strings.nix"))
	edited := fx.registry.Open(stringsURI, `{ edited = 1; }`, 7)

	f, offset := fx.open(t, `let lib = import ./lib; in lib.strings.edi|ted`)

	b, _, ok := fx.resolver.Lookup(context.Background(), f, offset)
	require.True(t, ok)
	assert.Equal(t, "edited", b.Name)

	current, ok := fx.registry.Get(stringsURI)
	require.True(t, ok)
	assert.Same(t, edited, current)
}
