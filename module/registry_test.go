package module_test

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nixls/nixls"
	"github.com/nixls/nixls/module"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestRegistry_OpenReplaces(t *testing.T) {
	t.Parallel()

	reg := module.NewRegistry(zap.NewNop())
	u := module.PathToURI("/work/a.nix")

	first := reg.Open(u, "{ a = 1; }", 1)
	second := reg.Open(u, "{ b = 2; }", 2)

	got, ok := reg.Get(u)
	require.True(t, ok)
	assert.Same(t, second, got)
	assert.NotSame(t, first, got)
	assert.Equal(t, int32(2), got.Version)
	assert.Equal(t, "/work/a.nix", got.Path)

	// The replaced entry is untouched.
	assert.Equal(t, "{ a = 1; }", first.Text)
}

func TestRegistry_LoadReadsThrough(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "lib.nix")
	writeFile(t, path, "{ x = 1; }")

	reg := module.NewRegistry(zap.NewNop())

	reads := 0
	reg.ReadFile = func(p string) ([]byte, error) {
		reads++

		return os.ReadFile(p)
	}

	u := module.PathToURI(path)

	f1, err := reg.Load(u)
	require.NoError(t, err)

	f2, err := reg.Load(u)
	require.NoError(t, err)

	assert.Same(t, f1, f2)
	assert.Equal(t, 1, reads)
	assert.Empty(t, f1.Errors)
	assert.IsType(t, &nixls.AttrSet{}, f1.Tree.Expr)
}

func TestRegistry_LoadDoesNotOverrideOpen(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "open.nix")
	writeFile(t, path, "{ disk = 1; }")

	reg := module.NewRegistry(zap.NewNop())
	u := module.PathToURI(path)
	opened := reg.Open(u, "{ editor = 1; }", 3)

	loaded, err := reg.Load(u)
	require.NoError(t, err)
	assert.Same(t, opened, loaded)
}

func TestRegistry_LoadMissing(t *testing.T) {
	t.Parallel()

	reg := module.NewRegistry(zap.NewNop())

	_, err := reg.LoadFrom(module.PathToURI(filepath.Join(t.TempDir(), "nope.nix")), "file:///root.nix")
	require.Error(t, err)

	assert.True(t, errors.Is(err, module.ErrFileNotFound))

	var loadErr *module.LoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, "file:///root.nix", string(loadErr.ImportedFrom))
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "shared.nix")
	writeFile(t, path, "{ }")

	reg := module.NewRegistry(zap.NewNop())
	u := module.PathToURI(path)

	var wg sync.WaitGroup

	for i := range 20 {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			if i%2 == 0 {
				reg.Open(u, "{ }", int32(i))
			} else {
				_, _ = reg.Load(u)
			}
		}(i)
	}

	wg.Wait()

	_, ok := reg.Get(u)
	assert.True(t, ok)
}

func TestResolveImport(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "pkgs", "default.nix"), "{ }")
	writeFile(t, filepath.Join(dir, "lib.nix"), "{ }")

	from := module.PathToURI(filepath.Join(dir, "main.nix"))

	tests := []struct {
		name string
		lit  *nixls.PathLit
		want string
	}{
		{"relative file", &nixls.PathLit{Anchor: nixls.AnchorRelative, Value: "./lib.nix"}, filepath.Join(dir, "lib.nix")},
		{"directory", &nixls.PathLit{Anchor: nixls.AnchorRelative, Value: "./pkgs"}, filepath.Join(dir, "pkgs", "default.nix")},
		{"parent", &nixls.PathLit{Anchor: nixls.AnchorRelative, Value: "../x.nix"}, filepath.Join(filepath.Dir(dir), "x.nix")},
		{"absolute", &nixls.PathLit{Anchor: nixls.AnchorAbsolute, Value: filepath.Join(dir, "lib.nix")}, filepath.Join(dir, "lib.nix")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := module.ResolveImport(from, tt.lit)
			require.NoError(t, err)
			assert.Equal(t, tt.want, module.URIToPath(got))
		})
	}

	t.Run("search path", func(t *testing.T) {
		t.Parallel()

		_, err := module.ResolveImport(from, &nixls.PathLit{Anchor: nixls.AnchorStore, Value: "nixpkgs"})
		assert.True(t, errors.Is(err, module.ErrUnsupportedPath))
	})
}

func TestURIToPath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "/a b/c.nix", module.URIToPath(module.PathToURI("/a b/c.nix")))
	assert.Equal(t, "", module.URIToPath("untitled:Untitled-1"))
}
