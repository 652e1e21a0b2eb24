package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/nixls/nixls"
	"github.com/nixls/nixls/analysis"
	"github.com/nixls/nixls/module"
)

func TestParseLocation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		arg  string
		path string
		pos  protocol.Position
		ok   bool
	}{
		{"main.nix:1:1", "main.nix", protocol.Position{Line: 0, Character: 0}, true},
		{"dir/x.nix:12:7", "dir/x.nix", protocol.Position{Line: 11, Character: 6}, true},
		{"c:/w/x.nix:2:3", "c:/w/x.nix", protocol.Position{Line: 1, Character: 2}, true},
		{"main.nix", "", protocol.Position{}, false},
		{"main.nix:3", "", protocol.Position{}, false},
		{"main.nix:0:1", "", protocol.Position{}, false},
		{"main.nix:1:x", "", protocol.Position{}, false},
		{":1:1", "", protocol.Position{}, false},
	}

	for _, tt := range tests {
		path, pos, err := parseLocation(tt.arg)
		if !tt.ok {
			assert.ErrorIs(t, err, ErrBadLocation, tt.arg)
			assert.True(t, strings.HasPrefix(err.Error(), "nixls: "), err.Error())

			continue
		}

		require.NoError(t, err, tt.arg)
		assert.Equal(t, tt.path, path)
		assert.Equal(t, tt.pos, pos)
	}
}

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()

	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	}

	return dir
}

func testEnv() *env {
	logger := zap.NewNop()
	registry := module.NewRegistry(logger)
	builtins := analysis.NewBuiltins(nil, nixls.InterpreterConfig{}, logger)

	return &env{
		cfg:      nixls.DefaultConfig(),
		logger:   logger,
		registry: registry,
		builtins: builtins,
		resolver: analysis.NewResolver(registry, builtins, logger),
	}
}

func TestPrintScope(t *testing.T) {
	t.Parallel()

	dir := writeFiles(t, map[string]string{
		"main.nix": "{ pkgs }:\nlet\n  hello = pkgs.hello;\nin hello",
	})

	e := testEnv()
	f, err := e.registry.Load(module.PathToURI(filepath.Join(dir, "main.nix")))
	require.NoError(t, err)

	offset := strings.LastIndex(f.Text, "hello")
	scope := e.resolver.ScopeAt(context.Background(), f.URI, nixls.PathEnclosing(f.Tree, offset))

	var out bytes.Buffer
	printScope(&out, e, scope)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Regexp(t, `^hello\s+let\s+\S*main\.nix:3:3$`, lines[0])
	assert.Regexp(t, `^pkgs\s+parameter\s+\S*main\.nix:1:3$`, lines[1])
}

func TestPrintCompletions(t *testing.T) {
	t.Parallel()

	e := testEnv()
	f := e.registry.Open(module.PathToURI("/w/main.nix"), `builtins.attrN`, 1)

	var out bytes.Buffer
	printCompletions(&out, e.resolver.Complete(context.Background(), f, len(f.Text), nil))

	assert.Regexp(t, `^attrNames\s+builtin\s+builtin\n$`, out.String())

	out.Reset()
	printCompletions(&out, nil)
	assert.Equal(t, "no completions\n", out.String())
}

func TestPrintGraph(t *testing.T) {
	t.Parallel()

	dir := writeFiles(t, map[string]string{
		"main.nix": `[ (import ./a.nix) (import ./gone.nix) (import <nixpkgs>) ]`,
		"a.nix":    `import ./main.nix`,
	})

	e := testEnv()
	g, err := e.registry.Graph(module.PathToURI(filepath.Join(dir, "main.nix")))
	require.NotNil(t, g)

	var out bytes.Buffer
	printGraph(&out, e.registry, g, err)

	text := out.String()
	assert.Contains(t, text, "├─ ./a.nix → ")
	assert.Contains(t, text, "╰─ ./main.nix → ")
	assert.Contains(t, text, "(see above)")
	assert.Contains(t, text, "./gone.nix → missing ")
	assert.Contains(t, text, "<nixpkgs> → (not a local file)")
	assert.Contains(t, text, "cycle: ")
	assert.Contains(t, text, "error: ")
}

func TestPrintBuiltins_Fallback(t *testing.T) {
	t.Parallel()

	e := testEnv()
	ctx := context.Background()

	var out bytes.Buffer
	printBuiltins(&out, e.builtins.Rich(ctx), e.builtins.Table(ctx))

	text := out.String()
	assert.Contains(t, text, "fallback list")
	assert.Regexp(t, `(?m)^map\s+builtin$`, text)
}
