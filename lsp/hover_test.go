package lsp_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"

	"github.com/nixls/nixls/docs"
	"github.com/nixls/nixls/lsp"
)

func hover(t *testing.T, server *lsp.Server, src string) *protocol.Hover {
	t.Helper()

	pos := openAt(t, server, testURI, src)

	h, err := server.Hover(context.Background(), &protocol.HoverParams{TextDocumentPositionParams: at(testURI, pos)})
	require.NoError(t, err)

	return h
}

func TestServer_Hover(t *testing.T) {
	t.Parallel()

	index := docs.NewIndex("nixpkgs-lib", []docs.Entry{
		{Name: "lib.id", Doc: "The identity function.", Args: []string{"x"}},
		{Name: "lib.idle", Doc: "Not this one."},
	})

	tests := []struct {
		name     string
		input    string
		contains []string
		excludes []string
	}{
		{
			name:     "builtin",
			input:    `builtins.ma|p`,
			contains: []string{"**builtins.map**", "builtins.map :: f -> list", "Apply f to each element of list."},
		},
		{
			name:     "deprecated builtin",
			input:    `builtins.toPa|th`,
			contains: []string{"**Deprecated.**"},
		},
		{
			name:     "commented binding",
			input:    "let\n  # The answer.\n  answer = 42;\nin answ|er",
			contains: []string{"answer", "*let binding*", "The answer."},
		},
		{
			name:     "parameter",
			input:    `{ pkgs }: pk|gs`,
			contains: []string{"*parameter binding*"},
		},
		{
			name:     "documented name",
			input:    `lib.i|d`,
			contains: []string{"**lib.id**", "lib.id :: x", "The identity function."},
			excludes: []string{"lib.idle"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server, _ := newTestServer(t, lsp.WithBuiltins(testBuiltins()), lsp.WithDocs(index))

			h := hover(t, server, tt.input)
			require.NotNil(t, h)
			assert.Equal(t, protocol.Markdown, h.Contents.Kind)

			for _, s := range tt.contains {
				assert.Contains(t, h.Contents.Value, s)
			}

			for _, s := range tt.excludes {
				assert.NotContains(t, h.Contents.Value, s)
			}
		})
	}
}

func TestServer_Hover_Range(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t, lsp.WithBuiltins(testBuiltins()))

	h := hover(t, server, `builtins.m|ap`)
	require.NotNil(t, h)
	require.NotNil(t, h.Range)
	assert.Equal(t, protocol.Position{Line: 0, Character: 9}, h.Range.Start)
	assert.Equal(t, protocol.Position{Line: 0, Character: 12}, h.Range.End)
}

func TestServer_Hover_Nothing(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)

	for _, src := range []string{`1|`, `unknown|`, `"text|"`} {
		assert.Nil(t, hover(t, server, src), src)
	}
}
