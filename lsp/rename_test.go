package lsp_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"

	"github.com/nixls/nixls/lsp"
)

func TestServer_PrepareRename(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)
	pos := openAt(t, server, testURI, `let abc = 1; in ab|c`)

	rng, err := server.PrepareRename(context.Background(), &protocol.PrepareRenameParams{
		TextDocumentPositionParams: at(testURI, pos),
	})
	require.NoError(t, err)
	require.NotNil(t, rng)
	assert.Equal(t, protocol.Position{Line: 0, Character: 16}, rng.Start)
	assert.Equal(t, protocol.Position{Line: 0, Character: 19}, rng.End)
}

func TestServer_PrepareRename_Rejected(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)

	for _, src := range []string{`foo|`, `{ a| = 1; }`, `builtins.ma|p`} {
		pos := openAt(t, server, testURI, src)

		rng, err := server.PrepareRename(context.Background(), &protocol.PrepareRenameParams{
			TextDocumentPositionParams: at(testURI, pos),
		})
		require.NoError(t, err)
		assert.Nil(t, rng, src)
	}
}

func rename(t *testing.T, server *lsp.Server, src, newName string) (*protocol.WorkspaceEdit, error) {
	t.Helper()

	pos := openAt(t, server, testURI, src)

	return server.Rename(context.Background(), &protocol.RenameParams{
		TextDocumentPositionParams: at(testURI, pos),
		NewName:                    newName,
	})
}

func TestServer_Rename(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)

	edit, err := rename(t, server, "let\n  a = 1;\nin a| + a", "count")
	require.NoError(t, err)
	require.NotNil(t, edit)

	changes := edit.Changes[testURI]
	require.Len(t, changes, 3)

	want := []protocol.Position{
		{Line: 1, Character: 2},
		{Line: 2, Character: 3},
		{Line: 2, Character: 7},
	}
	for i, c := range changes {
		assert.Equal(t, "count", c.NewText)
		assert.Equal(t, want[i], c.Range.Start)
	}
}

func TestServer_Rename_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		newName string
		want    error
	}{
		{"keyword", `let a = 1; in a|`, "let", lsp.ErrInvalidName},
		{"not an identifier", `let a = 1; in a|`, "1x", lsp.ErrInvalidName},
		{"empty", `let a = 1; in a|`, "", lsp.ErrInvalidName},
		{"taken", `let a = 1; b = 2; in a| + b`, "b", lsp.ErrNameTaken},
		{"taken parameter", `{ a, b }: a|`, "b", lsp.ErrNameTaken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server, _ := newTestServer(t)

			_, err := rename(t, server, tt.input, tt.newName)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestServer_Rename_SameName(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)

	edit, err := rename(t, server, `let a = 1; in a|`, "a")
	require.NoError(t, err)
	require.NotNil(t, edit)
	assert.Len(t, edit.Changes[testURI], 2)
}

func TestServer_Rename_Nothing(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)

	edit, err := rename(t, server, `unknown|`, "x")
	require.NoError(t, err)
	assert.Nil(t, edit)
}
