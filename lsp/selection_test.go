package lsp_test

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"

	"github.com/nixls/nixls/lsp"
)

// chain flattens a selection range into [start, end] character pairs,
// innermost first. All test inputs are single-line.
func chain(sel protocol.SelectionRange) [][2]uint32 {
	var out [][2]uint32

	for r := &sel; r != nil; r = r.Parent {
		out = append(out, [2]uint32{r.Range.Start.Character, r.Range.End.Character})
	}

	return out
}

func TestServer_SelectionRange(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)
	pos := openAt(t, server, testURI, `let a = { b = 1; }; in a.b|`)

	got, err := server.SelectionRange(context.Background(), &protocol.SelectionRangeParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: testURI},
		Positions:    []protocol.Position{pos, {Line: 0, Character: 10}},
	})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, [][2]uint32{{25, 26}, {23, 26}, {0, 26}}, chain(got[0]))

	inner := chain(got[1])
	assert.Equal(t, [2]uint32{10, 11}, inner[0])
	assert.Equal(t, [2]uint32{0, 26}, inner[len(inner)-1])

	for i := 1; i < len(inner); i++ {
		assert.LessOrEqual(t, inner[i][0], inner[i-1][0], "parent %d starts after its child", i)
		assert.GreaterOrEqual(t, inner[i][1], inner[i-1][1], "parent %d ends before its child", i)
	}
}

func TestServer_SelectionRange_UnknownDocument(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)

	got, err := server.SelectionRange(context.Background(), &protocol.SelectionRangeParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: "file:///w/missing.nix"},
		Positions:    []protocol.Position{{}},
	})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestServer_Request(t *testing.T) {
	t.Parallel()

	server, _ := newTestServer(t)
	openAt(t, server, testURI, `x: x|`)

	// The handler decodes params generically before calling Request.
	var params any
	require.NoError(t, json.Unmarshal([]byte(`{
		"textDocument": {"uri": "file:///w/main.nix"},
		"positions": [{"line": 0, "character": 3}]
	}`), &params))

	result, err := server.Request(context.Background(), lsp.MethodSelectionRange, params)
	require.NoError(t, err)

	ranges, ok := result.([]protocol.SelectionRange)
	require.True(t, ok, "result is %T", result)
	require.Len(t, ranges, 1)
	assert.Equal(t, [][2]uint32{{3, 4}, {0, 4}}, chain(ranges[0]))

	_, err = server.Request(context.Background(), "nixls/unknown", nil)
	assert.True(t, errors.Is(err, jsonrpc2.ErrMethodNotFound), "err = %v", err)
}
