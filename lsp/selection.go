package lsp

import (
	"context"
	"fmt"

	"github.com/segmentio/encoding/json"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/nixls/nixls"
)

// MethodSelectionRange has no method on protocol.Server; the handler passes
// it to Request.
const MethodSelectionRange = "textDocument/selectionRange"

// Request handles requests protocol.Server has no method for.
func (s *Server) Request(ctx context.Context, method string, params any) (any, error) {
	switch method {
	case MethodSelectionRange:
		var p protocol.SelectionRangeParams
		if err := convertParams(params, &p); err != nil {
			return nil, err
		}

		return s.SelectionRange(ctx, &p)
	default:
		return nil, fmt.Errorf("%q: %w", method, jsonrpc2.ErrMethodNotFound)
	}
}

// convertParams decodes generically decoded params into v.
func convertParams(params any, v any) error {
	data, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("%w: %w", jsonrpc2.ErrInvalidParams, err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %w", jsonrpc2.ErrInvalidParams, err)
	}

	return nil
}

// SelectionRange handles textDocument/selectionRange requests. Each position
// gets the chain of syntax nodes holding it, innermost first, ending with the
// whole document.
func (s *Server) SelectionRange(_ context.Context, params *protocol.SelectionRangeParams) ([]protocol.SelectionRange, error) {
	s.logger.Debug("SelectionRange",
		zap.String("uri", string(params.TextDocument.URI)),
		zap.Int("positions", len(params.Positions)))

	doc, ok := s.getDocument(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}

	whole := protocol.Range{Start: doc.Mapper.Position(0), End: doc.Mapper.Position(len(doc.File.Text))}
	out := make([]protocol.SelectionRange, 0, len(params.Positions))

	for _, pos := range params.Positions {
		enclosing := nixls.PathEnclosing(doc.File.Tree, doc.Mapper.Offset(pos))
		sel := &protocol.SelectionRange{Range: whole}

		for i := len(enclosing) - 1; i >= 0; i-- {
			if _, isFile := enclosing[i].(*nixls.File); isFile {
				continue
			}

			rng := doc.Mapper.Range(enclosing[i].Span())
			if rng == sel.Range {
				continue
			}

			sel = &protocol.SelectionRange{Range: rng, Parent: sel}
		}

		out = append(out, *sel)
	}

	return out, nil
}
