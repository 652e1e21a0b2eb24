package lsp

import (
	"context"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/nixls/nixls/analysis"
)

// DocumentHighlight handles textDocument/documentHighlight requests.
// The defining occurrence is highlighted as a write, the others as reads.
func (s *Server) DocumentHighlight(_ context.Context, params *protocol.DocumentHighlightParams) ([]protocol.DocumentHighlight, error) {
	s.logger.Debug("DocumentHighlight",
		zap.String("uri", string(params.TextDocument.URI)),
		zap.Uint32("line", params.Position.Line),
		zap.Uint32("character", params.Position.Character))

	doc, ok := s.getDocument(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}

	b, spans, ok := analysis.Occurrences(doc.File, doc.Mapper.Offset(params.Position))
	if !ok {
		return nil, nil
	}

	decl := b.Key.Span()
	highlights := make([]protocol.DocumentHighlight, 0, len(spans))

	for _, span := range spans {
		kind := protocol.DocumentHighlightKindRead
		if span == decl {
			kind = protocol.DocumentHighlightKindWrite
		}

		highlights = append(highlights, protocol.DocumentHighlight{
			Range: doc.Mapper.Range(span),
			Kind:  kind,
		})
	}

	return highlights, nil
}
