package lsp

import (
	"context"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/nixls/nixls/analysis"
)

// References handles textDocument/references requests.
// Finds the occurrences of the binding under the cursor in its file.
func (s *Server) References(_ context.Context, params *protocol.ReferenceParams) ([]protocol.Location, error) {
	s.logger.Debug("References",
		zap.String("uri", string(params.TextDocument.URI)),
		zap.Uint32("line", params.Position.Line),
		zap.Uint32("character", params.Position.Character),
		zap.Bool("includeDeclaration", params.Context.IncludeDeclaration))

	doc, ok := s.getDocument(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}

	b, spans, ok := analysis.Occurrences(doc.File, doc.Mapper.Offset(params.Position))
	if !ok {
		return nil, nil
	}

	decl := b.Key.Span()

	var locations []protocol.Location

	for _, span := range spans {
		if span == decl && !params.Context.IncludeDeclaration {
			continue
		}

		locations = append(locations, protocol.Location{
			URI:   protocol.DocumentURI(doc.URI),
			Range: doc.Mapper.Range(span),
		})
	}

	return locations, nil
}
