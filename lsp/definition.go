package lsp

import (
	"context"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"
)

// Definition handles textDocument/definition requests.
func (s *Server) Definition(ctx context.Context, params *protocol.DefinitionParams) ([]protocol.Location, error) {
	s.logger.Debug("Definition",
		zap.String("uri", string(params.TextDocument.URI)),
		zap.Uint32("line", params.Position.Line),
		zap.Uint32("character", params.Position.Character))

	doc, ok := s.getDocument(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}

	b, path, ok := s.resolver.Lookup(ctx, doc.File, doc.Mapper.Offset(params.Position))
	if !ok || b.Key == nil || b.URI == "" {
		return nil, nil
	}

	loc, ok := s.location(b.URI, b.Key.Span())
	if !ok {
		return nil, nil
	}

	s.logger.Debug("Definition found",
		zap.String("path", path.String()),
		zap.String("target", string(b.URI)))

	return []protocol.Location{loc}, nil
}
