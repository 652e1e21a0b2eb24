package lsp

import (
	"context"
	"fmt"
	"strings"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/nixls/nixls/analysis"
)

// Hover handles textDocument/hover requests.
func (s *Server) Hover(ctx context.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	s.logger.Debug("Hover",
		zap.String("uri", string(params.TextDocument.URI)),
		zap.Uint32("line", params.Position.Line),
		zap.Uint32("character", params.Position.Character))

	doc, ok := s.getDocument(params.TextDocument.URI)
	if !ok {
		return nil, nil //nolint:nilnil
	}

	offset := doc.Mapper.Offset(params.Position)

	b, path, found := s.resolver.Lookup(ctx, doc.File, offset)
	if len(path.Segments) == 0 {
		return nil, nil //nolint:nilnil
	}

	var parts []string

	if found {
		parts = append(parts, hoverBinding(b))
	}

	query := path.String()
	for _, e := range s.docs.Search(query) {
		if strings.EqualFold(e.Name, query) && !(found && b.Builtin != nil && e.Name == b.Builtin.Entry().Name) {
			parts = append(parts, e.PrettyPrinted())
		}
	}

	if len(parts) == 0 {
		return nil, nil //nolint:nilnil
	}

	rng := doc.Mapper.Range(path.Idents[len(path.Idents)-1].Span())

	return &protocol.Hover{
		Contents: markdown(strings.Join(parts, "\n---\n\n")),
		Range:    &rng,
	}, nil
}

// hoverBinding renders what is known about a resolved binding.
func hoverBinding(b *analysis.Binding) string {
	if b.Builtin != nil {
		return b.Builtin.Entry().PrettyPrinted()
	}

	var sb strings.Builder

	fmt.Fprintf(&sb, "```nix\n%s\n```\n*%s binding*\n", b.Name, b.Kind)

	if d := b.Doc(); d != "" {
		sb.WriteString("\n")
		sb.WriteString(d)
		sb.WriteString("\n")
	}

	return sb.String()
}
