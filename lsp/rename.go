package lsp

import (
	"context"
	"errors"
	"fmt"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/nixls/nixls"
	"github.com/nixls/nixls/analysis"
)

// Rename errors.
var (
	ErrInvalidName = errors.New("lsp: not a valid identifier")
	ErrNameTaken   = errors.New("lsp: name already bound")
)

// PrepareRename handles textDocument/prepareRename requests.
// Validates that rename is possible and returns the range of the identifier.
func (s *Server) PrepareRename(_ context.Context, params *protocol.PrepareRenameParams) (*protocol.Range, error) {
	s.logger.Debug("PrepareRename",
		zap.String("uri", string(params.TextDocument.URI)),
		zap.Uint32("line", params.Position.Line),
		zap.Uint32("character", params.Position.Character))

	doc, ok := s.getDocument(params.TextDocument.URI)
	if !ok {
		return nil, nil //nolint:nilnil
	}

	offset := doc.Mapper.Offset(params.Position)

	_, spans, ok := analysis.Occurrences(doc.File, offset)
	if !ok {
		return nil, nil //nolint:nilnil
	}

	for _, span := range spans {
		if span.Contains(offset) {
			rng := doc.Mapper.Range(span)

			return &rng, nil
		}
	}

	return nil, nil //nolint:nilnil
}

// Rename handles textDocument/rename requests.
// Renames the binding under the cursor and all its references.
func (s *Server) Rename(_ context.Context, params *protocol.RenameParams) (*protocol.WorkspaceEdit, error) {
	s.logger.Debug("Rename",
		zap.String("uri", string(params.TextDocument.URI)),
		zap.Uint32("line", params.Position.Line),
		zap.Uint32("character", params.Position.Character),
		zap.String("newName", params.NewName))

	doc, ok := s.getDocument(params.TextDocument.URI)
	if !ok {
		return nil, nil //nolint:nilnil
	}

	if !nixls.IsIdentifier(params.NewName) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, params.NewName)
	}

	offset := doc.Mapper.Offset(params.Position)

	b, _, ok := analysis.Occurrences(doc.File, offset)
	if !ok {
		return nil, nil //nolint:nilnil
	}

	if b.Name != params.NewName && boundBeside(doc.File.Tree, b, params.NewName) {
		return nil, fmt.Errorf("%w: %q", ErrNameTaken, params.NewName)
	}

	edits, ok := analysis.Rename(doc.File, offset, params.NewName)
	if !ok || len(edits) == 0 {
		return nil, nil //nolint:nilnil
	}

	changes := make([]protocol.TextEdit, 0, len(edits))
	for _, e := range edits {
		changes = append(changes, protocol.TextEdit{
			Range:   doc.Mapper.Range(e.Span),
			NewText: e.NewText,
		})
	}

	return &protocol.WorkspaceEdit{
		Changes: map[protocol.DocumentURI][]protocol.TextEdit{
			protocol.DocumentURI(doc.URI): changes,
		},
	}, nil
}

// boundBeside reports whether name is already defined by the construct that
// defines b.
func boundBeside(tree *nixls.File, b *analysis.Binding, name string) bool {
	scope := analysis.ScopeAt(b.URI, nixls.PathEnclosing(tree, b.Key.Span().Start.Offset))

	other, ok := scope.Lookup(name)

	return ok && other.Scope == b.Scope
}
