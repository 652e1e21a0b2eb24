package lsp

import (
	"context"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/nixls/nixls/analysis"
	"github.com/nixls/nixls/docs"
)

// Completion handles textDocument/completion requests.
func (s *Server) Completion(ctx context.Context, params *protocol.CompletionParams) (*protocol.CompletionList, error) {
	s.logger.Debug("Completion",
		zap.String("uri", string(params.TextDocument.URI)),
		zap.Uint32("line", params.Position.Line),
		zap.Uint32("character", params.Position.Character))

	doc, ok := s.getDocument(params.TextDocument.URI)
	if !ok {
		return nil, nil //nolint:nilnil
	}

	offset := doc.Mapper.Offset(params.Position)
	found := s.resolver.Complete(ctx, doc.File, offset, s.docs)

	s.logger.Debug("Completion candidates", zap.Int("count", len(found)))

	items := make([]protocol.CompletionItem, 0, len(found))
	for _, c := range found {
		items = append(items, completionItem(doc, c))
	}

	return &protocol.CompletionList{
		IsIncomplete: false,
		Items:        items,
	}, nil
}

func completionItem(doc *Document, c analysis.Completion) protocol.CompletionItem {
	item := protocol.CompletionItem{Label: c.Label}

	if c.Edit.NewText != "" {
		item.TextEdit = &protocol.TextEdit{
			Range:   doc.Mapper.Range(c.Edit.Span),
			NewText: c.Edit.NewText,
		}
	}

	switch {
	case c.Binding != nil:
		b := c.Binding
		item.Kind = bindingItemKind(b)
		item.Detail = b.Kind.String()

		if b.Builtin != nil {
			item.Detail = b.Builtin.Detail()
			item.Deprecated = b.Builtin.Deprecated

			if b.Builtin.Deprecated {
				item.Tags = []protocol.CompletionItemTag{protocol.CompletionItemTagDeprecated}
			}

			if b.Builtin.Doc != "" {
				item.Documentation = markdown(b.Builtin.Doc)
			}
		} else if d := b.Doc(); d != "" {
			item.Documentation = markdown(d)
		}

		if b.Name == "builtins" && b.Builtin == nil && b.Kind == analysis.KindBuiltin {
			item.Kind = protocol.CompletionItemKindModule
			item.Detail = "builtins"
		}

	case c.Namespace != nil:
		ns := c.Namespace
		if ns.Kind == analysis.ResultGroup {
			item.Kind = protocol.CompletionItemKindModule
			item.Detail = "namespace"

			break
		}

		item.Kind = entryItemKind(ns.Entry)
		item.Detail = ns.Entry.Source

		if sig := ns.Entry.Signature(); sig != "" {
			item.Detail = sig
		}

		item.Documentation = markdown(ns.Entry.PrettyPrinted())
		item.Deprecated = ns.Entry.Deprecated
	}

	return item
}

func bindingItemKind(b *analysis.Binding) protocol.CompletionItemKind {
	switch b.Kind {
	case analysis.KindParameter:
		return protocol.CompletionItemKindVariable
	case analysis.KindLet:
		return protocol.CompletionItemKindVariable
	case analysis.KindBuiltin:
		return protocol.CompletionItemKindFunction
	case analysis.KindAttribute, analysis.KindWith:
		return protocol.CompletionItemKindField
	default:
		return protocol.CompletionItemKindText
	}
}

func entryItemKind(e *docs.Entry) protocol.CompletionItemKind {
	switch e.Kind {
	case docs.KindOption:
		return protocol.CompletionItemKindProperty
	case docs.KindBuiltin, docs.KindFunction:
		return protocol.CompletionItemKindFunction
	default:
		return protocol.CompletionItemKindValue
	}
}

func markdown(value string) protocol.MarkupContent {
	return protocol.MarkupContent{Kind: protocol.Markdown, Value: value}
}
