package lsp

import (
	"context"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/nixls/nixls/analysis"
)

// publishDiagnostics runs the diagnostic rules over doc and publishes the result.
func (s *Server) publishDiagnostics(ctx context.Context, doc *Document) {
	found := analysis.Diagnose(doc.File, s.registry, s.rules)
	diagnostics := make([]protocol.Diagnostic, 0, len(found))

	for _, d := range found {
		lspDiag := convertDiagnostic(doc.Mapper, d)
		s.logger.Debug("Publishing diagnostic",
			zap.String("code", d.Code),
			zap.Uint32("lsp.start.line", lspDiag.Range.Start.Line),
			zap.Uint32("lsp.start.char", lspDiag.Range.Start.Character),
			zap.String("message", d.Message))
		diagnostics = append(diagnostics, lspDiag)
	}

	err := s.client.PublishDiagnostics(ctx, &protocol.PublishDiagnosticsParams{
		URI:         protocol.DocumentURI(doc.URI),
		Version:     uint32(doc.Version), //nolint:gosec // LSP version numbers are always non-negative
		Diagnostics: diagnostics,
	})
	if err != nil {
		s.logger.Error("Failed to publish diagnostics", zap.Error(err))
	}
}

// convertDiagnostic converts an analysis.Diagnostic to an LSP protocol.Diagnostic.
func convertDiagnostic(m *Mapper, d analysis.Diagnostic) protocol.Diagnostic {
	return protocol.Diagnostic{
		Range:    m.Range(d.Span),
		Severity: convertSeverity(d.Severity),
		Code:     d.Code,
		Source:   d.Source,
		Message:  d.Message,
	}
}

// convertSeverity converts analysis severity to LSP severity.
func convertSeverity(sev analysis.DiagnosticSeverity) protocol.DiagnosticSeverity {
	switch sev {
	case analysis.SeverityError:
		return protocol.DiagnosticSeverityError
	case analysis.SeverityWarning:
		return protocol.DiagnosticSeverityWarning
	case analysis.SeverityInformation:
		return protocol.DiagnosticSeverityInformation
	case analysis.SeverityHint:
		return protocol.DiagnosticSeverityHint
	default:
		return protocol.DiagnosticSeverityError
	}
}
