// Package lsp implements a Language Server Protocol server for Nix.
package lsp

import (
	"context"
	"sync"

	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
	"go.uber.org/zap"

	"github.com/nixls/nixls"
	"github.com/nixls/nixls/analysis"
	"github.com/nixls/nixls/docs"
	"github.com/nixls/nixls/module"
)

// Server implements the LSP Server interface for Nix.
type Server struct {
	client protocol.Client
	logger *zap.Logger

	// Document state
	mu        sync.RWMutex
	documents map[uri.URI]*Document

	// Files opened in the editor or reached through imports
	registry *module.Registry
	resolver *analysis.Resolver
	builtins *analysis.Builtins
	docs     docs.Searcher
	rules    []*analysis.Rule

	// Server state
	initialized   bool
	shutdown      bool
	workspaceRoot string
}

// Document represents an open document in the server.
type Document struct {
	URI     uri.URI
	Version int32
	File    *module.File
	Mapper  *Mapper
}

// Option configures a Server.
type Option func(*Server)

// WithBuiltins sets the builtin table. Without it the server only knows the
// builtin names.
func WithBuiltins(b *analysis.Builtins) Option {
	return func(s *Server) { s.builtins = b }
}

// WithDocs sets the documentation index used for hover and completion.
func WithDocs(index docs.Searcher) Option {
	return func(s *Server) { s.docs = index }
}

// WithRegistry shares a file registry with the server.
func WithRegistry(r *module.Registry) Option {
	return func(s *Server) { s.registry = r }
}

// WithRules replaces the default diagnostic rules.
func WithRules(rules []*analysis.Rule) Option {
	return func(s *Server) { s.rules = rules }
}

// NewServer creates a new LSP server.
func NewServer(client protocol.Client, logger *zap.Logger, opts ...Option) *Server {
	s := &Server{
		client:    client,
		logger:    logger,
		documents: make(map[uri.URI]*Document),
		rules:     analysis.DefaultRules(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.registry == nil {
		s.registry = module.NewRegistry(logger)
	}

	if s.builtins == nil {
		s.builtins = analysis.NewBuiltins(nil, nixls.InterpreterConfig{}, logger)
	}

	if s.docs == nil {
		s.docs = docs.NewAggregate()
	}

	s.resolver = analysis.NewResolver(s.registry, s.builtins, logger)

	return s
}

// Initialize handles the initialize request.
func (s *Server) Initialize(_ context.Context, params *protocol.InitializeParams) (*protocol.InitializeResult, error) {
	s.logger.Info("Initialize", zap.String("rootURI", string(params.RootURI)))

	if params.RootURI != "" {
		s.workspaceRoot = module.URIToPath(uri.URI(params.RootURI))
		s.logger.Info("Workspace root", zap.String("root", s.workspaceRoot))
	} else if params.RootPath != "" {
		s.workspaceRoot = params.RootPath
		s.logger.Info("Workspace root (from RootPath)", zap.String("root", s.workspaceRoot))
	}

	return &protocol.InitializeResult{
		Capabilities: protocol.ServerCapabilities{
			// Full document sync - client sends entire content on change
			TextDocumentSync: &protocol.TextDocumentSyncOptions{
				OpenClose: true,
				Change:    protocol.TextDocumentSyncKindFull,
			},
			HoverProvider:      true,
			DefinitionProvider: true,
			CompletionProvider: &protocol.CompletionOptions{
				TriggerCharacters: []string{"."},
				ResolveProvider:   false,
			},
			DocumentHighlightProvider: true,
			ReferencesProvider:        true,
			RenameProvider: &protocol.RenameOptions{
				PrepareProvider: true,
			},
		},
		ServerInfo: &protocol.ServerInfo{
			Name:    "nixls",
			Version: "0.1.0",
		},
	}, nil
}

// Initialized handles the initialized notification.
func (s *Server) Initialized(_ context.Context, _ *protocol.InitializedParams) error {
	s.logger.Info("Initialized")
	s.initialized = true

	return nil
}

// Shutdown handles the shutdown request.
func (s *Server) Shutdown(_ context.Context) error {
	s.logger.Info("Shutdown")
	s.shutdown = true

	return nil
}

// Exit handles the exit notification.
func (s *Server) Exit(_ context.Context) error {
	s.logger.Info("Exit")

	return nil
}

// DidOpen handles textDocument/didOpen notifications.
func (s *Server) DidOpen(ctx context.Context, params *protocol.DidOpenTextDocumentParams) error {
	s.logger.Info("DidOpen", zap.String("uri", string(params.TextDocument.URI)))

	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.open(uri.URI(params.TextDocument.URI), params.TextDocument.Text, params.TextDocument.Version)
	s.publishDiagnostics(ctx, doc)

	return nil
}

// DidChange handles textDocument/didChange notifications.
func (s *Server) DidChange(ctx context.Context, params *protocol.DidChangeTextDocumentParams) error {
	s.logger.Info("DidChange",
		zap.String("uri", string(params.TextDocument.URI)),
		zap.Int32("version", params.TextDocument.Version))

	s.mu.Lock()
	defer s.mu.Unlock()

	u := uri.URI(params.TextDocument.URI)
	if _, ok := s.documents[u]; !ok {
		s.logger.Warn("DidChange for unknown document", zap.String("uri", string(u)))

		return nil
	}

	// Full sync - take the last content change (should only be one with full sync)
	if len(params.ContentChanges) > 0 {
		text := params.ContentChanges[len(params.ContentChanges)-1].Text
		doc := s.open(u, text, params.TextDocument.Version)
		s.publishDiagnostics(ctx, doc)
	}

	return nil
}

// DidClose handles textDocument/didClose notifications. The file stays in
// the registry so that other files importing it keep resolving.
func (s *Server) DidClose(ctx context.Context, params *protocol.DidCloseTextDocumentParams) error {
	s.logger.Info("DidClose", zap.String("uri", string(params.TextDocument.URI)))

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.documents, uri.URI(params.TextDocument.URI))

	// Clear diagnostics for closed document
	err := s.client.PublishDiagnostics(ctx, &protocol.PublishDiagnosticsParams{
		URI:         params.TextDocument.URI,
		Diagnostics: []protocol.Diagnostic{},
	})
	if err != nil {
		s.logger.Error("Failed to clear diagnostics", zap.Error(err))
	}

	return nil
}

// DidSave handles textDocument/didSave notifications.
func (s *Server) DidSave(_ context.Context, params *protocol.DidSaveTextDocumentParams) error {
	s.logger.Info("DidSave", zap.String("uri", string(params.TextDocument.URI)))

	return nil
}

// open parses text into the registry and records it as an open document.
// Callers hold s.mu.
func (s *Server) open(u uri.URI, text string, version int32) *Document {
	doc := &Document{
		URI:     u,
		Version: version,
		File:    s.registry.Open(u, text, version),
		Mapper:  NewMapper(text),
	}
	s.documents[u] = doc

	return doc
}

// getDocument returns a document by URI (read-locked).
func (s *Server) getDocument(u protocol.DocumentURI) (*Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.documents[uri.URI(u)]

	return doc, ok
}

// location returns the location of span in the file u, which need not be
// open in the editor.
func (s *Server) location(u uri.URI, span nixls.Span) (protocol.Location, bool) {
	var mapper *Mapper

	if doc, ok := s.getDocument(protocol.DocumentURI(u)); ok {
		mapper = doc.Mapper
	} else if f, ok := s.registry.Get(u); ok {
		mapper = NewMapper(f.Text)
	} else {
		return protocol.Location{}, false
	}

	return protocol.Location{URI: protocol.DocumentURI(u), Range: mapper.Range(span)}, true
}
