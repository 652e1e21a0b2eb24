// Package module holds the set of Nix files known to the server: the ones
// the editor has open and the ones reached through import expressions.
package module

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.lsp.dev/uri"
	"go.uber.org/zap"

	"github.com/nixls/nixls"
)

// DefaultFile is loaded when an import names a directory.
const DefaultFile = "default.nix"

// File is a parsed Nix source file. Files are immutable; an edit replaces
// the whole File in the registry.
type File struct {
	URI    uri.URI
	Path   string
	Text   string
	Tree   *nixls.File
	Errors []*nixls.ParseError

	// Version is the editor's document version, 0 for files read from disk.
	Version int32
}

// NewFile parses text into a File.
func NewFile(u uri.URI, text string, version int32) *File {
	path := URIToPath(u)
	tree, errs := nixls.ParseFile(path, []byte(text))

	return &File{
		URI:     u,
		Path:    path,
		Text:    text,
		Tree:    tree,
		Errors:  errs,
		Version: version,
	}
}

// Registry maps URIs to parsed files. Open replaces entries, Load inserts
// them only when absent; entries are never removed.
type Registry struct {
	logger *zap.Logger

	// mu protects files.
	mu    sync.RWMutex
	files map[uri.URI]*File

	// ReadFile reads a file from disk. Defaults to os.ReadFile.
	ReadFile func(path string) ([]byte, error)
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Registry{
		logger:   logger,
		files:    make(map[uri.URI]*File),
		ReadFile: os.ReadFile,
	}
}

// Open parses text and stores it under u, replacing any previous entry.
func (r *Registry) Open(u uri.URI, text string, version int32) *File {
	f := NewFile(u, text, version)

	r.mu.Lock()
	r.files[u] = f
	r.mu.Unlock()

	r.logger.Debug("File replaced",
		zap.String("uri", string(u)),
		zap.Int("errors", len(f.Errors)))

	return f
}

// Get returns the current entry for u.
func (r *Registry) Get(u uri.URI) (*File, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.files[u]

	return f, ok
}

// Load returns the entry for u, reading and parsing it from disk on a miss.
func (r *Registry) Load(u uri.URI) (*File, error) {
	return r.load(u, "")
}

// LoadFrom is Load for a file reached by an import in from, recorded in any
// error returned.
func (r *Registry) LoadFrom(u, from uri.URI) (*File, error) {
	return r.load(u, from)
}

func (r *Registry) load(u, from uri.URI) (*File, error) {
	if f, ok := r.Get(u); ok {
		return f, nil
	}

	path := URIToPath(u)
	if path == "" {
		return nil, &LoadError{Path: string(u), ImportedFrom: from, Cause: ErrNotFileURI}
	}

	data, err := r.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			err = fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}

		return nil, &LoadError{Path: path, ImportedFrom: from, Cause: err}
	}

	f := NewFile(u, string(data), 0)

	r.mu.Lock()
	defer r.mu.Unlock()

	// Another reader may have raced us, or the editor opened the file.
	if existing, ok := r.files[u]; ok {
		return existing, nil
	}

	r.files[u] = f

	r.logger.Debug("File loaded from disk", zap.String("path", path))

	return f, nil
}

// Files returns all entries ordered by URI.
func (r *Registry) Files() []*File {
	r.mu.RLock()
	out := make([]*File, 0, len(r.files))

	for _, f := range r.files {
		out = append(out, f)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].URI < out[j].URI })

	return out
}

// ResolveImport resolves an import path literal relative to the file that
// contains it. A path naming a directory resolves to its default.nix.
// Search-path literals such as <nixpkgs> need NIX_PATH and are not supported.
func ResolveImport(from uri.URI, lit *nixls.PathLit) (uri.URI, error) {
	var path string

	switch lit.Anchor {
	case nixls.AnchorRelative:
		base := URIToPath(from)
		if base == "" {
			return "", fmt.Errorf("%w: %s", ErrNotFileURI, from)
		}

		path = filepath.Join(filepath.Dir(base), lit.Value)
	case nixls.AnchorAbsolute:
		path = filepath.Clean(lit.Value)
	case nixls.AnchorHome:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("%w: %s: %w", ErrUnsupportedPath, lit.Value, err)
		}

		path = filepath.Join(home, strings.TrimPrefix(lit.Value, "~"))
	default:
		return "", fmt.Errorf("%w: <%s>", ErrUnsupportedPath, lit.Value)
	}

	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, DefaultFile)
	}

	return PathToURI(path), nil
}

// URIToPath converts a file URI to a file system path. Non-file URIs yield "".
func URIToPath(u uri.URI) string {
	parsed, err := url.Parse(string(u))
	if err != nil {
		// Fallback: strip file:// prefix
		if strings.HasPrefix(string(u), "file://") {
			return strings.TrimPrefix(string(u), "file://")
		}

		return ""
	}

	if parsed.Scheme != "file" {
		return ""
	}

	return filepath.FromSlash(parsed.Path)
}

// PathToURI converts a file system path to a file URI.
func PathToURI(path string) uri.URI {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}

	return uri.File(path)
}
