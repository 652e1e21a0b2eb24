package module

import (
	"errors"
	"strings"

	"go.lsp.dev/uri"
)

// Sentinel errors.
var (
	ErrFileNotFound    = errors.New("module: file not found")
	ErrUnsupportedPath = errors.New("module: unsupported import path")
	ErrNotFileURI      = errors.New("module: not a file URI")
)

// LoadError is returned when a file cannot be read into the registry.
type LoadError struct {
	Path         string
	ImportedFrom uri.URI
	Cause        error
}

func (e *LoadError) Error() string {
	var b strings.Builder

	b.WriteString("module: loading ")
	b.WriteString(e.Path)

	if e.ImportedFrom != "" {
		b.WriteString(" (imported from ")
		b.WriteString(string(e.ImportedFrom))
		b.WriteString(")")
	}

	b.WriteString(": ")
	b.WriteString(e.Cause.Error())

	return b.String()
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}

// CycleError reports an import cycle. Path starts and ends with the same file.
type CycleError struct {
	Path []uri.URI
}

func (e *CycleError) Error() string {
	parts := make([]string, len(e.Path))
	for i, u := range e.Path {
		parts[i] = string(u)
	}

	return "module: import cycle: " + strings.Join(parts, " -> ")
}
