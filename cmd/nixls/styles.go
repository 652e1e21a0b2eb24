package main

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var (
	colorName   = lipgloss.Color("#f8fafc") // slate-50
	colorKind   = lipgloss.Color("#06b6d4") // cyan-500
	colorDim    = lipgloss.Color("#6b7280") // gray-500
	colorAccent = lipgloss.Color("#3b82f6") // blue-500
	colorWarn   = lipgloss.Color("#f59e0b") // amber-500
	colorError  = lipgloss.Color("#ef4444") // red-500
)

// styles holds the lipgloss styles of the inspect commands.
type styles struct {
	Name  lipgloss.Style
	Kind  lipgloss.Style
	Dim   lipgloss.Style
	Path  lipgloss.Style
	Warn  lipgloss.Style
	Error lipgloss.Style

	TreeMiddle string
	TreeEnd    string
}

// stylesFor returns colored styles when w is a terminal and plain ones
// otherwise, so that piped output stays greppable.
func stylesFor(w io.Writer) *styles {
	s := &styles{
		Name:  lipgloss.NewStyle(),
		Kind:  lipgloss.NewStyle(),
		Dim:   lipgloss.NewStyle(),
		Path:  lipgloss.NewStyle(),
		Warn:  lipgloss.NewStyle(),
		Error: lipgloss.NewStyle(),

		TreeMiddle: "├─",
		TreeEnd:    "╰─",
	}

	if f, ok := w.(*os.File); !ok || !isatty.IsTerminal(f.Fd()) {
		return s
	}

	s.Name = s.Name.Foreground(colorName).Bold(true)
	s.Kind = s.Kind.Foreground(colorKind)
	s.Dim = s.Dim.Foreground(colorDim)
	s.Path = s.Path.Foreground(colorAccent)
	s.Warn = s.Warn.Foreground(colorWarn).Bold(true)
	s.Error = s.Error.Foreground(colorError).Bold(true)

	return s
}
