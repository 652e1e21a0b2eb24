package lsp

import (
	"sort"
	"unicode/utf16"
	"unicode/utf8"

	"go.lsp.dev/protocol"

	"github.com/nixls/nixls"
)

// Mapper converts between byte offsets and LSP positions, whose characters
// count UTF-16 code units.
type Mapper struct {
	text  string
	lines []int // byte offset of each line start
}

// NewMapper indexes the line starts of text.
func NewMapper(text string) *Mapper {
	lines := []int{0}

	for i := range len(text) {
		if text[i] == '\n' {
			lines = append(lines, i+1)
		}
	}

	return &Mapper{text: text, lines: lines}
}

// Offset returns the byte offset of pos. Positions past the end of a line
// clamp to the line end; lines past the end of the text clamp to its length.
func (m *Mapper) Offset(pos protocol.Position) int {
	line := int(pos.Line)
	if line >= len(m.lines) {
		return len(m.text)
	}

	offset, end := m.lines[line], m.lineEnd(line)

	for units := uint32(0); offset < end; {
		r, size := utf8.DecodeRuneInString(m.text[offset:end])

		n := uint32(utf16.RuneLen(r)) //nolint:gosec // 1 or 2
		if units+n > pos.Character {
			break
		}

		units += n
		offset += size
	}

	return offset
}

// Position returns the LSP position of a byte offset.
func (m *Mapper) Position(offset int) protocol.Position {
	offset = min(max(offset, 0), len(m.text))
	line := sort.Search(len(m.lines), func(i int) bool { return m.lines[i] > offset }) - 1

	var units uint32

	for _, r := range m.text[m.lines[line]:offset] {
		units += uint32(utf16.RuneLen(r)) //nolint:gosec // 1 or 2
	}

	return protocol.Position{
		Line:      uint32(line), //nolint:gosec // G115: line indices are small
		Character: units,
	}
}

// Range returns the LSP range of a span.
func (m *Mapper) Range(span nixls.Span) protocol.Range {
	return protocol.Range{
		Start: m.Position(span.Start.Offset),
		End:   m.Position(span.End.Offset),
	}
}

func (m *Mapper) lineEnd(line int) int {
	if line+1 < len(m.lines) {
		end := m.lines[line+1] - 1
		if end > m.lines[line] && m.text[end-1] == '\r' {
			end--
		}

		return end
	}

	return len(m.text)
}
