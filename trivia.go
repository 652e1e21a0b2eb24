package nixls

import (
	"sort"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
)

// Span represents a range in source code. End is exclusive.
type Span struct {
	Start lexer.Position
	End   lexer.Position
}

// Contains reports whether offset lies inside the span. The end is
// inclusive so that a cursor placed right after a token still hits it.
func (s Span) Contains(offset int) bool {
	return s.Start.Offset <= offset && offset <= s.End.Offset
}

// Len returns the span length in bytes.
func (s Span) Len() int {
	return s.End.Offset - s.Start.Offset
}

// Trivia represents non-semantic tokens like comments and whitespace.
type Trivia struct {
	Type TriviaType
	Text string
	Span Span
	// HasNewlineBefore is true if there was a blank line before this trivia.
	// Useful for distinguishing "detached" comments.
	HasNewlineBefore bool
}

// TriviaType distinguishes different kinds of trivia.
type TriviaType int

// TriviaType constants define the types of trivia (comments, whitespace).
const (
	// TriviaComment represents a comment trivia.
	TriviaComment TriviaType = iota
	// TriviaWhitespace represents whitespace trivia.
	TriviaWhitespace
)

// TriviaList holds all trivia collected during lexing.
type TriviaList struct {
	items []Trivia
}

// Add appends trivia to the list.
func (t *TriviaList) Add(trivia Trivia) {
	t.items = append(t.items, trivia)
}

// All returns all collected trivia.
func (t *TriviaList) All() []Trivia {
	return t.items
}

// CommentText strips the comment markers from a raw comment.
func CommentText(raw string) string {
	if strings.HasPrefix(raw, "#") {
		return strings.TrimSpace(strings.TrimPrefix(raw, "#"))
	}

	raw = strings.TrimPrefix(raw, "/*")
	raw = strings.TrimSuffix(raw, "*/")

	lines := strings.Split(raw, "\n")
	for i, line := range lines {
		line = strings.TrimSpace(line)
		lines[i] = strings.TrimSpace(strings.TrimPrefix(line, "*"))
	}

	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// attachComments associates comments with set and let members. A leading
// comment is a run of comments directly above a member, not separated from it
// by a blank line. A trailing comment starts on the line the member ends on.
func attachComments(file *File, src string, trivia *TriviaList) {
	if file == nil || trivia == nil || len(trivia.items) == 0 {
		return
	}

	comments := trivia.All()

	Inspect(file, func(n Node) bool {
		var meta *CommentMeta

		switch n := n.(type) {
		case *KeyValue:
			meta = &n.CommentMeta
		case *Inherit:
			meta = &n.CommentMeta
		default:
			return true
		}

		span := n.Span()
		meta.LeadingComments = leadingComments(comments, src, span.Start.Offset)
		meta.TrailingComment = trailingComment(comments, src, span.End.Offset)

		return true
	})
}

func leadingComments(comments []Trivia, src string, start int) []string {
	// First comment that ends after start; everything before it is a candidate.
	i := sort.Search(len(comments), func(i int) bool {
		return comments[i].Span.End.Offset > start
	})

	var out []string

	next := start

	for j := i - 1; j >= 0; j-- {
		c := comments[j]

		gap := src[c.Span.End.Offset:next]
		if strings.TrimSpace(gap) != "" || strings.Count(gap, "\n") > 1 {
			break
		}

		// A comment sharing its line with earlier code trails that code.
		lineStart := strings.LastIndexByte(src[:c.Span.Start.Offset], '\n') + 1
		if strings.TrimSpace(src[lineStart:c.Span.Start.Offset]) != "" {
			break
		}

		out = append([]string{CommentText(c.Text)}, out...)
		next = c.Span.Start.Offset
	}

	return out
}

func trailingComment(comments []Trivia, src string, end int) string {
	i := sort.Search(len(comments), func(i int) bool {
		return comments[i].Span.Start.Offset >= end
	})
	if i >= len(comments) {
		return ""
	}

	gap := src[end:comments[i].Span.Start.Offset]
	if strings.TrimSpace(gap) != "" || strings.Contains(gap, "\n") {
		return ""
	}

	return CommentText(comments[i].Text)
}
