package analysis_test

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nixls/nixls/analysis"
)

// applyEdits applies non-overlapping edits to text.
func applyEdits(text string, edits []analysis.Edit) string {
	sorted := append([]analysis.Edit(nil), edits...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Span.Start.Offset > sorted[j].Span.Start.Offset
	})

	for _, e := range sorted {
		text = text[:e.Span.Start.Offset] + e.NewText + text[e.Span.End.Offset:]
	}

	return text
}

func TestRename(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "let binding",
			input: `let a = 1; b = a + 1; in a| * b`,
			want:  `let x = 1; b = x + 1; in x * b`,
		},
		{
			name:  "from the definition",
			input: `let a| = 1; in a`,
			want:  `let x = 1; in x`,
		},
		{
			name:  "shadowing",
			input: `let a = 1; in [ a| (a: a) (let a = 2; in a) ({ a }: a) ]`,
			want:  `let x = 1; in [ x (a: a) (let a = 2; in a) ({ a }: a) ]`,
		},
		{
			name:  "nested set keys",
			input: `let a = 1; s = { a = a|; }; in s.a`,
			want:  `let x = 1; s = { a = x; }; in s.a`,
		},
		{
			name:  "rec set rebinding",
			input: `let a = 1; in [ a| rec { a = 2; b = a; } { b = a; } ]`,
			want:  `let x = 1; in [ x rec { a = 2; b = a; } { b = x; } ]`,
		},
		{
			name:  "selection base",
			input: `let lib = { }; in lib|.foo lib.bar or lib`,
			want:  `let x = { }; in x.foo x.bar or x`,
		},
		{
			name:  "plain inherit",
			input: `let a = 1; s = { inherit a; }; in a|`,
			want:  `let x = 1; s = { inherit x; }; in x`,
		},
		{
			name:  "plain inherit in rec set",
			input: `let a = 1; in [ a| (rec { inherit a; b = a; }) ]`,
			want:  `let x = 1; in [ x (rec { inherit x; b = x; }) ]`,
		},
		{
			name:  "plain inherit in let",
			input: `let a = 1; in [ a| (let inherit a; in a) ]`,
			want:  `let x = 1; in [ x (let inherit x; in x) ]`,
		},
		{
			name:  "through plain inherit",
			input: `let a = 1; in rec { inherit a; b = a|; }`,
			want:  `let x = 1; in rec { inherit x; b = x; }`,
		},
		{
			name:  "inherit from inner let",
			input: `let a = { b = 1; }; in let inherit (a) b; in a|.b + b`,
			want:  `let x = { b = 1; }; in let inherit (x) b; in x.b + b`,
		},
		{
			name:  "nested keys",
			input: `let a.b = 1; a.c = 2; in a|.b`,
			want:  `let x.b = 1; x.c = 2; in x.b`,
		},
		{
			name:  "nested keys from a later key",
			input: `let a.b = 1; a|.c = 2; in a.b`,
			want:  `let x.b = 1; x.c = 2; in x.b`,
		},
		{
			name:  "inherit from",
			input: `let a = 1; s = { inherit (t) a; }; in a|`,
			want:  `let x = 1; s = { inherit (t) a; }; in x`,
		},
		{
			name:  "pattern parameter",
			input: `{ pkgs, lib ? pkgs.lib }: pkgs|.hello`,
			want:  `{ x, lib ? x.lib }: x.hello`,
		},
		{
			name:  "rec set",
			input: `rec { a = 1; b = a|; }`,
			want:  `rec { x = 1; b = x; }`,
		},
		{
			name:  "with literal",
			input: `with { a = 1; }; a|`,
			want:  `with { x = 1; }; x`,
		},
		{
			name:  "interpolation",
			input: `let a = "x"; in "${a|}-${a}" + ''${a}''`,
			want:  `let x = "x"; in "${x}-${x}" + ''${x}''`,
		},
		{
			name:  "dynamic key",
			input: `let a = "k"; in { ${a} = a|; }`,
			want:  `let x = "k"; in { ${x} = x; }`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f, offset := openAt(t, tt.input)

			edits, ok := analysis.Rename(f, offset, "x")
			require.True(t, ok, "no binding at cursor")
			assert.Equal(t, tt.want, applyEdits(f.Text, edits))
		})
	}
}

func TestRename_Rejected(t *testing.T) {
	t.Parallel()

	for _, input := range []string{
		`foo|`,
		`let lib = { }; in lib.fo|o`,
		`let a = 1; s = { a| = 2; }; in a`,
		`let a = 1; s = { inherit (t) a|; }; in a`,
		`{ a| = 1; }`,
		`rec { inherit a|; b = a; }`,
		`1|`,
	} {
		f, offset := openAt(t, input)

		edits, ok := analysis.Rename(f, offset, "x")
		assert.False(t, ok, "%q: %v", input, edits)
	}
}

func TestOccurrences(t *testing.T) {
	t.Parallel()

	f, offset := openAt(t, `let a = 1; in a + a|`)

	b, spans, ok := analysis.Occurrences(f, offset)
	require.True(t, ok)
	assert.Equal(t, "a", b.Name)
	assert.Equal(t, analysis.KindLet, b.Kind)

	var got []int
	for _, s := range spans {
		got = append(got, s.Start.Offset)
		assert.Equal(t, "a", spanText(f, s))
	}

	assert.Equal(t, []int{4, 14, 18}, got)
}
