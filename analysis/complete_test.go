package analysis_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nixls/nixls/analysis"
	"github.com/nixls/nixls/docs"
)

func labels(cs []analysis.Completion) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Label
	}

	return out
}

func TestResolver_Complete(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"members after a dot", `let lib = import ./lib; in lib.strings.|`, []string{"concat", "trim"}},
		{"typed prefix", `let lib = import ./lib; in lib.strings.co|`, []string{"concat"}},
		{"bare prefix", `let apple = 1; avocado = 2; banana = 3; in a|`, []string{"apple", "avocado"}},
		{"builtins namespace", `builtins.m|`, []string{"map"}},
		{"builtins name", `let b = 1; in bu|`, []string{"builtins"}},
		{"unresolved", `x: x.|`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fx := newResolveFixture(t)
			f, offset := fx.open(t, tt.input)

			got := fx.resolver.Complete(context.Background(), f, offset, nil)
			assert.Equal(t, tt.want, nilIfEmpty(labels(got)))
		})
	}
}

func TestResolver_Complete_Edits(t *testing.T) {
	t.Parallel()

	fx := newResolveFixture(t)
	f, offset := fx.open(t, `let lib = import ./lib; in lib.strings.tr|`)

	got := fx.resolver.Complete(context.Background(), f, offset, nil)
	require.Len(t, got, 1)
	assert.Equal(t, "tr", spanText(f, got[0].Edit.Span))
	assert.Equal(t, "trim", got[0].Edit.NewText)
	assert.Equal(t, analysis.KindAttribute, got[0].Binding.Kind)

	f, offset = fx.open(t, `let lib = import ./lib; in lib.strings.|`)

	got = fx.resolver.Complete(context.Background(), f, offset, nil)
	require.NotEmpty(t, got)
	assert.Equal(t, 0, got[0].Edit.Span.Len())
	assert.Equal(t, offset, got[0].Edit.Span.Start.Offset)
}

func TestResolver_Complete_Namespace(t *testing.T) {
	t.Parallel()

	index := docs.NewIndex("lib", append([]docs.Entry{{Name: "concat"}}, namespaceFixture...))

	fx := newResolveFixture(t)
	f, offset := fx.open(t, `let concat = 1; in lib.strings.|`)

	got := fx.resolver.Complete(context.Background(), f, offset, index)
	assert.Equal(t, []string{"lib.strings.concat", "lib.strings.trim"}, labels(got))

	for _, c := range got {
		require.NotNil(t, c.Namespace)
		assert.Nil(t, c.Binding)
		assert.Equal(t, analysis.ResultLeaf, c.Namespace.Kind)
	}

	// Scope members come first and keep their label.
	f, offset = fx.open(t, `let concat = 1; in conc|`)

	got = fx.resolver.Complete(context.Background(), f, offset, index)
	require.Len(t, got, 1)
	assert.Equal(t, "concat", got[0].Label)
	assert.NotNil(t, got[0].Binding)
}

func TestResolver_Complete_NoPath(t *testing.T) {
	t.Parallel()

	fx := newResolveFixture(t)
	f, offset := fx.open(t, `x: [ | ]`)

	got := fx.resolver.Complete(context.Background(), f, offset, nil)
	assert.Equal(t, []string{"x", "builtins"}, labels(got))
	assert.Empty(t, got[0].Edit.NewText)
}

func nilIfEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}

	return s
}
