package analysis_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/nixls/nixls"
	"github.com/nixls/nixls/analysis"
)

func TestPathAt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		segments []string
		span     string
		shape    analysis.PathShape
	}{
		{"key", `{ foo.ba| = 1; }`, []string{"foo", "ba"}, "foo.ba", analysis.ShapeKey},
		{"key head", `{ fo|o.bar = 1; }`, []string{"foo"}, "foo", analysis.ShapeKey},
		{"key dangling dot", `{ foo.| = 1; }`, []string{"foo"}, "foo.", analysis.ShapeKey},
		{"key stops at string", `{ a."b".c| = 1; }`, []string{"a"}, "a", analysis.ShapeKey},
		{"select", `lib.strings.con|`, []string{"lib", "strings", "con"}, "lib.strings.con", analysis.ShapeSelect},
		{"select middle", `lib.str|ings.concat`, []string{"lib", "strings"}, "lib.strings", analysis.ShapeSelect},
		{"select base", `li|b.strings`, []string{"lib"}, "lib", analysis.ShapeSelect},
		{"select dangling dot", `lib.|`, []string{"lib"}, "lib.", analysis.ShapeSelect},
		{"select in key dynamic", `{ ${a.b|} = 1; }`, []string{"a", "b"}, "a.b", analysis.ShapeSelect},
		{"ident", `x: x|`, []string{"x"}, "x", analysis.ShapeIdent},
		{"select default", `a.b or c|`, []string{"c"}, "c", analysis.ShapeIdent},
		{"dynamic select attr", `x.${y|}`, []string{"y"}, "y", analysis.ShapeIdent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f, offset := openAt(t, tt.input)

			path, ok := analysis.PathAt(nixls.PathEnclosing(f.Tree, offset), offset)
			if !ok {
				t.Fatalf("PathAt(%q) found no path", tt.input)
			}

			if diff := cmp.Diff(tt.segments, path.Segments); diff != "" {
				t.Errorf("segments (-want +got):\n%s", diff)
			}

			if got := spanText(f, path.Span); got != tt.span {
				t.Errorf("span = %q, want %q", got, tt.span)
			}

			if path.Shape != tt.shape {
				t.Errorf("shape = %v, want %v", path.Shape, tt.shape)
			}

			if len(path.Idents) != len(path.Segments) {
				t.Errorf("got %d idents for %d segments", len(path.Idents), len(path.Segments))
			}
		})
	}
}

func TestPathAt_NoPath(t *testing.T) {
	t.Parallel()

	for _, input := range []string{
		`1|`,
		`(f a).b|`,
		`"str|ing"`,
	} {
		f, offset := openAt(t, input)

		if path, ok := analysis.PathAt(nixls.PathEnclosing(f.Tree, offset), offset); ok {
			t.Errorf("PathAt(%q) = %v, want no path", input, path.Segments)
		}
	}

	if _, ok := analysis.PathAt(nil, 0); ok {
		t.Error("PathAt(nil) found a path")
	}
}

func TestDottedPath_String(t *testing.T) {
	t.Parallel()

	p := analysis.DottedPath{Segments: []string{"lib", "strings"}}

	if got := p.String(); got != "lib.strings" {
		t.Errorf("String() = %q", got)
	}

	if got := p.Last(); got != "strings" {
		t.Errorf("Last() = %q", got)
	}
}
