package analysis

import (
	"strings"

	"github.com/nixls/nixls"
)

// PathShape is where a dotted path was found.
type PathShape int

// Path shapes, in the order PathAt tries them.
const (
	ShapeKey PathShape = iota
	ShapeSelect
	ShapeIdent
)

// DottedPath is the dotted name under the cursor, such as "lib.strings" in
// "lib.strings.con".
type DottedPath struct {
	Segments []string

	// Idents holds the identifier of each segment.
	Idents []*nixls.Ident

	// Span is the already typed part, including a dangling trailing dot.
	Span  nixls.Span
	Shape PathShape
}

// String joins the segments with dots.
func (p DottedPath) String() string {
	return strings.Join(p.Segments, ".")
}

// Last returns the final segment.
func (p DottedPath) Last() string {
	if len(p.Segments) == 0 {
		return ""
	}

	return p.Segments[len(p.Segments)-1]
}

// PathAt extracts the dotted path at offset from the ancestor chain returned
// by nixls.PathEnclosing. The segments end with the one holding the cursor.
func PathAt(enclosing []nixls.Node, offset int) (DottedPath, bool) {
	if len(enclosing) == 0 {
		return DottedPath{}, false
	}

	if key, ok := keyAt(enclosing); ok {
		return cut(key.Attrs, offset, ShapeKey)
	}

	if sel, ok := selectAt(enclosing); ok {
		base, ok := nixls.Unparen(sel.X).(*nixls.Ident)
		if !ok || base.Missing() {
			return DottedPath{}, false
		}

		attrs := append([]nixls.Node{base}, sel.Path.Attrs...)

		return cut(attrs, offset, ShapeSelect)
	}

	if id, ok := enclosing[0].(*nixls.Ident); ok && !id.Missing() {
		return DottedPath{
			Segments: []string{id.Name},
			Idents:   []*nixls.Ident{id},
			Span:     id.Span(),
			Shape:    ShapeIdent,
		}, true
	}

	return DottedPath{}, false
}

// keyAt finds the attribute key holding the cursor. A dynamic attribute is
// an expression of its own and stops the search.
func keyAt(enclosing []nixls.Node) (*nixls.AttrPath, bool) {
	for i, n := range enclosing {
		switch n := n.(type) {
		case *nixls.Dynamic, *nixls.Interpolation:
			return nil, false
		case *nixls.AttrPath:
			if i+1 >= len(enclosing) {
				return nil, false
			}

			if kv, ok := enclosing[i+1].(*nixls.KeyValue); ok && kv.Key == n {
				return n, true
			}
		}
	}

	return nil, false
}

// selectAt finds the selection whose base or attribute path holds the
// cursor, widened to the outermost selection it is the base of.
func selectAt(enclosing []nixls.Node) (*nixls.Select, bool) {
	i := 0
	if _, ok := enclosing[0].(*nixls.Ident); ok {
		i = 1
	}

	var sel *nixls.Select

	switch n := at(enclosing, i).(type) {
	case *nixls.AttrPath:
		s, ok := at(enclosing, i+1).(*nixls.Select)
		if !ok || s.Path != n {
			return nil, false
		}

		sel, i = s, i+1
	case *nixls.Select:
		if i == 0 || n.X != enclosing[0] {
			return nil, false
		}

		sel = n
	default:
		return nil, false
	}

	for {
		outer, ok := at(enclosing, i+1).(*nixls.Select)
		if !ok || outer.X != nixls.Expr(sel) {
			return sel, true
		}

		sel, i = outer, i+1
	}
}

func at(nodes []nixls.Node, i int) nixls.Node {
	if i < 0 || i >= len(nodes) {
		return nil
	}

	return nodes[i]
}

// cut reads identifier segments from attrs up to the one holding offset.
// Placeholder and blank segments are dropped but still extend the span, so
// that "lib." covers the dot.
func cut(attrs []nixls.Node, offset int, shape PathShape) (DottedPath, bool) {
	p := DottedPath{Shape: shape}

	var end nixls.Span

	for _, a := range attrs {
		id, ok := a.(*nixls.Ident)
		if !ok {
			break
		}

		if strings.TrimSpace(id.Name) != "" {
			if len(p.Idents) == 0 {
				p.Span.Start = id.Pos
			}

			p.Segments = append(p.Segments, id.Name)
			p.Idents = append(p.Idents, id)
		}

		end = id.Span()

		if id.Span().Contains(offset) {
			break
		}
	}

	if len(p.Segments) == 0 {
		return DottedPath{}, false
	}

	p.Span.End = end.End

	return p, true
}
