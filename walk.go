package nixls

// Children returns the direct children of n in source order.
func Children(n Node) []Node {
	var out []Node

	add := func(c Node) {
		if c == nil {
			return
		}

		out = append(out, c)
	}

	switch n := n.(type) {
	case *File:
		if n.Expr != nil {
			add(n.Expr)
		}
	case *StringLit:
		for _, p := range n.Parts {
			add(p)
		}
	case *Interpolation:
		add(n.X)
	case *Dynamic:
		add(n.X)
	case *AttrPath:
		for _, a := range n.Attrs {
			add(a)
		}
	case *KeyValue:
		add(n.Key)
		add(n.Value)
	case *Inherit:
		if n.From != nil {
			add(n.From)
		}

		for _, name := range n.Names {
			add(name)
		}
	case *AttrSet:
		for _, e := range n.Entries {
			add(e)
		}
	case *LetIn:
		for _, e := range n.Entries {
			add(e)
		}

		add(n.Body)
	case *Lambda:
		if n.Param != nil {
			add(n.Param)
		}

		if n.Pattern != nil {
			add(n.Pattern)
		}

		add(n.Body)
	case *Pattern:
		for _, e := range n.Entries {
			add(e)
		}

		if n.Bind != nil {
			add(n.Bind)
		}
	case *PatEntry:
		add(n.Name)

		if n.Default != nil {
			add(n.Default)
		}
	case *Apply:
		add(n.Fn)
		add(n.Arg)
	case *Select:
		add(n.X)
		add(n.Path)

		if n.Default != nil {
			add(n.Default)
		}
	case *HasAttr:
		add(n.X)
		add(n.Path)
	case *With:
		add(n.Namespace)
		add(n.Body)
	case *Assert:
		add(n.Cond)
		add(n.Body)
	case *If:
		add(n.Cond)
		add(n.Then)
		add(n.Else)
	case *List:
		for _, item := range n.Items {
			add(item)
		}
	case *BinaryExpr:
		add(n.X)
		add(n.Y)
	case *UnaryExpr:
		add(n.X)
	case *Paren:
		add(n.X)
	case *Ident, *Literal, *PathLit, *StringText, *BadExpr:
	}

	return out
}

// Inspect traverses the tree rooted at n in depth-first order. If f returns
// false, the children of the node are skipped.
func Inspect(n Node, f func(Node) bool) {
	if n == nil || !f(n) {
		return
	}

	for _, c := range Children(n) {
		Inspect(c, f)
	}
}

// PathEnclosing returns the nodes containing offset, innermost first and
// ending with root. Spans are treated as inclusive of their end so that a
// cursor right after an identifier still selects it; when two siblings touch
// at offset, the earlier one wins.
func PathEnclosing(root Node, offset int) []Node {
	if root == nil {
		return nil
	}

	var path []Node

	n := root
	if _, isFile := n.(*File); !isFile && !n.Span().Contains(offset) {
		return nil
	}

	for n != nil {
		path = append(path, n)

		var next Node

		for _, c := range Children(n) {
			if c.Span().Contains(offset) {
				next = c

				break
			}
		}

		n = next
	}

	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}

	return path
}
