package analysis

import (
	"strings"

	"github.com/nixls/nixls/docs"
)

// ResultKind distinguishes namespace completion results.
type ResultKind int

// Result kinds.
const (
	// ResultGroup is an intermediate namespace such as "lib.strings".
	ResultGroup ResultKind = iota
	// ResultLeaf is a documented name.
	ResultLeaf
)

func (k ResultKind) String() string {
	if k == ResultLeaf {
		return "leaf"
	}

	return "group"
}

// NamespaceResult is one namespace completion.
type NamespaceResult struct {
	Kind ResultKind

	// Name is the text inserted: the group prefix or the entry name.
	Name string

	// Entry is set for leaves.
	Entry *docs.Entry

	Edit Edit
}

// CompleteNamespace completes path against the documentation index. The
// query is the path as written: names brought into scope by "with pkgs;" are
// not mapped back to their namespace, so "hello" inside such a with does not
// find "pkgs.hello".
func CompleteNamespace(index docs.Searcher, path DottedPath) []NamespaceResult {
	if index == nil || len(path.Segments) == 0 {
		return nil
	}

	return ClassifyCandidates(index.Search(path.String()), path)
}

// ClassifyCandidates turns candidate entries into groups and leaves. An
// entry is a leaf when only its last segment lies beyond the longest prefix
// the candidates share with path; otherwise it contributes the group of that
// prefix. Results are de-duplicated by name, first occurrence wins.
func ClassifyCandidates(candidates []docs.Entry, path DottedPath) []NamespaceResult {
	if len(candidates) == 0 {
		return nil
	}

	segments := make([][]string, len(candidates))
	matched := make([]int, len(candidates))
	longest := 0

	for i, c := range candidates {
		segments[i] = c.Segments()
		matched[i] = commonPrefix(segments[i], path.Segments)
		longest = max(longest, matched[i])
	}

	var (
		out  []NamespaceResult
		seen = make(map[string]bool)
	)

	for i := range candidates {
		if matched[i] == 0 {
			continue
		}

		prefix := segments[i][:min(longest, len(segments[i]))]

		res := NamespaceResult{Kind: ResultGroup, Name: strings.Join(prefix, ".")}
		if len(segments[i])-1 == longest {
			res = NamespaceResult{Kind: ResultLeaf, Name: candidates[i].Name, Entry: &candidates[i]}
		}

		if seen[res.Name] {
			continue
		}

		seen[res.Name] = true
		res.Edit = Edit{Span: path.Span, NewText: res.Name}
		out = append(out, res)
	}

	return out
}

func commonPrefix(a, b []string) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}

	return n
}
