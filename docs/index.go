package docs

import (
	"strings"

	"golang.org/x/text/cases"
)

// Searcher finds entries whose name contains a query.
type Searcher interface {
	// Search returns matching entries in a deterministic order. The query is
	// matched case-insensitively as a substring of the qualified name.
	Search(query string) []Entry
}

// Index is one sub-index, searched in file order.
type Index struct {
	name    string
	entries []Entry
	folded  []string
}

// NewIndex builds an index over entries. Entry sources are set to name.
func NewIndex(name string, entries []Entry) *Index {
	idx := &Index{
		name:    name,
		entries: make([]Entry, len(entries)),
		folded:  make([]string, len(entries)),
	}

	for i, e := range entries {
		e.Source = name
		idx.entries[i] = e
		idx.folded[i] = fold(e.Name)
	}

	return idx
}

// Name returns the index name.
func (i *Index) Name() string {
	return i.name
}

// Len returns the number of entries.
func (i *Index) Len() int {
	return len(i.entries)
}

// Entries returns all entries in file order.
func (i *Index) Entries() []Entry {
	return i.entries
}

// Search implements Searcher.
func (i *Index) Search(query string) []Entry {
	q := fold(query)

	var out []Entry

	for j, name := range i.folded {
		if strings.Contains(name, q) {
			out = append(out, i.entries[j])
		}
	}

	return out
}

// Aggregate searches several sub-indices in order. Results may contain the
// same name more than once when sub-indices overlap.
type Aggregate struct {
	indices []Searcher
}

// NewAggregate combines sub-indices, searched in the order given.
func NewAggregate(indices ...Searcher) *Aggregate {
	return &Aggregate{indices: indices}
}

// Search implements Searcher.
func (a *Aggregate) Search(query string) []Entry {
	if a == nil {
		return nil
	}

	var out []Entry

	for _, idx := range a.indices {
		out = append(out, idx.Search(query)...)
	}

	return out
}

// Len returns the number of sub-indices.
func (a *Aggregate) Len() int {
	if a == nil {
		return 0
	}

	return len(a.indices)
}

// fold normalizes s for case-insensitive matching. A Caser is not safe for
// concurrent use, so each call gets its own.
func fold(s string) string {
	return cases.Fold().String(s)
}
