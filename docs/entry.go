// Package docs is the documentation index used for namespace completion and
// hover: flat lists of qualified names with attached documentation, loaded
// from JSON dumps and searched together in configuration order.
package docs

import (
	"strings"
)

// Kind is the type of thing an entry documents.
type Kind int

// Entry kinds.
const (
	KindFunction Kind = iota
	KindOption
	KindBuiltin
)

func (k Kind) String() string {
	switch k {
	case KindFunction:
		return "function"
	case KindOption:
		return "option"
	case KindBuiltin:
		return "builtin"
	default:
		return "unknown"
	}
}

// Entry is one documented name.
type Entry struct {
	// Name is the fully qualified dotted name, e.g. "lib.strings.concatStrings".
	Name string
	Doc  string

	// Args are the argument names of a function, if known.
	Args []string

	// Type is the option type, if known.
	Type string

	// Source is the name of the sub-index the entry came from.
	Source     string
	Kind       Kind
	Deprecated bool
}

// Key identifies an entry across sub-indices.
func (e Entry) Key() string {
	return e.Source + "\x00" + e.Name
}

// Segments splits the qualified name on dots.
func (e Entry) Segments() []string {
	return strings.Split(e.Name, ".")
}

// Signature renders the arguments as "a -> b".
func (e Entry) Signature() string {
	return strings.Join(e.Args, " -> ")
}

// PrettyPrinted renders the entry as markdown.
func (e Entry) PrettyPrinted() string {
	var b strings.Builder

	b.WriteString("**")
	b.WriteString(e.Name)
	b.WriteString("**")

	if e.Source != "" {
		b.WriteString(" _(")
		b.WriteString(e.Source)
		b.WriteString(")_")
	}

	b.WriteString("\n")

	if len(e.Args) > 0 {
		b.WriteString("\n```nix\n")
		b.WriteString(e.Name)
		b.WriteString(" :: ")
		b.WriteString(e.Signature())
		b.WriteString("\n```\n")
	}

	if e.Type != "" {
		b.WriteString("\n*Type:* `")
		b.WriteString(e.Type)
		b.WriteString("`\n")
	}

	if e.Deprecated {
		b.WriteString("\n**Deprecated.**\n")
	}

	if doc := strings.TrimSpace(e.Doc); doc != "" {
		b.WriteString("\n")
		b.WriteString(doc)
		b.WriteString("\n")
	}

	return b.String()
}
