package analysis

import (
	"errors"
	"strings"

	"github.com/nixls/nixls"
	"github.com/nixls/nixls/module"
)

// Diagnostic represents an error or warning found during analysis.
type Diagnostic struct {
	Span     nixls.Span
	Severity DiagnosticSeverity
	Message  string
	Code     string // e.g., "parse-error", "unused-binding"
	Source   string // "nixls"
}

// DiagnosticSeverity indicates the severity of a diagnostic.
type DiagnosticSeverity int

// Diagnostic severity constants.
const (
	SeverityError DiagnosticSeverity = iota + 1
	SeverityWarning
	SeverityInformation
	SeverityHint
)

// Pass is one run of the rules over a file.
type Pass struct {
	File *module.File

	// Registry resolves imports. Rules that need it are skipped when nil.
	Registry *module.Registry

	Diagnostics []Diagnostic
}

// Report appends a diagnostic.
func (p *Pass) Report(rule *Rule, span nixls.Span, message string) {
	p.Diagnostics = append(p.Diagnostics, Diagnostic{
		Span:     span,
		Severity: rule.Severity,
		Message:  message,
		Code:     rule.Name,
		Source:   "nixls",
	})
}

// Rule represents a semantic analysis check.
// Inspired by go/analysis.Analyzer pattern.
type Rule struct {
	// Name is a short identifier for the rule (used in diagnostic codes).
	Name string

	// Doc is a brief description of what the rule checks.
	Doc string

	// Severity is the default severity for diagnostics from this rule.
	Severity DiagnosticSeverity

	// Run executes the rule, reporting into the pass.
	Run func(r *Rule, p *Pass)
}

// DefaultRules returns all built-in rules.
func DefaultRules() []*Rule {
	return []*Rule{
		// Error-level checks.
		parseErrorRule,
		duplicateAttributeRule,

		// Warning-level checks.
		missingImportRule,

		// Hint-level checks.
		unusedBindingRule,
	}
}

// Diagnose runs rules over f.
func Diagnose(f *module.File, registry *module.Registry, rules []*Rule) []Diagnostic {
	p := &Pass{File: f, Registry: registry}

	for _, r := range rules {
		r.Run(r, p)
	}

	return p.Diagnostics
}

// ----------------------------------------------------------------------------
// Rule: parse-error
// ----------------------------------------------------------------------------

var parseErrorRule = &Rule{
	Name:     "parse-error",
	Doc:      "Reports syntax errors.",
	Severity: SeverityError,
	Run:      checkParseErrors,
}

func checkParseErrors(r *Rule, p *Pass) {
	for _, err := range p.File.Errors {
		p.Report(r, err.Span, err.Message)
	}
}

// ----------------------------------------------------------------------------
// Rule: duplicate-attribute
// ----------------------------------------------------------------------------

var duplicateAttributeRule = &Rule{
	Name:     "duplicate-attribute",
	Doc:      "Reports attributes defined twice in the same set or let.",
	Severity: SeverityError,
	Run:      checkDuplicateAttributes,
}

func checkDuplicateAttributes(r *Rule, p *Pass) {
	nixls.Inspect(p.File.Tree, func(n nixls.Node) bool {
		switch n := n.(type) {
		case *nixls.AttrSet:
			checkDuplicateEntries(r, p, n.Entries)
		case *nixls.LetIn:
			checkDuplicateEntries(r, p, n.Entries)
		}

		return true
	})
}

func checkDuplicateEntries(r *Rule, p *Pass, entries []nixls.Entry) {
	seen := make(map[string]bool)

	check := func(name string, span nixls.Span) {
		if seen[name] {
			p.Report(r, span, "attribute '"+name+"' already defined")

			return
		}

		seen[name] = true
	}

	for _, e := range entries {
		switch e := e.(type) {
		case *nixls.KeyValue:
			if name, ok := staticKey(e.Key); ok {
				check(name, e.Key.Span())
			}
		case *nixls.Inherit:
			for _, n := range e.Names {
				if name, ok := nixls.AttrName(n); ok {
					check(name, n.Span())
				}
			}
		}
	}
}

// staticKey joins the names of a key whose segments are all static.
func staticKey(key *nixls.AttrPath) (string, bool) {
	if key == nil || len(key.Attrs) == 0 {
		return "", false
	}

	names := make([]string, len(key.Attrs))

	for i, a := range key.Attrs {
		name, ok := nixls.AttrName(a)
		if !ok {
			return "", false
		}

		names[i] = name
	}

	return strings.Join(names, "."), true
}

// ----------------------------------------------------------------------------
// Rule: missing-import
// ----------------------------------------------------------------------------

var missingImportRule = &Rule{
	Name:     "missing-import",
	Doc:      "Reports imports of files that do not exist.",
	Severity: SeverityWarning,
	Run:      checkMissingImports,
}

func checkMissingImports(r *Rule, p *Pass) {
	if p.Registry == nil {
		return
	}

	for _, imp := range module.Imports(p.File) {
		if imp.Target == "" {
			continue
		}

		_, err := p.Registry.LoadFrom(imp.Target, p.File.URI)
		if errors.Is(err, module.ErrFileNotFound) {
			p.Report(r, imp.Path.Span(), "imported file not found: "+module.URIToPath(imp.Target))
		}
	}
}

// ----------------------------------------------------------------------------
// Rule: unused-binding
// ----------------------------------------------------------------------------

var unusedBindingRule = &Rule{
	Name:     "unused-binding",
	Doc:      "Reports let bindings that are never referenced.",
	Severity: SeverityHint,
	Run:      checkUnusedBindings,
}

func checkUnusedBindings(r *Rule, p *Pass) {
	nixls.Inspect(p.File.Tree, func(n nixls.Node) bool {
		let, ok := n.(*nixls.LetIn)
		if !ok {
			return true
		}

		checked := make(map[string]bool)

		for _, e := range let.Entries {
			kv, ok := e.(*nixls.KeyValue)
			if !ok || kv.Key == nil || len(kv.Key.Attrs) == 0 {
				continue
			}

			name, ok := nixls.AttrName(kv.Key.Attrs[0])
			if !ok || checked[name] || strings.HasPrefix(name, "_") {
				continue
			}

			checked[name] = true

			o := &occurrences{name: name, root: let}
			o.visit(let)

			if len(o.spans) == 0 {
				p.Report(r, kv.Key.Attrs[0].Span(), "unused binding '"+name+"'")
			}
		}

		return true
	})
}
