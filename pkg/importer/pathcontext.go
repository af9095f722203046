package importer

import (
	"github.com/gofhir/fsh/pkg/issue"
	"github.com/gofhir/fsh/pkg/parser"
)

// contextEntry is what a rule contributes to the rules indented below it:
// an element path, a code path, or both.
type contextEntry struct {
	path  string
	codes []string
}

// pathContext tracks the context entries of the enclosing rules, one per
// indentation level.
type pathContext struct {
	stack []contextEntry
}

// enter resolves the parent of a rule indented indent columns. It returns
// the parent entry and the rule's level. A rule whose indent is not a
// multiple of two, or which is indented deeper than one level below its
// predecessor, is reported and treated as a top-level rule.
func (pc *pathContext) enter(v *visitor, base *parser.RuleBase) (contextEntry, int) {
	indent := base.Indent
	if indent%2 != 0 {
		v.report(issue.DiagInvalidIndent, map[string]any{"indent": indent}, base.Span)
		return contextEntry{}, 0
	}
	level := indent / 2
	if level > len(pc.stack) {
		v.report(issue.DiagMissingContext, map[string]any{"indent": indent, "parent": indent - 2}, base.Span)
		return contextEntry{}, 0
	}
	if level == 0 {
		return contextEntry{}, 0
	}
	return pc.stack[level-1], level
}

// set records the entry established by the rule at level, discarding the
// entries of deeper levels.
func (pc *pathContext) set(level int, entry contextEntry) {
	pc.stack = append(pc.stack[:level], entry)
}

// joinPath prefixes child with the context path. "." names the context
// element itself.
func joinPath(parent, child string) string {
	switch {
	case parent == "":
		return child
	case child == "" || child == ".":
		return parent
	}
	return parent + "." + child
}

func joinCodes(parent, child []string) []string {
	if len(parent) == 0 && len(child) == 0 {
		return nil
	}
	out := make([]string, 0, len(parent)+len(child))
	out = append(out, parent...)
	return append(out, child...)
}
