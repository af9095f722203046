// Package legality decides which rule kinds each entity kind may contain.
//
// The table is static and coarse: it mirrors which FSH rule forms make
// sense on each kind of artifact and never looks at rule content. Insert
// rules are legal nowhere, since a completed import has expanded them all.
package legality

import (
	"slices"

	"github.com/gofhir/fsh/pkg/fshtypes"
	"github.com/gofhir/fsh/pkg/issue"
)

var (
	structureRules = []fshtypes.RuleKind{
		fshtypes.RuleCard,
		fshtypes.RuleFlag,
		fshtypes.RuleBinding,
		fshtypes.RuleAssignment,
		fshtypes.RuleOnly,
		fshtypes.RuleContains,
		fshtypes.RuleCaretValue,
		fshtypes.RuleObeys,
		fshtypes.RulePath,
	}
	definitionRules = []fshtypes.RuleKind{
		fshtypes.RuleAddElement,
		fshtypes.RuleCard,
		fshtypes.RuleFlag,
		fshtypes.RuleBinding,
		fshtypes.RuleOnly,
		fshtypes.RuleCaretValue,
		fshtypes.RuleObeys,
		fshtypes.RulePath,
	}
	instanceRules = []fshtypes.RuleKind{
		fshtypes.RuleAssignment,
		fshtypes.RulePath,
	}
)

// allowed maps each entity kind to its permitted rule kinds.
var allowed = map[fshtypes.EntityKind]map[fshtypes.RuleKind]bool{
	fshtypes.KindProfile:   setOf(structureRules),
	fshtypes.KindExtension: setOf(structureRules),
	fshtypes.KindLogical:   setOf(definitionRules),
	fshtypes.KindResource:  setOf(definitionRules),
	fshtypes.KindInstance:  setOf(instanceRules),
	fshtypes.KindInvariant: setOf(instanceRules),
	fshtypes.KindValueSet: setOf([]fshtypes.RuleKind{
		fshtypes.RuleValueSetConceptComponent,
		fshtypes.RuleValueSetFilterComponent,
		fshtypes.RuleCaretValue,
		fshtypes.RuleCodeCaretValue,
	}),
	fshtypes.KindCodeSystem: setOf([]fshtypes.RuleKind{
		fshtypes.RuleConcept,
		fshtypes.RuleCaretValue,
		fshtypes.RuleCodeCaretValue,
	}),
	fshtypes.KindMapping: setOf([]fshtypes.RuleKind{
		fshtypes.RuleMapping,
		fshtypes.RulePath,
	}),
	fshtypes.KindRuleSet:      allExceptInsert(),
	fshtypes.KindParamRuleSet: allExceptInsert(),
}

func setOf(kinds []fshtypes.RuleKind) map[fshtypes.RuleKind]bool {
	m := make(map[fshtypes.RuleKind]bool, len(kinds))
	for _, k := range kinds {
		m[k] = true
	}
	return m
}

func allExceptInsert() map[fshtypes.RuleKind]bool {
	m := setOf(fshtypes.AllRuleKinds())
	delete(m, fshtypes.RuleInsert)
	return m
}

// KindAllowed reports whether rules of kind rule may appear on entities of
// kind entity.
func KindAllowed(entity fshtypes.EntityKind, rule fshtypes.RuleKind) bool {
	return allowed[entity][rule]
}

// IsAllowed reports whether r may appear on an entity of the given kind.
func IsAllowed(entity fshtypes.EntityKind, r fshtypes.Rule) bool {
	return r != nil && KindAllowed(entity, r.Kind())
}

// AllowedKinds returns the rule kinds permitted on entity, in rule kind
// order.
func AllowedKinds(entity fshtypes.EntityKind) []fshtypes.RuleKind {
	var kinds []fshtypes.RuleKind
	for k := range allowed[entity] {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}

// Violation is a rule found on an entity that may not contain it.
type Violation struct {
	Entity fshtypes.Entity
	Rule   fshtypes.Rule
}

// Check returns the rules of e that its kind does not permit, in rule
// order.
func Check(e fshtypes.Entity) []Violation {
	var out []Violation
	for _, r := range e.Base().Rules {
		if !IsAllowed(e.Kind(), r) {
			out = append(out, Violation{Entity: e, Rule: r})
		}
	}
	return out
}

// CheckDocument reports every violation in doc to sink and returns how
// many were found. A leftover insert rule is reported as unexpanded.
func CheckDocument(doc *fshtypes.Document, sink issue.Sink) int {
	n := 0
	for _, e := range doc.Entities() {
		for _, v := range Check(e) {
			n++
			span := v.Rule.SourceInfo()
			if ins, ok := v.Rule.(*fshtypes.InsertRule); ok {
				issue.Report(sink, issue.DiagInsertNotExpanded, map[string]any{"name": ins.RuleSet}, &span)
				continue
			}
			issue.Report(sink, issue.DiagRuleNotAllowed, map[string]any{
				"rule": v.Rule.Kind(),
				"path": v.Rule.RulePath(),
				"kind": e.Kind(),
				"name": e.Base().Name,
			}, &span)
		}
	}
	return n
}
