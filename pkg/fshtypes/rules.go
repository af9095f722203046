package fshtypes

import (
	"slices"

	"github.com/gofhir/fhir/r4"

	"github.com/gofhir/fsh/pkg/location"
)

// RuleKind identifies a Rule variant.
type RuleKind int

// Rule kinds. Each has exactly one implementing type.
const (
	RuleCard RuleKind = iota + 1
	RuleFlag
	RuleBinding
	RuleAssignment
	RuleOnly
	RuleContains
	RuleCaretValue
	RuleCodeCaretValue
	RuleObeys
	RuleMapping
	RuleInsert
	RuleAddElement
	RulePath
	RuleConcept
	RuleValueSetConceptComponent
	RuleValueSetFilterComponent
)

var ruleKindNames = map[RuleKind]string{
	RuleCard:                     "CardRule",
	RuleFlag:                     "FlagRule",
	RuleBinding:                  "BindingRule",
	RuleAssignment:               "AssignmentRule",
	RuleOnly:                     "OnlyRule",
	RuleContains:                 "ContainsRule",
	RuleCaretValue:               "CaretValueRule",
	RuleCodeCaretValue:           "CodeCaretValueRule",
	RuleObeys:                    "ObeysRule",
	RuleMapping:                  "MappingRule",
	RuleInsert:                   "InsertRule",
	RuleAddElement:               "AddElementRule",
	RulePath:                     "PathRule",
	RuleConcept:                  "ConceptRule",
	RuleValueSetConceptComponent: "ValueSetConceptComponentRule",
	RuleValueSetFilterComponent:  "ValueSetFilterComponentRule",
}

// String returns the rule type name.
func (k RuleKind) String() string {
	if name, ok := ruleKindNames[k]; ok {
		return name
	}
	return "UnknownRule"
}

// AllRuleKinds returns every rule kind in declaration order.
func AllRuleKinds() []RuleKind {
	kinds := make([]RuleKind, 0, len(ruleKindNames))
	for k := RuleCard; k <= RuleValueSetFilterComponent; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

// Rule is one line of an entity body. The set of implementations is
// closed: every variant is declared in this file.
type Rule interface {
	Kind() RuleKind
	// RulePath returns the element path the rule applies to, which is
	// empty for rules on the entity root and for code-path rules.
	RulePath() string
	SourceInfo() location.Span
	clone() Rule
}

// CloneRule returns a deep copy of r, so the copy's paths and slices may
// be modified without affecting r.
func CloneRule(r Rule) Rule {
	return r.clone()
}

// CloneRules clones every rule in rules.
func CloneRules(rules []Rule) []Rule {
	out := make([]Rule, len(rules))
	for i, r := range rules {
		out[i] = r.clone()
	}
	return out
}

// SetRulePath rewrites the path of a path-based rule. It reports false for
// rules without an element path (concepts, code caret rules, components).
func SetRulePath(r Rule, path string) bool {
	switch rule := r.(type) {
	case *CardRule:
		rule.Path = path
	case *FlagRule:
		rule.Path = path
	case *BindingRule:
		rule.Path = path
	case *AssignmentRule:
		rule.Path = path
	case *OnlyRule:
		rule.Path = path
	case *ContainsRule:
		rule.Path = path
	case *CaretValueRule:
		rule.Path = path
	case *ObeysRule:
		rule.Path = path
	case *MappingRule:
		rule.Path = path
	case *InsertRule:
		rule.Path = path
	case *AddElementRule:
		rule.Path = path
	case *PathRule:
		rule.Path = path
	default:
		return false
	}
	return true
}

// SetRuleSource rewrites the source location of r.
func SetRuleSource(r Rule, span location.Span) {
	switch rule := r.(type) {
	case *CardRule:
		rule.Source = span
	case *FlagRule:
		rule.Source = span
	case *BindingRule:
		rule.Source = span
	case *AssignmentRule:
		rule.Source = span
	case *OnlyRule:
		rule.Source = span
	case *ContainsRule:
		rule.Source = span
	case *CaretValueRule:
		rule.Source = span
	case *CodeCaretValueRule:
		rule.Source = span
	case *ObeysRule:
		rule.Source = span
	case *MappingRule:
		rule.Source = span
	case *InsertRule:
		rule.Source = span
	case *AddElementRule:
		rule.Source = span
	case *PathRule:
		rule.Source = span
	case *ConceptRule:
		rule.Source = span
	case *ValueSetConceptComponentRule:
		rule.Source = span
	case *ValueSetFilterComponentRule:
		rule.Source = span
	}
}

// --- Path rules ---

// CardRule constrains an element's cardinality. A nil Min or empty Max
// means that bound was not written.
type CardRule struct {
	Path   string
	Min    *int
	Max    string
	Source location.Span
}

// Kind implements Rule.
func (*CardRule) Kind() RuleKind { return RuleCard }

// RulePath implements Rule.
func (r *CardRule) RulePath() string { return r.Path }

// SourceInfo implements Rule.
func (r *CardRule) SourceInfo() location.Span { return r.Source }

func (r *CardRule) clone() Rule {
	c := *r
	if r.Min != nil {
		m := *r.Min
		c.Min = &m
	}
	return &c
}

// Flag is one FSH element flag.
type Flag string

// Flags.
const (
	FlagMustSupport Flag = "MS"
	FlagSummary     Flag = "SU"
	FlagModifier    Flag = "?!"
	FlagTrialUse    Flag = "TU"
	FlagNormative   Flag = "N"
	FlagDraft       Flag = "D"
)

// ParseFlag converts flag text to a Flag.
func ParseFlag(s string) (Flag, bool) {
	switch f := Flag(s); f {
	case FlagMustSupport, FlagSummary, FlagModifier, FlagTrialUse, FlagNormative, FlagDraft:
		return f, true
	}
	return "", false
}

// FlagSet holds the flags applied to an element.
type FlagSet struct {
	MustSupport bool
	Summary     bool
	Modifier    bool
	TrialUse    bool
	Normative   bool
	Draft       bool
}

// Apply sets each flag in order. TrialUse, Normative and Draft are
// mutually exclusive standards statuses: the last one applied wins.
func (fs *FlagSet) Apply(flags ...Flag) {
	for _, f := range flags {
		switch f {
		case FlagMustSupport:
			fs.MustSupport = true
		case FlagSummary:
			fs.Summary = true
		case FlagModifier:
			fs.Modifier = true
		case FlagTrialUse, FlagNormative, FlagDraft:
			fs.TrialUse = f == FlagTrialUse
			fs.Normative = f == FlagNormative
			fs.Draft = f == FlagDraft
		}
	}
}

// Empty reports whether no flag is set.
func (fs FlagSet) Empty() bool {
	return fs == FlagSet{}
}

// FlagRule applies flags to an element.
type FlagRule struct {
	Path string
	FlagSet
	Source location.Span
}

// Kind implements Rule.
func (*FlagRule) Kind() RuleKind { return RuleFlag }

// RulePath implements Rule.
func (r *FlagRule) RulePath() string { return r.Path }

// SourceInfo implements Rule.
func (r *FlagRule) SourceInfo() location.Span { return r.Source }

func (r *FlagRule) clone() Rule {
	c := *r
	return &c
}

// DefaultBindingStrength is used when a binding rule names no strength.
const DefaultBindingStrength = r4.BindingStrengthRequired

// ParseBindingStrength validates a binding strength keyword.
func ParseBindingStrength(s string) (r4.BindingStrength, bool) {
	switch s {
	case "example", "preferred", "extensible", "required":
		return r4.BindingStrength(s), true
	}
	return "", false
}

// BindingRule binds an element to a value set.
type BindingRule struct {
	Path     string
	ValueSet string
	Strength r4.BindingStrength
	Source   location.Span
}

// Kind implements Rule.
func (*BindingRule) Kind() RuleKind { return RuleBinding }

// RulePath implements Rule.
func (r *BindingRule) RulePath() string { return r.Path }

// SourceInfo implements Rule.
func (r *BindingRule) SourceInfo() location.Span { return r.Source }

func (r *BindingRule) clone() Rule {
	c := *r
	return &c
}

// AssignmentRule assigns a literal value to an element. IsInstance is set
// when the value is a bare identifier naming an Instance.
type AssignmentRule struct {
	Path       string
	Value      Value
	Exactly    bool
	IsInstance bool
	Source     location.Span
}

// Kind implements Rule.
func (*AssignmentRule) Kind() RuleKind { return RuleAssignment }

// RulePath implements Rule.
func (r *AssignmentRule) RulePath() string { return r.Path }

// SourceInfo implements Rule.
func (r *AssignmentRule) SourceInfo() location.Span { return r.Source }

func (r *AssignmentRule) clone() Rule {
	c := *r
	return &c
}

// OnlyRuleType is one allowed type of an only rule.
type OnlyRuleType struct {
	Type                string
	IsReference         bool
	IsCanonical         bool
	IsCodeableReference bool
}

// OnlyRule restricts an element's types.
type OnlyRule struct {
	Path   string
	Types  []OnlyRuleType
	Source location.Span
}

// Kind implements Rule.
func (*OnlyRule) Kind() RuleKind { return RuleOnly }

// RulePath implements Rule.
func (r *OnlyRule) RulePath() string { return r.Path }

// SourceInfo implements Rule.
func (r *OnlyRule) SourceInfo() location.Span { return r.Source }

func (r *OnlyRule) clone() Rule {
	c := *r
	c.Types = slices.Clone(r.Types)
	return &c
}

// ContainsRuleItem is one slice named by a contains rule. Type is set when
// the item was written "Type named slice".
type ContainsRuleItem struct {
	Name string
	Type string
}

// ContainsRule declares slices on an element.
type ContainsRule struct {
	Path   string
	Items  []ContainsRuleItem
	Source location.Span
}

// Kind implements Rule.
func (*ContainsRule) Kind() RuleKind { return RuleContains }

// RulePath implements Rule.
func (r *ContainsRule) RulePath() string { return r.Path }

// SourceInfo implements Rule.
func (r *ContainsRule) SourceInfo() location.Span { return r.Source }

func (r *ContainsRule) clone() Rule {
	c := *r
	c.Items = slices.Clone(r.Items)
	return &c
}

// CaretValueRule sets a value on the definition of an element, or on the
// entity itself when Path is empty.
type CaretValueRule struct {
	Path       string
	CaretPath  string
	Value      Value
	IsInstance bool
	Source     location.Span
}

// Kind implements Rule.
func (*CaretValueRule) Kind() RuleKind { return RuleCaretValue }

// RulePath implements Rule.
func (r *CaretValueRule) RulePath() string { return r.Path }

// SourceInfo implements Rule.
func (r *CaretValueRule) SourceInfo() location.Span { return r.Source }

func (r *CaretValueRule) clone() Rule {
	c := *r
	return &c
}

// CodeCaretValueRule sets a value on a concept identified by a hierarchical
// code path.
type CodeCaretValueRule struct {
	CodePath   []string
	CaretPath  string
	Value      Value
	IsInstance bool
	Source     location.Span
}

// Kind implements Rule.
func (*CodeCaretValueRule) Kind() RuleKind { return RuleCodeCaretValue }

// RulePath implements Rule.
func (*CodeCaretValueRule) RulePath() string { return "" }

// SourceInfo implements Rule.
func (r *CodeCaretValueRule) SourceInfo() location.Span { return r.Source }

func (r *CodeCaretValueRule) clone() Rule {
	c := *r
	c.CodePath = slices.Clone(r.CodePath)
	return &c
}

// ObeysRule applies one invariant to an element.
type ObeysRule struct {
	Path      string
	Invariant string
	Source    location.Span
}

// Kind implements Rule.
func (*ObeysRule) Kind() RuleKind { return RuleObeys }

// RulePath implements Rule.
func (r *ObeysRule) RulePath() string { return r.Path }

// SourceInfo implements Rule.
func (r *ObeysRule) SourceInfo() location.Span { return r.Source }

func (r *ObeysRule) clone() Rule {
	c := *r
	return &c
}

// MappingRule maps an element to a target in a Mapping.
type MappingRule struct {
	Path     string
	Map      string
	Comment  string
	Language *FshCode
	Source   location.Span
}

// Kind implements Rule.
func (*MappingRule) Kind() RuleKind { return RuleMapping }

// RulePath implements Rule.
func (r *MappingRule) RulePath() string { return r.Path }

// SourceInfo implements Rule.
func (r *MappingRule) SourceInfo() location.Span { return r.Source }

func (r *MappingRule) clone() Rule {
	c := *r
	return &c
}

// InsertRule references a RuleSet to splice in. Params is nil for a plain
// RuleSet. InsertRules never survive a completed import.
type InsertRule struct {
	Path     string
	CodePath []string
	RuleSet  string
	Params   []string
	Source   location.Span
}

// Kind implements Rule.
func (*InsertRule) Kind() RuleKind { return RuleInsert }

// RulePath implements Rule.
func (r *InsertRule) RulePath() string { return r.Path }

// SourceInfo implements Rule.
func (r *InsertRule) SourceInfo() location.Span { return r.Source }

func (r *InsertRule) clone() Rule {
	c := *r
	c.CodePath = slices.Clone(r.CodePath)
	c.Params = slices.Clone(r.Params)
	return &c
}

// IsParameterized reports whether the insert passes arguments.
func (r *InsertRule) IsParameterized() bool {
	return r.Params != nil
}

// AddElementRule adds a new element to a Logical model or Resource. Either
// Types or ContentReference is set.
type AddElementRule struct {
	Path             string
	Min              int
	Max              string
	Flags            FlagSet
	Types            []OnlyRuleType
	ContentReference string
	Short            string
	Definition       string
	Source           location.Span
}

// Kind implements Rule.
func (*AddElementRule) Kind() RuleKind { return RuleAddElement }

// RulePath implements Rule.
func (r *AddElementRule) RulePath() string { return r.Path }

// SourceInfo implements Rule.
func (r *AddElementRule) SourceInfo() location.Span { return r.Source }

func (r *AddElementRule) clone() Rule {
	c := *r
	c.Types = slices.Clone(r.Types)
	return &c
}

// PathRule names a path without changing it. It establishes the context
// for indented rules that follow.
type PathRule struct {
	Path   string
	Source location.Span
}

// Kind implements Rule.
func (*PathRule) Kind() RuleKind { return RulePath }

// RulePath implements Rule.
func (r *PathRule) RulePath() string { return r.Path }

// SourceInfo implements Rule.
func (r *PathRule) SourceInfo() location.Span { return r.Source }

func (r *PathRule) clone() Rule {
	c := *r
	return &c
}

// --- Terminology rules ---

// ConceptRule declares a concept in a CodeSystem. Hierarchy lists the
// ancestor codes, outermost first. System is only ever set on concepts
// written inside a RuleSet, where the rule may end up in a ValueSet.
type ConceptRule struct {
	Code       string
	Display    string
	Definition string
	Hierarchy  []string
	System     string
	Source     location.Span
}

// Kind implements Rule.
func (*ConceptRule) Kind() RuleKind { return RuleConcept }

// RulePath implements Rule.
func (*ConceptRule) RulePath() string { return "" }

// SourceInfo implements Rule.
func (r *ConceptRule) SourceInfo() location.Span { return r.Source }

func (r *ConceptRule) clone() Rule {
	c := *r
	c.Hierarchy = slices.Clone(r.Hierarchy)
	return &c
}

// ValueSetComponentFrom is the "from" clause of a ValueSet component.
type ValueSetComponentFrom struct {
	System    string
	ValueSets []string
}

// Equal compares two from clauses; value set lists compare as sets.
func (f ValueSetComponentFrom) Equal(other ValueSetComponentFrom) bool {
	if f.System != other.System || len(f.ValueSets) != len(other.ValueSets) {
		return false
	}
	a := slices.Clone(f.ValueSets)
	b := slices.Clone(other.ValueSets)
	slices.Sort(a)
	slices.Sort(b)
	return slices.Equal(a, b)
}

// ValueSetConceptComponentRule includes or excludes listed concepts.
type ValueSetConceptComponentRule struct {
	Inclusion bool
	From      ValueSetComponentFrom
	Concepts  []*FshCode
	Source    location.Span
}

// Kind implements Rule.
func (*ValueSetConceptComponentRule) Kind() RuleKind { return RuleValueSetConceptComponent }

// RulePath implements Rule.
func (*ValueSetConceptComponentRule) RulePath() string { return "" }

// SourceInfo implements Rule.
func (r *ValueSetConceptComponentRule) SourceInfo() location.Span { return r.Source }

func (r *ValueSetConceptComponentRule) clone() Rule {
	c := *r
	c.From.ValueSets = slices.Clone(r.From.ValueSets)
	c.Concepts = slices.Clone(r.Concepts)
	return &c
}

// FilterOperator is a ValueSet filter operator.
type FilterOperator string

// Filter operators.
const (
	FilterEquals       FilterOperator = "="
	FilterIsA          FilterOperator = "is-a"
	FilterDescendentOf FilterOperator = "descendent-of"
	FilterIsNotA       FilterOperator = "is-not-a"
	FilterRegex        FilterOperator = "regex"
	FilterIn           FilterOperator = "in"
	FilterNotIn        FilterOperator = "not-in"
	FilterGeneralizes  FilterOperator = "generalizes"
	FilterExists       FilterOperator = "exists"
)

// ParseFilterOperator validates a filter operator.
func ParseFilterOperator(s string) (FilterOperator, bool) {
	switch op := FilterOperator(s); op {
	case FilterEquals, FilterIsA, FilterDescendentOf, FilterIsNotA, FilterRegex,
		FilterIn, FilterNotIn, FilterGeneralizes, FilterExists:
		return op, true
	}
	return "", false
}

// ValueSetFilter is one "property operator value" filter. Value is nil when
// the filter names no value. IsRegex marks a /regex/ value held as a
// StringValue.
type ValueSetFilter struct {
	Property string
	Operator FilterOperator
	Value    Value
	IsRegex  bool
}

// ValueSetFilterComponentRule includes or excludes codes by filter.
type ValueSetFilterComponentRule struct {
	Inclusion bool
	From      ValueSetComponentFrom
	Filters   []ValueSetFilter
	Source    location.Span
}

// Kind implements Rule.
func (*ValueSetFilterComponentRule) Kind() RuleKind { return RuleValueSetFilterComponent }

// RulePath implements Rule.
func (*ValueSetFilterComponentRule) RulePath() string { return "" }

// SourceInfo implements Rule.
func (r *ValueSetFilterComponentRule) SourceInfo() location.Span { return r.Source }

func (r *ValueSetFilterComponentRule) clone() Rule {
	c := *r
	c.From.ValueSets = slices.Clone(r.From.ValueSets)
	c.Filters = slices.Clone(r.Filters)
	return &c
}
