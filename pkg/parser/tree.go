package parser

import (
	"github.com/gofhir/fsh/pkg/issue"
	"github.com/gofhir/fsh/pkg/location"
)

// File is the parse tree of one FSH source file.
type File struct {
	Path   string
	Source []byte
	Decls  []Decl

	// Diagnostics holds the syntax errors and deprecation warnings found
	// while lexing and parsing.
	Diagnostics []issue.Issue
}

// Decl is a top-level declaration: *AliasDecl, *EntityDecl or
// *ParamRuleSetDecl.
type Decl interface {
	DeclSpan() location.Span
	declNode()
}

// AliasDecl is "Alias: Name = Value".
type AliasDecl struct {
	Name      string
	NameSpan  location.Span
	Value     string
	ValueSpan location.Span
	Span      location.Span
}

// DeclSpan implements Decl.
func (d *AliasDecl) DeclSpan() location.Span { return d.Span }
func (*AliasDecl) declNode()                 {}

// EntityDecl is any entity other than a parameterized RuleSet. Keyword is
// the entity keyword without its colon, e.g. "Profile".
type EntityDecl struct {
	Keyword  string
	Name     string
	NameSpan location.Span
	Metadata []*MetadataNode
	Rules    []RuleNode
	Span     location.Span
}

// DeclSpan implements Decl.
func (d *EntityDecl) DeclSpan() location.Span { return d.Span }
func (*EntityDecl) declNode()                 {}

// ParamRuleSetDecl is "RuleSet: Name(p1, p2)" followed by its raw body.
type ParamRuleSetDecl struct {
	Name       string
	Parameters []string
	Body       string
	BodySpan   location.Span
	Span       location.Span
}

// DeclSpan implements Decl.
func (d *ParamRuleSetDecl) DeclSpan() location.Span { return d.Span }
func (*ParamRuleSetDecl) declNode()                 {}

// MetadataItem is one entry of a list-valued metadata field (Context,
// Characteristics).
type MetadataItem struct {
	Value  string
	Quoted bool
	Span   location.Span
}

// MetadataNode is one "Key: value" line of an entity header. Value is set
// for single-valued keys; Items for list-valued keys.
type MetadataNode struct {
	Key   string
	Value Token
	Items []MetadataItem
	Span  location.Span
}

// RuleBase holds what every rule node shares. Indent is the zero-based
// column of the rule's star.
type RuleBase struct {
	Indent int
	Span   location.Span
}

// Base returns the shared rule attributes.
func (b *RuleBase) Base() *RuleBase { return b }

// RuleNode is one "*" line. The set of implementations is closed.
type RuleNode interface {
	Base() *RuleBase
	ruleNode()
}

// CardRuleNode is "* path min..max flags".
type CardRuleNode struct {
	RuleBase
	Path  string
	Card  string
	Flags []string
}

// FlagRuleNode is "* path and path flags".
type FlagRuleNode struct {
	RuleBase
	Paths []string
	Flags []string
}

// ValueSetRuleNode is "* path from ValueSet (strength)".
type ValueSetRuleNode struct {
	RuleBase
	Path     string
	ValueSet string
	Strength string
}

// FixedValueRuleNode is "* path = value (exactly)". Path may be empty.
type FixedValueRuleNode struct {
	RuleBase
	Path    string
	Value   *ValueNode
	Exactly bool
}

// ContainsItemNode is one item of a contains rule.
type ContainsItemNode struct {
	Name  string
	Named string
	Card  string
	Flags []string
}

// ContainsRuleNode is "* path contains a 0..1 and b 1..*".
type ContainsRuleNode struct {
	RuleBase
	Path  string
	Items []ContainsItemNode
}

// TargetType is one type named by an only rule or an added element.
type TargetType struct {
	Name                string
	IsReference         bool
	IsCanonical         bool
	IsCodeableReference bool
}

// OnlyRuleNode is "* path only Type or Reference(A or B)".
type OnlyRuleNode struct {
	RuleBase
	Path  string
	Types []TargetType
}

// ObeysRuleNode is "* path obeys inv-1 and inv-2". Path may be empty.
type ObeysRuleNode struct {
	RuleBase
	Path       string
	Invariants []string
}

// CaretValueRuleNode is "* path ^caret = value". Path may be empty.
type CaretValueRuleNode struct {
	RuleBase
	Path      string
	CaretPath string
	Value     *ValueNode
}

// CodeCaretValueRuleNode is "* #a #b ^caret = value".
type CodeCaretValueRuleNode struct {
	RuleBase
	Codes     []Token
	CaretPath string
	Value     *ValueNode
}

// MappingRuleNode is "* path -> "target" "comment" #language".
type MappingRuleNode struct {
	RuleBase
	Path     string
	Target   Token
	Comment  *Token
	Language *Token
}

// InsertRuleNode is "* path insert Name(args)" or "* #a insert Name".
type InsertRuleNode struct {
	RuleBase
	Path    string
	Codes   []Token
	RuleSet string
	Args    string
	HasArgs bool
	RefSpan location.Span
}

// AddElementRuleNode is "* path min..max flags Type "short" "definition""
// or, with ContentReference set, "* path min..max contentReference #id ...".
type AddElementRuleNode struct {
	RuleBase
	Path             string
	Card             string
	Flags            []string
	Types            []TargetType
	ContentReference string
	Short            *Token
	Definition       *Token
}

// PathRuleNode is "* path".
type PathRuleNode struct {
	RuleBase
	Path string
}

// ConceptRuleNode is "* #parent #code "display" "definition"".
type ConceptRuleNode struct {
	RuleBase
	Codes      []Token
	Display    *Token
	Definition *Token
}

// FilterNode is one "property operator value" filter.
type FilterNode struct {
	Property string
	Operator string
	Value    *ValueNode
	Span     location.Span
}

// VsComponentNode is a ValueSet include/exclude line. Exactly one of
// Concept and Filters applies, selected by IsFilter.
type VsComponentNode struct {
	RuleBase
	Exclude       bool
	IsFilter      bool
	Concept       *ValueNode
	FromSystem    string
	FromValueSets []string
	Filters       []FilterNode
}

func (*CardRuleNode) ruleNode()           {}
func (*FlagRuleNode) ruleNode()           {}
func (*ValueSetRuleNode) ruleNode()       {}
func (*FixedValueRuleNode) ruleNode()     {}
func (*ContainsRuleNode) ruleNode()       {}
func (*OnlyRuleNode) ruleNode()           {}
func (*ObeysRuleNode) ruleNode()          {}
func (*CaretValueRuleNode) ruleNode()     {}
func (*CodeCaretValueRuleNode) ruleNode() {}
func (*MappingRuleNode) ruleNode()        {}
func (*InsertRuleNode) ruleNode()         {}
func (*AddElementRuleNode) ruleNode()     {}
func (*PathRuleNode) ruleNode()           {}
func (*ConceptRuleNode) ruleNode()        {}
func (*VsComponentNode) ruleNode()        {}

// ValueKind classifies a parsed value.
type ValueKind int

// Value kinds.
const (
	ValString ValueKind = iota + 1
	ValMultilineString
	ValNumber
	ValDateTime
	ValTime
	ValBool
	ValCode
	ValQuantity
	ValRatio
	ValReference
	ValCanonical
	ValName
	ValRegex
)

// QuantityNode is "number 'unit' "display"". Number and Unit are each
// optional, but not both.
type QuantityNode struct {
	Number  *Token
	Unit    *Token
	Display *Token
}

// ValueNode is a literal value. Token is the primary token for every kind
// except quantities and ratios.
type ValueNode struct {
	Kind     ValueKind
	Token    Token
	Display  *Token
	Quantity *QuantityNode
	Ratio    [2]*QuantityNode
	Span     location.Span
}
