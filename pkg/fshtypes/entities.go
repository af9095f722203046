package fshtypes

import (
	"strings"

	"github.com/gofhir/fhir/r4"

	"github.com/gofhir/fsh/pkg/location"
)

// EntityKind identifies an Entity variant.
type EntityKind int

// Entity kinds.
const (
	KindProfile EntityKind = iota + 1
	KindExtension
	KindLogical
	KindResource
	KindInstance
	KindValueSet
	KindCodeSystem
	KindInvariant
	KindMapping
	KindRuleSet
	KindParamRuleSet
)

var entityKindNames = map[EntityKind]string{
	KindProfile:      "Profile",
	KindExtension:    "Extension",
	KindLogical:      "Logical",
	KindResource:     "Resource",
	KindInstance:     "Instance",
	KindValueSet:     "ValueSet",
	KindCodeSystem:   "CodeSystem",
	KindInvariant:    "Invariant",
	KindMapping:      "Mapping",
	KindRuleSet:      "RuleSet",
	KindParamRuleSet: "ParamRuleSet",
}

// String returns the FSH keyword of the kind.
func (k EntityKind) String() string {
	if name, ok := entityKindNames[k]; ok {
		return name
	}
	return "Unknown"
}

// AllEntityKinds returns every entity kind in declaration order.
func AllEntityKinds() []EntityKind {
	kinds := make([]EntityKind, 0, len(entityKindNames))
	for k := KindProfile; k <= KindParamRuleSet; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

// Default parents.
const (
	DefaultExtensionParent = "Extension"
	DefaultLogicalParent   = "Base"
	DefaultResourceParent  = "DomainResource"
)

// Entity is one top-level FSH declaration. The set of implementations is
// closed.
type Entity interface {
	Kind() EntityKind
	Base() *EntityBase
}

// EntityBase holds the attributes every entity shares.
type EntityBase struct {
	Name        string
	ID          string
	Title       string
	Description string
	Source      location.Span
	Rules       []Rule
}

func newBase(name string, span location.Span) EntityBase {
	return EntityBase{Name: name, ID: name, Source: span}
}

// Base returns the shared attributes.
func (b *EntityBase) Base() *EntityBase { return b }

// AddRule appends r to the rule list.
func (b *EntityBase) AddRule(r Rule) {
	b.Rules = append(b.Rules, r)
}

// Profile constrains a resource or data type.
type Profile struct {
	EntityBase
	Parent string
}

// NewProfile creates a Profile.
func NewProfile(name string, span location.Span) *Profile {
	return &Profile{EntityBase: newBase(name, span)}
}

// Kind implements Entity.
func (*Profile) Kind() EntityKind { return KindProfile }

// ExtensionContext is one Context item of an Extension. Quoted items are
// FHIRPath expressions; unquoted items are element paths.
type ExtensionContext struct {
	Value    string
	IsQuoted bool
}

// Extension defines a FHIR extension.
type Extension struct {
	EntityBase
	Parent   string
	Contexts []ExtensionContext
}

// NewExtension creates an Extension whose parent defaults to Extension.
func NewExtension(name string, span location.Span) *Extension {
	return &Extension{EntityBase: newBase(name, span), Parent: DefaultExtensionParent}
}

// Kind implements Entity.
func (*Extension) Kind() EntityKind { return KindExtension }

// Logical defines a logical model.
type Logical struct {
	EntityBase
	Parent          string
	Characteristics []string
}

// NewLogical creates a Logical whose parent defaults to Base.
func NewLogical(name string, span location.Span) *Logical {
	return &Logical{EntityBase: newBase(name, span), Parent: DefaultLogicalParent}
}

// Kind implements Entity.
func (*Logical) Kind() EntityKind { return KindLogical }

// Resource defines a new resource type.
type Resource struct {
	EntityBase
	Parent string
}

// NewResource creates a Resource whose parent defaults to DomainResource.
func NewResource(name string, span location.Span) *Resource {
	return &Resource{EntityBase: newBase(name, span), Parent: DefaultResourceParent}
}

// Kind implements Entity.
func (*Resource) Kind() EntityKind { return KindResource }

// InstanceUsage is the Usage of an Instance.
type InstanceUsage string

// Instance usages.
const (
	UsageExample    InstanceUsage = "Example"
	UsageDefinition InstanceUsage = "Definition"
	UsageInline     InstanceUsage = "Inline"
)

// ParseInstanceUsage converts a usage code (without the leading #) to an
// InstanceUsage.
func ParseInstanceUsage(code string) (InstanceUsage, bool) {
	switch code {
	case "example":
		return UsageExample, true
	case "definition":
		return UsageDefinition, true
	case "inline":
		return UsageInline, true
	}
	return "", false
}

// Instance is an example or definitional resource instance.
type Instance struct {
	EntityBase
	InstanceOf string
	Usage      InstanceUsage
}

// NewInstance creates an Instance with Example usage.
func NewInstance(name string, span location.Span) *Instance {
	return &Instance{EntityBase: newBase(name, span), Usage: UsageExample}
}

// Kind implements Entity.
func (*Instance) Kind() EntityKind { return KindInstance }

// FshValueSet is a ValueSet declaration.
type FshValueSet struct {
	EntityBase
}

// NewFshValueSet creates a FshValueSet.
func NewFshValueSet(name string, span location.Span) *FshValueSet {
	return &FshValueSet{EntityBase: newBase(name, span)}
}

// Kind implements Entity.
func (*FshValueSet) Kind() EntityKind { return KindValueSet }

// FshCodeSystem is a CodeSystem declaration.
type FshCodeSystem struct {
	EntityBase
}

// NewFshCodeSystem creates a FshCodeSystem.
func NewFshCodeSystem(name string, span location.Span) *FshCodeSystem {
	return &FshCodeSystem{EntityBase: newBase(name, span)}
}

// Kind implements Entity.
func (*FshCodeSystem) Kind() EntityKind { return KindCodeSystem }

// Concepts returns the concept rules in declaration order.
func (cs *FshCodeSystem) Concepts() []*ConceptRule {
	var out []*ConceptRule
	for _, r := range cs.Rules {
		if c, ok := r.(*ConceptRule); ok {
			out = append(out, c)
		}
	}
	return out
}

// Invariant is a named constraint. Description and Severity are required.
type Invariant struct {
	EntityBase
	Severity   r4.ConstraintSeverity
	Expression string
	XPath      string
}

// NewInvariant creates an Invariant. Its ID stays the name.
func NewInvariant(name string, span location.Span) *Invariant {
	return &Invariant{EntityBase: newBase(name, span)}
}

// Kind implements Entity.
func (*Invariant) Kind() EntityKind { return KindInvariant }

// ParseConstraintSeverity converts a severity code (without the #).
func ParseConstraintSeverity(code string) (r4.ConstraintSeverity, bool) {
	switch code {
	case "error", "warning":
		return r4.ConstraintSeverity(code), true
	}
	return "", false
}

// Mapping maps an entity to an external specification. SourceEntity is
// the name of the mapped Profile, Extension or Logical.
type Mapping struct {
	EntityBase
	SourceEntity string
	Target       string
}

// NewMapping creates a Mapping.
func NewMapping(name string, span location.Span) *Mapping {
	return &Mapping{EntityBase: newBase(name, span)}
}

// Kind implements Entity.
func (*Mapping) Kind() EntityKind { return KindMapping }

// RuleSet is a named, reusable list of rules. Applied RuleSets, the
// expansions of parameterized RuleSets, are RuleSets too.
type RuleSet struct {
	EntityBase
}

// NewRuleSet creates a RuleSet.
func NewRuleSet(name string, span location.Span) *RuleSet {
	return &RuleSet{EntityBase: newBase(name, span)}
}

// Kind implements Entity.
func (*RuleSet) Kind() EntityKind { return KindRuleSet }

// ParamRuleSet is a parameterized RuleSet template. Contents is the raw,
// unparsed body text; parameters are substituted into it textually.
type ParamRuleSet struct {
	EntityBase
	Parameters []string
	Contents   string
}

// NewParamRuleSet creates a ParamRuleSet.
func NewParamRuleSet(name string, span location.Span) *ParamRuleSet {
	return &ParamRuleSet{EntityBase: newBase(name, span)}
}

// Kind implements Entity.
func (*ParamRuleSet) Kind() EntityKind { return KindParamRuleSet }

// UnusedParameters returns the parameters whose {name} token never appears
// in Contents.
func (p *ParamRuleSet) UnusedParameters() []string {
	var unused []string
	for _, param := range p.Parameters {
		if !strings.Contains(p.Contents, "{"+param+"}") {
			unused = append(unused, param)
		}
	}
	return unused
}
