// Package fshtypes defines the FSH document model: documents, the closed
// set of entity variants, the closed set of rule variants and the typed
// literal values carried by rules.
//
// Documents are built by the importer and are read-only afterwards.
package fshtypes

import (
	"encoding/json"
	"sort"
	"strings"
)

// AppliedRuleSetKey identifies one expansion of a parameterized RuleSet:
// the template name plus the argument list.
type AppliedRuleSetKey string

// NewAppliedRuleSetKey builds the key for name applied to params.
func NewAppliedRuleSetKey(name string, params []string) AppliedRuleSetKey {
	parts := make([]string, 0, len(params)+1)
	parts = append(parts, name)
	parts = append(parts, params...)
	// Marshalling a []string cannot fail.
	b, _ := json.Marshal(parts)
	return AppliedRuleSetKey(b)
}

// Parts decodes the key into the template name and its arguments.
func (k AppliedRuleSetKey) Parts() (name string, params []string) {
	var parts []string
	if err := json.Unmarshal([]byte(k), &parts); err != nil || len(parts) == 0 {
		return string(k), nil
	}
	return parts[0], parts[1:]
}

// String renders the key as "Name(arg1, arg2)".
func (k AppliedRuleSetKey) String() string {
	name, params := k.Parts()
	return name + "(" + strings.Join(params, ", ") + ")"
}

// Document holds the entities declared in one FSH file.
type Document struct {
	File    string
	Aliases map[string]string

	Profiles    map[string]*Profile
	Extensions  map[string]*Extension
	Logicals    map[string]*Logical
	Resources   map[string]*Resource
	Instances   map[string]*Instance
	ValueSets   map[string]*FshValueSet
	CodeSystems map[string]*FshCodeSystem
	Invariants  map[string]*Invariant
	Mappings    map[string]*Mapping
	RuleSets    map[string]*RuleSet

	// AppliedRuleSets caches expansions of parameterized RuleSets inserted
	// from this document.
	AppliedRuleSets map[AppliedRuleSetKey]*RuleSet
}

// NewDocument creates an empty document for file.
func NewDocument(file string) *Document {
	return &Document{
		File:            file,
		Aliases:         make(map[string]string),
		Profiles:        make(map[string]*Profile),
		Extensions:      make(map[string]*Extension),
		Logicals:        make(map[string]*Logical),
		Resources:       make(map[string]*Resource),
		Instances:       make(map[string]*Instance),
		ValueSets:       make(map[string]*FshValueSet),
		CodeSystems:     make(map[string]*FshCodeSystem),
		Invariants:      make(map[string]*Invariant),
		Mappings:        make(map[string]*Mapping),
		RuleSets:        make(map[string]*RuleSet),
		AppliedRuleSets: make(map[AppliedRuleSetKey]*RuleSet),
	}
}

// Add stores e under its kind and name. It reports false, leaving the
// document unchanged, when that kind already has an entity with the same
// name or when e's kind is not held by documents (ParamRuleSet).
func (d *Document) Add(e Entity) bool {
	name := e.Base().Name
	if _, exists := d.Lookup(e.Kind(), name); exists {
		return false
	}
	switch ent := e.(type) {
	case *Profile:
		d.Profiles[name] = ent
	case *Extension:
		d.Extensions[name] = ent
	case *Logical:
		d.Logicals[name] = ent
	case *Resource:
		d.Resources[name] = ent
	case *Instance:
		d.Instances[name] = ent
	case *FshValueSet:
		d.ValueSets[name] = ent
	case *FshCodeSystem:
		d.CodeSystems[name] = ent
	case *Invariant:
		d.Invariants[name] = ent
	case *Mapping:
		d.Mappings[name] = ent
	case *RuleSet:
		d.RuleSets[name] = ent
	default:
		return false
	}
	return true
}

// Lookup returns the entity of the given kind and name.
func (d *Document) Lookup(kind EntityKind, name string) (Entity, bool) {
	switch kind {
	case KindProfile:
		return lookup(d.Profiles, name)
	case KindExtension:
		return lookup(d.Extensions, name)
	case KindLogical:
		return lookup(d.Logicals, name)
	case KindResource:
		return lookup(d.Resources, name)
	case KindInstance:
		return lookup(d.Instances, name)
	case KindValueSet:
		return lookup(d.ValueSets, name)
	case KindCodeSystem:
		return lookup(d.CodeSystems, name)
	case KindInvariant:
		return lookup(d.Invariants, name)
	case KindMapping:
		return lookup(d.Mappings, name)
	case KindRuleSet:
		return lookup(d.RuleSets, name)
	}
	return nil, false
}

func lookup[E Entity](m map[string]E, name string) (Entity, bool) {
	e, ok := m[name]
	if !ok {
		return nil, false
	}
	return e, true
}

// Entities returns every entity of the document, excluding applied
// RuleSets, ordered by source position.
func (d *Document) Entities() []Entity {
	var out []Entity
	out = appendAll(out, d.Profiles)
	out = appendAll(out, d.Extensions)
	out = appendAll(out, d.Logicals)
	out = appendAll(out, d.Resources)
	out = appendAll(out, d.Instances)
	out = appendAll(out, d.ValueSets)
	out = appendAll(out, d.CodeSystems)
	out = appendAll(out, d.Invariants)
	out = appendAll(out, d.Mappings)
	out = appendAll(out, d.RuleSets)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Base(), out[j].Base()
		if a.Source.Start.Line != b.Source.Start.Line {
			return a.Source.Start.Line < b.Source.Start.Line
		}
		if a.Source.Start.Column != b.Source.Start.Column {
			return a.Source.Start.Column < b.Source.Start.Column
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return out[i].Kind() < out[j].Kind()
	})
	return out
}

func appendAll[E Entity](out []Entity, m map[string]E) []Entity {
	for _, e := range m {
		out = append(out, e)
	}
	return out
}

// Len returns the number of entities, excluding applied RuleSets.
func (d *Document) Len() int {
	return len(d.Profiles) + len(d.Extensions) + len(d.Logicals) + len(d.Resources) +
		len(d.Instances) + len(d.ValueSets) + len(d.CodeSystems) + len(d.Invariants) +
		len(d.Mappings) + len(d.RuleSets)
}
