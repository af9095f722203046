package legality

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gofhir/fsh/pkg/fshtypes"
	"github.com/gofhir/fsh/pkg/issue"
	"github.com/gofhir/fsh/pkg/location"
)

func TestKindAllowed(t *testing.T) {
	tests := []struct {
		entity fshtypes.EntityKind
		rule   fshtypes.RuleKind
		want   bool
	}{
		{fshtypes.KindProfile, fshtypes.RuleContains, true},
		{fshtypes.KindProfile, fshtypes.RuleAddElement, false},
		{fshtypes.KindExtension, fshtypes.RuleCaretValue, true},
		{fshtypes.KindLogical, fshtypes.RuleAddElement, true},
		{fshtypes.KindLogical, fshtypes.RuleContains, false},
		{fshtypes.KindResource, fshtypes.RuleAssignment, false},
		{fshtypes.KindInstance, fshtypes.RuleAssignment, true},
		{fshtypes.KindInstance, fshtypes.RuleContains, false},
		{fshtypes.KindInstance, fshtypes.RuleCaretValue, false},
		{fshtypes.KindInvariant, fshtypes.RulePath, true},
		{fshtypes.KindValueSet, fshtypes.RuleValueSetFilterComponent, true},
		{fshtypes.KindValueSet, fshtypes.RuleConcept, false},
		{fshtypes.KindCodeSystem, fshtypes.RuleConcept, true},
		{fshtypes.KindCodeSystem, fshtypes.RuleValueSetConceptComponent, false},
		{fshtypes.KindMapping, fshtypes.RuleMapping, true},
		{fshtypes.KindMapping, fshtypes.RuleCard, false},
		{fshtypes.KindRuleSet, fshtypes.RuleMapping, true},
		{fshtypes.KindRuleSet, fshtypes.RuleConcept, true},
	}
	for _, tt := range tests {
		t.Run(tt.entity.String()+"/"+tt.rule.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, KindAllowed(tt.entity, tt.rule))
		})
	}
}

func TestInsertAllowedNowhere(t *testing.T) {
	for _, kind := range fshtypes.AllEntityKinds() {
		assert.False(t, KindAllowed(kind, fshtypes.RuleInsert), kind.String())
		assert.NotContains(t, AllowedKinds(kind), fshtypes.RuleInsert)
	}
}

func TestAllowedKindsSorted(t *testing.T) {
	kinds := AllowedKinds(fshtypes.KindCodeSystem)
	assert.Equal(t, []fshtypes.RuleKind{
		fshtypes.RuleCaretValue,
		fshtypes.RuleCodeCaretValue,
		fshtypes.RuleConcept,
	}, kinds)
}

func TestCheckIsPure(t *testing.T) {
	inst := fshtypes.NewInstance("Example", location.Span{})
	inst.AddRule(&fshtypes.AssignmentRule{Path: "active", Value: fshtypes.BoolValue(true)})
	inst.AddRule(&fshtypes.ContainsRule{Path: "component", Items: []fshtypes.ContainsRuleItem{{Name: "a"}}})

	first := Check(inst)
	second := Check(inst)
	require.Len(t, first, 1)
	assert.Equal(t, first, second)
	assert.Equal(t, fshtypes.RuleContains, first[0].Rule.Kind())
	assert.Len(t, inst.Rules, 2)
}

func TestCheckDocument(t *testing.T) {
	doc := fshtypes.NewDocument("test.fsh")
	vs := fshtypes.NewFshValueSet("VS", location.Span{})
	vs.AddRule(&fshtypes.CardRule{Path: "code", Max: "1"})
	vs.AddRule(&fshtypes.InsertRule{RuleSet: "Leftover"})
	vs.AddRule(&fshtypes.CaretValueRule{CaretPath: "status", Value: &fshtypes.FshCode{Code: "draft"}})
	require.True(t, doc.Add(vs))

	result := issue.NewResult()
	n := CheckDocument(doc, result)
	assert.Equal(t, 2, n)
	require.Len(t, result.Issues, 2)
	assert.Equal(t, "CardRule on path 'code' is not allowed on ValueSet VS.", result.Issues[0].Diagnostics)
	assert.Equal(t, "Insert rule for RuleSet Leftover was not expanded.", result.Issues[1].Diagnostics)
}
