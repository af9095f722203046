package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gofhir/fsh/pkg/fshtypes"
	"github.com/gofhir/fsh/pkg/issue"
)

const sct = "http://snomed.info/sct"

func TestCardAndContainsRules(t *testing.T) {
	res := importFSH(t, nil, `
Profile: P
Parent: Observation
* component 1..* MS
* component contains sys 1..1 MS and Foo named dia 0..1
* category and code SU
`)

	p := res.Documents[0].Profiles["P"]
	require.NotNil(t, p)
	assertRules(t, []fshtypes.Rule{
		&fshtypes.CardRule{Path: "component", Min: ptr(1), Max: "*"},
		&fshtypes.FlagRule{Path: "component", FlagSet: fshtypes.FlagSet{MustSupport: true}},
		&fshtypes.ContainsRule{Path: "component", Items: []fshtypes.ContainsRuleItem{
			{Name: "sys"},
			{Name: "dia", Type: "Foo"},
		}},
		&fshtypes.CardRule{Path: "component[sys]", Min: ptr(1), Max: "1"},
		&fshtypes.FlagRule{Path: "component[sys]", FlagSet: fshtypes.FlagSet{MustSupport: true}},
		&fshtypes.CardRule{Path: "component[dia]", Min: ptr(0), Max: "1"},
		&fshtypes.FlagRule{Path: "category", FlagSet: fshtypes.FlagSet{Summary: true}},
		&fshtypes.FlagRule{Path: "code", FlagSet: fshtypes.FlagSet{Summary: true}},
	}, p.Rules)
	assert.Empty(t, res.Issues.Issues)
}

func TestIndentedPathContext(t *testing.T) {
	res := importFSH(t, nil, `
Profile: P
Parent: Observation
* code
  * coding 1..1
    * system 1..1
* component contains sys 1..1
  * value[x] only Quantity
  * ^short = "System"
`)

	p := res.Documents[0].Profiles["P"]
	require.NotNil(t, p)
	assertRules(t, []fshtypes.Rule{
		&fshtypes.PathRule{Path: "code"},
		&fshtypes.CardRule{Path: "code.coding", Min: ptr(1), Max: "1"},
		&fshtypes.CardRule{Path: "code.coding.system", Min: ptr(1), Max: "1"},
		&fshtypes.ContainsRule{Path: "component", Items: []fshtypes.ContainsRuleItem{{Name: "sys"}}},
		&fshtypes.CardRule{Path: "component[sys]", Min: ptr(1), Max: "1"},
		&fshtypes.OnlyRule{Path: "component[sys].value[x]", Types: []fshtypes.OnlyRuleType{{Type: "Quantity"}}},
		&fshtypes.CaretValueRule{Path: "component[sys]", CaretPath: "short", Value: fshtypes.StringValue{Value: "System"}},
	}, p.Rules)
	assert.Empty(t, res.Issues.Issues)
}

func TestBadIndentation(t *testing.T) {
	res := importFSH(t, nil, `
Profile: P
Parent: Observation
* code 1..1
   * status 1..1
    * method 1..1
`)

	p := res.Documents[0].Profiles["P"]
	require.NotNil(t, p)
	assertRules(t, []fshtypes.Rule{
		&fshtypes.CardRule{Path: "code", Min: ptr(1), Max: "1"},
		&fshtypes.CardRule{Path: "status", Min: ptr(1), Max: "1"},
		&fshtypes.CardRule{Path: "method", Min: ptr(1), Max: "1"},
	}, p.Rules)
	assert.Equal(t, []issue.DiagnosticID{issue.DiagInvalidIndent, issue.DiagMissingContext}, issueIDs(res))
	assert.Equal(t, "Unable to determine path context for rule indented 3 spaces. Rules must be indented in increments of 2 spaces.", res.Issues.Issues[0].Diagnostics)
	assert.Equal(t, "Unable to determine path context for rule indented 4 spaces. An indented rule must follow a rule indented 2 spaces.", res.Issues.Issues[1].Diagnostics)
}

func TestCodeSystemConcepts(t *testing.T) {
	res := importFSH(t, nil, `
CodeSystem: CS
* #a "A"
  * #b "B" "Bee definition"
* #a "Again"
* #c "C"
* #c ^designation.value = "x"
* SYS#d "D"
`)

	cs := res.Documents[0].CodeSystems["CS"]
	require.NotNil(t, cs)
	assertRules(t, []fshtypes.Rule{
		&fshtypes.ConceptRule{Code: "a", Display: "A"},
		&fshtypes.ConceptRule{Code: "b", Display: "B", Definition: "Bee definition", Hierarchy: []string{"a"}},
		&fshtypes.ConceptRule{Code: "c", Display: "C"},
		&fshtypes.CodeCaretValueRule{CodePath: []string{"c"}, CaretPath: "designation.value", Value: fshtypes.StringValue{Value: "x"}},
	}, cs.Rules)

	assert.Equal(t, []issue.DiagnosticID{issue.DiagDuplicateCode, issue.DiagCodeSystemSystem}, issueIDs(res))
	assert.Equal(t, "CodeSystem CS already contains code a.", res.Issues.Issues[0].Diagnostics)
	assert.Equal(t, "Do not include the system when listing concepts for a code system: SYS#d.", res.Issues.Issues[1].Diagnostics)
}

func TestValueSetComponents(t *testing.T) {
	res := importFSH(t, nil, `
Alias: $SCT = http://snomed.info/sct

ValueSet: VS
* include $SCT#1 "One"
* $SCT#2 "Two"
* exclude $SCT#3
* #4 from system $SCT
* include codes from system $SCT where concept is-a $SCT#100
* include codes from valueset OtherVS
* #5
`)

	vs := res.Documents[0].ValueSets["VS"]
	require.NotNil(t, vs)
	assertRules(t, []fshtypes.Rule{
		&fshtypes.ValueSetConceptComponentRule{
			Inclusion: true,
			From:      fshtypes.ValueSetComponentFrom{System: sct},
			Concepts: []*fshtypes.FshCode{
				{Code: "1", System: sct, Display: "One"},
				{Code: "2", System: sct, Display: "Two"},
				{Code: "4", System: sct},
			},
		},
		&fshtypes.ValueSetConceptComponentRule{
			From:     fshtypes.ValueSetComponentFrom{System: sct},
			Concepts: []*fshtypes.FshCode{{Code: "3", System: sct}},
		},
		&fshtypes.ValueSetFilterComponentRule{
			Inclusion: true,
			From:      fshtypes.ValueSetComponentFrom{System: sct},
			Filters: []fshtypes.ValueSetFilter{{
				Property: "concept",
				Operator: fshtypes.FilterIsA,
				Value:    &fshtypes.FshCode{Code: "100", System: sct},
			}},
		},
		&fshtypes.ValueSetFilterComponentRule{
			Inclusion: true,
			From:      fshtypes.ValueSetComponentFrom{ValueSets: []string{"OtherVS"}},
		},
	}, vs.Rules)

	// Displays survive the merge even though codes compare without them.
	merged := vs.Rules[0].(*fshtypes.ValueSetConceptComponentRule)
	assert.Equal(t, "Two", merged.Concepts[1].Display)

	require.Len(t, res.Issues.Issues, 1)
	assert.Equal(t, "Concept #5 must include a system when used in a ValueSet component.", res.Issues.Issues[0].Diagnostics)
}

func TestValueSetFilterValidation(t *testing.T) {
	res := importFSH(t, nil, `
ValueSet: VS
* include codes from system http://loinc.org where concept foo #x
* include codes from system http://loinc.org where concept is-a "text"
* include codes from system http://loinc.org where display regex /^Heart.*/
* include codes from system http://loinc.org where concept exists true
* exclude $SCT#1 from system http://loinc.org
`)

	vs := res.Documents[0].ValueSets["VS"]
	require.NotNil(t, vs)
	assertRules(t, []fshtypes.Rule{
		&fshtypes.ValueSetFilterComponentRule{
			Inclusion: true,
			From:      fshtypes.ValueSetComponentFrom{System: "http://loinc.org"},
			Filters: []fshtypes.ValueSetFilter{{
				Property: "display",
				Operator: fshtypes.FilterRegex,
				Value:    fshtypes.StringValue{Value: "^Heart.*"},
				IsRegex:  true,
			}},
		},
		&fshtypes.ValueSetFilterComponentRule{
			Inclusion: true,
			From:      fshtypes.ValueSetComponentFrom{System: "http://loinc.org"},
			Filters: []fshtypes.ValueSetFilter{{
				Property: "concept",
				Operator: fshtypes.FilterExists,
				Value:    fshtypes.BoolValue(true),
			}},
		},
	}, vs.Rules)

	assert.Equal(t, []issue.DiagnosticID{
		issue.DiagVsFilterOperator,
		issue.DiagVsFilterValue,
		issue.DiagAliasUnresolved,
		issue.DiagVsSystemConflict,
	}, issueIDs(res))
	assert.Equal(t, "Unsupported ValueSet filter operator foo.", res.Issues.Issues[0].Diagnostics)
	assert.Equal(t, "ValueSet filter operator is-a requires a code value.", res.Issues.Issues[1].Diagnostics)
}
