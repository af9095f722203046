package fshtypes

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gofhir/fsh/pkg/location"
)

func at(line int) location.Span {
	return location.NewSpan("test.fsh", location.Position{Line: line, Column: 1}, location.Position{Line: line, Column: 20})
}

func TestFlagSetApplyStatusLastWins(t *testing.T) {
	var fs FlagSet
	fs.Apply(FlagMustSupport, FlagTrialUse, FlagNormative)
	assert.True(t, fs.MustSupport)
	assert.False(t, fs.TrialUse)
	assert.True(t, fs.Normative)
	assert.False(t, fs.Draft)

	fs.Apply(FlagDraft)
	assert.False(t, fs.Normative)
	assert.True(t, fs.Draft)
	assert.True(t, fs.MustSupport, "non-status flags are kept")
	assert.False(t, fs.Empty())
	assert.True(t, FlagSet{}.Empty())
}

func TestParseFlag(t *testing.T) {
	for _, s := range []string{"MS", "SU", "?!", "TU", "N", "D"} {
		_, ok := ParseFlag(s)
		assert.True(t, ok, s)
	}
	_, ok := ParseFlag("XX")
	assert.False(t, ok)
}

func TestCloneRuleIsDeep(t *testing.T) {
	min := 1
	card := &CardRule{Path: "code", Min: &min, Max: "1"}
	cloned := CloneRule(card).(*CardRule)
	*cloned.Min = 0
	cloned.Path = "status"
	assert.Equal(t, 1, *card.Min)
	assert.Equal(t, "code", card.Path)

	insert := &InsertRule{RuleSet: "Foo", Params: []string{"a"}, CodePath: []string{"#x"}}
	ci := CloneRule(insert).(*InsertRule)
	ci.Params[0] = "b"
	ci.CodePath[0] = "#y"
	assert.Equal(t, "a", insert.Params[0])
	assert.Equal(t, "#x", insert.CodePath[0])
}

func TestSetRulePath(t *testing.T) {
	r := &AssignmentRule{Path: "status"}
	require.True(t, SetRulePath(r, "component.status"))
	assert.Equal(t, "component.status", r.RulePath())

	assert.False(t, SetRulePath(&ConceptRule{Code: "a"}, "x"))
	assert.False(t, SetRulePath(&CodeCaretValueRule{}, "x"))
}

func TestRuleKinds(t *testing.T) {
	kinds := AllRuleKinds()
	assert.Len(t, kinds, 16)
	for _, k := range kinds {
		assert.NotEqual(t, "UnknownRule", k.String())
	}
	assert.Equal(t, "UnknownRule", RuleKind(0).String())
}

func TestValueSetComponentFromEqual(t *testing.T) {
	a := ValueSetComponentFrom{System: "http://s", ValueSets: []string{"A", "B"}}
	b := ValueSetComponentFrom{System: "http://s", ValueSets: []string{"B", "A"}}
	c := ValueSetComponentFrom{System: "http://t", ValueSets: []string{"A", "B"}}

	assert.True(t, a.Equal(b), "value set order is irrelevant")
	assert.False(t, a.Equal(c))
	assert.Equal(t, []string{"A", "B"}, a.ValueSets, "Equal must not reorder its inputs")
	assert.Equal(t, []string{"B", "A"}, b.ValueSets)
}

func TestParseFilterOperator(t *testing.T) {
	op, ok := ParseFilterOperator("is-a")
	assert.True(t, ok)
	assert.Equal(t, FilterIsA, op)
	_, ok = ParseFilterOperator("is-an")
	assert.False(t, ok)
}

func TestEntityDefaults(t *testing.T) {
	ext := NewExtension("MyExt", at(1))
	assert.Equal(t, "Extension", ext.Parent)
	assert.Equal(t, "MyExt", ext.ID)
	assert.Equal(t, "Base", NewLogical("L", at(1)).Parent)
	assert.Equal(t, "DomainResource", NewResource("R", at(1)).Parent)
	assert.Equal(t, UsageExample, NewInstance("I", at(1)).Usage)
	assert.Equal(t, "", NewProfile("P", at(1)).Parent)
}

func TestParamRuleSetUnusedParameters(t *testing.T) {
	p := NewParamRuleSet("Foo", at(1))
	p.Parameters = []string{"path", "value", "unused"}
	p.Contents = "* {path} = {value}\n* {path}.extra = true"
	assert.Equal(t, []string{"unused"}, p.UnusedParameters())
}

func TestDocumentAddRejectsDuplicates(t *testing.T) {
	doc := NewDocument("test.fsh")
	require.True(t, doc.Add(NewProfile("Foo", at(1))))
	assert.False(t, doc.Add(NewProfile("Foo", at(5))))
	assert.True(t, doc.Add(NewExtension("Foo", at(9))), "names are unique per kind")
	assert.False(t, doc.Add(NewParamRuleSet("Bar", at(12))))

	assert.Len(t, doc.Profiles, 1)
	assert.Equal(t, 1, doc.Profiles["Foo"].Source.Start.Line)

	e, ok := doc.Lookup(KindExtension, "Foo")
	require.True(t, ok)
	assert.Equal(t, KindExtension, e.Kind())
	_, ok = doc.Lookup(KindInstance, "Foo")
	assert.False(t, ok)
	assert.Equal(t, 2, doc.Len())
}

func TestDocumentEntitiesOrderedBySource(t *testing.T) {
	doc := NewDocument("test.fsh")
	doc.Add(NewFshValueSet("VS", at(20)))
	doc.Add(NewProfile("P", at(1)))
	doc.Add(NewInstance("I", at(10)))

	var names []string
	for _, e := range doc.Entities() {
		names = append(names, e.Base().Name)
	}
	assert.Equal(t, []string{"P", "I", "VS"}, names)
}

func TestAppliedRuleSetKey(t *testing.T) {
	a := NewAppliedRuleSetKey("Foo", []string{"a", "b"})
	b := NewAppliedRuleSetKey("Foo", []string{"a, b"})
	c := NewAppliedRuleSetKey("Foo", []string{"a", "b"})
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, c)
	assert.Equal(t, AppliedRuleSetKey(`["Foo","a","b"]`), a)
}

func TestFshCodeToCoding(t *testing.T) {
	code := &FshCode{Code: "123", System: "http://snomed.info/sct|2020", Display: "Thing"}
	coding := code.ToCoding()
	require.NotNil(t, coding.Code)
	require.NotNil(t, coding.System)
	require.NotNil(t, coding.Version)
	require.NotNil(t, coding.Display)
	assert.Equal(t, "123", *coding.Code)
	assert.Equal(t, "http://snomed.info/sct", *coding.System)
	assert.Equal(t, "2020", *coding.Version)
	assert.Equal(t, "Thing", *coding.Display)

	bare := (&FshCode{Code: "x"}).ToCoding()
	assert.Nil(t, bare.System)
	assert.Nil(t, bare.Display)
}

func TestValueFSH(t *testing.T) {
	five := decimal.RequireFromString("5.0")
	tests := []struct {
		name  string
		value Value
		want  string
	}{
		{"bool", BoolValue(true), "true"},
		{"number keeps precision", NumberValue{Value: five}, "5.0"},
		{"string escapes", StringValue{Value: "a \"b\"\n"}, `"a \"b\"\n"`},
		{"code with display", &FshCode{Code: "a", System: "http://s", Display: "A"}, `http://s#a "A"`},
		{"code with space", &FshCode{Code: "a b"}, `#"a b"`},
		{"quantity ucum", &FshQuantity{Value: &five, Unit: &FshCode{Code: "mg", System: UCUMSystem}}, "5.0 'mg'"},
		{"ratio", &FshRatio{Numerator: &FshQuantity{Value: &five}, Denominator: &FshQuantity{Value: &five}}, "5.0 : 5.0"},
		{"reference", &FshReference{Reference: "Patient/1", Display: "Pat"}, `Reference(Patient/1) "Pat"`},
		{"canonical", &FshCanonical{EntityName: "MyVS", Version: "1.0"}, "Canonical(MyVS|1.0)"},
		{"instance", InstanceName("Ex1"), "Ex1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.value.FSH())
		})
	}
}
