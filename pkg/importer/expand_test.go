package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fsh "github.com/gofhir/fsh"
	"github.com/gofhir/fsh/pkg/fshtypes"
	"github.com/gofhir/fsh/pkg/issue"
	"github.com/gofhir/fsh/pkg/legality"
	"github.com/gofhir/fsh/pkg/parser"
)

func TestPlainRuleSetInsert(t *testing.T) {
	res := importFSH(t, nil, `
Profile: P
Parent: Observation
* code insert CodeRules
* insert Meta
`, `
RuleSet: CodeRules
* coding 1..1
* ^short = "code"

RuleSet: Meta
* ^status = #draft
`)

	p := res.Documents[0].Profiles["P"]
	require.NotNil(t, p)
	assertRules(t, []fshtypes.Rule{
		&fshtypes.CardRule{Path: "code.coding", Min: ptr(1), Max: "1"},
		&fshtypes.CaretValueRule{Path: "code", CaretPath: "short", Value: fshtypes.StringValue{Value: "code"}},
		&fshtypes.CaretValueRule{CaretPath: "status", Value: &fshtypes.FshCode{Code: "draft"}},
	}, p.Rules)
	assert.Empty(t, res.Issues.Issues)

	// The RuleSet itself is untouched by the insert's path.
	rs := res.Documents[1].RuleSets["CodeRules"]
	require.NotNil(t, rs)
	assert.Equal(t, "coding", rs.Rules[0].RulePath())

	for _, doc := range res.Documents {
		sink := issue.NewResult()
		assert.Zero(t, legality.CheckDocument(doc, sink))
	}
}

func TestRuleSetNotFound(t *testing.T) {
	res := importFSH(t, nil, `
Profile: P
Parent: Observation
* insert Nowhere
* status 1..1
`)

	p := res.Documents[0].Profiles["P"]
	assertRules(t, []fshtypes.Rule{
		&fshtypes.CardRule{Path: "status", Min: ptr(1), Max: "1"},
	}, p.Rules)
	require.Len(t, res.Issues.Issues, 1)
	assert.Equal(t, "Unable to find definition for RuleSet Nowhere.", res.Issues.Issues[0].Diagnostics)
}

func TestParameterizedRuleSet(t *testing.T) {
	m := fsh.NewMetrics()
	res := importFSH(t, []Option{WithMetrics(m)}, `
RuleSet: Named(path, short)
* {path} ^short = "{short}"
* {path} MS

Profile: P
Parent: Observation
* insert Named(code, Code short)
* insert Named(status, Status)
* insert Named(code, Code short)
`)

	doc := res.Documents[0]
	p := doc.Profiles["P"]
	require.NotNil(t, p)
	ms := fshtypes.FlagSet{MustSupport: true}
	assertRules(t, []fshtypes.Rule{
		&fshtypes.CaretValueRule{Path: "code", CaretPath: "short", Value: fshtypes.StringValue{Value: "Code short"}},
		&fshtypes.FlagRule{Path: "code", FlagSet: ms},
		&fshtypes.CaretValueRule{Path: "status", CaretPath: "short", Value: fshtypes.StringValue{Value: "Status"}},
		&fshtypes.FlagRule{Path: "status", FlagSet: ms},
		&fshtypes.CaretValueRule{Path: "code", CaretPath: "short", Value: fshtypes.StringValue{Value: "Code short"}},
		&fshtypes.FlagRule{Path: "code", FlagSet: ms},
	}, p.Rules)
	assert.Empty(t, res.Issues.Issues)

	require.Len(t, doc.AppliedRuleSets, 2)
	assert.Contains(t, doc.AppliedRuleSets, fshtypes.NewAppliedRuleSetKey("Named", []string{"code", "Code short"}))
	assert.Contains(t, doc.AppliedRuleSets, fshtypes.NewAppliedRuleSetKey("Named", []string{"status", "Status"}))

	// Inserted rules point at the insert that produced them.
	assert.Equal(t, 8, p.Rules[0].SourceInfo().Start.Line)
	assert.Equal(t, 9, p.Rules[2].SourceInfo().Start.Line)
	assert.Equal(t, 10, p.Rules[4].SourceInfo().Start.Line)

	assert.Equal(t, uint64(2), m.CacheMisses())
	assert.Equal(t, uint64(1), m.CacheHits())
	assert.Equal(t, uint64(2), m.ExpansionsTotal())

	require.Contains(t, res.ParamRuleSets, "Named")
	assert.Equal(t, []string{"path", "short"}, res.ParamRuleSets["Named"].Parameters)
}

func TestParameterizedRuleSetArguments(t *testing.T) {
	res := importFSH(t, nil, `
RuleSet: Two(a, b)
* {a} ^short = "{b}"

Profile: P
Parent: Observation
* insert Two(code)
* insert Missing(x)
* status 1..1
`)

	p := res.Documents[0].Profiles["P"]
	assertRules(t, []fshtypes.Rule{
		&fshtypes.CardRule{Path: "status", Min: ptr(1), Max: "1"},
	}, p.Rules)
	assert.Equal(t, []issue.DiagnosticID{issue.DiagRuleSetArgCount, issue.DiagParamRuleSetNotFound}, issueIDs(res))
	assert.Equal(t, "Incorrect number of parameters applied to RuleSet Two: expected 2, received 1.", res.Issues.Issues[0].Diagnostics)
	assert.Equal(t, "Could not find parameterized RuleSet named Missing.", res.Issues.Issues[1].Diagnostics)
	assert.Empty(t, res.Documents[0].AppliedRuleSets)
}

func TestParameterizedRuleSetErrorsAreAttributedToInsert(t *testing.T) {
	res := importFSH(t, nil, `
RuleSet: Bad(x)
* {x} 1..1
* {x} from $Missing

Profile: P
Parent: Observation
* insert Bad(code)
`)

	p := res.Documents[0].Profiles["P"]
	assertRules(t, []fshtypes.Rule{
		&fshtypes.CardRule{Path: "code", Min: ptr(1), Max: "1"},
		&fshtypes.BindingRule{Path: "code", ValueSet: "$Missing", Strength: fshtypes.DefaultBindingStrength},
	}, p.Rules)

	require.Len(t, res.Issues.Issues, 1)
	got := res.Issues.Issues[0]
	assert.Equal(t, issue.DiagRuleSetExpansion, issue.DiagnosticID(got.MessageID))
	assert.Equal(t, "Errors parsing insert rule with parameterized RuleSet Bad", got.Diagnostics)
	assert.Equal(t, []string{`Value $Missing does not resolve as alias; values beginning with "$" must resolve.`}, got.Details)
	require.NotNil(t, got.Location)
	assert.Equal(t, 8, got.Location.Start.Line)
}

func TestNestedExpansionIsAttributedToOutermostInsert(t *testing.T) {
	res := importFSH(t, nil, `
RuleSet: Outer(x)
* insert Inner({x})

RuleSet: Inner(y)
* {y} 1..1
* insert Missing

Profile: P
Parent: Observation
* insert Outer(code)
`)

	doc := res.Documents[0]
	p := doc.Profiles["P"]
	require.NotNil(t, p)
	assertRules(t, []fshtypes.Rule{
		&fshtypes.CardRule{Path: "code", Min: ptr(1), Max: "1"},
	}, p.Rules)
	assert.Equal(t, "file0.fsh", p.Rules[0].SourceInfo().File)
	assert.Equal(t, 11, p.Rules[0].SourceInfo().Start.Line)

	inner := doc.AppliedRuleSets[fshtypes.NewAppliedRuleSetKey("Inner", []string{"code"})]
	require.NotNil(t, inner)
	assert.Equal(t, "file0.fsh", inner.Source.File)
	assert.Equal(t, 11, inner.Source.Start.Line)

	require.Len(t, res.Issues.Issues, 1)
	got := res.Issues.Issues[0]
	assert.Equal(t, "Unable to find definition for RuleSet Missing.", got.Diagnostics)
	require.NotNil(t, got.Location)
	assert.Equal(t, "file0.fsh", got.Location.File)
	assert.Equal(t, 11, got.Location.Start.Line)
}

func TestNestedCycleIsAttributedToOutermostInsert(t *testing.T) {
	res := importFSH(t, nil, `
RuleSet: Ping(x)
* {x} 1..1
* insert Pong({x})

RuleSet: Pong(x)
* insert Ping({x})

Profile: P
Parent: Observation
* insert Ping(code)
`)

	p := res.Documents[0].Profiles["P"]
	assertRules(t, []fshtypes.Rule{
		&fshtypes.CardRule{Path: "code", Min: ptr(1), Max: "1"},
	}, p.Rules)
	require.Len(t, res.Issues.Issues, 1)
	got := res.Issues.Issues[0]
	assert.Equal(t, "RuleSet expansion depth exceeded while inserting Ping: Ping(code) -> Pong(code) -> Ping(code).", got.Diagnostics)
	require.NotNil(t, got.Location)
	assert.Equal(t, "file0.fsh", got.Location.File)
	assert.Equal(t, 11, got.Location.Start.Line)
}

func TestAppliedRuleSetIsParsedOnce(t *testing.T) {
	src := `
RuleSet: Named(path, short)
* {path} ^short = "{short}"

Profile: P
Parent: Observation
* insert Named(code, Code short)
`
	m := fsh.NewMetrics()
	imp := New(WithMetrics(m), WithExpressionChecking(false))
	ic := newImportContext(imp.opts, issue.NewResult())
	f := parser.New("named.fsh", []byte(src), ic.log).Parse()
	ic.preprocess([]*parser.File{f})
	doc := ic.visitFile(f)

	key := fshtypes.NewAppliedRuleSetKey("Named", []string{"code", "Code short"})
	first := doc.AppliedRuleSets[key]
	require.NotNil(t, first)

	v := &visitor{ic: ic, doc: doc, origin: doc, sink: ic.sink}
	v.applyParamRuleSet(&fshtypes.InsertRule{RuleSet: "Named", Params: []string{"code", "Code short"}})

	assert.Same(t, first, doc.AppliedRuleSets[key])
	assert.Equal(t, uint64(1), m.CacheMisses())
	assert.Equal(t, uint64(1), m.CacheHits())
}

func TestParameterizedRuleSetParseFailure(t *testing.T) {
	res := importFSH(t, nil, `
RuleSet: Broken(x)
* {x}

Profile: P
Parent: Observation
* insert Broken(a =)
`)

	assert.Empty(t, res.Documents[0].Profiles["P"].Rules)
	assert.Empty(t, res.Documents[0].AppliedRuleSets)
	assert.Equal(t, []issue.DiagnosticID{issue.DiagRuleSetExpansion, issue.DiagRuleSetParseFailed}, issueIDs(res))
	assert.NotEmpty(t, res.Issues.Issues[0].Details)
	assert.Equal(t, "Failed to parse RuleSet Broken with provided parameters (a =).", res.Issues.Issues[1].Diagnostics)
}

func TestRuleSetCycle(t *testing.T) {
	res := importFSH(t, nil, `
RuleSet: A
* insert B
* status 1..1

RuleSet: B
* insert A
* code 1..1

Profile: P
Parent: Observation
* insert A
`)

	p := res.Documents[0].Profiles["P"]
	assertRules(t, []fshtypes.Rule{
		&fshtypes.CardRule{Path: "code", Min: ptr(1), Max: "1"},
		&fshtypes.CardRule{Path: "status", Min: ptr(1), Max: "1"},
	}, p.Rules)
	require.Len(t, res.Issues.Issues, 1)
	assert.Equal(t, "RuleSet expansion depth exceeded while inserting A: A -> B -> A.", res.Issues.Issues[0].Diagnostics)
}

func TestParameterizedRuleSetCycle(t *testing.T) {
	res := importFSH(t, nil, `
RuleSet: Loop(x)
* {x} 1..1
* insert Loop({x})

Profile: P
Parent: Observation
* insert Loop(code)
`)

	p := res.Documents[0].Profiles["P"]
	assertRules(t, []fshtypes.Rule{
		&fshtypes.CardRule{Path: "code", Min: ptr(1), Max: "1"},
	}, p.Rules)
	require.Len(t, res.Issues.Issues, 1)
	assert.Equal(t, "RuleSet expansion depth exceeded while inserting Loop: Loop(code) -> Loop(code).", res.Issues.Issues[0].Diagnostics)
}

func TestParameterizedRuleSetDepthLimit(t *testing.T) {
	res := importFSH(t, []Option{WithMaxInsertDepth(3)}, `
RuleSet: Grow(x)
* {x} MS
* insert Grow({x}.extension)

Profile: P
Parent: Observation
* insert Grow(code)
`)

	ms := fshtypes.FlagSet{MustSupport: true}
	p := res.Documents[0].Profiles["P"]
	assertRules(t, []fshtypes.Rule{
		&fshtypes.FlagRule{Path: "code", FlagSet: ms},
		&fshtypes.FlagRule{Path: "code.extension", FlagSet: ms},
		&fshtypes.FlagRule{Path: "code.extension.extension", FlagSet: ms},
	}, p.Rules)
	assert.Len(t, res.Documents[0].AppliedRuleSets, 3)

	require.Len(t, res.Issues.Issues, 1)
	got := res.Issues.Issues[0]
	assert.Equal(t, issue.DiagRuleSetExpansion, issue.DiagnosticID(got.MessageID))
	assert.Equal(t, []string{
		"RuleSet expansion depth exceeded while inserting Grow: " +
			"Grow(code) -> Grow(code.extension) -> Grow(code.extension.extension) -> Grow(code.extension.extension.extension).",
	}, got.Details)
}

func TestConceptsInsertedIntoTerminology(t *testing.T) {
	res := importFSH(t, nil, `
Alias: $SCT = http://snomed.info/sct

RuleSet: SctConcepts
* $SCT#123 "Heart"
* $SCT#456 "Lung"

ValueSet: Organs
* insert SctConcepts
* $SCT#789 "Liver"

RuleSet: Codes
* #x "X"
  * #y "Y"

CodeSystem: CS
* #top "Top"
  * insert Codes

Profile: P
Parent: Observation
* insert SctConcepts
`)

	doc := res.Documents[0]
	vs := doc.ValueSets["Organs"]
	require.NotNil(t, vs)
	assertRules(t, []fshtypes.Rule{
		&fshtypes.ValueSetConceptComponentRule{
			Inclusion: true,
			From:      fshtypes.ValueSetComponentFrom{System: sct},
			Concepts: []*fshtypes.FshCode{
				{Code: "123", System: sct},
				{Code: "456", System: sct},
				{Code: "789", System: sct},
			},
		},
	}, vs.Rules)

	cs := doc.CodeSystems["CS"]
	require.NotNil(t, cs)
	assertRules(t, []fshtypes.Rule{
		&fshtypes.ConceptRule{Code: "top", Display: "Top"},
		&fshtypes.ConceptRule{Code: "x", Display: "X", Hierarchy: []string{"top"}},
		&fshtypes.ConceptRule{Code: "y", Display: "Y", Hierarchy: []string{"top", "x"}},
	}, cs.Rules)

	assert.Empty(t, doc.Profiles["P"].Rules)
	assert.Equal(t, []issue.DiagnosticID{issue.DiagRuleSetRuleConversion, issue.DiagRuleSetRuleConversion}, issueIDs(res))
	assert.Equal(t, "Rule of type ConceptRule inserted from RuleSet SctConcepts cannot be applied to Profile P.", res.Issues.Issues[0].Diagnostics)
}

func TestInsertAtCodePath(t *testing.T) {
	res := importFSH(t, nil, `
RuleSet: Designation
* ^designation.value = "d"

CodeSystem: CS
* #a "A"
* #a insert Designation
`)

	cs := res.Documents[0].CodeSystems["CS"]
	require.NotNil(t, cs)
	assertRules(t, []fshtypes.Rule{
		&fshtypes.ConceptRule{Code: "a", Display: "A"},
		&fshtypes.CodeCaretValueRule{CodePath: []string{"a"}, CaretPath: "designation.value", Value: fshtypes.StringValue{Value: "d"}},
	}, cs.Rules)
	assert.Empty(t, res.Issues.Issues)
}
