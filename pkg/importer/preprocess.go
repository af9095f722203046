package importer

import (
	"regexp"
	"strings"

	"github.com/gofhir/fsh/pkg/fshtypes"
	"github.com/gofhir/fsh/pkg/issue"
	"github.com/gofhir/fsh/pkg/parser"
)

var aliasNamePattern = regexp.MustCompile(`^\$?[A-Za-z0-9_.\-]+$`)

// preprocess collects the batch-wide alias table and the parameterized
// RuleSet templates before any entity is built. The first binding of a
// name wins.
func (ic *ImportContext) preprocess(files []*parser.File) {
	for _, f := range files {
		for _, decl := range f.Decls {
			switch d := decl.(type) {
			case *parser.AliasDecl:
				ic.addAlias(d)
			case *parser.ParamRuleSetDecl:
				ic.addParamRuleSet(d)
			}
		}
	}
	ic.log.Info("Preprocessed %d documents with %d aliases.", len(files), len(ic.Aliases))
}

func (ic *ImportContext) addAlias(d *parser.AliasDecl) {
	if !aliasNamePattern.MatchString(d.Name) {
		ic.report(issue.DiagAliasInvalidName, map[string]any{"name": d.Name}, d.NameSpan)
		return
	}
	if strings.HasPrefix(d.Value, "$") {
		ic.report(issue.DiagAliasDollarValue, map[string]any{"name": d.Name}, d.ValueSpan)
		return
	}
	if existing, ok := ic.Aliases[d.Name]; ok {
		if existing != d.Value {
			ic.report(issue.DiagAliasConflict, map[string]any{
				"name":     d.Name,
				"value":    d.Value,
				"existing": existing,
			}, d.Span)
		}
		return
	}
	ic.Aliases[d.Name] = d.Value
	ic.aliasSpans[d.Name] = d.Span
}

func (ic *ImportContext) addParamRuleSet(d *parser.ParamRuleSetDecl) {
	if _, exists := ic.ParamRuleSets[d.Name]; exists {
		ic.report(issue.DiagDuplicateRuleSet, map[string]any{"name": d.Name}, d.Span)
		return
	}
	prs := fshtypes.NewParamRuleSet(d.Name, d.Span)
	prs.Parameters = d.Parameters
	prs.Contents = d.Body
	for _, param := range prs.UnusedParameters() {
		ic.report(issue.DiagUnusedParameter, map[string]any{"name": d.Name, "param": param}, d.Span)
	}
	ic.ParamRuleSets[d.Name] = prs
}
