package importer

import (
	"strings"

	"github.com/gofhir/fsh/pkg/fshtypes"
	"github.com/gofhir/fsh/pkg/issue"
	"github.com/gofhir/fsh/pkg/location"
	"github.com/gofhir/fsh/pkg/logger"
)

// ImportContext holds the state shared by every document of one batch:
// the alias table, the parameterized RuleSet templates and the documents
// built so far. It is owned by a single import run and passed explicitly
// to every visitor.
type ImportContext struct {
	Aliases       map[string]string
	ParamRuleSets map[string]*fshtypes.ParamRuleSet
	Documents     []*fshtypes.Document

	aliasSpans map[string]location.Span
	opts       options
	log        *logger.Logger
	sink       issue.Sink
}

func newImportContext(opts options, sink issue.Sink) *ImportContext {
	return &ImportContext{
		Aliases:       make(map[string]string),
		ParamRuleSets: make(map[string]*fshtypes.ParamRuleSet),
		aliasSpans:    make(map[string]location.Span),
		opts:          opts,
		log:           opts.log,
		sink:          sink,
	}
}

// ResolveAlias returns the value bound to name. A "name|version" value
// resolves its name part and keeps the version.
func (ic *ImportContext) ResolveAlias(name string) (string, bool) {
	if v, ok := ic.Aliases[name]; ok {
		return v, true
	}
	if base, version, found := strings.Cut(name, "|"); found {
		if v, ok := ic.Aliases[base]; ok {
			return v + "|" + version, true
		}
	}
	return "", false
}

// LookupRuleSet finds a plain RuleSet by name, preferring the one declared
// in prefer. It returns the RuleSet and the document that owns it.
func (ic *ImportContext) LookupRuleSet(name string, prefer *fshtypes.Document) (*fshtypes.RuleSet, *fshtypes.Document) {
	if prefer != nil {
		if rs, ok := prefer.RuleSets[name]; ok {
			return rs, prefer
		}
	}
	for _, doc := range ic.Documents {
		if rs, ok := doc.RuleSets[name]; ok {
			return rs, doc
		}
	}
	return nil, nil
}

func (ic *ImportContext) report(id issue.DiagnosticID, params map[string]any, span location.Span) {
	issue.Report(ic.sink, id, params, &span)
}
