package importer

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gofhir/fsh/pkg/fshtypes"
	"github.com/gofhir/fsh/pkg/issue"
	"github.com/gofhir/fsh/pkg/parser"
)

// applyParamRuleSet expands a parameterized insert into an applied RuleSet
// cached on the origin document. Identical inserts share one expansion.
// Failures are reported at the insert and leave nothing in the cache, so
// the splicer drops the insert.
func (v *visitor) applyParamRuleSet(ins *fshtypes.InsertRule) {
	tmpl, ok := v.ic.ParamRuleSets[ins.RuleSet]
	if !ok {
		v.report(issue.DiagParamRuleSetNotFound, map[string]any{"name": ins.RuleSet}, ins.Source)
		return
	}
	if len(ins.Params) != len(tmpl.Parameters) {
		v.report(issue.DiagRuleSetArgCount, map[string]any{
			"name":     ins.RuleSet,
			"expected": len(tmpl.Parameters),
			"received": len(ins.Params),
		}, ins.Source)
		return
	}

	key := fshtypes.NewAppliedRuleSetKey(ins.RuleSet, ins.Params)
	m := v.ic.opts.metrics
	if _, done := v.origin.AppliedRuleSets[key]; done {
		if m != nil {
			m.RecordCacheHit()
		}
		return
	}
	if slices.Contains(v.expanding, key) {
		// The insert refers to an expansion still in progress. It stays in
		// place and the splicer reports the cycle.
		return
	}
	if len(v.expanding) >= v.ic.opts.maxInsertDepth {
		v.report(issue.DiagRuleSetDepthExceeded, map[string]any{
			"name":  ins.RuleSet,
			"chain": expansionChain(append(slices.Clone(v.expanding), key)),
		}, ins.Source)
		return
	}
	if m != nil {
		m.RecordCacheMiss()
		m.RecordExpansion()
	}

	at := ins.Source
	if v.reportAt != nil {
		at = *v.reportAt
	}

	src := "RuleSet: " + ins.RuleSet + "\n" + substitute(tmpl.Contents, tmpl.Parameters, ins.Params)
	path := fmt.Sprintf("%s [%s]", v.origin.File, ins.RuleSet)
	v.ic.log.Debug("Expanding RuleSet %s(%s)", ins.RuleSet, strings.Join(ins.Params, ", "))

	// Only the outermost expansion buffers diagnostics; deeper ones report
	// into the same buffer.
	sink := v.sink
	var collector *issue.Collector
	if !v.collecting {
		collector = issue.NewCollector()
		sink = collector
	}
	nested := &visitor{
		ic:         v.ic,
		doc:        fshtypes.NewDocument(path),
		origin:     v.origin,
		sink:       sink,
		collecting: true,
		expanding:  append(slices.Clone(v.expanding), key),
		reportAt:   &at,
	}
	f := parser.New(path, []byte(src), v.ic.log).Parse()
	for _, d := range f.Diagnostics {
		sink.Report(d)
	}
	nested.visitDecls(f.Decls)

	if collector != nil && collector.Len() > 0 {
		span := ins.Source
		agg := issue.New(issue.DiagRuleSetExpansion, map[string]any{"name": ins.RuleSet}, &span)
		agg.Details = collector.Messages()
		v.sink.Report(agg)
	}

	rs, ok := nested.doc.RuleSets[ins.RuleSet]
	if !ok || (len(rs.Rules) == 0 && len(f.Diagnostics) > 0) {
		v.report(issue.DiagRuleSetParseFailed, map[string]any{
			"name":   ins.RuleSet,
			"params": strings.Join(ins.Params, ", "),
		}, ins.Source)
		return
	}
	// Synthetic document spans never reach the user: the rules point at
	// the outermost insert, which is where the splicer reports them.
	rs.Source = at
	for _, r := range rs.Rules {
		fshtypes.SetRuleSource(r, at)
	}
	v.origin.AppliedRuleSets[key] = rs
}

// expansionChain renders a stack of applied RuleSet keys as
// "A(x) -> B(y) -> A(x)".
func expansionChain(keys []fshtypes.AppliedRuleSetKey) string {
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = k.String()
	}
	return strings.Join(names, " -> ")
}
