package importer

import (
	"maps"
	"slices"
	"strings"

	"github.com/gofhir/fsh/pkg/fshtypes"
	"github.com/gofhir/fsh/pkg/issue"
	"github.com/gofhir/fsh/pkg/legality"
)

// splicer replaces insert rules with the rules they name. Each RuleSet is
// flattened once; flattened rule lists are cloned at every insertion so
// entities never share rule values.
type splicer struct {
	ic      *ImportContext
	flat    map[*fshtypes.RuleSet][]fshtypes.Rule
	active  []*fshtypes.RuleSet
	labels  []string
	inserts int
}

func (ic *ImportContext) splice() {
	s := &splicer{ic: ic, flat: make(map[*fshtypes.RuleSet][]fshtypes.Rule)}
	for _, doc := range ic.Documents {
		for _, name := range slices.Sorted(maps.Keys(doc.RuleSets)) {
			rs := doc.RuleSets[name]
			rs.Rules = s.flatten(rs, doc, rs.Name)
		}
		for _, key := range slices.Sorted(maps.Keys(doc.AppliedRuleSets)) {
			rs := doc.AppliedRuleSets[key]
			rs.Rules = s.flatten(rs, doc, key.String())
		}
		for _, e := range doc.Entities() {
			if e.Kind() == fshtypes.KindRuleSet || !hasInsert(e.Base().Rules) {
				continue
			}
			s.spliceEntity(e, doc)
		}
	}
	ic.log.Debug("Spliced %d insert rules", s.inserts)
}

func hasInsert(rules []fshtypes.Rule) bool {
	return slices.ContainsFunc(rules, func(r fshtypes.Rule) bool {
		return r.Kind() == fshtypes.RuleInsert
	})
}

func (s *splicer) report(id issue.DiagnosticID, params map[string]any, ins *fshtypes.InsertRule) {
	span := ins.Source
	issue.Report(s.ic.sink, id, params, &span)
}

// spliceEntity rebuilds e's rule list with every insert replaced in place.
// Every rule is added again, so components and concepts from inserts are
// merged and checked together with the entity's own.
func (s *splicer) spliceEntity(e fshtypes.Entity, owner *fshtypes.Document) {
	base := e.Base()
	rules := base.Rules
	base.Rules = make([]fshtypes.Rule, 0, len(rules))
	for _, r := range rules {
		ins, ok := r.(*fshtypes.InsertRule)
		if !ok {
			appendRule(e, r, s.ic.sink)
			continue
		}
		for _, inserted := range s.insert(ins, owner) {
			s.add(e, inserted, ins)
		}
	}
}

// flatten returns rs's rules with its own inserts expanded.
func (s *splicer) flatten(rs *fshtypes.RuleSet, owner *fshtypes.Document, label string) []fshtypes.Rule {
	if out, ok := s.flat[rs]; ok {
		return out
	}
	s.active = append(s.active, rs)
	s.labels = append(s.labels, label)
	defer func() {
		s.active = s.active[:len(s.active)-1]
		s.labels = s.labels[:len(s.labels)-1]
	}()

	out := make([]fshtypes.Rule, 0, len(rs.Rules))
	for _, r := range rs.Rules {
		ins, ok := r.(*fshtypes.InsertRule)
		if !ok {
			out = append(out, r)
			continue
		}
		out = append(out, s.insert(ins, owner)...)
	}
	s.flat[rs] = out
	return out
}

// insert resolves one insert rule to rebased copies of the rules it names.
// A parameterized insert whose expansion failed was reported when it was
// visited and yields nothing.
func (s *splicer) insert(ins *fshtypes.InsertRule, owner *fshtypes.Document) []fshtypes.Rule {
	s.inserts++
	var (
		rs    *fshtypes.RuleSet
		from  *fshtypes.Document
		label string
	)
	if ins.IsParameterized() {
		key := fshtypes.NewAppliedRuleSetKey(ins.RuleSet, ins.Params)
		rs, from, label = owner.AppliedRuleSets[key], owner, key.String()
		if rs == nil {
			return nil
		}
	} else {
		rs, from = s.ic.LookupRuleSet(ins.RuleSet, owner)
		if rs == nil {
			s.report(issue.DiagRuleSetNotFound, map[string]any{"name": ins.RuleSet}, ins)
			return nil
		}
		label = rs.Name
	}

	if slices.Contains(s.active, rs) || len(s.active) >= s.ic.opts.maxInsertDepth {
		chain := append(slices.Clone(s.labels), label)
		s.report(issue.DiagRuleSetDepthExceeded, map[string]any{
			"name":  ins.RuleSet,
			"chain": strings.Join(chain, " -> "),
		}, ins)
		return nil
	}

	rules := s.flatten(rs, from, label)
	out := make([]fshtypes.Rule, 0, len(rules))
	for _, r := range rules {
		c := rebase(fshtypes.CloneRule(r), ins)
		if ins.IsParameterized() {
			fshtypes.SetRuleSource(c, ins.Source)
		}
		out = append(out, c)
	}
	return out
}

// rebase prefixes an inserted rule with the insert's path, or its code
// path for concept and code caret rules. A root caret rule inserted at a
// code path becomes a code caret rule.
func rebase(r fshtypes.Rule, ins *fshtypes.InsertRule) fshtypes.Rule {
	switch rule := r.(type) {
	case *fshtypes.CodeCaretValueRule:
		rule.CodePath = joinCodes(ins.CodePath, rule.CodePath)
		return rule
	case *fshtypes.ConceptRule:
		rule.Hierarchy = joinCodes(ins.CodePath, rule.Hierarchy)
		return rule
	case *fshtypes.CaretValueRule:
		if rule.Path == "" && ins.Path == "" && len(ins.CodePath) > 0 {
			return &fshtypes.CodeCaretValueRule{
				CodePath:   joinCodes(ins.CodePath, nil),
				CaretPath:  rule.CaretPath,
				Value:      rule.Value,
				IsInstance: rule.IsInstance,
				Source:     rule.Source,
			}
		}
	}
	if ins.Path != "" {
		fshtypes.SetRulePath(r, joinPath(ins.Path, r.RulePath()))
	}
	return r
}

// add appends an inserted rule to e. A concept inserted into a ValueSet
// becomes an include component; rules e cannot hold are reported against
// the insert.
func (s *splicer) add(e fshtypes.Entity, r fshtypes.Rule, ins *fshtypes.InsertRule) {
	if c, ok := r.(*fshtypes.ConceptRule); ok && e.Kind() == fshtypes.KindValueSet {
		if c.System == "" {
			span := c.Source
			issue.Report(s.ic.sink, issue.DiagVsMissingSystem, map[string]any{"code": "#" + c.Code}, &span)
			return
		}
		r = conceptComponent(c)
	}
	if !legality.IsAllowed(e.Kind(), r) {
		s.report(issue.DiagRuleSetRuleConversion, map[string]any{
			"rule":   r.Kind(),
			"name":   ins.RuleSet,
			"kind":   e.Kind(),
			"entity": e.Base().Name,
		}, ins)
		return
	}
	if c, ok := r.(*fshtypes.ConceptRule); ok && c.System != "" && e.Kind() == fshtypes.KindCodeSystem {
		span := c.Source
		issue.Report(s.ic.sink, issue.DiagCodeSystemSystem, map[string]any{"code": c.System + "#" + c.Code}, &span)
		return
	}
	appendRule(e, r, s.ic.sink)
}
