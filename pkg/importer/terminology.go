package importer

import (
	"github.com/gofhir/fsh/pkg/fshtypes"
	"github.com/gofhir/fsh/pkg/issue"
)

// appendRule adds r to the end of e's rule list. A CodeSystem rejects a
// concept whose code it already declares, and a ValueSet folds a concept
// component into the first component with the same inclusion and from
// clause. The visitor and the splicer both add rules through here.
func appendRule(e fshtypes.Entity, r fshtypes.Rule, sink issue.Sink) {
	base := e.Base()
	switch rule := r.(type) {
	case *fshtypes.ConceptRule:
		cs, ok := e.(*fshtypes.FshCodeSystem)
		if !ok {
			break
		}
		for _, c := range cs.Concepts() {
			if c.Code == rule.Code {
				span := rule.Source
				issue.Report(sink, issue.DiagDuplicateCode, map[string]any{"name": base.Name, "code": rule.Code}, &span)
				return
			}
		}
	case *fshtypes.ValueSetConceptComponentRule:
		if _, ok := e.(*fshtypes.FshValueSet); !ok {
			break
		}
		if target := findComponent(base.Rules, rule); target != nil {
			target.Concepts = append(target.Concepts, rule.Concepts...)
			return
		}
	}
	base.AddRule(r)
}

func findComponent(rules []fshtypes.Rule, like *fshtypes.ValueSetConceptComponentRule) *fshtypes.ValueSetConceptComponentRule {
	for _, r := range rules {
		c, ok := r.(*fshtypes.ValueSetConceptComponentRule)
		if ok && c.Inclusion == like.Inclusion && c.From.Equal(like.From) {
			return c
		}
	}
	return nil
}

// conceptComponent converts a concept rule inserted into a ValueSet into an
// include component for that concept. The concept must carry a system.
func conceptComponent(c *fshtypes.ConceptRule) *fshtypes.ValueSetConceptComponentRule {
	return &fshtypes.ValueSetConceptComponentRule{
		Inclusion: true,
		From:      fshtypes.ValueSetComponentFrom{System: c.System},
		Concepts: []*fshtypes.FshCode{{
			Code:    c.Code,
			System:  c.System,
			Display: c.Display,
		}},
		Source: c.Source,
	}
}
