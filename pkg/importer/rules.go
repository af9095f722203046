package importer

import (
	"strconv"
	"strings"

	"github.com/gofhir/fsh/pkg/fshtypes"
	"github.com/gofhir/fsh/pkg/issue"
	"github.com/gofhir/fsh/pkg/legality"
	"github.com/gofhir/fsh/pkg/location"
	"github.com/gofhir/fsh/pkg/parser"
)

// visitRules converts the body of an entity, resolving each rule against
// the path context of the rule it is indented under.
func (v *visitor) visitRules(e fshtypes.Entity, nodes []parser.RuleNode) {
	var pc pathContext
	for _, n := range nodes {
		if n == nil {
			continue
		}
		parent, level := pc.enter(v, n.Base())
		rules, entry := v.convertRule(n, parent)
		pc.set(level, entry)
		for _, r := range rules {
			v.addRule(e, r)
		}
	}
}

// addRule appends one converted rule. Rules the entity kind cannot hold
// are reported and dropped; insert rules are always kept so the splicer
// can replace them.
func (v *visitor) addRule(e fshtypes.Entity, r fshtypes.Rule) {
	if ins, ok := r.(*fshtypes.InsertRule); ok {
		e.Base().AddRule(ins)
		if ins.IsParameterized() {
			v.applyParamRuleSet(ins)
		}
		return
	}
	if !legality.KindAllowed(e.Kind(), r.Kind()) {
		v.report(issue.DiagUnsupportedRule, map[string]any{
			"rule": r.Kind(),
			"kind": e.Kind(),
			"name": e.Base().Name,
		}, r.SourceInfo())
		return
	}
	if c, ok := r.(*fshtypes.ConceptRule); ok && c.System != "" && e.Kind() == fshtypes.KindCodeSystem {
		v.report(issue.DiagCodeSystemSystem, map[string]any{"code": c.System + "#" + c.Code}, c.Source)
		return
	}
	appendRule(e, r, v.sink)
}

// convertRule translates one rule node. It returns the rules the node
// yields and the context it establishes for rules indented below it.
func (v *visitor) convertRule(n parser.RuleNode, parent contextEntry) ([]fshtypes.Rule, contextEntry) {
	span := n.Base().Span
	switch node := n.(type) {
	case *parser.CardRuleNode:
		path := joinPath(parent.path, node.Path)
		entry := contextEntry{path: path}
		card, ok := v.cardRule(path, node.Card, span)
		if !ok {
			return nil, entry
		}
		rules := []fshtypes.Rule{card}
		if flags := flagRule(path, node.Flags, span); flags != nil {
			rules = append(rules, flags)
		}
		return rules, entry

	case *parser.FlagRuleNode:
		rules := make([]fshtypes.Rule, 0, len(node.Paths))
		for _, p := range node.Paths {
			if flags := flagRule(joinPath(parent.path, p), node.Flags, span); flags != nil {
				rules = append(rules, flags)
			}
		}
		if len(node.Paths) == 1 {
			return rules, contextEntry{path: joinPath(parent.path, node.Paths[0])}
		}
		return rules, parent

	case *parser.ValueSetRuleNode:
		path := joinPath(parent.path, node.Path)
		strength := fshtypes.DefaultBindingStrength
		if node.Strength != "" {
			if s, ok := fshtypes.ParseBindingStrength(node.Strength); ok {
				strength = s
			}
		}
		return []fshtypes.Rule{&fshtypes.BindingRule{
			Path:     path,
			ValueSet: v.resolve(node.ValueSet, span),
			Strength: strength,
			Source:   span,
		}}, contextEntry{path: path}

	case *parser.FixedValueRuleNode:
		path, entry := scoped(parent, node.Path)
		value, isInstance := v.convertValue(node.Value)
		if value == nil {
			return nil, entry
		}
		return []fshtypes.Rule{&fshtypes.AssignmentRule{
			Path:       path,
			Value:      value,
			Exactly:    node.Exactly,
			IsInstance: isInstance,
			Source:     span,
		}}, entry

	case *parser.ContainsRuleNode:
		return v.containsRules(node, parent, span)

	case *parser.OnlyRuleNode:
		path := joinPath(parent.path, node.Path)
		return []fshtypes.Rule{&fshtypes.OnlyRule{
			Path:   path,
			Types:  v.targetTypes(node.Types, span),
			Source: span,
		}}, contextEntry{path: path}

	case *parser.ObeysRuleNode:
		path, entry := scoped(parent, node.Path)
		rules := make([]fshtypes.Rule, 0, len(node.Invariants))
		for _, inv := range node.Invariants {
			rules = append(rules, &fshtypes.ObeysRule{Path: path, Invariant: v.resolve(inv, span), Source: span})
		}
		return rules, entry

	case *parser.CaretValueRuleNode:
		value, isInstance := v.convertValue(node.Value)
		if node.Path == "" && parent.path == "" && len(parent.codes) > 0 {
			if value == nil {
				return nil, parent
			}
			return []fshtypes.Rule{&fshtypes.CodeCaretValueRule{
				CodePath:   joinCodes(parent.codes, nil),
				CaretPath:  node.CaretPath,
				Value:      value,
				IsInstance: isInstance,
				Source:     span,
			}}, parent
		}
		path, entry := scoped(parent, node.Path)
		if value == nil {
			return nil, entry
		}
		return []fshtypes.Rule{&fshtypes.CaretValueRule{
			Path:       path,
			CaretPath:  node.CaretPath,
			Value:      value,
			IsInstance: isInstance,
			Source:     span,
		}}, entry

	case *parser.CodeCaretValueRuleNode:
		codes := joinCodes(parent.codes, codeTexts(node.Codes))
		entry := contextEntry{codes: codes}
		value, isInstance := v.convertValue(node.Value)
		if value == nil {
			return nil, entry
		}
		return []fshtypes.Rule{&fshtypes.CodeCaretValueRule{
			CodePath:   codes,
			CaretPath:  node.CaretPath,
			Value:      value,
			IsInstance: isInstance,
			Source:     span,
		}}, entry

	case *parser.MappingRuleNode:
		path, entry := scoped(parent, node.Path)
		rule := &fshtypes.MappingRule{Path: path, Map: DecodeString(node.Target.Text), Source: span}
		if node.Comment != nil {
			rule.Comment = DecodeString(node.Comment.Text)
		}
		if node.Language != nil {
			rule.Language = v.parseCode(node.Language.Text, node.Language.Span)
		}
		return []fshtypes.Rule{rule}, entry

	case *parser.InsertRuleNode:
		path, entry := scoped(parent, node.Path)
		rule := &fshtypes.InsertRule{Path: path, RuleSet: node.RuleSet, Source: span}
		if node.Path == "" {
			rule.CodePath = joinCodes(parent.codes, codeTexts(node.Codes))
		}
		if node.HasArgs {
			rule.Params = SplitArgs(node.Args)
		}
		return []fshtypes.Rule{rule}, entry

	case *parser.AddElementRuleNode:
		return v.addElementRule(node, parent, span)

	case *parser.PathRuleNode:
		path := joinPath(parent.path, node.Path)
		return []fshtypes.Rule{&fshtypes.PathRule{Path: path, Source: span}}, contextEntry{path: path}

	case *parser.ConceptRuleNode:
		return v.conceptRule(node, parent, span)

	case *parser.VsComponentNode:
		if r := v.componentRule(node, span); r != nil {
			return []fshtypes.Rule{r}, parent
		}
		return nil, parent
	}
	return nil, parent
}

// scoped resolves a path that may be empty. An empty path addresses the
// context element and passes the whole context on to nested rules.
func scoped(parent contextEntry, path string) (string, contextEntry) {
	if path == "" {
		return parent.path, parent
	}
	full := joinPath(parent.path, path)
	return full, contextEntry{path: full}
}

func codeTexts(toks []parser.Token) []string {
	if len(toks) == 0 {
		return nil
	}
	out := make([]string, len(toks))
	for i, t := range toks {
		out[i] = codeText(t)
	}
	return out
}

// parseCard splits "min..max". Either bound may be missing; ok is false
// when both are.
func parseCard(card string) (lower *int, upper string, ok bool) {
	lo, hi, found := strings.Cut(card, "..")
	if !found {
		return nil, "", false
	}
	if lo != "" {
		n, err := strconv.Atoi(lo)
		if err != nil {
			return nil, "", false
		}
		lower = &n
	}
	return lower, hi, lower != nil || hi != ""
}

func (v *visitor) cardRule(path, card string, span location.Span) (*fshtypes.CardRule, bool) {
	lower, upper, ok := parseCard(card)
	if !ok {
		v.report(issue.DiagInvalidCardinality, map[string]any{"path": path}, span)
		return nil, false
	}
	return &fshtypes.CardRule{Path: path, Min: lower, Max: upper, Source: span}, true
}

func flagSet(flags []string) fshtypes.FlagSet {
	var fs fshtypes.FlagSet
	for _, f := range flags {
		if flag, ok := fshtypes.ParseFlag(f); ok {
			fs.Apply(flag)
		}
	}
	return fs
}

// flagRule returns nil when flags is empty.
func flagRule(path string, flags []string, span location.Span) *fshtypes.FlagRule {
	if len(flags) == 0 {
		return nil
	}
	return &fshtypes.FlagRule{Path: path, FlagSet: flagSet(flags), Source: span}
}

// containsRules yields the contains rule followed by a card rule and an
// optional flag rule for each item. A single item becomes the context of
// nested rules.
func (v *visitor) containsRules(node *parser.ContainsRuleNode, parent contextEntry, span location.Span) ([]fshtypes.Rule, contextEntry) {
	path := joinPath(parent.path, node.Path)
	contains := &fshtypes.ContainsRule{Path: path, Source: span}
	rules := []fshtypes.Rule{contains}
	for _, item := range node.Items {
		ci := fshtypes.ContainsRuleItem{Name: item.Name}
		if item.Named != "" {
			ci = fshtypes.ContainsRuleItem{Name: item.Named, Type: v.resolve(item.Name, span)}
		}
		contains.Items = append(contains.Items, ci)

		slice := path + "[" + ci.Name + "]"
		if card, ok := v.cardRule(slice, item.Card, span); ok {
			rules = append(rules, card)
		}
		if flags := flagRule(slice, item.Flags, span); flags != nil {
			rules = append(rules, flags)
		}
	}
	if len(contains.Items) == 1 {
		return rules, contextEntry{path: path + "[" + contains.Items[0].Name + "]"}
	}
	return rules, contextEntry{path: path}
}

func (v *visitor) targetTypes(types []parser.TargetType, span location.Span) []fshtypes.OnlyRuleType {
	out := make([]fshtypes.OnlyRuleType, len(types))
	for i, t := range types {
		out[i] = fshtypes.OnlyRuleType{
			Type:                v.resolve(t.Name, span),
			IsReference:         t.IsReference,
			IsCanonical:         t.IsCanonical,
			IsCodeableReference: t.IsCodeableReference,
		}
	}
	return out
}

func (v *visitor) addElementRule(node *parser.AddElementRuleNode, parent contextEntry, span location.Span) ([]fshtypes.Rule, contextEntry) {
	path := joinPath(parent.path, node.Path)
	entry := contextEntry{path: path}
	lower, upper, _ := parseCard(node.Card)
	if lower == nil || upper == "" {
		v.syntax(span, "Element "+path+" requires both a minimum and a maximum cardinality.")
		return nil, entry
	}
	rule := &fshtypes.AddElementRule{
		Path:             path,
		Min:              *lower,
		Max:              upper,
		Flags:            flagSet(node.Flags),
		Types:            v.targetTypes(node.Types, span),
		ContentReference: node.ContentReference,
		Source:           span,
	}
	if node.Short != nil {
		rule.Short = DecodeString(node.Short.Text)
	}
	rule.Definition = rule.Short
	if node.Definition != nil {
		rule.Definition = text(*node.Definition)
	}
	return []fshtypes.Rule{rule}, entry
}

// conceptRule builds a concept whose hierarchy is the enclosing concept's
// code path followed by every code written before its own.
func (v *visitor) conceptRule(node *parser.ConceptRuleNode, parent contextEntry, span location.Span) ([]fshtypes.Rule, contextEntry) {
	if len(node.Codes) == 0 {
		return nil, parent
	}
	last := node.Codes[len(node.Codes)-1]
	system, code := splitCode(last.Text)
	concept := &fshtypes.ConceptRule{
		Code:      code,
		Hierarchy: joinCodes(parent.codes, codeTexts(node.Codes[:len(node.Codes)-1])),
		Source:    span,
	}
	if system != "" {
		concept.System = v.resolve(system, last.Span)
	}
	if node.Display != nil {
		concept.Display = DecodeString(node.Display.Text)
	}
	if node.Definition != nil {
		concept.Definition = text(*node.Definition)
	}
	return []fshtypes.Rule{concept}, contextEntry{codes: joinCodes(concept.Hierarchy, []string{code})}
}

// componentRule converts a ValueSet include or exclude line.
func (v *visitor) componentRule(node *parser.VsComponentNode, span location.Span) fshtypes.Rule {
	from := fshtypes.ValueSetComponentFrom{}
	if node.FromSystem != "" {
		from.System = v.resolve(node.FromSystem, span)
	}
	for _, vs := range node.FromValueSets {
		from.ValueSets = append(from.ValueSets, v.resolve(vs, span))
	}

	if node.IsFilter {
		rule := &fshtypes.ValueSetFilterComponentRule{Inclusion: !node.Exclude, From: from, Source: span}
		for _, f := range node.Filters {
			filter, ok := v.filter(f)
			if !ok {
				return nil
			}
			rule.Filters = append(rule.Filters, filter)
		}
		return rule
	}

	if node.Concept == nil {
		return nil
	}
	value, _ := v.convertValue(node.Concept)
	concept, ok := value.(*fshtypes.FshCode)
	if !ok {
		return nil
	}
	switch {
	case concept.System == "" && from.System == "":
		v.report(issue.DiagVsMissingSystem, map[string]any{"code": concept.FSH()}, span)
		return nil
	case concept.System == "":
		concept.System = from.System
	case from.System == "":
		from.System = concept.System
	case concept.System != from.System:
		v.report(issue.DiagVsSystemConflict, map[string]any{
			"code":       concept.Code,
			"codeSystem": concept.System,
			"system":     from.System,
		}, span)
		return nil
	}
	return &fshtypes.ValueSetConceptComponentRule{
		Inclusion: !node.Exclude,
		From:      from,
		Concepts:  []*fshtypes.FshCode{concept},
		Source:    span,
	}
}

// filter validates a filter's operator and the kind of its value.
func (v *visitor) filter(f parser.FilterNode) (fshtypes.ValueSetFilter, bool) {
	op, ok := fshtypes.ParseFilterOperator(f.Operator)
	if !ok {
		v.report(issue.DiagVsFilterOperator, map[string]any{"operator": f.Operator}, f.Span)
		return fshtypes.ValueSetFilter{}, false
	}
	out := fshtypes.ValueSetFilter{Property: f.Property, Operator: op}
	wrong := func(expected string) (fshtypes.ValueSetFilter, bool) {
		v.report(issue.DiagVsFilterValue, map[string]any{"operator": f.Operator, "expected": expected}, f.Span)
		return fshtypes.ValueSetFilter{}, false
	}

	var kind parser.ValueKind
	if f.Value != nil {
		kind = f.Value.Kind
	}
	switch op {
	case fshtypes.FilterIsA, fshtypes.FilterDescendentOf, fshtypes.FilterIsNotA, fshtypes.FilterGeneralizes:
		if kind != parser.ValCode {
			return wrong("code")
		}
		out.Value, _ = v.convertValue(f.Value)
	case fshtypes.FilterRegex:
		if kind != parser.ValRegex {
			return wrong("regex")
		}
		raw := f.Value.Token.Text
		out.Value = fshtypes.StringValue{Value: strings.TrimSuffix(strings.TrimPrefix(raw, "/"), "/")}
		out.IsRegex = true
	case fshtypes.FilterExists:
		if kind != parser.ValBool {
			return wrong("boolean")
		}
		out.Value, _ = v.convertValue(f.Value)
	default:
		if kind != parser.ValString && kind != parser.ValMultilineString {
			return wrong("string")
		}
		out.Value, _ = v.convertValue(f.Value)
	}
	return out, true
}
