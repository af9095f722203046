package parser

import (
	"regexp"
	"strings"

	"github.com/gofhir/fsh/pkg/location"
)

var (
	cardPattern     = regexp.MustCompile(`^([0-9]+)?\.\.([0-9]+|\*)?$`)
	numberPattern   = regexp.MustCompile(`^[+-]?[0-9]+(\.[0-9]+)?([eE][+-]?[0-9]+)?$`)
	dateTimePattern = regexp.MustCompile(`^[0-9]{4}(-[0-9]{2}(-[0-9]{2}(T[0-9]{2}(:[0-9]{2}(:[0-9]{2}(\.[0-9]+)?)?)?(Z|[+-][0-9]{2}:[0-9]{2})?)?)?)?$`)
	timePattern     = regexp.MustCompile(`^[0-9]{2}:[0-9]{2}(:[0-9]{2}(\.[0-9]+)?)?(Z|[+-][0-9]{2}:[0-9]{2})?$`)
)

// IsCard reports whether s is a cardinality such as "0..1", "1..*" or "..*".
func IsCard(s string) bool { return cardPattern.MatchString(s) }

var flagWords = map[string]bool{"MS": true, "SU": true, "?!": true, "TU": true, "N": true, "D": true}

// IsFlag reports whether s is an element flag.
func IsFlag(s string) bool { return flagWords[s] }

var strengthWords = map[string]string{
	"(example)":    "example",
	"(preferred)":  "preferred",
	"(extensible)": "extensible",
	"(required)":   "required",
}

const (
	commaListMessage     = "Using ',' to list items is no longer supported. Use 'and' to list multiple items."
	commaTypeMessage     = "Using ',' to list types is no longer supported. Use 'or' to list multiple types."
	assignmentSpaceError = "Assignment rules must include at least one space both before and after the '=' sign."
	mappingSpaceError    = "Mapping rules must include at least one space both before and after the '->' sign."
	pipeReferenceWarning = "Using '|' to list references is deprecated. Please use 'or' to list multiple references."
)

// ruleError aborts the parse of one rule.
type ruleError struct {
	span    location.Span
	message string
}

// ruleParser parses the tokens of one "*" line.
type ruleParser struct {
	p      *Parser
	entity string
	star   Token
	toks   []Token
	i      int
}

func (p *Parser) parseRule(entity string, star Token) RuleNode {
	toks := p.lineTokens()
	rp := &ruleParser{p: p, entity: entity, star: star, toks: toks}
	base := RuleBase{Indent: star.Span.Start.Column - 1, Span: star.Span}
	if len(toks) > 0 {
		base.Span = star.Span.Through(spanOf(toks))
	}

	if msg, ok := friendlyRuleError(toks); ok {
		p.errorAt(base.Span, msg)
		return nil
	}
	node, rerr := rp.classify(base)
	if rerr != nil {
		span := rerr.span
		if span.IsZero() {
			span = base.Span
		}
		p.errorAt(span, rerr.message)
		return nil
	}
	return node
}

// friendlyRuleError recognizes common authoring mistakes that would
// otherwise surface as a confusing parse failure.
func friendlyRuleError(toks []Token) (string, bool) {
	for _, t := range toks {
		if t.Kind == TokEqual || t.Kind == TokArrow {
			break
		}
		if t.Kind != TokWord && t.Kind != TokCaret {
			continue
		}
		if strings.Contains(t.Text, "->") {
			return mappingSpaceError, true
		}
		if strings.Contains(t.Text, "=") {
			return assignmentSpaceError, true
		}
	}
	return "", false
}

func (rp *ruleParser) errAt(tok Token, message string) *ruleError {
	return &ruleError{span: tok.Span, message: message}
}

func (rp *ruleParser) errf(message string) *ruleError {
	return &ruleError{message: message}
}

func (rp *ruleParser) peek() (Token, bool) {
	if rp.i < len(rp.toks) {
		return rp.toks[rp.i], true
	}
	return Token{}, false
}

func (rp *ruleParser) peekIs(word string) bool {
	t, ok := rp.peek()
	return ok && t.Is(word)
}

func (rp *ruleParser) next() (Token, bool) {
	t, ok := rp.peek()
	if ok {
		rp.i++
	}
	return t, ok
}

func (rp *ruleParser) done() bool {
	return rp.i >= len(rp.toks)
}

func (rp *ruleParser) rest() []Token {
	out := rp.toks[rp.i:]
	rp.i = len(rp.toks)
	return out
}

func (rp *ruleParser) expectEnd() *ruleError {
	if t, ok := rp.peek(); ok {
		return rp.errAt(t, "Unexpected "+t.Kind.String()+" '"+t.Text+"' at end of rule.")
	}
	return nil
}

func (rp *ruleParser) ruleText() string {
	if len(rp.toks) == 0 {
		return "*"
	}
	return rp.p.text(rp.star.Start, rp.toks[len(rp.toks)-1].End)
}

func (rp *ruleParser) classify(base RuleBase) (RuleNode, *ruleError) {
	first, ok := rp.peek()
	if !ok {
		return nil, rp.errf("Expected a rule after '*'.")
	}
	vsContext := rp.entity == KwValueSet || rp.entity == KwRuleSet

	switch {
	case first.Kind == TokCode:
		return rp.parseCodeRule(base)
	case first.Is("include") || first.Is("exclude"):
		return rp.parseVsComponent(base)
	case first.Is("codes") && vsContext:
		return rp.parseVsComponent(base)
	case first.Kind == TokCaret:
		return rp.parseCaretValue(base, "")
	case first.Kind == TokEqual:
		return rp.parseFixedValue(base, "")
	case first.Is("insert"):
		return rp.parseInsert(base, "", nil)
	case first.Is("obeys"):
		return rp.parseObeys(base, "")
	case first.Kind == TokArrow:
		return rp.parseMapping(base, "")
	case first.Kind == TokWord:
		return rp.parsePathRule(base)
	}
	return nil, rp.errf("Unable to parse rule '" + rp.ruleText() + "'.")
}

func (rp *ruleParser) parsePathRule(base RuleBase) (RuleNode, *ruleError) {
	pathTok, _ := rp.next()
	path := pathTok.Text
	second, ok := rp.peek()
	if !ok {
		return &PathRuleNode{RuleBase: base, Path: path}, nil
	}
	switch {
	case second.Kind == TokWord && IsCard(second.Text):
		return rp.parseCardOrAddElement(base, path)
	case second.Kind == TokCaret:
		return rp.parseCaretValue(base, path)
	case second.Kind == TokEqual:
		return rp.parseFixedValue(base, path)
	case second.Kind == TokArrow:
		return rp.parseMapping(base, path)
	case second.Is("from"):
		return rp.parseBinding(base, path)
	case second.Is("contains"):
		return rp.parseContains(base, path)
	case second.Is("only"):
		return rp.parseOnly(base, path)
	case second.Is("obeys"):
		return rp.parseObeys(base, path)
	case second.Is("insert"):
		return rp.parseInsert(base, path, nil)
	case second.Is("and") || IsFlag(second.Text):
		return rp.parseFlags(base, path)
	}
	if strings.HasSuffix(path, ",") {
		return nil, rp.errf(commaListMessage)
	}
	return nil, rp.errAt(second, "Unable to parse rule '"+rp.ruleText()+"'.")
}

func (rp *ruleParser) parseFlagWords() []string {
	var flags []string
	for {
		t, ok := rp.peek()
		if !ok || t.Kind != TokWord || !IsFlag(t.Text) {
			return flags
		}
		rp.i++
		flags = append(flags, t.Text)
	}
}

func (rp *ruleParser) parseCardOrAddElement(base RuleBase, path string) (RuleNode, *ruleError) {
	card, _ := rp.next()
	flags := rp.parseFlagWords()
	if rp.done() {
		return &CardRuleNode{RuleBase: base, Path: path, Card: card.Text, Flags: flags}, nil
	}

	node := &AddElementRuleNode{RuleBase: base, Path: path, Card: card.Text, Flags: flags}
	if rp.peekIs("contentReference") {
		rp.i++
		ref, ok := rp.next()
		if !ok || (ref.Kind != TokWord && ref.Kind != TokCode) {
			return nil, rp.errf("Expected a content reference after 'contentReference'.")
		}
		node.ContentReference = ref.Text
	} else {
		types, rerr := rp.parseTargetTypes(true)
		if rerr != nil {
			return nil, rerr
		}
		node.Types = types
	}

	short, ok := rp.next()
	if !ok || short.Kind != TokString {
		return nil, rp.errf("Element " + path + " requires a short description string.")
	}
	node.Short = &short
	if def, ok := rp.next(); ok {
		if def.Kind != TokString && def.Kind != TokMultilineString {
			return nil, rp.errAt(def, "Expected a definition string but found '"+def.Text+"'.")
		}
		node.Definition = &def
	}
	return node, rp.expectEnd()
}

// parseTargetTypes reads "Type or Reference(A or B) or ...". When
// stopAtString is set, the list ends at the first string token.
func (rp *ruleParser) parseTargetTypes(stopAtString bool) ([]TargetType, *ruleError) {
	var types []TargetType
	for {
		t, ok := rp.next()
		if !ok {
			return nil, rp.errf("Expected a type.")
		}
		switch t.Kind {
		case TokWord:
			if strings.HasSuffix(t.Text, ",") {
				return nil, rp.errAt(t, commaTypeMessage)
			}
			types = append(types, TargetType{Name: t.Text})
		case TokReference, TokCanonical, TokCodeableReference:
			for _, name := range rp.splitReferenceTargets(t) {
				types = append(types, TargetType{
					Name:                name,
					IsReference:         t.Kind == TokReference,
					IsCanonical:         t.Kind == TokCanonical,
					IsCodeableReference: t.Kind == TokCodeableReference,
				})
			}
		default:
			return nil, rp.errAt(t, "Expected a type but found '"+t.Text+"'.")
		}
		if !rp.peekIs("or") {
			break
		}
		rp.i++
	}
	if !stopAtString {
		if t, ok := rp.peek(); ok {
			return nil, rp.errAt(t, "Unexpected '"+t.Text+"' in type list.")
		}
	}
	return types, nil
}

// splitReferenceTargets splits "Reference(A or B)". The deprecated "|"
// separator is accepted with a warning.
func (rp *ruleParser) splitReferenceTargets(t Token) []string {
	inner := t.Inner()
	if strings.Contains(inner, "|") && t.Kind == TokReference {
		rp.p.warnAt(t.Span, pipeReferenceWarning)
		inner = strings.ReplaceAll(inner, "|", " or ")
	}
	var out []string
	for _, part := range strings.Fields(inner) {
		if part == "or" {
			continue
		}
		out = append(out, part)
	}
	return out
}

func (rp *ruleParser) parseFlags(base RuleBase, path string) (RuleNode, *ruleError) {
	node := &FlagRuleNode{RuleBase: base, Paths: []string{path}}
	for rp.peekIs("and") {
		rp.i++
		t, ok := rp.next()
		if !ok || t.Kind != TokWord {
			return nil, rp.errf("Expected a path after 'and'.")
		}
		node.Paths = append(node.Paths, t.Text)
	}
	node.Flags = rp.parseFlagWords()
	if len(node.Flags) == 0 {
		return nil, rp.errf("Flag rules must name at least one flag.")
	}
	return node, rp.expectEnd()
}

func (rp *ruleParser) parseBinding(base RuleBase, path string) (RuleNode, *ruleError) {
	rp.i++ // from
	vs, ok := rp.next()
	if !ok || (vs.Kind != TokWord && vs.Kind != TokCode) {
		return nil, rp.errf("Expected a value set after 'from'.")
	}
	node := &ValueSetRuleNode{RuleBase: base, Path: path, ValueSet: vs.Text}
	if t, ok := rp.peek(); ok {
		strength, known := strengthWords[t.Text]
		if !known {
			return nil, rp.errAt(t, "Invalid binding strength '"+t.Text+"'. Supported strengths are (example), (preferred), (extensible) and (required).")
		}
		rp.i++
		node.Strength = strength
	}
	return node, rp.expectEnd()
}

func (rp *ruleParser) parseFixedValue(base RuleBase, path string) (RuleNode, *ruleError) {
	rp.i++ // =
	toks := rp.rest()
	node := &FixedValueRuleNode{RuleBase: base, Path: path}
	if n := len(toks); n > 0 && toks[n-1].Is("(exactly)") {
		node.Exactly = true
		toks = toks[:n-1]
	}
	v, rerr := rp.parseValue(toks)
	if rerr != nil {
		return nil, rerr
	}
	node.Value = v
	return node, nil
}

func (rp *ruleParser) parseCaretValue(base RuleBase, path string) (RuleNode, *ruleError) {
	caret, _ := rp.next()
	eq, ok := rp.next()
	if !ok || eq.Kind != TokEqual {
		return nil, rp.errf("Caret rule ^" + caret.Text + " requires '=' and a value.")
	}
	v, rerr := rp.parseValue(rp.rest())
	if rerr != nil {
		return nil, rerr
	}
	return &CaretValueRuleNode{RuleBase: base, Path: path, CaretPath: caret.Text, Value: v}, nil
}

func (rp *ruleParser) parseContains(base RuleBase, path string) (RuleNode, *ruleError) {
	rp.i++ // contains
	node := &ContainsRuleNode{RuleBase: base, Path: path}
	for {
		nameTok, ok := rp.next()
		if !ok || (nameTok.Kind != TokWord && nameTok.Kind != TokCode) {
			return nil, rp.errf("Expected a slice name in contains rule.")
		}
		if strings.HasSuffix(nameTok.Text, ",") {
			return nil, rp.errAt(nameTok, commaListMessage)
		}
		item := ContainsItemNode{Name: nameTok.Text}
		if rp.peekIs("named") {
			rp.i++
			named, ok := rp.next()
			if !ok || named.Kind != TokWord {
				return nil, rp.errf("Expected a slice name after 'named'.")
			}
			item.Named = named.Text
		}
		card, ok := rp.next()
		if !ok || card.Kind != TokWord || !IsCard(card.Text) {
			if ok && strings.HasSuffix(card.Text, ",") {
				return nil, rp.errAt(card, commaListMessage)
			}
			return nil, rp.errf("Contains rule item " + item.Name + " requires a cardinality.")
		}
		item.Card = card.Text
		item.Flags = rp.parseFlagWords()
		node.Items = append(node.Items, item)
		if !rp.peekIs("and") {
			break
		}
		rp.i++
	}
	return node, rp.expectEnd()
}

func (rp *ruleParser) parseOnly(base RuleBase, path string) (RuleNode, *ruleError) {
	rp.i++ // only
	types, rerr := rp.parseTargetTypes(false)
	if rerr != nil {
		return nil, rerr
	}
	return &OnlyRuleNode{RuleBase: base, Path: path, Types: types}, nil
}

func (rp *ruleParser) parseObeys(base RuleBase, path string) (RuleNode, *ruleError) {
	for !rp.peekIs("obeys") {
		rp.i++
	}
	rp.i++
	node := &ObeysRuleNode{RuleBase: base, Path: path}
	for {
		t, ok := rp.next()
		if !ok || (t.Kind != TokWord && t.Kind != TokCode) {
			return nil, rp.errf("Expected an invariant name after 'obeys'.")
		}
		if strings.HasSuffix(t.Text, ",") {
			return nil, rp.errAt(t, commaListMessage)
		}
		node.Invariants = append(node.Invariants, t.Text)
		if !rp.peekIs("and") {
			break
		}
		rp.i++
	}
	return node, rp.expectEnd()
}

func (rp *ruleParser) parseMapping(base RuleBase, path string) (RuleNode, *ruleError) {
	for t, _ := rp.peek(); t.Kind != TokArrow; t, _ = rp.peek() {
		rp.i++
	}
	rp.i++
	target, ok := rp.next()
	if !ok || target.Kind != TokString {
		return nil, rp.errf("Mapping rules require a target string after '->'.")
	}
	node := &MappingRuleNode{RuleBase: base, Path: path, Target: target}
	if t, ok := rp.peek(); ok && t.Kind == TokString {
		rp.i++
		node.Comment = &t
	}
	if t, ok := rp.peek(); ok && t.Kind == TokCode {
		rp.i++
		node.Language = &t
	}
	return node, rp.expectEnd()
}

func (rp *ruleParser) parseInsert(base RuleBase, path string, codes []Token) (RuleNode, *ruleError) {
	for !rp.peekIs("insert") {
		rp.i++
	}
	rp.i++
	ref, ok := rp.next()
	if !ok || ref.Kind != TokRuleSetRef {
		return nil, rp.errf("Expected a RuleSet name after 'insert'.")
	}
	node := &InsertRuleNode{
		RuleBase: base,
		Path:     path,
		Codes:    codes,
		RuleSet:  ref.Text,
		Args:     ref.Args,
		HasArgs:  ref.HasArgs,
		RefSpan:  ref.Span,
	}
	return node, rp.expectEnd()
}

// parseCodeRule handles lines that start with codes: code caret rules,
// code insert rules, concepts and (in value sets) concept components.
func (rp *ruleParser) parseCodeRule(base RuleBase) (RuleNode, *ruleError) {
	var codes []Token
	for {
		t, ok := rp.peek()
		if !ok || t.Kind != TokCode {
			break
		}
		codes = append(codes, t)
		rp.i++
	}
	if t, ok := rp.peek(); ok {
		switch {
		case t.Kind == TokCaret:
			rp.i++
			eq, ok := rp.next()
			if !ok || eq.Kind != TokEqual {
				return nil, rp.errf("Caret rule ^" + t.Text + " requires '=' and a value.")
			}
			v, rerr := rp.parseValue(rp.rest())
			if rerr != nil {
				return nil, rerr
			}
			return &CodeCaretValueRuleNode{RuleBase: base, Codes: codes, CaretPath: t.Text, Value: v}, nil
		case t.Is("insert"):
			return rp.parseInsert(base, "", codes)
		}
	}

	if rp.entity == KwValueSet || (rp.entity == KwRuleSet && rp.hasWord("from")) {
		rp.i = 0
		return rp.parseVsComponent(base)
	}

	for _, c := range codes {
		if strings.HasSuffix(c.Text, ",") {
			return nil, rp.errAt(c, commaListMessage)
		}
	}
	node := &ConceptRuleNode{RuleBase: base, Codes: codes}
	if t, ok := rp.peek(); ok && t.Kind == TokString {
		rp.i++
		node.Display = &t
	}
	if t, ok := rp.peek(); ok && (t.Kind == TokString || t.Kind == TokMultilineString) {
		rp.i++
		node.Definition = &t
	}
	return node, rp.expectEnd()
}

func (rp *ruleParser) hasWord(word string) bool {
	for _, t := range rp.toks {
		if t.Is(word) {
			return true
		}
	}
	return false
}

func (rp *ruleParser) parseVsComponent(base RuleBase) (RuleNode, *ruleError) {
	node := &VsComponentNode{RuleBase: base}
	if rp.peekIs("include") {
		rp.i++
	} else if rp.peekIs("exclude") {
		rp.i++
		node.Exclude = true
	}

	if rp.peekIs("codes") {
		rp.i++
		node.IsFilter = true
		if !rp.peekIs("from") {
			return nil, rp.errf("ValueSet filter components require a 'from' clause.")
		}
		if rerr := rp.parseFrom(node); rerr != nil {
			return nil, rerr
		}
		if rp.peekIs("where") {
			rp.i++
			if rerr := rp.parseFilters(node); rerr != nil {
				return nil, rerr
			}
		}
		return node, rp.expectEnd()
	}

	code, ok := rp.next()
	if !ok || code.Kind != TokCode {
		if ok && strings.HasSuffix(code.Text, ",") {
			return nil, rp.errAt(code, commaListMessage)
		}
		return nil, rp.errf("Expected a concept or 'codes' in ValueSet component.")
	}
	if strings.HasSuffix(code.Text, ",") {
		return nil, rp.errAt(code, commaListMessage)
	}
	concept := &ValueNode{Kind: ValCode, Token: code, Span: code.Span}
	if t, ok := rp.peek(); ok && t.Kind == TokString {
		rp.i++
		concept.Display = &t
		concept.Span = code.Span.Through(t.Span)
	}
	node.Concept = concept
	if t, ok := rp.peek(); ok && t.Kind == TokCode {
		return nil, rp.errAt(t, commaListMessage)
	}
	if rp.peekIs("from") {
		if rerr := rp.parseFrom(node); rerr != nil {
			return nil, rerr
		}
	}
	return node, rp.expectEnd()
}

// parseFrom reads "from system S and valueset A and B" in either order.
func (rp *ruleParser) parseFrom(node *VsComponentNode) *ruleError {
	rp.i++ // from
	for {
		switch {
		case rp.peekIs("system"):
			rp.i++
			t, ok := rp.next()
			if !ok || (t.Kind != TokWord && t.Kind != TokCode) {
				return rp.errf("Expected a system after 'system'.")
			}
			node.FromSystem = t.Text
		case rp.peekIs("valueset"):
			rp.i++
			for {
				t, ok := rp.next()
				if !ok || (t.Kind != TokWord && t.Kind != TokCode) {
					return rp.errf("Expected a value set after 'valueset'.")
				}
				if strings.HasSuffix(t.Text, ",") {
					return rp.errAt(t, commaListMessage)
				}
				node.FromValueSets = append(node.FromValueSets, t.Text)
				if !rp.peekIs("and") || rp.nextIsFromKeyword() {
					break
				}
				rp.i++
			}
		default:
			return rp.errf("Expected 'system' or 'valueset' after 'from'.")
		}
		if !rp.peekIs("and") || !rp.nextIsFromKeyword() {
			return nil
		}
		rp.i++
	}
}

// nextIsFromKeyword reports whether the token after the current "and"
// starts another from-clause part.
func (rp *ruleParser) nextIsFromKeyword() bool {
	if rp.i+1 >= len(rp.toks) {
		return false
	}
	t := rp.toks[rp.i+1]
	return t.Is("system") || t.Is("valueset")
}

func (rp *ruleParser) parseFilters(node *VsComponentNode) *ruleError {
	for {
		prop, ok := rp.next()
		if !ok || prop.Kind != TokWord {
			return rp.errf("Expected a filter property after 'where'.")
		}
		op, ok := rp.next()
		if !ok || (op.Kind != TokWord && op.Kind != TokEqual) {
			return rp.errf("Expected a filter operator after " + prop.Text + ".")
		}
		filter := FilterNode{Property: prop.Text, Operator: op.Text, Span: prop.Span.Through(op.Span)}
		if t, ok := rp.peek(); ok && !t.Is("and") {
			rp.i++
			v, rerr := rp.parseValue([]Token{t})
			if rerr != nil {
				return rerr
			}
			filter.Value = v
			filter.Span = filter.Span.Through(t.Span)
		}
		node.Filters = append(node.Filters, filter)
		if !rp.peekIs("and") {
			return nil
		}
		rp.i++
	}
}
