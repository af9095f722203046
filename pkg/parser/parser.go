// Package parser turns FSH source text into a typed parse tree.
//
// The parser recovers from errors and keeps going: a malformed rule or
// declaration is reported and skipped, and parsing continues at the next
// "*" or entity keyword. Syntax errors are collected as diagnostics on the
// returned File rather than returned as Go errors.
package parser

import (
	"strings"

	"github.com/gofhir/fsh/pkg/issue"
	"github.com/gofhir/fsh/pkg/location"
	"github.com/gofhir/fsh/pkg/logger"
)

// Parser converts the token stream of one file into a File.
type Parser struct {
	path   string
	source []byte
	toks   []Token
	pos    int
	diags  []issue.Issue
	log    *logger.Logger
}

// New lexes source and prepares a Parser for it. Pass nil for log to use
// the default logger.
func New(path string, source []byte, log *logger.Logger) *Parser {
	if log == nil {
		log = logger.Default()
	}
	lex := newLexer(path, source)
	toks := lex.run()
	return &Parser{
		path:   path,
		source: source,
		toks:   toks,
		diags:  lex.diags,
		log:    log,
	}
}

// Parse parses path's source with the default logger.
func Parse(path string, source []byte) *File {
	return New(path, source, nil).Parse()
}

// Parse parses the whole file.
func (p *Parser) Parse() *File {
	file := &File{Path: p.path, Source: p.source}
	for !p.isEOF() {
		tok := p.peek()
		if tok.Kind != TokKeyword || !IsEntityKeyword(tok.Text) {
			p.errorAt(tok.Span, unexpectedMessage(tok, "an entity declaration"))
			p.recoverToEntity()
			continue
		}
		if decl := p.parseDecl(); decl != nil {
			file.Decls = append(file.Decls, decl)
		}
	}
	file.Diagnostics = p.diags
	p.log.Debug("Parsed %s: %d declarations, %d diagnostics", p.path, len(file.Decls), len(p.diags))
	return file
}

func (p *Parser) peek() Token {
	return p.toks[p.pos]
}

func (p *Parser) advance() Token {
	tok := p.toks[p.pos]
	if tok.Kind != TokEOF {
		p.pos++
	}
	return tok
}

func (p *Parser) isEOF() bool {
	return p.peek().Kind == TokEOF
}

// atBoundary reports whether the current token starts a new rule, metadata
// line or declaration.
func (p *Parser) atBoundary() bool {
	k := p.peek().Kind
	return k == TokEOF || k == TokStar || k == TokKeyword
}

// lineTokens consumes the tokens up to the next boundary.
func (p *Parser) lineTokens() []Token {
	var out []Token
	for !p.atBoundary() {
		out = append(out, p.advance())
	}
	return out
}

func (p *Parser) recoverToEntity() {
	for !p.isEOF() {
		tok := p.peek()
		if tok.Kind == TokKeyword && IsEntityKeyword(tok.Text) {
			return
		}
		p.advance()
	}
}

func (p *Parser) errorAt(span location.Span, message string) {
	p.diags = append(p.diags, issue.New(issue.DiagSyntax, map[string]any{"message": message}, &span))
}

func (p *Parser) warnAt(span location.Span, message string) {
	p.diags = append(p.diags, issue.New(issue.DiagDeprecated, map[string]any{"message": message}, &span))
}

func (p *Parser) text(start, end int) string {
	return string(p.source[start:end])
}

func spanOf(toks []Token) location.Span {
	if len(toks) == 0 {
		return location.Span{}
	}
	return toks[0].Span.Through(toks[len(toks)-1].Span)
}

func (p *Parser) parseDecl() Decl {
	kw := p.advance()
	switch kw.Text {
	case KwAlias:
		return p.parseAlias(kw)
	case KwRuleSet:
		if p.peek().Kind == TokRuleSetRef && p.peek().HasArgs {
			return p.parseParamRuleSet(kw)
		}
	}
	return p.parseEntity(kw)
}

func (p *Parser) parseAlias(kw Token) Decl {
	toks := p.lineTokens()
	span := kw.Span
	if len(toks) > 0 {
		span = kw.Span.Through(spanOf(toks))
	}
	if len(toks) == 1 && strings.Contains(toks[0].Text, "=") {
		p.errorAt(span, "Alias declarations must include at least one space both before and after the '=' sign.")
		return nil
	}
	if len(toks) != 3 || toks[0].Kind != TokWord || toks[1].Kind != TokEqual ||
		(toks[2].Kind != TokWord && toks[2].Kind != TokCode) {
		p.errorAt(span, "Alias declarations must have the form 'Alias: Name = Value'.")
		return nil
	}
	return &AliasDecl{
		Name:      toks[0].Text,
		NameSpan:  toks[0].Span,
		Value:     toks[2].Text,
		ValueSpan: toks[2].Span,
		Span:      span,
	}
}

func (p *Parser) parseParamRuleSet(kw Token) Decl {
	ref := p.advance()
	decl := &ParamRuleSetDecl{
		Name:       ref.Text,
		Parameters: splitParameterNames(ref.Args),
		Span:       kw.Span.Through(ref.Span),
	}
	if p.peek().Kind == TokParamBody {
		body := p.advance()
		decl.Body = body.Text
		decl.BodySpan = body.Span
		if strings.TrimSpace(body.Text) != "" {
			decl.Span = kw.Span.Through(body.Span)
		}
	}
	if strings.TrimSpace(decl.Body) == "" {
		p.errorAt(decl.Span, "RuleSet "+decl.Name+" must contain at least one rule.")
	}
	return decl
}

func splitParameterNames(args string) []string {
	var names []string
	for _, part := range strings.Split(args, ",") {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}
	return names
}

func (p *Parser) parseEntity(kw Token) Decl {
	name := p.peek()
	if name.Kind != TokWord && name.Kind != TokRuleSetRef || p.atBoundary() {
		p.errorAt(kw.Span, "Expected a name after '"+kw.Text+":'.")
		p.recoverToEntity()
		return nil
	}
	p.advance()
	decl := &EntityDecl{
		Keyword:  kw.Text,
		Name:     name.Text,
		NameSpan: name.Span,
		Span:     kw.Span.Through(name.Span),
	}
	if extra := p.lineTokens(); len(extra) > 0 {
		p.errorAt(spanOf(extra), "Unexpected text after "+kw.Text+" name "+name.Text+".")
	}

	for {
		tok := p.peek()
		switch {
		case tok.Kind == TokKeyword && IsMetadataKeyword(tok.Text):
			p.advance()
			if len(decl.Rules) > 0 {
				p.errorAt(tok.Span, "Metadata field '"+tok.Text+"' must be declared before any rules.")
				p.lineTokens()
				continue
			}
			if md := p.parseMetadata(decl.Keyword, tok); md != nil {
				decl.Metadata = append(decl.Metadata, md)
				decl.Span = decl.Span.Through(md.Span)
			}
		case tok.Kind == TokStar:
			p.advance()
			if rule := p.parseRule(decl.Keyword, tok); rule != nil {
				decl.Rules = append(decl.Rules, rule)
				decl.Span = decl.Span.Through(rule.Base().Span)
			}
		default:
			if decl.Keyword == KwRuleSet && len(decl.Rules) == 0 {
				p.errorAt(decl.Span, "RuleSet "+decl.Name+" must contain at least one rule.")
			}
			return decl
		}
	}
}

// allowedMetadata lists the metadata keys each entity grammar accepts.
var allowedMetadata = map[string]map[string]bool{
	KwProfile:    {KwParent: true, KwID: true, KwTitle: true, KwDescription: true},
	KwExtension:  {KwParent: true, KwID: true, KwTitle: true, KwDescription: true, KwContext: true},
	KwLogical:    {KwParent: true, KwID: true, KwTitle: true, KwDescription: true, KwCharacteristics: true},
	KwResource:   {KwParent: true, KwID: true, KwTitle: true, KwDescription: true},
	KwInstance:   {KwInstanceOf: true, KwTitle: true, KwDescription: true, KwUsage: true},
	KwInvariant:  {KwDescription: true, KwExpression: true, KwXPath: true, KwSeverity: true},
	KwValueSet:   {KwID: true, KwTitle: true, KwDescription: true},
	KwCodeSystem: {KwID: true, KwTitle: true, KwDescription: true},
	KwMapping:    {KwID: true, KwSource: true, KwTarget: true, KwDescription: true, KwTitle: true},
	KwRuleSet:    {},
}

func (p *Parser) parseMetadata(entity string, key Token) *MetadataNode {
	toks := p.lineTokens()
	span := key.Span
	if len(toks) > 0 {
		span = key.Span.Through(spanOf(toks))
	}
	if !allowedMetadata[entity][key.Text] {
		p.errorAt(span, "Metadata field '"+key.Text+"' is not allowed on "+entity+".")
		return nil
	}
	md := &MetadataNode{Key: key.Text, Span: span}

	switch key.Text {
	case KwContext:
		md.Items = p.listItems(toks, span, false)
		if len(md.Items) == 0 {
			p.errorAt(span, "Context requires at least one item.")
			return nil
		}
		return md
	case KwCharacteristics:
		md.Items = p.listItems(toks, span, true)
		if len(md.Items) == 0 {
			p.errorAt(span, "Characteristics requires at least one code.")
			return nil
		}
		return md
	}

	if len(toks) != 1 {
		p.errorAt(span, "Metadata field '"+key.Text+"' requires exactly one value.")
		return nil
	}
	tok := toks[0]
	ok := false
	switch key.Text {
	case KwParent, KwID, KwInstanceOf, KwSource:
		ok = tok.Kind == TokWord || tok.Kind == TokCode
	case KwTitle, KwExpression, KwXPath, KwTarget:
		ok = tok.Kind == TokString
	case KwDescription:
		ok = tok.Kind == TokString || tok.Kind == TokMultilineString
	case KwSeverity, KwUsage:
		ok = tok.Kind == TokCode
	}
	if !ok {
		p.errorAt(span, "Invalid value for metadata field '"+key.Text+"': "+tok.Text+".")
		return nil
	}
	md.Value = tok
	return md
}

// listItems splits a comma-separated metadata list. Items may be quoted;
// with codes set, every item must be a code.
func (p *Parser) listItems(toks []Token, span location.Span, codes bool) []MetadataItem {
	var items []MetadataItem
	for _, tok := range toks {
		text := strings.TrimSuffix(tok.Text, ",")
		if text == "" {
			continue
		}
		switch {
		case codes && tok.Kind != TokCode:
			p.errorAt(tok.Span, "Expected a code but found "+tok.Text+".")
		case tok.Kind == TokString:
			items = append(items, MetadataItem{Value: text, Quoted: true, Span: tok.Span})
		default:
			items = append(items, MetadataItem{Value: text, Span: tok.Span})
		}
	}
	return items
}

func unexpectedMessage(tok Token, expected string) string {
	if tok.Kind == TokEOF {
		return "Unexpected end of file; expected " + expected + "."
	}
	return "Unexpected " + tok.Kind.String() + " '" + tok.Text + "'; expected " + expected + "."
}
