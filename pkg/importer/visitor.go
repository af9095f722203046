package importer

import (
	"strings"

	"github.com/gofhir/fsh/pkg/fshtypes"
	"github.com/gofhir/fsh/pkg/issue"
	"github.com/gofhir/fsh/pkg/location"
	"github.com/gofhir/fsh/pkg/parser"
)

// visitor builds one document from one parse tree. Nested visitors, used
// to expand parameterized RuleSets, share the ImportContext and the
// origin document but get their own sink.
type visitor struct {
	ic  *ImportContext
	doc *fshtypes.Document
	// origin owns the applied RuleSets created while visiting. It is doc
	// itself except in nested visitors.
	origin *fshtypes.Document
	sink   issue.Sink
	// collecting is set once diagnostics are being buffered for
	// re-attribution to an insert rule.
	collecting bool
	// expanding is the stack of applied RuleSets being expanded.
	expanding []fshtypes.AppliedRuleSetKey
	// reportAt is the outermost insert rule of a nested visitor. Applied
	// RuleSets created below it, and their rules, are attributed to it.
	reportAt *location.Span
}

func (ic *ImportContext) visitFile(f *parser.File) *fshtypes.Document {
	doc := fshtypes.NewDocument(f.Path)
	v := &visitor{ic: ic, doc: doc, origin: doc, sink: ic.sink}
	v.visitDecls(f.Decls)

	for _, decl := range f.Decls {
		if a, ok := decl.(*parser.AliasDecl); ok {
			if value, ok := ic.Aliases[a.Name]; ok {
				doc.Aliases[a.Name] = value
			}
		}
	}

	rules := 0
	for _, e := range doc.Entities() {
		rules += len(e.Base().Rules)
	}
	if ic.opts.metrics != nil {
		ic.opts.metrics.RecordDocument(doc.Len(), rules)
	}
	ic.log.Debug("Visited %s: %d entities, %d applied RuleSets", f.Path, doc.Len(), len(doc.AppliedRuleSets))
	return doc
}

func (v *visitor) report(id issue.DiagnosticID, params map[string]any, span location.Span) {
	issue.Report(v.sink, id, params, &span)
}

func (v *visitor) visitDecls(decls []parser.Decl) {
	for _, decl := range decls {
		if d, ok := decl.(*parser.EntityDecl); ok {
			v.visitEntity(d)
		}
	}
}

var entityKinds = map[string]fshtypes.EntityKind{
	parser.KwProfile:    fshtypes.KindProfile,
	parser.KwExtension:  fshtypes.KindExtension,
	parser.KwLogical:    fshtypes.KindLogical,
	parser.KwResource:   fshtypes.KindResource,
	parser.KwInstance:   fshtypes.KindInstance,
	parser.KwValueSet:   fshtypes.KindValueSet,
	parser.KwCodeSystem: fshtypes.KindCodeSystem,
	parser.KwInvariant:  fshtypes.KindInvariant,
	parser.KwMapping:    fshtypes.KindMapping,
	parser.KwRuleSet:    fshtypes.KindRuleSet,
}

func newEntity(kind fshtypes.EntityKind, name string, span location.Span) fshtypes.Entity {
	switch kind {
	case fshtypes.KindProfile:
		return fshtypes.NewProfile(name, span)
	case fshtypes.KindExtension:
		return fshtypes.NewExtension(name, span)
	case fshtypes.KindLogical:
		return fshtypes.NewLogical(name, span)
	case fshtypes.KindResource:
		return fshtypes.NewResource(name, span)
	case fshtypes.KindInstance:
		return fshtypes.NewInstance(name, span)
	case fshtypes.KindValueSet:
		return fshtypes.NewFshValueSet(name, span)
	case fshtypes.KindCodeSystem:
		return fshtypes.NewFshCodeSystem(name, span)
	case fshtypes.KindInvariant:
		return fshtypes.NewInvariant(name, span)
	case fshtypes.KindMapping:
		return fshtypes.NewMapping(name, span)
	case fshtypes.KindRuleSet:
		return fshtypes.NewRuleSet(name, span)
	}
	return nil
}

// visitEntity builds one entity. A name already used by the same kind in
// this document skips the whole declaration.
func (v *visitor) visitEntity(d *parser.EntityDecl) {
	kind, ok := entityKinds[d.Keyword]
	if !ok {
		return
	}
	if _, exists := v.doc.Lookup(kind, d.Name); exists {
		v.report(issue.DiagDuplicateEntity, map[string]any{"kind": kind, "name": d.Name}, d.Span)
		return
	}
	e := newEntity(kind, d.Name, d.Span)
	v.visitMetadata(e, d.Metadata)
	if !v.checkRequired(e) {
		return
	}
	v.visitRules(e, d.Rules)
	v.doc.Add(e)
}

func (v *visitor) visitMetadata(e fshtypes.Entity, metadata []*parser.MetadataNode) {
	seen := make(map[string]*parser.MetadataNode, len(metadata))
	for _, md := range metadata {
		if first, dup := seen[md.Key]; dup {
			v.report(issue.DiagDuplicateMetadata, map[string]any{
				"field": md.Key,
				"value": metadataText(first),
			}, md.Span)
			continue
		}
		seen[md.Key] = md
		v.applyMetadata(e, md)
	}
}

func metadataText(md *parser.MetadataNode) string {
	if len(md.Items) == 0 {
		return md.Value.Text
	}
	parts := make([]string, len(md.Items))
	for i, item := range md.Items {
		parts[i] = item.Value
	}
	return strings.Join(parts, ", ")
}

// text decodes a string or multiline string token.
func text(tok parser.Token) string {
	if tok.Kind == parser.TokMultilineString {
		return DedentMultiline(tok.Text)
	}
	return DecodeString(tok.Text)
}

func (v *visitor) applyMetadata(e fshtypes.Entity, md *parser.MetadataNode) {
	base := e.Base()
	tok := md.Value
	switch md.Key {
	case parser.KwID:
		base.ID = tok.Text
	case parser.KwTitle:
		base.Title = text(tok)
	case parser.KwDescription:
		base.Description = text(tok)
	case parser.KwParent:
		parent := v.resolve(tok.Text, tok.Span)
		switch ent := e.(type) {
		case *fshtypes.Profile:
			ent.Parent = parent
		case *fshtypes.Extension:
			ent.Parent = parent
		case *fshtypes.Logical:
			ent.Parent = parent
		case *fshtypes.Resource:
			ent.Parent = parent
		}
	case parser.KwInstanceOf:
		if inst, ok := e.(*fshtypes.Instance); ok {
			inst.InstanceOf = v.resolve(tok.Text, tok.Span)
		}
	case parser.KwUsage:
		if inst, ok := e.(*fshtypes.Instance); ok {
			usage, valid := fshtypes.ParseInstanceUsage(strings.TrimPrefix(tok.Text, "#"))
			if !valid {
				v.report(issue.DiagInvalidUsage, map[string]any{"usage": tok.Text}, md.Span)
				usage = fshtypes.UsageExample
			}
			inst.Usage = usage
		}
	case parser.KwSeverity:
		if inv, ok := e.(*fshtypes.Invariant); ok {
			severity, valid := fshtypes.ParseConstraintSeverity(strings.TrimPrefix(tok.Text, "#"))
			if !valid {
				v.report(issue.DiagInvalidSeverity, map[string]any{"severity": tok.Text}, md.Span)
				return
			}
			inv.Severity = severity
		}
	case parser.KwExpression:
		if inv, ok := e.(*fshtypes.Invariant); ok {
			inv.Expression = text(tok)
		}
	case parser.KwXPath:
		if inv, ok := e.(*fshtypes.Invariant); ok {
			inv.XPath = text(tok)
		}
	case parser.KwSource:
		if m, ok := e.(*fshtypes.Mapping); ok {
			m.SourceEntity = v.resolve(tok.Text, tok.Span)
		}
	case parser.KwTarget:
		if m, ok := e.(*fshtypes.Mapping); ok {
			m.Target = text(tok)
		}
	case parser.KwContext:
		if ext, ok := e.(*fshtypes.Extension); ok {
			for _, item := range md.Items {
				if item.Quoted {
					ext.Contexts = append(ext.Contexts, fshtypes.ExtensionContext{Value: DecodeString(item.Value), IsQuoted: true})
					continue
				}
				ext.Contexts = append(ext.Contexts, fshtypes.ExtensionContext{Value: v.resolve(item.Value, item.Span)})
			}
		}
	case parser.KwCharacteristics:
		if lm, ok := e.(*fshtypes.Logical); ok {
			for _, item := range md.Items {
				lm.Characteristics = append(lm.Characteristics, v.parseCode(item.Value, item.Span).Code)
			}
		}
	}
}

// checkRequired reports missing required metadata. It returns false when
// the entity cannot be kept: an Instance needs InstanceOf. An Invariant
// missing Description or Severity is kept.
func (v *visitor) checkRequired(e fshtypes.Entity) bool {
	base := e.Base()
	missing := func(field string) {
		v.report(issue.DiagRequiredMetadata, map[string]any{
			"field": field,
			"kind":  e.Kind(),
			"name":  base.Name,
		}, base.Source)
	}
	switch ent := e.(type) {
	case *fshtypes.Instance:
		if ent.InstanceOf == "" {
			missing(parser.KwInstanceOf)
			return false
		}
	case *fshtypes.Invariant:
		if ent.Description == "" {
			missing(parser.KwDescription)
		}
		if ent.Severity == "" {
			missing(parser.KwSeverity)
		}
		if v.ic.opts.checkExpressions && v.ic.opts.checker != nil {
			v.ic.opts.checker.CheckInvariant(ent, v.sink)
		}
	}
	return true
}

// resolve applies alias substitution to an identifier. A "$" name that is
// not an alias is reported and returned unchanged.
func (v *visitor) resolve(name string, span location.Span) string {
	if value, ok := v.ic.ResolveAlias(name); ok {
		return value
	}
	if strings.HasPrefix(name, "$") {
		v.report(issue.DiagAliasUnresolved, map[string]any{"value": name}, span)
	}
	return name
}
