package importer

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/gofhir/fsh/pkg/fshtypes"
	"github.com/gofhir/fsh/pkg/issue"
	"github.com/gofhir/fsh/pkg/location"
	"github.com/gofhir/fsh/pkg/parser"
)

// convertValue turns a parsed literal into a typed value. The second
// result is set for bare identifiers, which name an Instance. A nil value
// means the literal could not be used and has been reported.
func (v *visitor) convertValue(n *parser.ValueNode) (fshtypes.Value, bool) {
	if n == nil {
		return nil, false
	}
	switch n.Kind {
	case parser.ValString:
		return fshtypes.StringValue{Value: DecodeString(n.Token.Text)}, false
	case parser.ValMultilineString:
		return fshtypes.StringValue{Value: DedentMultiline(n.Token.Text), Multiline: true}, false
	case parser.ValDateTime, parser.ValTime:
		return fshtypes.StringValue{Value: n.Token.Text}, false
	case parser.ValNumber:
		d, err := decimal.NewFromString(n.Token.Text)
		if err != nil {
			v.syntax(n.Span, "Invalid number "+n.Token.Text+".")
			return nil, false
		}
		return fshtypes.NumberValue{Value: d}, false
	case parser.ValBool:
		return fshtypes.BoolValue(n.Token.Text == "true"), false
	case parser.ValCode:
		code := v.parseCode(n.Token.Text, n.Token.Span)
		if n.Display != nil {
			code.Display = DecodeString(n.Display.Text)
		}
		return code, false
	case parser.ValQuantity:
		return v.convertQuantity(n.Quantity), false
	case parser.ValRatio:
		return &fshtypes.FshRatio{
			Numerator:   v.convertQuantity(n.Ratio[0]),
			Denominator: v.convertQuantity(n.Ratio[1]),
		}, false
	case parser.ValReference:
		ref := &fshtypes.FshReference{Reference: v.resolve(strings.TrimSpace(n.Token.Inner()), n.Token.Span)}
		if n.Display != nil {
			ref.Display = DecodeString(n.Display.Text)
		}
		return ref, false
	case parser.ValCanonical:
		target, version, _ := strings.Cut(strings.TrimSpace(n.Token.Inner()), "|")
		return &fshtypes.FshCanonical{EntityName: v.resolve(target, n.Token.Span), Version: version}, false
	case parser.ValName:
		return fshtypes.InstanceName(v.resolve(n.Token.Text, n.Token.Span)), true
	case parser.ValRegex:
		v.syntax(n.Span, "A regular expression can only be used as a ValueSet filter value.")
	}
	return nil, false
}

func (v *visitor) syntax(span location.Span, message string) {
	v.report(issue.DiagSyntax, map[string]any{"message": message}, span)
}

func (v *visitor) convertQuantity(q *parser.QuantityNode) *fshtypes.FshQuantity {
	out := &fshtypes.FshQuantity{}
	if q == nil {
		return out
	}
	if q.Number != nil {
		if d, err := decimal.NewFromString(q.Number.Text); err == nil {
			out.Value = &d
		} else {
			v.syntax(q.Number.Span, "Invalid number "+q.Number.Text+".")
		}
	}
	if q.Unit != nil {
		if q.Unit.Kind == parser.TokUnit {
			out.Unit = &fshtypes.FshCode{
				Code:   strings.Trim(q.Unit.Text, "'"),
				System: fshtypes.UCUMSystem,
			}
		} else {
			out.Unit = v.parseCode(q.Unit.Text, q.Unit.Span)
		}
		if q.Display != nil {
			out.Unit.Display = DecodeString(q.Display.Text)
		}
	}
	return out
}

// parseCode splits "system#code" at the last "#" outside a quoted code.
// The system is alias-resolved and a quoted code is decoded.
func (v *visitor) parseCode(raw string, span location.Span) *fshtypes.FshCode {
	system, code := splitCode(raw)
	c := &fshtypes.FshCode{Code: code}
	if system != "" {
		c.System = v.resolve(system, span)
	}
	return c
}

func splitCode(raw string) (system, code string) {
	if i := strings.Index(raw, `#"`); i >= 0 && strings.HasSuffix(raw, `"`) && len(raw) > i+2 {
		return raw[:i], DecodeString(raw[i+1:])
	}
	i := strings.LastIndex(raw, "#")
	if i < 0 {
		return "", raw
	}
	return raw[:i], raw[i+1:]
}

// codeText returns only the code of a code token, ignoring any system.
func codeText(tok parser.Token) string {
	_, code := splitCode(tok.Text)
	return code
}
