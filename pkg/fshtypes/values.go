package fshtypes

import (
	"strings"

	"github.com/gofhir/fhir/r4"
	"github.com/shopspring/decimal"
)

// UCUMSystem is the system assigned to units written as 'unit' literals.
const UCUMSystem = "http://unitsofmeasure.org"

// ValueKind identifies the literal kind carried by a Value.
type ValueKind int

// Literal kinds.
const (
	ValueBool ValueKind = iota + 1
	ValueNumber
	ValueString
	ValueCode
	ValueQuantity
	ValueRatio
	ValueReference
	ValueCanonical
	ValueInstanceName
)

var valueKindNames = map[ValueKind]string{
	ValueBool:         "boolean",
	ValueNumber:       "number",
	ValueString:       "string",
	ValueCode:         "code",
	ValueQuantity:     "quantity",
	ValueRatio:        "ratio",
	ValueReference:    "reference",
	ValueCanonical:    "canonical",
	ValueInstanceName: "instance",
}

// String returns the literal kind name.
func (k ValueKind) String() string {
	return valueKindNames[k]
}

// Value is a typed literal assigned by an assignment or caret rule.
// The set of implementations is closed.
type Value interface {
	ValueKind() ValueKind
	// FSH renders the value the way it would be written in FSH.
	FSH() string
	isValue()
}

// BoolValue is a boolean literal.
type BoolValue bool

// ValueKind implements Value.
func (BoolValue) ValueKind() ValueKind { return ValueBool }

// FSH implements Value.
func (b BoolValue) FSH() string {
	if b {
		return "true"
	}
	return "false"
}

func (BoolValue) isValue() {}

// NumberValue is a numeric literal. The decimal keeps the precision the
// author wrote.
type NumberValue struct {
	Value decimal.Decimal
}

// ValueKind implements Value.
func (NumberValue) ValueKind() ValueKind { return ValueNumber }

// FSH implements Value.
func (n NumberValue) FSH() string { return n.Value.String() }

func (NumberValue) isValue() {}

// StringValue is a string literal: quoted, multiline, or a date/time token.
type StringValue struct {
	Value     string
	Multiline bool
}

// ValueKind implements Value.
func (StringValue) ValueKind() ValueKind { return ValueString }

// FSH implements Value.
func (s StringValue) FSH() string {
	if s.Multiline {
		return `"""` + s.Value + `"""`
	}
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`, "\t", `\t`)
	return `"` + r.Replace(s.Value) + `"`
}

func (StringValue) isValue() {}

// InstanceName marks a bare identifier value, which names an Instance.
type InstanceName string

// ValueKind implements Value.
func (InstanceName) ValueKind() ValueKind { return ValueInstanceName }

// FSH implements Value.
func (n InstanceName) FSH() string { return string(n) }

func (InstanceName) isValue() {}

// FshCode is a code literal: system#code "display".
type FshCode struct {
	Code    string
	System  string
	Display string
}

// ValueKind implements Value.
func (*FshCode) ValueKind() ValueKind { return ValueCode }

// FSH implements Value.
func (c *FshCode) FSH() string {
	code := c.Code
	if strings.ContainsAny(code, " \t") {
		code = `"` + code + `"`
	}
	s := c.System + "#" + code
	if c.Display != "" {
		s += ` "` + c.Display + `"`
	}
	return s
}

func (*FshCode) isValue() {}

// SystemAndVersion splits a "system|version" system into its parts.
func (c *FshCode) SystemAndVersion() (system, version string) {
	system, version, _ = strings.Cut(c.System, "|")
	return system, version
}

// ToCoding converts the code to an R4 Coding.
func (c *FshCode) ToCoding() *r4.Coding {
	coding := &r4.Coding{}
	code := c.Code
	coding.Code = &code
	if system, version := c.SystemAndVersion(); system != "" {
		coding.System = &system
		if version != "" {
			coding.Version = &version
		}
	}
	if c.Display != "" {
		display := c.Display
		coding.Display = &display
	}
	return coding
}

// Equal reports whether two codes have the same system and code.
func (c *FshCode) Equal(other *FshCode) bool {
	if c == nil || other == nil {
		return c == other
	}
	return c.Code == other.Code && c.System == other.System
}

// FshQuantity is a quantity literal: value 'unit' "display". Either part
// may be absent.
type FshQuantity struct {
	Value *decimal.Decimal
	Unit  *FshCode
}

// ValueKind implements Value.
func (*FshQuantity) ValueKind() ValueKind { return ValueQuantity }

// FSH implements Value.
func (q *FshQuantity) FSH() string {
	var parts []string
	if q.Value != nil {
		parts = append(parts, q.Value.String())
	}
	if q.Unit != nil {
		if q.Unit.System == UCUMSystem {
			u := "'" + q.Unit.Code + "'"
			if q.Unit.Display != "" {
				u += ` "` + q.Unit.Display + `"`
			}
			parts = append(parts, u)
		} else {
			parts = append(parts, q.Unit.FSH())
		}
	}
	return strings.Join(parts, " ")
}

func (*FshQuantity) isValue() {}

// FshRatio is a ratio literal: numerator : denominator.
type FshRatio struct {
	Numerator   *FshQuantity
	Denominator *FshQuantity
}

// ValueKind implements Value.
func (*FshRatio) ValueKind() ValueKind { return ValueRatio }

// FSH implements Value.
func (r *FshRatio) FSH() string {
	return r.Numerator.FSH() + " : " + r.Denominator.FSH()
}

func (*FshRatio) isValue() {}

// FshReference is a Reference(Target) "display" literal.
type FshReference struct {
	Reference string
	Display   string
}

// ValueKind implements Value.
func (*FshReference) ValueKind() ValueKind { return ValueReference }

// FSH implements Value.
func (r *FshReference) FSH() string {
	s := "Reference(" + r.Reference + ")"
	if r.Display != "" {
		s += ` "` + r.Display + `"`
	}
	return s
}

func (*FshReference) isValue() {}

// FshCanonical is a Canonical(Target|version) literal.
type FshCanonical struct {
	EntityName string
	Version    string
}

// ValueKind implements Value.
func (*FshCanonical) ValueKind() ValueKind { return ValueCanonical }

// FSH implements Value.
func (c *FshCanonical) FSH() string {
	if c.Version != "" {
		return "Canonical(" + c.EntityName + "|" + c.Version + ")"
	}
	return "Canonical(" + c.EntityName + ")"
}

func (*FshCanonical) isValue() {}
