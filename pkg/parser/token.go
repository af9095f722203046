package parser

import (
	"fmt"

	"github.com/gofhir/fsh/pkg/location"
)

// TokenKind identifies a lexical token.
type TokenKind int

// Token kinds.
const (
	TokEOF TokenKind = iota
	// TokKeyword is an entity or metadata keyword written at the start of a
	// line, e.g. "Profile:". Text holds the keyword without the colon.
	TokKeyword
	// TokStar is a rule-introducing "*" at the start of a line.
	TokStar
	// TokWord is any other run of non-whitespace characters: paths, names,
	// numbers, cardinalities, flags and rule keywords.
	TokWord
	TokString
	TokMultilineString
	// TokCode is a word containing "#", e.g. "SCT#123" or "#\"a b\"".
	TokCode
	// TokUnit is a quoted UCUM unit, e.g. "'mg'".
	TokUnit
	TokReference
	TokCanonical
	TokCodeableReference
	// TokCaret is a caret path, e.g. "^short". Text excludes the caret.
	TokCaret
	TokRegex
	TokEqual
	TokArrow
	TokColon
	// TokRuleSetRef is the RuleSet named by an insert rule or a RuleSet
	// declaration. Text is the name; Args holds the raw parameter text.
	TokRuleSetRef
	// TokParamBody is the verbatim body of a parameterized RuleSet.
	TokParamBody
)

var tokenKindNames = map[TokenKind]string{
	TokEOF:               "end of file",
	TokKeyword:           "keyword",
	TokStar:              "'*'",
	TokWord:              "word",
	TokString:            "string",
	TokMultilineString:   "multiline string",
	TokCode:              "code",
	TokUnit:              "unit",
	TokReference:         "Reference",
	TokCanonical:         "Canonical",
	TokCodeableReference: "CodeableReference",
	TokCaret:             "caret path",
	TokRegex:             "regular expression",
	TokEqual:             "'='",
	TokArrow:             "'->'",
	TokColon:             "':'",
	TokRuleSetRef:        "RuleSet reference",
	TokParamBody:         "RuleSet body",
}

// String returns a readable token kind name.
func (k TokenKind) String() string {
	if name, ok := tokenKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("token(%d)", int(k))
}

// Token is one lexical token.
type Token struct {
	Kind TokenKind
	Text string
	Span location.Span

	// Start and End are byte offsets into the source.
	Start int
	End   int

	// LineStart is set when the token is the first one on its line.
	LineStart bool

	// Args and HasArgs are set on TokRuleSetRef tokens.
	Args    string
	HasArgs bool
}

// Is reports whether t is a word with exactly the given text.
func (t Token) Is(word string) bool {
	return t.Kind == TokWord && t.Text == word
}

// Inner returns the text between the parentheses of a Reference,
// Canonical or CodeableReference token.
func (t Token) Inner() string {
	open := -1
	for i := 0; i < len(t.Text); i++ {
		if t.Text[i] == '(' {
			open = i
			break
		}
	}
	if open < 0 || len(t.Text) < open+2 {
		return ""
	}
	return t.Text[open+1 : len(t.Text)-1]
}

// Entity keywords.
const (
	KwAlias      = "Alias"
	KwProfile    = "Profile"
	KwExtension  = "Extension"
	KwLogical    = "Logical"
	KwResource   = "Resource"
	KwInstance   = "Instance"
	KwValueSet   = "ValueSet"
	KwCodeSystem = "CodeSystem"
	KwInvariant  = "Invariant"
	KwMapping    = "Mapping"
	KwRuleSet    = "RuleSet"
)

// Metadata keywords.
const (
	KwParent          = "Parent"
	KwID              = "Id"
	KwTitle           = "Title"
	KwDescription     = "Description"
	KwExpression      = "Expression"
	KwXPath           = "XPath"
	KwSeverity        = "Severity"
	KwInstanceOf      = "InstanceOf"
	KwUsage           = "Usage"
	KwSource          = "Source"
	KwTarget          = "Target"
	KwContext         = "Context"
	KwCharacteristics = "Characteristics"
)

var entityKeywords = map[string]bool{
	KwAlias: true, KwProfile: true, KwExtension: true, KwLogical: true, KwResource: true,
	KwInstance: true, KwValueSet: true, KwCodeSystem: true, KwInvariant: true,
	KwMapping: true, KwRuleSet: true,
}

var metadataKeywords = map[string]bool{
	KwParent: true, KwID: true, KwTitle: true, KwDescription: true, KwExpression: true,
	KwXPath: true, KwSeverity: true, KwInstanceOf: true, KwUsage: true, KwSource: true,
	KwTarget: true, KwContext: true, KwCharacteristics: true,
}

// IsEntityKeyword reports whether kw starts a top-level declaration.
func IsEntityKeyword(kw string) bool { return entityKeywords[kw] }

// IsMetadataKeyword reports whether kw names a metadata field.
func IsMetadataKeyword(kw string) bool { return metadataKeywords[kw] }
