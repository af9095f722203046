// Package issue provides diagnostic message templates for FSH import.
package issue

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gofhir/fsh/pkg/location"
)

// DiagnosticID identifies a specific diagnostic message.
type DiagnosticID string

// Diagnostic IDs for grammar-level problems.
const (
	DiagSyntax     DiagnosticID = "SYNTAX"
	DiagDeprecated DiagnosticID = "SYNTAX_DEPRECATED"
)

// Diagnostic IDs for aliases.
const (
	DiagAliasConflict    DiagnosticID = "ALIAS_CONFLICT"
	DiagAliasInvalidName DiagnosticID = "ALIAS_INVALID_NAME"
	DiagAliasDollarValue DiagnosticID = "ALIAS_DOLLAR_VALUE"
	DiagAliasUnresolved  DiagnosticID = "ALIAS_UNRESOLVED"
)

// Diagnostic IDs for entities and metadata.
const (
	DiagDuplicateEntity   DiagnosticID = "ENTITY_DUPLICATE"
	DiagDuplicateMetadata DiagnosticID = "METADATA_DUPLICATE"
	DiagRequiredMetadata  DiagnosticID = "METADATA_REQUIRED"
	DiagInvalidUsage      DiagnosticID = "METADATA_INVALID_USAGE"
	DiagInvalidSeverity   DiagnosticID = "METADATA_INVALID_SEVERITY"
	DiagInvalidExpression DiagnosticID = "METADATA_INVALID_EXPRESSION"
)

// Diagnostic IDs for rules.
const (
	DiagUnsupportedRule    DiagnosticID = "RULE_UNSUPPORTED"
	DiagInvalidCardinality DiagnosticID = "RULE_INVALID_CARDINALITY"
	DiagInvalidIndent      DiagnosticID = "RULE_INVALID_INDENT"
	DiagMissingContext     DiagnosticID = "RULE_MISSING_CONTEXT"
	DiagDuplicateCode      DiagnosticID = "CODESYSTEM_DUPLICATE_CODE"
	DiagCodeSystemSystem   DiagnosticID = "CODESYSTEM_CONCEPT_SYSTEM"
	DiagVsMissingSystem    DiagnosticID = "VALUESET_MISSING_SYSTEM"
	DiagVsSystemConflict   DiagnosticID = "VALUESET_SYSTEM_CONFLICT"
	DiagVsFilterOperator   DiagnosticID = "VALUESET_FILTER_OPERATOR"
	DiagVsFilterValue      DiagnosticID = "VALUESET_FILTER_VALUE"
	DiagRuleNotAllowed     DiagnosticID = "RULE_NOT_ALLOWED"
)

// Diagnostic IDs for RuleSets and insert rules.
const (
	DiagDuplicateRuleSet      DiagnosticID = "RULESET_DUPLICATE"
	DiagUnusedParameter       DiagnosticID = "RULESET_UNUSED_PARAMETER"
	DiagRuleSetNotFound       DiagnosticID = "RULESET_NOT_FOUND"
	DiagParamRuleSetNotFound  DiagnosticID = "RULESET_PARAM_NOT_FOUND"
	DiagRuleSetArgCount       DiagnosticID = "RULESET_ARGUMENT_COUNT"
	DiagRuleSetParseFailed    DiagnosticID = "RULESET_PARSE_FAILED"
	DiagRuleSetExpansion      DiagnosticID = "RULESET_EXPANSION_ERRORS"
	DiagRuleSetDepthExceeded  DiagnosticID = "RULESET_DEPTH_EXCEEDED"
	DiagInsertNotExpanded     DiagnosticID = "RULESET_INSERT_NOT_EXPANDED"
	DiagRuleSetRuleConversion DiagnosticID = "RULESET_RULE_CONVERSION"
)

// DiagnosticTemplate defines the structure for a diagnostic message.
type DiagnosticTemplate struct {
	ID       DiagnosticID
	Severity Severity
	Code     Code
	Template string
}

// diagnosticTemplates maps diagnostic IDs to their templates.
// Templates use {placeholder} syntax for variable substitution.
var diagnosticTemplates = map[DiagnosticID]DiagnosticTemplate{
	// Grammar
	DiagSyntax: {
		Severity: SeverityError,
		Code:     CodeStructure,
		Template: "{message}",
	},
	DiagDeprecated: {
		Severity: SeverityWarning,
		Code:     CodeStructure,
		Template: "{message}",
	},

	// Aliases
	DiagAliasConflict: {
		Severity: SeverityError,
		Code:     CodeConflict,
		Template: "Alias {name} cannot be redefined to {value}; it is already defined as {existing}.",
	},
	DiagAliasInvalidName: {
		Severity: SeverityError,
		Code:     CodeInvalid,
		Template: `Alias {name} includes unsupported characters. Alias names can only contain letters, numbers, underscores ("_"), hyphens ("-"), and dots (".").`,
	},
	DiagAliasDollarValue: {
		Severity: SeverityError,
		Code:     CodeInvalid,
		Template: `Alias {name} cannot resolve to a value beginning with "$".`,
	},
	DiagAliasUnresolved: {
		Severity: SeverityError,
		Code:     CodeNotFound,
		Template: `Value {value} does not resolve as alias; values beginning with "$" must resolve.`,
	},

	// Entities and metadata
	DiagDuplicateEntity: {
		Severity: SeverityError,
		Code:     CodeDuplicate,
		Template: "Skipping {kind}: a {kind} named {name} already exists.",
	},
	DiagDuplicateMetadata: {
		Severity: SeverityError,
		Code:     CodeDuplicate,
		Template: "Metadata field '{field}' already declared with value '{value}'.",
	},
	DiagRequiredMetadata: {
		Severity: SeverityError,
		Code:     CodeRequired,
		Template: "{field} is required for {kind} {name}.",
	},
	DiagInvalidUsage: {
		Severity: SeverityError,
		Code:     CodeValue,
		Template: "Invalid Usage {usage}. Supported usages are #example, #definition, and #inline. Instance will be treated as an Example.",
	},
	DiagInvalidSeverity: {
		Severity: SeverityError,
		Code:     CodeValue,
		Template: "Invalid Severity {severity}. Supported severities are #error and #warning.",
	},
	DiagInvalidExpression: {
		Severity: SeverityWarning,
		Code:     CodeInvariant,
		Template: "Invariant {name} has an expression that does not compile: {error}",
	},

	// Rules
	DiagUnsupportedRule: {
		Severity: SeverityError,
		Code:     CodeNotSupported,
		Template: "Rule of type {rule} is not supported on {kind} {name}; the rule will be ignored.",
	},
	DiagInvalidCardinality: {
		Severity: SeverityError,
		Code:     CodeInvalid,
		Template: "Cardinality rule on {path} must specify a minimum or a maximum.",
	},
	DiagInvalidIndent: {
		Severity: SeverityError,
		Code:     CodeStructure,
		Template: "Unable to determine path context for rule indented {indent} spaces. Rules must be indented in increments of 2 spaces.",
	},
	DiagMissingContext: {
		Severity: SeverityError,
		Code:     CodeStructure,
		Template: "Unable to determine path context for rule indented {indent} spaces. An indented rule must follow a rule indented {parent} spaces.",
	},
	DiagDuplicateCode: {
		Severity: SeverityError,
		Code:     CodeDuplicate,
		Template: "CodeSystem {name} already contains code {code}.",
	},
	DiagCodeSystemSystem: {
		Severity: SeverityError,
		Code:     CodeInvalid,
		Template: "Do not include the system when listing concepts for a code system: {code}.",
	},
	DiagVsMissingSystem: {
		Severity: SeverityError,
		Code:     CodeRequired,
		Template: "Concept {code} must include a system when used in a ValueSet component.",
	},
	DiagVsSystemConflict: {
		Severity: SeverityError,
		Code:     CodeConflict,
		Template: "Concept {code} specifies system {codeSystem}, which conflicts with the component system {system}.",
	},
	DiagVsFilterOperator: {
		Severity: SeverityError,
		Code:     CodeInvalid,
		Template: "Unsupported ValueSet filter operator {operator}.",
	},
	DiagVsFilterValue: {
		Severity: SeverityError,
		Code:     CodeValue,
		Template: "ValueSet filter operator {operator} requires a {expected} value.",
	},
	DiagRuleNotAllowed: {
		Severity: SeverityError,
		Code:     CodeNotSupported,
		Template: "{rule} on path '{path}' is not allowed on {kind} {name}.",
	},

	// RuleSets
	DiagDuplicateRuleSet: {
		Severity: SeverityError,
		Code:     CodeDuplicate,
		Template: "RuleSet {name} is already defined; keeping the first definition.",
	},
	DiagUnusedParameter: {
		Severity: SeverityWarning,
		Code:     CodeInformational,
		Template: "RuleSet {name} does not use parameter {param}.",
	},
	DiagRuleSetNotFound: {
		Severity: SeverityError,
		Code:     CodeNotFound,
		Template: "Unable to find definition for RuleSet {name}.",
	},
	DiagParamRuleSetNotFound: {
		Severity: SeverityError,
		Code:     CodeNotFound,
		Template: "Could not find parameterized RuleSet named {name}.",
	},
	DiagRuleSetArgCount: {
		Severity: SeverityError,
		Code:     CodeInvalid,
		Template: "Incorrect number of parameters applied to RuleSet {name}: expected {expected}, received {received}.",
	},
	DiagRuleSetParseFailed: {
		Severity: SeverityError,
		Code:     CodeProcessing,
		Template: "Failed to parse RuleSet {name} with provided parameters ({params}).",
	},
	DiagRuleSetExpansion: {
		Severity: SeverityError,
		Code:     CodeProcessing,
		Template: "Errors parsing insert rule with parameterized RuleSet {name}",
	},
	DiagRuleSetDepthExceeded: {
		Severity: SeverityError,
		Code:     CodeTooCostly,
		Template: "RuleSet expansion depth exceeded while inserting {name}: {chain}.",
	},
	DiagInsertNotExpanded: {
		Severity: SeverityError,
		Code:     CodeProcessing,
		Template: "Insert rule for RuleSet {name} was not expanded.",
	},
	DiagRuleSetRuleConversion: {
		Severity: SeverityError,
		Code:     CodeNotSupported,
		Template: "Rule of type {rule} inserted from RuleSet {name} cannot be applied to {kind} {entity}.",
	},
}

// FormatDiagnostic formats a diagnostic message with the given parameters.
func FormatDiagnostic(id DiagnosticID, params map[string]any) string {
	tmpl, ok := diagnosticTemplates[id]
	if !ok {
		return string(id)
	}
	return formatTemplate(tmpl.Template, params)
}

// GetDiagnosticTemplate returns the template for a diagnostic ID.
func GetDiagnosticTemplate(id DiagnosticID) (DiagnosticTemplate, bool) {
	tmpl, ok := diagnosticTemplates[id]
	if ok {
		tmpl.ID = id
	}
	return tmpl, ok
}

// formatTemplate replaces {placeholder} with values from params in a single
// pass, so substituted values are never themselves re-expanded.
func formatTemplate(template string, params map[string]any) string {
	if len(params) == 0 {
		return template
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, "{"+k+"}", fmt.Sprint(params[k]))
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// New builds an Issue from a diagnostic template.
func New(id DiagnosticID, params map[string]any, span *location.Span) Issue {
	tmpl, ok := diagnosticTemplates[id]
	if !ok {
		return Issue{
			Severity:    SeverityError,
			Code:        CodeProcessing,
			Diagnostics: string(id),
			Location:    span,
			MessageID:   string(id),
		}
	}
	return Issue{
		Severity:    tmpl.Severity,
		Code:        tmpl.Code,
		Diagnostics: formatTemplate(tmpl.Template, params),
		Location:    span,
		MessageID:   string(id),
	}
}

// Report builds an Issue from a diagnostic template and sends it to sink.
func Report(sink Sink, id DiagnosticID, params map[string]any, span *location.Span) {
	sink.Report(New(id, params, span))
}
