// Package issue defines the diagnostics produced while importing FSH.
//
// Diagnostics are records, not errors: the importer reports them to a Sink
// and keeps going. A Result accumulates every diagnostic of an import batch.
package issue

import (
	"strings"

	"github.com/gofhir/fsh/pkg/location"
)

// Severity represents the severity of a diagnostic.
type Severity string

// Severity constants, ordered from most to least severe.
const (
	SeverityFatal       Severity = "fatal"
	SeverityError       Severity = "error"
	SeverityWarning     Severity = "warning"
	SeverityInformation Severity = "information"
)

// rank orders severities so the most severe compares highest.
func (s Severity) rank() int {
	switch s {
	case SeverityFatal:
		return 3
	case SeverityError:
		return 2
	case SeverityWarning:
		return 1
	default:
		return 0
	}
}

// MoreSevere reports whether s is more severe than other.
func (s Severity) MoreSevere(other Severity) bool {
	return s.rank() > other.rank()
}

// Code classifies a diagnostic.
type Code string

// Code constants.
const (
	CodeInvalid       Code = "invalid"
	CodeStructure     Code = "structure"
	CodeRequired      Code = "required"
	CodeValue         Code = "value"
	CodeDuplicate     Code = "duplicate"
	CodeConflict      Code = "conflict"
	CodeNotFound      Code = "not-found"
	CodeNotSupported  Code = "not-supported"
	CodeProcessing    Code = "processing"
	CodeTooCostly     Code = "too-costly"
	CodeInvariant     Code = "invariant"
	CodeInformational Code = "informational"
)

// Issue represents a single diagnostic.
type Issue struct {
	// Severity indicates the severity level (error, warning, etc.)
	Severity Severity

	// Code indicates the type of issue
	Code Code

	// Diagnostics is the human-readable description of the issue
	Diagnostics string

	// Details holds sub-messages, e.g. the diagnostics collected while
	// expanding a parameterized RuleSet.
	Details []string

	// Location is the source span the issue is attributed to, if any
	Location *location.Span

	// MessageID is the identifier from the diagnostic catalog
	MessageID string
}

// IsError returns true if this is an error or fatal issue.
func (i Issue) IsError() bool {
	return i.Severity == SeverityError || i.Severity == SeverityFatal
}

// Message returns the diagnostics text followed by one bullet per detail.
func (i Issue) Message() string {
	if len(i.Details) == 0 {
		return i.Diagnostics
	}
	var b strings.Builder
	b.WriteString(i.Diagnostics)
	for _, d := range i.Details {
		b.WriteString("\n  - ")
		b.WriteString(d)
	}
	return b.String()
}

// String returns a human-readable representation of the issue.
func (i Issue) String() string {
	prefix := string(i.Severity) + ": "
	if i.Location != nil && !i.Location.IsZero() {
		return prefix + i.Message() + " (" + i.Location.String() + ")"
	}
	return prefix + i.Message()
}

// Sink receives diagnostics.
type Sink interface {
	Report(Issue)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Issue)

// Report calls f(i).
func (f SinkFunc) Report(i Issue) {
	f(i)
}

// Discard is a Sink that drops every diagnostic.
var Discard Sink = SinkFunc(func(Issue) {})

// Result holds the collection of issues reported during an import.
// It is also the buffering sink used when diagnostics must be collected
// and re-attributed before reaching the user.
type Result struct {
	Issues []Issue
}

// defaultIssueCapacity is the pre-allocated capacity for Issues slice.
const defaultIssueCapacity = 16

// NewResult creates a new empty Result with pre-allocated capacity.
func NewResult() *Result {
	return &Result{
		Issues: make([]Issue, 0, defaultIssueCapacity),
	}
}

// Report implements Sink.
func (r *Result) Report(i Issue) {
	r.Issues = append(r.Issues, i)
}

// AddError adds an error-level issue.
func (r *Result) AddError(code Code, diagnostics string, span *location.Span) {
	r.Report(Issue{
		Severity:    SeverityError,
		Code:        code,
		Diagnostics: diagnostics,
		Location:    span,
	})
}

// AddWarning adds a warning-level issue.
func (r *Result) AddWarning(code Code, diagnostics string, span *location.Span) {
	r.Report(Issue{
		Severity:    SeverityWarning,
		Code:        code,
		Diagnostics: diagnostics,
		Location:    span,
	})
}

// Len returns the number of collected issues.
func (r *Result) Len() int {
	return len(r.Issues)
}

// MaxSeverity returns the most severe severity present, or
// SeverityInformation for an empty result.
func (r *Result) MaxSeverity() Severity {
	max := SeverityInformation
	for _, i := range r.Issues {
		if i.Severity.MoreSevere(max) {
			max = i.Severity
		}
	}
	return max
}

// HasErrors returns true if there are any error-level issues.
func (r *Result) HasErrors() bool {
	for _, issue := range r.Issues {
		if issue.IsError() {
			return true
		}
	}
	return false
}

// ErrorCount returns the number of error-level issues.
func (r *Result) ErrorCount() int {
	count := 0
	for _, issue := range r.Issues {
		if issue.IsError() {
			count++
		}
	}
	return count
}

// WarningCount returns the number of warning-level issues.
func (r *Result) WarningCount() int {
	count := 0
	for _, issue := range r.Issues {
		if issue.Severity == SeverityWarning {
			count++
		}
	}
	return count
}

// Merge combines another result into this one.
func (r *Result) Merge(other *Result) {
	if other == nil {
		return
	}
	r.Issues = append(r.Issues, other.Issues...)
}

// Filter returns a new Result with only issues matching the given severity.
func (r *Result) Filter(severity Severity) *Result {
	filtered := NewResult()
	for _, issue := range r.Issues {
		if issue.Severity == severity {
			filtered.Issues = append(filtered.Issues, issue)
		}
	}
	return filtered
}

// ByMessageID returns the issues carrying the given diagnostic ID.
func (r *Result) ByMessageID(id DiagnosticID) []Issue {
	var out []Issue
	for _, issue := range r.Issues {
		if issue.MessageID == string(id) {
			out = append(out, issue)
		}
	}
	return out
}

// Collector buffers diagnostics instead of forwarding them. Nested RuleSet
// expansions report into a Collector so the collected messages can be
// re-attributed to the insert rule that triggered them.
type Collector struct {
	Result
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Messages returns the text of every collected diagnostic, in order.
func (c *Collector) Messages() []string {
	out := make([]string, 0, len(c.Issues))
	for _, i := range c.Issues {
		out = append(out, i.Message())
	}
	return out
}
