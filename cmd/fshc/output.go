package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	fsh "github.com/gofhir/fsh"
	"github.com/gofhir/fsh/pkg/config"
	"github.com/gofhir/fsh/pkg/importer"
	"github.com/gofhir/fsh/pkg/issue"
)

// ImportOutput represents the JSON output of one import.
type ImportOutput struct {
	FHIRVersion string        `json:"fhirVersion"`
	Canonical   string        `json:"canonical"`
	Files       int           `json:"files"`
	Definitions int           `json:"definitions"`
	Instances   int           `json:"instances"`
	Aliases     int           `json:"aliases"`
	Errors      int           `json:"errors"`
	Warnings    int           `json:"warnings"`
	Issues      []IssueOutput `json:"issues,omitempty"`
	Duration    string        `json:"duration"`
	Metrics     *fsh.Snapshot `json:"metrics,omitempty"`
}

// IssueOutput represents a single issue in JSON output
type IssueOutput struct {
	Severity    string   `json:"severity"`
	Code        string   `json:"code"`
	MessageID   string   `json:"messageId,omitempty"`
	Diagnostics string   `json:"diagnostics"`
	Details     []string `json:"details,omitempty"`
	Location    string   `json:"location,omitempty"`
}

func newReport(cfg *config.Config, res *importer.Result, files int, duration time.Duration) *ImportOutput {
	definitions, instances := res.Counts()
	out := &ImportOutput{
		FHIRVersion: cfg.FHIRVersion.String(),
		Canonical:   cfg.Canonical,
		Files:       files,
		Definitions: definitions,
		Instances:   instances,
		Aliases:     len(res.Aliases),
		Errors:      res.Issues.ErrorCount(),
		Warnings:    res.Issues.WarningCount(),
		Duration:    duration.Round(time.Microsecond).String(),
	}
	for _, iss := range res.Issues.Issues {
		out.Issues = append(out.Issues, issueOutput(iss))
	}
	return out
}

func issueOutput(iss issue.Issue) IssueOutput {
	o := IssueOutput{
		Severity:    string(iss.Severity),
		Code:        string(iss.Code),
		MessageID:   iss.MessageID,
		Diagnostics: iss.Diagnostics,
		Details:     iss.Details,
	}
	if iss.Location != nil && !iss.Location.IsZero() {
		o.Location = iss.Location.String()
	}
	return o
}

func printJSONReport(w io.Writer, report *ImportOutput) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func printTextReport(w io.Writer, report *ImportOutput, issues *issue.Result) error {
	status := "OK"
	if report.Errors > 0 {
		status = "FAILED"
	}

	var err error
	printf := func(format string, args ...any) {
		if err == nil {
			_, err = fmt.Fprintf(w, format, args...)
		}
	}

	printf("== Import (%s, %s) ==\n", report.FHIRVersion, report.Canonical)
	printf("Status: %s\n", status)
	printf("Files: %d, Definitions: %d, Instances: %d, Aliases: %d\n",
		report.Files, report.Definitions, report.Instances, report.Aliases)
	printf("Errors: %d, Warnings: %d\n", report.Errors, report.Warnings)
	printf("Duration: %s\n", report.Duration)

	if len(issues.Issues) > 0 {
		printf("\nIssues:\n")
		for _, iss := range issues.Issues {
			location := ""
			if iss.Location != nil && !iss.Location.IsZero() {
				location = " @ " + iss.Location.String()
			}
			printf("  %s [%s] %s%s\n", getSeverityIcon(iss.Severity), iss.Code, iss.Message(), location)
		}
	}

	if m := report.Metrics; m != nil {
		printf("\nMetrics:\n")
		printf("  Entities: %d, Rules: %d\n", m.EntitiesTotal, m.RulesTotal)
		printf("  Expansions: %d, Cache hits: %d, Cache misses: %d\n", m.ExpansionsTotal, m.CacheHits, m.CacheMisses)
		for _, p := range m.Phases {
			printf("  Phase %s: %s\n", p.Name, p.TotalTime)
		}
	}
	return err
}

func getSeverityIcon(severity issue.Severity) string {
	switch severity {
	case issue.SeverityFatal, issue.SeverityError:
		return "ERROR"
	case issue.SeverityWarning:
		return "WARN "
	case issue.SeverityInformation:
		return "INFO "
	default:
		return "     "
	}
}
