// Package importer builds FSH documents from parse trees.
//
// An import runs in four phases over one batch of files:
//
//  1. parse: every file is parsed concurrently (package parser)
//  2. preprocess: aliases and parameterized RuleSets are collected across
//     the batch, so any file may refer to what another declares
//  3. visit: each parse tree becomes a fshtypes.Document; parameterized
//     inserts are expanded into applied RuleSets as they are met
//  4. splice: every insert rule is replaced by the rules it names
//
// Visiting and splicing are single-threaded. Input problems are reported
// to the batch's issue.Result and never abort the import.
package importer

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gofhir/fsh/pkg/constraint"
	"github.com/gofhir/fsh/pkg/fshtypes"
	"github.com/gofhir/fsh/pkg/issue"
	"github.com/gofhir/fsh/pkg/logger"
	"github.com/gofhir/fsh/pkg/parser"
)

// ErrImporterReused is returned when an Importer is run a second time.
// An Importer owns the state of exactly one batch.
var ErrImporterReused = errors.New("importer: an Importer can only be used once")

// Phase names recorded in metrics.
const (
	PhaseParse      = "parse"
	PhasePreprocess = "preprocess"
	PhaseVisit      = "visit"
	PhaseSplice     = "splice"
)

// RawFSH is the source of one FSH file.
type RawFSH struct {
	Path    string
	Content []byte
}

// Result is the output of one import batch.
type Result struct {
	// Documents holds one document per input file, in input order.
	Documents []*fshtypes.Document
	// Aliases is the batch-wide alias table.
	Aliases map[string]string
	// ParamRuleSets holds the parameterized RuleSet templates by name.
	ParamRuleSets map[string]*fshtypes.ParamRuleSet
	// Issues holds every diagnostic of the batch.
	Issues *issue.Result
}

// Importer imports one batch of FSH files.
type Importer struct {
	opts options
	used atomic.Bool
}

// New creates an Importer.
func New(opts ...Option) *Importer {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.Default().With("importer")
	}
	if o.checkExpressions && o.checker == nil {
		o.checker = constraint.NewChecker(constraint.DefaultCacheSize)
	}
	return &Importer{opts: o}
}

// Import parses and imports files. It fails only when ctx is cancelled
// during parsing or when the Importer was already used.
func (imp *Importer) Import(ctx context.Context, files []RawFSH) (*Result, error) {
	if !imp.used.CompareAndSwap(false, true) {
		return nil, ErrImporterReused
	}
	start := time.Now()
	issues := issue.NewResult()
	sink := imp.sink(issues)

	var parsed []*parser.File
	var err error
	imp.phase(PhaseParse, issues, func() {
		parsed, err = ParseFiles(ctx, files, imp.opts.parallelism, imp.opts.log)
	})
	if err != nil {
		return nil, err
	}
	return imp.run(parsed, issues, sink, start), nil
}

// ImportParsed imports files that were already parsed.
func (imp *Importer) ImportParsed(files []*parser.File) (*Result, error) {
	if !imp.used.CompareAndSwap(false, true) {
		return nil, ErrImporterReused
	}
	issues := issue.NewResult()
	return imp.run(files, issues, imp.sink(issues), time.Now()), nil
}

// ParseFiles parses every file, running at most parallelism parsers at
// once. The returned slice is in input order.
func ParseFiles(ctx context.Context, files []RawFSH, parallelism int, log *logger.Logger) ([]*parser.File, error) {
	out := make([]*parser.File, len(files))
	g, ctx := errgroup.WithContext(ctx)
	if parallelism > 0 {
		g.SetLimit(parallelism)
	}
	for i, f := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out[i] = parser.New(f.Path, f.Content, log).Parse()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("parse FSH files: %w", err)
	}
	return out, nil
}

func (imp *Importer) sink(issues *issue.Result) issue.Sink {
	var sink issue.Sink = issues
	if extra := imp.opts.sink; extra != nil {
		sink = issue.SinkFunc(func(i issue.Issue) {
			issues.Report(i)
			extra.Report(i)
		})
	}
	if imp.opts.metrics != nil {
		sink = imp.opts.metrics.Sink(sink)
	}
	return sink
}

// phase runs fn and records its duration and the issues it added.
func (imp *Importer) phase(name string, issues *issue.Result, fn func()) {
	before := issues.Len()
	start := time.Now()
	fn()
	if imp.opts.metrics != nil {
		imp.opts.metrics.RecordPhase(name, time.Since(start), issues.Len()-before)
	}
}

func (imp *Importer) run(files []*parser.File, issues *issue.Result, sink issue.Sink, start time.Time) *Result {
	ic := newImportContext(imp.opts, sink)

	for _, f := range files {
		for _, d := range f.Diagnostics {
			sink.Report(d)
		}
	}
	imp.phase(PhasePreprocess, issues, func() {
		ic.preprocess(files)
	})
	imp.phase(PhaseVisit, issues, func() {
		for _, f := range files {
			ic.Documents = append(ic.Documents, ic.visitFile(f))
		}
	})
	imp.phase(PhaseSplice, issues, func() {
		ic.splice()
	})

	res := &Result{
		Documents:     ic.Documents,
		Aliases:       ic.Aliases,
		ParamRuleSets: ic.ParamRuleSets,
		Issues:        issues,
	}
	definitions, instances := res.Counts()
	imp.opts.log.Info("Imported %d definitions and %d instances.", definitions, instances)
	if imp.opts.metrics != nil {
		imp.opts.metrics.RecordImport(time.Since(start), !issues.HasErrors())
	}
	return res
}

// Counts splits the entities of every document into definitions and
// instances. RuleSets are neither.
func (r *Result) Counts() (definitions, instances int) {
	for _, doc := range r.Documents {
		instances += len(doc.Instances)
		definitions += doc.Len() - len(doc.Instances) - len(doc.RuleSets)
	}
	return definitions, instances
}
