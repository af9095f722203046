package importer

import (
	"runtime"

	fsh "github.com/gofhir/fsh"
	"github.com/gofhir/fsh/pkg/constraint"
	"github.com/gofhir/fsh/pkg/issue"
	"github.com/gofhir/fsh/pkg/logger"
)

// DefaultMaxInsertDepth bounds RuleSet-inserts-RuleSet chains.
const DefaultMaxInsertDepth = 32

// Option configures an Importer.
type Option func(*options)

type options struct {
	log              *logger.Logger
	maxInsertDepth   int
	parallelism      int
	checkExpressions bool
	checker          *constraint.Checker
	metrics          *fsh.Metrics
	sink             issue.Sink
}

func defaultOptions() options {
	return options{
		maxInsertDepth:   DefaultMaxInsertDepth,
		parallelism:      runtime.NumCPU(),
		checkExpressions: true,
	}
}

// WithLogger sets the logger. The default is logger.Default() tagged with
// the "importer" component.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// WithMaxInsertDepth bounds how deeply RuleSet inserts may nest. Values
// below 1 are ignored.
func WithMaxInsertDepth(depth int) Option {
	return func(o *options) {
		if depth > 0 {
			o.maxInsertDepth = depth
		}
	}
}

// WithParallelism sets how many files are parsed concurrently. Zero or
// less means unbounded.
func WithParallelism(n int) Option {
	return func(o *options) {
		o.parallelism = n
	}
}

// WithExpressionChecking enables or disables FHIRPath compilation of
// Invariant expressions.
func WithExpressionChecking(enable bool) Option {
	return func(o *options) {
		o.checkExpressions = enable
	}
}

// WithChecker sets the FHIRPath checker, so its expression cache can be
// shared between imports.
func WithChecker(c *constraint.Checker) Option {
	return func(o *options) {
		o.checker = c
	}
}

// WithMetrics records import counters and phase timings into m.
func WithMetrics(m *fsh.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithSink streams every diagnostic to s as it is reported, in addition
// to collecting it in the Result.
func WithSink(s issue.Sink) Option {
	return func(o *options) {
		o.sink = s
	}
}
