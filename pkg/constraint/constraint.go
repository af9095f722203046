// Package constraint checks FHIRPath expressions carried by Invariants.
//
// Expressions are only compiled, never evaluated: there is no resource to
// evaluate them against at import time.
package constraint

import (
	"fmt"

	"github.com/gofhir/fhirpath"

	"github.com/gofhir/fsh/cache"
	"github.com/gofhir/fsh/pkg/fshtypes"
	"github.com/gofhir/fsh/pkg/issue"
)

// DefaultCacheSize is the number of compiled expressions a Checker keeps.
const DefaultCacheSize = 2000

// compiled is a cached compile outcome. Failures are cached too, so an
// expression repeated across invariants is compiled once.
type compiled struct {
	expr *fhirpath.Expression
	err  error
}

// Checker compiles FHIRPath expressions and caches the results.
// It is safe for concurrent use.
type Checker struct {
	exprCache *cache.Cache[string, compiled]
}

// NewChecker creates a Checker caching up to size expressions.
func NewChecker(size int) *Checker {
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &Checker{exprCache: cache.New[string, compiled](size)}
}

// Compile returns the compiled form of expr.
func (c *Checker) Compile(expr string) (*fhirpath.Expression, error) {
	res := c.exprCache.GetOrSet(expr, func() compiled {
		e, err := fhirpath.Compile(expr)
		return compiled{expr: e, err: err}
	})
	return res.expr, res.err
}

// Check returns an error when expr is not valid FHIRPath.
func (c *Checker) Check(expr string) error {
	if _, err := c.Compile(expr); err != nil {
		return fmt.Errorf("compile %q: %w", expr, err)
	}
	return nil
}

// CheckInvariant reports a warning to sink when inv has an expression that
// does not compile. It reports whether the expression is usable; an
// Invariant without an expression is.
func (c *Checker) CheckInvariant(inv *fshtypes.Invariant, sink issue.Sink) bool {
	if inv.Expression == "" {
		return true
	}
	if _, err := c.Compile(inv.Expression); err != nil {
		span := inv.Source
		issue.Report(sink, issue.DiagInvalidExpression, map[string]any{
			"name":  inv.Name,
			"error": err.Error(),
		}, &span)
		return false
	}
	return true
}

// Stats returns the expression cache statistics.
func (c *Checker) Stats() cache.Stats {
	return c.exprCache.Stats()
}
