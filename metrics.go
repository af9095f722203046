package fsh

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofhir/fsh/pkg/issue"
)

// Metrics tracks import counters and timings using lock-free atomic
// operations. All methods are safe for concurrent use.
type Metrics struct {
	importsTotal atomic.Uint64
	importsClean atomic.Uint64

	// Timing (stored as nanoseconds)
	importTimeTotal atomic.Uint64
	importTimeMin   atomic.Uint64
	importTimeMax   atomic.Uint64

	documentsTotal atomic.Uint64
	entitiesTotal  atomic.Uint64
	rulesTotal     atomic.Uint64

	// RuleSet expansion
	expansionsTotal atomic.Uint64
	cacheHits       atomic.Uint64
	cacheMisses     atomic.Uint64

	errorsTotal   atomic.Uint64
	warningsTotal atomic.Uint64
	infosTotal    atomic.Uint64

	phaseTiming sync.Map // map[string]*phaseMetrics
}

type phaseMetrics struct {
	invocations atomic.Uint64
	totalTime   atomic.Uint64 // nanoseconds
	issuesFound atomic.Uint64
}

// NewMetrics creates a new Metrics instance.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.importTimeMin.Store(^uint64(0))
	return m
}

// --- Recording Methods ---

// RecordImport records a completed import batch. clean is false when the
// batch produced errors.
func (m *Metrics) RecordImport(duration time.Duration, clean bool) {
	m.importsTotal.Add(1)
	if clean {
		m.importsClean.Add(1)
	}

	ns := uint64(duration.Nanoseconds()) //nolint:gosec // durations are positive
	m.importTimeTotal.Add(ns)

	for {
		old := m.importTimeMin.Load()
		if ns >= old || m.importTimeMin.CompareAndSwap(old, ns) {
			break
		}
	}
	for {
		old := m.importTimeMax.Load()
		if ns <= old || m.importTimeMax.CompareAndSwap(old, ns) {
			break
		}
	}
}

// RecordDocument records one visited document with its entity and rule
// counts.
func (m *Metrics) RecordDocument(entities, rules int) {
	m.documentsTotal.Add(1)
	m.entitiesTotal.Add(uint64(entities)) //nolint:gosec // counts are non-negative
	m.rulesTotal.Add(uint64(rules))       //nolint:gosec // counts are non-negative
}

// RecordExpansion records a parameterized RuleSet expansion that was
// parsed, as opposed to served from the applied RuleSet cache.
func (m *Metrics) RecordExpansion() {
	m.expansionsTotal.Add(1)
}

// RecordCacheHit records an applied RuleSet cache hit.
func (m *Metrics) RecordCacheHit() {
	m.cacheHits.Add(1)
}

// RecordCacheMiss records an applied RuleSet cache miss.
func (m *Metrics) RecordCacheMiss() {
	m.cacheMisses.Add(1)
}

// RecordIssue records an issue based on severity.
func (m *Metrics) RecordIssue(severity issue.Severity) {
	switch severity {
	case issue.SeverityError, issue.SeverityFatal:
		m.errorsTotal.Add(1)
	case issue.SeverityWarning:
		m.warningsTotal.Add(1)
	case issue.SeverityInformation:
		m.infosTotal.Add(1)
	}
}

// Sink wraps next so every issue reported through it is counted.
func (m *Metrics) Sink(next issue.Sink) issue.Sink {
	return issue.SinkFunc(func(i issue.Issue) {
		m.RecordIssue(i.Severity)
		next.Report(i)
	})
}

// RecordPhase records the duration of one import phase.
func (m *Metrics) RecordPhase(name string, duration time.Duration, issuesFound int) {
	pm := m.phase(name)
	pm.invocations.Add(1)
	pm.totalTime.Add(uint64(duration.Nanoseconds())) //nolint:gosec // durations are positive
	pm.issuesFound.Add(uint64(issuesFound))          //nolint:gosec // counts are non-negative
}

func (m *Metrics) phase(name string) *phaseMetrics {
	if v, ok := m.phaseTiming.Load(name); ok {
		return v.(*phaseMetrics)
	}
	actual, _ := m.phaseTiming.LoadOrStore(name, &phaseMetrics{})
	return actual.(*phaseMetrics)
}

// --- Query Methods ---

// ImportsTotal returns the number of import batches recorded.
func (m *Metrics) ImportsTotal() uint64 {
	return m.importsTotal.Load()
}

// ImportsClean returns the number of import batches without errors.
func (m *Metrics) ImportsClean() uint64 {
	return m.importsClean.Load()
}

// AverageImportTime returns the mean import duration.
func (m *Metrics) AverageImportTime() time.Duration {
	total := m.importsTotal.Load()
	if total == 0 {
		return 0
	}
	return time.Duration(m.importTimeTotal.Load() / total) //nolint:gosec // fits in int64
}

// MinImportTime returns the shortest import duration.
func (m *Metrics) MinImportTime() time.Duration {
	v := m.importTimeMin.Load()
	if v == ^uint64(0) {
		return 0
	}
	return time.Duration(v) //nolint:gosec // fits in int64
}

// MaxImportTime returns the longest import duration.
func (m *Metrics) MaxImportTime() time.Duration {
	return time.Duration(m.importTimeMax.Load()) //nolint:gosec // fits in int64
}

// DocumentsTotal returns the number of documents visited.
func (m *Metrics) DocumentsTotal() uint64 { return m.documentsTotal.Load() }

// EntitiesTotal returns the number of entities built.
func (m *Metrics) EntitiesTotal() uint64 { return m.entitiesTotal.Load() }

// RulesTotal returns the number of rules built.
func (m *Metrics) RulesTotal() uint64 { return m.rulesTotal.Load() }

// ExpansionsTotal returns the number of parsed RuleSet expansions.
func (m *Metrics) ExpansionsTotal() uint64 { return m.expansionsTotal.Load() }

// CacheHits returns the applied RuleSet cache hits.
func (m *Metrics) CacheHits() uint64 { return m.cacheHits.Load() }

// CacheMisses returns the applied RuleSet cache misses.
func (m *Metrics) CacheMisses() uint64 { return m.cacheMisses.Load() }

// CacheHitRate returns the applied RuleSet cache hit rate (0.0 to 1.0).
func (m *Metrics) CacheHitRate() float64 {
	hits := m.cacheHits.Load()
	total := hits + m.cacheMisses.Load()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// ErrorsTotal returns the number of error issues recorded.
func (m *Metrics) ErrorsTotal() uint64 { return m.errorsTotal.Load() }

// WarningsTotal returns the number of warning issues recorded.
func (m *Metrics) WarningsTotal() uint64 { return m.warningsTotal.Load() }

// InfosTotal returns the number of informational issues recorded.
func (m *Metrics) InfosTotal() uint64 { return m.infosTotal.Load() }

// PhaseStats holds the statistics of one import phase.
type PhaseStats struct {
	Name        string        `json:"name"`
	Invocations uint64        `json:"invocations"`
	TotalTime   time.Duration `json:"total_time_ns"`
	AvgTime     time.Duration `json:"avg_time_ns"`
	IssuesFound uint64        `json:"issues_found"`
}

func (pm *phaseMetrics) stats(name string) PhaseStats {
	invocations := pm.invocations.Load()
	totalTime := pm.totalTime.Load()
	var avg time.Duration
	if invocations > 0 {
		avg = time.Duration(totalTime / invocations) //nolint:gosec // fits in int64
	}
	return PhaseStats{
		Name:        name,
		Invocations: invocations,
		TotalTime:   time.Duration(totalTime), //nolint:gosec // fits in int64
		AvgTime:     avg,
		IssuesFound: pm.issuesFound.Load(),
	}
}

// PhaseStats returns statistics for one phase.
func (m *Metrics) PhaseStats(name string) (PhaseStats, bool) {
	v, ok := m.phaseTiming.Load(name)
	if !ok {
		return PhaseStats{Name: name}, false
	}
	return v.(*phaseMetrics).stats(name), true
}

// AllPhaseStats returns statistics for every recorded phase.
func (m *Metrics) AllPhaseStats() []PhaseStats {
	var out []PhaseStats
	m.phaseTiming.Range(func(key, value any) bool {
		out = append(out, value.(*phaseMetrics).stats(key.(string)))
		return true
	})
	return out
}

// --- Export Methods ---

// Snapshot is a point-in-time copy of all metrics.
type Snapshot struct {
	Timestamp time.Time `json:"timestamp"`

	ImportsTotal    uint64 `json:"imports_total"`
	ImportsClean    uint64 `json:"imports_clean"`
	AvgImportTimeNs uint64 `json:"avg_import_time_ns"`
	MinImportTimeNs uint64 `json:"min_import_time_ns"`
	MaxImportTimeNs uint64 `json:"max_import_time_ns"`

	DocumentsTotal uint64 `json:"documents_total"`
	EntitiesTotal  uint64 `json:"entities_total"`
	RulesTotal     uint64 `json:"rules_total"`

	ExpansionsTotal uint64  `json:"expansions_total"`
	CacheHits       uint64  `json:"cache_hits"`
	CacheMisses     uint64  `json:"cache_misses"`
	CacheHitRate    float64 `json:"cache_hit_rate"`

	ErrorsTotal   uint64 `json:"errors_total"`
	WarningsTotal uint64 `json:"warnings_total"`
	InfosTotal    uint64 `json:"infos_total"`

	Phases []PhaseStats `json:"phases,omitempty"`
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (m *Metrics) Snapshot() Snapshot {
	var avg uint64
	if total := m.importsTotal.Load(); total > 0 {
		avg = m.importTimeTotal.Load() / total
	}
	minTime := m.importTimeMin.Load()
	if minTime == ^uint64(0) {
		minTime = 0
	}
	return Snapshot{
		Timestamp:       time.Now(),
		ImportsTotal:    m.importsTotal.Load(),
		ImportsClean:    m.importsClean.Load(),
		AvgImportTimeNs: avg,
		MinImportTimeNs: minTime,
		MaxImportTimeNs: m.importTimeMax.Load(),
		DocumentsTotal:  m.documentsTotal.Load(),
		EntitiesTotal:   m.entitiesTotal.Load(),
		RulesTotal:      m.rulesTotal.Load(),
		ExpansionsTotal: m.expansionsTotal.Load(),
		CacheHits:       m.cacheHits.Load(),
		CacheMisses:     m.cacheMisses.Load(),
		CacheHitRate:    m.CacheHitRate(),
		ErrorsTotal:     m.errorsTotal.Load(),
		WarningsTotal:   m.warningsTotal.Load(),
		InfosTotal:      m.infosTotal.Load(),
		Phases:          m.AllPhaseStats(),
	}
}

// Export returns the metrics as a flat map for external systems.
func (m *Metrics) Export() map[string]any {
	s := m.Snapshot()
	return map[string]any{
		"imports_total":      s.ImportsTotal,
		"imports_clean":      s.ImportsClean,
		"avg_import_time_ns": s.AvgImportTimeNs,
		"min_import_time_ns": s.MinImportTimeNs,
		"max_import_time_ns": s.MaxImportTimeNs,
		"documents_total":    s.DocumentsTotal,
		"entities_total":     s.EntitiesTotal,
		"rules_total":        s.RulesTotal,
		"expansions_total":   s.ExpansionsTotal,
		"cache_hits":         s.CacheHits,
		"cache_misses":       s.CacheMisses,
		"cache_hit_rate":     s.CacheHitRate,
		"errors_total":       s.ErrorsTotal,
		"warnings_total":     s.WarningsTotal,
		"infos_total":        s.InfosTotal,
	}
}

// Reset clears all metrics.
func (m *Metrics) Reset() {
	m.importsTotal.Store(0)
	m.importsClean.Store(0)
	m.importTimeTotal.Store(0)
	m.importTimeMin.Store(^uint64(0))
	m.importTimeMax.Store(0)
	m.documentsTotal.Store(0)
	m.entitiesTotal.Store(0)
	m.rulesTotal.Store(0)
	m.expansionsTotal.Store(0)
	m.cacheHits.Store(0)
	m.cacheMisses.Store(0)
	m.errorsTotal.Store(0)
	m.warningsTotal.Store(0)
	m.infosTotal.Store(0)
	m.phaseTiming.Range(func(key, _ any) bool {
		m.phaseTiming.Delete(key)
		return true
	})
}
