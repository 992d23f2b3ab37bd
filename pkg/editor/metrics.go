package editor

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofhir/profiler/pkg/issue"
)

// Operation names recorded by an Editor.
const (
	OpImport = "import"
	OpOpen   = "open"
	OpExport = "export"
)

// Metrics counts editor operations and the issues they report using
// lock-free atomic operations. All methods are safe for concurrent use.
type Metrics struct {
	ops sync.Map // map[string]*opMetrics

	errorsTotal   atomic.Uint64
	warningsTotal atomic.Uint64
	infosTotal    atomic.Uint64
}

type opMetrics struct {
	calls     atomic.Uint64
	failures  atomic.Uint64
	totalTime atomic.Uint64 // nanoseconds
	minTime   atomic.Uint64
	maxTime   atomic.Uint64
}

// NewMetrics creates an empty Metrics.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// Record adds one run of op. res may be nil.
func (m *Metrics) Record(op string, duration time.Duration, res *issue.Result, err error) {
	om := m.op(op)
	om.calls.Add(1)
	if err != nil {
		om.failures.Add(1)
	}

	ns := uint64(duration.Nanoseconds()) //nolint:gosec // durations measured with time.Since are not negative
	om.totalTime.Add(ns)
	for {
		old := om.minTime.Load()
		if old != 0 && ns >= old {
			break
		}
		if om.minTime.CompareAndSwap(old, ns) {
			break
		}
	}
	for {
		old := om.maxTime.Load()
		if ns <= old {
			break
		}
		if om.maxTime.CompareAndSwap(old, ns) {
			break
		}
	}

	if res == nil {
		return
	}
	for _, iss := range res.Issues {
		switch iss.Severity {
		case issue.SeverityError, issue.SeverityFatal:
			m.errorsTotal.Add(1)
		case issue.SeverityWarning:
			m.warningsTotal.Add(1)
		case issue.SeverityInformation:
			m.infosTotal.Add(1)
		}
	}
}

func (m *Metrics) op(name string) *opMetrics {
	if v, ok := m.ops.Load(name); ok {
		return v.(*opMetrics)
	}
	actual, _ := m.ops.LoadOrStore(name, &opMetrics{})
	return actual.(*opMetrics)
}

// ErrorsTotal returns the number of error and fatal issues recorded.
func (m *Metrics) ErrorsTotal() uint64 {
	return m.errorsTotal.Load()
}

// WarningsTotal returns the number of warnings recorded.
func (m *Metrics) WarningsTotal() uint64 {
	return m.warningsTotal.Load()
}

// InfosTotal returns the number of informational issues recorded.
func (m *Metrics) InfosTotal() uint64 {
	return m.infosTotal.Load()
}

// OpStats summarizes the runs of one operation.
type OpStats struct {
	Name     string        `json:"name"`
	Calls    uint64        `json:"calls"`
	Failures uint64        `json:"failures"`
	Total    time.Duration `json:"total_ns"`
	Avg      time.Duration `json:"avg_ns"`
	Min      time.Duration `json:"min_ns"`
	Max      time.Duration `json:"max_ns"`
}

// OpStats returns the statistics of one operation.
func (m *Metrics) OpStats(name string) (OpStats, bool) {
	v, ok := m.ops.Load(name)
	if !ok {
		return OpStats{Name: name}, false
	}
	return v.(*opMetrics).stats(name), true
}

func (om *opMetrics) stats(name string) OpStats {
	calls := om.calls.Load()
	total := om.totalTime.Load()
	s := OpStats{
		Name:     name,
		Calls:    calls,
		Failures: om.failures.Load(),
		Total:    time.Duration(total),            //nolint:gosec // nanoseconds within int64 range
		Min:      time.Duration(om.minTime.Load()), //nolint:gosec // nanoseconds within int64 range
		Max:      time.Duration(om.maxTime.Load()), //nolint:gosec // nanoseconds within int64 range
	}
	if calls > 0 {
		s.Avg = time.Duration(total / calls) //nolint:gosec // nanoseconds within int64 range
	}
	return s
}

// AllOpStats returns the statistics of every recorded operation, by name.
func (m *Metrics) AllOpStats() []OpStats {
	var stats []OpStats
	m.ops.Range(func(key, value any) bool {
		stats = append(stats, value.(*opMetrics).stats(key.(string)))
		return true
	})
	sort.Slice(stats, func(i, j int) bool { return stats[i].Name < stats[j].Name })
	return stats
}

// Snapshot is a point-in-time copy of the metrics.
type Snapshot struct {
	Timestamp     time.Time `json:"timestamp"`
	Operations    []OpStats `json:"operations,omitempty"`
	ErrorsTotal   uint64    `json:"errors_total"`
	WarningsTotal uint64    `json:"warnings_total"`
	InfosTotal    uint64    `json:"infos_total"`
}

// Snapshot returns the current values.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		Timestamp:     time.Now(),
		Operations:    m.AllOpStats(),
		ErrorsTotal:   m.errorsTotal.Load(),
		WarningsTotal: m.warningsTotal.Load(),
		InfosTotal:    m.infosTotal.Load(),
	}
}

// Reset clears all metrics.
func (m *Metrics) Reset() {
	m.errorsTotal.Store(0)
	m.warningsTotal.Store(0)
	m.infosTotal.Store(0)
	m.ops.Range(func(key, _ any) bool {
		m.ops.Delete(key)
		return true
	})
}
