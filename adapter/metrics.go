package adapter

import (
	"sync"

	"github.com/wtsi-npg/bambi-go/workerpool"
)

// RGMetrics is one read-group's adapter-contamination tally (spec.md §3).
// Histograms auto-grow to whatever match-start offset is observed.
type RGMetrics struct {
	TotalFwd, TotalRev   int64
	ContamFwd, ContamRev int64
	HistFwd, HistRev     []int64
}

func (m *RGMetrics) growFwd(offset int) {
	if offset >= len(m.HistFwd) {
		grown := make([]int64, offset+1)
		copy(grown, m.HistFwd)
		m.HistFwd = grown
	}
}

func (m *RGMetrics) growRev(offset int) {
	if offset >= len(m.HistRev) {
		grown := make([]int64, offset+1)
		copy(grown, m.HistRev)
		m.HistRev = grown
	}
}

// RecordFwd tallies one forward-strand match at the given start offset.
func (m *RGMetrics) RecordFwd(offset int) {
	m.ContamFwd++
	m.growFwd(offset)
	m.HistFwd[offset]++
}

// RecordRev tallies one reverse-strand match at the given start offset.
func (m *RGMetrics) RecordRev(offset int) {
	m.ContamRev++
	m.growRev(offset)
	m.HistRev[offset]++
}

// Add merges other into m, field-wise, growing histograms as needed
// (the same per-worker-merge shape as markduplicates.Metrics.Add).
func (m *RGMetrics) Add(other *RGMetrics) {
	m.TotalFwd += other.TotalFwd
	m.TotalRev += other.TotalRev
	m.ContamFwd += other.ContamFwd
	m.ContamRev += other.ContamRev
	if len(other.HistFwd) > 0 {
		m.growFwd(len(other.HistFwd) - 1)
		for i, v := range other.HistFwd {
			m.HistFwd[i] += v
		}
	}
	if len(other.HistRev) > 0 {
		m.growRev(len(other.HistRev) - 1)
		for i, v := range other.HistRev {
			m.HistRev[i] += v
		}
	}
}

// MetricsTable is the shared, mutex-protected read-group metrics table
// (spec.md §4.9/§5: "metrics update is mutex-protected because adapter
// jobs run concurrently" — unlike the barcode path's per-worker-then-merge
// design, the adapter path shares one table behind a lock).
type MetricsTable struct {
	mu      sync.Mutex
	byGroup map[string]*RGMetrics
}

// NewMetricsTable returns an empty table.
func NewMetricsTable() *MetricsTable {
	return &MetricsTable{byGroup: make(map[string]*RGMetrics)}
}

// Update applies fn to the named group's metrics under the table's lock,
// creating the group's entry on first use.
func (t *MetricsTable) Update(readGroup string, fn func(*RGMetrics)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.byGroup[readGroup]
	if !ok {
		m = &RGMetrics{}
		t.byGroup[readGroup] = m
	}
	fn(m)
}

// Snapshot returns a read-group-keyed copy for reporting.
func (t *MetricsTable) Snapshot() map[string]*RGMetrics {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]*RGMetrics, len(t.byGroup))
	for k, v := range t.byGroup {
		cp := *v
		cp.HistFwd = append([]int64(nil), v.HistFwd...)
		cp.HistRev = append([]int64(nil), v.HistRev...)
		out[k] = &cp
	}
	return out
}

// workerAccumulator adapts a Matcher plus its shared MetricsTable to
// workerpool.Accumulator. Unlike the barcode path, the adapter path's
// accumulator is already safe for concurrent use (MetricsTable is
// mutex-protected), so Clone shares the same table rather than copying
// state to merge later, and Merge is a no-op.
type workerAccumulator struct {
	Matcher *Matcher
	Metrics *MetricsTable
}

func (a workerAccumulator) Clone() workerpool.Accumulator { return a }

func (workerAccumulator) Merge(workerpool.Accumulator) {}

// NewWorkerAccumulator builds the workerpool.Accumulator seed for an
// adapter-finding Pool (spec.md §4.9/§4.11).
func NewWorkerAccumulator(m *Matcher, metrics *MetricsTable) workerpool.Accumulator {
	return workerAccumulator{Matcher: m, Metrics: metrics}
}
