package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Collector aggregates harvested Sessions from all workers. It is safe for
// concurrent use.
//
// Besides the running total it keeps numbered windows. Window 0 opens at
// Start and each Advance closes the open window and opens the next one.
// Sessions are merged into the window they were recorded in, so a window
// reported after every worker has handed over its share covers exactly the
// cycles run between its bounds.
type Collector struct {
	mu    sync.Mutex
	total *aggregate
	start time.Time
	// pending holds the windows not yet returned by Windows, oldest first.
	// The last entry is the open window.
	pending []*window
	first   int64
}

type window struct {
	agg        *aggregate
	start, end time.Time
}

func (w *window) closed() bool { return !w.end.IsZero() }

type aggregate struct {
	hist               *hdrhistogram.Histogram
	operations         int64
	succeeded          int64
	failed             int64
	attempts           int64
	retries            int64
	validationFailures int64
	rows               int64
	cycles             int64
	failedCycles       int64
	minLatency         time.Duration
	maxLatency         time.Duration
	sumLatency         time.Duration
	errorsByKind       map[string]int64
}

func newAggregate() *aggregate {
	return &aggregate{
		hist:         newLatencyHistogram(),
		errorsByKind: make(map[string]int64),
	}
}

func (a *aggregate) merge(s *Session) {
	a.operations += s.Operations
	a.succeeded += s.Succeeded
	a.failed += s.Failed
	a.attempts += s.Attempts
	a.retries += s.Retries
	a.validationFailures += s.ValidationFailures
	a.rows += s.Rows
	a.cycles += s.Cycles
	a.failedCycles += s.FailedCycles
	a.sumLatency += s.LatencySum
	if s.Operations > 0 {
		if a.minLatency == 0 || (s.MinLatency > 0 && s.MinLatency < a.minLatency) {
			a.minLatency = s.MinLatency
		}
		if s.MaxLatency > a.maxLatency {
			a.maxLatency = s.MaxLatency
		}
	}
	if s.hist != nil {
		a.hist.Merge(s.hist)
	}
	for k, v := range s.Errors {
		a.errorsByKind[k] += v
	}
}

// Stats represents aggregated metrics.
type Stats struct {
	Total              int64         `json:"total"`
	Successes          int64         `json:"successes"`
	Failures           int64         `json:"failures"`
	Attempts           int64         `json:"attempts"`
	Retries            int64         `json:"retries"`
	ValidationFailures int64         `json:"validation_failures"`
	Rows               int64         `json:"rows"`
	Cycles             int64         `json:"cycles"`
	FailedCycles       int64         `json:"failed_cycles"`
	MinLatency         time.Duration `json:"-"`
	MaxLatency         time.Duration `json:"-"`
	MeanLatency        time.Duration `json:"-"`
	P50Latency         time.Duration `json:"-"`
	P90Latency         time.Duration `json:"-"`
	P99Latency         time.Duration `json:"-"`
	Duration           time.Duration `json:"-"`
	RequestsPerSec     float64       `json:"requests_per_sec"`
	RowsPerSec         float64       `json:"rows_per_sec"`

	// JSON-friendly millisecond fields.
	MinLatencyMs  float64        `json:"min_latency_ms"`
	MaxLatencyMs  float64        `json:"max_latency_ms"`
	MeanLatencyMs float64        `json:"mean_latency_ms"`
	P50LatencyMs  float64        `json:"p50_latency_ms"`
	P90LatencyMs  float64        `json:"p90_latency_ms"`
	P99LatencyMs  float64        `json:"p99_latency_ms"`
	DurationMs    float64        `json:"duration_ms"`
	Errors        map[string]int `json:"errors,omitempty"`
}

func NewCollector() *Collector {
	c := &Collector{}
	c.reset(time.Now())
	return c
}

func (c *Collector) reset(now time.Time) {
	c.total = newAggregate()
	c.start = now
	c.pending = []*window{{agg: newAggregate(), start: now}}
	c.first = 0
}

// Start marks the beginning of the measured phase and drops anything
// merged before it. Window numbering restarts at 0.
func (c *Collector) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset(time.Now())
}

// Merge adds a harvested session to the total and to the open window.
func (c *Collector) Merge(s *Session) {
	if s == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.total.merge(s)
	c.pending[len(c.pending)-1].agg.merge(s)
}

// MergeWindow adds a session recorded during window epoch. Stats arriving
// for a window that was already returned by Windows go to the oldest
// pending window instead, so the reported windows always add up to the
// total.
func (c *Collector) MergeWindow(s *Session, epoch int64) {
	if s == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.total.merge(s)
	idx := epoch - c.first
	if idx < 0 {
		idx = 0
	}
	if last := int64(len(c.pending) - 1); idx > last {
		idx = last
	}
	c.pending[idx].agg.merge(s)
}

// Advance closes the open window and opens the next one, returning the
// new window's number.
func (c *Collector) Advance() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	c.pending[len(c.pending)-1].end = now
	c.pending = append(c.pending, &window{agg: newAggregate(), start: now})
	return c.first + int64(len(c.pending)) - 1
}

// Current returns the number of the open window.
func (c *Collector) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.first + int64(len(c.pending)) - 1
}

// Windows removes and returns the closed windows numbered below before,
// oldest first. Each window's rates are computed over its own bounds.
func (c *Collector) Windows(before int64) []Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Stats
	for len(c.pending) > 1 && c.first < before && c.pending[0].closed() {
		w := c.pending[0]
		out = append(out, w.agg.stats(w.end.Sub(w.start)))
		c.pending = c.pending[1:]
		c.first++
	}
	return out
}

// Stats computes statistics over everything merged since Start.
func (c *Collector) Stats(elapsed time.Duration) Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total.stats(elapsed)
}

// Elapsed returns the time since Start.
func (c *Collector) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Since(c.start)
}

func (a *aggregate) stats(elapsed time.Duration) Stats {
	total := a.succeeded + a.failed
	stats := Stats{
		Total:              total,
		Successes:          a.succeeded,
		Failures:           a.failed,
		Attempts:           a.attempts,
		Retries:            a.retries,
		ValidationFailures: a.validationFailures,
		Rows:               a.rows,
		Cycles:             a.cycles,
		FailedCycles:       a.failedCycles,
		MinLatency:         a.minLatency,
		MaxLatency:         a.maxLatency,
	}

	if total > 0 {
		stats.MeanLatency = time.Duration(int64(a.sumLatency) / total)
	}

	if a.hist.TotalCount() > 0 {
		stats.P50Latency = time.Duration(a.hist.ValueAtQuantile(50)) * time.Microsecond
		stats.P90Latency = time.Duration(a.hist.ValueAtQuantile(90)) * time.Microsecond
		stats.P99Latency = time.Duration(a.hist.ValueAtQuantile(99)) * time.Microsecond
	}

	stats.MinLatencyMs = toMillis(stats.MinLatency)
	stats.MaxLatencyMs = toMillis(stats.MaxLatency)
	stats.MeanLatencyMs = toMillis(stats.MeanLatency)
	stats.P50LatencyMs = toMillis(stats.P50Latency)
	stats.P90LatencyMs = toMillis(stats.P90Latency)
	stats.P99LatencyMs = toMillis(stats.P99Latency)

	stats.Duration = elapsed
	stats.DurationMs = toMillis(elapsed)
	if elapsed > 0 {
		stats.RequestsPerSec = float64(total) / elapsed.Seconds()
		stats.RowsPerSec = float64(a.rows) / elapsed.Seconds()
	}

	if len(a.errorsByKind) > 0 {
		stats.Errors = make(map[string]int, len(a.errorsByKind))
		for k, v := range a.errorsByKind {
			stats.Errors[k] = int(v)
		}
	}
	return stats
}

func toMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// ErrorCount is one row of an error breakdown.
type ErrorCount struct {
	Label string
	Count int
}

// SortedErrors flattens an error breakdown, by descending count then label.
func SortedErrors(errs map[string]int) []ErrorCount {
	if len(errs) == 0 {
		return nil
	}
	rows := make([]ErrorCount, 0, len(errs))
	for label, count := range errs {
		rows = append(rows, ErrorCount{Label: label, Count: count})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count == rows[j].Count {
			return rows[i].Label < rows[j].Label
		}
		return rows[i].Count > rows[j].Count
	})
	return rows
}
