package output

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/torosent/crankdb/internal/metrics"
)

const headerEvery = 20

// ProgressReporter prints one row per sample window.
type ProgressReporter struct {
	mu     sync.Mutex
	writer io.Writer
	start  time.Time
	rows   int
}

// NewProgressReporter creates a reporter whose rows are timed from now.
func NewProgressReporter(writer io.Writer) *ProgressReporter {
	if writer == nil {
		writer = io.Discard
	}
	return &ProgressReporter{writer: writer, start: time.Now()}
}

// Report writes a row for one sample window. It is safe to call from the
// runner's sampling goroutine.
func (p *ProgressReporter) Report(window metrics.Stats) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rows%headerEvery == 0 {
		fmt.Fprintf(p.writer, "%8s %10s %10s %8s %8s %10s %9s %9s %9s\n",
			"Time", "Cycles", "Ops", "Errors", "Retries", "Ops/s", "P50 ms", "P99 ms", "Max ms")
	}
	p.rows++
	fmt.Fprintf(p.writer, "%8.1f %10d %10d %8d %8d %10.1f %9.2f %9.2f %9.2f\n",
		time.Since(p.start).Seconds(),
		window.Cycles,
		window.Total,
		window.Failures,
		window.Retries,
		window.RequestsPerSec,
		window.P50LatencyMs,
		window.P99LatencyMs,
		window.MaxLatencyMs,
	)
}
