package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/torosent/crankdb/internal/metrics"
)

func TestProgressReporterRows(t *testing.T) {
	var buf bytes.Buffer
	reporter := NewProgressReporter(&buf)

	for i := 0; i < headerEvery+1; i++ {
		reporter.Report(metrics.Stats{Cycles: 10, Total: 20, RequestsPerSec: 200})
	}

	output := buf.String()
	if got := strings.Count(output, "Ops/s"); got != 2 {
		t.Errorf("expected header twice, got %d", got)
	}
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) != headerEvery+1+2 {
		t.Errorf("expected %d lines, got %d", headerEvery+3, len(lines))
	}
	if !strings.Contains(lines[1], "200.0") {
		t.Errorf("expected throughput in row, got %q", lines[1])
	}
}

func TestProgressReporterNilWriter(t *testing.T) {
	NewProgressReporter(nil).Report(metrics.Stats{})
}
