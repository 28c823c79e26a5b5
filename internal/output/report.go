package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/torosent/crankdb/internal/metrics"
	"github.com/torosent/crankdb/internal/threshold"
)

// Summary describes the run a report belongs to.
type Summary struct {
	RunID    string `json:"run_id"`
	Backend  string `json:"backend"`
	Cluster  string `json:"cluster,omitempty"`
	Version  string `json:"version,omitempty"`
	Workload string `json:"workload"`
}

// PrintReport outputs a human-readable summary report.
func PrintReport(w io.Writer, s Summary, stats metrics.Stats) {
	fmt.Fprintln(w, "\n--- Load Test Results ---")
	if s.RunID != "" {
		fmt.Fprintf(w, "Run:               %s\n", s.RunID)
	}
	fmt.Fprintf(w, "Workload:          %s\n", s.Workload)
	fmt.Fprintf(w, "Backend:           %s", s.Backend)
	if s.Cluster != "" || s.Version != "" {
		fmt.Fprintf(w, " (%s %s)", s.Cluster, s.Version)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Cycles:            %d (%d failed)\n", stats.Cycles, stats.FailedCycles)
	fmt.Fprintf(w, "Operations:        %d\n", stats.Total)
	fmt.Fprintf(w, "Successful:        %d\n", stats.Successes)
	fmt.Fprintf(w, "Failed:            %d\n", stats.Failures)
	fmt.Fprintf(w, "Attempts:          %d (%d retries)\n", stats.Attempts, stats.Retries)
	fmt.Fprintf(w, "Rows:              %d\n", stats.Rows)
	if stats.ValidationFailures > 0 {
		fmt.Fprintf(w, "Validation Errors: %d\n", stats.ValidationFailures)
	}
	fmt.Fprintf(w, "Duration:          %s\n", stats.Duration)
	fmt.Fprintf(w, "Operations/sec:    %.2f\n", stats.RequestsPerSec)
	fmt.Fprintf(w, "Rows/sec:          %.2f\n", stats.RowsPerSec)
	fmt.Fprintln(w, "\nLatency:")
	fmt.Fprintf(w, "  Min:             %s\n", stats.MinLatency)
	fmt.Fprintf(w, "  Max:             %s\n", stats.MaxLatency)
	fmt.Fprintf(w, "  Mean:            %s\n", stats.MeanLatency)
	fmt.Fprintf(w, "  P50:             %s\n", stats.P50Latency)
	fmt.Fprintf(w, "  P90:             %s\n", stats.P90Latency)
	fmt.Fprintf(w, "  P99:             %s\n", stats.P99Latency)

	if rows := metrics.SortedErrors(stats.Errors); len(rows) > 0 {
		fmt.Fprintln(w, "\nErrors:")
		for _, row := range rows {
			fmt.Fprintf(w, "  %s: %d\n", row.Label, row.Count)
		}
	}
}

// PrintThresholds lists threshold outcomes.
func PrintThresholds(w io.Writer, results []threshold.Result) {
	if len(results) == 0 {
		return
	}
	fmt.Fprintf(w, "\nThresholds (%d/%d passed):\n", len(results)-threshold.Failed(results), len(results))
	for _, r := range results {
		fmt.Fprintf(w, "  %s\n", r.Message)
	}
}

// ThresholdResultJSON is the JSON form of a threshold outcome.
type ThresholdResultJSON struct {
	Threshold string  `json:"threshold"`
	Actual    float64 `json:"actual"`
	Pass      bool    `json:"pass"`
}

type jsonReport struct {
	Summary
	metrics.Stats
	Thresholds []ThresholdResultJSON `json:"thresholds,omitempty"`
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, s Summary, stats metrics.Stats, results []threshold.Result) error {
	report := jsonReport{Summary: s, Stats: stats}
	for _, r := range results {
		report.Thresholds = append(report.Thresholds, ThresholdResultJSON{
			Threshold: r.Threshold.Raw,
			Actual:    r.Actual,
			Pass:      r.Pass,
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
