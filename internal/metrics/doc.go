// Package metrics provides latency and throughput statistics for load runs.
//
// # Session
//
// Each execution context owns a [Session]. Sessions are deliberately not
// synchronized: the owning worker records into it and hands its contents
// over with [Session.Harvest], which swaps in a zeroed session.
//
//	s := metrics.NewSession()
//	s.RecordAttempt(false)
//	s.RecordOperation(latency, rows, err)
//	snapshot := s.Harvest()
//
// # Collector
//
// The [Collector] aggregates harvested sessions from every worker and is
// safe for concurrent use. It keeps a running total and numbered sample
// windows. Sessions are filed under the window they were recorded in:
//
//	collector.MergeWindow(snapshot, epoch)
//	next := collector.Advance()          // close the open window
//	windows := collector.Windows(next)   // closed windows, oldest first
//	total := collector.Stats(elapsed)
//
// Latency percentiles come from HDR histograms tracking 1µs to 60s with
// three significant figures.
//
// # Prometheus
//
// [Exporter] publishes sample windows as Prometheus counters and gauges on
// a dedicated registry.
package metrics
