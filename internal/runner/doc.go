// Package runner drives workload workers for crankdb.
//
// The runner orchestrates concurrent cycle execution with support for:
//   - Configurable concurrency levels
//   - Rate limiting (cycles per second)
//   - Duration-based and count-based termination
//   - Multiple arrival models (uniform, Poisson)
//   - Sampling windows for progress reporting
//
// # Basic Usage
//
// Create a runner with options and a worker factory:
//
//	opts := runner.Options{
//		Concurrency:   10,
//		Cycles:        1000,
//		Duration:      time.Minute,
//		RatePerSecond: 100,
//		Workers:       newWorker,
//	}
//	r := runner.New(opts)
//	result, err := r.Run(ctx)
//
// # Workers
//
// Each [Worker] owns one execution context and is driven by a single
// goroutine. A central scheduler hands out cycle numbers, starting at
// StartCycle, so every cycle runs exactly once across all workers.
//
// # Statistics
//
// Workers keep unsynchronized statistics. When the sampling window advances,
// each worker harvests its statistics at its next cycle boundary and merges
// them into the shared [metrics.Collector], tagged with the window they were
// recorded in; it merges once more on exit. A window is reported one
// interval after it closes, and whatever is left is reported after the last
// worker exits, so the reported windows add up to the run's total.
//
// # Rate Limiting & Arrival Models
//
//   - [ArrivalModelUniform]: Cycles start at fixed intervals
//   - [ArrivalModelPoisson]: Exponential inter-arrival times
package runner
