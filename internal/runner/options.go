package runner

import (
	"context"
	"math"
	"time"

	"golang.org/x/time/rate"

	"github.com/torosent/crankdb/internal/metrics"
)

// Worker executes workload iterations on its own execution context. A
// Worker is used by exactly one goroutine.
type Worker interface {
	// Cycle runs one iteration identified by cycle.
	Cycle(ctx context.Context, cycle int64) error
	// Harvest hands over the statistics gathered since the previous call.
	Harvest() *metrics.Session
	// Reset clears statistics and timers. It is called once every worker
	// is built, right before the first cycle is released.
	Reset()
	Close() error
}

// WorkerFactory builds the worker with the given index.
type WorkerFactory func(id int) (Worker, error)

// ArrivalModel selects how cycle starts are spaced when a rate is set.
type ArrivalModel string

const (
	ArrivalModelUniform ArrivalModel = "uniform"
	ArrivalModelPoisson ArrivalModel = "poisson"
)

// Options configure the Runner.
type Options struct {
	Concurrency    int           // number of workers
	Cycles         int64         // cycles to execute (0 means unlimited until duration/end)
	StartCycle     int64         // number of the first cycle
	Duration       time.Duration // overall time limit (0 means no duration cap)
	RatePerSecond  float64       // cycle starts per second (0 means unlimited)
	ArrivalModel   ArrivalModel
	RandomSeed     int64
	PoissonSampler func() float64                  // optional injection for tests
	LimiterFactory func(rps float64) *rate.Limiter // optional injection for tests

	// Sampling is the length of a statistics window. Workers hand their
	// statistics to Collector when the window changes and when they exit.
	// OnSample receives each window once all its statistics are in, one
	// interval after it closes; the remaining windows are reported when
	// the run ends.
	Sampling  time.Duration
	Collector *metrics.Collector
	OnSample  func(metrics.Stats)

	Workers WorkerFactory // required
}

func (o *Options) normalize() {
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
	if o.Cycles < 0 {
		o.Cycles = 0
	}
	if o.RatePerSecond < 0 || math.IsNaN(o.RatePerSecond) {
		o.RatePerSecond = 0
	}
	if o.ArrivalModel == "" {
		o.ArrivalModel = ArrivalModelUniform
	}
	if o.RandomSeed == 0 {
		o.RandomSeed = time.Now().UnixNano()
	}
	if o.Collector == nil {
		o.Collector = metrics.NewCollector()
	}
	if o.LimiterFactory == nil {
		o.LimiterFactory = func(rps float64) *rate.Limiter {
			if rps <= 0 {
				return rate.NewLimiter(rate.Inf, 0)
			}
			// Burst of one second's worth smooths pacing under concurrency.
			return rate.NewLimiter(rate.Limit(rps), int(math.Ceil(rps)))
		}
	}
}
