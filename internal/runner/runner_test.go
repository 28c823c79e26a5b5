package runner_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/torosent/crankdb/internal/metrics"
	"github.com/torosent/crankdb/internal/runner"
)

// fakeWorker simulates a workload iteration with fixed latency.
type fakeWorker struct {
	latency time.Duration
	calls   *int64
	failOdd bool
	closed  *int64
	cycles  *cycleLog
	session *metrics.Session
	// resets counts Reset calls; early counts cycles run before one.
	resets *int64
	early  *int64
	reset  bool
}

type cycleLog struct {
	mu     sync.Mutex
	cycles []int64
}

func (l *cycleLog) add(c int64) {
	l.mu.Lock()
	l.cycles = append(l.cycles, c)
	l.mu.Unlock()
}

func (f *fakeWorker) Cycle(ctx context.Context, cycle int64) error {
	if f.calls != nil {
		atomic.AddInt64(f.calls, 1)
	}
	if f.cycles != nil {
		f.cycles.add(cycle)
	}
	if !f.reset && f.early != nil {
		atomic.AddInt64(f.early, 1)
	}
	var err error
	select {
	case <-time.After(f.latency):
		if f.failOdd && cycle%2 == 1 {
			err = errors.New("odd cycle")
		}
	case <-ctx.Done():
		err = ctx.Err()
	}
	f.session.RecordAttempt(false)
	f.session.RecordOperation(f.latency, 0, err)
	f.session.RecordCycle(err)
	return err
}

func (f *fakeWorker) Harvest() *metrics.Session { return f.session.Harvest() }

func (f *fakeWorker) Reset() {
	f.reset = true
	if f.resets != nil {
		atomic.AddInt64(f.resets, 1)
	}
}

func (f *fakeWorker) Close() error {
	if f.closed != nil {
		atomic.AddInt64(f.closed, 1)
	}
	return nil
}

func factory(template fakeWorker) runner.WorkerFactory {
	return func(int) (runner.Worker, error) {
		w := template
		w.session = metrics.NewSession()
		return &w, nil
	}
}

// TestRunnerRespectsCycles ensures the cycle limit stops execution and each
// cycle number is handed out exactly once.
func TestRunnerRespectsCycles(t *testing.T) {
	var calls, closed int64
	log := &cycleLog{}
	collector := metrics.NewCollector()
	r := runner.New(runner.Options{
		Concurrency: 4,
		Cycles:      25,
		StartCycle:  100,
		Collector:   collector,
		Workers:     factory(fakeWorker{latency: time.Millisecond, calls: &calls, closed: &closed, cycles: log}),
	})
	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Cycles != 25 || calls != 25 {
		t.Fatalf("expected 25 cycles, got result %d and %d calls", res.Cycles, calls)
	}
	if closed != 4 {
		t.Fatalf("expected 4 workers closed, got %d", closed)
	}

	sort.Slice(log.cycles, func(i, j int) bool { return log.cycles[i] < log.cycles[j] })
	for i, c := range log.cycles {
		if c != int64(100+i) {
			t.Fatalf("cycle numbers not contiguous: %v", log.cycles)
		}
	}
	if got := collector.Stats(res.Duration).Cycles; got != 25 {
		t.Fatalf("collector saw %d cycles, want 25", got)
	}
}

// TestRunnerHonorsDuration ensures duration cap stops even if cycles are unlimited.
func TestRunnerHonorsDuration(t *testing.T) {
	var calls int64
	r := runner.New(runner.Options{
		Concurrency: 10,
		Duration:    50 * time.Millisecond,
		Workers:     factory(fakeWorker{latency: 5 * time.Millisecond, calls: &calls}),
	})
	start := time.Now()
	res, err := r.Run(context.Background())
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if elapsed < 50*time.Millisecond || elapsed > 250*time.Millisecond {
		t.Fatalf("duration enforcement off: %s", elapsed)
	}
	if res.Duration <= 0 {
		t.Fatalf("result duration not recorded")
	}
	if res.Cycles <= 0 {
		t.Fatalf("expected some cycles executed")
	}
}

// TestRateLimiterCapsThroughput ensures rate limiter restricts cycles per second.
func TestRateLimiterCapsThroughput(t *testing.T) {
	var calls int64
	rateLimit := 100.0
	duration := 100 * time.Millisecond
	r := runner.New(runner.Options{
		Concurrency:    20,
		Duration:       duration,
		RatePerSecond:  rateLimit,
		Workers:        factory(fakeWorker{calls: &calls}),
		LimiterFactory: func(rps float64) *rate.Limiter { return rate.NewLimiter(rate.Limit(rps), 1) },
	})
	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	maxExpected := int64(rateLimit * duration.Seconds() * 1.20)
	if res.Cycles > maxExpected {
		t.Fatalf("rate limiter exceeded: total=%d max=%d", res.Cycles, maxExpected)
	}
	if calls != res.Cycles {
		t.Fatalf("calls mismatch: %d vs %d", calls, res.Cycles)
	}
}

func TestRunnerCountsFailedCycles(t *testing.T) {
	collector := metrics.NewCollector()
	r := runner.New(runner.Options{
		Concurrency: 3,
		Cycles:      10,
		Collector:   collector,
		Workers:     factory(fakeWorker{failOdd: true}),
	})
	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Errors != 5 {
		t.Fatalf("expected 5 failed cycles, got %d", res.Errors)
	}
	stats := collector.Stats(res.Duration)
	if stats.FailedCycles != 5 || stats.Failures != 5 || stats.Successes != 5 {
		t.Fatalf("unexpected collector stats %+v", stats)
	}
}

func TestRunnerSamplesWindows(t *testing.T) {
	var mu sync.Mutex
	var windows []metrics.Stats
	collector := metrics.NewCollector()
	r := runner.New(runner.Options{
		Concurrency: 2,
		Duration:    120 * time.Millisecond,
		Sampling:    20 * time.Millisecond,
		Collector:   collector,
		OnSample: func(s metrics.Stats) {
			mu.Lock()
			windows = append(windows, s)
			mu.Unlock()
		},
		Workers: factory(fakeWorker{latency: time.Millisecond}),
	})
	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(windows) < 2 {
		t.Fatalf("expected several sample windows, got %d", len(windows))
	}
	var sampled int64
	for _, w := range windows {
		sampled += w.Cycles
	}
	total := collector.Stats(res.Duration).Cycles
	if total != res.Cycles {
		t.Fatalf("collector total %d != executed %d", total, res.Cycles)
	}
	if sampled != total {
		t.Fatalf("windows add up to %d cycles, collector total is %d", sampled, total)
	}
}

func TestRunnerFirstWindowHoldsItsCycles(t *testing.T) {
	var windows []metrics.Stats
	collector := metrics.NewCollector()
	r := runner.New(runner.Options{
		Concurrency: 1,
		Duration:    220 * time.Millisecond,
		Sampling:    100 * time.Millisecond,
		Collector:   collector,
		// OnSample runs on the sampler, then on Run's goroutine once the
		// sampler has exited, never concurrently.
		OnSample: func(s metrics.Stats) { windows = append(windows, s) },
		Workers:  factory(fakeWorker{latency: time.Millisecond}),
	})
	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(windows) < 2 {
		t.Fatalf("expected at least 2 windows, got %d", len(windows))
	}
	first := windows[0]
	// Window 0 spans about 100 of the 220ms, so it must carry a fair share
	// of the executed cycles rather than nothing.
	if first.Cycles == 0 || first.Cycles*5 < res.Cycles {
		t.Fatalf("window 0 holds %d of %d cycles", first.Cycles, res.Cycles)
	}
	if first.Duration < 50*time.Millisecond || first.Duration > 200*time.Millisecond {
		t.Fatalf("window 0 lasted %s, want about 100ms", first.Duration)
	}
	if want := float64(first.Total) / first.Duration.Seconds(); first.RequestsPerSec != want {
		t.Fatalf("window 0 rate %f, want %f", first.RequestsPerSec, want)
	}

	var sampled int64
	for _, w := range windows {
		sampled += w.Cycles
	}
	if sampled != res.Cycles {
		t.Fatalf("windows add up to %d cycles, executed %d", sampled, res.Cycles)
	}
}

func TestRunnerResetsWorkersBeforeFirstCycle(t *testing.T) {
	var resets, early int64
	r := runner.New(runner.Options{
		Concurrency: 4,
		Cycles:      40,
		Workers:     factory(fakeWorker{resets: &resets, early: &early}),
	})
	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Cycles != 40 {
		t.Fatalf("expected 40 cycles, got %d", res.Cycles)
	}
	if resets != 4 {
		t.Fatalf("expected every worker reset once, got %d resets", resets)
	}
	if early != 0 {
		t.Fatalf("%d cycles ran before their worker was reset", early)
	}
}

func TestRunnerWorkerSetupFailure(t *testing.T) {
	var closed int64
	r := runner.New(runner.Options{
		Concurrency: 4,
		Cycles:      1,
		Workers: func(id int) (runner.Worker, error) {
			if id == 2 {
				return nil, errors.New("no connection")
			}
			return &fakeWorker{closed: &closed, session: metrics.NewSession()}, nil
		},
	})
	if _, err := r.Run(context.Background()); err == nil {
		t.Fatal("expected setup error")
	}
	if closed != 3 {
		t.Fatalf("expected the 3 built workers to be closed, got %d", closed)
	}
}
