package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/torosent/crankdb/internal/metrics"
)

// Result captures execution summary.
type Result struct {
	Cycles   int64
	Errors   int64
	Duration time.Duration
}

// Runner coordinates concurrent workers with rate limiting.
type Runner struct {
	opt     Options
	arrival arrivalController
	epoch   atomic.Int64
}

func New(opt Options) *Runner {
	opt.normalize()
	return &Runner{opt: opt, arrival: newArrivalController(opt)}
}

// Run builds the workers, drives them until the cycle count or duration is
// reached or ctx is cancelled, and closes them. Statistics are merged into
// the configured collector.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	if r.opt.Workers == nil {
		return Result{}, errors.New("runner: no worker factory")
	}
	workers, err := r.startWorkers()
	if err != nil {
		return Result{}, err
	}
	for _, w := range workers {
		w.Reset()
	}
	r.epoch.Store(r.opt.Collector.Current())

	start := time.Now()
	var total, executed, errs int64

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if r.opt.Duration > 0 {
		deadlineCtx, deadlineCancel := context.WithTimeout(ctx, r.opt.Duration)
		ctx = deadlineCtx
		defer deadlineCancel()
	}

	samplerDone := make(chan struct{})
	if r.opt.Sampling > 0 {
		go r.runSampler(ctx, samplerDone)
	} else {
		close(samplerDone)
	}

	permits := make(chan int64, r.opt.Concurrency)

	// Scheduler: serializes rate limiting to avoid burst overshoot across workers.
	go func() {
		defer close(permits)
		for {
			if ctx.Err() != nil {
				return
			}
			current := atomic.LoadInt64(&total)
			if r.opt.Cycles > 0 && current >= r.opt.Cycles {
				return
			}
			if err := r.arrival.Wait(ctx); err != nil {
				return
			}
			// Increment total before releasing permit so workers only execute allocated slots.
			atomic.AddInt64(&total, 1)
			select {
			case permits <- r.opt.StartCycle + current:
			case <-ctx.Done():
				atomic.AddInt64(&total, -1)
				return
			}
		}
	}()

	var wg sync.WaitGroup
	wg.Add(len(workers))
	for _, w := range workers {
		go func(w Worker) {
			defer wg.Done()
			epoch := r.epoch.Load()
			// handOver files what the worker recorded under the window it
			// ran in before moving on to the current one.
			handOver := func() {
				if current := r.epoch.Load(); current != epoch {
					r.opt.Collector.MergeWindow(w.Harvest(), epoch)
					epoch = current
				}
			}
			for cycle := range permits {
				handOver()
				if err := w.Cycle(ctx, cycle); err != nil {
					atomic.AddInt64(&errs, 1)
				}
				atomic.AddInt64(&executed, 1)
				handOver()
				if ctx.Err() != nil {
					break
				}
			}
			r.opt.Collector.MergeWindow(w.Harvest(), epoch)
		}(w)
	}
	wg.Wait()
	cancel()
	<-samplerDone
	if r.opt.Sampling > 0 {
		r.report(r.opt.Collector.Windows(r.opt.Collector.Advance()))
	}

	var closeErr error
	for _, w := range workers {
		if err := w.Close(); err != nil && closeErr == nil {
			closeErr = err
		}
	}

	return Result{
		Cycles:   atomic.LoadInt64(&executed),
		Errors:   atomic.LoadInt64(&errs),
		Duration: time.Since(start),
	}, closeErr
}

// startWorkers builds every worker concurrently. On failure the workers
// already built are closed.
func (r *Runner) startWorkers() ([]Worker, error) {
	workers := make([]Worker, r.opt.Concurrency)
	var g errgroup.Group
	for i := range workers {
		i := i
		g.Go(func() error {
			w, err := r.opt.Workers(i)
			if err != nil {
				return fmt.Errorf("worker %d: %w", i, err)
			}
			workers[i] = w
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, w := range workers {
			if w != nil {
				_ = w.Close()
			}
		}
		return nil, err
	}
	return workers, nil
}

// runSampler advances the statistics window every Sampling interval. The
// window closed one tick earlier is reported, since workers hand over their
// share of a window at their first cycle boundary after it closes.
func (r *Runner) runSampler(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(r.opt.Sampling)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			next := r.opt.Collector.Advance()
			r.epoch.Store(next)
			r.report(r.opt.Collector.Windows(next - 1))
		}
	}
}

func (r *Runner) report(windows []metrics.Stats) {
	if r.opt.OnSample == nil {
		return
	}
	for _, w := range windows {
		r.opt.OnSample(w)
	}
}
