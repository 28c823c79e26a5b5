package plan

import (
	"context"
	"errors"

	"github.com/torosent/crankdb/internal/metrics"
	"github.com/torosent/crankdb/internal/value"
	"github.com/torosent/crankdb/internal/workload"
)

func (s step) exec(ctx context.Context, c *workload.Context, cycle int64) error {
	e := &env{c: c, cycle: cycle}
	args := make([]value.Value, len(s.args))
	for i, x := range s.args {
		v, err := x.eval(e)
		if err != nil {
			return err
		}
		args[i] = v
	}
	result, err := c.Call(ctx, s.op, args)
	if err != nil {
		return err
	}
	if s.as != "" {
		c.SetData(s.as, result)
	}
	return nil
}

// Worker runs the steps of one phase on a single execution context.
type Worker struct {
	ctx   *workload.Context
	steps []step
}

// Cycle runs every step once for cycle, stopping at the first error. The
// iteration is counted unless ctx was cancelled underneath it.
func (w *Worker) Cycle(ctx context.Context, cycle int64) error {
	var err error
	for _, s := range w.steps {
		if err = s.exec(ctx, w.ctx, cycle); err != nil {
			break
		}
	}
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return err
	}
	w.ctx.RecordCycle(err)
	return err
}

// Harvest hands over the statistics gathered since the previous call.
func (w *Worker) Harvest() *metrics.Session { return w.ctx.HarvestStats() }

// Reset drops the statistics gathered so far and restarts the context's
// elapsed timer.
func (w *Worker) Reset() { w.ctx.Reset() }

// Close releases the worker's execution context.
func (w *Worker) Close() error { return w.ctx.Close() }

// Context returns the execution context the worker drives.
func (w *Worker) Context() *workload.Context { return w.ctx }
