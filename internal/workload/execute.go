package workload

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/torosent/crankdb/internal/backend"
	"github.com/torosent/crankdb/internal/dberr"
	"github.com/torosent/crankdb/internal/tracing"
	"github.com/torosent/crankdb/internal/value"
)

type attemptFunc func(ctx context.Context) (backend.Result, error)

// run executes one logical operation: every attempt is counted, latency is
// recorded once across all attempts, and bounds are checked only against
// the final successful attempt.
func (c *Context) run(ctx context.Context, op, statement string, bounds *Bounds, attempt attemptFunc) (backend.Result, error) {
	ctx, span := tracing.StartOperationSpan(ctx, c.opts.Tracer, c.handle.Name(), op, statement)
	start := time.Now()

	var res backend.Result
	attempts, err := c.policy.Do(ctx, func(ctx context.Context, n int) error {
		c.stats.RecordAttempt(n > 1)
		r, err := attempt(ctx)
		if err != nil {
			return err
		}
		res = r
		return nil
	})
	if err == nil && bounds != nil {
		if verr := bounds.Check(res.RowCount); verr != nil {
			c.stats.RecordValidationFailure()
			if c.opts.ValidationStrategy == ValidationFail {
				err = verr
			} else {
				c.log.Debugw("row count mismatch ignored", "operation", op, "error", verr)
			}
		}
	}
	c.stats.RecordOperation(time.Since(start), res.RowCount, err)

	tracing.EndSpan(span, err,
		attribute.Int("db.attempts", attempts),
		attribute.Int("db.response.returned_rows", res.RowCount),
	)
	if err != nil {
		c.log.Debugw("operation failed", "operation", op, "attempts", attempts, "error", err)
		return backend.Result{}, err
	}
	return res, nil
}

// Execute runs an ad-hoc statement.
func (c *Context) Execute(ctx context.Context, query string) error {
	_, err := c.execute(ctx, "execute", query, nil, backend.CountRows)
	return err
}

// ExecuteWithResult runs an ad-hoc statement and returns its rows as a list
// of maps.
func (c *Context) ExecuteWithResult(ctx context.Context, query string) (value.Value, error) {
	res, err := c.execute(ctx, "execute_with_result", query, nil, backend.FetchRows)
	if err != nil {
		return value.Null, err
	}
	return value.List(res.Rows...), nil
}

// ExecuteWithValidation runs an ad-hoc statement and checks its row count
// against args. Malformed args fail before the backend is called.
func (c *Context) ExecuteWithValidation(ctx context.Context, query string, args []value.Value) error {
	bounds, err := ParseBounds(args)
	if err != nil {
		return err
	}
	_, err = c.execute(ctx, "execute_with_validation", query, &bounds, backend.CountRows)
	return err
}

func (c *Context) execute(ctx context.Context, op, query string, bounds *Bounds, fetch backend.Fetch) (backend.Result, error) {
	return c.run(ctx, op, query, bounds, func(ctx context.Context) (backend.Result, error) {
		return c.handle.Execute(ctx, query, value.Null, fetch)
	})
}

// Prepare registers query under key, replacing any previous statement.
func (c *Context) Prepare(ctx context.Context, key, query string) error {
	stmt, err := c.handle.Prepare(ctx, query)
	if err != nil {
		return err
	}
	c.prepared[key] = stmt
	return nil
}

func (c *Context) lookup(key string) (backend.Prepared, error) {
	stmt, ok := c.prepared[key]
	if !ok {
		return backend.Prepared{}, dberr.Lookup("prepared statement %q not found", key)
	}
	return stmt, nil
}

// ExecutePrepared runs the statement registered under key with params.
func (c *Context) ExecutePrepared(ctx context.Context, key string, params value.Value) error {
	_, err := c.executePrepared(ctx, "execute_prepared", key, params, nil, backend.CountRows)
	return err
}

// ExecutePreparedWithResult runs a prepared statement and returns its rows.
func (c *Context) ExecutePreparedWithResult(ctx context.Context, key string, params value.Value) (value.Value, error) {
	res, err := c.executePrepared(ctx, "execute_prepared_with_result", key, params, nil, backend.FetchRows)
	if err != nil {
		return value.Null, err
	}
	return value.List(res.Rows...), nil
}

// ExecutePreparedWithValidation runs a prepared statement and checks its row
// count against args.
func (c *Context) ExecutePreparedWithValidation(ctx context.Context, key string, params value.Value, args []value.Value) error {
	bounds, err := ParseBounds(args)
	if err != nil {
		return err
	}
	_, err = c.executePrepared(ctx, "execute_prepared_with_validation", key, params, &bounds, backend.CountRows)
	return err
}

func (c *Context) executePrepared(ctx context.Context, op, key string, params value.Value, bounds *Bounds, fetch backend.Fetch) (backend.Result, error) {
	stmt, err := c.lookup(key)
	if err != nil {
		return backend.Result{}, err
	}
	return c.run(ctx, op, stmt.Query, bounds, func(ctx context.Context) (backend.Result, error) {
		return c.handle.ExecutePrepared(ctx, stmt, params, fetch)
	})
}

// BatchPrepared executes the prepared statements named by keys as one batch,
// binding params[i] to keys[i]. The batch is retried and counted as a single
// operation.
func (c *Context) BatchPrepared(ctx context.Context, keys []string, params []value.Value) error {
	if len(keys) != len(params) {
		return dberr.Argument("batch has %d statements but %d parameter sets", len(keys), len(params))
	}
	stmts := make([]backend.Prepared, len(keys))
	for i, key := range keys {
		stmt, err := c.lookup(key)
		if err != nil {
			return err
		}
		stmts[i] = stmt
	}
	_, err := c.run(ctx, "batch_prepared", "", nil, func(ctx context.Context) (backend.Result, error) {
		return backend.Result{}, c.handle.BatchPrepared(ctx, stmts, params)
	})
	return err
}
