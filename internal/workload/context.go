// Package workload implements the per-worker execution context through which
// workload operations reach the database.
//
// A coordinator builds one template Context after connecting, then calls
// CloneForWorker once per concurrent worker. Each Context is owned by
// exactly one goroutine; none of its methods are safe for concurrent use.
// The backend handle is the only state shared between clones.
package workload

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/torosent/crankdb/internal/backend"
	"github.com/torosent/crankdb/internal/dberr"
	"github.com/torosent/crankdb/internal/logging"
	"github.com/torosent/crankdb/internal/metrics"
	"github.com/torosent/crankdb/internal/partition"
	"github.com/torosent/crankdb/internal/retry"
	"github.com/torosent/crankdb/internal/tracing"
	"github.com/torosent/crankdb/internal/value"
)

// Options configures a template Context.
type Options struct {
	RetryNumber        int
	RetryInterval      retry.Interval
	ValidationStrategy ValidationStrategy
	Tracer             trace.Tracer
	Logger             *zap.SugaredLogger
}

// Context is the execution context of one worker.
type Context struct {
	handle *backend.Handle
	opts   Options
	policy *retry.Policy
	log    *zap.SugaredLogger

	data           value.Value
	stats          *metrics.Session
	start          time.Time
	loadCycleCount int64
	presets        partition.Table
	prepared       map[string]backend.Prepared
}

// New creates a template context. It takes over the caller's reference to
// handle; Close releases it.
func New(handle *backend.Handle, opts Options) *Context {
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.Tracer == nil {
		opts.Tracer = tracing.Noop()
	}
	c := &Context{
		handle:   handle,
		opts:     opts,
		log:      opts.Logger,
		data:     value.Map(nil),
		stats:    metrics.NewSession(),
		start:    time.Now(),
		presets:  make(partition.Table),
		prepared: make(map[string]backend.Prepared),
	}
	c.policy = c.newPolicy()
	return c
}

func (c *Context) newPolicy() *retry.Policy {
	return &retry.Policy{
		RetryNumber: c.opts.RetryNumber,
		Interval:    c.opts.RetryInterval,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			c.log.Debugw("retrying operation", "attempt", attempt, "delay", delay, "error", err)
		},
	}
}

// CloneForWorker returns an independent context sharing only the backend
// handle. The data bag is deep-copied; a data bag holding an opaque value
// fails with SerializationError and no reference is taken.
func (c *Context) CloneForWorker() (*Context, error) {
	data, err := c.data.Clone()
	if err != nil {
		var uncloneable *value.UncloneableError
		if errors.As(err, &uncloneable) {
			return nil, dberr.Wrap(dberr.KindSerialization, err, "cannot copy data bag")
		}
		return nil, err
	}
	handle, err := c.handle.Acquire()
	if err != nil {
		return nil, err
	}

	prepared := make(map[string]backend.Prepared, len(c.prepared))
	for k, v := range c.prepared {
		prepared[k] = v
	}
	clone := &Context{
		handle:         handle,
		opts:           c.opts,
		log:            c.log,
		data:           data,
		stats:          metrics.NewSession(),
		start:          time.Now(),
		loadCycleCount: c.loadCycleCount,
		presets:        c.presets.Clone(),
		prepared:       prepared,
	}
	clone.policy = clone.newPolicy()
	return clone, nil
}

// Reset zeroes the statistics and restarts the elapsed timer.
func (c *Context) Reset() {
	c.stats.Reset()
	c.start = time.Now()
}

// HarvestStats returns the statistics gathered since the previous harvest
// and starts a new zeroed session. No operation may be in flight.
func (c *Context) HarvestStats() *metrics.Session {
	return c.stats.Harvest()
}

// ElapsedSecs returns the seconds since creation or the last Reset.
func (c *Context) ElapsedSecs() float64 {
	return time.Since(c.start).Seconds()
}

// ClusterInfo describes the target cluster. Failures are logged and reported
// as an unavailable descriptor.
func (c *Context) ClusterInfo(ctx context.Context) backend.ClusterInfo {
	info, err := c.handle.ClusterInfo(ctx)
	if err != nil {
		c.log.Warnw("cluster info unavailable", "backend", c.handle.Name(), "error", err)
		return backend.UnavailableClusterInfo()
	}
	return info
}

// Datacenters lists the datacenters of the cluster.
func (c *Context) Datacenters(ctx context.Context) ([]string, error) {
	return c.handle.Datacenters(ctx)
}

// BackendName names the backend behind the context.
func (c *Context) BackendName() string { return c.handle.Name() }

// Data returns the data bag. It is a map value mutated in place.
func (c *Context) Data() value.Value { return c.data }

// SetData stores v under key in the data bag.
func (c *Context) SetData(key string, v value.Value) {
	c.data.Set(key, v)
}

func (c *Context) LoadCycleCount() int64 { return c.loadCycleCount }

func (c *Context) SetLoadCycleCount(n int64) { c.loadCycleCount = n }

// SignalFailure returns a CustomError carrying message.
func (c *Context) SignalFailure(message string) error {
	return dberr.Custom(message)
}

// InitPartitionRowDistributionPreset compiles a preset and stores it under
// name, replacing any preset of the same name.
func (c *Context) InitPartitionRowDistributionPreset(name string, totalRows, baseRows uint64, groups string) error {
	return c.presets.Init(name, totalRows, baseRows, groups)
}

// GetPartitionInfo locates the partition holding row ordinal of a preset.
func (c *Context) GetPartitionInfo(name string, ordinal uint64) (partition.Partition, error) {
	return c.presets.Lookup(name, ordinal)
}

// GetPartitionIdx returns only the partition index of GetPartitionInfo.
func (c *Context) GetPartitionIdx(name string, ordinal uint64) (uint64, error) {
	p, err := c.presets.Lookup(name, ordinal)
	if err != nil {
		return 0, err
	}
	return p.Idx, nil
}

// Close releases the context's reference to the backend.
func (c *Context) Close() error {
	return c.handle.Release()
}

// RecordCycle counts one finished workload iteration.
func (c *Context) RecordCycle(err error) {
	c.stats.RecordCycle(err)
}
