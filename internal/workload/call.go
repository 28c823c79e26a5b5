package workload

import (
	"context"
	"sort"

	"github.com/torosent/crankdb/internal/dberr"
	"github.com/torosent/crankdb/internal/value"
)

type callFunc func(c *Context, ctx context.Context, args args) (value.Value, error)

var calls = map[string]callFunc{
	"prepare": func(c *Context, ctx context.Context, a args) (value.Value, error) {
		if err := a.arity(2); err != nil {
			return value.Null, err
		}
		key, err := a.str(0)
		if err != nil {
			return value.Null, err
		}
		query, err := a.str(1)
		if err != nil {
			return value.Null, err
		}
		return value.Null, c.Prepare(ctx, key, query)
	},
	"execute": func(c *Context, ctx context.Context, a args) (value.Value, error) {
		query, err := a.query()
		if err != nil {
			return value.Null, err
		}
		return value.Null, c.Execute(ctx, query)
	},
	"execute_with_result": func(c *Context, ctx context.Context, a args) (value.Value, error) {
		query, err := a.query()
		if err != nil {
			return value.Null, err
		}
		return c.ExecuteWithResult(ctx, query)
	},
	"execute_with_validation": func(c *Context, ctx context.Context, a args) (value.Value, error) {
		if err := a.arity(2); err != nil {
			return value.Null, err
		}
		query, err := a.str(0)
		if err != nil {
			return value.Null, err
		}
		bounds, err := a.list(1)
		if err != nil {
			return value.Null, err
		}
		return value.Null, c.ExecuteWithValidation(ctx, query, bounds)
	},
	"execute_prepared": func(c *Context, ctx context.Context, a args) (value.Value, error) {
		key, params, err := a.prepared(2)
		if err != nil {
			return value.Null, err
		}
		return value.Null, c.ExecutePrepared(ctx, key, params)
	},
	"execute_prepared_with_result": func(c *Context, ctx context.Context, a args) (value.Value, error) {
		key, params, err := a.prepared(2)
		if err != nil {
			return value.Null, err
		}
		return c.ExecutePreparedWithResult(ctx, key, params)
	},
	"execute_prepared_with_validation": func(c *Context, ctx context.Context, a args) (value.Value, error) {
		key, params, err := a.prepared(3)
		if err != nil {
			return value.Null, err
		}
		bounds, err := a.list(2)
		if err != nil {
			return value.Null, err
		}
		return value.Null, c.ExecutePreparedWithValidation(ctx, key, params, bounds)
	},
	"batch_prepared": func(c *Context, ctx context.Context, a args) (value.Value, error) {
		if err := a.arity(2); err != nil {
			return value.Null, err
		}
		keyValues, err := a.list(0)
		if err != nil {
			return value.Null, err
		}
		params, err := a.list(1)
		if err != nil {
			return value.Null, err
		}
		keys := make([]string, len(keyValues))
		for i, k := range keyValues {
			s, ok := k.AsString()
			if !ok {
				return value.Null, dberr.Argument("batch_prepared: key %d must be a string, got %s", i, k.Kind())
			}
			keys[i] = s
		}
		return value.Null, c.BatchPrepared(ctx, keys, params)
	},
	"init_partition_row_distribution_preset": func(c *Context, _ context.Context, a args) (value.Value, error) {
		if err := a.arity(4); err != nil {
			return value.Null, err
		}
		name, err := a.str(0)
		if err != nil {
			return value.Null, err
		}
		total, err := a.uint(1)
		if err != nil {
			return value.Null, err
		}
		base, err := a.uint(2)
		if err != nil {
			return value.Null, err
		}
		groups, err := a.str(3)
		if err != nil {
			return value.Null, err
		}
		return value.Null, c.InitPartitionRowDistributionPreset(name, total, base, groups)
	},
	"get_partition_info": func(c *Context, _ context.Context, a args) (value.Value, error) {
		name, ordinal, err := a.presetLookup()
		if err != nil {
			return value.Null, err
		}
		p, err := c.GetPartitionInfo(name, ordinal)
		if err != nil {
			return value.Null, err
		}
		return value.Map(map[string]value.Value{
			"idx":      value.Int(int64(p.Idx)),
			"rows_num": value.Int(int64(p.RowsNum)),
		}), nil
	},
	"get_partition_idx": func(c *Context, _ context.Context, a args) (value.Value, error) {
		name, ordinal, err := a.presetLookup()
		if err != nil {
			return value.Null, err
		}
		idx, err := c.GetPartitionIdx(name, ordinal)
		if err != nil {
			return value.Null, err
		}
		return value.Int(int64(idx)), nil
	},
	"get_datacenters": func(c *Context, ctx context.Context, a args) (value.Value, error) {
		if err := a.arity(0); err != nil {
			return value.Null, err
		}
		dcs, err := c.Datacenters(ctx)
		if err != nil {
			return value.Null, err
		}
		return value.FromGo(dcs), nil
	},
	"cluster_info": func(c *Context, ctx context.Context, a args) (value.Value, error) {
		if err := a.arity(0); err != nil {
			return value.Null, err
		}
		return c.ClusterInfo(ctx).Value(), nil
	},
	"elapsed_secs": func(c *Context, _ context.Context, a args) (value.Value, error) {
		if err := a.arity(0); err != nil {
			return value.Null, err
		}
		return value.Float(c.ElapsedSecs()), nil
	},
	"signal_failure": func(c *Context, _ context.Context, a args) (value.Value, error) {
		if err := a.arity(1); err != nil {
			return value.Null, err
		}
		msg, err := a.str(0)
		if err != nil {
			return value.Null, err
		}
		return value.Null, c.SignalFailure(msg)
	},
	"load_cycle_count": func(c *Context, _ context.Context, a args) (value.Value, error) {
		if err := a.arity(0); err != nil {
			return value.Null, err
		}
		return value.Int(c.LoadCycleCount()), nil
	},
	"set_load_cycle_count": func(c *Context, _ context.Context, a args) (value.Value, error) {
		if err := a.arity(1); err != nil {
			return value.Null, err
		}
		n, err := a.uint(0)
		if err != nil {
			return value.Null, err
		}
		c.SetLoadCycleCount(int64(n))
		return value.Null, nil
	},
}

// Operations lists the names accepted by Call.
func Operations() []string {
	names := make([]string, 0, len(calls))
	for name := range calls {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Call invokes an operation by name with dynamically typed arguments. Wrong
// arity or argument types fail with ArgumentError before any backend call.
func (c *Context) Call(ctx context.Context, name string, arguments []value.Value) (value.Value, error) {
	fn, ok := calls[name]
	if !ok {
		return value.Null, dberr.Lookup("unknown operation %q", name)
	}
	return fn(c, ctx, args{name: name, vals: arguments})
}

type args struct {
	name string
	vals []value.Value
}

func (a args) arity(n int) error {
	if len(a.vals) != n {
		return dberr.Argument("%s: expected %d arguments, got %d", a.name, n, len(a.vals))
	}
	return nil
}

func (a args) str(i int) (string, error) {
	s, ok := a.vals[i].AsString()
	if !ok {
		return "", dberr.Argument("%s: argument %d must be a string, got %s", a.name, i, a.vals[i].Kind())
	}
	return s, nil
}

func (a args) uint(i int) (uint64, error) {
	n, ok := a.vals[i].AsInt()
	if !ok || n < 0 {
		return 0, dberr.Argument("%s: argument %d must be a non-negative integer, got %s", a.name, i, a.vals[i])
	}
	return uint64(n), nil
}

func (a args) list(i int) ([]value.Value, error) {
	items, ok := a.vals[i].AsList()
	if !ok {
		return nil, dberr.Argument("%s: argument %d must be a list, got %s", a.name, i, a.vals[i].Kind())
	}
	return items, nil
}

func (a args) query() (string, error) {
	if err := a.arity(1); err != nil {
		return "", err
	}
	return a.str(0)
}

func (a args) prepared(n int) (string, value.Value, error) {
	if err := a.arity(n); err != nil {
		return "", value.Null, err
	}
	key, err := a.str(0)
	if err != nil {
		return "", value.Null, err
	}
	return key, a.vals[1], nil
}

func (a args) presetLookup() (string, uint64, error) {
	if err := a.arity(2); err != nil {
		return "", 0, err
	}
	name, err := a.str(0)
	if err != nil {
		return "", 0, err
	}
	ordinal, err := a.uint(1)
	if err != nil {
		return "", 0, err
	}
	return name, ordinal, nil
}
