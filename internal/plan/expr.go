package plan

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/torosent/crankdb/internal/dberr"
	"github.com/torosent/crankdb/internal/gen"
	"github.com/torosent/crankdb/internal/value"
	"github.com/torosent/crankdb/internal/workload"
)

// env is the per-evaluation state of an argument expression.
type env struct {
	c     *workload.Context
	cycle int64
}

// expr is a compiled argument. Static expressions do not depend on env and
// may be evaluated with a nil env.
type expr struct {
	static bool
	fn     func(e *env) (value.Value, error)
}

func (x expr) eval(e *env) (value.Value, error) { return x.fn(e) }

func constant(v value.Value) expr {
	return expr{static: true, fn: func(*env) (value.Value, error) { return v, nil }}
}

func dynamic(fn func(e *env) (value.Value, error)) expr {
	return expr{fn: fn}
}

func (p *Plan) compile(raw any) (expr, error) {
	switch t := raw.(type) {
	case nil:
		return constant(value.Null), nil
	case string:
		return p.compileToken(t)
	case []any:
		items := make([]expr, len(t))
		static := true
		for i, item := range t {
			x, err := p.compile(item)
			if err != nil {
				return expr{}, err
			}
			items[i] = x
			static = static && x.static
		}
		return expr{static: static, fn: func(e *env) (value.Value, error) {
			out := make([]value.Value, len(items))
			for i, x := range items {
				v, err := x.eval(e)
				if err != nil {
					return value.Null, err
				}
				out[i] = v
			}
			return value.List(out...), nil
		}}, nil
	case map[string]any:
		fields := make(map[string]expr, len(t))
		static := true
		for k, item := range t {
			x, err := p.compile(item)
			if err != nil {
				return expr{}, err
			}
			fields[k] = x
			static = static && x.static
		}
		return expr{static: static, fn: func(e *env) (value.Value, error) {
			out := make(map[string]value.Value, len(fields))
			for k, x := range fields {
				v, err := x.eval(e)
				if err != nil {
					return value.Null, err
				}
				out[k] = v
			}
			return value.Map(out), nil
		}}, nil
	default:
		return constant(value.FromGo(raw)), nil
	}
}

// compileToken resolves a "$" token. Other strings are literals; "$$" escapes
// a leading dollar sign.
func (p *Plan) compileToken(s string) (expr, error) {
	if !strings.HasPrefix(s, "$") {
		return constant(value.String(s)), nil
	}
	if strings.HasPrefix(s, "$$") {
		return constant(value.String(s[1:])), nil
	}

	name, arg, hasArg := strings.Cut(s[1:], ":")
	if !hasArg {
		if head, rest, dotted := strings.Cut(name, "."); dotted {
			name, arg = head, rest
		}
	}

	switch name {
	case "cycle":
		return dynamic(func(e *env) (value.Value, error) { return value.Int(e.cycle), nil }), nil
	case "uuid":
		return dynamic(func(e *env) (value.Value, error) { return value.String(gen.UUID(e.cycle).String()), nil }), nil
	case "hash":
		return dynamic(func(e *env) (value.Value, error) { return value.Int(gen.Hash(e.cycle)), nil }), nil
	case "now":
		// Milliseconds since the Unix epoch, as a CQL timestamp holds them.
		return dynamic(func(*env) (value.Value, error) { return value.Int(time.Now().UnixMilli()), nil }), nil
	case "param":
		v, ok := p.Params[arg]
		if !ok {
			return expr{}, fmt.Errorf("undefined parameter %q", arg)
		}
		return constant(v), nil
	case "data":
		if arg == "" {
			return expr{}, fmt.Errorf("token %q names no data key", s)
		}
		return dynamic(func(e *env) (value.Value, error) {
			v, ok := e.c.Data().Get(arg)
			if !ok {
				return value.Null, dberr.Lookup("data key %q not found", arg)
			}
			return v, nil
		}), nil
	case "pick":
		return dynamic(func(e *env) (value.Value, error) {
			v, _ := e.c.Data().Get(arg)
			items, ok := v.AsList()
			if !ok || len(items) == 0 {
				return value.Null, dberr.Lookup("data key %q is not a non-empty list", arg)
			}
			return items[gen.HashSelect(e.cycle, len(items))], nil
		}), nil
	case "text", "blob", "hash_range", "vector":
		n, err := strconv.Atoi(arg)
		if err != nil || n <= 0 {
			return expr{}, fmt.Errorf("token %q needs a positive size", s)
		}
		switch name {
		case "text":
			return dynamic(func(e *env) (value.Value, error) { return value.String(gen.Text(e.cycle, n)), nil }), nil
		case "blob":
			return dynamic(func(e *env) (value.Value, error) { return value.Bytes(gen.Blob(e.cycle, n)), nil }), nil
		case "vector":
			return dynamic(func(e *env) (value.Value, error) {
				xs := gen.Vector(e.cycle, n)
				items := make([]value.Value, len(xs))
				for i, x := range xs {
					items[i] = value.Float(x)
				}
				return value.List(items...), nil
			}), nil
		}
		return dynamic(func(e *env) (value.Value, error) { return value.Int(gen.HashRange(e.cycle, int64(n))), nil }), nil
	case "uniform", "normal":
		a, b, err := floatPair(arg)
		if err != nil {
			return expr{}, fmt.Errorf("token %q: %w", s, err)
		}
		if name == "uniform" {
			return dynamic(func(e *env) (value.Value, error) { return value.Float(gen.Uniform(e.cycle, a, b)), nil }), nil
		}
		return dynamic(func(e *env) (value.Value, error) { return value.Float(gen.Normal(e.cycle, a, b)), nil }), nil
	case "partition", "partition_rows":
		preset, ok := p.preset(arg)
		if !ok {
			return expr{}, fmt.Errorf("token %q refers to an undeclared preset", s)
		}
		rows := name == "partition_rows"
		return dynamic(func(e *env) (value.Value, error) {
			part, err := e.c.GetPartitionInfo(preset.Name, uint64(e.cycle)%preset.TotalRows)
			if err != nil {
				return value.Null, err
			}
			if rows {
				return value.Int(int64(part.RowsNum)), nil
			}
			return value.Int(int64(part.Idx)), nil
		}), nil
	}
	return expr{}, fmt.Errorf("unknown token %q", s)
}

func floatPair(arg string) (float64, float64, error) {
	x, y, ok := strings.Cut(arg, ":")
	if !ok {
		return 0, 0, fmt.Errorf("expected two numbers separated by ':'")
	}
	a, err := strconv.ParseFloat(x, 64)
	if err != nil {
		return 0, 0, err
	}
	b, err := strconv.ParseFloat(y, 64)
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

// step is one compiled workload operation.
type step struct {
	op   string
	args []expr
	as   string
}

func (p *Plan) compileSteps(phase string, raw []map[string]any) ([]step, error) {
	ops := workload.Operations()
	steps := make([]step, 0, len(raw))
	for i, m := range raw {
		var s step
		if as, ok := m["as"]; ok {
			key, isString := as.(string)
			if !isString || key == "" {
				return nil, fmt.Errorf("%s step %d: \"as\" must name a data key", phase, i)
			}
			s.as = key
		}
		for key, rawArgs := range m {
			if key == "as" {
				continue
			}
			if s.op != "" {
				return nil, fmt.Errorf("%s step %d: more than one operation (%s, %s)", phase, i, s.op, key)
			}
			if j := sort.SearchStrings(ops, key); j == len(ops) || ops[j] != key {
				return nil, fmt.Errorf("%s step %d: unknown operation %q", phase, i, key)
			}
			s.op = key
			args, err := p.compileArgs(rawArgs)
			if err != nil {
				return nil, fmt.Errorf("%s step %d (%s): %w", phase, i, key, err)
			}
			s.args = args
		}
		if s.op == "" {
			return nil, fmt.Errorf("%s step %d: no operation", phase, i)
		}
		steps = append(steps, s)
	}
	return steps, nil
}

func (p *Plan) compileArgs(raw any) ([]expr, error) {
	var items []any
	switch t := raw.(type) {
	case nil:
	case []any:
		items = t
	default:
		items = []any{t}
	}
	args := make([]expr, len(items))
	for i, item := range items {
		x, err := p.compile(item)
		if err != nil {
			return nil, err
		}
		args[i] = x
	}
	return args, nil
}
