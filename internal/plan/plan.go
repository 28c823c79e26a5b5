// Package plan loads declarative workload plans.
//
// A plan is a YAML document naming workload operations and their arguments.
// It is a driver for the by-name call surface of [workload.Context], not a
// scripting language:
//
//	params:
//	  rows: 100000
//	data:
//	  words: {read_words: words.txt}
//	presets:
//	  - {name: main, total_rows: $param.rows, base_rows: 10, groups: "5x2"}
//	schema:
//	  - execute: CREATE TABLE IF NOT EXISTS ks.t (pk bigint, ck bigint, v text, PRIMARY KEY (pk, ck))
//	prepare:
//	  write: INSERT INTO ks.t (pk, ck, v) VALUES (?, ?, ?)
//	  read: SELECT * FROM ks.t WHERE pk = ?
//	load:
//	  - execute_prepared: [write, [$partition:main, $cycle, $pick:words]]
//	run:
//	  - execute_prepared_with_validation: [read, [$partition:main], [1, 100]]
//
// String tokens are resolved per cycle: $cycle, $uuid, $hash, $text:<n>,
// $blob:<n>, $hash_range:<n>, $uniform:<min>:<max>, $normal:<mean>:<sd>,
// $data.<key>, $pick:<key>, $partition:<preset> and $partition_rows:<preset>.
// $param.<name> is replaced when the plan is compiled.
//
// Steps are single-key maps from operation name to its arguments. A scalar
// is a single argument and a list holds all arguments. The optional "as" key
// stores the step result in the worker's data bag.
package plan

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/torosent/crankdb/internal/resource"
	"github.com/torosent/crankdb/internal/value"
	"github.com/torosent/crankdb/internal/workload"
)

// Phase selects the step list a worker runs.
type Phase int

const (
	PhaseLoad Phase = iota
	PhaseRun
)

func (p Phase) String() string {
	if p == PhaseLoad {
		return "load"
	}
	return "run"
}

type document struct {
	Params  map[string]any    `yaml:"params"`
	Data    map[string]any    `yaml:"data"`
	Presets []presetDoc       `yaml:"presets"`
	Schema  []map[string]any  `yaml:"schema"`
	Prepare map[string]string `yaml:"prepare"`
	Load    []map[string]any  `yaml:"load"`
	Run     []map[string]any  `yaml:"run"`
}

type presetDoc struct {
	Name      string `yaml:"name"`
	TotalRows any    `yaml:"total_rows"`
	BaseRows  any    `yaml:"base_rows"`
	Groups    string `yaml:"groups"`
}

// Preset is a partition row distribution declared by a plan.
type Preset struct {
	Name      string
	TotalRows uint64
	BaseRows  uint64
	Groups    string
}

// Plan is a compiled workload plan.
type Plan struct {
	Params  map[string]value.Value
	Presets []Preset

	data    map[string]value.Value
	prepare map[string]string
	schema  []step
	load    []step
	run     []step
}

// Load reads and compiles the plan at path. Resource paths inside the plan
// are relative to its directory.
func Load(path string, params map[string]string) (*Plan, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workload %s: %w", path, err)
	}
	p, err := Parse(raw, filepath.Dir(path), params)
	if err != nil {
		return nil, fmt.Errorf("workload %s: %w", path, err)
	}
	return p, nil
}

// Parse compiles a plan document. params override the plan's declared
// parameters; their values are parsed as bool, int or float when possible.
func Parse(raw []byte, baseDir string, params map[string]string) (*Plan, error) {
	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse plan: %w", err)
	}

	p := &Plan{
		Params:  make(map[string]value.Value, len(doc.Params)+len(params)),
		data:    make(map[string]value.Value, len(doc.Data)),
		prepare: doc.Prepare,
	}
	for k, v := range doc.Params {
		p.Params[k] = value.FromGo(v)
	}
	for k, v := range params {
		p.Params[k] = ParseParam(v)
	}

	for key, raw := range doc.Data {
		v, err := p.loadData(raw, baseDir)
		if err != nil {
			return nil, fmt.Errorf("data %q: %w", key, err)
		}
		p.data[key] = v
	}

	for i, d := range doc.Presets {
		preset, err := p.compilePreset(d)
		if err != nil {
			return nil, fmt.Errorf("presets[%d]: %w", i, err)
		}
		p.Presets = append(p.Presets, preset)
	}

	var err error
	if p.schema, err = p.compileSteps("schema", doc.Schema); err != nil {
		return nil, err
	}
	if p.load, err = p.compileSteps("load", doc.Load); err != nil {
		return nil, err
	}
	if p.run, err = p.compileSteps("run", doc.Run); err != nil {
		return nil, err
	}
	if len(p.run) == 0 {
		return nil, fmt.Errorf("plan has no run steps")
	}
	return p, nil
}

// ParseParam converts a command line parameter value.
func ParseParam(s string) value.Value {
	switch strings.ToLower(s) {
	case "true":
		return value.Bool(true)
	case "false":
		return value.Bool(false)
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return value.Int(i)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return value.Float(f)
	}
	return value.String(s)
}

func (p *Plan) loadData(raw any, baseDir string) (value.Value, error) {
	if m, ok := raw.(map[string]any); ok && len(m) == 1 {
		for name, arg := range m {
			if _, isLoader := resource.Loaders[name]; !isLoader {
				break
			}
			path, ok := arg.(string)
			if !ok {
				return value.Null, fmt.Errorf("%s expects a file path", name)
			}
			if !filepath.IsAbs(path) {
				path = filepath.Join(baseDir, path)
			}
			return resource.Load(name, path)
		}
	}
	return p.literal(raw)
}

// literal converts a YAML value, resolving $param references.
func (p *Plan) literal(raw any) (value.Value, error) {
	e, err := p.compile(raw)
	if err != nil {
		return value.Null, err
	}
	if !e.static {
		return value.Null, fmt.Errorf("only $param references are allowed here, got %v", raw)
	}
	return e.eval(nil)
}

func (p *Plan) compilePreset(d presetDoc) (Preset, error) {
	if d.Name == "" {
		return Preset{}, fmt.Errorf("preset name is required")
	}
	total, err := p.count(d.TotalRows)
	if err != nil {
		return Preset{}, fmt.Errorf("total_rows: %w", err)
	}
	base, err := p.count(d.BaseRows)
	if err != nil {
		return Preset{}, fmt.Errorf("base_rows: %w", err)
	}
	return Preset{Name: d.Name, TotalRows: total, BaseRows: base, Groups: d.Groups}, nil
}

func (p *Plan) count(raw any) (uint64, error) {
	v, err := p.literal(raw)
	if err != nil {
		return 0, err
	}
	n, ok := v.AsInt()
	if !ok || n <= 0 {
		return 0, fmt.Errorf("expected a positive integer, got %v", v)
	}
	return uint64(n), nil
}

func (p *Plan) preset(name string) (Preset, bool) {
	for _, preset := range p.Presets {
		if preset.Name == name {
			return preset, true
		}
	}
	return Preset{}, false
}

// HasLoad reports whether the plan defines a load phase.
func (p *Plan) HasLoad() bool { return len(p.load) > 0 }

// Setup prepares a template context: it fills the data bag, compiles the
// presets and prepares every statement. Clones inherit all three.
func (p *Plan) Setup(ctx context.Context, c *workload.Context) error {
	for key, v := range p.data {
		c.SetData(key, v)
	}
	for _, preset := range p.Presets {
		if err := c.InitPartitionRowDistributionPreset(preset.Name, preset.TotalRows, preset.BaseRows, preset.Groups); err != nil {
			return err
		}
	}
	keys := make([]string, 0, len(p.prepare))
	for key := range p.prepare {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if err := c.Prepare(ctx, key, strings.TrimSpace(p.prepare[key])); err != nil {
			return fmt.Errorf("prepare %q: %w", key, err)
		}
	}
	return nil
}

// Schema runs the schema steps once on c.
func (p *Plan) Schema(ctx context.Context, c *workload.Context) error {
	for i, s := range p.schema {
		if err := s.exec(ctx, c, 0); err != nil {
			return fmt.Errorf("schema step %d (%s): %w", i, s.op, err)
		}
	}
	return nil
}

// Worker binds the steps of phase to one execution context.
func (p *Plan) Worker(c *workload.Context, phase Phase) *Worker {
	steps := p.run
	if phase == PhaseLoad {
		steps = p.load
	}
	return &Worker{ctx: c, steps: steps}
}
