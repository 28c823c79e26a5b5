package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestScalarConversions(t *testing.T) {
	strs := []struct {
		input interface{}
		want  string
	}{
		{"hello", "hello"},
		{123, "123"},
		{int64(7), "7"},
		{2.5, "2.5"},
		{true, "true"},
		{nil, ""},
	}
	for _, tt := range strs {
		got, err := scalarString(tt.input)
		if err != nil || got != tt.want {
			t.Errorf("scalarString(%v) = %q, %v; want %q", tt.input, got, err, tt.want)
		}
	}
	if _, err := scalarString([]interface{}{"a"}); err == nil {
		t.Error("scalarString(list) expected error")
	}

	whole := []struct {
		input interface{}
		want  int64
	}{
		{123, 123},
		{" 456 ", 456},
		{int64(789), 789},
		{uint64(5), 5},
		{float64(10), 10},
	}
	for _, tt := range whole {
		got, err := wholeNumber(tt.input)
		if err != nil || got != tt.want {
			t.Errorf("wholeNumber(%v) = %d, %v; want %d", tt.input, got, err, tt.want)
		}
	}
	for _, bad := range []interface{}{1.5, "ten", true, uint64(1 << 63)} {
		if _, err := wholeNumber(bad); err == nil {
			t.Errorf("wholeNumber(%v) expected error", bad)
		}
	}

	if f, err := number("0.25"); err != nil || f != 0.25 {
		t.Errorf("number(\"0.25\") = %v, %v", f, err)
	}
	if _, err := number(map[string]interface{}{}); err == nil {
		t.Error("number(map) expected error")
	}

	m, err := mapping(map[interface{}]interface{}{"Rows": 1})
	if err != nil || m["Rows"] != 1 {
		t.Errorf("mapping() = %v, %v", m, err)
	}
	if _, err := mapping(map[interface{}]interface{}{" ": 1}); err == nil {
		t.Error("mapping with an empty key expected error")
	}
}

func TestSettingsReaderTypes(t *testing.T) {
	r := newSettingsReader(map[string]interface{}{
		"Sampling":    "250ms",
		"timeout":     1.5,
		"interval":    10,
		"json":        "true",
		"debug":       true,
		"nodes":       []interface{}{" a:9042", "b:9042"},
		"single":      "only:9042",
		"cycles":      nil,
		"bad_flag":    "maybe",
		"bad_timeout": "soon",
	}, "")

	var sampling, timeout, interval time.Duration
	r.duration("sampling", &sampling)
	r.duration("timeout", &timeout)
	r.duration("interval", &interval)
	if sampling != 250*time.Millisecond || timeout != 1500*time.Millisecond || interval != 10*time.Second {
		t.Errorf("durations = %v %v %v", sampling, timeout, interval)
	}

	var json, debug bool
	r.boolean("json", &json)
	r.boolean("debug", &debug)
	if !json || !debug {
		t.Errorf("booleans = %v %v", json, debug)
	}

	var nodes, single []string
	r.list("nodes", &nodes)
	r.list("single", &single)
	if len(nodes) != 2 || nodes[0] != "a:9042" || len(single) != 1 || single[0] != "only:9042" {
		t.Errorf("lists = %v %v", nodes, single)
	}

	cycles := int64(42)
	r.integer64("cycles", &cycles)
	if cycles != 42 {
		t.Errorf("a null setting must leave the value alone, got %d", cycles)
	}
	if r.err != nil {
		t.Fatalf("unexpected error %v", r.err)
	}

	var flag bool
	r.boolean("bad_flag", &flag)
	var d time.Duration
	r.duration("bad_timeout", &d)
	if r.err == nil || r.err.Error() != `bad_flag: expected true or false, got "maybe"` {
		t.Fatalf("expected the first error to be kept, got %v", r.err)
	}
}

func TestApplyConfigSettings(t *testing.T) {
	cfg := &Config{}
	settings := map[string]interface{}{
		"backend":             "DynamoDB",
		"workload":            "kv.yaml",
		"concurrency":         10,
		"rate":                250.5,
		"cycles":              1000,
		"load_cycles":         "50",
		"timeout":             "2s",
		"retry_number":        3,
		"retry_interval":      "10ms,1s",
		"validation_strategy": "ignore",
		"params": map[string]interface{}{
			"rows": 100,
		},
		"dynamodb": map[string]interface{}{
			"region":      "eu-west-1",
			"consistency": "strong",
		},
		"tracing": map[string]interface{}{
			"endpoint":    "localhost:4317",
			"sample_rate": 0.25,
		},
	}

	if err := applyConfigSettings(cfg, settings); err != nil {
		t.Fatalf("applyConfigSettings() error = %v", err)
	}

	if cfg.Backend != BackendDynamoDB {
		t.Errorf("Backend = %q, want dynamodb", cfg.Backend)
	}
	if cfg.Workload != "kv.yaml" {
		t.Errorf("Workload = %q, want kv.yaml", cfg.Workload)
	}
	if cfg.Concurrency != 10 || cfg.Rate != 250.5 {
		t.Errorf("Concurrency/Rate = %d/%v", cfg.Concurrency, cfg.Rate)
	}
	if cfg.Cycles != 1000 || cfg.LoadCycles != 50 {
		t.Errorf("Cycles/LoadCycles = %d/%d", cfg.Cycles, cfg.LoadCycles)
	}
	if cfg.Timeout != 2*time.Second {
		t.Errorf("Timeout = %v, want 2s", cfg.Timeout)
	}
	if cfg.RetryNumber != 3 || cfg.RetryInterval != "10ms,1s" || cfg.ValidationStrategy != "ignore" {
		t.Errorf("retry settings = %d %q %q", cfg.RetryNumber, cfg.RetryInterval, cfg.ValidationStrategy)
	}
	if cfg.Params["rows"] != "100" {
		t.Errorf("Params[rows] = %q, want 100", cfg.Params["rows"])
	}
	if cfg.DynamoDB.Region != "eu-west-1" || cfg.DynamoDB.Consistency != "strong" {
		t.Errorf("DynamoDB = %+v", cfg.DynamoDB)
	}
	if cfg.Tracing.Endpoint != "localhost:4317" || cfg.Tracing.SampleRate != 0.25 {
		t.Errorf("Tracing = %+v", cfg.Tracing)
	}
}

func TestApplyConfigSettingsErrors(t *testing.T) {
	tests := []struct {
		name     string
		settings map[string]interface{}
		want     string
	}{
		{"bad duration", map[string]interface{}{"duration": "soon"}, "duration"},
		{"bad nodes", map[string]interface{}{"cql": map[string]interface{}{"nodes": []interface{}{map[string]interface{}{}}}}, "cql.nodes[0]"},
		{"fractional count", map[string]interface{}{"concurrency": 2.5}, "concurrency"},
		{"nested param", map[string]interface{}{"params": map[string]interface{}{"rows": []interface{}{1}}}, "params.rows"},
		{"bad section", map[string]interface{}{"tracing": "on"}, "tracing"},
		{"bad params", map[string]interface{}{"params": []interface{}{"x"}}, "params"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := applyConfigSettings(Defaults(), tt.settings)
			if err == nil {
				t.Fatalf("expected error mentioning %q", tt.want)
			}
			if got := err.Error(); len(got) < len(tt.want) || got[:len(tt.want)] != tt.want {
				t.Fatalf("error = %q, want prefix %q", got, tt.want)
			}
		})
	}
}

func TestApplyFlagOverrides(t *testing.T) {
	cfg := Defaults()
	cfg.Params["rows"] = "10"

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	configureFlags(fs)

	args := []string{
		"--concurrency=5",
		"--backend=Alternator",
		"--endpoint=http://localhost:8000",
		"--consistency=strong",
		"-P", "rows=20",
		"-P", "table=kv",
		"--threshold", "op_duration:p99 < 50",
		"--threshold", "op_failed:rate < 0.01",
		"--nodes=a:9042,b:9042",
	}
	if err := fs.Parse(args); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if err := applyFlagOverrides(cfg, fs); err != nil {
		t.Fatalf("applyFlagOverrides() error = %v", err)
	}

	if cfg.Concurrency != 5 {
		t.Errorf("Concurrency = %d, want 5", cfg.Concurrency)
	}
	if cfg.Backend != BackendAlternator {
		t.Errorf("Backend = %q, want alternator", cfg.Backend)
	}
	if cfg.DynamoDB.Endpoint != "http://localhost:8000" {
		t.Errorf("Endpoint = %q", cfg.DynamoDB.Endpoint)
	}
	if cfg.DynamoDB.Consistency != "strong" || cfg.CQL.Consistency != "strong" {
		t.Errorf("consistency not applied to both backends: %q %q", cfg.CQL.Consistency, cfg.DynamoDB.Consistency)
	}
	if cfg.Params["rows"] != "20" || cfg.Params["table"] != "kv" {
		t.Errorf("Params = %v", cfg.Params)
	}
	if len(cfg.CQL.Nodes) != 2 {
		t.Errorf("Nodes = %v", cfg.CQL.Nodes)
	}
	if len(cfg.Thresholds) != 2 || cfg.Thresholds[0] != "op_duration:p99 < 50" {
		t.Errorf("Thresholds = %v", cfg.Thresholds)
	}
	if cfg.Duration != 60*time.Second {
		t.Errorf("untouched Duration = %v, want 60s", cfg.Duration)
	}
}

func TestLoader_Load(t *testing.T) {
	loader := NewLoader()
	cfg, err := loader.Load([]string{"--concurrency=2", "workloads/basic.yaml"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Workload != "workloads/basic.yaml" {
		t.Errorf("Workload = %q, want positional argument", cfg.Workload)
	}
	if cfg.Concurrency != 2 {
		t.Errorf("Concurrency = %d, want 2", cfg.Concurrency)
	}
	if cfg.Backend != BackendCQL || cfg.ValidationStrategy != "fail" || cfg.Sampling != time.Second {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoader_LoadHelp(t *testing.T) {
	loader := NewLoader()
	if _, err := loader.Load(nil); !errors.Is(err, ErrHelpRequested) {
		t.Fatalf("Load(nil) error = %v, want ErrHelpRequested", err)
	}
	if _, err := loader.Load([]string{"--help"}); !errors.Is(err, ErrHelpRequested) {
		t.Fatalf("Load(--help) error = %v, want ErrHelpRequested", err)
	}
}

func TestLoader_LoadExtraArguments(t *testing.T) {
	if _, err := NewLoader().Load([]string{"-w", "a.yaml", "b.yaml"}); err == nil {
		t.Fatal("expected error for a second workload argument")
	}
}

func TestLoader_LoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "crankdb.yaml")
	content := `
workload: kv.yaml
concurrency: 8
duration: 30s
retry_number: 2
params:
  rows: 500
cql:
  nodes: ["db1:9042", "db2:9042"]
  keyspace: bench
  consistency: local_quorum
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := NewLoader().Load([]string{"--config", path, "--duration", "10s"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ConfigFile != path {
		t.Errorf("ConfigFile = %q", cfg.ConfigFile)
	}
	if cfg.Workload != "kv.yaml" || cfg.Concurrency != 8 || cfg.RetryNumber != 2 {
		t.Errorf("file settings not applied: %+v", cfg)
	}
	if cfg.Duration != 10*time.Second {
		t.Errorf("Duration = %v, flag should win over file", cfg.Duration)
	}
	if cfg.Params["rows"] != "500" {
		t.Errorf("Params = %v", cfg.Params)
	}
	if len(cfg.CQL.Nodes) != 2 || cfg.CQL.Keyspace != "bench" || cfg.CQL.Consistency != "local_quorum" {
		t.Errorf("CQL = %+v", cfg.CQL)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoader_LoadJSONFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "crankdb.json")
	content := `{
		"backend": "alternator",
		"workload": "kv.yaml",
		"cycles": 100,
		"dynamodb": {"endpoint": "http://localhost:8000", "region": "us-east-1"}
	}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := NewLoader().Load([]string{"--config", path})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Backend != BackendAlternator || cfg.Cycles != 100 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.DynamoDB.Endpoint != "http://localhost:8000" {
		t.Errorf("Endpoint = %q", cfg.DynamoDB.Endpoint)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoader_LoadMissingFile(t *testing.T) {
	if _, err := NewLoader().Load([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")}); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
