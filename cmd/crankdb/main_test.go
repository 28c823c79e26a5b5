package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/torosent/crankdb/internal/backend"
	"github.com/torosent/crankdb/internal/backend/backendtest"
	"github.com/torosent/crankdb/internal/config"
	"github.com/torosent/crankdb/internal/metrics"
	"github.com/torosent/crankdb/internal/plan"
	"github.com/torosent/crankdb/internal/retry"
	"github.com/torosent/crankdb/internal/runner"
	"github.com/torosent/crankdb/internal/workload"
)

const kvPlan = `
prepare:
  write: INSERT INTO kv (k, v) VALUES (?, ?)
  read: SELECT v FROM kv WHERE k = ?
load:
  - execute_prepared:
      - write
      - ["$cycle", "$text:8"]
run:
  - execute_prepared_with_validation:
      - read
      - ["$hash_range:100"]
      - [0, 1]
`

func TestToRunnerArrivalModel(t *testing.T) {
	tests := []struct {
		input config.ArrivalModel
		want  runner.ArrivalModel
	}{
		{config.ArrivalModelUniform, runner.ArrivalModelUniform},
		{config.ArrivalModelPoisson, runner.ArrivalModelPoisson},
		{"unknown", runner.ArrivalModelUniform}, // Default fallback
	}

	for _, tt := range tests {
		got := toRunnerArrivalModel(tt.input)
		if got != tt.want {
			t.Errorf("toRunnerArrivalModel(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestWorkloadOptions(t *testing.T) {
	cfg := config.Defaults()
	cfg.RetryNumber = 3
	cfg.RetryInterval = "10ms,1s"
	cfg.ValidationStrategy = "ignore"

	opts, err := workloadOptions(cfg)
	if err != nil {
		t.Fatalf("workloadOptions() error = %v", err)
	}
	if opts.RetryNumber != 3 {
		t.Errorf("RetryNumber = %d, want 3", opts.RetryNumber)
	}
	if opts.RetryInterval != retry.Backoff(10*time.Millisecond, time.Second) {
		t.Errorf("RetryInterval = %v", opts.RetryInterval)
	}
	if opts.ValidationStrategy != workload.ValidationIgnore {
		t.Errorf("ValidationStrategy = %v, want ignore", opts.ValidationStrategy)
	}

	cfg.RetryInterval = "soon"
	if _, err := workloadOptions(cfg); err == nil {
		t.Error("expected error for a malformed retry interval")
	}
}

func TestRunHelp(t *testing.T) {
	if err := run(nil); err != nil {
		t.Fatalf("run(nil) error = %v", err)
	}
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	if err := run([]string{"--concurrency", "0", "kv.yaml"}); err == nil {
		t.Fatal("expected a validation error")
	}
}

func TestRunPhases(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kv.yaml")
	if err := os.WriteFile(path, []byte(kvPlan), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := plan.Load(path, nil)
	if err != nil {
		t.Fatalf("plan.Load() error = %v", err)
	}

	fake := backendtest.New()
	fake.On("SELECT v FROM kv WHERE k = ?", backendtest.Rows(1))
	tmpl := workload.New(backend.NewHandle(fake), workload.Options{RetryInterval: retry.Fixed(0)})
	ctx := context.Background()
	if err := p.Setup(ctx, tmpl); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	load, err := runPhase(ctx, p, tmpl, plan.PhaseLoad, runner.Options{
		Concurrency: 2,
		Cycles:      20,
		Collector:   metrics.NewCollector(),
	})
	if err != nil {
		t.Fatalf("load phase error = %v", err)
	}
	if load.Cycles != 20 || load.Errors != 0 {
		t.Fatalf("load result = %+v", load)
	}
	if got := fake.CallCount("INSERT INTO kv (k, v) VALUES (?, ?)"); got != 20 {
		t.Fatalf("expected 20 writes, got %d", got)
	}

	collector := metrics.NewCollector()
	res, err := runPhase(ctx, p, tmpl, plan.PhaseRun, runner.Options{
		Concurrency: 3,
		Cycles:      30,
		StartCycle:  20,
		Collector:   collector,
	})
	if err != nil {
		t.Fatalf("run phase error = %v", err)
	}
	if res.Cycles != 30 || res.Errors != 0 {
		t.Fatalf("run result = %+v", res)
	}
	stats := collector.Stats(res.Duration)
	if stats.Cycles != 30 || stats.Total != 30 || stats.ValidationFailures != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	if err := tmpl.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if fake.CloseCount() != 1 {
		t.Fatalf("backend closed %d times, want 1", fake.CloseCount())
	}
}
