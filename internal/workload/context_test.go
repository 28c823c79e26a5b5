package workload_test

import (
	"context"
	"errors"
	"testing"

	"github.com/torosent/crankdb/internal/backend"
	"github.com/torosent/crankdb/internal/backend/backendtest"
	"github.com/torosent/crankdb/internal/dberr"
	"github.com/torosent/crankdb/internal/value"
	"github.com/torosent/crankdb/internal/workload"
)

func TestCloneIsolation(t *testing.T) {
	fake := backendtest.New()
	handle := backend.NewHandle(fake)
	tmpl := workload.New(handle, workload.Options{})
	ctx := context.Background()

	tmpl.SetData("ids", value.List(value.Int(1)))
	tmpl.SetLoadCycleCount(42)
	if err := tmpl.Prepare(ctx, "q", "SELECT 1"); err != nil {
		t.Fatal(err)
	}
	if err := tmpl.InitPartitionRowDistributionPreset("p", 100, 10, ""); err != nil {
		t.Fatal(err)
	}

	a, err := tmpl.CloneForWorker()
	if err != nil {
		t.Fatalf("CloneForWorker: %v", err)
	}
	b, err := tmpl.CloneForWorker()
	if err != nil {
		t.Fatalf("CloneForWorker: %v", err)
	}
	if handle.Refs() != 3 {
		t.Fatalf("expected 3 handle references, got %d", handle.Refs())
	}

	ids, _ := a.Data().Get("ids")
	ids.Append(value.Int(2))
	a.SetData("name", value.String("a"))
	if got, _ := b.Data().Get("ids"); got.Len() != 1 {
		t.Fatalf("mutation leaked between clones: %v", got)
	}
	if _, ok := tmpl.Data().Get("name"); ok {
		t.Fatalf("mutation leaked into the template")
	}

	if a.LoadCycleCount() != 42 {
		t.Fatalf("clone lost load cycle count")
	}
	if err := a.ExecutePrepared(ctx, "q", value.Null); err != nil {
		t.Fatalf("clone lost prepared statements: %v", err)
	}
	if _, err := b.GetPartitionIdx("p", 5); err != nil {
		t.Fatalf("clone lost presets: %v", err)
	}

	if a.HarvestStats().Operations != 1 || b.HarvestStats().Operations != 0 || tmpl.HarvestStats().Operations != 0 {
		t.Fatalf("statistics must be per clone")
	}

	for _, c := range []*workload.Context{a, b, tmpl} {
		if err := c.Close(); err != nil {
			t.Fatal(err)
		}
	}
	if fake.CloseCount() != 1 {
		t.Fatalf("backend should close once after the last release, got %d", fake.CloseCount())
	}
	if _, err := tmpl.CloneForWorker(); !errors.Is(err, dberr.ErrConnection) {
		t.Fatalf("cloning a closed context should fail with ConnectionError, got %v", err)
	}
}

func TestCloneOpaqueDataFails(t *testing.T) {
	handle := backend.NewHandle(backendtest.New())
	tmpl := workload.New(handle, workload.Options{})
	defer tmpl.Close()
	tmpl.SetData("conn", value.Opaque(make(chan int)))

	for i := 0; i < 3; i++ {
		if _, err := tmpl.CloneForWorker(); !errors.Is(err, dberr.ErrSerialization) {
			t.Fatalf("attempt %d: expected SerializationError, got %v", i, err)
		}
	}
	if handle.Refs() != 1 {
		t.Fatalf("failed clones must not hold references, got %d", handle.Refs())
	}
}

func TestResetAndElapsed(t *testing.T) {
	c, _ := newContext(t, 0)
	_ = c.Execute(context.Background(), "SELECT 1")
	c.Reset()
	if c.HarvestStats().Operations != 0 {
		t.Fatalf("Reset should zero statistics")
	}
	if e := c.ElapsedSecs(); e < 0 || e > 5 {
		t.Fatalf("unexpected elapsed %f", e)
	}
}

func TestClusterInfo(t *testing.T) {
	c, fake := newContext(t, 0)
	info := c.ClusterInfo(context.Background())
	if info != fake.Info {
		t.Fatalf("unexpected cluster info %+v", info)
	}
	dcs, err := c.Datacenters(context.Background())
	if err != nil || len(dcs) != 1 || dcs[0] != "datacenter1" {
		t.Fatalf("Datacenters = %v, %v", dcs, err)
	}
	if c.BackendName() != "fake" {
		t.Fatalf("BackendName = %q", c.BackendName())
	}
}

func TestRecordCycle(t *testing.T) {
	c, _ := newContext(t, 0)
	c.RecordCycle(nil)
	c.RecordCycle(c.SignalFailure("boom"))
	stats := c.HarvestStats()
	if stats.Cycles != 2 || stats.FailedCycles != 1 {
		t.Fatalf("unexpected cycles %d/%d", stats.Cycles, stats.FailedCycles)
	}
}
