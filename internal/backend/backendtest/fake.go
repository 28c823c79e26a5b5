// Package backendtest provides a scripted in-memory backend for tests.
package backendtest

import (
	"context"
	"sync"

	"github.com/torosent/crankdb/internal/backend"
	"github.com/torosent/crankdb/internal/dberr"
	"github.com/torosent/crankdb/internal/value"
)

// BatchKey scripts responses for BatchPrepared.
const BatchKey = "<batch>"

// Response is one scripted outcome.
type Response struct {
	Rows []value.Value
	Err  error
}

// Rows returns a successful response with n rows of the form {"i": <n>}.
func Rows(n int) Response {
	rows := make([]value.Value, n)
	for i := range rows {
		rows[i] = value.Map(map[string]value.Value{"i": value.Int(int64(i))})
	}
	return Response{Rows: rows}
}

// Fail returns a failing response.
func Fail(err error) Response { return Response{Err: err} }

// Call records one backend invocation.
type Call struct {
	Op     string
	Query  string
	Params value.Value
}

// Fake answers queries from per-statement response queues. The last queued
// response of a statement repeats once the queue is drained; unscripted
// statements return zero rows.
type Fake struct {
	mu          sync.Mutex
	script      map[string][]Response
	prepareErrs map[string]error
	calls       []Call
	closed      int

	Dcs  []string
	Info backend.ClusterInfo
}

func New() *Fake {
	return &Fake{
		script:      make(map[string][]Response),
		prepareErrs: make(map[string]error),
		Dcs:         []string{"datacenter1"},
		Info:        backend.ClusterInfo{Name: "fake", Version: "0.0.0", Available: true},
	}
}

// On appends responses for query.
func (f *Fake) On(query string, responses ...Response) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.script[query] = append(f.script[query], responses...)
	return f
}

// FailPrepare makes Prepare(query) fail with err.
func (f *Fake) FailPrepare(query string, err error) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prepareErrs[query] = err
	return f
}

func (f *Fake) Name() string { return "fake" }

func (f *Fake) next(op, query string, params value.Value) Response {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Op: op, Query: query, Params: params})
	queue := f.script[query]
	switch len(queue) {
	case 0:
		return Response{}
	case 1:
		return queue[0]
	}
	f.script[query] = queue[1:]
	return queue[0]
}

func result(r Response, fetch backend.Fetch) (backend.Result, error) {
	if r.Err != nil {
		return backend.Result{}, r.Err
	}
	res := backend.Result{RowCount: len(r.Rows)}
	if fetch == backend.FetchRows {
		res.Rows = append([]value.Value(nil), r.Rows...)
	}
	return res, nil
}

func (f *Fake) Execute(ctx context.Context, query string, params value.Value, fetch backend.Fetch) (backend.Result, error) {
	if err := ctx.Err(); err != nil {
		return backend.Result{}, err
	}
	return result(f.next("execute", query, params), fetch)
}

func (f *Fake) Prepare(ctx context.Context, query string) (backend.Prepared, error) {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Op: "prepare", Query: query})
	err := f.prepareErrs[query]
	f.mu.Unlock()
	if err != nil {
		return backend.Prepared{}, err
	}
	return backend.Prepared{Query: query}, nil
}

func (f *Fake) ExecutePrepared(ctx context.Context, stmt backend.Prepared, params value.Value, fetch backend.Fetch) (backend.Result, error) {
	if err := ctx.Err(); err != nil {
		return backend.Result{}, err
	}
	return result(f.next("execute_prepared", stmt.Query, params), fetch)
}

func (f *Fake) BatchPrepared(ctx context.Context, stmts []backend.Prepared, params []value.Value) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(stmts) != len(params) {
		return dberr.Argument("batch has %d statements and %d parameter sets", len(stmts), len(params))
	}
	return f.next("batch", BatchKey, value.List(params...)).Err
}

func (f *Fake) Datacenters(context.Context) ([]string, error) {
	return append([]string(nil), f.Dcs...), nil
}

func (f *Fake) ClusterInfo(context.Context) (backend.ClusterInfo, error) {
	return f.Info, nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

// Calls returns every recorded invocation.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallCount counts invocations of query, including batches under BatchKey.
func (f *Fake) CallCount(query string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Query == query && c.Op != "prepare" {
			n++
		}
	}
	return n
}

// CloseCount reports how often Close was called.
func (f *Fake) CloseCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

var _ backend.Backend = (*Fake)(nil)
