// Package backend defines the database capability the execution context
// drives, independent of the wire protocol behind it.
package backend

import (
	"context"

	"github.com/torosent/crankdb/internal/value"
)

// Fetch selects how much of a result an operation materializes.
type Fetch int

const (
	// CountRows drains the result and only counts rows.
	CountRows Fetch = iota
	// FetchRows converts every row into a value map.
	FetchRows
)

// Result is the outcome of a single successful attempt.
type Result struct {
	// Rows is only populated for FetchRows. Each row is a KindMap value
	// keyed by column name.
	Rows     []value.Value
	RowCount int
}

// Prepared is a statement registered under a key of an execution context.
// Native carries driver-specific state and is never inspected by callers.
type Prepared struct {
	Query  string
	Native any
}

// ClusterInfo describes the target cluster.
type ClusterInfo struct {
	Name      string
	Version   string
	Available bool
}

// UnavailableClusterInfo is reported when a backend cannot describe itself.
func UnavailableClusterInfo() ClusterInfo {
	return ClusterInfo{Name: "unavailable", Version: "unavailable"}
}

// Value renders the descriptor for workloads.
func (c ClusterInfo) Value() value.Value {
	return value.Map(map[string]value.Value{
		"name":      value.String(c.Name),
		"version":   value.String(c.Version),
		"available": value.Bool(c.Available),
	})
}

// Backend is a connected database. Implementations must be safe for
// concurrent use; one Backend is shared by every worker.
//
// Every error returned is a *dberr.Error whose kind tells the retry
// controller whether the failure is transient.
type Backend interface {
	Name() string
	// Execute runs an ad-hoc statement. params is Null, a list bound
	// positionally or a map bound by name.
	Execute(ctx context.Context, query string, params value.Value, fetch Fetch) (Result, error)
	Prepare(ctx context.Context, query string) (Prepared, error)
	ExecutePrepared(ctx context.Context, stmt Prepared, params value.Value, fetch Fetch) (Result, error)
	// BatchPrepared executes the statements as one batch. len(stmts) ==
	// len(params) is guaranteed by the caller.
	BatchPrepared(ctx context.Context, stmts []Prepared, params []value.Value) error
	Datacenters(ctx context.Context) ([]string, error)
	ClusterInfo(ctx context.Context) (ClusterInfo, error)
	Close() error
}
