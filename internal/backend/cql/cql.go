// Package cql implements the backend capability for Cassandra and ScyllaDB
// using gocql.
package cql

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/gocql/gocql"

	"github.com/torosent/crankdb/internal/backend"
	"github.com/torosent/crankdb/internal/dberr"
	"github.com/torosent/crankdb/internal/value"
)

// Config holds connection settings.
type Config struct {
	Nodes             []string
	Keyspace          string
	Username          string
	Password          string
	Datacenter        string
	Consistency       gocql.Consistency
	SerialConsistency gocql.SerialConsistency
	Timeout           time.Duration
	ConnectTimeout    time.Duration
	NumConns          int
	PageSize          int
}

// Backend is a connected gocql session.
type Backend struct {
	session *gocql.Session
	cfg     Config
}

// Connect opens a session to the cluster. Connection failures are reported
// as ConnectionError.
func Connect(ctx context.Context, cfg Config) (*Backend, error) {
	if len(cfg.Nodes) == 0 {
		return nil, dberr.Argument("no cluster nodes configured")
	}
	cluster := gocql.NewCluster(cfg.Nodes...)
	cluster.Keyspace = cfg.Keyspace
	cluster.Consistency = cfg.Consistency
	cluster.SerialConsistency = cfg.SerialConsistency
	if cfg.Timeout > 0 {
		cluster.Timeout = cfg.Timeout
	}
	if cfg.ConnectTimeout > 0 {
		cluster.ConnectTimeout = cfg.ConnectTimeout
	}
	if cfg.NumConns > 0 {
		cluster.NumConns = cfg.NumConns
	}
	if cfg.PageSize > 0 {
		cluster.PageSize = cfg.PageSize
	}
	if cfg.Username != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: cfg.Username,
			Password: cfg.Password,
		}
	}
	if cfg.Datacenter != "" {
		cluster.PoolConfig.HostSelectionPolicy = gocql.TokenAwareHostPolicy(gocql.DCAwareRoundRobinPolicy(cfg.Datacenter))
	} else {
		cluster.PoolConfig.HostSelectionPolicy = gocql.TokenAwareHostPolicy(gocql.RoundRobinHostPolicy())
	}

	type result struct {
		session *gocql.Session
		err     error
	}
	done := make(chan result, 1)
	go func() {
		s, err := cluster.CreateSession()
		done <- result{s, err}
	}()
	select {
	case <-ctx.Done():
		go func() {
			if r := <-done; r.session != nil {
				r.session.Close()
			}
		}()
		return nil, ctx.Err()
	case r := <-done:
		if r.err != nil {
			return nil, dberr.Wrap(dberr.KindConnection, r.err, "connect to %v", cfg.Nodes)
		}
		return &Backend{session: r.session, cfg: cfg}, nil
	}
}

func (b *Backend) Name() string { return "cql" }

func (b *Backend) query(ctx context.Context, stmt string, params value.Value) (*gocql.Query, error) {
	args, err := BindParams(params)
	if err != nil {
		return nil, err
	}
	return b.session.Query(stmt, args...).WithContext(ctx), nil
}

func (b *Backend) Execute(ctx context.Context, stmt string, params value.Value, fetch backend.Fetch) (backend.Result, error) {
	q, err := b.query(ctx, stmt, params)
	if err != nil {
		return backend.Result{}, err
	}
	return run(q, stmt, fetch)
}

func run(q *gocql.Query, stmt string, fetch backend.Fetch) (backend.Result, error) {
	iter := q.Iter()
	var res backend.Result
	if fetch == backend.FetchRows {
		for {
			row := make(map[string]any)
			if !iter.MapScan(row) {
				break
			}
			res.Rows = append(res.Rows, RowValue(row))
		}
		res.RowCount = len(res.Rows)
	} else {
		scanner := iter.Scanner()
		for scanner.Next() {
			res.RowCount++
		}
		if err := scanner.Err(); err != nil {
			return backend.Result{}, classify(err, stmt)
		}
	}
	if err := iter.Close(); err != nil {
		return backend.Result{}, classify(err, stmt)
	}
	return res, nil
}

// Prepare registers the statement. gocql prepares statements on first use
// and caches them per connection, so no round trip is made here.
func (b *Backend) Prepare(ctx context.Context, stmt string) (backend.Prepared, error) {
	if stmt == "" {
		return backend.Prepared{}, dberr.Argument("empty statement")
	}
	return backend.Prepared{Query: stmt}, nil
}

func (b *Backend) ExecutePrepared(ctx context.Context, stmt backend.Prepared, params value.Value, fetch backend.Fetch) (backend.Result, error) {
	return b.Execute(ctx, stmt.Query, params, fetch)
}

func (b *Backend) BatchPrepared(ctx context.Context, stmts []backend.Prepared, params []value.Value) error {
	batch := b.session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.SetConsistency(b.cfg.Consistency)
	batch.SerialConsistency(b.cfg.SerialConsistency)
	for i, stmt := range stmts {
		args, err := BindParams(params[i])
		if err != nil {
			return err
		}
		batch.Query(stmt.Query, args...)
	}
	return classify(b.session.ExecuteBatch(batch), fmt.Sprintf("batch of %d statements", len(stmts)))
}

// Datacenters lists the distinct datacenters of the local node and its peers.
func (b *Backend) Datacenters(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	for _, stmt := range []string{
		"SELECT data_center FROM system.local",
		"SELECT data_center FROM system.peers",
	} {
		iter := b.session.Query(stmt).WithContext(ctx).Iter()
		var dc string
		for iter.Scan(&dc) {
			seen[dc] = struct{}{}
		}
		if err := iter.Close(); err != nil {
			return nil, classify(err, stmt)
		}
	}
	dcs := make([]string, 0, len(seen))
	for dc := range seen {
		dcs = append(dcs, dc)
	}
	sort.Strings(dcs)
	return dcs, nil
}

func (b *Backend) ClusterInfo(ctx context.Context) (backend.ClusterInfo, error) {
	const stmt = "SELECT cluster_name, release_version FROM system.local"
	var info backend.ClusterInfo
	if err := b.session.Query(stmt).WithContext(ctx).Scan(&info.Name, &info.Version); err != nil {
		return backend.UnavailableClusterInfo(), classify(err, stmt)
	}
	info.Available = true
	return info, nil
}

func (b *Backend) Close() error {
	b.session.Close()
	return nil
}

var _ backend.Backend = (*Backend)(nil)
