package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/torosent/crankdb/internal/backend"
	"github.com/torosent/crankdb/internal/backend/cql"
	"github.com/torosent/crankdb/internal/backend/dynamo"
	"github.com/torosent/crankdb/internal/config"
	"github.com/torosent/crankdb/internal/logging"
	"github.com/torosent/crankdb/internal/metrics"
	"github.com/torosent/crankdb/internal/output"
	"github.com/torosent/crankdb/internal/plan"
	"github.com/torosent/crankdb/internal/runner"
	"github.com/torosent/crankdb/internal/threshold"
	"github.com/torosent/crankdb/internal/tracing"
	"github.com/torosent/crankdb/internal/workload"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	loader := config.NewLoader()
	cfg, err := loader.Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	runID := ulid.Make().String()
	log = log.With("run_id", runID)

	p, err := plan.Load(cfg.Workload, cfg.Params)
	if err != nil {
		return err
	}
	thresholds, err := threshold.ParseMultiple(cfg.Thresholds)
	if err != nil {
		return err
	}

	provider, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
		defer stop()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			log.Warnw("tracing shutdown failed", "error", err)
		}
	}()

	b, err := connect(ctx, cfg, log)
	if err != nil {
		return err
	}
	opts, err := workloadOptions(cfg)
	if err != nil {
		_ = b.Close()
		return err
	}
	opts.Tracer = provider.Tracer()
	opts.Logger = log
	tmpl := workload.New(backend.NewHandle(b), opts)
	defer tmpl.Close()

	info := tmpl.ClusterInfo(ctx)
	summary := output.Summary{
		RunID:    runID,
		Backend:  tmpl.BackendName(),
		Cluster:  info.Name,
		Version:  info.Version,
		Workload: cfg.Workload,
	}
	log.Infow("connected", "backend", summary.Backend, "cluster", info.Name, "version", info.Version)

	if err := p.Setup(ctx, tmpl); err != nil {
		return err
	}
	if !cfg.SkipSchema {
		if err := p.Schema(ctx, tmpl); err != nil {
			return err
		}
	}
	tmpl.SetLoadCycleCount(cfg.LoadCycles)

	exporter := metrics.NewExporter(summary.Backend, runID)
	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr, exporter, log)
		defer func() {
			shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
			defer stop()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if p.HasLoad() && cfg.LoadCycles > 0 {
		log.Infow("load phase started", "cycles", cfg.LoadCycles)
		res, err := runPhase(ctx, p, tmpl, plan.PhaseLoad, runner.Options{
			Concurrency: cfg.Concurrency,
			Cycles:      cfg.LoadCycles,
			Collector:   metrics.NewCollector(),
		})
		if err != nil {
			return err
		}
		log.Infow("load phase finished", "cycles", res.Cycles, "errors", res.Errors, "duration", res.Duration)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	collector := metrics.NewCollector()
	var progress *output.ProgressReporter
	if !cfg.JSONOutput {
		progress = output.NewProgressReporter(os.Stdout)
	}
	onSample := func(window metrics.Stats) {
		exporter.Observe(window)
		if progress != nil {
			progress.Report(window)
		}
	}

	log.Infow("run phase started", "concurrency", cfg.Concurrency, "rate", cfg.Rate, "cycles", cfg.Cycles, "duration", cfg.Duration)
	res, err := runPhase(ctx, p, tmpl, plan.PhaseRun, runner.Options{
		Concurrency:   cfg.Concurrency,
		Cycles:        cfg.Cycles,
		StartCycle:    cfg.LoadCycles,
		Duration:      cfg.Duration,
		RatePerSecond: cfg.Rate,
		ArrivalModel:  toRunnerArrivalModel(cfg.Arrival),
		Sampling:      cfg.Sampling,
		Collector:     collector,
		OnSample:      onSample,
	})
	if err != nil {
		return err
	}
	stats := collector.Stats(res.Duration)
	results := threshold.NewEvaluator(thresholds).Evaluate(stats)

	if cfg.JSONOutput {
		if err := output.PrintJSONReport(os.Stdout, summary, stats, results); err != nil {
			return err
		}
	} else {
		output.PrintReport(os.Stdout, summary, stats)
		output.PrintThresholds(os.Stdout, results)
	}

	if res.Errors > 0 {
		return fmt.Errorf("%d cycles failed", res.Errors)
	}
	if failed := threshold.Failed(results); failed > 0 {
		return fmt.Errorf("%d of %d thresholds failed", failed, len(results))
	}
	return nil
}

// connect opens the backend named by cfg.
func connect(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) (backend.Backend, error) {
	switch cfg.Backend {
	case config.BackendDynamoDB, config.BackendAlternator:
		consistency, err := dynamo.ParseConsistency(cfg.DynamoDB.Consistency)
		if err != nil {
			return nil, err
		}
		b, err := dynamo.Connect(ctx, dynamo.Config{
			Region:      cfg.DynamoDB.Region,
			Endpoint:    cfg.DynamoDB.Endpoint,
			AccessKey:   cfg.DynamoDB.AccessKey,
			SecretKey:   cfg.DynamoDB.SecretKey,
			Consistency: consistency,
			Timeout:     cfg.Timeout,
			Logger:      log.Named("dynamodb"),
		})
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		consistency, err := cql.ParseConsistency(cfg.CQL.Consistency)
		if err != nil {
			return nil, err
		}
		serial, err := cql.ParseSerialConsistency(cfg.CQL.SerialConsistency)
		if err != nil {
			return nil, err
		}
		b, err := cql.Connect(ctx, cql.Config{
			Nodes:             cfg.CQL.Nodes,
			Keyspace:          cfg.CQL.Keyspace,
			Username:          cfg.CQL.Username,
			Password:          cfg.CQL.Password,
			Datacenter:        cfg.CQL.Datacenter,
			Consistency:       consistency,
			SerialConsistency: serial,
			Timeout:           cfg.Timeout,
			ConnectTimeout:    cfg.Timeout,
			NumConns:          cfg.CQL.Connections,
			PageSize:          cfg.CQL.PageSize,
		})
		if err != nil {
			return nil, err
		}
		return b, nil
	}
}

func workloadOptions(cfg *config.Config) (workload.Options, error) {
	interval, err := cfg.Interval()
	if err != nil {
		return workload.Options{}, err
	}
	strategy, err := workload.ParseValidationStrategy(cfg.ValidationStrategy)
	if err != nil {
		return workload.Options{}, err
	}
	return workload.Options{
		RetryNumber:        cfg.RetryNumber,
		RetryInterval:      interval,
		ValidationStrategy: strategy,
	}, nil
}

// runPhase runs one phase with a cloned execution context per worker.
func runPhase(ctx context.Context, p *plan.Plan, tmpl *workload.Context, phase plan.Phase, opts runner.Options) (runner.Result, error) {
	opts.Workers = func(int) (runner.Worker, error) {
		c, err := tmpl.CloneForWorker()
		if err != nil {
			return nil, err
		}
		return p.Worker(c, phase), nil
	}
	opts.Collector.Start()
	return runner.New(opts).Run(ctx)
}

func serveMetrics(addr string, exporter *metrics.Exporter, log *zap.SugaredLogger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", exporter.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: shutdownTimeout}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorw("metrics server failed", "addr", addr, "error", err)
		}
	}()
	log.Infow("serving metrics", "addr", addr)
	return srv
}

func toRunnerArrivalModel(model config.ArrivalModel) runner.ArrivalModel {
	switch strings.ToLower(string(model)) {
	case string(config.ArrivalModelPoisson):
		return runner.ArrivalModelPoisson
	default:
		return runner.ArrivalModelUniform
	}
}
