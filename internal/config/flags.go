package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// RegisterFlags registers all CLI flags to a cobra command.
func RegisterFlags(cmd *cobra.Command) {
	configureFlags(cmd.Flags())
}

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "crankdb",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	// Workload flags
	flags.StringP("workload", "w", "", "Path to the workload plan (YAML)")
	flags.StringToStringP("param", "P", nil, "Workload parameter in key=value form (repeatable)")
	flags.String("backend", string(BackendCQL), "Database backend: 'cql', 'dynamodb' or 'alternator'")
	flags.Bool("skip-schema", false, "Do not run the workload's schema steps")

	// Load control flags
	flags.IntP("concurrency", "c", 1, "Number of concurrent workers")
	flags.Float64P("rate", "r", 0, "Cycles per second limit (0 means unlimited)")
	flags.DurationP("duration", "d", 60*time.Second, "How long to run the measured phase (0 means until cycles are done)")
	flags.Int64P("cycles", "n", 0, "Number of measured cycles (0 means unlimited)")
	flags.Int64("load-cycles", 0, "Number of load phase cycles run before measuring")
	flags.String("arrival-model", string(ArrivalModelUniform), "Arrival model to use when pacing cycles (uniform or poisson)")
	flags.Duration("timeout", 5*time.Second, "Per-request timeout")
	flags.Int("retry-number", 0, "Retries per operation after a transient failure")
	flags.String("retry-interval", "100ms", "Delay between retries: fixed ('100ms') or backoff bounds ('100ms,5s')")
	flags.String("validation-strategy", "fail", "What a row count mismatch does: 'fail' or 'ignore'")

	// CQL flags
	flags.StringSlice("nodes", []string{"localhost:9042"}, "CQL contact points (repeatable)")
	flags.StringP("keyspace", "k", "", "Default CQL keyspace")
	flags.StringP("username", "u", "", "CQL username")
	flags.String("password", "", "CQL password")
	flags.String("datacenter", "", "Local datacenter for DC-aware routing")
	flags.String("consistency", "", "Consistency level (CQL: ONE, QUORUM, LOCAL_QUORUM, ...; DynamoDB: EVENTUAL or STRONG)")
	flags.String("serial-consistency", "", "CQL serial consistency (SERIAL or LOCAL_SERIAL)")
	flags.Int("connections", 0, "CQL connections per host (0 uses the driver default)")
	flags.Int("page-size", 0, "CQL page size (0 uses the driver default)")

	// DynamoDB flags
	flags.String("region", "", "AWS region for DynamoDB")
	flags.String("endpoint", "", "DynamoDB endpoint override (required for Alternator)")
	flags.String("access-key", "", "AWS access key id")
	flags.String("secret-key", "", "AWS secret access key")

	// Output flags
	flags.Bool("json-output", false, "Emit JSON formatted output")
	flags.Duration("sampling", time.Second, "Progress sampling interval (0 disables progress output)")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. ':9090')")
	flags.String("log-level", "info", "Log level: debug, info, warn or error")
	flags.String("log-format", "console", "Log format: 'console' or 'json'")
	flags.StringArray("threshold", nil, "Pass/fail assertion on the final statistics, e.g. 'op_duration:p99 < 50' (repeatable)")
	flags.String("config", "", "Path to configuration file (JSON or YAML)")

	// Tracing flags
	flags.String("tracing-endpoint", "", "OTLP collector endpoint (enables tracing)")
	flags.String("tracing-protocol", "grpc", "OTLP protocol: 'grpc' or 'http'")
	flags.String("tracing-service-name", "", "Service name reported on spans")
	flags.Float64("tracing-sample-rate", 1.0, "Fraction of operations traced")
	flags.Bool("tracing-insecure", false, "Disable TLS for the OTLP exporter")
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\nFlags:\n", cmd.UseLine())
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// applyFlagOverrides applies command-line flag values to the config, overriding
// values from the config file.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	var err error
	str := func(name string, dst *string) {
		if err != nil || !fs.Changed(name) {
			return
		}
		var v string
		if v, err = fs.GetString(name); err == nil {
			*dst = strings.TrimSpace(v)
		}
	}
	integer := func(name string, dst *int) {
		if err != nil || !fs.Changed(name) {
			return
		}
		var v int
		if v, err = fs.GetInt(name); err == nil {
			*dst = v
		}
	}
	int64Flag := func(name string, dst *int64) {
		if err != nil || !fs.Changed(name) {
			return
		}
		var v int64
		if v, err = fs.GetInt64(name); err == nil {
			*dst = v
		}
	}
	float := func(name string, dst *float64) {
		if err != nil || !fs.Changed(name) {
			return
		}
		var v float64
		if v, err = fs.GetFloat64(name); err == nil {
			*dst = v
		}
	}
	duration := func(name string, dst *time.Duration) {
		if err != nil || !fs.Changed(name) {
			return
		}
		var v time.Duration
		if v, err = fs.GetDuration(name); err == nil {
			*dst = v
		}
	}
	boolean := func(name string, dst *bool) {
		if err != nil || !fs.Changed(name) {
			return
		}
		var v bool
		if v, err = fs.GetBool(name); err == nil {
			*dst = v
		}
	}

	str("workload", &cfg.Workload)
	if fs.Changed("backend") {
		var v string
		str("backend", &v)
		cfg.Backend = Backend(strings.ToLower(v))
	}
	boolean("skip-schema", &cfg.SkipSchema)
	if err == nil && fs.Changed("param") {
		var params map[string]string
		if params, err = fs.GetStringToString("param"); err == nil {
			if cfg.Params == nil {
				cfg.Params = map[string]string{}
			}
			for k, v := range params {
				cfg.Params[k] = v
			}
		}
	}

	integer("concurrency", &cfg.Concurrency)
	float("rate", &cfg.Rate)
	duration("duration", &cfg.Duration)
	int64Flag("cycles", &cfg.Cycles)
	int64Flag("load-cycles", &cfg.LoadCycles)
	if fs.Changed("arrival-model") {
		var v string
		str("arrival-model", &v)
		cfg.Arrival = ArrivalModel(strings.ToLower(v))
	}
	duration("timeout", &cfg.Timeout)
	integer("retry-number", &cfg.RetryNumber)
	str("retry-interval", &cfg.RetryInterval)
	str("validation-strategy", &cfg.ValidationStrategy)

	if err == nil && fs.Changed("nodes") {
		var nodes []string
		if nodes, err = fs.GetStringSlice("nodes"); err == nil {
			cfg.CQL.Nodes = nodes
		}
	}
	str("keyspace", &cfg.CQL.Keyspace)
	str("username", &cfg.CQL.Username)
	str("password", &cfg.CQL.Password)
	str("datacenter", &cfg.CQL.Datacenter)
	if fs.Changed("consistency") {
		var v string
		str("consistency", &v)
		cfg.CQL.Consistency = v
		cfg.DynamoDB.Consistency = v
	}
	str("serial-consistency", &cfg.CQL.SerialConsistency)
	integer("connections", &cfg.CQL.Connections)
	integer("page-size", &cfg.CQL.PageSize)

	str("region", &cfg.DynamoDB.Region)
	str("endpoint", &cfg.DynamoDB.Endpoint)
	str("access-key", &cfg.DynamoDB.AccessKey)
	str("secret-key", &cfg.DynamoDB.SecretKey)

	boolean("json-output", &cfg.JSONOutput)
	duration("sampling", &cfg.Sampling)
	str("metrics-addr", &cfg.MetricsAddr)
	str("log-level", &cfg.LogLevel)
	str("log-format", &cfg.LogFormat)
	if err == nil && fs.Changed("threshold") {
		var thresholds []string
		if thresholds, err = fs.GetStringArray("threshold"); err == nil {
			cfg.Thresholds = append(cfg.Thresholds, thresholds...)
		}
	}

	str("tracing-endpoint", &cfg.Tracing.Endpoint)
	str("tracing-protocol", &cfg.Tracing.Protocol)
	str("tracing-service-name", &cfg.Tracing.ServiceName)
	float("tracing-sample-rate", &cfg.Tracing.SampleRate)
	boolean("tracing-insecure", &cfg.Tracing.Insecure)

	return err
}
