// Package config loads and validates crankdb run settings from a config
// file and command-line flags.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/torosent/crankdb/internal/backend/cql"
	"github.com/torosent/crankdb/internal/backend/dynamo"
	"github.com/torosent/crankdb/internal/retry"
	"github.com/torosent/crankdb/internal/threshold"
)

type Backend string

const (
	BackendCQL        Backend = "cql"
	BackendDynamoDB   Backend = "dynamodb"
	BackendAlternator Backend = "alternator"
)

type ArrivalModel string

const (
	ArrivalModelUniform ArrivalModel = "uniform"
	ArrivalModelPoisson ArrivalModel = "poisson"
)

type Config struct {
	Backend            Backend           `mapstructure:"backend"`
	Workload           string            `mapstructure:"workload"`
	Params             map[string]string `mapstructure:"params"`
	Concurrency        int               `mapstructure:"concurrency"`
	Rate               float64           `mapstructure:"rate"`
	Arrival            ArrivalModel      `mapstructure:"arrival_model"`
	Duration           time.Duration     `mapstructure:"duration"`
	Cycles             int64             `mapstructure:"cycles"`
	LoadCycles         int64             `mapstructure:"load_cycles"`
	Timeout            time.Duration     `mapstructure:"timeout"`
	RetryNumber        int               `mapstructure:"retry_number"`
	RetryInterval      string            `mapstructure:"retry_interval"`
	ValidationStrategy string            `mapstructure:"validation_strategy"`
	Sampling           time.Duration     `mapstructure:"sampling"`
	JSONOutput         bool              `mapstructure:"json_output"`
	MetricsAddr        string            `mapstructure:"metrics_addr"`
	LogLevel           string            `mapstructure:"log_level"`
	LogFormat          string            `mapstructure:"log_format"`
	SkipSchema         bool              `mapstructure:"skip_schema"`
	Thresholds         []string          `mapstructure:"thresholds"`
	ConfigFile         string            `mapstructure:"-"`
	CQL                CQLConfig         `mapstructure:"cql"`
	DynamoDB           DynamoDBConfig    `mapstructure:"dynamodb"`
	Tracing            TracingConfig     `mapstructure:"tracing"`
}

type CQLConfig struct {
	Nodes             []string `mapstructure:"nodes"`
	Keyspace          string   `mapstructure:"keyspace"`
	Username          string   `mapstructure:"username"`
	Password          string   `mapstructure:"password"`
	Datacenter        string   `mapstructure:"datacenter"`
	Consistency       string   `mapstructure:"consistency"`
	SerialConsistency string   `mapstructure:"serial_consistency"`
	Connections       int      `mapstructure:"connections"`
	PageSize          int      `mapstructure:"page_size"`
}

type DynamoDBConfig struct {
	Region      string `mapstructure:"region"`
	Endpoint    string `mapstructure:"endpoint"`
	AccessKey   string `mapstructure:"access_key"`
	SecretKey   string `mapstructure:"secret_key"`
	Consistency string `mapstructure:"consistency"`
}

// TracingConfig configures OpenTelemetry span export.
type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"` // "grpc" or "http"
	ServiceName string  `mapstructure:"service_name"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Insecure    bool    `mapstructure:"insecure"`
}

// Enabled reports whether an OTLP endpoint is configured, either directly or
// through OTEL_EXPORTER_OTLP_ENDPOINT.
func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != "" || os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != ""
}

// Interval returns the parsed retry interval.
func (c Config) Interval() (retry.Interval, error) {
	if strings.TrimSpace(c.RetryInterval) == "" {
		return retry.DefaultInterval, nil
	}
	return retry.ParseInterval(c.RetryInterval)
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

func (c Config) Validate() error {
	var issues []string

	if strings.TrimSpace(c.Workload) == "" {
		issues = append(issues, "workload is required")
	}
	if c.Concurrency <= 0 {
		issues = append(issues, "concurrency must be greater than zero")
	}
	if c.Rate < 0 {
		issues = append(issues, "rate must be non-negative")
	}
	if c.Duration < 0 {
		issues = append(issues, "duration must be non-negative")
	}
	if c.Cycles < 0 {
		issues = append(issues, "cycles must be non-negative")
	}
	if c.LoadCycles < 0 {
		issues = append(issues, "load_cycles must be non-negative")
	}
	if c.Cycles == 0 && c.Duration == 0 {
		issues = append(issues, "either cycles or duration must be set")
	}
	if c.Timeout < 0 {
		issues = append(issues, "timeout must be non-negative")
	}
	if c.Sampling < 0 {
		issues = append(issues, "sampling must be non-negative")
	}
	if c.RetryNumber < 0 {
		issues = append(issues, "retry_number must be non-negative")
	}
	if _, err := c.Interval(); err != nil {
		issues = append(issues, fmt.Sprintf("retry_interval: %v", err))
	}
	switch strings.ToLower(strings.TrimSpace(c.ValidationStrategy)) {
	case "", "fail", "ignore":
	default:
		issues = append(issues, fmt.Sprintf("validation_strategy must be fail or ignore, got %q", c.ValidationStrategy))
	}
	switch c.Arrival {
	case "", ArrivalModelUniform, ArrivalModelPoisson:
	default:
		issues = append(issues, fmt.Sprintf("arrival_model must be uniform or poisson, got %q", c.Arrival))
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "console", "json":
	default:
		issues = append(issues, fmt.Sprintf("log_format must be console or json, got %q", c.LogFormat))
	}

	switch c.Backend {
	case BackendCQL:
		issues = append(issues, validateCQLConfig(c.CQL)...)
	case BackendDynamoDB, BackendAlternator:
		issues = append(issues, validateDynamoDBConfig(c.Backend, c.DynamoDB)...)
	default:
		issues = append(issues, fmt.Sprintf("backend must be cql, dynamodb or alternator, got %q", c.Backend))
	}

	issues = append(issues, validateTracingConfig(c.Tracing)...)

	if _, err := threshold.ParseMultiple(c.Thresholds); err != nil {
		issues = append(issues, err.Error())
	}

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

func validateCQLConfig(c CQLConfig) []string {
	var issues []string
	if len(c.Nodes) == 0 {
		issues = append(issues, "cql.nodes must list at least one node")
	}
	for i, n := range c.Nodes {
		if strings.TrimSpace(n) == "" {
			issues = append(issues, fmt.Sprintf("cql.nodes[%d] is empty", i))
		}
	}
	if _, err := cql.ParseConsistency(c.Consistency); err != nil {
		issues = append(issues, fmt.Sprintf("cql.consistency: %v", err))
	}
	if _, err := cql.ParseSerialConsistency(c.SerialConsistency); err != nil {
		issues = append(issues, fmt.Sprintf("cql.serial_consistency: %v", err))
	}
	if c.Connections < 0 {
		issues = append(issues, "cql.connections must be non-negative")
	}
	if c.PageSize < 0 {
		issues = append(issues, "cql.page_size must be non-negative")
	}
	if c.Password != "" && c.Username == "" {
		issues = append(issues, "cql.password requires cql.username")
	}
	return issues
}

func validateDynamoDBConfig(b Backend, c DynamoDBConfig) []string {
	var issues []string
	if b == BackendAlternator && strings.TrimSpace(c.Endpoint) == "" {
		issues = append(issues, "dynamodb.endpoint is required for the alternator backend")
	}
	if (c.AccessKey == "") != (c.SecretKey == "") {
		issues = append(issues, "dynamodb.access_key and dynamodb.secret_key must be set together")
	}
	if _, err := dynamo.ParseConsistency(c.Consistency); err != nil {
		issues = append(issues, fmt.Sprintf("dynamodb.consistency: %v", err))
	}
	return issues
}

func validateTracingConfig(t TracingConfig) []string {
	var issues []string
	switch strings.ToLower(t.Protocol) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing.protocol must be grpc or http, got %q", t.Protocol))
	}
	if t.SampleRate < 0 || t.SampleRate > 1 {
		issues = append(issues, fmt.Sprintf("tracing.sample_rate must be between 0.0 and 1.0, got %g", t.SampleRate))
	}
	return issues
}
