package config

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader handles loading configuration from files and command-line arguments.
type Loader struct{}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Defaults returns the configuration used when neither a file nor a flag
// sets a value. It matches the flag defaults.
func Defaults() *Config {
	return &Config{
		Backend:            BackendCQL,
		Params:             map[string]string{},
		Concurrency:        1,
		Arrival:            ArrivalModelUniform,
		Duration:           60 * time.Second,
		Timeout:            5 * time.Second,
		RetryInterval:      "100ms",
		ValidationStrategy: "fail",
		Sampling:           time.Second,
		LogLevel:           "info",
		LogFormat:          "console",
		CQL:                CQLConfig{Nodes: []string{"localhost:9042"}},
		Tracing:            TracingConfig{Protocol: "grpc", SampleRate: 1.0},
	}
}

// Load parses command-line arguments and configuration files to produce a Config.
// A single positional argument names the workload.
func (Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
	}

	// If no arguments provided and no config file, show help/usage
	configPath := flagSet.Lookup("config").Value.String()
	if len(args) == 0 && configPath == "" {
		displayHelp(cmd)
		return nil, ErrHelpRequested
	}
	cfgViper := viper.New()
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	cfg := Defaults()
	cfg.ConfigFile = configPath

	if err := applyConfigSettings(cfg, cfgViper.AllSettings()); err != nil {
		return nil, err
	}
	if err := applyFlagOverrides(cfg, flagSet); err != nil {
		return nil, err
	}

	switch rest := flagSet.Args(); {
	case len(rest) == 1 && cfg.Workload == "":
		cfg.Workload = rest[0]
	case len(rest) > 0:
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(rest, " "))
	}
	return cfg, nil
}

// settingsReader applies typed settings from one level of a config file.
// Keys are matched case-insensitively, a null value counts as unset, and the
// first conversion error is kept with the dotted path of its key.
type settingsReader struct {
	settings map[string]interface{}
	prefix   string
	err      error
}

func newSettingsReader(raw map[string]interface{}, prefix string) *settingsReader {
	settings := make(map[string]interface{}, len(raw))
	for k, v := range raw {
		settings[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return &settingsReader{settings: settings, prefix: prefix}
}

func (r *settingsReader) lookup(key string) (interface{}, bool) {
	if r.err != nil {
		return nil, false
	}
	v, ok := r.settings[key]
	return v, ok && v != nil
}

func (r *settingsReader) fail(key string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("%s%s: %w", r.prefix, key, err)
	}
}

func (r *settingsReader) str(key string, dst *string) {
	if raw, ok := r.lookup(key); ok {
		v, err := scalarString(raw)
		if err != nil {
			r.fail(key, err)
			return
		}
		*dst = strings.TrimSpace(v)
	}
}

func (r *settingsReader) integer(key string, dst *int) {
	var v int64
	if _, ok := r.lookup(key); ok {
		r.integer64(key, &v)
		if r.err == nil {
			*dst = int(v)
		}
	}
}

func (r *settingsReader) integer64(key string, dst *int64) {
	if raw, ok := r.lookup(key); ok {
		v, err := wholeNumber(raw)
		if err != nil {
			r.fail(key, err)
			return
		}
		*dst = v
	}
}

func (r *settingsReader) float(key string, dst *float64) {
	if raw, ok := r.lookup(key); ok {
		v, err := number(raw)
		if err != nil {
			r.fail(key, err)
			return
		}
		*dst = v
	}
}

func (r *settingsReader) boolean(key string, dst *bool) {
	if raw, ok := r.lookup(key); ok {
		switch v := raw.(type) {
		case bool:
			*dst = v
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				r.fail(key, fmt.Errorf("expected true or false, got %q", v))
				return
			}
			*dst = b
		default:
			r.fail(key, fmt.Errorf("expected true or false, got %T", raw))
		}
	}
}

// duration accepts Go duration strings or a number of seconds.
func (r *settingsReader) duration(key string, dst *time.Duration) {
	raw, ok := r.lookup(key)
	if !ok {
		return
	}
	switch v := raw.(type) {
	case time.Duration:
		*dst = v
	case string:
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			r.fail(key, fmt.Errorf("expected a duration such as 30s, got %q", v))
			return
		}
		*dst = d
	default:
		secs, err := number(raw)
		if err != nil {
			r.fail(key, fmt.Errorf("expected a duration such as 30s, got %T", raw))
			return
		}
		*dst = time.Duration(secs * float64(time.Second))
	}
}

// list reads a list of scalars. A single scalar is a one-item list.
func (r *settingsReader) list(key string, dst *[]string) {
	raw, ok := r.lookup(key)
	if !ok {
		return
	}
	var items []interface{}
	switch v := raw.(type) {
	case []string:
		*dst = append([]string(nil), v...)
		return
	case []interface{}:
		items = v
	default:
		items = []interface{}{v}
	}
	out := make([]string, len(items))
	for i, item := range items {
		s, err := scalarString(item)
		if err != nil {
			r.fail(fmt.Sprintf("%s[%d]", key, i), err)
			return
		}
		out[i] = strings.TrimSpace(s)
	}
	*dst = out
}

// merge copies a mapping of scalars into dst, keeping existing entries that
// the mapping does not name. Keys keep their case.
func (r *settingsReader) merge(key string, dst map[string]string) {
	raw, ok := r.lookup(key)
	if !ok {
		return
	}
	m, err := mapping(raw)
	if err != nil {
		r.fail(key, err)
		return
	}
	for k, v := range m {
		s, err := scalarString(v)
		if err != nil {
			r.fail(key+"."+k, err)
			return
		}
		dst[k] = s
	}
}

// section returns a reader for a nested mapping. A missing section reads as
// empty.
func (r *settingsReader) section(key string) *settingsReader {
	sub := newSettingsReader(nil, r.prefix+key+".")
	if raw, ok := r.lookup(key); ok {
		m, err := mapping(raw)
		if err != nil {
			r.fail(key, err)
		} else {
			sub = newSettingsReader(m, sub.prefix)
		}
	}
	sub.err = r.err
	return sub
}

// scalarString renders a string, number or boolean setting.
func scalarString(raw interface{}) (string, error) {
	switch v := raw.(type) {
	case string:
		return v, nil
	case bool, int, int64, uint64, float64:
		return fmt.Sprint(v), nil
	case nil:
		return "", nil
	}
	return "", fmt.Errorf("expected a single value, got %T", raw)
}

func number(raw interface{}) (float64, error) {
	switch v := raw.(type) {
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case float64:
		return v, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("expected a number, got %q", v)
		}
		return f, nil
	}
	return 0, fmt.Errorf("expected a number, got %T", raw)
}

func wholeNumber(raw interface{}) (int64, error) {
	switch v := raw.(type) {
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, fmt.Errorf("%d is too large", v)
		}
		return int64(v), nil
	case float64:
		if v != math.Trunc(v) || math.Abs(v) > 1<<53 {
			return 0, fmt.Errorf("expected a whole number, got %v", v)
		}
		return int64(v), nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("expected a whole number, got %q", v)
		}
		return n, nil
	}
	return 0, fmt.Errorf("expected a whole number, got %T", raw)
}

// mapping accepts the map shapes viper hands back for JSON and YAML.
func mapping(raw interface{}) (map[string]interface{}, error) {
	switch v := raw.(type) {
	case map[string]interface{}:
		return v, nil
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, val := range v {
			key := strings.TrimSpace(fmt.Sprint(k))
			if key == "" {
				return nil, errors.New("empty key")
			}
			out[key] = val
		}
		return out, nil
	}
	return nil, fmt.Errorf("expected a mapping, got %T", raw)
}

// applyConfigSettings applies settings from a config file to the Config struct.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}
	r := newSettingsReader(settings, "")

	var backend string
	r.str("backend", &backend)
	if backend != "" {
		cfg.Backend = Backend(strings.ToLower(backend))
	}
	r.str("workload", &cfg.Workload)
	if cfg.Params == nil {
		cfg.Params = map[string]string{}
	}
	r.merge("params", cfg.Params)
	r.boolean("skip_schema", &cfg.SkipSchema)

	r.integer("concurrency", &cfg.Concurrency)
	r.float("rate", &cfg.Rate)
	var arrival string
	r.str("arrival_model", &arrival)
	if arrival != "" {
		cfg.Arrival = ArrivalModel(strings.ToLower(arrival))
	}
	r.duration("duration", &cfg.Duration)
	r.integer64("cycles", &cfg.Cycles)
	r.integer64("load_cycles", &cfg.LoadCycles)
	r.duration("timeout", &cfg.Timeout)
	r.integer("retry_number", &cfg.RetryNumber)
	r.str("retry_interval", &cfg.RetryInterval)
	r.str("validation_strategy", &cfg.ValidationStrategy)
	r.duration("sampling", &cfg.Sampling)
	r.boolean("json_output", &cfg.JSONOutput)
	r.str("metrics_addr", &cfg.MetricsAddr)
	r.str("log_level", &cfg.LogLevel)
	r.str("log_format", &cfg.LogFormat)
	r.list("thresholds", &cfg.Thresholds)

	c := r.section("cql")
	c.list("nodes", &cfg.CQL.Nodes)
	c.str("keyspace", &cfg.CQL.Keyspace)
	c.str("username", &cfg.CQL.Username)
	c.str("password", &cfg.CQL.Password)
	c.str("datacenter", &cfg.CQL.Datacenter)
	c.str("consistency", &cfg.CQL.Consistency)
	c.str("serial_consistency", &cfg.CQL.SerialConsistency)
	c.integer("connections", &cfg.CQL.Connections)
	c.integer("page_size", &cfg.CQL.PageSize)
	if c.err != nil {
		return c.err
	}

	d := r.section("dynamodb")
	d.str("region", &cfg.DynamoDB.Region)
	d.str("endpoint", &cfg.DynamoDB.Endpoint)
	d.str("access_key", &cfg.DynamoDB.AccessKey)
	d.str("secret_key", &cfg.DynamoDB.SecretKey)
	d.str("consistency", &cfg.DynamoDB.Consistency)
	if d.err != nil {
		return d.err
	}

	t := r.section("tracing")
	t.str("endpoint", &cfg.Tracing.Endpoint)
	t.str("protocol", &cfg.Tracing.Protocol)
	t.str("service_name", &cfg.Tracing.ServiceName)
	t.float("sample_rate", &cfg.Tracing.SampleRate)
	t.boolean("insecure", &cfg.Tracing.Insecure)
	if t.err != nil {
		return t.err
	}
	return r.err
}
