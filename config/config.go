package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/lakestore/tablecore/core"
	"gopkg.in/yaml.v3"
)

// Recognized option keys, matching the engine's configuration surface.
const (
	PartitionExpirationTime          = "partition.expiration-time"
	PartitionExpirationCheckInterval = "partition.expiration-check-interval"
	PartitionTimestampFormatter      = "partition.timestamp-formatter"
	PartitionTimestampPattern        = "partition.timestamp-pattern"
	PartitionExpirationBatchSize     = "partition.expiration-batch-size"
	PartitionExpirationMaxNum        = "partition.expiration-max-num"
	MetastorePartitionedTable        = "metastore.partitioned-table"
	WriteOnly                        = "write-only"
	SequenceField                    = "sequence.field"
	SequenceFieldSortOrder           = "sequence.field.sort-order"
)

const DefaultTimestampFormatter = "20060102" // Go layout equivalent of yyyyMMdd

// TracingConfig holds configuration for distributed tracing.
type TracingConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
	Protocol string `yaml:"protocol"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Output string `yaml:"output"`
	File   string `yaml:"file"`
}

// DebugConfig enables the ambient runtime-stats debug mux.
type DebugConfig struct {
	Enabled         bool   `yaml:"enabled"`
	ListenAddress   string `yaml:"listen_address"`
	StatsvizEnabled bool   `yaml:"statsviz_enabled"`
	HostSampling    bool   `yaml:"host_sampling"`
}

// CommitConfig controls the Commit Coordinator's retry behavior on
// identifier conflicts.
type CommitConfig struct {
	MaxAttempts    int    `yaml:"max_attempts"`
	InitialBackoff string `yaml:"initial_backoff"`
	MaxBackoff     string `yaml:"max_backoff"`
}

// Config is the top-level configuration document this core loads from YAML.
// It is a thin ambient wrapper around the table-scoped CoreOptions, which
// is what table-level code actually consumes.
type Config struct {
	DataDir string            `yaml:"data_dir"`
	Table   map[string]string `yaml:"table"`
	Logging LoggingConfig     `yaml:"logging"`
	Tracing TracingConfig     `yaml:"tracing"`
	Debug   DebugConfig       `yaml:"debug"`
	Commit  CommitConfig      `yaml:"commit"`
}

// ParseDuration parses a duration string, returning defaultDuration for an
// empty/invalid input (logging a warning in the latter case).
func ParseDuration(durationStr string, defaultDuration time.Duration, logger *slog.Logger) time.Duration {
	if durationStr == "" || durationStr == "0" {
		return defaultDuration
	}
	d, err := time.ParseDuration(durationStr)
	if err != nil {
		if logger != nil {
			logger.Warn("invalid duration format, using default", "input", durationStr, "default", defaultDuration.String(), "error", err)
		}
		return defaultDuration
	}
	return d
}

func defaults() *Config {
	return &Config{
		DataDir: "./data",
		Table:   map[string]string{},
		Logging: LoggingConfig{Level: "info", Output: "stdout", File: "tablecore.log"},
		Tracing: TracingConfig{Enabled: false, Endpoint: "localhost:4317", Protocol: "grpc"},
		Debug: DebugConfig{
			Enabled:         true,
			ListenAddress:   "127.0.0.1:6060",
			StatsvizEnabled: true,
			HostSampling:    true,
		},
		Commit: CommitConfig{MaxAttempts: 5, InitialBackoff: "50ms", MaxBackoff: "2s"},
	}
}

// Load reads configuration from an io.Reader, falling back to defaults for
// a nil or empty reader.
func Load(r io.Reader) (*Config, error) {
	cfg := defaults()
	if r == nil {
		return cfg, nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read config data: %w", err)
	}
	if len(data) == 0 {
		return cfg, nil
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}
	return cfg, nil
}

// LoadConfig reads configuration from a YAML file by path, falling back to
// defaults if the file does not exist.
func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Load(nil)
		}
		return nil, fmt.Errorf("failed to open config file %s: %w", path, err)
	}
	defer file.Close()
	return Load(file)
}

// CoreOptions is a typed view over a table's string-keyed option bag of
// partition-expiration, commit, and scan-related settings.
type CoreOptions struct {
	opts map[string]string
}

// NewCoreOptions wraps a raw option map. The map is not copied; callers
// should not mutate it afterwards.
func NewCoreOptions(opts map[string]string) *CoreOptions {
	if opts == nil {
		opts = map[string]string{}
	}
	return &CoreOptions{opts: opts}
}

func (o *CoreOptions) Get(key string) (string, bool) {
	v, ok := o.opts[key]
	return v, ok
}

func (o *CoreOptions) durationOpt(key string, def time.Duration) time.Duration {
	v, ok := o.Get(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func (o *CoreOptions) intOpt(key string, def int) int {
	v, ok := o.Get(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func (o *CoreOptions) boolOpt(key string, def bool) bool {
	v, ok := o.Get(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// PartitionExpirationTime returns the configured retention duration and
// whether expiration is enabled at all (the zero value means disabled).
func (o *CoreOptions) PartitionExpirationTime() (time.Duration, bool) {
	v, ok := o.Get(PartitionExpirationTime)
	if !ok {
		return 0, false
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, false
	}
	return d, true
}

func (o *CoreOptions) PartitionExpirationCheckInterval() time.Duration {
	return o.durationOpt(PartitionExpirationCheckInterval, time.Hour)
}

func (o *CoreOptions) PartitionTimestampFormatter() string {
	v, ok := o.Get(PartitionTimestampFormatter)
	if !ok || v == "" {
		return DefaultTimestampFormatter
	}
	return v
}

// PartitionTimestampPattern returns the field-composition template (e.g.
// "{year}-{month}-{day}") and whether one was configured. An absent pattern
// means "use the first partition column".
func (o *CoreOptions) PartitionTimestampPattern() (string, bool) {
	v, ok := o.Get(PartitionTimestampPattern)
	return v, ok && v != ""
}

// ExpirationBatchSize returns the configured batch size, or 0 meaning
// unbounded.
func (o *CoreOptions) ExpirationBatchSize() int {
	return o.intOpt(PartitionExpirationBatchSize, 0)
}

// ExpirationMaxNum returns the configured max-expires cap, or 0 meaning
// unbounded.
func (o *CoreOptions) ExpirationMaxNum() int {
	return o.intOpt(PartitionExpirationMaxNum, 0)
}

func (o *CoreOptions) MetastorePartitionedTable() bool {
	return o.boolOpt(MetastorePartitionedTable, false)
}

func (o *CoreOptions) WriteOnly() bool {
	return o.boolOpt(WriteOnly, false)
}

// SequenceFields returns the comma-separated sequence.field list, if any.
func (o *CoreOptions) SequenceFields() []string {
	v, ok := o.Get(SequenceField)
	if !ok || v == "" {
		return nil
	}
	return splitCSV(v)
}

func (o *CoreOptions) SequenceFieldDescending() bool {
	v, _ := o.Get(SequenceFieldSortOrder)
	return v == "descending"
}

func splitCSV(v string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(v); i++ {
		if i == len(v) || v[i] == ',' {
			if i > start {
				out = append(out, v[start:i])
			}
			start = i + 1
		}
	}
	return out
}

// Validate enforces table-creation-time option invariants. isPartitioned
// reflects whether the table schema declares any partition-key columns.
func (o *CoreOptions) Validate(isPartitioned bool) error {
	if _, enabled := o.PartitionExpirationTime(); enabled && !isPartitioned {
		return &core.ConfigError{Message: "Can not set 'partition.expiration-time' for non-partitioned table"}
	}
	return nil
}
