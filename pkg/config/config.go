// Package config provides hierarchical configuration management.
// Priority: defaults < system < user < project < env < explicit file < flags
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/logflow/actionlog/pkg/parser"
)

// Config holds all ActionLog configuration.
type Config struct {
	Version int `yaml:"version"`

	Markers   MarkersConfig   `yaml:"markers"`
	Output    OutputConfig    `yaml:"output"`
	Watch     WatchConfig     `yaml:"watch"`
	S3        S3Config        `yaml:"s3"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// MarkersConfig describes the action block grammar.
type MarkersConfig struct {
	Open          string `yaml:"open"`           // substring of a numbered line's content
	Close         string `yaml:"close"`          // whole trimmed line
	IdentifierKey string `yaml:"identifier_key"` // required for a record
	BufferSize    int    `yaml:"buffer_size"`
}

// OutputConfig controls rendering and export.
type OutputConfig struct {
	Format      string `yaml:"format"`      // table | json
	Export      string `yaml:"export"`      // jsonl | csv | xlsx | parquet
	Compression string `yaml:"compression"` // parquet: snappy | zstd | gzip | lz4 | none
	BatchSize   int    `yaml:"batch_size"`
}

// WatchConfig controls the file watcher.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// S3Config configures s3:// inputs.
type S3Config struct {
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	UsePathStyle    bool   `yaml:"use_path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// TelemetryConfig for optional tracing.
type TelemetryConfig struct {
	Enabled       bool    `yaml:"enabled"`
	Endpoint      string  `yaml:"endpoint"`
	ServiceName   string  `yaml:"service_name"`
	Insecure      bool    `yaml:"insecure"`
	SamplingRatio float64 `yaml:"sampling_ratio"`
}

// LoggingConfig for the CLI logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Default returns the default configuration.
func Default() *Config {
	pc := parser.DefaultConfig()
	return &Config{
		Version: 1,
		Markers: MarkersConfig{
			Open:          pc.OpenMarker,
			Close:         pc.CloseMarker,
			IdentifierKey: pc.IdentifierKey,
			BufferSize:    pc.BufferSize,
		},
		Output: OutputConfig{
			Format:      "table",
			Export:      "jsonl",
			Compression: "snappy",
			BatchSize:   1024,
		},
		Watch: WatchConfig{
			Debounce: 500 * time.Millisecond,
		},
		S3: S3Config{
			Region: "us-east-1",
		},
		Telemetry: TelemetryConfig{
			Enabled:       false,
			Endpoint:      "localhost:4317",
			ServiceName:   "actionlog",
			Insecure:      true,
			SamplingRatio: 1.0,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// ParserConfig returns the scanner grammar described by the configuration.
func (c *Config) ParserConfig() parser.Config {
	return parser.Config{
		OpenMarker:    c.Markers.Open,
		CloseMarker:   c.Markers.Close,
		IdentifierKey: c.Markers.IdentifierKey,
		BufferSize:    c.Markers.BufferSize,
	}
}

// Validate checks the configuration for unusable values.
func (c *Config) Validate() error {
	if err := c.ParserConfig().Validate(); err != nil {
		return err
	}
	switch c.Output.Format {
	case "table", "json":
	default:
		return fmt.Errorf("config: unknown output format %q", c.Output.Format)
	}
	if c.Telemetry.SamplingRatio < 0 || c.Telemetry.SamplingRatio > 1 {
		return fmt.Errorf("config: sampling_ratio must be within [0, 1], got %v", c.Telemetry.SamplingRatio)
	}
	return nil
}

// Manager handles configuration loading and merging.
type Manager struct {
	mu     sync.RWMutex
	config *Config
	paths  []string // Paths that were loaded

	searchPaths []string
	getenv      func(string) string
}

// Option configures a Manager.
type Option func(*Manager)

// WithSearchPaths replaces the default system/user/project search paths.
func WithSearchPaths(paths ...string) Option {
	return func(m *Manager) {
		m.searchPaths = paths
	}
}

// WithEnv replaces os.Getenv as the environment lookup.
func WithEnv(getenv func(string) string) Option {
	return func(m *Manager) {
		m.getenv = getenv
	}
}

// NewManager creates a new configuration manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		config: Default(),
		getenv: os.Getenv,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.searchPaths == nil {
		m.searchPaths = defaultSearchPaths()
	}
	return m
}

// Load loads configuration from all sources in priority order.
// explicit, when non-empty, is loaded last and must exist.
func (m *Manager) Load(explicit string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Start with defaults
	m.config = Default()
	m.paths = nil

	// Load from paths in order (later overrides earlier)
	for _, path := range m.searchPaths {
		if err := m.loadFile(path); err != nil {
			// Ignore missing files, but report errors for existing files
			if !os.IsNotExist(err) {
				return fmt.Errorf("config: %s: %w", path, err)
			}
		} else {
			m.paths = append(m.paths, path)
		}
	}

	// Override with environment variables
	m.loadEnv()

	if explicit != "" {
		if err := m.loadFile(explicit); err != nil {
			return fmt.Errorf("config: %s: %w", explicit, err)
		}
		m.paths = append(m.paths, explicit)
	}

	return m.config.Validate()
}

// defaultSearchPaths returns config file paths in priority order.
func defaultSearchPaths() []string {
	var paths []string

	// System config
	if runtime.GOOS != "windows" {
		paths = append(paths, "/etc/actionlog/config.yaml")
	}

	// User config
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".actionlog", "config.yaml"))
	}

	// Project config (current directory)
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".actionlog.yaml"))
	}

	return paths
}

// loadFile loads a single config file and merges it.
func (m *Manager) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var partial Config
	if err := yaml.Unmarshal(data, &partial); err != nil {
		return err
	}

	// Merge non-zero values
	m.merge(&partial)
	return nil
}

// merge merges non-zero values from src into config.
func (m *Manager) merge(src *Config) {
	// Markers
	if src.Markers.Open != "" {
		m.config.Markers.Open = src.Markers.Open
	}
	if src.Markers.Close != "" {
		m.config.Markers.Close = src.Markers.Close
	}
	if src.Markers.IdentifierKey != "" {
		m.config.Markers.IdentifierKey = src.Markers.IdentifierKey
	}
	if src.Markers.BufferSize != 0 {
		m.config.Markers.BufferSize = src.Markers.BufferSize
	}

	// Output
	if src.Output.Format != "" {
		m.config.Output.Format = src.Output.Format
	}
	if src.Output.Export != "" {
		m.config.Output.Export = src.Output.Export
	}
	if src.Output.Compression != "" {
		m.config.Output.Compression = src.Output.Compression
	}
	if src.Output.BatchSize != 0 {
		m.config.Output.BatchSize = src.Output.BatchSize
	}

	// Watch
	if src.Watch.Debounce != 0 {
		m.config.Watch.Debounce = src.Watch.Debounce
	}

	// S3
	if src.S3.Region != "" {
		m.config.S3.Region = src.S3.Region
	}
	if src.S3.Endpoint != "" {
		m.config.S3.Endpoint = src.S3.Endpoint
	}
	if src.S3.UsePathStyle {
		m.config.S3.UsePathStyle = true
	}
	if src.S3.AccessKeyID != "" {
		m.config.S3.AccessKeyID = src.S3.AccessKeyID
	}
	if src.S3.SecretAccessKey != "" {
		m.config.S3.SecretAccessKey = src.S3.SecretAccessKey
	}

	// Telemetry
	if src.Telemetry.Enabled {
		m.config.Telemetry.Enabled = true
	}
	if src.Telemetry.Endpoint != "" {
		m.config.Telemetry.Endpoint = src.Telemetry.Endpoint
	}
	if src.Telemetry.ServiceName != "" {
		m.config.Telemetry.ServiceName = src.Telemetry.ServiceName
	}
	if src.Telemetry.SamplingRatio != 0 {
		m.config.Telemetry.SamplingRatio = src.Telemetry.SamplingRatio
	}

	// Logging
	if src.Logging.Level != "" {
		m.config.Logging.Level = src.Logging.Level
	}
	if src.Logging.Format != "" {
		m.config.Logging.Format = src.Logging.Format
	}
}

// loadEnv loads configuration from environment variables.
func (m *Manager) loadEnv() {
	if v := m.getenv("ACTIONLOG_OPEN_MARKER"); v != "" {
		m.config.Markers.Open = v
	}
	if v := m.getenv("ACTIONLOG_CLOSE_MARKER"); v != "" {
		m.config.Markers.Close = v
	}
	if v := m.getenv("ACTIONLOG_ID_KEY"); v != "" {
		m.config.Markers.IdentifierKey = v
	}
	if v := m.getenv("ACTIONLOG_OUTPUT"); v != "" {
		m.config.Output.Format = v
	}
	if v := m.getenv("ACTIONLOG_COMPRESSION"); v != "" {
		m.config.Output.Compression = v
	}
	if v := m.getenv("ACTIONLOG_S3_REGION"); v != "" {
		m.config.S3.Region = v
	}
	if v := m.getenv("ACTIONLOG_S3_ENDPOINT"); v != "" {
		m.config.S3.Endpoint = v
	}
	if v := m.getenv("ACTIONLOG_OTEL_ENDPOINT"); v != "" {
		m.config.Telemetry.Endpoint = v
		m.config.Telemetry.Enabled = true
	}
	if v := m.getenv("ACTIONLOG_LOG_LEVEL"); v != "" {
		m.config.Logging.Level = v
	}
	if v := m.getenv("ACTIONLOG_BUFFER_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			m.config.Markers.BufferSize = n
		}
	}
}

// Get returns the current configuration.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// GetPaths returns the paths that were loaded.
func (m *Manager) GetPaths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.paths
}

// Save writes the current config to path, creating its directory.
func (m *Manager) Save(path string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(m.config)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
