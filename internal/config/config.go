// Package config provides display settings, defaults, and persistence.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/zjrosen/lamina/internal/display"
	"github.com/zjrosen/lamina/internal/log"
	"github.com/zjrosen/lamina/internal/metrics"
)

// Config holds all settings the display map and its owner need.
type Config struct {
	// TabWidth in columns.
	TabWidth uint32 `mapstructure:"tab_width"`

	// WrapWidth in pixels. Zero disables soft wrapping.
	WrapWidth float64 `mapstructure:"wrap_width"`

	Font    FontConfig    `mapstructure:"font"`
	Log     LogConfig     `mapstructure:"log"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

// FontConfig describes the font used for wrap measurement.
type FontConfig struct {
	Family string  `mapstructure:"family"`
	Size   float64 `mapstructure:"size"`
}

// Metrics converts to the measurement representation.
func (f FontConfig) Metrics() metrics.Font {
	return metrics.Font{Family: f.Family, Size: metrics.Pixels(f.Size)}
}

// Display converts the loaded settings into a display map
// configuration. Owners apply it to a new map, or feed the fields to
// SetTabWidth, SetWrapWidth, and SetFont when the watcher reports a
// change.
func (c Config) Display() display.Config {
	return display.Config{
		TabWidth:  c.TabWidth,
		WrapWidth: metrics.Pixels(c.WrapWidth),
		Font:      c.Font.Metrics(),
	}
}

// LogConfig holds logging configuration.
type LogConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`

	// File is the log output path. Empty disables file logging.
	File string `mapstructure:"file"`
}

// TracingConfig holds trace export configuration.
type TracingConfig struct {
	// Enabled controls whether tracing is active.
	Enabled bool `mapstructure:"enabled"`

	// Exporter selects the export backend: "none", "file", "stdout".
	Exporter string `mapstructure:"exporter"`

	// FilePath is the output file for the "file" exporter.
	FilePath string `mapstructure:"file_path"`

	// SampleRate controls trace sampling (0.0 to 1.0).
	SampleRate float64 `mapstructure:"sample_rate"`
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		TabWidth:  4,
		WrapWidth: 0,
		Font: FontConfig{
			Family: "monospace",
			Size:   14,
		},
		Log: LogConfig{
			Level: "info",
		},
		Tracing: TracingConfig{
			Enabled:    false,
			Exporter:   "file",
			SampleRate: 1.0,
		},
	}
}

// DefaultConfigPath returns ~/.config/lamina/config.yaml, or empty
// string if the home directory is unavailable.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "lamina", "config.yaml")
}

// DefaultTracesFilePath returns the default path for trace file export.
func DefaultTracesFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "lamina", "traces", "traces.jsonl")
}

// Load reads the config file at path, filling missing values with
// defaults. A missing file returns the defaults without error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	d := Defaults()
	v.SetDefault("tab_width", d.TabWidth)
	v.SetDefault("wrap_width", d.WrapWidth)
	v.SetDefault("font.family", d.Font.Family)
	v.SetDefault("font.size", d.Font.Size)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.exporter", d.Tracing.Exporter)
	v.SetDefault("tracing.file_path", d.Tracing.FilePath)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			log.Debug(log.CatConfig, "No config file, using defaults", "path", path)
			return d, nil
		}
		return Config{}, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	log.Debug(log.CatConfig, "Loaded config", "path", path)
	return cfg, nil
}

// Validate checks the configuration for errors. Zero values that mean
// "use the default" are valid.
func Validate(cfg Config) error {
	if cfg.TabWidth > 64 {
		return fmt.Errorf("tab_width must be at most 64, got %d", cfg.TabWidth)
	}
	if cfg.WrapWidth < 0 {
		return fmt.Errorf("wrap_width must not be negative, got %v", cfg.WrapWidth)
	}
	if cfg.Font.Size < 0 {
		return fmt.Errorf("font.size must not be negative, got %v", cfg.Font.Size)
	}

	switch cfg.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be \"debug\", \"info\", \"warn\", or \"error\", got %q", cfg.Log.Level)
	}

	return ValidateTracing(cfg.Tracing)
}

// ValidateTracing checks tracing configuration for errors.
func ValidateTracing(tracing TracingConfig) error {
	if tracing.SampleRate < 0.0 || tracing.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", tracing.SampleRate)
	}

	switch tracing.Exporter {
	case "", "none", "file", "stdout":
	default:
		return fmt.Errorf("tracing.exporter must be \"none\", \"file\", or \"stdout\", got %q", tracing.Exporter)
	}

	if tracing.Enabled && tracing.Exporter == "file" && tracing.FilePath == "" {
		return fmt.Errorf("tracing.file_path is required when exporter is \"file\"")
	}

	return nil
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# Lamina Configuration

# Tab stop width in columns
tab_width: 4

# Soft-wrap width in pixels (0 disables wrapping; usually set at
# runtime from the viewport width)
wrap_width: 0

# Font used for wrap measurement
font:
  family: monospace
  size: 14

# Logging
log:
  level: info       # debug, info, warn, error
  # file: ~/.config/lamina/lamina.log

# Trace export configuration
# tracing:
#   enabled: false                # Enable/disable tracing (default: false)
#   exporter: file                # Export backend: none, file, stdout (default: file)
#   file_path: ~/.config/lamina/traces/traces.jsonl
#   sample_rate: 1.0              # Trace sampling rate 0.0-1.0 (default: 1.0)
`
}

// WriteDefaultConfig creates a config file at the given path with default
// settings and comments. Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}
