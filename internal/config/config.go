// Package config loads the runtime host process's configuration: logging,
// telemetry, metrics, the admin/control plane, calibration persistence, the
// device fixture to probe, and frame-trace export. It also carries spec.md
// section 5's process-wide session/system options, read once here and
// copied into the Instance at creation.
//
// Grounded on the teacher's pkg/config: layered decoding with spf13/viper
// (flags > environment > file > defaults), struct-tag validation with
// go-playground/validator/v10, and a plain Config struct of tagged
// sub-structs rather than a code-generated schema.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ixrcore/runtime/internal/xrerr"
)

// LoggingConfig controls internal/logger's slog backend.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"omitempty,oneof=DEBUG INFO WARN ERROR"`
	Format string `mapstructure:"format" yaml:"format" validate:"omitempty,oneof=text json"`
	Output string `mapstructure:"output" yaml:"output" validate:"omitempty,oneof=stdout stderr"`
	Color  bool   `mapstructure:"color" yaml:"color"`
}

// TelemetryConfig controls internal/telemetry's OTLP/gRPC trace exporter.
type TelemetryConfig struct {
	Enabled    bool    `mapstructure:"enabled" yaml:"enabled"`
	Endpoint   string  `mapstructure:"endpoint" yaml:"endpoint" validate:"omitempty,hostname_port"`
	Insecure   bool    `mapstructure:"insecure" yaml:"insecure"`
	SampleRate float64 `mapstructure:"sample_rate" yaml:"sample_rate" validate:"gte=0,lte=1"`
}

// MetricsConfig controls internal/metrics's Prometheus exposition.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" yaml:"port" validate:"omitempty,min=1,max=65535"`
}

// ControlPlaneConfig holds admin/debug HTTP API settings. No package in this
// module reads them; they are only defaulted, validated and saved.
type ControlPlaneConfig struct {
	Enabled         bool          `mapstructure:"enabled" yaml:"enabled"`
	Port            int           `mapstructure:"port" yaml:"port" validate:"omitempty,min=1,max=65535"`
	JWTSecret       string        `mapstructure:"jwt_secret" yaml:"jwt_secret" validate:"required_if=Enabled true"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	DatabasePath    string        `mapstructure:"database_path" yaml:"database_path"`
}

// CalibrationConfig controls internal/calibration's BadgerDB-backed store
// of per-device floor offsets and the default-IPD override.
type CalibrationConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	DBPath  string `mapstructure:"db_path" yaml:"db_path" validate:"required_if=Enabled true"`
}

// DeviceFixtureConfig selects the YAML fixture internal/device/fixture
// probes against in place of a real device driver.
type DeviceFixtureConfig struct {
	Path string `mapstructure:"path" yaml:"path" validate:"required"`
}

// TraceExportConfig holds frame-trace ring buffer and S3 flush settings. No
// package in this module reads them; they are only defaulted, validated and
// saved.
type TraceExportConfig struct {
	RingSize       int    `mapstructure:"ring_size" yaml:"ring_size" validate:"omitempty,min=1"`
	S3Enabled      bool   `mapstructure:"s3_enabled" yaml:"s3_enabled"`
	S3Bucket       string `mapstructure:"s3_bucket" yaml:"s3_bucket" validate:"required_if=S3Enabled true"`
	S3Prefix       string `mapstructure:"s3_prefix" yaml:"s3_prefix"`
	S3Region       string `mapstructure:"s3_region" yaml:"s3_region"`
	S3MaxRetries   int    `mapstructure:"s3_max_retries" yaml:"s3_max_retries" validate:"omitempty,min=0"`
	FlushOnPacing  bool   `mapstructure:"flush_on_pacing_violation" yaml:"flush_on_pacing_violation"`
}

// SessionConfig carries spec.md section 5's process-wide session options.
type SessionConfig struct {
	LogFrameTiming          bool `mapstructure:"log_frame_timing" yaml:"log_frame_timing"`
	ForceTimelineSemaphores bool `mapstructure:"force_timeline_semaphores" yaml:"force_timeline_semaphores"`
}

// SystemConfig carries spec.md section 5's process-wide System options.
type SystemConfig struct {
	DefaultIPDMeters float64 `mapstructure:"default_ipd_meters" yaml:"default_ipd_meters" validate:"omitempty,gt=0,lt=1"`
}

// Config is the full runtime host process configuration.
type Config struct {
	Logging      LoggingConfig       `mapstructure:"logging" yaml:"logging"`
	Telemetry    TelemetryConfig     `mapstructure:"telemetry" yaml:"telemetry"`
	Metrics      MetricsConfig       `mapstructure:"metrics" yaml:"metrics"`
	ControlPlane ControlPlaneConfig  `mapstructure:"control_plane" yaml:"control_plane"`
	Calibration  CalibrationConfig  `mapstructure:"calibration" yaml:"calibration"`
	Fixture      DeviceFixtureConfig `mapstructure:"fixture" yaml:"fixture"`
	TraceExport  TraceExportConfig  `mapstructure:"trace_export" yaml:"trace_export"`
	Session      SessionConfig       `mapstructure:"session" yaml:"session"`
	System       SystemConfig        `mapstructure:"system" yaml:"system"`
}

// ApplyDefaults fills zero-valued fields of cfg with sensible defaults, the
// same "zero values are replaced, explicit values are preserved" strategy
// the teacher's ApplyDefaults uses.
func ApplyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "INFO"
	}
	cfg.Logging.Level = strings.ToUpper(cfg.Logging.Level)
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Telemetry.Endpoint == "" {
		cfg.Telemetry.Endpoint = "localhost:4317"
	}
	if cfg.Telemetry.SampleRate == 0 {
		cfg.Telemetry.SampleRate = 1.0
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 9090
	}

	if cfg.ControlPlane.Port == 0 {
		cfg.ControlPlane.Port = 8088
	}
	if cfg.ControlPlane.ReadTimeout == 0 {
		cfg.ControlPlane.ReadTimeout = 10 * time.Second
	}
	if cfg.ControlPlane.WriteTimeout == 0 {
		cfg.ControlPlane.WriteTimeout = 10 * time.Second
	}
	if cfg.ControlPlane.ShutdownTimeout == 0 {
		cfg.ControlPlane.ShutdownTimeout = 30 * time.Second
	}
	if cfg.ControlPlane.DatabasePath == "" {
		cfg.ControlPlane.DatabasePath = "/tmp/xrruntime-control.db"
	}

	if cfg.Calibration.DBPath == "" {
		cfg.Calibration.DBPath = "/tmp/xrruntime-calibration"
	}

	if cfg.TraceExport.RingSize == 0 {
		cfg.TraceExport.RingSize = 256
	}
	if cfg.TraceExport.S3MaxRetries == 0 {
		cfg.TraceExport.S3MaxRetries = 3
	}
	if cfg.TraceExport.S3Prefix == "" {
		cfg.TraceExport.S3Prefix = "frame-traces/"
	}

	if cfg.System.DefaultIPDMeters == 0 {
		cfg.System.DefaultIPDMeters = 0.063
	}
}

// GetDefaultConfig returns a Config with every default applied, useful for
// generating a sample configuration file.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Fixture: DeviceFixtureConfig{Path: "fixtures/default.yaml"},
	}
	ApplyDefaults(cfg)
	return cfg
}

var validate = validator.New()

// Validate runs struct-tag validation over cfg.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return xrerr.Wrap(xrerr.ValidationFailure, "config.Validate", err)
	}
	return nil
}

// Load reads configuration from the given file path (if non-empty),
// environment variables prefixed XRRUNTIME_, and flags bound onto v, in
// that ascending order of precedence, applies defaults, and validates the
// result.
//
// v is the caller's own *viper.Viper with command-line flags already bound
// via BindPFlag; passing nil creates a fresh instance with no flags bound.
func Load(path string, v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.New()
	}
	v.SetEnvPrefix("XRRUNTIME")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, xrerr.Wrap(xrerr.RuntimeFailure, "config.Load", fmt.Errorf("read config file %q: %w", path, err))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, xrerr.Wrap(xrerr.RuntimeFailure, "config.Load", fmt.Errorf("decode config: %w", err))
	}

	ApplyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MustLoad calls Load and panics on error, for command entry points that
// have no better failure path than refusing to start.
func MustLoad(path string, v *viper.Viper) *Config {
	cfg, err := Load(path, v)
	if err != nil {
		panic(err)
	}
	return cfg
}

// SaveConfig writes cfg as YAML to path.
func SaveConfig(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return xrerr.Wrap(xrerr.RuntimeFailure, "config.SaveConfig", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return xrerr.Wrap(xrerr.RuntimeFailure, "config.SaveConfig", err)
	}
	return nil
}
