// Package config handles configuration loading using viper.
package config

import (
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"firestige.xyz/someip/internal/core"
	"firestige.xyz/someip/internal/log"
)

// rootKey wraps every setting in YAML. Through the env key replacer it also
// yields the SOMEIP_ prefix, e.g. someip.log.level <- SOMEIP_LOG_LEVEL.
const rootKey = "someip"

// Config is the complete runtime configuration.
type Config struct {
	Log        log.Config       `mapstructure:"log" yaml:"log"`
	Metrics    MetricsConfig    `mapstructure:"metrics" yaml:"metrics"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline" yaml:"pipeline"`
	Flow       FlowConfig       `mapstructure:"flow" yaml:"flow"`
	Classifier ClassifierConfig `mapstructure:"classifier" yaml:"classifier"`
	Source     SourceConfig     `mapstructure:"source" yaml:"source"`
	Reporters  []ReporterConfig `mapstructure:"reporters" yaml:"reporters"`
}

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Listen  string `mapstructure:"listen" yaml:"listen"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// PipelineConfig sizes the worker pool.
type PipelineConfig struct {
	Workers    int `mapstructure:"workers" yaml:"workers"`
	BufferSize int `mapstructure:"buffer_size" yaml:"buffer_size"`
}

// FlowConfig controls how long flow verdicts are remembered.
type FlowConfig struct {
	TTL             time.Duration `mapstructure:"ttl" yaml:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" yaml:"cleanup_interval"`
}

// ClassifierConfig lists the destination ports of the port fallback.
// Empty lists keep the built-in defaults.
type ClassifierConfig struct {
	UDPPorts []int `mapstructure:"udp_ports" yaml:"udp_ports"`
	TCPPorts []int `mapstructure:"tcp_ports" yaml:"tcp_ports"`
}

// ParserConfig renders the classifier section as a parser plugin config.
func (c ClassifierConfig) ParserConfig() map[string]any {
	return map[string]any{
		"udp_ports": c.UDPPorts,
		"tcp_ports": c.TCPPorts,
	}
}

// SourceConfig configures capture sources.
type SourceConfig struct {
	Prefilter bool       `mapstructure:"prefilter" yaml:"prefilter"`
	Live      LiveConfig `mapstructure:"live" yaml:"live"`
}

// LiveConfig sizes the AF_PACKET ring of live capture.
type LiveConfig struct {
	SnapLen      int `mapstructure:"snap_len" yaml:"snap_len"`
	BufferSizeMB int `mapstructure:"buffer_size_mb" yaml:"buffer_size_mb"`
	TimeoutMs    int `mapstructure:"timeout_ms" yaml:"timeout_ms"`
}

// ReporterConfig names a reporter and its plugin-specific settings.
type ReporterConfig struct {
	Name   string         `mapstructure:"name" yaml:"name"`
	Config map[string]any `mapstructure:"config" yaml:"config,omitempty"`
}

// configRoot is the wrapper matching the `someip:` YAML root key.
type configRoot struct {
	SomeIP Config `mapstructure:"someip"`
}

// Load reads the YAML file at path, applies SOMEIP_* environment overrides
// and defaults, and validates the result. An empty path loads defaults and
// environment only.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config file %s", path)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	cfg := root.SomeIP

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Log defaults
	v.SetDefault(rootKey+".log.level", "info")
	v.SetDefault(rootKey+".log.pattern", log.DefaultPattern)
	v.SetDefault(rootKey+".log.time", log.DefaultTime)
	v.SetDefault(rootKey+".log.caller", false)
	v.SetDefault(rootKey+".log.file.enabled", false)
	v.SetDefault(rootKey+".log.file.filename", "someip.log")
	v.SetDefault(rootKey+".log.file.max_size", 100)
	v.SetDefault(rootKey+".log.file.max_backups", 5)
	v.SetDefault(rootKey+".log.file.max_age", 30)
	v.SetDefault(rootKey+".log.file.compress", true)

	// Metrics defaults
	v.SetDefault(rootKey+".metrics.enabled", false)
	v.SetDefault(rootKey+".metrics.listen", ":9091")
	v.SetDefault(rootKey+".metrics.path", "/metrics")

	// Pipeline defaults
	v.SetDefault(rootKey+".pipeline.workers", 4)
	v.SetDefault(rootKey+".pipeline.buffer_size", 1024)

	// Flow defaults
	v.SetDefault(rootKey+".flow.ttl", "5m")
	v.SetDefault(rootKey+".flow.cleanup_interval", "1m")

	// Classifier defaults stay empty: the parser supplies the standard ports.
	v.SetDefault(rootKey+".classifier.udp_ports", []int{})
	v.SetDefault(rootKey+".classifier.tcp_ports", []int{})

	v.SetDefault(rootKey+".source.prefilter", true)
	v.SetDefault(rootKey+".source.live.snap_len", 65535)
	v.SetDefault(rootKey+".source.live.buffer_size_mb", 16)
	v.SetDefault(rootKey+".source.live.timeout_ms", 100)
}

var validLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "warning": true, "error": true,
}

// Validate checks value ranges. Every failure wraps core.ErrConfigInvalid.
func (cfg *Config) Validate() error {
	if !validLevels[strings.ToLower(cfg.Log.Level)] {
		return invalid("log.level %q", cfg.Log.Level)
	}
	if cfg.Log.File.Enabled && cfg.Log.File.Filename == "" {
		return invalid("log.file.filename is required when the file appender is enabled")
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Listen == "" {
		return invalid("metrics.listen is required when metrics are enabled")
	}
	if cfg.Pipeline.Workers < 1 || cfg.Pipeline.Workers > 1024 {
		return invalid("pipeline.workers must be within [1, 1024], got %d", cfg.Pipeline.Workers)
	}
	if cfg.Pipeline.BufferSize < 1 {
		return invalid("pipeline.buffer_size must be positive, got %d", cfg.Pipeline.BufferSize)
	}
	if cfg.Flow.TTL <= 0 {
		return invalid("flow.ttl must be positive, got %s", cfg.Flow.TTL)
	}
	if cfg.Flow.CleanupInterval <= 0 {
		return invalid("flow.cleanup_interval must be positive, got %s", cfg.Flow.CleanupInterval)
	}
	for _, port := range append(append([]int(nil), cfg.Classifier.UDPPorts...), cfg.Classifier.TCPPorts...) {
		if port < 1 || port > 65535 {
			return invalid("classifier port %d out of range", port)
		}
	}
	if cfg.Source.Live.SnapLen < 1 || cfg.Source.Live.BufferSizeMB < 1 || cfg.Source.Live.TimeoutMs < 1 {
		return invalid("source.live values must be positive")
	}
	for i, r := range cfg.Reporters {
		if r.Name == "" {
			return invalid("reporters[%d].name is required", i)
		}
	}
	return nil
}

func invalid(format string, args ...any) error {
	return errors.Wrapf(core.ErrConfigInvalid, format, args...)
}

// YAML renders the effective configuration under the root key.
func (cfg *Config) YAML() ([]byte, error) {
	out, err := yaml.Marshal(map[string]*Config{rootKey: cfg})
	if err != nil {
		return nil, errors.Wrap(err, "marshal config")
	}
	return out, nil
}
