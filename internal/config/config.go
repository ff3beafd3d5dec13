package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultInterval      = 2 * time.Second
	DefaultSampleTimeout = 1 * time.Second
	DefaultWindowSize    = 10
	DefaultSmokeTimeout  = 2 * time.Second
	DefaultWriteTimeout  = 5 * time.Second
	DefaultHTTPPort      = 8080
	DefaultWSInterval    = 5 * time.Second
	DefaultRetention     = 24 * time.Hour
)

// Config is the top-level guard configuration. Fields map 1:1 to
// config.example.yaml. All monitoring parameters are immutable after
// construction; hot-reload adjusts the logging level only.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Guard     GuardConfig     `yaml:"guard"`
	Provider  ProviderConfig  `yaml:"provider"`
	Signals   SignalsConfig   `yaml:"signals"`
	Emergency EmergencyConfig `yaml:"emergency"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
}

// LoggingConfig controls the slog setup.
type LoggingConfig struct {
	// Level is one of: debug | info | warn | error.
	Level string `yaml:"level"`
}

// GuardConfig holds the monitor loop parameters.
type GuardConfig struct {
	// Interval is the sampling cadence.
	Interval time.Duration `yaml:"interval"`

	// SampleTimeout bounds each provider call. A call that exceeds it is a
	// per-cycle fault and the cycle is skipped. Must not exceed Interval.
	SampleTimeout time.Duration `yaml:"sample_timeout"`

	// WindowSize is the rolling sample window capacity.
	WindowSize int `yaml:"window_size"`

	// Thresholds are the critical bounds for κ and ε.
	Thresholds ThresholdsConfig `yaml:"thresholds"`

	// WarningMargin is the fraction of a threshold at which a metric is
	// reported as WARNING (e.g. 0.9 → warn at 90% of the bound).
	WarningMargin float64 `yaml:"warning_margin"`
}

// ThresholdsConfig holds the critical bounds, each in (0, 1].
type ThresholdsConfig struct {
	Kappa   float64 `yaml:"kappa"`
	Epsilon float64 `yaml:"epsilon"`
}

// ProviderConfig controls discovery of the privileged kernel artifact.
type ProviderConfig struct {
	// Dir is the directory searched for the kernel artifact at startup.
	Dir string `yaml:"dir"`

	// SmokeTimeout bounds the resolution smoke-test call.
	SmokeTimeout time.Duration `yaml:"smoke_timeout"`
}

// SignalsConfig selects the fallback provider's signal source.
type SignalsConfig struct {
	// Source is one of: synthetic | prometheus.
	Source string `yaml:"source"`

	// Endpoint is the Prometheus-format metrics URL. Required when
	// Source == "prometheus".
	Endpoint string `yaml:"endpoint"`

	// Seed fixes the synthetic source's RNG so runs are reproducible.
	Seed int64 `yaml:"seed"`

	// Metrics maps signal names (cpu_load, error_rate, ...) to the metric
	// family to read and the scale that normalizes it into [0,1].
	Metrics map[string]SignalMetric `yaml:"metrics"`
}

// SignalMetric names one metric family and its normalization scale.
type SignalMetric struct {
	// Family is the Prometheus metric family name to sum.
	Family string `yaml:"family"`

	// Scale divides the summed value before clamping to [0,1].
	// Defaults to 1 when unset.
	Scale float64 `yaml:"scale"`
}

// EmergencyConfig controls emergency event persistence and notification.
type EmergencyConfig struct {
	// Dir is where the emergency_<timestamp>.json dump is written.
	Dir string `yaml:"dir"`

	// WriteTimeout bounds each persistence sink on trigger. A slow sink is
	// abandoned; it never delays the shutdown signal.
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// Webhooks are notification targets invoked on trigger.
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: slack | teams | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable holding the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// ServerConfig holds the status API settings.
type ServerConfig struct {
	// HTTPPort is the port the REST API and WebSocket hub listen on.
	HTTPPort int `yaml:"http_port"`

	// WSInterval is the WebSocket status broadcast cadence.
	WSInterval time.Duration `yaml:"ws_interval"`

	// Auth configures API authentication.
	Auth AuthConfig `yaml:"auth"`
}

// AuthConfig configures REST API authentication.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// Header is the HTTP header carrying the key. Defaults to x-api-key.
	Header string `yaml:"header"`

	// KeyEnv is the name of the environment variable holding the expected key.
	KeyEnv string `yaml:"key_env"`
}

// Key returns the API key resolved from the environment.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name or the default.
func (a AuthConfig) EffectiveHeader() string {
	if a.Header == "" {
		return "x-api-key"
	}
	return a.Header
}

// StorageConfig configures the historical data backend.
type StorageConfig struct {
	// Backend selects the storage implementation: sqlite | none.
	Backend string `yaml:"backend"`

	// Path is the filesystem path for the SQLite database file.
	Path string `yaml:"path"`

	// Retention is how long historical samples are kept before deletion.
	Retention time.Duration `yaml:"retention"`
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with sensible defaults; invalid values
// reject startup rather than being silently clamped.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info"},
		Guard: GuardConfig{
			Interval:      DefaultInterval,
			SampleTimeout: DefaultSampleTimeout,
			WindowSize:    DefaultWindowSize,
			Thresholds:    ThresholdsConfig{Kappa: 0.80, Epsilon: 0.70},
			WarningMargin: 0.90,
		},
		Provider: ProviderConfig{
			Dir:          ".",
			SmokeTimeout: DefaultSmokeTimeout,
		},
		Signals: SignalsConfig{
			Source: "synthetic",
			Seed:   1,
		},
		Emergency: EmergencyConfig{
			Dir:          ".",
			WriteTimeout: DefaultWriteTimeout,
		},
		Server: ServerConfig{
			HTTPPort:   DefaultHTTPPort,
			WSInterval: DefaultWSInterval,
		},
		Storage: StorageConfig{
			Backend:   "none",
			Path:      "guard.db",
			Retention: DefaultRetention,
		},
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error", "":
	default:
		return fmt.Errorf("logging.level: unknown level %q", cfg.Logging.Level)
	}

	g := cfg.Guard
	if g.Interval <= 0 {
		return fmt.Errorf("guard.interval must be positive")
	}
	if g.SampleTimeout <= 0 {
		return fmt.Errorf("guard.sample_timeout must be positive")
	}
	if g.SampleTimeout > g.Interval {
		return fmt.Errorf("guard.sample_timeout must not exceed guard.interval")
	}
	if g.WindowSize <= 0 {
		return fmt.Errorf("guard.window_size must be positive")
	}
	if g.Thresholds.Kappa <= 0 || g.Thresholds.Kappa > 1 {
		return fmt.Errorf("guard.thresholds.kappa must be in (0, 1], got %v", g.Thresholds.Kappa)
	}
	if g.Thresholds.Epsilon <= 0 || g.Thresholds.Epsilon > 1 {
		return fmt.Errorf("guard.thresholds.epsilon must be in (0, 1], got %v", g.Thresholds.Epsilon)
	}
	if g.WarningMargin <= 0 || g.WarningMargin >= 1 {
		return fmt.Errorf("guard.warning_margin must be in (0, 1), got %v", g.WarningMargin)
	}

	if cfg.Provider.SmokeTimeout <= 0 {
		return fmt.Errorf("provider.smoke_timeout must be positive")
	}

	switch cfg.Signals.Source {
	case "synthetic":
	case "prometheus":
		if cfg.Signals.Endpoint == "" {
			return fmt.Errorf("signals.endpoint is required for source \"prometheus\"")
		}
	default:
		return fmt.Errorf("signals.source: unknown source %q", cfg.Signals.Source)
	}

	if cfg.Emergency.WriteTimeout <= 0 {
		return fmt.Errorf("emergency.write_timeout must be positive")
	}
	for i, wh := range cfg.Emergency.Webhooks {
		switch wh.Type {
		case "slack", "teams", "http":
		default:
			return fmt.Errorf("emergency.webhooks[%d]: unknown type %q", i, wh.Type)
		}
		if wh.URLEnv == "" {
			return fmt.Errorf("emergency.webhooks[%d]: url_env is required", i)
		}
	}

	if cfg.Server.HTTPPort <= 0 || cfg.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port must be a valid port, got %d", cfg.Server.HTTPPort)
	}
	if cfg.Server.WSInterval <= 0 {
		return fmt.Errorf("server.ws_interval must be positive")
	}
	switch cfg.Server.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("server.auth.mode: unknown mode %q", cfg.Server.Auth.Mode)
	}

	switch cfg.Storage.Backend {
	case "sqlite":
		if cfg.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for backend \"sqlite\"")
		}
		if cfg.Storage.Retention <= 0 {
			return fmt.Errorf("storage.retention must be positive")
		}
	case "none", "":
	default:
		return fmt.Errorf("storage.backend: unknown backend %q", cfg.Storage.Backend)
	}

	return nil
}
