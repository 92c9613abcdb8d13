// Package config loads and validates pipeline configuration via Viper.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/kyryl-lebedin/market-analysis/internal/ingest"
	"github.com/kyryl-lebedin/market-analysis/internal/proxy"
	"github.com/kyryl-lebedin/market-analysis/internal/storage"
)

// Config captures all service configuration knobs loaded via Viper. Secrets
// (proxy credentials, API keys) arrive through PIPELINE_* environment
// variables; everything else may live in a config file.
type Config struct {
	Adzuna   ingest.Config  `mapstructure:"adzuna"`
	Proxy    proxy.Config   `mapstructure:"proxy"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Resolve  StageConfig    `mapstructure:"resolve"`
	Resolver ResolverConfig `mapstructure:"resolver"`
	Describe StageConfig    `mapstructure:"describe"`
	Hosts    HostsConfig    `mapstructure:"hosts"`
	Storage  storage.Config `mapstructure:"storage"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// HTTPConfig configures enrichment fetch behavior.
type HTTPConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	MaxRedirects   int `mapstructure:"max_redirects"`
}

// StageConfig tunes one enrichment stage's batch-and-retry loop.
type StageConfig struct {
	MaxWorkers          int     `mapstructure:"max_workers"`
	AcceptableFaultRate float64 `mapstructure:"acceptable_fault_rate"`
	MaxTries            int     `mapstructure:"max_tries"`
	RunInitialPass      bool    `mapstructure:"run_initial_pass"`
}

// ResolverConfig overrides redirect-resolution markers and extends the
// recognized script-redirect patterns. Empty values keep the defaults.
type ResolverConfig struct {
	TrackingMarker      string   `mapstructure:"tracking_marker"`
	IntermediaryMarker  string   `mapstructure:"intermediary_marker"`
	ExtraScriptPatterns []string `mapstructure:"extra_script_patterns"`
}

// HostsConfig is the origin-host allow-list applied after resolution.
type HostsConfig struct {
	Allowed []string `mapstructure:"allowed"`
}

// PubSubConfig holds metadata for completion-event publishing. Empty project
// or topic disables publishing.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// ServerConfig controls the observability HTTP server. Port 0 disables it.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PIPELINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Keys without a meaningful default still need registering, or
	// AutomaticEnv will not see them during Unmarshal.
	v.SetDefault("adzuna.app_id", "")
	v.SetDefault("adzuna.app_key", "")
	v.SetDefault("adzuna.base_url", "")
	v.SetDefault("adzuna.results_per_page", 50)
	v.SetDefault("adzuna.timeout_seconds", 30)
	v.SetDefault("proxy.host", "")
	v.SetDefault("proxy.username_base", "")
	v.SetDefault("proxy.password", "")
	v.SetDefault("proxy.country", "")
	v.SetDefault("proxy.port", 33335)
	v.SetDefault("resolver.tracking_marker", "")
	v.SetDefault("resolver.intermediary_marker", "")
	v.SetDefault("storage.gcs_bucket", "")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("http.max_redirects", 10)
	v.SetDefault("resolve.max_workers", 100)
	v.SetDefault("resolve.acceptable_fault_rate", 0.01)
	v.SetDefault("resolve.max_tries", 10)
	v.SetDefault("resolve.run_initial_pass", true)
	v.SetDefault("describe.max_workers", 100)
	v.SetDefault("describe.acceptable_fault_rate", 0.01)
	v.SetDefault("describe.max_tries", 5)
	v.SetDefault("describe.run_initial_pass", true)
	v.SetDefault("hosts.allowed", []string{"www.adzuna.co.uk", "www.linkedin.com"})
	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.base_dir", "data")
	v.SetDefault("storage.prefix", "")
	v.SetDefault("server.port", 0)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits. Credentials are
// checked at client construction, not here, so read-only commands work
// without secrets.
func (c Config) Validate() error {
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxRedirects <= 0 {
		return fmt.Errorf("http.max_redirects must be > 0")
	}
	for name, s := range map[string]StageConfig{"resolve": c.Resolve, "describe": c.Describe} {
		if s.MaxWorkers <= 0 {
			return fmt.Errorf("%s.max_workers must be > 0", name)
		}
		if s.AcceptableFaultRate < 0 || s.AcceptableFaultRate > 1 {
			return fmt.Errorf("%s.acceptable_fault_rate must be within [0, 1]", name)
		}
		if s.MaxTries < 0 {
			return fmt.Errorf("%s.max_tries must be >= 0", name)
		}
	}
	switch c.Storage.Backend {
	case "local":
		if c.Storage.BaseDir == "" {
			return fmt.Errorf("storage.base_dir is required for the local backend")
		}
	case "gcs":
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket is required for the gcs backend")
		}
	default:
		return fmt.Errorf("storage.backend must be local or gcs")
	}
	if c.Server.Port < 0 {
		return fmt.Errorf("server.port must be >= 0")
	}
	return nil
}
