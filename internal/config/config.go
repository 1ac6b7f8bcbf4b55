package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	ATTOM     ProviderConfig  `yaml:"attom" mapstructure:"attom"`
	Melissa   ProviderConfig  `yaml:"melissa" mapstructure:"melissa"`
	Rentcast  ProviderConfig  `yaml:"rentcast" mapstructure:"rentcast"`
	ReportAll ProviderConfig  `yaml:"reportall" mapstructure:"reportall"`
	Census    ProviderConfig  `yaml:"census" mapstructure:"census"`
	FRED      ProviderConfig  `yaml:"fred" mapstructure:"fred"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Lookup    LookupConfig    `yaml:"lookup" mapstructure:"lookup"`
	Area      AreaConfig      `yaml:"area" mapstructure:"area"`
	Housing   HousingConfig   `yaml:"housing" mapstructure:"housing"`
	Settings  SettingsConfig  `yaml:"settings" mapstructure:"settings"`
	Reconcile ReconcileConfig `yaml:"reconcile" mapstructure:"reconcile"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// ProviderConfig holds one external API's credential and endpoint.
type ProviderConfig struct {
	Key       string  `yaml:"key" mapstructure:"key"`
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// AnthropicConfig holds Anthropic API settings for candidate disambiguation.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`

	// TimeoutSecs bounds one selection call, retries included.
	TimeoutSecs int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// Timeout returns the per-selection deadline.
func (a AnthropicConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSecs) * time.Second
}

// LookupConfig bounds a single resolution.
type LookupConfig struct {
	Provider         string  `yaml:"provider" mapstructure:"provider"`
	TimeoutSecs      int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	StepTimeoutSecs  int     `yaml:"step_timeout_secs" mapstructure:"step_timeout_secs"`
	RadiusMiles      float64 `yaml:"radius_miles" mapstructure:"radius_miles"`
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	BreakerThreshold int     `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerCooldown  int     `yaml:"breaker_cooldown_secs" mapstructure:"breaker_cooldown_secs"`
}

// Timeout returns the request deadline.
func (l LookupConfig) Timeout() time.Duration {
	return time.Duration(l.TimeoutSecs) * time.Second
}

// StepTimeout returns the deadline for one provider step.
func (l LookupConfig) StepTimeout() time.Duration {
	return time.Duration(l.StepTimeoutSecs) * time.Second
}

// AreaConfig configures the demographics waterfall.
type AreaConfig struct {
	UseOpenData bool `yaml:"use_open_data" mapstructure:"use_open_data"`
	ACSYear     int  `yaml:"acs_year" mapstructure:"acs_year"`
}

// HousingConfig points at the rental-gap table.
type HousingConfig struct {
	GapTablePath string `yaml:"gap_table_path" mapstructure:"gap_table_path"`
}

// SettingsConfig configures the persisted settings store.
type SettingsConfig struct {
	Driver       string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL  string `yaml:"database_url" mapstructure:"database_url"`
	OverrideKey  string `yaml:"override_key" mapstructure:"override_key"`
	CacheTTLSecs int    `yaml:"cache_ttl_secs" mapstructure:"cache_ttl_secs"`
}

// ReconcileConfig configures form reconciliation.
type ReconcileConfig struct {
	DefaultsPath string `yaml:"defaults_path" mapstructure:"defaults_path"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PROPRES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("attom.base_url", "https://api.gateway.attomdata.com")
	v.SetDefault("attom.rate_limit", 5)
	v.SetDefault("melissa.rate_limit", 5)
	v.SetDefault("rentcast.rate_limit", 5)
	v.SetDefault("reportall.rate_limit", 5)
	v.SetDefault("census.rate_limit", 10)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("lookup.provider", "attom")
	v.SetDefault("lookup.timeout_secs", 20)
	v.SetDefault("lookup.step_timeout_secs", 6)
	v.SetDefault("anthropic.timeout_secs", 5)
	v.SetDefault("lookup.radius_miles", 2)
	v.SetDefault("lookup.max_attempts", 2)
	v.SetDefault("lookup.breaker_threshold", 5)
	v.SetDefault("lookup.breaker_cooldown_secs", 30)
	v.SetDefault("area.use_open_data", false)
	v.SetDefault("settings.driver", "none")
	v.SetDefault("settings.override_key", "attom.key")
	v.SetDefault("settings.cache_ttl_secs", 60)

	// Env-only keys are invisible to Unmarshal unless bound.
	for _, k := range []string{
		"attom.key", "melissa.key", "rentcast.key", "reportall.key",
		"census.key", "fred.key", "anthropic.key",
		"housing.gap_table_path", "settings.database_url", "reconcile.defaults_path",
	} {
		if err := v.BindEnv(k); err != nil {
			return nil, eris.Wrapf(err, "config: bind env %s", k)
		}
	}

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command needs before it starts.
func (c *Config) Validate(mode string) error {
	var problems []string
	if c.Lookup.TimeoutSecs <= 0 {
		problems = append(problems, "lookup.timeout_secs must be positive")
	}
	if c.Lookup.StepTimeoutSecs <= 0 || c.Lookup.StepTimeoutSecs >= c.Lookup.TimeoutSecs {
		problems = append(problems, "lookup.step_timeout_secs must be positive and below lookup.timeout_secs")
	}
	if c.Lookup.RadiusMiles <= 0 {
		problems = append(problems, "lookup.radius_miles must be positive")
	}
	switch c.Settings.Driver {
	case "", "none":
	case "sqlite", "postgres":
		if c.Settings.DatabaseURL == "" {
			problems = append(problems, "settings.database_url is required for driver "+c.Settings.Driver)
		}
	default:
		problems = append(problems, "settings.driver must be sqlite, postgres, or none")
	}
	if mode == "serve" && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		problems = append(problems, "server.port must be between 1 and 65535")
	}
	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Key returns the configured credential for a dotted key such as
// "attom.key". Unknown keys return "".
func (c *Config) Key(name string) string {
	switch name {
	case "attom.key":
		return c.ATTOM.Key
	case "melissa.key":
		return c.Melissa.Key
	case "rentcast.key":
		return c.Rentcast.Key
	case "reportall.key":
		return c.ReportAll.Key
	case "census.key":
		return c.Census.Key
	case "fred.key":
		return c.FRED.Key
	case "anthropic.key":
		return c.Anthropic.Key
	}
	return ""
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
