package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Manus     ManusConfig     `yaml:"manus" mapstructure:"manus"`
	Nominatim NominatimConfig `yaml:"nominatim" mapstructure:"nominatim"`
	Overpass  OverpassConfig  `yaml:"overpass" mapstructure:"overpass"`
	News      NewsConfig      `yaml:"news" mapstructure:"news"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Redis     RedisConfig     `yaml:"redis" mapstructure:"redis"`
	Analysis  AnalysisConfig  `yaml:"analysis" mapstructure:"analysis"`
	Circuit   CircuitConfig   `yaml:"circuit" mapstructure:"circuit"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// ManusConfig holds task-execution service settings.
type ManusConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TaskURLBase string `yaml:"task_url_base" mapstructure:"task_url_base"`
	ProjectID   string `yaml:"project_id" mapstructure:"project_id"`
}

// NominatimConfig holds geocoder settings.
type NominatimConfig struct {
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	UserAgent string  `yaml:"user_agent" mapstructure:"user_agent"`
	RPS       float64 `yaml:"rps" mapstructure:"rps"`
}

// OverpassConfig holds amenity lookup settings.
type OverpassConfig struct {
	BaseURL      string `yaml:"base_url" mapstructure:"base_url"`
	RadiusMeters int    `yaml:"radius_meters" mapstructure:"radius_meters"`
}

// NewsConfig holds NewsAPI settings. An empty key disables news lookups.
type NewsConfig struct {
	Key      string `yaml:"key" mapstructure:"key"`
	BaseURL  string `yaml:"base_url" mapstructure:"base_url"`
	Language string `yaml:"language" mapstructure:"language"`
	Limit    int    `yaml:"limit" mapstructure:"limit"`
}

// AnthropicConfig holds Anthropic API settings used for translation.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// RedisConfig configures the optional geocode cache.
type RedisConfig struct {
	URL      string `yaml:"url" mapstructure:"url"`
	TTLHours int    `yaml:"ttl_hours" mapstructure:"ttl_hours"`
}

// AnalysisConfig bounds the orchestrator's external calls.
type AnalysisConfig struct {
	EnrichmentTimeoutSecs int `yaml:"enrichment_timeout_secs" mapstructure:"enrichment_timeout_secs"`
	TaskTimeoutSecs       int `yaml:"task_timeout_secs" mapstructure:"task_timeout_secs"`
	StatusTimeoutSecs     int `yaml:"status_timeout_secs" mapstructure:"status_timeout_secs"`
	StaleProcessingMins   int `yaml:"stale_processing_mins" mapstructure:"stale_processing_mins"`
	MaxUploadMB           int `yaml:"max_upload_mb" mapstructure:"max_upload_mb"`
}

func (a AnalysisConfig) EnrichmentTimeout() time.Duration {
	return time.Duration(a.EnrichmentTimeoutSecs) * time.Second
}

func (a AnalysisConfig) TaskTimeout() time.Duration {
	return time.Duration(a.TaskTimeoutSecs) * time.Second
}

func (a AnalysisConfig) StatusTimeout() time.Duration {
	return time.Duration(a.StatusTimeoutSecs) * time.Second
}

func (a AnalysisConfig) StaleProcessing() time.Duration {
	return time.Duration(a.StaleProcessingMins) * time.Minute
}

// MaxUploadBytes converts MaxUploadMB to bytes.
func (a AnalysisConfig) MaxUploadBytes() int64 {
	return int64(a.MaxUploadMB) << 20
}

// CircuitConfig sets the circuit breaker policy for the enrichment
// services (geocoding, amenities).
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// envOnlyKeys are settings that have no default, typically credentials.
var envOnlyKeys = []string{
	"manus.key",
	"manus.project_id",
	"news.key",
	"anthropic.key",
	"redis.url",
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("EXPOSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Keys without a default are invisible to Unmarshal unless bound.
	for _, key := range envOnlyKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, eris.Wrapf(err, "config: bind env %s", key)
		}
	}

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "expose.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("manus.base_url", "https://api.manus.ai/v1")
	v.SetDefault("manus.task_url_base", "https://manus.im/app/")
	v.SetDefault("nominatim.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("nominatim.user_agent", "expose-cli/1.0")
	v.SetDefault("nominatim.rps", 1.0)
	v.SetDefault("overpass.base_url", "https://overpass-api.de/api/interpreter")
	v.SetDefault("overpass.radius_meters", 2000)
	v.SetDefault("news.base_url", "https://newsapi.org")
	v.SetDefault("news.language", "de")
	v.SetDefault("news.limit", 8)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("redis.ttl_hours", 720)
	v.SetDefault("analysis.enrichment_timeout_secs", 15)
	v.SetDefault("analysis.task_timeout_secs", 60)
	v.SetDefault("analysis.status_timeout_secs", 20)
	v.SetDefault("analysis.stale_processing_mins", 10)
	v.SetDefault("analysis.max_upload_mb", 10)
	v.SetDefault("circuit.failure_threshold", 5)
	v.SetDefault("circuit.reset_timeout_secs", 60)

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

// Validate checks the settings a command mode depends on. Modes: serve,
// migrate, run, translate, cli.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
		errs = append(errs, c.validateStore()...)
		errs = append(errs, c.validateAnalysis()...)
	case "run":
		if c.Manus.Key == "" {
			errs = append(errs, "manus.key is required")
		}
		errs = append(errs, c.validateStore()...)
		errs = append(errs, c.validateAnalysis()...)
	case "translate":
		if c.Anthropic.Key == "" {
			errs = append(errs, "anthropic.key is required")
		}
	case "migrate", "cli":
		errs = append(errs, c.validateStore()...)
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.New("config: " + strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateStore() []string {
	var errs []string
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("store.driver must be sqlite or postgres, got %q", c.Store.Driver))
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}
	return errs
}

func (c *Config) validateAnalysis() []string {
	var errs []string
	a := c.Analysis
	for _, f := range []struct {
		name  string
		value int
	}{
		{"analysis.enrichment_timeout_secs", a.EnrichmentTimeoutSecs},
		{"analysis.task_timeout_secs", a.TaskTimeoutSecs},
		{"analysis.status_timeout_secs", a.StatusTimeoutSecs},
		{"analysis.stale_processing_mins", a.StaleProcessingMins},
		{"analysis.max_upload_mb", a.MaxUploadMB},
	} {
		if f.value <= 0 {
			errs = append(errs, f.name+" must be > 0")
		}
	}
	if c.Overpass.RadiusMeters <= 0 || c.Overpass.RadiusMeters > 10000 {
		errs = append(errs, "overpass.radius_meters must be between 1 and 10000")
	}
	if c.Nominatim.RPS <= 0 {
		errs = append(errs, "nominatim.rps must be > 0")
	}
	return errs
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
