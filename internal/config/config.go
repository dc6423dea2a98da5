package config

import (
	"errors"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Apollo    ApolloConfig    `yaml:"apollo" mapstructure:"apollo"`
	Output    OutputConfig    `yaml:"output" mapstructure:"output"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Directory DirectoryConfig `yaml:"directory" mapstructure:"directory"`
	Metrics   MetricsConfig   `yaml:"metrics" mapstructure:"metrics"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// ApolloConfig holds the bulk match API credentials, quota and retry policy.
type ApolloConfig struct {
	Key             string       `yaml:"key" mapstructure:"key"`
	BaseURL         string       `yaml:"base_url" mapstructure:"base_url"`
	Limits          ApolloLimits `yaml:"limits" mapstructure:"limits"`
	MaxAttempts     int          `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoff  int          `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoff      int          `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	MinutePauseSecs int          `yaml:"minute_pause_secs" mapstructure:"minute_pause_secs"`
	TimeoutSecs     int          `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// ApolloLimits are the static quota ceilings of the plan in use.
type ApolloLimits struct {
	Daily   int `yaml:"daily" mapstructure:"daily"`
	Hourly  int `yaml:"hourly" mapstructure:"hourly"`
	Minute  int `yaml:"minute" mapstructure:"minute"`
	PerCall int `yaml:"per_call" mapstructure:"per_call"`
}

// OutputConfig locates the persisted artifacts.
type OutputConfig struct {
	Dir          string `yaml:"dir" mapstructure:"dir"`
	EnrichedFile string `yaml:"enriched_file" mapstructure:"enriched_file"`
	RejectedFile string `yaml:"rejected_file" mapstructure:"rejected_file"`
	RosterFile   string `yaml:"roster_file" mapstructure:"roster_file"`
}

// StoreConfig configures the SQLite run ledger. An empty path disables it.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// DirectoryConfig configures the profile page collector.
type DirectoryConfig struct {
	BaseURL       string  `yaml:"base_url" mapstructure:"base_url"`
	Concurrency   int     `yaml:"concurrency" mapstructure:"concurrency"`
	RatePerSecond float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	TimeoutSecs   int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxAttempts   int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	CacheTTLHours int     `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
}

// MetricsConfig configures the Prometheus textfile export.
type MetricsConfig struct {
	Textfile string `yaml:"textfile" mapstructure:"textfile"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, file and environment.
func Load() (*Config, error) {
	// .env only fills variables that are not already set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ROSTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("apollo.key", "ROSTER_APOLLO_KEY", "APOLLO_IO_API_KEY"); err != nil {
		return nil, eris.Wrap(err, "config: bind apollo key")
	}

	// Defaults
	v.SetDefault("apollo.base_url", "https://api.apollo.io")
	v.SetDefault("apollo.limits.daily", 600)
	v.SetDefault("apollo.limits.hourly", 200)
	v.SetDefault("apollo.limits.minute", 50)
	v.SetDefault("apollo.limits.per_call", 10)
	v.SetDefault("apollo.max_attempts", 3)
	v.SetDefault("apollo.initial_backoff_ms", 500)
	v.SetDefault("apollo.max_backoff_ms", 30000)
	v.SetDefault("apollo.minute_pause_secs", 60)
	v.SetDefault("apollo.timeout_secs", 60)
	v.SetDefault("output.dir", "output/enriched")
	v.SetDefault("output.enriched_file", "enriched-members.json")
	v.SetDefault("output.rejected_file", "rejected-members.json")
	v.SetDefault("output.roster_file", "output/roster.json")
	v.SetDefault("store.path", "output/roster.db")
	v.SetDefault("directory.base_url", "https://www.ycombinator.com")
	v.SetDefault("directory.concurrency", 10)
	v.SetDefault("directory.rate_per_second", 5)
	v.SetDefault("directory.timeout_secs", 30)
	v.SetDefault("directory.max_attempts", 3)
	v.SetDefault("directory.cache_ttl_hours", 24)
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

// Validate checks the settings the given command needs.
func (c *Config) Validate(command string) error {
	var problems []string
	require := func(ok bool, msg string) {
		if !ok {
			problems = append(problems, msg)
		}
	}

	switch command {
	case "enrich":
		require(c.Apollo.Key != "", "apollo.key is required (or APOLLO_IO_API_KEY)")
		require(c.Apollo.BaseURL != "", "apollo.base_url is required")
		require(c.Output.Dir != "", "output.dir is required")
		require(c.Apollo.Limits.Hourly > 0, "apollo.limits.hourly must be positive")
		require(c.Apollo.Limits.Minute > 0, "apollo.limits.minute must be positive")
		require(c.Apollo.Limits.PerCall > 0, "apollo.limits.per_call must be positive")
		require(c.Apollo.Limits.PerCall <= c.Apollo.Limits.Minute, "apollo.limits.per_call must not exceed apollo.limits.minute")
	case "harvest":
		require(c.Output.RosterFile != "", "output.roster_file is required")
		require(c.Directory.Concurrency > 0, "directory.concurrency must be positive")
		require(c.Directory.RatePerSecond > 0, "directory.rate_per_second must be positive")
	case "status", "export":
		require(c.Output.Dir != "", "output.dir is required")
	case "runs":
		require(c.Store.Path != "", "store.path is required")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
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
