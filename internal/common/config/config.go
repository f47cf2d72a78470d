// internal/common/config/config.go
package config

// Config is the main application configuration struct.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	API      APIConfig      `mapstructure:"api"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Database DatabaseConfig `mapstructure:"database"`
	Credits  CreditsConfig  `mapstructure:"credits"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name         string `mapstructure:"name"`
	Version      string `mapstructure:"version"`
	Environment  string `mapstructure:"environment"`
	RegistryPath string `mapstructure:"registry_path"` // optional stage catalog replacing the built-in one
}

// APIConfig points at the generation service that hosts every stage endpoint.
type APIConfig struct {
	BaseURL       string         `mapstructure:"base_url"`
	APIKey        string         `mapstructure:"api_key"`
	Timeout       int            `mapstructure:"timeout"` // milliseconds
	MaxRetries    int            `mapstructure:"max_retries"`
	StageTimeouts map[string]int `mapstructure:"stage_timeouts"` // milliseconds, keyed by stage name
}

// CacheConfig controls the per-revision tech-file cache.
type CacheConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	TTLSeconds int  `mapstructure:"ttl_seconds"`
}

type DatabaseConfig struct {
	Redis RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// CreditsConfig controls the optional balance pre-check.
type CreditsConfig struct {
	CheckBalance bool   `mapstructure:"check_balance"`
	BalancePath  string `mapstructure:"balance_path"`
}

// MetricsConfig controls the /metrics and /health listener.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
