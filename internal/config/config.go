package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Vendors    VendorConfig     `mapstructure:"vendors"`
	Budget     BudgetConfig     `mapstructure:"budget"`
	Currency   CurrencyConfig   `mapstructure:"currency"`
	Catalogue  CatalogueConfig  `mapstructure:"catalogue"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	CORS       CORSConfig       `mapstructure:"cors"`
}

type ServerConfig struct {
	Port             int           `mapstructure:"port"`
	ReadTimeout      time.Duration `mapstructure:"read_timeout"`
	WriteTimeout     time.Duration `mapstructure:"write_timeout"`
	IdleTimeout      time.Duration `mapstructure:"idle_timeout"`
	GracefulShutdown time.Duration `mapstructure:"graceful_shutdown"`
}

// RedisConfig points at the single physical Redis backing both the Price
// Store (DB 0) and the Memory Store (DB 1). URL and ChatURL may differ only
// in their /<db> path segment.
type RedisConfig struct {
	URL      string `mapstructure:"url"`
	ChatURL  string `mapstructure:"chat_url"`
	PoolSize int    `mapstructure:"pool_size"`
}

// VendorConfig carries the upstream credentials the dispatcher attaches as
// Authorization: Bearer headers. Any of these may be empty if that vendor
// family is unused; the dispatcher returns an error for unrouted requests.
type VendorConfig struct {
	DashScopeAPIKey string `mapstructure:"dashscope_api_key"`
	DashScopeURL    string `mapstructure:"dashscope_url"`
	ZhipuAPIKey     string `mapstructure:"zhipu_api_key"`
	ZhipuURL        string `mapstructure:"zhipu_url"`
	DeepSeekAPIKey  string `mapstructure:"deepseek_api_key"`
	DeepSeekURL     string `mapstructure:"deepseek_url"`
}

// BudgetConfig is the startup limit for the Budget Controller's running-cost
// gate. It can be overridden at runtime via the config/limit operation.
type BudgetConfig struct {
	DefaultLimit float64 `mapstructure:"default_limit"`
}

// CurrencyConfig controls the heuristic in the Streaming Meter's cost
// attribution step.
type CurrencyConfig struct {
	Base                    string `mapstructure:"base"`
	ForceCNYForChineseModel bool   `mapstructure:"force_cny_for_chinese_models"`
}

// CatalogueConfig governs how often the Price Catalogue resyncs from its
// public source and the public source itself.
type CatalogueConfig struct {
	SourceURL    string        `mapstructure:"source_url"`
	SyncInterval time.Duration `mapstructure:"sync_interval"`
	StartupDelay time.Duration `mapstructure:"startup_delay"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

var cfg *Config

// Load reads config.yaml from configPath (or the working directory / ./config
// / /etc/sentinel), overlays environment variables, and applies defaults
// where setDefaults defines one. currency.base has no default: Load returns
// an error when it is unset.
func Load(configPath string) (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	if configPath != "" {
		viper.AddConfigPath(configPath)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("/etc/sentinel")
	}

	setDefaults()

	viper.AutomaticEnv()
	bindEnvVars()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if config.Currency.Base == "" {
		return nil, fmt.Errorf("currency.base (CURRENCY_BASE) must be set")
	}

	cfg = &config
	return cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "300s")
	viper.SetDefault("server.idle_timeout", "120s")
	viper.SetDefault("server.graceful_shutdown", "15s")

	viper.SetDefault("redis.url", "redis://127.0.0.1:6379/0")
	viper.SetDefault("redis.chat_url", "redis://127.0.0.1:6379/1")
	viper.SetDefault("redis.pool_size", 20)

	viper.SetDefault("budget.default_limit", 10.0)

	viper.SetDefault("currency.force_cny_for_chinese_models", true)

	viper.SetDefault("catalogue.source_url", "https://raw.githubusercontent.com/BerriAI/litellm/main/model_prices_and_context_window.json")
	viper.SetDefault("catalogue.sync_interval", "24h")
	viper.SetDefault("catalogue.startup_delay", "5s")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output_path", "")

	viper.SetDefault("cors.allow_credentials", true)
	viper.SetDefault("cors.max_age", 86400)
}

func bindEnvVars() {
	viper.BindEnv("server.port", "SERVER_PORT")

	viper.BindEnv("redis.url", "REDIS_URL")
	viper.BindEnv("redis.chat_url", "REDIS_CHAT_URL")

	viper.BindEnv("vendors.dashscope_api_key", "DASHSCOPE_API_KEY")
	viper.BindEnv("vendors.dashscope_url", "DASHSCOPE_URL")
	viper.BindEnv("vendors.zhipu_api_key", "ZHIPU_API_KEY")
	viper.BindEnv("vendors.zhipu_url", "ZHIPU_URL")
	viper.BindEnv("vendors.deepseek_api_key", "DEEPSEEK_API_KEY")
	viper.BindEnv("vendors.deepseek_url", "DEEPSEEK_URL")

	viper.BindEnv("budget.default_limit", "BUDGET_DEFAULT_LIMIT")

	viper.BindEnv("currency.base", "CURRENCY_BASE")
	viper.BindEnv("currency.force_cny_for_chinese_models", "FORCE_CNY_FOR_CHINESE_MODELS")

	viper.BindEnv("catalogue.source_url", "CATALOGUE_SOURCE_URL")
	viper.BindEnv("catalogue.sync_interval", "CATALOGUE_SYNC_INTERVAL")

	viper.BindEnv("logging.level", "LOG_LEVEL")
	viper.BindEnv("logging.format", "LOG_FORMAT")

	viper.BindEnv("cors.allowed_origins", "CORS_ALLOWED_ORIGINS")
	viper.BindEnv("cors.allowed_methods", "CORS_ALLOWED_METHODS")
	viper.BindEnv("cors.allowed_headers", "CORS_ALLOWED_HEADERS")
}

func Get() *Config {
	return cfg
}
