// Package config loads service configuration from an optional YAML file,
// a .env file and TABLEFIT_* environment variables, in increasing order
// of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/ahrav/go-tablefit/internal/domain"
	"github.com/ahrav/go-tablefit/internal/ports"
)

// EnvPrefix prefixes every environment override, e.g.
// TABLEFIT_POSTGRES_DSN for postgres.dsn.
const EnvPrefix = "TABLEFIT"

// Config is the full service configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Places   PlacesConfig   `mapstructure:"places"`
	Plan     PlanConfig     `mapstructure:"plan"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr" validate:"required"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" validate:"min=0"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" validate:"min=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=0"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
}

type PostgresConfig struct {
	DSN             string        `mapstructure:"dsn" validate:"required"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"min=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"min=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"min=0"`
	Migrate         bool          `mapstructure:"migrate"`
}

// RedisConfig configures the classification cache. An empty Addr runs
// without a cache.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"min=0"`
	Prefix   string `mapstructure:"prefix"`
}

// LLMConfig configures cuisine classification. With Enabled false the
// classify_cuisine unit must not appear in the plan.
type LLMConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Provider string `mapstructure:"provider" validate:"oneof=openai anthropic google"`
	APIKey   string `mapstructure:"api_key" validate:"required_if=Enabled true"`
	Model    string `mapstructure:"model" validate:"required_if=Enabled true"`
	BaseURL  string `mapstructure:"base_url" validate:"omitempty,url"`

	Timeout           time.Duration `mapstructure:"timeout" validate:"min=0"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" validate:"min=0"`
	Burst             int           `mapstructure:"burst" validate:"min=0"`
	MaxRetries        int           `mapstructure:"max_retries" validate:"min=0,max=10"`
	MaxFailures       uint32        `mapstructure:"max_failures"`
	Cooldown          time.Duration `mapstructure:"cooldown" validate:"min=0"`
}

type PlacesConfig struct {
	Google GoogleConfig `mapstructure:"google"`
	Yelp   YelpConfig   `mapstructure:"yelp"`
}

type GoogleConfig struct {
	APIKey            string  `mapstructure:"api_key" validate:"required"`
	BaseURL           string  `mapstructure:"base_url" validate:"omitempty,url"`
	MaxResults        int     `mapstructure:"max_results" validate:"min=0,max=20"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" validate:"min=0"`
}

// YelpConfig enables Yelp enrichment when APIKey is set.
type YelpConfig struct {
	APIKey            string  `mapstructure:"api_key"`
	BaseURL           string  `mapstructure:"base_url" validate:"omitempty,url"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" validate:"min=0"`
}

// PlanConfig picks the ranking plan. File wins over Builtin.
type PlanConfig struct {
	File    string `mapstructure:"file"`
	Builtin string `mapstructure:"builtin" validate:"required_without=File"`
}

var defaults = map[string]any{
	"server.addr":                       ":8080",
	"server.read_timeout":               "15s",
	"server.write_timeout":              "60s",
	"server.shutdown_timeout":           "20s",
	"log.level":                         "info",
	"log.format":                        "json",
	"postgres.dsn":                      "",
	"postgres.max_open_conns":           25,
	"postgres.max_idle_conns":           5,
	"postgres.conn_max_lifetime":        "5m",
	"postgres.migrate":                  false,
	"redis.addr":                        "",
	"redis.password":                    "",
	"redis.db":                          0,
	"redis.prefix":                      "tablefit:",
	"llm.enabled":                       false,
	"llm.provider":                      "openai",
	"llm.api_key":                       "",
	"llm.model":                         "gpt-4o-mini",
	"llm.base_url":                      "",
	"llm.timeout":                       "30s",
	"llm.requests_per_second":           2,
	"llm.burst":                         4,
	"llm.max_retries":                   2,
	"llm.max_failures":                  5,
	"llm.cooldown":                      "30s",
	"places.google.api_key":             "",
	"places.google.base_url":            "",
	"places.google.max_results":         20,
	"places.google.requests_per_second": 5,
	"places.yelp.api_key":               "",
	"places.yelp.base_url":              "",
	"places.yelp.requests_per_second":   5,
	"plan.file":                         "",
	"plan.builtin":                      "default",
}

var validate = validator.New()

// Load reads configuration. path may be empty to rely on defaults and
// the environment. A .env file in the working directory is loaded if
// present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, ports.NewConfigError(".env", err)
	}

	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, ports.NewConfigError(path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, ports.NewConfigError("unmarshal", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, ports.NewConfigError("validate", fmt.Errorf("%w: %w", domain.ErrInvalidConfiguration, err))
	}
	return &cfg, nil
}
