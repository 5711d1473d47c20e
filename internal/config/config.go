// Package config loads recipebook configuration from YAML files and the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/at-ishikawa/recipebook/internal/validation"
)

type Config struct {
	Database      DatabaseConfig      `mapstructure:"database"`
	Search        SearchConfig        `mapstructure:"search"`
	Allocator     AllocatorConfig     `mapstructure:"allocator"`
	Cache         CacheConfig         `mapstructure:"cache"`
	HomeAssistant HomeAssistantConfig `mapstructure:"home_assistant"`
	Outputs       OutputsConfig       `mapstructure:"outputs"`
}

type DatabaseConfig struct {
	Driver          string            `mapstructure:"driver" validate:"required,oneof=postgres mariadb mysql"`
	Host            string            `mapstructure:"host" validate:"required"`
	Port            int               `mapstructure:"port" validate:"gt=0,lte=65535"`
	Database        string            `mapstructure:"database" validate:"required"`
	Username        string            `mapstructure:"username"`
	Password        string            `mapstructure:"password"`
	TLS             bool              `mapstructure:"tls"`
	SSLMode         string            `mapstructure:"ssl_mode" validate:"omitempty,oneof=disable allow prefer require verify-ca verify-full"`
	Params          map[string]string `mapstructure:"params"`
	MaxOpenConns    int               `mapstructure:"max_open_conns" validate:"gte=0"`
	MaxIdleConns    int               `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime int               `mapstructure:"conn_max_lifetime_seconds" validate:"gte=0"`
}

// IsPostgres reports whether the configured driver talks to PostgreSQL.
func (c DatabaseConfig) IsPostgres() bool {
	return c.Driver == "postgres"
}

type SearchConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds" validate:"gt=0"`
	DefaultLimit   int `mapstructure:"default_limit" validate:"gt=0"`
	MaxLimit       int `mapstructure:"max_limit" validate:"gtefield=DefaultLimit"`
}

func (c SearchConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type AllocatorConfig struct {
	MaxAttempts int `mapstructure:"max_attempts" validate:"gt=0"`
}

type CacheConfig struct {
	RedisURL   string `mapstructure:"redis_url" validate:"omitempty,url"`
	TTLSeconds int    `mapstructure:"ttl_seconds" validate:"gte=0"`
}

func (c CacheConfig) Enabled() bool {
	return c.RedisURL != ""
}

func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

type HomeAssistantConfig struct {
	BaseURL        string `mapstructure:"base_url" validate:"omitempty,url"`
	Token          string `mapstructure:"token"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" validate:"gt=0"`
	RetryAttempts  int    `mapstructure:"retry_attempts" validate:"gte=0"`
}

func (c HomeAssistantConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type OutputsConfig struct {
	ShoppingListDirectory string `mapstructure:"shopping_list_directory"`
}

type ConfigLoader struct {
	viper      *viper.Viper
	validator  *validator.Validate
	translator ut.Translator
	envFiles   []string
}

func NewConfigLoader(configFile string, envFiles ...string) (*ConfigLoader, error) {
	validate, trans, err := validation.New("mapstructure")
	if err != nil {
		return nil, fmt.Errorf("failed to create new validator: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/recipebook")
	}

	return &ConfigLoader{
		viper:      v,
		validator:  validate,
		translator: trans,
		envFiles:   envFiles,
	}, nil
}

// envBindings maps config keys to the environment variables the deployment sets.
var envBindings = map[string]string{
	"database.driver":         "DB_TYPE",
	"database.host":           "DB_HOST",
	"database.port":           "DB_PORT",
	"database.database":       "DB_NAME",
	"database.username":       "DB_USER",
	"database.password":       "DB_PASSWORD",
	"cache.redis_url":         "REDIS_URL",
	"home_assistant.base_url": "HA_BASE_URL",
	"home_assistant.token":    "HA_TOKEN",
}

func defaultPort(driver string) int {
	if driver == "postgres" {
		return 5432
	}
	return 3306
}

func (loader *ConfigLoader) Load() (*Config, error) {
	v := loader.viper

	// .env files only fill variables that are not already set
	if err := godotenv.Load(loader.envFiles...); err != nil && len(loader.envFiles) > 0 {
		return nil, fmt.Errorf("failed to load env files %v: %w", loader.envFiles, err)
	}

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.database", "recipes")
	v.SetDefault("database.username", "postgres")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime_seconds", 300)
	v.SetDefault("search.timeout_seconds", 15)
	v.SetDefault("search.default_limit", 20)
	v.SetDefault("search.max_limit", 100)
	v.SetDefault("allocator.max_attempts", 100)
	v.SetDefault("cache.ttl_seconds", 300)
	v.SetDefault("home_assistant.timeout_seconds", 10)
	v.SetDefault("home_assistant.retry_attempts", 2)
	v.SetDefault("outputs.shopping_list_directory", "outputs")

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s environment variable: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("configuration file found but could not be read: %w. Please check the file format and permissions", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration format: %w", err)
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = defaultPort(cfg.Database.Driver)
	}

	if err := loader.validator.Struct(cfg); err != nil {
		var validationErrors validator.ValidationErrors
		if !errors.As(err, &validationErrors) {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		var errorMsgs []string
		for _, e := range validationErrors {
			errorMsgs = append(errorMsgs, e.Translate(loader.translator))
		}
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(errorMsgs, ", "))
	}

	return &cfg, nil
}
