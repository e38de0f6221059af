// Package config loads runtime settings from an optional config file, a .env
// file and the process environment, in increasing order of precedence.
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
)

const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendDynamoDB = "dynamodb"
)

type Config struct {
	Log          Log          `mapstructure:"log"`
	Server       Server       `mapstructure:"server"`
	OpenAI       OpenAI       `mapstructure:"openai"`
	Mongo        Mongo        `mapstructure:"mongo"`
	Conversation Conversation `mapstructure:"conversation"`
	Redis        Redis        `mapstructure:"redis"`
	DynamoDB     DynamoDB     `mapstructure:"dynamodb"`
	Embeddings   Embeddings   `mapstructure:"embeddings"`
	Agent        Agent        `mapstructure:"agent"`
}

type Log struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json console"`
}

type Server struct {
	Addr           string        `mapstructure:"addr" validate:"required"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"gt=0"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

// OpenAI settings. When APIKey is empty the key is read from SSM under
// ParamPrefix.
type OpenAI struct {
	APIKey            string `mapstructure:"api_key"`
	ParamPrefix       string `mapstructure:"param_prefix"`
	BaseURL           string `mapstructure:"base_url"`
	ChatModel         string `mapstructure:"chat_model" validate:"required"`
	EmbeddingModel    string `mapstructure:"embedding_model" validate:"required"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute" validate:"gte=0"`
}

type Mongo struct {
	URI        string `mapstructure:"uri" validate:"required"`
	Database   string `mapstructure:"database" validate:"required"`
	Collection string `mapstructure:"collection" validate:"required"`
}

type Conversation struct {
	Backend string        `mapstructure:"backend" validate:"oneof=memory redis dynamodb"`
	TTL     time.Duration `mapstructure:"ttl" validate:"gt=0"`
}

type Redis struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db" validate:"gte=0"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type DynamoDB struct {
	Table string `mapstructure:"table"`
}

type Embeddings struct {
	CachePath string        `mapstructure:"cache_path"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl" validate:"gte=0"`
}

type Agent struct {
	MaxIterations  int  `mapstructure:"max_iterations" validate:"gt=0"`
	PlannerEnabled bool `mapstructure:"planner_enabled"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.request_timeout", 60*time.Second)
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.param_prefix", "")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("openai.chat_model", "gpt-4o-mini")
	v.SetDefault("openai.embedding_model", "text-embedding-3-small")
	v.SetDefault("openai.requests_per_minute", 0)

	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "development")
	v.SetDefault("mongo.collection", "ai_insight")

	v.SetDefault("conversation.backend", BackendMemory)
	v.SetDefault("conversation.ttl", 24*time.Hour)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "analytics-agent:")

	v.SetDefault("dynamodb.table", "")

	v.SetDefault("embeddings.cache_path", "")
	v.SetDefault("embeddings.cache_ttl", 30*24*time.Hour)

	v.SetDefault("agent.max_iterations", 5)
	v.SetDefault("agent.planner_enabled", true)
}

// Load reads configuration. An empty path looks for config.yaml in the
// working directory and ./configs; a missing file is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("mongo.uri", "MONGO_URI", "MONGODB_URI")
	_ = v.BindEnv("mongo.database", "MONGO_DATABASE", "MONGODB_DB_NAME")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New()

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: invalid: %w", err)
	}
	if c.OpenAI.APIKey == "" && c.OpenAI.ParamPrefix == "" {
		return errors.New("config: invalid: openai.api_key or openai.param_prefix is required")
	}
	switch c.Conversation.Backend {
	case BackendRedis:
		if c.Redis.Addr == "" {
			return errors.New("config: invalid: redis.addr is required for the redis backend")
		}
	case BackendDynamoDB:
		if c.DynamoDB.Table == "" {
			return errors.New("config: invalid: dynamodb.table is required for the dynamodb backend")
		}
	}
	return nil
}
