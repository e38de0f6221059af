package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "sk-test", cfg.OpenAI.APIKey)
	require.Equal(t, "gpt-4o-mini", cfg.OpenAI.ChatModel)
	require.Equal(t, "text-embedding-3-small", cfg.OpenAI.EmbeddingModel)
	require.Equal(t, BackendMemory, cfg.Conversation.Backend)
	require.Equal(t, 24*time.Hour, cfg.Conversation.TTL)
	require.Equal(t, ":8080", cfg.Server.Addr)
	require.Equal(t, 5, cfg.Agent.MaxIterations)
	require.True(t, cfg.Agent.PlannerEnabled)
	require.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	path := writeConfig(t, `
log:
  level: debug
  format: console
openai:
  param_prefix: /analytics/prod
mongo:
  database: marketing
conversation:
  backend: redis
  ttl: 2h
redis:
  addr: redis:6379
`)
	t.Setenv("MONGO_DATABASE", "marketing_staging")
	t.Setenv("AGENT_MAX_ITERATIONS", "8")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, "console", cfg.Log.Format)
	require.Equal(t, "/analytics/prod", cfg.OpenAI.ParamPrefix)
	require.Equal(t, "marketing_staging", cfg.Mongo.Database)
	require.Equal(t, BackendRedis, cfg.Conversation.Backend)
	require.Equal(t, 2*time.Hour, cfg.Conversation.TTL)
	require.Equal(t, "redis:6379", cfg.Redis.Addr)
	require.Equal(t, 8, cfg.Agent.MaxIterations)
}

func TestLoad_MongoAliases(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("MONGODB_URI", "mongodb+srv://cluster.example")
	t.Setenv("MONGODB_DB_NAME", "production")
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "mongodb+srv://cluster.example", cfg.Mongo.URI)
	require.Equal(t, "production", cfg.Mongo.Database)
	require.Equal(t, "ai_insight", cfg.Mongo.Collection)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.ErrorContains(t, err, "config: read")
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Log:          Log{Level: "info", Format: "json"},
			Server:       Server{Addr: ":8080", RequestTimeout: time.Minute},
			OpenAI:       OpenAI{APIKey: "k", ChatModel: "m", EmbeddingModel: "e"},
			Mongo:        Mongo{URI: "mongodb://x", Database: "d", Collection: "c"},
			Conversation: Conversation{Backend: BackendMemory, TTL: time.Hour},
			Agent:        Agent{MaxIterations: 5},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "no key source", mutate: func(c *Config) { c.OpenAI.APIKey = "" }, wantErr: "openai.api_key"},
		{name: "unknown backend", mutate: func(c *Config) { c.Conversation.Backend = "sqlite" }, wantErr: "Backend"},
		{name: "bad log level", mutate: func(c *Config) { c.Log.Level = "trace" }, wantErr: "Level"},
		{name: "dynamodb without table", mutate: func(c *Config) { c.Conversation.Backend = BackendDynamoDB }, wantErr: "dynamodb.table"},
		{name: "zero iterations", mutate: func(c *Config) { c.Agent.MaxIterations = 0 }, wantErr: "MaxIterations"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}
