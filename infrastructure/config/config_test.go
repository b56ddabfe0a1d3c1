package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	domainconfig "bobbin-backend/domain/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("ENVIRONMENT", "development")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ServerAddress)
	assert.Equal(t, StoreMemory, cfg.StoreBackend)
	assert.Equal(t, IdempotencyMemory, cfg.IdempotencyBackend)
	assert.Equal(t, ScorerKeyword, cfg.SuggestionScorer)
	assert.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
	assert.True(t, cfg.AutoMigrate)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadConfig_ReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("STORE_BACKEND=memory\nCORS_ALLOWED_ORIGINS=https://a.example, https://b.example\n"), 0o600))
	t.Chdir(dir)
	t.Setenv("ENVIRONMENT", "staging")
	unsetenv(t, "STORE_BACKEND", "CORS_ALLOWED_ORIGINS")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, StoreMemory, cfg.StoreBackend)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
}

// unsetenv removes keys for the test; values loaded from .env are undone
// by the t.Setenv cleanup.
func unsetenv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Environment:        "development",
			StoreBackend:       StorePostgres,
			DatabaseURL:        "postgres://localhost/bobbin",
			IdempotencyBackend: IdempotencyMemory,
			SuggestionScorer:   ScorerKeyword,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "postgres without url", mutate: func(c *Config) { c.DatabaseURL = "" }, wantErr: "DATABASE_URL"},
		{name: "unknown store", mutate: func(c *Config) { c.StoreBackend = "mongo" }, wantErr: "STORE_BACKEND"},
		{name: "memory in production", mutate: func(c *Config) {
			c.StoreBackend = StoreMemory
			c.Environment = "production"
		}, wantErr: "memory store"},
		{name: "redis without url", mutate: func(c *Config) { c.IdempotencyBackend = IdempotencyRedis }, wantErr: "REDIS_URL"},
		{name: "embedding without key", mutate: func(c *Config) { c.SuggestionScorer = ScorerEmbedding }, wantErr: "OPENAI_API_KEY"},
		{name: "production without auth", mutate: func(c *Config) { c.Environment = "production" }, wantErr: "JWT_SECRET"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadDomainConfig_LayersFileOverEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "domain.yaml")
	require.NoError(t, os.WriteFile(path, []byte("duplicate_connection_policy: return_existing\nmax_suggestion_limit: 20\n"), 0o600))

	cfg, err := LoadDomainConfig(path, "production")
	require.NoError(t, err)

	assert.Equal(t, domainconfig.DuplicateReturnExisting, cfg.DuplicateConnectionPolicy)
	assert.Equal(t, 20, cfg.MaxSuggestionLimit)
	assert.Equal(t, domainconfig.ProductionDomainConfig().MaxBodyLength, cfg.MaxBodyLength)
}

func TestLoadDomainConfig_RejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "domain.yaml")
	require.NoError(t, os.WriteFile(path, []byte("duplicate_connection_policy: merge\n"), 0o600))

	_, err := LoadDomainConfig(path, "development")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate_connection_policy")

	_, err = LoadDomainConfig(filepath.Join(t.TempDir(), "missing.yaml"), "development")
	assert.Error(t, err)
}

func TestDomainConfigWatcher_AppliesValidChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "domain.yaml")
	require.NoError(t, os.WriteFile(path, []byte("allow_self_connections: false\n"), 0o600))

	applied := make(chan *domainconfig.DomainConfig, 4)
	watcher := NewDomainConfigWatcher(path, "development", func(cfg *domainconfig.DomainConfig) {
		select {
		case applied <- cfg:
		default:
		}
	}, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- watcher.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	require.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte("allow_self_connections: true\n"), 0o600)
		select {
		case cfg := <-applied:
			return cfg.AllowSelfConnections
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 100*time.Millisecond)
}
