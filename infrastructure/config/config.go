package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends
const (
	StorePostgres = "postgres"
	StoreDynamoDB = "dynamodb"
	StoreMemory   = "memory"
)

// Idempotency backends
const (
	IdempotencyMemory   = "memory"
	IdempotencyRedis    = "redis"
	IdempotencyDynamoDB = "dynamodb"
)

// Suggestion scorers
const (
	ScorerKeyword   = "keyword"
	ScorerEmbedding = "embedding"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string
	Environment   string

	// Store selection
	StoreBackend      string
	DatabaseURL       string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	AutoMigrate       bool

	// AWS configuration
	AWSRegion      string
	DynamoDBTable  string
	EventBusName   string
	RateLimitTable string

	// Lambda configuration
	IsLambda           bool
	LambdaFunctionName string

	// Logging
	LogLevel string

	// Authentication
	SupabaseURL string
	SupabaseKey string
	JWTSecret   string
	JWTIssuer   string

	// Idempotency
	IdempotencyBackend string
	IdempotencyTTL     time.Duration
	RedisURL           string

	// Suggestions
	SuggestionScorer string
	OpenAIAPIKey     string
	OpenAIBaseURL    string
	EmbeddingModel   string

	// Domain rules file, hot-reloaded in development
	DomainConfigFile  string
	WatchDomainConfig bool

	// Rate limiting and resilience
	RateLimitPerMinute  int
	BreakerMaxFailures  int
	BreakerOpenTimeout  time.Duration
	RequestTimeout      time.Duration
	CORSAllowedOrigins  []string
	MetricsNamespace    string
	CloudWatchNamespace string

	// Feature flags
	EnableMetrics bool
	EnableTracing bool
	EnableCORS    bool
}

// LoadConfig loads configuration from environment variables. A .env file in
// the working directory is read first when present; real environment
// variables win over it.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	environment := getEnv("ENVIRONMENT", "development")
	cfg := &Config{
		ServerAddress: getEnv("SERVER_ADDRESS", ":8080"),
		Environment:   environment,

		StoreBackend:      getEnv("STORE_BACKEND", StorePostgres),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		DBMaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 10),
		DBMaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
		DBConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		AutoMigrate:       getEnvBool("AUTO_MIGRATE", environment == "development"),

		AWSRegion:      getEnv("AWS_REGION", "us-west-2"),
		DynamoDBTable:  getEnv("TABLE_NAME", getEnv("DYNAMODB_TABLE", "bobbin")),
		EventBusName:   getEnv("EVENT_BUS_NAME", ""),
		RateLimitTable: getEnv("RATE_LIMIT_TABLE", ""),

		IsLambda:           getEnvBool("IS_LAMBDA", os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != ""),
		LambdaFunctionName: getEnv("AWS_LAMBDA_FUNCTION_NAME", ""),

		SupabaseURL: getEnv("SUPABASE_URL", ""),
		SupabaseKey: getEnv("SUPABASE_KEY", getEnv("SUPABASE_ANON_KEY", "")),
		JWTSecret:   getEnv("JWT_SECRET", ""),
		JWTIssuer:   getEnv("JWT_ISSUER", "bobbin"),

		IdempotencyBackend: getEnv("IDEMPOTENCY_BACKEND", IdempotencyMemory),
		IdempotencyTTL:     getEnvDuration("IDEMPOTENCY_TTL", 24*time.Hour),
		RedisURL:           getEnv("REDIS_URL", ""),

		SuggestionScorer: getEnv("SUGGESTION_SCORER", ScorerKeyword),
		OpenAIAPIKey:     getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:    getEnv("OPENAI_BASE_URL", ""),
		EmbeddingModel:   getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),

		DomainConfigFile:  getEnv("DOMAIN_CONFIG_FILE", ""),
		WatchDomainConfig: getEnvBool("WATCH_DOMAIN_CONFIG", environment == "development"),

		RateLimitPerMinute:  getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		BreakerMaxFailures:  getEnvInt("BREAKER_MAX_FAILURES", 5),
		BreakerOpenTimeout:  getEnvDuration("BREAKER_OPEN_TIMEOUT", 30*time.Second),
		RequestTimeout:      getEnvDuration("REQUEST_TIMEOUT", 15*time.Second),
		CORSAllowedOrigins:  getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		MetricsNamespace:    getEnv("METRICS_NAMESPACE", "bobbin"),
		CloudWatchNamespace: getEnv("CLOUDWATCH_NAMESPACE", "Bobbin/Backend"),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		EnableMetrics: getEnvBool("ENABLE_METRICS", true),
		EnableTracing: getEnvBool("ENABLE_TRACING", false),
		EnableCORS:    getEnvBool("ENABLE_CORS", true),
	}

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
	case StoreDynamoDB:
		if c.DynamoDBTable == "" {
			return fmt.Errorf("TABLE_NAME is required for the dynamodb store")
		}
	case StoreMemory:
		if c.IsProduction() {
			return fmt.Errorf("the memory store cannot be used in production")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	switch c.IdempotencyBackend {
	case IdempotencyMemory, IdempotencyDynamoDB:
	case IdempotencyRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for redis idempotency keys")
		}
	default:
		return fmt.Errorf("unknown IDEMPOTENCY_BACKEND %q", c.IdempotencyBackend)
	}

	switch c.SuggestionScorer {
	case ScorerKeyword:
	case ScorerEmbedding:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for the embedding scorer")
		}
	default:
		return fmt.Errorf("unknown SUGGESTION_SCORER %q", c.SuggestionScorer)
	}

	if c.IsProduction() && c.SupabaseURL == "" && c.JWTSecret == "" {
		return fmt.Errorf("SUPABASE_URL or JWT_SECRET is required in production")
	}

	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration parses values like "30s" or "5m"
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated variable
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
