package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	LLM      LLMConfig
	Audit    AuditConfig
	Worker   WorkerConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	RateLimitRPS   float64
	RateLimitBurst int
	AllowedOrigins []string
}

type DatabaseConfig struct {
	URL            string
	MaxConns       int
	MinConns       int
	MigrationsPath string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret string
}

type LLMConfig struct {
	OpenAIKey        string
	AnthropicKey     string
	DefaultProvider  string
	DefaultModel     string
	FallbackProvider string
	FallbackModel    string
}

// AuditConfig tunes the audit pipeline. The retry and timeout values are
// defaults; a single audit run may override them.
type AuditConfig struct {
	GenerationModel    string
	AnnotationModel    string
	Temperature        float64
	CallTimeout        time.Duration
	RetryMaxAttempts   int
	RetryInitialDelay  time.Duration
	RetryMaxDelay      time.Duration
	MaxRecommendations int
	TrendAuditLimit    int
	LockTTL            time.Duration
	TaskTimeout        time.Duration
	SourcesConfigPath  string
	DashboardCacheTTL  time.Duration
}

type WorkerConfig struct {
	Concurrency int
	// MetricsAddr serves /metrics from the worker when set.
	MetricsAddr string
}

func Load() (*Config, error) {
	port, err := getEnvInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	rps, err := getEnvFloat("RATE_LIMIT_RPS", 20)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_RPS: %w", err)
	}

	burst, err := getEnvInt("RATE_LIMIT_BURST", 40)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_BURST: %w", err)
	}

	maxConns, err := getEnvInt("DB_MAX_CONNS", 20)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}

	minConns, err := getEnvInt("DB_MIN_CONNS", 5)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MIN_CONNS: %w", err)
	}

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	temperature, err := getEnvFloat("AUDIT_TEMPERATURE", 0.2)
	if err != nil {
		return nil, fmt.Errorf("invalid AUDIT_TEMPERATURE: %w", err)
	}

	callTimeout, err := getEnvDuration("AUDIT_CALL_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid AUDIT_CALL_TIMEOUT: %w", err)
	}

	maxAttempts, err := getEnvInt("AUDIT_RETRY_MAX_ATTEMPTS", 3)
	if err != nil {
		return nil, fmt.Errorf("invalid AUDIT_RETRY_MAX_ATTEMPTS: %w", err)
	}

	initialDelay, err := getEnvDuration("AUDIT_RETRY_INITIAL_DELAY", 500*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("invalid AUDIT_RETRY_INITIAL_DELAY: %w", err)
	}

	maxDelay, err := getEnvDuration("AUDIT_RETRY_MAX_DELAY", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid AUDIT_RETRY_MAX_DELAY: %w", err)
	}

	maxRecs, err := getEnvInt("AUDIT_MAX_RECOMMENDATIONS", 20)
	if err != nil {
		return nil, fmt.Errorf("invalid AUDIT_MAX_RECOMMENDATIONS: %w", err)
	}

	trendLimit, err := getEnvInt("AUDIT_TREND_LIMIT", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid AUDIT_TREND_LIMIT: %w", err)
	}

	lockTTL, err := getEnvDuration("AUDIT_LOCK_TTL", 45*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid AUDIT_LOCK_TTL: %w", err)
	}

	taskTimeout, err := getEnvDuration("AUDIT_TASK_TIMEOUT", 40*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid AUDIT_TASK_TIMEOUT: %w", err)
	}

	cacheTTL, err := getEnvDuration("DASHBOARD_CACHE_TTL", 10*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid DASHBOARD_CACHE_TTL: %w", err)
	}

	concurrency, err := getEnvInt("WORKER_CONCURRENCY", 4)
	if err != nil {
		return nil, fmt.Errorf("invalid WORKER_CONCURRENCY: %w", err)
	}

	defaultModel := getEnv("LLM_DEFAULT_MODEL", "gpt-4o")

	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           port,
			RateLimitRPS:   rps,
			RateLimitBurst: burst,
			AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			MaxConns:       maxConns,
			MinConns:       minConns,
			MigrationsPath: getEnv("MIGRATIONS_PATH", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		LLM: LLMConfig{
			OpenAIKey:        getEnv("OPENAI_API_KEY", ""),
			AnthropicKey:     getEnv("ANTHROPIC_API_KEY", ""),
			DefaultProvider:  getEnv("LLM_DEFAULT_PROVIDER", "openai"),
			DefaultModel:     defaultModel,
			FallbackProvider: getEnv("LLM_FALLBACK_PROVIDER", ""),
			FallbackModel:    getEnv("LLM_FALLBACK_MODEL", ""),
		},
		Audit: AuditConfig{
			GenerationModel:    getEnv("AUDIT_GENERATION_MODEL", defaultModel),
			AnnotationModel:    getEnv("AUDIT_ANNOTATION_MODEL", defaultModel),
			Temperature:        temperature,
			CallTimeout:        callTimeout,
			RetryMaxAttempts:   maxAttempts,
			RetryInitialDelay:  initialDelay,
			RetryMaxDelay:      maxDelay,
			MaxRecommendations: maxRecs,
			TrendAuditLimit:    trendLimit,
			LockTTL:            lockTTL,
			TaskTimeout:        taskTimeout,
			SourcesConfigPath:  getEnv("AUDIT_SOURCES_CONFIG", ""),
			DashboardCacheTTL:  cacheTTL,
		},
		Worker: WorkerConfig{
			Concurrency: concurrency,
			MetricsAddr: getEnv("WORKER_METRICS_ADDR", ""),
		},
	}

	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) Validate() error {
	var missing []string
	if c.Database.URL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.Auth.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if c.LLM.OpenAIKey == "" && c.LLM.AnthropicKey == "" {
		missing = append(missing, "OPENAI_API_KEY or ANTHROPIC_API_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(v, 64)
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return time.ParseDuration(v)
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
