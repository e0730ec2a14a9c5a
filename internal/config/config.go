package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	Env         string
	DatabaseURL string
	RedisURL    string
	MetricsAddr string

	JWTSecret       string
	JWTAccessExpiry time.Duration

	Log        LogConfig
	Session    SessionConfig
	Suggestion SuggestionConfig
}

type LogConfig struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type SessionConfig struct {
	SendBuffer    int
	IdleTTL       time.Duration
	SweepInterval time.Duration
}

type SuggestionConfig struct {
	// Providers is the preference order; the first provider that returns a
	// well-formed suggestion wins.
	Providers []string
	Timeout   time.Duration
	Cooldown  time.Duration

	OpenAI    ProviderConfig
	Anthropic ProviderConfig
	Ollama    ProviderConfig
}

type ProviderConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	return &Config{
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("ENV", "development"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", ""),
		MetricsAddr: getEnv("METRICS_ADDR", ":9090"),

		JWTSecret:       getEnvOrPanic("JWT_SECRET"),
		JWTAccessExpiry: getDuration("JWT_ACCESS_EXPIRY", 15*time.Minute),

		Log: LogConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			File:       getEnv("LOG_FILE", ""),
			MaxSizeMB:  getInt("LOG_MAX_SIZE_MB", 100),
			MaxBackups: getInt("LOG_MAX_BACKUPS", 5),
			MaxAgeDays: getInt("LOG_MAX_AGE_DAYS", 14),
		},

		Session: SessionConfig{
			SendBuffer:    getInt("WS_SEND_BUFFER", 256),
			IdleTTL:       getDuration("SESSION_IDLE_TTL", 30*time.Minute),
			SweepInterval: getDuration("SESSION_SWEEP_INTERVAL", time.Minute),
		},

		Suggestion: SuggestionConfig{
			Providers: getList("SUGGESTION_PROVIDERS", []string{"openai", "anthropic", "ollama"}),
			Timeout:   getDuration("SUGGESTION_TIMEOUT", 30*time.Second),
			Cooldown:  getDuration("SUGGESTION_COOLDOWN", 2*time.Minute),
			OpenAI: ProviderConfig{
				APIKey: getEnv("OPENAI_API_KEY", ""),
				Model:  getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			},
			Anthropic: ProviderConfig{
				APIKey: getEnv("ANTHROPIC_API_KEY", ""),
				Model:  getEnv("ANTHROPIC_MODEL", "claude-3-5-haiku-latest"),
			},
			Ollama: ProviderConfig{
				BaseURL: getEnv("OLLAMA_URL", ""),
				Model:   getEnv("OLLAMA_MODEL", "llama3.1"),
			},
		},
	}, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvOrPanic(key string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		panic("required environment variable not set: " + key)
	}
	return value
}

func getInt(key string, fallback int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return d
}

func getList(key string, fallback []string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(strings.ToLower(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}
