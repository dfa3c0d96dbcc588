// Package config loads service configuration from the environment.
// A .env file is honored when present (loaded by cmd/server via godotenv).
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ProviderConfig holds the per-vendor knobs. APIKey presence is what makes a
// provider eligible; the key content is opaque to this service.
type ProviderConfig struct {
	APIKey     string
	Model      string
	DailyLimit int
}

type Config struct {
	Port string

	// Providers is keyed by provider id: anthropic, gemini, openai, groq.
	Providers map[string]ProviderConfig

	// PriorityRaw is the comma-separated paid-tier provider order. It is kept
	// raw and parsed per request so priority changes need no restart semantics
	// beyond re-reading config.
	PriorityRaw string

	ProviderTimeout time.Duration

	QuotaBackend string // "file" or "redis"
	QuotaFile    string
	RedisAddr    string

	MockChunkDelay time.Duration
	MaxConcurrent  int64
	CORSOrigins    []string
	AMQPURL        string
}

func FromEnv() Config {
	return Config{
		Port: env("PORT", "8000"),
		Providers: map[string]ProviderConfig{
			"anthropic": {
				APIKey:     os.Getenv("ANTHROPIC_API_KEY"),
				Model:      env("ANTHROPIC_MODEL", "claude-3-5-sonnet-20241022"),
				DailyLimit: envInt("ANTHROPIC_DAILY_LIMIT", 100),
			},
			"gemini": {
				APIKey:     os.Getenv("GEMINI_API_KEY"),
				Model:      env("GEMINI_MODEL", "gemini-2.0-flash-exp"),
				DailyLimit: envInt("GEMINI_DAILY_LIMIT", 20),
			},
			"openai": {
				APIKey:     os.Getenv("OPENAI_API_KEY"),
				Model:      env("OPENAI_MODEL", "gpt-4o"),
				DailyLimit: envInt("OPENAI_DAILY_LIMIT", 1000),
			},
			"groq": {
				APIKey:     os.Getenv("GROQ_API_KEY"),
				Model:      env("GROQ_MODEL", "meta-llama/llama-4-maverick-17b-128e-instruct"),
				DailyLimit: envInt("GROQ_DAILY_LIMIT", 100),
			},
		},
		PriorityRaw:     env("PROVIDER_PRIORITY", "anthropic,gemini,openai"),
		ProviderTimeout: time.Duration(envInt("PROVIDER_TIMEOUT_SECONDS", 60)) * time.Second,
		QuotaBackend:    env("QUOTA_BACKEND", "file"),
		QuotaFile:       env("QUOTA_FILE", "rate_limit.json"),
		RedisAddr:       env("REDIS_ADDR", "localhost:6379"),
		MockChunkDelay:  time.Duration(envInt("MOCK_CHUNK_DELAY_MS", 10)) * time.Millisecond,
		MaxConcurrent:   int64(envInt("MAX_CONCURRENT_GENERATIONS", 16)),
		CORSOrigins: splitList(env("CORS_ORIGINS",
			"https://localhost:5241,https://new.express.adobe.com")),
		AMQPURL: env("AMQP_URL", ""),
	}
}

// Limits returns the daily limit per provider id.
func (c Config) Limits() map[string]int {
	limits := make(map[string]int, len(c.Providers))
	for name, pc := range c.Providers {
		limits[name] = pc.DailyLimit
	}
	return limits
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		n, _ := strconv.Atoi(v)
		if n > 0 {
			return n
		}
	}
	return def
}
