package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	SwapiBaseURL    string
	UpstreamTimeout time.Duration
	UserAgent       string
	MongoURI        string
	MongoDB         string
	RedisURL        string
	StatsInterval   time.Duration
	StatsWarmStart  bool
	RateLimitRPS    float64
	RateLimitBurst  int
}

func LoadConfig() Config {
	return Config{
		HTTPAddr:        getEnv("HTTP_ADDR", ":8000"),
		LogLevel:        strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:       strings.ToLower(getEnv("LOG_FORMAT", "text")),
		SwapiBaseURL:    strings.TrimRight(getEnv("SWAPI_BASE_URL", "https://swapi.dev/api"), "/"),
		UpstreamTimeout: time.Duration(getEnvInt("UPSTREAM_TIMEOUT_SECONDS", 15)) * time.Second,
		UserAgent:       getEnv("UPSTREAM_USER_AGENT", "catalog-search/1.0"),
		MongoURI:        getEnv("MONGO_URI", ""),
		MongoDB:         getEnv("MONGO_DB", "catalog"),
		RedisURL:        getEnv("REDIS_URL", ""),
		StatsInterval:   time.Duration(getEnvNonNegativeInt("STATS_RECOMPUTE_MINUTES", 15)) * time.Minute,
		StatsWarmStart:  getEnvBool("STATS_WARM_START", false),
		RateLimitRPS:    float64(getEnvNonNegativeInt("RATE_LIMIT_RPS", 50)),
		RateLimitBurst:  getEnvInt("RATE_LIMIT_BURST", 100),
	}
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

// getEnvNonNegativeInt accepts 0, which callers treat as "disabled".
func getEnvNonNegativeInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
