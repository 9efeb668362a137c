package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config captures all runtime configuration derived from environment variables.
type Config struct {
	Port     string
	LogLevel string

	StoreBackend      string
	DBURL             string
	DBAutoMigrate     bool
	DBMaxConns        int
	DBMinConns        int
	DBMaxIdleSecs     int
	DBMaxLifeSecs     int
	DBConnTimeoutSecs int
	DBStatementCache  int

	CatalogURL         string
	CatalogImageURL    string
	CatalogAPIKey      string
	CatalogTimeoutSecs int

	JWTSecret      string
	JWTTTLHours    int
	BootstrapAdmin string

	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int

	ReadTimeoutSecs  int
	WriteTimeoutSecs int
	IdleTimeoutSecs  int
}

// Load reads configuration from environment variables, applying defaults and validation.
func Load() (Config, error) {
	cfg := Config{
		Port:               getEnv("PORT", "8080"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		StoreBackend:       strings.ToLower(getEnv("STORE_BACKEND", BackendPostgres)),
		DBURL:              os.Getenv("DB_URL"),
		DBAutoMigrate:      getEnvBool("DB_AUTO_MIGRATE", true),
		DBMaxConns:         getEnvInt("DB_MAX_CONNS", 20),
		DBMinConns:         getEnvInt("DB_MIN_CONNS", 2),
		DBMaxIdleSecs:      getEnvInt("DB_MAX_CONN_IDLE_SECS", 300),
		DBMaxLifeSecs:      getEnvInt("DB_MAX_CONN_LIFETIME_SECS", 3600),
		DBConnTimeoutSecs:  getEnvInt("DB_CONN_TIMEOUT_SECS", 10),
		DBStatementCache:   getEnvInt("DB_STATEMENT_CACHE_CAPACITY", 256),
		CatalogURL:         getEnv("TMDB_BASE_URL", "https://api.themoviedb.org/3"),
		CatalogImageURL:    getEnv("TMDB_IMAGE_BASE_URL", "https://image.tmdb.org/t/p"),
		CatalogAPIKey:      os.Getenv("TMDB_API_KEY"),
		CatalogTimeoutSecs: getEnvInt("TMDB_TIMEOUT_SECS", 10),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		JWTTTLHours:        getEnvInt("JWT_TTL_HOURS", 168),
		BootstrapAdmin:     os.Getenv("BOOTSTRAP_ADMIN_USERNAME"),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		RateLimitRPS:       getEnvFloat("RATE_LIMIT_RPS", 100.0/900.0),
		RateLimitBurst:     getEnvInt("RATE_LIMIT_BURST", 100),
		ReadTimeoutSecs:    getEnvInt("SERVER_READ_TIMEOUT", 15),
		WriteTimeoutSecs:   getEnvInt("SERVER_WRITE_TIMEOUT", 15),
		IdleTimeoutSecs:    getEnvInt("SERVER_IDLE_TIMEOUT", 60),
	}

	switch cfg.StoreBackend {
	case BackendPostgres:
		if cfg.DBURL == "" {
			return Config{}, fmt.Errorf("DB_URL is required")
		}
	case BackendMemory:
	default:
		return Config{}, fmt.Errorf("STORE_BACKEND must be %q or %q", BackendPostgres, BackendMemory)
	}
	if cfg.CatalogAPIKey == "" {
		return Config{}, fmt.Errorf("TMDB_API_KEY is required")
	}
	if cfg.CatalogTimeoutSecs <= 0 {
		return Config{}, fmt.Errorf("TMDB_TIMEOUT_SECS must be positive")
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.JWTTTLHours <= 0 {
		return Config{}, fmt.Errorf("JWT_TTL_HOURS must be positive")
	}
	if cfg.RateLimitRPS <= 0 {
		return Config{}, fmt.Errorf("RATE_LIMIT_RPS must be positive")
	}
	if cfg.RateLimitBurst <= 0 {
		return Config{}, fmt.Errorf("RATE_LIMIT_BURST must be positive")
	}
	if cfg.DBMaxConns <= 0 {
		return Config{}, fmt.Errorf("DB_MAX_CONNS must be positive")
	}
	if cfg.DBMinConns < 0 {
		return Config{}, fmt.Errorf("DB_MIN_CONNS must be non-negative")
	}
	if cfg.DBMinConns > cfg.DBMaxConns {
		return Config{}, fmt.Errorf("DB_MIN_CONNS cannot exceed DB_MAX_CONNS")
	}
	if cfg.DBStatementCache < 0 {
		return Config{}, fmt.Errorf("DB_STATEMENT_CACHE_CAPACITY must be non-negative")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
