package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // APP_TIMEZONE must resolve on slim images

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
// It is the single source of truth for runtime parameters.
type Config struct {
	Port      string
	Env       string
	JWTSecret string
	JWTTTL    time.Duration

	// Location is used to derive the hour-of-day and calendar date for
	// pricing, ranking and order-pattern buckets.
	Location *time.Location

	// CORSOrigins lists the browser origins (host[:port]) allowed to call the API.
	CORSOrigins []string

	DB       DatabaseConfig
	Redis    RedisConfig
	Worker   WorkerConfig
	Realtime RealtimeConfig
	Images   ImageConfig
}

// DatabaseConfig contains PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// RedisConfig contains Redis connection parameters.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	MenuTTL  time.Duration
	CartTTL  time.Duration
}

// WorkerConfig contains interval configuration for the recompute scheduler.
type WorkerConfig struct {
	FullRecomputeInterval       time.Duration
	PriceRecomputeInterval      time.Duration
	PopularityRecomputeInterval time.Duration
	RankingRecomputeInterval    time.Duration
	RunOnStartup                bool
}

// RealtimeConfig contains push channel parameters.
type RealtimeConfig struct {
	PingInterval time.Duration
	BufferSize   int
}

// ImageConfig describes where product images are discovered.
type ImageConfig struct {
	Backend  string // local | s3
	Dir      string
	BaseURL  string
	Region   string
	Bucket   string
	Prefix   string
	Endpoint string
}

// Load reads configuration from environment variables. If a .env file exists
// in the working directory, it will be loaded first.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	// Server
	cfg.Port = getEnv("PORT", "8080")
	cfg.Env = getEnv("ENV", "development")
	cfg.JWTSecret = getEnv("JWT_SECRET", "")

	loc, err := time.LoadLocation(getEnv("APP_TIMEZONE", "Europe/London"))
	if err != nil {
		return nil, fmt.Errorf("invalid APP_TIMEZONE: %w", err)
	}
	cfg.Location = loc
	cfg.CORSOrigins = splitList(getEnv("CORS_ORIGINS", "localhost:3000,127.0.0.1:3000"))

	// Database
	cfg.DB = DatabaseConfig{
		Host:     getEnv("DB_HOST", ""),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", ""),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", ""),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}

	// Redis
	cfg.Redis = RedisConfig{
		Host:     getEnv("REDIS_HOST", "redis"),
		Port:     getEnv("REDIS_PORT", "6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getEnvInt("REDIS_DB", 0),
	}

	// Images
	cfg.Images = ImageConfig{
		Backend:  getEnv("IMAGE_BACKEND", "local"),
		Dir:      getEnv("IMAGE_DIR", "assets/images/products"),
		BaseURL:  getEnv("BASE_URL", "http://localhost:8080"),
		Region:   getEnv("S3_REGION", "eu-west-2"),
		Bucket:   getEnv("S3_BUCKET", ""),
		Prefix:   getEnv("S3_PREFIX", "images/products/"),
		Endpoint: getEnv("S3_ENDPOINT", ""),
	}

	cfg.Realtime.BufferSize = getEnvInt("WS_BUFFER_SIZE", 64)
	cfg.Worker.RunOnStartup = getEnvBool("RECOMPUTE_ON_STARTUP", true)

	// Durations
	if cfg.JWTTTL, err = parseDurationEnv("JWT_TTL", "168h"); err != nil {
		return nil, fmt.Errorf("invalid JWT_TTL: %w", err)
	}
	if cfg.Redis.MenuTTL, err = parseDurationEnv("MENU_CACHE_TTL", "12h"); err != nil {
		return nil, fmt.Errorf("invalid MENU_CACHE_TTL: %w", err)
	}
	if cfg.Redis.CartTTL, err = parseDurationEnv("CART_SESSION_TTL", "168h"); err != nil {
		return nil, fmt.Errorf("invalid CART_SESSION_TTL: %w", err)
	}
	if cfg.Realtime.PingInterval, err = parseDurationEnv("WS_PING_INTERVAL", "30s"); err != nil {
		return nil, fmt.Errorf("invalid WS_PING_INTERVAL: %w", err)
	}
	if cfg.Worker.FullRecomputeInterval, err = parseDurationEnv("FULL_RECOMPUTE_INTERVAL", "12h"); err != nil {
		return nil, fmt.Errorf("invalid FULL_RECOMPUTE_INTERVAL: %w", err)
	}
	if cfg.Worker.PriceRecomputeInterval, err = parseDurationEnv("PRICE_RECOMPUTE_INTERVAL", "2h"); err != nil {
		return nil, fmt.Errorf("invalid PRICE_RECOMPUTE_INTERVAL: %w", err)
	}
	if cfg.Worker.PopularityRecomputeInterval, err = parseDurationEnv("POPULARITY_RECOMPUTE_INTERVAL", "24h"); err != nil {
		return nil, fmt.Errorf("invalid POPULARITY_RECOMPUTE_INTERVAL: %w", err)
	}
	if cfg.Worker.RankingRecomputeInterval, err = parseDurationEnv("RANKING_RECOMPUTE_INTERVAL", "6h"); err != nil {
		return nil, fmt.Errorf("invalid RANKING_RECOMPUTE_INTERVAL: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DB.Host == "" || c.DB.User == "" || c.DB.Name == "" {
		return errors.New("database configuration incomplete: ensure DB_HOST, DB_USER, and DB_NAME are set")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set for authentication")
	}
	switch c.Images.Backend {
	case "local":
	case "s3":
		if c.Images.Bucket == "" {
			return errors.New("S3_BUCKET must be set when IMAGE_BACKEND=s3")
		}
	default:
		return fmt.Errorf("unknown IMAGE_BACKEND %q", c.Images.Backend)
	}
	// A zero recompute interval disables that job; the ping interval drives
	// liveness probes and cannot be disabled.
	if c.Realtime.PingInterval == 0 {
		return errors.New("WS_PING_INTERVAL must be greater than zero")
	}
	return nil
}

// getEnv returns the value of an environment variable or a default if empty.
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getEnvInt returns the value of an environment variable as an integer or a default if empty/invalid.
func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// parseDurationEnv reads an environment variable and parses it as time.Duration.
// If the variable is empty, it falls back to the provided default value.
func parseDurationEnv(key, def string) (time.Duration, error) {
	raw := getEnv(key, def)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must be >= 0")
	}
	return d, nil
}

// splitList splits a comma separated value, dropping blanks.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToLower(part))
		}
	}
	return out
}
