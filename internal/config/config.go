package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config contains runtime configuration values.
type Config struct {
	Environment          string
	HTTPPort             string
	ServiceName          string
	DatabaseURL          string
	DashboardURL         string
	RedisURL             string
	RedisAddr            string
	RedisUsername        string
	RedisPassword        string
	RedisDB              int
	RedisTLS             bool
	StoreTimeout         time.Duration
	AccessTokenSecret    string
	RefreshTokenSecret   string
	AccessTokenTTL       time.Duration
	RefreshTokenTTL      time.Duration
	BotSecret            string
	AdminSecret          string
	DiscordClientID      string
	DiscordClientSecret  string
	DiscordRedirectURL   string
	NodeID               int64
	RateLimitRPM         int
	TelemetryEndpoint    string
	TelemetryInsecure    bool
	CORSAllowedOrigins   []string
	CORSAllowedMethods   []string
	CORSAllowedHeaders   []string
	CORSAllowCredentials bool
}

// Load reads configuration from environment variables with sane defaults.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Environment:          getEnv("APP_ENV", "development"),
		HTTPPort:             getEnv("HTTP_PORT", "8080"),
		ServiceName:          getEnv("SERVICE_NAME", "guildgate-api"),
		DatabaseURL:          strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DashboardURL:         strings.TrimRight(getEnv("DASHBOARD_URL", "http://localhost:3000"), "/"),
		RedisURL:             strings.TrimSpace(os.Getenv("REDIS_URL")),
		RedisAddr:            getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisUsername:        os.Getenv("REDIS_USERNAME"),
		RedisPassword:        os.Getenv("REDIS_PASSWORD"),
		RedisDB:              getInt("REDIS_DB", 0),
		RedisTLS:             getBool("REDIS_TLS", false),
		StoreTimeout:         getDuration("STORE_TIMEOUT", 3*time.Second),
		AccessTokenSecret:    strings.TrimSpace(os.Getenv("JWT_ACCESS_SECRET")),
		RefreshTokenSecret:   strings.TrimSpace(os.Getenv("JWT_REFRESH_SECRET")),
		AccessTokenTTL:       getDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL:      getDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),
		BotSecret:            strings.TrimSpace(os.Getenv("BOT_API_SECRET")),
		AdminSecret:          strings.TrimSpace(os.Getenv("ADMIN_API_SECRET")),
		DiscordClientID:      os.Getenv("DISCORD_CLIENT_ID"),
		DiscordClientSecret:  os.Getenv("DISCORD_CLIENT_SECRET"),
		DiscordRedirectURL:   os.Getenv("DISCORD_REDIRECT_URL"),
		NodeID:               int64(getInt("NODE_ID", 1)),
		RateLimitRPM:         getInt("RATE_LIMIT_RPM", 600),
		TelemetryEndpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		TelemetryInsecure:    getBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		CORSAllowedOrigins:   getList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		CORSAllowedMethods:   getList("CORS_ALLOWED_METHODS", []string{"GET", "POST", "DELETE", "OPTIONS"}),
		CORSAllowedHeaders:   getList("CORS_ALLOWED_HEADERS", []string{"Authorization", "Content-Type"}),
		CORSAllowCredentials: getBool("CORS_ALLOW_CREDENTIALS", false),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"JWT_ACCESS_SECRET", c.AccessTokenSecret},
		{"JWT_REFRESH_SECRET", c.RefreshTokenSecret},
		{"BOT_API_SECRET", c.BotSecret},
		{"ADMIN_API_SECRET", c.AdminSecret},
		{"DATABASE_URL", c.DatabaseURL},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%s is required", r.name)
		}
	}
	if c.AccessTokenSecret == c.RefreshTokenSecret {
		return fmt.Errorf("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return fmt.Errorf("token TTLs must be positive")
	}
	return nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(v) {
		case "1", "true", "t", "yes", "y", "on":
			return true
		case "0", "false", "f", "no", "n", "off":
			return false
		}
	}
	return def
}

func getList(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok {
		parts := strings.Split(v, ",")
		var cleaned []string
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				cleaned = append(cleaned, trimmed)
			}
		}
		if len(cleaned) > 0 {
			return cleaned
		}
	}
	return def
}
