package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration resolved from the environment.
type Config struct {
	AppEnv         string
	LogLevel       string
	HTTPListenAddr string

	DatabaseDriver string // "postgres" or "sqlite"
	DatabaseURL    string
	SQLitePath     string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTLS      bool

	GeminiAPIKeys  []string
	GeminiModel    string
	GeminiTimeout  time.Duration
	GeminiCooldown time.Duration

	TwilioAccountSID   string
	TwilioAuthToken    string
	TwilioWhatsAppFrom string

	MetricsNamespace string
	CatalogCacheTTL  time.Duration

	CompanyName     string
	CompanyAddress  string
	CompanySchedule string
	DeliveryDays    int
}

// Load reads configuration from the environment and validates required fields.
func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:         getEnv("APP_ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		HTTPListenAddr: getEnv("HTTP_LISTEN_ADDR", ":8080"),

		DatabaseDriver: strings.ToLower(getEnv("DATABASE_DRIVER", "postgres")),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		SQLitePath:     getEnv("SQLITE_PATH", "data/bot.db"),

		RedisAddr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		RedisTLS:      getEnvBool("REDIS_TLS", false),

		GeminiAPIKeys:  splitList(os.Getenv("GEMINI_API_KEYS")),
		GeminiModel:    getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		GeminiTimeout:  getEnvDuration("GEMINI_TIMEOUT", 20*time.Second),
		GeminiCooldown: getEnvDuration("GEMINI_COOLDOWN", 5*time.Minute),

		TwilioAccountSID:   os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:    os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioWhatsAppFrom: getEnv("TWILIO_WHATSAPP_FROM", "whatsapp:+14155238886"),

		MetricsNamespace: getEnv("METRICS_NAMESPACE", "fresst_bot"),
		CatalogCacheTTL:  getEnvDuration("CATALOG_CACHE_TTL", 5*time.Minute),

		CompanyName:     getEnv("COMPANY_NAME", "FRESST"),
		CompanyAddress:  getEnv("COMPANY_ADDRESS", "Av. Maldonado e Islas Malvinas, junto a entrada de Ecovía Nueva Aurora, Quito"),
		CompanySchedule: getEnv("COMPANY_SCHEDULE", "Martes a Domingo de 9:00 AM a 6:00 PM"),
		DeliveryDays:    getEnvInt("DELIVERY_DAYS", 2),
	}

	switch cfg.DatabaseDriver {
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required when DATABASE_DRIVER=postgres")
		}
	case "sqlite":
		if cfg.SQLitePath == "" {
			return nil, fmt.Errorf("SQLITE_PATH is required when DATABASE_DRIVER=sqlite")
		}
	default:
		return nil, fmt.Errorf("unsupported DATABASE_DRIVER %q", cfg.DatabaseDriver)
	}

	if len(cfg.GeminiAPIKeys) == 0 {
		return nil, fmt.Errorf("GEMINI_API_KEYS is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	res := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			res = append(res, p)
		}
	}
	return res
}
