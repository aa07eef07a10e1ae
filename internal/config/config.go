package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	GeminiKey   string
	GeminiModel string

	DatabaseURL string // optional; empty uses the built-in network

	NATSURL        string // optional; empty disables publishing
	NATSSubject    string
	LogNATSSubject bool

	TickInterval    time.Duration
	SuggestDebounce time.Duration

	MetricsAddr string
}

func Load() (*Config, error) {
	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.Port = getenvDefault("PORT", "8080")

	// Service credential: missing is allowed at startup. Planning
	// fails with a config error and suggestions degrade to empty.
	cfg.GeminiKey = firstNonEmpty(
		os.Getenv("GEMINI_API_KEY"),
		os.Getenv("API_KEY"),
	)
	cfg.GeminiModel = getenvDefault("GEMINI_MODEL", "gemini-2.5-flash")

	// Database DSN: prefer DATABASE_URL / PG_DSN, else build from PG*
	// vars when a database name is present.
	dsn := firstNonEmpty(
		os.Getenv("DATABASE_URL"),
		os.Getenv("PG_DSN"),
	)
	if dsn == "" && os.Getenv("PGDATABASE") != "" {
		host := getenvDefault("PGHOST", "127.0.0.1")
		port := getenvDefault("PGPORT", "5432")
		user := getenvDefault("PGUSER", "postgres")
		pass := os.Getenv("PGPASSWORD")
		db := os.Getenv("PGDATABASE")
		sslmode := getenvDefault("PGSSLMODE", "disable")
		if pass != "" {
			dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", urlEscape(user), urlEscape(pass), host, port, db, sslmode)
		} else {
			dsn = fmt.Sprintf("postgres://%s@%s:%s/%s?sslmode=%s", urlEscape(user), host, port, db, sslmode)
		}
	}
	cfg.DatabaseURL = dsn

	cfg.NATSURL = os.Getenv("NATS_URL")
	cfg.NATSSubject = getenvDefault("NATS_STREAM_NAME", "VEHICLES")

	if v := os.Getenv("TICK_INTERVAL_MS"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil || ms <= 0 {
			return nil, fmt.Errorf("invalid TICK_INTERVAL_MS: %q", v)
		}
		cfg.TickInterval = time.Duration(ms) * time.Millisecond
	} else {
		cfg.TickInterval = 100 * time.Millisecond
	}

	if v := os.Getenv("SUGGEST_DEBOUNCE_MS"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil || ms <= 0 {
			return nil, fmt.Errorf("invalid SUGGEST_DEBOUNCE_MS: %q", v)
		}
		cfg.SuggestDebounce = time.Duration(ms) * time.Millisecond
	} else {
		cfg.SuggestDebounce = 500 * time.Millisecond
	}

	if v := os.Getenv("LOG_NATS_SUBJECTS"); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "t", "yes", "y", "on":
			cfg.LogNATSSubject = true
		default:
			cfg.LogNATSSubject = false
		}
	}

	// Metrics listen address (e.g., ":9102"). Empty disables the metrics server.
	cfg.MetricsAddr = os.Getenv("METRICS_ADDR")

	return cfg, nil
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func urlEscape(s string) string {
	// Minimal escape for DSN user/pass with special chars
	r := strings.NewReplacer("@", "%40", ":", "%3A", "/", "%2F", "?", "%3F", "#", "%23")
	return r.Replace(s)
}
