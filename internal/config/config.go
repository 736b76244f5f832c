package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration from environment variables.
type Config struct {
	Port        int
	DBPath      string // empty disables the SQLite topology store
	RoutePath   string // YAML route file; empty uses the built-in route
	ImportRoute bool   // CLI flag: seed the DB from the route file, then exit

	FeedURL      string
	PollInterval time.Duration
	HTTPTimeout  time.Duration
	Relays       []string // relay names to try after the direct path, in order
	UserStop     int
	VehicleID    string
	SSEInterval  time.Duration

	GeminiAPIKey      string
	GeminiModel       string
	AdvisoryTimeout   time.Duration
	AdvisorySpacing   time.Duration
	AdvisoryHibernate time.Duration
	ManualCooldown    time.Duration

	NATSURL string
	AMQPURL string

	LogLevel  string
	LogFormat string
}

// Load reads configuration from environment variables with defaults.
// A .env file in the working directory is applied first when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:      envInt("ARCTICBUS_PORT", 8080),
		DBPath:    envStr("ARCTICBUS_DB_PATH", ""),
		RoutePath: envStr("ARCTICBUS_ROUTE_FILE", ""),

		FeedURL:      envStr("ARCTICBUS_FEED_URL", "https://fireortrash.com/gps"),
		PollInterval: envDuration("ARCTICBUS_POLL_INTERVAL", 10*time.Second),
		HTTPTimeout:  envDuration("ARCTICBUS_HTTP_TIMEOUT", 15*time.Second),
		Relays:       envList("ARCTICBUS_RELAYS", []string{"corsproxy", "allorigins", "codetabs"}),
		UserStop:     envInt("ARCTICBUS_USER_STOP", 5),
		VehicleID:    envStr("ARCTICBUS_VEHICLE_ID", "iqaluit-1"),
		SSEInterval:  envDuration("ARCTICBUS_SSE_INTERVAL", 5*time.Second),

		GeminiAPIKey:      envStr("GEMINI_API_KEY", ""),
		GeminiModel:       envStr("ARCTICBUS_GEMINI_MODEL", "gemini-2.5-flash"),
		AdvisoryTimeout:   envDuration("ARCTICBUS_ADVISORY_TIMEOUT", 20*time.Second),
		AdvisorySpacing:   envDuration("ARCTICBUS_ADVISORY_SPACING", 45*time.Second),
		AdvisoryHibernate: envDuration("ARCTICBUS_ADVISORY_HIBERNATE", 300*time.Second),
		ManualCooldown:    envDuration("ARCTICBUS_MANUAL_COOLDOWN", 30*time.Second),

		NATSURL: envStr("ARCTICBUS_NATS_URL", ""),
		AMQPURL: envStr("ARCTICBUS_AMQP_URL", ""),

		LogLevel:  envStr("LOG_LEVEL", "info"),
		LogFormat: envStr("LOG_FORMAT", "text"),
	}
}

// Validate checks values that would otherwise fail later at startup.
func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.FeedURL == "" {
		errs = append(errs, errors.New("feed url is required"))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, errors.New("poll interval must be positive"))
	}
	if c.UserStop < 0 {
		errs = append(errs, errors.New("user stop must not be negative"))
	}
	if c.NATSURL != "" && c.AMQPURL != "" {
		errs = append(errs, errors.New("set at most one of ARCTICBUS_NATS_URL and ARCTICBUS_AMQP_URL"))
	}
	if c.ImportRoute && (c.DBPath == "" || c.RoutePath == "") {
		errs = append(errs, errors.New("-import-route needs both a database and a route file"))
	}
	return errors.Join(errs...)
}

// Logger builds the structured logger. level is debug, info, warn or error;
// format is text or json.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if strings.ToLower(c.LogFormat) == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// envList splits a comma-separated value. A value of "none" yields an empty list.
func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if strings.EqualFold(v, "none") {
		return []string{}
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
