package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr      string
	PostgresDSN   string
	RedisAddr     string
	KafkaBrokers  []string
	ServiceName   string
	VerifyBaseURL string
	LogLevel      string
	OtelEndpoint  string
	AutoMigrate   bool

	NotifierGroup   string
	NotifierWorkers int
	OutboxInterval  time.Duration
	OutboxBatch     int
}

// Load reads the process environment. An empty POSTGRES_DSN selects the
// in-memory store and an empty REDIS_ADDR disables idempotency keys.
func Load() Config {
	return Config{
		HTTPAddr:      getenv("HTTP_ADDR", ":8081"),
		PostgresDSN:   os.Getenv("POSTGRES_DSN"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		KafkaBrokers:  splitCSV(getenv("KAFKA_BROKERS", "kafka:9092")),
		ServiceName:   getenv("SERVICE_NAME", "market-api"),
		VerifyBaseURL: strings.TrimRight(getenv("VERIFY_BASE_URL", "http://localhost:8081"), "/"),
		LogLevel:      getenv("LOG_LEVEL", "info"),
		OtelEndpoint:  os.Getenv("OTEL_ENDPOINT"),
		AutoMigrate:   getbool("AUTO_MIGRATE", true),

		NotifierGroup:   getenv("NOTIFIER_GROUP", "notifier-svc"),
		NotifierWorkers: getint("NOTIFIER_WORKERS", 4),
		OutboxInterval:  getduration("OUTBOX_INTERVAL", 2*time.Second),
		OutboxBatch:     getint("OUTBOX_BATCH", 100),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	i, err := strconv.Atoi(os.Getenv(k))
	if err != nil || i <= 0 {
		return def
	}
	return i
}

func getbool(k string, def bool) bool {
	b, err := strconv.ParseBool(os.Getenv(k))
	if err != nil {
		return def
	}
	return b
}

func getduration(k string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(k))
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
