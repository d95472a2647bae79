package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewPolicyHolder),
)

// Config holds application configuration.
type Config struct {
	AppName      string
	AppVersion   string
	Environment  string
	HTTPAddr     string
	DefaultOrgID int64
	NodeID       int64
	Timezone     string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	WriteRatePerSecond float64
	WriteBurst         int

	Providers   ProvidersConfig
	Scheduler   SchedulerConfig
	MetricsPush MetricsPushConfig

	PolicyPaths  []string
	SeedBaseline bool
}

// ProvidersConfig points at the sibling services the core calls over HTTP.
type ProvidersConfig struct {
	AccountingURL  string
	StationURL     string
	DealerURL      string
	TransactionURL string
	NPAURL         string
	APIToken       string

	AlertWebhookURL string
	AlertChannel    string

	Timeout       time.Duration
	RatePerSecond float64
	Burst         int
}

type SchedulerConfig struct {
	Enabled     bool
	RunInterval time.Duration
	EnabledJobs []string
}

type MetricsPushConfig struct {
	Exporter  string
	Endpoint  string
	AuthToken string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:      getenv("APP_SERVICE", "petroprice"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  getenv("ENVIRONMENT", "development"),
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		DefaultOrgID: getenvInt64("DEFAULT_ORG", 0),
		NodeID:       getenvInt64("SNOWFLAKE_NODE", 1),
		Timezone:     getenv("PRICING_TIMEZONE", "Africa/Accra"),
		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "petroprice"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 1800),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 300),

		RedisAddr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		RedisDB:       getenvInt("REDIS_DB", 0),

		WriteRatePerSecond: getenvFloat("WRITE_RATE_PER_SECOND", 10),
		WriteBurst:         getenvInt("WRITE_RATE_BURST", 20),

		Providers: ProvidersConfig{
			AccountingURL:  strings.TrimSpace(getenv("ACCOUNTING_SERVICE_URL", "http://localhost:3001")),
			StationURL:     strings.TrimSpace(getenv("STATION_SERVICE_URL", "http://localhost:3002")),
			DealerURL:      strings.TrimSpace(getenv("DEALER_SERVICE_URL", "http://localhost:3003")),
			TransactionURL: strings.TrimSpace(getenv("TRANSACTION_SERVICE_URL", "http://localhost:3004")),
			NPAURL:         strings.TrimSpace(getenv("NPA_SERVICE_URL", "http://localhost:3005")),
			APIToken:       strings.TrimSpace(getenv("SERVICE_API_TOKEN", "")),

			AlertWebhookURL: strings.TrimSpace(getenv("ALERT_WEBHOOK_URL", "")),
			AlertChannel:    strings.TrimSpace(getenv("ALERT_CHANNEL", "")),

			Timeout:       getenvDuration("SERVICE_TIMEOUT", 30*time.Second),
			RatePerSecond: getenvFloat("SERVICE_RATE_PER_SECOND", 20),
			Burst:         getenvInt("SERVICE_RATE_BURST", 10),
		},
		Scheduler: SchedulerConfig{
			Enabled:     getenvBool("SCHEDULER_ENABLED", true),
			RunInterval: getenvDuration("SCHEDULER_RUN_INTERVAL", time.Minute),
			EnabledJobs: parseList(getenv("SCHEDULER_JOBS", "")),
		},
		MetricsPush: MetricsPushConfig{
			Exporter:  strings.ToLower(strings.TrimSpace(getenv("METRICS_PUSH_EXPORTER", ""))),
			Endpoint:  strings.TrimSpace(getenv("METRICS_PUSH_ENDPOINT", "")),
			AuthToken: strings.TrimSpace(getenv("METRICS_PUSH_AUTH_TOKEN", "")),
		},

		PolicyPaths:  parseList(getenv("PRICING_POLICY_PATHS", "/etc/petroprice,.")),
		SeedBaseline: getenvBool("SEED_BASELINE", false),
	}
}

// Location returns the pricing timezone, falling back to UTC.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(strings.TrimSpace(c.Timezone))
	if err != nil {
		return time.UTC
	}
	return loc
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt(key string, def int) int {
	return int(getenvInt64(key, int64(def)))
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}

func parseList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
