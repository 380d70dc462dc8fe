package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config groups every section read from the environment at startup.
type Config struct {
	Server   Server
	Database Database
	Redis    RedisConfig
	Brevo    BrevoConfig
	Audit    AuditConfig
	Tracing  Tracing
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr              string        `envconfig:"ADDR" default:":8080"`
	MetricsAddr       string        `envconfig:"METRICS_ADDR" default:":9090"`
	LogLevel          string        `envconfig:"LOG_LEVEL" default:"info"`
	ReadHeaderTimeout time.Duration `envconfig:"READ_HEADER_TIMEOUT" default:"5s"`
	// WriteTimeout must outlast the notification timeout since the access code
	// email is awaited before responding.
	WriteTimeout    time.Duration `envconfig:"WRITE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`
}

// Database describes how to reach the nftform table. DATABASE_URL wins when
// set; otherwise the DSN is assembled from the PG* variables and the Cloud SQL
// unix socket directory.
type Database struct {
	URL             string        `envconfig:"DATABASE_URL"`
	Driver          string        `envconfig:"DB_DRIVER" default:"pgx"`
	User            string        `envconfig:"PGUSER"`
	Password        string        `envconfig:"PGPASSWORD"`
	Name            string        `envconfig:"PGDATABASE"`
	Socket          string        `envconfig:"INSTANCE_UNIX_SOCKET"`
	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"30m"`
}

// RedisConfig configures the optional existence cache. An empty URL disables it.
type RedisConfig struct {
	URL          string        `envconfig:"REDIS_URL"`
	PoolSize     int           `envconfig:"REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"REDIS_WRITE_TIMEOUT" default:"3s"`
	CacheTTL     time.Duration `envconfig:"REDIS_CACHE_TTL" default:"0s"`
}

// BrevoConfig configures the transactional email sender.
type BrevoConfig struct {
	APIKey     string        `envconfig:"BREVO_API_KEY"`
	TemplateID int64         `envconfig:"BREVO_TEMPLATE_ID" default:"63"`
	Endpoint   string        `envconfig:"BREVO_ENDPOINT" default:"https://api.brevo.com/v3/smtp/email"`
	Timeout    time.Duration `envconfig:"NOTIFY_TIMEOUT" default:"30s"`
}

// AuditConfig selects where audit events go. No brokers means events are logged.
type AuditConfig struct {
	Brokers    []string `envconfig:"KAFKA_BROKERS"`
	Topic      string   `envconfig:"AUDIT_TOPIC" default:"nftform.audit"`
	BufferSize int      `envconfig:"AUDIT_BUFFER_SIZE" default:"256"`

	// Consecutive Kafka failures before events are diverted to the log.
	BreakerThreshold int           `envconfig:"AUDIT_BREAKER_THRESHOLD" default:"5"`
	BreakerCooldown  time.Duration `envconfig:"AUDIT_BREAKER_COOLDOWN" default:"30s"`
}

// Tracing selects the span exporter. "none" keeps the global no-op provider.
// The otlp exporter reads the standard OTEL_EXPORTER_OTLP_* variables itself.
type Tracing struct {
	Exporter    string  `envconfig:"OTEL_TRACES_EXPORTER" default:"none"`
	SampleRatio float64 `envconfig:"OTEL_TRACES_SAMPLER_ARG" default:"1"`
	ServiceName string  `envconfig:"OTEL_SERVICE_NAME" default:"nftform"`
}

// FromEnv builds the configuration from environment variables so main stays lean.
func FromEnv() (Config, error) {
	var cfg Config
	sections := []struct {
		name string
		dst  any
	}{
		{"server", &cfg.Server},
		{"database", &cfg.Database},
		{"redis", &cfg.Redis},
		{"brevo", &cfg.Brevo},
		{"audit", &cfg.Audit},
		{"tracing", &cfg.Tracing},
	}
	for _, section := range sections {
		if err := envconfig.Process("", section.dst); err != nil {
			return Config{}, fmt.Errorf("load %s config: %w", section.name, err)
		}
	}
	if err := cfg.Database.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Configured reports whether any Postgres connection settings were provided.
func (d Database) Configured() bool {
	return d.URL != "" || d.Name != ""
}

// DSN returns the connection string for the selected driver. Both pgx and
// lib/pq accept the keyword/value form built here.
func (d Database) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	parts := []string{}
	add := func(key, value string) {
		if value != "" {
			parts = append(parts, key+"="+quoteDSNValue(value))
		}
	}
	add("host", d.Socket)
	add("user", d.User)
	add("password", d.Password)
	add("dbname", d.Name)
	if d.Socket != "" {
		parts = append(parts, "sslmode=disable")
	}
	return strings.Join(parts, " ")
}

func (d Database) validate() error {
	switch d.Driver {
	case "pgx", "postgres":
		return nil
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q (want pgx or postgres)", d.Driver)
	}
}

func quoteDSNValue(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}
