package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"consentry/pkg/secrets"
)

// DevSecret signs verification tokens when GDPR_SECRET is unset outside
// production. Startup logs a warning whenever it is in use.
const DevSecret = "dev-gdpr-secret-change-in-production"

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	Environment     string
	LogLevel        slog.Level
	SiteName        string
	SiteURL         string
	GDPRSecret      secrets.Secret
	UsingDevSecret  bool
	EffectTimeout   time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	TrustedProxies  []netip.Prefix
	SeedDemoData    bool

	Email      EmailConfig
	SMTP       SMTPConfig
	Postmark   PostmarkConfig
	Redis      RedisConfig
	Database   DatabaseConfig
	Kafka      KafkaConfig
	Controller ControllerConfig
	Consent    ConsentConfig
	RateLimit  RateLimitConfig
}

// EmailConfig selects the outbound transport.
type EmailConfig struct {
	// Transport is one of "log", "smtp", "postmark".
	Transport string
	From      string
	// BreakerThreshold consecutive failures open the circuit around the transport.
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password secrets.Secret
}

type PostmarkConfig struct {
	ServerToken   secrets.Secret
	Endpoint      string
	MessageStream string
}

// RedisConfig enables the Redis replay guard when URL is set.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig enables the Postgres replay guard when URL is set and Redis is not.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// KafkaConfig enables publishing audit events when Brokers is set.
type KafkaConfig struct {
	Brokers         string
	AuditTopic      string
	Acks            string
	Retries         int
	DeliveryTimeout time.Duration
}

// ControllerConfig identifies the data controller in outgoing emails.
type ControllerConfig struct {
	Name    string
	Email   string
	Phone   string
	Company string
}

// ConsentConfig drives the cookie consent endpoints.
type ConsentConfig struct {
	// HeadScripts are third-party script URLs offered to every page; each is
	// gated by the category its URL classifies to.
	HeadScripts   []string
	SecureCookies bool
	// ScriptFetchTimeout bounds the reachability check done on first load.
	ScriptFetchTimeout time.Duration
}

// RateLimitConfig caps GDPR request submissions per client IP. Limit 0
// disables the limiter.
type RateLimitConfig struct {
	Limit  int
	Window time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	cfg := Server{
		Addr:            envOr("CONSENTRY_ADDR", ":8080"),
		Environment:     envOr("CONSENTRY_ENV", "development"),
		SiteName:        envOr("SITE_NAME", "Consentry"),
		SiteURL:         strings.TrimRight(envOr("SITE_URL", "http://localhost:8080"), "/"),
		EffectTimeout:   15 * time.Second,
		RequestTimeout:  30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		SeedDemoData:    os.Getenv("SEED_DEMO_DATA") != "false",
		Email: EmailConfig{
			Transport:        envOr("EMAIL_TRANSPORT", "log"),
			From:             envOr("EMAIL_FROM", "Consentry <gdpr@localhost>"),
			BreakerThreshold: 5,
			BreakerCooldown:  30 * time.Second,
		},
		SMTP: SMTPConfig{
			Host:     envOr("SMTP_HOST", "localhost"),
			Port:     587,
			Username: os.Getenv("SMTP_USER"),
			Password: secrets.New(os.Getenv("SMTP_PASS")),
		},
		Postmark: PostmarkConfig{
			ServerToken:   secrets.New(os.Getenv("POSTMARK_SERVER_TOKEN")),
			Endpoint:      envOr("POSTMARK_ENDPOINT", "https://api.postmarkapp.com/email"),
			MessageStream: envOr("POSTMARK_MESSAGE_STREAM", "outbound"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:         os.Getenv("KAFKA_BROKERS"),
			AuditTopic:      envOr("KAFKA_AUDIT_TOPIC", "consentry.audit"),
			Acks:            envOr("KAFKA_ACKS", "all"),
			Retries:         3,
			DeliveryTimeout: 30 * time.Second,
		},
		Controller: ControllerConfig{
			Name:    envOr("GDPR_CONTROLLER_NAME", "Data Protection Officer"),
			Email:   envOr("GDPR_CONTROLLER_EMAIL", "gdpr@localhost"),
			Phone:   os.Getenv("GDPR_CONTROLLER_PHONE"),
			Company: os.Getenv("GDPR_CONTROLLER_COMPANY_ID"),
		},
		Consent: ConsentConfig{
			HeadScripts:        splitList(os.Getenv("CONSENT_HEAD_SCRIPTS")),
			ScriptFetchTimeout: 5 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Limit:  5,
			Window: time.Hour,
		},
	}
	cfg.Consent.SecureCookies = strings.HasPrefix(cfg.SiteURL, "https://")

	secret := os.Getenv("GDPR_SECRET")
	if secret == "" {
		if cfg.Environment == "production" {
			return Server{}, errors.New("GDPR_SECRET is required when CONSENTRY_ENV=production")
		}
		secret = DevSecret
		cfg.UsingDevSecret = true
	}
	cfg.GDPRSecret = secrets.New(secret)

	var err error
	if cfg.LogLevel, err = parseLevel(os.Getenv("LOG_LEVEL")); err != nil {
		return Server{}, err
	}

	durations := []struct {
		env string
		dst *time.Duration
	}{
		{"GDPR_EFFECT_TIMEOUT", &cfg.EffectTimeout},
		{"HTTP_REQUEST_TIMEOUT", &cfg.RequestTimeout},
		{"SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout},
		{"EMAIL_BREAKER_COOLDOWN", &cfg.Email.BreakerCooldown},
		{"REDIS_DIAL_TIMEOUT", &cfg.Redis.DialTimeout},
		{"DATABASE_CONN_MAX_LIFETIME", &cfg.Database.ConnMaxLifetime},
		{"KAFKA_DELIVERY_TIMEOUT", &cfg.Kafka.DeliveryTimeout},
		{"CONSENT_SCRIPT_FETCH_TIMEOUT", &cfg.Consent.ScriptFetchTimeout},
		{"GDPR_RATE_WINDOW", &cfg.RateLimit.Window},
	}
	for _, d := range durations {
		if err := parseDuration(d.env, d.dst); err != nil {
			return Server{}, err
		}
	}

	ints := []struct {
		env string
		dst *int
	}{
		{"SMTP_PORT", &cfg.SMTP.Port},
		{"EMAIL_BREAKER_THRESHOLD", &cfg.Email.BreakerThreshold},
		{"REDIS_POOL_SIZE", &cfg.Redis.PoolSize},
		{"DATABASE_MAX_OPEN_CONNS", &cfg.Database.MaxOpenConns},
		{"KAFKA_RETRIES", &cfg.Kafka.Retries},
		{"GDPR_RATE_LIMIT", &cfg.RateLimit.Limit},
	}
	for _, i := range ints {
		if err := parseInt(i.env, i.dst); err != nil {
			return Server{}, err
		}
	}

	if raw := os.Getenv("TRUSTED_PROXIES"); raw != "" {
		for _, cidr := range strings.Split(raw, ",") {
			prefix, err := netip.ParsePrefix(strings.TrimSpace(cidr))
			if err != nil {
				return Server{}, fmt.Errorf("TRUSTED_PROXIES: %w", err)
			}
			cfg.TrustedProxies = append(cfg.TrustedProxies, prefix)
		}
	}

	if cfg.RateLimit.Limit < 0 {
		return Server{}, fmt.Errorf("GDPR_RATE_LIMIT: must not be negative")
	}

	switch cfg.Email.Transport {
	case "log", "smtp", "postmark":
	default:
		return Server{}, fmt.Errorf("EMAIL_TRANSPORT: unknown transport %q", cfg.Email.Transport)
	}
	if cfg.Email.Transport == "postmark" && cfg.Postmark.ServerToken.IsZero() {
		return Server{}, fmt.Errorf("POSTMARK_SERVER_TOKEN is required for the postmark transport")
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// splitList trims a comma separated list, dropping blanks and repeats while
// keeping order.
func splitList(raw string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if _, dup := seen[part]; dup {
			continue
		}
		seen[part] = struct{}{}
		out = append(out, part)
	}
	return out
}

func parseDuration(env string, dst *time.Duration) error {
	raw := os.Getenv(env)
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", env, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s: must be positive", env)
	}
	*dst = d
	return nil
}

func parseInt(env string, dst *int) error {
	raw := os.Getenv(env)
	if raw == "" {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", env, err)
	}
	*dst = n
	return nil
}

func parseLevel(raw string) (slog.Level, error) {
	if raw == "" {
		return slog.LevelInfo, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return level, nil
}
