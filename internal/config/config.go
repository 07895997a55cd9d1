package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
)

const (
	KeyDatabaseDSN          = "DATABASE_DSN"
	KeyRedisAddr            = "REDIS_ADDR"
	KeyRabbitURL            = "RABBIT_URL"
	KeyMongoURI             = "MONGO_URI"
	KeyStripeSecretKey      = "STRIPE_SECRET_KEY"
	KeyStripePublishableKey = "STRIPE_PUBLISHABLE_KEY"
	KeyStripeAPIURL         = "STRIPE_API_URL"
	KeyResendAPIKey         = "RESEND_API_KEY"
	KeyResendBaseURL        = "RESEND_BASE_URL"
	KeyIntakeURL            = "INTAKE_URL"
	KeyAdminJWTSecret       = "ADMIN_JWT_SECRET"
	KeyOTLPEndpoint         = "OTEL_EXPORTER_OTLP_ENDPOINT"
)

// ErrMissing matches every *MissingError.
var ErrMissing = errors.New("missing configuration")

// MissingError names a required environment variable that is not set.
type MissingError struct {
	Key string
}

func (e *MissingError) Error() string {
	return "config: " + e.Key + " is not set"
}

func (e *MissingError) Is(target error) bool {
	return target == ErrMissing
}

// InvalidError names an environment variable whose value could not be parsed.
type InvalidError struct {
	Key   string
	Value string
	Err   error
}

func (e *InvalidError) Error() string {
	return "config: " + e.Key + "=" + e.Value + " is invalid: " + e.Err.Error()
}

func (e *InvalidError) Unwrap() error { return e.Err }

type Config struct {
	HTTPAddr    string
	MetricsAddr string
	LogLevel    string

	DatabaseDSN string
	RedisAddr   string
	RabbitURL   string
	MongoURI    string

	StripeSecretKey      string
	StripePublishableKey string
	StripeAPIURL         string
	Currency             string

	ResendAPIKey  string
	ResendBaseURL string
	EmailFrom     string

	IntakeURL      string
	AdminJWTSecret string
	OTLPEndpoint   string

	EventName string

	SessionTTL        time.Duration
	PaymentSessionTTL time.Duration
	IdempotencyTTL    time.Duration
	StatusClearAfter  time.Duration
	SuccessClearAfter time.Duration
	ReconcileInterval time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		HTTPAddr:             getEnv("HTTP_ADDR", ":8080"),
		MetricsAddr:          getEnv("METRICS_ADDR", ":9091"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		DatabaseDSN:          os.Getenv(KeyDatabaseDSN),
		RedisAddr:            os.Getenv(KeyRedisAddr),
		RabbitURL:            os.Getenv(KeyRabbitURL),
		MongoURI:             os.Getenv(KeyMongoURI),
		StripeSecretKey:      os.Getenv(KeyStripeSecretKey),
		StripePublishableKey: os.Getenv(KeyStripePublishableKey),
		StripeAPIURL:         os.Getenv(KeyStripeAPIURL),
		Currency:             getEnv("CURRENCY", "usd"),
		ResendAPIKey:         os.Getenv(KeyResendAPIKey),
		ResendBaseURL:        getEnv(KeyResendBaseURL, "https://api.resend.com"),
		EmailFrom:            getEnv("EMAIL_FROM", "Lyons Yard Sale <noreply@lyonsyardsale.com>"),
		IntakeURL:            os.Getenv(KeyIntakeURL),
		AdminJWTSecret:       os.Getenv(KeyAdminJWTSecret),
		OTLPEndpoint:         os.Getenv(KeyOTLPEndpoint),
		EventName:            getEnv("EVENT_NAME", "Lyons Community Yard Sale"),
	}

	durations := []struct {
		key string
		def time.Duration
		dst *time.Duration
	}{
		{"SESSION_TTL", 30 * time.Minute, &cfg.SessionTTL},
		{"PAYMENT_SESSION_TTL", 7 * 24 * time.Hour, &cfg.PaymentSessionTTL},
		{"IDEMPOTENCY_TTL", 24 * time.Hour, &cfg.IdempotencyTTL},
		{"STATUS_CLEAR_AFTER", 3 * time.Second, &cfg.StatusClearAfter},
		{"SUCCESS_CLEAR_AFTER", 4 * time.Second, &cfg.SuccessClearAfter},
		{"RECONCILE_INTERVAL", time.Minute, &cfg.ReconcileInterval},
	}
	for _, d := range durations {
		v, err := parseDuration(d.key, d.def)
		if err != nil {
			return nil, err
		}
		*d.dst = v
	}

	return cfg, nil
}

// Require fails with a *MissingError for the first listed key that has no value.
func (c *Config) Require(keys ...string) error {
	for _, key := range keys {
		if c.lookup(key) == "" {
			return &MissingError{Key: key}
		}
	}
	return nil
}

func (c *Config) lookup(key string) string {
	switch key {
	case KeyDatabaseDSN:
		return c.DatabaseDSN
	case KeyRedisAddr:
		return c.RedisAddr
	case KeyRabbitURL:
		return c.RabbitURL
	case KeyMongoURI:
		return c.MongoURI
	case KeyStripeSecretKey:
		return c.StripeSecretKey
	case KeyStripePublishableKey:
		return c.StripePublishableKey
	case KeyStripeAPIURL:
		return c.StripeAPIURL
	case KeyResendAPIKey:
		return c.ResendAPIKey
	case KeyResendBaseURL:
		return c.ResendBaseURL
	case KeyIntakeURL:
		return c.IntakeURL
	case KeyAdminJWTSecret:
		return c.AdminJWTSecret
	case KeyOTLPEndpoint:
		return c.OTLPEndpoint
	}
	return os.Getenv(key)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, &InvalidError{Key: key, Value: raw, Err: err}
	}
	if d <= 0 {
		return 0, &InvalidError{Key: key, Value: raw, Err: errors.New("must be positive")}
	}
	return d, nil
}
