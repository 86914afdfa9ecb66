package config

import (
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	RazorpayKeyID         string
	RazorpayKeySecret     string
	RazorpayWebhookSecret string
	DefaultCurrency       string
	CheckoutHoldTTL       time.Duration

	SupabaseURL        string
	SupabaseServiceKey string
	SupabaseJWTSecret  string
	EmailWebhookSecret string

	DatabaseURL string
	MongoURI    string
	MongoDB     string
	RedisAddr   string
	RabbitURL   string

	NotifyFunctionURL  string
	NotifyTimeout      time.Duration
	NotifyMaxAttempts  int
	NotifyConcurrency  int
	OutboxPollInterval time.Duration

	ResendAPIKey string
	EmailFrom    string
	EmailLogoURL string

	CORSAllowedOrigins []string
	RateLimitPerMinute int
	OTLPEndpoint       string
	ServiceName        string
}

var defaultOrigins = []string{
	"http://localhost:8080",
	"https://ted-x-auc.vercel.app",
	"https://www.tedxamity.com",
	"https://tedxamity.com",
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	notifyTimeout, err := durationEnv("NOTIFY_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	pollInterval, err := durationEnv("OUTBOX_POLL_INTERVAL", 2*time.Second)
	if err != nil {
		return nil, err
	}
	holdTTL, err := durationEnv("CHECKOUT_HOLD_TTL", 10*time.Minute)
	if err != nil {
		return nil, err
	}
	maxAttempts, err := intEnv("NOTIFY_MAX_ATTEMPTS", 5)
	if err != nil {
		return nil, err
	}
	concurrency, err := intEnv("NOTIFY_CONCURRENCY", 4)
	if err != nil {
		return nil, err
	}
	rateLimit, err := intEnv("RATE_LIMIT_PER_MINUTE", 60)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:                  os.Getenv("PORT"),
		RazorpayKeyID:         os.Getenv("RAZORPAY_KEY_ID"),
		RazorpayKeySecret:     os.Getenv("RAZORPAY_KEY_SECRET"),
		RazorpayWebhookSecret: os.Getenv("RAZORPAY_WEBHOOK_SECRET"),
		DefaultCurrency:       stringEnv("DEFAULT_CURRENCY", "INR"),
		CheckoutHoldTTL:       holdTTL,
		SupabaseURL:           strings.TrimRight(os.Getenv("SUPABASE_URL"), "/"),
		SupabaseServiceKey:    os.Getenv("SUPABASE_SERVICE_KEY"),
		SupabaseJWTSecret:     os.Getenv("SUPABASE_JWT_SECRET"),
		EmailWebhookSecret:    os.Getenv("EMAIL_WEBHOOK_SECRET"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		MongoURI:              os.Getenv("MONGO_URI"),
		MongoDB:               stringEnv("MONGO_DB", "ticketing"),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RabbitURL:             os.Getenv("RABBIT_URL"),
		NotifyFunctionURL:     os.Getenv("NOTIFY_FUNCTION_URL"),
		NotifyTimeout:         notifyTimeout,
		NotifyMaxAttempts:     maxAttempts,
		NotifyConcurrency:     concurrency,
		OutboxPollInterval:    pollInterval,
		ResendAPIKey:          os.Getenv("RESEND_API_KEY"),
		EmailFrom:             stringEnv("EMAIL_FROM", "TEDxAUC Confirmation <bookings@tedxamity.com>"),
		EmailLogoURL:          os.Getenv("EMAIL_LOGO_URL"),
		CORSAllowedOrigins:    listEnv("CORS_ALLOWED_ORIGINS", defaultOrigins),
		RateLimitPerMinute:    rateLimit,
		OTLPEndpoint:          os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		ServiceName:           stringEnv("OTEL_SERVICE_NAME", "ticketing"),
	}

	if cfg.NotifyFunctionURL == "" && cfg.SupabaseURL != "" {
		cfg.NotifyFunctionURL = cfg.SupabaseURL + "/functions/v1/send-booking-email-secure"
	}

	return cfg, nil
}

// ValidateAPI reports every missing key the api binary cannot start without.
func (c *Config) ValidateAPI() error {
	return requireKeys(map[string]string{
		"RAZORPAY_KEY_ID":         c.RazorpayKeyID,
		"RAZORPAY_KEY_SECRET":     c.RazorpayKeySecret,
		"RAZORPAY_WEBHOOK_SECRET": c.RazorpayWebhookSecret,
		"SUPABASE_URL":            c.SupabaseURL,
		"SUPABASE_SERVICE_KEY":    c.SupabaseServiceKey,
		"EMAIL_WEBHOOK_SECRET":    c.EmailWebhookSecret,
		"PORT":                    c.Port,
		"DATABASE_URL":            c.DatabaseURL,
	})
}

func (c *Config) ValidateRelay() error {
	return requireKeys(map[string]string{
		"DATABASE_URL": c.DatabaseURL,
		"RABBIT_URL":   c.RabbitURL,
	})
}

func (c *Config) ValidateNotifier() error {
	return requireKeys(map[string]string{
		"RABBIT_URL":           c.RabbitURL,
		"SUPABASE_URL":         c.SupabaseURL,
		"SUPABASE_SERVICE_KEY": c.SupabaseServiceKey,
		"EMAIL_WEBHOOK_SECRET": c.EmailWebhookSecret,
	})
}

func (c *Config) ValidateMailer() error {
	return requireKeys(map[string]string{
		"RESEND_API_KEY":       c.ResendAPIKey,
		"EMAIL_WEBHOOK_SECRET": c.EmailWebhookSecret,
		"PORT":                 c.Port,
	})
}

func requireKeys(values map[string]string) error {
	var missing []string
	for key, v := range values {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return errors.Newf("missing required environment variables: %s", strings.Join(missing, ", "))
}

func stringEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func listEnv(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, errors.Wrapf(err, "parse %s", key)
	}
	return d, nil
}

func intEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.Wrapf(err, "parse %s", key)
	}
	return n, nil
}
