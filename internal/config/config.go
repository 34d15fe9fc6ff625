package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Module exposes the loaded configuration to the fx graph.
var Module = fx.Module("config",
	fx.Provide(Load),
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	CompanyName string
	Environment string
	Debug       bool
	HTTPAddr    string

	OTLPEndpoint string

	DBType     string
	DBHost     string
	DBPort     string
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string

	Stripe       StripeConfig
	Email        EmailConfig
	ComputerEase ComputerEaseConfig

	SyncAPIKey    string
	AdminPassword string
	DemoInvoiceID string

	RedisAddr string
}

// StripeConfig carries payment provider credentials.
type StripeConfig struct {
	SecretKey      string
	PublishableKey string
	WebhookSecret  string
	APIBase        string
}

// EmailConfig selects the outbound email provider. A Resend API key takes
// precedence; SMTP settings are the fallback; with neither, email is a no-op.
type EmailConfig struct {
	ResendAPIKey string
	From         string
	OverrideTo   string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
}

// ComputerEaseConfig carries accounting system integration settings.
type ComputerEaseConfig struct {
	BaseURL     string
	APIKey      string
	CompanyCode string
	SyncEnabled bool
	BatchSize   int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	environment := getenv("ENVIRONMENT", "development")

	return Config{
		AppName:     getenv("APP_SERVICE", "invoicepay"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		CompanyName: getenv("COMPANY_NAME", "Summit Mechanical & Plumbing"),
		Environment: environment,
		Debug:       getenvBool("APP_DEBUG", environment != "production"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),

		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:     getenv("DATABASE_TYPE", "postgres"),
		DBHost:     getenv("DATABASE_HOST", "localhost"),
		DBPort:     getenv("DATABASE_PORT", "5432"),
		DBName:     getenv("DATABASE_NAME", "invoicepay"),
		DBUser:     getenv("DATABASE_USER", "postgres"),
		DBPassword: getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:  getenv("DATABASE_SSLMODE", "disable"),

		Stripe: StripeConfig{
			SecretKey:      strings.TrimSpace(getenv("STRIPE_SECRET_KEY", "")),
			PublishableKey: strings.TrimSpace(getenv("STRIPE_PUBLISHABLE_KEY", "")),
			WebhookSecret:  strings.TrimSpace(getenv("STRIPE_WEBHOOK_SECRET", "")),
			APIBase:        strings.TrimSpace(getenv("STRIPE_API_BASE", "https://api.stripe.com")),
		},

		Email: EmailConfig{
			ResendAPIKey: strings.TrimSpace(getenv("RESEND_API_KEY", "")),
			From:         getenv("EMAIL_FROM", "billing@summitmech.com"),
			OverrideTo:   strings.TrimSpace(getenv("EMAIL_OVERRIDE_TO", "")),
			SMTPHost:     getenv("SMTP_HOST", ""),
			SMTPPort:     getenvInt("SMTP_PORT", 587),
			SMTPUsername: getenv("SMTP_USERNAME", ""),
			SMTPPassword: getenv("SMTP_PASSWORD", ""),
		},

		ComputerEase: ComputerEaseConfig{
			BaseURL:     strings.TrimSpace(getenv("COMPUTEREASE_BASE_URL", "")),
			APIKey:      strings.TrimSpace(getenv("COMPUTEREASE_API_KEY", "")),
			CompanyCode: strings.TrimSpace(getenv("COMPUTEREASE_COMPANY_CODE", "")),
			SyncEnabled: getenvBool("COMPUTEREASE_SYNC_ENABLED", false),
			BatchSize:   getenvInt("COMPUTEREASE_BATCH_SIZE", 100),
		},

		SyncAPIKey:    strings.TrimSpace(getenv("SYNC_API_KEY", "")),
		AdminPassword: strings.TrimSpace(getenv("ADMIN_PASSWORD", "")),
		DemoInvoiceID: strings.TrimSpace(getenv("DEMO_INVOICE_ID", "demo-invoice-001")),

		RedisAddr: strings.TrimSpace(getenv("REDIS_ADDR", "")),
	}
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

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}
