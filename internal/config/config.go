package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	MongoDBURI      string `envconfig:"MONGODB_URI" required:"true"`
	MongoDBPassword string `envconfig:"MONGODB_PASSWORD"`
	MongoDBDatabase string `envconfig:"MONGODB_DATABASE" default:"repairhub"`

	FrontendURL string `envconfig:"FRONTEND_URL" default:"http://localhost:3000"`

	JWTSecret string        `envconfig:"JWT_SECRET" required:"true"`
	JWTExpiry time.Duration `envconfig:"JWT_EXPIRY" default:"24h"`
	JWKSURL   string        `envconfig:"JWKS_URL"`

	OTPTTL    time.Duration `envconfig:"OTP_TTL" default:"5m"`
	OTPLength int           `envconfig:"OTP_LENGTH" default:"6"`

	SMTPHost  string `envconfig:"SMTP_HOST"`
	SMTPPort  int    `envconfig:"SMTP_PORT" default:"587"`
	EmailUser string `envconfig:"EMAIL_USER"`
	EmailPass string `envconfig:"EMAIL_PASS"`
	EmailFrom string `envconfig:"EMAIL_FROM"`

	RedisAddr      string `envconfig:"REDIS_ADDR"`
	RabbitURL      string `envconfig:"RABBIT_URL"`
	EventsExchange string `envconfig:"EVENTS_EXCHANGE" default:"repairhub.events"`
	OTelEndpoint   string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	CloudinaryCloudName string `envconfig:"CLOUDINARY_CLOUD_NAME"`
	CloudinaryAPIKey    string `envconfig:"CLOUDINARY_API_KEY"`
	CloudinaryAPISecret string `envconfig:"CLOUDINARY_API_SECRET"`

	ReminderSchedule string `envconfig:"REMINDER_SCHEDULE" default:"*/15 * * * *"`

	AdminEmail    string `envconfig:"ADMIN_EMAIL"`
	AdminPassword string `envconfig:"ADMIN_PASSWORD"`
}

func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if cfg.MongoDBURI == "" {
		return nil, fmt.Errorf("MONGODB_URI is required")
	}
	if cfg.OTPLength < 4 || cfg.OTPLength > 10 {
		return nil, fmt.Errorf("OTP_LENGTH must be between 4 and 10")
	}
	if cfg.OTPTTL <= 0 {
		return nil, fmt.Errorf("OTP_TTL must be positive")
	}
	if len(cfg.JWTSecret) < 16 {
		return nil, fmt.Errorf("JWT_SECRET must be at least 16 characters")
	}

	return &cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// SMTPEnabled reports whether outgoing mail goes through a real SMTP server.
func (c *Config) SMTPEnabled() bool {
	return c.SMTPHost != ""
}

func (c *Config) CloudinaryEnabled() bool {
	return c.CloudinaryCloudName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != ""
}

func (c *Config) MailFrom() string {
	if c.EmailFrom != "" {
		return c.EmailFrom
	}
	return c.EmailUser
}
