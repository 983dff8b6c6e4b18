package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	Server   ServerConfig
	App      AppConfig
	Email    EmailConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver     string
	Host       string
	Port       string
	User       string
	Password   string
	DBName     string
	SQLitePath string
}

// RedisConfig holds the policy cache connection. An empty Addr disables caching.
type RedisConfig struct {
	Addr           string
	Password       string
	DB             int
	PolicyCacheTTL time.Duration
}

// ServerConfig holds server settings
type ServerConfig struct {
	Port           string
	FrontendURL    string
	RequestTimeout time.Duration
}

// AppConfig holds growth engine settings
type AppConfig struct {
	ReferralTokenSecret string
	AdminTokenSecret    string
	ReferralTokenTTL    time.Duration
	InviteCodeTTL       time.Duration
	InviteCron          string
	Location            *time.Location
}

// EmailConfig holds transactional email settings
type EmailConfig struct {
	BrevoAPIKey   string
	SenderEmail   string
	SenderName    string
	InviteURLBase string
	// Brevo template IDs keyed by template name
	Templates map[string]int64
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	location, err := time.LoadLocation(getEnv("TIMEZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	inviteTemplateID, err := strconv.ParseInt(getEnv("BREVO_INVITE_TEMPLATE_ID", "0"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid BREVO_INVITE_TEMPLATE_ID: %w", err)
	}

	config := &Config{
		Database: DatabaseConfig{
			Driver:     getEnv("DB_DRIVER", "postgres"),
			Host:       getEnv("DB_HOST", "localhost"),
			Port:       getEnv("DB_PORT", "5432"),
			User:       getEnv("DB_USER", "postgres"),
			Password:   getEnv("DB_PASSWORD", ""),
			DBName:     getEnv("DB_NAME", "growth_ledger"),
			SQLitePath: getEnv("SQLITE_PATH", "growth_ledger.db"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Server: ServerConfig{
			Port:        getEnv("SERVER_PORT", "8080"),
			FrontendURL: getEnv("FRONTEND_URL", ""),
		},
		App: AppConfig{
			ReferralTokenSecret: getEnv("REFERRAL_TOKEN_SECRET", ""),
			AdminTokenSecret:    getEnv("ADMIN_TOKEN_SECRET", ""),
			InviteCron:          getEnv("INVITE_CRON", "0 9 * * *"),
			Location:            location,
		},
		Email: EmailConfig{
			BrevoAPIKey:   getEnv("BREVO_API_KEY", ""),
			SenderEmail:   getEnv("EMAIL_SENDER", ""),
			SenderName:    getEnv("EMAIL_SENDER_NAME", ""),
			InviteURLBase: getEnv("INVITE_URL_BASE", "http://localhost:3000/invite"),
			Templates: map[string]int64{
				"waitlist_invitation": inviteTemplateID,
			},
		},
	}

	durations := []struct {
		key      string
		fallback string
		target   *time.Duration
	}{
		{"POLICY_CACHE_TTL", "60s", &config.Redis.PolicyCacheTTL},
		{"REQUEST_TIMEOUT", "10s", &config.Server.RequestTimeout},
		{"REFERRAL_TOKEN_TTL", "720h", &config.App.ReferralTokenTTL},
		{"INVITE_CODE_TTL", "168h", &config.App.InviteCodeTTL},
	}
	for _, d := range durations {
		value, err := time.ParseDuration(getEnv(d.key, d.fallback))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.key, err)
		}
		*d.target = value
	}

	// Validate required fields
	if config.App.ReferralTokenSecret == "" {
		return nil, fmt.Errorf("REFERRAL_TOKEN_SECRET is required")
	}

	if config.App.AdminTokenSecret == "" {
		return nil, fmt.Errorf("ADMIN_TOKEN_SECRET is required")
	}

	if config.Database.Driver != "postgres" && config.Database.Driver != "sqlite" {
		return nil, fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", config.Database.Driver)
	}

	return config, nil
}

// GetDSN returns the connection string for the configured driver
func (c *Config) GetDSN() string {
	if c.Database.Driver == "sqlite" {
		return c.Database.SQLitePath
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
	)
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
