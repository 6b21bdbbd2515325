package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Gateway integration modes
const (
	GatewayModeFormPost      = "form_post"
	GatewayModeEncryptedJSON = "encrypted_json"
)

// AmountPaid policies applied when a payment completes
const (
	AmountPolicyGatewayConfirmed = "gateway_confirmed"
	AmountPolicyBookingTotal     = "booking_total"
)

// DefaultGatewayURL is the bank's hosted payment page
const DefaultGatewayURL = "https://securepayments.alrajhibank.com.sa/pg/payment/hosted.htm"

// placeholderValues are shipped sample values that must never be used as real secrets
var placeholderValues = map[string]bool{
	"YOUR_SECURE_HASH_KEY_FROM_BANK": true,
	"YOUR_TRANPORTAL_ID":             true,
	"YOUR_TRANPORTAL_PASSWORD":       true,
	"YOUR_TERMINAL_RESOURCE_KEY":     true,
	"YOUR_MERCHANT_ID":               true,
	"YOUR_TERMINAL_ID":               true,
	"changeme":                       true,
}

// IsPlaceholder reports whether a configured value is empty or a known sample value
func IsPlaceholder(value string) bool {
	v := strings.TrimSpace(value)
	return v == "" || placeholderValues[v]
}

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// Redis configuration (catalog cache)
	Redis RedisConfig

	// JWT configuration
	JWT JWTConfig

	// Admin account
	Admin AdminConfig

	// Rate limiting configuration
	RateLimit RateLimitConfig

	// CORS configuration
	CORS CORSConfig

	// Payment gateway configuration
	Gateway GatewayConfig

	// Stale pending payment sweeper
	Sweeper SweeperConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port        string
	Environment string // development, staging, production
	LogLevel    string // debug, info, warn, error
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	URL                string
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
}

// RedisConfig holds the catalog cache connection. An empty URL disables caching.
type RedisConfig struct {
	URL      string
	Prefix   string
	CacheTTL time.Duration
}

// JWTConfig holds JWT-related configuration
type JWTConfig struct {
	Secret            string
	AccessTokenExpiry time.Duration
}

// AdminConfig holds the single back-office account
type AdminConfig struct {
	Email        string
	PasswordHash string // bcrypt hash, see cmd/generate-secrets
}

// RateLimitConfig holds per-IP limits for public booking and payment endpoints
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// GatewayConfig holds the hosted payment gateway credentials and protocol settings
type GatewayConfig struct {
	Mode                string // form_post or encrypted_json
	MerchantID          string
	TerminalID          string
	TranportalID        string
	TranportalPassword  string // SECRET
	TerminalResourceKey string // SECRET
	SecureHashKey       string // SECRET
	AESKey              string // SECRET, 32 bytes
	AESIV               string // SECRET, 16 bytes
	GatewayURL          string
	AppBaseURL          string
	CurrencyCode        string
	ActionCode          string
	TrackPrefix         string
	MerchantLabel       string // sent as udf5
	AmountPolicy        string
	SuccessStatus       string // initiation response status meaning success (encrypted_json)
	Timeout             time.Duration
}

// SweeperConfig controls the stale pending payment report
type SweeperConfig struct {
	Enabled    bool
	Schedule   string // cron spec with seconds
	StaleAfter time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			URL:                getEnv("DATABASE_URL", ""),
			MaxConnections:     getEnvAsInt("DATABASE_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("DATABASE_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    time.Duration(getEnvAsInt("DATABASE_CONN_MAX_LIFETIME", 300)) * time.Second,
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", ""),
			Prefix:   getEnv("REDIS_PREFIX", "almazaya:"),
			CacheTTL: time.Duration(getEnvAsInt("CATALOG_CACHE_TTL_SECONDS", 300)) * time.Second,
		},
		JWT: JWTConfig{
			Secret:            getEnv("JWT_SECRET", ""),
			AccessTokenExpiry: time.Duration(getEnvAsInt("JWT_ACCESS_TOKEN_EXPIRY", 3600)) * time.Second,
		},
		Admin: AdminConfig{
			Email:        getEnv("ADMIN_EMAIL", ""),
			PasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvAsFloat("RATE_LIMIT_RPS", 1),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 5),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization"}),
		},
		Gateway: GatewayConfig{
			Mode:                getEnv("PAYMENT_GATEWAY_MODE", GatewayModeFormPost),
			MerchantID:          getEnv("PAYMENT_MERCHANT_ID", ""),
			TerminalID:          getEnv("PAYMENT_TERMINAL_ID", ""),
			TranportalID:        getEnv("PAYMENT_TRANPORTAL_ID", ""),
			TranportalPassword:  getEnv("PAYMENT_TRANPORTAL_PASSWORD", ""),
			TerminalResourceKey: getEnv("PAYMENT_TERMINAL_RESOURCE_KEY", ""),
			SecureHashKey:       getEnv("PAYMENT_SECURE_HASH_KEY", ""),
			AESKey:              getEnv("PAYMENT_AES_KEY", ""),
			AESIV:               getEnv("PAYMENT_AES_IV", ""),
			GatewayURL:          getEnv("PAYMENT_GATEWAY_URL", DefaultGatewayURL),
			AppBaseURL:          strings.TrimRight(getEnv("APP_BASE_URL", ""), "/"),
			CurrencyCode:        getEnv("PAYMENT_CURRENCY_CODE", "SAR"),
			ActionCode:          getEnv("PAYMENT_ACTION_CODE", "1"),
			TrackPrefix:         getEnv("PAYMENT_TRACK_PREFIX", "ALM"),
			MerchantLabel:       getEnv("PAYMENT_MERCHANT_LABEL", "Almazaya Booking"),
			AmountPolicy:        getEnv("PAYMENT_AMOUNT_POLICY", AmountPolicyGatewayConfirmed),
			SuccessStatus:       getEnv("PAYMENT_SUCCESS_STATUS", "1"),
			Timeout:             time.Duration(getEnvAsInt("PAYMENT_GATEWAY_TIMEOUT_SECONDS", 30)) * time.Second,
		},
		Sweeper: SweeperConfig{
			Enabled:    getEnvAsBool("SWEEPER_ENABLED", true),
			Schedule:   getEnv("SWEEPER_SCHEDULE", "0 */15 * * * *"),
			StaleAfter: time.Duration(getEnvAsInt("SWEEPER_STALE_AFTER_MINUTES", 60)) * time.Minute,
		},
	}

	// Validate required configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate validates the configuration.
// Missing gateway credentials are not fatal here; see GatewayConfig.MissingSettings.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	return c.Gateway.Validate()
}

// Validate checks the gateway settings that select behaviour, not credentials
func (g *GatewayConfig) Validate() error {
	switch g.Mode {
	case GatewayModeFormPost, GatewayModeEncryptedJSON:
	default:
		return fmt.Errorf("invalid PAYMENT_GATEWAY_MODE: %s (must be '%s' or '%s')", g.Mode, GatewayModeFormPost, GatewayModeEncryptedJSON)
	}

	switch g.AmountPolicy {
	case AmountPolicyGatewayConfirmed, AmountPolicyBookingTotal:
	default:
		return fmt.Errorf("invalid PAYMENT_AMOUNT_POLICY: %s (must be '%s' or '%s')", g.AmountPolicy, AmountPolicyGatewayConfirmed, AmountPolicyBookingTotal)
	}

	if g.Timeout <= 0 {
		return fmt.Errorf("PAYMENT_GATEWAY_TIMEOUT_SECONDS must be positive")
	}

	return nil
}

// MissingSettings lists gateway settings that are unset or still hold sample values.
// Values are never included, only their env names.
func (g *GatewayConfig) MissingSettings() []string {
	settings := []struct {
		name  string
		value string
	}{
		{"PAYMENT_MERCHANT_ID", g.MerchantID},
		{"PAYMENT_TERMINAL_ID", g.TerminalID},
		{"PAYMENT_TRANPORTAL_ID", g.TranportalID},
		{"PAYMENT_TRANPORTAL_PASSWORD", g.TranportalPassword},
		{"PAYMENT_TERMINAL_RESOURCE_KEY", g.TerminalResourceKey},
		{"PAYMENT_SECURE_HASH_KEY", g.SecureHashKey},
		{"PAYMENT_AES_KEY", g.AESKey},
		{"PAYMENT_AES_IV", g.AESIV},
		{"PAYMENT_GATEWAY_URL", g.GatewayURL},
		{"APP_BASE_URL", g.AppBaseURL},
	}

	var missing []string
	for _, s := range settings {
		if IsPlaceholder(s.value) {
			missing = append(missing, s.name)
		}
	}
	return missing
}

// Helper functions to get environment variables

func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid integer value for %s, using default: %d", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("Invalid number value for %s, using default: %v", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Invalid boolean value for %s, using default: %t", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var result []string
	for _, v := range strings.Split(valueStr, ",") {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
