// Package config loads and validates environment-based configuration.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/FooledKiwi/hitchmap-api/internal/routing"
	"github.com/joho/godotenv"
)

// ConfigError represents a configuration error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: field %q: %s", e.Field, e.Message)
}

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	DBDSN string
	Port  int

	// OpenRouteService directions. An empty key still lets the server start;
	// every routed segment then falls back to a straight line.
	ORSAPIKey  string
	ORSBaseURL string
	ORSTimeout time.Duration

	// JWT authentication settings.
	JWTSecret       string // Required for auth endpoints; signing key for HS256.
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// File uploads.
	UploadDir string // Directory for segment photos; defaults to "./uploads/images".

	// HTTP engine.
	CORSAllowedOrigins []string
	RequestTimeout     time.Duration
}

// Load reads a .env file if present, then reads and validates the
// environment. Returns a ConfigError for any missing or invalid value.
func Load() (*Config, error) {
	loadDotEnv()

	cfg := &Config{}

	dbDSN := os.Getenv("DB_DSN")
	if dbDSN == "" {
		return nil, &ConfigError{Field: "DB_DSN", Message: "required but not set"}
	}
	cfg.DBDSN = dbDSN

	if err := loadRouting(cfg); err != nil {
		return nil, err
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		// Not required at startup; auth endpoints will fail gracefully if unset.
		log.Println("config: JWT_SECRET not set; authentication endpoints are disabled")
	}

	var err error
	if cfg.AccessTokenTTL, err = parseDurationEnv("ACCESS_TOKEN_TTL", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.RefreshTokenTTL, err = parseDurationEnv("REFRESH_TOKEN_TTL", 7*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.RequestTimeout, err = parseDurationEnv("REQUEST_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if err := checkTimeouts(cfg.ORSTimeout, cfg.RequestTimeout); err != nil {
		return nil, err
	}

	cfg.UploadDir = os.Getenv("UPLOAD_DIR")
	if cfg.UploadDir == "" {
		cfg.UploadDir = "./uploads/images"
	}

	cfg.CORSAllowedOrigins = parseListEnv("CORS_ALLOWED_ORIGINS", []string{"*"})
	for _, origin := range cfg.CORSAllowedOrigins {
		if origin != "*" && !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			return nil, &ConfigError{Field: "CORS_ALLOWED_ORIGINS", Message: fmt.Sprintf("origin %q must be * or an http(s) URL", origin)}
		}
	}

	portStr := os.Getenv("PORT")
	if portStr == "" {
		cfg.Port = 8080
	} else {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, &ConfigError{Field: "PORT", Message: "must be a valid integer"}
		}
		if port < 1 || port > 65535 {
			return nil, &ConfigError{Field: "PORT", Message: "must be between 1 and 65535"}
		}
		cfg.Port = port
	}

	return cfg, nil
}

// LoadRouting reads only the OpenRouteService settings. It serves commands
// that resolve routes without a database.
func LoadRouting() (*Config, error) {
	loadDotEnv()

	cfg := &Config{}
	if err := loadRouting(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Routing returns the provider client configuration.
func (c *Config) Routing() routing.Config {
	return routing.Config{APIKey: c.ORSAPIKey, BaseURL: c.ORSBaseURL, Timeout: c.ORSTimeout}
}

// Validate re-checks required fields on an already-constructed Config.
func (c *Config) Validate() error {
	var errs []error
	if c.DBDSN == "" {
		errs = append(errs, &ConfigError{Field: "DB_DSN", Message: "cannot be empty"})
	}
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, &ConfigError{Field: "PORT", Message: "must be between 1 and 65535"})
	}
	if c.ORSTimeout <= 0 {
		errs = append(errs, &ConfigError{Field: "ORS_TIMEOUT", Message: "must be positive"})
	}
	if c.ORSBaseURL != "" && !strings.HasPrefix(c.ORSBaseURL, "http") {
		errs = append(errs, &ConfigError{Field: "ORS_BASE_URL", Message: "must be an http(s) URL"})
	}
	if c.ORSTimeout > 0 {
		if err := checkTimeouts(c.ORSTimeout, c.RequestTimeout); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// minRouteMargin is the part of a request deadline reserved for storing a
// segment after the provider call gave up.
const minRouteMargin = time.Second

// checkTimeouts requires the provider timeout to end at least minRouteMargin
// before the request deadline. A zero request timeout disables the deadline.
func checkTimeouts(orsTimeout, requestTimeout time.Duration) error {
	if requestTimeout > 0 && orsTimeout > requestTimeout-minRouteMargin {
		return &ConfigError{
			Field:   "ORS_TIMEOUT",
			Message: fmt.Sprintf("%v must be at least %v shorter than REQUEST_TIMEOUT (%v)", orsTimeout, minRouteMargin, requestTimeout),
		}
	}
	return nil
}

func loadRouting(cfg *Config) error {
	cfg.ORSAPIKey = os.Getenv("ORS_API_KEY")
	if cfg.ORSAPIKey == "" {
		log.Println("config: ORS_API_KEY not set; routes will be straight lines")
	}

	cfg.ORSBaseURL = os.Getenv("ORS_BASE_URL")
	if cfg.ORSBaseURL == "" {
		cfg.ORSBaseURL = routing.DefaultBaseURL
	} else if !strings.HasPrefix(cfg.ORSBaseURL, "http://") && !strings.HasPrefix(cfg.ORSBaseURL, "https://") {
		return &ConfigError{Field: "ORS_BASE_URL", Message: "must be an http(s) URL"}
	}

	timeout, err := parseDurationEnv("ORS_TIMEOUT", routing.DefaultTimeout)
	if err != nil {
		return err
	}
	if timeout <= 0 {
		return &ConfigError{Field: "ORS_TIMEOUT", Message: "must be positive"}
	}
	cfg.ORSTimeout = timeout
	return nil
}

// loadDotEnv loads ./.env without overriding variables already set.
func loadDotEnv() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("config: ignoring .env: %v", err)
	}
}

// parseDurationEnv reads a duration from an environment variable, falling
// back to defaultVal when unset. Accepts Go duration strings like "15m",
// "24h", "168h".
func parseDurationEnv(key string, defaultVal time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, &ConfigError{Field: key, Message: fmt.Sprintf("invalid duration %q", raw)}
	}
	return d, nil
}

// parseListEnv splits a comma-separated variable, dropping empty items.
func parseListEnv(key string, defaultVal []string) []string {
	raw := os.Getenv(key)
	if strings.TrimSpace(raw) == "" {
		return defaultVal
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
