// Package config loads server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
)

// Store backends.
const (
	BackendMemory    = "memory"
	BackendMongo     = "mongo"
	BackendFirestore = "firestore"
)

type Config struct {
	Server ServerConfig `json:"server"`

	// Document store selection and connection
	Store StoreConfig `json:"store"`

	// Firebase app (Firestore backend and ID token verification)
	Firebase FirebaseConfig `json:"firebase"`

	Auth AuthConfig `json:"auth"`

	RateLimit RateLimitConfig `json:"rate_limit"`

	Logging LoggingConfig `json:"logging"`
}

// ServerConfig contains listener configuration
type ServerConfig struct {
	Port        string `json:"port"`      // gRPC
	HTTPPort    string `json:"http_port"` // health endpoint
	Environment string `json:"environment"`
	TLSCert     string `json:"tls_cert"`
	TLSKey      string `json:"tls_key"`
	RequireTLS  bool   `json:"require_tls"`
}

// StoreConfig selects the document store backend.
type StoreConfig struct {
	Backend       string `json:"backend"` // memory, mongo, firestore
	MongoURI      string `json:"mongo_uri"`
	MongoDatabase string `json:"mongo_database"`
}

// FirebaseConfig contains Firebase project configuration
type FirebaseConfig struct {
	ProjectID           string `json:"project_id"`
	CredentialsFilePath string `json:"credentials_file_path"`
	AuthEnabled         bool   `json:"auth_enabled"`
}

// AuthConfig holds token signing keys. Keys maps kid to secret.
type AuthConfig struct {
	Keys      map[string]string `json:"-"`
	ActiveKID string            `json:"active_kid"`
	TokenTTL  time.Duration     `json:"token_ttl"`
}

type RateLimitConfig struct {
	RequestsPerMinute int `json:"requests_per_minute"`
	Burst             int `json:"burst"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level string `json:"level"` // debug, info, warn, error
}

// LoadConfig reads a .env file when present, then the environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from environment variables only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "50051"),
			HTTPPort:    getEnv("HTTP_PORT", "8080"),
			Environment: getEnv("APP_ENV", "development"),
			TLSCert:     getEnv("TLS_CERT", ""),
			TLSKey:      getEnv("TLS_KEY", ""),
			RequireTLS:  getEnvBool("REQUIRE_TLS", false),
		},
		Store: StoreConfig{
			Backend:       strings.ToLower(getEnv("STORE_BACKEND", BackendMemory)),
			MongoURI:      getEnv("MONGODB_URI", ""),
			MongoDatabase: getEnv("MONGODB_DATABASE", "messenger"),
		},
		Firebase: FirebaseConfig{
			ProjectID:           getEnv("FIREBASE_PROJECT_ID", ""),
			CredentialsFilePath: getEnv("FIREBASE_CREDENTIALS_FILE", ""),
			AuthEnabled:         getEnvBool("FIREBASE_AUTH_ENABLED", false),
		},
		Auth: AuthConfig{
			ActiveKID: getEnv("JWT_ACTIVE_KID", ""),
			TokenTTL:  getEnvDuration("TOKEN_TTL", 24*time.Hour),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getEnvInt("RATE_LIMIT_RPM", 10),
			Burst:             getEnvInt("RATE_LIMIT_BURST", 3),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	keys, err := ParseKeys(os.Getenv("JWT_KEYS"))
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		if secret := os.Getenv("JWT_SECRET"); secret != "" {
			keys = map[string]string{"default": secret}
			cfg.Auth.ActiveKID = "default"
		}
	} else if cfg.Auth.ActiveKID == "" && len(keys) == 1 {
		for kid := range keys {
			cfg.Auth.ActiveKID = kid
		}
	}
	cfg.Auth.Keys = keys

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (cfg *Config) Validate() error {
	var errs []error
	switch cfg.Store.Backend {
	case BackendMemory:
	case BackendMongo:
		if cfg.Store.MongoURI == "" {
			errs = append(errs, errors.New("MONGODB_URI must be set for the mongo backend"))
		}
	case BackendFirestore:
		if cfg.Firebase.ProjectID == "" {
			errs = append(errs, errors.New("FIREBASE_PROJECT_ID must be set for the firestore backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", cfg.Store.Backend))
	}
	if cfg.Firebase.AuthEnabled && cfg.Firebase.ProjectID == "" {
		errs = append(errs, errors.New("FIREBASE_PROJECT_ID must be set when FIREBASE_AUTH_ENABLED"))
	}

	if len(cfg.Auth.Keys) == 0 {
		errs = append(errs, errors.New("either JWT_SECRET or JWT_KEYS must be set"))
	} else if _, ok := cfg.Auth.Keys[cfg.Auth.ActiveKID]; !ok {
		errs = append(errs, fmt.Errorf("JWT_ACTIVE_KID %q is not one of JWT_KEYS", cfg.Auth.ActiveKID))
	}
	if cfg.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}

	if cfg.Server.RequireTLS && (cfg.Server.TLSCert == "" || cfg.Server.TLSKey == "") {
		errs = append(errs, errors.New("REQUIRE_TLS is true but TLS_CERT/TLS_KEY are not configured"))
	}
	if _, err := log.ParseLevel(cfg.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}
	return errors.Join(errs...)
}

// LogLevel returns the configured level, or info when it does not parse.
func (cfg *Config) LogLevel() log.Level {
	lvl, err := log.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}

// TLSEnabled reports whether certificates are configured.
func (cfg *Config) TLSEnabled() bool {
	return cfg.Server.TLSCert != "" && cfg.Server.TLSKey != ""
}

// ParseKeys parses "kid:secret,kid2:secret2".
func ParseKeys(s string) (map[string]string, error) {
	keys := map[string]string{}
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		kid, secret, ok := strings.Cut(p, ":")
		if !ok || kid == "" || secret == "" {
			return nil, fmt.Errorf("invalid JWT_KEYS entry: %q", kid)
		}
		keys[kid] = secret
	}
	return keys, nil
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil && n > 0 {
		return n
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return defaultValue
}
