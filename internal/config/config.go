package config // package config loads application configuration from environment variables

import (
	"fmt"     // fmt formats the missing-variable error
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"strings" // strings joins the list of missing variables
	"time"    // time converts TTL settings into durations

	"github.com/joho/godotenv" // godotenv loads an optional .env file for local development
)

// Store drivers accepted in STORE_DRIVER.
const (
	StoreMySQL  = "mysql"
	StoreMemory = "memory"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
	Env            string        // application environment (e.g. "dev", "production")
	Port           string        // HTTP port to listen on
	LogLevel       string        // zap level: debug, info, warn, error
	StoreDriver    string        // "mysql" or "memory"
	DBUser         string        // database username
	DBPass         string        // database password (optional)
	DBHost         string        // database host address
	DBPort         string        // database port number
	DBName         string        // database name
	JWTSecret      string        // secret used to sign JWTs
	AccessTTLMin   int           // access token time-to-live in minutes
	RefreshTTLDays int           // refresh token time-to-live in days
	BcryptCost     int           // bcrypt cost for password hashing
	StoreTimeout   time.Duration // bound on each durable store call
	CookieSecure   bool          // set Secure on the refresh cookie
	TrustProxy     bool          // take the client address from X-Forwarded-For
	// RevokeAllOnReuse revokes every session of a user whose rotated refresh
	// token is presented again.
	RevokeAllOnReuse bool
}

// AccessTTL is AccessTTLMin as a duration.
func (c Config) AccessTTL() time.Duration { return time.Duration(c.AccessTTLMin) * time.Minute }

// RefreshTTL is RefreshTTLDays as a duration.
func (c Config) RefreshTTL() time.Duration { return time.Duration(c.RefreshTTLDays) * 24 * time.Hour }

// Load reads an optional .env file and then the environment.  Every missing
// required variable is reported in one error.  Database settings are only
// required for the mysql store driver.
func Load() (Config, error) {
	_ = godotenv.Load() // a missing .env is normal outside local development

	r := &reader{}
	cfg := Config{
		Env:              envStr("APP_ENV", "dev"),
		Port:             envStr("APP_PORT", "8080"),
		LogLevel:         envStr("LOG_LEVEL", "info"),
		StoreDriver:      strings.ToLower(envStr("STORE_DRIVER", StoreMySQL)),
		DBPass:           os.Getenv("DB_PASS"),
		JWTSecret:        r.must("JWT_SECRET"),
		AccessTTLMin:     r.intOr("ACCESS_TOKEN_TTL_MIN", 30),
		RefreshTTLDays:   r.intOr("REFRESH_TOKEN_TTL_DAYS", 7),
		BcryptCost:       r.intOr("BCRYPT_COST", 12),
		StoreTimeout:     envDur("STORE_TIMEOUT", 5*time.Second),
		CookieSecure:     envBool("COOKIE_SECURE", true),
		TrustProxy:       envBool("TRUST_PROXY", false),
		RevokeAllOnReuse: envBool("REFRESH_REUSE_REVOKE_ALL", false),
	}

	switch cfg.StoreDriver {
	case StoreMySQL:
		cfg.DBUser = r.must("DB_USER")
		cfg.DBHost = r.must("DB_HOST")
		cfg.DBPort = envStr("DB_PORT", "3306")
		cfg.DBName = r.must("DB_NAME")
	case StoreMemory:
	default:
		r.errs = append(r.errs, fmt.Sprintf("STORE_DRIVER must be %q or %q, got %q", StoreMySQL, StoreMemory, cfg.StoreDriver))
	}
	if cfg.AccessTTLMin < 1 {
		r.errs = append(r.errs, "ACCESS_TOKEN_TTL_MIN must be positive")
	}
	if cfg.RefreshTTLDays < 1 {
		r.errs = append(r.errs, "REFRESH_TOKEN_TTL_DAYS must be positive")
	}

	if err := r.err(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// reader collects problems instead of exiting on the first one.
type reader struct {
	missing []string
	errs    []string
}

// must retrieves the value of a required environment variable.
func (r *reader) must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		r.missing = append(r.missing, key)
	}
	return v
}

// intOr is like envInt but records a malformed value instead of ignoring it.
func (r *reader) intOr(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		r.errs = append(r.errs, fmt.Sprintf("invalid int for %s: %q", key, s))
		return def
	}
	return n
}

func (r *reader) err() error {
	var parts []string
	if len(r.missing) > 0 {
		parts = append(parts, "missing required env var(s): "+strings.Join(r.missing, ", "))
	}
	parts = append(parts, r.errs...)
	if len(parts) == 0 {
		return nil
	}
	return fmt.Errorf("config: %s", strings.Join(parts, "; "))
}
