package config

import (
	"os"
	"strconv"
	"time"
)

// RateLimitConfig configures the admission controller. Zero limits keep
// the built-in policy defaults.
type RateLimitConfig struct {
	Enabled      bool
	AuthLimit    int
	AILimit      int
	DefaultLimit int
	Window       time.Duration
	Timeout      time.Duration
}

func LoadRateLimitConfig() RateLimitConfig {
	def := RateLimitConfig{
		Enabled:      envBool("RATE_LIMIT_ENABLED", true),
		AuthLimit:    envInt("RATE_LIMIT_AUTH", 5),
		AILimit:      envInt("RATE_LIMIT_AI", 20),
		DefaultLimit: envInt("RATE_LIMIT_DEFAULT", 100),
		Window:       envDur("RATE_LIMIT_WINDOW", time.Minute),
		Timeout:      envDur("RATE_LIMIT_TIMEOUT", 200*time.Millisecond),
	}
	if def.Window < time.Second {
		def.Window = time.Second
	}
	if def.Timeout <= 0 {
		def.Timeout = 200 * time.Millisecond
	}
	return def
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
