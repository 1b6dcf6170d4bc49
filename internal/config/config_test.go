package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MemoryDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("STORE_DRIVER", "memory")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StoreMemory, cfg.StoreDriver)
	assert.Equal(t, 30*time.Minute, cfg.AccessTTL())
	assert.Equal(t, 7*24*time.Hour, cfg.RefreshTTL())
	assert.Equal(t, 5*time.Second, cfg.StoreTimeout)
	assert.True(t, cfg.CookieSecure)
	assert.False(t, cfg.RevokeAllOnReuse)
}

func TestLoad_MySQLRequiresDatabase(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("STORE_DRIVER", "mysql")
	t.Setenv("DB_USER", "")
	t.Setenv("DB_HOST", "")
	t.Setenv("DB_NAME", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_USER")
	assert.Contains(t, err.Error(), "DB_NAME")

	t.Setenv("DB_USER", "app")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_NAME", "promptvault")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "3306", cfg.DBPort)
}

func TestLoad_Errors(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("ACCESS_TOKEN_TTL_MIN", "soon")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
	assert.Contains(t, err.Error(), "STORE_DRIVER")
	assert.Contains(t, err.Error(), "ACCESS_TOKEN_TTL_MIN")
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("ACCESS_TOKEN_TTL_MIN", "5")
	t.Setenv("COOKIE_SECURE", "false")
	t.Setenv("REFRESH_REUSE_REVOKE_ALL", "yes")
	t.Setenv("STORE_TIMEOUT", "750ms")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, cfg.AccessTTL())
	assert.False(t, cfg.CookieSecure)
	assert.True(t, cfg.RevokeAllOnReuse)
	assert.Equal(t, 750*time.Millisecond, cfg.StoreTimeout)
}

func TestLoadRateLimitConfig(t *testing.T) {
	cfg := LoadRateLimitConfig()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 5, cfg.AuthLimit)
	assert.Equal(t, time.Minute, cfg.Window)
	assert.Equal(t, 200*time.Millisecond, cfg.Timeout)

	t.Setenv("RATE_LIMIT_AUTH", "10")
	t.Setenv("RATE_LIMIT_WINDOW", "10ms")
	t.Setenv("RATE_LIMIT_ENABLED", "off")
	cfg = LoadRateLimitConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, 10, cfg.AuthLimit)
	assert.Equal(t, time.Second, cfg.Window)
}

func TestLoadEventsConfig(t *testing.T) {
	t.Setenv("RABBITMQ_URL", "")
	t.Setenv("AMQP_URL", "amqp://u:p@mq:5672/")
	cfg := LoadEventsConfig()
	assert.False(t, cfg.Enabled)
	assert.False(t, cfg.ConsumerEnabled)
	assert.Equal(t, "amqp://u:p@mq:5672/", cfg.URL)

	t.Setenv("EVENTS_ENABLED", "true")
	cfg = LoadEventsConfig()
	assert.True(t, cfg.Enabled)
	assert.True(t, cfg.ConsumerEnabled)
	assert.Equal(t, "logs", cfg.AuditLogDir)
}
