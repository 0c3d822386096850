package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("MOTOPOS_AUTH_SECRET", "")
	t.Setenv("AUTH_SECRET", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.AuthSecret)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, ":8080", cfg.Address())
	assert.Equal(t, "Asia/Ho_Chi_Minh", cfg.TimeZone)
	assert.Equal(t, 60*time.Second, cfg.ReportCacheTTL)
	assert.Equal(t, 480, cfg.AccessTokenTTLMinutes)
}

func TestLoadPrefixedAndFallbackKeys(t *testing.T) {
	t.Setenv("MOTOPOS_PORT", "9090")
	t.Setenv("DATABASE_URL", "postgres://localhost/motopos")
	t.Setenv("MOTOPOS_REPORT_CACHE_TTL", "5m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "postgres://localhost/motopos", cfg.DatabaseURL)
	assert.Equal(t, 5*time.Minute, cfg.ReportCacheTTL)
}

func TestLoadRejectsUnknownTimeZone(t *testing.T) {
	t.Setenv("MOTOPOS_TIME_ZONE", "Mars/Olympus_Mons")

	_, err := Load()
	require.Error(t, err)
}
