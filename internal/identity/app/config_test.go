package app

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/aussiebroadwan/identity/pkg/httpx"
	"github.com/aussiebroadwan/identity/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, "identity", cfg.Issuer)
	require.Equal(t, jwtx.AlgorithmEdDSA, cfg.Algorithm)
	require.Equal(t, DriverSQLite, cfg.DatabaseDriver)
	require.Equal(t, jwtx.DefaultAccessTokenTTL, cfg.AccessTTL)
	require.Equal(t, 30*24*time.Hour, cfg.RefreshTTL)
	require.Equal(t, 5*time.Minute, cfg.CodeTTL)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, time.Hour, cfg.HousekeepingInterval)
	require.Nil(t, cfg.Audiences())
	require.Equal(t, httpx.StrictLimit.RequestsPerWindow, cfg.RateLimits.StrictRequests)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("IDENTITY_ISSUER", "https://id.example.com")
	t.Setenv("IDENTITY_AUDIENCE", "api, web ,")
	t.Setenv("IDENTITY_ALGORITHM", "ES256")
	t.Setenv("IDENTITY_ACCESS_TTL", "5m")
	t.Setenv("IDENTITY_REFRESH_TTL", "24h")
	t.Setenv("DATABASE_DRIVER", "Postgres")
	t.Setenv("DATABASE_URL", "postgres://identity@localhost/identity")
	t.Setenv("PORT", "9090")
	t.Setenv("RATELIMIT_STRICT_REQUESTS", "3")
	t.Setenv("RATELIMIT_STRICT_WINDOW", "30s")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, "https://id.example.com", cfg.Issuer)
	require.Equal(t, []string{"api", "web"}, cfg.Audiences())
	require.Equal(t, "ES256", cfg.Algorithm)
	require.Equal(t, 5*time.Minute, cfg.AccessTTL)
	require.Equal(t, 24*time.Hour, cfg.RefreshTTL)
	require.Equal(t, DriverPostgres, cfg.DatabaseDriver)
	require.Equal(t, 9090, cfg.Port)
	require.Equal(t, 3, cfg.RateLimits.StrictRequests)
	require.Equal(t, 30*time.Second, cfg.RateLimits.StrictWindow)
}

func TestConfigValidate(t *testing.T) {
	base, err := LoadConfig()
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.DatabaseDriver = "mysql" }},
		{"empty database url", func(c *Config) { c.DatabaseURL = "" }},
		{"unknown algorithm", func(c *Config) { c.Algorithm = "HS256" }},
		{"zero access ttl", func(c *Config) { c.AccessTTL = 0 }},
		{"negative code ttl", func(c *Config) { c.CodeTTL = -time.Second }},
		{"refresh shorter than access", func(c *Config) { c.RefreshTTL = time.Minute; c.AccessTTL = time.Hour }},
		{"bad port", func(c *Config) { c.Port = 70000 }},
		{"bad rate limit", func(c *Config) { c.RateLimits.PublicBurst = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}

	require.NoError(t, base.Validate())
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	t.Setenv("IDENTITY_ACCESS_TTL", "2h")
	t.Setenv("IDENTITY_REFRESH_TTL", "1h")

	_, err := LoadConfig()
	require.ErrorContains(t, err, "IDENTITY_REFRESH_TTL")
}

func TestRateLimitsApply(t *testing.T) {
	saved := []httpx.RateLimitConfig{httpx.StrictLimit, httpx.ModerateLimit, httpx.LenientLimit, httpx.PublicLimit}
	t.Cleanup(func() {
		httpx.StrictLimit, httpx.ModerateLimit, httpx.LenientLimit, httpx.PublicLimit = saved[0], saved[1], saved[2], saved[3]
	})

	t.Setenv("RATELIMIT_MODERATE_BURST", "7")
	cfg, err := LoadConfig()
	require.NoError(t, err)

	cfg.RateLimits.Apply()
	require.Equal(t, 7, httpx.ModerateLimit.Burst)
	require.Equal(t, saved[0], httpx.StrictLimit)
}

func testConfig(t *testing.T) Config {
	t.Helper()

	t.Setenv("DATABASE_URL", ":memory:")
	t.Setenv("PEPPER_FILE", filepath.Join(t.TempDir(), "pepper"))
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("IDENTITY_NUM_KEYS", "1")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	return cfg
}
