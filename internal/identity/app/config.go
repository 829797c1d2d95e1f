package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aussiebroadwan/identity/pkg/httpx"
	"github.com/aussiebroadwan/identity/pkg/jwtx"
	"github.com/spf13/viper"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config is loaded from the environment and an optional .env file in the
// working directory. Environment variables win over .env.
type Config struct {
	Issuer         string        `mapstructure:"IDENTITY_ISSUER"`
	Audience       string        `mapstructure:"IDENTITY_AUDIENCE"` // comma separated, empty disables the check
	Algorithm      string        `mapstructure:"IDENTITY_ALGORITHM"`
	NumKeys        int           `mapstructure:"IDENTITY_NUM_KEYS"`
	RSABits        int           `mapstructure:"IDENTITY_RSA_BITS"`
	SigningKeyFile string        `mapstructure:"IDENTITY_SIGNING_KEY_FILE"` // empty means ephemeral keys
	AccessTTL      time.Duration `mapstructure:"IDENTITY_ACCESS_TTL"`
	RefreshTTL     time.Duration `mapstructure:"IDENTITY_REFRESH_TTL"`
	CodeTTL        time.Duration `mapstructure:"IDENTITY_CODE_TTL"`

	DatabaseDriver  string        `mapstructure:"DATABASE_DRIVER"`
	DatabaseURL     string        `mapstructure:"DATABASE_URL"`
	MaxOpenConns    int           `mapstructure:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `mapstructure:"DATABASE_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `mapstructure:"DATABASE_CONN_MAX_LIFETIME"`

	PepperFile string `mapstructure:"PEPPER_FILE"`
	PublicURL  string `mapstructure:"PUBLIC_URL"`

	Env                  string        `mapstructure:"ENV"`
	LogLevel             string        `mapstructure:"LOG_LEVEL"`
	LogFormat            string        `mapstructure:"LOG_FORMAT"`
	Port                 int           `mapstructure:"PORT"`
	ShutdownGracePeriod  time.Duration `mapstructure:"SHUTDOWN_GRACE_PERIOD"`
	HousekeepingInterval time.Duration `mapstructure:"HOUSEKEEPING_INTERVAL"`

	RateLimits RateLimits `mapstructure:",squash"`
}

// RateLimits overrides the httpx rate limit profiles.
type RateLimits struct {
	StrictRequests   int           `mapstructure:"RATELIMIT_STRICT_REQUESTS"`
	StrictWindow     time.Duration `mapstructure:"RATELIMIT_STRICT_WINDOW"`
	StrictBurst      int           `mapstructure:"RATELIMIT_STRICT_BURST"`
	ModerateRequests int           `mapstructure:"RATELIMIT_MODERATE_REQUESTS"`
	ModerateWindow   time.Duration `mapstructure:"RATELIMIT_MODERATE_WINDOW"`
	ModerateBurst    int           `mapstructure:"RATELIMIT_MODERATE_BURST"`
	LenientRequests  int           `mapstructure:"RATELIMIT_LENIENT_REQUESTS"`
	LenientWindow    time.Duration `mapstructure:"RATELIMIT_LENIENT_WINDOW"`
	LenientBurst     int           `mapstructure:"RATELIMIT_LENIENT_BURST"`
	PublicRequests   int           `mapstructure:"RATELIMIT_PUBLIC_REQUESTS"`
	PublicWindow     time.Duration `mapstructure:"RATELIMIT_PUBLIC_WINDOW"`
	PublicBurst      int           `mapstructure:"RATELIMIT_PUBLIC_BURST"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("IDENTITY_ISSUER", "identity")
	v.SetDefault("IDENTITY_AUDIENCE", "")
	v.SetDefault("IDENTITY_ALGORITHM", jwtx.AlgorithmEdDSA)
	v.SetDefault("IDENTITY_NUM_KEYS", 3)
	v.SetDefault("IDENTITY_RSA_BITS", 4096)
	v.SetDefault("IDENTITY_SIGNING_KEY_FILE", "")
	v.SetDefault("IDENTITY_ACCESS_TTL", jwtx.DefaultAccessTokenTTL)
	v.SetDefault("IDENTITY_REFRESH_TTL", 30*24*time.Hour)
	v.SetDefault("IDENTITY_CODE_TTL", 5*time.Minute)

	v.SetDefault("DATABASE_DRIVER", DriverSQLite)
	v.SetDefault("DATABASE_URL", "file:identity.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	v.SetDefault("DATABASE_MAX_OPEN_CONNS", 10)
	v.SetDefault("DATABASE_MAX_IDLE_CONNS", 5)
	v.SetDefault("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute)

	v.SetDefault("PEPPER_FILE", "pepper")
	v.SetDefault("PUBLIC_URL", "http://localhost:8080")

	v.SetDefault("ENV", "dev")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("PORT", 8080)
	v.SetDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second)
	v.SetDefault("HOUSEKEEPING_INTERVAL", time.Hour)

	for name, rl := range map[string]httpx.RateLimitConfig{
		"STRICT":   httpx.StrictLimit,
		"MODERATE": httpx.ModerateLimit,
		"LENIENT":  httpx.LenientLimit,
		"PUBLIC":   httpx.PublicLimit,
	} {
		v.SetDefault("RATELIMIT_"+name+"_REQUESTS", rl.RequestsPerWindow)
		v.SetDefault("RATELIMIT_"+name+"_WINDOW", rl.Window)
		v.SetDefault("RATELIMIT_"+name+"_BURST", rl.Burst)
	}
}

// LoadConfig reads .env if present, then the environment.
func LoadConfig() (Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // a missing .env is fine

	v.AutomaticEnv()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	cfg.DatabaseDriver = strings.ToLower(strings.TrimSpace(cfg.DatabaseDriver))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the service can not start with.
func (c Config) Validate() error {
	var errs []error

	switch c.DatabaseDriver {
	case DriverSQLite, DriverPostgres:
	default:
		errs = append(errs, fmt.Errorf("config: DATABASE_DRIVER must be %q or %q, got %q", DriverSQLite, DriverPostgres, c.DatabaseDriver))
	}
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("config: DATABASE_URL must be set"))
	}
	if !jwtx.ValidAlgorithm(c.Algorithm) {
		errs = append(errs, fmt.Errorf("config: unsupported IDENTITY_ALGORITHM %q", c.Algorithm))
	}
	if c.Issuer == "" {
		errs = append(errs, errors.New("config: IDENTITY_ISSUER must be set"))
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 || c.CodeTTL <= 0 {
		errs = append(errs, errors.New("config: token TTLs must be positive"))
	}
	if c.RefreshTTL < c.AccessTTL {
		errs = append(errs, errors.New("config: IDENTITY_REFRESH_TTL must not be shorter than IDENTITY_ACCESS_TTL"))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("config: invalid PORT %d", c.Port))
	}

	for name, rl := range c.RateLimits.profiles() {
		if !rl.Valid() {
			errs = append(errs, fmt.Errorf("config: RATELIMIT_%s_* values must be positive", name))
		}
	}

	return errors.Join(errs...)
}

// Audiences splits the comma separated audience list.
func (c Config) Audiences() []string {
	var out []string
	for _, a := range strings.Split(c.Audience, ",") {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

func (r RateLimits) profiles() map[string]httpx.RateLimitConfig {
	return map[string]httpx.RateLimitConfig{
		"STRICT":   {RequestsPerWindow: r.StrictRequests, Window: r.StrictWindow, Burst: r.StrictBurst},
		"MODERATE": {RequestsPerWindow: r.ModerateRequests, Window: r.ModerateWindow, Burst: r.ModerateBurst},
		"LENIENT":  {RequestsPerWindow: r.LenientRequests, Window: r.LenientWindow, Burst: r.LenientBurst},
		"PUBLIC":   {RequestsPerWindow: r.PublicRequests, Window: r.PublicWindow, Burst: r.PublicBurst},
	}
}

// Apply installs the profiles as the httpx defaults. Routes read the
// profiles when they are registered, so call this before building the router.
func (r RateLimits) Apply() {
	p := r.profiles()
	httpx.StrictLimit = p["STRICT"]
	httpx.ModerateLimit = p["MODERATE"]
	httpx.LenientLimit = p["LENIENT"]
	httpx.PublicLimit = p["PUBLIC"]
}
