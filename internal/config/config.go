package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Port          string   `mapstructure:"PORT"`
	Env           string   `mapstructure:"ENV"`
	DatabaseURL   string   `mapstructure:"DATABASE_URL"`
	DBMaxConns    int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns    int32    `mapstructure:"DB_MIN_CONNS"`
	RedisURL      string   `mapstructure:"REDIS_URL"`
	MigrationsDir string   `mapstructure:"MIGRATIONS_DIR"` // empty: embedded migrations
	DefaultTenant string   `mapstructure:"DEFAULT_TENANT"`
	CORSOrigins   []string `mapstructure:"CORS_ORIGINS"`

	AuthIssuer     string `mapstructure:"AUTH_ISSUER"`
	AuthAudience   string `mapstructure:"AUTH_AUDIENCE"`
	AuthJWKSURL    string `mapstructure:"AUTH_JWKS_URL"`
	AuthSigningKey string `mapstructure:"AUTH_SIGNING_KEY"`

	DefaultTimezone  string        `mapstructure:"DEFAULT_TIMEZONE"`
	TimezoneCacheTTL time.Duration `mapstructure:"TIMEZONE_CACHE_TTL"`
	ShiftCacheTTL    time.Duration `mapstructure:"SHIFT_CACHE_TTL"`
	RequestTimeout   time.Duration `mapstructure:"REQUEST_TIMEOUT"`

	RateLimitRPS   float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `mapstructure:"RATE_LIMIT_BURST"`

	AgendaMaxRangeDays     int `mapstructure:"AGENDA_MAX_RANGE_DAYS"`
	CalendarMaxRangeDays   int `mapstructure:"CALENDAR_MAX_RANGE_DAYS"`
	ReportMaxRangeDays     int `mapstructure:"REPORT_MAX_RANGE_DAYS"`
	ComplianceGraceMinutes int `mapstructure:"COMPLIANCE_GRACE_MINUTES"`
}

var keys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "REDIS_URL",
	"MIGRATIONS_DIR", "DEFAULT_TENANT", "CORS_ORIGINS",
	"AUTH_ISSUER", "AUTH_AUDIENCE", "AUTH_JWKS_URL", "AUTH_SIGNING_KEY",
	"DEFAULT_TIMEZONE", "TIMEZONE_CACHE_TTL", "SHIFT_CACHE_TTL", "REQUEST_TIMEOUT",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	"AGENDA_MAX_RANGE_DAYS", "CALENDAR_MAX_RANGE_DAYS", "REPORT_MAX_RANGE_DAYS",
	"COMPLIANCE_GRACE_MINUTES",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("DEFAULT_TENANT", "default")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("DEFAULT_TIMEZONE", "America/Sao_Paulo")
	v.SetDefault("TIMEZONE_CACHE_TTL", "10m")
	v.SetDefault("SHIFT_CACHE_TTL", "1m")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("RATE_LIMIT_RPS", 20)
	v.SetDefault("RATE_LIMIT_BURST", 40)
	v.SetDefault("AGENDA_MAX_RANGE_DAYS", 31)
	v.SetDefault("CALENDAR_MAX_RANGE_DAYS", 60)
	v.SetDefault("REPORT_MAX_RANGE_DAYS", 7)
	v.SetDefault("COMPLIANCE_GRACE_MINUTES", 60)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) == 1 && strings.Contains(cfg.CORSOrigins[0], ",") {
		cfg.CORSOrigins = strings.Split(cfg.CORSOrigins[0], ",")
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Warn().Msg("running in development mode: DevAuthMiddleware grants admin access to every request")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run. Outside development
// a JWT verification source (signing key or JWKS URL) is required.
func (c *Config) Validate() error {
	if !c.IsDev() && c.AuthSigningKey == "" && c.AuthJWKSURL == "" {
		return fmt.Errorf("AUTH_SIGNING_KEY or AUTH_JWKS_URL must be set when ENV=%q", c.Env)
	}
	if _, err := time.LoadLocation(c.DefaultTimezone); err != nil || c.DefaultTimezone == "" {
		return fmt.Errorf("DEFAULT_TIMEZONE %q is not a valid IANA zone", c.DefaultTimezone)
	}
	limits := map[string]int{
		"AGENDA_MAX_RANGE_DAYS":   c.AgendaMaxRangeDays,
		"CALENDAR_MAX_RANGE_DAYS": c.CalendarMaxRangeDays,
		"REPORT_MAX_RANGE_DAYS":   c.ReportMaxRangeDays,
	}
	for _, name := range []string{"AGENDA_MAX_RANGE_DAYS", "CALENDAR_MAX_RANGE_DAYS", "REPORT_MAX_RANGE_DAYS"} {
		if limits[name] < 1 {
			return fmt.Errorf("%s must be positive, got %d", name, limits[name])
		}
	}
	if c.ComplianceGraceMinutes < 0 {
		return fmt.Errorf("COMPLIANCE_GRACE_MINUTES must not be negative, got %d", c.ComplianceGraceMinutes)
	}
	return nil
}
