package main

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/careflow/careflow/internal/config"
	"github.com/careflow/careflow/internal/domain/agenda"
	"github.com/careflow/careflow/internal/domain/care"
	"github.com/careflow/careflow/internal/domain/compliance"
	"github.com/careflow/careflow/internal/platform/auth"
	"github.com/careflow/careflow/internal/platform/cache"
	"github.com/careflow/careflow/internal/platform/db"
	"github.com/careflow/careflow/internal/platform/middleware"
)

// backends are the stores the HTTP server reads from.
type backends struct {
	repos  care.Repositories
	kv     cache.KV
	checks map[string]db.Check
}

type services struct {
	agenda     *agenda.Service
	compliance *compliance.Service
}

func newServices(cfg *config.Config, repos care.Repositories, kv cache.KV, logger zerolog.Logger) services {
	tz := care.NewTimezoneResolver(repos.Settings, kv, cfg.TimezoneCacheTTL, cfg.DefaultTimezone, logger)
	shifts := care.NewShiftResolver(repos.Shifts, kv, cfg.ShiftCacheTTL, logger)

	return services{
		agenda: agenda.NewService(repos, tz, shifts, agenda.Limits{
			AgendaMaxDays:   cfg.AgendaMaxRangeDays,
			CalendarMaxDays: cfg.CalendarMaxRangeDays,
		}, logger),
		compliance: compliance.NewService(repos, tz, shifts, cfg.ComplianceGraceMinutes, cfg.ReportMaxRangeDays, logger),
	}
}

func newServer(cfg *config.Config, b backends, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "X-Tenant-ID"},
	}))
	e.Use(echomw.Secure())

	// Health check, outside auth and tenant resolution.
	e.GET("/health", db.HealthHandler(b.checks))

	// API
	apiV1 := e.Group("/api/v1")
	if cfg.IsDev() {
		apiV1.Use(auth.DevAuthMiddleware(cfg.DefaultTenant))
	} else {
		apiV1.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			JWKSURL:    cfg.AuthJWKSURL,
			SigningKey: []byte(cfg.AuthSigningKey),
		}))
	}
	apiV1.Use(db.TenantMiddleware(cfg.DefaultTenant))
	apiV1.Use(middleware.Audit(logger))

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
		IdleTTL:           middleware.DefaultRateLimitConfig().IdleTTL,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))
	apiV1.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	svc := newServices(cfg, b.repos, b.kv, logger)
	agenda.NewHandler(svc.agenda).RegisterRoutes(apiV1)
	compliance.NewHandler(svc.compliance).RegisterRoutes(apiV1)

	return e
}
