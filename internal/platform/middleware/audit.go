package middleware

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/careflow/careflow/internal/platform/auth"
	"github.com/careflow/careflow/internal/platform/db"
)

// AccessEntry records one read of resident care data.
type AccessEntry struct {
	Tenant     string
	UserID     string
	UserRoles  []string
	Route      string
	ResidentID string
	Format     string
	RemoteIP   string
	RequestID  string
	StatusCode int
	Duration   time.Duration
	Timestamp  time.Time
}

// AccessRecorder persists access entries somewhere other than the log.
type AccessRecorder interface {
	RecordAccess(entry AccessEntry) error
}

type AccessRecorderFunc func(entry AccessEntry) error

func (f AccessRecorderFunc) RecordAccess(entry AccessEntry) error {
	return f(entry)
}

// Audit logs who read which resident's agenda or compliance data. Mount it on
// the authenticated group so user and tenant are already resolved.
func Audit(logger zerolog.Logger, recorders ...AccessRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			entry := accessEntry(c, start)
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					entry.StatusCode = he.Code
				}
			}

			for _, r := range recorders {
				if r == nil {
					continue
				}
				if recErr := r.RecordAccess(entry); recErr != nil {
					logger.Error().Err(recErr).
						Str("request_id", entry.RequestID).
						Msg("failed to record access entry")
				}
			}

			logger.Info().
				Str("type", "care_access").
				Str("tenant", entry.Tenant).
				Str("request_id", entry.RequestID).
				Str("user_id", entry.UserID).
				Strs("user_roles", entry.UserRoles).
				Str("route", entry.Route).
				Str("resident_id", entry.ResidentID).
				Str("format", entry.Format).
				Str("remote_ip", entry.RemoteIP).
				Int("status", entry.StatusCode).
				Dur("duration", entry.Duration).
				Msg("resident_data_access")

			return err
		}
	}
}

func accessEntry(c echo.Context, start time.Time) AccessEntry {
	ctx := c.Request().Context()
	entry := AccessEntry{
		UserID:     auth.UserIDFromContext(ctx),
		UserRoles:  auth.RolesFromContext(ctx),
		Route:      c.Path(),
		Format:     c.QueryParam("format"),
		RemoteIP:   c.RealIP(),
		StatusCode: c.Response().Status,
		Duration:   time.Since(start),
		Timestamp:  start.UTC(),
	}
	if tc, ok := db.TenantFromEcho(c); ok {
		entry.Tenant = tc.ID
	}
	if rid, ok := c.Get("request_id").(string); ok {
		entry.RequestID = rid
	}
	// Only well-formed ids are logged; anything else is rejected upstream.
	if raw := c.QueryParam("residentId"); raw != "" {
		if _, err := uuid.Parse(raw); err == nil {
			entry.ResidentID = raw
		}
	}
	return entry
}
