package care

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/careflow/careflow/internal/platform/cache"
	"github.com/careflow/careflow/internal/platform/calendar"
	"github.com/careflow/careflow/internal/platform/db"
)

// TimezoneResolver answers the IANA zone of a tenant: Redis first, then the
// tenant settings table, then the configured fallback. It never fails; a
// broken lookup degrades to the fallback zone.
type TimezoneResolver struct {
	settings SettingsRepository
	kv       cache.KV
	ttl      time.Duration
	fallback string
	logger   zerolog.Logger
}

func NewTimezoneResolver(settings SettingsRepository, kv cache.KV, ttl time.Duration, fallback string, logger zerolog.Logger) *TimezoneResolver {
	if kv == nil {
		kv = cache.NopKV{}
	}
	if fallback == "" {
		fallback = calendar.DefaultTimezone
	}
	return &TimezoneResolver{settings: settings, kv: kv, ttl: ttl, fallback: fallback, logger: logger}
}

func (r *TimezoneResolver) Resolve(ctx context.Context, tc db.TenantContext) *time.Location {
	key := cache.TenantKey(tc.ID, "timezone")

	name, err := r.kv.Get(ctx, key)
	switch {
	case err == nil:
		if loc, ok := calendar.LoadLocation(name); ok {
			return loc
		}
	case !errors.Is(err, cache.ErrMiss):
		r.logger.Warn().Err(err).Str("tenant", tc.ID).Msg("timezone cache read failed")
	}

	name, err = r.settings.Timezone(ctx, tc)
	if err != nil {
		r.logger.Warn().Err(err).Str("tenant", tc.ID).Str("fallback", r.fallback).Msg("timezone lookup failed, using fallback")
		return r.fallbackLocation()
	}

	loc, ok := calendar.LoadLocation(name)
	if !ok {
		r.logger.Warn().Str("tenant", tc.ID).Str("timezone", name).Str("fallback", r.fallback).Msg("tenant timezone unusable, using fallback")
		return r.fallbackLocation()
	}

	if err := r.kv.Set(ctx, key, name, r.ttl); err != nil {
		r.logger.Warn().Err(err).Str("tenant", tc.ID).Msg("timezone cache write failed")
	}
	return loc
}

// Invalidate drops the cached zone so the next Resolve reads the settings table.
func (r *TimezoneResolver) Invalidate(ctx context.Context, tc db.TenantContext) error {
	return r.kv.Delete(ctx, cache.TenantKey(tc.ID, "timezone"))
}

func (r *TimezoneResolver) fallbackLocation() *time.Location {
	loc, _ := calendar.LoadLocation(r.fallback)
	return loc
}
