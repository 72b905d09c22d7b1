package care

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/careflow/careflow/internal/platform/cache"
	"github.com/careflow/careflow/internal/platform/calendar"
	"github.com/careflow/careflow/internal/platform/db"
)

// NamedWindow is a shift template reduced to what the engine needs.
type NamedWindow struct {
	ID     uuid.UUID       `json:"id"`
	Name   string          `json:"name"`
	Window calendar.Window `json:"window"`
}

// ShiftResolver turns shift template ids into time windows, caching them in Redis.
type ShiftResolver struct {
	repo   ShiftTemplateRepository
	kv     cache.KV
	ttl    time.Duration
	logger zerolog.Logger
}

func NewShiftResolver(repo ShiftTemplateRepository, kv cache.KV, ttl time.Duration, logger zerolog.Logger) *ShiftResolver {
	if kv == nil {
		kv = cache.NopKV{}
	}
	return &ShiftResolver{repo: repo, kv: kv, ttl: ttl, logger: logger}
}

// Window resolves a shift template id. A nil id, an unknown or inactive
// template, or one with unusable times yields no window (the whole day).
func (r *ShiftResolver) Window(ctx context.Context, tc db.TenantContext, id *uuid.UUID) (*calendar.Window, error) {
	if id == nil {
		return nil, nil
	}
	key := cache.TenantKey(tc.ID, "shift", id.String())

	var nw NamedWindow
	err := cache.GetJSON(ctx, r.kv, key, &nw)
	if err == nil {
		return &nw.Window, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		r.logger.Warn().Err(err).Str("tenant", tc.ID).Msg("shift cache read failed")
	}

	tpl, err := r.repo.Get(ctx, tc, *id)
	if errors.Is(err, ErrNotFound) {
		r.logger.Warn().Str("tenant", tc.ID).Str("shift_template", id.String()).Msg("unknown shift template, using whole day")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve shift template: %w", err)
	}
	if !tpl.IsActive {
		r.logger.Warn().Str("tenant", tc.ID).Str("shift_template", id.String()).Msg("inactive shift template, using whole day")
		return nil, nil
	}
	w, err := tpl.Window()
	if err != nil {
		r.logger.Warn().Err(err).Str("shift_template", id.String()).Msg("shift template has malformed times, using whole day")
		return nil, nil
	}

	if err := cache.SetJSON(ctx, r.kv, key, NamedWindow{ID: tpl.ID, Name: tpl.Name, Window: w}, r.ttl); err != nil {
		r.logger.Warn().Err(err).Str("tenant", tc.ID).Msg("shift cache write failed")
	}
	return &w, nil
}

// Invalidate drops a cached window. Call it after a template is edited or
// deactivated; until then Window keeps serving the cached copy.
func (r *ShiftResolver) Invalidate(ctx context.Context, tc db.TenantContext, id uuid.UUID) error {
	return r.kv.Delete(ctx, cache.TenantKey(tc.ID, "shift", id.String()))
}

// Active lists the windows of every active shift template, skipping
// templates with malformed times.
func (r *ShiftResolver) Active(ctx context.Context, tc db.TenantContext) ([]NamedWindow, error) {
	tpls, err := r.repo.ListActive(ctx, tc)
	if err != nil {
		return nil, err
	}
	out := make([]NamedWindow, 0, len(tpls))
	for _, tpl := range tpls {
		w, err := tpl.Window()
		if err != nil {
			r.logger.Debug().Err(err).Str("shift_template", tpl.ID.String()).Msg("skipping shift template")
			continue
		}
		out = append(out, NamedWindow{ID: tpl.ID, Name: tpl.Name, Window: w})
	}
	return out, nil
}
