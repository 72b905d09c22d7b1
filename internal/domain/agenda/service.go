package agenda

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/careflow/careflow/internal/domain/care"
	"github.com/careflow/careflow/internal/platform/calendar"
	"github.com/careflow/careflow/internal/platform/db"
)

type Service struct {
	repos  care.Repositories
	tz     *care.TimezoneResolver
	shifts *care.ShiftResolver
	limits Limits
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(repos care.Repositories, tz *care.TimezoneResolver, shifts *care.ShiftResolver, limits Limits, logger zerolog.Logger) *Service {
	return &Service{repos: repos, tz: tz, shifts: shifts, limits: limits, logger: logger, now: time.Now}
}

// SetClock replaces the wall clock, for tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// request is a validated query bound to its tenant and clock.
type request struct {
	tc         db.TenantContext
	rng        care.DateRange
	residentID *uuid.UUID
	sel        selection
	clock      Clock
}

func (s *Service) newRequest(ctx context.Context, tc db.TenantContext, q Query, maxDays int) (request, error) {
	loc := s.tz.Resolve(ctx, tc)
	clk := NewClock(s.now(), loc)

	rng, err := resolveRange(q, clk.Today, maxDays)
	if err != nil {
		return request{}, err
	}
	sel, err := parseFilters(q.Filters)
	if err != nil {
		return request{}, err
	}
	return request{tc: tc, rng: rng, residentID: q.ResidentID, sel: sel, clock: clk}, nil
}

// resolveRange applies the precedence range > date > today and rejects
// malformed, inverted or oversized ranges.
func resolveRange(q Query, today string, maxDays int) (care.DateRange, error) {
	switch {
	case q.StartDate != "" || q.EndDate != "":
		if q.StartDate == "" || q.EndDate == "" {
			return care.DateRange{}, ErrIncompleteRange
		}
		return validateRange(q.StartDate, q.EndDate, maxDays)
	case q.Date != "":
		return validateRange(q.Date, q.Date, maxDays)
	default:
		return care.DateRange{Start: today, End: today}, nil
	}
}

func validateRange(start, end string, maxDays int) (care.DateRange, error) {
	n, err := calendar.DayCount(start, end)
	if err != nil {
		return care.DateRange{}, fmt.Errorf("%w: %v", ErrInvalidDate, err)
	}
	if n < 1 {
		return care.DateRange{}, ErrInvertedRange
	}
	if maxDays > 0 && n > maxDays {
		return care.DateRange{}, fmt.Errorf("%w: %d days, max %d", ErrRangeTooLarge, n, maxDays)
	}
	// Re-render so "2026-2-3"-style input can never reach string comparisons.
	s, _ := calendar.ParseDate(start)
	e, _ := calendar.ParseDate(end)
	return care.DateRange{Start: calendar.DateKey(s), End: calendar.DateKey(e)}, nil
}

// GetAgendaItems returns every agenda item of the query's range, sorted by
// date, time and id. The status filter is applied after resolution.
func (s *Service) GetAgendaItems(ctx context.Context, tc db.TenantContext, q Query) ([]Item, error) {
	req, err := s.newRequest(ctx, tc, q, s.limits.AgendaMaxDays)
	if err != nil {
		return nil, err
	}
	lc, err := s.loadLookups(ctx, req, false)
	if err != nil {
		return nil, fmt.Errorf("load agenda data: %w", err)
	}

	items := lc.Items(rangeDays(req.rng), s.logger)
	if q.Status != "" {
		items = filterStatus(items, q.Status)
	}
	return items, nil
}

func filterStatus(items []Item, status Status) []Item {
	out := items[:0:0]
	for _, it := range items {
		if it.Status == status {
			out = append(out, it)
		}
	}
	return out
}

// GetCalendarSummary returns per-day counts over the range. All lookups are
// loaded once; days are then processed one after another.
func (s *Service) GetCalendarSummary(ctx context.Context, tc db.TenantContext, q Query) (*CalendarSummary, error) {
	req, err := s.newRequest(ctx, tc, q, s.limits.CalendarMaxDays)
	if err != nil {
		return nil, err
	}
	lc, err := s.loadLookups(ctx, req, true)
	if err != nil {
		return nil, fmt.Errorf("load calendar data: %w", err)
	}

	summary := &CalendarSummary{
		StartDate: req.rng.Start,
		EndDate:   req.rng.End,
		Timezone:  req.clock.Loc.String(),
		Days:      map[string]*DaySummary{},
		Totals:    Totals{StatusBreakdown: map[Status]int{}, CategoryBreakdown: map[string]int{}},
	}
	for _, day := range rangeDays(req.rng) {
		ds := summarizeDay(calendar.DateKey(day), lc.Items([]time.Time{day}, s.logger), lc.Shifts)
		summary.Days[ds.Date] = ds
		summary.Totals.TotalItems += ds.TotalItems
		for k, v := range ds.StatusBreakdown {
			summary.Totals.StatusBreakdown[k] += v
		}
		for k, v := range ds.CategoryBreakdown {
			summary.Totals.CategoryBreakdown[k] += v
		}
	}
	return summary, nil
}

func summarizeDay(date string, items []Item, shifts []care.NamedWindow) *DaySummary {
	ds := &DaySummary{
		Date:              date,
		StatusBreakdown:   map[Status]int{},
		CategoryBreakdown: map[string]int{},
	}
	if len(shifts) > 0 {
		ds.ShiftBreakdown = map[string]int{}
		for _, sh := range shifts {
			ds.ShiftBreakdown[sh.Name] = 0
		}
	}
	for _, it := range items {
		ds.TotalItems++
		ds.StatusBreakdown[it.Status]++
		ds.CategoryBreakdown[it.Category]++
		switch it.Type {
		case KindMedication:
			ds.HasMedications = true
		case KindScheduledEvent:
			ds.HasEvents = true
		case KindRecurringRecord:
			ds.HasRecurring = true
		}
		if it.Status == StatusMissed {
			ds.HasMissed = true
		}
		if it.Unscheduled {
			continue
		}
		for _, sh := range shifts {
			if sh.Window.Contains(it.ScheduledTime) {
				ds.ShiftBreakdown[sh.Name]++
			}
		}
	}
	return ds
}

// GetDailyTasks is the single-day view of recurring records and medications.
func (s *Service) GetDailyTasks(ctx context.Context, tc db.TenantContext, residentID *uuid.UUID, date string) ([]DailyTask, error) {
	filters := []string{string(KindMedication)}
	for _, rt := range care.RecordTypes {
		filters = append(filters, string(rt))
	}
	items, err := s.GetAgendaItems(ctx, tc, Query{Date: date, ResidentID: residentID, Filters: filters})
	if err != nil {
		return nil, err
	}

	tasks := make([]DailyTask, 0, len(items))
	for _, it := range items {
		tasks = append(tasks, DailyTask{
			ID:            it.ID,
			Type:          it.Type,
			ResidentID:    it.ResidentID,
			ResidentName:  it.ResidentName,
			Category:      it.Category,
			Title:         it.Title,
			ScheduledTime: it.ScheduledTime,
			Status:        it.Status,
			Completed:     it.Status == StatusCompleted,
			CompletedAt:   it.CompletedAt,
			MealType:      it.MealType,
		})
	}
	return tasks, nil
}
