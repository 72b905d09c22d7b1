package compliance

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
	repos   care.Repositories
	tz      *care.TimezoneResolver
	shifts  *care.ShiftResolver
	calc    *Calculator
	maxDays int
	logger  zerolog.Logger
	now     func() time.Time
}

func NewService(repos care.Repositories, tz *care.TimezoneResolver, shifts *care.ShiftResolver, graceMinutes, maxDays int, logger zerolog.Logger) *Service {
	return &Service{
		repos:   repos,
		tz:      tz,
		shifts:  shifts,
		calc:    NewCalculator(graceMinutes, logger),
		maxDays: maxDays,
		logger:  logger,
		now:     time.Now,
	}
}

// SetClock replaces the wall clock, for tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// dayInputs are the lookups shared by every day of a request.
type dayInputs struct {
	loc       *time.Location
	configs   []*care.RecurrenceConfig
	residents []*care.Resident
	window    *calendar.Window
}

func (s *Service) loadShared(ctx context.Context, tc db.TenantContext, loc *time.Location, shiftID *uuid.UUID) (*dayInputs, error) {
	in := &dayInputs{loc: loc}
	var err error
	if in.window, err = s.shifts.Window(ctx, tc, shiftID); err != nil {
		return nil, err
	}
	if in.residents, err = s.repos.Residents.ListActive(ctx, tc, nil); err != nil {
		return nil, fmt.Errorf("list residents: %w", err)
	}
	if in.configs, err = s.repos.Configs.ListActive(ctx, tc, nil, nil); err != nil {
		return nil, fmt.Errorf("list recurrence configs: %w", err)
	}
	return in, nil
}

func (s *Service) calculateDay(ctx context.Context, tc db.TenantContext, in *dayInputs, date string) (Result, error) {
	records, err := s.repos.Records.List(ctx, tc, nil, nil, care.DateRange{Start: date, End: date})
	if err != nil {
		return Result{}, fmt.Errorf("list daily records for %s: %w", date, err)
	}
	return s.calc.Calculate(Input{
		Date:      date,
		Location:  in.loc,
		Configs:   in.configs,
		Records:   records,
		Residents: in.residents,
		Window:    in.window,
	}), nil
}

// CalculateScheduleCompliance computes one day's compliance, restricted to
// a shift window when shiftID names an active template. An empty date means
// the tenant's today.
func (s *Service) CalculateScheduleCompliance(ctx context.Context, tc db.TenantContext, date string, shiftID *uuid.UUID) (*Result, error) {
	loc := s.tz.Resolve(ctx, tc)
	if date == "" {
		date = calendar.Today(loc, s.now())
	}
	day, err := calendar.ParseDate(date)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	date = calendar.DateKey(day)

	in, err := s.loadShared(ctx, tc, loc, shiftID)
	if err != nil {
		return nil, err
	}
	res, err := s.calculateDay(ctx, tc, in, date)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Report repeats the daily calculation over [startDate, endDate]. Shared
// lookups are loaded once; days run one after another.
func (s *Service) Report(ctx context.Context, tc db.TenantContext, startDate, endDate string, shiftID *uuid.UUID) (*Report, error) {
	loc := s.tz.Resolve(ctx, tc)
	days, err := s.reportDays(startDate, endDate, calendar.Today(loc, s.now()))
	if err != nil {
		return nil, err
	}

	in, err := s.loadShared(ctx, tc, loc, shiftID)
	if err != nil {
		return nil, err
	}

	report := &Report{
		StartDate: calendar.DateKey(days[0]),
		EndDate:   calendar.DateKey(days[len(days)-1]),
		Timezone:  loc.String(),
		Days:      make([]Result, 0, len(days)),
	}
	if shiftID != nil && in.window != nil {
		report.Shift = &Shift{ID: *shiftID, StartTime: in.window.Start, EndTime: in.window.End}
	}
	for _, day := range days {
		res, err := s.calculateDay(ctx, tc, in, calendar.DateKey(day))
		if err != nil {
			return nil, err
		}
		report.Days = append(report.Days, res)
	}
	report.Totals = sumMetrics(report.Days)

	s.logger.Debug().Str("tenant", tc.ID).Str("start", report.StartDate).Str("end", report.EndDate).
		Int("days", len(report.Days)).Msg("compliance report built")
	return report, nil
}

func (s *Service) reportDays(startDate, endDate, today string) ([]time.Time, error) {
	if startDate == "" && endDate == "" {
		startDate, endDate = today, today
	}
	if startDate == "" || endDate == "" {
		return nil, ErrIncompleteRange
	}
	n, err := calendar.DayCount(startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDate, err)
	}
	if n < 1 {
		return nil, ErrInvertedRange
	}
	if s.maxDays > 0 && n > s.maxDays {
		return nil, fmt.Errorf("%w: %d days, max %d", ErrRangeTooLarge, n, s.maxDays)
	}
	start, _ := calendar.ParseDate(startDate)
	end, _ := calendar.ParseDate(endDate)
	return calendar.DaysInRange(start, end), nil
}
