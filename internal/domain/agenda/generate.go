package agenda

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/careflow/careflow/internal/domain/care"
	"github.com/careflow/careflow/internal/platform/calendar"
)

// slotTimes normalizes a time list to sorted, unique HH:mm values. Invalid
// entries are dropped. An empty result means "once per due day, unscheduled".
func slotTimes(raw []string) []string {
	seen := make(map[string]bool, len(raw))
	var out []string
	for _, t := range raw {
		n, err := calendar.NormalizeTime(t)
		if err != nil || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// createdDay is the tenant-local calendar day of a creation timestamp.
func createdDay(createdAt time.Time, loc *time.Location) string {
	if createdAt.IsZero() {
		return ""
	}
	return calendar.DateKey(createdAt.In(loc))
}

func expand(times []string, emit func(t string, unscheduled bool)) {
	if len(times) == 0 {
		emit(calendar.UnscheduledTime, true)
		return
	}
	for _, t := range times {
		emit(t, false)
	}
}

// RecurringOccurrences expands active recurrence configs over days. Configs
// whose rule is malformed are skipped; no occurrence precedes the config's
// creation day.
func RecurringOccurrences(configs []*care.RecurrenceConfig, days []time.Time, loc *time.Location, logger zerolog.Logger) []Occurrence {
	var out []Occurrence
	for _, c := range configs {
		if !c.IsActive {
			continue
		}
		rule := c.Rule()
		if !rule.Valid() {
			logger.Debug().Str("config_id", c.ID.String()).Str("frequency", string(c.Frequency)).Msg("skipping malformed recurrence config")
			continue
		}
		since := createdDay(c.CreatedAt, loc)
		times := slotTimes(c.SuggestedTimes)
		payload := RecurringPayload{Config: c, MealType: c.MealType()}

		for _, day := range days {
			dk := calendar.DateKey(day)
			if dk < since || !calendar.IsDue(rule, day) {
				continue
			}
			expand(times, func(t string, unscheduled bool) {
				out = append(out, Occurrence{
					SourceID: c.ID, ResidentID: c.ResidentID, Date: dk, Time: t,
					Unscheduled: unscheduled, Payload: payload,
				})
			})
		}
	}
	return out
}

func administrationKey(medicationID uuid.UUID, day, hhmm string) string {
	return medicationID.String() + "|" + day + "|" + hhmm
}

// IndexAdministrations keeps, per medicationId|day|time, the administration
// that best represents the slot: an administered one over a refused one,
// then the earliest created.
func IndexAdministrations(admins []*care.MedicationAdministration) map[string]*care.MedicationAdministration {
	idx := make(map[string]*care.MedicationAdministration, len(admins))
	for _, a := range admins {
		t, err := calendar.NormalizeTime(a.ScheduledTime)
		if err != nil {
			t = a.ScheduledTime
		}
		key := administrationKey(a.MedicationID, a.Date, t)
		cur, ok := idx[key]
		if !ok || betterAdministration(a, cur) {
			idx[key] = a
		}
	}
	return idx
}

func betterAdministration(a, b *care.MedicationAdministration) bool {
	if a.WasAdministered != b.WasAdministered {
		return a.WasAdministered
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID.String() < b.ID.String()
}

// MedicationOccurrences expands medication schedules over days, bounded by
// the prescription dates and the medication's creation day, and attaches the
// best administration logged for each slot.
func MedicationOccurrences(schedules []*care.MedicationSchedule, admins map[string]*care.MedicationAdministration, days []time.Time, loc *time.Location) []Occurrence {
	var out []Occurrence
	for _, m := range schedules {
		since := createdDay(m.CreatedAt, loc)
		times := slotTimes(m.ScheduledTimes)

		for _, day := range days {
			dk := calendar.DateKey(day)
			if dk < since || !m.Covers(dk) {
				continue
			}
			expand(times, func(t string, unscheduled bool) {
				out = append(out, Occurrence{
					SourceID: m.MedicationID, ResidentID: m.ResidentID, Date: dk, Time: t,
					Unscheduled: unscheduled,
					Payload:     MedicationPayload{Schedule: m, Administration: admins[administrationKey(m.MedicationID, dk, t)]},
				})
			})
		}
	}
	return out
}

// EventOccurrences turns scheduled events inside rng into occurrences.
func EventOccurrences(events []*care.ScheduledEvent, rng care.DateRange) []Occurrence {
	var out []Occurrence
	for _, e := range events {
		if !rng.Contains(e.ScheduledDate) {
			continue
		}
		t, err := calendar.NormalizeTime(e.ScheduledTime)
		unscheduled := err != nil
		if unscheduled {
			t = calendar.UnscheduledTime
		}
		out = append(out, Occurrence{
			SourceID: e.ID, ResidentID: e.ResidentID, Date: e.ScheduledDate, Time: t,
			Unscheduled: unscheduled, Payload: EventPayload{Event: e},
		})
	}
	return out
}
