package agenda

import (
	"sort"
	"time"

	"github.com/careflow/careflow/internal/domain/care"
	"github.com/careflow/careflow/internal/platform/calendar"
	"github.com/careflow/careflow/internal/platform/reconcile"
)

// Clock is the tenant-local notion of "now" a request resolves statuses against.
type Clock struct {
	Now   time.Time
	Loc   *time.Location
	Today string
}

func NewClock(now time.Time, loc *time.Location) Clock {
	return Clock{Now: now, Loc: loc, Today: calendar.Today(loc, now)}
}

// ResolveStatus is the state machine shared by every generated occurrence:
// matched → completed, unmatched on a day before today → missed, else pending.
func ResolveStatus(matched bool, day, today string) Status {
	if matched {
		return StatusCompleted
	}
	if day < today {
		return StatusMissed
	}
	return StatusPending
}

// EventStatus derives the read-time status of a scheduled event. A SCHEDULED
// event whose local date and time lie in the past reads as missed; the stored
// row is left untouched.
func EventStatus(e *care.ScheduledEvent, clk Clock) Status {
	switch e.Status {
	case care.EventCompleted:
		return StatusCompleted
	case care.EventCancelled:
		return StatusCancelled
	case care.EventMissed:
		return StatusMissed
	}
	at, err := calendar.LocalToUTC(e.ScheduledDate, e.ScheduledTime, clk.Loc)
	if err != nil {
		return ResolveStatus(false, e.ScheduledDate, clk.Today)
	}
	if at.Before(clk.Now) {
		return StatusMissed
	}
	return StatusPending
}

// MedicationStatus resolves a medication slot from its administration. A
// logged refusal (wasAdministered=false) closes the slot as missed.
func MedicationStatus(p MedicationPayload, day string, clk Clock) Status {
	if p.Administration != nil {
		if p.Administration.WasAdministered {
			return StatusCompleted
		}
		return StatusMissed
	}
	return ResolveStatus(false, day, clk.Today)
}

func recordGroupKey(r *care.DailyRecord) string {
	return r.ResidentID.String() + "|" + string(r.Type) + "|" + r.Date
}

// MatchRecurring pairs recurring occurrences with the daily records logged
// for the same resident, record type and day. It returns the record matched
// to each occurrence id. Feeding occurrences only take records of a
// compatible meal type.
func MatchRecurring(occs []Occurrence, records []*care.DailyRecord, grace int) map[string]*care.DailyRecord {
	slotsByGroup := map[string][]reconcile.Slot{}
	var groups []string
	for _, o := range occs {
		p, ok := o.Payload.(RecurringPayload)
		if !ok {
			continue
		}
		key := o.ExpectedKey()
		if _, seen := slotsByGroup[key]; !seen {
			groups = append(groups, key)
		}
		slotsByGroup[key] = append(slotsByGroup[key], reconcile.Slot{
			ID: o.ID(), Time: o.Time, Unscheduled: o.Unscheduled, MealType: p.MealType,
		})
	}
	sort.Strings(groups)

	recordsByGroup := map[string][]*care.DailyRecord{}
	byID := map[string]*care.DailyRecord{}
	for _, r := range records {
		key := recordGroupKey(r)
		recordsByGroup[key] = append(recordsByGroup[key], r)
		byID[r.ID.String()] = r
	}

	matched := map[string]*care.DailyRecord{}
	for _, key := range groups {
		recs := recordsByGroup[key]
		if len(recs) == 0 {
			continue
		}
		candidates := make([]reconcile.Candidate, len(recs))
		for i, r := range recs {
			candidates[i] = reconcile.Candidate{ID: r.ID.String(), Time: r.Time, CreatedAt: r.CreatedAt, MealType: r.MealType()}
		}
		res := reconcile.Match(slotsByGroup[key], candidates, reconcile.Options{
			GraceMinutes:  grace,
			MatchMealType: recs[0].Type == care.RecordFeeding,
		})
		for _, pair := range res.Matches {
			matched[pair.Slot.ID] = byID[pair.Candidate.ID]
		}
	}
	return matched
}
