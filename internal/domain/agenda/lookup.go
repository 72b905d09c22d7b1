package agenda

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/careflow/careflow/internal/domain/care"
	"github.com/careflow/careflow/internal/platform/calendar"
	"github.com/careflow/careflow/internal/platform/reconcile"
)

// selection is the parsed form of Query.Filters.
type selection struct {
	medications bool
	events      []care.EventType
	records     []care.RecordType
}

func (s selection) wantsEvents() bool  { return len(s.events) > 0 }
func (s selection) wantsRecords() bool { return len(s.records) > 0 }

func parseFilters(filters []string) (selection, error) {
	if len(filters) == 0 {
		return selection{medications: true, events: care.EventTypes, records: care.RecordTypes}, nil
	}
	var sel selection
	for _, f := range filters {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if strings.EqualFold(f, string(KindMedication)) {
			sel.medications = true
			continue
		}
		if et, ok := care.ParseEventType(f); ok {
			sel.events = appendUnique(sel.events, et)
			continue
		}
		if rt, ok := care.ParseRecordType(f); ok {
			sel.records = appendUnique(sel.records, rt)
			continue
		}
		return selection{}, fmt.Errorf("%w: %q", ErrInvalidFilter, f)
	}
	if !sel.medications && !sel.wantsEvents() && !sel.wantsRecords() {
		return parseFilters(nil)
	}
	return sel, nil
}

func appendUnique[T comparable](list []T, v T) []T {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}

// LookupCache holds every day-independent row a request needs. It is loaded
// once, then days are expanded against it without further queries.
type LookupCache struct {
	Range     care.DateRange
	Clock     Clock
	Residents map[uuid.UUID]*care.Resident
	Configs   []*care.RecurrenceConfig
	Schedules []*care.MedicationSchedule
	Admins    map[string]*care.MedicationAdministration
	Records   []*care.DailyRecord
	Events    []*care.ScheduledEvent
	Shifts    []care.NamedWindow
}

func (s *Service) loadLookups(ctx context.Context, req request, withShifts bool) (*LookupCache, error) {
	tc := req.tc
	lc := &LookupCache{Range: req.rng, Clock: req.clock, Residents: map[uuid.UUID]*care.Resident{}}

	residents, err := s.repos.Residents.ListActive(ctx, tc, req.residentID)
	if err != nil {
		return nil, err
	}
	for _, r := range residents {
		lc.Residents[r.ID] = r
	}

	if req.sel.wantsRecords() {
		if lc.Configs, err = s.repos.Configs.ListActive(ctx, tc, req.residentID, req.sel.records); err != nil {
			return nil, err
		}
		if lc.Records, err = s.repos.Records.List(ctx, tc, req.residentID, req.sel.records, req.rng); err != nil {
			return nil, err
		}
	}

	if req.sel.medications {
		if lc.Schedules, err = s.repos.Medications.ListActive(ctx, tc, req.residentID, req.rng); err != nil {
			return nil, err
		}
		ids := make([]uuid.UUID, 0, len(lc.Schedules))
		for _, m := range lc.Schedules {
			ids = append(ids, m.MedicationID)
		}
		admins, err := s.repos.Administrations.List(ctx, tc, ids, req.rng)
		if err != nil {
			return nil, err
		}
		lc.Admins = IndexAdministrations(admins)
	}

	if req.sel.wantsEvents() {
		if lc.Events, err = s.repos.Events.List(ctx, tc, req.residentID, req.sel.events, req.rng); err != nil {
			return nil, err
		}
	}

	if withShifts && s.shifts != nil {
		if lc.Shifts, err = s.shifts.Active(ctx, tc); err != nil {
			s.logger.Warn().Err(err).Str("tenant", tc.ID).Msg("shift templates unavailable, omitting shift breakdown")
			lc.Shifts = nil
		}
	}
	return lc, nil
}

// Items expands, reconciles and resolves every occurrence on days, returning
// them sorted by date, time and id.
func (lc *LookupCache) Items(days []time.Time, logger zerolog.Logger) []Item {
	loc := lc.Clock.Loc
	var occs []Occurrence
	occs = append(occs, MedicationOccurrences(lc.Schedules, lc.Admins, days, loc)...)
	occs = append(occs, EventOccurrences(lc.Events, dayRange(days))...)
	occs = append(occs, RecurringOccurrences(lc.Configs, days, loc, logger)...)

	var records []*care.DailyRecord
	if len(days) > 0 {
		dr := dayRange(days)
		for _, r := range lc.Records {
			if dr.Contains(r.Date) {
				records = append(records, r)
			}
		}
	}
	// The live agenda has no time grace: any record of the same resident,
	// type and day may close the nearest slot.
	matched := MatchRecurring(occs, records, reconcile.Unbounded)

	items := make([]Item, 0, len(occs))
	for _, o := range occs {
		res, ok := lc.Residents[o.ResidentID]
		if !ok {
			continue
		}
		items = append(items, buildItem(o, res, matched[o.ID()], lc.Clock))
	}
	SortItems(items)
	return items
}

func dayRange(days []time.Time) care.DateRange {
	if len(days) == 0 {
		return care.DateRange{}
	}
	return care.DateRange{Start: calendar.DateKey(days[0]), End: calendar.DateKey(days[len(days)-1])}
}

// SortItems orders items by scheduled date, then HH:mm time, then id.
// Date comes first so a multi-day range reads chronologically instead of
// interleaving days by time of day. Unscheduled items carry the 00:00
// sentinel and lead their day.
func SortItems(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.ScheduledDate != b.ScheduledDate {
			return a.ScheduledDate < b.ScheduledDate
		}
		if a.ScheduledTime != b.ScheduledTime {
			return a.ScheduledTime < b.ScheduledTime
		}
		return a.ID < b.ID
	})
}

func buildItem(o Occurrence, res *care.Resident, record *care.DailyRecord, clk Clock) Item {
	item := Item{
		ID:            o.ID(),
		Type:          o.Kind(),
		ResidentID:    o.ResidentID,
		ResidentName:  res.FullName,
		ScheduledDate: o.Date,
		ScheduledTime: o.Time,
		Unscheduled:   o.Unscheduled,
	}
	sourceID := o.SourceID

	switch p := o.Payload.(type) {
	case MedicationPayload:
		item.Category = string(KindMedication)
		item.Title = medicationTitle(p.Schedule)
		item.MedicationID = &sourceID
		item.Dosage = p.Schedule.Dosage
		item.Route = p.Schedule.Route
		item.Status = MedicationStatus(p, o.Date, clk)
		if a := p.Administration; a != nil {
			id := a.ID
			at := a.CreatedAt
			item.AdministrationID = &id
			item.CompletedBy = a.AdministeredBy
			if a.WasAdministered {
				item.CompletedAt = &at
			} else {
				item.NotAdministered = a.Reason
			}
		}
	case EventPayload:
		item.Category = string(p.Event.EventType)
		item.Title = p.Event.Title
		item.EventID = &sourceID
		item.Description = p.Event.Description
		item.Status = EventStatus(p.Event, clk)
		item.CompletedAt = p.Event.CompletedAt
	case RecurringPayload:
		item.Category = string(p.Config.RecordType)
		item.Title = RecordTitle(p.Config.RecordType, p.MealType)
		item.ConfigID = &sourceID
		item.RecordType = p.Config.RecordType
		item.MealType = p.MealType
		item.Status = ResolveStatus(record != nil, o.Date, clk.Today)
		if record != nil {
			id := record.ID
			at := record.CreatedAt
			by := record.RecordedBy
			item.RecordID = &id
			item.CompletedAt = &at
			item.CompletedBy = &by
		}
	}
	return item
}

func medicationTitle(m *care.MedicationSchedule) string {
	if m.Dosage != nil && *m.Dosage != "" {
		return m.Name + " " + *m.Dosage
	}
	return m.Name
}

var recordTitles = map[care.RecordType]string{
	care.RecordFeeding:     "Alimentação",
	care.RecordHydration:   "Hidratação",
	care.RecordHygiene:     "Higiene",
	care.RecordWeight:      "Peso",
	care.RecordMonitoring:  "Monitoramento",
	care.RecordElimination: "Eliminação",
	care.RecordBehavior:    "Comportamento",
	care.RecordSleep:       "Sono",
	care.RecordActivities:  "Atividades",
}

// RecordTitle is the display title of a recurring record slot.
func RecordTitle(rt care.RecordType, mealType string) string {
	title, ok := recordTitles[rt]
	if !ok {
		title = string(rt)
	}
	if mealType != "" {
		title += " - " + mealType
	}
	return title
}
