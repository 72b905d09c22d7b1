package agenda

import (
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/careflow/careflow/internal/domain/care"
	"github.com/careflow/careflow/internal/platform/calendar"
)

func intPtr(v int) *int { return &v }

func days(t *testing.T, start, end string) []time.Time {
	t.Helper()
	s, err := calendar.ParseDate(start)
	if err != nil {
		t.Fatal(err)
	}
	e, err := calendar.ParseDate(end)
	if err != nil {
		t.Fatal(err)
	}
	return calendar.DaysInRange(s, e)
}

func TestSlotTimes(t *testing.T) {
	got := slotTimes([]string{"14:00", "8:00", "08:00", "nope", "06:30:00"})
	want := []string{"06:30", "08:00", "14:00"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestRecurringOccurrences_WeeklyAndMonthly(t *testing.T) {
	resident := uuid.New()
	weekly := &care.RecurrenceConfig{
		ID: uuid.New(), ResidentID: resident, RecordType: care.RecordWeight,
		Frequency: calendar.Weekly, DayOfWeek: intPtr(int(time.Monday)),
		SuggestedTimes: []string{"09:00"}, IsActive: true,
	}
	monthly := &care.RecurrenceConfig{
		ID: uuid.New(), ResidentID: resident, RecordType: care.RecordMonitoring,
		Frequency: calendar.Monthly, DayOfMonth: intPtr(31), IsActive: true,
	}

	occs := RecurringOccurrences([]*care.RecurrenceConfig{weekly, monthly}, days(t, "2026-02-01", "2026-03-02"), saoPaulo, zerolog.Nop())

	var mondays, monthEnds []string
	for _, o := range occs {
		switch o.SourceID {
		case weekly.ID:
			mondays = append(mondays, o.Date)
		case monthly.ID:
			monthEnds = append(monthEnds, o.Date)
			if !o.Unscheduled || o.Time != calendar.UnscheduledTime {
				t.Errorf("expected unscheduled monthly slot, got %+v", o)
			}
		}
	}
	wantMondays := []string{"2026-02-02", "2026-02-09", "2026-02-16", "2026-02-23", "2026-03-02"}
	if len(mondays) != len(wantMondays) {
		t.Fatalf("expected mondays %v, got %v", wantMondays, mondays)
	}
	// Day 31 clamps to the last day of February.
	if len(monthEnds) != 1 || monthEnds[0] != "2026-02-28" {
		t.Errorf("expected a single 2026-02-28 slot, got %v", monthEnds)
	}
}

func TestRecurringOccurrences_SkipsInactiveAndMalformed(t *testing.T) {
	resident := uuid.New()
	configs := []*care.RecurrenceConfig{
		{ID: uuid.New(), ResidentID: resident, RecordType: care.RecordSleep, Frequency: calendar.Daily, IsActive: false},
		{ID: uuid.New(), ResidentID: resident, RecordType: care.RecordSleep, Frequency: calendar.Weekly, IsActive: true},
		{ID: uuid.New(), ResidentID: resident, RecordType: care.RecordSleep, Frequency: "HOURLY", IsActive: true},
	}
	if occs := RecurringOccurrences(configs, days(t, "2026-02-01", "2026-02-07"), saoPaulo, zerolog.Nop()); len(occs) != 0 {
		t.Errorf("expected no occurrences, got %d", len(occs))
	}
}

func TestRecurringOccurrences_CreationDayIsTenantLocal(t *testing.T) {
	// 01:00 UTC on 02-04 is 22:00 on 02-03 in São Paulo.
	cfg := &care.RecurrenceConfig{
		ID: uuid.New(), ResidentID: uuid.New(), RecordType: care.RecordHydration,
		Frequency: calendar.Daily, SuggestedTimes: []string{"08:00"}, IsActive: true,
		CreatedAt: time.Date(2026, 2, 4, 1, 0, 0, 0, time.UTC),
	}
	occs := RecurringOccurrences([]*care.RecurrenceConfig{cfg}, days(t, "2026-02-02", "2026-02-04"), saoPaulo, zerolog.Nop())
	if len(occs) != 2 || occs[0].Date != "2026-02-03" {
		t.Errorf("expected occurrences from 2026-02-03, got %+v", occs)
	}
}

func TestMedicationOccurrences_BoundedByPrescription(t *testing.T) {
	end := "2026-02-05"
	med := &care.MedicationSchedule{
		MedicationID: uuid.New(), ResidentID: uuid.New(), Name: "Amoxicilina",
		ScheduledTimes: []string{"08:00", "20:00"}, StartDate: "2026-02-04", EndDate: &end,
	}
	occs := MedicationOccurrences([]*care.MedicationSchedule{med}, nil, days(t, "2026-02-01", "2026-02-10"), saoPaulo)
	if len(occs) != 4 {
		t.Fatalf("expected 4 occurrences over 2 days, got %d", len(occs))
	}
	if occs[0].Date != "2026-02-04" || occs[3].Date != "2026-02-05" {
		t.Errorf("unexpected bounds: %s..%s", occs[0].Date, occs[3].Date)
	}
}

func TestMedicationOccurrences_NoneBeforeCreationDay(t *testing.T) {
	// Prescribed from 01-01 but only entered on 02-03 at 10:00 local time.
	med := &care.MedicationSchedule{
		MedicationID: uuid.New(), ResidentID: uuid.New(), Name: "Losartana",
		ScheduledTimes: []string{"08:00"}, StartDate: "2026-01-01",
		CreatedAt: time.Date(2026, 2, 3, 10, 0, 0, 0, saoPaulo),
	}
	occs := MedicationOccurrences([]*care.MedicationSchedule{med}, nil, days(t, "2026-02-01", "2026-02-04"), saoPaulo)

	var got []string
	for _, o := range occs {
		got = append(got, o.Date+" "+o.Time)
	}
	want := []string{"2026-02-03 08:00", "2026-02-04 08:00"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestIndexAdministrations_PrefersAdministeredThenEarliest(t *testing.T) {
	medID := uuid.New()
	base := time.Date(2026, 2, 4, 11, 0, 0, 0, time.UTC)
	refused := &care.MedicationAdministration{ID: uuid.New(), MedicationID: medID, Date: "2026-02-04", ScheduledTime: "08:00:00", CreatedAt: base}
	late := &care.MedicationAdministration{ID: uuid.New(), MedicationID: medID, Date: "2026-02-04", ScheduledTime: "08:00", WasAdministered: true, CreatedAt: base.Add(time.Hour)}
	early := &care.MedicationAdministration{ID: uuid.New(), MedicationID: medID, Date: "2026-02-04", ScheduledTime: "08:00", WasAdministered: true, CreatedAt: base.Add(time.Minute)}

	idx := IndexAdministrations([]*care.MedicationAdministration{refused, late, early})
	got := idx[administrationKey(medID, "2026-02-04", "08:00")]
	if got != early {
		t.Errorf("expected earliest administered dose, got %+v", got)
	}
}

func TestEventOccurrences_UnparseableTimeIsUnscheduled(t *testing.T) {
	e := &care.ScheduledEvent{ID: uuid.New(), ResidentID: uuid.New(), EventType: care.EventOther, ScheduledDate: "2026-02-04", ScheduledTime: ""}
	out := &care.ScheduledEvent{ID: uuid.New(), ResidentID: uuid.New(), EventType: care.EventOther, ScheduledDate: "2026-02-09", ScheduledTime: "10:00"}

	occs := EventOccurrences([]*care.ScheduledEvent{e, out}, care.DateRange{Start: "2026-02-01", End: "2026-02-07"})
	if len(occs) != 1 {
		t.Fatalf("expected 1 occurrence in range, got %d", len(occs))
	}
	if !occs[0].Unscheduled || occs[0].Time != calendar.UnscheduledTime {
		t.Errorf("expected unscheduled occurrence, got %+v", occs[0])
	}
}

func TestResolveStatus(t *testing.T) {
	tests := []struct {
		matched bool
		day     string
		want    Status
	}{
		{true, "2026-02-01", StatusCompleted},
		{false, "2026-02-03", StatusMissed},
		{false, "2026-02-04", StatusPending},
		{false, "2026-02-05", StatusPending},
	}
	for _, tt := range tests {
		if got := ResolveStatus(tt.matched, tt.day, "2026-02-04"); got != tt.want {
			t.Errorf("ResolveStatus(%v, %s) = %s, want %s", tt.matched, tt.day, got, tt.want)
		}
	}
}

func TestSortItems_DateBeforeTime(t *testing.T) {
	items := []Item{
		{ID: "d", ScheduledDate: "2026-02-04", ScheduledTime: "07:00"},
		{ID: "c", ScheduledDate: "2026-02-03", ScheduledTime: "21:00"},
		{ID: "b", ScheduledDate: "2026-02-03", ScheduledTime: calendar.UnscheduledTime, Unscheduled: true},
		{ID: "a", ScheduledDate: "2026-02-03", ScheduledTime: "21:00"},
	}
	SortItems(items)

	var got []string
	for _, it := range items {
		got = append(got, it.ID)
	}
	want := []string{"b", "a", "c", "d"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestParseFilters(t *testing.T) {
	sel, err := parseFilters([]string{"medication", " HIGIENE ", "exam", "HIGIENE"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !sel.medications || len(sel.records) != 1 || len(sel.events) != 1 {
		t.Errorf("unexpected selection: %+v", sel)
	}

	all, err := parseFilters([]string{"", " "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !all.medications || len(all.records) != len(care.RecordTypes) || len(all.events) != len(care.EventTypes) {
		t.Errorf("expected blank filters to select everything, got %+v", all)
	}
}
