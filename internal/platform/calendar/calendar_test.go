package calendar

import (
	"errors"
	"testing"
	"time"
)

func intPtr(v int) *int { return &v }

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := ParseDate(s)
	if err != nil {
		t.Fatalf("ParseDate(%q): %v", s, err)
	}
	return d
}

func TestDaysInRange_Inclusive(t *testing.T) {
	days := DaysInRange(mustDate(t, "2026-02-01"), mustDate(t, "2026-02-04"))
	want := []string{"2026-02-01", "2026-02-02", "2026-02-03", "2026-02-04"}
	if len(days) != len(want) {
		t.Fatalf("expected %d days, got %d", len(want), len(days))
	}
	for i, d := range days {
		if DateKey(d) != want[i] {
			t.Errorf("day %d: expected %s, got %s", i, want[i], DateKey(d))
		}
		if d.Hour() != 12 {
			t.Errorf("day %d: expected noon, got hour %d", i, d.Hour())
		}
	}
}

func TestDaysInRange_SingleDay(t *testing.T) {
	days := DaysInRange(mustDate(t, "2026-02-01"), mustDate(t, "2026-02-01"))
	if len(days) != 1 {
		t.Fatalf("expected 1 day, got %d", len(days))
	}
}

func TestDaysInRange_Inverted(t *testing.T) {
	days := DaysInRange(mustDate(t, "2026-02-04"), mustDate(t, "2026-02-01"))
	if len(days) != 0 {
		t.Errorf("expected no days for inverted range, got %d", len(days))
	}
}

func TestDaysInRange_AcrossDSTTransition(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tz database unavailable: %v", err)
	}
	start := time.Date(2026, 3, 7, 23, 30, 0, 0, loc)
	end := time.Date(2026, 3, 9, 0, 15, 0, 0, loc)
	days := DaysInRange(start, end)
	want := []string{"2026-03-07", "2026-03-08", "2026-03-09"}
	if len(days) != len(want) {
		t.Fatalf("expected %d days, got %d", len(want), len(days))
	}
	for i, d := range days {
		if DateKey(d) != want[i] {
			t.Errorf("day %d: expected %s, got %s", i, want[i], DateKey(d))
		}
	}
}

func TestDaysInRange_Restartable(t *testing.T) {
	days := DaysInRange(mustDate(t, "2026-01-30"), mustDate(t, "2026-02-02"))
	first, second := 0, 0
	for range days {
		first++
	}
	for range days {
		second++
	}
	if first != 4 || second != 4 {
		t.Errorf("expected 4 days on both passes, got %d and %d", first, second)
	}
}

func TestIsDue_Daily(t *testing.T) {
	if !IsDue(Rule{Frequency: Daily}, mustDate(t, "2026-02-03")) {
		t.Error("daily rule should always be due")
	}
}

func TestIsDue_Weekly(t *testing.T) {
	// 2026-02-03 is a Tuesday.
	rule := Rule{Frequency: Weekly, DayOfWeek: intPtr(2)}
	if !IsDue(rule, mustDate(t, "2026-02-03")) {
		t.Error("expected weekly rule to be due on Tuesday")
	}
	if IsDue(rule, mustDate(t, "2026-02-04")) {
		t.Error("expected weekly rule not due on Wednesday")
	}
}

func TestIsDue_MonthlyClamping(t *testing.T) {
	rule := Rule{Frequency: Monthly, DayOfMonth: intPtr(31)}
	tests := []struct {
		date string
		due  bool
	}{
		{"2026-02-28", true},
		{"2026-02-27", false},
		{"2025-04-30", true},
		{"2025-04-29", false},
		{"2028-02-29", true},
		{"2028-02-28", false},
		{"2026-01-31", true},
		{"2026-01-30", false},
	}
	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			if got := IsDue(rule, mustDate(t, tt.date)); got != tt.due {
				t.Errorf("IsDue(day 31, %s) = %v, want %v", tt.date, got, tt.due)
			}
		})
	}
}

func TestIsDue_MonthlyExactDay(t *testing.T) {
	rule := Rule{Frequency: Monthly, DayOfMonth: intPtr(15)}
	if !IsDue(rule, mustDate(t, "2026-02-15")) {
		t.Error("expected monthly rule due on the 15th")
	}
	if IsDue(rule, mustDate(t, "2026-02-28")) {
		t.Error("monthly rule for the 15th must not fire on month end")
	}
}

func TestIsDue_MalformedRulesNeverDue(t *testing.T) {
	day := mustDate(t, "2026-02-03")
	rules := []Rule{
		{Frequency: Weekly},
		{Frequency: Monthly},
		{Frequency: Weekly, DayOfWeek: intPtr(7)},
		{Frequency: Monthly, DayOfMonth: intPtr(0)},
		{Frequency: "YEARLY"},
	}
	for _, r := range rules {
		if r.Valid() {
			t.Errorf("expected rule %+v to be invalid", r)
		}
		if IsDue(r, day) {
			t.Errorf("malformed rule %+v must not be due", r)
		}
	}
}

func TestTimeToMinutes(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"00:00", 0, true},
		{"08:30", 510, true},
		{"23:59", 1439, true},
		{"7:05", 425, true},
		{"14:00:00", 840, true},
		{"24:00", 0, false},
		{"12:60", 0, false},
		{"noon", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, err := TimeToMinutes(tt.in)
		if tt.ok && err != nil {
			t.Errorf("TimeToMinutes(%q) unexpected error: %v", tt.in, err)
			continue
		}
		if !tt.ok {
			if !errors.Is(err, ErrInvalidTime) {
				t.Errorf("TimeToMinutes(%q) expected ErrInvalidTime, got %v", tt.in, err)
			}
			continue
		}
		if got != tt.want {
			t.Errorf("TimeToMinutes(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeTime(t *testing.T) {
	got, err := NormalizeTime("7:05")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "07:05" {
		t.Errorf("expected 07:05, got %s", got)
	}
}

func TestWindow_CrossesMidnight(t *testing.T) {
	w := Window{Start: "22:00", End: "06:00", CrossesMidnight: true}
	for _, in := range []string{"23:30", "02:00", "22:00", "06:00"} {
		if !w.Contains(in) {
			t.Errorf("expected night window to contain %s", in)
		}
	}
	for _, out := range []string{"10:00", "21:59", "06:01"} {
		if w.Contains(out) {
			t.Errorf("expected night window to exclude %s", out)
		}
	}
}

func TestWindow_DayShift(t *testing.T) {
	w, err := NewWindow("07:00", "19:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.CrossesMidnight {
		t.Error("day shift must not cross midnight")
	}
	if !w.Contains("07:00") || !w.Contains("19:00") || !w.Contains("12:00") {
		t.Error("expected bounds and midday to be inside the day shift")
	}
	if w.Contains("23:30") || w.Contains("02:00") {
		t.Error("expected night hours to be outside the day shift")
	}
}

func TestNewWindow_DetectsMidnightCrossing(t *testing.T) {
	w, err := NewWindow("22:00", "06:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !w.CrossesMidnight {
		t.Error("expected 22:00-06:00 to cross midnight")
	}
	if _, err := NewWindow("bad", "06:00"); err == nil {
		t.Error("expected error for malformed start")
	}
}

func TestLocalToUTC(t *testing.T) {
	loc, ok := LoadLocation("America/Sao_Paulo")
	if !ok {
		t.Skip("tz database unavailable")
	}
	got, err := LocalToUTC("2026-02-03", "09:00", loc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2026, 2, 3, 12, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestLoadLocation_Fallback(t *testing.T) {
	loc, ok := LoadLocation("Not/AZone")
	if ok {
		t.Error("expected fallback flag for unknown zone")
	}
	if loc.String() != DefaultTimezone {
		t.Errorf("expected fallback %s, got %s", DefaultTimezone, loc)
	}
	if _, ok := LoadLocation(""); ok {
		t.Error("expected fallback flag for empty zone")
	}
}

func TestToday_UsesTenantCalendar(t *testing.T) {
	loc, _ := LoadLocation("America/Sao_Paulo")
	// 01:30 UTC on Feb 4 is still Feb 3 in Sao Paulo (UTC-3).
	now := time.Date(2026, 2, 4, 1, 30, 0, 0, time.UTC)
	if got := Today(loc, now); got != "2026-02-03" {
		t.Errorf("expected 2026-02-03, got %s", got)
	}
}

func TestDayCount(t *testing.T) {
	n, err := DayCount("2026-02-01", "2026-02-07")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 7 {
		t.Errorf("expected 7, got %d", n)
	}
	n, _ = DayCount("2026-02-07", "2026-02-01")
	if n >= 1 {
		t.Errorf("expected inverted range to count below 1, got %d", n)
	}
	if _, err := DayCount("2026-13-01", "2026-02-01"); !errors.Is(err, ErrInvalidDate) {
		t.Errorf("expected ErrInvalidDate, got %v", err)
	}
}
