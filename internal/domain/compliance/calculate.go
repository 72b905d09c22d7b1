package compliance

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/careflow/careflow/internal/domain/agenda"
	"github.com/careflow/careflow/internal/domain/care"
	"github.com/careflow/careflow/internal/platform/calendar"
)

// Input is everything one day's calculation reads.
type Input struct {
	Date      string
	Location  *time.Location
	Configs   []*care.RecurrenceConfig
	Records   []*care.DailyRecord
	Residents []*care.Resident
	// Window, when set, keeps only due items and records whose time falls
	// inside it. Unscheduled due items have no time and are dropped.
	Window *calendar.Window
}

// Calculator folds due items and logged records into per-type metrics.
type Calculator struct {
	GraceMinutes int
	Logger       zerolog.Logger
}

func NewCalculator(graceMinutes int, logger zerolog.Logger) *Calculator {
	return &Calculator{GraceMinutes: graceMinutes, Logger: logger}
}

// Calculate runs the compliance pass for in.Date. Only active residents
// count on either side.
func (c *Calculator) Calculate(in Input) Result {
	res := Result{Date: in.Date, Metrics: []Metric{}, Origins: []RecordOrigin{}}
	day, err := calendar.ParseDate(in.Date)
	if err != nil {
		return res
	}
	loc := in.Location
	if loc == nil {
		loc, _ = calendar.LoadLocation("")
	}

	names := make(map[uuid.UUID]string, len(in.Residents))
	for _, r := range in.Residents {
		if r.IsActive {
			names[r.ID] = r.FullName
		}
	}

	var configs []*care.RecurrenceConfig
	for _, cfg := range in.Configs {
		if _, ok := names[cfg.ResidentID]; ok {
			configs = append(configs, cfg)
		}
	}
	var due []agenda.Occurrence
	for _, o := range agenda.RecurringOccurrences(configs, []time.Time{day}, loc, c.Logger) {
		if in.Window != nil && (o.Unscheduled || !in.Window.Contains(o.Time)) {
			continue
		}
		due = append(due, o)
	}

	var records []*care.DailyRecord
	for _, r := range in.Records {
		if _, ok := names[r.ResidentID]; !ok || r.Date != in.Date {
			continue
		}
		if in.Window != nil && !in.Window.Contains(r.Time) {
			continue
		}
		records = append(records, r)
	}

	matched := agenda.MatchRecurring(due, records, c.GraceMinutes)
	closedBy := make(map[uuid.UUID]agenda.Occurrence, len(matched))
	for _, o := range due {
		if r, ok := matched[o.ID()]; ok {
			closedBy[r.ID] = o
		}
	}

	metrics := map[care.RecordType]*Metric{}
	metric := func(rt care.RecordType) *Metric {
		m, ok := metrics[rt]
		if !ok {
			m = &Metric{RecordType: rt}
			metrics[rt] = m
		}
		return m
	}
	for _, o := range due {
		m := metric(o.Payload.(agenda.RecurringPayload).Config.RecordType)
		m.Due++
		if _, ok := matched[o.ID()]; ok {
			m.Done++
		}
	}

	sortRecords(records)
	for _, r := range records {
		origin := RecordOrigin{
			RecordID:     r.ID,
			ResidentID:   r.ResidentID,
			ResidentName: names[r.ResidentID],
			RecordType:   r.Type,
			Date:         r.Date,
			Time:         r.Time,
			MealType:     r.MealType(),
			Origin:       OriginAdHoc,
			CreatedAt:    r.CreatedAt,
		}
		if o, ok := closedBy[r.ID]; ok {
			id := o.SourceID
			origin.Origin = OriginScheduled
			origin.ConfigID = &id
			if !o.Unscheduled {
				origin.DueTime = o.Time
			}
		} else {
			metric(r.Type).AdHoc++
		}
		res.Origins = append(res.Origins, origin)
	}

	res.Metrics = orderedMetrics(metrics)
	return res
}

func sortRecords(records []*care.DailyRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.Time != b.Time {
			return a.Time < b.Time
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID.String() < b.ID.String()
	})
}

// orderedMetrics lists metrics in display order, known types first.
func orderedMetrics(metrics map[care.RecordType]*Metric) []Metric {
	out := make([]Metric, 0, len(metrics))
	seen := map[care.RecordType]bool{}
	for _, rt := range care.RecordTypes {
		if m, ok := metrics[rt]; ok {
			m.finish()
			out = append(out, *m)
			seen[rt] = true
		}
	}
	var rest []care.RecordType
	for rt := range metrics {
		if !seen[rt] {
			rest = append(rest, rt)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i] < rest[j] })
	for _, rt := range rest {
		m := metrics[rt]
		m.finish()
		out = append(out, *m)
	}
	return out
}

// sumMetrics adds per-day metrics into range totals.
func sumMetrics(days []Result) []Metric {
	totals := map[care.RecordType]*Metric{}
	for _, d := range days {
		for _, m := range d.Metrics {
			t, ok := totals[m.RecordType]
			if !ok {
				t = &Metric{RecordType: m.RecordType}
				totals[m.RecordType] = t
			}
			t.Due += m.Due
			t.Done += m.Done
			t.AdHoc += m.AdHoc
		}
	}
	return orderedMetrics(totals)
}
