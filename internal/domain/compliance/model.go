package compliance

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/careflow/careflow/internal/domain/care"
)

var (
	ErrInvalidDate     = errors.New("invalid date, expected YYYY-MM-DD")
	ErrIncompleteRange = errors.New("startDate and endDate must be given together")
	ErrInvertedRange   = errors.New("endDate is before startDate")
	ErrRangeTooLarge   = errors.New("report range exceeds the allowed number of days")
	ErrInvalidFormat   = errors.New("unsupported report format")
)

// DefaultGraceMinutes is how far a record may drift from its due time and
// still count as done.
const DefaultGraceMinutes = 60

// Origin tells whether a logged record answered a due item.
type Origin string

const (
	OriginScheduled Origin = "SCHEDULED"
	OriginAdHoc     Origin = "AD_HOC"
)

// Metric is the compliance of one record type over one day (or a range, for
// report totals). Compliance is null when nothing was due.
type Metric struct {
	RecordType care.RecordType `json:"record_type"`
	Due        int             `json:"due"`
	Done       int             `json:"done"`
	AdHoc      int             `json:"ad_hoc"`
	Overdue    int             `json:"overdue"`
	Compliance *int            `json:"compliance"`
}

func (m *Metric) finish() {
	m.Overdue = m.Due - m.Done
	if m.Overdue < 0 {
		m.Overdue = 0
	}
	m.Compliance = Percentage(m.Done, m.Due)
}

var hundred = decimal.NewFromInt(100)

// Percentage returns round(done/due*100) with halves rounded away from zero,
// or nil when due is zero.
func Percentage(done, due int) *int {
	if due <= 0 {
		return nil
	}
	pct := decimal.NewFromInt(int64(done)).Mul(hundred).Div(decimal.NewFromInt(int64(due))).Round(0)
	v := int(pct.IntPart())
	return &v
}

// RecordOrigin is the classification given to one daily record.
type RecordOrigin struct {
	RecordID     uuid.UUID       `json:"record_id"`
	ResidentID   uuid.UUID       `json:"resident_id"`
	ResidentName string          `json:"resident_name"`
	RecordType   care.RecordType `json:"record_type"`
	Date         string          `json:"date"`
	Time         string          `json:"time"`
	MealType     string          `json:"meal_type,omitempty"`
	Origin       Origin          `json:"origin"`
	// ConfigID and DueTime identify the due item a SCHEDULED record closed.
	ConfigID  *uuid.UUID `json:"config_id,omitempty"`
	DueTime   string     `json:"due_time,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Result is the outcome of one day's calculation.
type Result struct {
	Date    string         `json:"date"`
	Metrics []Metric       `json:"metrics"`
	Origins []RecordOrigin `json:"origins"`
}

// Report spans up to a few days and repeats the daily calculation per day.
type Report struct {
	StartDate string   `json:"start_date"`
	EndDate   string   `json:"end_date"`
	Timezone  string   `json:"timezone"`
	Shift     *Shift   `json:"shift,omitempty"`
	Days      []Result `json:"days"`
	Totals    []Metric `json:"totals"`
}

// Shift describes the window a report was restricted to.
type Shift struct {
	ID        uuid.UUID `json:"id"`
	StartTime string    `json:"start_time"`
	EndTime   string    `json:"end_time"`
}
