package agenda

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/careflow/careflow/internal/domain/care"
	"github.com/careflow/careflow/internal/platform/calendar"
)

var (
	ErrInvalidDate     = errors.New("invalid date, expected YYYY-MM-DD")
	ErrIncompleteRange = errors.New("startDate and endDate must be given together")
	ErrInvertedRange   = errors.New("endDate is before startDate")
	ErrRangeTooLarge   = errors.New("date range exceeds the allowed number of days")
	ErrInvalidFilter   = errors.New("unknown filter")
	ErrInvalidStatus   = errors.New("unknown status")
)

// Kind is the source an agenda item was generated from.
type Kind string

const (
	KindMedication      Kind = "MEDICATION"
	KindScheduledEvent  Kind = "SCHEDULED_EVENT"
	KindRecurringRecord Kind = "RECURRING_RECORD"
)

// Status is the derived state of an occurrence. It is computed on read and
// never written back.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusMissed    Status = "missed"
	StatusCancelled Status = "cancelled"
)

func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusCompleted, StatusMissed, StatusCancelled:
		return Status(s), nil
	}
	return "", ErrInvalidStatus
}

// Occurrence is one expected instance of an obligation on a calendar day.
// Payload carries the source-specific part.
type Occurrence struct {
	SourceID    uuid.UUID
	ResidentID  uuid.UUID
	Date        string
	Time        string
	Unscheduled bool
	Payload     Payload
}

// Payload is implemented only by MedicationPayload, EventPayload and
// RecurringPayload.
type Payload interface {
	kind() Kind
	subject() string
}

type MedicationPayload struct {
	Schedule *care.MedicationSchedule
	// Administration is the best administration logged for this slot, if any.
	Administration *care.MedicationAdministration
}

type EventPayload struct {
	Event *care.ScheduledEvent
}

type RecurringPayload struct {
	Config   *care.RecurrenceConfig
	MealType string
}

func (MedicationPayload) kind() Kind { return KindMedication }
func (EventPayload) kind() Kind      { return KindScheduledEvent }
func (RecurringPayload) kind() Kind  { return KindRecurringRecord }

func (p MedicationPayload) subject() string { return p.Schedule.MedicationID.String() }
func (p EventPayload) subject() string      { return string(p.Event.EventType) }
func (p RecurringPayload) subject() string  { return string(p.Config.RecordType) }

func (o Occurrence) Kind() Kind { return o.Payload.kind() }

// ID is the composite identifier sourceId-date-time. It is stable across
// requests but is not a storage key.
func (o Occurrence) ID() string {
	return o.SourceID.String() + "-" + o.Date + "-" + o.Time
}

// ExpectedKey groups occurrences and records that compete for each other:
// resident, record type or medication, and calendar day.
func (o Occurrence) ExpectedKey() string {
	return o.ResidentID.String() + "|" + o.Payload.subject() + "|" + o.Date
}

// Item is the agenda's output row.
type Item struct {
	ID            string     `json:"id"`
	Type          Kind       `json:"type"`
	Category      string     `json:"category"`
	ResidentID    uuid.UUID  `json:"resident_id"`
	ResidentName  string     `json:"resident_name"`
	Title         string     `json:"title"`
	ScheduledDate string     `json:"scheduled_date"`
	ScheduledTime string     `json:"scheduled_time"`
	Unscheduled   bool       `json:"unscheduled,omitempty"`
	Status        Status     `json:"status"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	CompletedBy   *string    `json:"completed_by,omitempty"`

	MedicationID     *uuid.UUID `json:"medication_id,omitempty"`
	Dosage           *string    `json:"dosage,omitempty"`
	Route            *string    `json:"route,omitempty"`
	AdministrationID *uuid.UUID `json:"administration_id,omitempty"`
	NotAdministered  *string    `json:"not_administered_reason,omitempty"`

	EventID     *uuid.UUID `json:"event_id,omitempty"`
	Description *string    `json:"description,omitempty"`

	ConfigID   *uuid.UUID      `json:"config_id,omitempty"`
	RecordType care.RecordType `json:"record_type,omitempty"`
	MealType   string          `json:"meal_type,omitempty"`
	RecordID   *uuid.UUID      `json:"record_id,omitempty"`
}

// Query selects agenda items. A full StartDate/EndDate range wins over Date,
// which wins over the tenant's today.
type Query struct {
	Date       string
	StartDate  string
	EndDate    string
	ResidentID *uuid.UUID
	// Filters are MEDICATION, event types or record types; empty means all.
	Filters []string
	Status  Status
}

// DaySummary is the reduced per-day payload of the calendar view.
type DaySummary struct {
	Date              string         `json:"date"`
	TotalItems        int            `json:"total_items"`
	StatusBreakdown   map[Status]int `json:"status_breakdown"`
	CategoryBreakdown map[string]int `json:"category_breakdown"`
	// ShiftBreakdown counts scheduled items inside each active shift window.
	ShiftBreakdown map[string]int `json:"shift_breakdown,omitempty"`
	HasMedications bool           `json:"has_medications"`
	HasEvents      bool           `json:"has_events"`
	HasRecurring   bool           `json:"has_recurring"`
	HasMissed      bool           `json:"has_missed"`
}

type Totals struct {
	TotalItems        int            `json:"total_items"`
	StatusBreakdown   map[Status]int `json:"status_breakdown"`
	CategoryBreakdown map[string]int `json:"category_breakdown"`
}

type CalendarSummary struct {
	StartDate string                 `json:"start_date"`
	EndDate   string                 `json:"end_date"`
	Timezone  string                 `json:"timezone"`
	Days      map[string]*DaySummary `json:"days"`
	Totals    Totals                 `json:"totals"`
}

// DailyTask is the simplified single-day shape kept for older clients.
type DailyTask struct {
	ID            string     `json:"id"`
	Type          Kind       `json:"type"`
	ResidentID    uuid.UUID  `json:"resident_id"`
	ResidentName  string     `json:"resident_name"`
	Category      string     `json:"category"`
	Title         string     `json:"title"`
	ScheduledTime string     `json:"scheduled_time"`
	Status        Status     `json:"status"`
	Completed     bool       `json:"completed"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	MealType      string     `json:"meal_type,omitempty"`
}

// Limits bound the ranges accepted at the boundary.
type Limits struct {
	AgendaMaxDays   int
	CalendarMaxDays int
}

func rangeDays(rng care.DateRange) []time.Time {
	start, err := calendar.ParseDate(rng.Start)
	if err != nil {
		return nil
	}
	end, err := calendar.ParseDate(rng.End)
	if err != nil {
		return nil
	}
	return calendar.DaysInRange(start, end)
}
