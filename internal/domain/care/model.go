package care

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/careflow/careflow/internal/platform/calendar"
)

var ErrNotFound = errors.New("not found")

// RecordType is the kind of care a daily record documents.
type RecordType string

const (
	RecordFeeding     RecordType = "ALIMENTACAO"
	RecordHydration   RecordType = "HIDRATACAO"
	RecordHygiene     RecordType = "HIGIENE"
	RecordWeight      RecordType = "PESO"
	RecordMonitoring  RecordType = "MONITORAMENTO"
	RecordElimination RecordType = "ELIMINACAO"
	RecordBehavior    RecordType = "COMPORTAMENTO"
	RecordSleep       RecordType = "SONO"
	RecordActivities  RecordType = "ATIVIDADES"
)

// RecordTypes lists every known record type in display order.
var RecordTypes = []RecordType{
	RecordFeeding, RecordHydration, RecordHygiene, RecordWeight, RecordMonitoring,
	RecordElimination, RecordBehavior, RecordSleep, RecordActivities,
}

// ParseRecordType matches s case-insensitively against the known record types.
func ParseRecordType(s string) (RecordType, bool) {
	for _, rt := range RecordTypes {
		if strings.EqualFold(string(rt), strings.TrimSpace(s)) {
			return rt, true
		}
	}
	return "", false
}

// RecurrenceConfig maps to the recurrence_config table.
type RecurrenceConfig struct {
	ID             uuid.UUID              `db:"id" json:"id"`
	ResidentID     uuid.UUID              `db:"resident_id" json:"resident_id"`
	RecordType     RecordType             `db:"record_type" json:"record_type"`
	Frequency      calendar.Frequency     `db:"frequency" json:"frequency"`
	DayOfWeek      *int                   `db:"day_of_week" json:"day_of_week,omitempty"`
	DayOfMonth     *int                   `db:"day_of_month" json:"day_of_month,omitempty"`
	SuggestedTimes []string               `db:"suggested_times" json:"suggested_times"`
	Metadata       map[string]interface{} `db:"metadata" json:"metadata,omitempty"`
	IsActive       bool                   `db:"is_active" json:"is_active"`
	CreatedAt      time.Time              `db:"created_at" json:"created_at"`
}

func (c *RecurrenceConfig) Rule() calendar.Rule {
	return calendar.Rule{Frequency: c.Frequency, DayOfWeek: c.DayOfWeek, DayOfMonth: c.DayOfMonth}
}

// MealType returns metadata.mealType, or "" when absent.
func (c *RecurrenceConfig) MealType() string {
	return stringField(c.Metadata, "mealType")
}

// MedicationSchedule is an active prescription line joined with its medication.
type MedicationSchedule struct {
	MedicationID   uuid.UUID `db:"medication_id" json:"medication_id"`
	PrescriptionID uuid.UUID `db:"prescription_id" json:"prescription_id"`
	ResidentID     uuid.UUID `db:"resident_id" json:"resident_id"`
	Name           string    `db:"name" json:"name"`
	Dosage         *string   `db:"dosage" json:"dosage,omitempty"`
	Route          *string   `db:"route" json:"route,omitempty"`
	Instructions   *string   `db:"instructions" json:"instructions,omitempty"`
	ScheduledTimes []string  `db:"scheduled_times" json:"scheduled_times"`
	StartDate      string    `db:"start_date" json:"start_date"`
	EndDate        *string   `db:"end_date" json:"end_date,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Covers reports whether day lies in [StartDate, EndDate]; a nil EndDate is open-ended.
func (m *MedicationSchedule) Covers(day string) bool {
	if m.StartDate != "" && day < m.StartDate {
		return false
	}
	return m.EndDate == nil || day <= *m.EndDate
}

// MedicationAdministration maps to the medication_administration table.
type MedicationAdministration struct {
	ID              uuid.UUID `db:"id" json:"id"`
	MedicationID    uuid.UUID `db:"medication_id" json:"medication_id"`
	ResidentID      uuid.UUID `db:"resident_id" json:"resident_id"`
	Date            string    `db:"date" json:"date"`
	ScheduledTime   string    `db:"scheduled_time" json:"scheduled_time"`
	ActualTime      *string   `db:"actual_time" json:"actual_time,omitempty"`
	WasAdministered bool      `db:"was_administered" json:"was_administered"`
	Reason          *string   `db:"reason" json:"reason,omitempty"`
	AdministeredBy  *string   `db:"administered_by" json:"administered_by,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// DailyRecord maps to the daily_record table.
type DailyRecord struct {
	ID         uuid.UUID              `db:"id" json:"id"`
	ResidentID uuid.UUID              `db:"resident_id" json:"resident_id"`
	Type       RecordType             `db:"type" json:"type"`
	Date       string                 `db:"date" json:"date"`
	Time       string                 `db:"time" json:"time"`
	Data       map[string]interface{} `db:"data" json:"data,omitempty"`
	RecordedBy string                 `db:"recorded_by" json:"recorded_by"`
	CreatedAt  time.Time              `db:"created_at" json:"created_at"`
}

// MealType returns data.mealType, falling back to data.refeicao.
func (r *DailyRecord) MealType() string {
	if mt := stringField(r.Data, "mealType"); mt != "" {
		return mt
	}
	return stringField(r.Data, "refeicao")
}

type EventType string

const (
	EventVaccination  EventType = "VACCINATION"
	EventConsultation EventType = "CONSULTATION"
	EventExam         EventType = "EXAM"
	EventProcedure    EventType = "PROCEDURE"
	EventOther        EventType = "OTHER"
)

var EventTypes = []EventType{EventVaccination, EventConsultation, EventExam, EventProcedure, EventOther}

func ParseEventType(s string) (EventType, bool) {
	for _, et := range EventTypes {
		if strings.EqualFold(string(et), strings.TrimSpace(s)) {
			return et, true
		}
	}
	return "", false
}

type EventStatus string

const (
	EventScheduled EventStatus = "SCHEDULED"
	EventCompleted EventStatus = "COMPLETED"
	EventMissed    EventStatus = "MISSED"
	EventCancelled EventStatus = "CANCELLED"
)

// ScheduledEvent maps to the scheduled_event table.
type ScheduledEvent struct {
	ID            uuid.UUID   `db:"id" json:"id"`
	ResidentID    uuid.UUID   `db:"resident_id" json:"resident_id"`
	EventType     EventType   `db:"event_type" json:"event_type"`
	Title         string      `db:"title" json:"title"`
	Description   *string     `db:"description" json:"description,omitempty"`
	ScheduledDate string      `db:"scheduled_date" json:"scheduled_date"`
	ScheduledTime string      `db:"scheduled_time" json:"scheduled_time"`
	Status        EventStatus `db:"status" json:"status"`
	CompletedAt   *time.Time  `db:"completed_at" json:"completed_at,omitempty"`
	Notes         *string     `db:"notes" json:"notes,omitempty"`
	CreatedAt     time.Time   `db:"created_at" json:"created_at"`
}

// Resident maps to the resident table.
type Resident struct {
	ID       uuid.UUID `db:"id" json:"id"`
	FullName string    `db:"full_name" json:"full_name"`
	Room     *string   `db:"room" json:"room,omitempty"`
	IsActive bool      `db:"is_active" json:"is_active"`
}

// ShiftTemplate maps to the shift_template table.
type ShiftTemplate struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	StartTime string    `db:"start_time" json:"start_time"`
	EndTime   string    `db:"end_time" json:"end_time"`
	IsActive  bool      `db:"is_active" json:"is_active"`
}

func (s *ShiftTemplate) Window() (calendar.Window, error) {
	return calendar.NewWindow(s.StartTime, s.EndTime)
}

// DateRange is an inclusive range of YYYY-MM-DD days.
type DateRange struct {
	Start string
	End   string
}

func (r DateRange) Contains(day string) bool {
	return day >= r.Start && day <= r.End
}

func stringField(m map[string]interface{}, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}
