package care

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/careflow/careflow/internal/platform/calendar"
	"github.com/careflow/careflow/internal/platform/db"
)

// Dates are read as to_char(.., 'YYYY-MM-DD') and times as 'HH24:MI' so the
// engine only ever compares calendar strings.

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func typeStrings[T ~string](types []T) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}

func collect[T any](rows pgx.Rows, scan func(pgx.Row) (*T, error)) ([]*T, error) {
	defer rows.Close()
	var items []*T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// NewRepositoriesPG wires every repository to the same querier.
func NewRepositoriesPG(q db.Querier) Repositories {
	return Repositories{
		Configs:         NewConfigRepoPG(q),
		Medications:     NewMedicationScheduleRepoPG(q),
		Administrations: NewAdministrationRepoPG(q),
		Records:         NewDailyRecordRepoPG(q),
		Events:          NewScheduledEventRepoPG(q),
		Residents:       NewResidentRepoPG(q),
		Settings:        NewSettingsRepoPG(q),
		Shifts:          NewShiftTemplateRepoPG(q),
	}
}

// =========== RecurrenceConfig Repository ===========

type configRepoPG struct{ q db.Querier }

func NewConfigRepoPG(q db.Querier) ConfigRepository { return &configRepoPG{q: q} }

func scanConfig(row pgx.Row) (*RecurrenceConfig, error) {
	var c RecurrenceConfig
	var freq string
	var rt string
	err := row.Scan(&c.ID, &c.ResidentID, &rt, &freq, &c.DayOfWeek, &c.DayOfMonth,
		&c.SuggestedTimes, &c.Metadata, &c.IsActive, &c.CreatedAt)
	c.RecordType = RecordType(rt)
	c.Frequency = calendar.Frequency(freq)
	return &c, err
}

func (r *configRepoPG) ListActive(ctx context.Context, tc db.TenantContext, residentID *uuid.UUID, types []RecordType) ([]*RecurrenceConfig, error) {
	rows, err := r.q.Query(ctx, fmt.Sprintf(`
		SELECT id, resident_id, record_type, frequency, day_of_week, day_of_month,
		       COALESCE(suggested_times, '{}'), metadata, is_active, created_at
		FROM %s
		WHERE is_active = TRUE
		  AND ($1::uuid IS NULL OR resident_id = $1)
		  AND (cardinality($2::text[]) = 0 OR record_type = ANY($2))
		ORDER BY created_at, id`, tc.Table("recurrence_config")),
		residentID, typeStrings(types))
	if err != nil {
		return nil, fmt.Errorf("list recurrence configs: %w", err)
	}
	return collect(rows, scanConfig)
}

// =========== MedicationSchedule Repository ===========

type medicationRepoPG struct{ q db.Querier }

func NewMedicationScheduleRepoPG(q db.Querier) MedicationScheduleRepository {
	return &medicationRepoPG{q: q}
}

func scanMedication(row pgx.Row) (*MedicationSchedule, error) {
	var m MedicationSchedule
	err := row.Scan(&m.MedicationID, &m.PrescriptionID, &m.ResidentID, &m.Name, &m.Dosage, &m.Route,
		&m.Instructions, &m.ScheduledTimes, &m.StartDate, &m.EndDate, &m.CreatedAt)
	return &m, err
}

func (r *medicationRepoPG) ListActive(ctx context.Context, tc db.TenantContext, residentID *uuid.UUID, rng DateRange) ([]*MedicationSchedule, error) {
	rows, err := r.q.Query(ctx, fmt.Sprintf(`
		SELECT m.id, p.id, p.resident_id, m.name, m.dosage, m.route, m.instructions,
		       COALESCE(m.scheduled_times, '{}'),
		       to_char(p.start_date, 'YYYY-MM-DD'), to_char(p.end_date, 'YYYY-MM-DD'),
		       m.created_at
		FROM %s m
		JOIN %s p ON p.id = m.prescription_id
		WHERE p.is_active = TRUE
		  AND m.deleted_at IS NULL
		  AND ($1::uuid IS NULL OR p.resident_id = $1)
		  AND p.start_date <= $3::date
		  AND (p.end_date IS NULL OR p.end_date >= $2::date)
		ORDER BY m.created_at, m.id`, tc.Table("medication"), tc.Table("prescription")),
		residentID, rng.Start, rng.End)
	if err != nil {
		return nil, fmt.Errorf("list medication schedules: %w", err)
	}
	return collect(rows, scanMedication)
}

// =========== MedicationAdministration Repository ===========

type administrationRepoPG struct{ q db.Querier }

func NewAdministrationRepoPG(q db.Querier) AdministrationRepository {
	return &administrationRepoPG{q: q}
}

func scanAdministration(row pgx.Row) (*MedicationAdministration, error) {
	var a MedicationAdministration
	err := row.Scan(&a.ID, &a.MedicationID, &a.ResidentID, &a.Date, &a.ScheduledTime, &a.ActualTime,
		&a.WasAdministered, &a.Reason, &a.AdministeredBy, &a.CreatedAt)
	return &a, err
}

func (r *administrationRepoPG) List(ctx context.Context, tc db.TenantContext, medicationIDs []uuid.UUID, rng DateRange) ([]*MedicationAdministration, error) {
	if len(medicationIDs) == 0 {
		return nil, nil
	}
	rows, err := r.q.Query(ctx, fmt.Sprintf(`
		SELECT id, medication_id, resident_id, to_char(date, 'YYYY-MM-DD'),
		       to_char(scheduled_time, 'HH24:MI'), to_char(actual_time, 'HH24:MI'),
		       was_administered, reason, administered_by, created_at
		FROM %s
		WHERE medication_id = ANY($1::uuid[])
		  AND date BETWEEN $2::date AND $3::date
		ORDER BY date, scheduled_time, created_at, id`, tc.Table("medication_administration")),
		uuidStrings(medicationIDs), rng.Start, rng.End)
	if err != nil {
		return nil, fmt.Errorf("list medication administrations: %w", err)
	}
	return collect(rows, scanAdministration)
}

// =========== DailyRecord Repository ===========

type dailyRecordRepoPG struct{ q db.Querier }

func NewDailyRecordRepoPG(q db.Querier) DailyRecordRepository { return &dailyRecordRepoPG{q: q} }

func scanDailyRecord(row pgx.Row) (*DailyRecord, error) {
	var d DailyRecord
	var rt string
	err := row.Scan(&d.ID, &d.ResidentID, &rt, &d.Date, &d.Time, &d.Data, &d.RecordedBy, &d.CreatedAt)
	d.Type = RecordType(rt)
	return &d, err
}

func (r *dailyRecordRepoPG) List(ctx context.Context, tc db.TenantContext, residentID *uuid.UUID, types []RecordType, rng DateRange) ([]*DailyRecord, error) {
	rows, err := r.q.Query(ctx, fmt.Sprintf(`
		SELECT id, resident_id, type, to_char(date, 'YYYY-MM-DD'), to_char(time, 'HH24:MI'),
		       data, recorded_by, created_at
		FROM %s
		WHERE deleted_at IS NULL
		  AND ($1::uuid IS NULL OR resident_id = $1)
		  AND (cardinality($2::text[]) = 0 OR type = ANY($2))
		  AND date BETWEEN $3::date AND $4::date
		ORDER BY date, time, created_at, id`, tc.Table("daily_record")),
		residentID, typeStrings(types), rng.Start, rng.End)
	if err != nil {
		return nil, fmt.Errorf("list daily records: %w", err)
	}
	return collect(rows, scanDailyRecord)
}

// =========== ScheduledEvent Repository ===========

type eventRepoPG struct{ q db.Querier }

func NewScheduledEventRepoPG(q db.Querier) ScheduledEventRepository { return &eventRepoPG{q: q} }

func scanEvent(row pgx.Row) (*ScheduledEvent, error) {
	var e ScheduledEvent
	var et, st string
	// scheduled_time is nullable; an untimed event scans as "".
	var at *string
	err := row.Scan(&e.ID, &e.ResidentID, &et, &e.Title, &e.Description, &e.ScheduledDate,
		&at, &st, &e.CompletedAt, &e.Notes, &e.CreatedAt)
	e.EventType = EventType(et)
	e.Status = EventStatus(st)
	if at != nil {
		e.ScheduledTime = *at
	}
	return &e, err
}

func (r *eventRepoPG) List(ctx context.Context, tc db.TenantContext, residentID *uuid.UUID, types []EventType, rng DateRange) ([]*ScheduledEvent, error) {
	rows, err := r.q.Query(ctx, fmt.Sprintf(`
		SELECT id, resident_id, event_type, title, description,
		       to_char(scheduled_date, 'YYYY-MM-DD'), to_char(scheduled_time, 'HH24:MI'),
		       status, completed_at, notes, created_at
		FROM %s
		WHERE deleted_at IS NULL
		  AND ($1::uuid IS NULL OR resident_id = $1)
		  AND (cardinality($2::text[]) = 0 OR event_type = ANY($2))
		  AND scheduled_date BETWEEN $3::date AND $4::date
		ORDER BY scheduled_date, scheduled_time NULLS FIRST, id`, tc.Table("scheduled_event")),
		residentID, typeStrings(types), rng.Start, rng.End)
	if err != nil {
		return nil, fmt.Errorf("list scheduled events: %w", err)
	}
	return collect(rows, scanEvent)
}

// =========== Resident Repository ===========

type residentRepoPG struct{ q db.Querier }

func NewResidentRepoPG(q db.Querier) ResidentRepository { return &residentRepoPG{q: q} }

func scanResident(row pgx.Row) (*Resident, error) {
	var res Resident
	err := row.Scan(&res.ID, &res.FullName, &res.Room, &res.IsActive)
	return &res, err
}

func (r *residentRepoPG) ListActive(ctx context.Context, tc db.TenantContext, residentID *uuid.UUID) ([]*Resident, error) {
	rows, err := r.q.Query(ctx, fmt.Sprintf(`
		SELECT id, full_name, room, is_active
		FROM %s
		WHERE is_active = TRUE
		  AND ($1::uuid IS NULL OR id = $1)
		ORDER BY full_name, id`, tc.Table("resident")),
		residentID)
	if err != nil {
		return nil, fmt.Errorf("list residents: %w", err)
	}
	return collect(rows, scanResident)
}

// =========== Settings Repository ===========

type settingsRepoPG struct{ q db.Querier }

func NewSettingsRepoPG(q db.Querier) SettingsRepository { return &settingsRepoPG{q: q} }

func (r *settingsRepoPG) Timezone(ctx context.Context, tc db.TenantContext) (string, error) {
	var tz *string
	err := r.q.QueryRow(ctx, fmt.Sprintf(`SELECT timezone FROM %s LIMIT 1`, tc.Table("tenant_settings"))).Scan(&tz)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read tenant timezone: %w", err)
	}
	if tz == nil {
		return "", nil
	}
	return *tz, nil
}

// =========== ShiftTemplate Repository ===========

type shiftRepoPG struct{ q db.Querier }

func NewShiftTemplateRepoPG(q db.Querier) ShiftTemplateRepository { return &shiftRepoPG{q: q} }

const shiftCols = `id, name, to_char(start_time, 'HH24:MI'), to_char(end_time, 'HH24:MI'), is_active`

func scanShift(row pgx.Row) (*ShiftTemplate, error) {
	var s ShiftTemplate
	err := row.Scan(&s.ID, &s.Name, &s.StartTime, &s.EndTime, &s.IsActive)
	return &s, err
}

func (r *shiftRepoPG) Get(ctx context.Context, tc db.TenantContext, id uuid.UUID) (*ShiftTemplate, error) {
	s, err := scanShift(r.q.QueryRow(ctx, fmt.Sprintf(`SELECT `+shiftCols+` FROM %s WHERE id = $1`, tc.Table("shift_template")), id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get shift template: %w", err)
	}
	return s, nil
}

func (r *shiftRepoPG) ListActive(ctx context.Context, tc db.TenantContext) ([]*ShiftTemplate, error) {
	rows, err := r.q.Query(ctx, fmt.Sprintf(`SELECT `+shiftCols+` FROM %s WHERE is_active = TRUE ORDER BY start_time, id`, tc.Table("shift_template")))
	if err != nil {
		return nil, fmt.Errorf("list shift templates: %w", err)
	}
	return collect(rows, scanShift)
}
