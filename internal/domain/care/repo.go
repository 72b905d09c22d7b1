package care

import (
	"context"

	"github.com/google/uuid"

	"github.com/careflow/careflow/internal/platform/db"
)

// Every read takes the tenant explicitly; a nil residentID or an empty type
// list means "no filter".

type ConfigRepository interface {
	ListActive(ctx context.Context, tc db.TenantContext, residentID *uuid.UUID, types []RecordType) ([]*RecurrenceConfig, error)
}

type MedicationScheduleRepository interface {
	ListActive(ctx context.Context, tc db.TenantContext, residentID *uuid.UUID, rng DateRange) ([]*MedicationSchedule, error)
}

type AdministrationRepository interface {
	List(ctx context.Context, tc db.TenantContext, medicationIDs []uuid.UUID, rng DateRange) ([]*MedicationAdministration, error)
}

type DailyRecordRepository interface {
	List(ctx context.Context, tc db.TenantContext, residentID *uuid.UUID, types []RecordType, rng DateRange) ([]*DailyRecord, error)
}

type ScheduledEventRepository interface {
	List(ctx context.Context, tc db.TenantContext, residentID *uuid.UUID, types []EventType, rng DateRange) ([]*ScheduledEvent, error)
}

type ResidentRepository interface {
	ListActive(ctx context.Context, tc db.TenantContext, residentID *uuid.UUID) ([]*Resident, error)
}

type SettingsRepository interface {
	// Timezone returns the configured IANA zone, or "" when none is set.
	Timezone(ctx context.Context, tc db.TenantContext) (string, error)
}

type ShiftTemplateRepository interface {
	Get(ctx context.Context, tc db.TenantContext, id uuid.UUID) (*ShiftTemplate, error)
	ListActive(ctx context.Context, tc db.TenantContext) ([]*ShiftTemplate, error)
}

// Repositories bundles the read collaborators of the scheduling engine.
type Repositories struct {
	Configs         ConfigRepository
	Medications     MedicationScheduleRepository
	Administrations AdministrationRepository
	Records         DailyRecordRepository
	Events          ScheduledEventRepository
	Residents       ResidentRepository
	Settings        SettingsRepository
	Shifts          ShiftTemplateRepository
}
