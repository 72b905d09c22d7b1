// Package caretest provides an in-memory implementation of the care
// repositories for tests of the packages built on them.
package caretest

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/careflow/careflow/internal/domain/care"
	"github.com/careflow/careflow/internal/platform/db"
)

// Store holds care rows in memory. Its filters mirror the SQL of the pgx
// repositories. Calls counts every repository call by name.
type Store struct {
	Configs         []*care.RecurrenceConfig
	Medications     []*care.MedicationSchedule
	Administrations []*care.MedicationAdministration
	Records         []*care.DailyRecord
	Events          []*care.ScheduledEvent
	Residents       []*care.Resident
	Shifts          []*care.ShiftTemplate
	TZ              string
	// Err, when set, is returned by every call.
	Err   error
	Calls map[string]int
}

func New() *Store { return &Store{Calls: map[string]int{}} }

// Repositories exposes the store through every repository interface.
func (s *Store) Repositories() care.Repositories {
	return care.Repositories{
		Configs:         configRepo{s},
		Medications:     medicationRepo{s},
		Administrations: administrationRepo{s},
		Records:         recordRepo{s},
		Events:          eventRepo{s},
		Residents:       residentRepo{s},
		Settings:        settingsRepo{s},
		Shifts:          shiftRepo{s},
	}
}

func (s *Store) call(name string) error {
	if s.Calls == nil {
		s.Calls = map[string]int{}
	}
	s.Calls[name]++
	return s.Err
}

func matchResident(filter *uuid.UUID, id uuid.UUID) bool {
	return filter == nil || *filter == id
}

func contains[T comparable](list []T, v T) bool {
	if len(list) == 0 {
		return true
	}
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

type configRepo struct{ s *Store }

func (r configRepo) ListActive(_ context.Context, _ db.TenantContext, residentID *uuid.UUID, types []care.RecordType) ([]*care.RecurrenceConfig, error) {
	if err := r.s.call("configs"); err != nil {
		return nil, err
	}
	var out []*care.RecurrenceConfig
	for _, c := range r.s.Configs {
		if c.IsActive && matchResident(residentID, c.ResidentID) && contains(types, c.RecordType) {
			out = append(out, c)
		}
	}
	return out, nil
}

type medicationRepo struct{ s *Store }

func (r medicationRepo) ListActive(_ context.Context, _ db.TenantContext, residentID *uuid.UUID, rng care.DateRange) ([]*care.MedicationSchedule, error) {
	if err := r.s.call("medications"); err != nil {
		return nil, err
	}
	var out []*care.MedicationSchedule
	for _, m := range r.s.Medications {
		if !matchResident(residentID, m.ResidentID) {
			continue
		}
		if m.StartDate > rng.End || (m.EndDate != nil && *m.EndDate < rng.Start) {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

type administrationRepo struct{ s *Store }

func (r administrationRepo) List(_ context.Context, _ db.TenantContext, medicationIDs []uuid.UUID, rng care.DateRange) ([]*care.MedicationAdministration, error) {
	if err := r.s.call("administrations"); err != nil {
		return nil, err
	}
	if len(medicationIDs) == 0 {
		return nil, nil
	}
	var out []*care.MedicationAdministration
	for _, a := range r.s.Administrations {
		if contains(medicationIDs, a.MedicationID) && rng.Contains(a.Date) {
			out = append(out, a)
		}
	}
	return out, nil
}

type recordRepo struct{ s *Store }

func (r recordRepo) List(_ context.Context, _ db.TenantContext, residentID *uuid.UUID, types []care.RecordType, rng care.DateRange) ([]*care.DailyRecord, error) {
	if err := r.s.call("records"); err != nil {
		return nil, err
	}
	var out []*care.DailyRecord
	for _, d := range r.s.Records {
		if matchResident(residentID, d.ResidentID) && contains(types, d.Type) && rng.Contains(d.Date) {
			out = append(out, d)
		}
	}
	return out, nil
}

type eventRepo struct{ s *Store }

func (r eventRepo) List(_ context.Context, _ db.TenantContext, residentID *uuid.UUID, types []care.EventType, rng care.DateRange) ([]*care.ScheduledEvent, error) {
	if err := r.s.call("events"); err != nil {
		return nil, err
	}
	var out []*care.ScheduledEvent
	for _, e := range r.s.Events {
		if matchResident(residentID, e.ResidentID) && contains(types, e.EventType) && rng.Contains(e.ScheduledDate) {
			out = append(out, e)
		}
	}
	return out, nil
}

type residentRepo struct{ s *Store }

func (r residentRepo) ListActive(_ context.Context, _ db.TenantContext, residentID *uuid.UUID) ([]*care.Resident, error) {
	if err := r.s.call("residents"); err != nil {
		return nil, err
	}
	var out []*care.Resident
	for _, res := range r.s.Residents {
		if res.IsActive && matchResident(residentID, res.ID) {
			out = append(out, res)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, nil
}

type settingsRepo struct{ s *Store }

func (r settingsRepo) Timezone(_ context.Context, _ db.TenantContext) (string, error) {
	if err := r.s.call("timezone"); err != nil {
		return "", err
	}
	return r.s.TZ, nil
}

type shiftRepo struct{ s *Store }

func (r shiftRepo) Get(_ context.Context, _ db.TenantContext, id uuid.UUID) (*care.ShiftTemplate, error) {
	if err := r.s.call("shift"); err != nil {
		return nil, err
	}
	for _, t := range r.s.Shifts {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, care.ErrNotFound
}

func (r shiftRepo) ListActive(_ context.Context, _ db.TenantContext) ([]*care.ShiftTemplate, error) {
	if err := r.s.call("shifts"); err != nil {
		return nil, err
	}
	var out []*care.ShiftTemplate
	for _, t := range r.s.Shifts {
		if t.IsActive {
			out = append(out, t)
		}
	}
	return out, nil
}
