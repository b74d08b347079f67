package memstore

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/apperr"
	"github.com/hackgods/clinic-booking/internal/slot"
)

type appointmentRepo struct {
	scope
}

func (r appointmentRepo) Create(_ context.Context, a appointment.Appointment) (*appointment.Appointment, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failAppointmentCreate; err != nil {
		s.failAppointmentCreate = nil
		return nil, err
	}
	if _, ok := s.patients[a.PatientID]; !ok {
		return nil, apperr.NotFound("patient or slot not found")
	}
	if a.SlotID != nil {
		if _, ok := s.slots[*a.SlotID]; !ok {
			return nil, apperr.NotFound("patient or slot not found")
		}
		for _, existing := range s.appts {
			if existing.SlotID != nil && *existing.SlotID == *a.SlotID && existing.Status.HoldsSlot() {
				return nil, apperr.ErrSlotUnavailable
			}
		}
	}

	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Status == "" {
		a.Status = appointment.StatusPending
	}
	now := s.tick()
	a.CreatedAt, a.UpdatedAt = now, now
	s.appts[a.ID] = a

	id := a.ID
	r.record(func() { delete(s.appts, id) })
	return &a, nil
}

func (r appointmentRepo) GetByID(_ context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.appts[id]
	if !ok {
		return nil, apperr.NotFound("appointment not found")
	}
	return &a, nil
}

func (r appointmentRepo) UpdateStatus(_ context.Context, id uuid.UUID, from, to appointment.Status, reason *string) (*appointment.Appointment, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.appts[id]
	if !ok {
		return nil, apperr.NotFound("appointment not found")
	}
	if a.Status != from {
		return nil, apperr.New(apperr.KindInvalidTransition,
			"appointment is %s, cannot move from %s to %s", a.Status, from, to)
	}

	prevStatus, prevReason, prevUpdated := a.Status, a.CancellationReason, a.UpdatedAt
	a.Status = to
	if reason != nil {
		v := *reason
		a.CancellationReason = &v
	}
	a.UpdatedAt = s.tick()
	s.appts[id] = a

	r.record(func() {
		cur := s.appts[id]
		cur.Status, cur.CancellationReason, cur.UpdatedAt = prevStatus, prevReason, prevUpdated
		s.appts[id] = cur
	})
	return &a, nil
}

func (r appointmentRepo) UpdateNotes(_ context.Context, id uuid.UUID, notes string) (*appointment.Appointment, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.appts[id]
	if !ok {
		return nil, apperr.NotFound("appointment not found")
	}
	prevNotes, prevUpdated := a.ClinicalNotes, a.UpdatedAt
	a.ClinicalNotes = &notes
	a.UpdatedAt = s.tick()
	s.appts[id] = a

	r.record(func() {
		cur := s.appts[id]
		cur.ClinicalNotes, cur.UpdatedAt = prevNotes, prevUpdated
		s.appts[id] = cur
	})
	return &a, nil
}

func (r appointmentRepo) ListByPatient(_ context.Context, patientID uuid.UUID) ([]appointment.Appointment, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	result := []appointment.Appointment{}
	for _, a := range s.appts {
		if a.PatientID == patientID {
			result = append(result, a)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID.String() < result[j].ID.String()
	})
	return result, nil
}

func (r appointmentRepo) ListByDoctor(_ context.Context, doctorID uuid.UUID) ([]appointment.Appointment, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	type entry struct {
		a    appointment.Appointment
		slot slot.Slot
	}
	var entries []entry
	for _, a := range s.appts {
		if a.SlotID == nil {
			continue
		}
		sl, ok := s.slots[*a.SlotID]
		if !ok || sl.DoctorID != doctorID {
			continue
		}
		entries = append(entries, entry{a: a, slot: sl})
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.slot.Date.Equal(b.slot.Date) {
			return a.slot.Date.Before(b.slot.Date)
		}
		if a.slot.Time != b.slot.Time {
			return a.slot.Time.Before(b.slot.Time)
		}
		return a.a.CreatedAt.Before(b.a.CreatedAt)
	})

	result := make([]appointment.Appointment, 0, len(entries))
	for _, e := range entries {
		result = append(result, e.a)
	}
	return result, nil
}

func (r appointmentRepo) InsertEvent(_ context.Context, ev appointment.EventLog) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	ev.ID = int64(len(s.events) + 1)
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = s.tick()
	}
	s.events = append(s.events, ev)

	r.record(func() { s.events = s.events[:len(s.events)-1] })
	return nil
}
