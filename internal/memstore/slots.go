package memstore

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-booking/internal/apperr"
	"github.com/hackgods/clinic-booking/internal/slot"
)

type slotRepo struct {
	scope
}

func (r slotRepo) Create(_ context.Context, sl slot.Slot) (*slot.Slot, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.doctors[sl.DoctorID]; !ok {
		return nil, apperr.NotFound("doctor not found")
	}
	for _, existing := range s.slots {
		if existing.DoctorID == sl.DoctorID && existing.Date.Equal(sl.Date) && existing.Time == sl.Time {
			return nil, apperr.Conflict("doctor already has a slot on %s at %s", slot.FormatDate(sl.Date), sl.Time)
		}
	}

	if sl.ID == uuid.Nil {
		sl.ID = uuid.New()
	}
	now := s.tick()
	sl.Available = true
	sl.CreatedAt, sl.UpdatedAt = now, now
	s.slots[sl.ID] = sl

	id := sl.ID
	r.record(func() { delete(s.slots, id) })
	return &sl, nil
}

func (r slotRepo) GetByID(_ context.Context, id uuid.UUID) (*slot.Slot, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	sl, ok := s.slots[id]
	if !ok {
		return nil, apperr.NotFound("slot not found")
	}
	return &sl, nil
}

func (r slotRepo) ListAvailable(_ context.Context, doctorID *uuid.UUID) ([]slot.Slot, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []slot.Slot
	for _, sl := range s.slots {
		if !sl.Available {
			continue
		}
		if doctorID != nil && sl.DoctorID != *doctorID {
			continue
		}
		result = append(result, sl)
	}
	sortSlots(result)
	return result, nil
}

func sortSlots(list []slot.Slot) {
	sort.Slice(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.Time != b.Time {
			return a.Time.Before(b.Time)
		}
		return a.ID.String() < b.ID.String()
	})
}

func (r slotRepo) Claim(_ context.Context, id uuid.UUID) (*slot.Slot, error) {
	return r.setAvailable(id, false)
}

func (r slotRepo) Release(_ context.Context, id uuid.UUID) (*slot.Slot, error) {
	return r.setAvailable(id, true)
}

func (r slotRepo) setAvailable(id uuid.UUID, available bool) (*slot.Slot, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	sl, ok := s.slots[id]
	if !ok {
		return nil, apperr.NotFound("slot not found")
	}
	if sl.Available == available {
		if !available {
			return nil, apperr.ErrSlotUnavailable
		}
		return &sl, nil
	}

	prev := sl
	sl.Available = available
	sl.UpdatedAt = s.tick()
	s.slots[id] = sl
	r.record(func() { s.slots[id] = prev })
	return &sl, nil
}
