// Package memstore is an in-process implementation of the slot, appointment and
// directory repositories. Units of work are serialized and rolled back through an undo
// journal, so it keeps the same atomicity guarantees as the postgres store within one
// process.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/directory"
	"github.com/hackgods/clinic-booking/internal/slot"
)

type Store struct {
	mu   sync.Mutex // guards the maps below
	txMu sync.Mutex // one unit of work at a time

	doctors  map[uuid.UUID]directory.Doctor
	patients map[uuid.UUID]directory.Patient
	slots    map[uuid.UUID]slot.Slot
	appts    map[uuid.UUID]appointment.Appointment
	events   []appointment.EventLog

	last                  time.Time
	failAppointmentCreate error
}

func New() *Store {
	return &Store{
		doctors:  map[uuid.UUID]directory.Doctor{},
		patients: map[uuid.UUID]directory.Patient{},
		slots:    map[uuid.UUID]slot.Slot{},
		appts:    map[uuid.UUID]appointment.Appointment{},
	}
}

// scope is a write scope. Writes made through a scope with a journal can be undone.
type scope struct {
	s    *Store
	undo *[]func()
}

func (sc scope) record(fn func()) {
	if sc.undo != nil {
		*sc.undo = append(*sc.undo, fn)
	}
}

func (s *Store) Slots() slot.Repository {
	return slotRepo{scope{s: s}}
}

func (s *Store) Appointments() appointment.Repository {
	return appointmentRepo{scope{s: s}}
}

func (s *Store) Directory() directory.Repository {
	return directoryRepo{s: s}
}

// Do runs fn with repositories whose writes are undone when fn returns an error.
func (s *Store) Do(ctx context.Context, fn func(ctx context.Context, tx appointment.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	var journal []func()
	sc := scope{s: s, undo: &journal}

	if err := fn(ctx, appointment.Tx{
		Slots:        slotRepo{sc},
		Appointments: appointmentRepo{sc},
	}); err != nil {
		s.mu.Lock()
		for i := len(journal) - 1; i >= 0; i-- {
			journal[i]()
		}
		s.mu.Unlock()
		return err
	}
	return nil
}

// FailNextAppointmentCreate makes the next appointment insert fail with err, after any
// slot claim in the same unit of work has already been written.
func (s *Store) FailNextAppointmentCreate(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAppointmentCreate = err
}

// Events returns a copy of the audit log.
func (s *Store) Events() []appointment.EventLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]appointment.EventLog, len(s.events))
	copy(out, s.events)
	return out
}

// tick returns a strictly increasing UTC timestamp so creation order survives sorting.
// Callers hold s.mu.
func (s *Store) tick() time.Time {
	now := time.Now().UTC()
	if !now.After(s.last) {
		now = s.last.Add(time.Microsecond)
	}
	s.last = now
	return now
}
