package appointment

import (
	"context"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-booking/internal/slot"
)

// Repository contains all appointment storage used by the service.
type Repository interface {
	// Create inserts a new appointment. A second live appointment on the same slot fails
	// with apperr.ErrSlotUnavailable.
	Create(ctx context.Context, a Appointment) (*Appointment, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// UpdateStatus writes status and reason only if the row is still in from.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, reason *string) (*Appointment, error)
	UpdateNotes(ctx context.Context, id uuid.UUID, notes string) (*Appointment, error)

	// ListByPatient is newest first.
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]Appointment, error)
	// ListByDoctor returns appointments on the doctor's slots ordered by slot date then time.
	ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]Appointment, error)

	InsertEvent(ctx context.Context, ev EventLog) error
}

// Tx is the set of repositories bound to one unit of work.
type Tx struct {
	Slots        slot.Repository
	Appointments Repository
}

// UnitOfWork runs fn atomically: either every write fn made is kept or none is.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
