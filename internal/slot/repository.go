package slot

import (
	"context"

	"github.com/google/uuid"
)

// Repository stores slots. Claim and Release are the only writes to the available flag.
type Repository interface {
	// Create inserts s with available=true. A duplicate (doctor, date, time) is a conflict,
	// an unknown doctor is not found.
	Create(ctx context.Context, s Slot) (*Slot, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Slot, error)
	// ListAvailable returns available slots ordered by date then time, optionally for one doctor.
	ListAvailable(ctx context.Context, doctorID *uuid.UUID) ([]Slot, error)

	// Claim flips available from true to false as one conditional write. A slot that is
	// already taken fails with apperr.ErrSlotUnavailable.
	Claim(ctx context.Context, id uuid.UUID) (*Slot, error)
	Release(ctx context.Context, id uuid.UUID) (*Slot, error)
}
