package directory

import (
	"time"

	"github.com/google/uuid"
)

type Doctor struct {
	ID            uuid.UUID
	CallerID      *string
	Name          string
	LicenseNumber string
	Specialty     string
	Email         *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Patient struct {
	ID        uuid.UUID
	CallerID  *string
	Name      string
	TaxID     string
	Email     *string
	Phone     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PlaceholderTaxID is the tax id given to a patient record created implicitly on first
// booking. Caller ids are unique, so the placeholder never collides with another
// auto-created record.
func PlaceholderTaxID(callerID string) string {
	return "temp_" + callerID
}
