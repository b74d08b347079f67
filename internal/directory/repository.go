package directory

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the doctor/patient record store.
type Repository interface {
	CreateDoctor(ctx context.Context, d Doctor) (*Doctor, error)
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetDoctorByCallerID(ctx context.Context, callerID string) (*Doctor, error)
	GetDoctorByLicense(ctx context.Context, license string) (*Doctor, error)
	LinkDoctor(ctx context.Context, id uuid.UUID, callerID string, name, specialty string, email *string) (*Doctor, error)

	CreatePatient(ctx context.Context, p Patient) (*Patient, error)
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetPatientByCallerID(ctx context.Context, callerID string) (*Patient, error)
	// GetOrCreatePatient returns the patient linked to callerID, inserting defaults
	// when none exists. The bool reports whether a row was created.
	GetOrCreatePatient(ctx context.Context, callerID string, defaults Patient) (*Patient, bool, error)
}
