package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hackgods/clinic-booking/internal/apperr"
	"github.com/hackgods/clinic-booking/internal/db"
)

const (
	doctorColumns  = `id, caller_id, name, license_number, specialty, email, created_at, updated_at`
	patientColumns = `id, caller_id, name, tax_id, email, phone, created_at, updated_at`

	constraintPatientEmail = "patients_email_key"
)

type PgRepository struct {
	q db.Querier
}

func NewPgRepository(q db.Querier) *PgRepository {
	return &PgRepository{q: q}
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(
		&d.ID,
		&d.CallerID,
		&d.Name,
		&d.LicenseNumber,
		&d.Specialty,
		&d.Email,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("doctor not found")
		}
		return nil, err
	}
	return &d, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(
		&p.ID,
		&p.CallerID,
		&p.Name,
		&p.TaxID,
		&p.Email,
		&p.Phone,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("patient not found")
		}
		return nil, err
	}
	return &p, nil
}

func (r *PgRepository) CreateDoctor(ctx context.Context, d Doctor) (*Doctor, error) {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	row := r.q.QueryRow(ctx, `
		INSERT INTO doctors (id, caller_id, name, license_number, specialty, email, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		RETURNING `+doctorColumns,
		d.ID, d.CallerID, d.Name, d.LicenseNumber, d.Specialty, d.Email)

	created, err := scanDoctor(row)
	if err != nil {
		if constraint, ok := db.UniqueViolation(err); ok {
			return nil, apperr.Wrap(apperr.KindConflict, err, "doctor already exists (%s)", constraint)
		}
		return nil, fmt.Errorf("insert doctor: %w", err)
	}
	return created, nil
}

func (r *PgRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.q.QueryRow(ctx, `SELECT `+doctorColumns+` FROM doctors WHERE id = $1`, id)
	return scanDoctor(row)
}

func (r *PgRepository) GetDoctorByCallerID(ctx context.Context, callerID string) (*Doctor, error) {
	row := r.q.QueryRow(ctx, `SELECT `+doctorColumns+` FROM doctors WHERE caller_id = $1`, callerID)
	return scanDoctor(row)
}

func (r *PgRepository) GetDoctorByLicense(ctx context.Context, license string) (*Doctor, error) {
	row := r.q.QueryRow(ctx, `SELECT `+doctorColumns+` FROM doctors WHERE license_number = $1`, license)
	return scanDoctor(row)
}

// LinkDoctor attaches a caller to an existing doctor record that has none yet.
func (r *PgRepository) LinkDoctor(ctx context.Context, id uuid.UUID, callerID string, name, specialty string, email *string) (*Doctor, error) {
	row := r.q.QueryRow(ctx, `
		UPDATE doctors
		SET caller_id = $2,
		    name = $3,
		    specialty = $4,
		    email = $5,
		    updated_at = now()
		WHERE id = $1
		  AND caller_id IS NULL
		RETURNING `+doctorColumns,
		id, callerID, name, specialty, email)

	d, err := scanDoctor(row)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, apperr.Conflict("license is already linked to another account")
		}
		if constraint, ok := db.UniqueViolation(err); ok {
			return nil, apperr.Wrap(apperr.KindConflict, err, "doctor already exists (%s)", constraint)
		}
		return nil, fmt.Errorf("link doctor: %w", err)
	}
	return d, nil
}

func (r *PgRepository) CreatePatient(ctx context.Context, p Patient) (*Patient, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	row := r.q.QueryRow(ctx, `
		INSERT INTO patients (id, caller_id, name, tax_id, email, phone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		RETURNING `+patientColumns,
		p.ID, p.CallerID, p.Name, p.TaxID, p.Email, p.Phone)

	created, err := scanPatient(row)
	if err != nil {
		if constraint, ok := db.UniqueViolation(err); ok {
			return nil, apperr.Wrap(apperr.KindConflict, err, "patient already exists (%s)", constraint)
		}
		return nil, fmt.Errorf("insert patient: %w", err)
	}
	return created, nil
}

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.q.QueryRow(ctx, `SELECT `+patientColumns+` FROM patients WHERE id = $1`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetPatientByCallerID(ctx context.Context, callerID string) (*Patient, error) {
	row := r.q.QueryRow(ctx, `SELECT `+patientColumns+` FROM patients WHERE caller_id = $1`, callerID)
	return scanPatient(row)
}

func (r *PgRepository) GetOrCreatePatient(ctx context.Context, callerID string, defaults Patient) (*Patient, bool, error) {
	p, err := r.insertPatientForCaller(ctx, callerID, defaults)
	if err != nil {
		// Another record already owns the e-mail; the placeholder record goes without it.
		if constraint, ok := db.UniqueViolation(err); ok && constraint == constraintPatientEmail {
			defaults.Email = nil
			p, err = r.insertPatientForCaller(ctx, callerID, defaults)
		}
	}
	if err == nil {
		return p, true, nil
	}
	if apperr.KindOf(err) != apperr.KindNotFound {
		return nil, false, fmt.Errorf("get or create patient: %w", err)
	}

	existing, err := r.GetPatientByCallerID(ctx, callerID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// insertPatientForCaller returns a not-found error when the caller already has a row.
func (r *PgRepository) insertPatientForCaller(ctx context.Context, callerID string, p Patient) (*Patient, error) {
	row := r.q.QueryRow(ctx, `
		INSERT INTO patients (id, caller_id, name, tax_id, email, phone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		ON CONFLICT (caller_id) DO NOTHING
		RETURNING `+patientColumns,
		uuid.New(), callerID, p.Name, p.TaxID, p.Email, p.Phone)
	return scanPatient(row)
}
