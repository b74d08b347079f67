package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hackgods/clinic-booking/internal/apperr"
	"github.com/hackgods/clinic-booking/internal/db"
	"github.com/hackgods/clinic-booking/internal/slot"
)

const (
	appointmentColumns = `a.id, a.slot_id, a.patient_id, a.status, a.visit_reason, a.clinical_notes, a.cancellation_reason, a.created_at, a.updated_at`

	// partial unique index on slot_id for appointments that still hold their slot
	constraintLiveSlot = "appointments_live_slot_idx"
)

type PgRepository struct {
	q db.Querier
}

func NewPgRepository(q db.Querier) *PgRepository {
	return &PgRepository{q: q}
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID,
		&a.SlotID,
		&a.PatientID,
		&a.Status,
		&a.VisitReason,
		&a.ClinicalNotes,
		&a.CancellationReason,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("appointment not found")
		}
		return nil, err
	}
	return &a, nil
}

func (r *PgRepository) Create(ctx context.Context, a Appointment) (*Appointment, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Status == "" {
		a.Status = StatusPending
	}

	row := r.q.QueryRow(ctx, `
		INSERT INTO appointments AS a (id, slot_id, patient_id, status, visit_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		RETURNING `+appointmentColumns,
		a.ID, a.SlotID, a.PatientID, a.Status, a.VisitReason)

	created, err := scanAppointment(row)
	if err != nil {
		if constraint, ok := db.UniqueViolation(err); ok && constraint == constraintLiveSlot {
			return nil, apperr.Wrap(apperr.KindSlotUnavailable, err, "%s", apperr.ErrSlotUnavailable.Message)
		}
		if _, ok := db.ForeignKeyViolation(err); ok {
			return nil, apperr.Wrap(apperr.KindNotFound, err, "patient or slot not found")
		}
		return nil, fmt.Errorf("insert appointment: %w", err)
	}
	return created, nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.q.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments a WHERE a.id = $1`, id)
	return scanAppointment(row)
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, reason *string) (*Appointment, error) {
	row := r.q.QueryRow(ctx, `
		UPDATE appointments AS a
		SET status = $2,
		    cancellation_reason = COALESCE($4, a.cancellation_reason),
		    updated_at = $5
		WHERE a.id = $1
		  AND a.status = $3
		RETURNING `+appointmentColumns,
		id, to, from, reason, time.Now().UTC())

	updated, err := scanAppointment(row)
	if err == nil {
		return updated, nil
	}
	if apperr.KindOf(err) != apperr.KindNotFound {
		return nil, fmt.Errorf("update appointment status: %w", err)
	}

	current, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return nil, apperr.New(apperr.KindInvalidTransition,
		"appointment is %s, cannot move from %s to %s", current.Status, from, to)
}

func (r *PgRepository) UpdateNotes(ctx context.Context, id uuid.UUID, notes string) (*Appointment, error) {
	row := r.q.QueryRow(ctx, `
		UPDATE appointments AS a
		SET clinical_notes = $2,
		    updated_at = $3
		WHERE a.id = $1
		RETURNING `+appointmentColumns,
		id, notes, time.Now().UTC())
	return scanAppointment(row)
}

func (r *PgRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]Appointment, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments a
		WHERE a.patient_id = $1
		ORDER BY a.created_at DESC, a.id
	`, patientID)
	if err != nil {
		return nil, fmt.Errorf("list appointments by patient: %w", err)
	}
	return collect(rows)
}

func (r *PgRepository) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]Appointment, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments a
		JOIN slots s ON s.id = a.slot_id
		WHERE s.doctor_id = $1
		ORDER BY s.slot_date, s.slot_time, a.created_at
	`, doctorID)
	if err != nil {
		return nil, fmt.Errorf("list appointments by doctor: %w", err)
	}
	return collect(rows)
}

func collect(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	result := []Appointment{}
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// PgUnitOfWork runs each unit of work in one postgres transaction.
type PgUnitOfWork struct {
	pool db.Pool
}

func NewPgUnitOfWork(pool db.Pool) *PgUnitOfWork {
	return &PgUnitOfWork{pool: pool}
}

func (u *PgUnitOfWork) Do(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return db.WithTx(ctx, u.pool, func(pgTx pgx.Tx) error {
		return fn(ctx, Tx{
			Slots:        slot.NewPgRepository(pgTx),
			Appointments: NewPgRepository(pgTx),
		})
	})
}
