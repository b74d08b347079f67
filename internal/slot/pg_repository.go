package slot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hackgods/clinic-booking/internal/apperr"
	"github.com/hackgods/clinic-booking/internal/db"
)

const slotColumns = `id, doctor_id, slot_date, slot_time::text, available, created_at, updated_at`

type PgRepository struct {
	q db.Querier
}

func NewPgRepository(q db.Querier) *PgRepository {
	return &PgRepository{q: q}
}

func scanSlot(row pgx.Row) (*Slot, error) {
	var (
		s   Slot
		tod string
	)
	err := row.Scan(
		&s.ID,
		&s.DoctorID,
		&s.Date,
		&tod,
		&s.Available,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("slot not found")
		}
		return nil, err
	}

	s.Time, err = ParseTimeOfDay(tod)
	if err != nil {
		return nil, fmt.Errorf("scan slot time: %w", err)
	}
	s.Date = Date(s.Date)
	return &s, nil
}

func (r *PgRepository) Create(ctx context.Context, s Slot) (*Slot, error) {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	row := r.q.QueryRow(ctx, `
		INSERT INTO slots (id, doctor_id, slot_date, slot_time, available, created_at, updated_at)
		VALUES ($1, $2, $3, $4::time, true, now(), now())
		RETURNING `+slotColumns,
		s.ID, s.DoctorID, s.Date, s.Time.String())

	created, err := scanSlot(row)
	if err != nil {
		if _, ok := db.UniqueViolation(err); ok {
			return nil, apperr.Wrap(apperr.KindConflict, err,
				"doctor already has a slot on %s at %s", FormatDate(s.Date), s.Time)
		}
		if _, ok := db.ForeignKeyViolation(err); ok {
			return nil, apperr.NotFound("doctor not found")
		}
		return nil, fmt.Errorf("insert slot: %w", err)
	}
	return created, nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Slot, error) {
	row := r.q.QueryRow(ctx, `SELECT `+slotColumns+` FROM slots WHERE id = $1`, id)
	return scanSlot(row)
}

func (r *PgRepository) ListAvailable(ctx context.Context, doctorID *uuid.UUID) ([]Slot, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+slotColumns+`
		FROM slots
		WHERE available = true
		  AND ($1::uuid IS NULL OR doctor_id = $1)
		ORDER BY slot_date, slot_time, id
	`, doctorID)
	if err != nil {
		return nil, fmt.Errorf("list available slots: %w", err)
	}
	defer rows.Close()

	var result []Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) Claim(ctx context.Context, id uuid.UUID) (*Slot, error) {
	return r.setAvailable(ctx, id, false)
}

func (r *PgRepository) Release(ctx context.Context, id uuid.UUID) (*Slot, error) {
	return r.setAvailable(ctx, id, true)
}

// setAvailable only writes when the flag actually changes, so two concurrent claims
// cannot both see a row come back.
func (r *PgRepository) setAvailable(ctx context.Context, id uuid.UUID, available bool) (*Slot, error) {
	row := r.q.QueryRow(ctx, `
		UPDATE slots
		SET available = $2,
		    updated_at = $3
		WHERE id = $1
		  AND available = NOT $2
		RETURNING `+slotColumns,
		id, available, time.Now().UTC())

	s, err := scanSlot(row)
	if err == nil {
		return s, nil
	}
	if apperr.KindOf(err) != apperr.KindNotFound {
		return nil, fmt.Errorf("update slot availability: %w", err)
	}

	current, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !available {
		return nil, apperr.ErrSlotUnavailable
	}
	// already open
	return current, nil
}
