package slot

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-booking/internal/apperr"
)

var slotCols = []string{"id", "doctor_id", "slot_date", "slot_time", "available", "created_at", "updated_at"}

func TestPgCreateSlot(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id, doctorID := uuid.New(), uuid.New()
	date := time.Date(2030, 1, 2, 0, 0, 0, 0, time.UTC)
	now := time.Now().UTC()

	mock.ExpectQuery("INSERT INTO slots").
		WithArgs(id, doctorID, date, "09:00").
		WillReturnRows(pgxmock.NewRows(slotCols).AddRow(id, doctorID, date, "09:00:00", true, now, now))

	s, err := NewPgRepository(mock).Create(context.Background(), Slot{ID: id, DoctorID: doctorID, Date: date, Time: MustTimeOfDay("09:00")})
	require.NoError(t, err)
	assert.Equal(t, MustTimeOfDay("09:00"), s.Time)
	assert.True(t, s.Available)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgCreateSlotDuplicateIsConflict(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("INSERT INTO slots").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "slots_doctor_id_slot_date_slot_time_key"})

	_, err = NewPgRepository(mock).Create(context.Background(), Slot{
		DoctorID: uuid.New(),
		Date:     time.Date(2030, 1, 2, 0, 0, 0, 0, time.UTC),
		Time:     MustTimeOfDay("09:00"),
	})
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestPgCreateSlotUnknownDoctor(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("INSERT INTO slots").
		WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: "slots_doctor_id_fkey"})

	_, err = NewPgRepository(mock).Create(context.Background(), Slot{
		DoctorID: uuid.New(),
		Date:     time.Date(2030, 1, 2, 0, 0, 0, 0, time.UTC),
		Time:     MustTimeOfDay("09:00"),
	})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestPgClaimAlreadyTaken(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id, doctorID := uuid.New(), uuid.New()
	date := time.Date(2030, 1, 2, 0, 0, 0, 0, time.UTC)
	now := time.Now().UTC()

	mock.ExpectQuery("UPDATE slots").
		WithArgs(id, false, pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("SELECT (.+) FROM slots WHERE id").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(slotCols).AddRow(id, doctorID, date, "09:00:00", false, now, now))

	_, err = NewPgRepository(mock).Claim(context.Background(), id)
	assert.ErrorIs(t, err, apperr.ErrSlotUnavailable)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgClaimMissingSlot(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectQuery("UPDATE slots").WithArgs(id, false, pgxmock.AnyArg()).WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("SELECT (.+) FROM slots WHERE id").WithArgs(id).WillReturnError(pgx.ErrNoRows)

	_, err = NewPgRepository(mock).Claim(context.Background(), id)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestPgListAvailable(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	doctorID := uuid.New()
	date := time.Date(2030, 1, 2, 0, 0, 0, 0, time.UTC)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT (.+) FROM slots").
		WithArgs(&doctorID).
		WillReturnRows(pgxmock.NewRows(slotCols).
			AddRow(uuid.New(), doctorID, date, "08:00:00", true, now, now).
			AddRow(uuid.New(), doctorID, date, "09:00:00", true, now, now))

	list, err := NewPgRepository(mock).ListAvailable(context.Background(), &doctorID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "08:00", list[0].Time.String())
	require.NoError(t, mock.ExpectationsWereMet())
}
