package slot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-booking/internal/apperr"
)

func TestParseTimeOfDay(t *testing.T) {
	tod, err := ParseTimeOfDay("09:05")
	require.NoError(t, err)
	assert.Equal(t, TimeOfDay{Hour: 9, Minute: 5}, tod)
	assert.Equal(t, "09:05", tod.String())

	tod, err = ParseTimeOfDay("14:30:00")
	require.NoError(t, err)
	assert.Equal(t, "14:30", tod.String())

	_, err = ParseTimeOfDay("25:00")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = ParseTimeOfDay("nine")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestValidateNotPast(t *testing.T) {
	loc := time.UTC
	now := time.Date(2030, 1, 10, 10, 30, 45, 0, loc)
	today := time.Date(2030, 1, 10, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		date time.Time
		tod  TimeOfDay
		ok   bool
	}{
		{"yesterday", today.AddDate(0, 0, -1), MustTimeOfDay("23:59"), false},
		{"today earlier", today, MustTimeOfDay("10:29"), false},
		{"today same minute, seconds in", today, MustTimeOfDay("10:30"), false},
		{"today later", today, MustTimeOfDay("11:00"), true},
		{"tomorrow early", today.AddDate(0, 0, 1), MustTimeOfDay("00:00"), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateNotPast(tc.date, tc.tod, loc, now)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, apperr.ErrValidation)
			}
		})
	}
}

func TestValidateNotPastAtSecondPrecision(t *testing.T) {
	today := time.Date(2030, 1, 10, 0, 0, 0, 0, time.UTC)
	ten := MustTimeOfDay("10:00")

	assert.NoError(t, ValidateNotPast(today, ten, time.UTC, time.Date(2030, 1, 10, 10, 0, 0, 0, time.UTC)))
	assert.NoError(t, ValidateNotPast(today, ten, time.UTC, time.Date(2030, 1, 10, 10, 0, 0, 999, time.UTC)))
	assert.ErrorIs(t, ValidateNotPast(today, ten, time.UTC, time.Date(2030, 1, 10, 10, 0, 1, 0, time.UTC)), apperr.ErrValidation)
	assert.ErrorIs(t, ValidateNotPast(today, ten, time.UTC, time.Date(2030, 1, 10, 10, 0, 45, 0, time.UTC)), apperr.ErrValidation)
}

func TestValidateNotPastUsesClinicLocation(t *testing.T) {
	saoPaulo := time.FixedZone("BRT", -3*60*60)
	// 01:00 UTC on the 11th is still 22:00 on the 10th in the clinic
	now := time.Date(2030, 1, 11, 1, 0, 0, 0, time.UTC)
	tenth := time.Date(2030, 1, 10, 0, 0, 0, 0, time.UTC)

	assert.NoError(t, ValidateNotPast(tenth, MustTimeOfDay("23:00"), saoPaulo, now))
	assert.Error(t, ValidateNotPast(tenth, MustTimeOfDay("21:00"), saoPaulo, now))
}

func TestInstant(t *testing.T) {
	s := Slot{Date: time.Date(2030, 3, 4, 0, 0, 0, 0, time.UTC), Time: MustTimeOfDay("08:15")}
	loc := time.FixedZone("X", 2*60*60)
	assert.Equal(t, time.Date(2030, 3, 4, 8, 15, 0, 0, loc), s.Instant(loc))
}
