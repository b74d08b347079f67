package slot

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-booking/internal/apperr"
)

const dateLayout = "2006-01-02"

// TimeOfDay is a wall clock time with minute precision.
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay accepts "15:04" and the "15:04:05" form postgres uses for TIME columns.
// Seconds are dropped.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
		}
	}
	return TimeOfDay{}, apperr.Validation("invalid time %q, expected HH:MM", s)
}

func MustTimeOfDay(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

func (t TimeOfDay) Before(o TimeOfDay) bool {
	if t.Hour != o.Hour {
		return t.Hour < o.Hour
	}
	return t.Minute < o.Minute
}

func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	parsed, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Date strips the clock from t, keeping the calendar day as seen in t's location.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, apperr.Validation("invalid date %q, expected YYYY-MM-DD", s)
	}
	return d, nil
}

func FormatDate(d time.Time) string {
	return d.Format(dateLayout)
}

type Slot struct {
	ID        uuid.UUID
	DoctorID  uuid.UUID
	Date      time.Time // calendar day, UTC midnight
	Time      TimeOfDay
	Available bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Instant is the moment the slot starts in the clinic's location.
func (s Slot) Instant(loc *time.Location) time.Time {
	return instant(s.Date, s.Time, loc)
}

func instant(date time.Time, tod TimeOfDay, loc *time.Location) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, tod.Hour, tod.Minute, 0, 0, loc)
}
