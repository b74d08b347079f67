package slot

import (
	"time"

	"github.com/hackgods/clinic-booking/internal/apperr"
)

// ValidateNotPast rejects a (date, time) pair that lies strictly before now. The date is
// compared against today in loc, and on the same day the slot start is compared against
// now at second precision, so 10:00 is closed from 10:00:01. Every write to a slot goes through this check.
func ValidateNotPast(date time.Time, tod TimeOfDay, loc *time.Location, now time.Time) error {
	if tod.Hour < 0 || tod.Hour > 23 || tod.Minute < 0 || tod.Minute > 59 {
		return apperr.Validation("invalid time %s", tod)
	}

	local := now.In(loc)
	today := Date(local)
	day := Date(date)

	if day.Before(today) {
		return apperr.Validation("slot date %s is in the past", FormatDate(day))
	}
	if day.Equal(today) {
		start := time.Date(day.Year(), day.Month(), day.Day(), tod.Hour, tod.Minute, 0, 0, loc)
		if start.Before(local.Truncate(time.Second)) {
			return apperr.Validation("slot time %s on %s is in the past", tod, FormatDate(day))
		}
	}
	return nil
}
