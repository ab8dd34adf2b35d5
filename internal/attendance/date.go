package attendance

import (
	"time"

	"classroom/internal/apperr"
)

const (
	dateLayout  = "2006-01-02"
	monthLayout = "2006-01"
)

// ParseDate validates a calendar date in YYYY-MM-DD form and returns it normalized.
func ParseDate(field, s string) (string, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return "", apperr.Invalid(field, "must be a date in YYYY-MM-DD format")
	}
	return t.Format(dateLayout), nil
}

// MonthRange converts YYYY-MM into the half-open date range [first day, first day of next month).
func MonthRange(field, s string) (from, to string, err error) {
	t, err := time.Parse(monthLayout, s)
	if err != nil {
		return "", "", apperr.Invalid(field, "must be a month in YYYY-MM format")
	}
	return t.Format(dateLayout), t.AddDate(0, 1, 0).Format(dateLayout), nil
}
