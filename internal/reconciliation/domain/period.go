package reconciliation

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Period is a monthly billing period.
type Period struct {
	Year  int
	Month time.Month
}

// PeriodOf returns the billing period containing t.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

// Label returns the month name, e.g. "March".
func (p Period) Label() string { return p.Month.String() }

// String returns the storage form, e.g. "2026-03".
func (p Period) String() string { return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month)) }

// Cutoff decides the last period considered for recurring dues.
type Cutoff string

const (
	// CutoffCurrentPeriod bills up to the earlier of the configured last period and the as-of period.
	CutoffCurrentPeriod Cutoff = "current_period"
	// CutoffFullYear bills every configured period of the year.
	CutoffFullYear Cutoff = "full_year"
)

// ParseCutoff parses a cutoff policy name.
func ParseCutoff(value string) (Cutoff, error) {
	switch Cutoff(strings.ToLower(strings.TrimSpace(value))) {
	case CutoffCurrentPeriod:
		return CutoffCurrentPeriod, nil
	case CutoffFullYear:
		return CutoffFullYear, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidCutoff, value)
	}
}

// ParseMonth accepts an English month name ("March", "mar") or a number 1-12.
func ParseMonth(value string) (time.Month, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, ErrMissingPeriod
	}
	if n, err := strconv.Atoi(value); err == nil {
		if n < 1 || n > 12 {
			return 0, fmt.Errorf("%w: month %d", ErrMissingPeriod, n)
		}
		return time.Month(n), nil
	}
	lower := strings.ToLower(value)
	for m := time.January; m <= time.December; m++ {
		name := strings.ToLower(m.String())
		if lower == name || (len(lower) >= 3 && strings.HasPrefix(name, lower)) {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown month %q", ErrMissingPeriod, value)
}

// calendarDay truncates t to its calendar date in its own location.
func calendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// onOrBefore compares calendar dates only.
func onOrBefore(a, b time.Time) bool {
	return !calendarDay(a).After(calendarDay(b))
}
