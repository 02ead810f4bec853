package reconciliation

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func amt(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dayPtr(y int, m time.Month, d int) *time.Time {
	t := day(y, m, d)
	return &t
}

func sid(id string) *StudentID { s := StudentID(id); return &s }

func aid(id string) *ActivityID { a := ActivityID(id); return &a }

func requireAmount(t *testing.T, want int64, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	require.Truef(t, got.Equal(amt(want)), "want %d, got %s %v", want, got.String(), msgAndArgs)
}

func marchToDecember(t *testing.T, perPeriod int64, cutoff Cutoff) RecurringDueSchedule {
	t.Helper()
	s, err := NewRecurringDueSchedule(amt(perPeriod), time.March, time.December, cutoff)
	require.NoError(t, err)
	return s
}
