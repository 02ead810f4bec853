package reconciliation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRecurringDueSchedule_RejectsBadConfiguration(t *testing.T) {
	cases := []struct {
		name   string
		amount int64
		first  time.Month
		last   time.Month
		cutoff Cutoff
		want   error
	}{
		{name: "zero amount", amount: 0, first: time.March, last: time.December, want: ErrNonPositiveAmount},
		{name: "negative amount", amount: -10, first: time.March, last: time.December, want: ErrNonPositiveAmount},
		{name: "missing first", amount: 3000, first: 0, last: time.December, want: ErrMissingPeriod},
		{name: "missing last", amount: 3000, first: time.March, last: 0, want: ErrMissingPeriod},
		{name: "reversed range", amount: 3000, first: time.October, last: time.March, want: ErrInvalidPeriodRange},
		{name: "unknown cutoff", amount: 3000, first: time.March, last: time.December, cutoff: "weekly", want: ErrInvalidCutoff},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewRecurringDueSchedule(amt(tc.amount), tc.first, tc.last, tc.cutoff)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestNewRecurringDueSchedule_DefaultsCutoff(t *testing.T) {
	s, err := NewRecurringDueSchedule(amt(100), time.March, time.December, "")
	require.NoError(t, err)
	assert.Equal(t, CutoffCurrentPeriod, s.Cutoff())
	assert.False(t, s.IsZero())
	assert.True(t, RecurringDueSchedule{}.IsZero())
}

func TestExpected(t *testing.T) {
	current := marchToDecember(t, 3000, CutoffCurrentPeriod)
	full := marchToDecember(t, 3000, CutoffFullYear)

	cases := []struct {
		name       string
		schedule   RecurringDueSchedule
		enrolledOn time.Time
		asOf       time.Time
		wantTotal  int64
		wantFirst  time.Month
		wantCount  int
	}{
		{name: "enrolled before first period", schedule: current, enrolledOn: day(2026, time.January, 10), asOf: day(2026, time.June, 15), wantTotal: 12000, wantFirst: time.March, wantCount: 4},
		{name: "late joiner starts at enrollment", schedule: current, enrolledOn: day(2026, time.May, 3), asOf: day(2026, time.June, 15), wantTotal: 6000, wantFirst: time.May, wantCount: 2},
		{name: "previous year enrollment", schedule: current, enrolledOn: day(2024, time.September, 1), asOf: day(2026, time.April, 1), wantTotal: 6000, wantFirst: time.March, wantCount: 2},
		{name: "full year ignores as-of", schedule: full, enrolledOn: day(2025, time.February, 1), asOf: day(2026, time.June, 15), wantTotal: 30000, wantFirst: time.March, wantCount: 10},
		{name: "as-of before first period", schedule: current, enrolledOn: day(2025, time.February, 1), asOf: day(2026, time.February, 20), wantTotal: 0},
		{name: "enrolled after cutoff", schedule: current, enrolledOn: day(2026, time.August, 1), asOf: day(2026, time.June, 15), wantTotal: 0},
		{name: "enrolled next year", schedule: full, enrolledOn: day(2027, time.January, 5), asOf: day(2026, time.June, 15), wantTotal: 0},
		{name: "as-of after last period", schedule: current, enrolledOn: day(2025, time.February, 1), asOf: day(2026, time.December, 31), wantTotal: 30000, wantFirst: time.March, wantCount: 10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			exp := tc.schedule.Expected(tc.enrolledOn, tc.asOf)
			requireAmount(t, tc.wantTotal, exp.Total)
			require.Len(t, exp.Periods, tc.wantCount)
			if tc.wantCount > 0 {
				assert.Equal(t, tc.wantFirst, exp.Periods[0].Month)
				assert.Equal(t, tc.asOf.Year(), exp.Periods[0].Year)
			}
		})
	}
}

func TestBreakdown_FillsOldestPeriodsFirst(t *testing.T) {
	s := marchToDecember(t, 3000, CutoffCurrentPeriod)
	exp := s.Expected(day(2026, time.January, 1), day(2026, time.June, 1))

	periods := exp.Breakdown(amt(7500))
	require.Len(t, periods, 4)
	requireAmount(t, 0, periods[0].Outstanding)
	requireAmount(t, 0, periods[1].Outstanding)
	requireAmount(t, 1500, periods[2].Outstanding)
	requireAmount(t, 3000, periods[3].Outstanding)

	unpaid := Unpaid(periods)
	require.Len(t, unpaid, 2)
	assert.Equal(t, "May", unpaid[0].Period.Label())
	assert.Equal(t, "2026-06", unpaid[1].Period.String())
}

func TestParseMonthAndCutoff(t *testing.T) {
	for in, want := range map[string]time.Month{"March": time.March, "dec": time.December, "3": time.March, "12": time.December} {
		got, err := ParseMonth(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseMonth("13")
	require.ErrorIs(t, err, ErrMissingPeriod)
	_, err = ParseMonth("")
	require.ErrorIs(t, err, ErrMissingPeriod)

	c, err := ParseCutoff(" Full_Year ")
	require.NoError(t, err)
	assert.Equal(t, CutoffFullYear, c)
	_, err = ParseCutoff("quarterly")
	require.ErrorIs(t, err, ErrInvalidCutoff)
}

func TestScheduleSpecBuild(t *testing.T) {
	s, err := ScheduleSpec{Amount: amt(2500), FirstMonth: time.February, LastMonth: time.November, Cutoff: CutoffFullYear}.Build()
	require.NoError(t, err)
	assert.Equal(t, time.February, s.FirstMonth())
	assert.Equal(t, time.November, s.LastMonth())
	requireAmount(t, 2500, s.Amount())

	_, err = ScheduleSpec{}.Build()
	require.ErrorIs(t, err, ErrNonPositiveAmount)
}
