package reconciliation

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// RecurringDueSchedule is a tenant's validated recurring-due configuration.
// Build it with NewRecurringDueSchedule; the zero value means "not configured".
type RecurringDueSchedule struct {
	amount decimal.Decimal
	first  time.Month
	last   time.Month
	cutoff Cutoff
}

// NewRecurringDueSchedule validates and builds a monthly schedule.
// An empty cutoff defaults to CutoffCurrentPeriod.
func NewRecurringDueSchedule(amount decimal.Decimal, first, last time.Month, cutoff Cutoff) (RecurringDueSchedule, error) {
	if !amount.IsPositive() {
		return RecurringDueSchedule{}, ErrNonPositiveAmount
	}
	if !validMonth(first) || !validMonth(last) {
		return RecurringDueSchedule{}, ErrMissingPeriod
	}
	if first > last {
		return RecurringDueSchedule{}, fmt.Errorf("%w: %s > %s", ErrInvalidPeriodRange, first, last)
	}
	switch cutoff {
	case "":
		cutoff = CutoffCurrentPeriod
	case CutoffCurrentPeriod, CutoffFullYear:
	default:
		return RecurringDueSchedule{}, fmt.Errorf("%w: %q", ErrInvalidCutoff, cutoff)
	}
	return RecurringDueSchedule{amount: amount, first: first, last: last, cutoff: cutoff}, nil
}

func validMonth(m time.Month) bool { return m >= time.January && m <= time.December }

// Amount returns the per-period due.
func (s RecurringDueSchedule) Amount() decimal.Decimal { return s.amount }

// FirstMonth returns the configured first billable month.
func (s RecurringDueSchedule) FirstMonth() time.Month { return s.first }

// LastMonth returns the configured last billable month.
func (s RecurringDueSchedule) LastMonth() time.Month { return s.last }

// Cutoff returns the cutoff policy.
func (s RecurringDueSchedule) Cutoff() Cutoff { return s.cutoff }

// IsZero reports whether the schedule was never configured.
func (s RecurringDueSchedule) IsZero() bool { return s.first == 0 && s.amount.IsZero() }

// DueExpectation is the recurring-due liability of one student.
type DueExpectation struct {
	Periods   []Period
	PerPeriod decimal.Decimal
	Total     decimal.Decimal
}

// Expected computes the liable periods for a student enrolled on enrolledOn,
// evaluated in the billing year of asOf.
func (s RecurringDueSchedule) Expected(enrolledOn, asOf time.Time) DueExpectation {
	exp := DueExpectation{PerPeriod: s.amount, Total: decimal.Zero}
	year := asOf.Year()

	first := s.first
	if !enrolledOn.IsZero() {
		if enrolledOn.Year() > year {
			return exp
		}
		if enrolledOn.Year() == year && enrolledOn.Month() > first {
			first = enrolledOn.Month()
		}
	}

	last := s.last
	if s.cutoff == CutoffCurrentPeriod && asOf.Month() < last {
		last = asOf.Month()
	}

	count := int(last) - int(first) + 1
	if count <= 0 {
		return exp
	}
	exp.Periods = make([]Period, 0, count)
	for m := first; m <= last; m++ {
		exp.Periods = append(exp.Periods, Period{Year: year, Month: m})
	}
	exp.Total = s.amount.Mul(decimal.NewFromInt(int64(count)))
	return exp
}

// PeriodBalance is the coverage of one billable period.
type PeriodBalance struct {
	Period      Period
	Due         decimal.Decimal
	Paid        decimal.Decimal
	Outstanding decimal.Decimal
}

// Breakdown spreads the covered amount over the periods oldest first.
func (e DueExpectation) Breakdown(covered decimal.Decimal) []PeriodBalance {
	if len(e.Periods) == 0 {
		return nil
	}
	remaining := nonNegative(covered)
	out := make([]PeriodBalance, 0, len(e.Periods))
	for _, p := range e.Periods {
		paid := minDecimal(remaining, e.PerPeriod)
		remaining = remaining.Sub(paid)
		out = append(out, PeriodBalance{
			Period:      p,
			Due:         e.PerPeriod,
			Paid:        paid,
			Outstanding: e.PerPeriod.Sub(paid),
		})
	}
	return out
}

// Unpaid filters period balances with an outstanding amount, keeping order.
func Unpaid(periods []PeriodBalance) []PeriodBalance {
	var out []PeriodBalance
	for _, p := range periods {
		if p.Outstanding.IsPositive() {
			out = append(out, p)
		}
	}
	return out
}

// ScheduleSpec is an unvalidated schedule as configured for a tenant.
type ScheduleSpec struct {
	Amount     decimal.Decimal
	FirstMonth time.Month
	LastMonth  time.Month
	Cutoff     Cutoff
}

// Build validates the configured values into a RecurringDueSchedule.
func (s ScheduleSpec) Build() (RecurringDueSchedule, error) {
	return NewRecurringDueSchedule(s.Amount, s.FirstMonth, s.LastMonth, s.Cutoff)
}
