package reconciliation

import (
	"time"

	"github.com/shopspring/decimal"
)

// ActivityOwed is an activity with an outstanding balance.
type ActivityOwed struct {
	ActivityID    ActivityID
	Name          string
	OccursOn      time.Time
	Gross         decimal.Decimal
	Paid          decimal.Decimal
	CreditApplied decimal.Decimal
	Owed          decimal.Decimal
}

// ReconciliationResult is the disposable per-student outcome of one computation.
// TotalOwed always equals DueBalance plus the sum of OwedActivities.
type ReconciliationResult struct {
	TenantID  TenantID
	StudentID StudentID
	AsOf      time.Time

	Expected           DueExpectation
	DuePaid            decimal.Decimal
	RedirectionApplied decimal.Decimal
	DueBalance         decimal.Decimal
	Periods            []PeriodBalance
	UnpaidPeriods      []PeriodBalance

	ActivityGross   decimal.Decimal
	OwedActivities  []ActivityOwed
	ActivityBalance decimal.Decimal

	TotalOwed decimal.Decimal
	TotalPaid decimal.Decimal

	CreditAvailable decimal.Decimal
	CreditConsumed  decimal.Decimal
	CreditRemaining decimal.Decimal

	Unclassified []ClassifiedPayment
	Ambiguous    []AmbiguousMatch
}

// TenantTotals aggregates a roster run. TotalPaid is summed from classified
// payments, never derived from the other totals, so Discrepancy exposes drift
// between expected charges and what was paid, credited and still owed.
type TenantTotals struct {
	Students           int
	TotalExpected      decimal.Decimal
	TotalOwed          decimal.Decimal
	TotalPaid          decimal.Decimal
	RedirectionApplied decimal.Decimal
	CreditConsumed     decimal.Decimal
	CreditRemaining    decimal.Decimal
	Discrepancy        decimal.Decimal
	Unclassified       int
	Ambiguous          int
}

// RosterResult maps students to results. Order keeps the requested student order.
type RosterResult struct {
	TenantID TenantID
	AsOf     time.Time
	Order    []StudentID
	Results  map[StudentID]ReconciliationResult
	Totals   TenantTotals
}

func totalsOf(results []ReconciliationResult) TenantTotals {
	t := TenantTotals{
		Students:           len(results),
		TotalExpected:      decimal.Zero,
		TotalOwed:          decimal.Zero,
		TotalPaid:          decimal.Zero,
		RedirectionApplied: decimal.Zero,
		CreditConsumed:     decimal.Zero,
		CreditRemaining:    decimal.Zero,
	}
	for _, r := range results {
		t.TotalExpected = t.TotalExpected.Add(r.Expected.Total).Add(r.ActivityGross)
		t.TotalOwed = t.TotalOwed.Add(r.TotalOwed)
		t.TotalPaid = t.TotalPaid.Add(r.TotalPaid)
		t.RedirectionApplied = t.RedirectionApplied.Add(r.RedirectionApplied)
		t.CreditConsumed = t.CreditConsumed.Add(r.CreditConsumed)
		t.CreditRemaining = t.CreditRemaining.Add(r.CreditRemaining)
		t.Unclassified += len(r.Unclassified)
		t.Ambiguous += len(r.Ambiguous)
	}
	t.Discrepancy = t.TotalExpected.
		Sub(t.TotalPaid).
		Sub(t.RedirectionApplied).
		Sub(t.CreditConsumed).
		Sub(t.TotalOwed)
	return t
}
