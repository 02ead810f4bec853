package reconciliation

import "github.com/shopspring/decimal"

// AllocationInput is everything the credit allocator needs for one student.
type AllocationInput struct {
	DueExpected    decimal.Decimal
	DuePaid        decimal.Decimal
	Activities     []ActivityCharge
	StandingCredit decimal.Decimal
	Redirections   []decimal.Decimal
}

// ActivityBalance is an activity balance before and after credit.
type ActivityBalance struct {
	ActivityID    ActivityID
	Before        decimal.Decimal
	CreditApplied decimal.Decimal
	After         decimal.Decimal
}

// Allocation is the outcome of applying redirections and standing credit.
type Allocation struct {
	DueBalance          decimal.Decimal
	DuePaid             decimal.Decimal
	RedirectionApplied  decimal.Decimal
	CreditAppliedToDues decimal.Decimal
	Activities          []ActivityBalance
	CreditAvailable     decimal.Decimal
	CreditConsumed      decimal.Decimal
	CreditRemaining     decimal.Decimal
}

// ActivityTotal sums the final activity balances.
func (a Allocation) ActivityTotal() decimal.Decimal {
	total := decimal.Zero
	for _, b := range a.Activities {
		total = total.Add(b.After)
	}
	return total
}

// Allocate applies, in this fixed order: redirections as recurring-due
// payments, standing credit against the recurring-due balance, then the
// remaining credit against activities in their given order.
// A negative standing credit counts as no credit.
func Allocate(in AllocationInput) Allocation {
	out := Allocation{
		DuePaid:            in.DuePaid,
		RedirectionApplied: decimal.Zero,
	}
	for _, r := range in.Redirections {
		out.RedirectionApplied = out.RedirectionApplied.Add(r.Abs())
	}

	paid := in.DuePaid.Add(out.RedirectionApplied)
	balance := nonNegative(in.DueExpected.Sub(paid))

	credit := nonNegative(in.StandingCredit)
	out.CreditAvailable = credit

	toDues := minDecimal(balance, credit)
	balance = balance.Sub(toDues)
	credit = credit.Sub(toDues)
	out.CreditAppliedToDues = toDues
	out.DueBalance = balance

	out.Activities = make([]ActivityBalance, 0, len(in.Activities))
	for _, charge := range in.Activities {
		before := nonNegative(charge.Owed)
		applied := minDecimal(before, credit)
		credit = credit.Sub(applied)
		out.Activities = append(out.Activities, ActivityBalance{
			ActivityID:    charge.Activity.ID,
			Before:        before,
			CreditApplied: applied,
			After:         before.Sub(applied),
		})
	}

	out.CreditRemaining = credit
	out.CreditConsumed = out.CreditAvailable.Sub(credit)
	return out
}
