package reconciliation

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Engine reconciles students against an immutable snapshot. It holds no
// state between calls; the as-of date is always supplied by the caller.
type Engine struct {
	matcher PaymentMatcher
	workers int
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithMatcher replaces the payment classification strategy.
func WithMatcher(m PaymentMatcher) EngineOption {
	return func(e *Engine) {
		if m != nil {
			e.matcher = m
		}
	}
}

// WithWorkers bounds roster parallelism. Values below one mean one.
func WithWorkers(n int) EngineOption {
	return func(e *Engine) {
		if n < 1 {
			n = 1
		}
		e.workers = n
	}
}

// NewEngine constructs an engine with the text matcher and one worker by default.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{matcher: NewTextMatcher(), workers: 1}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Reconcile computes one student's balances as of asOf.
func (e *Engine) Reconcile(snap *Snapshot, studentID StudentID, asOf time.Time) (ReconciliationResult, error) {
	if err := checkInputs(snap, asOf); err != nil {
		return ReconciliationResult{}, err
	}
	student, ok := snap.Student(studentID)
	if !ok {
		return ReconciliationResult{}, fmt.Errorf("%w: %s", ErrStudentNotFound, studentID)
	}
	ix := indexSnapshot(snap, asOf)
	return e.reconcileOne(ix, student, asOf), nil
}

// ReconcileRoster reconciles every listed student, or the whole snapshot when
// studentIDs is empty. Duplicate ids are reconciled once.
func (e *Engine) ReconcileRoster(snap *Snapshot, studentIDs []StudentID, asOf time.Time) (RosterResult, error) {
	if err := checkInputs(snap, asOf); err != nil {
		return RosterResult{}, err
	}
	if len(studentIDs) == 0 {
		studentIDs = snap.StudentIDs()
	}

	byID := make(map[StudentID]Student, len(snap.Students))
	for _, st := range snap.Students {
		byID[st.ID] = st
	}
	seen := make(map[StudentID]struct{}, len(studentIDs))
	students := make([]Student, 0, len(studentIDs))
	for _, id := range studentIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		st, ok := byID[id]
		if !ok {
			return RosterResult{}, fmt.Errorf("%w: %s", ErrStudentNotFound, id)
		}
		students = append(students, st)
	}

	ix := indexSnapshot(snap, asOf)
	results := make([]ReconciliationResult, len(students))
	var g errgroup.Group
	g.SetLimit(e.workers)
	for i, st := range students {
		i, st := i, st
		g.Go(func() error {
			results[i] = e.reconcileOne(ix, st, asOf)
			return nil
		})
	}
	_ = g.Wait()

	out := RosterResult{
		TenantID: snap.TenantID,
		AsOf:     asOf,
		Order:    make([]StudentID, 0, len(results)),
		Results:  make(map[StudentID]ReconciliationResult, len(results)),
		Totals:   totalsOf(results),
	}
	for _, r := range results {
		out.Order = append(out.Order, r.StudentID)
		out.Results[r.StudentID] = r
	}
	return out, nil
}

func checkInputs(snap *Snapshot, asOf time.Time) error {
	if snap == nil {
		return ErrNilSnapshot
	}
	if snap.Schedule.IsZero() {
		return ErrScheduleNotConfigured
	}
	if asOf.IsZero() {
		return ErrInvalidAsOf
	}
	return nil
}

// ledgerIndex is a read-only per-student view of a snapshot, shared by workers.
type ledgerIndex struct {
	tenantID   TenantID
	schedule   RecurringDueSchedule
	catalog    []Activity
	payments   map[StudentID][]Payment
	exclusions map[StudentID][]Exclusion
	credits    map[StudentID][]CreditEntry
}

// indexSnapshot groups snapshot rows by student. Payments dated after asOf
// are left out so a result reflects the ledger as it stood on that date.
func indexSnapshot(snap *Snapshot, asOf time.Time) *ledgerIndex {
	ix := &ledgerIndex{
		tenantID:   snap.TenantID,
		schedule:   snap.Schedule,
		catalog:    OrderActivities(snap.Activities),
		payments:   make(map[StudentID][]Payment),
		exclusions: make(map[StudentID][]Exclusion),
		credits:    make(map[StudentID][]CreditEntry),
	}
	for _, p := range snap.Payments {
		if p.StudentID == nil {
			continue
		}
		if !p.PaidOn.IsZero() && !onOrBefore(p.PaidOn, asOf) {
			continue
		}
		ix.payments[*p.StudentID] = append(ix.payments[*p.StudentID], p)
	}
	for _, ex := range snap.Exclusions {
		ix.exclusions[ex.StudentID] = append(ix.exclusions[ex.StudentID], ex)
	}
	for _, c := range snap.Credits {
		if c == nil {
			continue
		}
		ix.credits[c.Student()] = append(ix.credits[c.Student()], c)
	}
	return ix
}

func (e *Engine) reconcileOne(ix *ledgerIndex, student Student, asOf time.Time) ReconciliationResult {
	expected := ix.schedule.Expected(student.EnrolledOn, asOf)
	matched := e.matcher.Match(ix.payments[student.ID], ix.catalog)
	charges := ResolveCharges(student, ix.catalog, ix.exclusions[student.ID], matched.ActivityPaid, asOf)
	credits := collectCredits(ix.credits[student.ID], student.ID)

	alloc := Allocate(AllocationInput{
		DueExpected:    expected.Total,
		DuePaid:        matched.DuesPaid,
		Activities:     charges,
		StandingCredit: credits.standing,
		Redirections:   credits.redirections,
	})

	res := ReconciliationResult{
		TenantID:           ix.tenantID,
		StudentID:          student.ID,
		AsOf:               asOf,
		Expected:           expected,
		DuePaid:            matched.DuesPaid,
		RedirectionApplied: alloc.RedirectionApplied,
		DueBalance:         alloc.DueBalance,
		ActivityGross:      decimal.Zero,
		ActivityBalance:    decimal.Zero,
		TotalPaid:          matched.TotalMatched(),
		CreditAvailable:    alloc.CreditAvailable,
		CreditConsumed:     alloc.CreditConsumed,
		CreditRemaining:    alloc.CreditRemaining,
		Unclassified:       matched.Unclassified(),
		Ambiguous:          matched.Ambiguous,
	}
	res.Periods = expected.Breakdown(expected.Total.Sub(alloc.DueBalance))
	res.UnpaidPeriods = Unpaid(res.Periods)

	for i, charge := range charges {
		bal := alloc.Activities[i]
		res.ActivityGross = res.ActivityGross.Add(charge.Gross)
		if !bal.After.IsPositive() {
			continue
		}
		res.OwedActivities = append(res.OwedActivities, ActivityOwed{
			ActivityID:    charge.Activity.ID,
			Name:          charge.Activity.Name,
			OccursOn:      *charge.Activity.OccursOn,
			Gross:         charge.Gross,
			Paid:          charge.Paid,
			CreditApplied: bal.CreditApplied,
			Owed:          bal.After,
		})
		res.ActivityBalance = res.ActivityBalance.Add(bal.After)
	}
	res.TotalOwed = res.DueBalance.Add(res.ActivityBalance)
	return res
}
