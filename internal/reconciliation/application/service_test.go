package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	reconciliation "school-treasury/internal/reconciliation/domain"
	"school-treasury/internal/reconciliation/infrastructure/memory"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func studentRef(id string) *reconciliation.StudentID {
	s := reconciliation.StudentID(id)
	return &s
}

func serviceFixture(t *testing.T) *memory.SnapshotProvider {
	t.Helper()
	trip := date(2026, time.April, 20)
	snap := &reconciliation.Snapshot{
		TenantID: "school-1",
		Students: []reconciliation.Student{
			{ID: "s1", Name: "Ana", EnrolledOn: date(2026, time.January, 10)},
			{ID: "s2", Name: "Beto", EnrolledOn: date(2026, time.May, 2)},
		},
		Activities: []reconciliation.Activity{
			{ID: "trip", Name: "Zoo trip", Charge: decimal.NewFromInt(5000), OccursOn: &trip},
		},
		Payments: []reconciliation.Payment{
			{Seq: 1, PaidOn: date(2026, time.March, 3), Amount: decimal.NewFromInt(3000), StudentID: studentRef("s1"), Description: "march due"},
			{Seq: 2, PaidOn: date(2026, time.April, 21), Amount: decimal.NewFromInt(5000), StudentID: studentRef("s1"), Description: "zoo trip"},
			{Seq: 3, PaidOn: date(2026, time.May, 4), Amount: decimal.NewFromInt(700), StudentID: studentRef("s2"), Description: "books"},
		},
	}
	spec := reconciliation.ScheduleSpec{Amount: decimal.NewFromInt(3000), FirstMonth: time.March, LastMonth: time.December}
	p := memory.NewSnapshotProvider()
	require.NoError(t, p.Put(snap, spec))
	return p
}

func newService(t *testing.T, p *memory.SnapshotProvider, schedules ScheduleSource) *ReconciliationService {
	t.Helper()
	if schedules == nil {
		schedules = p
	}
	svc, err := NewReconciliationService(p, schedules, reconciliation.NewEngine(reconciliation.WithWorkers(2)), zerolog.Nop())
	require.NoError(t, err)
	return svc
}

func TestReconcileStudent(t *testing.T) {
	svc := newService(t, serviceFixture(t), nil)

	res, err := svc.ReconcileStudent(context.Background(), "school-1", "s1", date(2026, time.June, 15))
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(12000).Equal(res.Expected.Total))
	assert.True(t, decimal.NewFromInt(9000).Equal(res.DueBalance))
	assert.True(t, res.ActivityBalance.IsZero())
	assert.True(t, decimal.NewFromInt(9000).Equal(res.TotalOwed))
}

func TestReconcileStudentUnknown(t *testing.T) {
	svc := newService(t, serviceFixture(t), nil)
	_, err := svc.ReconcileStudent(context.Background(), "school-1", "nobody", date(2026, time.June, 15))
	assert.ErrorIs(t, err, reconciliation.ErrStudentNotFound)
}

func TestReconcileRoster(t *testing.T) {
	svc := newService(t, serviceFixture(t), nil)

	roster, err := svc.ReconcileRoster(context.Background(), "school-1", nil, date(2026, time.June, 15))
	require.NoError(t, err)
	assert.Equal(t, []reconciliation.StudentID{"s1", "s2"}, roster.Order)
	assert.Equal(t, 2, roster.Totals.Students)

	s2 := roster.Results["s2"]
	assert.True(t, decimal.NewFromInt(6000).Equal(s2.TotalOwed))
	require.Len(t, s2.Unclassified, 1)
	assert.Equal(t, reconciliation.PaymentSeq(3), s2.Unclassified[0].Payment.Seq)

	assert.True(t, decimal.NewFromInt(15000).Equal(roster.Totals.TotalOwed))
	assert.True(t, roster.Totals.Discrepancy.IsZero())
}

type failingSchedules struct{ err error }

func (f failingSchedules) ScheduleFor(context.Context, reconciliation.TenantID) (reconciliation.ScheduleSpec, error) {
	return reconciliation.ScheduleSpec{}, f.err
}

func TestConfigurationErrorsSurfaceBeforeProcessing(t *testing.T) {
	p := serviceFixture(t)
	ctx := context.Background()
	asOf := date(2026, time.June, 15)

	svc := newService(t, p, failingSchedules{err: errors.New("boom")})
	_, err := svc.ReconcileRoster(ctx, "school-1", nil, asOf)
	assert.ErrorIs(t, err, ErrConfiguration)

	bad := Config{Schedule: ScheduleConfig{Amount: "0", FirstMonth: "3", LastMonth: "12"}}
	svc = newService(t, p, bad)
	_, err = svc.ReconcileStudent(ctx, "school-1", "s1", asOf)
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.ErrorIs(t, err, reconciliation.ErrNonPositiveAmount)

	reversed := Config{Schedule: ScheduleConfig{Amount: "100", FirstMonth: "12", LastMonth: "3"}}
	svc = newService(t, p, reversed)
	_, err = svc.ReconcileRoster(ctx, "school-1", nil, asOf)
	assert.ErrorIs(t, err, reconciliation.ErrInvalidPeriodRange)

	_, err = svc.ReconcileRoster(ctx, "", nil, asOf)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestConfigScheduleSourceOverridesProvider(t *testing.T) {
	cfg := Config{Schedule: ScheduleConfig{Amount: "1000", FirstMonth: "march", LastMonth: "december"}}
	svc := newService(t, serviceFixture(t), cfg)

	res, err := svc.ReconcileStudent(context.Background(), "school-1", "s1", date(2026, time.June, 15))
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(4000).Equal(res.Expected.Total))
}

func TestServiceValidate(t *testing.T) {
	p := serviceFixture(t)
	snap, err := p.LoadSnapshot(context.Background(), "school-1")
	require.NoError(t, err)
	snap.Credits = []reconciliation.CreditEntry{reconciliation.StandingCredit{StudentID: "s1", Amount: decimal.NewFromInt(-10)}}
	spec, err := p.ScheduleFor(context.Background(), "school-1")
	require.NoError(t, err)
	require.NoError(t, p.Put(snap, spec))

	svc := newService(t, p, nil)
	issues, err := svc.Validate(context.Background(), "school-1")
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, IssueNegativeCredit, issues[0].Kind)

	_, err = svc.Validate(context.Background(), "missing")
	assert.ErrorIs(t, err, memory.ErrTenantNotFound)
}

func TestNewReconciliationServiceRequiresDependencies(t *testing.T) {
	p := memory.NewSnapshotProvider()
	_, err := NewReconciliationService(nil, p, nil, zerolog.Nop())
	assert.Error(t, err)
	_, err = NewReconciliationService(p, nil, nil, zerolog.Nop())
	assert.Error(t, err)
	svc, err := NewReconciliationService(p, p, nil, zerolog.Nop())
	require.NoError(t, err)
	assert.NotNil(t, svc)
}
