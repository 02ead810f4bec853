package memory

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	reconciliation "school-treasury/internal/reconciliation/domain"
)

func sampleSnapshot() *reconciliation.Snapshot {
	sid := reconciliation.StudentID("s-1")
	aid := reconciliation.ActivityID("trip")
	on := time.Date(2026, time.May, 10, 0, 0, 0, 0, time.UTC)
	return &reconciliation.Snapshot{
		TenantID: "school-1",
		Students: []reconciliation.Student{
			{ID: sid, TenantID: "school-1", Name: "Ana", EnrolledOn: time.Date(2025, time.December, 1, 0, 0, 0, 0, time.UTC)},
		},
		Activities: []reconciliation.Activity{
			{ID: aid, Name: "Museum trip", Charge: decimal.NewFromInt(2000), OccursOn: &on},
		},
		Payments: []reconciliation.Payment{
			{Seq: 1, PaidOn: on, Amount: decimal.NewFromInt(2000), StudentID: &sid, ActivityID: &aid},
		},
	}
}

func TestSnapshotProviderDetachesCopies(t *testing.T) {
	ctx := context.Background()
	p := NewSnapshotProvider()
	snap := sampleSnapshot()
	spec := reconciliation.ScheduleSpec{Amount: decimal.NewFromInt(1000), FirstMonth: time.March, LastMonth: time.December}
	require.NoError(t, p.Put(snap, spec))

	*snap.Payments[0].StudentID = "mutated"
	snap.Students[0].Name = "mutated"

	got, err := p.LoadSnapshot(ctx, "school-1")
	require.NoError(t, err)
	assert.Equal(t, "Ana", got.Students[0].Name)
	assert.Equal(t, reconciliation.StudentID("s-1"), *got.Payments[0].StudentID)

	*got.Activities[0].OccursOn = time.Time{}
	again, err := p.LoadSnapshot(ctx, "school-1")
	require.NoError(t, err)
	assert.True(t, again.Activities[0].Dated())

	gotSpec, err := p.ScheduleFor(ctx, "school-1")
	require.NoError(t, err)
	assert.Equal(t, time.March, gotSpec.FirstMonth)

	ids, err := p.ListStudentIDs(ctx, "school-1")
	require.NoError(t, err)
	assert.Equal(t, []reconciliation.StudentID{"s-1"}, ids)
	assert.Equal(t, []reconciliation.TenantID{"school-1"}, p.Tenants())
}

func TestSnapshotProviderErrors(t *testing.T) {
	ctx := context.Background()
	p := NewSnapshotProvider()

	assert.ErrorIs(t, p.Put(nil, reconciliation.ScheduleSpec{}), reconciliation.ErrNilSnapshot)
	assert.Error(t, p.Put(&reconciliation.Snapshot{}, reconciliation.ScheduleSpec{}))

	_, err := p.LoadSnapshot(ctx, "missing")
	assert.ErrorIs(t, err, ErrTenantNotFound)
	_, err = p.ScheduleFor(ctx, "missing")
	assert.ErrorIs(t, err, ErrTenantNotFound)
	_, err = p.ListStudentIDs(ctx, "missing")
	assert.ErrorIs(t, err, ErrTenantNotFound)
}

const snapshotYAML = `
tenant_id: school-1
schedule:
  amount: "1000"
  first_month: march
  last_month: "12"
  cutoff: current_period
students:
  - id: s-1
    name: Ana
    enrolled_on: 2025-12-01
  - id: s-2
    name: Beto
    enrolled_on: 2026-05-15
activities:
  - id: trip
    name: Museum trip
    charge: "2000.50"
    occurs_on: 2026-05-10
  - id: party
    name: Year-end party
    charge: "3000"
exclusions:
  - student_id: s-2
    activity_id: trip
payments:
  - seq: 1
    paid_on: 2026-03-04
    amount: "1000"
    student_id: s-1
    description: march due
  - seq: 2
    paid_on: 2026-05-11
    amount: "2000.50"
    student_id: s-1
    activity_id: trip
  - seq: 3
    paid_on: 2026-05-12
    amount: "500"
    description: cash box
credits:
  - student_id: s-1
    amount: "300"
    kind: credit_balance
  - student_id: s-1
    amount: "-200"
    kind: payment_redirection
  - student_id: s-2
    amount: "50"
    kind: something_else
`

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(snapshotYAML), 0o600))

	p, err := LoadFile(path)
	require.NoError(t, err)

	ctx := context.Background()
	snap, err := p.LoadSnapshot(ctx, "school-1")
	require.NoError(t, err)
	require.Len(t, snap.Students, 2)
	assert.Equal(t, time.Date(2026, time.May, 15, 0, 0, 0, 0, time.UTC), snap.Students[1].EnrolledOn)

	require.Len(t, snap.Activities, 2)
	assert.True(t, snap.Activities[0].Dated())
	assert.True(t, decimal.RequireFromString("2000.50").Equal(snap.Activities[0].Charge))
	assert.False(t, snap.Activities[1].Dated())

	require.Len(t, snap.Payments, 3)
	require.NotNil(t, snap.Payments[1].ActivityID)
	assert.Equal(t, reconciliation.ActivityID("trip"), *snap.Payments[1].ActivityID)
	assert.Nil(t, snap.Payments[2].StudentID)

	require.Len(t, snap.Credits, 2)
	assert.IsType(t, reconciliation.StandingCredit{}, snap.Credits[0])
	redirect, ok := snap.Credits[1].(reconciliation.Redirection)
	require.True(t, ok)
	assert.True(t, decimal.NewFromInt(200).Equal(redirect.Amount))

	spec, err := p.ScheduleFor(ctx, "school-1")
	require.NoError(t, err)
	assert.Equal(t, time.March, spec.FirstMonth)
	assert.Equal(t, time.December, spec.LastMonth)
	_, err = spec.Build()
	require.NoError(t, err)
}

func TestParseRejectsBadDocuments(t *testing.T) {
	_, err := Parse([]byte("students: []"))
	assert.Error(t, err)

	_, err = Parse([]byte("tenant_id: x\npayments:\n  - seq: 1\n    amount: abc\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("tenant_id: x\nstudents:\n  - id: s\n    enrolled_on: 01/02/2026\n"))
	assert.Error(t, err)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
