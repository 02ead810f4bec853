package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ledgerYAML = `
tenant_id: school-1
schedule:
  amount: "3000"
  first_month: march
  last_month: december
students:
  - id: s1
    name: Ana
    enrolled_on: 2026-01-10
  - id: s2
    name: Beto
    enrolled_on: 2026-05-02
activities:
  - id: trip
    name: Zoo trip
    charge: "5000"
    occurs_on: 2026-04-20
payments:
  - seq: 1
    paid_on: 2026-03-03
    amount: "3000"
    student_id: s1
    description: march due
  - seq: 2
    paid_on: 2026-05-04
    amount: "700"
    student_id: s2
    description: books
credits:
  - student_id: s1
    amount: "1000"
    kind: credit_balance
`

func prepareEnv(t *testing.T) string {
	t.Helper()
	for _, key := range []string{
		"DATABASE_URL", "PG_DSN", "TENANT_ID", "TREASURY_WORKERS", "TREASURY_METRICS_TEXTFILE",
		"TREASURY_DUE_MARKERS", "TREASURY_DUE_AMOUNT", "TREASURY_FIRST_MONTH", "TREASURY_LAST_MONTH",
		"TREASURY_CUTOFF", "TREASURY_CONFIG",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_LEVEL", "error")

	path := filepath.Join(t.TempDir(), "ledger.yaml")
	require.NoError(t, os.WriteFile(path, []byte(ledgerYAML), 0o600))
	return path
}

func run(t *testing.T, args ...string) []byte {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return out.Bytes()
}

func TestStudentCommand(t *testing.T) {
	snapshot := prepareEnv(t)
	data := run(t, "student", "s1", "--snapshot", snapshot, "--as-of", "2026-06-15")

	var got studentDTO
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "school-1", got.TenantID)
	assert.Equal(t, "2026-06-15", got.AsOf)
	assert.True(t, decimal.NewFromInt(12000).Equal(got.ExpectedDues))
	assert.True(t, decimal.NewFromInt(8000).Equal(got.DueBalance))
	assert.True(t, decimal.NewFromInt(5000).Equal(got.ActivityBalance))
	assert.True(t, decimal.NewFromInt(13000).Equal(got.TotalOwed))
	assert.True(t, decimal.NewFromInt(1000).Equal(got.CreditConsumed))
	require.Len(t, got.UnpaidPeriods, 3)
	assert.Equal(t, "2026-04", got.UnpaidPeriods[0].Period)
	require.Len(t, got.OwedActivities, 1)
	assert.Equal(t, "trip", got.OwedActivities[0].ActivityID)
}

func TestRosterCommand(t *testing.T) {
	snapshot := prepareEnv(t)
	textfile := filepath.Join(t.TempDir(), "treasury.prom")
	t.Setenv("TREASURY_METRICS_TEXTFILE", textfile)

	data := run(t, "roster", "--snapshot", snapshot, "--as-of", "2026-06-15", "--workers", "3")

	var got rosterDTO
	require.NoError(t, json.Unmarshal(data, &got))
	require.Len(t, got.Students, 2)
	assert.Equal(t, "s1", got.Students[0].StudentID)
	assert.Equal(t, "s2", got.Students[1].StudentID)
	require.Len(t, got.Students[1].Unclassified, 1)
	assert.Equal(t, "unclassified", got.Students[1].Unclassified[0].Class)
	assert.Equal(t, 1, got.Totals.Unclassified)
	assert.True(t, got.Totals.Discrepancy.IsZero(), got.Totals.Discrepancy.String())

	_, err := os.Stat(textfile)
	assert.NoError(t, err)
}

func TestValidateCommand(t *testing.T) {
	snapshot := prepareEnv(t)
	data := run(t, "validate", "--snapshot", snapshot)

	var got validateDTO
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "school-1", got.TenantID)
	assert.Empty(t, got.Issues)
}

func TestCommandErrors(t *testing.T) {
	snapshot := prepareEnv(t)

	for name, args := range map[string][]string{
		"no source":       {"roster"},
		"bad as-of":       {"roster", "--snapshot", snapshot, "--as-of", "15/06/2026"},
		"unknown student": {"student", "nobody", "--snapshot", snapshot, "--as-of", "2026-06-15"},
		"missing arg":     {"student", "--snapshot", snapshot},
	} {
		t.Run(name, func(t *testing.T) {
			var out, errOut bytes.Buffer
			cmd := newRootCmd(&out)
			cmd.SetErr(&errOut)
			cmd.SetArgs(args)
			assert.Error(t, cmd.Execute())
		})
	}
}
