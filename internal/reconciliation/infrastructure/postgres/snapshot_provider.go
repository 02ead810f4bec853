package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	reconciliation "school-treasury/internal/reconciliation/domain"
)

//go:embed schema.sql
var schemaSQL string

// ErrScheduleNotFound is returned when a tenant has no treasury_schedules row.
var ErrScheduleNotFound = errors.New("ledger repo: schedule not found")

const defaultQueryTimeout = 30 * time.Second

// SnapshotProvider reads tenant ledger snapshots from Postgres.
type SnapshotProvider struct {
	db      *sql.DB
	timeout time.Duration
}

// Option configures the provider.
type Option func(*SnapshotProvider)

// WithQueryTimeout bounds a whole snapshot read.
func WithQueryTimeout(timeout time.Duration) Option {
	return func(p *SnapshotProvider) {
		if timeout > 0 {
			p.timeout = timeout
		}
	}
}

// NewSnapshotProvider constructs a provider.
func NewSnapshotProvider(db *sql.DB, opts ...Option) *SnapshotProvider {
	p := &SnapshotProvider{db: db, timeout: defaultQueryTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Migrate creates the ledger tables when missing.
func Migrate(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return errors.New("ledger repo: nil db")
	}
	_, err := db.ExecContext(ctx, schemaSQL)
	return err
}

// LoadSnapshot reads every ledger table of a tenant in one read-only
// repeatable-read transaction. The schedule is left unset.
func (p *SnapshotProvider) LoadSnapshot(ctx context.Context, tenantID reconciliation.TenantID) (*reconciliation.Snapshot, error) {
	if p == nil || p.db == nil {
		return nil, errors.New("ledger repo: nil db")
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	snap := &reconciliation.Snapshot{TenantID: tenantID}
	if snap.Students, err = loadStudents(ctx, tx, tenantID); err != nil {
		return nil, fmt.Errorf("load students: %w", err)
	}
	if snap.Activities, err = loadActivities(ctx, tx, tenantID); err != nil {
		return nil, fmt.Errorf("load activities: %w", err)
	}
	if snap.Exclusions, err = loadExclusions(ctx, tx, tenantID); err != nil {
		return nil, fmt.Errorf("load exclusions: %w", err)
	}
	if snap.Payments, err = loadPayments(ctx, tx, tenantID); err != nil {
		return nil, fmt.Errorf("load payments: %w", err)
	}
	if snap.Credits, err = loadCredits(ctx, tx, tenantID); err != nil {
		return nil, fmt.Errorf("load credits: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return snap, nil
}

// ScheduleFor reads the tenant's configured recurring-due schedule.
func (p *SnapshotProvider) ScheduleFor(ctx context.Context, tenantID reconciliation.TenantID) (reconciliation.ScheduleSpec, error) {
	var spec reconciliation.ScheduleSpec
	if p == nil || p.db == nil {
		return spec, errors.New("ledger repo: nil db")
	}
	var (
		amount      decimal.Decimal
		first, last int
		cutoff      string
	)
	err := p.db.QueryRowContext(ctx, `
SELECT amount, first_month, last_month, cutoff
FROM treasury_schedules
WHERE tenant_id = $1`, string(tenantID)).Scan(&amount, &first, &last, &cutoff)
	if errors.Is(err, sql.ErrNoRows) {
		return spec, fmt.Errorf("%w: tenant %s", ErrScheduleNotFound, tenantID)
	}
	if err != nil {
		return spec, err
	}
	spec.Amount = amount
	spec.FirstMonth = time.Month(first)
	spec.LastMonth = time.Month(last)
	spec.Cutoff = reconciliation.Cutoff(cutoff)
	return spec, nil
}

// ListStudentIDs lists a tenant's students by id.
func (p *SnapshotProvider) ListStudentIDs(ctx context.Context, tenantID reconciliation.TenantID) ([]reconciliation.StudentID, error) {
	if p == nil || p.db == nil {
		return nil, errors.New("ledger repo: nil db")
	}
	rows, err := p.db.QueryContext(ctx, `
SELECT id FROM students
WHERE tenant_id = $1
ORDER BY id ASC`, string(tenantID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []reconciliation.StudentID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, reconciliation.StudentID(id))
	}
	return ids, rows.Err()
}

func loadStudents(ctx context.Context, tx *sql.Tx, tenantID reconciliation.TenantID) ([]reconciliation.Student, error) {
	rows, err := tx.QueryContext(ctx, `
SELECT id, name, enrolled_on
FROM students
WHERE tenant_id = $1
ORDER BY id ASC`, string(tenantID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []reconciliation.Student
	for rows.Next() {
		var (
			id, name string
			enrolled time.Time
		)
		if err := rows.Scan(&id, &name, &enrolled); err != nil {
			return nil, err
		}
		out = append(out, reconciliation.Student{
			ID:         reconciliation.StudentID(id),
			TenantID:   tenantID,
			Name:       name,
			EnrolledOn: enrolled,
		})
	}
	return out, rows.Err()
}

func loadActivities(ctx context.Context, tx *sql.Tx, tenantID reconciliation.TenantID) ([]reconciliation.Activity, error) {
	rows, err := tx.QueryContext(ctx, `
SELECT id, name, charge, occurs_on
FROM activities
WHERE tenant_id = $1
ORDER BY occurs_on ASC NULLS LAST, id ASC`, string(tenantID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []reconciliation.Activity
	for rows.Next() {
		var (
			id, name string
			charge   decimal.Decimal
			occurs   sql.NullTime
		)
		if err := rows.Scan(&id, &name, &charge, &occurs); err != nil {
			return nil, err
		}
		activity := reconciliation.Activity{ID: reconciliation.ActivityID(id), Name: name, Charge: charge}
		if occurs.Valid {
			on := occurs.Time
			activity.OccursOn = &on
		}
		out = append(out, activity)
	}
	return out, rows.Err()
}

func loadExclusions(ctx context.Context, tx *sql.Tx, tenantID reconciliation.TenantID) ([]reconciliation.Exclusion, error) {
	rows, err := tx.QueryContext(ctx, `
SELECT student_id, activity_id
FROM activity_exclusions
WHERE tenant_id = $1`, string(tenantID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []reconciliation.Exclusion
	for rows.Next() {
		var studentID, activityID string
		if err := rows.Scan(&studentID, &activityID); err != nil {
			return nil, err
		}
		out = append(out, reconciliation.Exclusion{
			StudentID:  reconciliation.StudentID(studentID),
			ActivityID: reconciliation.ActivityID(activityID),
		})
	}
	return out, rows.Err()
}

func loadPayments(ctx context.Context, tx *sql.Tx, tenantID reconciliation.TenantID) ([]reconciliation.Payment, error) {
	rows, err := tx.QueryContext(ctx, `
SELECT seq, paid_on, amount, student_id, description, activity_id, period_label
FROM payments
WHERE tenant_id = $1
ORDER BY seq ASC`, string(tenantID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []reconciliation.Payment
	for rows.Next() {
		var (
			seq         int64
			paidOn      time.Time
			amount      decimal.Decimal
			studentID   sql.NullString
			description string
			activityID  sql.NullString
			periodLabel string
		)
		if err := rows.Scan(&seq, &paidOn, &amount, &studentID, &description, &activityID, &periodLabel); err != nil {
			return nil, err
		}
		payment := reconciliation.Payment{
			Seq:         reconciliation.PaymentSeq(seq),
			PaidOn:      paidOn,
			Amount:      amount,
			Description: description,
			PeriodLabel: periodLabel,
		}
		if studentID.Valid && studentID.String != "" {
			id := reconciliation.StudentID(studentID.String)
			payment.StudentID = &id
		}
		if activityID.Valid && activityID.String != "" {
			id := reconciliation.ActivityID(activityID.String)
			payment.ActivityID = &id
		}
		out = append(out, payment)
	}
	return out, rows.Err()
}

func loadCredits(ctx context.Context, tx *sql.Tx, tenantID reconciliation.TenantID) ([]reconciliation.CreditEntry, error) {
	rows, err := tx.QueryContext(ctx, `
SELECT student_id, amount, kind
FROM credit_ledger
WHERE tenant_id = $1 AND kind IN ($2, $3)
ORDER BY id ASC`, string(tenantID), reconciliation.LedgerKindCreditBalance, reconciliation.LedgerKindPaymentRedirection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []reconciliation.CreditEntry
	for rows.Next() {
		var (
			studentID, kind string
			amount          decimal.Decimal
		)
		if err := rows.Scan(&studentID, &amount, &kind); err != nil {
			return nil, err
		}
		if entry, ok := reconciliation.NewCreditEntry(reconciliation.StudentID(studentID), amount, kind); ok {
			out = append(out, entry)
		}
	}
	return out, rows.Err()
}
