package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"school-treasury/internal/observability/metrics"
	reconciliation "school-treasury/internal/reconciliation/domain"
)

// ErrConfiguration wraps tenant schedule errors. They are fatal for the tenant
// and surface before any student is processed.
var ErrConfiguration = errors.New("reconciliation service: configuration error")

// LedgerProvider loads one consistent snapshot of a tenant's ledger. The
// returned snapshot is owned by the caller.
type LedgerProvider interface {
	LoadSnapshot(ctx context.Context, tenantID reconciliation.TenantID) (*reconciliation.Snapshot, error)
}

// ScheduleSource provides a tenant's recurring-due schedule configuration.
type ScheduleSource interface {
	ScheduleFor(ctx context.Context, tenantID reconciliation.TenantID) (reconciliation.ScheduleSpec, error)
}

// ReconciliationService is the single entry point used by dashboards,
// reports and the self-service portal.
type ReconciliationService struct {
	provider  LedgerProvider
	schedules ScheduleSource
	engine    *reconciliation.Engine
	logger    zerolog.Logger
}

// NewReconciliationService constructs the service. A nil engine uses the defaults.
func NewReconciliationService(
	provider LedgerProvider,
	schedules ScheduleSource,
	engine *reconciliation.Engine,
	logger zerolog.Logger,
) (*ReconciliationService, error) {
	if provider == nil {
		return nil, errors.New("reconciliation service: nil ledger provider")
	}
	if schedules == nil {
		return nil, errors.New("reconciliation service: nil schedule source")
	}
	if engine == nil {
		engine = reconciliation.NewEngine()
	}
	return &ReconciliationService{
		provider:  provider,
		schedules: schedules,
		engine:    engine,
		logger:    logger,
	}, nil
}

// ReconcileStudent computes one student's balances as of asOf.
func (s *ReconciliationService) ReconcileStudent(ctx context.Context, tenantID reconciliation.TenantID, studentID reconciliation.StudentID, asOf time.Time) (reconciliation.ReconciliationResult, error) {
	start := time.Now()
	logger := s.logger.With().
		Str("run_id", uuid.NewString()).
		Str("tenant_id", string(tenantID)).
		Str("student_id", string(studentID)).
		Str("as_of", asOf.Format("2006-01-02")).
		Logger()

	snap, err := s.load(ctx, tenantID)
	if err != nil {
		metrics.ObserveReconcile(metrics.ModeStudent, metrics.ResultError, time.Since(start))
		logger.Error().Err(err).Msg("load snapshot")
		return reconciliation.ReconciliationResult{}, err
	}
	res, err := s.engine.Reconcile(snap, studentID, asOf)
	if err != nil {
		metrics.ObserveReconcile(metrics.ModeStudent, metrics.ResultError, time.Since(start))
		logger.Error().Err(err).Msg("reconcile student")
		return reconciliation.ReconciliationResult{}, err
	}

	reportMatching(logger, []reconciliation.ReconciliationResult{res})
	metrics.ObserveReconcile(metrics.ModeStudent, metrics.ResultSuccess, time.Since(start))
	logger.Info().
		Str("total_owed", res.TotalOwed.String()).
		Str("credit_remaining", res.CreditRemaining.String()).
		Dur("duration", time.Since(start)).
		Msg("student reconciled")
	return res, nil
}

// ReconcileRoster reconciles the listed students, or every student when empty.
func (s *ReconciliationService) ReconcileRoster(ctx context.Context, tenantID reconciliation.TenantID, studentIDs []reconciliation.StudentID, asOf time.Time) (reconciliation.RosterResult, error) {
	start := time.Now()
	logger := s.logger.With().
		Str("run_id", uuid.NewString()).
		Str("tenant_id", string(tenantID)).
		Str("as_of", asOf.Format("2006-01-02")).
		Logger()

	snap, err := s.load(ctx, tenantID)
	if err != nil {
		metrics.ObserveReconcile(metrics.ModeRoster, metrics.ResultError, time.Since(start))
		logger.Error().Err(err).Msg("load snapshot")
		return reconciliation.RosterResult{}, err
	}
	roster, err := s.engine.ReconcileRoster(snap, studentIDs, asOf)
	if err != nil {
		metrics.ObserveReconcile(metrics.ModeRoster, metrics.ResultError, time.Since(start))
		logger.Error().Err(err).Msg("reconcile roster")
		return reconciliation.RosterResult{}, err
	}

	results := make([]reconciliation.ReconciliationResult, 0, len(roster.Order))
	for _, id := range roster.Order {
		results = append(results, roster.Results[id])
	}
	reportMatching(logger, results)

	t := roster.Totals
	metrics.ObserveRosterSize(t.Students)
	metrics.SetTenantTotals(string(tenantID),
		t.TotalOwed.InexactFloat64(),
		t.TotalPaid.InexactFloat64(),
		t.Discrepancy.InexactFloat64(),
		t.CreditRemaining.InexactFloat64(),
	)
	metrics.ObserveReconcile(metrics.ModeRoster, metrics.ResultSuccess, time.Since(start))

	event := logger.Info()
	if !t.Discrepancy.IsZero() {
		event = logger.Warn()
	}
	event.
		Int("students", t.Students).
		Str("total_owed", t.TotalOwed.String()).
		Str("total_paid", t.TotalPaid.String()).
		Str("discrepancy", t.Discrepancy.String()).
		Dur("duration", time.Since(start)).
		Msg("roster reconciled")
	return roster, nil
}

// Validate lists data issues in the tenant's current snapshot.
func (s *ReconciliationService) Validate(ctx context.Context, tenantID reconciliation.TenantID) ([]Issue, error) {
	snap, err := s.provider.LoadSnapshot(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	issues := ValidateSnapshot(snap)
	for _, issue := range issues {
		metrics.IncValidationIssue(string(issue.Kind))
	}
	if len(issues) > 0 {
		s.logger.Warn().Str("tenant_id", string(tenantID)).Int("issues", len(issues)).Msg("snapshot has data issues")
	}
	return issues, nil
}

func (s *ReconciliationService) load(ctx context.Context, tenantID reconciliation.TenantID) (*reconciliation.Snapshot, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: empty tenant id", ErrConfiguration)
	}
	spec, err := s.schedules.ScheduleFor(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("%w: tenant %s: %w", ErrConfiguration, tenantID, err)
	}
	schedule, err := spec.Build()
	if err != nil {
		return nil, fmt.Errorf("%w: tenant %s: %w", ErrConfiguration, tenantID, err)
	}
	snap, err := s.provider.LoadSnapshot(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	if snap == nil {
		return nil, reconciliation.ErrNilSnapshot
	}
	snap.Schedule = schedule
	return snap, nil
}

func reportMatching(logger zerolog.Logger, results []reconciliation.ReconciliationResult) {
	var unclassified, orphaned, ambiguous int
	for _, r := range results {
		for _, p := range r.Unclassified {
			if p.Class == reconciliation.ClassOrphaned {
				orphaned++
				logger.Debug().
					Str("student_id", string(r.StudentID)).
					Int64("payment_seq", int64(p.Payment.Seq)).
					Str("activity_id", string(p.ActivityID)).
					Msg("payment references unknown activity")
				continue
			}
			unclassified++
		}
		for _, a := range r.Ambiguous {
			ambiguous++
			logger.Warn().
				Str("student_id", string(r.StudentID)).
				Int64("payment_seq", int64(a.Payment.Seq)).
				Str("chosen", string(a.Chosen)).
				Int("candidates", len(a.Candidates)).
				Msg("ambiguous payment description")
		}
	}
	metrics.AddUnmatchedPayments(unclassified, orphaned, ambiguous)
	if unclassified > 0 || orphaned > 0 {
		logger.Warn().Int("unclassified", unclassified).Int("orphaned", orphaned).Msg("payments excluded from debt offsetting")
	}
}
