package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"school-treasury/internal/logging"
	"school-treasury/internal/observability/metrics"
	"school-treasury/internal/reconciliation/application"
	reconciliation "school-treasury/internal/reconciliation/domain"
	"school-treasury/internal/reconciliation/infrastructure/memory"
	"school-treasury/internal/reconciliation/infrastructure/postgres"
)

const dateLayout = "2006-01-02"

type options struct {
	configPath string
	dsn        string
	snapshot   string
	tenantID   string
	asOf       string
	workers    int
	pretty     bool
}

func newRootCmd(stdout io.Writer) *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "treasury-reconcile",
		Short:         "Reconcile school treasury balances",
		Long:          `Compute what each student owes for recurring dues and activities, after payments and credit.`,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.SetOut(stdout)

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "YAML config file (defaults to TREASURY_CONFIG)")
	flags.StringVar(&opts.dsn, "dsn", "", "Postgres DSN (defaults to DATABASE_URL)")
	flags.StringVar(&opts.snapshot, "snapshot", "", "YAML ledger snapshot file used instead of Postgres")
	flags.StringVar(&opts.tenantID, "tenant", "", "tenant id (defaults to TENANT_ID)")
	flags.StringVar(&opts.asOf, "as-of", "", "reconciliation date YYYY-MM-DD (defaults to today)")
	flags.IntVar(&opts.workers, "workers", 0, "roster worker count (defaults to config)")
	flags.BoolVar(&opts.pretty, "pretty", false, "indent JSON output")

	root.AddCommand(
		newStudentCmd(opts),
		newRosterCmd(opts),
		newValidateCmd(opts),
	)
	return root
}

func newStudentCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:     "student <student-id>",
		Short:   "Reconcile one student",
		Args:    cobra.ExactArgs(1),
		Example: `  treasury-reconcile student s-42 --as-of 2026-06-15 --snapshot ledger.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer rt.close()

			res, err := rt.service.ReconcileStudent(cmd.Context(), rt.tenantID, reconciliation.StudentID(args[0]), rt.asOf)
			if err != nil {
				return err
			}
			rt.flushMetrics()
			return writeJSON(cmd.OutOrStdout(), studentOutput(res), opts.pretty)
		},
	}
}

func newRosterCmd(opts *options) *cobra.Command {
	var students string
	cmd := &cobra.Command{
		Use:   "roster",
		Short: "Reconcile every student of a tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer rt.close()

			var ids []reconciliation.StudentID
			for _, id := range strings.Split(students, ",") {
				if id = strings.TrimSpace(id); id != "" {
					ids = append(ids, reconciliation.StudentID(id))
				}
			}
			roster, err := rt.service.ReconcileRoster(cmd.Context(), rt.tenantID, ids, rt.asOf)
			if err != nil {
				return err
			}
			rt.flushMetrics()
			return writeJSON(cmd.OutOrStdout(), rosterOutput(roster), opts.pretty)
		},
	}
	cmd.Flags().StringVar(&students, "students", "", "comma-separated student ids (defaults to all)")
	return cmd
}

func newValidateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "List data issues in the tenant ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer rt.close()

			issues, err := rt.service.Validate(cmd.Context(), rt.tenantID)
			if err != nil {
				return err
			}
			rt.flushMetrics()
			return writeJSON(cmd.OutOrStdout(), issuesOutput(rt.tenantID, issues), opts.pretty)
		},
	}
}

type runtime struct {
	service  *application.ReconciliationService
	tenantID reconciliation.TenantID
	asOf     time.Time
	textfile string
	logger   zerolog.Logger
	db       *sql.DB
}

func (rt *runtime) close() {
	if rt.db != nil {
		_ = rt.db.Close()
	}
}

func (rt *runtime) flushMetrics() {
	if rt.textfile == "" {
		return
	}
	if err := metrics.WriteTextfile(rt.textfile); err != nil {
		rt.logger.Warn().Err(err).Str("path", rt.textfile).Msg("write metrics textfile")
	}
}

type scheduleLoader interface {
	application.LedgerProvider
	application.ScheduleSource
}

func setup(ctx context.Context, opts *options) (*runtime, error) {
	cfg, err := application.LoadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.tenantID != "" {
		cfg.TenantID = opts.tenantID
	}
	if opts.dsn != "" {
		cfg.DatabaseURL = opts.dsn
	}
	if opts.workers > 0 {
		cfg.Workers = opts.workers
	}

	logger := logging.Init(logging.Config{Format: cfg.Log.Format, Level: cfg.Log.Level, Component: "treasury-reconcile"})

	asOf, err := parseAsOf(opts.asOf)
	if err != nil {
		return nil, err
	}

	rt := &runtime{asOf: asOf, textfile: cfg.MetricsTextfile, logger: logger}
	var provider scheduleLoader
	switch {
	case opts.snapshot != "":
		fileProvider, err := memory.LoadFile(opts.snapshot)
		if err != nil {
			return nil, fmt.Errorf("load snapshot file: %w", err)
		}
		if cfg.TenantID == "" {
			if tenants := fileProvider.Tenants(); len(tenants) == 1 {
				cfg.TenantID = string(tenants[0])
			}
		}
		provider = fileProvider
		metrics.Init(nil, logger)
	case cfg.DatabaseURL != "":
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ping database: %w", err)
		}
		rt.db = db
		provider = postgres.NewSnapshotProvider(db)
		metrics.Init(db, logger)
	default:
		return nil, errors.New("either --snapshot or --dsn (DATABASE_URL) is required")
	}

	if err := cfg.Validate(); err != nil {
		rt.close()
		return nil, err
	}
	rt.tenantID = reconciliation.TenantID(cfg.TenantID)

	var schedules application.ScheduleSource = provider
	if cfg.HasSchedule(rt.tenantID) {
		schedules = cfg
	}
	engine := reconciliation.NewEngine(
		reconciliation.WithWorkers(cfg.Workers),
		reconciliation.WithMatcher(reconciliation.NewTextMatcher(reconciliation.WithDueMarkers(cfg.Matcher.DueMarkers...))),
	)
	svc, err := application.NewReconciliationService(provider, schedules, engine, logger)
	if err != nil {
		rt.close()
		return nil, err
	}
	rt.service = svc
	return rt, nil
}

// parseAsOf reads the as-of date. Today's date is only read here.
func parseAsOf(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		now := time.Now()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	asOf, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --as-of %q: %w", value, err)
	}
	return asOf, nil
}

func writeJSON(w io.Writer, v any, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
