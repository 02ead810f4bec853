package reconciliation

import "errors"

var (
	// ErrNonPositiveAmount is returned when the per-period due amount is zero or negative.
	ErrNonPositiveAmount = errors.New("reconciliation: non-positive per-period amount")
	// ErrMissingPeriod is returned when the first or last billable period is unset.
	ErrMissingPeriod = errors.New("reconciliation: missing billable period")
	// ErrInvalidPeriodRange is returned when the first period falls after the last one.
	ErrInvalidPeriodRange = errors.New("reconciliation: first period after last period")
	// ErrInvalidCutoff is returned for an unknown cutoff policy.
	ErrInvalidCutoff = errors.New("reconciliation: invalid cutoff policy")
	// ErrScheduleNotConfigured is returned when a snapshot carries a zero schedule.
	ErrScheduleNotConfigured = errors.New("reconciliation: schedule not configured")
	// ErrNilSnapshot is returned when no snapshot is supplied.
	ErrNilSnapshot = errors.New("reconciliation: nil snapshot")
	// ErrStudentNotFound is returned when the student is not part of the snapshot.
	ErrStudentNotFound = errors.New("reconciliation: student not found")
	// ErrInvalidAsOf is returned when the as-of date is zero.
	ErrInvalidAsOf = errors.New("reconciliation: invalid as-of date")
)
