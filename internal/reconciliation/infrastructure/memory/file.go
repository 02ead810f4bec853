package memory

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	reconciliation "school-treasury/internal/reconciliation/domain"
)

const dateLayout = "2006-01-02"

type scheduleDoc struct {
	Amount     string `yaml:"amount"`
	FirstMonth string `yaml:"first_month"`
	LastMonth  string `yaml:"last_month"`
	Cutoff     string `yaml:"cutoff"`
}

type studentDoc struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	EnrolledOn string `yaml:"enrolled_on"`
}

type activityDoc struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Charge   string `yaml:"charge"`
	OccursOn string `yaml:"occurs_on"`
}

type exclusionDoc struct {
	StudentID  string `yaml:"student_id"`
	ActivityID string `yaml:"activity_id"`
}

type paymentDoc struct {
	Seq         int64  `yaml:"seq"`
	PaidOn      string `yaml:"paid_on"`
	Amount      string `yaml:"amount"`
	StudentID   string `yaml:"student_id"`
	Description string `yaml:"description"`
	ActivityID  string `yaml:"activity_id"`
	PeriodLabel string `yaml:"period_label"`
}

type creditDoc struct {
	StudentID string `yaml:"student_id"`
	Amount    string `yaml:"amount"`
	Kind      string `yaml:"kind"`
}

type snapshotDoc struct {
	TenantID   string         `yaml:"tenant_id"`
	Schedule   *scheduleDoc   `yaml:"schedule"`
	Students   []studentDoc   `yaml:"students"`
	Activities []activityDoc  `yaml:"activities"`
	Exclusions []exclusionDoc `yaml:"exclusions"`
	Payments   []paymentDoc   `yaml:"payments"`
	Credits    []creditDoc    `yaml:"credits"`
}

// LoadFile reads a YAML snapshot document into a new provider.
// Credit rows with an unknown kind are skipped.
func LoadFile(path string) (*SnapshotProvider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes a YAML snapshot document into a new provider.
func Parse(data []byte) (*SnapshotProvider, error) {
	var doc snapshotDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("memory ledger: decode: %w", err)
	}
	snap, spec, err := doc.toDomain()
	if err != nil {
		return nil, err
	}
	p := NewSnapshotProvider()
	if err := p.Put(snap, spec); err != nil {
		return nil, err
	}
	return p, nil
}

func (d snapshotDoc) toDomain() (*reconciliation.Snapshot, reconciliation.ScheduleSpec, error) {
	var spec reconciliation.ScheduleSpec
	if d.TenantID == "" {
		return nil, spec, fmt.Errorf("memory ledger: tenant_id required")
	}
	if d.Schedule != nil {
		var err error
		if spec, err = d.Schedule.toDomain(); err != nil {
			return nil, spec, err
		}
	}

	snap := &reconciliation.Snapshot{TenantID: reconciliation.TenantID(d.TenantID)}
	for _, s := range d.Students {
		enrolled, err := parseDate(s.EnrolledOn)
		if err != nil {
			return nil, spec, fmt.Errorf("student %s: %w", s.ID, err)
		}
		snap.Students = append(snap.Students, reconciliation.Student{
			ID:         reconciliation.StudentID(s.ID),
			TenantID:   snap.TenantID,
			Name:       s.Name,
			EnrolledOn: enrolled,
		})
	}
	for _, a := range d.Activities {
		charge, err := parseAmount(a.Charge)
		if err != nil {
			return nil, spec, fmt.Errorf("activity %s: %w", a.ID, err)
		}
		activity := reconciliation.Activity{ID: reconciliation.ActivityID(a.ID), Name: a.Name, Charge: charge}
		if strings.TrimSpace(a.OccursOn) != "" {
			on, err := parseDate(a.OccursOn)
			if err != nil {
				return nil, spec, fmt.Errorf("activity %s: %w", a.ID, err)
			}
			activity.OccursOn = &on
		}
		snap.Activities = append(snap.Activities, activity)
	}
	for _, e := range d.Exclusions {
		snap.Exclusions = append(snap.Exclusions, reconciliation.Exclusion{
			StudentID:  reconciliation.StudentID(e.StudentID),
			ActivityID: reconciliation.ActivityID(e.ActivityID),
		})
	}
	for _, p := range d.Payments {
		amount, err := parseAmount(p.Amount)
		if err != nil {
			return nil, spec, fmt.Errorf("payment %d: %w", p.Seq, err)
		}
		paidOn, err := parseDate(p.PaidOn)
		if err != nil {
			return nil, spec, fmt.Errorf("payment %d: %w", p.Seq, err)
		}
		payment := reconciliation.Payment{
			Seq:         reconciliation.PaymentSeq(p.Seq),
			PaidOn:      paidOn,
			Amount:      amount,
			Description: p.Description,
			PeriodLabel: p.PeriodLabel,
		}
		if p.StudentID != "" {
			id := reconciliation.StudentID(p.StudentID)
			payment.StudentID = &id
		}
		if p.ActivityID != "" {
			id := reconciliation.ActivityID(p.ActivityID)
			payment.ActivityID = &id
		}
		snap.Payments = append(snap.Payments, payment)
	}
	for _, c := range d.Credits {
		amount, err := parseAmount(c.Amount)
		if err != nil {
			return nil, spec, fmt.Errorf("credit %s: %w", c.StudentID, err)
		}
		if entry, ok := reconciliation.NewCreditEntry(reconciliation.StudentID(c.StudentID), amount, c.Kind); ok {
			snap.Credits = append(snap.Credits, entry)
		}
	}
	return snap, spec, nil
}

func (s scheduleDoc) toDomain() (reconciliation.ScheduleSpec, error) {
	var spec reconciliation.ScheduleSpec
	amount, err := parseAmount(s.Amount)
	if err != nil {
		return spec, fmt.Errorf("schedule: %w", err)
	}
	first, err := reconciliation.ParseMonth(s.FirstMonth)
	if err != nil {
		return spec, fmt.Errorf("schedule first_month: %w", err)
	}
	last, err := reconciliation.ParseMonth(s.LastMonth)
	if err != nil {
		return spec, fmt.Errorf("schedule last_month: %w", err)
	}
	var cutoff reconciliation.Cutoff
	if strings.TrimSpace(s.Cutoff) != "" {
		if cutoff, err = reconciliation.ParseCutoff(s.Cutoff); err != nil {
			return spec, err
		}
	}
	return reconciliation.ScheduleSpec{Amount: amount, FirstMonth: first, LastMonth: last, Cutoff: cutoff}, nil
}

func parseAmount(value string) (decimal.Decimal, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(value)
}

func parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(dateLayout, value)
}
