package main

import (
	"time"

	"github.com/shopspring/decimal"

	"school-treasury/internal/reconciliation/application"
	reconciliation "school-treasury/internal/reconciliation/domain"
)

type periodDTO struct {
	Period      string          `json:"period"`
	Label       string          `json:"label"`
	Due         decimal.Decimal `json:"due"`
	Paid        decimal.Decimal `json:"paid"`
	Outstanding decimal.Decimal `json:"outstanding"`
}

type activityDTO struct {
	ActivityID    string          `json:"activity_id"`
	Name          string          `json:"name"`
	OccursOn      string          `json:"occurs_on"`
	Gross         decimal.Decimal `json:"gross"`
	Paid          decimal.Decimal `json:"paid"`
	CreditApplied decimal.Decimal `json:"credit_applied"`
	Owed          decimal.Decimal `json:"owed"`
}

type paymentDTO struct {
	Seq         int64           `json:"seq"`
	PaidOn      string          `json:"paid_on,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description,omitempty"`
	Class       string          `json:"class"`
	ActivityID  string          `json:"activity_id,omitempty"`
	Candidates  []string        `json:"candidates,omitempty"`
}

type studentDTO struct {
	TenantID           string          `json:"tenant_id"`
	StudentID          string          `json:"student_id"`
	AsOf               string          `json:"as_of"`
	ExpectedDues       decimal.Decimal `json:"expected_dues"`
	DuesPaid           decimal.Decimal `json:"dues_paid"`
	RedirectionApplied decimal.Decimal `json:"redirection_applied"`
	DueBalance         decimal.Decimal `json:"due_balance"`
	UnpaidPeriods      []periodDTO     `json:"unpaid_periods"`
	OwedActivities     []activityDTO   `json:"owed_activities"`
	ActivityBalance    decimal.Decimal `json:"activity_balance"`
	TotalOwed          decimal.Decimal `json:"total_owed"`
	TotalPaid          decimal.Decimal `json:"total_paid"`
	CreditAvailable    decimal.Decimal `json:"credit_available"`
	CreditConsumed     decimal.Decimal `json:"credit_consumed"`
	CreditRemaining    decimal.Decimal `json:"credit_remaining"`
	Unclassified       []paymentDTO    `json:"unclassified,omitempty"`
	Ambiguous          []paymentDTO    `json:"ambiguous,omitempty"`
}

type totalsDTO struct {
	Students           int             `json:"students"`
	TotalExpected      decimal.Decimal `json:"total_expected"`
	TotalOwed          decimal.Decimal `json:"total_owed"`
	TotalPaid          decimal.Decimal `json:"total_paid"`
	RedirectionApplied decimal.Decimal `json:"redirection_applied"`
	CreditConsumed     decimal.Decimal `json:"credit_consumed"`
	CreditRemaining    decimal.Decimal `json:"credit_remaining"`
	Discrepancy        decimal.Decimal `json:"discrepancy"`
	Unclassified       int             `json:"unclassified"`
	Ambiguous          int             `json:"ambiguous"`
}

type rosterDTO struct {
	TenantID string       `json:"tenant_id"`
	AsOf     string       `json:"as_of"`
	Students []studentDTO `json:"students"`
	Totals   totalsDTO    `json:"totals"`
}

type issueDTO struct {
	Kind       string `json:"kind"`
	StudentID  string `json:"student_id,omitempty"`
	ActivityID string `json:"activity_id,omitempty"`
	PaymentSeq int64  `json:"payment_seq,omitempty"`
	Detail     string `json:"detail,omitempty"`
}

type validateDTO struct {
	TenantID string     `json:"tenant_id"`
	Issues   []issueDTO `json:"issues"`
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

func studentOutput(res reconciliation.ReconciliationResult) studentDTO {
	out := studentDTO{
		TenantID:           string(res.TenantID),
		StudentID:          string(res.StudentID),
		AsOf:               formatDate(res.AsOf),
		ExpectedDues:       res.Expected.Total,
		DuesPaid:           res.DuePaid,
		RedirectionApplied: res.RedirectionApplied,
		DueBalance:         res.DueBalance,
		UnpaidPeriods:      make([]periodDTO, 0, len(res.UnpaidPeriods)),
		OwedActivities:     make([]activityDTO, 0, len(res.OwedActivities)),
		ActivityBalance:    res.ActivityBalance,
		TotalOwed:          res.TotalOwed,
		TotalPaid:          res.TotalPaid,
		CreditAvailable:    res.CreditAvailable,
		CreditConsumed:     res.CreditConsumed,
		CreditRemaining:    res.CreditRemaining,
	}
	for _, p := range res.UnpaidPeriods {
		out.UnpaidPeriods = append(out.UnpaidPeriods, periodDTO{
			Period:      p.Period.String(),
			Label:       p.Period.Label(),
			Due:         p.Due,
			Paid:        p.Paid,
			Outstanding: p.Outstanding,
		})
	}
	for _, a := range res.OwedActivities {
		out.OwedActivities = append(out.OwedActivities, activityDTO{
			ActivityID:    string(a.ActivityID),
			Name:          a.Name,
			OccursOn:      formatDate(a.OccursOn),
			Gross:         a.Gross,
			Paid:          a.Paid,
			CreditApplied: a.CreditApplied,
			Owed:          a.Owed,
		})
	}
	for _, c := range res.Unclassified {
		out.Unclassified = append(out.Unclassified, paymentOutput(c.Payment, string(c.Class), c.ActivityID))
	}
	for _, a := range res.Ambiguous {
		dto := paymentOutput(a.Payment, string(reconciliation.ClassActivity), a.Chosen)
		for _, id := range a.Candidates {
			dto.Candidates = append(dto.Candidates, string(id))
		}
		out.Ambiguous = append(out.Ambiguous, dto)
	}
	return out
}

func paymentOutput(p reconciliation.Payment, class string, activityID reconciliation.ActivityID) paymentDTO {
	return paymentDTO{
		Seq:         int64(p.Seq),
		PaidOn:      formatDate(p.PaidOn),
		Amount:      p.Amount,
		Description: p.Description,
		Class:       class,
		ActivityID:  string(activityID),
	}
}

func rosterOutput(roster reconciliation.RosterResult) rosterDTO {
	t := roster.Totals
	out := rosterDTO{
		TenantID: string(roster.TenantID),
		AsOf:     formatDate(roster.AsOf),
		Students: make([]studentDTO, 0, len(roster.Order)),
		Totals: totalsDTO{
			Students:           t.Students,
			TotalExpected:      t.TotalExpected,
			TotalOwed:          t.TotalOwed,
			TotalPaid:          t.TotalPaid,
			RedirectionApplied: t.RedirectionApplied,
			CreditConsumed:     t.CreditConsumed,
			CreditRemaining:    t.CreditRemaining,
			Discrepancy:        t.Discrepancy,
			Unclassified:       t.Unclassified,
			Ambiguous:          t.Ambiguous,
		},
	}
	for _, id := range roster.Order {
		out.Students = append(out.Students, studentOutput(roster.Results[id]))
	}
	return out
}

func issuesOutput(tenantID reconciliation.TenantID, issues []application.Issue) validateDTO {
	out := validateDTO{TenantID: string(tenantID), Issues: make([]issueDTO, 0, len(issues))}
	for _, issue := range issues {
		out.Issues = append(out.Issues, issueDTO{
			Kind:       string(issue.Kind),
			StudentID:  string(issue.StudentID),
			ActivityID: string(issue.ActivityID),
			PaymentSeq: int64(issue.PaymentSeq),
			Detail:     issue.Detail,
		})
	}
	return out
}
