package application

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"

	reconciliation "school-treasury/internal/reconciliation/domain"
)

// IssueKind classifies a snapshot data issue.
type IssueKind string

const (
	IssueNegativeCredit           IssueKind = "negative_credit"
	IssueUnknownStudent           IssueKind = "unknown_student"
	IssueUnknownActivity          IssueKind = "unknown_activity"
	IssueUnattributedPayment      IssueKind = "unattributed_payment"
	IssueDuplicatePayment         IssueKind = "duplicate_payment_seq"
	IssueNonPositiveCharge        IssueKind = "non_positive_charge"
	IssueOverlappingActivityNames IssueKind = "overlapping_activity_names"
)

// Issue is one data inconsistency. The engine tolerates all of them; callers
// that need strict data check the issue list before trusting a result.
type Issue struct {
	Kind       IssueKind
	StudentID  reconciliation.StudentID
	ActivityID reconciliation.ActivityID
	PaymentSeq reconciliation.PaymentSeq
	Detail     string
}

// ValidateSnapshot lists data issues without modifying the snapshot.
func ValidateSnapshot(snap *reconciliation.Snapshot) []Issue {
	if snap == nil {
		return nil
	}
	var issues []Issue

	students := make(map[reconciliation.StudentID]struct{}, len(snap.Students))
	for _, st := range snap.Students {
		students[st.ID] = struct{}{}
	}
	activities := make(map[reconciliation.ActivityID]struct{}, len(snap.Activities))
	for _, a := range snap.Activities {
		activities[a.ID] = struct{}{}
		if !a.Charge.IsPositive() {
			issues = append(issues, Issue{Kind: IssueNonPositiveCharge, ActivityID: a.ID, Detail: a.Charge.String()})
		}
	}

	seqs := make(map[reconciliation.PaymentSeq]int, len(snap.Payments))
	for _, p := range snap.Payments {
		seqs[p.Seq]++
		if seqs[p.Seq] == 2 {
			issues = append(issues, Issue{Kind: IssueDuplicatePayment, PaymentSeq: p.Seq})
		}
		if p.StudentID == nil {
			issues = append(issues, Issue{Kind: IssueUnattributedPayment, PaymentSeq: p.Seq, Detail: p.Description})
		} else if _, ok := students[*p.StudentID]; !ok {
			issues = append(issues, Issue{Kind: IssueUnknownStudent, StudentID: *p.StudentID, PaymentSeq: p.Seq})
		}
		if p.ActivityID != nil {
			if _, ok := activities[*p.ActivityID]; !ok {
				issues = append(issues, Issue{Kind: IssueUnknownActivity, ActivityID: *p.ActivityID, PaymentSeq: p.Seq})
			}
		}
	}

	for _, ex := range snap.Exclusions {
		if _, ok := students[ex.StudentID]; !ok {
			issues = append(issues, Issue{Kind: IssueUnknownStudent, StudentID: ex.StudentID, ActivityID: ex.ActivityID, Detail: "exclusion"})
		}
		if _, ok := activities[ex.ActivityID]; !ok {
			issues = append(issues, Issue{Kind: IssueUnknownActivity, StudentID: ex.StudentID, ActivityID: ex.ActivityID, Detail: "exclusion"})
		}
	}

	standing := make(map[reconciliation.StudentID]decimal.Decimal)
	for _, c := range snap.Credits {
		if c == nil {
			continue
		}
		if _, ok := students[c.Student()]; !ok {
			issues = append(issues, Issue{Kind: IssueUnknownStudent, StudentID: c.Student(), Detail: "credit ledger"})
		}
		if sc, ok := c.(reconciliation.StandingCredit); ok {
			standing[sc.StudentID] = standing[sc.StudentID].Add(sc.Amount)
		}
	}
	ids := make([]reconciliation.StudentID, 0, len(standing))
	for id := range standing {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if standing[id].IsNegative() {
			issues = append(issues, Issue{Kind: IssueNegativeCredit, StudentID: id, Detail: standing[id].String()})
		}
	}

	issues = append(issues, overlappingNames(snap.Activities)...)
	return issues
}

// overlappingNames flags activity names contained in another activity's name,
// where description matching can pick the wrong activity.
func overlappingNames(activities []reconciliation.Activity) []Issue {
	fold := cases.Fold()
	names := make([]string, len(activities))
	for i, a := range activities {
		names[i] = strings.Join(strings.Fields(fold.String(a.Name)), " ")
	}
	var issues []Issue
	for i := range activities {
		for j := range activities {
			if i == j || names[i] == "" || names[j] == "" {
				continue
			}
			if strings.Contains(names[j], names[i]) && (names[i] != names[j] || i < j) {
				issues = append(issues, Issue{
					Kind:       IssueOverlappingActivityNames,
					ActivityID: activities[i].ID,
					Detail:     fmt.Sprintf("%q is contained in %q (%s)", activities[i].Name, activities[j].Name, activities[j].ID),
				})
			}
		}
	}
	return issues
}
