package reconciliation

import (
	"time"

	"github.com/shopspring/decimal"
)

// TenantID identifies a school (tenant).
type TenantID string

// StudentID identifies a student within a tenant.
type StudentID string

// ActivityID identifies an activity within a tenant.
type ActivityID string

// PaymentSeq is the per-tenant payment sequence number.
type PaymentSeq int64

// Student is an enrolled student. EnrolledOn never changes after enrollment.
type Student struct {
	ID         StudentID
	TenantID   TenantID
	Name       string
	EnrolledOn time.Time
}

// Activity is a one-off charge tied to a dated event. Undated activities are never owed.
type Activity struct {
	ID       ActivityID
	Name     string
	Charge   decimal.Decimal
	OccursOn *time.Time
}

// Dated reports whether the activity has an occurrence date.
func (a Activity) Dated() bool { return a.OccursOn != nil && !a.OccursOn.IsZero() }

// Exclusion exempts one student from one activity.
type Exclusion struct {
	StudentID  StudentID
	ActivityID ActivityID
}

// Payment is an append-only income record.
type Payment struct {
	Seq         PaymentSeq
	PaidOn      time.Time
	Amount      decimal.Decimal
	StudentID   *StudentID
	Description string
	ActivityID  *ActivityID
	PeriodLabel string
}

// BelongsTo reports whether the payment references the student.
func (p Payment) BelongsTo(id StudentID) bool {
	return p.StudentID != nil && *p.StudentID == id
}

// Snapshot is one consistent read of a tenant's ledger data.
type Snapshot struct {
	TenantID   TenantID
	Schedule   RecurringDueSchedule
	Students   []Student
	Activities []Activity
	Exclusions []Exclusion
	Payments   []Payment
	Credits    []CreditEntry
}

// Student looks up a student by id.
func (s *Snapshot) Student(id StudentID) (Student, bool) {
	for _, st := range s.Students {
		if st.ID == id {
			return st, true
		}
	}
	return Student{}, false
}

// StudentIDs lists every student id in snapshot order.
func (s *Snapshot) StudentIDs() []StudentID {
	ids := make([]StudentID, 0, len(s.Students))
	for _, st := range s.Students {
		ids = append(ids, st.ID)
	}
	return ids
}
