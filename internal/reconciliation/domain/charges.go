package reconciliation

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// ActivityCharge is one activity a student is liable for.
type ActivityCharge struct {
	Activity Activity
	Gross    decimal.Decimal
	Paid     decimal.Decimal
	Owed     decimal.Decimal
}

// OrderActivities returns a copy sorted by occurrence date then id.
// Undated activities sort last.
func OrderActivities(activities []Activity) []Activity {
	out := append([]Activity(nil), activities...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch {
		case a.Dated() && !b.Dated():
			return true
		case !a.Dated() && b.Dated():
			return false
		case a.Dated() && b.Dated() && !a.OccursOn.Equal(*b.OccursOn):
			return a.OccursOn.Before(*b.OccursOn)
		}
		return a.ID < b.ID
	})
	return out
}

func exclusionsFor(exclusions []Exclusion, id StudentID) map[ActivityID]struct{} {
	set := make(map[ActivityID]struct{})
	for _, ex := range exclusions {
		if ex.StudentID == id {
			set[ex.ActivityID] = struct{}{}
		}
	}
	return set
}

// ResolveCharges lists the activities the student owes, in the order of the
// given catalog, each net of payments matched to it. Owed is floored at zero.
func ResolveCharges(student Student, catalog []Activity, exclusions []Exclusion, paid map[ActivityID]decimal.Decimal, asOf time.Time) []ActivityCharge {
	excluded := exclusionsFor(exclusions, student.ID)
	var charges []ActivityCharge
	for _, a := range catalog {
		if !a.Dated() || !onOrBefore(*a.OccursOn, asOf) {
			continue
		}
		if _, ok := excluded[a.ID]; ok {
			continue
		}
		if !student.EnrolledOn.IsZero() && !onOrBefore(student.EnrolledOn, *a.OccursOn) {
			continue
		}
		gross := nonNegative(a.Charge)
		p := paid[a.ID]
		charges = append(charges, ActivityCharge{
			Activity: a,
			Gross:    gross,
			Paid:     p,
			Owed:     nonNegative(gross.Sub(p)),
		})
	}
	return charges
}
