package reconciliation

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
)

// PaymentClass is the bucket a payment was classified into.
type PaymentClass string

const (
	ClassRecurringDue PaymentClass = "recurring_due"
	ClassActivity     PaymentClass = "activity"
	ClassUnclassified PaymentClass = "unclassified"
	// ClassOrphaned marks a payment whose direct activity reference points nowhere.
	ClassOrphaned PaymentClass = "orphaned"
)

// MatchRule names the rule that classified a payment.
type MatchRule string

const (
	RuleDirectReference MatchRule = "direct_reference"
	RuleDescription     MatchRule = "description"
	RuleDueMarker       MatchRule = "due_marker"
	RuleNone            MatchRule = "none"
)

// DefaultDueMarkers are the description tokens that mark a recurring-due payment.
var DefaultDueMarkers = []string{"due", "fee"}

// ClassifiedPayment is a payment with its classification.
type ClassifiedPayment struct {
	Payment    Payment
	Class      PaymentClass
	ActivityID ActivityID
	Rule       MatchRule
}

// AmbiguousMatch records a description that matched several activities.
// The first candidate in catalog order was chosen.
type AmbiguousMatch struct {
	Payment    Payment
	Chosen     ActivityID
	Candidates []ActivityID
}

// MatchSummary aggregates classified payments for one student.
type MatchSummary struct {
	DuesPaid     decimal.Decimal
	ActivityPaid map[ActivityID]decimal.Decimal
	Classified   []ClassifiedPayment
	Ambiguous    []AmbiguousMatch
}

// Unclassified returns payments counted in neither bucket, orphaned ones included.
func (m MatchSummary) Unclassified() []ClassifiedPayment {
	var out []ClassifiedPayment
	for _, c := range m.Classified {
		if c.Class == ClassUnclassified || c.Class == ClassOrphaned {
			out = append(out, c)
		}
	}
	return out
}

// Orphaned returns payments whose direct activity reference is unknown.
func (m MatchSummary) Orphaned() []ClassifiedPayment {
	var out []ClassifiedPayment
	for _, c := range m.Classified {
		if c.Class == ClassOrphaned {
			out = append(out, c)
		}
	}
	return out
}

// TotalMatched is the sum of both buckets.
func (m MatchSummary) TotalMatched() decimal.Decimal {
	total := m.DuesPaid
	for _, v := range m.ActivityPaid {
		total = total.Add(v)
	}
	return total
}

// PaymentMatcher classifies a student's payments against the activity catalog.
type PaymentMatcher interface {
	Match(payments []Payment, catalog []Activity) MatchSummary
}

// MatcherOption configures a TextMatcher.
type MatcherOption func(*TextMatcher)

// WithDueMarkers replaces the recurring-due marker tokens. Blank tokens are dropped.
func WithDueMarkers(markers ...string) MatcherOption {
	return func(m *TextMatcher) {
		m.markers = nil
		for _, marker := range markers {
			if strings.TrimSpace(marker) != "" {
				m.markers = append(m.markers, marker)
			}
		}
	}
}

// TextMatcher classifies by direct reference, then activity name contained in
// the description, then recurring-due marker token.
//
// Name matching is a substring test: when several activity names occur in one
// description the first activity in catalog order wins and the payment is
// reported in MatchSummary.Ambiguous.
type TextMatcher struct {
	markers []string
}

// NewTextMatcher builds the default matcher.
func NewTextMatcher(opts ...MatcherOption) *TextMatcher {
	m := &TextMatcher{markers: append([]string(nil), DefaultDueMarkers...)}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Markers returns the configured due markers.
func (m *TextMatcher) Markers() []string { return append([]string(nil), m.markers...) }

// Match implements PaymentMatcher. Each payment lands in at most one bucket.
func (m *TextMatcher) Match(payments []Payment, catalog []Activity) MatchSummary {
	// cases.Caser is stateful, one per call keeps Match safe for parallel rosters.
	fold := cases.Fold()
	normalize := func(s string) string {
		return strings.Join(strings.Fields(fold.String(s)), " ")
	}

	known := make(map[ActivityID]struct{}, len(catalog))
	names := make([]string, len(catalog))
	for i, a := range catalog {
		known[a.ID] = struct{}{}
		names[i] = normalize(a.Name)
	}
	markers := make([]string, 0, len(m.markers))
	for _, marker := range m.markers {
		if n := normalize(marker); n != "" {
			markers = append(markers, n)
		}
	}

	summary := MatchSummary{
		DuesPaid:     decimal.Zero,
		ActivityPaid: make(map[ActivityID]decimal.Decimal),
	}
	credit := func(id ActivityID, amount decimal.Decimal) {
		summary.ActivityPaid[id] = summary.ActivityPaid[id].Add(amount)
	}

	for _, p := range payments {
		c := ClassifiedPayment{Payment: p, Class: ClassUnclassified, Rule: RuleNone}

		if p.ActivityID != nil {
			c.Rule = RuleDirectReference
			if _, ok := known[*p.ActivityID]; ok {
				c.Class = ClassActivity
				c.ActivityID = *p.ActivityID
				credit(c.ActivityID, p.Amount)
			} else {
				c.Class = ClassOrphaned
				c.ActivityID = *p.ActivityID
			}
			summary.Classified = append(summary.Classified, c)
			continue
		}

		desc := normalize(p.Description)
		if desc != "" {
			var candidates []ActivityID
			for i, a := range catalog {
				if names[i] != "" && strings.Contains(desc, names[i]) {
					candidates = append(candidates, a.ID)
				}
			}
			if len(candidates) > 0 {
				c.Class = ClassActivity
				c.ActivityID = candidates[0]
				c.Rule = RuleDescription
				credit(c.ActivityID, p.Amount)
				if len(candidates) > 1 {
					summary.Ambiguous = append(summary.Ambiguous, AmbiguousMatch{
						Payment:    p,
						Chosen:     candidates[0],
						Candidates: candidates,
					})
				}
				summary.Classified = append(summary.Classified, c)
				continue
			}
			for _, marker := range markers {
				if strings.Contains(desc, marker) {
					c.Class = ClassRecurringDue
					c.Rule = RuleDueMarker
					summary.DuesPaid = summary.DuesPaid.Add(p.Amount)
					break
				}
			}
		}
		summary.Classified = append(summary.Classified, c)
	}
	return summary
}
