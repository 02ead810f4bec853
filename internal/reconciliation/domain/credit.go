package reconciliation

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Raw ledger kinds as stored by the data provider.
const (
	LedgerKindCreditBalance      = "credit_balance"
	LedgerKindPaymentRedirection = "payment_redirection"
)

// CreditEntry is a credit ledger row. The two variants are StandingCredit and Redirection.
type CreditEntry interface {
	Student() StudentID
	creditEntry()
}

// StandingCredit is credit available to offset any obligation.
type StandingCredit struct {
	StudentID StudentID
	Amount    decimal.Decimal
}

// Redirection records a prior payment reassigned to recurring dues.
// Amount is the absolute value of the ledger row; it is already consumed.
type Redirection struct {
	StudentID StudentID
	Amount    decimal.Decimal
}

func (c StandingCredit) Student() StudentID { return c.StudentID }
func (StandingCredit) creditEntry()         {}
func (r Redirection) Student() StudentID    { return r.StudentID }
func (Redirection) creditEntry()            {}

// NewCreditEntry maps a raw signed ledger row into its variant.
// Unknown kinds report false.
func NewCreditEntry(studentID StudentID, signedAmount decimal.Decimal, kind string) (CreditEntry, bool) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case LedgerKindCreditBalance:
		return StandingCredit{StudentID: studentID, Amount: signedAmount}, true
	case LedgerKindPaymentRedirection:
		return Redirection{StudentID: studentID, Amount: signedAmount.Abs()}, true
	default:
		return nil, false
	}
}

// creditPosition is the per-student aggregate of credit ledger entries.
type creditPosition struct {
	standing     decimal.Decimal
	redirections []decimal.Decimal
}

func collectCredits(entries []CreditEntry, id StudentID) creditPosition {
	pos := creditPosition{standing: decimal.Zero}
	for _, entry := range entries {
		if entry == nil || entry.Student() != id {
			continue
		}
		switch e := entry.(type) {
		case StandingCredit:
			pos.standing = pos.standing.Add(e.Amount)
		case Redirection:
			pos.redirections = append(pos.redirections, e.Amount.Abs())
		}
	}
	return pos
}
