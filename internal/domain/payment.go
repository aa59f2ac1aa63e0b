package domain

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

type Payment struct {
	ID              int64           `json:"id"`
	LoanID          int64           `json:"loan_id"`
	MemberID        *int64          `json:"member_id"`
	UserID          *int64          `json:"user_id"`
	Amount          decimal.Decimal `json:"amount"`
	CapitalPaid     decimal.Decimal `json:"capital_paid"`
	InterestPaid    decimal.Decimal `json:"interest_paid"`
	PaymentDate     time.Time       `json:"payment_date"`
	PaymentMethod   string          `json:"payment_method"`
	ReferenceNumber *string         `json:"reference_number"`
}

const (
	InstallmentPending = "pending"
	InstallmentPaid    = "paid"
	InstallmentOverdue = "overdue"
)

// Installment is one entry of a loan's repayment schedule.
type Installment struct {
	LoanID            int64           `json:"-"`
	InstallmentNumber int             `json:"installment_number"`
	DueDate           time.Time       `json:"installment_date"`
	TotalDue          decimal.Decimal `json:"total_due"`
	PaidAmount        decimal.Decimal `json:"paid_amount"`
	PaidDate          *time.Time      `json:"paid_date"`
	Status            string          `json:"status"`
	CapitalDue        decimal.Decimal `json:"capital_due"`
	InterestDue       decimal.Decimal `json:"interest_due"`
	Penalty           decimal.Decimal `json:"penalty"`
}

// IsOverdue reports whether the installment is in arrears on asOf: either marked
// overdue by the servicing system, or unpaid with a due date before asOf.
func (i Installment) IsOverdue(asOf time.Time) bool {
	if i.Status == InstallmentOverdue {
		return true
	}
	if i.Status == InstallmentPaid {
		return false
	}
	return TruncateDay(i.DueDate).Before(TruncateDay(asOf))
}

// TruncateDay drops the clock part, keeping the location.
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DaysBetween counts whole calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	a = TruncateDay(a)
	b = time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, a.Location())
	return int(math.Round(b.Sub(a).Hours() / 24))
}
