package report

import (
	"time"

	"github.com/shopspring/decimal"

	"microfinance-reports/internal/domain"
)

// FillDerived sets the payment and arrears columns of a row from the loan's
// schedule and payments as of asOf.
func FillDerived(row *domain.LoanRow, installments []domain.Installment, payments []domain.Payment, asOf time.Time) {
	paid := decimal.Zero
	for _, p := range payments {
		paid = paid.Add(p.Amount)
	}
	row.PaymentsMade = paid
	row.OutstandingBalance = row.LoanAmount.Sub(paid)

	row.DueDate = nil
	row.DaysOverdue = 0
	row.OverdueAmount = decimal.Zero
	for _, inst := range installments {
		if !inst.IsOverdue(asOf) {
			continue
		}
		row.OverdueAmount = row.OverdueAmount.Add(inst.TotalDue)
		if row.DueDate == nil || inst.DueDate.Before(*row.DueDate) {
			due := inst.DueDate
			row.DueDate = &due
		}
	}
	if row.DueDate != nil {
		if days := domain.DaysBetween(*row.DueDate, asOf); days > 0 {
			row.DaysOverdue = days
		}
	}
}

// SummarizeLoanDetail derives the loan-details summary block.
func SummarizeLoanDetail(loan domain.Loan, installments []domain.Installment, payments []domain.Payment, asOf time.Time) domain.LoanDetailSummary {
	s := domain.LoanDetailSummary{
		AgreedAmount: loan.Amount,
		LoanType:     loan.Type,
	}
	for _, p := range payments {
		s.TotalPaid = s.TotalPaid.Add(p.Amount)
		s.CapitalPaid = s.CapitalPaid.Add(p.CapitalPaid)
		s.InterestPaid = s.InterestPaid.Add(p.InterestPaid)
	}
	for _, inst := range installments {
		if inst.IsOverdue(asOf) {
			s.Arrears = s.Arrears.Add(inst.TotalDue)
		}
		s.TotalPenalty = s.TotalPenalty.Add(inst.Penalty)
		s.CapitalOutstanding = s.CapitalOutstanding.Add(inst.CapitalDue)
		s.InterestDue = s.InterestDue.Add(inst.InterestDue)
	}
	s.TotalOutstanding = s.AgreedAmount.Sub(s.TotalPaid)
	s.TotalDue = s.CapitalOutstanding.Add(s.InterestDue)
	return s
}
