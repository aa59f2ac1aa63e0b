package report

import (
	"github.com/shopspring/decimal"

	"microfinance-reports/internal/domain"
)

const (
	rateScale = 4
	daysScale = 2
)

// Totals are the raw sums a summary is derived from. Sources that aggregate in
// SQL fill this directly; the in-memory source uses Accumulate.
type Totals struct {
	Count            int64
	Amount           decimal.Decimal
	InterestRateSum  decimal.Decimal
	Outstanding      decimal.Decimal
	RentalValue      decimal.Decimal
	DaysOverdueSum   int64
	OverdueAmountSum decimal.Decimal
}

func Accumulate(rows []domain.LoanRow) Totals {
	var t Totals
	for _, r := range rows {
		t.Count++
		t.Amount = t.Amount.Add(r.LoanAmount)
		t.InterestRateSum = t.InterestRateSum.Add(r.InterestRate)
		t.Outstanding = t.Outstanding.Add(r.OutstandingBalance)
		t.RentalValue = t.RentalValue.Add(r.RentalValue)
		t.DaysOverdueSum += int64(r.DaysOverdue)
		t.OverdueAmountSum = t.OverdueAmountSum.Add(r.OverdueAmount)
	}
	return t
}

// mean is sum/count, zero for an empty set.
func mean(sum decimal.Decimal, count int64, scale int32) decimal.Decimal {
	if count == 0 {
		return decimal.Zero
	}
	return sum.Div(decimal.NewFromInt(count)).Round(scale)
}

func (t Totals) Portfolio() domain.PortfolioSummary {
	return domain.PortfolioSummary{
		TotalLoans:          t.Count,
		TotalAmount:         t.Amount,
		AverageInterestRate: mean(t.InterestRateSum, t.Count, rateScale),
		TotalOutstanding:    t.Outstanding,
		TotalRentalValue:    t.RentalValue,
	}
}

// Arrears uses the outstanding balance as the amount due of each loan.
func (t Totals) Arrears() domain.ArrearsSummary {
	return domain.ArrearsSummary{
		TotalArrears:       t.Count,
		TotalAmountDue:     t.Outstanding,
		AverageDaysOverdue: mean(decimal.NewFromInt(t.DaysOverdueSum), t.Count, daysScale),
	}
}

func SummarizePortfolio(rows []domain.LoanRow) domain.PortfolioSummary {
	return Accumulate(rows).Portfolio()
}

func SummarizeArrears(rows []domain.LoanRow) domain.ArrearsSummary {
	return Accumulate(rows).Arrears()
}
