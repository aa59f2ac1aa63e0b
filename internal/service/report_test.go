package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"microfinance-reports/internal/domain"
	"microfinance-reports/internal/report"
	"microfinance-reports/internal/repository"
)

const serviceFixtures = `
members:
  - {id: 1, full_name: "Nimal Perera", nic: "851234567V", created_at: "2024-02-01"}
  - {id: 2, full_name: "Kamala Silva", nic: "199012345678"}
loans:
  - {id: 1, loan_id: BL1, member_id: 1, loan_amount: "1000", interest_rate: "12", status: disbursed, branch_id: 1, created_at: "2024-01-05"}
  - {id: 2, loan_id: BL2, member_id: 1, loan_amount: "2000", interest_rate: "10", status: settled, branch_id: 1, created_at: "2024-01-10"}
  - {id: 3, loan_id: BL3, member_id: 2, loan_amount: "500", interest_rate: "14", status: overdue, branch_id: 2, created_at: "2024-02-01"}
  - {id: 4, loan_id: ML1, loan_type: ML, member_id: 7, loan_amount: "300", interest_rate: "18", status: disbursed, branch_id: 2, created_at: "2024-02-10"}
  - {id: 5, loan_id: LL1, loan_type: LL, member_id: 2, loan_amount: "900", rental_value: "45", status: disbursed, branch_id: 2, created_at: "2024-02-15"}
installments:
  - {loan_id: 3, installment_number: 1, due_date: "2024-03-01", total_due: "100", capital_due: "80", interest_due: "20", penalty: "5"}
  - {loan_id: 3, installment_number: 2, due_date: "2024-04-01", total_due: "100", capital_due: "80", interest_due: "20"}
payments:
  - {id: 1, loan_id: 1, amount: "250", capital_paid: "200", interest_paid: "50", payment_date: "2024-02-05"}
  - {id: 2, loan_id: 3, amount: "50", capital_paid: "40", interest_paid: "10", payment_date: "2024-02-20"}
`

func newReportService(t *testing.T) (*ReportService, *repository.MemoryStore) {
	t.Helper()
	store, err := repository.ParseFixtures([]byte(serviceFixtures))
	require.NoError(t, err)

	svc := NewReportService(store, store, store, time.UTC, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2024, 4, 15, 10, 0, 0, 0, time.UTC) }
	return svc, store
}

func ids[T any](rows []T, key func(T) string) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, key(r))
	}
	return out
}

func loanRowID(r domain.LoanRow) string       { return r.LoanID }
func arrearsRowID(r domain.ArrearsRow) string { return r.LoanID }

func int64Ptr(v int64) *int64 { return &v }

func TestArrears_ExcludesSettled(t *testing.T) {
	svc, _ := newReportService(t)

	res, err := svc.Arrears(context.Background(), repository.LoansFilter{}, report.NewPageRequest(1, 20))
	require.NoError(t, err)

	assert.Equal(t, []string{"BL1", "BL3", "ML1", "LL1"}, ids(res.Arrears.Data, arrearsRowID))
	assert.Equal(t, int64(4), res.Summary.TotalArrears)
	// 750 + 450 + 300 + 900
	assert.True(t, res.Summary.TotalAmountDue.Equal(decimal.NewFromInt(2400)), res.Summary.TotalAmountDue.String())
	assert.Equal(t, "2024-04-15", res.Filters["date_as_of"])
}

func TestArrears_BranchScenario(t *testing.T) {
	svc, _ := newReportService(t)

	res, err := svc.Arrears(context.Background(), repository.LoansFilter{BranchID: int64Ptr(1)}, report.NewPageRequest(1, 20))
	require.NoError(t, err)

	assert.Equal(t, []string{"BL1"}, ids(res.Arrears.Data, arrearsRowID))
	assert.True(t, res.Summary.TotalAmountDue.Equal(decimal.NewFromInt(750)))

	row := res.Arrears.Data[0]
	assert.True(t, row.TotalDue.Equal(row.OutstandingBalance))
	assert.Equal(t, int64(1), res.Filters["branch_id"])
}

func TestArrears_DaysOverdue(t *testing.T) {
	svc, _ := newReportService(t)
	days := 45

	res, err := svc.Arrears(context.Background(), repository.LoansFilter{MinDaysOverdue: &days}, report.NewPageRequest(1, 20))
	require.NoError(t, err)

	require.Equal(t, []string{"BL3"}, ids(res.Arrears.Data, arrearsRowID))
	assert.Equal(t, 45, res.Arrears.Data[0].DaysOverdue)
	assert.True(t, res.Summary.AverageDaysOverdue.Equal(decimal.NewFromInt(45)))
}

func TestPortfolio_BranchScenario(t *testing.T) {
	svc, _ := newReportService(t)

	res, err := svc.Portfolio(context.Background(), repository.LoansFilter{BranchID: int64Ptr(1)}, report.NewPageRequest(1, 20))
	require.NoError(t, err)

	assert.Equal(t, []string{"BL1", "BL2"}, ids(res.Loans.Data, loanRowID))
	assert.Equal(t, int64(2), res.Summary.TotalLoans)
	assert.True(t, res.Summary.TotalAmount.Equal(decimal.NewFromInt(3000)))
	assert.True(t, res.Summary.AverageInterestRate.Equal(decimal.NewFromInt(11)))
}

func TestPortfolio_SummaryMatchesRowsAcrossPages(t *testing.T) {
	svc, _ := newReportService(t)
	ctx := context.Background()

	all, err := svc.Portfolio(ctx, repository.LoansFilter{}, report.NewPageRequest(1, 500))
	require.NoError(t, err)

	var collected []domain.LoanRow
	for page := 1; page <= 3; page++ {
		res, err := svc.Portfolio(ctx, repository.LoansFilter{}, report.NewPageRequest(page, 2))
		require.NoError(t, err)
		assert.Equal(t, 3, res.Loans.LastPage)
		assert.Equal(t, all.Summary, res.Summary)
		collected = append(collected, res.Loans.Data...)
	}

	assert.Equal(t, ids(all.Loans.Data, loanRowID), ids(collected, loanRowID))
	assert.Equal(t, report.SummarizePortfolio(collected), all.Summary)
	assert.True(t, all.Summary.TotalRentalValue.Equal(decimal.NewFromInt(45)))
}

func TestPortfolio_EmptyResult(t *testing.T) {
	svc, _ := newReportService(t)

	res, err := svc.Portfolio(context.Background(), repository.LoansFilter{BranchID: int64Ptr(0)}, report.NewPageRequest(1, 20))
	require.NoError(t, err)

	assert.Empty(t, res.Loans.Data)
	assert.NotNil(t, res.Loans.Data)
	assert.Equal(t, 1, res.Loans.LastPage)
	assert.True(t, res.Summary.AverageInterestRate.IsZero())
}

func TestLoanDetail(t *testing.T) {
	svc, _ := newReportService(t)

	d, err := svc.LoanDetail(context.Background(), "BL3", time.Time{})
	require.NoError(t, err)

	require.NotNil(t, d.Member)
	assert.Equal(t, "199012345678", d.Member.NIC)
	assert.Len(t, d.Installments, 2)
	assert.Len(t, d.Payments, 1)

	s := d.Summary
	assert.True(t, s.AgreedAmount.Equal(decimal.NewFromInt(500)))
	assert.True(t, s.TotalPaid.Equal(decimal.NewFromInt(50)))
	assert.True(t, s.TotalOutstanding.Equal(decimal.NewFromInt(450)))
	assert.True(t, s.Arrears.Equal(decimal.NewFromInt(200)))
	assert.True(t, s.TotalPenalty.Equal(decimal.NewFromInt(5)))
}

func TestLoanDetail_MissingMemberIsNotAnError(t *testing.T) {
	svc, _ := newReportService(t)

	d, err := svc.LoanDetail(context.Background(), "ML1", time.Time{})
	require.NoError(t, err)
	assert.Nil(t, d.Member)
	assert.IsType(t, domain.MicroLoan{}, d.Record)
}

func TestLoanDetail_NotFound(t *testing.T) {
	svc, _ := newReportService(t)

	_, err := svc.LoanDetail(context.Background(), "BL404", time.Time{})
	assert.ErrorIs(t, err, domain.ErrLoanNotFound)
}

func TestMemberLoans_GroupsByType(t *testing.T) {
	svc, _ := newReportService(t)

	res, err := svc.MemberLoans(context.Background(), "199012345678")
	require.NoError(t, err)

	assert.Equal(t, int64(2), res.Member.ID)
	assert.Len(t, res.BusinessLoans, 1)
	assert.Empty(t, res.MicroLoans)
	assert.Len(t, res.LeaseLoans, 1)
	assert.Equal(t, 2, res.TotalLoans)
	assert.True(t, res.TotalDue.Equal(decimal.NewFromInt(1350)))

	_, err = svc.MemberLoans(context.Background(), "000")
	assert.ErrorIs(t, err, domain.ErrMemberNotFound)
}

func TestDashboard_DefaultsToCurrentMonth(t *testing.T) {
	svc, _ := newReportService(t)

	stats, err := svc.Dashboard(context.Background(), repository.LoansFilter{})
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), stats.DateFrom)
	assert.Equal(t, time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC), stats.DateTo)
	assert.Zero(t, stats.Loans)
}

func TestDashboard_ExplicitRange(t *testing.T) {
	svc, _ := newReportService(t)
	from := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)

	stats, err := svc.Dashboard(context.Background(), repository.LoansFilter{DateFrom: &from, DateTo: &to})
	require.NoError(t, err)

	assert.Equal(t, int64(3), stats.Loans)
	assert.Equal(t, int64(1), stats.LoansByType[domain.LoanTypeLease].Count)
	assert.Equal(t, int64(2), stats.PaymentsCount)
	assert.True(t, stats.AveragePayment.Equal(decimal.NewFromInt(150)))
	assert.Equal(t, int64(1), stats.Members)
}

func TestLoanDetail_ArrearsAsOfDate(t *testing.T) {
	svc, _ := newReportService(t)
	ctx := context.Background()

	d, err := svc.LoanDetail(ctx, "BL3", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, d.Summary.Arrears.Equal(decimal.NewFromInt(100)), d.Summary.Arrears.String())

	d, err = svc.LoanDetail(ctx, "BL3", time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, d.Summary.Arrears.IsZero())
	assert.True(t, d.Summary.TotalOutstanding.Equal(decimal.NewFromInt(450)))
}

func TestReportService_TodayUsesConfiguredLocation(t *testing.T) {
	colombo := time.FixedZone("+0530", 5*3600+1800)
	store, err := repository.ParseFixtures([]byte(serviceFixtures))
	require.NoError(t, err)

	svc := NewReportService(store, store, store, colombo, zap.NewNop())
	// 20:00 UTC on the 15th is already the 16th in Colombo
	svc.now = func() time.Time { return time.Date(2024, 4, 15, 20, 0, 0, 0, time.UTC) }

	assert.Equal(t, time.Date(2024, 4, 16, 0, 0, 0, 0, colombo), svc.today())

	res, err := svc.Arrears(context.Background(), repository.LoansFilter{}, report.NewPageRequest(1, 20))
	require.NoError(t, err)
	assert.Equal(t, "2024-04-16", res.Filters["date_as_of"])

	assert.Same(t, time.Local, NewReportService(nil, nil, nil, nil, zap.NewNop()).loc)
}

type brokenLoans struct {
	LoanRepository
}

func (brokenLoans) Totals(context.Context, repository.LoansFilter) (report.Totals, error) {
	return report.Totals{}, errors.New("db down")
}

func TestPortfolio_PropagatesErrors(t *testing.T) {
	svc := NewReportService(brokenLoans{}, nil, nil, time.UTC, zap.NewNop())

	_, err := svc.Portfolio(context.Background(), repository.LoansFilter{}, report.NewPageRequest(1, 20))
	assert.ErrorContains(t, err, "db down")
}
