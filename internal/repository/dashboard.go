package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"microfinance-reports/internal/domain"
)

type DashboardRepository struct {
	db *sql.DB
}

func NewDashboardRepository(db *sql.DB) *DashboardRepository {
	return &DashboardRepository{db: db}
}

// DashboardStats counts loans, payments and new members created between from
// and to (inclusive days). The loan filter narrows the loan and payment figures.
func (r *DashboardRepository) DashboardStats(ctx context.Context, f LoansFilter, from, to time.Time) (domain.DashboardStats, error) {
	f.DateFrom = &from
	f.DateTo = &to

	stats := domain.DashboardStats{
		DateFrom:    from,
		DateTo:      to,
		LoansByType: map[domain.LoanType]domain.LoanTypeTotals{},
	}

	where, args, _ := buildLoansWhere(f, 2)
	args = append([]any{f.asOf()}, args...)

	query := loanRowsCTE + `
		SELECT r.loan_type, COUNT(*), COALESCE(SUM(r.loan_amount), 0)
		FROM loan_rows r
		WHERE ` + where + `
		GROUP BY r.loan_type`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return stats, fmt.Errorf("query loan stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			loanType string
			totals   domain.LoanTypeTotals
		)
		if err := rows.Scan(&loanType, &totals.Count, &totals.Amount); err != nil {
			return stats, err
		}
		stats.LoansByType[domain.LoanType(loanType)] = totals
		stats.Loans += totals.Count
		stats.LoanAmount = stats.LoanAmount.Add(totals.Amount)
	}
	if err := rows.Err(); err != nil {
		return stats, err
	}

	// payments are narrowed by branch and loan type through their loan
	pf := LoansFilter{BranchID: f.BranchID, LoanType: f.LoanType, AsOf: f.AsOf}
	pwhere, pargs, i := buildLoansWhere(pf, 2)
	pargs = append([]any{f.asOf()}, pargs...)
	pargs = append(pargs, domain.TruncateDay(from), domain.TruncateDay(to).AddDate(0, 0, 1))

	pquery := loanRowsCTE + fmt.Sprintf(`
		SELECT COUNT(p.id), COALESCE(SUM(p.amount), 0)
		FROM payments p
		JOIN loan_rows r ON r.id = p.loan_id
		WHERE %s AND p.payment_date >= $%d AND p.payment_date < $%d`, pwhere, i, i+1)

	var paymentsSum decimal.Decimal
	if err := r.db.QueryRowContext(ctx, pquery, pargs...).Scan(&stats.PaymentsCount, &paymentsSum); err != nil {
		return stats, fmt.Errorf("query payment stats: %w", err)
	}
	stats.Payments = paymentsSum
	if stats.PaymentsCount > 0 {
		stats.AveragePayment = paymentsSum.Div(decimal.NewFromInt(stats.PaymentsCount)).Round(2)
	}

	mquery := `SELECT COUNT(*) FROM members m WHERE m.created_at >= $1 AND m.created_at < $2`
	if err := r.db.QueryRowContext(ctx, mquery, domain.TruncateDay(from), domain.TruncateDay(to).AddDate(0, 0, 1)).Scan(&stats.Members); err != nil {
		return stats, fmt.Errorf("query member stats: %w", err)
	}

	return stats, nil
}
