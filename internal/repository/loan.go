package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"microfinance-reports/internal/domain"
	"microfinance-reports/internal/report"
)

// loanRowsCTE joins every loan application with its member, its payment total
// and its overdue installments as of $1.
const loanRowsCTE = `
	WITH paid AS (
		SELECT p.loan_id, SUM(p.amount) AS total_paid
		FROM payments p
		GROUP BY p.loan_id
	),
	overdue AS (
		SELECT
			i.loan_id,
			MIN(i.due_date)  AS first_due,
			SUM(i.total_due) AS overdue_amount
		FROM loan_installments i
		WHERE i.status = 'overdue'
		   OR (i.status <> 'paid' AND i.due_date < $1::date)
		GROUP BY i.loan_id
	),
	loan_rows AS (
		SELECT
			l.id,
			l.loan_id,
			l.loan_type,
			l.loan_amount,
			COALESCE(l.interest_rate, 0) AS interest_rate,
			COALESCE(l.installments, 0)  AS installments,
			l.status,
			l.branch_id,
			l.branch_name,
			l.product_name,
			l.credit_officer,
			l.repayment_method,
			COALESCE(l.rental_value, 0)  AS rental_value,
			l.created_at,

			m.id        AS member_id,
			m.full_name AS member_name,
			m.nic       AS member_nic,
			m.phone     AS member_phone,
			m.address   AS member_address,

			COALESCE(pd.total_paid, 0)                 AS payments_made,
			l.loan_amount - COALESCE(pd.total_paid, 0) AS outstanding_balance,

			od.first_due                                              AS due_date,
			GREATEST(COALESCE($1::date - od.first_due::date, 0), 0)   AS days_overdue,
			COALESCE(od.overdue_amount, 0)                            AS overdue_amount
		FROM loan_applications l
		LEFT JOIN members m  ON m.id = l.member_id
		LEFT JOIN paid    pd ON pd.loan_id = l.id
		LEFT JOIN overdue od ON od.loan_id = l.id
	)
`

const loanRowColumns = `
	r.id, r.loan_id, r.loan_type, r.loan_amount, r.interest_rate, r.installments, r.status,
	r.branch_id, r.branch_name, r.product_name, r.credit_officer, r.repayment_method,
	r.rental_value, r.created_at,
	r.member_id, r.member_name, r.member_nic, r.member_phone, r.member_address,
	r.payments_made, r.outstanding_balance, r.due_date, r.days_overdue, r.overdue_amount
`

type LoanRepository struct {
	db *sql.DB
}

func NewLoanRepository(db *sql.DB) *LoanRepository {
	return &LoanRepository{db: db}
}

// List returns the filtered rows ordered by internal id. A limit <= 0 returns
// the whole filtered set.
func (r *LoanRepository) List(ctx context.Context, f LoansFilter, limit, offset int) ([]domain.LoanRow, error) {
	where, args, i := buildLoansWhere(f, 2)
	args = append([]any{f.asOf()}, args...)

	query := loanRowsCTE + " SELECT " + loanRowColumns + " FROM loan_rows r WHERE " + where + " ORDER BY r.id"
	if limit > 0 {
		if offset < 0 {
			offset = 0
		}
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", i, i+1)
		args = append(args, limit, offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query loan rows: %w", err)
	}
	defer rows.Close()

	result := []domain.LoanRow{}
	for rows.Next() {
		var (
			row      domain.LoanRow
			loanType string
			status   sql.NullString
		)
		if err := rows.Scan(
			&row.ID,
			&row.LoanID,
			&loanType,
			&row.LoanAmount,
			&row.InterestRate,
			&row.Installments,
			&status,
			&row.BranchID,
			&row.BranchName,
			&row.ProductName,
			&row.CreditOfficer,
			&row.RepaymentMethod,
			&row.RentalValue,
			&row.ApplicationDate,

			&row.MemberID,
			&row.MemberName,
			&row.MemberNIC,
			&row.MemberPhone,
			&row.MemberAddress,

			&row.PaymentsMade,
			&row.OutstandingBalance,
			&row.DueDate,
			&row.DaysOverdue,
			&row.OverdueAmount,
		); err != nil {
			return nil, fmt.Errorf("scan loan row: %w", err)
		}
		row.LoanType = domain.LoanType(loanType)
		row.Status = status.String
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Totals aggregates over the whole filtered set, independent of paging.
func (r *LoanRepository) Totals(ctx context.Context, f LoansFilter) (report.Totals, error) {
	where, args, _ := buildLoansWhere(f, 2)
	args = append([]any{f.asOf()}, args...)

	query := loanRowsCTE + `
		SELECT
			COUNT(*),
			COALESCE(SUM(r.loan_amount), 0),
			COALESCE(SUM(r.interest_rate), 0),
			COALESCE(SUM(r.outstanding_balance), 0),
			COALESCE(SUM(r.rental_value), 0),
			COALESCE(SUM(r.days_overdue), 0),
			COALESCE(SUM(r.overdue_amount), 0)
		FROM loan_rows r WHERE ` + where

	var t report.Totals
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&t.Count,
		&t.Amount,
		&t.InterestRateSum,
		&t.Outstanding,
		&t.RentalValue,
		&t.DaysOverdueSum,
		&t.OverdueAmountSum,
	); err != nil {
		return report.Totals{}, fmt.Errorf("aggregate loan rows: %w", err)
	}
	return t, nil
}

func (r *LoanRepository) HasMoreThan(ctx context.Context, limit int64, f LoansFilter) (bool, error) {
	where, args, i := buildLoansWhere(f, 2)
	args = append([]any{f.asOf()}, args...)
	args = append(args, limit)

	query := loanRowsCTE + fmt.Sprintf(" SELECT COUNT(*) > $%d FROM loan_rows r WHERE %s", i, where)

	var tooMany bool
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&tooMany); err != nil {
		return false, err
	}
	return tooMany, nil
}

// FindLoan looks a loan up by business key, falling back to the internal id
// when key is numeric. A business key match wins over an id match.
func (r *LoanRepository) FindLoan(ctx context.Context, key string) (domain.LoanRecord, error) {
	var internalID *int64
	if id, err := strconv.ParseInt(key, 10, 64); err == nil {
		internalID = &id
	}

	query := `
		SELECT
			l.id, l.loan_id, l.loan_type, l.member_id, l.loan_amount,
			COALESCE(l.interest_rate, 0), COALESCE(l.installments, 0), l.status,
			l.branch_id, l.branch_name, l.product_name, l.credit_officer, l.repayment_method,
			COALESCE(l.rental_value, 0), l.cbo_name, l.created_at
		FROM loan_applications l
		WHERE l.loan_id = $1 OR ($2::bigint IS NOT NULL AND l.id = $2)
		ORDER BY (l.loan_id = $1) DESC, l.id
		LIMIT 1
	`

	var (
		loan     domain.Loan
		loanType string
		status   sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, key, internalID).Scan(
		&loan.ID,
		&loan.LoanID,
		&loanType,
		&loan.MemberID,
		&loan.Amount,
		&loan.InterestRate,
		&loan.Installments,
		&status,
		&loan.BranchID,
		&loan.BranchName,
		&loan.ProductName,
		&loan.CreditOfficer,
		&loan.RepaymentMethod,
		&loan.RentalValue,
		&loan.CBOName,
		&loan.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrLoanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find loan %q: %w", key, err)
	}

	loan.Type = domain.LoanType(loanType)
	loan.Status = status.String
	return domain.NewLoanRecord(loan), nil
}

func (r *LoanRepository) Installments(ctx context.Context, loanID int64) ([]domain.Installment, error) {
	query := `
		SELECT
			i.loan_id, i.installment_number, i.due_date, i.total_due, COALESCE(i.paid_amount, 0),
			i.paid_date, i.status, COALESCE(i.capital_due, 0), COALESCE(i.interest_due, 0),
			COALESCE(i.penalty, 0)
		FROM loan_installments i
		WHERE i.loan_id = $1
		ORDER BY i.installment_number
	`

	rows, err := r.db.QueryContext(ctx, query, loanID)
	if err != nil {
		return nil, fmt.Errorf("query installments: %w", err)
	}
	defer rows.Close()

	out := []domain.Installment{}
	for rows.Next() {
		var inst domain.Installment
		if err := rows.Scan(
			&inst.LoanID,
			&inst.InstallmentNumber,
			&inst.DueDate,
			&inst.TotalDue,
			&inst.PaidAmount,
			&inst.PaidDate,
			&inst.Status,
			&inst.CapitalDue,
			&inst.InterestDue,
			&inst.Penalty,
		); err != nil {
			return nil, err
		}
		out = append(out, inst)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *LoanRepository) Payments(ctx context.Context, loanID int64) ([]domain.Payment, error) {
	query := `
		SELECT
			p.id, p.loan_id, p.member_id, p.user_id, p.amount,
			COALESCE(p.capital_paid, 0), COALESCE(p.interest_paid, 0),
			p.payment_date, COALESCE(p.payment_method, ''), p.reference_number
		FROM payments p
		WHERE p.loan_id = $1
		ORDER BY p.payment_date, p.id
	`

	rows, err := r.db.QueryContext(ctx, query, loanID)
	if err != nil {
		return nil, fmt.Errorf("query payments: %w", err)
	}
	defer rows.Close()

	out := []domain.Payment{}
	for rows.Next() {
		var p domain.Payment
		if err := rows.Scan(
			&p.ID,
			&p.LoanID,
			&p.MemberID,
			&p.UserID,
			&p.Amount,
			&p.CapitalPaid,
			&p.InterestPaid,
			&p.PaymentDate,
			&p.PaymentMethod,
			&p.ReferenceNumber,
		); err != nil {
			return nil, err
		}
		out = append(out, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
