package repository

import (
	"fmt"
	"strings"
	"time"

	"microfinance-reports/internal/domain"
)

// LoansFilter narrows the loan report rows. A nil field does not constrain
// the result set.
type LoansFilter struct {
	BranchID        *int64
	LoanType        *domain.LoanType
	Status          *string
	RepaymentMethod *string
	CreditOfficer   *string
	MemberID        *int64
	DateFrom        *time.Time
	DateTo          *time.Time
	MinDaysOverdue  *int

	// ExcludeSettled drops settled loans (arrears report).
	ExcludeSettled bool

	// AsOf is the reference date for overdue computation.
	AsOf time.Time
}

func (f LoansFilter) asOf() time.Time {
	if f.AsOf.IsZero() {
		return domain.TruncateDay(time.Now())
	}
	return domain.TruncateDay(f.AsOf)
}

// Matches applies the filter to a row whose derived columns are already filled.
func (f LoansFilter) Matches(r domain.LoanRow) bool {
	if f.ExcludeSettled && r.Status == domain.StatusSettled {
		return false
	}
	if f.BranchID != nil && (r.BranchID == nil || *r.BranchID != *f.BranchID) {
		return false
	}
	if f.LoanType != nil && r.LoanType != *f.LoanType {
		return false
	}
	if f.Status != nil && r.Status != *f.Status {
		return false
	}
	if f.RepaymentMethod != nil && (r.RepaymentMethod == nil || *r.RepaymentMethod != *f.RepaymentMethod) {
		return false
	}
	if f.CreditOfficer != nil {
		if r.CreditOfficer == nil || !strings.Contains(strings.ToLower(*r.CreditOfficer), strings.ToLower(*f.CreditOfficer)) {
			return false
		}
	}
	if f.MemberID != nil && (r.MemberID == nil || *r.MemberID != *f.MemberID) {
		return false
	}
	if f.DateFrom != nil && r.ApplicationDate.Before(domain.TruncateDay(*f.DateFrom)) {
		return false
	}
	if f.DateTo != nil && !r.ApplicationDate.Before(domain.TruncateDay(*f.DateTo).AddDate(0, 0, 1)) {
		return false
	}
	if f.MinDaysOverdue != nil && r.DaysOverdue < *f.MinDaysOverdue {
		return false
	}
	return true
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// buildLoansWhere renders the filter as a WHERE clause over the loan_rows CTE.
// Placeholders start at $start; the returned next is the first unused index.
func buildLoansWhere(f LoansFilter, start int) (clause string, args []any, next int) {
	where := []string{"1=1"}
	i := start

	if f.ExcludeSettled {
		where = append(where, fmt.Sprintf("COALESCE(r.status, '') <> $%d", i))
		args = append(args, domain.StatusSettled)
		i++
	}

	if f.BranchID != nil {
		where = append(where, fmt.Sprintf("r.branch_id = $%d", i))
		args = append(args, *f.BranchID)
		i++
	}

	if f.LoanType != nil {
		where = append(where, fmt.Sprintf("r.loan_type = $%d", i))
		args = append(args, string(*f.LoanType))
		i++
	}

	if f.Status != nil {
		where = append(where, fmt.Sprintf("r.status = $%d", i))
		args = append(args, *f.Status)
		i++
	}

	if f.RepaymentMethod != nil {
		where = append(where, fmt.Sprintf("r.repayment_method = $%d", i))
		args = append(args, *f.RepaymentMethod)
		i++
	}

	if f.CreditOfficer != nil {
		where = append(where, fmt.Sprintf("r.credit_officer ILIKE $%d", i))
		args = append(args, "%"+likeEscaper.Replace(*f.CreditOfficer)+"%")
		i++
	}

	if f.MemberID != nil {
		where = append(where, fmt.Sprintf("r.member_id = $%d", i))
		args = append(args, *f.MemberID)
		i++
	}

	if f.DateFrom != nil {
		where = append(where, fmt.Sprintf("r.created_at >= $%d", i))
		args = append(args, domain.TruncateDay(*f.DateFrom))
		i++
	}
	if f.DateTo != nil {
		where = append(where, fmt.Sprintf("r.created_at < $%d", i))
		args = append(args, domain.TruncateDay(*f.DateTo).AddDate(0, 0, 1))
		i++
	}

	if f.MinDaysOverdue != nil {
		where = append(where, fmt.Sprintf("r.days_overdue >= $%d", i))
		args = append(args, *f.MinDaysOverdue)
		i++
	}

	return strings.Join(where, " AND "), args, i
}
