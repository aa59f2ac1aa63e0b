package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LoanRow is one loan application joined with its owning member. Member
// columns are nil when the loan has no matching member.
type LoanRow struct {
	ID              int64           `json:"id"`
	LoanID          string          `json:"loan_id"`
	LoanType        LoanType        `json:"loan_type"`
	LoanAmount      decimal.Decimal `json:"loan_amount"`
	InterestRate    decimal.Decimal `json:"interest_rate"`
	Installments    int             `json:"installments"`
	Status          string          `json:"status"`
	BranchID        *int64          `json:"branch_id"`
	BranchName      *string         `json:"branch_name"`
	ProductName     *string         `json:"product_name"`
	CreditOfficer   *string         `json:"credit_officer"`
	RepaymentMethod *string         `json:"repayment_method"`
	RentalValue     decimal.Decimal `json:"rental_value"`
	ApplicationDate time.Time       `json:"application_date"`

	MemberID      *int64  `json:"member_id"`
	MemberName    *string `json:"member_name"`
	MemberNIC     *string `json:"member_nic"`
	MemberPhone   *string `json:"phone"`
	MemberAddress *string `json:"address"`

	PaymentsMade       decimal.Decimal `json:"payments_made"`
	OutstandingBalance decimal.Decimal `json:"outstanding_balance"`

	DueDate       *time.Time      `json:"due_date"`
	DaysOverdue   int             `json:"days_overdue"`
	OverdueAmount decimal.Decimal `json:"overdue_amount"`
}

type ArrearsRow struct {
	LoanRow
	CreditOfficerName *string         `json:"credit_officer_name"`
	TotalDue          decimal.Decimal `json:"total_due"`
}

func NewArrearsRow(r LoanRow) ArrearsRow {
	return ArrearsRow{
		LoanRow:           r,
		CreditOfficerName: r.CreditOfficer,
		TotalDue:          r.OutstandingBalance,
	}
}

type PortfolioSummary struct {
	TotalLoans          int64           `json:"total_loans"`
	TotalAmount         decimal.Decimal `json:"total_amount"`
	AverageInterestRate decimal.Decimal `json:"average_interest_rate"`
	TotalOutstanding    decimal.Decimal `json:"total_outstanding"`
	TotalRentalValue    decimal.Decimal `json:"total_rental_value"`
}

type ArrearsSummary struct {
	TotalArrears       int64           `json:"total_arrears"`
	TotalAmountDue     decimal.Decimal `json:"total_amount_due"`
	AverageDaysOverdue decimal.Decimal `json:"average_days_overdue"`
}

type LoanDetailSummary struct {
	AgreedAmount       decimal.Decimal `json:"agreed_amount"`
	TotalPaid          decimal.Decimal `json:"total_paid"`
	TotalOutstanding   decimal.Decimal `json:"total_outstanding"`
	Arrears            decimal.Decimal `json:"arrears"`
	TotalPenalty       decimal.Decimal `json:"total_penalty"`
	CapitalOutstanding decimal.Decimal `json:"capital_outstanding"`
	CapitalPaid        decimal.Decimal `json:"capital_paid"`
	InterestDue        decimal.Decimal `json:"interest_due"`
	InterestPaid       decimal.Decimal `json:"interest_paid"`
	TotalDue           decimal.Decimal `json:"total_due"`
	LoanType           LoanType        `json:"loan_type"`
}

// LoanDetail is everything the loan-details screen shows for one loan.
type LoanDetail struct {
	Record       LoanRecord    `json:"-"`
	Member       *Member       `json:"-"`
	Installments []Installment `json:"installments"`
	Payments     []Payment     `json:"payments"`
	Summary      LoanDetailSummary
}

type LoanTypeTotals struct {
	Count  int64           `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

type DashboardStats struct {
	DateFrom       time.Time                   `json:"-"`
	DateTo         time.Time                   `json:"-"`
	Loans          int64                       `json:"loans"`
	LoanAmount     decimal.Decimal             `json:"loan_amount"`
	LoansByType    map[LoanType]LoanTypeTotals `json:"loans_by_type"`
	Payments       decimal.Decimal             `json:"payments"`
	PaymentsCount  int64                       `json:"payments_count"`
	AveragePayment decimal.Decimal             `json:"average_payment"`
	Members        int64                       `json:"members"`
}
