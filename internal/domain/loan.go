package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type LoanType string

const (
	LoanTypeBusiness LoanType = "BL"
	LoanTypeMicro    LoanType = "ML"
	LoanTypeLease    LoanType = "LL"
)

var loanTypeAliases = map[string]LoanType{
	"bl":            LoanTypeBusiness,
	"business_loan": LoanTypeBusiness,
	"ml":            LoanTypeMicro,
	"micro_loan":    LoanTypeMicro,
	"ll":            LoanTypeLease,
	"lease_loan":    LoanTypeLease,
}

// ParseLoanType accepts the short tags (BL, ML, LL) and the long names used by
// the mobile client (business_loan, micro_loan, lease_loan).
func ParseLoanType(s string) (LoanType, bool) {
	t, ok := loanTypeAliases[strings.ToLower(strings.TrimSpace(s))]
	return t, ok
}

const StatusSettled = "settled"
const StatusOverdue = "overdue"

// Loan is the normalized read shape of a loan application of any type.
type Loan struct {
	ID              int64           `json:"id"`
	LoanID          string          `json:"loan_id"`
	Type            LoanType        `json:"loan_type"`
	MemberID        *int64          `json:"member_id"`
	Amount          decimal.Decimal `json:"loan_amount"`
	InterestRate    decimal.Decimal `json:"interest_rate"`
	Installments    int             `json:"installments"`
	Status          string          `json:"status"`
	BranchID        *int64          `json:"branch_id"`
	BranchName      *string         `json:"branch_name"`
	ProductName     *string         `json:"product_name"`
	CreditOfficer   *string         `json:"credit_officer"`
	RepaymentMethod *string         `json:"repayment_method"`
	RentalValue     decimal.Decimal `json:"rental_value"`
	CBOName         *string         `json:"cbo_name"`
	CreatedAt       time.Time       `json:"created_at"`
}

// LoanRecord is one of BusinessLoan, MicroLoan or LeaseLoan.
type LoanRecord interface {
	Base() Loan
	loanRecord()
}

type BusinessLoan struct {
	Loan
}

type MicroLoan struct {
	Loan
}

// CBO is the community-based organization the micro loan is collected through.
func (m MicroLoan) CBO() string {
	if m.CBOName == nil {
		return ""
	}
	return *m.CBOName
}

type LeaseLoan struct {
	Loan
}

func (l LeaseLoan) Rental() decimal.Decimal { return l.RentalValue }

func (b BusinessLoan) Base() Loan { return b.Loan }
func (m MicroLoan) Base() Loan    { return m.Loan }
func (l LeaseLoan) Base() Loan    { return l.Loan }

func (BusinessLoan) loanRecord() {}
func (MicroLoan) loanRecord()    {}
func (LeaseLoan) loanRecord()    {}

// NewLoanRecord dispatches on the loan_type discriminator. Rows with an unknown
// tag are treated as business loans, which is what the generic table holds.
func NewLoanRecord(l Loan) LoanRecord {
	switch l.Type {
	case LoanTypeMicro:
		return MicroLoan{Loan: l}
	case LoanTypeLease:
		return LeaseLoan{Loan: l}
	default:
		if l.Type == "" {
			l.Type = LoanTypeBusiness
		}
		return BusinessLoan{Loan: l}
	}
}
