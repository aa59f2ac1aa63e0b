package rest

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"microfinance-reports/internal/domain"
)

func (h *Handler) portfolio(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := h.reports.Portfolio(r.Context(), ParseLoansFilter(q, h.loc), ParsePageRequest(q))
	if err != nil {
		h.internalError(w, r, "Error fetching portfolio report", err)
		return
	}
	Success(w, "", res)
}

func (h *Handler) arrears(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := h.reports.Arrears(r.Context(), ParseLoansFilter(q, h.loc), ParsePageRequest(q))
	if err != nil {
		h.internalError(w, r, "Error fetching arrears report", err)
		return
	}
	Success(w, "", res)
}

func (h *Handler) dashboardStats(w http.ResponseWriter, r *http.Request) {
	f := ParseLoansFilter(r.URL.Query(), h.loc)
	stats, err := h.reports.Dashboard(r.Context(), f)
	if err != nil {
		h.internalError(w, r, "Error fetching dashboard stats", err)
		return
	}
	Success(w, "", map[string]interface{}{
		"date_from": stats.DateFrom.Format(dateLayout),
		"date_to":   stats.DateTo.Format(dateLayout),
		"stats":     stats,
	})
}

// loanView is the flat loan block of the loan-details screen. Values the
// source rows do not carry are null.
type loanView struct {
	ID              int64           `json:"id"`
	LoanID          string          `json:"loan_id"`
	LoanType        domain.LoanType `json:"loan_type"`
	MemberName      *string         `json:"member_name"`
	MemberNIC       *string         `json:"member_nic"`
	BranchName      *string         `json:"branch_name"`
	ProductName     *string         `json:"product_name"`
	LoanAmount      decimal.Decimal `json:"loan_amount"`
	InterestRate    decimal.Decimal `json:"interest_rate"`
	Installments    int             `json:"installments"`
	Status          string          `json:"status"`
	RentalValue     decimal.Decimal `json:"rental_value"`
	RepaymentMethod *string         `json:"repayment_method"`
	CreditOfficer   *string         `json:"credit_officer"`
	CBOName         *string         `json:"cbo_name,omitempty"`
	Phone           *string         `json:"phone"`
	Address         *string         `json:"address"`
	FullName        *string         `json:"full_name"`
	NIC             *string         `json:"nic"`
	ApplicationDate string          `json:"application_date"`
}

func newLoanView(d *domain.LoanDetail) loanView {
	l := d.Record.Base()
	v := loanView{
		ID:              l.ID,
		LoanID:          l.LoanID,
		LoanType:        l.Type,
		BranchName:      l.BranchName,
		ProductName:     l.ProductName,
		LoanAmount:      l.Amount,
		InterestRate:    l.InterestRate,
		Installments:    l.Installments,
		Status:          l.Status,
		RentalValue:     l.RentalValue,
		RepaymentMethod: l.RepaymentMethod,
		CreditOfficer:   l.CreditOfficer,
		ApplicationDate: l.CreatedAt.Format(dateLayout),
	}
	if m, ok := d.Record.(domain.MicroLoan); ok && m.CBO() != "" {
		cbo := m.CBO()
		v.CBOName = &cbo
	}
	if d.Member != nil {
		nic := d.Member.NIC
		v.MemberName = d.Member.FullName
		v.FullName = d.Member.FullName
		v.MemberNIC = &nic
		v.NIC = &nic
		v.Phone = d.Member.Phone
		v.Address = d.Member.Address
	}
	return v
}

func (h *Handler) loanDetails(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(chi.URLParam(r, "loanId"))
	if key == "" {
		ErrorNotFound(w, "Loan application not found")
		return
	}

	var asOf time.Time
	if t := queryDate(r.URL.Query(), "date_as_of", h.loc); t != nil {
		asOf = *t
	}
	d, err := h.reports.LoanDetail(r.Context(), key, asOf)
	if err != nil {
		if errors.Is(err, domain.ErrLoanNotFound) {
			ErrorNotFound(w, "Loan application not found")
			return
		}
		h.internalError(w, r, "Error fetching loan details", err)
		return
	}

	installments := d.Installments
	if installments == nil {
		installments = []domain.Installment{}
	}
	payments := d.Payments
	if payments == nil {
		payments = []domain.Payment{}
	}

	Success(w, "", map[string]interface{}{
		"loan":         newLoanView(d),
		"member":       d.Member,
		"installments": installments,
		"payments":     payments,
		"summary":      d.Summary,
	})
}

func (h *Handler) memberLoans(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(chi.URLParam(r, "memberIdOrNic"))
	if key == "" {
		ErrorNotFound(w, "Member not found")
		return
	}

	res, err := h.reports.MemberLoans(r.Context(), key)
	if err != nil {
		if errors.Is(err, domain.ErrMemberNotFound) {
			ErrorNotFound(w, "Member not found")
			return
		}
		h.internalError(w, r, "Error fetching member loans", err)
		return
	}
	Success(w, "", res)
}
