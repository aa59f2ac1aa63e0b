package repository

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"microfinance-reports/internal/domain"
)

type fixtureFile struct {
	Members []struct {
		ID        int64   `yaml:"id"`
		FullName  *string `yaml:"full_name"`
		NIC       string  `yaml:"nic"`
		Phone     *string `yaml:"phone"`
		Address   *string `yaml:"address"`
		CreatedAt string  `yaml:"created_at"`
	} `yaml:"members"`

	Loans []struct {
		ID              int64   `yaml:"id"`
		LoanID          string  `yaml:"loan_id"`
		LoanType        string  `yaml:"loan_type"`
		MemberID        *int64  `yaml:"member_id"`
		Amount          string  `yaml:"loan_amount"`
		InterestRate    string  `yaml:"interest_rate"`
		Installments    int     `yaml:"installments"`
		Status          string  `yaml:"status"`
		BranchID        *int64  `yaml:"branch_id"`
		BranchName      *string `yaml:"branch_name"`
		ProductName     *string `yaml:"product_name"`
		CreditOfficer   *string `yaml:"credit_officer"`
		RepaymentMethod *string `yaml:"repayment_method"`
		RentalValue     string  `yaml:"rental_value"`
		CBOName         *string `yaml:"cbo_name"`
		CreatedAt       string  `yaml:"created_at"`
	} `yaml:"loans"`

	Installments []struct {
		LoanID            int64  `yaml:"loan_id"`
		InstallmentNumber int    `yaml:"installment_number"`
		DueDate           string `yaml:"due_date"`
		TotalDue          string `yaml:"total_due"`
		PaidAmount        string `yaml:"paid_amount"`
		PaidDate          string `yaml:"paid_date"`
		Status            string `yaml:"status"`
		CapitalDue        string `yaml:"capital_due"`
		InterestDue       string `yaml:"interest_due"`
		Penalty           string `yaml:"penalty"`
	} `yaml:"installments"`

	Payments []struct {
		ID              int64   `yaml:"id"`
		LoanID          int64   `yaml:"loan_id"`
		MemberID        *int64  `yaml:"member_id"`
		UserID          *int64  `yaml:"user_id"`
		Amount          string  `yaml:"amount"`
		CapitalPaid     string  `yaml:"capital_paid"`
		InterestPaid    string  `yaml:"interest_paid"`
		PaymentDate     string  `yaml:"payment_date"`
		PaymentMethod   string  `yaml:"payment_method"`
		ReferenceNumber *string `yaml:"reference_number"`
	} `yaml:"payments"`

	Tokens []struct {
		ID        int64  `yaml:"id"`
		UserID    int64  `yaml:"user_id"`
		Token     string `yaml:"token"`
		Abilities string `yaml:"abilities"`
		ExpiresAt string `yaml:"expires_at"`
	} `yaml:"tokens"`
}

// LoadFixtures reads a YAML data set into a new MemoryStore.
func LoadFixtures(path string) (*MemoryStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures %q: %w", path, err)
	}
	return ParseFixtures(data)
}

func ParseFixtures(data []byte) (*MemoryStore, error) {
	var ff fixtureFile
	if err := yaml.Unmarshal(data, &ff); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}

	s := NewMemoryStore()

	for _, m := range ff.Members {
		created, err := parseOptionalTime(m.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("member %d created_at: %w", m.ID, err)
		}
		s.AddMember(domain.Member{
			ID:        m.ID,
			FullName:  m.FullName,
			NIC:       m.NIC,
			Phone:     m.Phone,
			Address:   m.Address,
			CreatedAt: created,
		})
	}

	for _, l := range ff.Loans {
		amounts, err := parseAmounts(l.Amount, l.InterestRate, l.RentalValue)
		if err != nil {
			return nil, fmt.Errorf("loan %s: %w", l.LoanID, err)
		}
		created, err := parseTime(l.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("loan %s created_at: %w", l.LoanID, err)
		}
		loanType, ok := domain.ParseLoanType(l.LoanType)
		if !ok {
			loanType = domain.LoanTypeBusiness
		}
		s.AddLoan(domain.Loan{
			ID:              l.ID,
			LoanID:          l.LoanID,
			Type:            loanType,
			MemberID:        l.MemberID,
			Amount:          amounts[0],
			InterestRate:    amounts[1],
			Installments:    l.Installments,
			Status:          l.Status,
			BranchID:        l.BranchID,
			BranchName:      l.BranchName,
			ProductName:     l.ProductName,
			CreditOfficer:   l.CreditOfficer,
			RepaymentMethod: l.RepaymentMethod,
			RentalValue:     amounts[2],
			CBOName:         l.CBOName,
			CreatedAt:       created,
		})
	}

	for _, i := range ff.Installments {
		amounts, err := parseAmounts(i.TotalDue, i.PaidAmount, i.CapitalDue, i.InterestDue, i.Penalty)
		if err != nil {
			return nil, fmt.Errorf("installment %d/%d: %w", i.LoanID, i.InstallmentNumber, err)
		}
		due, err := parseTime(i.DueDate)
		if err != nil {
			return nil, fmt.Errorf("installment %d/%d due_date: %w", i.LoanID, i.InstallmentNumber, err)
		}
		paidDate, err := parseOptionalTime(i.PaidDate)
		if err != nil {
			return nil, fmt.Errorf("installment %d/%d paid_date: %w", i.LoanID, i.InstallmentNumber, err)
		}
		status := i.Status
		if status == "" {
			status = domain.InstallmentPending
		}
		s.AddInstallment(domain.Installment{
			LoanID:            i.LoanID,
			InstallmentNumber: i.InstallmentNumber,
			DueDate:           due,
			TotalDue:          amounts[0],
			PaidAmount:        amounts[1],
			PaidDate:          paidDate,
			Status:            status,
			CapitalDue:        amounts[2],
			InterestDue:       amounts[3],
			Penalty:           amounts[4],
		})
	}

	for _, p := range ff.Payments {
		amounts, err := parseAmounts(p.Amount, p.CapitalPaid, p.InterestPaid)
		if err != nil {
			return nil, fmt.Errorf("payment %d: %w", p.ID, err)
		}
		date, err := parseTime(p.PaymentDate)
		if err != nil {
			return nil, fmt.Errorf("payment %d payment_date: %w", p.ID, err)
		}
		s.AddPayment(domain.Payment{
			ID:              p.ID,
			LoanID:          p.LoanID,
			MemberID:        p.MemberID,
			UserID:          p.UserID,
			Amount:          amounts[0],
			CapitalPaid:     amounts[1],
			InterestPaid:    amounts[2],
			PaymentDate:     date,
			PaymentMethod:   p.PaymentMethod,
			ReferenceNumber: p.ReferenceNumber,
		})
	}

	for _, t := range ff.Tokens {
		expires, err := parseOptionalTime(t.ExpiresAt)
		if err != nil {
			return nil, fmt.Errorf("token %d expires_at: %w", t.ID, err)
		}
		s.AddToken(t.Token, domain.PersonalAccessToken{
			ID:        t.ID,
			UserID:    t.UserID,
			Abilities: t.Abilities,
			ExpiresAt: expires,
		})
	}

	return s, nil
}

// parseAmounts treats an empty value as zero.
func parseAmounts(values ...string) ([]decimal.Decimal, error) {
	out := make([]decimal.Decimal, len(values))
	for i, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		d, err := decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("invalid amount %q: %w", v, err)
		}
		out[i] = d
	}
	return out, nil
}

var fixtureTimeLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range fixtureTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q", s)
}

func parseOptionalTime(s string) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, err := parseTime(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
