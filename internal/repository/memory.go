package repository

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"microfinance-reports/internal/domain"
	"microfinance-reports/internal/report"
)

// MemoryStore serves the same queries as the Postgres repositories from an
// in-process data set. It backs REPORT_SOURCE=memory and the tests.
type MemoryStore struct {
	mu           sync.RWMutex
	loans        []domain.Loan
	members      map[int64]domain.Member
	installments map[int64][]domain.Installment
	payments     map[int64][]domain.Payment
	tokens       map[string]domain.PersonalAccessToken
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		members:      map[int64]domain.Member{},
		installments: map[int64][]domain.Installment{},
		payments:     map[int64][]domain.Payment{},
		tokens:       map[string]domain.PersonalAccessToken{},
	}
}

// AddToken registers a bearer token; only the hash of its secret is kept.
func (s *MemoryStore) AddToken(plainToken string, pat domain.PersonalAccessToken) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, secret := splitPlainToken(strings.TrimSpace(plainToken))
	pat.TokenHash = hashToken(secret)
	s.tokens[pat.TokenHash] = pat
}

func (s *MemoryStore) FindTokenByPlainToken(_ context.Context, plainToken string) (*domain.PersonalAccessToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, secret := splitPlainToken(strings.TrimSpace(plainToken))
	if secret == "" {
		return nil, domain.ErrTokenNotFound
	}
	pat, ok := s.tokens[hashToken(secret)]
	if !ok {
		return nil, domain.ErrTokenNotFound
	}
	if pat.ExpiresAt != nil && pat.ExpiresAt.Before(time.Now()) {
		return nil, domain.ErrTokenNotFound
	}
	return &pat, nil
}

func (s *MemoryStore) AddMember(m domain.Member) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[m.ID] = m
}

func (s *MemoryStore) AddLoan(l domain.Loan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.Type == "" {
		l.Type = domain.LoanTypeBusiness
	}
	s.loans = append(s.loans, l)
	sort.SliceStable(s.loans, func(i, j int) bool { return s.loans[i].ID < s.loans[j].ID })
}

func (s *MemoryStore) AddInstallment(i domain.Installment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := append(s.installments[i.LoanID], i)
	sort.SliceStable(list, func(a, b int) bool { return list[a].InstallmentNumber < list[b].InstallmentNumber })
	s.installments[i.LoanID] = list
}

func (s *MemoryStore) AddPayment(p domain.Payment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := append(s.payments[p.LoanID], p)
	sort.SliceStable(list, func(a, b int) bool {
		if list[a].PaymentDate.Equal(list[b].PaymentDate) {
			return list[a].ID < list[b].ID
		}
		return list[a].PaymentDate.Before(list[b].PaymentDate)
	})
	s.payments[p.LoanID] = list
}

// joined builds the left-joined rows and applies the filter.
func (s *MemoryStore) joined(f LoansFilter) []domain.LoanRow {
	s.mu.RLock()
	defer s.mu.RUnlock()

	asOf := f.asOf()
	out := []domain.LoanRow{}
	for _, l := range s.loans {
		row := domain.LoanRow{
			ID:              l.ID,
			LoanID:          l.LoanID,
			LoanType:        l.Type,
			LoanAmount:      l.Amount,
			InterestRate:    l.InterestRate,
			Installments:    l.Installments,
			Status:          l.Status,
			BranchID:        l.BranchID,
			BranchName:      l.BranchName,
			ProductName:     l.ProductName,
			CreditOfficer:   l.CreditOfficer,
			RepaymentMethod: l.RepaymentMethod,
			RentalValue:     l.RentalValue,
			ApplicationDate: l.CreatedAt,
		}
		if l.MemberID != nil {
			if m, ok := s.members[*l.MemberID]; ok {
				id := m.ID
				nic := m.NIC
				row.MemberID = &id
				row.MemberName = m.FullName
				row.MemberNIC = &nic
				row.MemberPhone = m.Phone
				row.MemberAddress = m.Address
			}
		}
		report.FillDerived(&row, s.installments[l.ID], s.payments[l.ID], asOf)

		if f.Matches(row) {
			out = append(out, row)
		}
	}
	return out
}

func (s *MemoryStore) List(_ context.Context, f LoansFilter, limit, offset int) ([]domain.LoanRow, error) {
	rows := s.joined(f)
	if limit <= 0 {
		return rows, nil
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(rows) {
		return []domain.LoanRow{}, nil
	}
	end := offset + limit
	if end > len(rows) || end < offset {
		end = len(rows)
	}
	return rows[offset:end], nil
}

func (s *MemoryStore) Totals(_ context.Context, f LoansFilter) (report.Totals, error) {
	return report.Accumulate(s.joined(f)), nil
}

func (s *MemoryStore) HasMoreThan(_ context.Context, limit int64, f LoansFilter) (bool, error) {
	return int64(len(s.joined(f))) > limit, nil
}

func (s *MemoryStore) FindLoan(_ context.Context, key string) (domain.LoanRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, l := range s.loans {
		if l.LoanID == key {
			return domain.NewLoanRecord(l), nil
		}
	}
	if id, err := strconv.ParseInt(key, 10, 64); err == nil {
		for _, l := range s.loans {
			if l.ID == id {
				return domain.NewLoanRecord(l), nil
			}
		}
	}
	return nil, domain.ErrLoanNotFound
}

func (s *MemoryStore) Installments(_ context.Context, loanID int64) ([]domain.Installment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Installment{}, s.installments[loanID]...), nil
}

func (s *MemoryStore) Payments(_ context.Context, loanID int64) ([]domain.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Payment{}, s.payments[loanID]...), nil
}

func (s *MemoryStore) FindMember(_ context.Context, key string) (*domain.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key = strings.TrimSpace(key)
	var byID *domain.Member
	id, idErr := strconv.ParseInt(key, 10, 64)
	for _, m := range s.members {
		if m.NIC == key {
			found := m
			return &found, nil
		}
		if idErr == nil && m.ID == id {
			found := m
			byID = &found
		}
	}
	if byID != nil {
		return byID, nil
	}
	return nil, domain.ErrMemberNotFound
}

func (s *MemoryStore) MemberByID(_ context.Context, id int64) (*domain.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.members[id]
	if !ok {
		return nil, domain.ErrMemberNotFound
	}
	return &m, nil
}

func (s *MemoryStore) DashboardStats(_ context.Context, f LoansFilter, from, to time.Time) (domain.DashboardStats, error) {
	f.DateFrom = &from
	f.DateTo = &to

	stats := domain.DashboardStats{
		DateFrom:    from,
		DateTo:      to,
		LoansByType: map[domain.LoanType]domain.LoanTypeTotals{},
	}
	for _, r := range s.joined(f) {
		t := stats.LoansByType[r.LoanType]
		t.Count++
		t.Amount = t.Amount.Add(r.LoanAmount)
		stats.LoansByType[r.LoanType] = t
		stats.Loans++
		stats.LoanAmount = stats.LoanAmount.Add(r.LoanAmount)
	}

	start := domain.TruncateDay(from)
	end := domain.TruncateDay(to).AddDate(0, 0, 1)
	inRange := func(t time.Time) bool { return !t.Before(start) && t.Before(end) }

	pf := LoansFilter{BranchID: f.BranchID, LoanType: f.LoanType, AsOf: f.AsOf}
	loans := s.joined(pf)

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range loans {
		for _, p := range s.payments[r.ID] {
			if inRange(p.PaymentDate) {
				stats.PaymentsCount++
				stats.Payments = stats.Payments.Add(p.Amount)
			}
		}
	}
	if stats.PaymentsCount > 0 {
		stats.AveragePayment = stats.Payments.Div(decimal.NewFromInt(stats.PaymentsCount)).Round(2)
	}

	for _, m := range s.members {
		if m.CreatedAt != nil && inRange(*m.CreatedAt) {
			stats.Members++
		}
	}
	return stats, nil
}
