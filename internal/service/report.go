package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"microfinance-reports/internal/domain"
	"microfinance-reports/internal/report"
	"microfinance-reports/internal/repository"
)

type LoanRepository interface {
	List(ctx context.Context, f repository.LoansFilter, limit, offset int) ([]domain.LoanRow, error)
	Totals(ctx context.Context, f repository.LoansFilter) (report.Totals, error)
	HasMoreThan(ctx context.Context, limit int64, f repository.LoansFilter) (bool, error)
	FindLoan(ctx context.Context, key string) (domain.LoanRecord, error)
	Installments(ctx context.Context, loanID int64) ([]domain.Installment, error)
	Payments(ctx context.Context, loanID int64) ([]domain.Payment, error)
}

type MemberRepository interface {
	FindMember(ctx context.Context, key string) (*domain.Member, error)
	MemberByID(ctx context.Context, id int64) (*domain.Member, error)
}

type StatsRepository interface {
	DashboardStats(ctx context.Context, f repository.LoansFilter, from, to time.Time) (domain.DashboardStats, error)
}

type PortfolioReport struct {
	Loans   report.Page[domain.LoanRow] `json:"loans"`
	Summary domain.PortfolioSummary     `json:"summary"`
}

type ArrearsReport struct {
	Arrears report.Page[domain.ArrearsRow] `json:"arrears"`
	Summary domain.ArrearsSummary          `json:"summary"`
	Filters map[string]interface{}         `json:"filters"`
}

type MemberLoan struct {
	LoanID     string          `json:"loan_id"`
	LoanAmount decimal.Decimal `json:"loan_amount"`
	Status     string          `json:"status"`
	TotalDue   decimal.Decimal `json:"total_due"`
	LoanType   domain.LoanType `json:"loan_type"`
}

type MemberLoans struct {
	Member        *domain.Member  `json:"member"`
	BusinessLoans []MemberLoan    `json:"business_loans"`
	MicroLoans    []MemberLoan    `json:"micro_loans"`
	LeaseLoans    []MemberLoan    `json:"lease_loans"`
	TotalLoans    int             `json:"total_loans"`
	TotalDue      decimal.Decimal `json:"total_due"`
}

type ReportService struct {
	loans   LoanRepository
	members MemberRepository
	stats   StatsRepository
	log     *zap.Logger
	loc     *time.Location
	now     func() time.Time
}

// NewReportService builds the assemblers. "Today" is taken in loc, the zone
// request dates are parsed in; nil means time.Local.
func NewReportService(loans LoanRepository, members MemberRepository, stats StatsRepository, loc *time.Location, log *zap.Logger) *ReportService {
	return &ReportService{
		loans:   loans,
		members: members,
		stats:   stats,
		log:     log,
		loc:     orLocal(loc),
		now:     time.Now,
	}
}

func orLocal(loc *time.Location) *time.Location {
	if loc == nil {
		return time.Local
	}
	return loc
}

func (s *ReportService) today() time.Time {
	return domain.TruncateDay(s.now().In(s.loc))
}

func (s *ReportService) withAsOf(f repository.LoansFilter) repository.LoansFilter {
	if f.AsOf.IsZero() {
		f.AsOf = s.today()
	}
	return f
}

// Portfolio returns one page of loans and a summary over the whole filtered set.
func (s *ReportService) Portfolio(ctx context.Context, f repository.LoansFilter, page report.PageRequest) (*PortfolioReport, error) {
	f = s.withAsOf(f)

	totals, err := s.loans.Totals(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("portfolio totals: %w", err)
	}

	rows, err := s.loans.List(ctx, f, page.Limit(), page.Offset())
	if err != nil {
		return nil, fmt.Errorf("portfolio rows: %w", err)
	}

	return &PortfolioReport{
		Loans:   report.NewPage(rows, page, totals.Count),
		Summary: totals.Portfolio(),
	}, nil
}

// Arrears lists loans that are not settled. A days_overdue filter further
// keeps only loans at least that many days behind.
func (s *ReportService) Arrears(ctx context.Context, f repository.LoansFilter, page report.PageRequest) (*ArrearsReport, error) {
	f = s.withAsOf(f)
	f.ExcludeSettled = true

	totals, err := s.loans.Totals(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("arrears totals: %w", err)
	}

	rows, err := s.loans.List(ctx, f, page.Limit(), page.Offset())
	if err != nil {
		return nil, fmt.Errorf("arrears rows: %w", err)
	}

	return &ArrearsReport{
		Arrears: report.MapPage(report.NewPage(rows, page, totals.Count), domain.NewArrearsRow),
		Summary: totals.Arrears(),
		Filters: buildLoansFiltersMap(f, nil),
	}, nil
}

// LoanDetail resolves a loan by business key or internal id and assembles its
// schedule, payments and summary. Arrears are counted as of asOf, or today
// when asOf is zero.
func (s *ReportService) LoanDetail(ctx context.Context, key string, asOf time.Time) (*domain.LoanDetail, error) {
	if asOf.IsZero() {
		asOf = s.today()
	}

	rec, err := s.loans.FindLoan(ctx, key)
	if err != nil {
		return nil, err
	}
	loan := rec.Base()

	installments, err := s.loans.Installments(ctx, loan.ID)
	if err != nil {
		return nil, fmt.Errorf("loan %s installments: %w", loan.LoanID, err)
	}

	payments, err := s.loans.Payments(ctx, loan.ID)
	if err != nil {
		return nil, fmt.Errorf("loan %s payments: %w", loan.LoanID, err)
	}

	var member *domain.Member
	if loan.MemberID != nil {
		member, err = s.members.MemberByID(ctx, *loan.MemberID)
		if err != nil && !errors.Is(err, domain.ErrMemberNotFound) {
			return nil, fmt.Errorf("loan %s member: %w", loan.LoanID, err)
		}
		if member == nil {
			s.log.Warn("loan references a missing member",
				zap.String("loan_id", loan.LoanID),
				zap.Int64("member_id", *loan.MemberID),
			)
		}
	}

	return &domain.LoanDetail{
		Record:       rec,
		Member:       member,
		Installments: installments,
		Payments:     payments,
		Summary:      report.SummarizeLoanDetail(loan, installments, payments, domain.TruncateDay(asOf)),
	}, nil
}

// Dashboard defaults to the current month up to today.
func (s *ReportService) Dashboard(ctx context.Context, f repository.LoansFilter) (domain.DashboardStats, error) {
	f = s.withAsOf(f)

	to := s.today()
	if f.DateTo != nil {
		to = domain.TruncateDay(*f.DateTo)
	}
	from := time.Date(to.Year(), to.Month(), 1, 0, 0, 0, 0, to.Location())
	if f.DateFrom != nil {
		from = domain.TruncateDay(*f.DateFrom)
	}

	stats, err := s.stats.DashboardStats(ctx, f, from, to)
	if err != nil {
		return domain.DashboardStats{}, fmt.Errorf("dashboard stats: %w", err)
	}
	return stats, nil
}

// MemberLoans groups a member's loans by type. key is a NIC or internal id.
func (s *ReportService) MemberLoans(ctx context.Context, key string) (*MemberLoans, error) {
	member, err := s.members.FindMember(ctx, key)
	if err != nil {
		return nil, err
	}

	rows, err := s.loans.List(ctx, repository.LoansFilter{MemberID: &member.ID, AsOf: s.today()}, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("member %d loans: %w", member.ID, err)
	}

	out := &MemberLoans{
		Member:        member,
		BusinessLoans: []MemberLoan{},
		MicroLoans:    []MemberLoan{},
		LeaseLoans:    []MemberLoan{},
		TotalLoans:    len(rows),
	}
	for _, r := range rows {
		item := MemberLoan{
			LoanID:     r.LoanID,
			LoanAmount: r.LoanAmount,
			Status:     r.Status,
			TotalDue:   r.OutstandingBalance,
			LoanType:   r.LoanType,
		}
		out.TotalDue = out.TotalDue.Add(item.TotalDue)

		switch r.LoanType {
		case domain.LoanTypeMicro:
			out.MicroLoans = append(out.MicroLoans, item)
		case domain.LoanTypeLease:
			out.LeaseLoans = append(out.LeaseLoans, item)
		default:
			out.BusinessLoans = append(out.BusinessLoans, item)
		}
	}
	return out, nil
}

func buildLoansFiltersMap(f repository.LoansFilter, fields []string) map[string]interface{} {
	m := map[string]interface{}{}
	if f.BranchID != nil {
		m["branch_id"] = *f.BranchID
	}
	if f.LoanType != nil {
		m["loan_type"] = string(*f.LoanType)
	}
	if f.Status != nil {
		m["status"] = *f.Status
	}
	if f.RepaymentMethod != nil {
		m["repayment_method"] = *f.RepaymentMethod
	}
	if f.CreditOfficer != nil {
		m["credit_officer"] = *f.CreditOfficer
	}
	if f.MemberID != nil {
		m["member_id"] = *f.MemberID
	}
	if f.DateFrom != nil {
		m["date_from"] = f.DateFrom.Format(dateLayout)
	}
	if f.DateTo != nil {
		m["date_to"] = f.DateTo.Format(dateLayout)
	}
	if f.MinDaysOverdue != nil {
		m["days_overdue"] = *f.MinDaysOverdue
	}
	if !f.AsOf.IsZero() {
		m["date_as_of"] = f.AsOf.Format(dateLayout)
	}
	if len(fields) > 0 {
		m["fields"] = fields
	}
	return m
}

const dateLayout = "2006-01-02"
