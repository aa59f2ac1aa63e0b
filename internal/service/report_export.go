package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"microfinance-reports/internal/clients"
	"microfinance-reports/internal/domain"
	"microfinance-reports/internal/repository"
)

const (
	ReportPortfolio = "portfolio"
	ReportArrears   = "arrears"
)

// ExportNotifier pushes export progress to connected clients.
type ExportNotifier interface {
	NotifyExportProgress(ctx context.Context, userID int64, exportID string, progress float64, stage string) error
	NotifyExportComplete(ctx context.Context, userID int64, exportID string, url string, filename string) error
	NotifyExportFailed(ctx context.Context, userID int64, exportID string, errMsg string) error
}

type LoanColumn struct {
	Header string
	Value  func(r domain.ArrearsRow) any
}

func strPtr(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func timePtr(p *time.Time) string {
	if p == nil {
		return ""
	}
	return p.Format(dateLayout)
}

func money(d decimal.Decimal) any {
	return d.InexactFloat64()
}

var loanColumns = map[string]LoanColumn{
	"loan_id":             {Header: "Loan ID", Value: func(r domain.ArrearsRow) any { return r.LoanID }},
	"loan_type":           {Header: "Type", Value: func(r domain.ArrearsRow) any { return string(r.LoanType) }},
	"member_name":         {Header: "Member", Value: func(r domain.ArrearsRow) any { return strPtr(r.MemberName) }},
	"member_nic":          {Header: "NIC", Value: func(r domain.ArrearsRow) any { return strPtr(r.MemberNIC) }},
	"phone":               {Header: "Phone", Value: func(r domain.ArrearsRow) any { return strPtr(r.MemberPhone) }},
	"address":             {Header: "Address", Value: func(r domain.ArrearsRow) any { return strPtr(r.MemberAddress) }},
	"branch_name":         {Header: "Branch", Value: func(r domain.ArrearsRow) any { return strPtr(r.BranchName) }},
	"product_name":        {Header: "Product", Value: func(r domain.ArrearsRow) any { return strPtr(r.ProductName) }},
	"credit_officer":      {Header: "Credit officer", Value: func(r domain.ArrearsRow) any { return strPtr(r.CreditOfficer) }},
	"repayment_method":    {Header: "Repayment method", Value: func(r domain.ArrearsRow) any { return strPtr(r.RepaymentMethod) }},
	"status":              {Header: "Status", Value: func(r domain.ArrearsRow) any { return r.Status }},
	"loan_amount":         {Header: "Loan amount", Value: func(r domain.ArrearsRow) any { return money(r.LoanAmount) }},
	"interest_rate":       {Header: "Interest rate", Value: func(r domain.ArrearsRow) any { return money(r.InterestRate) }},
	"installments":        {Header: "Installments", Value: func(r domain.ArrearsRow) any { return r.Installments }},
	"rental_value":        {Header: "Rental value", Value: func(r domain.ArrearsRow) any { return money(r.RentalValue) }},
	"payments_made":       {Header: "Payments made", Value: func(r domain.ArrearsRow) any { return money(r.PaymentsMade) }},
	"outstanding_balance": {Header: "Outstanding", Value: func(r domain.ArrearsRow) any { return money(r.OutstandingBalance) }},
	"total_due":           {Header: "Total due", Value: func(r domain.ArrearsRow) any { return money(r.TotalDue) }},
	"due_date":            {Header: "Due date", Value: func(r domain.ArrearsRow) any { return timePtr(r.DueDate) }},
	"days_overdue":        {Header: "Days overdue", Value: func(r domain.ArrearsRow) any { return r.DaysOverdue }},
	"overdue_amount":      {Header: "Overdue amount", Value: func(r domain.ArrearsRow) any { return money(r.OverdueAmount) }},
	"application_date":    {Header: "Application date", Value: func(r domain.ArrearsRow) any { return timePtr(&r.ApplicationDate) }},
}

var defaultReportFields = map[string][]string{
	ReportPortfolio: {
		"loan_id", "loan_type", "member_name", "member_nic", "branch_name", "product_name",
		"credit_officer", "status", "loan_amount", "interest_rate", "installments",
		"rental_value", "payments_made", "outstanding_balance", "application_date",
	},
	ReportArrears: {
		"loan_id", "loan_type", "member_name", "member_nic", "phone", "address", "branch_name",
		"credit_officer", "status", "loan_amount", "total_due", "due_date", "days_overdue",
		"overdue_amount",
	},
}

// IsExportField reports whether name is a column the spreadsheet export knows.
func IsExportField(name string) bool {
	_, ok := loanColumns[name]
	return ok
}

var sheetNames = map[string]string{
	ReportPortfolio: "Portfolio",
	ReportArrears:   "Arrears",
}

type ReportExportService struct {
	repo    LoanRepository
	store   StatusStore
	files   clients.FileStore
	ws      ExportNotifier
	log     *zap.Logger
	maxRows int64
	loc     *time.Location
	now     func() time.Time
}

func NewReportExportService(
	repo LoanRepository,
	store StatusStore,
	files clients.FileStore,
	ws ExportNotifier,
	maxRows int64,
	loc *time.Location,
	log *zap.Logger,
) *ReportExportService {
	return &ReportExportService{
		repo:    repo,
		store:   store,
		files:   files,
		ws:      ws,
		log:     log,
		maxRows: maxRows,
		loc:     orLocal(loc),
		now:     time.Now,
	}
}

func (s *ReportExportService) saveExportStatus(ctx context.Context, st *ExportStatus) error {
	if s.store == nil {
		return nil
	}
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	if err := s.store.Set(ctx, st.Key, string(data), exportTTL); err != nil {
		return err
	}
	return s.store.SAdd(ctx, exportSetKey, st.Key)
}

func (s *ReportExportService) progress(ctx context.Context, st *ExportStatus, progress float64, stage string) {
	st.Progress = progress
	if err := s.saveExportStatus(ctx, st); err != nil {
		s.log.Warn("save export status", zap.String("export_id", st.Key), zap.Error(err))
	}
	if s.ws != nil {
		_ = s.ws.NotifyExportProgress(ctx, st.UserID, st.Key, progress, stage)
	}
}

func (s *ReportExportService) fail(ctx context.Context, st *ExportStatus, err error) {
	errStr := err.Error()
	s.log.Error("report export failed", zap.String("export_id", st.Key), zap.String("report", st.Type), zap.Error(err))
	st.Error = &errStr
	st.Progress = 100
	_ = s.saveExportStatus(ctx, st)
	if s.ws != nil {
		_ = s.ws.NotifyExportFailed(ctx, st.UserID, st.Key, errStr)
	}
}

// StartExport queues an xlsx export of the whole filtered report and returns
// its id. The file is built in the background.
func (s *ReportExportService) StartExport(
	ctx context.Context,
	kind string,
	selected []string,
	filter repository.LoansFilter,
	userID int64,
) (string, error) {
	defaults, ok := defaultReportFields[kind]
	if !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownReport, kind)
	}
	if len(selected) == 0 {
		selected = defaults
	}
	if filter.AsOf.IsZero() {
		filter.AsOf = domain.TruncateDay(s.now().In(s.loc))
	}
	if kind == ReportArrears {
		filter.ExcludeSettled = true
	}

	if s.maxRows > 0 {
		tooMany, err := s.repo.HasMoreThan(ctx, s.maxRows, filter)
		if err != nil {
			return "", err
		}
		if tooMany {
			return "", fmt.Errorf("%w (more than %d rows)", domain.ErrTooManyRows, s.maxRows)
		}
	}

	exportID := fmt.Sprintf("exports:%s", uuid.NewString())

	status := &ExportStatus{
		Key:     exportID,
		Type:    kind,
		UserID:  userID,
		Filters: buildLoansFiltersMap(filter, selected),
		Created: s.now(),
	}
	if err := s.saveExportStatus(ctx, status); err != nil {
		s.log.Warn("save export status", zap.String("export_id", exportID), zap.Error(err))
	}

	go s.runExport(context.Background(), status, selected, filter)

	return exportID, nil
}

func (s *ReportExportService) runExport(ctx context.Context, status *ExportStatus, selected []string, filter repository.LoansFilter) {
	rows, err := s.repo.List(ctx, filter, 0, 0)
	if err != nil {
		s.fail(ctx, status, fmt.Errorf("load rows: %w", err))
		return
	}

	data, err := s.render(ctx, status, rows, selected)
	if err != nil {
		s.fail(ctx, status, err)
		return
	}

	fileName := fmt.Sprintf("%s_%s.xlsx", status.Type, s.now().In(s.loc).Format("20060102_150405"))

	if s.files == nil {
		s.fail(ctx, status, fmt.Errorf("file storage not configured"))
		return
	}

	s.progress(ctx, status, 95, "uploading")

	savedName, err := s.files.Save(ctx, fileName, data)
	if err != nil {
		s.fail(ctx, status, fmt.Errorf("save export failed: %w", err))
		return
	}
	url, err := s.files.URL(ctx, savedName)
	if err != nil {
		s.fail(ctx, status, fmt.Errorf("file url: %w", err))
		return
	}

	status.FileURL = &url
	s.progress(ctx, status, 100, "ready")
	if s.ws != nil {
		_ = s.ws.NotifyExportComplete(ctx, status.UserID, status.Key, url, fileName)
	}
	s.log.Info("report export ready",
		zap.String("export_id", status.Key),
		zap.String("report", status.Type),
		zap.Int("rows", len(rows)),
	)
}

func (s *ReportExportService) render(ctx context.Context, status *ExportStatus, rows []domain.LoanRow, selected []string) ([]byte, error) {
	var cols []LoanColumn
	for _, key := range selected {
		col, ok := loanColumns[key]
		if !ok {
			continue
		}
		cols = append(cols, col)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("no known columns in %v", selected)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := sheetNames[status.Type]
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return nil, err
	}
	_ = f.SetDocProps(&excelize.DocProperties{Creator: fmt.Sprintf("user_%d", status.UserID)})

	for i, col := range cols {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, col.Header)
	}

	total := len(rows)
	const chunkSize = 1000
	for i, r := range rows {
		ar := domain.NewArrearsRow(r)
		for colIdx, col := range cols {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, i+2)
			_ = f.SetCellValue(sheet, cell, col.Value(ar))
		}

		if (i+1)%chunkSize == 0 || i == total-1 {
			progress := math.Round(float64(i+1) / float64(total) * 100.0)
			if progress >= 95 {
				progress = 90
			}
			s.progress(ctx, status, progress, "generating")
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}
