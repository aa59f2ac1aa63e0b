package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"microfinance-reports/internal/domain"
	"microfinance-reports/internal/report"
	"microfinance-reports/internal/repository"
	"microfinance-reports/internal/service"
	"microfinance-reports/internal/transport/auth"
)

const testFixtures = `
members:
  - {id: 1, full_name: "Nimal Perera", nic: "851234567V", phone: "0771234567", address: "Kandy"}
  - {id: 2, full_name: "Kamala Silva", nic: "199012345678"}
loans:
  - {id: 1, loan_id: BL1, loan_type: BL, member_id: 1, loan_amount: "1000", interest_rate: "12", installments: 10, status: disbursed, branch_id: 1, branch_name: Kandy, product_name: Business, credit_officer: "Sunil Fernando", created_at: "2024-01-05"}
  - {id: 2, loan_id: BL2, loan_type: BL, member_id: 1, loan_amount: "2000", interest_rate: "10", installments: 12, status: settled, branch_id: 1, branch_name: Kandy, product_name: Business, credit_officer: "Sunil Fernando", created_at: "2024-01-10"}
  - {id: 3, loan_id: BL3, loan_type: BL, member_id: 2, loan_amount: "500", interest_rate: "14", installments: 6, status: overdue, branch_id: 2, branch_name: Galle, product_name: Business, credit_officer: "Ruwan Jayasuriya", created_at: "2024-02-01"}
  - {id: 4, loan_id: ML1, loan_type: ML, member_id: 99, loan_amount: "300", interest_rate: "18", installments: 12, status: disbursed, branch_id: 2, cbo_name: "Lotus CBO", created_at: "2024-02-03"}
installments:
  - {loan_id: 3, installment_number: 1, due_date: "2024-03-01", total_due: "100", capital_due: "80", interest_due: "20", penalty: "5"}
  - {loan_id: 3, installment_number: 2, due_date: "2024-04-01", total_due: "100", capital_due: "80", interest_due: "20"}
payments:
  - {id: 1, loan_id: 1, amount: "250", capital_paid: "200", interest_paid: "50", payment_date: "2024-02-05", payment_method: cash}
  - {id: 2, loan_id: 3, amount: "50", capital_paid: "40", interest_paid: "10", payment_date: "2024-02-20", payment_method: cash}
tokens:
  - {id: 7, user_id: 42, token: "7|secret-token"}
`

type envelope struct {
	ErrorCode int             `json:"error_code"`
	Status    string          `json:"status"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
}

type fakeExporter struct {
	kind     string
	selected []string
	filter   repository.LoansFilter
	userID   int64
	err      error
}

func (f *fakeExporter) StartExport(_ context.Context, kind string, selected []string, filter repository.LoansFilter, userID int64) (string, error) {
	f.kind, f.selected, f.filter, f.userID = kind, selected, filter, userID
	if f.err != nil {
		return "", f.err
	}
	return "exports:abc", nil
}

type fakeExportList struct {
	views map[string]service.ExportView
}

func (f *fakeExportList) GetExports(_ context.Context, _ int64) ([]service.ExportView, error) {
	out := []service.ExportView{}
	for _, v := range f.views {
		out = append(out, v)
	}
	return out, nil
}

func (f *fakeExportList) GetExport(_ context.Context, id string, _ int64) (*service.ExportView, error) {
	v, ok := f.views[id]
	if !ok {
		return nil, domain.ErrExportNotFound
	}
	return &v, nil
}

type failingReports struct{ ReportReader }

func (failingReports) Portfolio(context.Context, repository.LoansFilter, report.PageRequest) (*service.PortfolioReport, error) {
	return nil, errors.New("connection refused")
}

func newTestStore(t *testing.T) *repository.MemoryStore {
	t.Helper()
	store, err := repository.ParseFixtures([]byte(testFixtures))
	require.NoError(t, err)
	return store
}

func asUser(id int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(auth.WithUserID(r.Context(), id)))
		})
	}
}

func newTestServer(t *testing.T, exporter *fakeExporter) *httptest.Server {
	t.Helper()
	store := newTestStore(t)
	reports := service.NewReportService(store, store, store, time.UTC, zap.NewNop())
	if exporter == nil {
		exporter = &fakeExporter{}
	}
	h := NewHandler(reports, exporter, &fakeExportList{}, zap.NewNop(), WithLocation(time.UTC))
	srv := httptest.NewServer(h.InitRouterWithAuth(asUser(42)))
	t.Cleanup(srv.Close)
	return srv
}

func doRequest(t *testing.T, method, url, body string) (*http.Response, envelope) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp, env
}

type pageOf[T any] struct {
	Data        []T   `json:"data"`
	CurrentPage int   `json:"current_page"`
	LastPage    int   `json:"last_page"`
	PerPage     int   `json:"per_page"`
	Total       int64 `json:"total"`
}

type rowJSON struct {
	LoanID        string   `json:"loan_id"`
	LoanAmount    float64  `json:"loan_amount"`
	Status        string   `json:"status"`
	BranchName    *string  `json:"branch_name"`
	ProductName   *string  `json:"product_name"`
	CreditOfficer *string  `json:"credit_officer"`
	MemberName    *string  `json:"member_name"`
	MemberNIC     *string  `json:"member_nic"`
	TotalDue      *float64 `json:"total_due"`
	DaysOverdue   int      `json:"days_overdue"`
}

func loanIDs(rows []rowJSON) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.LoanID)
	}
	return out
}

func TestPortfolio_FilteredByBranch(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, env := doRequest(t, http.MethodGet, srv.URL+"/reports/portfolio?branch_id=1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "success", env.Status)

	var data struct {
		Loans   pageOf[rowJSON] `json:"loans"`
		Summary struct {
			TotalLoans          int64   `json:"total_loans"`
			TotalAmount         float64 `json:"total_amount"`
			AverageInterestRate float64 `json:"average_interest_rate"`
			TotalOutstanding    float64 `json:"total_outstanding"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))

	assert.Equal(t, []string{"BL1", "BL2"}, loanIDs(data.Loans.Data))
	assert.Equal(t, int64(2), data.Summary.TotalLoans)
	assert.Equal(t, 3000.0, data.Summary.TotalAmount)
	assert.Equal(t, 11.0, data.Summary.AverageInterestRate)
	assert.Equal(t, 2750.0, data.Summary.TotalOutstanding)
	assert.Equal(t, 1, data.Loans.CurrentPage)
	assert.Equal(t, 1, data.Loans.LastPage)
	assert.Equal(t, 20, data.Loans.PerPage)
}

func TestPortfolio_RowsCarryMemberColumnsAndNullsForMissingMember(t *testing.T) {
	srv := newTestServer(t, nil)

	_, env := doRequest(t, http.MethodGet, srv.URL+"/reports/portfolio?loan_type=micro_loan", "")

	var data struct {
		Loans pageOf[rowJSON] `json:"loans"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Len(t, data.Loans.Data, 1)

	row := data.Loans.Data[0]
	assert.Equal(t, "ML1", row.LoanID)
	assert.Nil(t, row.MemberName)
	assert.Nil(t, row.MemberNIC)
}

func TestPortfolio_PaginationKeepsSummaryOverWholeSet(t *testing.T) {
	srv := newTestServer(t, nil)

	_, env := doRequest(t, http.MethodGet, srv.URL+"/reports/portfolio?per_page=2&page=2", "")

	var data struct {
		Loans   pageOf[rowJSON] `json:"loans"`
		Summary struct {
			TotalLoans  int64   `json:"total_loans"`
			TotalAmount float64 `json:"total_amount"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))

	assert.Equal(t, []string{"BL3", "ML1"}, loanIDs(data.Loans.Data))
	assert.Equal(t, int64(4), data.Loans.Total)
	assert.Equal(t, 2, data.Loans.LastPage)
	assert.Equal(t, int64(4), data.Summary.TotalLoans)
	assert.Equal(t, 3800.0, data.Summary.TotalAmount)
}

func TestPortfolio_MalformedFiltersAreIgnored(t *testing.T) {
	srv := newTestServer(t, nil)

	_, env := doRequest(t, http.MethodGet, srv.URL+"/reports/portfolio?branch_id=abc&date_from=yesterday&per_page=-3", "")

	var data struct {
		Loans pageOf[rowJSON] `json:"loans"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Len(t, data.Loans.Data, 4)
	assert.Equal(t, 20, data.Loans.PerPage)
}

func TestReports_HugePageReturnsEmptyData(t *testing.T) {
	srv := newTestServer(t, nil)
	const huge = "?page=9223372036854775807"

	resp, env := doRequest(t, http.MethodGet, srv.URL+"/reports/portfolio"+huge, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var portfolio struct {
		Loans pageOf[rowJSON] `json:"loans"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &portfolio))
	assert.NotNil(t, portfolio.Loans.Data)
	assert.Empty(t, portfolio.Loans.Data)
	assert.Equal(t, report.MaxPage, portfolio.Loans.CurrentPage)
	assert.Equal(t, int64(4), portfolio.Loans.Total)

	resp, env = doRequest(t, http.MethodGet, srv.URL+"/reports/arrears"+huge, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var arrears struct {
		Arrears pageOf[rowJSON] `json:"arrears"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &arrears))
	assert.NotNil(t, arrears.Arrears.Data)
	assert.Empty(t, arrears.Arrears.Data)
}

func TestArrears_ExcludesSettledLoans(t *testing.T) {
	srv := newTestServer(t, nil)

	_, env := doRequest(t, http.MethodGet, srv.URL+"/reports/arrears?branch_id=1&date_as_of=2024-05-01", "")

	var data struct {
		Arrears pageOf[rowJSON] `json:"arrears"`
		Summary struct {
			TotalArrears   int64   `json:"total_arrears"`
			TotalAmountDue float64 `json:"total_amount_due"`
		} `json:"summary"`
		Filters map[string]interface{} `json:"filters"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))

	assert.Equal(t, []string{"BL1"}, loanIDs(data.Arrears.Data))
	assert.Equal(t, int64(1), data.Summary.TotalArrears)
	assert.Equal(t, 750.0, data.Summary.TotalAmountDue)
	assert.Equal(t, "2024-05-01", data.Filters["date_as_of"])
	assert.Equal(t, 1.0, data.Filters["branch_id"])
}

func TestArrears_DaysOverdueThreshold(t *testing.T) {
	srv := newTestServer(t, nil)

	_, env := doRequest(t, http.MethodGet, srv.URL+"/reports/arrears?days_overdue=30&date_as_of=2024-04-15&credit_officer=ruwan", "")

	var data struct {
		Arrears pageOf[rowJSON] `json:"arrears"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Len(t, data.Arrears.Data, 1)

	row := data.Arrears.Data[0]
	assert.Equal(t, "BL3", row.LoanID)
	assert.Equal(t, 45, row.DaysOverdue)
	require.NotNil(t, row.TotalDue)
	assert.Equal(t, 450.0, *row.TotalDue)
}

func TestReports_InternalErrorHidesCause(t *testing.T) {
	h := NewHandler(failingReports{}, &fakeExporter{}, &fakeExportList{}, zap.NewNop())
	srv := httptest.NewServer(h.InitRouter())
	defer srv.Close()

	resp, env := doRequest(t, http.MethodGet, srv.URL+"/reports/portfolio", "")

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "error", env.Status)
	assert.Equal(t, "Error fetching portfolio report", env.Message)
	assert.NotContains(t, string(env.Data), "connection refused")
}

func TestLoanDetails_ByBusinessKeyAndInternalID(t *testing.T) {
	srv := newTestServer(t, nil)

	for _, key := range []string{"BL3", "3"} {
		resp, env := doRequest(t, http.MethodGet, srv.URL+"/reports/loan-details/"+key, "")
		require.Equal(t, http.StatusOK, resp.StatusCode, key)

		var data struct {
			Loan struct {
				LoanID     string  `json:"loan_id"`
				MemberName *string `json:"member_name"`
				NIC        *string `json:"nic"`
				Phone      *string `json:"phone"`
			} `json:"loan"`
			Installments []json.RawMessage `json:"installments"`
			Payments     []json.RawMessage `json:"payments"`
			Summary      struct {
				AgreedAmount     float64 `json:"agreed_amount"`
				TotalPaid        float64 `json:"total_paid"`
				TotalOutstanding float64 `json:"total_outstanding"`
				TotalPenalty     float64 `json:"total_penalty"`
				LoanType         string  `json:"loan_type"`
			} `json:"summary"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &data))

		assert.Equal(t, "BL3", data.Loan.LoanID)
		require.NotNil(t, data.Loan.MemberName)
		assert.Equal(t, "Kamala Silva", *data.Loan.MemberName)
		require.NotNil(t, data.Loan.NIC)
		assert.Equal(t, "199012345678", *data.Loan.NIC)
		assert.Nil(t, data.Loan.Phone)
		assert.Len(t, data.Installments, 2)
		assert.Len(t, data.Payments, 1)
		assert.Equal(t, 500.0, data.Summary.AgreedAmount)
		assert.Equal(t, 50.0, data.Summary.TotalPaid)
		assert.Equal(t, 450.0, data.Summary.TotalOutstanding)
		assert.Equal(t, 5.0, data.Summary.TotalPenalty)
		assert.Equal(t, "BL", data.Summary.LoanType)
	}
}

func TestLoanDetails_ArrearsHonourDateAsOf(t *testing.T) {
	srv := newTestServer(t, nil)

	tests := []struct {
		asOf        string
		wantArrears float64
	}{
		{asOf: "2024-02-15", wantArrears: 0},
		{asOf: "2024-03-15", wantArrears: 100},
		{asOf: "2024-04-15", wantArrears: 200},
	}
	for _, tt := range tests {
		t.Run(tt.asOf, func(t *testing.T) {
			resp, env := doRequest(t, http.MethodGet, srv.URL+"/reports/loan-details/BL3?date_as_of="+tt.asOf, "")
			require.Equal(t, http.StatusOK, resp.StatusCode)

			var data struct {
				Summary struct {
					Arrears float64 `json:"arrears"`
				} `json:"summary"`
			}
			require.NoError(t, json.Unmarshal(env.Data, &data))
			assert.Equal(t, tt.wantArrears, data.Summary.Arrears)
		})
	}
}

func TestLoanDetails_NotFound(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, env := doRequest(t, http.MethodGet, srv.URL+"/reports/loan-details/NOPE-404", "")

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "error", env.Status)
	assert.Equal(t, "Loan application not found", env.Message)
}

func TestLoanDetails_MicroLoanWithoutMember(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, env := doRequest(t, http.MethodGet, srv.URL+"/reports/loan-details/ML1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var data struct {
		Loan struct {
			CBOName    *string `json:"cbo_name"`
			MemberName *string `json:"member_name"`
		} `json:"loan"`
		Member       *json.RawMessage  `json:"member"`
		Installments []json.RawMessage `json:"installments"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))

	require.NotNil(t, data.Loan.CBOName)
	assert.Equal(t, "Lotus CBO", *data.Loan.CBOName)
	assert.Nil(t, data.Loan.MemberName)
	assert.Nil(t, data.Member)
	assert.NotNil(t, data.Installments)
	assert.Empty(t, data.Installments)
}

func TestMemberLoans(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, env := doRequest(t, http.MethodGet, srv.URL+"/members/851234567V/loans", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var data struct {
		BusinessLoans []rowJSON `json:"business_loans"`
		MicroLoans    []rowJSON `json:"micro_loans"`
		TotalLoans    int       `json:"total_loans"`
		TotalDue      float64   `json:"total_due"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))

	assert.Equal(t, []string{"BL1", "BL2"}, loanIDs(data.BusinessLoans))
	assert.Empty(t, data.MicroLoans)
	assert.Equal(t, 2, data.TotalLoans)
	assert.Equal(t, 2750.0, data.TotalDue)

	resp, env = doRequest(t, http.MethodGet, srv.URL+"/members/000000000V/loans", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Member not found", env.Message)
}

func TestDashboardStats_DateRange(t *testing.T) {
	srv := newTestServer(t, nil)

	_, env := doRequest(t, http.MethodGet, srv.URL+"/reports/dashboard-stats?date_from=2024-02-01&date_to=2024-02-29", "")

	var data struct {
		DateFrom string `json:"date_from"`
		DateTo   string `json:"date_to"`
		Stats    struct {
			Loans         int64   `json:"loans"`
			LoanAmount    float64 `json:"loan_amount"`
			Payments      float64 `json:"payments"`
			PaymentsCount int64   `json:"payments_count"`
		} `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))

	assert.Equal(t, "2024-02-01", data.DateFrom)
	assert.Equal(t, "2024-02-29", data.DateTo)
	assert.Equal(t, int64(2), data.Stats.Loans)
	assert.Equal(t, 800.0, data.Stats.LoanAmount)
	assert.Equal(t, int64(2), data.Stats.PaymentsCount)
	assert.Equal(t, 300.0, data.Stats.Payments)
}

func TestExportReport(t *testing.T) {
	exporter := &fakeExporter{}
	srv := newTestServer(t, exporter)

	resp, env := doRequest(t, http.MethodPost, srv.URL+"/reports/arrears/export?branch_id=2", `{"fields":["loan_id","days_overdue"]}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.JSONEq(t, `{"export_id":"exports:abc"}`, string(env.Data))

	assert.Equal(t, "arrears", exporter.kind)
	assert.Equal(t, []string{"loan_id", "days_overdue"}, exporter.selected)
	assert.Equal(t, int64(42), exporter.userID)
	require.NotNil(t, exporter.filter.BranchID)
	assert.Equal(t, int64(2), *exporter.filter.BranchID)
}

func TestExportReport_Validation(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{name: "unknown report", path: "/reports/ledger/export", status: http.StatusNotFound},
		{name: "unknown field", path: "/reports/portfolio/export", body: `{"fields":["password"]}`, status: http.StatusBadRequest},
		{name: "duplicate field", path: "/reports/portfolio/export", body: `{"fields":["loan_id","loan_id"]}`, status: http.StatusBadRequest},
		{name: "bad json", path: "/reports/portfolio/export", body: `{"fields":`, status: http.StatusBadRequest},
		{name: "empty body uses defaults", path: "/reports/portfolio/export", status: http.StatusAccepted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, nil)
			resp, _ := doRequest(t, http.MethodPost, srv.URL+tt.path, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestExportReport_TooManyRows(t *testing.T) {
	srv := newTestServer(t, &fakeExporter{err: domain.ErrTooManyRows})

	resp, env := doRequest(t, http.MethodPost, srv.URL+"/reports/portfolio/export", "")

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "error", env.Status)
}

func TestGetExport(t *testing.T) {
	list := &fakeExportList{views: map[string]service.ExportView{
		"exports:abc": {Key: "exports:abc", Type: "portfolio", Progress: 100},
	}}
	h := NewHandler(nil, &fakeExporter{}, list, zap.NewNop())
	srv := httptest.NewServer(h.InitRouterWithAuth(asUser(42)))
	defer srv.Close()

	resp, _ := doRequest(t, http.MethodGet, srv.URL+"/export/abc", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, env := doRequest(t, http.MethodGet, srv.URL+"/export/missing", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "export not found", env.Message)

	resp, _ = doRequest(t, http.MethodGet, srv.URL+"/export", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouter_SanctumTokens(t *testing.T) {
	store := newTestStore(t)
	reports := service.NewReportService(store, store, store, time.UTC, zap.NewNop())
	h := NewHandler(reports, &fakeExporter{}, &fakeExportList{}, zap.NewNop())
	srv := httptest.NewServer(h.InitRouterWithAuth(auth.SanctumMiddleware(store, zap.NewNop())))
	defer srv.Close()

	resp, env := doRequest(t, http.MethodGet, srv.URL+"/reports/portfolio", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Unauthorized", env.Message)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/reports/portfolio", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer 7|secret-token")
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestRequestLogger_DoesNotLogTokens(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	store := newTestStore(t)
	reports := service.NewReportService(store, store, store, time.UTC, zap.NewNop())
	h := NewHandler(reports, &fakeExporter{}, &fakeExportList{}, zap.New(core))
	srv := httptest.NewServer(h.InitRouterWithAuth(auth.SanctumMiddleware(store, zap.NewNop())))
	defer srv.Close()

	resp, _ := doRequest(t, http.MethodGet, srv.URL+"/reports/portfolio?branch_id=1&token=7|secret-token", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	entries := logs.FilterMessage("http request").All()
	require.Len(t, entries, 1)
	query := entries[0].ContextMap()["query"]
	assert.Equal(t, "branch_id=1&token=REDACTED", query)
	for _, e := range logs.All() {
		for _, v := range e.ContextMap() {
			assert.NotContains(t, fmt.Sprint(v), "secret-token")
		}
	}
}

func TestRedactQuery(t *testing.T) {
	assert.Equal(t, "", redactQuery(""))
	assert.Equal(t, "page=2", redactQuery("page=2"))
	assert.Equal(t, "access_token=REDACTED&page=2", redactQuery("page=2&access_token=abc"))
	assert.Equal(t, "[unparsable]", redactQuery("token=%zz"))
}

func TestRecoverer(t *testing.T) {
	handler := Recoverer(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Internal server error")
}
