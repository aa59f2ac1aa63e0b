package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"microfinance-reports/internal/domain"
	"microfinance-reports/internal/report"
	"microfinance-reports/internal/repository"
	"microfinance-reports/internal/service"
)

type ReportReader interface {
	Portfolio(ctx context.Context, f repository.LoansFilter, page report.PageRequest) (*service.PortfolioReport, error)
	Arrears(ctx context.Context, f repository.LoansFilter, page report.PageRequest) (*service.ArrearsReport, error)
	LoanDetail(ctx context.Context, key string, asOf time.Time) (*domain.LoanDetail, error)
	Dashboard(ctx context.Context, f repository.LoansFilter) (domain.DashboardStats, error)
	MemberLoans(ctx context.Context, key string) (*service.MemberLoans, error)
}

type ReportExporter interface {
	StartExport(
		ctx context.Context,
		kind string,
		selected []string,
		filter repository.LoansFilter,
		userID int64,
	) (string, error)
}

type Handler struct {
	reports    ReportReader
	exporter   ReportExporter
	exportList ExportListService
	validate   *validator.Validate
	log        *zap.Logger
	loc        *time.Location
	timeout    time.Duration
}

type Option func(*Handler)

// WithLocation sets the zone report dates are parsed in.
func WithLocation(loc *time.Location) Option {
	return func(h *Handler) { h.loc = loc }
}

func WithTimeout(d time.Duration) Option {
	return func(h *Handler) { h.timeout = d }
}

func NewHandler(reports ReportReader, exporter ReportExporter, exportList ExportListService, log *zap.Logger, opts ...Option) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Handler{
		reports:    reports,
		exporter:   exporter,
		exportList: exportList,
		validate:   NewValidator(),
		log:        log,
		loc:        time.Local,
		timeout:    60 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) InitRouter() *chi.Mux {
	return h.InitRouterWithAuth(nil)
}

// InitRouterWithAuth builds the API router. Extra middlewares run after the
// standard stack and before authentication.
func (h *Handler) InitRouterWithAuth(authMiddleware func(http.Handler) http.Handler, extra ...func(http.Handler) http.Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		RequestLogger(h.log),
		Recoverer(h.log),
		middleware.Timeout(h.timeout),
	)
	r.Use(extra...)

	if authMiddleware != nil {
		r.Use(authMiddleware)
	}

	r.Route("/reports", func(r chi.Router) {
		r.Get("/portfolio", h.portfolio)
		r.Get("/arrears", h.arrears)
		r.Get("/loan-details/{loanId}", h.loanDetails)
		r.Get("/dashboard-stats", h.dashboardStats)
		r.Post("/{report}/export", h.exportReport)
	})

	r.Get("/members/{memberIdOrNic}/loans", h.memberLoans)

	r.Route("/export", func(r chi.Router) {
		r.Get("/", h.listExports)
		r.Get("/{export_id}", h.getExport)
	})

	return r
}

// internalError hides err from the client and logs it with the request id.
func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, message string, err error) {
	h.log.Error(message,
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.String("path", r.URL.Path),
		zap.Error(err),
		zap.Stack("stack"),
	)
	ErrorInternal(w, message)
}
