package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"microfinance-reports/internal/domain"
	"microfinance-reports/internal/report"
	"microfinance-reports/internal/repository"
	"microfinance-reports/internal/service"
)

const dateLayout = "2006-01-02"

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Query parameters are permissive: an empty or malformed value is treated as
// if it were absent.

func queryString(q url.Values, keys ...string) *string {
	for _, k := range keys {
		if v := strings.TrimSpace(q.Get(k)); v != "" {
			return &v
		}
	}
	return nil
}

func queryInt64(q url.Values, key string) *int64 {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return nil
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil
	}
	return &i
}

func queryInt(q url.Values, key string) (int, bool) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return 0, false
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return i, true
}

func queryDate(q url.Values, key string, loc *time.Location) *time.Time {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return nil
	}
	// datetime values keep only their date part
	if len(v) > len(dateLayout) {
		v = v[:len(dateLayout)]
	}
	t, err := time.ParseInLocation(dateLayout, v, loc)
	if err != nil {
		return nil
	}
	return &t
}

// ParseLoansFilter maps report query parameters onto a repository filter.
func ParseLoansFilter(q url.Values, loc *time.Location) repository.LoansFilter {
	if loc == nil {
		loc = time.Local
	}

	f := repository.LoansFilter{
		BranchID:        queryInt64(q, "branch_id"),
		Status:          queryString(q, "status"),
		RepaymentMethod: queryString(q, "repayment_method"),
		CreditOfficer:   queryString(q, "credit_officer", "credit_officer_name"),
		MemberID:        queryInt64(q, "member_id"),
		DateFrom:        queryDate(q, "date_from", loc),
		DateTo:          queryDate(q, "date_to", loc),
	}

	if v := queryString(q, "loan_type"); v != nil {
		if t, ok := domain.ParseLoanType(*v); ok {
			f.LoanType = &t
		}
	}
	if d, ok := queryInt(q, "days_overdue"); ok && d >= 0 {
		f.MinDaysOverdue = &d
	}
	if asOf := queryDate(q, "date_as_of", loc); asOf != nil {
		f.AsOf = *asOf
	}

	return f
}

func ParsePageRequest(q url.Values) report.PageRequest {
	page, _ := queryInt(q, "page")
	perPage, _ := queryInt(q, "per_page")
	return report.NewPageRequest(page, perPage)
}

type ExportRequest struct {
	Report string   `json:"-" validate:"required,oneof=portfolio arrears"`
	Fields []string `json:"fields" validate:"omitempty,max=50,unique,dive,required,report_field"`
}

func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("report_field", func(fl validator.FieldLevel) bool {
		return service.IsExportField(fl.Field().String())
	})
	return v
}

// ValidateExportRequest decodes the optional JSON body and checks it against
// the report named in the URL.
func ValidateExportRequest(r *http.Request, reportName string, v *validator.Validate) (*ExportRequest, error) {
	req := &ExportRequest{}
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(req); err != nil && !errors.Is(err, io.EOF) {
			return nil, &ValidationError{Field: "body", Message: "invalid JSON"}
		}
	}
	req.Report = reportName

	if err := v.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return nil, toValidationError(verrs[0])
		}
		return nil, err
	}
	return req, nil
}

func toValidationError(fe validator.FieldError) *ValidationError {
	switch fe.StructField() {
	case "Report":
		return &ValidationError{Field: "report", Message: fmt.Sprintf("unknown report %q", fe.Value())}
	default:
		if fe.Tag() == "report_field" {
			return &ValidationError{Field: "fields", Message: fmt.Sprintf("unknown field %q", fe.Value())}
		}
		return &ValidationError{Field: "fields", Message: fmt.Sprintf("fields failed %q validation", fe.Tag())}
	}
}
