package rest

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"microfinance-reports/internal/domain"
	"microfinance-reports/internal/transport/auth"
)

// exportReport queues an xlsx export of a report. Filters come from the query
// string, same as the report endpoints; the body selects columns.
func (h *Handler) exportReport(w http.ResponseWriter, r *http.Request) {
	name := strings.ToLower(chi.URLParam(r, "report"))

	req, err := ValidateExportRequest(r, name, h.validate)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			if verr.Field == "report" {
				ErrorNotFound(w, verr.Message)
				return
			}
			ErrorBadRequest(w, verr.Message)
			return
		}
		ErrorBadRequest(w, "invalid request")
		return
	}

	userID, err := auth.GetUserID(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	filter := ParseLoansFilter(r.URL.Query(), h.loc)

	exportID, err := h.exporter.StartExport(r.Context(), req.Report, req.Fields, filter, userID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrTooManyRows):
			ErrorUnprocessable(w, "Too many rows to export, narrow the filters")
		case errors.Is(err, domain.ErrUnknownReport):
			ErrorNotFound(w, err.Error())
		default:
			h.internalError(w, r, "failed to start export", err)
		}
		return
	}

	SuccessAccepted(w, "Export queued", map[string]interface{}{
		"export_id": exportID,
	})
}
