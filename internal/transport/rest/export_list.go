package rest

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"microfinance-reports/internal/domain"
	"microfinance-reports/internal/service"
	"microfinance-reports/internal/transport/auth"
)

type ExportListService interface {
	GetExports(ctx context.Context, userID int64) ([]service.ExportView, error)
	GetExport(ctx context.Context, exportID string, userID int64) (*service.ExportView, error)
}

func (h *Handler) listExports(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.GetUserID(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	exports, err := h.exportList.GetExports(r.Context(), userID)
	if err != nil {
		h.internalError(w, r, "failed to get exports", err)
		return
	}

	Success(w, "", exports)
}

func (h *Handler) getExport(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.GetUserID(r.Context())
	if err != nil {
		ErrorUnauthorized(w, "Unauthorized")
		return
	}

	exportIDParam := chi.URLParam(r, "export_id")
	if exportIDParam == "" {
		ErrorBadRequest(w, "export_id is required")
		return
	}
	exportID := "exports:" + exportIDParam

	export, err := h.exportList.GetExport(r.Context(), exportID, userID)
	if err != nil {
		if errors.Is(err, domain.ErrExportNotFound) {
			ErrorNotFound(w, "export not found")
			return
		}
		h.internalError(w, r, "failed to get export", err)
		return
	}

	Success(w, "", export)
}
