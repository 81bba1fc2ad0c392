package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ThinhVo0/BT4-CNPMM/internal/scheduler"
	"github.com/ThinhVo0/BT4-CNPMM/internal/service"
	apperrors "github.com/ThinhVo0/BT4-CNPMM/pkg/errors"
	"github.com/ThinhVo0/BT4-CNPMM/pkg/httputil"
)

// Reindexer starts full reindexes in the background.
type Reindexer interface {
	Trigger(trigger string) bool
	Running() bool
	Last() (scheduler.Run, bool)
}

// AdminHandler serves the index maintenance endpoints.
type AdminHandler struct {
	service   *service.SearchService
	reindexer Reindexer
	logger    *slog.Logger
}

// NewAdminHandler creates a new admin HTTP handler.
func NewAdminHandler(svc *service.SearchService, reindexer Reindexer, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{service: svc, reindexer: reindexer, logger: logger}
}

type reindexStatus struct {
	Started bool           `json:"started"`
	Running bool           `json:"running"`
	Last    *scheduler.Run `json:"last,omitempty"`
}

func (h *AdminHandler) status(started bool) reindexStatus {
	s := reindexStatus{Started: started, Running: h.reindexer.Running()}
	if last, ok := h.reindexer.Last(); ok {
		s.Last = &last
	}
	return s
}

// SyncAll handles POST /api/v1/search/sync-all. The reindex runs in the
// background; a request made while one is running does not start another.
func (h *AdminHandler) SyncAll(w http.ResponseWriter, r *http.Request) {
	started := h.reindexer.Trigger("admin")
	h.logger.InfoContext(r.Context(), "reindex requested", slog.Bool("started", started))
	httputil.WriteData(w, http.StatusAccepted, h.status(started))
}

// SyncOne handles POST /api/v1/search/sync/{productId}.
func (h *AdminHandler) SyncOne(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, chi.URLParam(r, "productId"))
	if !ok {
		return
	}

	action, err := h.service.SyncOne(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, indexError(err), h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, map[string]string{"id": id, "status": string(action)})
}

// Remove handles DELETE /api/v1/search/remove/{productId}.
func (h *AdminHandler) Remove(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseID(w, chi.URLParam(r, "productId"))
	if !ok {
		return
	}

	if err := h.service.Remove(r.Context(), id); err != nil {
		httputil.WriteError(w, r, indexError(err), h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, map[string]string{"id": id, "status": "removed"})
}

// Stats handles GET /api/v1/search/stats.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, map[string]any{
		"index":   stats,
		"reindex": h.status(false),
	})
}

// indexError reports index write failures as backend unavailability while
// keeping store lookups such as not-found intact.
func indexError(err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperrors.ServiceUnavailable("search backend unavailable", err)
}
