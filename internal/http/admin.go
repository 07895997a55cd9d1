package http

import (
	"bytes"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/robertarktes/yard-sale-vendors/internal/admin"
	"github.com/robertarktes/yard-sale-vendors/internal/domain"
	"github.com/robertarktes/yard-sale-vendors/internal/observability"
)

func (h *Handlers) adminError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	log := observability.LoggerFromContext(r.Context(), h.logger).WithError(err)
	if status >= http.StatusInternalServerError {
		log.Error("admin request failed")
	}
	writeError(w, status, publicMessage(err))
}

// ListRegistrations handles GET /admin/registrations
func (h *Handlers) ListRegistrations(w http.ResponseWriter, r *http.Request) {
	ov, err := h.admin.Overview(r.Context())
	if err != nil {
		h.adminError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ov)
}

type setStatusRequest struct {
	Status domain.PaymentStatus `json:"status"`
}

// SetRegistrationStatus handles POST /admin/registrations/{id}/status
func (h *Handlers) SetRegistrationStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var req setStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	actor := ""
	if claims := AdminClaims(r.Context()); claims != nil {
		actor = claims.Subject
	}
	ov, err := h.admin.SetStatus(r.Context(), id, req.Status, actor)
	if err != nil {
		h.adminError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ov)
}

// ExportRegistrations handles GET /admin/registrations/export
func (h *Handlers) ExportRegistrations(w http.ResponseWriter, r *http.Request) {
	rows, err := h.admin.List(r.Context())
	if err != nil {
		h.adminError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := admin.WriteCSV(&buf, rows); err != nil {
		h.adminError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+admin.ExportFilename(h.workflow.Now())+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
