package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/erazemk/zaloga/internal/cache"
	"github.com/erazemk/zaloga/internal/model"
	"github.com/erazemk/zaloga/internal/realtime"
	"github.com/erazemk/zaloga/internal/service"
)

// ReportsHandler serves read-only views: activity, dashboard, PDF reports,
// the export dump and the change feed.
type ReportsHandler struct {
	Service *service.Service
	Hub     *realtime.Hub
}

// Activity handles GET /api/activity.
func (h *ReportsHandler) Activity(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			jsonError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	if notModified(w, r, h.Service.Versions(), cache.Activity) {
		return
	}
	logs, err := h.Service.ListActivity(r.Context(), session(r), limit)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	listResponse(w, logs)
}

// Dashboard handles GET /api/dashboard.
func (h *ReportsHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Service.Dashboard(r.Context(), session(r))
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, summary)
}

// InventoryPDF handles GET /api/reports/inventory.pdf.
func (h *ReportsHandler) InventoryPDF(w http.ResponseWriter, r *http.Request) {
	h.pdf(w, r, "inventory", h.Service.InventoryReport)
}

// BorrowedPDF handles GET /api/reports/borrowed.pdf.
func (h *ReportsHandler) BorrowedPDF(w http.ResponseWriter, r *http.Request) {
	h.pdf(w, r, "borrowed", h.Service.BorrowedReport)
}

// DefectedPDF handles GET /api/reports/defected.pdf.
func (h *ReportsHandler) DefectedPDF(w http.ResponseWriter, r *http.Request) {
	h.pdf(w, r, "defected", h.Service.DefectedReport)
}

func (h *ReportsHandler) pdf(w http.ResponseWriter, r *http.Request, name string, render func(context.Context, model.Session) ([]byte, error)) {
	data, err := render(r.Context(), session(r))
	if err != nil {
		serviceError(w, r, err)
		return
	}
	pdfResponse(w, name+"-report-"+time.Now().Format("2006-01-02")+".pdf", data)
}

// Export handles GET /api/export.
func (h *ReportsHandler) Export(w http.ResponseWriter, r *http.Request) {
	out, err := h.Service.Export(r.Context(), session(r))
	if err != nil {
		serviceError(w, r, err)
		return
	}
	w.Header().Set("Content-Disposition",
		`attachment; filename="zaloga-export-`+out.ExportedAt.Format("2006-01-02")+`.json"`)
	jsonResponse(w, http.StatusOK, out)
}

// Changes handles GET /api/changes. The connection receives one event per
// changed table and is otherwise silent.
func (h *ReportsHandler) Changes(w http.ResponseWriter, r *http.Request) {
	h.Hub.ServeWS(w, r, session(r).UserID)
}
