package api

import (
	"net/http"

	"github.com/erazemk/zaloga/internal/cache"
	"github.com/erazemk/zaloga/internal/model"
	"github.com/erazemk/zaloga/internal/service"
	"github.com/erazemk/zaloga/internal/store"
)

// UsageHandler handles used and given records.
type UsageHandler struct {
	Service *service.Service
}

// List handles GET /api/used-given.
func (h *UsageHandler) List(w http.ResponseWriter, r *http.Request) {
	if notModified(w, r, h.Service.Versions(), cache.UsedGiven) {
		return
	}

	q := r.URL.Query()
	records, err := h.Service.ListUsage(r.Context(), session(r), store.UsageFilter{
		Search: q.Get("search"),
		Type:   model.UsageType(q.Get("type")),
		ItemID: q.Get("item_id"),
	})
	if err != nil {
		serviceError(w, r, err)
		return
	}
	listResponse(w, records)
}

// Create handles POST /api/used-given.
func (h *UsageHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.UsageInput
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	record, err := h.Service.CreateUsage(r.Context(), session(r), req)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, record)
}

// Delete handles DELETE /api/used-given/{id}.
func (h *UsageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DeleteUsage(r.Context(), session(r), r.PathValue("id")); err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "record deleted"})
}
