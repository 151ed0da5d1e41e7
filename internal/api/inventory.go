package api

import (
	"net/http"

	"github.com/erazemk/zaloga/internal/cache"
	"github.com/erazemk/zaloga/internal/imaging"
	"github.com/erazemk/zaloga/internal/model"
	"github.com/erazemk/zaloga/internal/service"
	"github.com/erazemk/zaloga/internal/store"
)

// InventoryHandler handles stock rows and defects.
type InventoryHandler struct {
	Service *service.Service
}

type adjustRequest struct {
	Delta int `json:"delta"`
}

// List handles GET /api/inventory.
func (h *InventoryHandler) List(w http.ResponseWriter, r *http.Request) {
	if notModified(w, r, h.Service.Versions(), cache.Inventory) {
		return
	}

	q := r.URL.Query()
	items, err := h.Service.ListItems(r.Context(), session(r), store.ItemFilter{
		Search:    q.Get("search"),
		Category:  q.Get("category"),
		Status:    model.StockStatus(q.Get("status")),
		Condition: model.Condition(q.Get("condition")),
	})
	if err != nil {
		serviceError(w, r, err)
		return
	}
	listResponse(w, items)
}

// Get handles GET /api/inventory/{id}.
func (h *InventoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	item, err := h.Service.GetItem(r.Context(), session(r), r.PathValue("id"))
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// Create handles POST /api/inventory.
func (h *InventoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.ItemInput
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.Service.CreateItem(r.Context(), session(r), req)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, item)
}

// Update handles PUT /api/inventory/{id}.
func (h *InventoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req service.ItemUpdate
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.Service.UpdateItem(r.Context(), session(r), r.PathValue("id"), req)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// Adjust handles POST /api/inventory/{id}/adjust.
func (h *InventoryHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	var req adjustRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Delta == 0 {
		jsonError(w, http.StatusBadRequest, "delta must not be zero")
		return
	}

	item, err := h.Service.AdjustItem(r.Context(), session(r), r.PathValue("id"), req.Delta)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// UploadImage handles PUT /api/inventory/{id}/image.
func (h *InventoryHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(imaging.MaxUploadBytes); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid multipart form or file too large")
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "image file required")
		return
	}
	defer file.Close()

	item, err := h.Service.SetItemImage(r.Context(), session(r), r.PathValue("id"), file)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// Delete handles DELETE /api/inventory/{id}.
func (h *InventoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DeleteItem(r.Context(), session(r), r.PathValue("id")); err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "item deleted"})
}

// StockLevels handles GET /api/stock-levels.
func (h *InventoryHandler) StockLevels(w http.ResponseWriter, r *http.Request) {
	if notModified(w, r, h.Service.Versions(), cache.Inventory) {
		return
	}
	levels, err := h.Service.StockLevels(r.Context(), session(r))
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, levels)
}

// ListDefects handles GET /api/defects.
func (h *InventoryHandler) ListDefects(w http.ResponseWriter, r *http.Request) {
	if notModified(w, r, h.Service.Versions(), cache.Inventory) {
		return
	}
	items, err := h.Service.ListDefects(r.Context(), session(r))
	if err != nil {
		serviceError(w, r, err)
		return
	}
	listResponse(w, items)
}

// DeleteDefect handles DELETE /api/defects/{id}.
func (h *InventoryHandler) DeleteDefect(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DeleteDefect(r.Context(), session(r), r.PathValue("id")); err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "defect deleted"})
}
