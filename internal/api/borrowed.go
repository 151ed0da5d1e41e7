package api

import (
	"net/http"

	"github.com/erazemk/zaloga/internal/cache"
	"github.com/erazemk/zaloga/internal/model"
	"github.com/erazemk/zaloga/internal/service"
	"github.com/erazemk/zaloga/internal/store"
)

// BorrowedHandler handles borrow records.
type BorrowedHandler struct {
	Service *service.Service
}

// List handles GET /api/borrowed.
func (h *BorrowedHandler) List(w http.ResponseWriter, r *http.Request) {
	if notModified(w, r, h.Service.Versions(), cache.Borrowed) {
		return
	}

	q := r.URL.Query()
	records, err := h.Service.ListBorrowed(r.Context(), session(r), store.BorrowFilter{
		Search: q.Get("search"),
		Status: model.BorrowStatus(q.Get("status")),
		ItemID: q.Get("item_id"),
	})
	if err != nil {
		serviceError(w, r, err)
		return
	}
	listResponse(w, records)
}

// Get handles GET /api/borrowed/{id}.
func (h *BorrowedHandler) Get(w http.ResponseWriter, r *http.Request) {
	record, err := h.Service.GetBorrowed(r.Context(), session(r), r.PathValue("id"))
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, record)
}

// Create handles POST /api/borrowed.
func (h *BorrowedHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req service.BorrowInput
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	record, err := h.Service.CreateBorrowed(r.Context(), session(r), req)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusCreated, record)
}

// Update handles PUT /api/borrowed/{id}.
func (h *BorrowedHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req service.BorrowUpdate
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	record, err := h.Service.UpdateBorrowed(r.Context(), session(r), r.PathValue("id"), req)
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, record)
}

// Return handles POST /api/borrowed/{id}/return.
func (h *BorrowedHandler) Return(w http.ResponseWriter, r *http.Request) {
	record, err := h.Service.ReturnBorrowed(r.Context(), session(r), r.PathValue("id"))
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, record)
}

// Extend handles POST /api/borrowed/{id}/extend.
func (h *BorrowedHandler) Extend(w http.ResponseWriter, r *http.Request) {
	record, err := h.Service.ExtendBorrowed(r.Context(), session(r), r.PathValue("id"))
	if err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, record)
}

// Delete handles DELETE /api/borrowed/{id}.
func (h *BorrowedHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DeleteBorrowed(r.Context(), session(r), r.PathValue("id")); err != nil {
		serviceError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "borrow record deleted"})
}
