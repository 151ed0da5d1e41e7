package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/erazemk/zaloga/internal/cache"
	"github.com/erazemk/zaloga/internal/model"
)

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Warn("error encoding response", "error", err)
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

type fieldError struct {
	Error string `json:"error"`
	Field string `json:"field"`
}

// serviceError maps a service error onto a status code. Unexpected errors
// are logged and reported without detail.
func serviceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		jsonResponse(w, http.StatusBadRequest, fieldError{Error: verr.Error(), Field: verr.Field})
	case errors.Is(err, model.ErrValidation):
		jsonError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, model.ErrInsufficientStock):
		jsonError(w, http.StatusConflict, err.Error())
	case errors.Is(err, model.ErrConflict):
		jsonError(w, http.StatusConflict, err.Error())
	case errors.Is(err, model.ErrNotFound):
		jsonError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, model.ErrForbidden):
		jsonError(w, http.StatusForbidden, "insufficient permissions")
	case errors.Is(err, model.ErrStorage):
		slog.Error("storage failure", "method", r.Method, "path", r.URL.Path, "error", err)
		jsonError(w, http.StatusBadGateway, "file storage unavailable")
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}

// notModified sets the ETag for keys and reports whether the client already
// holds that version. The tag is taken before the read, so a write racing
// the read only makes the next request refetch.
func notModified(w http.ResponseWriter, r *http.Request, versions *cache.Versions, keys ...cache.Key) bool {
	tag := versions.ETag(keys...)
	w.Header().Set("ETag", tag)
	w.Header().Set("Cache-Control", "no-cache")
	if r.Header.Get("If-None-Match") == tag {
		w.WriteHeader(http.StatusNotModified)
		return true
	}
	return false
}

// listResponse writes a list, encoding nil as an empty array.
func listResponse[T any](w http.ResponseWriter, items []T) {
	if items == nil {
		items = []T{}
	}
	jsonResponse(w, http.StatusOK, items)
}

func pdfResponse(w http.ResponseWriter, name string, data []byte) {
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		slog.Warn("error writing report", "report", name, "error", err)
	}
}
