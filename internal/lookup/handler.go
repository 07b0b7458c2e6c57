package lookup

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// Handler exposes list/add endpoints for one lookup collection.
type Handler struct {
	col    *Collection
	logger *zap.SugaredLogger
}

func NewHandler(col *Collection, logger *zap.SugaredLogger) *Handler {
	return &Handler{col: col, logger: logger}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"items": h.col.All()})
}

// AddRequest request body for the add endpoint.
type AddRequest struct {
	Name string `json:"name"`
}

func (h *Handler) Add(w http.ResponseWriter, r *http.Request) {
	var req AddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	added, err := h.col.AddCustom(r.Context(), req.Name)
	if err != nil {
		h.logger.Warnw("add lookup entry", "collection", h.col.Name(), "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not save entry"})
		return
	}
	if !added {
		h.writeJSON(w, http.StatusConflict, map[string]string{"error": "empty or duplicate entry"})
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]any{"items": h.col.All()})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
