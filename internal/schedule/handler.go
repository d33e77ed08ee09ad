package schedule

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"chatd/internal/middleware"
)

// Handler is the thin HTTP surface over schedule management plus the
// operator trigger for the engine.
type Handler struct {
	service *Service
	engine  *Engine
}

func NewHandler(service *Service, engine *Engine) *Handler {
	return &Handler{service: service, engine: engine}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	username, _ := middleware.UsernameFrom(r.Context())

	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request", http.StatusBadRequest)
		return
	}

	entry, err := h.service.Create(r.Context(), username, &req)
	if err != nil {
		var serr *SchedulingError
		if errors.As(err, &serr) {
			http.Error(w, serr.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, "failed to create schedule", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(entry)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	username, _ := middleware.UsernameFrom(r.Context())

	entries, err := h.service.List(r.Context(), username)
	if err != nil {
		http.Error(w, "failed to list schedules", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []*Entry{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	username, _ := middleware.UsernameFrom(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "malformed id", http.StatusBadRequest)
		return
	}

	switch err := h.service.Cancel(r.Context(), id, username); {
	case errors.Is(err, ErrAlreadySent):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case err != nil:
		http.Error(w, "failed to cancel schedule", http.StatusInternalServerError)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// Trigger runs one engine tick on demand. Safe alongside the timer; the
// per-entry claim prevents double delivery.
func (h *Handler) Trigger(w http.ResponseWriter, r *http.Request) {
	delivered := h.engine.RunOnce(r.Context())

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{"delivered": delivered})
}
