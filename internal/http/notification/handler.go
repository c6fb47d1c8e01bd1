package notification

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/karat/internal/alert"
	"github.com/MrJamesThe3rd/karat/internal/http/apierr"
	"github.com/MrJamesThe3rd/karat/internal/reserve"
)

type Handler struct {
	policy *alert.Policy
}

func NewHandler(policy *alert.Policy) *Handler {
	return &Handler{policy: policy}
}

// Routes serves /notifications.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/{id}/ack", h.acknowledge)
}

// StoreRoutes serves /stores/{storeID}/notifications.
func (h *Handler) StoreRoutes(r chi.Router) {
	r.Get("/", h.listActive)
}

type notificationResponse struct {
	ID          uuid.UUID    `json:"id"`
	StoreID     string       `json:"store_id"`
	ReserveType reserve.Type `json:"reserve_type"`
	Message     string       `json:"message"`
	Link        string       `json:"link"`
	Seen        bool         `json:"seen"`
	CreatedAt   time.Time    `json:"created_at"`
}

func (h *Handler) listActive(w http.ResponseWriter, r *http.Request) {
	ns, err := h.policy.ListActive(r.Context(), chi.URLParam(r, "storeID"))
	if err != nil {
		apierr.Write(w, r, err)
		return
	}

	resp := make([]notificationResponse, len(ns))
	for i, n := range ns {
		resp[i] = notificationResponse{
			ID:          n.ID,
			StoreID:     n.StoreID,
			ReserveType: n.ReserveType,
			Message:     n.Message,
			Link:        n.Link,
			Seen:        n.Seen,
			CreatedAt:   n.CreatedAt,
		}
	}

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) acknowledge(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	if err := h.policy.Acknowledge(r.Context(), id); err != nil {
		apierr.Write(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
