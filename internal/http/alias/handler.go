package alias

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MrJamesThe3rd/karat/internal/alias"
	"github.com/MrJamesThe3rd/karat/internal/http/apierr"
	"github.com/MrJamesThe3rd/karat/internal/reserve"
)

type Handler struct {
	svc *alias.Service
}

func NewHandler(svc *alias.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/resolve", h.resolve)
	r.Post("/", h.learn)
}

type resolveResponse struct {
	Label       string       `json:"label"`
	ReserveType reserve.Type `json:"reserve_type"`
}

type aliasResponse struct {
	RawPattern  string       `json:"raw_pattern"`
	ReserveType reserve.Type `json:"reserve_type"`
	CreatedAt   time.Time    `json:"created_at"`
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) {
	label := r.URL.Query().Get("label")
	if label == "" {
		http.Error(w, "label query parameter is required", http.StatusBadRequest)
		return
	}

	t, err := h.svc.Resolve(r.Context(), label)
	if err != nil {
		if errors.Is(err, alias.ErrUnresolved) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}

		apierr.Write(w, r, err)

		return
	}

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(resolveResponse{Label: label, ReserveType: t}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	aliases, err := h.svc.List(r.Context())
	if err != nil {
		apierr.Write(w, r, err)
		return
	}

	resp := make([]aliasResponse, len(aliases))
	for i, a := range aliases {
		resp[i] = aliasResponse{RawPattern: a.RawPattern, ReserveType: a.ReserveType, CreatedAt: a.CreatedAt}
	}

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

type learnRequest struct {
	RawPattern  string `json:"raw_pattern"`
	ReserveType string `json:"reserve_type"`
}

func (h *Handler) learn(w http.ResponseWriter, r *http.Request) {
	var req learnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.RawPattern == "" || req.ReserveType == "" {
		http.Error(w, "raw_pattern and reserve_type are required", http.StatusBadRequest)
		return
	}

	t, err := reserve.ParseType(strings.ToUpper(req.ReserveType))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.svc.Learn(r.Context(), req.RawPattern, t); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
}
