package settlement

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/karat/internal/http/apierr"
	"github.com/MrJamesThe3rd/karat/internal/http/identity"
	"github.com/MrJamesThe3rd/karat/internal/reserve"
	"github.com/MrJamesThe3rd/karat/internal/settlement"
)

type Handler struct {
	engine *settlement.Engine
	rates  map[reserve.Metal]decimal.Decimal
	loc    *time.Location
}

// NewHandler builds the settlement handler. rates are the per-gram prices used
// when a request carries weight but neither rate nor amount.
func NewHandler(engine *settlement.Engine, rates map[reserve.Metal]decimal.Decimal, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.UTC
	}

	return &Handler{engine: engine, rates: rates, loc: loc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.settle)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Post("/{id}/reverse", h.reverse)
}

type settleRequest struct {
	ID             *uuid.UUID      `json:"id"`
	Kind           settlement.Kind `json:"kind"`
	ReserveType    string          `json:"reserve_type"`
	Metal          reserve.Metal   `json:"metal"`
	Weight         decimal.Decimal `json:"weight"`
	Touch          decimal.Decimal `json:"touch"`
	ReturnedWeight decimal.Decimal `json:"returned_weight"`
	ReturnedTouch  decimal.Decimal `json:"returned_touch"`
	Rate           decimal.Decimal `json:"rate"`
	Amount         decimal.Decimal `json:"amount"`
	Delta          decimal.Decimal `json:"delta"`
	Note           string          `json:"note"`
	// ExpectedVersion rejects the settlement if the reserve moved past it.
	ExpectedVersion *int64 `json:"expected_version"`
}

func (h *Handler) settle(w http.ResponseWriter, r *http.Request) {
	var req settleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	chosen, err := reserve.ParseType(strings.ToUpper(req.ReserveType))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	tx := settlement.Transaction{
		Kind:            req.Kind,
		StoreID:         chi.URLParam(r, "storeID"),
		Employee:        identity.Actor(r.Context()),
		Weight:          req.Weight,
		Touch:           req.Touch,
		ReturnedWeight:  req.ReturnedWeight,
		ReturnedTouch:   req.ReturnedTouch,
		Rate:            req.Rate,
		Amount:          req.Amount,
		Delta:           req.Delta,
		Note:            req.Note,
		ExpectedVersion: req.ExpectedVersion,
	}

	if req.ID != nil {
		tx.ID = *req.ID
	}

	if tx.Rate.IsZero() && tx.Amount.IsZero() {
		tx.Rate = h.rateFor(chosen, req.Metal)
	}

	res, err := h.engine.Settle(r.Context(), tx, chosen)
	if err != nil {
		writeSettleError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)

	if err := json.NewEncoder(w).Encode(toSettleResponse(res)); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) rateFor(chosen reserve.Type, metal reserve.Metal) decimal.Decimal {
	if m := chosen.Metal(); m != "" {
		metal = m
	}

	return h.rates[metal]
}

func writeSettleError(w http.ResponseWriter, r *http.Request, err error) {
	var insufficient *settlement.InsufficientError
	if !errors.As(err, &insufficient) {
		apierr.Write(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnprocessableEntity)

	if err := json.NewEncoder(w).Encode(insufficientResponse{
		Error:       insufficient.Error(),
		ReserveType: insufficient.ReserveType,
		Balance:     insufficient.Balance,
		Delta:       insufficient.Delta,
		Shortfall:   insufficient.Shortfall,
	}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter := settlement.ListFilter{StoreID: chi.URLParam(r, "storeID")}

	if s := r.URL.Query().Get("kind"); s != "" {
		filter.Kind = new(settlement.Kind(s))
	}

	if s := r.URL.Query().Get("from"); s != "" {
		t, err := time.ParseInLocation(time.DateOnly, s, h.loc)
		if err != nil {
			http.Error(w, "invalid from date", http.StatusBadRequest)
			return
		}

		filter.StartDate = new(t)
	}

	if s := r.URL.Query().Get("to"); s != "" {
		t, err := time.ParseInLocation(time.DateOnly, s, h.loc)
		if err != nil {
			http.Error(w, "invalid to date", http.StatusBadRequest)
			return
		}

		filter.EndDate = new(t.AddDate(0, 0, 1).Add(-time.Nanosecond))
	}

	txs, err := h.engine.List(r.Context(), filter)
	if err != nil {
		apierr.Write(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(toResponseList(txs)); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	tx, err := h.engine.Lookup(r.Context(), id)
	if err != nil {
		apierr.Write(w, r, err)
		return
	}

	if tx.StoreID != chi.URLParam(r, "storeID") {
		http.Error(w, "transaction not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(toResponse(tx)); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) reverse(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	orig, err := h.engine.Lookup(r.Context(), id)
	if err != nil {
		apierr.Write(w, r, err)
		return
	}

	if orig.StoreID != chi.URLParam(r, "storeID") {
		http.Error(w, "transaction not found", http.StatusNotFound)
		return
	}

	res, err := h.engine.Reverse(r.Context(), id, identity.Actor(r.Context()))
	if err != nil {
		writeSettleError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)

	if err := json.NewEncoder(w).Encode(toSettleResponse(res)); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
