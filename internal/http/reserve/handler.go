package reserve

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MrJamesThe3rd/karat/internal/http/apierr"
	"github.com/MrJamesThe3rd/karat/internal/http/identity"
	"github.com/MrJamesThe3rd/karat/internal/movement"
	"github.com/MrJamesThe3rd/karat/internal/reconcile"
	"github.com/MrJamesThe3rd/karat/internal/reserve"
)

type Handler struct {
	reserves  *reserve.Service
	movements *movement.Service
	reconcile *reconcile.Service
	loc       *time.Location
}

func NewHandler(
	reserves *reserve.Service,
	movements *movement.Service,
	reconcileSvc *reconcile.Service,
	loc *time.Location,
) *Handler {
	if loc == nil {
		loc = time.UTC
	}

	return &Handler{
		reserves:  reserves,
		movements: movements,
		reconcile: reconcileSvc,
		loc:       loc,
	}
}

// Routes serves /stores/{storeID}/reserves.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{type}", h.get)
	r.Get("/{type}/day/{date}", h.day)
	r.Get("/{type}/movements", h.listMovements)
	r.Post("/{type}/realign", h.realign)
}

// StoreRoutes serves the store-wide reports under /stores/{storeID}.
func (h *Handler) StoreRoutes(r chi.Router) {
	r.Get("/cash-summary/{date}", h.cashSummary)
	r.Get("/reconcile", h.reconcileStore)
}

func reserveType(r *http.Request) (reserve.Type, error) {
	return reserve.ParseType(strings.ToUpper(chi.URLParam(r, "type")))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.reserves.List(r.Context(), chi.URLParam(r, "storeID"))
	if err != nil {
		apierr.Write(w, r, err)
		return
	}

	resp := make([]accountResponse, len(accounts))
	for i, a := range accounts {
		resp[i] = toAccount(a)
	}

	writeJSON(w, resp)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	t, err := reserveType(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	acc, err := h.reserves.Get(r.Context(), chi.URLParam(r, "storeID"), t)
	if err != nil {
		apierr.Write(w, r, err)
		return
	}

	writeJSON(w, toAccount(acc))
}

func (h *Handler) day(w http.ResponseWriter, r *http.Request) {
	t, err := reserveType(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	day, err := time.ParseInLocation(time.DateOnly, chi.URLParam(r, "date"), h.loc)
	if err != nil {
		http.Error(w, "invalid date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	b, err := h.reconcile.BalancesForDay(r.Context(), chi.URLParam(r, "storeID"), t, day)
	if err != nil {
		apierr.Write(w, r, err)
		return
	}

	writeJSON(w, toDay(b))
}

func (h *Handler) listMovements(w http.ResponseWriter, r *http.Request) {
	t, err := reserveType(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	filter := movement.Filter{StoreID: chi.URLParam(r, "storeID"), ReserveType: t}

	if s := r.URL.Query().Get("from"); s != "" {
		from, err := time.Parse(time.RFC3339, s)
		if err != nil {
			http.Error(w, "invalid from, expected RFC 3339", http.StatusBadRequest)
			return
		}

		filter.From = new(from)
	}

	if s := r.URL.Query().Get("to"); s != "" {
		to, err := time.Parse(time.RFC3339, s)
		if err != nil {
			http.Error(w, "invalid to, expected RFC 3339", http.StatusBadRequest)
			return
		}

		filter.To = new(to)
	}

	entries, err := h.movements.List(r.Context(), filter)
	if err != nil {
		apierr.Write(w, r, err)
		return
	}

	writeJSON(w, toMovements(entries))
}

func (h *Handler) realign(w http.ResponseWriter, r *http.Request) {
	t, err := reserveType(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	actor := identity.Actor(r.Context())
	if actor == "" {
		http.Error(w, "realignment requires an identified employee", http.StatusForbidden)
		return
	}

	report, err := h.reconcile.Realign(r.Context(), chi.URLParam(r, "storeID"), t, actor)
	if err != nil {
		apierr.Write(w, r, err)
		return
	}

	writeJSON(w, toReport(report))
}

func (h *Handler) cashSummary(w http.ResponseWriter, r *http.Request) {
	day, err := time.ParseInLocation(time.DateOnly, chi.URLParam(r, "date"), h.loc)
	if err != nil {
		http.Error(w, "invalid date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	sum, err := h.reconcile.DailyCashSummary(r.Context(), chi.URLParam(r, "storeID"), day)
	if err != nil {
		apierr.Write(w, r, err)
		return
	}

	writeJSON(w, toCashSummary(sum))
}

func (h *Handler) reconcileStore(w http.ResponseWriter, r *http.Request) {
	reports, err := h.reconcile.ReconcileStore(r.Context(), chi.URLParam(r, "storeID"))
	if err != nil {
		apierr.Write(w, r, err)
		return
	}

	resp := make([]reportResponse, len(reports))
	for i, rep := range reports {
		resp[i] = toReport(rep)
	}

	writeJSON(w, resp)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
