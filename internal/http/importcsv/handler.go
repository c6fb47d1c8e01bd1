package importcsv

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/karat/internal/http/apierr"
	"github.com/MrJamesThe3rd/karat/internal/http/identity"
	"github.com/MrJamesThe3rd/karat/internal/importer"
	"github.com/MrJamesThe3rd/karat/internal/reserve"
)

type Handler struct {
	importSvc *importer.Service
}

func NewHandler(importSvc *importer.Service) *Handler {
	return &Handler{importSvc: importSvc}
}

// Routes serves /stores/{storeID}/import.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.importSheet)
}

type outcomeResponse struct {
	Line          int             `json:"line"`
	Label         string          `json:"label"`
	ReserveType   reserve.Type    `json:"reserve_type,omitempty"`
	Status        importer.Status `json:"status"`
	Delta         decimal.Decimal `json:"delta"`
	Balance       decimal.Decimal `json:"balance"`
	TransactionID string          `json:"transaction_id,omitempty"`
	Reason        string          `json:"reason,omitempty"`
}

type importResponse struct {
	Applied   int               `json:"applied"`
	Rejected  int               `json:"rejected"`
	Duplicate int               `json:"duplicate"`
	Unchanged int               `json:"unchanged"`
	Rows      []outcomeResponse `json:"rows"`
	Error     string            `json:"error,omitempty"`
}

func toImportResponse(report *importer.Report) importResponse {
	resp := importResponse{
		Applied:   report.Count(importer.StatusApplied),
		Rejected:  report.Count(importer.StatusRejected),
		Duplicate: report.Count(importer.StatusDuplicate),
		Unchanged: report.Count(importer.StatusUnchanged),
		Rows:      make([]outcomeResponse, 0, len(report.Outcomes)),
	}

	for _, o := range report.Outcomes {
		resp.Rows = append(resp.Rows, outcomeResponse{
			Line:          o.Line,
			Label:         o.Label,
			ReserveType:   o.ReserveType,
			Status:        o.Status,
			Delta:         o.Delta,
			Balance:       o.Balance,
			TransactionID: o.TransactionID,
			Reason:        o.Reason,
		})
	}

	return resp
}

func (h *Handler) importSheet(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		http.Error(w, "failed to parse form: "+err.Error(), http.StatusBadRequest)
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file field is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	report, err := h.importSvc.Import(r.Context(), chi.URLParam(r, "storeID"), identity.Actor(r.Context()), file)
	if err != nil && report == nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	status := http.StatusCreated
	resp := toImportResponse(report)

	if err != nil {
		status = apierr.Status(err)
		resp.Error = err.Error()

		slog.Error("stock sheet import stopped", "error", err, "applied", resp.Applied)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
