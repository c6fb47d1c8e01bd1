package reserve

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/karat/internal/movement"
	"github.com/MrJamesThe3rd/karat/internal/reconcile"
	"github.com/MrJamesThe3rd/karat/internal/reserve"
)

type accountResponse struct {
	StoreID     string          `json:"store_id"`
	ReserveType reserve.Type    `json:"reserve_type"`
	Balance     decimal.Decimal `json:"balance"`
	Version     int64           `json:"version"`
	LastUpdated *time.Time      `json:"last_updated,omitempty"`
}

type movementResponse struct {
	ID                  string          `json:"id"`
	Delta               decimal.Decimal `json:"delta"`
	ResultingBalance    decimal.Decimal `json:"resulting_balance"`
	Reason              movement.Reason `json:"reason"`
	SourceTransactionID string          `json:"source_transaction_id"`
	ReversalOf          *string         `json:"reversal_of,omitempty"`
	Actor               string          `json:"actor,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
}

type dayResponse struct {
	StoreID     string          `json:"store_id"`
	ReserveType reserve.Type    `json:"reserve_type"`
	Day         string          `json:"day"`
	Opening     decimal.Decimal `json:"opening"`
	Closing     decimal.Decimal `json:"closing"`
	Movements   int             `json:"movements"`
}

type cashSummaryResponse struct {
	StoreID     string          `json:"store_id"`
	Day         string          `json:"day"`
	Opening     decimal.Decimal `json:"opening"`
	Inflow      decimal.Decimal `json:"inflow"`
	Outflow     decimal.Decimal `json:"outflow"`
	Expected    decimal.Decimal `json:"expected"`
	Closing     decimal.Decimal `json:"closing"`
	Discrepancy decimal.Decimal `json:"discrepancy"`
}

type reportResponse struct {
	ReserveType reserve.Type    `json:"reserve_type"`
	Live        decimal.Decimal `json:"live"`
	Derived     decimal.Decimal `json:"derived"`
	Drift       decimal.Decimal `json:"drift"`
	Consistent  bool            `json:"consistent"`
}

func toAccount(a *reserve.Account) accountResponse {
	resp := accountResponse{
		StoreID:     a.StoreID,
		ReserveType: a.Type,
		Balance:     a.Balance,
		Version:     a.Version,
	}

	if !a.LastUpdated.IsZero() {
		resp.LastUpdated = new(a.LastUpdated)
	}

	return resp
}

func toMovements(entries []*movement.Entry) []movementResponse {
	resp := make([]movementResponse, len(entries))
	for i, e := range entries {
		resp[i] = movementResponse{
			ID:                  e.ID,
			Delta:               e.Delta,
			ResultingBalance:    e.ResultingBalance,
			Reason:              e.Reason,
			SourceTransactionID: e.SourceTransactionID.String(),
			ReversalOf:          e.ReversalOf,
			Actor:               e.Actor,
			CreatedAt:           e.CreatedAt,
		}
	}

	return resp
}

func toDay(b *reconcile.DayBalances) dayResponse {
	return dayResponse{
		StoreID:     b.StoreID,
		ReserveType: b.ReserveType,
		Day:         b.Day,
		Opening:     b.Opening,
		Closing:     b.Closing,
		Movements:   b.Movements,
	}
}

func toCashSummary(s *reconcile.CashSummary) cashSummaryResponse {
	return cashSummaryResponse{
		StoreID:     s.StoreID,
		Day:         s.Day,
		Opening:     s.Opening,
		Inflow:      s.Inflow,
		Outflow:     s.Outflow,
		Expected:    s.Expected,
		Closing:     s.Closing,
		Discrepancy: s.Discrepancy,
	}
}

func toReport(r *reconcile.Report) reportResponse {
	return reportResponse{
		ReserveType: r.ReserveType,
		Live:        r.Live,
		Derived:     r.Derived,
		Drift:       r.Drift,
		Consistent:  r.Consistent,
	}
}
