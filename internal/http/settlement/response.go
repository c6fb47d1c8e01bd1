package settlement

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/karat/internal/alert"
	"github.com/MrJamesThe3rd/karat/internal/movement"
	"github.com/MrJamesThe3rd/karat/internal/reserve"
	"github.com/MrJamesThe3rd/karat/internal/settlement"
)

type transactionResponse struct {
	ID             uuid.UUID       `json:"id"`
	Kind           settlement.Kind `json:"kind"`
	StoreID        string          `json:"store_id"`
	Employee       string          `json:"employee,omitempty"`
	ReserveType    reserve.Type    `json:"reserve_type"`
	Weight         decimal.Decimal `json:"weight"`
	Touch          decimal.Decimal `json:"touch"`
	ReturnedWeight decimal.Decimal `json:"returned_weight"`
	ReturnedTouch  decimal.Decimal `json:"returned_touch"`
	Fine           decimal.Decimal `json:"fine"`
	Rate           decimal.Decimal `json:"rate"`
	Amount         decimal.Decimal `json:"amount"`
	Delta          decimal.Decimal `json:"delta"`
	Note           string          `json:"note,omitempty"`
	MovementID     string          `json:"movement_id"`
	ReversalOf     *uuid.UUID      `json:"reversal_of,omitempty"`
	Date           string          `json:"date"`
	CreatedAt      time.Time       `json:"created_at"`
}

type entryResponse struct {
	ID               string          `json:"id"`
	Delta            decimal.Decimal `json:"delta"`
	ResultingBalance decimal.Decimal `json:"resulting_balance"`
	Reason           movement.Reason `json:"reason"`
	ReversalOf       *string         `json:"reversal_of,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

type notificationResponse struct {
	ID      uuid.UUID `json:"id"`
	Message string    `json:"message"`
	Link    string    `json:"link"`
}

type settleResponse struct {
	Transaction  transactionResponse   `json:"transaction"`
	Entry        entryResponse         `json:"entry"`
	Balance      decimal.Decimal       `json:"balance"`
	Notification *notificationResponse `json:"notification,omitempty"`
}

type insufficientResponse struct {
	Error       string          `json:"error"`
	ReserveType reserve.Type    `json:"reserve_type"`
	Balance     decimal.Decimal `json:"balance"`
	Delta       decimal.Decimal `json:"delta"`
	Shortfall   decimal.Decimal `json:"shortfall"`
}

func toResponse(tx *settlement.Transaction) transactionResponse {
	return transactionResponse{
		ID:             tx.ID,
		Kind:           tx.Kind,
		StoreID:        tx.StoreID,
		Employee:       tx.Employee,
		ReserveType:    tx.ReserveType,
		Weight:         tx.Weight,
		Touch:          tx.Touch,
		ReturnedWeight: tx.ReturnedWeight,
		ReturnedTouch:  tx.ReturnedTouch,
		Fine:           tx.Fine,
		Rate:           tx.Rate,
		Amount:         tx.Amount,
		Delta:          tx.Delta,
		Note:           tx.Note,
		MovementID:     tx.MovementID,
		ReversalOf:     tx.ReversalOf,
		Date:           tx.Date,
		CreatedAt:      tx.CreatedAt,
	}
}

func toResponseList(txs []*settlement.Transaction) []transactionResponse {
	resp := make([]transactionResponse, len(txs))
	for i, tx := range txs {
		resp[i] = toResponse(tx)
	}

	return resp
}

func toSettleResponse(res *settlement.Result) settleResponse {
	resp := settleResponse{
		Transaction: toResponse(res.Transaction),
		Entry: entryResponse{
			ID:               res.Entry.ID,
			Delta:            res.Entry.Delta,
			ResultingBalance: res.Entry.ResultingBalance,
			Reason:           res.Entry.Reason,
			ReversalOf:       res.Entry.ReversalOf,
			CreatedAt:        res.Entry.CreatedAt,
		},
		Balance: res.Balance,
	}

	if n := res.Notification; n != nil {
		resp.Notification = toNotification(n)
	}

	return resp
}

func toNotification(n *alert.Notification) *notificationResponse {
	return &notificationResponse{ID: n.ID, Message: n.Message, Link: n.Link}
}
