package reconcile

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/karat/internal/reserve"
)

var ErrInvalidRequest = errors.New("invalid reconciliation request")

// DayBalances are the opening and closing balances of one reserve on one
// business day, derived from the movement log.
type DayBalances struct {
	StoreID     string
	ReserveType reserve.Type
	Day         string
	Opening     decimal.Decimal
	Closing     decimal.Decimal
	Movements   int
}

// CashSummary compares a day's cash trade against the cash reserves.
// Discrepancy is informational; a non-zero value is not an error.
type CashSummary struct {
	StoreID     string
	Day         string
	Opening     decimal.Decimal
	Inflow      decimal.Decimal
	Outflow     decimal.Decimal
	Expected    decimal.Decimal
	Closing     decimal.Decimal
	Discrepancy decimal.Decimal
}

// Report compares the live account with the balance the log implies.
type Report struct {
	StoreID     string
	ReserveType reserve.Type
	Live        decimal.Decimal
	Derived     decimal.Decimal
	Drift       decimal.Decimal
	Version     int64
	Consistent  bool
}
