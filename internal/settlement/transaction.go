package settlement

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/karat/internal/movement"
	"github.com/MrJamesThe3rd/karat/internal/reserve"
)

// Kind is the business type of a transaction.
type Kind string

const (
	KindSale       Kind = "sale"
	KindPurchase   Kind = "purchase"
	KindExchange   Kind = "exchange"
	KindToken      Kind = "token"
	KindCashIn     Kind = "cash_in"
	KindCashOut    Kind = "cash_out"
	KindAdjustment Kind = "adjustment"
)

func (k Kind) Valid() bool {
	switch k {
	case KindSale, KindPurchase, KindExchange, KindToken, KindCashIn, KindCashOut, KindAdjustment:
		return true
	}

	return false
}

func (k Kind) Reason() movement.Reason {
	switch k {
	case KindSale:
		return movement.ReasonSale
	case KindPurchase:
		return movement.ReasonPurchase
	case KindExchange:
		return movement.ReasonExchange
	case KindToken, KindCashIn:
		return movement.ReasonCashIn
	case KindCashOut:
		return movement.ReasonCashOut
	}

	return movement.ReasonAdjustment
}

const (
	fineScale   = 3
	amountScale = 2
)

var hundred = decimal.NewFromInt(100)

// Transaction is a settled business event. It is only persisted once its
// movement has been committed.
//
// Weight and Touch describe metal handed to the customer in a sale or exchange
// and metal received in a purchase. ReturnedWeight and ReturnedTouch describe
// the old metal a customer brings in an exchange. Touch is purity in percent.
type Transaction struct {
	ID             uuid.UUID
	Kind           Kind
	StoreID        string
	Employee       string
	ReserveType    reserve.Type
	Weight         decimal.Decimal
	Touch          decimal.Decimal
	ReturnedWeight decimal.Decimal
	ReturnedTouch  decimal.Decimal
	Fine           decimal.Decimal
	Rate           decimal.Decimal
	Amount         decimal.Decimal
	// Delta is the signed quantity applied to the reserve. Callers set it only
	// for adjustments; for every other kind it is derived.
	Delta decimal.Decimal
	Note  string
	// ExpectedVersion, when set, pins the settlement to the account version
	// the caller computed Delta from, as a stock count does.
	ExpectedVersion *int64
	MovementID      string
	ReversalOf      *uuid.UUID
	CreatedAt       time.Time
	Date            string
}

// FineWeight is the purity-adjusted weight.
func FineWeight(weight, touch decimal.Decimal) decimal.Decimal {
	return weight.Mul(touch).Div(hundred).Round(fineScale)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidTransaction, fmt.Sprintf(format, args...))
}

func (t *Transaction) validate() error {
	if !t.Kind.Valid() {
		return invalid("unknown kind %q", t.Kind)
	}

	if t.StoreID == "" {
		return invalid("store is required")
	}

	if !t.ReserveType.Valid() {
		return invalid("unknown reserve type %q", t.ReserveType)
	}

	quantities := []struct {
		name  string
		value decimal.Decimal
	}{
		{"weight", t.Weight},
		{"touch", t.Touch},
		{"returned weight", t.ReturnedWeight},
		{"returned touch", t.ReturnedTouch},
		{"rate", t.Rate},
		{"amount", t.Amount},
	}
	for _, q := range quantities {
		if q.value.IsNegative() {
			return invalid("%s must not be negative", q.name)
		}
	}

	if t.Touch.GreaterThan(hundred) || t.ReturnedTouch.GreaterThan(hundred) {
		return invalid("touch must not exceed 100")
	}

	if t.ReserveType.IsMetal() {
		switch t.Kind {
		case KindToken, KindCashIn, KindCashOut:
			return invalid("%s cannot settle against metal reserve %s", t.Kind, t.ReserveType)
		}
	}

	return nil
}

// prepare validates the transaction, fills its derived quantities and returns
// the delta to apply to the chosen reserve.
func (t *Transaction) prepare() (decimal.Decimal, error) {
	if err := t.validate(); err != nil {
		return decimal.Zero, err
	}

	t.Fine = FineWeight(t.Weight, t.Touch)
	if t.Kind == KindExchange {
		t.Fine = t.Fine.Sub(FineWeight(t.ReturnedWeight, t.ReturnedTouch))
	}

	if t.Amount.IsZero() && t.Rate.IsPositive() {
		t.Amount = t.Fine.Abs().Mul(t.Rate).Round(amountScale)
	}

	if t.Kind == KindAdjustment {
		return t.Delta, nil
	}

	if t.ReserveType.IsMetal() {
		switch t.Kind {
		case KindSale, KindExchange:
			return t.Fine.Neg(), nil
		case KindPurchase:
			return t.Fine, nil
		}
	}

	switch t.Kind {
	case KindSale, KindToken, KindCashIn, KindExchange:
		return t.Amount, nil
	case KindPurchase, KindCashOut:
		return t.Amount.Neg(), nil
	}

	return decimal.Zero, invalid("kind %q has no settlement rule for %s", t.Kind, t.ReserveType)
}
