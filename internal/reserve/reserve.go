package reserve

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ErrVersionConflict is returned by ApplyDelta when the stored version no longer
// matches the version the caller read. The caller must re-read and retry.
var ErrVersionConflict = errors.New("reserve version conflict")

// Type identifies a pool of value held by a store.
type Type string

const (
	TypeLocalGold   Type = "LOCAL_GOLD"
	TypeBankGold    Type = "BANK_GOLD"
	TypeLocalSilver Type = "LOCAL_SILVER"
	TypeKamalSilver Type = "KAMAL_SILVER"
	TypeCashLedger  Type = "CASH_LEDGER"
	TypeCashOnline  Type = "CASH_ONLINE"
)

// Metal is the material a metal reserve holds.
type Metal string

const (
	MetalGold   Metal = "gold"
	MetalSilver Metal = "silver"
)

// Types lists every reserve type in display order.
var Types = []Type{
	TypeLocalGold,
	TypeBankGold,
	TypeLocalSilver,
	TypeKamalSilver,
	TypeCashLedger,
	TypeCashOnline,
}

// CashTypes are the reserves holding currency.
var CashTypes = []Type{TypeCashLedger, TypeCashOnline}

func (t Type) Valid() bool {
	switch t {
	case TypeLocalGold, TypeBankGold, TypeLocalSilver, TypeKamalSilver, TypeCashLedger, TypeCashOnline:
		return true
	}

	return false
}

func (t Type) IsCash() bool {
	return t == TypeCashLedger || t == TypeCashOnline
}

func (t Type) IsMetal() bool {
	return t.Valid() && !t.IsCash()
}

// Metal reports the material of a metal reserve. It is empty for cash reserves.
func (t Type) Metal() Metal {
	switch t {
	case TypeLocalGold, TypeBankGold:
		return MetalGold
	case TypeLocalSilver, TypeKamalSilver:
		return MetalSilver
	}

	return ""
}

// ParseType validates a reserve type coming from outside the ledger.
func ParseType(s string) (Type, error) {
	t := Type(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown reserve type %q", s)
	}

	return t, nil
}

// Account is the live balance of one reserve of one store.
// Balance is a cache of the movement log; Version increases by one on every write.
type Account struct {
	StoreID     string
	Type        Type
	Balance     decimal.Decimal
	Version     int64
	LastUpdated time.Time
}

// Key identifies an account.
type Key struct {
	StoreID string
	Type    Type
}

func (a *Account) Key() Key {
	return Key{StoreID: a.StoreID, Type: a.Type}
}
