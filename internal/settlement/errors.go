package settlement

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/karat/internal/reserve"
)

var (
	ErrNotFound           = errors.New("transaction not found")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrAlreadySettled     = errors.New("transaction already settled")
	ErrAlreadyReversed    = errors.New("transaction already reversed")

	// ErrInsufficient is the business-rule rejection: the settlement would drive
	// a reserve below zero. Nothing is recorded.
	ErrInsufficient = errors.New("insufficient reserve balance")

	// ErrContention means the reserve kept changing under us. The outcome is not
	// committed, but callers should check Lookup before presenting it again.
	ErrContention = errors.New("reserve contention")

	// ErrReserveChanged means the reserve moved past the version the caller
	// based the transaction on. It is not retried.
	ErrReserveChanged = errors.New("reserve changed since it was read")

	// ErrIntegrityViolation means the live balance disagrees with the movement log.
	// Writes to the reserve are refused until it is realigned.
	ErrIntegrityViolation = errors.New("reserve integrity violation")
)

// InsufficientError carries the figures behind a rejected settlement.
type InsufficientError struct {
	StoreID     string
	ReserveType reserve.Type
	Balance     decimal.Decimal
	Delta       decimal.Decimal
	Candidate   decimal.Decimal
	Shortfall   decimal.Decimal
}

func (e *InsufficientError) Error() string {
	return fmt.Sprintf("%s: %s at %s holds %s, needs %s (short by %s)",
		ErrInsufficient, e.ReserveType, e.StoreID, e.Balance, e.Delta.Neg(), e.Shortfall)
}

func (e *InsufficientError) Is(target error) bool {
	return target == ErrInsufficient
}

// IntegrityError reports a live balance that diverged from the log.
type IntegrityError struct {
	StoreID     string
	ReserveType reserve.Type
	Live        decimal.Decimal
	Logged      decimal.Decimal
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("%s: %s at %s is %s live but %s in the movement log",
		ErrIntegrityViolation, e.ReserveType, e.StoreID, e.Live, e.Logged)
}

func (e *IntegrityError) Is(target error) bool {
	return target == ErrIntegrityViolation
}
