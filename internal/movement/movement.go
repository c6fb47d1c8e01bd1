package movement

import (
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/karat/internal/reserve"
)

var (
	ErrNotFound      = errors.New("movement not found")
	ErrInvalidFilter = errors.New("invalid movement filter")
)

// Reason records why a balance changed.
type Reason string

const (
	ReasonSale       Reason = "SALE"
	ReasonPurchase   Reason = "PURCHASE"
	ReasonExchange   Reason = "EXCHANGE"
	ReasonCashIn     Reason = "CASH_IN"
	ReasonCashOut    Reason = "CASH_OUT"
	ReasonAdjustment Reason = "ADJUSTMENT"
)

// Entry is one immutable line of the movement log. ResultingBalance is the
// reserve balance immediately after Delta was applied.
type Entry struct {
	ID                  string
	StoreID             string
	ReserveType         reserve.Type
	Delta               decimal.Decimal
	ResultingBalance    decimal.Decimal
	Reason              Reason
	SourceTransactionID uuid.UUID
	ReversalOf          *string
	Actor               string
	CreatedAt           time.Time
}

// OpeningBalance is the balance the reserve held just before this entry.
func (e *Entry) OpeningBalance() decimal.Decimal {
	return e.ResultingBalance.Sub(e.Delta)
}

// Filter selects entries of one reserve. From and To are inclusive; nil means unbounded.
type Filter struct {
	StoreID     string
	ReserveType reserve.Type
	From        *time.Time
	To          *time.Time
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewID returns a lexically sortable, strictly increasing identifier. It fails
// for times the identifier cannot encode, such as times before the Unix epoch.
func NewID(t time.Time) (string, error) {
	entropyMu.Lock()
	defer entropyMu.Unlock()

	id, err := ulid.New(ulid.Timestamp(t), entropy)
	if err != nil {
		return "", fmt.Errorf("generating movement id for %s: %w", t, err)
	}

	return id.String(), nil
}

// Stamp fills the creation time and identifier of an entry about to be
// appended, leaving values the caller already set untouched.
func Stamp(e *Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)
	}

	if e.ID != "" {
		return nil
	}

	id, err := NewID(e.CreatedAt)
	if err != nil {
		return err
	}

	e.ID = id

	return nil
}
