package alert

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/karat/internal/reserve"
)

var ErrNotFound = errors.New("notification not found")

// DefaultThreshold is the low-stock line used when none is configured.
var DefaultThreshold = decimal.NewFromInt(10)

// Notification tells a store that one of its reserves needs attention.
// It starts unseen and becomes seen once acknowledged; it is never reopened.
type Notification struct {
	ID          uuid.UUID
	StoreID     string
	ReserveType reserve.Type
	Message     string
	Link        string
	Seen        bool
	CreatedAt   time.Time
}
