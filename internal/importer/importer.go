package importer

import (
	"context"
	"io"

	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/karat/internal/importer/stockcount"
	"github.com/MrJamesThe3rd/karat/internal/reserve"
	"github.com/MrJamesThe3rd/karat/internal/settlement"
)

//go:generate mockgen -source=importer.go -destination=importer_mock.go -package=importer
type Parser interface {
	Parse(r io.Reader) ([]stockcount.Row, error)
}

type Resolver interface {
	Resolve(ctx context.Context, label string) (reserve.Type, error)
}

type AccountReader interface {
	Get(ctx context.Context, storeID string, t reserve.Type) (*reserve.Account, error)
}

type Settler interface {
	Settle(ctx context.Context, tx settlement.Transaction, chosen reserve.Type) (*settlement.Result, error)
}

// Status of one imported row.
type Status string

const (
	StatusApplied   Status = "applied"
	StatusUnchanged Status = "unchanged"
	StatusDuplicate Status = "duplicate"
	StatusRejected  Status = "rejected"
)

// Outcome reports what happened to one row of a sheet.
type Outcome struct {
	Line          int
	Label         string
	ReserveType   reserve.Type
	Status        Status
	Delta         decimal.Decimal
	Balance       decimal.Decimal
	TransactionID string
	Reason        string
}

type Report struct {
	Outcomes []Outcome
}

func (r *Report) Count(s Status) int {
	n := 0

	for _, o := range r.Outcomes {
		if o.Status == s {
			n++
		}
	}

	return n
}
