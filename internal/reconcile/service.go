package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/karat/internal/movement"
	"github.com/MrJamesThe3rd/karat/internal/reserve"
	"github.com/MrJamesThe3rd/karat/internal/settlement"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=reconcile
type MovementReader interface {
	Query(ctx context.Context, filter movement.Filter) ([]*movement.Entry, error)
	Latest(ctx context.Context, storeID string, t reserve.Type) (*movement.Entry, error)
	LastBefore(ctx context.Context, storeID string, rt reserve.Type, t time.Time) (*movement.Entry, error)
}

type AccountReader interface {
	GetAccount(ctx context.Context, storeID string, t reserve.Type) (*reserve.Account, error)
}

type TransactionLister interface {
	ListTransactions(ctx context.Context, filter settlement.ListFilter) ([]*settlement.Transaction, error)
}

type TxBeginner interface {
	Begin(ctx context.Context) (settlement.Tx, error)
}

type Service struct {
	movements    MovementReader
	accounts     AccountReader
	transactions TransactionLister
	tx           TxBeginner
	loc          *time.Location
}

func NewService(
	movements MovementReader,
	accounts AccountReader,
	transactions TransactionLister,
	tx TxBeginner,
	loc *time.Location,
) *Service {
	if loc == nil {
		loc = time.UTC
	}

	return &Service{
		movements:    movements,
		accounts:     accounts,
		transactions: transactions,
		tx:           tx,
		loc:          loc,
	}
}

// dayBounds returns the first instant of the calendar day of day and of the
// following day, in the business location. Only the date part of day is used.
func (s *Service) dayBounds(day time.Time) (time.Time, time.Time) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, s.loc)
	return start, start.AddDate(0, 0, 1)
}

// BalancesForDay derives opening and closing balances from the movement log
// alone. The live account is never consulted, so the result for a past day
// does not change as new movements arrive.
//
// A reserve with no movement before the day opens at the resulting balance of
// its first movement of the day.
func (s *Service) BalancesForDay(ctx context.Context, storeID string, t reserve.Type, day time.Time) (*DayBalances, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: unknown reserve type %q", ErrInvalidRequest, t)
	}

	res, _, err := s.dayBalances(ctx, storeID, t, day)

	return res, err
}

// dayBalances also returns the balance the reserve held when the day started,
// which differs from Opening on the first day a reserve is written.
func (s *Service) dayBalances(
	ctx context.Context,
	storeID string,
	t reserve.Type,
	day time.Time,
) (*DayBalances, decimal.Decimal, error) {
	start, next := s.dayBounds(day)
	end := next.Add(-time.Nanosecond)

	entries, err := s.movements.Query(ctx, movement.Filter{
		StoreID:     storeID,
		ReserveType: t,
		From:        &start,
		To:          &end,
	})
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("querying movements: %w", err)
	}

	res := &DayBalances{
		StoreID:     storeID,
		ReserveType: t,
		Day:         start.Format(time.DateOnly),
		Opening:     decimal.Zero,
		Movements:   len(entries),
	}

	held := decimal.Zero

	before, err := s.movements.LastBefore(ctx, storeID, t, start)

	switch {
	case err == nil:
		res.Opening = before.ResultingBalance
		held = before.ResultingBalance
	case errors.Is(err, movement.ErrNotFound):
		if len(entries) > 0 {
			res.Opening = entries[0].ResultingBalance
			held = entries[0].OpeningBalance()
		}
	default:
		return nil, decimal.Zero, fmt.Errorf("reading balance before %s: %w", res.Day, err)
	}

	res.Closing = res.Opening
	if len(entries) > 0 {
		res.Closing = entries[len(entries)-1].ResultingBalance
	}

	return res, held, nil
}

// DailyCashSummary adds the day's cash sale and token amounts, subtracts cash
// purchase amounts and compares the result with the combined cash reserves.
// Metal legs carry a valuation amount but move no cash, so they are left out.
// Opening is what the cash reserves held when the day started, so a store's
// first trading day does not count its first cash movement twice.
func (s *Service) DailyCashSummary(ctx context.Context, storeID string, day time.Time) (*CashSummary, error) {
	start, next := s.dayBounds(day)
	end := next.Add(-time.Nanosecond)

	txs, err := s.transactions.ListTransactions(ctx, settlement.ListFilter{
		StoreID:   storeID,
		StartDate: &start,
		EndDate:   &end,
	})
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}

	sum := &CashSummary{
		StoreID: storeID,
		Day:     start.Format(time.DateOnly),
		Opening: decimal.Zero,
		Inflow:  decimal.Zero,
		Outflow: decimal.Zero,
		Closing: decimal.Zero,
	}

	for _, tx := range txs {
		if !tx.ReserveType.IsCash() {
			continue
		}

		switch tx.Kind {
		case settlement.KindSale, settlement.KindToken:
			sum.Inflow = sum.Inflow.Add(tx.Amount)
		case settlement.KindPurchase:
			sum.Outflow = sum.Outflow.Add(tx.Amount)
		}
	}

	for _, t := range reserve.CashTypes {
		b, held, err := s.dayBalances(ctx, storeID, t, start)
		if err != nil {
			return nil, err
		}

		sum.Opening = sum.Opening.Add(held)
		sum.Closing = sum.Closing.Add(b.Closing)
	}

	sum.Expected = sum.Opening.Add(sum.Inflow).Sub(sum.Outflow)
	sum.Discrepancy = sum.Closing.Sub(sum.Expected)

	return sum, nil
}

// Reconcile reports whether the live balance still equals the resulting
// balance of the latest movement.
func (s *Service) Reconcile(ctx context.Context, storeID string, t reserve.Type) (*Report, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: unknown reserve type %q", ErrInvalidRequest, t)
	}

	acc, err := s.accounts.GetAccount(ctx, storeID, t)
	if err != nil {
		return nil, fmt.Errorf("reading account: %w", err)
	}

	derived := decimal.Zero

	latest, err := s.movements.Latest(ctx, storeID, t)

	switch {
	case err == nil:
		derived = latest.ResultingBalance
	case !errors.Is(err, movement.ErrNotFound):
		return nil, fmt.Errorf("reading latest movement: %w", err)
	}

	drift := acc.Balance.Sub(derived)

	return &Report{
		StoreID:     storeID,
		ReserveType: t,
		Live:        acc.Balance,
		Derived:     derived,
		Drift:       drift,
		Version:     acc.Version,
		Consistent:  drift.IsZero(),
	}, nil
}

func (s *Service) ReconcileStore(ctx context.Context, storeID string) ([]*Report, error) {
	reports := make([]*Report, 0, len(reserve.Types))

	for _, t := range reserve.Types {
		r, err := s.Reconcile(ctx, storeID, t)
		if err != nil {
			return nil, fmt.Errorf("reconciling %s: %w", t, err)
		}

		reports = append(reports, r)
	}

	return reports, nil
}

// Realign moves a drifted live balance back to the balance the log implies.
// The log is the source of truth and is left untouched. The write is
// version-checked, so a settlement racing with the realignment makes it fail
// with reserve.ErrVersionConflict rather than being overwritten.
func (s *Service) Realign(ctx context.Context, storeID string, t reserve.Type, actor string) (*Report, error) {
	report, err := s.Reconcile(ctx, storeID, t)
	if err != nil {
		return nil, err
	}

	if report.Consistent {
		return report, nil
	}

	utx, err := s.tx.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning realignment: %w", err)
	}
	defer utx.Rollback()

	acc, err := utx.ApplyDelta(ctx, storeID, t, report.Drift.Neg(), report.Version)
	if err != nil {
		return nil, fmt.Errorf("realigning %s at %s: %w", t, storeID, err)
	}

	if err := utx.Commit(); err != nil {
		return nil, fmt.Errorf("committing realignment: %w", err)
	}

	slog.Warn("reserve realigned to movement log",
		"store_id", storeID,
		"reserve_type", t,
		"actor", actor,
		"live", report.Live.String(),
		"derived", report.Derived.String(),
		"drift", report.Drift.String(),
	)

	return &Report{
		StoreID:     storeID,
		ReserveType: t,
		Live:        acc.Balance,
		Derived:     report.Derived,
		Drift:       acc.Balance.Sub(report.Derived),
		Version:     acc.Version,
		Consistent:  acc.Balance.Equal(report.Derived),
	}, nil
}
