package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/karat/internal/alert"
	"github.com/MrJamesThe3rd/karat/internal/movement"
	"github.com/MrJamesThe3rd/karat/internal/reserve"
	"github.com/MrJamesThe3rd/karat/internal/shop"
)

var (
	settlementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "karat_settlements_total",
			Help: "Settlement attempts by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	versionConflictsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "karat_settlement_version_conflicts_total",
			Help: "Optimistic version conflicts retried by the settlement engine",
		},
	)

	settleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "karat_settlement_duration_seconds",
			Help:    "Duration of settle calls",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2},
		},
		[]string{"kind"},
	)
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=settlement
type Repository interface {
	Begin(ctx context.Context) (Tx, error)
	GetTransaction(ctx context.Context, id uuid.UUID) (*Transaction, error)
	FindReversal(ctx context.Context, originalID uuid.UUID) (*Transaction, error)
	ListTransactions(ctx context.Context, filter ListFilter) ([]*Transaction, error)
}

// Tx is one storage transaction. ApplyDelta holds the reserve row until Commit
// or Rollback, so a concurrent writer on the same reserve observes a conflict.
type Tx interface {
	ApplyDelta(ctx context.Context, storeID string, t reserve.Type, delta decimal.Decimal, expectedVersion int64) (*reserve.Account, error)
	LatestMovement(ctx context.Context, storeID string, t reserve.Type) (*movement.Entry, error)
	AppendMovement(ctx context.Context, e *movement.Entry) (string, error)
	CreateTransaction(ctx context.Context, t *Transaction) error
	Commit() error
	Rollback() error
}

type AccountReader interface {
	GetAccount(ctx context.Context, storeID string, t reserve.Type) (*reserve.Account, error)
}

type MovementReader interface {
	FindBySource(ctx context.Context, transactionID uuid.UUID) ([]*movement.Entry, error)
}

type ShopFinder interface {
	GetShop(ctx context.Context, id string) (*shop.Shop, error)
}

type Alerter interface {
	Evaluate(ctx context.Context, storeID string, t reserve.Type, balance, threshold decimal.Decimal) (*alert.Notification, error)
}

type ListFilter struct {
	StoreID   string
	Kind      *Kind
	StartDate *time.Time
	EndDate   *time.Time
}

type Options struct {
	// MaxAttempts bounds optimistic retries per settlement.
	MaxAttempts int
	// Backoff is multiplied by the attempt number between retries.
	Backoff time.Duration
	// Threshold is the low-stock line handed to the alerting policy.
	Threshold decimal.Decimal
	// Location is where a business day starts and ends.
	Location *time.Location
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 5
	}

	if o.Backoff < 0 {
		o.Backoff = 0
	}

	if o.Location == nil {
		o.Location = time.UTC
	}

	return o
}

// Result describes a committed settlement.
type Result struct {
	Transaction  *Transaction
	Entry        *movement.Entry
	Balance      decimal.Decimal
	Notification *alert.Notification
}

type Engine struct {
	repo      Repository
	accounts  AccountReader
	movements MovementReader
	shops     ShopFinder
	alerts    Alerter
	opts      Options
	now       func() time.Time
}

func NewEngine(
	repo Repository,
	accounts AccountReader,
	movements MovementReader,
	shops ShopFinder,
	alerts Alerter,
	opts Options,
) *Engine {
	return &Engine{
		repo:      repo,
		accounts:  accounts,
		movements: movements,
		shops:     shops,
		alerts:    alerts,
		opts:      opts.withDefaults(),
		now:       time.Now,
	}
}

// Settle validates tx, applies it to the chosen reserve and records it.
//
// A rejected settlement returns an error matching ErrInsufficient and writes
// nothing. Any other error leaves the outcome to be confirmed with Lookup.
func (e *Engine) Settle(ctx context.Context, tx Transaction, chosen reserve.Type) (*Result, error) {
	kind := "unknown"
	if tx.Kind.Valid() {
		kind = string(tx.Kind)
	}

	start := time.Now()
	defer func() {
		settleDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	}()

	res, err := e.settle(ctx, &tx, chosen)
	settlementsTotal.WithLabelValues(kind, outcome(err)).Inc()

	return res, err
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "settled"
	case errors.Is(err, ErrInsufficient):
		return "insufficient"
	case errors.Is(err, ErrContention):
		return "contention"
	case errors.Is(err, ErrReserveChanged):
		return "stale"
	case errors.Is(err, ErrIntegrityViolation):
		return "integrity"
	case errors.Is(err, ErrInvalidTransaction):
		return "invalid"
	case errors.Is(err, ErrAlreadySettled):
		return "duplicate"
	}

	return "error"
}

func (e *Engine) settle(ctx context.Context, tx *Transaction, chosen reserve.Type) (*Result, error) {
	tx.ReserveType = chosen
	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}

	delta, err := tx.prepare()
	if err != nil {
		return nil, err
	}

	if _, err := e.shops.GetShop(ctx, tx.StoreID); err != nil {
		if errors.Is(err, shop.ErrNotFound) {
			return nil, invalid("unknown store %q", tx.StoreID)
		}

		return nil, fmt.Errorf("getting store: %w", err)
	}

	existing, err := e.movements.FindBySource(ctx, tx.ID)
	if err != nil {
		return nil, fmt.Errorf("checking transaction %s: %w", tx.ID, err)
	}

	if len(existing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrAlreadySettled, tx.ID)
	}

	var reversedMovement string

	if tx.ReversalOf != nil {
		orig, err := e.repo.GetTransaction(ctx, *tx.ReversalOf)
		if err != nil {
			return nil, fmt.Errorf("getting reversed transaction: %w", err)
		}

		reversedMovement = orig.MovementID
	}

	var res *Result

	for attempt := 1; ; attempt++ {
		res, err = e.attempt(ctx, tx, delta, reversedMovement)
		if !errors.Is(err, reserve.ErrVersionConflict) {
			break
		}

		versionConflictsTotal.Inc()

		if attempt >= e.opts.MaxAttempts {
			return nil, fmt.Errorf("%w: %s at %s changed during %d attempts (transaction %s)",
				ErrContention, tx.ReserveType, tx.StoreID, attempt, tx.ID)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("settling transaction %s: %w", tx.ID, ctx.Err())
		case <-time.After(e.opts.Backoff * time.Duration(attempt)):
		}
	}

	if err != nil {
		return nil, err
	}

	n, err := e.alerts.Evaluate(ctx, tx.StoreID, tx.ReserveType, res.Balance, e.opts.Threshold)
	if err != nil {
		slog.Error("failed to evaluate alerting policy",
			"error", err, "store_id", tx.StoreID, "reserve_type", tx.ReserveType)
	}

	res.Notification = n

	return res, nil
}

// attempt reads the reserve, checks the balance and commits once. It returns
// reserve.ErrVersionConflict when the reserve moved after it was read.
func (e *Engine) attempt(
	ctx context.Context,
	tx *Transaction,
	delta decimal.Decimal,
	reversedMovement string,
) (*Result, error) {
	acc, err := e.accounts.GetAccount(ctx, tx.StoreID, tx.ReserveType)
	if err != nil {
		return nil, fmt.Errorf("reading reserve: %w", err)
	}

	if tx.ExpectedVersion != nil && acc.Version != *tx.ExpectedVersion {
		return nil, fmt.Errorf("%w: %s at %s is at version %d, transaction %s expected %d",
			ErrReserveChanged, tx.ReserveType, tx.StoreID, acc.Version, tx.ID, *tx.ExpectedVersion)
	}

	candidate := acc.Balance.Add(delta)
	if candidate.IsNegative() {
		return nil, &InsufficientError{
			StoreID:     tx.StoreID,
			ReserveType: tx.ReserveType,
			Balance:     acc.Balance,
			Delta:       delta,
			Candidate:   candidate,
			Shortfall:   candidate.Neg(),
		}
	}

	utx, err := e.repo.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning settlement: %w", err)
	}
	defer utx.Rollback()

	updated, err := utx.ApplyDelta(ctx, tx.StoreID, tx.ReserveType, delta, acc.Version)
	if err != nil {
		if errors.Is(err, reserve.ErrVersionConflict) {
			return nil, err
		}

		return nil, fmt.Errorf("applying delta (transaction %s): %w", tx.ID, err)
	}

	latest, err := utx.LatestMovement(ctx, tx.StoreID, tx.ReserveType)
	if err != nil && !errors.Is(err, movement.ErrNotFound) {
		return nil, fmt.Errorf("reading latest movement: %w", err)
	}

	if err := checkIntegrity(acc, latest); err != nil {
		slog.Error("reserve diverged from movement log", "error", err,
			"store_id", tx.StoreID, "reserve_type", tx.ReserveType)

		return nil, err
	}

	createdAt := e.now().UTC().Truncate(time.Microsecond)
	if latest != nil && !createdAt.After(latest.CreatedAt) {
		createdAt = latest.CreatedAt.Add(time.Microsecond)
	}

	entry := &movement.Entry{
		StoreID:             tx.StoreID,
		ReserveType:         tx.ReserveType,
		Delta:               delta,
		ResultingBalance:    candidate,
		Reason:              tx.Kind.Reason(),
		SourceTransactionID: tx.ID,
		Actor:               tx.Employee,
		CreatedAt:           createdAt,
	}

	if reversedMovement != "" {
		entry.ReversalOf = &reversedMovement
	}

	entryID, err := utx.AppendMovement(ctx, entry)
	if err != nil {
		return nil, fmt.Errorf("appending movement (transaction %s): %w", tx.ID, err)
	}

	tx.Delta = delta
	tx.MovementID = entryID
	tx.CreatedAt = createdAt
	tx.Date = createdAt.In(e.opts.Location).Format(time.DateOnly)

	if err := utx.CreateTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("recording transaction %s: %w", tx.ID, err)
	}

	if err := utx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction %s: %w", tx.ID, err)
	}

	recorded := *tx

	return &Result{
		Transaction: &recorded,
		Entry:       entry,
		Balance:     updated.Balance,
	}, nil
}

// checkIntegrity compares the balance read before the write with the log.
// An empty log must correspond to an untouched, zero account.
func checkIntegrity(acc *reserve.Account, latest *movement.Entry) error {
	logged := decimal.Zero
	if latest != nil {
		logged = latest.ResultingBalance
	}

	if acc.Balance.Equal(logged) {
		return nil
	}

	return &IntegrityError{
		StoreID:     acc.StoreID,
		ReserveType: acc.Type,
		Live:        acc.Balance,
		Logged:      logged,
	}
}

// Reverse settles an adjustment that cancels a previous transaction. History is
// never edited; the reversal is a new transaction and may itself be rejected as
// insufficient.
func (e *Engine) Reverse(ctx context.Context, id uuid.UUID, actor string) (*Result, error) {
	orig, err := e.repo.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}

	if orig.ReversalOf != nil {
		return nil, invalid("transaction %s is itself a reversal", id)
	}

	_, err = e.repo.FindReversal(ctx, id)
	if err == nil {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyReversed, id)
	}

	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("finding reversal: %w", err)
	}

	return e.Settle(ctx, Transaction{
		Kind:       KindAdjustment,
		StoreID:    orig.StoreID,
		Employee:   actor,
		Delta:      orig.Delta.Neg(),
		Note:       fmt.Sprintf("reversal of %s", orig.ID),
		ReversalOf: &orig.ID,
	}, orig.ReserveType)
}

// Lookup returns a settled transaction. After a failed or timed-out Settle it
// tells the caller whether the transaction was committed.
func (e *Engine) Lookup(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	return e.repo.GetTransaction(ctx, id)
}

func (e *Engine) List(ctx context.Context, filter ListFilter) ([]*Transaction, error) {
	return e.repo.ListTransactions(ctx, filter)
}
