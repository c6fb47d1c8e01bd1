package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/karat/internal/movement"
	movementStore "github.com/MrJamesThe3rd/karat/internal/movement/store"
	"github.com/MrJamesThe3rd/karat/internal/reserve"
	reserveStore "github.com/MrJamesThe3rd/karat/internal/reserve/store"
	"github.com/MrJamesThe3rd/karat/internal/settlement"
)

const uniqueViolation = "23505"

type Store struct {
	db  *sql.DB
	loc *time.Location
}

// New returns a settlement store. loc is used to derive the display date of
// transactions read back from the database.
func New(db *sql.DB, loc *time.Location) *Store {
	if loc == nil {
		loc = time.UTC
	}

	return &Store{db: db, loc: loc}
}

type scanner interface {
	Scan(dest ...any) error
}

// Expected column order: id, kind, store_id, employee, reserve_type, weight, touch,
// returned_weight, returned_touch, fine, rate, amount, delta, note, movement_id,
// reversal_of, created_at
func (s *Store) scanTransaction(sc scanner) (*settlement.Transaction, error) {
	var t settlement.Transaction

	var kindStr, typeStr string

	var reversalOf uuid.NullUUID

	if err := sc.Scan(
		&t.ID, &kindStr, &t.StoreID, &t.Employee, &typeStr,
		&t.Weight, &t.Touch, &t.ReturnedWeight, &t.ReturnedTouch,
		&t.Fine, &t.Rate, &t.Amount, &t.Delta, &t.Note, &t.MovementID,
		&reversalOf, &t.CreatedAt,
	); err != nil {
		return nil, err
	}

	t.Kind = settlement.Kind(kindStr)
	t.ReserveType = reserve.Type(typeStr)
	t.Date = t.CreatedAt.In(s.loc).Format(time.DateOnly)

	if reversalOf.Valid {
		t.ReversalOf = &reversalOf.UUID
	}

	return &t, nil
}

const selectTransactionColumns = `
	id, kind, store_id, employee, reserve_type, weight, touch,
	returned_weight, returned_touch, fine, rate, amount, delta, note, movement_id,
	reversal_of, created_at
`

func (s *Store) GetTransaction(ctx context.Context, id uuid.UUID) (*settlement.Transaction, error) {
	query := `SELECT ` + selectTransactionColumns + `
		FROM ledger_transactions
		WHERE id = $1`

	t, err := s.scanTransaction(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, settlement.ErrNotFound
		}

		return nil, fmt.Errorf("getting transaction: %w", err)
	}

	return t, nil
}

func (s *Store) FindReversal(ctx context.Context, originalID uuid.UUID) (*settlement.Transaction, error) {
	query := `SELECT ` + selectTransactionColumns + `
		FROM ledger_transactions
		WHERE reversal_of = $1`

	t, err := s.scanTransaction(s.db.QueryRowContext(ctx, query, originalID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, settlement.ErrNotFound
		}

		return nil, fmt.Errorf("finding reversal: %w", err)
	}

	return t, nil
}

func (s *Store) ListTransactions(ctx context.Context, filter settlement.ListFilter) ([]*settlement.Transaction, error) {
	query := `SELECT ` + selectTransactionColumns + `
		FROM ledger_transactions
		WHERE store_id = $1`

	args := []any{filter.StoreID}

	argIdx := 2

	if filter.Kind != nil {
		query += fmt.Sprintf(" AND kind = $%d", argIdx)

		args = append(args, *filter.Kind)
		argIdx++
	}

	if filter.StartDate != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)

		args = append(args, *filter.StartDate)
		argIdx++
	}

	if filter.EndDate != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)

		args = append(args, *filter.EndDate)
	}

	query += " ORDER BY created_at ASC, id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	defer rows.Close()

	var txs []*settlement.Transaction

	for rows.Next() {
		t, err := s.scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}

		txs = append(txs, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating transaction rows: %w", err)
	}

	return txs, nil
}

type settleTx struct {
	tx        *sql.Tx
	reserves  *reserveStore.Store
	movements *movementStore.Store
}

func (s *Store) Begin(ctx context.Context) (settlement.Tx, error) {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning settlement tx: %w", err)
	}

	return &settleTx{
		tx:        dbTx,
		reserves:  reserveStore.New(dbTx),
		movements: movementStore.New(dbTx),
	}, nil
}

func (st *settleTx) Commit() error   { return st.tx.Commit() }
func (st *settleTx) Rollback() error { return st.tx.Rollback() }

func (st *settleTx) ApplyDelta(
	ctx context.Context,
	storeID string,
	t reserve.Type,
	delta decimal.Decimal,
	expectedVersion int64,
) (*reserve.Account, error) {
	return st.reserves.ApplyDelta(ctx, storeID, t, delta, expectedVersion)
}

func (st *settleTx) LatestMovement(ctx context.Context, storeID string, t reserve.Type) (*movement.Entry, error) {
	return st.movements.Latest(ctx, storeID, t)
}

func (st *settleTx) AppendMovement(ctx context.Context, e *movement.Entry) (string, error) {
	return st.movements.Append(ctx, e)
}

func (st *settleTx) CreateTransaction(ctx context.Context, t *settlement.Transaction) error {
	query := `
		INSERT INTO ledger_transactions (
			id, kind, store_id, employee, reserve_type, weight, touch,
			returned_weight, returned_touch, fine, rate, amount, delta, note, movement_id,
			reversal_of, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	_, err := st.tx.ExecContext(ctx, query,
		t.ID, t.Kind, t.StoreID, t.Employee, t.ReserveType,
		t.Weight, t.Touch, t.ReturnedWeight, t.ReturnedTouch,
		t.Fine, t.Rate, t.Amount, t.Delta, t.Note, t.MovementID,
		t.ReversalOf, t.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			if t.ReversalOf != nil && pgErr.ConstraintName != "ledger_transactions_pkey" {
				return fmt.Errorf("%w: %s", settlement.ErrAlreadyReversed, *t.ReversalOf)
			}

			return fmt.Errorf("%w: %s", settlement.ErrAlreadySettled, t.ID)
		}

		return fmt.Errorf("inserting transaction: %w", err)
	}

	return nil
}
