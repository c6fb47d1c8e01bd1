package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/karat/internal/database"
	"github.com/MrJamesThe3rd/karat/internal/movement"
	"github.com/MrJamesThe3rd/karat/internal/reserve"
)

// Store is append-only: it never issues UPDATE or DELETE against movements,
// and the schema trigger rejects both.
type Store struct {
	db database.Querier
}

func New(db database.Querier) *Store {
	return &Store{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

// Expected column order: id, store_id, reserve_type, delta, resulting_balance, reason,
// source_transaction_id, reversal_of, actor, created_at
func scanEntry(s scanner) (*movement.Entry, error) {
	var e movement.Entry

	var typeStr, reasonStr string

	var reversalOf sql.NullString

	if err := s.Scan(
		&e.ID, &e.StoreID, &typeStr, &e.Delta, &e.ResultingBalance, &reasonStr,
		&e.SourceTransactionID, &reversalOf, &e.Actor, &e.CreatedAt,
	); err != nil {
		return nil, err
	}

	e.ReserveType = reserve.Type(typeStr)
	e.Reason = movement.Reason(reasonStr)

	if reversalOf.Valid {
		e.ReversalOf = &reversalOf.String
	}

	return &e, nil
}

const selectEntryColumns = `
	id, store_id, reserve_type, delta, resulting_balance, reason,
	source_transaction_id, reversal_of, actor, created_at
`

func (s *Store) Append(ctx context.Context, e *movement.Entry) (string, error) {
	if err := movement.Stamp(e); err != nil {
		return "", err
	}

	query := `
		INSERT INTO movements (
			id, store_id, reserve_type, delta, resulting_balance, reason,
			source_transaction_id, reversal_of, actor, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := s.db.ExecContext(ctx, query,
		e.ID,
		e.StoreID,
		e.ReserveType,
		e.Delta,
		e.ResultingBalance,
		e.Reason,
		e.SourceTransactionID,
		e.ReversalOf,
		e.Actor,
		e.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("appending movement: %w", err)
	}

	return e.ID, nil
}

func (s *Store) Query(ctx context.Context, filter movement.Filter) ([]*movement.Entry, error) {
	query := `SELECT ` + selectEntryColumns + `
		FROM movements
		WHERE store_id = $1 AND reserve_type = $2`

	args := []any{filter.StoreID, filter.ReserveType}

	argIdx := 3

	if filter.From != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)

		args = append(args, *filter.From)
		argIdx++
	}

	if filter.To != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)

		args = append(args, *filter.To)
	}

	query += " ORDER BY created_at ASC, id ASC"

	return s.queryEntries(ctx, query, args...)
}

func (s *Store) Latest(ctx context.Context, storeID string, t reserve.Type) (*movement.Entry, error) {
	query := `SELECT ` + selectEntryColumns + `
		FROM movements
		WHERE store_id = $1 AND reserve_type = $2
		ORDER BY created_at DESC, id DESC
		LIMIT 1`

	return s.queryOne(ctx, query, storeID, t)
}

func (s *Store) LastBefore(ctx context.Context, storeID string, rt reserve.Type, t time.Time) (*movement.Entry, error) {
	query := `SELECT ` + selectEntryColumns + `
		FROM movements
		WHERE store_id = $1 AND reserve_type = $2 AND created_at < $3
		ORDER BY created_at DESC, id DESC
		LIMIT 1`

	return s.queryOne(ctx, query, storeID, rt, t)
}

func (s *Store) FindBySource(ctx context.Context, transactionID uuid.UUID) ([]*movement.Entry, error) {
	query := `SELECT ` + selectEntryColumns + `
		FROM movements
		WHERE source_transaction_id = $1
		ORDER BY created_at ASC, id ASC`

	return s.queryEntries(ctx, query, transactionID)
}

func (s *Store) queryOne(ctx context.Context, query string, args ...any) (*movement.Entry, error) {
	e, err := scanEntry(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, movement.ErrNotFound
		}

		return nil, fmt.Errorf("getting movement: %w", err)
	}

	return e, nil
}

func (s *Store) queryEntries(ctx context.Context, query string, args ...any) ([]*movement.Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying movements: %w", err)
	}
	defer rows.Close()

	var entries []*movement.Entry

	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning movement: %w", err)
		}

		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating movement rows: %w", err)
	}

	return entries, nil
}
