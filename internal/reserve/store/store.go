package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/karat/internal/database"
	"github.com/MrJamesThe3rd/karat/internal/reserve"
)

type Store struct {
	db database.Querier
}

func New(db database.Querier) *Store {
	return &Store{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

// Expected column order: store_id, reserve_type, balance, version, last_updated
func scanAccount(s scanner) (*reserve.Account, error) {
	var acc reserve.Account

	var typeStr string

	if err := s.Scan(&acc.StoreID, &typeStr, &acc.Balance, &acc.Version, &acc.LastUpdated); err != nil {
		return nil, err
	}

	acc.Type = reserve.Type(typeStr)

	return &acc, nil
}

const selectAccountColumns = `store_id, reserve_type, balance, version, last_updated`

func (s *Store) GetAccount(ctx context.Context, storeID string, t reserve.Type) (*reserve.Account, error) {
	query := `SELECT ` + selectAccountColumns + `
		FROM reserve_accounts
		WHERE store_id = $1 AND reserve_type = $2`

	acc, err := scanAccount(s.db.QueryRowContext(ctx, query, storeID, t))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &reserve.Account{StoreID: storeID, Type: t, Balance: decimal.Zero}, nil
		}

		return nil, fmt.Errorf("getting account: %w", err)
	}

	return acc, nil
}

func (s *Store) ListAccounts(ctx context.Context, storeID string) ([]*reserve.Account, error) {
	query := `SELECT ` + selectAccountColumns + `
		FROM reserve_accounts
		WHERE store_id = $1
		ORDER BY reserve_type`

	rows, err := s.db.QueryContext(ctx, query, storeID)
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*reserve.Account

	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning account: %w", err)
		}

		accounts = append(accounts, acc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating account rows: %w", err)
	}

	return accounts, nil
}

// ApplyDelta materialises the account row on first use, then performs a
// compare-and-set on version. Inside a transaction the UPDATE holds the row
// lock until commit, so a concurrent writer that read the same version
// re-evaluates the WHERE clause after we commit and matches zero rows.
func (s *Store) ApplyDelta(
	ctx context.Context,
	storeID string,
	t reserve.Type,
	delta decimal.Decimal,
	expectedVersion int64,
) (*reserve.Account, error) {
	insert := `
		INSERT INTO reserve_accounts (store_id, reserve_type, balance, version, last_updated)
		VALUES ($1, $2, 0, 0, NOW())
		ON CONFLICT (store_id, reserve_type) DO NOTHING
	`
	if _, err := s.db.ExecContext(ctx, insert, storeID, t); err != nil {
		return nil, fmt.Errorf("materialising account: %w", err)
	}

	update := `
		UPDATE reserve_accounts
		SET balance = balance + $3, version = version + 1, last_updated = NOW()
		WHERE store_id = $1 AND reserve_type = $2 AND version = $4
		RETURNING ` + selectAccountColumns

	acc, err := scanAccount(s.db.QueryRowContext(ctx, update, storeID, t, delta, expectedVersion))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, reserve.ErrVersionConflict
		}

		return nil, fmt.Errorf("applying delta: %w", err)
	}

	return acc, nil
}
