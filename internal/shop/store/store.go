package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/MrJamesThe3rd/karat/internal/database"
	"github.com/MrJamesThe3rd/karat/internal/shop"
)

const uniqueViolation = "23505"

type Store struct {
	db database.Querier
}

func New(db database.Querier) *Store {
	return &Store{db: db}
}

func (s *Store) CreateShop(ctx context.Context, sh *shop.Shop) error {
	query := `
		INSERT INTO shops (id, name, created_at)
		VALUES ($1, $2, NOW())
		RETURNING created_at
	`

	err := s.db.QueryRowContext(ctx, query, sh.ID, sh.Name).Scan(&sh.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return shop.ErrExists
		}

		return fmt.Errorf("creating store: %w", err)
	}

	return nil
}

func (s *Store) GetShop(ctx context.Context, id string) (*shop.Shop, error) {
	query := `SELECT id, name, created_at FROM shops WHERE id = $1`

	var sh shop.Shop

	err := s.db.QueryRowContext(ctx, query, id).Scan(&sh.ID, &sh.Name, &sh.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shop.ErrNotFound
		}

		return nil, fmt.Errorf("getting store: %w", err)
	}

	return &sh, nil
}

func (s *Store) ListShops(ctx context.Context) ([]*shop.Shop, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, created_at FROM shops ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing stores: %w", err)
	}
	defer rows.Close()

	var shops []*shop.Shop

	for rows.Next() {
		var sh shop.Shop
		if err := rows.Scan(&sh.ID, &sh.Name, &sh.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning store: %w", err)
		}

		shops = append(shops, &sh)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating store rows: %w", err)
	}

	return shops, nil
}
