package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/MrJamesThe3rd/karat/internal/alias"
	"github.com/MrJamesThe3rd/karat/internal/reserve"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) FindMatch(ctx context.Context, label string) (reserve.Type, error) {
	query := `
		SELECT reserve_type
		FROM reserve_aliases
		WHERE $1 ILIKE '%' || raw_pattern || '%'
		ORDER BY LENGTH(raw_pattern) DESC, created_at DESC
		LIMIT 1
	`

	var t string

	err := s.db.QueryRowContext(ctx, query, label).Scan(&t)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}

		return "", fmt.Errorf("finding alias: %w", err)
	}

	return reserve.Type(t), nil
}

func (s *Store) CreateAlias(ctx context.Context, rawPattern string, t reserve.Type) error {
	query := `
		INSERT INTO reserve_aliases (raw_pattern, reserve_type, created_at)
		VALUES ($1, $2, NOW())
	`

	if _, err := s.db.ExecContext(ctx, query, rawPattern, t); err != nil {
		return fmt.Errorf("creating alias: %w", err)
	}

	return nil
}

func (s *Store) ListAliases(ctx context.Context) ([]*alias.Alias, error) {
	query := `
		SELECT raw_pattern, reserve_type, created_at
		FROM reserve_aliases
		ORDER BY created_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing aliases: %w", err)
	}
	defer rows.Close()

	var aliases []*alias.Alias

	for rows.Next() {
		var (
			a       alias.Alias
			typeStr string
		)

		if err := rows.Scan(&a.RawPattern, &typeStr, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning alias: %w", err)
		}

		a.ReserveType = reserve.Type(typeStr)
		aliases = append(aliases, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating alias rows: %w", err)
	}

	return aliases, nil
}
