package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/karat/internal/alert"
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

// Expected column order: id, store_id, reserve_type, message, link, seen, created_at
func scanNotification(s scanner) (*alert.Notification, error) {
	var n alert.Notification

	var typeStr string

	if err := s.Scan(&n.ID, &n.StoreID, &typeStr, &n.Message, &n.Link, &n.Seen, &n.CreatedAt); err != nil {
		return nil, err
	}

	n.ReserveType = reserve.Type(typeStr)

	return &n, nil
}

const selectNotificationColumns = `id, store_id, reserve_type, message, link, seen, created_at`

// CreateIfAbsent relies on the partial unique index over unseen notifications,
// so two concurrent breaches cannot both insert.
func (s *Store) CreateIfAbsent(ctx context.Context, n *alert.Notification) (bool, error) {
	query := `
		INSERT INTO notifications (id, store_id, reserve_type, message, link, seen, created_at)
		VALUES ($1, $2, $3, $4, $5, FALSE, $6)
		ON CONFLICT (store_id, reserve_type) WHERE NOT seen DO NOTHING
		RETURNING id
	`

	var id uuid.UUID

	err := s.db.QueryRowContext(ctx, query,
		n.ID, n.StoreID, n.ReserveType, n.Message, n.Link, n.CreatedAt,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}

		return false, fmt.Errorf("inserting notification: %w", err)
	}

	return true, nil
}

func (s *Store) FindActive(ctx context.Context, storeID string, t reserve.Type) (*alert.Notification, error) {
	query := `SELECT ` + selectNotificationColumns + `
		FROM notifications
		WHERE store_id = $1 AND reserve_type = $2 AND NOT seen`

	n, err := scanNotification(s.db.QueryRowContext(ctx, query, storeID, t))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, alert.ErrNotFound
		}

		return nil, fmt.Errorf("finding active notification: %w", err)
	}

	return n, nil
}

func (s *Store) ListActive(ctx context.Context, storeID string) ([]*alert.Notification, error) {
	query := `SELECT ` + selectNotificationColumns + `
		FROM notifications
		WHERE store_id = $1 AND NOT seen
		ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, storeID)
	if err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*alert.Notification

	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning notification: %w", err)
		}

		notifications = append(notifications, n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating notification rows: %w", err)
	}

	return notifications, nil
}

// Acknowledge is idempotent: seen_at keeps the first acknowledgement time.
func (s *Store) Acknowledge(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE notifications
		SET seen = TRUE, seen_at = COALESCE(seen_at, NOW())
		WHERE id = $1
		RETURNING id
	`

	var got uuid.UUID
	if err := s.db.QueryRowContext(ctx, query, id).Scan(&got); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return alert.ErrNotFound
		}

		return fmt.Errorf("acknowledging notification: %w", err)
	}

	return nil
}
