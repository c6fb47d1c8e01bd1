package movement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/karat/internal/reserve"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=movement
type Repository interface {
	Append(ctx context.Context, e *Entry) (string, error)
	// Query returns entries ordered by CreatedAt, then ID.
	Query(ctx context.Context, filter Filter) ([]*Entry, error)
	Latest(ctx context.Context, storeID string, t reserve.Type) (*Entry, error)
	// LastBefore returns the last entry created strictly before t.
	LastBefore(ctx context.Context, storeID string, rt reserve.Type, t time.Time) (*Entry, error)
	FindBySource(ctx context.Context, transactionID uuid.UUID) ([]*Entry, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filter Filter) ([]*Entry, error) {
	if !filter.ReserveType.Valid() {
		return nil, fmt.Errorf("%w: unknown reserve type %q", ErrInvalidFilter, filter.ReserveType)
	}

	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, fmt.Errorf("%w: %s is before %s", ErrInvalidFilter, filter.To, filter.From)
	}

	entries, err := s.repo.Query(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing movements: %w", err)
	}

	return entries, nil
}

func (s *Service) Latest(ctx context.Context, storeID string, t reserve.Type) (*Entry, error) {
	return s.repo.Latest(ctx, storeID, t)
}

// FindBySource reports whether a transaction reached the log. Callers use it after
// an unknown-outcome failure before deciding to present the transaction again.
func (s *Service) FindBySource(ctx context.Context, transactionID uuid.UUID) ([]*Entry, error) {
	return s.repo.FindBySource(ctx, transactionID)
}
