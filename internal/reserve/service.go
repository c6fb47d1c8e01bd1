package reserve

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=reserve
type Repository interface {
	// GetAccount returns the account for the key, or a zero account with version 0
	// when nothing has been written for it yet.
	GetAccount(ctx context.Context, storeID string, t Type) (*Account, error)
	ListAccounts(ctx context.Context, storeID string) ([]*Account, error)
	// ApplyDelta adds delta to the balance if the stored version equals expectedVersion.
	// It does not check the resulting balance.
	ApplyDelta(ctx context.Context, storeID string, t Type, delta decimal.Decimal, expectedVersion int64) (*Account, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Get(ctx context.Context, storeID string, t Type) (*Account, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("unknown reserve type %q", t)
	}

	return s.repo.GetAccount(ctx, storeID, t)
}

func (s *Service) GetBalance(ctx context.Context, storeID string, t Type) (decimal.Decimal, error) {
	acc, err := s.Get(ctx, storeID, t)
	if err != nil {
		return decimal.Zero, err
	}

	return acc.Balance, nil
}

// List returns one account per reserve type, including the ones never written.
func (s *Service) List(ctx context.Context, storeID string) ([]*Account, error) {
	stored, err := s.repo.ListAccounts(ctx, storeID)
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}

	byType := make(map[Type]*Account, len(stored))
	for _, a := range stored {
		byType[a.Type] = a
	}

	accounts := make([]*Account, 0, len(Types))

	for _, t := range Types {
		if a, ok := byType[t]; ok {
			accounts = append(accounts, a)
			continue
		}

		accounts = append(accounts, &Account{StoreID: storeID, Type: t, Balance: decimal.Zero})
	}

	return accounts, nil
}
