package memory

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/karat/internal/reserve"
)

func (s *Store) GetAccount(_ context.Context, storeID string, t reserve.Type) (*reserve.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.accountLocked(reserve.Key{StoreID: storeID, Type: t}), nil
}

func (s *Store) ListAccounts(_ context.Context, storeID string) ([]*reserve.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var accounts []*reserve.Account

	for k, a := range s.accounts {
		if k.StoreID == storeID {
			acc := *a
			accounts = append(accounts, &acc)
		}
	}

	slices.SortFunc(accounts, func(a, b *reserve.Account) int {
		return strings.Compare(string(a.Type), string(b.Type))
	})

	return accounts, nil
}

func (s *Store) ApplyDelta(
	ctx context.Context,
	storeID string,
	t reserve.Type,
	delta decimal.Decimal,
	expectedVersion int64,
) (*reserve.Account, error) {
	k := reserve.Key{StoreID: storeID, Type: t}
	if err := s.lockKey(ctx, k); err != nil {
		return nil, err
	}
	defer s.unlockKey(k)

	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.accountLocked(k)
	if cur.Version != expectedVersion {
		return nil, reserve.ErrVersionConflict
	}

	next := advance(cur, delta, s.now())
	s.accounts[k] = next

	acc := *next

	return &acc, nil
}

// accountLocked returns a copy of the account, or a zero account when the key
// has never been written.
func (s *Store) accountLocked(k reserve.Key) *reserve.Account {
	a, ok := s.accounts[k]
	if !ok {
		return &reserve.Account{StoreID: k.StoreID, Type: k.Type, Balance: decimal.Zero}
	}

	acc := *a

	return &acc
}

func advance(cur *reserve.Account, delta decimal.Decimal, now time.Time) *reserve.Account {
	return &reserve.Account{
		StoreID:     cur.StoreID,
		Type:        cur.Type,
		Balance:     cur.Balance.Add(delta),
		Version:     cur.Version + 1,
		LastUpdated: now,
	}
}
