package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/MrJamesThe3rd/karat/internal/shop"
)

func (s *Store) CreateShop(_ context.Context, sh *shop.Shop) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.shops[sh.ID]; ok {
		return fmt.Errorf("%w: %s", shop.ErrExists, sh.ID)
	}

	if sh.CreatedAt.IsZero() {
		sh.CreatedAt = s.now()
	}

	stored := *sh
	s.shops[sh.ID] = &stored

	return nil
}

func (s *Store) GetShop(_ context.Context, id string) (*shop.Shop, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sh, ok := s.shops[id]
	if !ok {
		return nil, shop.ErrNotFound
	}

	cp := *sh

	return &cp, nil
}

func (s *Store) ListShops(_ context.Context) ([]*shop.Shop, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*shop.Shop, 0, len(s.shops))
	for _, sh := range s.shops {
		cp := *sh
		out = append(out, &cp)
	}

	slices.SortFunc(out, func(a, b *shop.Shop) int {
		return strings.Compare(a.ID, b.ID)
	})

	return out, nil
}
