package memory

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/karat/internal/movement"
	"github.com/MrJamesThe3rd/karat/internal/reserve"
)

func (s *Store) Append(_ context.Context, e *movement.Entry) (string, error) {
	if err := movement.Stamp(e); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.appendLocked(e)

	return e.ID, nil
}

func (s *Store) appendLocked(e *movement.Entry) {
	stored := *e
	k := reserve.Key{StoreID: e.StoreID, Type: e.ReserveType}

	entries := append(s.movements[k], &stored)
	slices.SortStableFunc(entries, compareEntries)

	s.movements[k] = entries
	s.bySource[e.SourceTransactionID] = append(s.bySource[e.SourceTransactionID], &stored)
}

func compareEntries(a, b *movement.Entry) int {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}

	return strings.Compare(a.ID, b.ID)
}

func (s *Store) Query(_ context.Context, filter movement.Filter) ([]*movement.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*movement.Entry

	for _, e := range s.movements[reserve.Key{StoreID: filter.StoreID, Type: filter.ReserveType}] {
		if filter.From != nil && e.CreatedAt.Before(*filter.From) {
			continue
		}

		if filter.To != nil && e.CreatedAt.After(*filter.To) {
			continue
		}

		cp := *e
		out = append(out, &cp)
	}

	return out, nil
}

func (s *Store) Latest(_ context.Context, storeID string, t reserve.Type) (*movement.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.latestLocked(reserve.Key{StoreID: storeID, Type: t})
}

func (s *Store) latestLocked(k reserve.Key) (*movement.Entry, error) {
	entries := s.movements[k]
	if len(entries) == 0 {
		return nil, movement.ErrNotFound
	}

	e := *entries[len(entries)-1]

	return &e, nil
}

func (s *Store) LastBefore(_ context.Context, storeID string, rt reserve.Type, t time.Time) (*movement.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.movements[reserve.Key{StoreID: storeID, Type: rt}]
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].CreatedAt.Before(t) {
			e := *entries[i]
			return &e, nil
		}
	}

	return nil, movement.ErrNotFound
}

func (s *Store) FindBySource(_ context.Context, transactionID uuid.UUID) ([]*movement.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*movement.Entry

	for _, e := range s.bySource[transactionID] {
		cp := *e
		out = append(out, &cp)
	}

	return out, nil
}
