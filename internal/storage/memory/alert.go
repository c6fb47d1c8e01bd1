package memory

import (
	"context"
	"slices"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/karat/internal/alert"
	"github.com/MrJamesThe3rd/karat/internal/reserve"
)

// CreateIfAbsent checks and inserts under one write lock.
func (s *Store) CreateIfAbsent(_ context.Context, n *alert.Notification) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeLocked(n.StoreID, n.ReserveType) != nil {
		return false, nil
	}

	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}

	stored := *n
	s.notifications[n.ID] = &stored

	return true, nil
}

func (s *Store) activeLocked(storeID string, t reserve.Type) *alert.Notification {
	for _, n := range s.notifications {
		if !n.Seen && n.StoreID == storeID && n.ReserveType == t {
			return n
		}
	}

	return nil
}

func (s *Store) FindActive(_ context.Context, storeID string, t reserve.Type) (*alert.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := s.activeLocked(storeID, t)
	if n == nil {
		return nil, alert.ErrNotFound
	}

	cp := *n

	return &cp, nil
}

func (s *Store) ListActive(_ context.Context, storeID string) ([]*alert.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*alert.Notification

	for _, n := range s.notifications {
		if !n.Seen && n.StoreID == storeID {
			cp := *n
			out = append(out, &cp)
		}
	}

	slices.SortFunc(out, func(a, b *alert.Notification) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	return out, nil
}

func (s *Store) Acknowledge(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[id]
	if !ok {
		return alert.ErrNotFound
	}

	n.Seen = true

	return nil
}
