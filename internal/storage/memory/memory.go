// Package memory keeps every repository in process memory. It backs the API
// when STORAGE_DRIVER=memory and the engine's concurrency tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/karat/internal/alert"
	"github.com/MrJamesThe3rd/karat/internal/alias"
	"github.com/MrJamesThe3rd/karat/internal/movement"
	"github.com/MrJamesThe3rd/karat/internal/reserve"
	"github.com/MrJamesThe3rd/karat/internal/settlement"
	"github.com/MrJamesThe3rd/karat/internal/shop"
)

type Store struct {
	mu sync.RWMutex

	shops         map[string]*shop.Shop
	accounts      map[reserve.Key]*reserve.Account
	movements     map[reserve.Key][]*movement.Entry
	bySource      map[uuid.UUID][]*movement.Entry
	transactions  map[uuid.UUID]*settlement.Transaction
	reversals     map[uuid.UUID]uuid.UUID
	notifications map[uuid.UUID]*alert.Notification
	aliases       []*alias.Alias

	// keyLocks serialise writers of one reserve from ApplyDelta until the
	// owning transaction ends, the way a row lock does in Postgres.
	keyLocksMu sync.Mutex
	keyLocks   map[reserve.Key]chan struct{}

	now func() time.Time
}

func New() *Store {
	return &Store{
		shops:         make(map[string]*shop.Shop),
		accounts:      make(map[reserve.Key]*reserve.Account),
		movements:     make(map[reserve.Key][]*movement.Entry),
		bySource:      make(map[uuid.UUID][]*movement.Entry),
		transactions:  make(map[uuid.UUID]*settlement.Transaction),
		reversals:     make(map[uuid.UUID]uuid.UUID),
		notifications: make(map[uuid.UUID]*alert.Notification),
		keyLocks:      make(map[reserve.Key]chan struct{}),
		now:           time.Now,
	}
}

func (s *Store) keyLock(k reserve.Key) chan struct{} {
	s.keyLocksMu.Lock()
	defer s.keyLocksMu.Unlock()

	l, ok := s.keyLocks[k]
	if !ok {
		l = make(chan struct{}, 1)
		s.keyLocks[k] = l
	}

	return l
}

func (s *Store) lockKey(ctx context.Context, k reserve.Key) error {
	select {
	case s.keyLock(k) <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) unlockKey(k reserve.Key) {
	<-s.keyLock(k)
}
