package memory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/karat/internal/movement"
	"github.com/MrJamesThe3rd/karat/internal/reserve"
	"github.com/MrJamesThe3rd/karat/internal/settlement"
)

var errTxDone = errors.New("memory: transaction has already been committed or rolled back")

func (s *Store) GetTransaction(_ context.Context, id uuid.UUID) (*settlement.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.transactions[id]
	if !ok {
		return nil, settlement.ErrNotFound
	}

	cp := *t

	return &cp, nil
}

func (s *Store) FindReversal(_ context.Context, originalID uuid.UUID) (*settlement.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.reversals[originalID]
	if !ok {
		return nil, settlement.ErrNotFound
	}

	cp := *s.transactions[id]

	return &cp, nil
}

func (s *Store) ListTransactions(_ context.Context, filter settlement.ListFilter) ([]*settlement.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*settlement.Transaction

	for _, t := range s.transactions {
		if t.StoreID != filter.StoreID {
			continue
		}

		if filter.Kind != nil && t.Kind != *filter.Kind {
			continue
		}

		if filter.StartDate != nil && t.CreatedAt.Before(*filter.StartDate) {
			continue
		}

		if filter.EndDate != nil && t.CreatedAt.After(*filter.EndDate) {
			continue
		}

		cp := *t
		out = append(out, &cp)
	}

	slices.SortFunc(out, func(a, b *settlement.Transaction) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}

		return strings.Compare(a.ID.String(), b.ID.String())
	})

	return out, nil
}

// Begin starts a unit of work. Writes are staged and become visible together
// on Commit.
func (s *Store) Begin(ctx context.Context) (settlement.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &tx{
		s:        s,
		accounts: make(map[reserve.Key]*reserve.Account),
	}, nil
}

type tx struct {
	s *Store

	held     []reserve.Key
	accounts map[reserve.Key]*reserve.Account
	entries  []*movement.Entry
	txs      []*settlement.Transaction
	done     bool
}

func (t *tx) holds(k reserve.Key) bool {
	return slices.Contains(t.held, k)
}

func (t *tx) ApplyDelta(
	ctx context.Context,
	storeID string,
	rt reserve.Type,
	delta decimal.Decimal,
	expectedVersion int64,
) (*reserve.Account, error) {
	if t.done {
		return nil, errTxDone
	}

	k := reserve.Key{StoreID: storeID, Type: rt}

	if !t.holds(k) {
		if err := t.s.lockKey(ctx, k); err != nil {
			return nil, err
		}

		t.held = append(t.held, k)
	}

	cur, ok := t.accounts[k]
	if !ok {
		t.s.mu.RLock()
		cur = t.s.accountLocked(k)
		t.s.mu.RUnlock()
	}

	if cur.Version != expectedVersion {
		return nil, reserve.ErrVersionConflict
	}

	next := advance(cur, delta, t.s.now())
	t.accounts[k] = next

	acc := *next

	return &acc, nil
}

func (t *tx) LatestMovement(_ context.Context, storeID string, rt reserve.Type) (*movement.Entry, error) {
	if t.done {
		return nil, errTxDone
	}

	for i := len(t.entries) - 1; i >= 0; i-- {
		if e := t.entries[i]; e.StoreID == storeID && e.ReserveType == rt {
			cp := *e
			return &cp, nil
		}
	}

	t.s.mu.RLock()
	defer t.s.mu.RUnlock()

	return t.s.latestLocked(reserve.Key{StoreID: storeID, Type: rt})
}

func (t *tx) AppendMovement(_ context.Context, e *movement.Entry) (string, error) {
	if t.done {
		return "", errTxDone
	}

	if err := movement.Stamp(e); err != nil {
		return "", err
	}

	staged := *e
	t.entries = append(t.entries, &staged)

	return e.ID, nil
}

func (t *tx) CreateTransaction(_ context.Context, st *settlement.Transaction) error {
	if t.done {
		return errTxDone
	}

	t.s.mu.RLock()
	err := t.s.checkTransactionLocked(st, t.txs)
	t.s.mu.RUnlock()

	if err != nil {
		return err
	}

	staged := *st
	t.txs = append(t.txs, &staged)

	return nil
}

func (s *Store) checkTransactionLocked(st *settlement.Transaction, staged []*settlement.Transaction) error {
	if _, ok := s.transactions[st.ID]; ok {
		return fmt.Errorf("%w: %s", settlement.ErrAlreadySettled, st.ID)
	}

	if st.ReversalOf == nil {
		return nil
	}

	if _, ok := s.reversals[*st.ReversalOf]; ok {
		return fmt.Errorf("%w: %s", settlement.ErrAlreadyReversed, *st.ReversalOf)
	}

	for _, o := range staged {
		if o.ReversalOf != nil && *o.ReversalOf == *st.ReversalOf {
			return fmt.Errorf("%w: %s", settlement.ErrAlreadyReversed, *st.ReversalOf)
		}
	}

	return nil
}

// Commit re-validates every staged version and record under the store lock
// before publishing the writes.
func (t *tx) Commit() error {
	if t.done {
		return errTxDone
	}

	defer t.release()

	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	for k, next := range t.accounts {
		if t.s.accountLocked(k).Version != next.Version-1 {
			return reserve.ErrVersionConflict
		}
	}

	for i, st := range t.txs {
		if err := t.s.checkTransactionLocked(st, t.txs[:i]); err != nil {
			return err
		}
	}

	for k, next := range t.accounts {
		t.s.accounts[k] = next
	}

	for _, e := range t.entries {
		t.s.appendLocked(e)
	}

	for _, st := range t.txs {
		t.s.transactions[st.ID] = st

		if st.ReversalOf != nil {
			t.s.reversals[*st.ReversalOf] = st.ID
		}
	}

	return nil
}

func (t *tx) Rollback() error {
	if t.done {
		return errTxDone
	}

	t.release()

	return nil
}

func (t *tx) release() {
	t.done = true

	for _, k := range t.held {
		t.s.unlockKey(k)
	}

	t.held = nil
}
