package memory

import (
	"context"
	"strings"

	"github.com/MrJamesThe3rd/karat/internal/alias"
	"github.com/MrJamesThe3rd/karat/internal/reserve"
)

// FindMatch mirrors the Postgres ILIKE lookup: the longest pattern contained
// in label wins, then the most recent.
func (s *Store) FindMatch(_ context.Context, label string) (reserve.Type, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lower := strings.ToLower(label)

	var best *alias.Alias

	for _, a := range s.aliases {
		if !strings.Contains(lower, strings.ToLower(a.RawPattern)) {
			continue
		}

		if best == nil || len(a.RawPattern) > len(best.RawPattern) ||
			(len(a.RawPattern) == len(best.RawPattern) && !a.CreatedAt.Before(best.CreatedAt)) {
			best = a
		}
	}

	if best == nil {
		return "", nil
	}

	return best.ReserveType, nil
}

func (s *Store) CreateAlias(_ context.Context, rawPattern string, t reserve.Type) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.aliases = append(s.aliases, &alias.Alias{
		RawPattern:  rawPattern,
		ReserveType: t,
		CreatedAt:   s.now(),
	})

	return nil
}

func (s *Store) ListAliases(_ context.Context) ([]*alias.Alias, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*alias.Alias, 0, len(s.aliases))
	for i := len(s.aliases) - 1; i >= 0; i-- {
		cp := *s.aliases[i]
		out = append(out, &cp)
	}

	return out, nil
}
