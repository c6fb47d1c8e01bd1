package alias

import (
	"context"
	"fmt"
	"strings"

	"github.com/MrJamesThe3rd/karat/internal/reserve"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=alias
type Repository interface {
	// FindMatch returns the reserve of the longest pattern contained in label,
	// or an empty type when none matches.
	FindMatch(ctx context.Context, label string) (reserve.Type, error)
	CreateAlias(ctx context.Context, rawPattern string, t reserve.Type) error
	ListAliases(ctx context.Context) ([]*Alias, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Resolve turns a label into a reserve type. Canonical names ("LOCAL_GOLD",
// "local gold", "local-gold") resolve without a lookup.
func (s *Service) Resolve(ctx context.Context, label string) (reserve.Type, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return "", fmt.Errorf("%w: empty label", ErrUnresolved)
	}

	if t, err := reserve.ParseType(canonical(label)); err == nil {
		return t, nil
	}

	t, err := s.repo.FindMatch(ctx, label)
	if err != nil {
		return "", fmt.Errorf("resolving %q: %w", label, err)
	}

	if t == "" {
		return "", fmt.Errorf("%w: %q", ErrUnresolved, label)
	}

	return t, nil
}

// Learn remembers that labels containing rawPattern refer to t.
func (s *Service) Learn(ctx context.Context, rawPattern string, t reserve.Type) error {
	rawPattern = strings.TrimSpace(rawPattern)
	if rawPattern == "" {
		return fmt.Errorf("pattern is required")
	}

	if !t.Valid() {
		return fmt.Errorf("unknown reserve type %q", t)
	}

	return s.repo.CreateAlias(ctx, rawPattern, t)
}

func (s *Service) List(ctx context.Context) ([]*Alias, error) {
	return s.repo.ListAliases(ctx)
}

func canonical(label string) string {
	r := strings.NewReplacer(" ", "_", "-", "_")
	return strings.ToUpper(r.Replace(label))
}
