package shop

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=shop
type Repository interface {
	CreateShop(ctx context.Context, s *Shop) error
	GetShop(ctx context.Context, id string) (*Shop, error)
	ListShops(ctx context.Context) ([]*Shop, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

var idPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

type CreateParams struct {
	ID   string
	Name string
}

func (s *Service) Create(ctx context.Context, params CreateParams) (*Shop, error) {
	id := strings.ToLower(strings.TrimSpace(params.ID))
	if !idPattern.MatchString(id) {
		return nil, fmt.Errorf("%w: id %q must be lowercase letters, digits, - or _", ErrInvalid, params.ID)
	}

	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalid)
	}

	sh := &Shop{ID: id, Name: name}
	if err := s.repo.CreateShop(ctx, sh); err != nil {
		return nil, err
	}

	return sh, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Shop, error) {
	return s.repo.GetShop(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]*Shop, error) {
	return s.repo.ListShops(ctx)
}
