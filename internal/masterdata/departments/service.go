package departments

import (
	"context"
	"fmt"
	"strings"

	mdshared "github.com/stockpilot/stockpilot/internal/masterdata/shared"
	"github.com/stockpilot/stockpilot/internal/shared"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters mdshared.ListFilters) ([]Department, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Department, error) {
	if id <= 0 {
		return Department{}, fmt.Errorf("departments: invalid id: %w", shared.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, department Department) (Department, error) {
	if strings.TrimSpace(department.Name) == "" {
		return Department{}, fmt.Errorf("departments: name is required: %w", shared.ErrValidation)
	}
	return s.repo.Create(ctx, department)
}

func (s *Service) Update(ctx context.Context, id int64, department Department) error {
	if id <= 0 {
		return fmt.Errorf("departments: invalid id: %w", shared.ErrValidation)
	}
	if strings.TrimSpace(department.Name) == "" {
		return fmt.Errorf("departments: name is required: %w", shared.ErrValidation)
	}
	return s.repo.Update(ctx, id, department)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("departments: invalid id: %w", shared.ErrValidation)
	}
	return s.repo.Delete(ctx, id)
}
