package vendors

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

func (s *Service) List(ctx context.Context, filters mdshared.ListFilters) ([]Vendor, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Vendor, error) {
	if id <= 0 {
		return Vendor{}, fmt.Errorf("vendors: invalid id: %w", shared.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, vendor Vendor) (Vendor, error) {
	if strings.TrimSpace(vendor.Name) == "" {
		return Vendor{}, fmt.Errorf("vendors: name is required: %w", shared.ErrValidation)
	}
	return s.repo.Create(ctx, vendor)
}

func (s *Service) Update(ctx context.Context, id int64, vendor Vendor) error {
	if id <= 0 {
		return fmt.Errorf("vendors: invalid id: %w", shared.ErrValidation)
	}
	if strings.TrimSpace(vendor.Name) == "" {
		return fmt.Errorf("vendors: name is required: %w", shared.ErrValidation)
	}
	return s.repo.Update(ctx, id, vendor)
}

// Delete removes the vendor record. Purchases keep their vendor id; vendor
// names in reports fall back to an unknown label for dangling references.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("vendors: invalid id: %w", shared.ErrValidation)
	}
	return s.repo.Delete(ctx, id)
}
