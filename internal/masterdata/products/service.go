package products

import (
	"context"
	"fmt"

	mdshared "github.com/stockpilot/stockpilot/internal/masterdata/shared"
	"github.com/stockpilot/stockpilot/internal/shared"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters mdshared.ListFilters) ([]Product, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	if id <= 0 {
		return Product{}, fmt.Errorf("products: invalid id: %w", shared.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, product Product) (Product, error) {
	if err := s.validate(product); err != nil {
		return Product{}, err
	}
	if product.InitialQuantity < 0 {
		return Product{}, fmt.Errorf("products: opening quantity must be >= 0: %w", shared.ErrValidation)
	}
	return s.repo.Create(ctx, product)
}

// Update edits master fields. The opening baseline and the cached live
// quantity are not part of the editable surface; quantity corrections go
// through stock adjustments so the ledger stays replayable.
func (s *Service) Update(ctx context.Context, id int64, product Product) error {
	if id <= 0 {
		return fmt.Errorf("products: invalid id: %w", shared.ErrValidation)
	}
	if err := s.validate(product); err != nil {
		return err
	}
	return s.repo.Update(ctx, id, product)
}

// Delete removes a product. Referencing ledger records are left in place;
// reports tolerate the dangling reference.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("products: invalid id: %w", shared.ErrValidation)
	}
	return s.repo.Delete(ctx, id)
}
