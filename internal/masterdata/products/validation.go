package products

import (
	"fmt"
	"strings"

	"github.com/stockpilot/stockpilot/internal/shared"
)

func (s *Service) validate(p Product) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("products: name is required: %w", shared.ErrValidation)
	}
	if p.PurchasePrice < 0 {
		return fmt.Errorf("products: purchase price must be >= 0: %w", shared.ErrValidation)
	}
	if p.GSTRate < 0 || p.GSTRate > 100 {
		return fmt.Errorf("products: gst rate must be between 0 and 100: %w", shared.ErrValidation)
	}
	if p.ReorderLevel < 0 {
		return fmt.Errorf("products: reorder level must be >= 0: %w", shared.ErrValidation)
	}
	return nil
}
