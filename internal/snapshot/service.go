package snapshot

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/stockpilot/stockpilot/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	Dump(ctx context.Context) (State, error)
	Restore(ctx context.Context, state State) error
}

// AuditPort records snapshot imports.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// CachePort invalidates derived report caches after a restore.
type CachePort interface {
	Bump(ctx context.Context) error
}

// Service exports and imports the full persisted state.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
	cache CachePort
	now   func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, cache CachePort) *Service {
	return &Service{repo: repo, audit: audit, cache: cache, now: time.Now}
}

// Export dumps the current state into a checksummed document.
func (s *Service) Export(ctx context.Context) (Document, error) {
	state, err := s.repo.Dump(ctx)
	if err != nil {
		return Document{}, err
	}
	sum, err := checksumState(state)
	if err != nil {
		return Document{}, err
	}
	return Document{
		ID:       uuid.NewString(),
		TakenAt:  s.now().UTC(),
		Checksum: sum,
		State:    state,
	}, nil
}

// Import verifies the document checksum and replaces the persisted
// state with its contents.
func (s *Service) Import(ctx context.Context, doc Document) error {
	if err := Verify(doc); err != nil {
		return err
	}
	if err := s.repo.Restore(ctx, doc.State); err != nil {
		return err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Action:   "import",
			Entity:   "snapshot",
			EntityID: doc.ID,
			Meta:     map[string]any{"taken_at": doc.TakenAt, "products": len(doc.State.Products)},
			At:       s.now(),
		})
	}
	if s.cache != nil {
		_ = s.cache.Bump(ctx)
	}
	return nil
}
