package directory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/dispatch-api/internal/model"
	"github.com/jwalitptl/dispatch-api/internal/repository"
	apperrors "github.com/jwalitptl/dispatch-api/pkg/errors"
	"github.com/jwalitptl/dispatch-api/pkg/logger"
)

// Service is the in-memory provider directory. The external provider
// feed writes through it to postgres; searches read a snapshot under a
// shared lock. Reads never observe a partially applied update.
type Service struct {
	repo   repository.ProviderRepository
	logger *logger.Logger

	mu        sync.RWMutex
	providers map[uuid.UUID]*model.Provider
}

func NewService(repo repository.ProviderRepository, logger *logger.Logger) *Service {
	return &Service{
		repo:      repo,
		logger:    logger.WithComponent("directory"),
		providers: make(map[uuid.UUID]*model.Provider),
	}
}

// Load hydrates the directory from persistence. Called once at startup.
func (s *Service) Load(ctx context.Context) error {
	providers, err := s.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to load providers: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.providers = make(map[uuid.UUID]*model.Provider, len(providers))
	for _, p := range providers {
		s.providers[p.ID] = p
	}
	s.logger.Info("provider directory loaded", "count", len(providers))
	return nil
}

// Upsert applies a provider feed update, writing through to postgres
// before publishing it to readers.
func (s *Service) Upsert(ctx context.Context, provider *model.Provider) error {
	if !provider.Specialty.IsValid() {
		return apperrors.BadRequest(fmt.Sprintf("unknown specialty %q", provider.Specialty), nil)
	}
	for _, k := range provider.Consultations {
		if !k.IsValid() {
			return apperrors.BadRequest(fmt.Sprintf("unknown consultation kind %q", k), nil)
		}
	}
	if provider.Rating < 0 || provider.Rating > 5 {
		return apperrors.BadRequest("rating must be between 0 and 5", nil)
	}
	if !provider.Location.Valid() {
		return apperrors.BadRequest("location out of range", nil)
	}

	if provider.ID == uuid.Nil {
		provider.ID = uuid.New()
		provider.CreatedAt = time.Now()
	}

	if err := s.repo.Upsert(ctx, provider); err != nil {
		return fmt.Errorf("failed to persist provider: %w", err)
	}

	s.mu.Lock()
	s.providers[provider.ID] = provider
	s.mu.Unlock()

	return nil
}

// Remove drops a provider from the directory and persistence.
func (s *Service) Remove(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.providers, id)
	s.mu.Unlock()

	return nil
}

// Get returns a single provider by id.
func (s *Service) Get(id uuid.UUID) (*model.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.providers[id]
	if !ok {
		return nil, apperrors.NotFound("provider", nil)
	}
	return p, nil
}

// Snapshot returns all providers. The slice is fresh but the records
// are shared; the matching engine treats them as read-only.
func (s *Service) Snapshot() []*model.Provider {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.Provider, 0, len(s.providers))
	for _, p := range s.providers {
		out = append(out, p)
	}
	return out
}

// ListAvailable returns providers currently accepting requests.
func (s *Service) ListAvailable() []*model.Provider {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.Provider, 0, len(s.providers))
	for _, p := range s.providers {
		if p.Available {
			out = append(out, p)
		}
	}
	return out
}
