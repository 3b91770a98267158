// Package memory provides in-memory repository implementations for
// tests and local development. The persistence boundary stays behind
// the interfaces in package repository either way.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/dispatch-api/internal/model"
	"github.com/jwalitptl/dispatch-api/internal/repository"
	apperrors "github.com/jwalitptl/dispatch-api/pkg/errors"
)

type ProviderRepository struct {
	mu        sync.RWMutex
	providers map[uuid.UUID]*model.Provider
}

func NewProviderRepository() *ProviderRepository {
	return &ProviderRepository{providers: make(map[uuid.UUID]*model.Provider)}
}

func (r *ProviderRepository) Upsert(ctx context.Context, provider *model.Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *provider
	r.providers[provider.ID] = &cp
	return nil
}

func (r *ProviderRepository) Get(ctx context.Context, id uuid.UUID) (*model.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[id]
	if !ok {
		return nil, apperrors.NotFound("provider", nil)
	}
	cp := *p
	return &cp, nil
}

func (r *ProviderRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[id]; !ok {
		return apperrors.NotFound("provider", nil)
	}
	delete(r.providers, id)
	return nil
}

func (r *ProviderRepository) List(ctx context.Context) ([]*model.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.Provider, 0, len(r.providers))
	for _, p := range r.providers {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

type HistoryRepository struct {
	mu       sync.RWMutex
	requests map[uuid.UUID]*model.ServiceRequest
}

func NewHistoryRepository() *HistoryRepository {
	return &HistoryRepository{requests: make(map[uuid.UUID]*model.ServiceRequest)}
}

func (r *HistoryRepository) Archive(ctx context.Context, req *model.ServiceRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.requests[req.ID]; exists {
		return nil
	}
	r.requests[req.ID] = req.Clone()
	return nil
}

func (r *HistoryRepository) Get(ctx context.Context, id uuid.UUID) (*model.ServiceRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	req, ok := r.requests[id]
	if !ok {
		return nil, apperrors.NotFound("request", nil)
	}
	return req.Clone(), nil
}

func (r *HistoryRepository) List(ctx context.Context) ([]*model.ServiceRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*model.ServiceRequest, 0, len(r.requests))
	for _, req := range r.requests {
		out = append(out, req.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.Before(out[j].RequestedAt) })
	return out, nil
}

func (r *HistoryRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from []model.RequestStatus, to model.RequestStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok {
		return apperrors.NotFound("request", nil)
	}
	for _, f := range from {
		if req.Status == f {
			req.Status = to
			req.UpdatedAt = time.Now()
			return nil
		}
	}
	return apperrors.InvalidTransition(string(req.Status), string(to))
}

type OutboxRepository struct {
	mu     sync.Mutex
	events []*model.OutboxEvent
}

func NewOutboxRepository() *OutboxRepository {
	return &OutboxRepository{}
}

func (r *OutboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	event.Status = model.OutboxStatusPending
	event.CreatedAt = time.Now()
	event.UpdatedAt = event.CreatedAt
	cp := *event
	r.events = append(r.events, &cp)
	return nil
}

func (r *OutboxRepository) GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.OutboxEvent, 0, limit)
	for _, evt := range r.events {
		if evt.Status != model.OutboxStatusPending {
			continue
		}
		cp := *evt
		out = append(out, &cp)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *OutboxRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, evt := range r.events {
		if evt.ID != id {
			continue
		}
		evt.Status = status
		evt.ErrorMessage = errorMessage
		if status == model.OutboxStatusFailed {
			evt.RetryCount++
		}
		if status == model.OutboxStatusProcessed {
			now := time.Now()
			evt.ProcessedAt = &now
		}
		evt.UpdatedAt = time.Now()
		return nil
	}
	return apperrors.NotFound("outbox event", nil)
}

func (r *OutboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.events[:0]
	var deleted int64
	for _, evt := range r.events {
		if evt.Status == model.OutboxStatusProcessed && evt.ProcessedAt != nil && evt.ProcessedAt.Before(before) {
			deleted++
			continue
		}
		kept = append(kept, evt)
	}
	r.events = kept
	return deleted, nil
}

// Events returns a snapshot of everything recorded, newest last.
func (r *OutboxRepository) Events() []*model.OutboxEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.OutboxEvent, len(r.events))
	copy(out, r.events)
	return out
}

// Interface conformance checks.
var (
	_ repository.ProviderRepository = (*ProviderRepository)(nil)
	_ repository.HistoryRepository  = (*HistoryRepository)(nil)
	_ repository.OutboxRepository   = (*OutboxRepository)(nil)
)
