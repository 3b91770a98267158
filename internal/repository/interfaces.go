package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/dispatch-api/internal/model"
)

// All repository interfaces in one file
type (
	// ProviderRepository persists the provider feed. The in-memory
	// directory is the read path; this is durability for restarts.
	ProviderRepository interface {
		Upsert(ctx context.Context, provider *model.Provider) error
		Get(ctx context.Context, id uuid.UUID) (*model.Provider, error)
		Delete(ctx context.Context, id uuid.UUID) error
		List(ctx context.Context) ([]*model.Provider, error)
	}

	// HistoryRepository stores terminal service requests. Records are
	// append-only; they back the metrics aggregator's audit trail.
	HistoryRepository interface {
		Archive(ctx context.Context, req *model.ServiceRequest) error
		Get(ctx context.Context, id uuid.UUID) (*model.ServiceRequest, error)
		List(ctx context.Context) ([]*model.ServiceRequest, error)
		// UpdateStatus moves an archived request between the allowed
		// post-completion settlement states. No rows matched means the
		// transition was illegal for the stored status.
		UpdateStatus(ctx context.Context, id uuid.UUID, from []model.RequestStatus, to model.RequestStatus) error
	}

	// OutboxRepository queues lifecycle events for the worker.
	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)
