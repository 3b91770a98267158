package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/dispatch-api/internal/model"
	"github.com/jwalitptl/dispatch-api/internal/repository"
	"github.com/jwalitptl/dispatch-api/internal/service/directory"
	"github.com/jwalitptl/dispatch-api/internal/service/event"
	apperrors "github.com/jwalitptl/dispatch-api/pkg/errors"
	"github.com/jwalitptl/dispatch-api/pkg/logger"
	"github.com/jwalitptl/dispatch-api/pkg/metrics"
)

// Config holds the lifecycle tunables.
type Config struct {
	// FeeRate is the platform commission applied on completion.
	FeeRate float64
	// AutoAdvanceDelay drives the simulated progression of the
	// preparing and travel stages. Zero disables auto-advance.
	AutoAdvanceDelay time.Duration
}

// Service owns every active ServiceRequest and is the only code allowed
// to mutate one. Transitions on the same request are serialized by a
// per-request lock; different requests proceed in parallel. Terminal
// requests are archived to history and dropped from the active set.
type Service struct {
	directory *directory.Service
	history   repository.HistoryRepository
	events    *event.Service
	cfg       Config
	logger    *logger.Logger
	metrics   *metrics.Metrics

	mu     sync.RWMutex
	active map[uuid.UUID]*trackedRequest
}

// trackedRequest pairs an active request with its lock and any pending
// auto-advance timer. The timer handle lives here so cancellation can
// deterministically stop it.
type trackedRequest struct {
	mu    sync.Mutex
	req   *model.ServiceRequest
	timer *time.Timer
}

func NewService(
	directory *directory.Service,
	history repository.HistoryRepository,
	events *event.Service,
	cfg Config,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *Service {
	if cfg.FeeRate <= 0 {
		cfg.FeeRate = 0.15
	}
	return &Service{
		directory: directory,
		history:   history,
		events:    events,
		cfg:       cfg,
		logger:    logger.WithComponent("lifecycle"),
		metrics:   metrics,
		active:    make(map[uuid.UUID]*trackedRequest),
	}
}

// CreateRequest admits a new patient request in status requested.
func (s *Service) CreateRequest(ctx context.Context, input *model.CreateRequestInput) (*model.ServiceRequest, error) {
	if !input.ConsultationKind.IsValid() {
		return nil, apperrors.BadRequest(fmt.Sprintf("unknown consultation kind %q", input.ConsultationKind), nil)
	}

	provider, err := s.directory.Get(input.ProviderID)
	if err != nil {
		return nil, err
	}
	if !provider.Supports(input.ConsultationKind) {
		return nil, apperrors.BadRequest(
			fmt.Sprintf("provider does not offer %s consultations", input.ConsultationKind), nil)
	}
	if input.ConsultationKind == model.ConsultationHomeVisit && input.PatientLocation == nil {
		return nil, apperrors.MissingLocation("home visit requests require the patient location")
	}
	if input.PatientLocation != nil && !input.PatientLocation.Valid() {
		return nil, apperrors.BadRequest("patient location out of range", nil)
	}

	now := time.Now()
	req := &model.ServiceRequest{
		ID:               uuid.New(),
		PatientID:        input.PatientID,
		ProviderID:       input.ProviderID,
		ConsultationKind: input.ConsultationKind,
		Status:           model.StatusRequested,
		Symptoms:         input.Symptoms,
		Urgency:          input.Urgency,
		Notes:            input.Notes,
		PatientLocation:  input.PatientLocation,
		RequestedAt:      now,
		BasePrice:        input.BasePrice,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	s.mu.Lock()
	s.active[req.ID] = &trackedRequest{req: req}
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.ActiveRequests.Inc()
	}
	s.emit(ctx, model.EventRequestCreated, req, model.StatusRequested, model.StatusRequested)

	return req.Clone(), nil
}

// GetRequest returns a live snapshot of an active request, falling back
// to the archived record for terminal ones.
func (s *Service) GetRequest(ctx context.Context, id uuid.UUID) (*model.ServiceRequest, error) {
	if tr := s.tracked(id); tr != nil {
		tr.mu.Lock()
		defer tr.mu.Unlock()
		return tr.req.Clone(), nil
	}
	return s.history.Get(ctx, id)
}

// ListActive returns snapshots of every non-terminal request.
func (s *Service) ListActive() []*model.ServiceRequest {
	s.mu.RLock()
	tracked := make([]*trackedRequest, 0, len(s.active))
	for _, tr := range s.active {
		tracked = append(tracked, tr)
	}
	s.mu.RUnlock()

	out := make([]*model.ServiceRequest, 0, len(tracked))
	for _, tr := range tracked {
		tr.mu.Lock()
		out = append(out, tr.req.Clone())
		tr.mu.Unlock()
	}
	return out
}

// ActiveCount is the number of in-flight requests.
func (s *Service) ActiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.active)
}

func (s *Service) tracked(id uuid.UUID) *trackedRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active[id]
}

// archive moves a terminal request out of the active set. Pending
// auto-advance timers are stopped so a stale timer cannot revive it.
func (s *Service) archive(ctx context.Context, tr *trackedRequest) {
	tr.stopTimer()

	s.mu.Lock()
	delete(s.active, tr.req.ID)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.ActiveRequests.Dec()
	}

	if err := s.history.Archive(ctx, tr.req); err != nil {
		s.logger.Error(err, "failed to archive request", "request_id", tr.req.ID.String())
	}
}

func (s *Service) emit(ctx context.Context, eventType string, req *model.ServiceRequest, from, to model.RequestStatus) {
	if s.events == nil {
		return
	}
	evt := model.TransitionEvent{
		RequestID:  req.ID,
		PatientID:  req.PatientID,
		ProviderID: req.ProviderID,
		From:       from,
		To:         to,
		OccurredAt: time.Now(),
	}
	if err := s.events.Emit(ctx, eventType, evt); err != nil {
		s.logger.Error(err, "failed to emit lifecycle event",
			"request_id", req.ID.String(), "event_type", eventType)
	}
}
