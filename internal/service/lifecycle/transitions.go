package lifecycle

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/dispatch-api/internal/model"
	apperrors "github.com/jwalitptl/dispatch-api/pkg/errors"
)

// nextStatus returns the single legal successor for the automatic flow,
// branching on consultation kind where the table does.
func nextStatus(req *model.ServiceRequest) (model.RequestStatus, bool) {
	switch req.Status {
	case model.StatusAccepted:
		return model.StatusPreparing, true
	case model.StatusPreparing:
		if req.ConsultationKind == model.ConsultationHomeVisit {
			return model.StatusOnTheWay, true
		}
		return model.StatusInConsultation, true
	case model.StatusOnTheWay:
		return model.StatusArrived, true
	case model.StatusArrived:
		return model.StatusInConsultation, true
	}
	return "", false
}

// Accept moves requested → accepted, stamping acceptedAt and the
// provider's live location when supplied.
func (s *Service) Accept(ctx context.Context, id uuid.UUID, input *model.AcceptRequestInput) (*model.ServiceRequest, error) {
	tr := s.tracked(id)
	if tr == nil {
		return nil, apperrors.NotFound("request", nil)
	}

	tr.mu.Lock()
	defer tr.mu.Unlock()

	if tr.req.Status != model.StatusRequested {
		return nil, s.reject(tr.req, model.StatusAccepted)
	}
	if input != nil && input.ProviderLocation != nil {
		if !input.ProviderLocation.Valid() {
			return nil, apperrors.BadRequest("provider location out of range", nil)
		}
		loc := *input.ProviderLocation
		tr.req.ProviderLocation = &loc
	}

	now := time.Now()
	tr.req.AcceptedAt = &now
	s.apply(ctx, tr, model.StatusAccepted, model.EventRequestTransition)
	return tr.req.Clone(), nil
}

// Advance moves the request one step along the automatic path:
// accepted → preparing → {on_the_way → arrived →} in_consultation.
// The travel stages exist only for home visits.
func (s *Service) Advance(ctx context.Context, id uuid.UUID) (*model.ServiceRequest, error) {
	tr := s.tracked(id)
	if tr == nil {
		return nil, apperrors.NotFound("request", nil)
	}

	tr.mu.Lock()
	defer tr.mu.Unlock()

	next, ok := nextStatus(tr.req)
	if !ok {
		if s.metrics != nil {
			s.metrics.TransitionsFailed.WithLabelValues(string(tr.req.Status), "advance").Inc()
		}
		return nil, apperrors.NoSuccessor(string(tr.req.Status))
	}
	s.advanceLocked(ctx, tr, next)
	return tr.req.Clone(), nil
}

// advanceLocked applies one automatic step and schedules the next
// simulated one. Caller holds tr.mu.
func (s *Service) advanceLocked(ctx context.Context, tr *trackedRequest, next model.RequestStatus) {
	if next == model.StatusInConsultation {
		now := time.Now()
		tr.req.StartedAt = &now
	}
	s.apply(ctx, tr, next, model.EventRequestTransition)

	// preparing and the travel stages progress on their own in the
	// simulated flow; in_consultation waits for the provider.
	if next != model.StatusInConsultation && s.cfg.AutoAdvanceDelay > 0 {
		s.scheduleAutoAdvance(tr)
	}
}

// Complete moves in_consultation → completed. Both ratings arrive
// atomically with the transition and the platform fee is computed here.
func (s *Service) Complete(ctx context.Context, id uuid.UUID, input *model.CompleteRequestInput) (*model.ServiceRequest, error) {
	tr := s.tracked(id)
	if tr == nil {
		return nil, apperrors.NotFound("request", nil)
	}

	tr.mu.Lock()
	defer tr.mu.Unlock()

	if tr.req.Status != model.StatusInConsultation {
		return nil, s.reject(tr.req, model.StatusCompleted)
	}
	if !input.PatientRating.IsValid() || !input.ProviderRating.IsValid() {
		return nil, apperrors.IncompleteCompletion("completion requires both ratings between 1 and 5")
	}

	finalPrice := input.FinalPrice
	if finalPrice == 0 {
		finalPrice = tr.req.BasePrice
	}
	if finalPrice < tr.req.BasePrice {
		return nil, apperrors.BadRequest("final price cannot be below the base price", nil)
	}

	now := time.Now()
	tr.req.CompletedAt = &now
	tr.req.FinalPrice = finalPrice
	tr.req.PlatformFee = roundFee(finalPrice * s.cfg.FeeRate)
	tr.req.PatientRating = input.PatientRating
	tr.req.ProviderRating = input.ProviderRating
	tr.req.PatientFeedback = input.PatientFeedback
	tr.req.ProviderFeedback = input.ProviderFeedback

	s.apply(ctx, tr, model.StatusCompleted, model.EventRequestCompleted)
	s.archive(ctx, tr)
	return tr.req.Clone(), nil
}

// MarkPaymentPending defers settlement for an archived completed request.
func (s *Service) MarkPaymentPending(ctx context.Context, id uuid.UUID) error {
	if tr := s.tracked(id); tr != nil {
		tr.mu.Lock()
		defer tr.mu.Unlock()
		return s.reject(tr.req, model.StatusPaymentPending)
	}

	req, err := s.history.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.history.UpdateStatus(ctx, id,
		[]model.RequestStatus{model.StatusCompleted}, model.StatusPaymentPending,
	); err != nil {
		if s.metrics != nil {
			s.metrics.TransitionsFailed.WithLabelValues(string(req.Status), string(model.StatusPaymentPending)).Inc()
		}
		return apperrors.InvalidTransition(string(req.Status), string(model.StatusPaymentPending))
	}

	if s.metrics != nil {
		s.metrics.TransitionsTotal.WithLabelValues(string(req.Status), string(model.StatusPaymentPending)).Inc()
	}
	s.emit(ctx, model.EventRequestTransition, req, req.Status, model.StatusPaymentPending)
	return nil
}

// Pay settles an archived completed request. Driven by the external
// payment-proof verification event; no further mutation afterwards.
func (s *Service) Pay(ctx context.Context, id uuid.UUID) error {
	if tr := s.tracked(id); tr != nil {
		tr.mu.Lock()
		defer tr.mu.Unlock()
		return s.reject(tr.req, model.StatusPaid)
	}

	req, err := s.history.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.history.UpdateStatus(ctx, id,
		[]model.RequestStatus{model.StatusCompleted, model.StatusPaymentPending},
		model.StatusPaid,
	); err != nil {
		if s.metrics != nil {
			s.metrics.TransitionsFailed.WithLabelValues(string(req.Status), string(model.StatusPaid)).Inc()
		}
		return apperrors.InvalidTransition(string(req.Status), string(model.StatusPaid))
	}

	if s.metrics != nil {
		s.metrics.TransitionsTotal.WithLabelValues(string(req.Status), string(model.StatusPaid)).Inc()
	}
	s.emit(ctx, model.EventRequestPaid, req, req.Status, model.StatusPaid)
	return nil
}

// Cancel is reachable from any state before completed. It records the
// reason, computes no fee, and stops any pending auto-advance timer.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string) (*model.ServiceRequest, error) {
	if reason == "" {
		return nil, apperrors.BadRequest("cancellation requires a reason", nil)
	}

	tr := s.tracked(id)
	if tr == nil {
		// Archived requests are terminal; cancelling one is illegal.
		req, err := s.history.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, s.reject(req, model.StatusCancelled)
	}

	tr.mu.Lock()
	defer tr.mu.Unlock()

	// The request may have completed between the lookup and the lock.
	if tr.req.Status.IsArchivable() {
		return nil, s.reject(tr.req, model.StatusCancelled)
	}

	tr.req.CancelReason = &reason
	s.apply(ctx, tr, model.StatusCancelled, model.EventRequestCancelled)
	s.archive(ctx, tr)
	return tr.req.Clone(), nil
}

// apply commits a transition. Caller holds tr.mu and has already
// validated legality; state never changes on a rejected attempt.
func (s *Service) apply(ctx context.Context, tr *trackedRequest, to model.RequestStatus, eventType string) {
	from := tr.req.Status
	tr.stopTimer()
	tr.req.Status = to
	tr.req.UpdatedAt = time.Now()

	if s.metrics != nil {
		s.metrics.TransitionsTotal.WithLabelValues(string(from), string(to)).Inc()
	}
	s.logger.Info("request transitioned",
		"request_id", tr.req.ID.String(), "from", string(from), "to", string(to))
	s.emit(ctx, eventType, tr.req, from, to)
}

// reject reports an illegal transition without mutating anything.
func (s *Service) reject(req *model.ServiceRequest, to model.RequestStatus) error {
	if s.metrics != nil {
		s.metrics.TransitionsFailed.WithLabelValues(string(req.Status), string(to)).Inc()
	}
	return apperrors.InvalidTransition(string(req.Status), string(to))
}

// scheduleAutoAdvance arms the simulated-progression timer for the
// request's current stage. Caller holds tr.mu; any previous timer has
// already been stopped by apply.
func (s *Service) scheduleAutoAdvance(tr *trackedRequest) {
	id := tr.req.ID
	expected := tr.req.Status

	tr.timer = time.AfterFunc(s.cfg.AutoAdvanceDelay, func() {
		s.autoAdvance(id, expected)
	})
}

// autoAdvance fires in a timer goroutine. A request that was cancelled,
// completed, or manually advanced in the meantime is left alone: the
// stale tick is logged and dropped, never retried.
func (s *Service) autoAdvance(id uuid.UUID, expected model.RequestStatus) {
	tr := s.tracked(id)
	if tr == nil {
		s.dropStaleTimer(id, expected)
		return
	}

	tr.mu.Lock()
	defer tr.mu.Unlock()

	if tr.req.Status != expected {
		s.dropStaleTimer(id, expected)
		return
	}
	next, ok := nextStatus(tr.req)
	if !ok {
		s.dropStaleTimer(id, expected)
		return
	}
	s.advanceLocked(context.Background(), tr, next)
}

func (s *Service) dropStaleTimer(id uuid.UUID, expected model.RequestStatus) {
	if s.metrics != nil {
		s.metrics.TimersDropped.Inc()
	}
	s.logger.Debug("dropping stale auto-advance timer",
		"request_id", id.String(), "expected_status", string(expected))
}

func (tr *trackedRequest) stopTimer() {
	if tr.timer != nil {
		tr.timer.Stop()
		tr.timer = nil
	}
}

// roundFee rounds a platform fee to cents.
func roundFee(v float64) float64 {
	return math.Round(v*100) / 100
}
