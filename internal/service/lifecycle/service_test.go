package lifecycle

import (
	"context"
	"encoding/json"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/dispatch-api/internal/model"
	"github.com/jwalitptl/dispatch-api/internal/repository/memory"
	"github.com/jwalitptl/dispatch-api/internal/service/directory"
	"github.com/jwalitptl/dispatch-api/internal/service/event"
	apperrors "github.com/jwalitptl/dispatch-api/pkg/errors"
	"github.com/jwalitptl/dispatch-api/pkg/logger"
)

type fixture struct {
	svc      *Service
	history  *memory.HistoryRepository
	outbox   *memory.OutboxRepository
	provider *model.Provider
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()

	log := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel})
	dir := directory.NewService(memory.NewProviderRepository(), log)

	provider := &model.Provider{
		Name:      "Dr. Rivas",
		Specialty: model.SpecialtyGeneral,
		Rating:    4.5,
		Location:  model.Coordinates{Latitude: 10.4806, Longitude: -66.9036},
		Available: true,
		Consultations: []model.ConsultationKind{
			model.ConsultationVirtual, model.ConsultationHomeVisit,
		},
		PriceRange: model.PriceRange{Min: 30, Max: 80},
	}
	require.NoError(t, dir.Upsert(context.Background(), provider))

	history := memory.NewHistoryRepository()
	outbox := memory.NewOutboxRepository()
	return &fixture{
		svc:      NewService(dir, history, event.NewService(outbox), cfg, log, nil),
		history:  history,
		outbox:   outbox,
		provider: provider,
	}
}

// transitions decodes every outbox event emitted so far.
func (f *fixture) transitions(t *testing.T) []model.TransitionEvent {
	t.Helper()

	events := f.outbox.Events()
	out := make([]model.TransitionEvent, 0, len(events))
	for _, evt := range events {
		var te model.TransitionEvent
		require.NoError(t, json.Unmarshal(evt.Payload, &te))
		out = append(out, te)
	}
	return out
}

func (f *fixture) createRequest(t *testing.T, kind model.ConsultationKind) *model.ServiceRequest {
	t.Helper()

	input := &model.CreateRequestInput{
		PatientID:        uuid.New(),
		ProviderID:       f.provider.ID,
		ConsultationKind: kind,
		Symptoms:         "persistent headache",
		Urgency:          model.UrgencyMedium,
		BasePrice:        50,
	}
	if kind == model.ConsultationHomeVisit {
		input.PatientLocation = &model.Coordinates{Latitude: 10.4920, Longitude: -66.8450}
	}
	req, err := f.svc.CreateRequest(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, model.StatusRequested, req.Status)
	return req
}

func TestVirtualConsultationFlow(t *testing.T) {
	f := newFixture(t, Config{FeeRate: 0.15})
	ctx := context.Background()
	req := f.createRequest(t, model.ConsultationVirtual)

	req, err := f.svc.Accept(ctx, req.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, model.StatusAccepted, req.Status)
	assert.NotNil(t, req.AcceptedAt)

	req, err = f.svc.Advance(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPreparing, req.Status)

	// Virtual consultations skip the travel stages entirely.
	req, err = f.svc.Advance(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInConsultation, req.Status)
	assert.NotNil(t, req.StartedAt)

	req, err = f.svc.Complete(ctx, req.ID, &model.CompleteRequestInput{
		FinalPrice:     60,
		PatientRating:  5,
		ProviderRating: 4,
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, req.Status)
	assert.Equal(t, 60.0, req.FinalPrice)
	assert.InDelta(t, 9.0, req.PlatformFee, 1e-9)
	assert.NotNil(t, req.CompletedAt)

	// Completed requests leave the active set but stay readable.
	assert.Equal(t, 0, f.svc.ActiveCount())
	archived, err := f.svc.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, archived.Status)
}

func TestHomeVisitFlow(t *testing.T) {
	f := newFixture(t, Config{FeeRate: 0.15})
	ctx := context.Background()
	req := f.createRequest(t, model.ConsultationHomeVisit)

	loc := model.Coordinates{Latitude: 10.5000, Longitude: -66.9100}
	req, err := f.svc.Accept(ctx, req.ID, &model.AcceptRequestInput{ProviderLocation: &loc})
	require.NoError(t, err)
	require.NotNil(t, req.ProviderLocation)
	assert.Equal(t, loc, *req.ProviderLocation)

	want := []model.RequestStatus{
		model.StatusPreparing,
		model.StatusOnTheWay,
		model.StatusArrived,
		model.StatusInConsultation,
	}
	for _, status := range want {
		req, err = f.svc.Advance(ctx, req.ID)
		require.NoError(t, err)
		assert.Equal(t, status, req.Status)
	}

	_, err = f.svc.Complete(ctx, req.ID, &model.CompleteRequestInput{
		PatientRating:  4,
		ProviderRating: 5,
	})
	require.NoError(t, err)
}

func TestHomeVisitRequiresPatientLocation(t *testing.T) {
	f := newFixture(t, Config{})

	_, err := f.svc.CreateRequest(context.Background(), &model.CreateRequestInput{
		PatientID:        uuid.New(),
		ProviderID:       f.provider.ID,
		ConsultationKind: model.ConsultationHomeVisit,
		BasePrice:        50,
	})
	require.Error(t, err)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeMissingLocation, appErr.Code)
}

func TestCreateRequestRejectsUnsupportedKind(t *testing.T) {
	f := newFixture(t, Config{})

	// The fixture provider offers virtual and home_visit only.
	_, err := f.svc.CreateRequest(context.Background(), &model.CreateRequestInput{
		PatientID:        uuid.New(),
		ProviderID:       f.provider.ID,
		ConsultationKind: model.ConsultationInPerson,
		BasePrice:        50,
	})
	require.Error(t, err)
}

func TestIllegalTransitionLeavesStateUnchanged(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	req := f.createRequest(t, model.ConsultationVirtual)

	// Completing from requested is illegal.
	_, err := f.svc.Complete(ctx, req.ID, &model.CompleteRequestInput{
		PatientRating:  5,
		ProviderRating: 5,
	})
	require.Error(t, err)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeInvalidTransition, appErr.Code)

	// Accepting twice is illegal too.
	_, err = f.svc.Accept(ctx, req.ID, nil)
	require.NoError(t, err)
	_, err = f.svc.Accept(ctx, req.ID, nil)
	require.Error(t, err)

	got, err := f.svc.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusAccepted, got.Status)
}

func TestCompleteRequiresBothRatings(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	req := f.createRequest(t, model.ConsultationVirtual)

	_, err := f.svc.Accept(ctx, req.ID, nil)
	require.NoError(t, err)
	_, err = f.svc.Advance(ctx, req.ID)
	require.NoError(t, err)
	_, err = f.svc.Advance(ctx, req.ID)
	require.NoError(t, err)

	_, err = f.svc.Complete(ctx, req.ID, &model.CompleteRequestInput{PatientRating: 5})
	require.Error(t, err)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeIncompleteCompletion, appErr.Code)

	// The failed completion must not have moved the request.
	got, err := f.svc.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInConsultation, got.Status)
}

func TestCompleteDefaultsFinalPriceToBase(t *testing.T) {
	f := newFixture(t, Config{FeeRate: 0.15})
	ctx := context.Background()
	req := f.createRequest(t, model.ConsultationVirtual)

	_, err := f.svc.Accept(ctx, req.ID, nil)
	require.NoError(t, err)
	_, err = f.svc.Advance(ctx, req.ID)
	require.NoError(t, err)
	_, err = f.svc.Advance(ctx, req.ID)
	require.NoError(t, err)

	got, err := f.svc.Complete(ctx, req.ID, &model.CompleteRequestInput{
		PatientRating:  3,
		ProviderRating: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, 50.0, got.FinalPrice)
	assert.InDelta(t, math.Round(50*0.15*100)/100, got.PlatformFee, 1e-9)
}

func TestCancelWhileOnTheWay(t *testing.T) {
	f := newFixture(t, Config{AutoAdvanceDelay: time.Hour})
	ctx := context.Background()
	req := f.createRequest(t, model.ConsultationHomeVisit)

	_, err := f.svc.Accept(ctx, req.ID, nil)
	require.NoError(t, err)
	_, err = f.svc.Advance(ctx, req.ID)
	require.NoError(t, err)
	req, err = f.svc.Advance(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusOnTheWay, req.Status)

	got, err := f.svc.Cancel(ctx, req.ID, "patient no longer available")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, got.Status)
	require.NotNil(t, got.CancelReason)
	assert.Equal(t, "patient no longer available", *got.CancelReason)
	assert.Zero(t, got.PlatformFee)
	assert.Equal(t, 0, f.svc.ActiveCount())

	// The pending auto-advance timer must not revive the request.
	time.Sleep(20 * time.Millisecond)
	archived, err := f.svc.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, archived.Status)
}

func TestCancelRequiresReason(t *testing.T) {
	f := newFixture(t, Config{})
	req := f.createRequest(t, model.ConsultationVirtual)

	_, err := f.svc.Cancel(context.Background(), req.ID, "")
	require.Error(t, err)
}

func TestCancelArchivedRequestFails(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	req := f.createRequest(t, model.ConsultationVirtual)

	_, err := f.svc.Accept(ctx, req.ID, nil)
	require.NoError(t, err)
	_, err = f.svc.Advance(ctx, req.ID)
	require.NoError(t, err)
	_, err = f.svc.Advance(ctx, req.ID)
	require.NoError(t, err)
	_, err = f.svc.Complete(ctx, req.ID, &model.CompleteRequestInput{
		PatientRating:  5,
		ProviderRating: 5,
	})
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, req.ID, "changed my mind")
	require.Error(t, err)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeInvalidTransition, appErr.Code)
}

func TestPaymentSettlement(t *testing.T) {
	f := newFixture(t, Config{FeeRate: 0.15})
	ctx := context.Background()

	complete := func(t *testing.T) uuid.UUID {
		req := f.createRequest(t, model.ConsultationVirtual)
		_, err := f.svc.Accept(ctx, req.ID, nil)
		require.NoError(t, err)
		_, err = f.svc.Advance(ctx, req.ID)
		require.NoError(t, err)
		_, err = f.svc.Advance(ctx, req.ID)
		require.NoError(t, err)
		_, err = f.svc.Complete(ctx, req.ID, &model.CompleteRequestInput{
			PatientRating:  5,
			ProviderRating: 5,
		})
		require.NoError(t, err)
		return req.ID
	}

	t.Run("direct payment", func(t *testing.T) {
		id := complete(t)
		require.NoError(t, f.svc.Pay(ctx, id))

		got, err := f.svc.GetRequest(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, model.StatusPaid, got.Status)

		// Paid is terminal.
		assert.Error(t, f.svc.Pay(ctx, id))
	})

	t.Run("deferred payment", func(t *testing.T) {
		id := complete(t)
		require.NoError(t, f.svc.MarkPaymentPending(ctx, id))

		got, err := f.svc.GetRequest(ctx, id)
		require.NoError(t, err)
		require.Equal(t, model.StatusPaymentPending, got.Status)

		// Deferring settlement notifies collaborators like any other
		// transition does.
		var notified bool
		for _, te := range f.transitions(t) {
			if te.RequestID == id && te.From == model.StatusCompleted && te.To == model.StatusPaymentPending {
				notified = true
			}
		}
		assert.True(t, notified, "payment_pending transition event missing from outbox")

		require.NoError(t, f.svc.Pay(ctx, id))
		got, err = f.svc.GetRequest(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, model.StatusPaid, got.Status)
	})

	t.Run("cannot pay an active request", func(t *testing.T) {
		req := f.createRequest(t, model.ConsultationVirtual)
		assert.Error(t, f.svc.Pay(ctx, req.ID))
	})
}

func TestCancelLosesRaceWithComplete(t *testing.T) {
	f := newFixture(t, Config{FeeRate: 0.15})
	ctx := context.Background()
	req := f.createRequest(t, model.ConsultationVirtual)

	_, err := f.svc.Accept(ctx, req.ID, nil)
	require.NoError(t, err)
	_, err = f.svc.Advance(ctx, req.ID)
	require.NoError(t, err)
	_, err = f.svc.Advance(ctx, req.ID)
	require.NoError(t, err)

	// Hold the per-request lock so Complete parks on it first, then
	// Cancel resolves the same tracked entry and parks behind it. When
	// the lock is released Complete wins and archives; Cancel proceeds
	// on an entry that already left the active set.
	tr := f.svc.tracked(req.ID)
	require.NotNil(t, tr)
	tr.mu.Lock()

	var wg sync.WaitGroup
	var completeErr, cancelErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, completeErr = f.svc.Complete(ctx, req.ID, &model.CompleteRequestInput{
			FinalPrice:     60,
			PatientRating:  5,
			ProviderRating: 4,
		})
	}()
	time.Sleep(50 * time.Millisecond)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, cancelErr = f.svc.Cancel(ctx, req.ID, "second thoughts")
	}()
	time.Sleep(50 * time.Millisecond)
	tr.mu.Unlock()
	wg.Wait()

	require.NoError(t, completeErr)
	require.Error(t, cancelErr)
	appErr, ok := apperrors.AsAppError(cancelErr)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeInvalidTransition, appErr.Code)

	archived, err := f.svc.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, archived.Status)
	assert.Nil(t, archived.CancelReason)
	assert.Equal(t, 0, f.svc.ActiveCount())

	// The late cancel must not have reached the outbox either.
	for _, te := range f.transitions(t) {
		assert.NotEqual(t, model.StatusCancelled, te.To)
	}
}

func TestAdvanceWithoutSuccessorNamesTheState(t *testing.T) {
	f := newFixture(t, Config{})
	req := f.createRequest(t, model.ConsultationVirtual)

	// requested only leaves via an explicit accept.
	_, err := f.svc.Advance(context.Background(), req.ID)
	require.Error(t, err)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeInvalidTransition, appErr.Code)
	assert.Equal(t, "no automatic successor from requested", appErr.Message)
}

func TestAutoAdvanceProgression(t *testing.T) {
	f := newFixture(t, Config{AutoAdvanceDelay: 10 * time.Millisecond})
	ctx := context.Background()
	req := f.createRequest(t, model.ConsultationVirtual)

	_, err := f.svc.Accept(ctx, req.ID, nil)
	require.NoError(t, err)
	req, err = f.svc.Advance(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusPreparing, req.Status)

	// The simulated flow carries preparing forward on its own.
	assert.Eventually(t, func() bool {
		got, err := f.svc.GetRequest(ctx, req.ID)
		return err == nil && got.Status == model.StatusInConsultation
	}, time.Second, 5*time.Millisecond)
}

func TestConcurrentTransitionsOneWinner(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	req := f.createRequest(t, model.ConsultationVirtual)

	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		go func() {
			_, err := f.svc.Accept(ctx, req.ID, nil)
			errs <- err
		}()
	}

	var wins int
	for i := 0; i < 10; i++ {
		if <-errs == nil {
			wins++
		}
	}
	assert.Equal(t, 1, wins)

	got, err := f.svc.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusAccepted, got.Status)
}
