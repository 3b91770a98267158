package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/dispatch-api/internal/model"
	"github.com/jwalitptl/dispatch-api/internal/repository/memory"
	"github.com/jwalitptl/dispatch-api/pkg/logger"
	"github.com/jwalitptl/dispatch-api/pkg/metrics"
)

var testMetrics = metrics.NewMetrics("dispatch", "worker_test")

type fakeBroker struct {
	mu        sync.Mutex
	published []string
	failures  int
}

func (b *fakeBroker) Publish(ctx context.Context, channel string, message interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failures > 0 {
		b.failures--
		return errors.New("broker unavailable")
	}
	b.published = append(b.published, channel)
	return nil
}

func (b *fakeBroker) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	return nil, nil
}

func (b *fakeBroker) Close() error { return nil }

func (b *fakeBroker) topics() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.published...)
}

func newProcessor(repo *memory.OutboxRepository, broker *fakeBroker) *OutboxProcessor {
	log := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel})
	return NewOutboxProcessor(repo, broker, OutboxProcessorConfig{
		BatchSize:     10,
		PollInterval:  5 * time.Millisecond,
		RetryAttempts: 2,
		RetryDelay:    time.Millisecond,
	}, log, testMetrics)
}

func pendingEvent(eventType string) *model.OutboxEvent {
	return &model.OutboxEvent{
		EventType: eventType,
		Payload:   []byte(`{"request_id":"00000000-0000-0000-0000-000000000001"}`),
	}
}

func TestProcessEventsPublishesAndMarksProcessed(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOutboxRepository()
	require.NoError(t, repo.Create(ctx, pendingEvent(model.EventRequestCreated)))
	require.NoError(t, repo.Create(ctx, pendingEvent(model.EventRequestTransition)))

	broker := &fakeBroker{}
	p := newProcessor(repo, broker)

	require.NoError(t, p.processEvents(ctx))

	assert.Equal(t, []string{model.EventRequestCreated, model.EventRequestTransition}, broker.topics())

	pending, err := repo.GetPendingEvents(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
	for _, evt := range repo.Events() {
		assert.Equal(t, model.OutboxStatusProcessed, evt.Status)
		assert.NotNil(t, evt.ProcessedAt)
	}
}

func TestProcessEventRetriesTransientFailures(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOutboxRepository()
	require.NoError(t, repo.Create(ctx, pendingEvent(model.EventRequestCompleted)))

	// First publish fails, the retry succeeds.
	broker := &fakeBroker{failures: 1}
	p := newProcessor(repo, broker)

	require.NoError(t, p.processEvents(ctx))
	assert.Equal(t, []string{model.EventRequestCompleted}, broker.topics())
}

func TestProcessEventMarksFailedAfterRetriesExhausted(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOutboxRepository()
	require.NoError(t, repo.Create(ctx, pendingEvent(model.EventRequestPaid)))

	broker := &fakeBroker{failures: 100}
	p := newProcessor(repo, broker)

	require.NoError(t, p.processEvents(ctx))

	events := repo.Events()
	require.Len(t, events, 1)
	assert.Equal(t, model.OutboxStatusFailed, events[0].Status)
	require.NotNil(t, events[0].ErrorMessage)
	assert.Equal(t, 1, events[0].RetryCount)
}

func TestStartStopsOnContextCancel(t *testing.T) {
	repo := memory.NewOutboxRepository()
	broker := &fakeBroker{}
	p := newProcessor(repo, broker)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Start(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("processor did not stop after context cancellation")
	}
}
