package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/dispatch-api/internal/model"
	"github.com/jwalitptl/dispatch-api/internal/repository/memory"
)

type staticCounter int

func (c staticCounter) ActiveCount() int { return int(c) }

func completedRequest(finalPrice float64, completedAt time.Time) *model.ServiceRequest {
	started := completedAt.Add(-30 * time.Minute)
	return &model.ServiceRequest{
		ID:               uuid.New(),
		PatientID:        uuid.New(),
		ProviderID:       uuid.New(),
		ConsultationKind: model.ConsultationVirtual,
		Status:           model.StatusCompleted,
		RequestedAt:      completedAt.Add(-time.Hour),
		StartedAt:        &started,
		CompletedAt:      &completedAt,
		BasePrice:        finalPrice,
		FinalPrice:       finalPrice,
		PlatformFee:      finalPrice * 0.15,
		PatientRating:    4,
		ProviderRating:   5,
	}
}

func cancelledRequest() *model.ServiceRequest {
	reason := "no show"
	return &model.ServiceRequest{
		ID:               uuid.New(),
		PatientID:        uuid.New(),
		ProviderID:       uuid.New(),
		ConsultationKind: model.ConsultationHomeVisit,
		Status:           model.StatusCancelled,
		RequestedAt:      time.Now().Add(-time.Hour),
		CancelReason:     &reason,
	}
}

func TestComputeRevenueAndCounts(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	history := []*model.ServiceRequest{
		completedRequest(100, now.Add(-time.Hour)),
		completedRequest(50, now.Add(-2*time.Hour)),
		cancelledRequest(),
	}

	m := Compute(history, 2, now)

	assert.Equal(t, 5, m.TotalRequests)
	assert.Equal(t, 2, m.ActiveRequests)
	assert.Equal(t, 2, m.CompletedRequests)
	assert.Equal(t, 1, m.CancelledRequests)
	assert.InDelta(t, 150.0, m.TotalRevenue, 1e-9)
	assert.InDelta(t, 22.5, m.PlatformRevenue, 1e-9)
	assert.InDelta(t, 30.0, m.AvgDurationMinutes, 1e-9)
	assert.InDelta(t, 4.5, m.AvgRating, 1e-9)
	assert.Equal(t, 2, m.ByConsultationKind[model.ConsultationVirtual])
	assert.Equal(t, 1, m.ByConsultationKind[model.ConsultationHomeVisit])
}

func TestComputeIsIdempotent(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	history := []*model.ServiceRequest{
		completedRequest(100, now.Add(-time.Hour)),
		completedRequest(75.5, now.Add(-48*time.Hour)),
		cancelledRequest(),
	}

	first := Compute(history, 1, now)
	second := Compute(history, 1, now)
	assert.Equal(t, first, second)
}

func TestComputeWindows(t *testing.T) {
	// A Friday; the week window opens on Monday the 24th.
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	// One completion today, one earlier this week, one earlier this
	// month, and one from July that only counts toward the totals.
	history := []*model.ServiceRequest{
		completedRequest(100, now.Add(-time.Hour)),
		completedRequest(50, time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)),
		completedRequest(80, time.Date(2026, 8, 3, 9, 0, 0, 0, time.UTC)),
		completedRequest(200, time.Date(2026, 7, 15, 9, 0, 0, 0, time.UTC)),
	}

	m := Compute(history, 0, now)

	assert.Equal(t, model.WindowStats{Completed: 1, Revenue: 100}, m.Today)
	assert.Equal(t, model.WindowStats{Completed: 2, Revenue: 150}, m.ThisWeek)
	assert.Equal(t, model.WindowStats{Completed: 3, Revenue: 230}, m.ThisMonth)
	assert.InDelta(t, 430.0, m.TotalRevenue, 1e-9)
}

func TestComputeEmptyHistory(t *testing.T) {
	m := Compute(nil, 0, time.Now())

	assert.Zero(t, m.TotalRequests)
	assert.Zero(t, m.TotalRevenue)
	assert.Zero(t, m.AvgDurationMinutes)
	assert.Zero(t, m.AvgRating)
	assert.NotNil(t, m.ByConsultationKind)
}

func TestSnapshotUsesCache(t *testing.T) {
	ctx := context.Background()
	history := memory.NewHistoryRepository()
	require.NoError(t, history.Archive(ctx, completedRequest(100, time.Now())))

	svc := NewService(history, staticCounter(0), time.Minute)

	first, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first.CompletedRequests)

	// New archives are invisible until the cached snapshot expires.
	require.NoError(t, history.Archive(ctx, completedRequest(60, time.Now())))
	second, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestProjection(t *testing.T) {
	ctx := context.Background()
	history := memory.NewHistoryRepository()
	require.NoError(t, history.Archive(ctx, completedRequest(1000, time.Now())))

	svc := NewService(history, staticCounter(0), time.Minute)

	proj, err := svc.Projection(ctx, 0.10, 3)
	require.NoError(t, err)
	assert.InDelta(t, 1000.0, proj.MonthlyRevenue, 1e-9)
	require.Len(t, proj.Projected, 3)
	assert.InDelta(t, 1100.0, proj.Projected[0], 1e-9)
	assert.InDelta(t, 1210.0, proj.Projected[1], 1e-9)
	assert.InDelta(t, 1331.0, proj.Projected[2], 1e-9)
}

func TestProjectionValidation(t *testing.T) {
	svc := NewService(memory.NewHistoryRepository(), staticCounter(0), time.Minute)
	ctx := context.Background()

	_, err := svc.Projection(ctx, 0.10, 0)
	assert.Error(t, err)
	_, err = svc.Projection(ctx, 0.10, 121)
	assert.Error(t, err)
	_, err = svc.Projection(ctx, -1.5, 12)
	assert.Error(t, err)
}
