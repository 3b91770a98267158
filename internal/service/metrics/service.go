package metrics

import (
	"context"
	"fmt"
	"math"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/jwalitptl/dispatch-api/internal/model"
	"github.com/jwalitptl/dispatch-api/internal/repository"
	apperrors "github.com/jwalitptl/dispatch-api/pkg/errors"
)

const snapshotCacheKey = "business_metrics"

// ActiveCounter reports the number of in-flight requests. Implemented
// by the lifecycle service.
type ActiveCounter interface {
	ActiveCount() int
}

// Service derives business metrics from the terminal request history.
// The computation is a pure function of the history, so replaying it
// over the same records always yields the same snapshot. A short-lived
// cache keeps dashboard polling off the history table.
type Service struct {
	history repository.HistoryRepository
	active  ActiveCounter
	cache   *gocache.Cache
	ttl     time.Duration
}

func NewService(history repository.HistoryRepository, active ActiveCounter, cacheTTL time.Duration) *Service {
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	return &Service{
		history: history,
		active:  active,
		cache:   gocache.New(cacheTTL, 2*cacheTTL),
		ttl:     cacheTTL,
	}
}

// Snapshot returns the current business metrics, recomputing from
// history when the cached copy has expired.
func (s *Service) Snapshot(ctx context.Context) (*model.BusinessMetrics, error) {
	if cached, ok := s.cache.Get(snapshotCacheKey); ok {
		return cached.(*model.BusinessMetrics), nil
	}

	history, err := s.history.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load request history: %w", err)
	}

	snapshot := Compute(history, s.active.ActiveCount(), time.Now())
	s.cache.Set(snapshotCacheKey, snapshot, s.ttl)
	return snapshot, nil
}

// Projection forecasts monthly revenue under compound growth:
// projected(i) = currentMonthlyRevenue * (1+growthRate)^i.
func (s *Service) Projection(ctx context.Context, growthRate float64, months int) (*model.RevenueProjection, error) {
	if months <= 0 || months > 120 {
		return nil, apperrors.BadRequest("projection horizon must be between 1 and 120 months", nil)
	}
	if growthRate < -1 {
		return nil, apperrors.BadRequest("growth rate cannot be below -100%", nil)
	}

	snapshot, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	projected := make([]float64, months)
	for i := 1; i <= months; i++ {
		projected[i-1] = round2(snapshot.ThisMonth.Revenue * math.Pow(1+growthRate, float64(i)))
	}
	return &model.RevenueProjection{
		GrowthRate:     growthRate,
		MonthlyRevenue: snapshot.ThisMonth.Revenue,
		Projected:      projected,
	}, nil
}

// Compute derives a metrics snapshot from the archived request set.
// Pure: no hidden accumulator state, deterministic for a given now.
func Compute(history []*model.ServiceRequest, activeCount int, now time.Time) *model.BusinessMetrics {
	m := &model.BusinessMetrics{
		TotalRequests:      len(history) + activeCount,
		ActiveRequests:     activeCount,
		ByConsultationKind: make(map[model.ConsultationKind]int),
	}

	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	weekStart := startOfWeek(now)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	var durationSum time.Duration
	var durationCount int
	var ratingSum float64
	var ratingCount int

	for _, req := range history {
		m.ByConsultationKind[req.ConsultationKind]++

		if req.Status == model.StatusCancelled {
			m.CancelledRequests++
			continue
		}
		if req.CompletedAt == nil {
			continue
		}

		m.CompletedRequests++
		m.TotalRevenue = round2(m.TotalRevenue + req.FinalPrice)
		m.PlatformRevenue = round2(m.PlatformRevenue + req.PlatformFee)

		if req.StartedAt != nil {
			durationSum += req.CompletedAt.Sub(*req.StartedAt)
			durationCount++
		}
		if req.PatientRating.IsValid() && req.ProviderRating.IsValid() {
			ratingSum += (float64(req.PatientRating) + float64(req.ProviderRating)) / 2
			ratingCount++
		}

		completedAt := *req.CompletedAt
		if !completedAt.Before(dayStart) {
			m.Today.Completed++
			m.Today.Revenue = round2(m.Today.Revenue + req.FinalPrice)
		}
		if !completedAt.Before(weekStart) {
			m.ThisWeek.Completed++
			m.ThisWeek.Revenue = round2(m.ThisWeek.Revenue + req.FinalPrice)
		}
		if !completedAt.Before(monthStart) {
			m.ThisMonth.Completed++
			m.ThisMonth.Revenue = round2(m.ThisMonth.Revenue + req.FinalPrice)
		}
	}

	if durationCount > 0 {
		m.AvgDurationMinutes = durationSum.Minutes() / float64(durationCount)
	}
	if ratingCount > 0 {
		m.AvgRating = ratingSum / float64(ratingCount)
	}
	return m
}

// startOfWeek returns midnight of the most recent Monday.
func startOfWeek(now time.Time) time.Time {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
