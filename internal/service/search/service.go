package search

import (
	"context"
	"sort"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/dispatch-api/internal/geo"
	"github.com/jwalitptl/dispatch-api/internal/model"
	"github.com/jwalitptl/dispatch-api/internal/service/directory"
	"github.com/jwalitptl/dispatch-api/pkg/metrics"
)

// Service applies the compound search filter over a directory snapshot
// and ranks the survivors. An empty result is a valid outcome.
type Service struct {
	directory *directory.Service
	metrics   *metrics.Metrics
}

func NewService(directory *directory.Service, metrics *metrics.Metrics) *Service {
	return &Service{
		directory: directory,
		metrics:   metrics,
	}
}

// Search filters and ranks providers for the given origin and criteria.
// Predicates apply in order and short-circuit per provider; survivors
// are sorted by distance ascending, rating descending, id ascending.
func (s *Service) Search(ctx context.Context, origin model.Coordinates, criteria model.SearchCriteria) []model.Candidate {
	if s.metrics != nil {
		s.metrics.SearchesTotal.Inc()
		timer := prometheus.NewTimer(s.metrics.SearchLatency)
		defer timer.ObserveDuration()
	}

	candidates := make([]model.Candidate, 0)
	for _, p := range s.directory.Snapshot() {
		d := geo.Distance(origin, p.Location)
		if !matches(p, d, criteria) {
			continue
		}
		candidates = append(candidates, model.Candidate{Provider: p, DistanceKm: d})
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.DistanceKm != b.DistanceKm {
			return a.DistanceKm < b.DistanceKm
		}
		if a.Provider.Rating != b.Provider.Rating {
			return a.Provider.Rating > b.Provider.Rating
		}
		return a.Provider.ID.String() < b.Provider.ID.String()
	})

	if s.metrics != nil {
		s.metrics.SearchCandidates.Observe(float64(len(candidates)))
	}
	return candidates
}

func matches(p *model.Provider, distanceKm float64, c model.SearchCriteria) bool {
	if c.MaxDistanceKm > 0 && distanceKm > c.MaxDistanceKm {
		return false
	}
	if c.Specialty != "" && p.Specialty != c.Specialty {
		return false
	}
	if c.ConsultationKind != "" && !p.Supports(c.ConsultationKind) {
		return false
	}
	if p.Rating < c.MinRating {
		return false
	}
	if c.PriceRange.Max > 0 && !p.PriceRange.Overlaps(c.PriceRange) {
		return false
	}
	if c.Availability == model.AvailabilityNow && !p.Available {
		return false
	}
	return true
}
