package eta

import (
	"math"

	"github.com/jwalitptl/dispatch-api/internal/geo"
	"github.com/jwalitptl/dispatch-api/internal/model"
)

// Config converts live distance to arrival minutes. The conversion is a
// plain proportionality, not a road-speed model; tune MinutesPerKm per
// deployment.
type Config struct {
	MinutesPerKm   float64
	DefaultMinutes int
	MinMinutes     int
}

func DefaultConfig() Config {
	return Config{
		MinutesPerKm:   2.0,
		DefaultMinutes: 15,
		MinMinutes:     5,
	}
}

type Service struct {
	cfg Config
}

func NewService(cfg Config) *Service {
	if cfg.MinutesPerKm <= 0 {
		cfg.MinutesPerKm = 2.0
	}
	if cfg.DefaultMinutes <= 0 {
		cfg.DefaultMinutes = 15
	}
	if cfg.MinMinutes <= 0 {
		cfg.MinMinutes = 5
	}
	return &Service{cfg: cfg}
}

// EstimateMinutes returns the estimated provider arrival time for a
// home-visit request. Missing coordinates fall back to the configured
// default instead of failing; the result is always positive.
func (s *Service) EstimateMinutes(req *model.ServiceRequest) int {
	if req.PatientLocation == nil || req.ProviderLocation == nil {
		return s.cfg.DefaultMinutes
	}

	distanceKm := geo.Distance(*req.ProviderLocation, *req.PatientLocation)
	minutes := int(math.Round(distanceKm * s.cfg.MinutesPerKm))
	if minutes < s.cfg.MinMinutes {
		return s.cfg.MinMinutes
	}
	return minutes
}
