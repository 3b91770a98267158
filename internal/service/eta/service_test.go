package eta

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jwalitptl/dispatch-api/internal/model"
)

func TestEstimateMinutesFallsBackWhenLocationsMissing(t *testing.T) {
	svc := NewService(DefaultConfig())
	loc := model.Coordinates{Latitude: 10.48, Longitude: -66.90}

	assert.Equal(t, 15, svc.EstimateMinutes(&model.ServiceRequest{}))
	assert.Equal(t, 15, svc.EstimateMinutes(&model.ServiceRequest{PatientLocation: &loc}))
	assert.Equal(t, 15, svc.EstimateMinutes(&model.ServiceRequest{ProviderLocation: &loc}))
}

func TestEstimateMinutesFloorsAtMinimum(t *testing.T) {
	svc := NewService(DefaultConfig())
	patient := model.Coordinates{Latitude: 10.4806, Longitude: -66.9036}
	provider := model.Coordinates{Latitude: 10.4807, Longitude: -66.9036} // a few meters away

	got := svc.EstimateMinutes(&model.ServiceRequest{
		PatientLocation:  &patient,
		ProviderLocation: &provider,
	})
	assert.Equal(t, 5, got)
}

func TestEstimateMinutesScalesWithDistance(t *testing.T) {
	svc := NewService(Config{MinutesPerKm: 2.0, DefaultMinutes: 15, MinMinutes: 5})
	patient := model.Coordinates{Latitude: 10.4806, Longitude: -66.9036}
	// far is twice as distant as near, so its ETA should roughly double.
	near := model.Coordinates{Latitude: 10.5256, Longitude: -66.9036}
	far := model.Coordinates{Latitude: 10.5706, Longitude: -66.9036}

	nearETA := svc.EstimateMinutes(&model.ServiceRequest{PatientLocation: &patient, ProviderLocation: &near})
	farETA := svc.EstimateMinutes(&model.ServiceRequest{PatientLocation: &patient, ProviderLocation: &far})

	assert.Greater(t, nearETA, 5)
	assert.InDelta(t, 2*nearETA, farETA, 1)
}

func TestNewServiceAppliesDefaults(t *testing.T) {
	svc := NewService(Config{})
	assert.Equal(t, 15, svc.EstimateMinutes(&model.ServiceRequest{}))
}
