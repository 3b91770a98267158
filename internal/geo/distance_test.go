package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jwalitptl/dispatch-api/internal/model"
)

func TestDistanceSymmetric(t *testing.T) {
	a := model.Coordinates{Latitude: 10.48, Longitude: -66.90}
	b := model.Coordinates{Latitude: 10.50, Longitude: -66.85}

	assert.Equal(t, Distance(a, b), Distance(b, a))
}

func TestDistanceSamePointIsZero(t *testing.T) {
	p := model.Coordinates{Latitude: 10.48, Longitude: -66.90}

	assert.Equal(t, 0.0, Distance(p, p))
}

func TestDistanceKnownPair(t *testing.T) {
	// Caracas to Valencia, roughly 122 km apart.
	caracas := model.Coordinates{Latitude: 10.4806, Longitude: -66.9036}
	valencia := model.Coordinates{Latitude: 10.1620, Longitude: -68.0077}

	d := Distance(caracas, valencia)
	assert.InDelta(t, 125, d, 10)
}

func TestDistanceShortRange(t *testing.T) {
	a := model.Coordinates{Latitude: 10.48, Longitude: -66.90}
	b := model.Coordinates{Latitude: 10.49, Longitude: -66.90}

	// One hundredth of a degree of latitude is about 1.11 km.
	assert.InDelta(t, 1.11, Distance(a, b), 0.02)
}
