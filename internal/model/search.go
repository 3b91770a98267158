package model

// AvailabilityMode narrows search results by when the provider can serve.
type AvailabilityMode string

const (
	AvailabilityAny      AvailabilityMode = "any"
	AvailabilityNow      AvailabilityMode = "now"
	AvailabilityToday    AvailabilityMode = "today"
	AvailabilityThisWeek AvailabilityMode = "this_week"
)

func (m AvailabilityMode) IsValid() bool {
	switch m {
	case AvailabilityAny, AvailabilityNow, AvailabilityToday, AvailabilityThisWeek:
		return true
	}
	return false
}

// SearchCriteria is the compound filter supplied per search call.
// Zero values mean "not set" for the optional fields.
type SearchCriteria struct {
	Specialty        Specialty        `json:"specialty,omitempty" binding:"omitempty,specialty"`
	ConsultationKind ConsultationKind `json:"consultation_kind,omitempty" binding:"omitempty,consultation_kind"`
	MaxDistanceKm    float64          `json:"max_distance_km" binding:"gte=0"`
	PriceRange       PriceRange       `json:"price_range"`
	MinRating        float64          `json:"min_rating" binding:"gte=0,lte=5"`
	Availability     AvailabilityMode `json:"availability" binding:"omitempty,availability"`
}

// SearchRequest is the UI-issued search command. Origin is a pointer so
// a missing origin is distinguishable from a legitimate {0,0} one.
type SearchRequest struct {
	Origin   *Coordinates   `json:"origin" binding:"required"`
	Criteria SearchCriteria `json:"criteria"`
}

// Candidate is a provider that survived every filter predicate,
// annotated with its computed distance from the search origin.
type Candidate struct {
	Provider   *Provider `json:"provider"`
	DistanceKm float64   `json:"distance_km"`
}
