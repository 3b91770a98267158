package model

// WindowStats is counts/revenue inside one time window relative to "now".
type WindowStats struct {
	Completed int     `json:"completed"`
	Revenue   float64 `json:"revenue"`
}

// BusinessMetrics is a point-in-time snapshot derived from the terminal
// request history. Recomputed on demand, never incrementally mutated.
type BusinessMetrics struct {
	TotalRequests     int     `json:"total_requests"`
	ActiveRequests    int     `json:"active_requests"`
	CompletedRequests int     `json:"completed_requests"`
	CancelledRequests int     `json:"cancelled_requests"`
	TotalRevenue      float64 `json:"total_revenue"`
	PlatformRevenue   float64 `json:"platform_revenue"`

	AvgDurationMinutes float64 `json:"avg_duration_minutes"`
	AvgRating          float64 `json:"avg_rating"`

	ByConsultationKind map[ConsultationKind]int `json:"by_consultation_kind"`

	Today     WindowStats `json:"today"`
	ThisWeek  WindowStats `json:"this_week"`
	ThisMonth WindowStats `json:"this_month"`
}

// RevenueProjection is a compound-growth forecast from current monthly revenue.
type RevenueProjection struct {
	GrowthRate     float64   `json:"growth_rate"`
	MonthlyRevenue float64   `json:"monthly_revenue"`
	Projected      []float64 `json:"projected"`
}
