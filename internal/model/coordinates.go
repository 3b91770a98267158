package model

// Coordinates is an immutable geographic point.
type Coordinates struct {
	Latitude  float64 `json:"latitude" db:"latitude"`
	Longitude float64 `json:"longitude" db:"longitude"`
}

// Valid reports whether the point sits inside the WGS84 bounds.
// The distance calculator does not validate; callers do.
func (c Coordinates) Valid() bool {
	return c.Latitude >= -90 && c.Latitude <= 90 &&
		c.Longitude >= -180 && c.Longitude <= 180
}
