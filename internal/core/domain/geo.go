package domain

// GeoPoint represents a geographic coordinate (WGS 84, spherical approximation).
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// PlanarPoint is a point in a local Cartesian frame. Y grows towards the
// south so that azimuth 0 (north) points along -Y.
type PlanarPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Bounds represents a geographic bounding box.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}
