package models

import (
	"fmt"
	"math"
)

// Coordinate is a WGS84 latitude/longitude pair
type Coordinate struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

// Validate checks that both components are finite and within range
func (c Coordinate) Validate() error {
	if math.IsNaN(c.Latitude) || math.IsInf(c.Latitude, 0) ||
		math.IsNaN(c.Longitude) || math.IsInf(c.Longitude, 0) {
		return fmt.Errorf("coordinate components must be finite")
	}
	if c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("latitude %f out of range [-90, 90]", c.Latitude)
	}
	if c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("longitude %f out of range [-180, 180]", c.Longitude)
	}
	return nil
}

// Quality is an upstream data-resolution tier
type Quality string

const (
	QualityHigh   Quality = "HIGH"
	QualityMedium Quality = "MEDIUM"
	QualityBase   Quality = "BASE"
)

// QualityOrder lists the tiers in the order they are tried
var QualityOrder = []Quality{QualityHigh, QualityMedium, QualityBase}

// Description returns the human-readable resolution descriptor for a tier
func (q Quality) Description() string {
	switch q {
	case QualityHigh:
		return "0.1m/pixel aerial"
	case QualityMedium:
		return "0.25m/pixel aerial"
	case QualityBase:
		return "0.25m/pixel satellite (experimental)"
	default:
		return "unknown"
	}
}

// ExpandedCoverage reports whether the tier carries the expanded coverage
// experiment flag on upstream requests. Only BASE does.
func (q Quality) ExpandedCoverage() bool {
	return q == QualityBase
}

// GeocodeResult is the outcome of resolving a street address
type GeocodeResult struct {
	Coordinate       Coordinate
	FormattedAddress string
}

// SolarInsightsResult holds the building insights payload for the best
// available quality tier, plus the tier's human-readable descriptor
type SolarInsightsResult struct {
	Quality     Quality `json:"quality"`
	QualityInfo string  `json:"qualityInfo"`
	Payload     []byte  `json:"-"`
}

// ImageryResult holds the data layers payload for the best available
// quality tier. Available is false when no tier had imagery, which is an
// expected outcome rather than an error.
type ImageryResult struct {
	Available bool    `json:"available"`
	Quality   Quality `json:"quality,omitempty"`
	Payload   []byte  `json:"-"`
}
