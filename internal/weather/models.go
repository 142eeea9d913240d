package weather

import (
	"strconv"
	"time"
)

// Condition is the symbolic name of a provider weather code.
type Condition string

const (
	ConditionUnknown Condition = "unknown"
	ConditionClear   Condition = "clear"
)

// Location represents a place we collect weather for.
// ID and Name are optional; coordinates are always set.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	ID        string  `json:"id,omitempty"`
	Name      string  `json:"name,omitempty"`
}

// Key returns a canonical string key for logging and indexing this location.
func (l Location) Key() string {
	if l.ID != "" {
		return l.ID
	}
	return strconv.FormatFloat(l.Latitude, 'f', 4, 64) + "," + strconv.FormatFloat(l.Longitude, 'f', 4, 64)
}

// Current holds the observation at collection time. Nil fields were absent
// in the provider response and are published as null.
type Current struct {
	Temperature   *float64  `json:"temperature"`   // °C
	Humidity      *float64  `json:"humidity"`      // %
	WindSpeed     *float64  `json:"windSpeed"`     // km/h
	WeatherCode   *int      `json:"weatherCode"`
	Condition     Condition `json:"condition"`
	Precipitation float64   `json:"precipitation"` // mm
}

// Forecast holds parallel hourly series, each at most ForecastHours long.
type Forecast struct {
	Time                     []string   `json:"time"`
	Temperature              []*float64 `json:"temperature"`
	Humidity                 []*float64 `json:"humidity"`
	WindSpeed                []*float64 `json:"windSpeed"`
	WeatherCode              []*int     `json:"weatherCode"`
	PrecipitationProbability []*int     `json:"precipitationProbability"`
}

// Record is the canonical message published once per location per cycle.
type Record struct {
	Timestamp time.Time `json:"timestamp"` // always UTC
	Location  Location  `json:"location"`
	Current   Current   `json:"current"`
	Forecast  Forecast  `json:"forecast"`
}
