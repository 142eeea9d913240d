package locations

import (
	"context"
	"fmt"

	"github.com/kelvins/geocoder"
	"go.uber.org/zap"

	"github.com/i474232898/weather-collector/internal/weather"
)

// StaticSource always resolves to the same single location.
type StaticSource struct {
	loc weather.Location
}

func NewStaticSource(loc weather.Location) *StaticSource {
	return &StaticSource{loc: loc}
}

func (s *StaticSource) Name() string { return "static" }

func (s *StaticSource) Resolve(context.Context) ([]weather.Location, error) {
	return []weather.Location{s.loc}, nil
}

// GeocodeFunc turns a city/country pair into coordinates.
type GeocodeFunc func(city, country string) (lat, lon float64, err error)

// GoogleGeocoder geocodes through the Google Geocoding API.
func GoogleGeocoder(apiKey string) GeocodeFunc {
	return func(city, country string) (float64, float64, error) {
		geocoder.ApiKey = apiKey
		loc, err := geocoder.Geocoding(geocoder.Address{
			City:    city,
			Country: country,
		})
		if err != nil {
			return 0, 0, fmt.Errorf("geocode %s, %s: %w", city, country, err)
		}
		return loc.Latitude, loc.Longitude, nil
	}
}

// Geocoded replaces the coordinates of fallback with the geocoded position of
// city. When geocoding fails the fallback coordinates are kept.
func Geocoded(fallback weather.Location, city, country string, geocode GeocodeFunc, logger *zap.Logger) weather.Location {
	if city == "" || geocode == nil {
		return fallback
	}

	lat, lon, err := geocode(city, country)
	if err != nil {
		logger.Warn("geocoding failed, using configured coordinates",
			zap.String("city", city),
			zap.String("country", country),
			zap.Float64("latitude", fallback.Latitude),
			zap.Float64("longitude", fallback.Longitude),
			zap.Error(err),
		)
		return fallback
	}

	loc := fallback
	loc.Latitude, loc.Longitude = lat, lon
	if loc.Name == "" {
		loc.Name = city
	}
	logger.Info("geocoded static location",
		zap.String("city", city),
		zap.Float64("latitude", lat),
		zap.Float64("longitude", lon),
	)
	return loc
}
