package locations

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/i474232898/weather-collector/internal/config"
	"github.com/i474232898/weather-collector/internal/weather"
)

// Location resolution modes.
const (
	ModeStatic    = "static"
	ModeDirectory = "directory"
	ModeFile      = "file"
)

// NewFromConfig builds the location source selected by cfg.LocationMode.
func NewFromConfig(cfg *config.AppConfig, client *http.Client, logger *zap.Logger) (weather.LocationSource, error) {
	switch cfg.LocationMode {
	case ModeStatic, "":
		loc := weather.Location{
			Latitude:  cfg.Latitude,
			Longitude: cfg.Longitude,
			ID:        cfg.LocationID,
			Name:      cfg.LocationName,
		}
		if cfg.LocationCity != "" && cfg.GeocoderAPIKey != "" {
			loc = Geocoded(loc, cfg.LocationCity, cfg.LocationCountry, GoogleGeocoder(cfg.GeocoderAPIKey), logger)
		}
		return NewStaticSource(loc), nil
	case ModeDirectory:
		return NewDirectorySource(client, DirectoryConfig{
			URL:        cfg.DirectoryAPIURL,
			Token:      cfg.DirectoryAPIToken,
			MaxRetries: cfg.DirectoryMaxRetries,
		}, logger.Named("directory")), nil
	case ModeFile:
		return NewFileSource(cfg.LocationsFile, logger.Named("locations-file")), nil
	default:
		return nil, fmt.Errorf("unknown location mode: %s", cfg.LocationMode)
	}
}
