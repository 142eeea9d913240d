package locations

import (
	"context"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/i474232898/weather-collector/internal/weather"
)

var validate = validator.New()

// FileSource resolves locations from a YAML file, re-read on every cycle.
//
//	locations:
//	  - id: office
//	    name: São Paulo
//	    latitude: -23.5505
//	    longitude: -46.6333
//	  - name: Campinas
//	    coordinates: [-22.9056, -47.0608]
type FileSource struct {
	path   string
	logger *zap.Logger
}

type locationsFile struct {
	Locations []fileLocation `yaml:"locations"`
}

type fileLocation struct {
	ID          string    `yaml:"id"`
	Name        string    `yaml:"name"`
	Latitude    *float64  `yaml:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude   *float64  `yaml:"longitude" validate:"required,gte=-180,lte=180"`
	Coordinates []float64 `yaml:"coordinates" validate:"omitempty,len=2"`
}

func NewFileSource(path string, logger *zap.Logger) *FileSource {
	return &FileSource{path: path, logger: logger}
}

func (f *FileSource) Name() string { return "file" }

func (f *FileSource) Resolve(context.Context) ([]weather.Location, error) {
	b, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read locations file: %w", err)
	}

	var file locationsFile
	if err := yaml.Unmarshal(b, &file); err != nil {
		return nil, fmt.Errorf("parse locations file %s: %w", f.path, err)
	}

	locs := make([]weather.Location, 0, len(file.Locations))
	for i, l := range file.Locations {
		if l.Latitude == nil && l.Longitude == nil && len(l.Coordinates) == 2 {
			l.Latitude, l.Longitude = &l.Coordinates[0], &l.Coordinates[1]
		}
		if err := validate.Struct(l); err != nil {
			f.logger.Warn("skipping invalid location entry",
				zap.String("file", f.path),
				zap.Int("index", i),
				zap.String("location_id", l.ID),
				zap.Error(err),
			)
			continue
		}

		id := l.ID
		if id == "" {
			id = l.Name
		}
		locs = append(locs, weather.Location{
			Latitude:  *l.Latitude,
			Longitude: *l.Longitude,
			ID:        id,
			Name:      l.Name,
		})
	}
	return locs, nil
}
