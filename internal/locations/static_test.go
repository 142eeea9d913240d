package locations

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/i474232898/weather-collector/internal/config"
	"github.com/i474232898/weather-collector/internal/weather"
)

func TestStaticSourceResolvesSameLocation(t *testing.T) {
	loc := weather.Location{Latitude: 23.5505, Longitude: -46.6333, ID: "default"}
	src := NewStaticSource(loc)

	for i := 0; i < 2; i++ {
		locs, err := src.Resolve(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(locs) != 1 || locs[0] != loc {
			t.Fatalf("expected exactly %+v, got %+v", loc, locs)
		}
	}
}

func TestGeocoded(t *testing.T) {
	fallback := weather.Location{Latitude: 23.5505, Longitude: -46.6333, ID: "default"}

	t.Run("success", func(t *testing.T) {
		geocode := func(city, country string) (float64, float64, error) {
			if city != "Campinas" || country != "Brazil" {
				t.Fatalf("unexpected address %s, %s", city, country)
			}
			return -22.9056, -47.0608, nil
		}

		loc := Geocoded(fallback, "Campinas", "Brazil", geocode, zap.NewNop())
		if loc.Latitude != -22.9056 || loc.Longitude != -47.0608 {
			t.Fatalf("expected geocoded coordinates, got %+v", loc)
		}
		if loc.Name != "Campinas" || loc.ID != "default" {
			t.Fatalf("expected city name and original id, got %+v", loc)
		}
	})

	t.Run("failure keeps configured coordinates", func(t *testing.T) {
		core, logs := observer.New(zapcore.WarnLevel)
		geocode := func(string, string) (float64, float64, error) {
			return 0, 0, errors.New("REQUEST_DENIED")
		}

		loc := Geocoded(fallback, "Campinas", "Brazil", geocode, zap.New(core))
		if loc != fallback {
			t.Fatalf("expected fallback location, got %+v", loc)
		}
		if logs.FilterMessage("geocoding failed, using configured coordinates").Len() != 1 {
			t.Fatalf("expected geocoding failure to be logged")
		}
	})

	t.Run("no city", func(t *testing.T) {
		called := false
		geocode := func(string, string) (float64, float64, error) {
			called = true
			return 0, 0, nil
		}
		if loc := Geocoded(fallback, "", "", geocode, zap.NewNop()); loc != fallback || called {
			t.Fatalf("expected geocoding to be skipped")
		}
	})
}

func TestNewFromConfig(t *testing.T) {
	tests := []struct {
		cfg  config.AppConfig
		name string
	}{
		{config.AppConfig{LocationMode: ModeStatic, Latitude: 1, Longitude: 2, LocationID: "default"}, "static"},
		{config.AppConfig{LocationMode: ModeDirectory, DirectoryAPIURL: "http://directory.local/users"}, "directory"},
		{config.AppConfig{LocationMode: ModeFile, LocationsFile: "locations.yaml"}, "file"},
	}

	for _, tt := range tests {
		src, err := NewFromConfig(&tt.cfg, nil, zap.NewNop())
		if err != nil {
			t.Fatalf("mode %s: unexpected error: %v", tt.cfg.LocationMode, err)
		}
		if src.Name() != tt.name {
			t.Fatalf("mode %s: expected %s source, got %s", tt.cfg.LocationMode, tt.name, src.Name())
		}
	}

	if _, err := NewFromConfig(&config.AppConfig{LocationMode: "satellite"}, nil, zap.NewNop()); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}
