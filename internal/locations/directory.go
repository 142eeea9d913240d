package locations

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/i474232898/weather-collector/internal/weather"
	"github.com/i474232898/weather-collector/internal/weather/providers"
)

// DirectoryConfig configures the location directory client.
type DirectoryConfig struct {
	URL        string
	Token      string
	MaxRetries int
}

// DirectorySource resolves locations from the users directory API.
type DirectorySource struct {
	url     string
	token   string
	httpCfg providers.HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// directoryEntity is one user as returned by the directory.
type directoryEntity struct {
	MongoID  json.RawMessage       `json:"_id"`
	ID       json.RawMessage       `json:"id"`
	Email    string                `json:"email"`
	Name     string                `json:"name"`
	IsActive *bool                 `json:"isActive"`
	Location *directoryCoordinates `json:"location"`
}

type directoryCoordinates struct {
	Latitude  *float64 `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
}

func NewDirectorySource(client *http.Client, cfg DirectoryConfig, logger *zap.Logger) *DirectorySource {
	return &DirectorySource{
		url:   cfg.URL,
		token: cfg.Token,
		httpCfg: providers.HTTPClientConfig{
			Client: client,
			Backoff: providers.BackoffConfig{
				MaxRetries:      max(cfg.MaxRetries, 0),
				InitialInterval: 500 * time.Millisecond,
				MaxInterval:     5 * time.Second,
			},
		},
		circuit: providers.NewCircuitBreaker("directory", nil),
		logger:  logger,
	}
}

func (d *DirectorySource) Name() string { return "directory" }

// Resolve fetches every entity and keeps the active ones with both
// coordinates in range. An empty directory is not an error.
func (d *DirectorySource) Resolve(ctx context.Context) ([]weather.Location, error) {
	buildRequest := func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if d.token != "" {
			req.Header.Set("Authorization", "Bearer "+d.token)
		}
		return req, nil
	}

	resp, err := providers.DoWithResilience(ctx, d.httpCfg, d.circuit, buildRequest)
	if err != nil {
		return nil, &weather.DirectoryError{URL: d.url, Cause: err}
	}

	body, err := providers.ReadBody(resp)
	if err != nil {
		return nil, &weather.DirectoryError{URL: d.url, Cause: err}
	}

	entities, err := decodeEntities(body)
	if err != nil {
		return nil, &weather.DirectoryError{URL: d.url, Cause: err}
	}

	locs := make([]weather.Location, 0, len(entities))
	for _, e := range entities {
		id := e.identity()
		switch {
		case e.IsActive != nil && !*e.IsActive:
			d.logger.Debug("skipping inactive directory entity", zap.String("location_id", id))
		case e.Location == nil:
			d.logger.Info("skipping directory entity without location", zap.String("location_id", id))
		case e.Location.Latitude == nil || e.Location.Longitude == nil:
			d.logger.Info("skipping directory entity with incomplete coordinates", zap.String("location_id", id))
		case validate.Struct(e.Location) != nil:
			d.logger.Warn("skipping directory entity with out-of-range coordinates",
				zap.String("location_id", id),
				zap.Float64("latitude", *e.Location.Latitude),
				zap.Float64("longitude", *e.Location.Longitude),
			)
		default:
			locs = append(locs, weather.Location{
				Latitude:  *e.Location.Latitude,
				Longitude: *e.Location.Longitude,
				ID:        id,
				Name:      e.displayName(),
			})
		}
	}

	d.logger.Debug("resolved directory locations",
		zap.Int("entities", len(entities)),
		zap.Int("locations", len(locs)),
	)
	return locs, nil
}

// decodeEntities accepts either a bare array or an object wrapping it in "data".
func decodeEntities(body []byte) ([]directoryEntity, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var wrapped struct {
			Data []directoryEntity `json:"data"`
		}
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return nil, err
		}
		if wrapped.Data == nil {
			return nil, errors.New(`expected an array or an object with a "data" array`)
		}
		return wrapped.Data, nil
	}

	var entities []directoryEntity
	if err := json.Unmarshal(trimmed, &entities); err != nil {
		return nil, err
	}
	return entities, nil
}

func (e directoryEntity) identity() string {
	if id := rawString(e.MongoID); id != "" {
		return id
	}
	if id := rawString(e.ID); id != "" {
		return id
	}
	return e.Email
}

func (e directoryEntity) displayName() string {
	if e.Name != "" {
		return e.Name
	}
	return e.Email
}

// rawString renders a JSON string or number id as text.
func rawString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}
