package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/i474232898/weather-collector/internal/weather"
)

// DefaultOpenMeteoURL is the public Open-Meteo forecast endpoint.
const DefaultOpenMeteoURL = "https://api.open-meteo.com/v1/forecast"

var (
	currentFields = []string{
		"temperature_2m",
		"relative_humidity_2m",
		"wind_speed_10m",
		"weather_code",
		"precipitation",
	}
	hourlyFields = []string{
		"temperature_2m",
		"relative_humidity_2m",
		"wind_speed_10m",
		"weather_code",
		"precipitation_probability",
	}
)

// OpenMeteoConfig configures the Open-Meteo fetcher.
type OpenMeteoConfig struct {
	BaseURL  string
	Timezone string
	Timeout  time.Duration

	// RateLimit is the maximum requests per second; zero disables limiting.
	RateLimit float64
	Burst     int
}

// OpenMeteoProvider implements weather.Fetcher for Open-Meteo.
type OpenMeteoProvider struct {
	name     string
	baseURL  string
	timezone string
	timeout  time.Duration
	httpCfg  HTTPClientConfig
	circuit  *gobreaker.CircuitBreaker
	limiter  *rate.Limiter
}

func NewOpenMeteoProvider(client *http.Client, cfg OpenMeteoConfig, logger *zap.Logger) *OpenMeteoProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenMeteoURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), max(cfg.Burst, 1))
	}

	return &OpenMeteoProvider{
		name:     "openmeteo",
		baseURL:  cfg.BaseURL,
		timezone: cfg.Timezone,
		timeout:  cfg.Timeout,
		httpCfg: HTTPClientConfig{
			Client: client,
			// Provider calls are never retried within a cycle.
			Backoff: BackoffConfig{MaxRetries: 0},
		},
		circuit: NewCircuitBreaker("openmeteo", breakerLogger(logger)),
		limiter: limiter,
	}
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

// Fetch issues a single bounded GET for loc and returns the raw JSON body.
func (p *OpenMeteoProvider) Fetch(ctx context.Context, loc weather.Location) ([]byte, error) {
	// Queueing on the limiter does not eat into the request timeout.
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, &weather.FetchError{Location: loc, Cause: fmt.Errorf("rate limit wait canceled: %w", err)}
		}
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	buildRequest := func(ctx context.Context) (*http.Request, error) {
		u := fmt.Sprintf("%s?%s", p.baseURL, p.query(loc).Encode())
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	}

	resp, err := DoWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return nil, &weather.FetchError{Location: loc, Cause: err}
	}

	body, err := ReadBody(resp)
	if err != nil {
		return nil, &weather.FetchError{Location: loc, Cause: fmt.Errorf("read body: %w", err)}
	}
	return body, nil
}

func (p *OpenMeteoProvider) query(loc weather.Location) url.Values {
	values := url.Values{}
	values.Set("latitude", strconv.FormatFloat(loc.Latitude, 'f', -1, 64))
	values.Set("longitude", strconv.FormatFloat(loc.Longitude, 'f', -1, 64))
	values.Set("current", strings.Join(currentFields, ","))
	values.Set("hourly", strings.Join(hourlyFields, ","))
	if p.timezone != "" {
		values.Set("timezone", p.timezone)
	}
	return values
}

func breakerLogger(logger *zap.Logger) func(string, gobreaker.State, gobreaker.State) {
	if logger == nil {
		return nil
	}
	return func(name string, from, to gobreaker.State) {
		logger.Warn("circuit breaker state changed",
			zap.String("breaker", name),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}
}
