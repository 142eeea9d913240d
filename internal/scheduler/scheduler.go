package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/i474232898/weather-collector/internal/metrics"
	"github.com/i474232898/weather-collector/internal/store"
	"github.com/i474232898/weather-collector/internal/weather"
)

// State is the scheduler's position in its control loop.
type State string

const (
	StateIdle         State = "idle"
	StateResolving    State = "resolving"
	StateCollecting   State = "collecting"
	StateWaiting      State = "waiting"
	StateShuttingDown State = "shutting_down"
)

// Collector runs the fetch, normalize and publish pipeline for one location.
type Collector interface {
	Collect(ctx context.Context, loc weather.Location) (weather.Record, error)
}

// Config controls cadence and fan-out.
type Config struct {
	Interval       time.Duration
	Cooldown       time.Duration
	MaxConcurrency int
}

// CycleReport summarizes one collection cycle.
type CycleReport struct {
	StartedAt    time.Time `json:"startedAt"`
	FinishedAt   time.Time `json:"finishedAt"`
	Resolved     int       `json:"resolved"`
	Published    int       `json:"published"`
	Failed       int       `json:"failed"`
	Skipped      int       `json:"skipped"`
	ResolveError string    `json:"resolveError,omitempty"`
	Failure      string    `json:"failure,omitempty"`
}

// Result classifies the cycle for metrics and the status API.
func (r CycleReport) Result() string {
	switch {
	case r.Failure != "" || r.ResolveError != "":
		return metrics.CycleFailed
	case r.Resolved == 0:
		return metrics.CycleEmpty
	case r.Published == r.Resolved:
		return metrics.CycleSuccess
	case r.Published == 0:
		return metrics.CycleFailed
	default:
		return metrics.CyclePartial
	}
}

// Scheduler periodically resolves locations and collects weather for each.
type Scheduler struct {
	source    weather.LocationSource
	collector Collector
	cfg       Config

	logger  *zap.Logger
	status  *store.StatusStore
	metrics *metrics.Collector

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	mu    sync.RWMutex
	state State
	last  *CycleReport
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

func WithLogger(l *zap.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithStatusStore records every pipeline outcome in st.
func WithStatusStore(st *store.StatusStore) Option {
	return func(s *Scheduler) { s.status = st }
}

func WithMetrics(m *metrics.Collector) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// New creates a new Scheduler.
func New(source weather.LocationSource, collector Collector, cfg Config, opts ...Option) *Scheduler {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 1
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = time.Minute
	}

	s := &Scheduler{
		source:    source,
		collector: collector,
		cfg:       cfg,
		logger:    zap.NewNop(),
		now:       time.Now,
		sleep:     sleepContext,
		state:     StateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NextDelay returns how long to wait after a cycle that finished at now.
// A one-minute interval is aligned to the next UTC minute rollover; any other
// interval is slept flat.
func NextDelay(now time.Time, interval time.Duration) time.Duration {
	if interval == time.Minute {
		next := now.UTC().Truncate(time.Minute).Add(time.Minute)
		return next.Sub(now)
	}
	return interval
}

// Run drives cycles until ctx is cancelled. It only returns on shutdown.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started",
		zap.String("source", s.source.Name()),
		zap.Duration("interval", s.cfg.Interval),
		zap.Int("max_concurrency", s.cfg.MaxConcurrency),
	)

	for ctx.Err() == nil {
		_, err := s.runCycle(ctx)

		wait := NextDelay(s.now(), s.cfg.Interval)
		var failure *weather.CycleFailure
		if errors.As(err, &failure) {
			wait = s.cfg.Cooldown
			s.logger.Error("collection cycle failed, cooling down",
				zap.Duration("cooldown", wait),
				zap.Error(err),
			)
		}
		if ctx.Err() != nil {
			break
		}

		s.setState(StateWaiting)
		s.logger.Debug("waiting for next cycle", zap.Duration("wait", wait))
		if err := s.sleep(ctx, wait); err != nil {
			break
		}
	}

	s.setState(StateShuttingDown)
	s.logger.Info("scheduler stopped")
	return nil
}

// RunCycle performs a single collection cycle.
func (s *Scheduler) RunCycle(ctx context.Context) CycleReport {
	report, _ := s.runCycle(ctx)
	return report
}

// runCycle resolves locations and runs every pipeline. The returned error is
// a *weather.CycleFailure when something escaped location isolation.
func (s *Scheduler) runCycle(ctx context.Context) (report CycleReport, err error) {
	report.StartedAt = s.now().UTC()

	defer func() {
		if r := recover(); r != nil {
			err = &weather.CycleFailure{Cause: fmt.Errorf("panic: %v", r)}
			s.logger.Error("recovered panic in collection cycle",
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
		}
		if err != nil {
			report.Failure = err.Error()
		}
		report.Skipped = report.Resolved - report.Published - report.Failed
		report.FinishedAt = s.now().UTC()
		s.finishCycle(report)
	}()

	s.setState(StateResolving)
	locs, resolveErr := s.source.Resolve(ctx)
	if resolveErr != nil {
		// The cycle goes on with nothing to collect.
		report.ResolveError = resolveErr.Error()
		var dirErr *weather.DirectoryError
		if errors.As(resolveErr, &dirErr) {
			s.logger.Error("location directory unavailable",
				zap.String("url", dirErr.URL),
				zap.Error(resolveErr),
			)
		} else {
			s.logger.Error("failed to resolve locations",
				zap.String("source", s.source.Name()),
				zap.Error(resolveErr),
			)
		}
		locs = nil
	}
	report.Resolved = len(locs)

	if len(locs) == 0 {
		s.logger.Info("no locations to collect", zap.String("source", s.source.Name()))
		return report, nil
	}

	s.setState(StateCollecting)
	s.logger.Info("collection cycle started", zap.Int("locations", len(locs)))

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		panicErr error
	)
	sem := make(chan struct{}, s.cfg.MaxConcurrency)

dispatch:
	for _, loc := range locs {
		loc := loc
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			break dispatch
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("recovered panic in location pipeline",
						zap.String("location_id", loc.Key()),
						zap.Any("panic", r),
						zap.ByteString("stack", debug.Stack()),
					)
					mu.Lock()
					report.Failed++
					if panicErr == nil {
						panicErr = fmt.Errorf("panic collecting %s: %v", loc.Key(), r)
					}
					mu.Unlock()
				}
			}()

			ok, done := s.collect(ctx, loc)
			if !done {
				return
			}
			mu.Lock()
			if ok {
				report.Published++
			} else {
				report.Failed++
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	s.logger.Info("collection cycle completed",
		zap.Int("published", report.Published),
		zap.Int("failed", report.Failed),
		zap.Int("locations", report.Resolved),
	)

	if panicErr != nil {
		return report, &weather.CycleFailure{Cause: panicErr}
	}
	return report, nil
}

// collect runs one location pipeline. done is false when the pipeline was
// aborted by cancellation and nothing was attempted.
func (s *Scheduler) collect(ctx context.Context, loc weather.Location) (ok, done bool) {
	if ctx.Err() != nil {
		return false, false
	}

	start := s.now()
	rec, err := s.collector.Collect(ctx, loc)
	took := s.now().Sub(start)

	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		s.logger.Info("location pipeline aborted by shutdown", zap.String("location_id", loc.Key()))
		return false, false
	}

	outcome := store.Outcome{
		LocationID: loc.Key(),
		Name:       loc.Name,
		Latitude:   loc.Latitude,
		Longitude:  loc.Longitude,
		Timestamp:  start.UTC(),
		Success:    err == nil,
		DurationMs: took.Milliseconds(),
	}

	if err != nil {
		stage := weather.StageOf(err)
		outcome.Stage = string(stage)
		outcome.Error = err.Error()
		s.logger.Error("location pipeline failed",
			zap.String("location_id", loc.Key()),
			zap.String("stage", string(stage)),
			zap.Float64("latitude", loc.Latitude),
			zap.Float64("longitude", loc.Longitude),
			zap.Error(err),
		)
		s.metrics.ObservePipeline(string(stage), start)
	} else {
		s.logger.Info("weather record published",
			zap.String("location_id", loc.Key()),
			zap.String("condition", string(rec.Current.Condition)),
			zap.Duration("took", took),
		)
		s.metrics.ObservePipeline("", rec.Timestamp)
	}

	if s.status != nil {
		s.status.Record(outcome)
	}
	return err == nil, true
}

func (s *Scheduler) finishCycle(report CycleReport) {
	s.metrics.ObserveCycle(report.Result(), report.Resolved, report.FinishedAt.Sub(report.StartedAt))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = &report
	if s.state != StateShuttingDown {
		s.state = StateIdle
	}
}

// State returns the current control state.
func (s *Scheduler) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// LastCycle returns the report of the most recent finished cycle.
func (s *Scheduler) LastCycle() (CycleReport, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return CycleReport{}, false
	}
	return *s.last, true
}

func (s *Scheduler) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
