package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/i474232898/weather-collector/internal/weather"
)

// RunCron triggers a cycle on every match of the cron expression (UTC)
// instead of the interval loop. Cycles never overlap; a trigger that fires
// while a cycle is still running is skipped.
func (s *Scheduler) RunCron(ctx context.Context, expr string) error {
	cron := gocron.NewScheduler(time.UTC)
	cron.SingletonModeAll()

	_, err := cron.Cron(expr).Do(func() {
		if ctx.Err() != nil {
			return
		}
		_, err := s.runCycle(ctx)
		var failure *weather.CycleFailure
		if errors.As(err, &failure) {
			s.logger.Error("collection cycle failed, waiting for next trigger", zap.Error(err))
		}
		if ctx.Err() == nil {
			s.setState(StateWaiting)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule cron %q: %w", expr, err)
	}

	s.logger.Info("scheduler started",
		zap.String("source", s.source.Name()),
		zap.String("cron", expr),
		zap.Int("max_concurrency", s.cfg.MaxConcurrency),
	)
	s.setState(StateWaiting)
	cron.StartAsync()

	<-ctx.Done()
	s.setState(StateShuttingDown)
	cron.Stop()
	s.logger.Info("scheduler stopped")
	return nil
}
