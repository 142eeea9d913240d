package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/i474232898/weather-collector/internal/weather"
)

func TestRunCronRejectsInvalidExpression(t *testing.T) {
	s := New(listSource{}, weather.NewService(newFakeFetcher(), &fakePublisher{}), Config{Interval: time.Hour})

	if err := s.RunCron(context.Background(), "every tuesday"); err == nil {
		t.Fatalf("expected error for invalid cron expression")
	}
}

func TestRunCronStopsOnShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := New(listSource{}, weather.NewService(newFakeFetcher(), &fakePublisher{}), Config{Interval: time.Hour})

	done := make(chan error, 1)
	go func() { done <- s.RunCron(ctx, "0 * * * *") }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("RunCron did not return after cancellation")
	}
	if s.State() != StateShuttingDown {
		t.Fatalf("expected shutting_down, got %s", s.State())
	}
}
