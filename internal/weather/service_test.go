package weather

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubFetcher struct {
	body []byte
	err  error
}

func (f stubFetcher) Name() string { return "stub" }

func (f stubFetcher) Fetch(context.Context, Location) ([]byte, error) {
	return f.body, f.err
}

type recordingPublisher struct {
	records []Record
	err     error
}

func (p *recordingPublisher) Publish(_ context.Context, rec Record) error {
	if p.err != nil {
		return p.err
	}
	p.records = append(p.records, rec)
	return nil
}

func TestServiceCollectPublishesRecord(t *testing.T) {
	pub := &recordingPublisher{}
	svc := NewService(stubFetcher{body: []byte(`{"current": {"weather_code": 61, "temperature_2m": 19}}`)}, pub)
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	rec, err := svc.Collect(context.Background(), saoPaulo)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pub.records) != 1 {
		t.Fatalf("expected 1 published record, got %d", len(pub.records))
	}
	if pub.records[0].Current.Condition != "slight_rain" || rec.Current.Condition != "slight_rain" {
		t.Fatalf("unexpected condition %q", pub.records[0].Current.Condition)
	}
	if !pub.records[0].Timestamp.Equal(fixed) {
		t.Fatalf("expected timestamp %v, got %v", fixed, pub.records[0].Timestamp)
	}
}

func TestServiceCollectStages(t *testing.T) {
	cases := []struct {
		name      string
		fetcher   Fetcher
		publisher *recordingPublisher
		stage     Stage
	}{
		{
			name:      "fetch error is passed through",
			fetcher:   stubFetcher{err: &FetchError{Location: saoPaulo, Cause: errors.New("timeout")}},
			publisher: &recordingPublisher{},
			stage:     StageFetch,
		},
		{
			name:      "untyped fetch error is wrapped",
			fetcher:   stubFetcher{err: errors.New("boom")},
			publisher: &recordingPublisher{},
			stage:     StageFetch,
		},
		{
			name:      "unparseable payload",
			fetcher:   stubFetcher{body: []byte("<html>")},
			publisher: &recordingPublisher{},
			stage:     StageDecode,
		},
		{
			name:      "publish failure",
			fetcher:   stubFetcher{body: []byte(`{}`)},
			publisher: &recordingPublisher{err: errors.New("connection refused")},
			stage:     StagePublish,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := NewService(tc.fetcher, tc.publisher)

			_, err := svc.Collect(context.Background(), saoPaulo)
			if err == nil {
				t.Fatal("expected an error")
			}
			if got := StageOf(err); got != tc.stage {
				t.Fatalf("expected stage %s, got %s (%v)", tc.stage, got, err)
			}
			if len(tc.publisher.records) != 0 {
				t.Fatalf("expected nothing published, got %d records", len(tc.publisher.records))
			}
		})
	}
}

func TestServiceCollectHonoursCancellation(t *testing.T) {
	pub := &recordingPublisher{}
	svc := NewService(stubFetcher{body: []byte(`{}`)}, pub)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := svc.Collect(ctx, saoPaulo); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(pub.records) != 0 {
		t.Fatalf("expected nothing published after cancellation")
	}
}
