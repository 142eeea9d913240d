package weather

import (
	"context"
	"errors"
	"time"
)

// Service runs the per-location pipeline: fetch, normalize, publish.
type Service struct {
	fetcher   Fetcher
	publisher Publisher
	now       func() time.Time
}

// NewService creates a new Service.
func NewService(fetcher Fetcher, publisher Publisher) *Service {
	return &Service{
		fetcher:   fetcher,
		publisher: publisher,
		now:       time.Now,
	}
}

// Collect fetches weather for loc, normalizes it and publishes the record.
// The returned error is a *FetchError, *DecodeFailure or *PublishError so the
// caller can tell which stage failed; the record is returned on success.
func (s *Service) Collect(ctx context.Context, loc Location) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}

	raw, err := s.fetcher.Fetch(ctx, loc)
	if err != nil {
		var fetchErr *FetchError
		if !errors.As(err, &fetchErr) {
			err = &FetchError{Location: loc, Cause: err}
		}
		return Record{}, err
	}

	rec, err := Normalize(raw, loc, s.now())
	if err != nil {
		return Record{}, err
	}

	if err := s.publisher.Publish(ctx, rec); err != nil {
		var publishErr *PublishError
		if !errors.As(err, &publishErr) {
			err = &PublishError{Location: loc, Cause: err}
		}
		return Record{}, err
	}

	return rec, nil
}
