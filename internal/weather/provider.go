package weather

import (
	"context"
)

// Fetcher retrieves the raw provider payload for one location.
// Implementations return *FetchError on failure and never retry.
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context, loc Location) ([]byte, error)
}

// Publisher hands a record to the message broker.
// Implementations return *PublishError on failure.
type Publisher interface {
	Publish(ctx context.Context, rec Record) error
}

// LocationSource resolves the set of locations to collect for in a cycle.
type LocationSource interface {
	Name() string
	Resolve(ctx context.Context) ([]Location, error)
}
