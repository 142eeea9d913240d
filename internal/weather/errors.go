package weather

import (
	"errors"
	"fmt"
)

// Stage names the step of a location pipeline that failed.
type Stage string

const (
	StageFetch   Stage = "fetch"
	StageDecode  Stage = "decode"
	StagePublish Stage = "publish"
	StageUnknown Stage = "unknown"
)

// FetchError is returned when the provider could not be reached, timed out,
// or answered with a non-success status.
type FetchError struct {
	Location Location
	Cause    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch weather for %s: %v", e.Location.Key(), e.Cause)
}

func (e *FetchError) Unwrap() error { return e.Cause }

// DecodeFailure is returned when the provider payload is not a JSON object.
type DecodeFailure struct {
	Location Location
	Cause    error
}

func (e *DecodeFailure) Error() string {
	return fmt.Sprintf("decode weather for %s: %v", e.Location.Key(), e.Cause)
}

func (e *DecodeFailure) Unwrap() error { return e.Cause }

// DirectoryError is returned when the location directory is unreachable or
// its response cannot be parsed.
type DirectoryError struct {
	URL   string
	Cause error
}

func (e *DirectoryError) Error() string {
	return fmt.Sprintf("location directory %s: %v", e.URL, e.Cause)
}

func (e *DirectoryError) Unwrap() error { return e.Cause }

// PublishError is returned when a record could not be handed to the broker.
type PublishError struct {
	Location Location
	Queue    string
	Cause    error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish %s to queue %q: %v", e.Location.Key(), e.Queue, e.Cause)
}

func (e *PublishError) Unwrap() error { return e.Cause }

// CycleFailure wraps anything that escaped the per-location boundaries of a
// collection cycle, including recovered panics.
type CycleFailure struct {
	Cause error
}

func (e *CycleFailure) Error() string {
	return fmt.Sprintf("collection cycle failed: %v", e.Cause)
}

func (e *CycleFailure) Unwrap() error { return e.Cause }

// StageOf reports which pipeline stage produced err.
func StageOf(err error) Stage {
	var (
		fetchErr   *FetchError
		decodeErr  *DecodeFailure
		publishErr *PublishError
	)
	switch {
	case errors.As(err, &fetchErr):
		return StageFetch
	case errors.As(err, &decodeErr):
		return StageDecode
	case errors.As(err, &publishErr):
		return StagePublish
	default:
		return StageUnknown
	}
}
