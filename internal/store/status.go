package store

import (
	"errors"
	"sort"
	"sync"
	"time"
)

var (
	// ErrNotFound is returned when no outcome has been recorded for a location.
	ErrNotFound = errors.New("no collection outcome for location")
)

// Outcome is the result of one location pipeline run. It carries no weather
// data; records only live on the queue.
type Outcome struct {
	LocationID string    `json:"locationId"`
	Name       string    `json:"name,omitempty"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Timestamp  time.Time `json:"timestamp"`
	Success    bool      `json:"success"`
	Stage      string    `json:"stage,omitempty"`
	Error      string    `json:"error,omitempty"`
	DurationMs int64     `json:"durationMs"`
}

// StatusStore is a concurrency-safe in-memory history of pipeline outcomes,
// keyed by location.
type StatusStore struct {
	mu sync.RWMutex

	// key: location key, value: outcomes, oldest first
	data map[string][]Outcome

	maxHistory int           // max outcomes per location
	maxAge     time.Duration // optional max age for outcomes
	now        func() time.Time
}

// NewStatusStore creates a StatusStore with optional limits.
// If maxHistory is <= 0, it is treated as unlimited.
func NewStatusStore(maxHistory int, maxAge time.Duration) *StatusStore {
	return &StatusStore{
		data:       make(map[string][]Outcome),
		maxHistory: maxHistory,
		maxAge:     maxAge,
		now:        time.Now,
	}
}

// Record appends an outcome and enforces retention.
func (s *StatusStore) Record(o Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := append(s.data[o.LocationID], o)

	if s.maxHistory > 0 && len(history) > s.maxHistory {
		history = history[len(history)-s.maxHistory:]
	}

	if s.maxAge > 0 {
		// The newest outcome is always kept.
		cutoff := s.now().Add(-s.maxAge)
		i := 0
		for i < len(history)-1 && history[i].Timestamp.Before(cutoff) {
			i++
		}
		history = history[i:]
	}

	s.data[o.LocationID] = history
}

// Latest returns the most recent outcome for a location.
func (s *StatusStore) Latest(locationID string) (Outcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.data[locationID]
	if len(history) == 0 {
		return Outcome{}, ErrNotFound
	}
	return history[len(history)-1], nil
}

// History returns up to limit outcomes for a location, newest first.
// A limit <= 0 returns everything retained.
func (s *StatusStore) History(locationID string, limit int) ([]Outcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.data[locationID]
	if len(history) == 0 {
		return nil, ErrNotFound
	}

	n := len(history)
	if limit > 0 && limit < n {
		n = limit
	}
	result := make([]Outcome, 0, n)
	for i := len(history) - 1; i >= 0 && len(result) < n; i-- {
		result = append(result, history[i])
	}
	return result, nil
}

// All returns the latest outcome of every known location, sorted by id.
func (s *StatusStore) All() []Outcome {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Outcome, 0, len(s.data))
	for _, history := range s.data {
		if len(history) > 0 {
			result = append(result, history[len(history)-1])
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].LocationID < result[j].LocationID
	})
	return result
}
