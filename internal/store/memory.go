package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/i474232898/station-aggregator/internal/weather"
)

var (
	// ErrNotFound is returned when no sample is available for a given station.
	ErrNotFound = errors.New("no samples for station")
)

// SampleHistory holds a time-ordered list of samples for a station.
type SampleHistory struct {
	Samples []weather.StoredSample
}

// MemoryStore is a concurrency-safe in-memory sample sink and reader.
type MemoryStore struct {
	mu sync.RWMutex

	// key: station id, value: history
	data map[string]*SampleHistory

	// retention configuration
	maxHistory int           // max number of samples per station
	maxAge     time.Duration // optional max age for samples

	clock clock.Clock
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		data:       make(map[string]*SampleHistory),
		maxHistory: maxHistory,
		maxAge:     maxAge,
		clock:      clock.New(),
	}
}

// WithClock replaces the clock used for age retention.
func (s *MemoryStore) WithClock(c clock.Clock) *MemoryStore {
	s.clock = c
	return s
}

// WriteSample appends a new sample for a station and enforces retention.
func (s *MemoryStore) WriteSample(_ context.Context, fc weather.FlushContext, sample weather.Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	history, ok := s.data[fc.StationID]
	if !ok {
		history = &SampleHistory{}
		s.data[fc.StationID] = history
	}

	history.Samples = append(history.Samples, weather.StoredSample{
		ID:        fc.ID,
		StationID: fc.StationID,
		FlushedAt: fc.FlushedAt,
		Sample:    sample,
	})

	// Enforce retention by count.
	if s.maxHistory > 0 && len(history.Samples) > s.maxHistory {
		over := len(history.Samples) - s.maxHistory
		history.Samples = history.Samples[over:]
	}

	// Enforce retention by age, always keeping the newest sample.
	if s.maxAge > 0 {
		cutoff := s.clock.Now().Add(-s.maxAge)
		i := 0
		for ; i < len(history.Samples); i++ {
			if !history.Samples[i].Sample.LocalTime.Before(cutoff) {
				break
			}
		}
		if i == len(history.Samples) {
			i--
		}
		history.Samples = history.Samples[i:]
	}
	return nil
}

// GetLatest returns the most recent sample for a station.
func (s *MemoryStore) GetLatest(stationID string) (weather.StoredSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[stationID]
	if !ok || len(history.Samples) == 0 {
		return weather.StoredSample{}, ErrNotFound
	}
	return history.Samples[len(history.Samples)-1], nil
}

// GetRange returns all samples for a station whose localtime lies between
// from and to (inclusive).
func (s *MemoryStore) GetRange(stationID string, from, to time.Time) ([]weather.StoredSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[stationID]
	if !ok || len(history.Samples) == 0 {
		return nil, ErrNotFound
	}

	var result []weather.StoredSample
	for _, rec := range history.Samples {
		ts := rec.Sample.LocalTime
		if !ts.Before(from) && !ts.After(to) {
			result = append(result, rec)
		}
	}

	if len(result) == 0 {
		return nil, ErrNotFound
	}

	return result, nil
}
