package weather

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/i474232898/station-aggregator/internal/metrics"
)

var validate = validator.New()

// Service routes readings to station accumulators and hands flushed samples
// to the sink.
type Service struct {
	hub     *Hub
	sink    Sink
	reader  SampleReader
	logger  *slog.Logger
	metrics *metrics.Metrics
	clock   clock.Clock
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

func WithServiceLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

func WithMetrics(m *metrics.Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

func WithServiceClock(c clock.Clock) ServiceOption {
	return func(s *Service) { s.clock = c }
}

// NewService creates a new Service.
func NewService(hub *Hub, sink Sink, reader SampleReader, opts ...ServiceOption) *Service {
	s := &Service{
		hub:    hub,
		sink:   sink,
		reader: reader,
		logger: slog.Default(),
		clock:  clock.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New(prometheus.NewRegistry())
	}
	return s
}

// Report validates r and applies it to its station. Readings for sensor slots
// outside the supported range are dropped without error.
func (s *Service) Report(ctx context.Context, r Reading) error {
	_, err := s.report(ctx, r)
	return err
}

// ReportBatch reports each reading, continuing past failures, and returns how
// many readings were applied. Dropped and rejected readings are not counted.
func (s *Service) ReportBatch(ctx context.Context, readings []Reading) (int, error) {
	var (
		applied int
		errs    error
	)
	for i, r := range readings {
		ok, err := s.report(ctx, r)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("reading %d: %w", i, err))
			continue
		}
		if ok {
			applied++
		}
	}
	return applied, errs
}

func (s *Service) report(ctx context.Context, r Reading) (bool, error) {
	if err := validate.Struct(r); err != nil {
		s.metrics.ReadingDropped("invalid")
		return false, fmt.Errorf("%w: %v", ErrInvalidReading, err)
	}

	station, err := s.hub.GetOrCreate(r.StationID)
	if err != nil {
		s.metrics.ReadingDropped("unknown_station")
		return false, err
	}

	accepted, err := station.Report(ctx, r)
	if err != nil {
		return false, err
	}
	if !accepted {
		s.metrics.ReadingDropped("sensor_out_of_range")
		s.logger.Debug("reading dropped",
			"station_id", r.StationID,
			"kind", r.Kind,
			"sensor", r.SensorIndex(),
		)
		return false, nil
	}
	s.metrics.ReadingAccepted(string(r.Kind))
	return true, nil
}

// Flush closes the current period of a station and writes the sample to the
// sink. ok is false when the period had no readings.
func (s *Service) Flush(ctx context.Context, stationID string) (Sample, bool, error) {
	station, err := s.hub.Get(stationID)
	if err != nil {
		return Sample{}, false, err
	}

	sample, ok, err := station.Flush(ctx)
	if err != nil {
		return Sample{}, false, err
	}
	if !ok {
		s.metrics.EmptyFlush()
		s.logger.Debug("empty period, nothing to flush", "station_id", stationID)
		return Sample{}, false, nil
	}

	fc := FlushContext{
		ID:        uuid.New(),
		StationID: stationID,
		FlushedAt: s.clock.Now().UTC(),
	}
	s.logger.Debug("flushing sample", "station_id", stationID, "sample_id", fc.ID, "localtime", sample.LocalTime)

	if err := s.sink.WriteSample(ctx, fc, sample); err != nil {
		s.metrics.SinkFailure()
		s.logger.Error("sink write failed", "station_id", stationID, "sample_id", fc.ID, "error", err)
		return sample, true, fmt.Errorf("write sample for %s: %w", stationID, err)
	}
	s.metrics.SampleFlushed(stationID)
	return sample, true, nil
}

// FlushAll flushes every known station concurrently and returns the number of
// samples written.
func (s *Service) FlushAll(ctx context.Context) (int, error) {
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		written int
		errs    error
	)

	for _, id := range s.hub.IDs() {
		id := id
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, ok, err := s.Flush(ctx, id)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = multierr.Append(errs, err)
				return
			}
			if ok {
				written++
			}
		}()
	}
	wg.Wait()

	return written, errs
}

// Preview returns the sample the station would emit now, without resetting
// its period. ok is false when the period is empty.
func (s *Service) Preview(ctx context.Context, stationID string) (Sample, bool, error) {
	station, err := s.hub.Get(stationID)
	if err != nil {
		return Sample{}, false, err
	}
	return station.Snapshot(ctx)
}

// Stations returns the ids of stations that reported since startup.
func (s *Service) Stations() []string {
	return s.hub.IDs()
}

// GetLatest delegates to the underlying reader.
func (s *Service) GetLatest(stationID string) (StoredSample, error) {
	return s.reader.GetLatest(stationID)
}

// GetRange delegates to the underlying reader.
func (s *Service) GetRange(stationID string, from, to time.Time) ([]StoredSample, error) {
	return s.reader.GetRange(stationID, from, to)
}
