package weather

import (
	"context"
	"time"
)

// Sink receives flushed samples. Failure handling is the sink's business;
// the service does not buffer samples that could not be written.
type Sink interface {
	WriteSample(ctx context.Context, fc FlushContext, sample Sample) error
}

// SampleReader is the query side of a sample store.
type SampleReader interface {
	GetLatest(stationID string) (StoredSample, error)
	GetRange(stationID string, from, to time.Time) ([]StoredSample, error)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, fc FlushContext, sample Sample) error

func (f SinkFunc) WriteSample(ctx context.Context, fc FlushContext, sample Sample) error {
	return f(ctx, fc, sample)
}
