package store

import (
	"context"

	"go.uber.org/multierr"

	"github.com/i474232898/station-aggregator/internal/weather"
)

// Fanout writes every sample to each of its sinks in order. A failing sink
// does not stop the others; their errors are combined.
type Fanout []weather.Sink

func (f Fanout) WriteSample(ctx context.Context, fc weather.FlushContext, sample weather.Sample) error {
	var errs error
	for _, sink := range f {
		errs = multierr.Append(errs, sink.WriteSample(ctx, fc, sample))
	}
	return errs
}
