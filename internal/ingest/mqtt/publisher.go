package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/i474232898/station-aggregator/internal/weather"
)

// StationPlaceholder is replaced by the station id in publish topics.
const StationPlaceholder = "{station}"

// Publisher sends a payload to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, retained bool, payload []byte) error
}

// SampleSink publishes every flushed sample as a retained message, so a new
// subscriber immediately sees the latest period of each station.
type SampleSink struct {
	pub   Publisher
	topic string
}

// NewSampleSink publishes to topic, e.g. "stations/{station}/samples".
func NewSampleSink(pub Publisher, topic string) *SampleSink {
	return &SampleSink{pub: pub, topic: topic}
}

func (s *SampleSink) WriteSample(ctx context.Context, fc weather.FlushContext, sample weather.Sample) error {
	payload, err := json.Marshal(weather.StoredSample{
		ID:        fc.ID,
		StationID: fc.StationID,
		FlushedAt: fc.FlushedAt,
		Sample:    sample,
	})
	if err != nil {
		return fmt.Errorf("marshal sample: %w", err)
	}

	topic := strings.ReplaceAll(s.topic, StationPlaceholder, fc.StationID)
	if err := s.pub.Publish(ctx, topic, true, payload); err != nil {
		return fmt.Errorf("publish sample to %s: %w", topic, err)
	}
	return nil
}
