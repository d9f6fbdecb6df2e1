package mqtt

import (
	"context"
	"log/slog"
	"strings"

	"github.com/i474232898/station-aggregator/internal/weather"
)

// Reporter accepts decoded readings.
type Reporter interface {
	ReportBatch(ctx context.Context, readings []weather.Reading) (int, error)
}

// Handler turns MQTT payloads into readings for a Reporter.
type Handler struct {
	reporter Reporter
	logger   *slog.Logger
}

func NewHandler(reporter Reporter, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{reporter: reporter, logger: logger}
}

// HandleMessage decodes payload and reports its readings. Undecodable
// payloads and rejected readings are logged and dropped.
func (h *Handler) HandleMessage(ctx context.Context, topic string, payload []byte) {
	h.logger.Debug("received mqtt message", "topic", topic, "size", len(payload))

	readings, err := weather.DecodeReadings(payload)
	if err != nil {
		h.logger.Warn("failed to parse readings message",
			"topic", topic,
			"error", err,
			"payload", string(payload),
		)
		return
	}

	if stationID := StationFromTopic(topic); stationID != "" {
		for i := range readings {
			if readings[i].StationID == "" {
				readings[i].StationID = stationID
			}
		}
	}

	applied, err := h.reporter.ReportBatch(ctx, readings)
	if err != nil {
		h.logger.Warn("readings rejected",
			"topic", topic,
			"count", len(readings),
			"applied", applied,
			"error", err,
		)
		return
	}
	h.logger.Debug("processed readings message", "topic", topic, "count", len(readings), "applied", applied)
}

// StationFromTopic returns the segment following "stations" in topic, e.g.
// "alpha" for "stations/alpha/readings".
func StationFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	for i := 0; i < len(parts)-1; i++ {
		if parts[i] == "stations" {
			return parts[i+1]
		}
	}
	return ""
}
