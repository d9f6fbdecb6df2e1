package weather

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Kind is the metric a reading carries.
type Kind string

const (
	KindTemperature Kind = "temperature"
	KindHumidity    Kind = "humidity"
	KindWind        Kind = "wind"
	KindPressure    Kind = "pressure"
	KindRain        Kind = "rain"
	KindUV          Kind = "uv"
	KindSolarRad    Kind = "solar_rad"
)

var (
	ErrInvalidReading = errors.New("invalid reading")
	ErrUnknownKind    = errors.New("unknown reading kind")
	ErrEmptyPayload   = errors.New("empty payload")
)

// Reading is a single sensor value as received from a station.
//
// Value holds the temperature, humidity, average wind speed, sea level
// pressure, cumulative rain counter, UV index or solar radiation depending on
// Kind. Wind readings also use Direction, Gust and GustDirection; rain
// readings use Rate. Sensor defaults to the main sensor.
type Reading struct {
	StationID     string    `json:"station_id" validate:"required,max=64"`
	Timestamp     time.Time `json:"timestamp"`
	Kind          Kind      `json:"kind" validate:"required,oneof=temperature humidity wind pressure rain uv solar_rad"`
	Sensor        *int      `json:"sensor,omitempty"`
	Value         float64   `json:"value"`
	Direction     *float64  `json:"direction,omitempty" validate:"omitempty,gte=0,lte=360"`
	Gust          *float64  `json:"gust,omitempty" validate:"omitempty,gte=0"`
	GustDirection *float64  `json:"gust_direction,omitempty" validate:"omitempty,gte=0,lte=360"`
	Rate          *float64  `json:"rate,omitempty" validate:"omitempty,gte=0"`
}

// SensorIndex returns the sensor slot, defaulting to the main sensor.
func (r Reading) SensorIndex() int {
	if r.Sensor == nil {
		return MainSensor
	}
	return *r.Sensor
}

// Apply reports the reading to a. It returns false when the accumulator
// dropped the reading (sensor slot out of range).
func (r Reading) Apply(a *Accumulator) (bool, error) {
	switch r.Kind {
	case KindTemperature:
		return a.ReportTemperature(r.Timestamp, r.Value, r.SensorIndex()), nil
	case KindHumidity:
		return a.ReportHumidity(r.Timestamp, r.Value, r.SensorIndex()), nil
	case KindWind:
		var gust float64
		if r.Gust != nil {
			gust = *r.Gust
		}
		a.ReportWind(r.Timestamp, r.Value, r.Direction, gust, r.GustDirection)
	case KindPressure:
		a.ReportBarometerSeaLevel(r.Timestamp, r.Value)
	case KindRain:
		var rate float64
		if r.Rate != nil {
			rate = *r.Rate
		}
		a.ReportRain(r.Timestamp, r.Value, rate)
	case KindUV:
		a.ReportUV(r.Timestamp, r.Value)
	case KindSolarRad:
		a.ReportSolarRad(r.Timestamp, r.Value)
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownKind, r.Kind)
	}
	return true, nil
}

// DecodeReadings accepts a single reading object or an array of them.
func DecodeReadings(payload []byte) ([]Reading, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, ErrEmptyPayload
	}

	if trimmed[0] == '[' {
		var readings []Reading
		if err := json.Unmarshal(trimmed, &readings); err != nil {
			return nil, fmt.Errorf("decode readings: %w", err)
		}
		if len(readings) == 0 {
			return nil, ErrEmptyPayload
		}
		return readings, nil
	}

	var r Reading
	if err := json.Unmarshal(trimmed, &r); err != nil {
		return nil, fmt.Errorf("decode reading: %w", err)
	}
	return []Reading{r}, nil
}
