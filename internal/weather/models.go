package weather

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	// MaxSensors is the number of temperature/humidity sensor slots per station (0..9).
	MaxSensors = 10
	// MainSensor is the primary outdoor temperature/humidity sensor.
	MainSensor = 1
	// InteriorSensor is the indoor temperature/humidity sensor.
	InteriorSensor = 0
)

// SensorRole classifies a temperature/humidity sensor slot.
type SensorRole int

const (
	RoleAuxiliary SensorRole = iota
	RoleMain
	RoleInterior
)

// RoleOf returns the role of sensor slot s.
func RoleOf(s int) SensorRole {
	switch s {
	case MainSensor:
		return RoleMain
	case InteriorSensor:
		return RoleInterior
	default:
		return RoleAuxiliary
	}
}

func (r SensorRole) String() string {
	switch r {
	case RoleMain:
		return "main"
	case RoleInterior:
		return "interior"
	default:
		return "auxiliary"
	}
}

// TemperatureKey returns the flat sample key for sensor s: temp, tempint or temp<s>.
func TemperatureKey(s int) string {
	return sensorKey("temp", s)
}

// HumidityKey returns the flat sample key for sensor s: hum, humint or hum<s>.
func HumidityKey(s int) string {
	return sensorKey("hum", s)
}

func sensorKey(prefix string, s int) string {
	switch RoleOf(s) {
	case RoleMain:
		return prefix
	case RoleInterior:
		return prefix + "int"
	default:
		return fmt.Sprintf("%s%d", prefix, s)
	}
}

// ValidSensor reports whether s is an accepted sensor slot.
func ValidSensor(s int) bool {
	return s >= 0 && s < MaxSensors
}

// WindVector is one wind reading kept for the composite direction.
// Direction is nil when the station did not report one.
type WindVector struct {
	Speed     float64
	Direction *float64
}

// Metric names a sample field whose absence is worth a warning.
type Metric string

const (
	MetricMainTemperature Metric = "temp"
	MetricMainHumidity    Metric = "hum"
	MetricWind            Metric = "wind"
	MetricRain            Metric = "rain"
	MetricPressure        Metric = "pressure"
)

// FlushContext travels with a flushed sample to the sink.
type FlushContext struct {
	ID        uuid.UUID `json:"id"`
	StationID string    `json:"stationId"`
	FlushedAt time.Time `json:"flushedAt"` // always UTC
}

// StoredSample is a sample as returned by a SampleReader.
type StoredSample struct {
	ID        uuid.UUID `json:"id"`
	StationID string    `json:"stationId"`
	FlushedAt time.Time `json:"flushedAt"`
	Sample    Sample    `json:"sample"`
}
