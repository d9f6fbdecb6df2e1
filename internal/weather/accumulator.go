package weather

import (
	"log/slog"
	"math"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/i474232898/station-aggregator/internal/common"
)

// State of the current period.
type State int

const (
	// StateEmpty means no reading was accepted since the last flush.
	StateEmpty State = iota
	// StateAccumulating means at least one reading was accepted.
	StateAccumulating
)

func (s State) String() string {
	if s == StateAccumulating {
		return "accumulating"
	}
	return "empty"
}

// Accumulator incrementally aggregates readings for one station over a period
// and produces a Sample on Flush.
//
// An Accumulator is not safe for concurrent use. Station serialises access.
type Accumulator struct {
	clock    clock.Clock
	logger   *slog.Logger
	dewModel SensorModel

	temperature [MaxSensors][]float64
	humidity    [MaxSensors][]float64

	windSpeeds  []float64
	windVectors []WindVector
	gustMax     float64
	gustDir     *float64

	// rainLast survives newPeriod and seeds the next rainFirst.
	rainFirst   *float64
	rainLast    *float64
	rainRateMax float64

	pressure []float64
	uvMax    *float64
	solarRad []float64

	lastTimestamp time.Time
}

// AccumulatorOption configures an Accumulator.
type AccumulatorOption func(*Accumulator)

// WithClock sets the clock used when a report carries no timestamp.
func WithClock(c clock.Clock) AccumulatorOption {
	return func(a *Accumulator) { a.clock = c }
}

// WithLogger sets the logger for missing-data warnings.
func WithLogger(l *slog.Logger) AccumulatorOption {
	return func(a *Accumulator) { a.logger = l }
}

// WithDewPointModel sets the psychrometric model used for dew point.
func WithDewPointModel(m SensorModel) AccumulatorOption {
	return func(a *Accumulator) { a.dewModel = m }
}

// NewAccumulator returns an accumulator with an empty period.
func NewAccumulator(opts ...AccumulatorOption) *Accumulator {
	a := &Accumulator{
		clock:    clock.New(),
		logger:   slog.Default(),
		dewModel: ModelDavisVP,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.newPeriod()
	return a
}

func (a *Accumulator) newPeriod() {
	for s := 0; s < MaxSensors; s++ {
		a.temperature[s] = nil
		a.humidity[s] = nil
	}
	a.windSpeeds = nil
	a.windVectors = nil
	a.gustMax = 0
	a.gustDir = nil
	if a.rainLast != nil {
		first := *a.rainLast
		a.rainFirst = &first
	}
	a.rainRateMax = 0
	a.pressure = nil
	a.uvMax = nil
	a.solarRad = nil
	a.lastTimestamp = time.Time{}
	a.logger.Debug("new period")
}

// State returns whether the current period has data.
func (a *Accumulator) State() State {
	if a.lastTimestamp.IsZero() {
		return StateEmpty
	}
	return StateAccumulating
}

func (a *Accumulator) touch(at time.Time) {
	if at.IsZero() {
		at = a.clock.Now()
	}
	a.lastTimestamp = at
}

// ReportTemperature records a temperature for sensor. Readings for sensors
// outside [0, MaxSensors) are dropped; the return value tells which happened.
func (a *Accumulator) ReportTemperature(at time.Time, value float64, sensor int) bool {
	if !ValidSensor(sensor) {
		return false
	}
	a.temperature[sensor] = append(a.temperature[sensor], value)
	a.touch(at)
	return true
}

// ReportHumidity records a relative humidity for sensor, see ReportTemperature.
func (a *Accumulator) ReportHumidity(at time.Time, value float64, sensor int) bool {
	if !ValidSensor(sensor) {
		return false
	}
	a.humidity[sensor] = append(a.humidity[sensor], value)
	a.touch(at)
	return true
}

// ReportWind records an average speed with its direction and a gust.
// The gust direction is only kept together with the gust that set the maximum.
func (a *Accumulator) ReportWind(at time.Time, avgSpeed float64, dir *float64, gustSpeed float64, gustDir *float64) {
	a.windVectors = append(a.windVectors, WindVector{Speed: avgSpeed, Direction: copyPtr(dir)})
	a.windSpeeds = append(a.windSpeeds, avgSpeed)
	if a.gustMax < gustSpeed {
		a.gustMax = gustSpeed
		a.gustDir = copyPtr(gustDir)
	}
	a.touch(at)
}

// ReportBarometerSeaLevel records a pressure already reduced to sea level.
func (a *Accumulator) ReportBarometerSeaLevel(at time.Time, pressure float64) {
	a.pressure = append(a.pressure, pressure)
	a.touch(at)
}

// ReportRain records the cumulative rain counter and the instantaneous rate.
func (a *Accumulator) ReportRain(at time.Time, total, rate float64) {
	if a.rainFirst == nil {
		first := total
		a.rainFirst = &first
	}
	last := total
	a.rainLast = &last
	if a.rainRateMax < rate {
		a.rainRateMax = rate
	}
	a.touch(at)
}

// ReportUV records a UV index.
func (a *Accumulator) ReportUV(at time.Time, index float64) {
	if a.uvMax == nil || *a.uvMax < index {
		v := index
		a.uvMax = &v
	}
	a.touch(at)
}

// ReportSolarRad records a solar radiation value.
func (a *Accumulator) ReportSolarRad(at time.Time, value float64) {
	a.solarRad = append(a.solarRad, value)
	a.touch(at)
}

// Snapshot computes the sample for the current period without resetting it
// and logs a warning for every missing metric.
func (a *Accumulator) Snapshot() Sample {
	return a.snapshot(true)
}

// Preview is Snapshot without the missing-metric warnings, for callers that
// poll an open period.
func (a *Accumulator) Preview() Sample {
	return a.snapshot(false)
}

func (a *Accumulator) snapshot(warn bool) Sample {
	var sample Sample
	missing := func(m Metric, msg string) {
		sample.Missing = append(sample.Missing, m)
		if warn {
			a.logger.Warn(msg)
		}
	}

	for sensor := 0; sensor < MaxSensors; sensor++ {
		if m, ok := common.Mean(a.temperature[sensor]); ok {
			sample.Temperature[sensor] = round1(m)
		} else if sensor == MainSensor {
			missing(MetricMainTemperature, "missing temperature data from main sensor")
		}
		if m, ok := common.Mean(a.humidity[sensor]); ok {
			sample.Humidity[sensor] = round1(m)
		} else if sensor == MainSensor {
			missing(MetricMainHumidity, "missing humidity data from main sensor")
		}
	}

	if m, ok := common.Mean(a.windSpeeds); ok {
		wind := common.Round(m, 1)
		sample.Wind = &wind
		if dir, ok := PredominantWindDirection(a.windVectors); ok {
			sample.WindDir = roundDirection(dir)
		}
		if a.gustDir != nil {
			sample.WindGustDir = common.Ptr(*a.gustDir)
		}
		// gust and average may come from different sampling windows
		sample.WindGust = round1(math.Max(a.gustMax, wind))
	} else {
		missing(MetricWind, "missing wind data")
	}

	if a.rainFirst != nil {
		if *a.rainLast > *a.rainFirst {
			sample.Rain = round1(*a.rainLast - *a.rainFirst)
			sample.RainRate = round1(a.rainRateMax)
		} else {
			sample.Rain = common.Ptr(0.0)
			sample.RainRate = common.Ptr(0.0)
		}
	} else {
		missing(MetricRain, "missing rain data")
	}

	if m, ok := common.Mean(a.pressure); ok {
		sample.Pressure = round1(m)
	} else {
		missing(MetricPressure, "missing pressure data")
	}

	temp, hum := sample.Temperature[MainSensor], sample.Humidity[MainSensor]
	if temp != nil && hum != nil && *temp != 0 && *hum != 0 {
		dp, err := DewPoint(*temp, *hum, a.dewModel)
		if err != nil {
			if warn {
				a.logger.Warn("dew point not computed", "error", err)
			}
		} else {
			sample.DewPoint = round1(dp)
		}
	}

	if a.uvMax != nil {
		sample.UVIndex = common.Ptr(int(*a.uvMax))
	}

	if m, ok := common.Mean(a.solarRad); ok {
		sample.SolarRad = round1(m)
	}

	sample.LocalTime = a.lastTimestamp
	a.logger.Debug("snapshot computed", "localtime", sample.LocalTime, "missing", sample.Missing)
	return sample
}

// Flush returns the sample for the current period and starts a new one.
// An empty period yields no sample and is left as is.
func (a *Accumulator) Flush() (Sample, bool) {
	if a.State() == StateEmpty {
		return Sample{}, false
	}
	sample := a.Snapshot()
	a.newPeriod()
	return sample, true
}

func copyPtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	return common.Ptr(*v)
}

func round1(v float64) *float64 {
	r := common.Round(v, 1)
	return &r
}

func roundDirection(deg float64) *float64 {
	r := common.Round(deg, 1)
	if r >= 360 {
		r -= 360
	}
	return &r
}
