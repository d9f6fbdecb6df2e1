package weather

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/station-aggregator/internal/common"
)

var t0 = time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)

func newTestAccumulator(t *testing.T) (*Accumulator, *clock.Mock) {
	t.Helper()
	mock := clock.NewMock()
	mock.Set(t0)
	return NewAccumulator(WithClock(mock)), mock
}

func TestAccumulator_TemperatureMean(t *testing.T) {
	acc, _ := newTestAccumulator(t)
	for _, v := range []float64{10, 12, 11, 13, 14} {
		require.True(t, acc.ReportTemperature(t0, v, MainSensor))
	}

	s := acc.Snapshot()
	require.NotNil(t, s.Temperature[MainSensor])
	assert.Equal(t, 12.0, *s.Temperature[MainSensor])
}

func TestAccumulator_MeanWithinRange(t *testing.T) {
	acc, _ := newTestAccumulator(t)
	values := []float64{1013.1, 1012.7, 1013.9, 1012.2}
	for _, v := range values {
		acc.ReportBarometerSeaLevel(t0, v)
	}

	s := acc.Snapshot()
	require.NotNil(t, s.Pressure)
	assert.GreaterOrEqual(t, *s.Pressure, 1012.2)
	assert.LessOrEqual(t, *s.Pressure, 1013.9)
	assert.Equal(t, 1013.0, *s.Pressure)
}

func TestAccumulator_SensorRolesAndDrop(t *testing.T) {
	acc, _ := newTestAccumulator(t)
	acc.ReportTemperature(t0, 21.0, InteriorSensor)
	acc.ReportHumidity(t0, 40.0, InteriorSensor)
	acc.ReportTemperature(t0, 5.5, 3)
	acc.ReportHumidity(t0, 88.0, 9)

	assert.False(t, acc.ReportTemperature(t0, 99, MaxSensors))
	assert.False(t, acc.ReportTemperature(t0, 99, -1))
	assert.False(t, acc.ReportHumidity(t0, 99, 42))

	s := acc.Snapshot()
	assert.Equal(t, 21.0, *s.Temperature[InteriorSensor])
	assert.Equal(t, 40.0, *s.Humidity[InteriorSensor])
	assert.Equal(t, 5.5, *s.Temperature[3])
	assert.Equal(t, 88.0, *s.Humidity[9])
	assert.Nil(t, s.Temperature[MainSensor])
	assert.Nil(t, s.Humidity[MainSensor])
	assert.Nil(t, s.Temperature[2])
}

func TestAccumulator_DroppedReadingDoesNotStartPeriod(t *testing.T) {
	acc, _ := newTestAccumulator(t)
	acc.ReportTemperature(t0, 10, 11)
	assert.Equal(t, StateEmpty, acc.State())

	_, ok := acc.Flush()
	assert.False(t, ok)
}

func TestAccumulator_MissingMainSensorWarns(t *testing.T) {
	acc, _ := newTestAccumulator(t)
	acc.ReportHumidity(t0, 60, MainSensor)
	acc.ReportBarometerSeaLevel(t0, 1010)

	s := acc.Snapshot()
	assert.Contains(t, s.Missing, MetricMainTemperature)
	assert.NotContains(t, s.Missing, MetricMainHumidity)
	assert.NotContains(t, s.Missing, MetricPressure)
	assert.Nil(t, s.Temperature[MainSensor])
	require.NotNil(t, s.Humidity[MainSensor])
	require.NotNil(t, s.Pressure)
	assert.Nil(t, s.DewPoint)
}

func TestAccumulator_Wind(t *testing.T) {
	acc, _ := newTestAccumulator(t)
	acc.ReportWind(t0, 2, common.Ptr(90.0), 4, common.Ptr(80.0))
	acc.ReportWind(t0, 6, common.Ptr(180.0), 9, common.Ptr(170.0))
	acc.ReportWind(t0, 4, nil, 7, common.Ptr(200.0))

	s := acc.Snapshot()
	assert.Equal(t, 4.0, *s.Wind)
	assert.Equal(t, 161.6, *s.WindDir)
	assert.Equal(t, 9.0, *s.WindGust)
	assert.Equal(t, 170.0, *s.WindGustDir)
}

func TestAccumulator_GustNeverBelowMean(t *testing.T) {
	acc, _ := newTestAccumulator(t)
	acc.ReportWind(t0, 5, common.Ptr(0.0), 3, common.Ptr(10.0))
	acc.ReportWind(t0, 5, common.Ptr(0.0), 0, nil)

	s := acc.Snapshot()
	assert.Equal(t, 5.0, *s.Wind)
	assert.Equal(t, 5.0, *s.WindGust)
	assert.Equal(t, 10.0, *s.WindGustDir)
	assert.GreaterOrEqual(t, *s.WindGust, *s.Wind)
}

func TestAccumulator_WindDirectionWrapsAtNorth(t *testing.T) {
	acc, _ := newTestAccumulator(t)
	acc.ReportWind(t0, 5, common.Ptr(350.0), 5, nil)
	acc.ReportWind(t0, 5, common.Ptr(10.0), 5, nil)

	s := acc.Snapshot()
	assert.Equal(t, 0.0, *s.WindDir)
	assert.Nil(t, s.WindGustDir)
}

func TestAccumulator_MissingWind(t *testing.T) {
	acc, _ := newTestAccumulator(t)
	acc.ReportUV(t0, 3)

	s := acc.Snapshot()
	assert.Contains(t, s.Missing, MetricWind)
	assert.Nil(t, s.Wind)
	assert.Nil(t, s.WindDir)
	assert.Nil(t, s.WindGust)
	assert.Nil(t, s.WindGustDir)
}

func TestAccumulator_RainDelta(t *testing.T) {
	acc, _ := newTestAccumulator(t)
	totals := []float64{10.0, 12.5, 15.0}
	rates := []float64{0.5, 1.2, 0.3}
	for i := range totals {
		acc.ReportRain(t0, totals[i], rates[i])
	}

	s, ok := acc.Flush()
	require.True(t, ok)
	assert.Equal(t, 5.0, *s.Rain)
	assert.Equal(t, 1.2, *s.RainRate)
}

func TestAccumulator_RainNoIncreaseZeroesRate(t *testing.T) {
	acc, _ := newTestAccumulator(t)
	acc.ReportRain(t0, 10.0, 0.8)
	acc.ReportRain(t0, 10.0, 0.4)

	s, ok := acc.Flush()
	require.True(t, ok)
	assert.Equal(t, 0.0, *s.Rain)
	assert.Equal(t, 0.0, *s.RainRate)
}

func TestAccumulator_RainCounterReset(t *testing.T) {
	acc, _ := newTestAccumulator(t)
	acc.ReportRain(t0, 42.0, 0)
	acc.ReportRain(t0, 0.2, 1.0)

	s := acc.Snapshot()
	assert.Equal(t, 0.0, *s.Rain)
	assert.Equal(t, 0.0, *s.RainRate)
}

func TestAccumulator_RainCarriesOverPeriods(t *testing.T) {
	acc, _ := newTestAccumulator(t)
	acc.ReportRain(t0, 10.0, 0.2)
	acc.ReportRain(t0, 15.0, 0.6)
	first, ok := acc.Flush()
	require.True(t, ok)
	assert.Equal(t, 5.0, *first.Rain)

	acc.ReportRain(t0.Add(time.Minute), 15.0, 0)
	second, ok := acc.Flush()
	require.True(t, ok)
	assert.Equal(t, 0.0, *second.Rain)
	assert.Equal(t, 0.0, *second.RainRate)

	// The seed comes from the last counter, so growth before the first
	// report of the period is still counted.
	acc.ReportRain(t0.Add(2*time.Minute), 16.5, 0.9)
	third, ok := acc.Flush()
	require.True(t, ok)
	assert.Equal(t, 1.5, *third.Rain)
	assert.Equal(t, 0.9, *third.RainRate)
}

func TestAccumulator_RainStaysKnownInLaterPeriods(t *testing.T) {
	acc, _ := newTestAccumulator(t)
	acc.ReportRain(t0, 3.0, 0)
	_, ok := acc.Flush()
	require.True(t, ok)

	acc.ReportBarometerSeaLevel(t0, 1000)
	s, ok := acc.Flush()
	require.True(t, ok)
	assert.NotContains(t, s.Missing, MetricRain)
	assert.Equal(t, 0.0, *s.Rain)
}

func TestAccumulator_MissingRainAndPressure(t *testing.T) {
	acc, _ := newTestAccumulator(t)
	acc.ReportSolarRad(t0, 300)

	s := acc.Snapshot()
	assert.Nil(t, s.Rain)
	assert.Nil(t, s.RainRate)
	assert.Nil(t, s.Pressure)
	assert.Contains(t, s.Missing, MetricRain)
	assert.Contains(t, s.Missing, MetricPressure)
	assert.Equal(t, 300.0, *s.SolarRad)
}

func TestAccumulator_DewPoint(t *testing.T) {
	acc, _ := newTestAccumulator(t)
	acc.ReportTemperature(t0, 20, MainSensor)
	acc.ReportHumidity(t0, 50, MainSensor)

	s := acc.Snapshot()
	require.NotNil(t, s.DewPoint)
	assert.Equal(t, 9.3, *s.DewPoint)
}

func TestAccumulator_DewPointSkippedOnZeroTemperature(t *testing.T) {
	acc, _ := newTestAccumulator(t)
	acc.ReportTemperature(t0, 0, MainSensor)
	acc.ReportHumidity(t0, 50, MainSensor)

	s := acc.Snapshot()
	assert.Nil(t, s.DewPoint)
}

func TestAccumulator_DewPointModel(t *testing.T) {
	mock := clock.NewMock()
	acc := NewAccumulator(WithClock(mock), WithDewPointModel(ModelBolton))
	acc.ReportTemperature(t0, 25, MainSensor)
	acc.ReportHumidity(t0, 80, MainSensor)

	s := acc.Snapshot()
	require.NotNil(t, s.DewPoint)
	assert.Equal(t, 21.3, *s.DewPoint)
}

func TestAccumulator_UVTruncatedMax(t *testing.T) {
	acc, _ := newTestAccumulator(t)
	acc.ReportUV(t0, 2.4)
	acc.ReportUV(t0, 5.9)
	acc.ReportUV(t0, 4.0)

	s := acc.Snapshot()
	require.NotNil(t, s.UVIndex)
	assert.Equal(t, 5, *s.UVIndex)
}

func TestAccumulator_UVZeroIsSet(t *testing.T) {
	acc, _ := newTestAccumulator(t)
	acc.ReportUV(t0, 0)

	s := acc.Snapshot()
	require.NotNil(t, s.UVIndex)
	assert.Equal(t, 0, *s.UVIndex)
}

func TestAccumulator_LocalTime(t *testing.T) {
	acc, mock := newTestAccumulator(t)
	acc.ReportSolarRad(t0.Add(-time.Hour), 10)
	assert.Equal(t, t0.Add(-time.Hour), acc.Snapshot().LocalTime)

	mock.Add(5 * time.Minute)
	acc.ReportSolarRad(time.Time{}, 20)
	assert.Equal(t, t0.Add(5*time.Minute), acc.Snapshot().LocalTime)
}

func TestAccumulator_FlushEmpty(t *testing.T) {
	acc, _ := newTestAccumulator(t)
	s, ok := acc.Flush()
	assert.False(t, ok)
	assert.Equal(t, Sample{}, s)
	assert.Equal(t, StateEmpty, acc.State())
}

func TestAccumulator_FlushResetsPeriod(t *testing.T) {
	acc, _ := newTestAccumulator(t)
	acc.ReportTemperature(t0, 10, MainSensor)
	acc.ReportWind(t0, 3, common.Ptr(45.0), 8, common.Ptr(50.0))
	assert.Equal(t, StateAccumulating, acc.State())

	_, ok := acc.Flush()
	require.True(t, ok)
	assert.Equal(t, StateEmpty, acc.State())

	_, ok = acc.Flush()
	assert.False(t, ok)

	acc.ReportWind(t0, 1, common.Ptr(45.0), 2, common.Ptr(90.0))
	s, ok := acc.Flush()
	require.True(t, ok)
	assert.Nil(t, s.Temperature[MainSensor])
	assert.Equal(t, 2.0, *s.WindGust)
	assert.Equal(t, 90.0, *s.WindGustDir)
}

func TestAccumulator_SnapshotIsIdempotent(t *testing.T) {
	acc, _ := newTestAccumulator(t)
	acc.ReportTemperature(t0, 18.2, MainSensor)
	acc.ReportHumidity(t0, 71, MainSensor)
	acc.ReportRain(t0, 1, 0.1)
	acc.ReportWind(t0, 2.5, common.Ptr(200.0), 6, common.Ptr(210.0))

	first := acc.Snapshot()
	second := acc.Snapshot()
	assert.Equal(t, first, second)
	assert.Equal(t, StateAccumulating, acc.State())
}

func TestAccumulator_WindKeepsReportedDirections(t *testing.T) {
	acc, _ := newTestAccumulator(t)

	dir := 90.0
	acc.ReportWind(t0, 5, &dir, 9, &dir)
	dir = 270
	acc.ReportWind(t0, 5, &dir, 1, &dir)
	dir = 0

	s := acc.Snapshot()
	require.NotNil(t, s.WindGustDir)
	assert.Equal(t, 9.0, *s.WindGust)
	assert.Equal(t, 90.0, *s.WindGustDir)
	// 5@90 and 5@270 cancel out
	assert.Nil(t, s.WindDir)
}

func TestAccumulator_PreviewDoesNotWarn(t *testing.T) {
	var buf bytes.Buffer
	acc := NewAccumulator(WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))
	acc.ReportUV(t0, 2)

	preview := acc.Preview()
	assert.Equal(t, []Metric{MetricMainTemperature, MetricMainHumidity, MetricWind, MetricRain, MetricPressure}, preview.Missing)
	assert.NotContains(t, buf.String(), "level=WARN")

	s, ok := acc.Flush()
	require.True(t, ok)
	assert.Equal(t, preview, s)
	assert.Contains(t, buf.String(), "missing pressure data")
}
