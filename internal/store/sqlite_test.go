package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/station-aggregator/internal/common"
	"github.com/i474232898/station-aggregator/internal/weather"
)

func openTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "data", "samples.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	s := openTestSQLite(t)
	ctx := context.Background()

	sample := weather.Sample{
		Wind:      common.Ptr(3.2),
		WindDir:   common.Ptr(161.6),
		Rain:      common.Ptr(0.0),
		RainRate:  common.Ptr(0.0),
		UVIndex:   common.Ptr(5),
		LocalTime: t0,
	}
	sample.Temperature[weather.MainSensor] = common.Ptr(12.0)
	sample.Humidity[weather.InteriorSensor] = common.Ptr(41.5)
	sample.Temperature[7] = common.Ptr(-4.2)

	fc := flushCtx("alpha", t0.Add(time.Second))
	require.NoError(t, s.WriteSample(ctx, fc, sample))

	got, err := s.GetLatest("alpha")
	require.NoError(t, err)
	assert.Equal(t, fc.ID, got.ID)
	assert.Equal(t, "alpha", got.StationID)
	assert.True(t, fc.FlushedAt.Equal(got.FlushedAt))
	assert.True(t, t0.Equal(got.Sample.LocalTime))

	assert.Equal(t, 12.0, *got.Sample.Temperature[weather.MainSensor])
	assert.Equal(t, 41.5, *got.Sample.Humidity[weather.InteriorSensor])
	assert.Equal(t, -4.2, *got.Sample.Temperature[7])
	assert.Nil(t, got.Sample.Temperature[2])
	assert.Nil(t, got.Sample.Pressure)
	assert.Nil(t, got.Sample.DewPoint)
	assert.Equal(t, 161.6, *got.Sample.WindDir)
	assert.Equal(t, 0.0, *got.Sample.Rain)
	assert.Equal(t, 5, *got.Sample.UVIndex)
}

func TestSQLiteStore_LatestAndRange(t *testing.T) {
	s := openTestSQLite(t)
	ctx := context.Background()

	// sub-second timestamps must still order correctly
	times := []time.Time{
		t0,
		t0.Add(500 * time.Millisecond),
		t0.Add(10 * time.Minute),
	}
	for i, at := range times {
		require.NoError(t, s.WriteSample(ctx, flushCtx("alpha", at), sampleAt(at, 1000+float64(i))))
	}
	require.NoError(t, s.WriteSample(ctx, flushCtx("beta", t0), sampleAt(t0, 900)))

	latest, err := s.GetLatest("alpha")
	require.NoError(t, err)
	assert.Equal(t, 1002.0, *latest.Sample.Pressure)

	got, err := s.GetRange("alpha", t0, t0.Add(time.Second))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 1000.0, *got[0].Sample.Pressure)
	assert.Equal(t, 1001.0, *got[1].Sample.Pressure)

	_, err = s.GetRange("alpha", t0.Add(time.Hour), t0.Add(2*time.Hour))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetLatest("gamma")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_MigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "samples.db")

	first, err := OpenSQLite(path, nil)
	require.NoError(t, err)
	require.NoError(t, first.WriteSample(context.Background(), flushCtx("alpha", t0), sampleAt(t0, 1000)))
	require.NoError(t, first.Close())

	second, err := OpenSQLite(path, nil)
	require.NoError(t, err)
	defer second.Close()

	latest, err := second.GetLatest("alpha")
	require.NoError(t, err)
	assert.Equal(t, 1000.0, *latest.Sample.Pressure)

	var n int
	require.NoError(t, second.db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&n))
	assert.Equal(t, 1, n)
}
