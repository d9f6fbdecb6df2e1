package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingFlusher struct {
	calls atomic.Int32
	err   error
}

func (f *countingFlusher) FlushAll(context.Context) (int, error) {
	f.calls.Add(1)
	return 1, f.err
}

func TestScheduler_FlushesOnInterval(t *testing.T) {
	f := &countingFlusher{}
	s := New(f, 20*time.Millisecond, "", nil)
	require.NoError(t, s.Start())

	assert.Eventually(t, func() bool { return f.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)

	s.Stop(context.Background())
	after := f.calls.Load()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, after, f.calls.Load())
}

func TestScheduler_StopRunsFinalFlush(t *testing.T) {
	f := &countingFlusher{err: errors.New("sink down")}
	s := New(f, time.Hour, "", nil)
	require.NoError(t, s.Start())

	// first run waits for the schedule
	assert.Equal(t, int32(0), f.calls.Load())

	s.Stop(context.Background())
	assert.Equal(t, int32(1), f.calls.Load())
}

func TestScheduler_Cron(t *testing.T) {
	f := &countingFlusher{}
	s := New(f, 0, "*/10 * * * *", nil)
	require.NoError(t, s.Start())
	s.Stop(context.Background())

	bad := New(f, 0, "not a cron", nil)
	assert.Error(t, bad.Start())
}

func TestScheduler_NothingToSchedule(t *testing.T) {
	s := New(&countingFlusher{}, 0, "", nil)
	assert.Error(t, s.Start())
}
