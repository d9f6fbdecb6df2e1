package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
)

// Flusher closes the open period of every station.
type Flusher interface {
	FlushAll(ctx context.Context) (int, error)
}

// Scheduler periodically flushes all stations.
type Scheduler struct {
	scheduler *gocron.Scheduler
	flusher   Flusher
	interval  time.Duration
	cron      string
	timeout   time.Duration
	logger    *slog.Logger
}

// New creates a new Scheduler. A non-empty cronExpr takes precedence over
// interval.
func New(flusher Flusher, interval time.Duration, cronExpr string, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		flusher:   flusher,
		interval:  interval,
		cron:      cronExpr,
		timeout:   30 * time.Second,
		logger:    logger,
	}
}

// Start schedules the flush job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	var job *gocron.Scheduler
	switch {
	case s.cron != "":
		job = s.scheduler.Cron(s.cron)
	case s.interval > 0:
		// Skip the immediate run so the first period has its full length.
		job = s.scheduler.Every(s.interval).WaitForSchedule()
	default:
		return errors.New("scheduler: no flush interval or cron expression")
	}

	if _, err := job.Do(s.run); err != nil {
		return err
	}
	s.scheduler.StartAsync()
	s.logger.Info("scheduler started", "interval", s.interval, "cron", s.cron)
	return nil
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	s.flush(ctx, "scheduled")
}

func (s *Scheduler) flush(ctx context.Context, reason string) {
	s.logger.Debug("scheduler: flushing stations", "reason", reason)
	n, err := s.flusher.FlushAll(ctx)
	if err != nil {
		s.logger.Error("scheduler: flush failed", "reason", reason, "written", n, "error", err)
		return
	}
	s.logger.Info("scheduler: flush completed", "reason", reason, "written", n)
}

// Stop stops the scheduler and runs a last flush so the open periods are not
// lost.
func (s *Scheduler) Stop(ctx context.Context) {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
	s.flush(ctx, "shutdown")
}
