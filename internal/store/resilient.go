package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/station-aggregator/internal/weather"
)

// BackoffConfig controls exponential backoff behaviour.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultBackoff is used for sinks that talk to disk or the network.
var DefaultBackoff = BackoffConfig{
	MaxRetries:      3,
	InitialInterval: 500 * time.Millisecond,
	MaxInterval:     5 * time.Second,
}

var (
	errCircuitOpen   = errors.New("circuit breaker open")
	errInvalidConfig = errors.New("invalid backoff configuration")
)

// Resilient wraps a sink with retries, exponential backoff and a circuit
// breaker. Once the breaker opens, writes fail fast until it half-opens again.
type Resilient struct {
	next    weather.Sink
	backoff BackoffConfig
	circuit *gobreaker.CircuitBreaker
	logger  *slog.Logger
}

// NewResilient wraps next. name identifies the breaker in logs.
func NewResilient(name string, next weather.Sink, backoff BackoffConfig, logger *slog.Logger) *Resilient {
	if logger == nil {
		logger = slog.Default()
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("sink circuit breaker state changed", "sink", name, "from", from.String(), "to", to.String())
		},
	})
	return &Resilient{
		next:    next,
		backoff: backoff,
		circuit: cb,
		logger:  logger,
	}
}

// WriteSample forwards to the wrapped sink, retrying failed writes.
func (r *Resilient) WriteSample(ctx context.Context, fc weather.FlushContext, sample weather.Sample) error {
	if r.backoff.MaxRetries < 0 || r.backoff.InitialInterval <= 0 {
		return errInvalidConfig
	}

	var attempt int
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		_, err := r.circuit.Execute(func() (interface{}, error) {
			return nil, r.next.WriteSample(ctx, fc, sample)
		})
		if err == nil {
			return nil
		}

		// If circuit is open, propagate immediately.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("%w: %v", errCircuitOpen, err)
		}

		if attempt >= r.backoff.MaxRetries {
			return err
		}

		delay := r.backoff.InitialInterval * time.Duration(math.Pow(2, float64(attempt)))
		if delay > r.backoff.MaxInterval && r.backoff.MaxInterval > 0 {
			delay = r.backoff.MaxInterval
		}
		r.logger.Debug("sink write failed, retrying",
			"sink", r.circuit.Name(),
			"sample_id", fc.ID,
			"attempt", attempt+1,
			"delay", delay,
			"error", err,
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		attempt++
	}
}
