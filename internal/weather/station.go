package weather

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrUnknownStation = errors.New("unknown station")
	ErrStationStopped = errors.New("station stopped")
)

// Station owns the accumulator of one weather station. All reports and
// flushes run on the station goroutine, one at a time.
type Station struct {
	id  string
	acc *Accumulator

	ops      chan func(*Accumulator)
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func newStation(id string, acc *Accumulator) *Station {
	s := &Station{
		id:   id,
		acc:  acc,
		ops:  make(chan func(*Accumulator)),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	go s.run()
	return s
}

// ID returns the station id.
func (s *Station) ID() string {
	return s.id
}

func (s *Station) run() {
	defer close(s.done)
	for {
		select {
		case op := <-s.ops:
			op(s.acc)
		case <-s.quit:
			return
		}
	}
}

// do runs fn on the station goroutine. Once fn is handed over it always
// completes, so a flushed sample is never lost to a cancelled context.
func (s *Station) do(ctx context.Context, fn func(*Accumulator)) error {
	finished := make(chan struct{})
	op := func(a *Accumulator) {
		defer close(finished)
		fn(a)
	}
	select {
	case s.ops <- op:
	case <-s.quit:
		return fmt.Errorf("%w: %s", ErrStationStopped, s.id)
	case <-ctx.Done():
		return ctx.Err()
	}
	<-finished
	return nil
}

// Report applies r to the station accumulator. The bool is false when the
// reading was dropped for an out of range sensor.
func (s *Station) Report(ctx context.Context, r Reading) (bool, error) {
	var (
		accepted bool
		applyErr error
	)
	if err := s.do(ctx, func(a *Accumulator) {
		accepted, applyErr = r.Apply(a)
	}); err != nil {
		return false, err
	}
	return accepted, applyErr
}

// Flush closes the current period. ok is false when the period was empty.
func (s *Station) Flush(ctx context.Context) (sample Sample, ok bool, err error) {
	err = s.do(ctx, func(a *Accumulator) {
		sample, ok = a.Flush()
	})
	return sample, ok, err
}

// Snapshot previews the current period. ok is false when the period is empty.
func (s *Station) Snapshot(ctx context.Context) (sample Sample, ok bool, err error) {
	err = s.do(ctx, func(a *Accumulator) {
		if a.State() == StateEmpty {
			return
		}
		sample, ok = a.Preview(), true
	})
	return sample, ok, err
}

// Close stops the station goroutine and waits for it to exit. Idempotent.
func (s *Station) Close() {
	s.stopOnce.Do(func() { close(s.quit) })
	<-s.done
}

// Hub keeps one Station per station id, creating them on first use.
type Hub struct {
	mu       sync.RWMutex
	stations map[string]*Station
	closed   bool

	// allowed restricts station ids when non-empty.
	allowed map[string]struct{}

	newAccumulator func() *Accumulator
}

// NewHub creates a hub. newAccumulator builds the accumulator for each new
// station. An empty allowed list accepts any station id.
func NewHub(allowed []string, newAccumulator func() *Accumulator) *Hub {
	h := &Hub{
		stations:       make(map[string]*Station),
		newAccumulator: newAccumulator,
	}
	if len(allowed) > 0 {
		h.allowed = make(map[string]struct{}, len(allowed))
		for _, id := range allowed {
			h.allowed[id] = struct{}{}
		}
	}
	if h.newAccumulator == nil {
		h.newAccumulator = func() *Accumulator { return NewAccumulator() }
	}
	return h
}

// Get returns the station for id without creating it.
func (h *Hub) Get(id string) (*Station, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return nil, ErrStationStopped
	}
	s, ok := h.stations[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStation, id)
	}
	return s, nil
}

// GetOrCreate returns the station for id, starting it if needed.
func (h *Hub) GetOrCreate(id string) (*Station, error) {
	if s, err := h.Get(id); err == nil {
		return s, nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrStationStopped
	}
	if s, ok := h.stations[id]; ok {
		return s, nil
	}
	if h.allowed != nil {
		if _, ok := h.allowed[id]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownStation, id)
		}
	}
	s := newStation(id, h.newAccumulator())
	h.stations[id] = s
	return s, nil
}

// IDs returns the ids of all started stations, sorted.
func (h *Hub) IDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.stations))
	for id := range h.stations {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close stops every station. Further lookups fail with ErrStationStopped.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	stations := h.stations
	h.stations = make(map[string]*Station)
	h.mu.Unlock()

	for _, s := range stations {
		s.Close()
	}
}
