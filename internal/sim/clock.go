package sim

import (
	"context"
	"log"
	"math"
	"math/rand"
	"sync"
	"time"

	"valley-transit/internal/transit"
)

// DelaySource decides whether a vehicle reports a delayed status on a
// given tick. The default is stochastic; tests inject a fixed source
// to force either branch.
type DelaySource interface {
	Delayed(probability float64) bool
}

type randDelaySource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func (r *randDelaySource) Delayed(probability float64) bool {
	if probability <= 0 {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Float64() < probability
}

// NewRandDelaySource returns a DelaySource backed by its own seeded
// RNG, safe for concurrent use by a single clock.
func NewRandDelaySource() DelaySource {
	return &randDelaySource{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// Observer receives the fresh vehicle snapshot after every tick. The
// slice is rebuilt wholesale each tick and never mutated afterwards,
// so observers may retain it.
type Observer interface {
	VehiclesUpdated(vehicles []transit.Vehicle)
}

// Clock drives the vehicle simulation. Each vehicle advances through
// its path on an independent cycle sharing one tick counter:
//
//	progress = (tick mod cycleTicks) / cycleTicks
//	progress = (progress * phaseMultiplier) mod 1
//
// Start and Stop are idempotent; stopping releases the ticker.
type Clock struct {
	interval time.Duration
	routes   []transit.RouteConfig
	delays   DelaySource
	metrics  Metrics

	mu        sync.Mutex
	ticks     uint64
	snapshot  []transit.Vehicle
	observers []Observer
	cancel    context.CancelFunc
	done      chan struct{}
}

// Metrics is the subset of the collector the clock reports to.
type Metrics interface {
	TickObserve(d time.Duration)
	TicksInc()
	SetActiveVehicles(n int)
}

func NewClock(routes []transit.RouteConfig, interval time.Duration, delays DelaySource, m Metrics) *Clock {
	if delays == nil {
		delays = NewRandDelaySource()
	}
	return &Clock{
		interval: interval,
		routes:   routes,
		delays:   delays,
		metrics:  m,
	}
}

// Subscribe registers an observer for future snapshots. Must be
// called before Start.
func (c *Clock) Subscribe(o Observer) {
	c.mu.Lock()
	c.observers = append(c.observers, o)
	c.mu.Unlock()
}

// Start launches the tick loop. Calling Start on a running clock is a
// no-op.
func (c *Clock) Start(ctx context.Context) {
	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	done := make(chan struct{})
	c.done = done
	c.mu.Unlock()

	log.Printf("simulation clock started: %d vehicles, tick %s", len(c.routes), c.interval)
	go func() {
		defer close(done)
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				c.advance()
			}
		}
	}()
}

// Stop halts the tick loop and waits for it to exit. Safe to call
// multiple times and before Start.
func (c *Clock) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	done := c.done
	c.cancel = nil
	c.done = nil
	c.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	log.Printf("simulation clock stopped")
}

// Snapshot returns a copy of the latest published vehicle list.
func (c *Clock) Snapshot() []transit.Vehicle {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]transit.Vehicle, len(c.snapshot))
	copy(out, c.snapshot)
	return out
}

// advance runs one tick: bump the counter, rebuild every vehicle, and
// hand the new snapshot to observers.
func (c *Clock) advance() {
	start := time.Now()

	c.mu.Lock()
	c.ticks++
	tick := c.ticks
	observers := c.observers
	c.mu.Unlock()

	vehicles := make([]transit.Vehicle, 0, len(c.routes))
	for _, rc := range c.routes {
		vehicles = append(vehicles, c.buildVehicle(rc, tick))
	}

	c.mu.Lock()
	c.snapshot = vehicles
	c.mu.Unlock()

	for _, o := range observers {
		o.VehiclesUpdated(vehicles)
	}
	if c.metrics != nil {
		c.metrics.TicksInc()
		c.metrics.SetActiveVehicles(len(vehicles))
		c.metrics.TickObserve(time.Since(start))
	}
}

func (c *Clock) buildVehicle(rc transit.RouteConfig, tick uint64) transit.Vehicle {
	progress := progressAt(tick, rc.CycleTicks, rc.PhaseMultiplier)
	status := transit.StatusOnTime
	if c.delays.Delayed(rc.DelayProbability) {
		status = transit.StatusDelayed
	}
	return transit.Vehicle{
		ID:       rc.VehicleID,
		Kind:     rc.Kind,
		Route:    rc.RouteName,
		Position: transit.Interpolate(rc.Path, progress),
		Heading:  transit.Heading(rc.Path, progress),
		Status:   status,
		NextStop: rc.NextStop,
		Color:    rc.Color,
	}
}

// progressAt maps the shared tick counter onto one vehicle's loop
// fraction in [0,1).
func progressAt(tick uint64, cycleTicks int, phaseMultiplier float64) float64 {
	if cycleTicks <= 0 {
		return 0
	}
	progress := float64(tick%uint64(cycleTicks)) / float64(cycleTicks)
	if phaseMultiplier > 0 && phaseMultiplier != 1 {
		progress = math.Mod(progress*phaseMultiplier, 1)
	}
	return progress
}
