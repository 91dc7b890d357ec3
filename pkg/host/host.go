// Package host runs an App on a fixed-rate tick loop.
package host

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/user/replayclipper/pkg/ports"
)

// App is driven by the host loop.
type App interface {
	// OnStart is called once before the first tick.
	OnStart(ctx context.Context) error

	// OnUpdate is called every tick. Returning false stops the loop.
	OnUpdate(ctx context.Context, tick Tick) (bool, error)

	// OnShutdown is called once after the loop ends, even when OnStart failed.
	OnShutdown() error
}

// Tick is passed to every OnUpdate.
type Tick struct {
	// Delta is the wall time since the previous tick.
	Delta time.Duration
	// Metrics is the host's running counters after this tick was counted.
	Metrics Metrics
}

// Metrics holds tick counters for one Run.
type Metrics struct {
	FrameCount uint64
	// Framerate is ticks per second measured over the last full second.
	Framerate float64
	Uptime    time.Duration

	windowStart  time.Time
	windowFrames int
}

func (m *Metrics) observe(now time.Time, dt time.Duration) {
	m.FrameCount++
	m.Uptime += dt
	if m.windowStart.IsZero() {
		m.windowStart = now
		return
	}
	m.windowFrames++
	if span := now.Sub(m.windowStart); span >= time.Second {
		m.Framerate = float64(m.windowFrames) / span.Seconds()
		m.windowStart = now
		m.windowFrames = 0
	}
}

// Options configures a Host.
type Options struct {
	// TickRate is the number of ticks per second.
	TickRate int
}

// DefaultOptions returns Options with default values.
func DefaultOptions() Options {
	return Options{TickRate: 60}
}

// Host owns the tick loop and its metrics.
type Host struct {
	opts    Options
	logger  ports.Logger
	metrics Metrics
}

// New creates a Host.
func New(opts Options, logger ports.Logger) *Host {
	if opts.TickRate <= 0 {
		opts.TickRate = DefaultOptions().TickRate
	}
	return &Host{opts: opts, logger: logger}
}

// Metrics returns the counters of the current or last Run.
func (h *Host) Metrics() Metrics {
	return h.metrics
}

// Run starts app and ticks it until it asks to stop, returns an error, or
// ctx is cancelled. Cancellation is a normal stop and returns nil.
func (h *Host) Run(ctx context.Context, app App) (err error) {
	h.metrics = Metrics{}

	defer func() {
		if serr := app.OnShutdown(); serr != nil {
			err = errors.Join(err, fmt.Errorf("shutdown: %w", serr))
		}
		h.logger.Debug("Host stopped after %d ticks", h.metrics.FrameCount)
	}()

	if err := app.OnStart(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	interval := time.Second / time.Duration(h.opts.TickRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	h.logger.Debug("Host ticking every %s", interval)
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			dt := now.Sub(last)
			last = now
			h.metrics.observe(now, dt)

			more, err := app.OnUpdate(ctx, Tick{Delta: dt, Metrics: h.metrics})
			if err != nil {
				return fmt.Errorf("update: %w", err)
			}
			if !more {
				return nil
			}
		}
	}
}
