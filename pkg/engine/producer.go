package engine

import (
	"context"
	"errors"
	"io"

	"github.com/user/replayclipper/pkg/media"
	"github.com/user/replayclipper/pkg/ports"
)

// produce is the producer goroutine. It sleeps until signalled, then tops
// the pool up to capacity.
func (e *Engine) produce(ctx context.Context) {
	defer close(e.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.wake:
		}
		e.fill()
	}
}

func (e *Engine) fill() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.alive || !e.open.Load() {
		return
	}

	if e.pending.IsValid() {
		e.enqueue(e.pending)
		e.pending = media.Frame{}
	}
	if e.eof.Load() {
		return
	}

	want := e.pool.ActualMaxSize() - e.pool.CurrentSize()
	failures := 0
	for added := 0; added < want; {
		raw, err := e.decoder.NextCodedFrame(ports.StreamBoth)
		if errors.Is(err, io.EOF) {
			e.eof.Store(true)
			e.logger.Debug("End of stream")
			return
		}
		if err == nil {
			var frame media.Frame
			if frame, err = e.converter.Convert(raw); err == nil {
				e.enqueue(frame)
				added++
				failures = 0
				continue
			}
		}

		failures++
		e.logger.Warn("Failed to decode frame: %s", err)
		if failures >= maxDecodeFailures {
			e.logger.Error("Giving up after %d consecutive decode failures", failures)
			e.eof.Store(true)
			return
		}
	}
}

// enqueue stores a frame the capacity check already made room for.
func (e *Engine) enqueue(f media.Frame) {
	if !e.pool.Enqueue(f) {
		panic("engine: frame pool rejected a frame after the capacity check")
	}
}
