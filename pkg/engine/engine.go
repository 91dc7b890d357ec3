// Package engine streams a media source through a background decode
// goroutine into a lock-free frame pool read by a single consumer.
//
// The consumer owns OpenStream, NextFrame, Seek and Close. They must be called
// from one goroutine at a time. The producer goroutine is the only writer to
// the pool. A mutex gates every decoder state transition so the producer
// never decodes against a decoder the consumer is reopening or seeking.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/user/replayclipper/pkg/convert"
	"github.com/user/replayclipper/pkg/framepool"
	"github.com/user/replayclipper/pkg/media"
	"github.com/user/replayclipper/pkg/ports"
)

var (
	// ErrOpenFailed is returned when the decoder cannot open a source.
	ErrOpenFailed = errors.New("engine: open failed")
	// ErrSeekFailed is returned when the decoder rejects a seek.
	// The pool is left empty and the read position is undefined.
	ErrSeekFailed = errors.New("engine: seek failed")
	// ErrNotOpen is returned when seeking without an open source.
	ErrNotOpen = errors.New("engine: no stream open")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("engine: closed")
)

// maxDecodeFailures ends the stream after this many consecutive frames
// fail to decode or convert.
const maxDecodeFailures = 16

// Options configures an Engine.
type Options struct {
	// PoolSize is the number of pool slots. One slot stays unused.
	PoolSize int
}

// DefaultOptions returns Options with default values.
func DefaultOptions() Options {
	return Options{PoolSize: 16}
}

// Engine owns a decoder, a converter and a frame pool, and runs the
// producer goroutine that keeps the pool full.
type Engine struct {
	decoder   ports.Decoder
	converter *convert.Converter
	pool      *framepool.Pool[media.Frame]
	logger    ports.Logger

	mu      sync.Mutex
	alive   bool
	pending media.Frame // first frame after a seek, enqueued by the producer

	open       atomic.Bool
	eof        atomic.Bool
	duration   atomic.Int64
	channels   atomic.Int32
	sampleRate atomic.Int32

	wake      chan struct{}
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// New creates an Engine and starts its producer goroutine.
func New(decoder ports.Decoder, converter *convert.Converter, opts Options, logger ports.Logger) (*Engine, error) {
	pool, err := framepool.New[media.Frame](opts.PoolSize)
	if err != nil {
		return nil, fmt.Errorf("create frame pool: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		decoder:   decoder,
		converter: converter,
		pool:      pool,
		logger:    logger,
		alive:     true,
		wake:      make(chan struct{}, 1),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	go e.produce(ctx)
	return e, nil
}

// OpenStream closes any open source and opens path. On success it returns
// once the first frame is available or the source turned out to be empty.
// On failure the engine is left closed with an empty pool.
func (e *Engine) OpenStream(path string) error {
	e.mu.Lock()
	if !e.alive {
		e.mu.Unlock()
		return ErrClosed
	}

	if e.open.Swap(false) {
		if err := e.decoder.Close(); err != nil {
			e.logger.Warn("Failed to close previous stream: %s", err)
		}
	}
	e.eof.Store(false)
	e.pool.Clear()
	e.pending = media.Frame{}
	e.storeMetadata(0, 0, 0)

	if err := e.decoder.Open(path); err != nil {
		// release whatever the decoder allocated before failing
		if cerr := e.decoder.Close(); cerr != nil {
			e.logger.Warn("Failed to release %s after open failure: %s", path, cerr)
		}
		e.mu.Unlock()
		return fmt.Errorf("%w: %s: %w", ErrOpenFailed, path, err)
	}
	e.storeMetadata(e.decoder.Duration(), e.decoder.Channels(), e.decoder.SampleRate())
	e.open.Store(true)
	e.mu.Unlock()

	e.logger.Debug("Opened %s: duration %s, %d channels, %d Hz",
		path, e.Duration(), e.Channels(), e.SampleRate())

	e.signal()
	e.awaitFrame()
	return nil
}

// NextFrame returns the next decoded frame, or an Empty frame when the pool
// is drained. It never blocks. Use IsOpen to tell a lagging producer from
// the end of the stream.
func (e *Engine) NextFrame() media.Frame {
	f, ok := e.pool.Dequeue()
	if ok {
		e.signal()
	}
	return f
}

// Seek drops every buffered frame and repositions the stream so the first
// video frame returned afterwards is the first one at or after ts. It
// returns once that frame is available or the stream has ended.
func (e *Engine) Seek(ts time.Duration) error {
	start := time.Now()

	e.mu.Lock()
	e.pool.Clear()
	e.pending = media.Frame{}
	if !e.alive {
		e.mu.Unlock()
		return ErrClosed
	}
	if !e.open.Load() {
		e.mu.Unlock()
		return ErrNotOpen
	}
	e.eof.Store(false)

	if err := e.decoder.SeekBackward(ts); err != nil {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s: %w", ErrSeekFailed, ts, err)
	}
	e.decoder.Flush()

	skipped := e.walkTo(ts)
	e.mu.Unlock()

	e.logger.Debug("Seek to %s skipped %d frames in %s", ts, skipped, time.Since(start).Round(time.Microsecond))

	e.signal()
	e.awaitFrame()
	return nil
}

// walkTo decodes video frames until one is at or after ts and parks it as
// the pending frame. It returns the number of frames discarded.
// The caller holds e.mu.
func (e *Engine) walkTo(ts time.Duration) int {
	skipped, failures := 0, 0
	for {
		raw, err := e.decoder.NextCodedFrame(ports.StreamVideo)
		if errors.Is(err, io.EOF) {
			e.eof.Store(true)
			return skipped
		}
		if err != nil {
			failures++
			e.logger.Warn("Failed to decode frame while seeking: %s", err)
			if failures >= maxDecodeFailures {
				e.eof.Store(true)
				return skipped
			}
			continue
		}
		if raw.Video == nil {
			continue
		}
		if raw.Video.Timestamp() < ts {
			skipped++
			continue
		}

		frame, err := e.converter.Convert(raw)
		if err != nil {
			e.logger.Warn("Failed to convert frame: %s", err)
			return skipped
		}
		e.pending = frame
		return skipped
	}
}

// IsOpen reports whether a source is open and the decoder has not yet
// reached the end of it. Frames may remain in the pool after IsOpen turns
// false.
func (e *Engine) IsOpen() bool {
	return e.open.Load() && !e.eof.Load()
}

// Duration returns the open source's duration, or 0.
func (e *Engine) Duration() time.Duration {
	return time.Duration(e.duration.Load())
}

// Channels returns the open source's audio channel count, or 0.
func (e *Engine) Channels() int {
	return int(e.channels.Load())
}

// SampleRate returns the open source's audio sample rate, or 0.
func (e *Engine) SampleRate() int {
	return int(e.sampleRate.Load())
}

// Buffered returns how many frames are waiting in the pool.
func (e *Engine) Buffered() int {
	return e.pool.CurrentSize()
}

// Capacity returns how many frames the pool can hold.
func (e *Engine) Capacity() int {
	return e.pool.ActualMaxSize()
}

// Close stops the producer goroutine, waits for it to exit and only then
// closes the decoder. It is safe to call more than once.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.mu.Lock()
		e.alive = false
		e.mu.Unlock()

		e.cancel()
		<-e.done

		e.pool.Clear()
		e.pending = media.Frame{}
		if e.open.Swap(false) {
			e.closeErr = e.decoder.Close()
		}
		e.storeMetadata(0, 0, 0)
	})
	return e.closeErr
}

func (e *Engine) storeMetadata(d time.Duration, channels, sampleRate int) {
	e.duration.Store(int64(d))
	e.channels.Store(int32(channels))
	e.sampleRate.Store(int32(sampleRate))
}

// signal wakes the producer without blocking. A wake that is already
// pending absorbs this one.
func (e *Engine) signal() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// awaitFrame yields until the pool holds a frame or nothing more will come.
func (e *Engine) awaitFrame() {
	for e.pool.CurrentSize() == 0 && e.IsOpen() {
		runtime.Gosched()
	}
}
