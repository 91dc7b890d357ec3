// Package syncloop drives playback from a host tick: it advances a playback
// clock, presents video frames once they are due, and forwards audio frames to
// the audio queue as soon as they arrive.
package syncloop

import (
	"fmt"
	"runtime"
	"time"

	"github.com/user/replayclipper/pkg/media"
	"github.com/user/replayclipper/pkg/ports"
)

// Source is the consumer side of a streaming engine.
type Source interface {
	NextFrame() media.Frame
	IsOpen() bool
	Seek(ts time.Duration) error
}

// AudioSink accepts decoded audio for the output device.
type AudioSink interface {
	EnqueueOnce(samples []byte)
	ClearQueue()
}

// Options configures a Loop.
type Options struct {
	// MaxStepsPerTick bounds how many frames one Tick may consume.
	// 1 handles a single frame per tick.
	MaxStepsPerTick int
}

// DefaultOptions returns Options with default values.
func DefaultOptions() Options {
	return Options{MaxStepsPerTick: 32}
}

// Stats counts what the loop has done since Start.
type Stats struct {
	Presented   int
	AudioFrames int
	Scrubs      int
	Underruns   int // ticks that found the source momentarily empty
}

// Loop is the per-tick playback driver. It is not safe for concurrent use.
type Loop struct {
	src       Source
	audio     AudioSink
	presenter ports.Presenter
	opts      Options
	logger    ports.Logger

	elapsed  time.Duration
	current  media.Frame
	finished bool
	stats    Stats
}

// New creates a Loop.
func New(src Source, audio AudioSink, presenter ports.Presenter, opts Options, logger ports.Logger) *Loop {
	if opts.MaxStepsPerTick < 1 {
		opts.MaxStepsPerTick = 1
	}
	return &Loop{
		src:       src,
		audio:     audio,
		presenter: presenter,
		opts:      opts,
		logger:    logger,
	}
}

// Start resets the clock and takes the first frame of a freshly opened source.
func (l *Loop) Start() {
	l.elapsed = 0
	l.finished = false
	l.stats = Stats{}
	l.current = l.src.NextFrame()
}

// Tick advances the clock by dt and consumes every frame that is due.
func (l *Loop) Tick(dt time.Duration) error {
	l.elapsed += dt

	for step := 0; step < l.opts.MaxStepsPerTick; step++ {
		switch l.current.Kind() {
		case media.KindVideo:
			v, _ := l.current.Video()
			if l.elapsed < v.Timestamp {
				return nil
			}
			if err := l.presenter.Present(v); err != nil {
				return fmt.Errorf("present frame at %s: %w", v.Timestamp, err)
			}
			l.stats.Presented++
			l.current = l.src.NextFrame()

		case media.KindAudio:
			a, _ := l.current.Audio()
			l.audio.EnqueueOnce(a.Samples)
			l.stats.AudioFrames++
			l.current = l.src.NextFrame()

		default:
			// A source that is no longer open has flushed every frame
			// into the pool, so an empty read after that is the end.
			open := l.src.IsOpen()
			l.current = l.src.NextFrame()
			if l.current.IsValid() {
				continue
			}
			if !open {
				if !l.finished {
					l.logger.Debug("Playback finished at %s", l.elapsed)
				}
				l.finished = true
			} else {
				l.stats.Underruns++
			}
			return nil
		}
	}
	return nil
}

// Scrub seeks the source to ts, skips to the first video frame and restarts
// the clock from its timestamp. Buffered audio is dropped.
func (l *Loop) Scrub(ts time.Duration) error {
	if err := l.src.Seek(ts); err != nil {
		l.current = media.Frame{}
		return fmt.Errorf("scrub to %s: %w", ts, err)
	}

	for {
		open := l.src.IsOpen()
		f := l.src.NextFrame()
		if f.IsVideo() {
			l.current = f
			l.elapsed = f.Timestamp()
			break
		}
		if !f.IsValid() {
			if !open {
				l.current = media.Frame{}
				l.elapsed = ts
				break
			}
			runtime.Gosched()
		}
	}

	l.audio.ClearQueue()
	l.finished = false
	l.stats.Scrubs++
	return nil
}

// Elapsed returns the playback clock.
func (l *Loop) Elapsed() time.Duration {
	return l.elapsed
}

// Finished reports whether the source has been played to the end.
func (l *Loop) Finished() bool {
	return l.finished
}

// Stats returns playback counters.
func (l *Loop) Stats() Stats {
	return l.stats
}
