// Package session plays one media file by wiring the streaming engine,
// the audio queue and the sync loop into a host.App.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ideamans/go-l10n"

	"github.com/user/replayclipper/pkg/audioqueue"
	"github.com/user/replayclipper/pkg/convert"
	"github.com/user/replayclipper/pkg/engine"
	"github.com/user/replayclipper/pkg/host"
	"github.com/user/replayclipper/pkg/ports"
	"github.com/user/replayclipper/pkg/syncloop"
)

// ErrNoPath is returned by OnStart when Config.Path is empty.
var ErrNoPath = errors.New("session: no media path")

// Config contains all configuration for a playback session.
type Config struct {
	// Input
	Path string

	// StartAt scrubs to this position before the first tick.
	StartAt time.Duration
	// MaxDuration stops playback after this much media time. 0 plays to the end.
	MaxDuration time.Duration
	// Loop restarts from the beginning when the end is reached.
	Loop bool

	// Engine
	PoolSize int

	// Output
	Width           int
	Height          int
	Volume          float32
	MaxStepsPerTick int
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		PoolSize:        engine.DefaultOptions().PoolSize,
		Volume:          audioqueue.DefaultVolume,
		MaxStepsPerTick: syncloop.DefaultOptions().MaxStepsPerTick,
	}
}

// durationAware is implemented by presenters that draw playback progress.
type durationAware interface {
	SetDuration(d time.Duration)
}

// Result contains the outcome of a session for summary generation.
type Result struct {
	Presented   int
	AudioFrames int
	Scrubs      int
	Restarts    int
	Underruns   uint64
	Position    time.Duration
	WallTime    time.Duration
	Completed   bool
	Metrics     host.Metrics
}

// Session implements host.App for a single file.
type Session struct {
	config    Config
	decoder   ports.Decoder
	device    ports.AudioDevice
	presenter ports.Presenter
	logger    ports.Logger

	engine *engine.Engine
	queue  *audioqueue.Queue
	loop   *syncloop.Loop

	started   time.Time
	restarts  int
	completed bool
	metrics   host.Metrics
}

// New creates a Session. The decoder, device and presenter are owned by
// the session until OnShutdown returns.
func New(config Config, decoder ports.Decoder, device ports.AudioDevice, presenter ports.Presenter, logger ports.Logger) *Session {
	return &Session{
		config:    config,
		decoder:   decoder,
		device:    device,
		presenter: presenter,
		logger:    logger,
	}
}

// OnStart opens the file, the audio stream and positions the loop.
func (s *Session) OnStart(ctx context.Context) error {
	if s.config.Path == "" {
		return ErrNoPath
	}
	s.started = time.Now()
	s.logger.Info(l10n.F("Opening %s", s.config.Path))

	converter := convert.New(convert.Options{Width: s.config.Width, Height: s.config.Height})
	e, err := engine.New(s.decoder, converter, engine.Options{PoolSize: s.config.PoolSize}, s.logger.WithComponent("engine"))
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}
	s.engine = e

	if err := e.OpenStream(s.config.Path); err != nil {
		s.logger.Error(l10n.F("Failed to open %s: %s", s.config.Path, err))
		return err
	}
	s.logger.Info(l10n.F("Duration %s, %d channels at %d Hz", e.Duration(), e.Channels(), e.SampleRate()))

	if d, ok := s.presenter.(durationAware); ok {
		d.SetDuration(e.Duration())
	}

	s.queue = audioqueue.New(s.device, s.logger.WithComponent("audio"))
	s.queue.SetVolumeScale(s.config.Volume)
	if e.Channels() > 0 {
		if err := s.openAudio(); err != nil {
			return err
		}
	} else {
		s.logger.Info(l10n.T("No audio stream, playing video only"))
	}

	s.loop = syncloop.New(e, s.queue, s.presenter,
		syncloop.Options{MaxStepsPerTick: s.config.MaxStepsPerTick}, s.logger.WithComponent("sync"))
	if s.config.StartAt > 0 {
		s.logger.Info(l10n.F("Seeking to %s", s.config.StartAt))
		if err := s.loop.Scrub(s.config.StartAt); err != nil {
			return err
		}
	} else {
		s.loop.Start()
	}

	s.logger.Info(l10n.T("Playback started"))
	return nil
}

func (s *Session) openAudio() error {
	if err := s.queue.OpenStream(s.engine.Channels(), s.engine.SampleRate()); err != nil {
		s.logger.Error(l10n.F("Failed to open audio output: %s", err))
		return err
	}
	if err := s.queue.Play(); err != nil {
		s.logger.Error(l10n.F("Failed to start audio output: %s", err))
		return err
	}
	return nil
}

// OnUpdate advances playback by one host tick.
func (s *Session) OnUpdate(ctx context.Context, tick host.Tick) (bool, error) {
	s.metrics = tick.Metrics

	if s.queue.Faulted() {
		s.logger.Warn(l10n.T("Audio output faulted, reopening"))
		if err := s.queue.CloseStream(); err != nil {
			s.logger.Warn(l10n.F("Failed to close audio output: %s", err))
		}
		if err := s.openAudio(); err != nil {
			return false, err
		}
	}

	if err := s.loop.Tick(tick.Delta); err != nil {
		return false, err
	}

	if s.config.MaxDuration > 0 && s.loop.Elapsed() >= s.config.StartAt+s.config.MaxDuration {
		s.logger.Info(l10n.F("Reached playback limit at %s", s.loop.Elapsed()))
		s.completed = true
		return false, nil
	}

	if !s.loop.Finished() {
		return true, nil
	}
	if !s.config.Loop {
		s.logger.Info(l10n.T("Playback finished"))
		s.completed = true
		return false, nil
	}

	s.restarts++
	s.logger.Info(l10n.F("Restarting playback (%d)", s.restarts))
	if err := s.loop.Scrub(0); err != nil {
		return false, err
	}
	return true, nil
}

// OnShutdown closes the audio stream and the engine.
func (s *Session) OnShutdown() error {
	var errs []error
	if s.queue != nil {
		if err := s.queue.CloseStream(); err != nil {
			errs = append(errs, fmt.Errorf("close audio: %w", err))
		}
	}
	if s.engine != nil {
		if err := s.engine.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close engine: %w", err))
		}
	}
	if !s.started.IsZero() {
		s.logger.Info(l10n.F("Session ended after %s", time.Since(s.started).Round(time.Millisecond)))
	}
	return errors.Join(errs...)
}

// Scrub moves playback to ts. It must be called from the goroutine running the host.
func (s *Session) Scrub(ts time.Duration) error {
	if s.loop == nil {
		return engine.ErrNotOpen
	}
	return s.loop.Scrub(ts)
}

// Result returns the session counters. Call after the host returns.
func (s *Session) Result() Result {
	r := Result{
		Restarts:  s.restarts,
		Completed: s.completed,
		Metrics:   s.metrics,
	}
	if !s.started.IsZero() {
		r.WallTime = time.Since(s.started)
	}
	if s.loop != nil {
		st := s.loop.Stats()
		r.Presented = st.Presented
		r.AudioFrames = st.AudioFrames
		r.Scrubs = st.Scrubs - s.restarts
		r.Position = s.loop.Elapsed()
	}
	if s.queue != nil {
		r.Underruns = s.queue.Underruns()
	}
	return r
}

// Ensure Session implements host.App
var _ host.App = (*Session)(nil)
