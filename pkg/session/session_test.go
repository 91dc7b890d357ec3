package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/user/replayclipper/pkg/adapters/logger"
	"github.com/user/replayclipper/pkg/adapters/nulldevice"
	"github.com/user/replayclipper/pkg/engine"
	"github.com/user/replayclipper/pkg/host"
	"github.com/user/replayclipper/pkg/mocks"
)

const clipPath = "clips/test.mp4"

func newSession(config Config, clip mocks.Clip) (*Session, *mocks.AudioDevice, *mocks.Presenter) {
	device := &mocks.AudioDevice{}
	presenter := &mocks.Presenter{}
	if config.Path == "" {
		config.Path = clip.Path
	}
	s := New(config, mocks.NewDecoder(clip), device, presenter, logger.NewNoop())
	return s, device, presenter
}

// drive ticks the session with a fixed delta until it stops or maxTicks pass.
func drive(t *testing.T, s *Session, dt time.Duration, maxTicks int) int {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < maxTicks; i++ {
		more, err := s.OnUpdate(ctx, host.Tick{Delta: dt})
		if err != nil {
			t.Fatalf("OnUpdate failed at tick %d: %v", i, err)
		}
		if !more {
			return i + 1
		}
		time.Sleep(100 * time.Microsecond)
	}
	t.Fatalf("session still running after %d ticks", maxTicks)
	return maxTicks
}

func TestSession_PlaysToEnd(t *testing.T) {
	clip := mocks.DefaultClip(clipPath)
	s, device, presenter := newSession(DefaultConfig(), clip)

	if err := s.OnStart(context.Background()); err != nil {
		t.Fatalf("OnStart failed: %v", err)
	}
	drive(t, s, 40*time.Millisecond, 5000)
	if err := s.OnShutdown(); err != nil {
		t.Fatalf("OnShutdown failed: %v", err)
	}

	if presenter.Count() != clip.Frames {
		t.Errorf("expected %d presented frames, got %d", clip.Frames, presenter.Count())
	}
	ch, rate := device.Format()
	if ch != 2 || rate != 48000 {
		t.Errorf("expected device opened at 2ch 48000 Hz, got %dch %d Hz", ch, rate)
	}
	opens, starts, _, closes := device.Calls()
	if opens != 1 || starts != 1 || closes != 1 {
		t.Errorf("expected one open/start/close, got %d/%d/%d", opens, starts, closes)
	}

	r := s.Result()
	if !r.Completed {
		t.Error("expected a completed session")
	}
	if r.Presented != clip.Frames {
		t.Errorf("expected %d presented in result, got %d", clip.Frames, r.Presented)
	}
	if r.AudioFrames != clip.AudioFrames() {
		t.Errorf("expected %d audio frames, got %d", clip.AudioFrames(), r.AudioFrames)
	}
	if r.Restarts != 0 || r.Scrubs != 0 {
		t.Errorf("unexpected restarts/scrubs: %d/%d", r.Restarts, r.Scrubs)
	}
}

func TestSession_StartAt(t *testing.T) {
	clip := mocks.DefaultClip(clipPath)
	config := DefaultConfig()
	config.StartAt = time.Second
	s, _, presenter := newSession(config, clip)

	if err := s.OnStart(context.Background()); err != nil {
		t.Fatalf("OnStart failed: %v", err)
	}
	defer s.OnShutdown()
	drive(t, s, 40*time.Millisecond, 5000)

	ts := presenter.Timestamps()
	if len(ts) == 0 {
		t.Fatal("expected presented frames")
	}
	if ts[0] != time.Second {
		t.Errorf("expected first frame at 1s, got %v", ts[0])
	}
	if len(ts) != clip.Frames/2 {
		t.Errorf("expected %d frames after the midpoint, got %d", clip.Frames/2, len(ts))
	}
	if s.Result().Scrubs != 1 {
		t.Errorf("expected one scrub, got %d", s.Result().Scrubs)
	}
}

func TestSession_MaxDuration(t *testing.T) {
	clip := mocks.DefaultClip(clipPath)
	config := DefaultConfig()
	config.MaxDuration = 400 * time.Millisecond
	s, _, presenter := newSession(config, clip)

	if err := s.OnStart(context.Background()); err != nil {
		t.Fatalf("OnStart failed: %v", err)
	}
	defer s.OnShutdown()
	drive(t, s, 40*time.Millisecond, 5000)

	if presenter.Count() > 11 {
		t.Errorf("expected at most 11 frames within 400ms, got %d", presenter.Count())
	}
	if !s.Result().Completed {
		t.Error("reaching the limit counts as completed")
	}
}

func TestSession_LoopRestarts(t *testing.T) {
	clip := mocks.DefaultClip(clipPath)
	clip.Frames = 10
	config := DefaultConfig()
	config.Loop = true
	s, _, presenter := newSession(config, clip)

	ctx := context.Background()
	if err := s.OnStart(ctx); err != nil {
		t.Fatalf("OnStart failed: %v", err)
	}
	defer s.OnShutdown()

	for i := 0; i < 20000 && s.Result().Restarts < 2; i++ {
		more, err := s.OnUpdate(ctx, host.Tick{Delta: 40 * time.Millisecond})
		if err != nil {
			t.Fatalf("OnUpdate failed: %v", err)
		}
		if !more {
			t.Fatal("looping session must not stop")
		}
		time.Sleep(100 * time.Microsecond)
	}

	if s.Result().Restarts < 2 {
		t.Fatalf("expected two restarts, got %d", s.Result().Restarts)
	}
	ts := presenter.Timestamps()
	zeros := 0
	for _, v := range ts {
		if v == 0 {
			zeros++
		}
	}
	if zeros < 2 {
		t.Errorf("expected the first frame to be shown on every pass, got %d times", zeros)
	}
	if s.Result().Scrubs != 0 {
		t.Errorf("restarts must not count as scrubs, got %d", s.Result().Scrubs)
	}
}

func TestSession_VideoOnly(t *testing.T) {
	clip := mocks.DefaultClip(clipPath)
	clip.Channels = 0
	s, device, presenter := newSession(DefaultConfig(), clip)

	if err := s.OnStart(context.Background()); err != nil {
		t.Fatalf("OnStart failed: %v", err)
	}
	drive(t, s, 40*time.Millisecond, 5000)
	s.OnShutdown()

	if opens, _, _, _ := device.Calls(); opens != 0 {
		t.Errorf("expected the audio device to stay closed, got %d opens", opens)
	}
	if presenter.Count() != clip.Frames {
		t.Errorf("expected %d frames, got %d", clip.Frames, presenter.Count())
	}
}

func TestSession_OpenFailure(t *testing.T) {
	clip := mocks.DefaultClip(clipPath)
	config := DefaultConfig()
	config.Path = "clips/missing.mp4"
	s, _, _ := newSession(config, clip)

	err := s.OnStart(context.Background())
	if !errors.Is(err, engine.ErrOpenFailed) {
		t.Errorf("expected ErrOpenFailed, got %v", err)
	}
	if err := s.OnShutdown(); err != nil {
		t.Errorf("OnShutdown after failed start: %v", err)
	}
}

func TestSession_NoPath(t *testing.T) {
	s := New(DefaultConfig(), mocks.NewDecoder(mocks.DefaultClip(clipPath)), &mocks.AudioDevice{}, &mocks.Presenter{}, logger.NewNoop())
	if err := s.OnStart(context.Background()); !errors.Is(err, ErrNoPath) {
		t.Errorf("expected ErrNoPath, got %v", err)
	}
	s.OnShutdown()
}

func TestSession_AudioOpenFailure(t *testing.T) {
	clip := mocks.DefaultClip(clipPath)
	device := &mocks.AudioDevice{
		OpenFunc: func(channels, sampleRate int) error { return errors.New("no device") },
	}
	s := New(Config{Path: clipPath, PoolSize: 16, Volume: 0.15, MaxStepsPerTick: 32},
		mocks.NewDecoder(clip), device, &mocks.Presenter{}, logger.NewNoop())

	if err := s.OnStart(context.Background()); err == nil {
		t.Fatal("expected an error when the audio device cannot open")
	}
	if err := s.OnShutdown(); err != nil {
		t.Errorf("OnShutdown failed: %v", err)
	}
}

func TestSession_UnderHost(t *testing.T) {
	clip := mocks.DefaultClip(clipPath)
	clip.Frames = 10
	presenter := &mocks.Presenter{}
	s := New(Config{Path: clipPath, PoolSize: 8, Volume: 0.15, MaxStepsPerTick: 32},
		mocks.NewDecoder(clip), nulldevice.New(256), presenter, logger.NewNoop())

	h := host.New(host.Options{TickRate: 250}, logger.NewNoop())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := h.Run(ctx, s); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if presenter.Count() != clip.Frames {
		t.Errorf("expected %d frames, got %d", clip.Frames, presenter.Count())
	}
	r := s.Result()
	if !r.Completed {
		t.Error("expected playback to complete before the timeout")
	}
	if r.Metrics.FrameCount == 0 {
		t.Error("expected host metrics in the result")
	}
}
