package engine

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"math/rand"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/user/replayclipper/pkg/adapters/logger"
	"github.com/user/replayclipper/pkg/convert"
	"github.com/user/replayclipper/pkg/media"
	"github.com/user/replayclipper/pkg/mocks"
	"github.com/user/replayclipper/pkg/ports"
)

const clipPath = "clips/match.mp4"

func newTestEngine(t *testing.T, dec *mocks.Decoder, poolSize int) *Engine {
	t.Helper()
	e, err := New(dec, convert.New(convert.Options{}), Options{PoolSize: poolSize}, logger.NewNoop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

// videoIndex recovers the frame number a mock video frame was stamped with.
func videoIndex(clip mocks.Clip, v media.VideoFrame) int {
	return int(v.Timestamp * time.Duration(clip.FPS) / time.Second)
}

// drain reads frames until the stream has ended and the pool is empty.
func drain(e *Engine) []media.Frame {
	var frames []media.Frame
	for {
		open := e.IsOpen()
		f := e.NextFrame()
		if f.IsValid() {
			frames = append(frames, f)
			continue
		}
		if !open {
			return frames
		}
	}
}

func TestNew_InvalidPoolSize(t *testing.T) {
	_, err := New(mocks.NewDecoder(mocks.DefaultClip(clipPath)), convert.New(convert.Options{}), Options{PoolSize: 1}, logger.NewNoop())
	if err == nil {
		t.Fatal("expected error for pool size 1")
	}
}

func TestEngine_OpenStreamNonexistent(t *testing.T) {
	dec := mocks.NewDecoder(mocks.DefaultClip(clipPath))
	e := newTestEngine(t, dec, 8)

	err := e.OpenStream("does/not/exist.mp4")
	if !errors.Is(err, ErrOpenFailed) {
		t.Fatalf("expected ErrOpenFailed, got %v", err)
	}
	if e.IsOpen() {
		t.Error("expected IsOpen to be false")
	}
	if e.Buffered() != 0 {
		t.Errorf("expected empty pool, got %d", e.Buffered())
	}
	if f := e.NextFrame(); f.IsValid() {
		t.Errorf("expected Empty frame, got %s", f.Kind())
	}
	if e.Duration() != 0 || e.Channels() != 0 || e.SampleRate() != 0 {
		t.Error("expected zero metadata after failed open")
	}
}

func TestEngine_OpenStreamFirstFrameReady(t *testing.T) {
	clip := mocks.DefaultClip(clipPath)
	dec := mocks.NewDecoder(clip)
	dec.FrameDelay = time.Millisecond
	e := newTestEngine(t, dec, 8)

	if err := e.OpenStream(clipPath); err != nil {
		t.Fatalf("OpenStream failed: %v", err)
	}
	if !e.IsOpen() {
		t.Fatal("expected IsOpen to be true")
	}
	if f := e.NextFrame(); !f.IsValid() {
		t.Fatal("expected first NextFrame after open to be valid")
	}
	if e.Duration() != clip.Duration() {
		t.Errorf("expected duration %s, got %s", clip.Duration(), e.Duration())
	}
	if e.Channels() != 2 || e.SampleRate() != 48000 {
		t.Errorf("expected 2ch 48000Hz, got %dch %dHz", e.Channels(), e.SampleRate())
	}
}

func TestEngine_PlaysWholeClipInOrder(t *testing.T) {
	clip := mocks.DefaultClip(clipPath)
	dec := mocks.NewDecoder(clip)
	e := newTestEngine(t, dec, 6)

	if err := e.OpenStream(clipPath); err != nil {
		t.Fatalf("OpenStream failed: %v", err)
	}

	frames := drain(e)

	var videos, audios int
	lastVideo, lastAudio := time.Duration(-1), time.Duration(-1)
	for _, f := range frames {
		switch {
		case f.IsVideo():
			v, _ := f.Video()
			if v.Timestamp < lastVideo {
				t.Fatalf("video timestamp went backwards: %s after %s", v.Timestamp, lastVideo)
			}
			lastVideo = v.Timestamp
			if want := byte(videoIndex(clip, v)); v.Pixels[0] != want || v.Pixels[len(v.Pixels)-1] != want {
				t.Fatalf("frame at %s carries pixels of another frame", v.Timestamp)
			}
			videos++
		case f.IsAudio():
			a, _ := f.Audio()
			if a.Timestamp < lastAudio {
				t.Fatalf("audio timestamp went backwards: %s after %s", a.Timestamp, lastAudio)
			}
			lastAudio = a.Timestamp
			audios++
		}
	}

	if videos != clip.Frames {
		t.Errorf("expected %d video frames, got %d", clip.Frames, videos)
	}
	if audios != clip.AudioFrames() {
		t.Errorf("expected %d audio frames, got %d", clip.AudioFrames(), audios)
	}
	if e.IsOpen() {
		t.Error("expected IsOpen to be false at end of stream")
	}
}

func TestEngine_SeekLandsAtOrAfterTarget(t *testing.T) {
	clip := mocks.DefaultClip(clipPath)
	dec := mocks.NewDecoder(clip)
	e := newTestEngine(t, dec, 8)

	if err := e.OpenStream(clipPath); err != nil {
		t.Fatalf("OpenStream failed: %v", err)
	}

	targets := []time.Duration{
		1 * time.Second,
		250 * time.Millisecond,
		1500*time.Millisecond + time.Millisecond,
		0,
		1960 * time.Millisecond,
	}
	for _, target := range targets {
		if err := e.Seek(target); err != nil {
			t.Fatalf("Seek(%s) failed: %v", target, err)
		}

		var first *media.VideoFrame
		last := time.Duration(-1)
		for _, f := range drain(e) {
			v, ok := f.Video()
			if !ok {
				continue
			}
			if first == nil {
				first = &v
			}
			if v.Timestamp < last {
				t.Fatalf("Seek(%s): video timestamp went backwards", target)
			}
			last = v.Timestamp
		}

		if first == nil {
			t.Fatalf("Seek(%s): no video frame after seek", target)
		}
		if first.Timestamp < target {
			t.Errorf("Seek(%s): first video frame at %s", target, first.Timestamp)
		}
		if first.Timestamp-target >= time.Second/time.Duration(clip.FPS) {
			t.Errorf("Seek(%s): first video frame at %s skipped too far", target, first.Timestamp)
		}
	}

	stats := dec.Stats()
	if stats.Seeks != len(targets) || stats.Flushes != len(targets) {
		t.Errorf("expected %d seeks and flushes, got %d and %d", len(targets), stats.Seeks, stats.Flushes)
	}
}

func TestEngine_SeekFirstFrameIsVideo(t *testing.T) {
	clip := mocks.DefaultClip(clipPath)
	e := newTestEngine(t, mocks.NewDecoder(clip), 8)
	if err := e.OpenStream(clipPath); err != nil {
		t.Fatalf("OpenStream failed: %v", err)
	}

	if err := e.Seek(700 * time.Millisecond); err != nil {
		t.Fatalf("Seek failed: %v", err)
	}
	f := e.NextFrame()
	v, ok := f.Video()
	if !ok {
		t.Fatalf("expected video frame first, got %s", f.Kind())
	}
	if v.Timestamp != 720*time.Millisecond {
		t.Errorf("expected 720ms, got %s", v.Timestamp)
	}
}

func TestEngine_SeekFailure(t *testing.T) {
	dec := mocks.NewDecoder(mocks.DefaultClip(clipPath))
	e := newTestEngine(t, dec, 8)
	if err := e.OpenStream(clipPath); err != nil {
		t.Fatalf("OpenStream failed: %v", err)
	}

	dec.SeekFunc = func(ts time.Duration) error { return errors.New("device rejected seek") }

	err := e.Seek(time.Second)
	if !errors.Is(err, ErrSeekFailed) {
		t.Fatalf("expected ErrSeekFailed, got %v", err)
	}
	if e.Buffered() != 0 {
		t.Errorf("expected empty pool after failed seek, got %d", e.Buffered())
	}
}

func TestEngine_SeekNotOpen(t *testing.T) {
	e := newTestEngine(t, mocks.NewDecoder(mocks.DefaultClip(clipPath)), 8)

	if err := e.Seek(time.Second); !errors.Is(err, ErrNotOpen) {
		t.Errorf("expected ErrNotOpen, got %v", err)
	}
}

func TestEngine_SeekPastEnd(t *testing.T) {
	e := newTestEngine(t, mocks.NewDecoder(mocks.DefaultClip(clipPath)), 8)
	if err := e.OpenStream(clipPath); err != nil {
		t.Fatalf("OpenStream failed: %v", err)
	}

	if err := e.Seek(time.Minute); err != nil {
		t.Fatalf("Seek failed: %v", err)
	}
	if e.IsOpen() {
		t.Error("expected IsOpen to be false after seeking past the end")
	}
	for _, f := range drain(e) {
		if f.IsVideo() {
			t.Fatalf("unexpected video frame at %s", f.Timestamp())
		}
	}
}

func TestEngine_ReopenReplacesStream(t *testing.T) {
	clip := mocks.DefaultClip(clipPath)
	dec := mocks.NewDecoder(clip)
	e := newTestEngine(t, dec, 8)

	if err := e.OpenStream(clipPath); err != nil {
		t.Fatalf("OpenStream failed: %v", err)
	}
	e.NextFrame()
	e.NextFrame()

	if err := e.OpenStream(clipPath); err != nil {
		t.Fatalf("second OpenStream failed: %v", err)
	}
	f := e.NextFrame()
	if f.Timestamp() != 0 {
		t.Errorf("expected stream to restart at 0, got %s", f.Timestamp())
	}

	stats := dec.Stats()
	if stats.Opens != 2 || stats.Closes != 1 {
		t.Errorf("expected 2 opens and 1 close, got %d and %d", stats.Opens, stats.Closes)
	}
}

func TestEngine_CloseReleasesDecoderAfterProducer(t *testing.T) {
	dec := mocks.NewDecoder(mocks.DefaultClip(clipPath))
	dec.FrameDelay = 200 * time.Microsecond
	e, err := New(dec, convert.New(convert.Options{}), Options{PoolSize: 32}, logger.NewNoop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := e.OpenStream(clipPath); err != nil {
		t.Fatalf("OpenStream failed: %v", err)
	}
	e.NextFrame()

	if err := e.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}

	stats := dec.Stats()
	if stats.Closes != 1 {
		t.Errorf("expected decoder closed once, got %d", stats.Closes)
	}
	if stats.Misuse != 0 {
		t.Errorf("decoder used %d times after close", stats.Misuse)
	}
	if e.IsOpen() {
		t.Error("expected IsOpen to be false after Close")
	}
	if err := e.OpenStream(clipPath); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestEngine_ConcurrentSeekStress(t *testing.T) {
	clip := mocks.DefaultClip(clipPath)
	clip.Frames = 250
	dec := mocks.NewDecoder(clip)
	e := newTestEngine(t, dec, 5)

	if err := e.OpenStream(clipPath); err != nil {
		t.Fatalf("OpenStream failed: %v", err)
	}

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		target := time.Duration(rng.Int63n(int64(clip.Duration())))
		if err := e.Seek(target); err != nil {
			t.Fatalf("Seek(%s) failed: %v", target, err)
		}

		sawVideo := false
		for n := rng.Intn(12); n >= 0; n-- {
			if size := e.Buffered(); size < 0 || size > e.Capacity() {
				t.Fatalf("pool size %d outside [0, %d]", size, e.Capacity())
			}
			f := e.NextFrame()
			if v, ok := f.Video(); ok {
				if !sawVideo && v.Timestamp < target {
					t.Fatalf("first video frame after Seek(%s) at %s", target, v.Timestamp)
				}
				sawVideo = true
				want := byte(videoIndex(clip, v))
				for _, p := range v.Pixels {
					if p != want {
						t.Fatalf("frame at %s carries pixels of another frame", v.Timestamp)
					}
				}
			}
			if a, ok := f.Audio(); ok {
				first := binary.LittleEndian.Uint32(a.Samples)
				for k := 0; k < len(a.Samples); k += 4 {
					if binary.LittleEndian.Uint32(a.Samples[k:]) != first {
						t.Fatalf("audio frame at %s mixes samples of two frames (%v)",
							a.Timestamp, math.Float32frombits(first))
					}
				}
			}
		}
	}

	if err := e.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if m := dec.Stats().Misuse; m != 0 {
		t.Errorf("decoder used %d times after close", m)
	}
}

func TestEngine_OpenFailureLogsReleaseError(t *testing.T) {
	dec := mocks.NewDecoder(mocks.DefaultClip(clipPath))
	dec.CloseFunc = func() error { return errors.New("handle leaked") }

	var out bytes.Buffer
	e, err := New(dec, convert.New(convert.Options{}), Options{PoolSize: 4}, logger.NewWriter(ports.LevelWarn, &out, &out))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer e.Close()

	if err := e.OpenStream("does/not/exist.mp4"); !errors.Is(err, ErrOpenFailed) {
		t.Fatalf("expected ErrOpenFailed, got %v", err)
	}
	if !strings.Contains(out.String(), "handle leaked") {
		t.Errorf("expected the close error to be logged, got %q", out.String())
	}
}

// A stalled decoder is never timed out: the consumer sees Empty frames while
// the engine still reports the stream open.
func TestEngine_DecodeStallYieldsEmpty(t *testing.T) {
	const delivered = 3
	release := make(chan struct{})
	var calls atomic.Int32

	dec := mocks.NewDecoder(mocks.DefaultClip(clipPath))
	dec.NextFunc = func(ports.StreamFilter) (ports.RawFrame, error) {
		n := calls.Add(1)
		if n <= delivered {
			return ports.RawFrame{Video: &ports.RawVideo{
				Width:    2,
				Height:   2,
				Format:   ports.PixelFormatRGB24,
				Planes:   [][]byte{make([]byte, 12)},
				Strides:  []int{6},
				PTS:      int64(n - 1),
				TimeBase: ports.Rational{Num: 1, Den: 25},
			}}, nil
		}
		<-release
		return ports.RawFrame{}, io.EOF
	}
	e := newTestEngine(t, dec, 8)

	if err := e.OpenStream(clipPath); err != nil {
		t.Fatalf("OpenStream failed: %v", err)
	}

	got := 0
	for got < delivered {
		if e.NextFrame().IsValid() {
			got++
		}
	}
	for calls.Load() <= delivered {
		time.Sleep(time.Millisecond)
	}

	for i := 0; i < 100; i++ {
		if f := e.NextFrame(); f.IsValid() {
			t.Fatalf("expected Empty while the decoder is stalled, got %s", f.Kind())
		}
		if !e.IsOpen() {
			t.Fatal("expected IsOpen to stay true while the decoder is stalled")
		}
	}

	close(release)
	for e.IsOpen() {
		time.Sleep(time.Millisecond)
	}
}
