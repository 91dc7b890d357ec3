package avdecoder

import (
	"errors"
	"io"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/asticode/go-astiav"

	"github.com/user/replayclipper/pkg/ports"
)

// makeClip renders a two second test pattern with a sine tone using the
// ffmpeg binary. The test is skipped when ffmpeg is not installed.
func makeClip(t *testing.T) string {
	t.Helper()

	ffmpeg, err := exec.LookPath("ffmpeg")
	if err != nil {
		t.Skip("ffmpeg not available")
	}

	path := filepath.Join(t.TempDir(), "clip.mp4")
	cmd := exec.Command(ffmpeg, "-hide_banner", "-loglevel", "error",
		"-f", "lavfi", "-i", "testsrc=size=64x48:rate=25:duration=2",
		"-f", "lavfi", "-i", "sine=frequency=440:sample_rate=48000:duration=2",
		"-c:v", "mpeg4", "-g", "10", "-pix_fmt", "yuv420p",
		"-c:a", "aac", "-ac", "2",
		"-shortest", path)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Skipf("ffmpeg could not render a clip: %v: %s", err, out)
	}
	return path
}

func TestDecoder_NotOpen(t *testing.T) {
	d := New()
	if _, err := d.NextCodedFrame(ports.StreamBoth); !errors.Is(err, ErrNotOpen) {
		t.Errorf("expected ErrNotOpen, got %v", err)
	}
	if err := d.SeekBackward(time.Second); !errors.Is(err, ErrNotOpen) {
		t.Errorf("expected ErrNotOpen, got %v", err)
	}
	if err := d.Close(); err != nil {
		t.Errorf("Close on unopened decoder: %v", err)
	}
}

func TestDecoder_OpenMissing(t *testing.T) {
	d := New()
	if err := d.Open(filepath.Join(t.TempDir(), "missing.mp4")); err == nil {
		t.Fatal("expected an error opening a missing file")
	}
}

func TestDecoder_DecodesClip(t *testing.T) {
	path := makeClip(t)

	d := New()
	if err := d.Open(path); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer d.Close()

	if d.Channels() != 2 || d.SampleRate() != 48000 {
		t.Errorf("expected 2ch 48000 Hz, got %dch %d Hz", d.Channels(), d.SampleRate())
	}
	if d.Duration() < 1900*time.Millisecond || d.Duration() > 2200*time.Millisecond {
		t.Errorf("unexpected duration %v", d.Duration())
	}

	var videos, audios int
	var lastVideo time.Duration = -1
	for {
		raw, err := d.NextCodedFrame(ports.StreamBoth)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("NextCodedFrame failed: %v", err)
		}
		switch {
		case raw.Video != nil:
			videos++
			if raw.Video.Width != 64 || raw.Video.Height != 48 {
				t.Fatalf("expected 64x48, got %dx%d", raw.Video.Width, raw.Video.Height)
			}
			if raw.Video.Format != ports.PixelFormatYUV420P {
				t.Errorf("expected yuv420p, got %s", raw.Video.Format)
			}
			ts := raw.Video.Timestamp()
			if ts <= lastVideo {
				t.Errorf("video timestamps not increasing: %v after %v", ts, lastVideo)
			}
			lastVideo = ts
		case raw.Audio != nil:
			audios++
			if raw.Audio.Channels != 2 {
				t.Errorf("expected 2 channels, got %d", raw.Audio.Channels)
			}
		}
	}

	if videos < 48 || videos > 50 {
		t.Errorf("expected about 50 video frames, got %d", videos)
	}
	if audios == 0 {
		t.Error("expected audio frames")
	}
}

func TestDecoder_SeekBackward(t *testing.T) {
	path := makeClip(t)

	d := New()
	if err := d.Open(path); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer d.Close()

	target := 1200 * time.Millisecond
	if err := d.SeekBackward(target); err != nil {
		t.Fatalf("SeekBackward failed: %v", err)
	}
	d.Flush()

	raw, err := d.NextCodedFrame(ports.StreamVideo)
	if err != nil {
		t.Fatalf("NextCodedFrame failed: %v", err)
	}
	if raw.Video == nil {
		t.Fatal("expected a video frame with the video filter")
	}
	ts := raw.Video.Timestamp()
	if ts > target {
		t.Errorf("backward seek landed after the target: %v", ts)
	}
	// keyframes every 400ms
	if ts < 800*time.Millisecond {
		t.Errorf("seek landed too early: %v", ts)
	}
}

func TestDecoder_VideoFramesContiguous(t *testing.T) {
	path := makeClip(t)

	d := New()
	if err := d.Open(path); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer d.Close()

	// Every packet sent to the codec must come back out, so consecutive
	// video frames are exactly one 25 fps period apart.
	const period = 40 * time.Millisecond
	var last time.Duration = -1
	for {
		raw, err := d.NextCodedFrame(ports.StreamBoth)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("NextCodedFrame failed: %v", err)
		}
		if raw.Video == nil {
			continue
		}
		ts := raw.Video.Timestamp()
		if last >= 0 && ts-last != period {
			t.Fatalf("gap between video frames: %v then %v", last, ts)
		}
		last = ts
	}
	if last < 0 {
		t.Fatal("expected video frames")
	}
}

// setFrame reallocates d.frame with the given geometry.
func setFrame(t *testing.T, d *Decoder, w, h int, format astiav.PixelFormat) {
	t.Helper()
	d.frame.Unref()
	d.frame.SetWidth(w)
	d.frame.SetHeight(h)
	d.frame.SetPixelFormat(format)
	if err := d.frame.AllocBuffer(1); err != nil {
		t.Fatalf("AllocBuffer failed: %v", err)
	}
}

func TestDecoder_ScalerFollowsInputChanges(t *testing.T) {
	d := New()
	d.frame = astiav.AllocFrame()
	d.convert = astiav.AllocFrame()
	defer d.Close()

	steps := []struct {
		w, h   int
		format astiav.PixelFormat
	}{
		{32, 16, astiav.PixelFormatYuv444P},
		{64, 48, astiav.PixelFormatYuv444P},
		{64, 48, astiav.PixelFormatYuv422P},
	}
	for _, s := range steps {
		setFrame(t, d, s.w, s.h, s.format)

		v, err := d.exportVideo(0, ports.Rational{Num: 1, Den: 25})
		if err != nil {
			t.Fatalf("%dx%d %s: exportVideo failed: %v", s.w, s.h, s.format, err)
		}
		if v.Format != ports.PixelFormatRGBA {
			t.Errorf("expected rgba, got %s", v.Format)
		}
		if v.Width != s.w || v.Height != s.h {
			t.Errorf("expected %dx%d, got %dx%d", s.w, s.h, v.Width, v.Height)
		}
		if len(v.Planes[0]) != s.w*s.h*4 || v.Strides[0] != s.w*4 {
			t.Errorf("%dx%d: plane %d bytes stride %d", s.w, s.h, len(v.Planes[0]), v.Strides[0])
		}
		want := scaleInput{width: s.w, height: s.h, format: s.format}
		if d.swsInput != want {
			t.Errorf("scale context built for %+v, want %+v", d.swsInput, want)
		}
	}
}
