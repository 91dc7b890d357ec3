package audioqueue

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/user/replayclipper/pkg/adapters/logger"
	"github.com/user/replayclipper/pkg/mocks"
	"github.com/user/replayclipper/pkg/ports"
)

func samples(vals ...float32) []byte {
	b := make([]byte, len(vals)*4)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b
}

func sampleAt(b []byte, i int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
}

func openQueue(t *testing.T, channels int) (*Queue, *mocks.AudioDevice) {
	t.Helper()
	dev := &mocks.AudioDevice{}
	q := New(dev, logger.NewNoop())
	if err := q.OpenStream(channels, 48000); err != nil {
		t.Fatalf("OpenStream failed: %v", err)
	}
	return q, dev
}

func TestQueue_DefaultVolume(t *testing.T) {
	q := New(&mocks.AudioDevice{}, logger.NewNoop())
	if q.VolumeScale() != DefaultVolume {
		t.Errorf("expected %v, got %v", DefaultVolume, q.VolumeScale())
	}
}

func TestQueue_OpenStreamValidation(t *testing.T) {
	q := New(&mocks.AudioDevice{}, logger.NewNoop())

	if err := q.OpenStream(0, 48000); !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("expected ErrInvalidFormat, got %v", err)
	}
	if err := q.OpenStream(2, 0); !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("expected ErrInvalidFormat, got %v", err)
	}
	if err := q.OpenStream(2, 48000); err != nil {
		t.Fatalf("OpenStream failed: %v", err)
	}
	if err := q.OpenStream(2, 48000); !errors.Is(err, ErrAlreadyOpen) {
		t.Errorf("expected ErrAlreadyOpen, got %v", err)
	}
}

func TestQueue_OpenStreamDeviceError(t *testing.T) {
	dev := &mocks.AudioDevice{OpenFunc: func(int, int) error { return errors.New("no device") }}
	q := New(dev, logger.NewNoop())

	if err := q.OpenStream(2, 48000); err == nil {
		t.Fatal("expected error")
	}
	if q.IsOpen() {
		t.Error("expected stream to stay closed")
	}
	if err := q.Play(); !errors.Is(err, ErrNotOpen) {
		t.Errorf("expected ErrNotOpen, got %v", err)
	}
}

func TestQueue_CallbackPartialFillAndGain(t *testing.T) {
	q, dev := openQueue(t, 2)
	q.SetVolumeScale(0.5)

	raw := []float32{0.8, -0.4, 0.2, 1.0, -1.0, 0.6}
	q.EnqueueOnce(samples(raw[:4]...))
	q.EnqueueOnce(samples(raw[4:]...))

	// 4 frames x 2 channels = 8 samples requested, 6 available
	out, rc, err := dev.Pull(4, ports.StatusOK)
	if err != nil {
		t.Fatalf("Pull failed: %v", err)
	}
	if rc != ports.CallbackContinue {
		t.Fatalf("expected continue, got %d", rc)
	}
	if len(out) != 8*4 {
		t.Fatalf("expected 32 bytes, got %d", len(out))
	}
	for i, v := range raw {
		if got := sampleAt(out, i); got != v*0.5 {
			t.Errorf("sample %d: expected %v, got %v", i, v*0.5, got)
		}
	}
	for i := len(raw); i < 8; i++ {
		if got := sampleAt(out, i); got != 0 {
			t.Errorf("sample %d: expected silence, got %v", i, got)
		}
	}
	if q.Underruns() != 1 {
		t.Errorf("expected 1 underrun, got %d", q.Underruns())
	}
	if q.Pending() != 0 {
		t.Errorf("expected nothing pending, got %d", q.Pending())
	}
}

func TestQueue_CallbackSpansBuffers(t *testing.T) {
	q, dev := openQueue(t, 1)
	q.SetVolumeScale(1)

	q.EnqueueOnce(samples(1, 2, 3))
	q.EnqueueOnce(samples(4, 5, 6))

	out, _, _ := dev.Pull(2, ports.StatusOK)
	if sampleAt(out, 0) != 1 || sampleAt(out, 1) != 2 {
		t.Errorf("unexpected first block [%v %v]", sampleAt(out, 0), sampleAt(out, 1))
	}

	out, _, _ = dev.Pull(2, ports.StatusOK)
	if sampleAt(out, 0) != 3 || sampleAt(out, 1) != 4 {
		t.Errorf("unexpected second block [%v %v]", sampleAt(out, 0), sampleAt(out, 1))
	}
	if q.Pending() != 8 {
		t.Errorf("expected 8 bytes pending, got %d", q.Pending())
	}
	if q.Underruns() != 0 {
		t.Errorf("expected no underruns, got %d", q.Underruns())
	}
}

func TestQueue_ClearQueueEmitsSilence(t *testing.T) {
	q, dev := openQueue(t, 2)
	q.EnqueueOnce(samples(0.5, 0.5, 0.5, 0.5))

	q.ClearQueue()

	if q.Pending() != 0 {
		t.Errorf("expected empty queue, got %d bytes", q.Pending())
	}
	out, _, _ := dev.Pull(2, ports.StatusOK)
	for i := 0; i < 4; i++ {
		if sampleAt(out, i) != 0 {
			t.Fatalf("sample %d: expected silence, got %v", i, sampleAt(out, i))
		}
	}
}

func TestQueue_CloseStreamClearsAndStops(t *testing.T) {
	q, dev := openQueue(t, 2)
	if err := q.Play(); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	q.EnqueueOnce(samples(0.1, 0.2))

	if err := q.CloseStream(); err != nil {
		t.Fatalf("CloseStream failed: %v", err)
	}
	if q.Pending() != 0 {
		t.Errorf("expected empty queue, got %d bytes", q.Pending())
	}
	if dev.Running() {
		t.Error("expected device to be stopped")
	}
	if q.IsOpen() {
		t.Error("expected stream to be closed")
	}

	// the callback still yields silence if the device calls it late
	out := make([]byte, 16)
	for i := range out {
		out[i] = 0xAA
	}
	q.Callback(out, 2, ports.StatusOK)
	for i, b := range out {
		if b != 0 {
			t.Fatalf("byte %d: expected silence, got %#x", i, b)
		}
	}

	if err := q.CloseStream(); err != nil {
		t.Errorf("second CloseStream failed: %v", err)
	}
	_, _, _, closes := dev.Calls()
	if closes != 1 {
		t.Errorf("expected device closed once, got %d", closes)
	}
}

func TestQueue_PlayPauseResume(t *testing.T) {
	q, dev := openQueue(t, 2)

	if err := q.Play(); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if !dev.Running() {
		t.Error("expected device running after Play")
	}
	if err := q.Pause(); err != nil {
		t.Fatalf("Pause failed: %v", err)
	}
	if dev.Running() {
		t.Error("expected device stopped after Pause")
	}
	if err := q.Resume(); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if !dev.Running() {
		t.Error("expected device running after Resume")
	}
}

func TestQueue_FaultStatusAborts(t *testing.T) {
	q, dev := openQueue(t, 2)
	q.EnqueueOnce(samples(0.1, 0.2))

	_, rc, _ := dev.Pull(1, ports.StatusUnderflow)
	if rc != ports.CallbackAbort {
		t.Errorf("expected abort, got %d", rc)
	}
	if !q.Faulted() {
		t.Error("expected queue to report a fault")
	}
	if q.Pending() != 8 {
		t.Errorf("expected buffered audio untouched, got %d bytes", q.Pending())
	}
}

func TestQueue_NegativeVolumeMutes(t *testing.T) {
	q, dev := openQueue(t, 1)
	q.SetVolumeScale(-2)
	q.EnqueueOnce(samples(0.9))

	out, _, _ := dev.Pull(1, ports.StatusOK)
	if sampleAt(out, 0) != 0 {
		t.Errorf("expected muted sample, got %v", sampleAt(out, 0))
	}
}
