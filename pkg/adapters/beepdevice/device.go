// Package beepdevice plays audio through the system speaker using gopxl/beep.
package beepdevice

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"

	"github.com/user/replayclipper/pkg/media"
	"github.com/user/replayclipper/pkg/ports"
)

// resampleQuality is passed to beep.Resample when stream and speaker rates differ.
const resampleQuality = 4

var (
	// ErrNotOpen is returned when starting a device that was never opened.
	ErrNotOpen = errors.New("beepdevice: not open")
	// ErrAlreadyOpen is returned by Open on an open device.
	ErrAlreadyOpen = errors.New("beepdevice: already open")
	// ErrAborted is reported by the streamer after the callback asked to stop.
	ErrAborted = errors.New("beepdevice: stream aborted by callback")
)

// speaker.Init may only run once per process.
var (
	initOnce sync.Once
	initRate beep.SampleRate
	initErr  error
)

// Device implements ports.AudioDevice on top of the beep speaker.
type Device struct {
	rate         beep.SampleRate
	bufferFrames int

	mu      sync.Mutex
	ctrl    *beep.Ctrl
	playing bool
}

// New creates a Device. The speaker is initialized at sampleRate with a
// buffer of bufferFrames frames the first time a stream is opened.
func New(sampleRate, bufferFrames int) *Device {
	return &Device{
		rate:         beep.SampleRate(sampleRate),
		bufferFrames: bufferFrames,
	}
}

func (d *Device) initSpeaker() error {
	initOnce.Do(func() {
		initRate = d.rate
		initErr = speaker.Init(d.rate, d.bufferFrames)
	})
	if initErr != nil {
		return fmt.Errorf("init speaker: %w", initErr)
	}
	return nil
}

// Open implements ports.AudioDevice.
func (d *Device) Open(channels, sampleRate int, cb ports.AudioCallback) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.ctrl != nil {
		return ErrAlreadyOpen
	}
	if err := d.initSpeaker(); err != nil {
		return err
	}

	var s beep.Streamer = NewStreamer(channels, cb)
	if src := beep.SampleRate(sampleRate); src != initRate {
		s = beep.Resample(resampleQuality, src, initRate, s)
	}
	d.ctrl = &beep.Ctrl{Streamer: s, Paused: true}
	return nil
}

// Start implements ports.AudioDevice.
func (d *Device) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.ctrl == nil {
		return ErrNotOpen
	}
	speaker.Lock()
	d.ctrl.Paused = false
	speaker.Unlock()

	if !d.playing {
		speaker.Play(d.ctrl)
		d.playing = true
	}
	return nil
}

// Stop implements ports.AudioDevice.
func (d *Device) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.ctrl == nil {
		return nil
	}
	speaker.Lock()
	d.ctrl.Paused = true
	speaker.Unlock()
	return nil
}

// Close implements ports.AudioDevice. The speaker drops a Ctrl whose
// streamer is nil on its next pull.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.ctrl == nil {
		return nil
	}
	speaker.Lock()
	d.ctrl.Paused = true
	d.ctrl.Streamer = nil
	speaker.Unlock()

	d.ctrl = nil
	d.playing = false
	return nil
}

// Ensure Device implements ports.AudioDevice
var _ ports.AudioDevice = (*Device)(nil)

// Streamer adapts a ports.AudioCallback to beep.Streamer. Each pull asks
// the callback for interleaved float32 bytes and spreads them over the
// stereo sample pairs beep expects. Mono input is duplicated to both sides.
type Streamer struct {
	channels int
	cb       ports.AudioCallback
	scratch  []byte
	err      error
}

// NewStreamer creates a Streamer for channels-channel callback output.
func NewStreamer(channels int, cb ports.AudioCallback) *Streamer {
	return &Streamer{channels: channels, cb: cb}
}

// Stream implements beep.Streamer.
func (s *Streamer) Stream(samples [][2]float64) (int, bool) {
	if s.err != nil {
		return 0, false
	}

	frames := len(samples)
	size := frames * s.channels * media.BytesPerSample
	if cap(s.scratch) < size {
		s.scratch = make([]byte, size)
	}
	buf := s.scratch[:size]

	if s.cb(buf, frames, ports.StatusOK) == ports.CallbackAbort {
		s.err = ErrAborted
		return 0, false
	}

	stride := s.channels * media.BytesPerSample
	for i := range samples {
		frame := buf[i*stride:]
		left := sampleAt(frame, 0)
		right := left
		if s.channels > 1 {
			right = sampleAt(frame, 1)
		}
		samples[i] = [2]float64{left, right}
	}
	return frames, true
}

// Err implements beep.Streamer.
func (s *Streamer) Err() error {
	return s.err
}

func sampleAt(frame []byte, ch int) float64 {
	off := ch * media.BytesPerSample
	return float64(math.Float32frombits(binary.LittleEndian.Uint32(frame[off:])))
}
