// Package nulldevice provides an audio device that discards its output.
//
// The device still pulls from its callback at the rate a real sound card
// would, so playback paces itself the same way with or without hardware.
package nulldevice

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/user/replayclipper/pkg/media"
	"github.com/user/replayclipper/pkg/ports"
)

// DefaultBufferFrames is the number of frames requested per callback.
const DefaultBufferFrames = 512

var (
	// ErrNotOpen is returned when starting a device that was never opened.
	ErrNotOpen = errors.New("nulldevice: not open")
	// ErrAlreadyOpen is returned by Open on an open device.
	ErrAlreadyOpen = errors.New("nulldevice: already open")
)

// Device implements ports.AudioDevice without producing sound.
type Device struct {
	bufferFrames int

	mu       sync.Mutex
	cb       ports.AudioCallback
	channels int
	rate     int
	buf      []byte
	stop     chan struct{}
	done     chan struct{}

	pulls atomic.Uint64
}

// New creates a Device that requests bufferFrames frames per callback.
// A non-positive value selects DefaultBufferFrames.
func New(bufferFrames int) *Device {
	if bufferFrames <= 0 {
		bufferFrames = DefaultBufferFrames
	}
	return &Device{bufferFrames: bufferFrames}
}

// Open implements ports.AudioDevice.
func (d *Device) Open(channels, sampleRate int, cb ports.AudioCallback) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cb != nil {
		return ErrAlreadyOpen
	}
	d.cb = cb
	d.channels = channels
	d.rate = sampleRate
	d.buf = make([]byte, d.bufferFrames*channels*media.BytesPerSample)
	return nil
}

// Start implements ports.AudioDevice.
func (d *Device) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cb == nil {
		return ErrNotOpen
	}
	if d.stop != nil {
		return nil
	}

	period := time.Duration(d.bufferFrames) * time.Second / time.Duration(d.rate)
	d.stop = make(chan struct{})
	d.done = make(chan struct{})
	go d.run(period, d.cb, d.buf, d.stop, d.done)
	return nil
}

func (d *Device) run(period time.Duration, cb ports.AudioCallback, buf []byte, stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			d.pulls.Add(1)
			if cb(buf, d.bufferFrames, ports.StatusOK) == ports.CallbackAbort {
				return
			}
		}
	}
}

// Stop implements ports.AudioDevice.
func (d *Device) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.halt()
	return nil
}

// halt must be called with d.mu held.
func (d *Device) halt() {
	if d.stop == nil {
		return
	}
	close(d.stop)
	<-d.done
	d.stop = nil
	d.done = nil
}

// Close implements ports.AudioDevice.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.halt()
	d.cb = nil
	d.buf = nil
	return nil
}

// Pulls reports how many times the callback has been invoked.
func (d *Device) Pulls() uint64 {
	return d.pulls.Load()
}

// Ensure Device implements ports.AudioDevice
var _ ports.AudioDevice = (*Device)(nil)
