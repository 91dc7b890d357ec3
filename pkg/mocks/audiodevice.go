package mocks

import (
	"errors"
	"sync"

	"github.com/user/replayclipper/pkg/ports"
)

// ErrDeviceNotOpen is returned when an AudioDevice is driven before Open.
var ErrDeviceNotOpen = errors.New("mocks: audio device not open")

// AudioDevice is a mock implementation of ports.AudioDevice.
// Tests drive the callback synchronously with Pull.
type AudioDevice struct {
	mu         sync.Mutex
	callback   ports.AudioCallback
	channels   int
	sampleRate int
	running    bool
	opens      int
	starts     int
	stops      int
	closes     int

	OpenFunc  func(channels, sampleRate int) error
	StartFunc func() error
}

func (m *AudioDevice) Open(channels, sampleRate int, cb ports.AudioCallback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opens++
	if m.OpenFunc != nil {
		if err := m.OpenFunc(channels, sampleRate); err != nil {
			return err
		}
	}
	m.callback = cb
	m.channels = channels
	m.sampleRate = sampleRate
	return nil
}

func (m *AudioDevice) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.starts++
	if m.callback == nil {
		return ErrDeviceNotOpen
	}
	if m.StartFunc != nil {
		if err := m.StartFunc(); err != nil {
			return err
		}
	}
	m.running = true
	return nil
}

func (m *AudioDevice) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stops++
	m.running = false
	return nil
}

func (m *AudioDevice) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closes++
	m.running = false
	m.callback = nil
	return nil
}

// Pull invokes the callback once for frameCount frames and returns the
// output buffer and result code.
func (m *AudioDevice) Pull(frameCount int, status ports.StreamStatus) ([]byte, int, error) {
	m.mu.Lock()
	cb, ch := m.callback, m.channels
	m.mu.Unlock()
	if cb == nil {
		return nil, 0, ErrDeviceNotOpen
	}
	out := make([]byte, frameCount*ch*4)
	for i := range out {
		out[i] = 0xAA
	}
	rc := cb(out, frameCount, status)
	return out, rc, nil
}

// Running reports whether Start was called without a later Stop or Close.
func (m *AudioDevice) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Format returns the channel count and sample rate passed to Open.
func (m *AudioDevice) Format() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.channels, m.sampleRate
}

// Calls returns Open, Start, Stop and Close counters.
func (m *AudioDevice) Calls() (opens, starts, stops, closes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.opens, m.starts, m.stops, m.closes
}

var _ ports.AudioDevice = (*AudioDevice)(nil)
