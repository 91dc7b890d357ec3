package mocks

import (
	"sync"
	"time"

	"github.com/user/replayclipper/pkg/media"
	"github.com/user/replayclipper/pkg/ports"
)

// Presenter is a mock implementation of ports.Presenter that records
// the timestamps and first pixel byte of every frame it receives.
type Presenter struct {
	mu         sync.Mutex
	timestamps []time.Duration
	markers    []byte

	PresentFunc func(frame media.VideoFrame) error
}

func (m *Presenter) Present(frame media.VideoFrame) error {
	if m.PresentFunc != nil {
		if err := m.PresentFunc(frame); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timestamps = append(m.timestamps, frame.Timestamp)
	var marker byte
	if len(frame.Pixels) > 0 {
		marker = frame.Pixels[0]
	}
	m.markers = append(m.markers, marker)
	return nil
}

// Timestamps returns the presented timestamps in order.
func (m *Presenter) Timestamps() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Duration(nil), m.timestamps...)
}

// Markers returns the first pixel byte of each presented frame.
func (m *Presenter) Markers() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.markers...)
}

// Count returns how many frames were presented.
func (m *Presenter) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timestamps)
}

var _ ports.Presenter = (*Presenter)(nil)
