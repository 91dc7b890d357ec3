// Package nullpresenter provides a presenter that discards video frames.
package nullpresenter

import (
	"sync/atomic"

	"github.com/user/replayclipper/pkg/media"
	"github.com/user/replayclipper/pkg/ports"
)

// Presenter is a no-op implementation of ports.Presenter.
// It only counts the frames it receives.
type Presenter struct {
	count atomic.Uint64
	last  atomic.Int64
}

// New creates a new Presenter.
func New() *Presenter {
	return &Presenter{}
}

// Present discards the frame.
func (p *Presenter) Present(frame media.VideoFrame) error {
	p.count.Add(1)
	p.last.Store(int64(frame.Timestamp))
	return nil
}

// Presented returns the number of frames received.
func (p *Presenter) Presented() uint64 {
	return p.count.Load()
}

// LastTimestamp returns the timestamp of the most recent frame, in nanoseconds.
func (p *Presenter) LastTimestamp() int64 {
	return p.last.Load()
}

// Ensure Presenter implements ports.Presenter
var _ ports.Presenter = (*Presenter)(nil)
