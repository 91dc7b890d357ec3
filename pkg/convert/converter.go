// Package convert normalizes raw decoder output into canonical media frames:
// packed RGB24 pictures and interleaved float32 audio, stamped in nanoseconds.
package convert

import (
	"errors"

	"github.com/user/replayclipper/pkg/media"
	"github.com/user/replayclipper/pkg/ports"
)

var (
	// ErrEmptyFrame is returned when a raw frame carries neither video nor audio.
	ErrEmptyFrame = errors.New("convert: raw frame is empty")
	// ErrUnsupportedFormat is returned for pixel or sample formats the converter cannot read.
	ErrUnsupportedFormat = errors.New("convert: unsupported format")
	// ErrInvalidDimensions is returned for non-positive sizes or channel layouts.
	ErrInvalidDimensions = errors.New("convert: invalid dimensions")
	// ErrShortBuffer is returned when a plane is smaller than its declared layout.
	ErrShortBuffer = errors.New("convert: plane shorter than declared layout")
)

// Options configures the converter.
type Options struct {
	// Width is the output picture width. 0 keeps the source width, or
	// follows Height while preserving the aspect ratio.
	Width int
	// Height is the output picture height, with the same rules as Width.
	Height int
}

// Converter turns ports.RawFrame values into media.Frame values.
// Output buffers are always freshly allocated, so callers may reuse
// the raw planes once Convert returns.
type Converter struct {
	opts Options
}

// New creates a Converter.
func New(opts Options) *Converter {
	return &Converter{opts: opts}
}

// Convert dispatches on the kind of raw frame.
func (c *Converter) Convert(raw ports.RawFrame) (media.Frame, error) {
	switch {
	case raw.Video != nil:
		v, err := c.ConvertVideo(raw.Video)
		if err != nil {
			return media.Frame{}, err
		}
		return media.NewVideo(v), nil
	case raw.Audio != nil:
		a, err := c.ConvertAudio(raw.Audio)
		if err != nil {
			return media.Frame{}, err
		}
		return media.NewAudio(a), nil
	default:
		return media.Frame{}, ErrEmptyFrame
	}
}

// TargetSize returns the output size for a source of w by h.
func (c *Converter) TargetSize(w, h int) (int, int) {
	tw, th := c.opts.Width, c.opts.Height
	switch {
	case tw > 0 && th > 0:
		return tw, th
	case tw > 0:
		return tw, max(1, (h*tw+w/2)/w)
	case th > 0:
		return max(1, (w*th+h/2)/h), th
	default:
		return w, h
	}
}
