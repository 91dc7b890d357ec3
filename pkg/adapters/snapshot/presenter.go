// Package snapshot provides a presenter that saves periodic PNG snapshots
// of the video stream with a timestamp and progress overlay.
package snapshot

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"path/filepath"
	"sync"
	"time"

	"github.com/fogleman/gg"
	"golang.org/x/image/draw"

	"github.com/user/replayclipper/pkg/media"
	"github.com/user/replayclipper/pkg/ports"
)

// Defaults for Options.
const (
	DefaultEvery = 30
	DefaultWidth = 640
)

const (
	overlayHeight = 22
	barHeight     = 4
	textMargin    = 6
)

var (
	// ErrNoDirectory is returned by New when no output directory is given.
	ErrNoDirectory = errors.New("snapshot: output directory required")
	// ErrBadFrame is returned for a frame whose pixel buffer does not match its size.
	ErrBadFrame = errors.New("snapshot: malformed video frame")
)

var (
	overlayColor  = color.RGBA{0, 0, 0, 160}
	textColor     = color.RGBA{255, 255, 255, 255}
	barTrackColor = color.RGBA{90, 90, 90, 255}
	barFillColor  = color.RGBA{230, 60, 60, 255}
)

// Options configures a Presenter.
type Options struct {
	// Dir is where snapshots are written.
	Dir string
	// Every saves one snapshot per Every presented frames, starting with the first.
	Every int
	// Width of the saved image. Height follows the source aspect ratio.
	// Zero keeps the source size.
	Width int
}

// Presenter implements ports.Presenter by writing PNG files.
type Presenter struct {
	fs   ports.FileSystem
	opts Options

	mu       sync.Mutex
	count    int
	saved    []string
	duration time.Duration
}

// New creates a Presenter. Every defaults to DefaultEvery when not positive.
func New(fs ports.FileSystem, opts Options) (*Presenter, error) {
	if opts.Dir == "" {
		return nil, ErrNoDirectory
	}
	if opts.Every <= 0 {
		opts.Every = DefaultEvery
	}
	if opts.Width < 0 {
		opts.Width = 0
	}
	return &Presenter{fs: fs, opts: opts}, nil
}

// SetDuration sets the clip length used to draw the progress bar.
// With no duration only the timestamp is drawn.
func (p *Presenter) SetDuration(d time.Duration) {
	p.mu.Lock()
	p.duration = d
	p.mu.Unlock()
}

// Present implements ports.Presenter.
func (p *Presenter) Present(frame media.VideoFrame) error {
	p.mu.Lock()
	index := p.count
	p.count++
	duration := p.duration
	p.mu.Unlock()

	if index%p.opts.Every != 0 {
		return nil
	}

	img, err := toImage(frame)
	if err != nil {
		return err
	}
	img = p.scale(img)

	dc := gg.NewContextForRGBA(img)
	drawOverlay(dc, frame.Timestamp, duration)

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	if err := p.fs.MkdirAll(p.opts.Dir); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}
	path := filepath.Join(p.opts.Dir, fmt.Sprintf("frame-%04d.png", index/p.opts.Every))
	if err := p.fs.WriteFile(path, buf.Bytes()); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	p.mu.Lock()
	p.saved = append(p.saved, path)
	p.mu.Unlock()
	return nil
}

// Presented returns the number of frames passed to Present.
func (p *Presenter) Presented() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}

// Saved returns the paths written so far.
func (p *Presenter) Saved() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.saved))
	copy(out, p.saved)
	return out
}

func (p *Presenter) scale(src *image.RGBA) *image.RGBA {
	b := src.Bounds()
	if p.opts.Width == 0 || p.opts.Width == b.Dx() {
		return src
	}
	height := b.Dy() * p.opts.Width / b.Dx()
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, p.opts.Width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}

// toImage expands packed RGB24 into an opaque RGBA image.
func toImage(frame media.VideoFrame) (*image.RGBA, error) {
	if frame.Width <= 0 || frame.Height <= 0 ||
		len(frame.Pixels) < frame.Width*frame.Height*media.BytesPerPixel {
		return nil, fmt.Errorf("%w: %dx%d with %d bytes", ErrBadFrame, frame.Width, frame.Height, len(frame.Pixels))
	}

	img := image.NewRGBA(image.Rect(0, 0, frame.Width, frame.Height))
	src := frame.Pixels
	dst := img.Pix
	for i, j := 0, 0; j < len(dst); i, j = i+3, j+4 {
		dst[j] = src[i]
		dst[j+1] = src[i+1]
		dst[j+2] = src[i+2]
		dst[j+3] = 0xff
	}
	return img, nil
}

func drawOverlay(dc *gg.Context, ts, duration time.Duration) {
	w := float64(dc.Width())
	h := float64(dc.Height())

	top := h - overlayHeight
	if top < 0 {
		top = 0
	}
	dc.SetColor(overlayColor)
	dc.DrawRectangle(0, top, w, h-top)
	dc.Fill()

	label := FormatTimestamp(ts)
	if duration > 0 {
		label += " / " + FormatTimestamp(duration)
	}
	dc.SetColor(textColor)
	dc.DrawStringAnchored(label, textMargin, top+(overlayHeight-barHeight)/2, 0, 0.5)

	if duration <= 0 {
		return
	}
	progress := float64(ts) / float64(duration)
	if progress > 1 {
		progress = 1
	} else if progress < 0 {
		progress = 0
	}
	dc.SetColor(barTrackColor)
	dc.DrawRectangle(0, h-barHeight, w, barHeight)
	dc.Fill()
	dc.SetColor(barFillColor)
	dc.DrawRectangle(0, h-barHeight, w*progress, barHeight)
	dc.Fill()
}

// FormatTimestamp renders d as mm:ss.mmm, or h:mm:ss.mmm past an hour.
func FormatTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	h := ms / 3_600_000
	m := ms / 60_000 % 60
	s := ms / 1000 % 60
	ms %= 1000
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d.%03d", h, m, s, ms)
	}
	return fmt.Sprintf("%02d:%02d.%03d", m, s, ms)
}

// Ensure Presenter implements ports.Presenter
var _ ports.Presenter = (*Presenter)(nil)
