// Package smartprobe detects the container of a media file and hands it
// to the matching prober.
package smartprobe

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/user/replayclipper/pkg/adapters/mkvprobe"
	"github.com/user/replayclipper/pkg/adapters/mp4probe"
	"github.com/user/replayclipper/pkg/ports"
)

// ErrUnsupportedContainer is returned when no prober recognizes the file.
var ErrUnsupportedContainer = errors.New("smartprobe: unsupported container")

var ebmlMagic = []byte{0x1A, 0x45, 0xDF, 0xA3}

// ISO-BMFF top-level box types accepted at offset 4.
var bmffBoxes = [][]byte{[]byte("ftyp"), []byte("moov"), []byte("styp"), []byte("mdat"), []byte("free")}

// ReaderProber probes an already opened stream.
type ReaderProber interface {
	ProbeReader(r io.ReadSeeker, path string) (ports.MediaInfo, error)
}

// matroskaReader adapts mkvprobe, which only needs an io.Reader.
type matroskaReader struct {
	p *mkvprobe.Prober
}

func (m matroskaReader) ProbeReader(r io.ReadSeeker, path string) (ports.MediaInfo, error) {
	return m.p.ProbeReader(r, path)
}

// Prober implements ports.Prober by sniffing the container.
type Prober struct {
	probers map[ports.Container]ReaderProber
}

// New creates a Prober for MP4 and Matroska.
func New() *Prober {
	return &Prober{
		probers: map[ports.Container]ReaderProber{
			ports.ContainerMP4:      mp4probe.New(),
			ports.ContainerMatroska: matroskaReader{mkvprobe.New()},
		},
	}
}

// Detect identifies the container from the first bytes of a file.
func Detect(header []byte) ports.Container {
	if bytes.HasPrefix(header, ebmlMagic) {
		return ports.ContainerMatroska
	}
	if len(header) >= 8 {
		for _, box := range bmffBoxes {
			if bytes.Equal(header[4:8], box) {
				return ports.ContainerMP4
			}
		}
	}
	return ports.ContainerUnknown
}

// Probe implements ports.Prober.
func (p *Prober) Probe(path string) (ports.MediaInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return ports.MediaInfo{}, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	return p.ProbeReader(f, path)
}

// ProbeReader sniffs r and dispatches to the matching prober.
func (p *Prober) ProbeReader(r io.ReadSeeker, path string) (ports.MediaInfo, error) {
	header := make([]byte, 12)
	n, err := io.ReadFull(r, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return ports.MediaInfo{}, fmt.Errorf("read header: %w", err)
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return ports.MediaInfo{}, fmt.Errorf("seek: %w", err)
	}

	container := Detect(header[:n])
	prober, ok := p.probers[container]
	if !ok {
		return ports.MediaInfo{}, fmt.Errorf("%w: %s", ErrUnsupportedContainer, path)
	}
	return prober.ProbeReader(r, path)
}

// Ensure Prober implements ports.Prober
var _ ports.Prober = (*Prober)(nil)
