// Package mkvprobe reads track metadata from Matroska and WebM files.
package mkvprobe

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/remko/go-mkvparse"

	"github.com/user/replayclipper/pkg/ports"
)

// ErrNoTracks is returned when the file has neither a video nor an audio track.
var ErrNoTracks = errors.New("mkvprobe: no audio or video track")

// Matroska track types.
const (
	trackTypeVideo = 1
	trackTypeAudio = 2
)

const defaultTimecodeScale = 1_000_000

// Prober implements ports.Prober for Matroska files.
type Prober struct{}

// New creates a new Prober.
func New() *Prober {
	return &Prober{}
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

// ProbeReader inspects a Matroska stream. path is only recorded in the result.
func (p *Prober) ProbeReader(r io.Reader, path string) (ports.MediaInfo, error) {
	h := &handler{timecodeScale: defaultTimecodeScale}
	if err := mkvparse.Parse(r, h); err != nil {
		return ports.MediaInfo{}, fmt.Errorf("parse matroska: %w", err)
	}
	return h.result(path)
}

type track struct {
	kind       int64
	codec      string
	width      int64
	height     int64
	channels   int64
	sampleRate float64
}

// handler collects Info, Tracks and Cues. Clusters are skipped.
type handler struct {
	docType       string
	timecodeScale int64
	duration      float64
	tracks        []track
	current       *track
	cuePoints     int
}

func (h *handler) HandleMasterBegin(id mkvparse.ElementID, info mkvparse.ElementInfo) (bool, error) {
	switch id {
	case mkvparse.ClusterElement:
		return false, nil
	case mkvparse.TrackEntryElement:
		h.tracks = append(h.tracks, track{})
		h.current = &h.tracks[len(h.tracks)-1]
	case mkvparse.CuePointElement:
		h.cuePoints++
	}
	return true, nil
}

func (h *handler) HandleMasterEnd(id mkvparse.ElementID, info mkvparse.ElementInfo) error {
	if id == mkvparse.TrackEntryElement {
		h.current = nil
	}
	return nil
}

func (h *handler) HandleString(id mkvparse.ElementID, value string, info mkvparse.ElementInfo) error {
	switch id {
	case mkvparse.DocTypeElement:
		h.docType = value
	case mkvparse.CodecIDElement:
		if h.current != nil {
			h.current.codec = value
		}
	}
	return nil
}

func (h *handler) HandleInteger(id mkvparse.ElementID, value int64, info mkvparse.ElementInfo) error {
	switch id {
	case mkvparse.TimecodeScaleElement:
		h.timecodeScale = value
		return nil
	}
	if h.current == nil {
		return nil
	}
	switch id {
	case mkvparse.TrackTypeElement:
		h.current.kind = value
	case mkvparse.PixelWidthElement:
		h.current.width = value
	case mkvparse.PixelHeightElement:
		h.current.height = value
	case mkvparse.ChannelsElement:
		h.current.channels = value
	}
	return nil
}

func (h *handler) HandleFloat(id mkvparse.ElementID, value float64, info mkvparse.ElementInfo) error {
	switch id {
	case mkvparse.DurationElement:
		h.duration = value
	case mkvparse.SamplingFrequencyElement:
		if h.current != nil {
			h.current.sampleRate = value
		}
	}
	return nil
}

func (h *handler) HandleDate(id mkvparse.ElementID, value time.Time, info mkvparse.ElementInfo) error {
	return nil
}

func (h *handler) HandleBinary(id mkvparse.ElementID, value []byte, info mkvparse.ElementInfo) error {
	return nil
}

func (h *handler) result(path string) (ports.MediaInfo, error) {
	info := ports.MediaInfo{
		Path:      path,
		Container: ports.ContainerMatroska,
		Duration:  time.Duration(h.duration * float64(h.timecodeScale)),
	}

	for _, t := range h.tracks {
		switch t.kind {
		case trackTypeVideo:
			if info.Video == nil {
				info.Video = &ports.VideoTrackInfo{
					Codec:     codecName(t.codec),
					Width:     int(t.width),
					Height:    int(t.height),
					Keyframes: h.cuePoints,
					Duration:  info.Duration,
				}
			}
		case trackTypeAudio:
			if info.Audio == nil {
				rate := t.sampleRate
				if rate == 0 {
					rate = 8000
				}
				channels := t.channels
				if channels == 0 {
					channels = 1
				}
				info.Audio = &ports.AudioTrackInfo{
					Codec:      codecName(t.codec),
					Channels:   int(channels),
					SampleRate: int(rate),
					Duration:   info.Duration,
				}
			}
		}
	}

	if info.Video == nil && info.Audio == nil {
		return ports.MediaInfo{}, ErrNoTracks
	}
	return info, nil
}

// codecName turns a Matroska codec ID such as "V_MPEG4/ISO/AVC" into a short name.
func codecName(id string) string {
	switch {
	case id == "V_MPEG4/ISO/AVC":
		return "h264"
	case id == "V_MPEGH/ISO/HEVC":
		return "hevc"
	case id == "V_AV1":
		return "av1"
	case id == "V_VP8":
		return "vp8"
	case id == "V_VP9":
		return "vp9"
	case id == "A_OPUS":
		return "opus"
	case id == "A_VORBIS":
		return "vorbis"
	case id == "A_FLAC":
		return "flac"
	case strings.HasPrefix(id, "A_AAC"):
		return "aac"
	}
	return strings.ToLower(id)
}

// Ensure Prober implements ports.Prober
var _ ports.Prober = (*Prober)(nil)
