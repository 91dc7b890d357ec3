// Package summarizer produces a report of a playback session.
package summarizer

import (
	"time"

	"github.com/google/uuid"

	"github.com/user/replayclipper/pkg/ports"
)

// Summary contains the data collected during a playback session.
type Summary struct {
	// Metadata
	SessionID   string
	GeneratedAt time.Time

	// Source media
	Media MediaInfo

	// Playback results
	Playback PlaybackInfo

	// Session configuration
	Settings Settings
}

// MediaInfo describes the played file.
type MediaInfo struct {
	Path       string
	Container  string
	Duration   time.Duration
	VideoCodec string
	Width      int
	Height     int
	Keyframes  int
	AudioCodec string
	Channels   int
	SampleRate int
}

// PlaybackInfo contains the counters of a finished session.
type PlaybackInfo struct {
	FramesPresented uint64
	AudioFrames     uint64
	Scrubs          uint64
	Underruns       uint64
	Restarts        int
	Position        time.Duration
	WallTime        time.Duration
	AverageFPS      float64
	Completed       bool
}

// Settings contains the playback configuration.
type Settings struct {
	PoolSize        int
	Volume          float32
	TickRate        int
	MaxStepsPerTick int
	AudioDevice     string
	Loop            bool
}

// NewSummary creates a new Summary with a fresh session ID and the current timestamp.
func NewSummary() *Summary {
	return &Summary{
		SessionID:   uuid.NewString(),
		GeneratedAt: time.Now(),
	}
}

// Builder provides a fluent interface for building a Summary.
type Builder struct {
	summary *Summary
}

// NewBuilder creates a new Builder.
func NewBuilder() *Builder {
	return &Builder{
		summary: NewSummary(),
	}
}

// WithSessionID overrides the generated session ID.
func (b *Builder) WithSessionID(id string) *Builder {
	b.summary.SessionID = id
	return b
}

// WithMedia copies probe results into the summary.
func (b *Builder) WithMedia(info ports.MediaInfo) *Builder {
	m := MediaInfo{
		Path:      info.Path,
		Container: string(info.Container),
		Duration:  info.Duration,
	}
	if info.Video != nil {
		m.VideoCodec = info.Video.Codec
		m.Width = info.Video.Width
		m.Height = info.Video.Height
		m.Keyframes = info.Video.Keyframes
	}
	if info.Audio != nil {
		m.AudioCodec = info.Audio.Codec
		m.Channels = info.Audio.Channels
		m.SampleRate = info.Audio.SampleRate
	}
	b.summary.Media = m
	return b
}

// WithPlayback sets the playback counters. AverageFPS is derived
// from FramesPresented and WallTime when left at zero.
func (b *Builder) WithPlayback(playback PlaybackInfo) *Builder {
	if playback.AverageFPS == 0 && playback.WallTime > 0 {
		playback.AverageFPS = float64(playback.FramesPresented) / playback.WallTime.Seconds()
	}
	b.summary.Playback = playback
	return b
}

// WithSettings sets the playback configuration.
func (b *Builder) WithSettings(settings Settings) *Builder {
	b.summary.Settings = settings
	return b
}

// Build returns the constructed Summary.
func (b *Builder) Build() *Summary {
	return b.summary
}
