// Package media defines the canonical frame types that flow from the decoder
// to the playback loop.
package media

import "time"

// Kind identifies which variant a Frame holds.
type Kind uint8

const (
	// KindEmpty marks end-of-stream or a momentarily drained pool.
	KindEmpty Kind = iota
	// KindVideo marks a decoded RGB24 picture.
	KindVideo
	// KindAudio marks a block of interleaved float32 samples.
	KindAudio
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindVideo:
		return "video"
	case KindAudio:
		return "audio"
	default:
		return "unknown"
	}
}

// BytesPerPixel is the size of one packed RGB24 pixel.
const BytesPerPixel = 3

// BytesPerSample is the size of one float32 sample.
const BytesPerSample = 4

// VideoFrame is a decoded picture in packed RGB24.
type VideoFrame struct {
	Width     int
	Height    int
	Timestamp time.Duration
	// Pixels holds Width*Height*3 bytes, row-major, no padding.
	Pixels []byte
}

// AudioFrame is a block of decoded audio in interleaved float32 little-endian.
type AudioFrame struct {
	Channels   int
	SampleRate int
	Timestamp  time.Duration
	Samples    []byte
}

// SampleCount returns the number of samples per channel.
func (a AudioFrame) SampleCount() int {
	if a.Channels <= 0 {
		return 0
	}
	return len(a.Samples) / (a.Channels * BytesPerSample)
}

// Duration returns the playback length of the block.
func (a AudioFrame) Duration() time.Duration {
	if a.SampleRate <= 0 {
		return 0
	}
	return time.Duration(a.SampleCount()) * time.Second / time.Duration(a.SampleRate)
}

// Frame holds exactly one of Empty, VideoFrame or AudioFrame.
// The zero value is Empty.
type Frame struct {
	kind  Kind
	video *VideoFrame
	audio *AudioFrame
}

// NewVideo wraps a video frame.
func NewVideo(v VideoFrame) Frame {
	return Frame{kind: KindVideo, video: &v}
}

// NewAudio wraps an audio frame.
func NewAudio(a AudioFrame) Frame {
	return Frame{kind: KindAudio, audio: &a}
}

// Kind reports which variant the frame holds.
func (f Frame) Kind() Kind {
	return f.kind
}

// IsValid reports whether the frame is not Empty.
func (f Frame) IsValid() bool {
	return f.kind != KindEmpty
}

// IsVideo reports whether the frame holds a VideoFrame.
func (f Frame) IsVideo() bool {
	return f.kind == KindVideo
}

// IsAudio reports whether the frame holds an AudioFrame.
func (f Frame) IsAudio() bool {
	return f.kind == KindAudio
}

// Video returns the video payload.
func (f Frame) Video() (VideoFrame, bool) {
	if f.kind != KindVideo {
		return VideoFrame{}, false
	}
	return *f.video, true
}

// Audio returns the audio payload.
func (f Frame) Audio() (AudioFrame, bool) {
	if f.kind != KindAudio {
		return AudioFrame{}, false
	}
	return *f.audio, true
}

// Timestamp returns the presentation time, or 0 for Empty.
func (f Frame) Timestamp() time.Duration {
	switch f.kind {
	case KindVideo:
		return f.video.Timestamp
	case KindAudio:
		return f.audio.Timestamp
	default:
		return 0
	}
}
