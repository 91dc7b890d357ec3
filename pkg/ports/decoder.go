package ports

import "time"

// StreamFilter selects which elementary streams NextCodedFrame may return.
type StreamFilter uint8

const (
	// StreamVideo accepts frames from the first video stream.
	StreamVideo StreamFilter = 1 << iota
	// StreamAudio accepts frames from the first audio stream.
	StreamAudio
	// StreamBoth accepts whichever stream the container yields next.
	StreamBoth = StreamVideo | StreamAudio
)

// Has reports whether f accepts every stream in other.
func (f StreamFilter) Has(other StreamFilter) bool {
	return f&other == other
}

// Rational is a stream time base in seconds per tick.
type Rational struct {
	Num int64
	Den int64
}

// Rescale converts a timestamp in this time base to a duration.
// A zero denominator yields 0.
func (r Rational) Rescale(pts int64) time.Duration {
	if r.Den == 0 {
		return 0
	}
	q := pts * r.Num
	whole := q / r.Den
	rem := q % r.Den
	return time.Duration(whole)*time.Second + time.Duration(rem*int64(time.Second)/r.Den)
}

// PixelFormat identifies the memory layout of a raw video frame.
type PixelFormat int

const (
	PixelFormatUnknown PixelFormat = iota
	// PixelFormatYUV420P is planar Y, U, V with 2x2 chroma subsampling.
	PixelFormatYUV420P
	// PixelFormatNV12 is planar Y followed by interleaved UV at 2x2 subsampling.
	PixelFormatNV12
	// PixelFormatRGB24 is packed 8-bit R, G, B.
	PixelFormatRGB24
	// PixelFormatRGBA is packed 8-bit R, G, B, A.
	PixelFormatRGBA
)

// String returns the string representation of the pixel format.
func (f PixelFormat) String() string {
	switch f {
	case PixelFormatYUV420P:
		return "yuv420p"
	case PixelFormatNV12:
		return "nv12"
	case PixelFormatRGB24:
		return "rgb24"
	case PixelFormatRGBA:
		return "rgba"
	default:
		return "unknown"
	}
}

// SampleFormat identifies the memory layout of raw audio samples.
type SampleFormat int

const (
	SampleFormatUnknown SampleFormat = iota
	// SampleFormatFLT is interleaved float32.
	SampleFormatFLT
	// SampleFormatFLTP is one float32 plane per channel.
	SampleFormatFLTP
	// SampleFormatS16 is interleaved int16.
	SampleFormatS16
	// SampleFormatS16P is one int16 plane per channel.
	SampleFormatS16P
)

// String returns the string representation of the sample format.
func (f SampleFormat) String() string {
	switch f {
	case SampleFormatFLT:
		return "flt"
	case SampleFormatFLTP:
		return "fltp"
	case SampleFormatS16:
		return "s16"
	case SampleFormatS16P:
		return "s16p"
	default:
		return "unknown"
	}
}

// RawVideo is a decoded picture as the decoder produced it.
// Planes may alias decoder-owned memory that is reused on the next call.
type RawVideo struct {
	Width    int
	Height   int
	Format   PixelFormat
	Planes   [][]byte
	Strides  []int
	PTS      int64
	TimeBase Rational
}

// Timestamp returns the presentation time of the picture.
func (v *RawVideo) Timestamp() time.Duration {
	return v.TimeBase.Rescale(v.PTS)
}

// RawAudio is a block of decoded samples as the decoder produced it.
// Planes may alias decoder-owned memory that is reused on the next call.
type RawAudio struct {
	Channels   int
	SampleRate int
	Samples    int // per channel
	Format     SampleFormat
	Planes     [][]byte
	PTS        int64
	TimeBase   Rational
}

// Timestamp returns the presentation time of the first sample.
func (a *RawAudio) Timestamp() time.Duration {
	return a.TimeBase.Rescale(a.PTS)
}

// RawFrame carries exactly one of Video or Audio.
type RawFrame struct {
	Video *RawVideo
	Audio *RawAudio
}

// Decoder abstracts container demuxing and decoding.
// Implementations are not safe for concurrent use.
type Decoder interface {
	// Open opens a media source and selects its first video and first audio stream.
	Open(path string) error

	// NextCodedFrame decodes the next frame accepted by filter.
	// It returns io.EOF once the container is exhausted.
	NextCodedFrame(filter StreamFilter) (RawFrame, error)

	// SeekBackward repositions to the nearest keyframe at or before ts.
	SeekBackward(ts time.Duration) error

	// Flush drops frames buffered inside the codecs. Call after SeekBackward.
	Flush()

	// Duration returns the container duration, or 0 if unknown.
	Duration() time.Duration

	// Channels returns the audio channel count, or 0 without audio.
	Channels() int

	// SampleRate returns the audio sample rate, or 0 without audio.
	SampleRate() int

	// Close releases the open source. The decoder may be opened again.
	Close() error
}
