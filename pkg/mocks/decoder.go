package mocks

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/user/replayclipper/pkg/ports"
)

// ErrDecoderClosed is returned when a closed Decoder is used.
var ErrDecoderClosed = errors.New("mocks: decoder used while closed")

// Clip describes the synthetic media a Decoder produces.
type Clip struct {
	Path             string
	Frames           int // video frame count
	FPS              int
	KeyframeInterval int
	Width            int
	Height           int
	Channels         int // 0 disables audio
	SampleRate       int
	AudioBlock       int // samples per channel per audio frame
}

// DefaultClip returns a two second 25 fps clip with stereo audio.
func DefaultClip(path string) Clip {
	return Clip{
		Path:             path,
		Frames:           50,
		FPS:              25,
		KeyframeInterval: 10,
		Width:            8,
		Height:           4,
		Channels:         2,
		SampleRate:       48000,
		AudioBlock:       1024,
	}
}

// VideoTimestamp returns the presentation time of video frame i.
func (c Clip) VideoTimestamp(i int) time.Duration {
	return time.Duration(i) * time.Second / time.Duration(c.FPS)
}

// AudioTimestamp returns the presentation time of audio frame j.
func (c Clip) AudioTimestamp(j int) time.Duration {
	return time.Duration(j*c.AudioBlock) * time.Second / time.Duration(c.SampleRate)
}

// AudioFrames returns how many audio frames cover the clip.
func (c Clip) AudioFrames() int {
	if c.Channels == 0 {
		return 0
	}
	total := c.Frames * c.SampleRate / c.FPS
	return (total + c.AudioBlock - 1) / c.AudioBlock
}

// Duration returns the clip length.
func (c Clip) Duration() time.Duration {
	return c.VideoTimestamp(c.Frames)
}

// Decoder is a synthetic implementation of ports.Decoder.
// Video frames are RGB24 and every byte of frame i equals byte(i).
// Audio frames are interleaved float32 and every sample of frame j equals
// float32(j). Plane buffers are reused between calls, like a native decoder.
type Decoder struct {
	mu   sync.Mutex
	clip Clip

	open       bool
	nextVideo  int
	nextAudio  int
	videoPlane []byte
	audioPlane []byte

	opens, seeks, flushes, closes int
	decoded                       int
	misuse                        int

	// FrameDelay simulates decode time per frame.
	FrameDelay time.Duration

	OpenFunc  func(path string) error
	SeekFunc  func(ts time.Duration) error
	NextFunc  func(filter ports.StreamFilter) (ports.RawFrame, error)
	CloseFunc func() error
}

// NewDecoder creates a Decoder that serves clip.
func NewDecoder(clip Clip) *Decoder {
	return &Decoder{clip: clip}
}

// Clip returns the clip the decoder serves.
func (m *Decoder) Clip() Clip {
	return m.clip
}

func (m *Decoder) Open(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opens++
	if m.OpenFunc != nil {
		if err := m.OpenFunc(path); err != nil {
			return err
		}
	} else if path != m.clip.Path {
		return fmt.Errorf("open %s: %w", path, io.ErrUnexpectedEOF)
	}
	m.open = true
	m.nextVideo = 0
	m.nextAudio = 0
	return nil
}

func (m *Decoder) NextCodedFrame(filter ports.StreamFilter) (ports.RawFrame, error) {
	if m.FrameDelay > 0 {
		time.Sleep(m.FrameDelay)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.open {
		m.misuse++
		return ports.RawFrame{}, ErrDecoderClosed
	}
	if m.NextFunc != nil {
		return m.NextFunc(filter)
	}

	for {
		videoLeft := m.nextVideo < m.clip.Frames
		audioLeft := m.nextAudio < m.clip.AudioFrames()
		if !videoLeft && !audioLeft {
			return ports.RawFrame{}, io.EOF
		}

		audioFirst := audioLeft && (!videoLeft ||
			m.clip.AudioTimestamp(m.nextAudio) <= m.clip.VideoTimestamp(m.nextVideo))

		if audioFirst {
			j := m.nextAudio
			m.nextAudio++
			if filter.Has(ports.StreamAudio) {
				m.decoded++
				return ports.RawFrame{Audio: m.audioFrame(j)}, nil
			}
			continue
		}

		i := m.nextVideo
		m.nextVideo++
		if filter.Has(ports.StreamVideo) {
			m.decoded++
			return ports.RawFrame{Video: m.videoFrame(i)}, nil
		}
	}
}

func (m *Decoder) videoFrame(i int) *ports.RawVideo {
	size := m.clip.Width * m.clip.Height * 3
	if len(m.videoPlane) != size {
		m.videoPlane = make([]byte, size)
	}
	for k := range m.videoPlane {
		m.videoPlane[k] = byte(i)
	}
	return &ports.RawVideo{
		Width:    m.clip.Width,
		Height:   m.clip.Height,
		Format:   ports.PixelFormatRGB24,
		Planes:   [][]byte{m.videoPlane},
		Strides:  []int{m.clip.Width * 3},
		PTS:      int64(i),
		TimeBase: ports.Rational{Num: 1, Den: int64(m.clip.FPS)},
	}
}

func (m *Decoder) audioFrame(j int) *ports.RawAudio {
	size := m.clip.AudioBlock * m.clip.Channels * 4
	if len(m.audioPlane) != size {
		m.audioPlane = make([]byte, size)
	}
	bits := math.Float32bits(float32(j))
	for k := 0; k < size; k += 4 {
		binary.LittleEndian.PutUint32(m.audioPlane[k:], bits)
	}
	return &ports.RawAudio{
		Channels:   m.clip.Channels,
		SampleRate: m.clip.SampleRate,
		Samples:    m.clip.AudioBlock,
		Format:     ports.SampleFormatFLT,
		Planes:     [][]byte{m.audioPlane},
		PTS:        int64(j * m.clip.AudioBlock),
		TimeBase:   ports.Rational{Num: 1, Den: int64(m.clip.SampleRate)},
	}
}

// SeekBackward positions at the last keyframe at or before ts.
func (m *Decoder) SeekBackward(ts time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seeks++
	if !m.open {
		m.misuse++
		return ErrDecoderClosed
	}
	if m.SeekFunc != nil {
		if err := m.SeekFunc(ts); err != nil {
			return err
		}
	}

	frame := int(ts * time.Duration(m.clip.FPS) / time.Second)
	frame = min(max(frame, 0), m.clip.Frames-1)
	key := frame - frame%max(m.clip.KeyframeInterval, 1)
	m.nextVideo = key

	keyTS := m.clip.VideoTimestamp(key)
	m.nextAudio = 0
	for m.nextAudio < m.clip.AudioFrames() && m.clip.AudioTimestamp(m.nextAudio) < keyTS {
		m.nextAudio++
	}
	return nil
}

func (m *Decoder) Flush() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushes++
	if !m.open {
		m.misuse++
	}
}

func (m *Decoder) Duration() time.Duration {
	return m.clip.Duration()
}

func (m *Decoder) Channels() int {
	return m.clip.Channels
}

func (m *Decoder) SampleRate() int {
	if m.clip.Channels == 0 {
		return 0
	}
	return m.clip.SampleRate
}

func (m *Decoder) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closes++
	m.open = false
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// DecoderStats summarizes calls made against a Decoder.
type DecoderStats struct {
	Opens   int
	Seeks   int
	Flushes int
	Closes  int
	Decoded int
	// Misuse counts calls made while the decoder was closed.
	Misuse int
}

// Stats returns call counters (for test verification).
func (m *Decoder) Stats() DecoderStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return DecoderStats{
		Opens:   m.opens,
		Seeks:   m.seeks,
		Flushes: m.flushes,
		Closes:  m.closes,
		Decoded: m.decoded,
		Misuse:  m.misuse,
	}
}

var _ ports.Decoder = (*Decoder)(nil)
